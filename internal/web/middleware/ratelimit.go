package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"github.com/JonMunkholm/inscricoes/internal/core"
)

type visitor struct {
	limiter  *rate.Limiter
	lastSeen atomic.Int64
}

// IPRateLimiter keeps a token bucket per client IP.
type IPRateLimiter struct {
	visitors sync.Map
	limit    rate.Limit
	burst    int
	now      func() time.Time
}

// NewIPRateLimiter allows perMinute requests per IP with the given burst.
func NewIPRateLimiter(perMinute, burst int) *IPRateLimiter {
	return &IPRateLimiter{
		limit: rate.Limit(float64(perMinute) / 60),
		burst: burst,
		now:   time.Now,
	}
}

func (l *IPRateLimiter) get(ip string) *visitor {
	v, ok := l.visitors.Load(ip)
	if !ok {
		fresh := &visitor{limiter: rate.NewLimiter(l.limit, l.burst)}
		v, _ = l.visitors.LoadOrStore(ip, fresh)
	}
	vis := v.(*visitor)
	vis.lastSeen.Store(l.now().UnixNano())
	return vis
}

// Allow consumes a token for ip.
func (l *IPRateLimiter) Allow(ip string) bool {
	return l.get(ip).limiter.AllowN(l.now(), 1)
}

// Sweep forgets visitors idle for longer than idle and returns how many
// were dropped.
func (l *IPRateLimiter) Sweep(idle time.Duration) int {
	cutoff := l.now().Add(-idle).UnixNano()
	dropped := 0
	l.visitors.Range(func(key, value any) bool {
		if value.(*visitor).lastSeen.Load() < cutoff {
			l.visitors.Delete(key)
			dropped++
		}
		return true
	})
	return dropped
}

// Run sweeps idle visitors every interval until ctx is done.
func (l *IPRateLimiter) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := l.Sweep(2 * interval); n > 0 {
				slog.Debug("ratelimit: swept idle visitors", "count", n)
			}
		}
	}
}

// Middleware rejects requests over the limit with 429.
func (l *IPRateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := core.ClientIP(r.Context())
		if ip == "" {
			ip = r.RemoteAddr
		}

		if !l.Allow(ip) {
			slog.Warn("ratelimit: request rejected", "ip", ip, "path", r.URL.Path)

			msg := core.MapError(errRateLimited)
			retry := 60
			if l.limit > 0 {
				retry = max(1, int(1/float64(l.limit)))
			}
			w.Header().Set("Retry-After", strconv.Itoa(retry))
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusTooManyRequests)
			json.NewEncoder(w).Encode(map[string]string{
				"error":   msg.Message,
				"message": msg.Message,
				"action":  msg.Action,
				"code":    msg.Code,
			})
			return
		}

		next.ServeHTTP(w, r)
	})
}

var errRateLimited = errors.New("rate limit exceeded")
