package web

import (
	"context"
	"net/http"

	"github.com/JonMunkholm/inscricoes/internal/core"
)

// WithRequestMetadata makes sure the client IP and User-Agent are in ctx
// even for handlers mounted without TrustedRealIP.
func WithRequestMetadata(ctx context.Context, r *http.Request) context.Context {
	if core.ClientIP(ctx) == "" {
		ctx = core.ContextWithClientIP(ctx, r.RemoteAddr)
	}
	if core.UserAgent(ctx) == "" {
		ctx = core.ContextWithUserAgent(ctx, r.UserAgent())
	}
	return ctx
}
