// Package cache keeps course availability in Redis between the frequent
// polls of the registration page.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/JonMunkholm/inscricoes/internal/backend"
	"github.com/JonMunkholm/inscricoes/internal/config"
)

const (
	keyPrefix = "inscricoes:availability:"
	keyIndex  = "inscricoes:availability:keys"
)

// Connect opens a Redis client and verifies it answers.
func Connect(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:        cfg.Addr,
		Password:    cfg.Password,
		DB:          cfg.DB,
		DialTimeout: cfg.DialTimeout,
	})

	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("ping redis %s: %w", cfg.Addr, err)
	}
	return rdb, nil
}

// Availability decorates a backend.Client with a read-through cache for
// CourseAvailability. Writes that change seat counts drop the cached
// entries. Redis failures are logged and the call falls through to the
// wrapped client.
type Availability struct {
	backend.Client
	rdb redis.Cmdable
	ttl time.Duration
}

// NewAvailability wraps next.
func NewAvailability(next backend.Client, rdb redis.Cmdable, ttl time.Duration) *Availability {
	return &Availability{Client: next, rdb: rdb, ttl: ttl}
}

// CourseAvailability serves from Redis when a fresh entry exists.
func (a *Availability) CourseAvailability(ctx context.Context, category string) ([]backend.CourseAvailability, error) {
	key := keyPrefix + category

	raw, err := a.rdb.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var cached []backend.CourseAvailability
		if jerr := json.Unmarshal(raw, &cached); jerr == nil {
			return cached, nil
		}
		slog.Warn("cache: discarding corrupt availability entry", "key", key)
	case !errors.Is(err, redis.Nil):
		slog.Warn("cache: availability lookup failed", "key", key, "error", err)
	}

	fresh, err := a.Client.CourseAvailability(ctx, category)
	if err != nil {
		return nil, err
	}

	if payload, err := json.Marshal(fresh); err == nil {
		_, perr := a.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
			p.Set(ctx, key, payload, a.ttl)
			p.SAdd(ctx, keyIndex, key)
			return nil
		})
		if perr != nil {
			slog.Warn("cache: availability store failed", "key", key, "error", perr)
		}
	}

	return fresh, nil
}

// Register invalidates cached availability after a successful registration.
func (a *Availability) Register(ctx context.Context, in backend.NewRegistration) (string, error) {
	id, err := a.Client.Register(ctx, in)
	if err != nil {
		return "", err
	}
	a.Invalidate(ctx)
	return id, nil
}

// DeleteRegistration invalidates cached availability after a deletion.
func (a *Availability) DeleteRegistration(ctx context.Context, id string) error {
	if err := a.Client.DeleteRegistration(ctx, id); err != nil {
		return err
	}
	a.Invalidate(ctx)
	return nil
}

// Invalidate drops every cached availability entry.
func (a *Availability) Invalidate(ctx context.Context) {
	keys, err := a.rdb.SMembers(ctx, keyIndex).Result()
	if err != nil {
		slog.Warn("cache: list availability keys failed", "error", err)
		return
	}
	keys = append(keys, keyIndex)
	if err := a.rdb.Del(ctx, keys...).Err(); err != nil {
		slog.Warn("cache: invalidate availability failed", "error", err)
	}
}
