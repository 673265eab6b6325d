package main

import (
	"context"
	"log/slog"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/JonMunkholm/inscricoes/internal/admin"
	"github.com/JonMunkholm/inscricoes/internal/backend"
	"github.com/JonMunkholm/inscricoes/internal/cache"
	"github.com/JonMunkholm/inscricoes/internal/catalog"
	"github.com/JonMunkholm/inscricoes/internal/config"
	"github.com/JonMunkholm/inscricoes/internal/core"
	"github.com/JonMunkholm/inscricoes/internal/logging"
	"github.com/JonMunkholm/inscricoes/internal/registration"
	"github.com/JonMunkholm/inscricoes/internal/web"
)

func main() {
	// Load .env file if it exists (Overload overwrites existing env vars)
	if err := godotenv.Overload(); err != nil {
		slog.Info("no .env file found, using environment variables")
	} else {
		slog.Info("loaded .env file (overwriting existing env vars)")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	logging.Setup(cfg.Logging.Level, cfg.Logging.Format)
	slog.Info("configuration loaded", "config", cfg.String())

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var (
		pool   *pgxpool.Pool
		rdb    *redis.Client
		handle backend.Handle
	)

	if cfg.Database.Configured() {
		pool, err = backend.Connect(ctx, cfg.Database)
		if err != nil {
			slog.Error("failed to connect to database", "error", err)
			os.Exit(1)
		}
		defer pool.Close()

		if u, err := url.Parse(cfg.Database.URL); err == nil {
			slog.Info("connected to database", "host", u.Hostname(), "name", strings.TrimPrefix(u.Path, "/"))
		}

		var client backend.Client = backend.NewPostgres(pool)
		if cfg.Redis.Enabled() {
			rdb, err = cache.Connect(ctx, cfg.Redis)
			if err != nil {
				slog.Warn("availability cache disabled", "addr", cfg.Redis.Addr, "error", err)
			} else {
				defer rdb.Close()
				client = cache.NewAvailability(client, rdb, cfg.Redis.AvailabilityTTL)
				slog.Info("availability cache enabled", "addr", cfg.Redis.Addr, "ttl", cfg.Redis.AvailabilityTTL)
			}
		}
		handle = backend.NewHandle(client)
	} else {
		slog.Warn("DATABASE_URL not set; registrations are disabled")
	}

	cat, err := catalog.Load()
	if err != nil {
		slog.Error("failed to load course catalog", "error", err)
		os.Exit(1)
	}
	slog.Info("catalog loaded", "courses", len(cat.All()), "categories", len(cat.Categories()))

	if len(cfg.Security.AdminAPIKeys) == 0 {
		slog.Warn("ADMIN_API_KEYS not set; admin endpoints will reject every request")
	}

	server := web.NewServer(web.Deps{
		Config:       cfg,
		Backend:      handle,
		Catalog:      cat,
		Registration: registration.NewService(handle, cfg.Site.RegistrationCategory),
		Admin: admin.NewService(handle, admin.Options{
			Category:   cfg.Site.RegistrationCategory,
			Location:   cfg.Site.Location(),
			AdminEmail: cfg.Security.AdminEmail,
		}),
		Limiter: core.NewLimiter(cfg.Upload.MaxConcurrent, cfg.Upload.MaxWaitTime),
	})

	// Graceful shutdown
	go func() {
		<-ctx.Done()
		slog.Info("shutting down...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("shutdown error", "error", err)
		}
	}()

	if err := server.Start(); err != nil {
		slog.Error("server stopped", "error", err)
		os.Exit(1)
	}
	slog.Info("server stopped")
}
