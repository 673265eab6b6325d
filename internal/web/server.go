// Package web provides the HTTP server: public pages, the registration API
// and the administrator endpoints.
package web

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/JonMunkholm/inscricoes/internal/admin"
	"github.com/JonMunkholm/inscricoes/internal/backend"
	"github.com/JonMunkholm/inscricoes/internal/catalog"
	"github.com/JonMunkholm/inscricoes/internal/config"
	"github.com/JonMunkholm/inscricoes/internal/core"
	"github.com/JonMunkholm/inscricoes/internal/disparo"
	"github.com/JonMunkholm/inscricoes/internal/registration"
	"github.com/JonMunkholm/inscricoes/internal/web/middleware"
)

// Deps are the services the server routes to.
type Deps struct {
	Config       *config.Config
	Backend      backend.Handle
	Catalog      *catalog.Catalog
	Registration *registration.Service
	Admin        *admin.Service
	Processor    *disparo.Processor
	Limiter      *core.Limiter
}

// Server is the HTTP server for the registration site.
type Server struct {
	cfg          *config.Config
	backend      backend.Handle
	catalog      *catalog.Catalog
	registration *registration.Service
	admin        *admin.Service
	processor    *disparo.Processor
	limiter      *core.Limiter
	loc          *time.Location

	rate   *middleware.IPRateLimiter
	router *chi.Mux
	server *http.Server
	stop   context.CancelFunc
}

// NewServer wires the router.
func NewServer(d Deps) *Server {
	s := &Server{
		cfg:          d.Config,
		backend:      d.Backend,
		catalog:      d.Catalog,
		registration: d.Registration,
		admin:        d.Admin,
		processor:    d.Processor,
		limiter:      d.Limiter,
		loc:          d.Config.Site.Location(),
		router:       chi.NewRouter(),
	}
	if s.processor == nil {
		s.processor = disparo.NewProcessor()
	}
	if s.limiter == nil {
		s.limiter = core.NewLimiter(d.Config.Upload.MaxConcurrent, d.Config.Upload.MaxWaitTime)
	}
	if d.Config.Rate.Enabled {
		s.rate = middleware.NewIPRateLimiter(d.Config.Rate.RequestsPerMinute, d.Config.Rate.Burst)
	}

	s.setupMiddleware()
	s.setupRoutes()
	return s
}

// setupMiddleware configures middleware for all routes.
func (s *Server) setupMiddleware() {
	s.router.Use(chimw.RequestID)
	s.router.Use(middleware.TrustedRealIP(s.cfg.Security.TrustedProxies))
	s.router.Use(middleware.Logger)
	s.router.Use(chimw.Recoverer)
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   s.cfg.Security.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-API-Key", middleware.ActorHeader},
		ExposedHeaders:   []string{"Content-Disposition", "Retry-After"},
		AllowCredentials: false,
		MaxAge:           300,
	}))
	s.router.Use(securityHeaders(s.cfg.Security.EnableCSP))

	if s.rate != nil {
		s.router.Use(s.rate.Middleware)
	}
}

// setupRoutes configures all HTTP routes.
func (s *Server) setupRoutes() {
	timeout := chimw.Timeout(s.cfg.Server.RequestTimeout)

	s.router.Group(func(r chi.Router) {
		r.Use(timeout)

		r.Get("/healthz", s.handleHealth)

		// Pages
		r.Get("/", s.handleLanding)
		r.Get("/inscricao", s.handleRegisterPage)
		r.Post("/inscricao", s.handleRegisterForm)
		r.Get("/obrigado", s.handleThanks)
	})

	s.router.Route("/api", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(timeout)

			r.Get("/catalog", s.handleCatalog)
			r.Get("/availability", s.handleAvailability)
			r.Post("/registrations", s.handleCreateRegistration)

			r.Get("/phone/mask", s.handlePhoneMask)
			r.Get("/phone/normalize", s.handlePhoneNormalize)
		})

		r.Route("/admin", func(r chi.Router) {
			r.Use(middleware.AdminAPIKey(s.cfg.Security.AdminAPIKeys))

			r.Group(func(r chi.Router) {
				r.Use(timeout)

				r.Get("/summary", s.handleAdminSummary)
				r.Get("/registrations", s.handleAdminRegistrations)
				r.Delete("/registrations/{id}", s.handleAdminDelete)
				r.Get("/exports/full", s.handleExportFull)
				r.Get("/exports/disparo", s.handleExportDisparo)
			})

			// Uploads are bounded by UPLOAD_TIMEOUT instead.
			r.Post("/disparo/process", s.handleDisparoProcess)
			r.Post("/disparo/export", s.handleDisparoExport)
		})

		r.NotFound(func(w http.ResponseWriter, r *http.Request) {
			s.respondError(w, r, errNotFound)
		})
	})
}

// Start listens on the configured address until Shutdown.
func (s *Server) Start() error {
	ctx, cancel := context.WithCancel(context.Background())
	s.stop = cancel

	if s.rate != nil {
		go s.rate.Run(ctx, 5*time.Minute)
	}

	s.server = &http.Server{
		Addr:         s.cfg.Server.Addr(),
		Handler:      s.router,
		ReadTimeout:  s.cfg.Server.ReadTimeout,
		WriteTimeout: s.cfg.Server.WriteTimeout,
		IdleTimeout:  s.cfg.Server.IdleTimeout,
		BaseContext:  func(_ net.Listener) context.Context { return ctx },
	}

	slog.Info("starting server", "addr", s.server.Addr)
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting requests and waits for in-flight uploads.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.stop != nil {
		defer s.stop()
	}
	if s.server == nil {
		return nil
	}

	err := s.server.Shutdown(ctx)
	if derr := s.limiter.WaitForDrain(ctx); derr != nil {
		slog.Warn("uploads still running at shutdown", "active", s.limiter.ActiveCount())
		err = errors.Join(err, derr)
	}
	return err
}

// Router returns the underlying chi router for testing.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// securityHeaders adds security headers to all responses.
func securityHeaders(enableCSP bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := w.Header()
			h.Set("X-Content-Type-Options", "nosniff")
			h.Set("X-Frame-Options", "DENY")
			h.Set("Referrer-Policy", "strict-origin-when-cross-origin")
			if enableCSP && !strings.HasPrefix(r.URL.Path, "/api/") {
				h.Set("Content-Security-Policy", "default-src 'self'; style-src 'self' 'unsafe-inline'; img-src 'self' data:")
			}
			next.ServeHTTP(w, r)
		})
	}
}
