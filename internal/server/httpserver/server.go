// Package httpserver wires the HTTP handlers into a chi router and runs the server.
package httpserver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/iudanet/tmmerge/internal/server/handlers"
	custommw "github.com/iudanet/tmmerge/internal/server/middleware"
)

// Handlers groups the HTTP handlers served by the router.
type Handlers struct {
	Health    *handlers.HealthHandler
	Auth      *handlers.AuthHandler
	Projects  *handlers.ProjectHandler
	Workspace *handlers.WorkspaceHandler
	TM        *handlers.TMHandler
}

// Options configures the router.
type Options struct {
	Tokens      custommw.TokenValidator
	Limiter     *custommw.RateLimiter
	AuthLimiter *custommw.RateLimiter
}

// NewRouter builds the API routes.
func NewRouter(logger *slog.Logger, h Handlers, opts Options) http.Handler {
	router := chi.NewRouter()
	router.Use(chimw.RequestID)
	router.Use(chimw.RealIP)
	router.Use(custommw.LoggingMiddleware(logger, "/api/v1/health"))
	router.Use(custommw.RecoveryMiddleware(logger))
	if opts.Limiter != nil {
		router.Use(opts.Limiter.Middleware)
	}

	router.NotFound(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":"Not Found","message":"no such endpoint"}`))
	})

	router.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", h.Health.Health)

		r.Route("/auth", func(r chi.Router) {
			if opts.AuthLimiter != nil {
				r.Use(opts.AuthLimiter.Middleware)
			}
			r.Post("/register", h.Auth.Register)
			r.Post("/login", h.Auth.Login)
			r.Post("/refresh", h.Auth.Refresh)
			r.With(custommw.AuthMiddleware(logger, opts.Tokens)).Post("/logout", h.Auth.Logout)
		})

		r.Group(func(r chi.Router) {
			r.Use(custommw.AuthMiddleware(logger, opts.Tokens))

			r.Get("/locales", h.Projects.ListLocales)
			r.Post("/permissions/translators", h.Projects.GrantTranslator)

			r.Post("/projects", h.Projects.CreateProject)
			r.Route("/projects/{project}", func(r chi.Router) {
				r.Get("/", h.Projects.GetProject)
				r.Put("/status", h.Projects.UpdateProjectStatus)
				r.Post("/maintainers", h.Projects.AddMaintainer)
				r.Delete("/maintainers/{username}", h.Projects.RemoveMaintainer)
				r.Get("/versions", h.Projects.ListVersions)
				r.Post("/versions", h.Projects.CreateVersion)
				r.Put("/versions/{version}/status", h.Projects.UpdateVersionStatus)
				r.Put("/versions/{version}/documents/*", h.Projects.UploadDocument)
			})

			r.Route("/workspaces/{project}/{version}/{locale}", func(r chi.Router) {
				r.Get("/units", h.Workspace.ListUnits)
				r.Post("/tm-merge", h.Workspace.Merge)
				r.Post("/translations", h.Workspace.Translate)
				r.Get("/events", h.Workspace.Events)
			})

			r.Put("/tm/{slug}", h.TM.Import)
		})
	})

	return router
}

// Server is the HTTP server with graceful shutdown.
type Server struct {
	logger          *slog.Logger
	srv             *http.Server
	shutdownTimeout time.Duration
}

// New creates a server listening on addr.
// WriteTimeout stays zero because the event stream is long lived.
func New(logger *slog.Logger, addr string, handler http.Handler, readTimeout, shutdownTimeout time.Duration) *Server {
	return &Server{
		logger: logger,
		srv: &http.Server{
			Addr:              addr,
			Handler:           handler,
			ReadTimeout:       readTimeout,
			ReadHeaderTimeout: readTimeout,
			IdleTimeout:       2 * time.Minute,
		},
		shutdownTimeout: shutdownTimeout,
	}
}

// Run serves until ctx is canceled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.srv.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.srv.Addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve is Run on an existing listener.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	s.srv.BaseContext = func(net.Listener) context.Context { return ctx }

	errC := make(chan error, 1)
	go func() {
		s.logger.Info("HTTP server listening", slog.String("addr", ln.Addr().String()))
		errC <- s.srv.Serve(ln)
	}()

	select {
	case err := <-errC:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	s.logger.Info("shutting down HTTP server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
	defer cancel()
	if err := s.srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down: %w", err)
	}
	if err := <-errC; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
