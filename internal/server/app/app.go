// Package app assembles the server from its configuration.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/iudanet/tmmerge/internal/server/config"
	"github.com/iudanet/tmmerge/internal/server/events"
	"github.com/iudanet/tmmerge/internal/server/handlers"
	"github.com/iudanet/tmmerge/internal/server/httpserver"
	"github.com/iudanet/tmmerge/internal/server/jwt"
	"github.com/iudanet/tmmerge/internal/server/middleware"
	"github.com/iudanet/tmmerge/internal/server/projects"
	"github.com/iudanet/tmmerge/internal/server/security"
	"github.com/iudanet/tmmerge/internal/server/statecache"
	"github.com/iudanet/tmmerge/internal/server/storage/sqlite"
	"github.com/iudanet/tmmerge/internal/server/tmimport"
	"github.com/iudanet/tmmerge/internal/server/tmmerge"
	"github.com/iudanet/tmmerge/internal/server/tmsearch"
	"github.com/iudanet/tmmerge/internal/server/translation"
)

// TokenCleanupInterval is how often expired refresh tokens are purged.
const TokenCleanupInterval = time.Hour

// App is a fully wired server.
type App struct {
	logger      *slog.Logger
	store       *sqlite.Storage
	hub         *events.Hub
	limiter     *middleware.RateLimiter
	authLimiter *middleware.RateLimiter
	handler     http.Handler
	server      *httpserver.Server
	closeOnce   sync.Once
	closeErr    error
}

// New opens the database and wires every component.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger, version string) (*App, error) {
	store, err := sqlite.New(ctx, cfg.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	tokens := jwt.NewService(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTL, cfg.Auth.RefreshTokenTTL)
	authz := security.NewService(logger, store, store, store)
	cache := statecache.New(logger, store)
	search := tmsearch.NewService(logger, store, store, cache, cfg.Merge.CandidateLimit)
	translator := translation.NewService(logger, store, cache)
	hub := events.NewHub(logger, cfg.Events.Buffer)

	merger := tmmerge.NewService(logger, tmmerge.Deps{
		Locales:   store,
		Auth:      authz,
		TextFlows: store,
		Lookup:    search,
		Units:     store,
		Applier:   translator,
		Events:    hub,
	}, cfg.Merge.Concurrency)

	a := &App{
		logger:      logger,
		store:       store,
		hub:         hub,
		limiter:     middleware.NewRateLimiter(cfg.RateLimit.Requests, cfg.RateLimit.Window, logger),
		authLimiter: middleware.NewRateLimiter(cfg.RateLimit.AuthRequests, cfg.RateLimit.Window, logger),
	}

	a.handler = httpserver.NewRouter(logger, httpserver.Handlers{
		Health:   handlers.NewHealthHandler(logger, store, version),
		Auth:     handlers.NewAuthHandler(logger, store, store, tokens),
		Projects: handlers.NewProjectHandler(logger, projects.NewService(logger, store, authz), store),
		Workspace: handlers.NewWorkspaceHandler(logger, handlers.WorkspaceDeps{
			Auth:       authz,
			Units:      store,
			Locales:    store,
			Merger:     merger,
			Translator: translator,
			Events:     hub,
		}),
		TM: handlers.NewTMHandler(logger, tmimport.NewService(logger, store, authz)),
	}, httpserver.Options{
		Tokens:      tokens,
		Limiter:     a.limiter,
		AuthLimiter: a.authLimiter,
	})
	a.server = httpserver.New(logger, cfg.Server.Address, a.handler, cfg.Server.ReadTimeout, cfg.Server.ShutdownTimeout)

	return a, nil
}

// Handler returns the HTTP handler, useful for tests.
func (a *App) Handler() http.Handler {
	return a.handler
}

// Run serves HTTP until ctx is canceled, then releases resources.
func (a *App) Run(ctx context.Context) error {
	return a.run(ctx, func(ctx context.Context) error { return a.server.Run(ctx) })
}

// Serve is Run on an existing listener.
func (a *App) Serve(ctx context.Context, ln net.Listener) error {
	return a.run(ctx, func(ctx context.Context) error { return a.server.Serve(ctx, ln) })
}

func (a *App) run(ctx context.Context, serve func(context.Context) error) error {
	cleanupDone := make(chan struct{})
	go func() {
		defer close(cleanupDone)
		a.cleanupTokens(ctx)
	}()

	// SSE подписчики держат соединения, поэтому hub закрывается до Shutdown
	stop := context.AfterFunc(ctx, a.hub.Close)
	defer stop()

	err := serve(ctx)
	<-cleanupDone
	return errors.Join(err, a.Close())
}

func (a *App) cleanupTokens(ctx context.Context) {
	ticker := time.NewTicker(TokenCleanupInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := a.store.DeleteExpiredTokens(ctx)
			if err != nil {
				a.logger.WarnContext(ctx, "failed to delete expired tokens", slog.Any("error", err))
				continue
			}
			if n > 0 {
				a.logger.InfoContext(ctx, "expired tokens deleted", slog.Int("count", n))
			}
		}
	}
}

// Close stops background work and closes the database. Safe to call more than once.
func (a *App) Close() error {
	a.closeOnce.Do(func() {
		a.hub.Close()
		a.limiter.Stop()
		a.authLimiter.Stop()
		if err := a.store.Close(); err != nil {
			a.closeErr = fmt.Errorf("failed to close database: %w", err)
		}
	})
	return a.closeErr
}
