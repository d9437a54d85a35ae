// Command gateway is the session-and-authorization boundary for the platform.
//
// Purpose:
//   This binary fronts the member-facing web application. It terminates the
//   session lifecycle (CSRF token issue, login, logout, admin revocation),
//   guards protected page prefixes at the edge, resolves verified sessions
//   for the content API, and serves the association content endpoints.
//
// Dependencies:
//   - internal/bootstrap: Runtime initialization and lifecycle management
//   - internal/config: Configuration from environment variables
//   - internal/httpapi/*: gatekeeper, resolver, session and content handlers
//   - internal/server: HTTP server with health/readiness endpoints
//   - internal/logging: Structured logging setup
//
// Key Responsibilities:
//   - Load configuration and initialize runtime dependencies
//   - Mount the gatekeeper globally and register session/content routes
//   - Serve HTTP requests on configured port
//   - Handle graceful shutdown (SIGINT/SIGTERM) with 10s timeout
//   - Expose health/readiness endpoints for Kubernetes
//
// Debugging Notes:
//   - Server starts on HTTP_PORT (default 8080)
//   - Readiness probe checks Postgres and Redis connectivity
//   - Graceful shutdown allows in-flight requests to complete (10s timeout)
//   - Runtime.Close() releases Postgres pool, Redis, and Kafka connections
//
// Error Handling:
//   - Configuration errors exit with code 1
//   - Bootstrap failures log fatal and exit
//   - Server errors log fatal and exit
//   - Shutdown errors log warning but don't exit
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/unionhub/auth-gateway/internal/bootstrap"
	"github.com/unionhub/auth-gateway/internal/config"
	"github.com/unionhub/auth-gateway/internal/csrf"
	"github.com/unionhub/auth-gateway/internal/httpapi/content"
	"github.com/unionhub/auth-gateway/internal/httpapi/gatekeeper"
	"github.com/unionhub/auth-gateway/internal/httpapi/resolver"
	"github.com/unionhub/auth-gateway/internal/httpapi/sessionapi"
	"github.com/unionhub/auth-gateway/internal/logging"
	"github.com/unionhub/auth-gateway/internal/server"
)

func main() {
	cfg := config.MustLoad()
	logger := logging.New(cfg.ServiceName, cfg.LogLevel, cfg.Environment)
	logger.Info().
		Str("env", cfg.Environment).
		Int("port", cfg.HTTPPort).
		Msg("starting auth gateway")

	ctx := context.Background()
	runtime, err := bootstrap.Initialize(ctx, cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to bootstrap runtime")
	}
	logger.Info().Msg("runtime dependencies initialized")

	guard, err := csrf.NewGuard(csrf.Options{
		CookieName:     cfg.CSRFCookieName,
		HeaderName:     cfg.CSRFHeaderName,
		TTL:            cfg.CSRFTTL,
		Secure:         cfg.IsProduction(),
		ExpectedOrigin: cfg.ExpectedOrigin,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("invalid csrf configuration")
	}

	sessionResolver := resolver.New(resolver.Options{
		Verifier:   runtime.Identity,
		CookieName: cfg.SessionCookieName,
		LoginPath:  cfg.LoginPath,
		Logger:     logger,
	})

	sessionHandler := sessionapi.NewHandler(sessionapi.Options{
		Identity:   runtime.Identity,
		Guard:      guard,
		Resolver:   sessionResolver,
		Audit:      runtime.Audit,
		Logger:     logger,
		CookieName: cfg.SessionCookieName,
		SessionTTL: cfg.SessionTTL,
		Secure:     cfg.IsProduction(),
	})

	contentHandler := content.NewHandler(runtime.Postgres, sessionResolver, runtime.Audit, logger)

	edgeGuard := gatekeeper.Middleware(gatekeeper.Options{
		ProtectedPrefix:   cfg.ProtectedPrefix,
		LoginPath:         cfg.LoginPath,
		SessionCookieName: cfg.SessionCookieName,
		Production:        cfg.IsProduction(),
		Logger:            logger,
	})

	srv := server.New(server.Options{
		Port:             cfg.HTTPPort,
		Logger:           logger,
		ServiceName:      cfg.ServiceName,
		Readiness:        runtime.ReadinessProbe,
		GlobalMiddleware: []func(http.Handler) http.Handler{edgeGuard},
		RegisterRoutes: func(r chi.Router) {
			sessionapi.RegisterRoutes(r, sessionHandler)
			content.RegisterRoutes(r, contentHandler)
		},
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("gateway server failed")
		}
	}()

	<-ctx.Done()
	stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown failed")
		os.Exit(1)
	}
	if err := runtime.Close(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("failed to cleanly close runtime")
	}

	logger.Info().Msg("auth gateway stopped")
}
