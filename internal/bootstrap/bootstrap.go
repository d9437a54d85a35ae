// Package bootstrap provides centralized initialization and lifecycle management for
// core service dependencies (Postgres, Redis, identity client, audit emitter).
//
// Purpose:
//
//	This package wires together the foundational runtime dependencies of the
//	gateway binary. It ensures consistent initialization order, handles
//	connection failures gracefully, and provides a unified shutdown and
//	health check interface.
//
// Dependencies:
//   - github.com/redis/go-redis/v9: Redis client for the revocation store
//   - internal/config: Service configuration from environment variables
//   - internal/identity: identity-provider client and revocation store
//   - internal/storage/postgres: content data access layer
//
// Key Responsibilities:
//   - Initialize connects to Postgres and optional Redis, builds the identity client
//   - Runtime bundles all initialized dependencies for use by binaries
//   - ReadinessProbe checks health of Postgres and Redis connections
//   - Close releases all resources in reverse initialization order
//
// Debugging Notes:
//   - Redis connection failures fail fast during initialization (2s timeout)
//   - Without Redis, revocation degrades to a no-op store: admin revocation
//     has no effect, but sessions still expire normally
//   - Postgres connection failures prevent service startup (required dependency)
//
// Thread Safety:
//   - Runtime struct is safe for concurrent read access after initialization
//   - Close should be called once during shutdown (not thread-safe for concurrent calls)
//
// Error Handling:
//   - Initialization errors are wrapped with context (e.g., "bootstrap postgres: ...")
//   - ReadinessProbe returns errors that include dependency names for observability
//   - Close collects errors but returns the first one encountered
package bootstrap

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/unionhub/auth-gateway/internal/audit"
	"github.com/unionhub/auth-gateway/internal/config"
	"github.com/unionhub/auth-gateway/internal/identity"
	"github.com/unionhub/auth-gateway/internal/storage/postgres"
)

// Runtime bundles initialized runtime dependencies for use by service binaries.
// All fields are populated during Initialize and remain valid until Close is called.
type Runtime struct {
	Config      *config.Config           // Service configuration (read-only after init)
	Postgres    *postgres.Store          // PostgreSQL data access layer (required)
	Redis       *redis.Client            // Redis client for the revocation store (optional, nil if not configured)
	Revocations identity.RevocationStore // Revocation watermark store (Redis or no-op)
	Identity    *identity.Client         // Identity-provider client (token verification, cookie minting)
	Audit       audit.Emitter            // Audit event emitter (Kafka in production, logger otherwise)
	Logger      zerolog.Logger
}

// Initialize wires core dependencies based on the provided configuration.
// Initialization order: Postgres -> Redis (if configured) -> identity client -> audit.
// Returns an error if any required dependency fails to initialize.
// The returned Runtime must be closed via Close() during shutdown.
func Initialize(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*Runtime, error) {
	pgStore, err := postgres.NewStore(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("bootstrap postgres: %w", err)
	}

	runtime := &Runtime{
		Config:   cfg,
		Postgres: pgStore,
		Logger:   logger,
	}

	if cfg.RedisAddr != "" {
		runtime.Redis = redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})

		// Best-effort ping with timeout to fail fast if Redis is unavailable.
		pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		defer cancel()
		if err := runtime.Redis.Ping(pingCtx).Err(); err != nil {
			return nil, fmt.Errorf("bootstrap redis: %w", err)
		}
		runtime.Revocations = identity.NewRedisRevocationStore(runtime.Redis, cfg.SessionTTL+time.Hour)
	} else {
		logger.Warn().Msg("redis not configured, session revocation disabled")
		runtime.Revocations = identity.NoopRevocationStore{}
	}

	creds, err := identity.ResolveCredentials(cfg.IDPCredentialsJSON, cfg.IDPCredentialsB64, cfg.IDPCredentialsFile)
	if err != nil {
		return nil, fmt.Errorf("bootstrap identity credentials: %w", err)
	}
	idClient, err := identity.Default(identity.Options{
		IssuerURL:   cfg.IDPIssuerURL,
		ProjectID:   cfg.IDPProjectID,
		Credentials: creds,
		Revocations: runtime.Revocations,
		Timeout:     cfg.IDPTimeout,
		Logger:      logger,
	})
	if err != nil {
		return nil, fmt.Errorf("bootstrap identity client: %w", err)
	}
	runtime.Identity = idClient

	if len(cfg.KafkaBrokers) > 0 {
		logger.Info().Str("topic", cfg.KafkaTopic).Msg("using kafka emitter for audit events")
		runtime.Audit = audit.NewKafkaEmitter(cfg.KafkaBrokers, cfg.KafkaTopic, cfg.KafkaClientID, logger)
	} else {
		logger.Info().Msg("kafka not configured, using logger emitter for audit events")
		runtime.Audit = audit.NewLoggerEmitter(logger)
	}

	return runtime, nil
}

// Close releases runtime resources in reverse initialization order.
// Safe to call multiple times (idempotent). Returns the first error encountered,
// but continues closing other resources.
func (rt *Runtime) Close(ctx context.Context) error {
	if rt == nil {
		return nil
	}
	var firstErr error
	if kafkaEmitter, ok := rt.Audit.(*audit.KafkaEmitter); ok {
		if err := kafkaEmitter.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if rt.Redis != nil {
		if err := rt.Redis.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if rt.Postgres != nil {
		rt.Postgres.Close()
	}
	return firstErr
}

// ReadinessProbe checks the health of critical runtime dependencies.
// Used by Kubernetes readiness checks and /readyz endpoint. Returns an error
// if Postgres or Redis (if configured) are unreachable. Context timeout should
// be set by the caller (typically 1-2 seconds for fast failure).
func (rt *Runtime) ReadinessProbe(ctx context.Context) error {
	if rt.Postgres != nil {
		if err := rt.Postgres.Ping(ctx); err != nil {
			return fmt.Errorf("postgres not ready: %w", err)
		}
	}
	if rt.Redis != nil {
		if err := rt.Redis.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("redis not ready: %w", err)
		}
	}
	return nil
}
