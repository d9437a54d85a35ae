// Package config provides environment variable-based configuration loading.
//
// Purpose:
//
//	This package defines the gateway configuration structure and provides
//	functions to load configuration from environment variables using envconfig.
//	Both binaries (gateway, migrate) share this configuration structure.
//
// Dependencies:
//   - github.com/kelseyhightower/envconfig: Environment variable parsing
//
// Key Responsibilities:
//   - Config struct defines all gateway configuration fields
//   - Load reads and validates environment variables
//   - MustLoad exits the process if configuration is invalid
//
// Debugging Notes:
//   - Required fields: DATABASE_URL, IDP_PROJECT_ID
//   - Defaults provided for optional fields (port, cookie names, TTLs, log level)
//   - Redis is optional (no-op revocation store used if not configured)
//   - EXPECTED_ORIGIN empty disables CSRF origin/referer pinning
//
// Thread Safety:
//   - Config struct is read-only after loading (safe for concurrent read access)
//
// Error Handling:
//   - Load returns wrapped errors from envconfig.Process
//   - MustLoad writes to stderr and exits on error
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config represents shared runtime configuration for the auth gateway binaries.
// All fields are populated from environment variables with defaults where
// specified. Required fields must be set or Load/MustLoad will return an error.
type Config struct {
	// ServiceName is emitted in logs and metrics.
	ServiceName string `envconfig:"SERVICE_NAME" default:"unionhub-auth-gateway"`
	// HTTPPort is the port the HTTP server listens on.
	HTTPPort int `envconfig:"HTTP_PORT" default:"8080"`
	// DatabaseURL is the Postgres connection string for the content database.
	DatabaseURL string `envconfig:"DATABASE_URL" required:"true"`
	// RedisAddr is the host:port of the Redis instance backing the session
	// revocation store. Empty disables revocation tracking (no-op store).
	RedisAddr string `envconfig:"REDIS_ADDR" default:""`
	// RedisPassword is the optional password for Redis authentication.
	RedisPassword string `envconfig:"REDIS_PASSWORD" default:""`
	// RedisDB selects the logical Redis database index.
	RedisDB int `envconfig:"REDIS_DB" default:"0"`
	// LogLevel controls zerolog global level (debug, info, warn, error).
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`
	// Environment describes the current deployment environment (development,
	// staging, production). Production gates HSTS emission and the Secure
	// cookie attribute.
	Environment string `envconfig:"ENVIRONMENT" default:"development"`

	// ExpectedOrigin pins CSRF origin/referer checks to a single external
	// origin (e.g. "https://unionhub.app"). Empty disables the check.
	ExpectedOrigin string `envconfig:"EXPECTED_ORIGIN" default:""`
	// ProtectedPrefix is the path prefix guarded by the edge gatekeeper.
	ProtectedPrefix string `envconfig:"PROTECTED_PREFIX" default:"/dashboard"`
	// LoginPath is the page unauthenticated users are redirected to.
	LoginPath string `envconfig:"LOGIN_PATH" default:"/login"`
	// SessionCookieName is the name of the signed session cookie.
	SessionCookieName string `envconfig:"SESSION_COOKIE_NAME" default:"__unionhub_session"`
	// CSRFCookieName is the name of the double-submit CSRF cookie.
	CSRFCookieName string `envconfig:"CSRF_COOKIE_NAME" default:"__unionhub_csrf"`
	// CSRFHeaderName is the request header carrying the client's CSRF token copy.
	CSRFHeaderName string `envconfig:"CSRF_HEADER_NAME" default:"X-CSRF-Token"`
	// SessionTTL is the session cookie lifetime.
	SessionTTL time.Duration `envconfig:"SESSION_TTL" default:"24h"`
	// CSRFTTL is the CSRF cookie lifetime.
	CSRFTTL time.Duration `envconfig:"CSRF_TTL" default:"2h"`

	// IDPIssuerURL is the OIDC issuer of the external identity provider.
	IDPIssuerURL string `envconfig:"IDP_ISSUER_URL" default:"https://identity.unionhub.app"`
	// IDPProjectID is the provider project identifier, enforced as the token
	// audience during verification.
	IDPProjectID string `envconfig:"IDP_PROJECT_ID" required:"true"`
	// IDPCredentialsJSON is the inline service credential JSON. Takes
	// precedence over the base64 and file variants.
	IDPCredentialsJSON string `envconfig:"IDP_CREDENTIALS_JSON" default:""`
	// IDPCredentialsB64 is the base64-encoded service credential JSON.
	IDPCredentialsB64 string `envconfig:"IDP_CREDENTIALS_B64" default:""`
	// IDPCredentialsFile is the ambient credential file path, used when
	// neither inline nor base64 credentials are provided.
	IDPCredentialsFile string `envconfig:"IDP_CREDENTIALS_FILE" default:"/etc/unionhub/idp-credentials.json"`
	// IDPTimeout bounds each round trip to the identity provider. A timeout
	// is treated as a verification failure (fail closed).
	IDPTimeout time.Duration `envconfig:"IDP_TIMEOUT" default:"5s"`

	// KafkaBrokers is a comma-separated list of Kafka broker addresses.
	// If empty, audit events are logged instead of sent to Kafka.
	KafkaBrokers []string `envconfig:"KAFKA_BROKERS"`
	// KafkaTopic is the Kafka topic name for audit events.
	KafkaTopic string `envconfig:"KAFKA_TOPIC" default:"audit.session"`
	// KafkaClientID is the client ID used when connecting to Kafka.
	KafkaClientID string `envconfig:"KAFKA_CLIENT_ID" default:"unionhub-auth-gateway"`
}

// IsProduction reports whether the gateway runs in the production environment.
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// Load reads environment variables into Config, applying defaults where necessary.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("config: process env: %w", err)
	}
	return &cfg, nil
}

// MustLoad returns Config or exits the process.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	return cfg
}
