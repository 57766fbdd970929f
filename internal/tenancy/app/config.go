package app

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Env       string // Environment (dev, staging, prod) (default: dev)
	LogLevel  string // Log level (debug, info, warn, error) (default: info)
	LogFormat string // Log format (json, text) (default: json)
	Port      int    // HTTP server port (default: 8080)

	DatabaseDriver string // sqlite or postgres (default: sqlite)
	DatabaseFile   string // SQLite database file (default: ./tenancy.db)
	DatabaseURL    string // Postgres DSN, required when DatabaseDriver is postgres

	ValkeyAddr           string // Shared rate limit store; empty keeps windows in process memory
	ValkeyPassword       string
	ValkeyDB             int
	RateLimitAllowMemory bool   // Permit in-memory windows outside dev (default: false)
	RateLimitPolicyFile  string // Optional TOML file overriding rate limit policies
	TrustProxyHeaders    bool   // Key anonymous limits on X-Forwarded-For (default: false)

	IdPIssuer         string        // Expected iss claim; empty skips the check
	IdPAudience       []string      // Expected aud values, comma separated; empty skips the check
	IdPJWKSURL        string        // Identity provider key set
	IdPJWKSRefresh    time.Duration // JWKS refresh interval (default: 15m)
	IdPPublicKeyFile  string        // Static PEM public key, used when IdPJWKSURL is empty
	IdPKeyID          string        // kid for IdPPublicKeyFile
	IdPRequiredScopes []string      // Callers need one of these scopes; empty accepts any token

	InviteTTL       time.Duration // Invite lifetime (default: 48h)
	InviteLinkBase  string        // Base of issued invite links (default: tenancy://invite)
	InviteRetention time.Duration // How long dead invites are kept (default: 30 days)

	ShutdownGracePeriod  time.Duration // Graceful shutdown timeout (default: 10s)
	HousekeepingInterval time.Duration // Housekeeping interval (default: 1h)
}

func LoadConfig() Config {
	return Config{
		Env:       getEnvOrDefault("ENV", "dev"),
		LogLevel:  getEnvOrDefault("LOG_LEVEL", "info"),
		LogFormat: getEnvOrDefault("LOG_FORMAT", "json"),
		Port:      getEnvIntOrDefault("PORT", 8080),

		DatabaseDriver: getEnvOrDefault("DATABASE_DRIVER", "sqlite"),
		DatabaseFile:   getEnvOrDefault("DATABASE_FILE", "tenancy.db"),
		DatabaseURL:    os.Getenv("DATABASE_URL"),

		ValkeyAddr:           os.Getenv("VALKEY_ADDR"),
		ValkeyPassword:       os.Getenv("VALKEY_PASSWORD"),
		ValkeyDB:             getEnvIntOrDefault("VALKEY_DB", 0),
		RateLimitAllowMemory: getEnvBoolOrDefault("RATELIMIT_ALLOW_MEMORY", false),
		RateLimitPolicyFile:  os.Getenv("RATELIMIT_POLICY_FILE"),
		TrustProxyHeaders:    getEnvBoolOrDefault("TRUST_PROXY_HEADERS", false),

		IdPIssuer:         os.Getenv("IDP_ISSUER"),
		IdPAudience:       splitList(os.Getenv("IDP_AUDIENCE")),
		IdPJWKSURL:        os.Getenv("IDP_JWKS_URL"),
		IdPJWKSRefresh:    getEnvDurationOrDefault("IDP_JWKS_REFRESH", 15*time.Minute),
		IdPPublicKeyFile:  os.Getenv("IDP_PUBLIC_KEY_FILE"),
		IdPKeyID:          getEnvOrDefault("IDP_KEY_ID", "default"),
		IdPRequiredScopes: splitList(os.Getenv("IDP_REQUIRED_SCOPES")),

		InviteTTL:       getEnvDurationOrDefault("INVITE_TTL", 48*time.Hour),
		InviteLinkBase:  getEnvOrDefault("INVITE_LINK_BASE", "tenancy://invite"),
		InviteRetention: getEnvDurationOrDefault("INVITE_RETENTION", 30*24*time.Hour),

		ShutdownGracePeriod:  getEnvDurationOrDefault("SHUTDOWN_GRACE_PERIOD", 10*time.Second),
		HousekeepingInterval: getEnvDurationOrDefault("HOUSEKEEPING_INTERVAL", 1*time.Hour),
	}
}

// Validate reports settings the service cannot start with.
func (c Config) Validate() error {
	var errs []error

	switch c.DatabaseDriver {
	case "sqlite":
		if c.DatabaseFile == "" {
			errs = append(errs, errors.New("DATABASE_FILE is required for sqlite"))
		}
	case "postgres":
		if c.DatabaseURL == "" {
			errs = append(errs, errors.New("DATABASE_URL is required for postgres"))
		}
	default:
		errs = append(errs, fmt.Errorf("unsupported DATABASE_DRIVER %q", c.DatabaseDriver))
	}

	if c.IdPJWKSURL == "" && c.IdPPublicKeyFile == "" {
		errs = append(errs, errors.New("one of IDP_JWKS_URL or IDP_PUBLIC_KEY_FILE is required"))
	}
	// Per-instance windows multiply every limit by the replica count.
	if c.ValkeyAddr == "" && c.Env != "dev" && !c.RateLimitAllowMemory {
		errs = append(errs, fmt.Errorf("VALKEY_ADDR is required when ENV is %q; set RATELIMIT_ALLOW_MEMORY=true to run a single instance without it", c.Env))
	}
	if c.InviteTTL <= 0 {
		errs = append(errs, errors.New("INVITE_TTL must be positive"))
	}

	return errors.Join(errs...)
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	if intValue, err := strconv.Atoi(value); err == nil {
		return intValue
	}

	return defaultValue
}

func getEnvBoolOrDefault(key string, defaultValue bool) bool {
	if b, err := strconv.ParseBool(os.Getenv(key)); err == nil {
		return b
	}
	return defaultValue
}

func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	// Try parsing as duration (e.g., "1h", "30m", "90s")
	if duration, err := time.ParseDuration(value); err == nil {
		return duration
	}

	// Try parsing as integer minutes
	if minutes, err := strconv.Atoi(value); err == nil {
		return time.Duration(minutes) * time.Minute
	}

	return defaultValue
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
