package config

import (
	"os"
	"strconv"
	"time"
)

// CollaboratorMode selects the document/proof collaborator implementations.
// Mock collaborators return fixture data; real ones call external pipelines.
type CollaboratorMode string

const (
	ModeMock CollaboratorMode = "mock"
	ModeReal CollaboratorMode = "real"
)

// Server captures process-level configuration sourced from the environment.
type Server struct {
	Addr          string
	WidgetBaseURL string
	JWTSigningKey string
	JWTIssuer     string
	TokenTTL      time.Duration

	// SessionTTL bounds how long a pending session may wait for the user to
	// finish the flow before it ages out.
	SessionTTL      time.Duration
	CleanupInterval time.Duration

	Collaborators CollaboratorMode

	PostgresURL  string
	RedisURL     string
	KafkaBrokers string

	// SeedAPIKey/SeedClient provision a development client when set.
	SeedAPIKey     string
	SeedClientID   string
	SeedClientName string
}

// Redis holds connection tuning for the optional Redis session store.
type Redis struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// FromEnv builds a Server config from environment variables so main stays lean.
func FromEnv() Server {
	cfg := Server{
		Addr:            envOr("FLAZK_ADDR", ":8080"),
		WidgetBaseURL:   envOr("FLAZK_WIDGET_URL", "http://localhost:5173"),
		JWTSigningKey:   envOr("FLAZK_JWT_SIGNING_KEY", "dev-secret-key-change-in-production"),
		JWTIssuer:       envOr("FLAZK_JWT_ISSUER", "flazk"),
		TokenTTL:        durationOr("FLAZK_TOKEN_TTL", 15*time.Minute),
		SessionTTL:      durationOr("FLAZK_SESSION_TTL", 30*time.Minute),
		CleanupInterval: durationOr("FLAZK_CLEANUP_INTERVAL", 5*time.Minute),
		Collaborators:   ModeMock,
		PostgresURL:     os.Getenv("FLAZK_POSTGRES_URL"),
		RedisURL:        os.Getenv("FLAZK_REDIS_URL"),
		KafkaBrokers:    os.Getenv("FLAZK_KAFKA_BROKERS"),
		SeedAPIKey:      os.Getenv("FLAZK_SEED_API_KEY"),
		SeedClientID:    envOr("FLAZK_SEED_CLIENT_ID", "acme-car-rental"),
		SeedClientName:  envOr("FLAZK_SEED_CLIENT_NAME", "ACME Car Rentals"),
	}
	if os.Getenv("FLAZK_COLLABORATORS") == string(ModeReal) {
		cfg.Collaborators = ModeReal
	}
	return cfg
}

// RedisFromEnv builds Redis tuning with defaults suitable for a small pool.
func RedisFromEnv() Redis {
	return Redis{
		URL:          os.Getenv("FLAZK_REDIS_URL"),
		PoolSize:     intOr("FLAZK_REDIS_POOL_SIZE", 10),
		MinIdleConns: intOr("FLAZK_REDIS_MIN_IDLE", 2),
		DialTimeout:  durationOr("FLAZK_REDIS_DIAL_TIMEOUT", 5*time.Second),
		ReadTimeout:  durationOr("FLAZK_REDIS_READ_TIMEOUT", 3*time.Second),
		WriteTimeout: durationOr("FLAZK_REDIS_WRITE_TIMEOUT", 3*time.Second),
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func durationOr(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func intOr(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}
