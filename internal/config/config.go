package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"
)

// Config holds runtime configuration values for the Merchkit server.
type Config struct {
	DBPath          string
	BlobDir         string
	ServerPort      int
	LogLevel        string
	SentryDSN       string
	Environment     string
	AllowedOrigins  []string
	ArchivePollRate time.Duration
	ShutdownGrace   time.Duration
	RateLimit       RateLimitConfig
}

// RateLimitConfig controls the per-client token bucket limiter on the HTTP layer.
type RateLimitConfig struct {
	Burst             int
	RequestsPerSecond float64
	ClientTTL         time.Duration
}

const (
	defaultDBPath          = "./data/merchkit.db"
	defaultBlobDir         = "./data/blobs"
	defaultServerPort      = 8080
	defaultLogLevel        = "info"
	defaultArchivePollRate = 5 * time.Second
	defaultShutdownGrace   = 10 * time.Second
	defaultRateBurst       = 20
	defaultRatePerSecond   = 10.0
	defaultRateClientTTL   = 5 * time.Minute
)

// Load reads configuration values from environment variables, applying defaults where necessary.
func Load() (*Config, error) {
	cfg := &Config{
		DBPath:      getEnv("DB_PATH", defaultDBPath),
		BlobDir:     getEnv("BLOB_DIR", defaultBlobDir),
		LogLevel:    getEnv("LOG_LEVEL", defaultLogLevel),
		SentryDSN:   os.Getenv("SENTRY_DSN"),
		Environment: os.Getenv("ENV"),
		RateLimit: RateLimitConfig{
			Burst:             defaultRateBurst,
			RequestsPerSecond: defaultRatePerSecond,
			ClientTTL:         defaultRateClientTTL,
		},
		ArchivePollRate: defaultArchivePollRate,
		ShutdownGrace:   defaultShutdownGrace,
	}

	if origins := os.Getenv("ALLOWED_ORIGINS"); origins != "" {
		for _, origin := range strings.Split(origins, ",") {
			if trimmed := strings.TrimSpace(origin); trimmed != "" {
				cfg.AllowedOrigins = append(cfg.AllowedOrigins, trimmed)
			}
		}
	}

	portValue := getEnv("SERVER_PORT", strconv.Itoa(defaultServerPort))
	port, err := strconv.Atoi(portValue)
	if err != nil {
		return nil, eris.Wrapf(err, "invalid SERVER_PORT value: %s", portValue)
	}
	cfg.ServerPort = port

	if pollValue := os.Getenv("ARCHIVE_POLL_INTERVAL"); pollValue != "" {
		poll, err := time.ParseDuration(pollValue)
		if err != nil {
			return nil, eris.Wrapf(err, "invalid ARCHIVE_POLL_INTERVAL value: %s", pollValue)
		}
		cfg.ArchivePollRate = poll
	}

	if burstValue := os.Getenv("RATE_LIMIT_BURST"); burstValue != "" {
		burst, err := strconv.Atoi(burstValue)
		if err != nil {
			return nil, eris.Wrapf(err, "invalid RATE_LIMIT_BURST value: %s", burstValue)
		}
		cfg.RateLimit.Burst = burst
	}

	if rpsValue := os.Getenv("RATE_LIMIT_PER_SECOND"); rpsValue != "" {
		rps, err := strconv.ParseFloat(rpsValue, 64)
		if err != nil {
			return nil, eris.Wrapf(err, "invalid RATE_LIMIT_PER_SECOND value: %s", rpsValue)
		}
		cfg.RateLimit.RequestsPerSecond = rps
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}
