package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds validated environment configuration for the voicesyncd server.
type Config struct {
	// Listen port (defaults to 8080)
	Port string

	// Optional variables with defaults
	GoEnv          string
	LogLevel       string
	AllowedOrigins string
	Host           string

	// Room lifecycle tuning
	RoomCleanupGrace time.Duration
	MaxParticipants  int

	// Client transport tuning. Validated and logged here only; pkg/signaling
	// uses its own built-in defaults and does not read these fields.
	KeepAliveInterval time.Duration
	ReconnectBackoff  time.Duration
	MaxReconnectTries int
	ConnectTimeout    time.Duration

	// Rate limits (ulule/limiter formats, e.g. "100-M")
	RateLimitWsConnect string
	RateLimitApiGlobal string
}

// ValidateEnv reads the environment variables, filling in defaults for unset
// ones, and returns a Config object. Returns an error if any set variable is
// invalid.
func ValidateEnv() (*Config, error) {
	cfg := &Config{}
	var errs []string

	// PORT (valid port number, defaults to 8080)
	cfg.Port = os.Getenv("PORT")
	if cfg.Port == "" {
		cfg.Port = "8080"
	} else {
		port, err := strconv.Atoi(cfg.Port)
		if err != nil || port < 1 || port > 65535 {
			errs = append(errs, fmt.Sprintf("PORT must be a valid port number between 1 and 65535 (got '%s')", cfg.Port))
		}
	}

	cfg.Host = getEnvOrDefault("HOST", "0.0.0.0")
	cfg.GoEnv = getEnvOrDefault("GO_ENV", "production")
	cfg.LogLevel = getEnvOrDefault("LOG_LEVEL", "info")
	cfg.AllowedOrigins = getEnvOrDefault("ALLOWED_ORIGINS", "*")

	cfg.RoomCleanupGrace = getEnvDurationOrDefault("ROOM_CLEANUP_GRACE", 5*time.Second, &errs)
	cfg.MaxParticipants = getEnvIntOrDefault("ROOM_MAX_PARTICIPANTS", 8, &errs)

	cfg.KeepAliveInterval = getEnvDurationOrDefault("VOICESYNC_KEEPALIVE_INTERVAL", 25*time.Second, &errs)
	cfg.ReconnectBackoff = getEnvDurationOrDefault("VOICESYNC_RECONNECT_BACKOFF", 3*time.Second, &errs)
	cfg.MaxReconnectTries = getEnvIntOrDefault("VOICESYNC_MAX_RECONNECT_TRIES", 5, &errs)
	cfg.ConnectTimeout = getEnvDurationOrDefault("VOICESYNC_CONNECT_TIMEOUT", 10*time.Second, &errs)

	cfg.RateLimitWsConnect = getEnvOrDefault("RATE_LIMIT_WS_CONNECT", "20-M")
	cfg.RateLimitApiGlobal = getEnvOrDefault("RATE_LIMIT_API_GLOBAL", "1000-M")

	if len(errs) > 0 {
		return nil, fmt.Errorf("environment validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}

	logValidatedConfig(cfg)
	return cfg, nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists && value != "" {
		return value
	}
	return defaultValue
}

func getEnvDurationOrDefault(key string, defaultValue time.Duration, errs *[]string) time.Duration {
	raw, exists := os.LookupEnv(key)
	if !exists || raw == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		*errs = append(*errs, fmt.Sprintf("%s must be a valid duration (got '%s')", key, raw))
		return defaultValue
	}
	return d
}

func getEnvIntOrDefault(key string, defaultValue int, errs *[]string) int {
	raw, exists := os.LookupEnv(key)
	if !exists || raw == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		*errs = append(*errs, fmt.Sprintf("%s must be an integer (got '%s')", key, raw))
		return defaultValue
	}
	return n
}

// logValidatedConfig logs the validated configuration. Nothing here is secret,
// but the shape mirrors the teacher's redact-then-log convention.
func logValidatedConfig(cfg *Config) {
	slog.Info("environment configuration validated",
		"port", cfg.Port,
		"host", cfg.Host,
		"go_env", cfg.GoEnv,
		"log_level", cfg.LogLevel,
		"room_cleanup_grace", cfg.RoomCleanupGrace,
		"room_max_participants", cfg.MaxParticipants,
		"keepalive_interval", cfg.KeepAliveInterval,
		"reconnect_backoff", cfg.ReconnectBackoff,
		"max_reconnect_tries", cfg.MaxReconnectTries,
	)
}
