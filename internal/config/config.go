package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"mtreta/internal/reconciler"
	"mtreta/pkg/mtrapi"
)

type Config struct {
	LogLevel        slog.Level
	HTTPAddr        string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration

	MTRAPIBaseURL   string
	UpstreamTimeout time.Duration
	PollInterval    time.Duration
	ClockInterval   time.Duration
	RefreshPolicy   reconciler.RefreshPolicy
	ValidFilter     reconciler.ValidFilter
	Location        *time.Location
	DirectoryFile   string

	RateLimitPerWindow int
	RateLimitWindow    time.Duration
	RateLimitWhitelist []string
}

func Load() (*Config, error) {
	policy, err := reconciler.ParseRefreshPolicy(getEnv("REFRESH_POLICY", string(reconciler.PolicyKeepStale)))
	if err != nil {
		return nil, fmt.Errorf("REFRESH_POLICY: %w", err)
	}

	filter, err := reconciler.ParseValidFilter(getEnv("VALID_FILTER", string(reconciler.IncludeInvalid)))
	if err != nil {
		return nil, fmt.Errorf("VALID_FILTER: %w", err)
	}

	loc, err := LoadLocation(getEnv("TIMEZONE", "Asia/Hong_Kong"))
	if err != nil {
		return nil, fmt.Errorf("TIMEZONE: %w", err)
	}

	pollInterval := getDurationEnv("POLL_INTERVAL", 10*time.Second)
	if pollInterval <= 0 {
		return nil, fmt.Errorf("POLL_INTERVAL must be positive")
	}

	return &Config{
		LogLevel:        getLogLevelEnv("LOG_LEVEL", slog.LevelInfo),
		HTTPAddr:        getEnv("HTTP_ADDR", ":8080"),
		ReadTimeout:     getDurationEnv("READ_TIMEOUT", 10*time.Second),
		WriteTimeout:    getDurationEnv("WRITE_TIMEOUT", 10*time.Second),
		ShutdownTimeout: getDurationEnv("SHUTDOWN_TIMEOUT", 30*time.Second),

		MTRAPIBaseURL:   getEnv("MTR_API_URL", mtrapi.DefaultBaseURL),
		UpstreamTimeout: getDurationEnv("UPSTREAM_TIMEOUT", 10*time.Second),
		PollInterval:    pollInterval,
		ClockInterval:   getDurationEnv("CLOCK_INTERVAL", time.Second),
		RefreshPolicy:   policy,
		ValidFilter:     filter,
		Location:        loc,
		DirectoryFile:   getEnv("DIRECTORY_FILE", ""),

		RateLimitPerWindow: getIntEnv("RATE_LIMIT_PER_WINDOW", 60),
		RateLimitWindow:    getDurationEnv("RATE_LIMIT_WINDOW", time.Minute),
		RateLimitWhitelist: getCSVEnv("RATE_LIMIT_WHITELIST"),
	}, nil
}

// ReconcilerOptions collects the settings the reconciler needs.
func (c *Config) ReconcilerOptions() reconciler.Options {
	return reconciler.Options{
		Policy:      c.RefreshPolicy,
		ValidFilter: c.ValidFilter,
		Location:    c.Location,
	}
}

// LoadLocation resolves an IANA zone name. Hong Kong falls back to a fixed
// +08:00 zone on hosts without zoneinfo.
func LoadLocation(name string) (*time.Location, error) {
	loc, err := time.LoadLocation(name)
	if err == nil {
		return loc, nil
	}
	if name == "Asia/Hong_Kong" {
		return time.FixedZone("HKT", 8*60*60), nil
	}
	return nil, err
}

func getEnv(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getDurationEnv(key string, defaultVal time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return defaultVal
}

func getIntEnv(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return defaultVal
}

func getLogLevelEnv(key string, defaultVal slog.Level) slog.Level {
	return ParseLogLevel(os.Getenv(key), defaultVal)
}

func ParseLogLevel(v string, defaultVal slog.Level) slog.Level {
	switch strings.ToLower(v) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return defaultVal
	}
}

func getCSVEnv(key string) []string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return nil
	}

	parts := strings.Split(v, ",")
	result := make([]string, 0, len(parts))
	for _, p := range parts {
		t := strings.TrimSpace(p)
		if t != "" {
			result = append(result, t)
		}
	}
	return result
}
