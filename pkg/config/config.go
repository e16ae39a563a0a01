// Package config reads process settings from the environment.
package config

import (
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/Mindburn-Labs/tearframe/pkg/floors"
	"github.com/Mindburn-Labs/tearframe/pkg/store/ledger"
)

// Config holds process configuration.
type Config struct {
	LedgerPath   string
	FloorsPath   string
	ReceiptsDSN  string
	RedisAddr    string
	LogLevel     string
	LogFormat    string
	OTLPEndpoint string
	Environment  string

	// Backpressure applies only when RedisAddr is set or RPM is positive.
	BackpressureRPM   int
	BackpressureBurst int
}

// Load loads configuration from environment variables.
func Load() *Config {
	return &Config{
		LedgerPath:        ledger.PathFromEnv(),
		FloorsPath:        os.Getenv(floors.PathEnv),
		ReceiptsDSN:       getenv("TEARFRAME_RECEIPTS_DSN", "memory"),
		RedisAddr:         os.Getenv("TEARFRAME_REDIS_ADDR"),
		LogLevel:          strings.ToUpper(getenv("TEARFRAME_LOG_LEVEL", "INFO")),
		LogFormat:         strings.ToLower(getenv("TEARFRAME_LOG_FORMAT", "text")),
		OTLPEndpoint:      os.Getenv("TEARFRAME_OTLP_ENDPOINT"),
		Environment:       getenv("TEARFRAME_ENV", "development"),
		BackpressureRPM:   getint("TEARFRAME_BACKPRESSURE_RPM", 0),
		BackpressureBurst: getint("TEARFRAME_BACKPRESSURE_BURST", 1),
	}
}

// BackpressureEnabled reports whether admissions should also pass a token
// bucket.
func (c *Config) BackpressureEnabled() bool {
	return c.RedisAddr != "" || c.BackpressureRPM > 0
}

// Level maps LogLevel to a slog level; unknown values mean INFO.
func (c *Config) Level() slog.Level {
	switch c.LogLevel {
	case "DEBUG":
		return slog.LevelDebug
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Logger builds the process logger writing to w.
func (c *Config) Logger(w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{Level: c.Level()}
	if c.LogFormat == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getint(key string, fallback int) int {
	v, err := strconv.Atoi(os.Getenv(key))
	if err != nil {
		return fallback
	}
	return v
}
