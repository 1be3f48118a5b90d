// Package config reads process configuration from the environment, after
// loading an optional .env file.
package config

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/mattn/go-isatty"

	"github.com/talgya/tap-league/internal/persistence"
)

// Config holds settings shared by the server and the bot.
type Config struct {
	Port      int
	DBDriver  string
	DBDSN     string
	JWTSecret string
	RateLimit float64 // requests per second per IP; 0 disables
	Origins   []string

	APIURL           string
	SyncInterval     time.Duration
	EngagementWindow time.Duration
	BotUserID        int64
	BotTapRate       float64 // peak taps per second

	LogLevel slog.Level
}

// Load reads .env files (missing files are fine) and then the environment.
// Variables already set in the environment win over .env entries.
func Load(envFiles ...string) (Config, error) {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, f := range envFiles {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("load %s: %w", f, err)
		}
	}

	cfg := Config{
		Port:             envIntOrDefault("TAPLEAGUE_PORT", 8000),
		DBDriver:         envOrDefault("TAPLEAGUE_DB_DRIVER", persistence.DriverSQLite),
		DBDSN:            envOrDefault("TAPLEAGUE_DB_DSN", "data/tapleague.db"),
		JWTSecret:        os.Getenv("TAPLEAGUE_JWT_SECRET"),
		RateLimit:        envFloatOrDefault("TAPLEAGUE_RATE_LIMIT", 20),
		Origins:          envListOrDefault("TAPLEAGUE_CORS_ORIGINS", "http://localhost:5173"),
		APIURL:           envOrDefault("TAPLEAGUE_API_URL", "http://localhost:8000/api"),
		SyncInterval:     envDurationOrDefault("TAPLEAGUE_SYNC_INTERVAL", 2*time.Second),
		EngagementWindow: envDurationOrDefault("TAPLEAGUE_ENGAGEMENT_WINDOW", 3*time.Second),
		BotUserID:        int64(envIntOrDefault("TAPBOT_USER_ID", 1000001)),
		BotTapRate:       envFloatOrDefault("TAPBOT_TAP_RATE", 8),
	}
	if err := cfg.LogLevel.UnmarshalText([]byte(envOrDefault("LOG_LEVEL", "info"))); err != nil {
		return Config{}, fmt.Errorf("LOG_LEVEL: %w", err)
	}
	switch cfg.DBDriver {
	case persistence.DriverSQLite, persistence.DriverPostgres:
	default:
		return Config{}, fmt.Errorf("TAPLEAGUE_DB_DRIVER: unsupported driver %q", cfg.DBDriver)
	}
	return cfg, nil
}

// NewLogger writes text to a terminal and JSON everywhere else.
func NewLogger(w io.Writer, level slog.Level) *slog.Logger {
	opts := &slog.HandlerOptions{Level: level}
	if f, ok := w.(*os.File); ok && (isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())) {
		return slog.New(slog.NewTextHandler(w, opts))
	}
	return slog.New(slog.NewJSONHandler(w, opts))
}

func envOrDefault(key, defaultVal string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return defaultVal
}

func envIntOrDefault(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
		slog.Warn("ignoring malformed integer", "key", key, "value", v)
	}
	return defaultVal
}

func envFloatOrDefault(key string, defaultVal float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
		slog.Warn("ignoring malformed number", "key", key, "value", v)
	}
	return defaultVal
}

// envListOrDefault splits a comma-separated value, dropping blanks.
func envListOrDefault(key, defaultVal string) []string {
	var out []string
	for _, v := range strings.Split(envOrDefault(key, defaultVal), ",") {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

// envDurationOrDefault accepts Go durations ("2s") or bare milliseconds.
func envDurationOrDefault(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	if ms, err := strconv.Atoi(v); err == nil {
		return time.Duration(ms) * time.Millisecond
	}
	slog.Warn("ignoring malformed duration", "key", key, "value", v)
	return defaultVal
}
