package config

import (
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/seantiz/quill/internal/statement"
)

const (
	defaultListenAddr   = ":8080"
	defaultDBPath       = "quill.db"
	defaultWorkerLimit  = 4
	defaultPlaceholder  = "?"
	defaultTickInterval = 100 * time.Millisecond

	envListenAddr    = "QUILL_LISTEN_ADDR"
	envDBPath        = "QUILL_DB_PATH"
	envStatementFile = "QUILL_STATEMENT_FILE"
	envWorkerLimit   = "QUILL_WORKER_LIMIT"
	envPlaceholder   = "QUILL_PLACEHOLDER"
	envTickMS        = "QUILL_TICK_MS"
	envLogLevel      = "QUILL_LOG_LEVEL"
	envLogQueries    = "QUILL_LOG_QUERIES"
	envCaptureCalls  = "QUILL_CAPTURE_CALL_SITES"
)

// Config holds application configuration loaded from environment variables.
type Config struct {
	ListenAddr    string
	DBPath        string
	StatementFile string
	WorkerLimit   int
	// Placeholder is the positional marker emitted for bound parameters;
	// statement.StyleNamed ("named" in the environment) keeps :param
	// markers inline.
	Placeholder      statement.Style
	TickInterval     time.Duration
	LogLevel         slog.Level
	LogQueries       bool
	CaptureCallSites bool
}

// Load reads configuration from environment variables with sensible defaults.
func Load() Config {
	cfg := Config{
		ListenAddr:   defaultListenAddr,
		DBPath:       defaultDBPath,
		WorkerLimit:  defaultWorkerLimit,
		Placeholder:  defaultPlaceholder,
		TickInterval: defaultTickInterval,
		LogLevel:     slog.LevelInfo,
	}

	if v := os.Getenv(envListenAddr); v != "" {
		cfg.ListenAddr = v
	}
	if v := os.Getenv(envDBPath); v != "" {
		cfg.DBPath = v
	}
	if v := os.Getenv(envStatementFile); v != "" {
		cfg.StatementFile = v
	}
	if v := os.Getenv(envWorkerLimit); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.WorkerLimit = n
		}
	}
	if v := os.Getenv(envPlaceholder); v != "" {
		if strings.EqualFold(v, "named") {
			cfg.Placeholder = statement.StyleNamed
		} else {
			cfg.Placeholder = statement.Style(v)
		}
	}
	if v := os.Getenv(envTickMS); v != "" {
		if ms, err := strconv.Atoi(v); err == nil && ms > 0 {
			cfg.TickInterval = time.Duration(ms) * time.Millisecond
		}
	}
	if v := os.Getenv(envLogLevel); v != "" {
		cfg.LogLevel = parseLogLevel(v)
	}
	cfg.LogQueries = parseBool(os.Getenv(envLogQueries))
	cfg.CaptureCallSites = parseBool(os.Getenv(envCaptureCalls))

	return cfg
}

func parseLogLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func parseBool(s string) bool {
	b, err := strconv.ParseBool(s)
	return err == nil && b
}

// NewLogger creates a structured JSON logger writing to w at the configured level.
func NewLogger(w io.Writer, level slog.Level) *slog.Logger {
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: level,
	}))
}
