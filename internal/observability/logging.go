// Package observability sets up structured logging and optional tracing.
package observability

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/membit-bot/botctl/internal/paths"
)

const (
	redactedValue = "[REDACTED]"

	maxLogFileBytes = 10 << 20
	maxLogBackups   = 3
)

type contextKey struct{}

// Config holds the logger configuration resolved from flags.
type Config struct {
	Level          string
	Format         string
	LogFile        string
	StderrMode     string
	InteractiveTTY bool
	SessionID      string
	CommandPath    string
	ServerURL      string
	Version        string
	Commit         string
}

// WithLogger returns a new context carrying the given logger.
func WithLogger(ctx context.Context, logger *slog.Logger) context.Context {
	return context.WithValue(ctx, contextKey{}, logger)
}

// FromContext extracts the logger from ctx, falling back to slog.Default.
func FromContext(ctx context.Context) *slog.Logger {
	if logger, ok := ctx.Value(contextKey{}).(*slog.Logger); ok && logger != nil {
		return logger
	}

	return slog.Default()
}

// NewLogger creates a structured logger. With stderr disabled and no
// explicit file, logs go to the default state-dir log file so a full-screen
// dashboard session never draws log lines over itself.
func NewLogger(cfg *Config) (*slog.Logger, func() error, error) {
	level, err := parseLevel(cfg.Level)
	if err != nil {
		return nil, nil, err
	}

	stderrEnabled, err := shouldEnableStderr(cfg.StderrMode, cfg.InteractiveTTY)
	if err != nil {
		return nil, nil, err
	}

	logFile := strings.TrimSpace(cfg.LogFile)
	if !stderrEnabled && logFile == "" {
		logFile, err = paths.DefaultLogFile()
		if err != nil {
			return nil, nil, fmt.Errorf("resolve default log file: %w", err)
		}
	}

	writers := make([]io.Writer, 0, 2)
	closers := make([]io.Closer, 0, 1)

	if stderrEnabled {
		writers = append(writers, os.Stderr)
	}

	if logFile != "" {
		file, openErr := openLogFile(logFile)
		if openErr != nil {
			return nil, nil, openErr
		}

		writers = append(writers, file)
		closers = append(closers, file)
	}

	handlerOpts := &slog.HandlerOptions{
		Level:       level,
		ReplaceAttr: redactAttr,
	}

	out := io.MultiWriter(writers...)

	var handler slog.Handler

	switch strings.ToLower(strings.TrimSpace(cfg.Format)) {
	case "", "json":
		handler = slog.NewJSONHandler(out, handlerOpts)
	case "text":
		handler = slog.NewTextHandler(out, handlerOpts)
	default:
		for _, closer := range closers {
			_ = closer.Close()
		}

		return nil, nil, fmt.Errorf("invalid log format: %q (allowed: json, text)", cfg.Format)
	}

	logger := slog.New(handler).With(
		slog.String("session.id", cfg.SessionID),
		slog.String("command.path", cfg.CommandPath),
		slog.String("server.url", cfg.ServerURL),
		slog.String("cli.version", cfg.Version),
		slog.String("cli.commit", cfg.Commit),
	)

	cleanup := func() error {
		var firstErr error
		for _, closer := range closers {
			if closeErr := closer.Close(); closeErr != nil && firstErr == nil {
				firstErr = closeErr
			}
		}

		return firstErr
	}

	return logger, cleanup, nil
}

func openLogFile(path string) (*os.File, error) {
	cleanPath := filepath.Clean(strings.TrimSpace(path))

	if mkErr := os.MkdirAll(filepath.Dir(cleanPath), 0o700); mkErr != nil {
		return nil, fmt.Errorf("create log file directory: %w", mkErr)
	}

	if rotErr := rotateLogFile(cleanPath, maxLogFileBytes, maxLogBackups); rotErr != nil {
		return nil, rotErr
	}

	file, err := os.OpenFile(cleanPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}

	return file, nil
}

// rotateLogFile shifts path to path.1 (and older backups up by one) once it
// reaches maxBytes. At most backups rotated files are kept.
func rotateLogFile(path string, maxBytes int64, backups int) error {
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return nil
	}

	if err != nil {
		return fmt.Errorf("stat log file: %w", err)
	}

	if info.Size() < maxBytes {
		return nil
	}

	if err := os.Remove(fmt.Sprintf("%s.%d", path, backups)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove oldest log backup: %w", err)
	}

	for i := backups - 1; i >= 1; i-- {
		from := fmt.Sprintf("%s.%d", path, i)
		if err := os.Rename(from, fmt.Sprintf("%s.%d", path, i+1)); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("rotate log backup: %w", err)
		}
	}

	if err := os.Rename(path, path+".1"); err != nil {
		return fmt.Errorf("rotate log file: %w", err)
	}

	return nil
}

func shouldEnableStderr(mode string, interactiveTTY bool) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(mode)) {
	case "", "auto":
		return !interactiveTTY, nil
	case "on", "true", "1":
		return true, nil
	case "off", "false", "0":
		return false, nil
	default:
		return false, fmt.Errorf("invalid --log-stderr value %q (allowed: auto, on, off)", mode)
	}
}

func parseLevel(level string) (slog.Leveler, error) {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "", "info":
		return slog.LevelInfo, nil
	case "debug":
		return slog.LevelDebug, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return nil, fmt.Errorf("invalid log level: %q (allowed: error, warn, info, debug)", level)
	}
}

func redactAttr(_ []string, attr slog.Attr) slog.Attr {
	if isSensitiveKey(strings.ToLower(attr.Key)) {
		return slog.String(attr.Key, redactedValue)
	}

	return attr
}

// isSensitiveKey matches attribute keys that may carry API keys, passwords,
// TOTP material or the session cookie.
func isSensitiveKey(key string) bool {
	if key == "authorization" || key == "key" || key == "code" || strings.HasSuffix(key, "_key") {
		return true
	}

	for _, pattern := range []string{"token", "apikey", "secret", "credential", "password", "cookie", "totp", "backup_code"} {
		if strings.Contains(key, pattern) {
			return true
		}
	}

	return false
}
