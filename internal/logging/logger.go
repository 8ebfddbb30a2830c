// Package logging writes the runtime JSONL log under the user state dir.
package logging

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// levelEnv selects verbosity without a config file round trip; the log
// runtime is built before configuration is loaded.
const levelEnv = "VOICEPIPE_LOG_LEVEL"

// Runtime bundles the configured logger and its open file handle lifecycle.
type Runtime struct {
	Logger *slog.Logger
	Path   string
	closer io.Closer
}

// Close flushes and closes the logger output sink.
func (r Runtime) Close() error {
	if r.closer == nil {
		return nil
	}
	return r.closer.Close()
}

// New opens the JSONL log for appending and builds a logger on it.
func New() (Runtime, error) {
	path, err := resolveLogPath()
	if err != nil {
		return Runtime{}, err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return Runtime{}, err
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
	if err != nil {
		return Runtime{}, err
	}

	handler := slog.NewJSONHandler(f, &slog.HandlerOptions{
		Level: levelFromEnv(),
	})
	return Runtime{Logger: slog.New(handler), Path: path, closer: f}, nil
}

// levelFromEnv maps VOICEPIPE_LOG_LEVEL onto a slog level. Unset or
// unrecognized values mean info.
func levelFromEnv() slog.Level {
	switch strings.ToLower(strings.TrimSpace(os.Getenv(levelEnv))) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// resolveLogPath prefers XDG_STATE_HOME and falls back to ~/.local/state.
func resolveLogPath() (string, error) {
	base := strings.TrimSpace(os.Getenv("XDG_STATE_HOME"))
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		base = filepath.Join(home, ".local", "state")
	}
	return filepath.Join(base, "voicepipe", "log.jsonl"), nil
}
