// Package output persists finished transcription results for downstream
// report assembly.
package output

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ndisuite/voicepipe/internal/engine"
	"github.com/ndisuite/voicepipe/internal/transcript"
)

// Generator is the consumed report-generation boundary. The capture and
// transcription core never calls it; it only produces the text that becomes
// part of the context argument.
type Generator interface {
	Generate(ctx context.Context, prompt string, contextDocs []string) (string, error)
}

// Record is the durable form of one transcription outcome.
type Record struct {
	RecordingID string    `json:"recordingId"`
	Text        string    `json:"text"`
	Confidence  float64   `json:"confidence"`
	Method      string    `json:"method"`
	Success     bool      `json:"success"`
	Error       string    `json:"error,omitempty"`
	SavedAt     time.Time `json:"savedAt"`
}

// Sink writes transcription results into a per-recording JSON layout.
type Sink struct {
	logger *slog.Logger
	dir    string
	format transcript.Options
}

// Option adjusts sink behavior.
type Option func(*Sink)

// WithFormat applies transcript formatting to successful results before they
// are persisted.
func WithFormat(opts transcript.Options) Option {
	return func(s *Sink) { s.format = opts }
}

// NewSink constructs a sink rooted at dir; empty dir resolves under the
// state directory.
func NewSink(logger *slog.Logger, dir string, opts ...Option) (*Sink, error) {
	if strings.TrimSpace(dir) == "" {
		resolved, err := defaultResultsDir()
		if err != nil {
			return nil, err
		}
		dir = resolved
	}
	s := &Sink{logger: logger, dir: dir}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Commit persists one result. Queued results are skipped; they surface after
// a later drain instead.
func (s *Sink) Commit(result engine.Result) (string, error) {
	if result.Queued {
		return "", nil
	}
	if err := os.MkdirAll(s.dir, 0o700); err != nil {
		return "", fmt.Errorf("create results dir %q: %w", s.dir, err)
	}

	text := result.Text
	if result.Success && text != "" {
		text = transcript.Assemble([]string{text}, s.format)
	}

	record := Record{
		RecordingID: result.RecordingID,
		Text:        text,
		Confidence:  result.Confidence,
		Method:      string(result.Method),
		Success:     result.Success,
		Error:       result.Err,
		SavedAt:     time.Now(),
	}

	payload, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode result: %w", err)
	}

	path := filepath.Join(s.dir, result.RecordingID+".json")
	if err := os.WriteFile(path, payload, 0o600); err != nil {
		return "", fmt.Errorf("write result: %w", err)
	}

	if s.logger != nil {
		s.logger.Info("transcription result saved", "recording_id", result.RecordingID, "path", path)
	}
	return path, nil
}

func defaultResultsDir() (string, error) {
	if xdg := strings.TrimSpace(os.Getenv("XDG_STATE_HOME")); xdg != "" {
		return filepath.Join(xdg, "voicepipe", "results"), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve results dir: %w", err)
	}
	return filepath.Join(home, ".local", "state", "voicepipe", "results"), nil
}
