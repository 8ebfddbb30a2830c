package config

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/ndisuite/voicepipe/internal/method"
)

// Validate enforces config invariants and returns non-fatal warnings.
func Validate(cfg Config) ([]Warning, error) {
	warnings := make([]Warning, 0)

	if strings.TrimSpace(cfg.Language) == "" {
		return nil, fmt.Errorf("language must not be empty")
	}
	if len(cfg.Language) != 2 {
		warnings = append(warnings, Warning{
			Message: fmt.Sprintf("language %q is not a two-letter ISO 639-1 code", cfg.Language),
		})
	}

	if preferred := strings.TrimSpace(cfg.PreferredMethod); preferred != "" {
		if !method.Known(method.Method(preferred)) {
			return nil, fmt.Errorf("preferred_method %q is not a known method", preferred)
		}
		if method.Method(preferred) == method.Mock && cfg.Production {
			return nil, fmt.Errorf("preferred_method mock is not allowed in production")
		}
	}

	if cfg.Capture.SampleRate <= 0 {
		return nil, fmt.Errorf("capture.sample_rate must be > 0")
	}
	if cfg.Capture.ChunkMS <= 0 {
		return nil, fmt.Errorf("capture.chunk_ms must be > 0")
	}
	if cfg.Capture.MaxDurationS < 0 {
		return nil, fmt.Errorf("capture.max_duration_s must be >= 0")
	}

	if raw := strings.TrimSpace(cfg.Streaming.URL); raw != "" {
		u, err := url.Parse(raw)
		if err != nil || (u.Scheme != "ws" && u.Scheme != "wss") {
			return nil, fmt.Errorf("streaming.url must be a ws:// or wss:// URL")
		}
	}
	if cfg.Streaming.ConnectTimeoutS <= 0 {
		return nil, fmt.Errorf("streaming.connect_timeout_s must be > 0")
	}

	if raw := strings.TrimSpace(cfg.Hosted.URL); raw != "" {
		u, err := url.Parse(raw)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
			return nil, fmt.Errorf("hosted.url must be an http:// or https:// URL")
		}
		if cfg.Hosted.APIKey == "" {
			warnings = append(warnings, Warning{
				Message: "hosted.api_key is empty; hosted transcription will likely be rejected",
			})
		}
	}
	if cfg.Hosted.TimeoutS <= 0 {
		return nil, fmt.Errorf("hosted.timeout_s must be > 0")
	}

	if cfg.Connectivity.IntervalS <= 0 {
		return nil, fmt.Errorf("connectivity.interval_s must be > 0")
	}
	if strings.TrimSpace(cfg.Queue.Dir) == "" {
		return nil, fmt.Errorf("queue.dir must not be empty")
	}
	if cfg.Metrics.Enabled && strings.TrimSpace(cfg.Metrics.Addr) == "" {
		return nil, fmt.Errorf("metrics.addr must not be empty when metrics.enabled")
	}

	return warnings, nil
}
