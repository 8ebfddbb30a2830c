//go:build !production

package engine

import (
	"context"
	"time"

	"github.com/ndisuite/voicepipe/internal/method"
	"github.com/ndisuite/voicepipe/internal/segment"
)

// MockAdapter returns canned text for non-production testing. The production
// build tag compiles it out entirely, so a misconfigured API key can never
// fall through to canned output in production.
type MockAdapter struct {
	Text string
}

func (MockAdapter) Name() method.Method { return method.Mock }

func (MockAdapter) Timeout(segment.Segment) time.Duration { return 0 }

func (a MockAdapter) Transcribe(context.Context, segment.Segment, string) (string, float64, error) {
	text := a.Text
	if text == "" {
		text = "This is a mock transcription for development builds."
	}
	return text, method.Confidence(method.Mock), nil
}
