package engine

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ndisuite/voicepipe/internal/faults"
	"github.com/ndisuite/voicepipe/internal/segment"
)

type stubRecognizer struct {
	finals   []string
	err      error
	language string
}

func (r *stubRecognizer) Recognize(_ context.Context, _ segment.Segment, language string) ([]string, error) {
	r.language = language
	return r.finals, r.err
}

func onDeviceSegment() segment.Segment {
	return segment.New([]byte("pcm"), "audio/pcm;bit=16", 4*time.Second, "recording")
}

func TestOnDeviceAssemblesFinalResults(t *testing.T) {
	rec := &stubRecognizer{finals: []string{"met with the client.", "reviewed the plan"}}
	adapter := OnDeviceAdapter{Recognizer: rec}

	text, confidence, err := adapter.Transcribe(context.Background(), onDeviceSegment(), "en")
	require.NoError(t, err)
	require.Equal(t, "Met with the client. Reviewed the plan", text)
	require.Equal(t, 0.7, confidence)
	require.Equal(t, "en", rec.language)
}

func TestOnDeviceNoSpeechDetected(t *testing.T) {
	adapter := OnDeviceAdapter{Recognizer: &stubRecognizer{}}

	_, _, err := adapter.Transcribe(context.Background(), onDeviceSegment(), "en")
	require.Error(t, err)
	require.Contains(t, err.Error(), "no speech detected by end of playback")
}

func TestOnDeviceRecognizerFailurePropagates(t *testing.T) {
	adapter := OnDeviceAdapter{Recognizer: &stubRecognizer{err: errors.New("model not loaded")}}

	_, _, err := adapter.Transcribe(context.Background(), onDeviceSegment(), "en")
	require.Error(t, err)
	require.Contains(t, err.Error(), "model not loaded")
}

func TestOnDeviceWithoutRecognizerIsUnsupported(t *testing.T) {
	adapter := OnDeviceAdapter{}

	_, _, err := adapter.Transcribe(context.Background(), onDeviceSegment(), "en")
	require.ErrorIs(t, err, faults.ErrCapabilityUnsupported)
}

func TestOnDeviceTimeoutScalesWithPlayback(t *testing.T) {
	adapter := OnDeviceAdapter{}
	require.Equal(t, 9*time.Second, adapter.Timeout(onDeviceSegment()))

	adapter.Grace = time.Second
	require.Equal(t, 5*time.Second, adapter.Timeout(onDeviceSegment()))
}

func TestCommandRecognizerWithoutCommandIsUnsupported(t *testing.T) {
	_, err := CommandRecognizer{}.Recognize(context.Background(), onDeviceSegment(), "en")
	require.ErrorIs(t, err, faults.ErrCapabilityUnsupported)
}

func TestCommandRecognizerReadsFinalsFromStdout(t *testing.T) {
	// cat echoes stdin, so the audio bytes come back as one final line.
	rec := CommandRecognizer{Command: "cat"}
	seg := segment.New([]byte("hello from stdin"), "audio/pcm;bit=16", time.Second, "recording")

	finals, err := rec.Recognize(context.Background(), seg, "")
	require.NoError(t, err)
	require.Equal(t, []string{"hello from stdin"}, finals)
}

func TestCommandRecognizerMissingBinary(t *testing.T) {
	rec := CommandRecognizer{Command: "definitely-not-a-recognizer-binary"}

	_, err := rec.Recognize(context.Background(), onDeviceSegment(), "en")
	require.Error(t, err)
}
