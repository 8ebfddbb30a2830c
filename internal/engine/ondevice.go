package engine

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/ndisuite/voicepipe/internal/faults"
	"github.com/ndisuite/voicepipe/internal/method"
	"github.com/ndisuite/voicepipe/internal/segment"
	"github.com/ndisuite/voicepipe/internal/transcript"
)

// Recognizer is the platform speech-recognition primitive. It replays a
// segment and returns only final (non-interim) results.
type Recognizer interface {
	Recognize(ctx context.Context, seg segment.Segment, language string) ([]string, error)
}

// OnDeviceAdapter transcribes by replaying the segment through a local
// recognizer. The attempt is bounded by the playback duration plus a grace
// window, since recognition cannot finish before playback does.
type OnDeviceAdapter struct {
	Recognizer Recognizer
	Grace      time.Duration
}

func (a OnDeviceAdapter) Name() method.Method { return method.OnDevice }

func (a OnDeviceAdapter) Timeout(seg segment.Segment) time.Duration {
	grace := a.Grace
	if grace <= 0 {
		grace = 5 * time.Second
	}
	return seg.Duration() + grace
}

func (a OnDeviceAdapter) Transcribe(ctx context.Context, seg segment.Segment, language string) (string, float64, error) {
	if a.Recognizer == nil {
		return "", 0, fmt.Errorf("%w: no local recognizer wired", faults.ErrCapabilityUnsupported)
	}

	finals, err := a.Recognizer.Recognize(ctx, seg, language)
	if err != nil {
		return "", 0, fmt.Errorf("on-device recognition: %w", err)
	}

	text := transcript.Assemble(finals, transcript.Options{CapitalizeSentences: true})
	if text == "" {
		return "", 0, fmt.Errorf("no speech detected by end of playback")
	}
	return text, method.Confidence(method.OnDevice), nil
}

// CommandRecognizer shells out to a local recognizer binary, feeding raw
// audio on stdin and reading one final result per stdout line.
type CommandRecognizer struct {
	Command string
	Args    []string
}

func (r CommandRecognizer) Recognize(ctx context.Context, seg segment.Segment, language string) ([]string, error) {
	if strings.TrimSpace(r.Command) == "" {
		return nil, fmt.Errorf("%w: recognizer command not configured", faults.ErrCapabilityUnsupported)
	}

	args := append([]string(nil), r.Args...)
	if language != "" {
		args = append(args, "--language", language)
	}

	cmd := exec.CommandContext(ctx, r.Command, args...)
	cmd.Stdin = bytes.NewReader(seg.Blob)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("recognizer stdout: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start recognizer %q: %w", r.Command, err)
	}

	var finals []string
	scanner := bufio.NewScanner(stdout)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line != "" {
			finals = append(finals, line)
		}
	}

	if err := cmd.Wait(); err != nil {
		return nil, fmt.Errorf("recognizer %q: %w", r.Command, err)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read recognizer output: %w", err)
	}
	return finals, nil
}
