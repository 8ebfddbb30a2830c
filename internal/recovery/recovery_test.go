package recovery

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ndisuite/voicepipe/internal/capture"
	"github.com/ndisuite/voicepipe/internal/engine"
	"github.com/ndisuite/voicepipe/internal/faults"
	"github.com/ndisuite/voicepipe/internal/method"
	"github.com/ndisuite/voicepipe/internal/segment"
)

type channelRecorder struct {
	chunks chan []byte
}

func newChannelRecorder() *channelRecorder {
	return &channelRecorder{chunks: make(chan []byte, 4)}
}

func (r *channelRecorder) Chunks() <-chan []byte { return r.chunks }
func (r *channelRecorder) MIMEType() string      { return "audio/pcm;bit=16" }
func (r *channelRecorder) BytesCaptured() int64  { return 0 }

func (r *channelRecorder) Stop() error {
	close(r.chunks)
	return nil
}

type stubTranscriber struct {
	result engine.Result
	calls  int
}

func (s *stubTranscriber) Transcribe(context.Context, segment.Segment, []method.Method, string) engine.Result {
	s.calls++
	return s.result
}

func workingMachine() *capture.Machine {
	return capture.NewMachine(nil, capture.OpenerFunc(func(context.Context) (capture.Recorder, error) {
		return newChannelRecorder(), nil
	}))
}

func TestPlanForPermissionDenied(t *testing.T) {
	plan := PlanFor(faults.ErrPermissionDenied)
	require.Contains(t, plan.Message, "Microphone access was denied")
	require.Equal(t, []Action{ActionRetry, ActionManualEntry}, plan.Actions)
}

func TestPlanForDeviceUnavailable(t *testing.T) {
	plan := PlanFor(faults.ErrDeviceUnavailable)
	require.Contains(t, plan.Message, "microphone")
	require.Equal(t, []Action{ActionRetry, ActionManualEntry}, plan.Actions)
}

func TestPlanForExhaustedChainOffersManualEntry(t *testing.T) {
	plan := PlanFor(faults.ErrAllMethodsExhausted)
	require.Contains(t, plan.Message, "recording was kept")
	require.Equal(t, []Action{ActionManualEntry}, plan.Actions)
}

func TestPlanForUnknownFailureNeverDeadEnds(t *testing.T) {
	plan := PlanFor(errors.New("mystery"))
	require.NotEmpty(t, plan.Message)
	require.NotEmpty(t, plan.Actions)
}

func TestCoordinatorStartFailureReturnsPlan(t *testing.T) {
	machine := capture.NewMachine(nil, capture.OpenerFunc(func(context.Context) (capture.Recorder, error) {
		return nil, faults.ErrPermissionDenied
	}))
	c := NewCoordinator(nil, machine, &stubTranscriber{})

	plan, err := c.Start(context.Background())
	require.ErrorIs(t, err, faults.ErrPermissionDenied)
	require.Contains(t, plan.Actions, ActionRetry)
}

func TestCoordinatorFinishSuccess(t *testing.T) {
	machine := workingMachine()
	stub := &stubTranscriber{result: engine.Result{Success: true, Text: "done", Method: method.Streaming}}
	c := NewCoordinator(nil, machine, stub)

	plan, err := c.Start(context.Background())
	require.NoError(t, err)
	require.Empty(t, plan.Message)

	result, plan, err := c.Finish(context.Background(), []method.Method{method.Streaming}, "en")
	require.NoError(t, err)
	require.True(t, result.Success)
	require.Empty(t, plan.Actions)
	require.Equal(t, 1, stub.calls)
}

func TestCoordinatorFinishQueuedNeedsNoPlan(t *testing.T) {
	machine := workingMachine()
	stub := &stubTranscriber{result: engine.Result{Queued: true}}
	c := NewCoordinator(nil, machine, stub)

	_, err := c.Start(context.Background())
	require.NoError(t, err)

	result, plan, err := c.Finish(context.Background(), nil, "en")
	require.NoError(t, err)
	require.True(t, result.Queued)
	require.Empty(t, plan.Actions)
}

func TestCoordinatorFinishExhaustedChainCarriesPlan(t *testing.T) {
	machine := workingMachine()
	stub := &stubTranscriber{result: engine.Result{ManualEntry: true, Err: "all transcription methods exhausted"}}
	c := NewCoordinator(nil, machine, stub)

	_, err := c.Start(context.Background())
	require.NoError(t, err)

	result, plan, err := c.Finish(context.Background(), nil, "en")
	require.NoError(t, err)
	require.True(t, result.ManualEntry)
	require.Equal(t, []Action{ActionManualEntry}, plan.Actions)
}

func TestCoordinatorFinishWithoutRecordingFails(t *testing.T) {
	c := NewCoordinator(nil, workingMachine(), &stubTranscriber{})

	_, _, err := c.Finish(context.Background(), nil, "en")
	require.Error(t, err)
}

func TestCoordinatorStartResetsAttempts(t *testing.T) {
	c := NewCoordinator(nil, workingMachine(), &stubTranscriber{result: engine.Result{Success: true, Text: "x"}})

	c.noteAttempt()
	c.noteAttempt()
	require.Equal(t, 2, c.Attempts())

	_, err := c.Start(context.Background())
	require.NoError(t, err)
	require.Zero(t, c.Attempts())

	_, _, err = c.Finish(context.Background(), nil, "en")
	require.NoError(t, err)
}
