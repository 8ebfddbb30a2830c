package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ndisuite/voicepipe/internal/capture"
	"github.com/ndisuite/voicepipe/internal/engine"
	"github.com/ndisuite/voicepipe/internal/faults"
	"github.com/ndisuite/voicepipe/internal/ipc"
	"github.com/ndisuite/voicepipe/internal/method"
	"github.com/ndisuite/voicepipe/internal/recovery"
	"github.com/ndisuite/voicepipe/internal/segment"
)

type testRecorder struct {
	chunks chan []byte
	once   sync.Once
}

func newTestRecorder() *testRecorder {
	return &testRecorder{chunks: make(chan []byte, 4)}
}

func (r *testRecorder) Chunks() <-chan []byte { return r.chunks }
func (r *testRecorder) MIMEType() string      { return "audio/pcm;bit=16" }
func (r *testRecorder) BytesCaptured() int64  { return 0 }

func (r *testRecorder) Stop() error {
	r.once.Do(func() { close(r.chunks) })
	return nil
}

type scriptedTranscriber struct {
	result engine.Result
}

func (s scriptedTranscriber) Transcribe(context.Context, segment.Segment, []method.Method, string) engine.Result {
	return s.result
}

type capturingCommitter struct {
	mu      sync.Mutex
	results []engine.Result
}

func (c *capturingCommitter) Commit(result engine.Result) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.results = append(c.results, result)
	return "committed", nil
}

func (c *capturingCommitter) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.results)
}

func testController(t *testing.T, outcome engine.Result, committer Committer, drainer Drainer) *Controller {
	t.Helper()

	machine := capture.NewMachine(nil, capture.OpenerFunc(func(context.Context) (capture.Recorder, error) {
		return newTestRecorder(), nil
	}))
	coordinator := recovery.NewCoordinator(nil, machine, scriptedTranscriber{result: outcome})
	return NewController(nil, machine, coordinator, committer, drainer, []method.Method{method.Streaming}, "en")
}

func waitForState(t *testing.T, c *Controller, want capture.State) {
	t.Helper()
	require.Eventually(t, func() bool {
		return c.Handle(context.Background(), ipc.Request{Command: "status"}).State == string(want)
	}, 2*time.Second, 5*time.Millisecond)
}

func TestConflictingActionRequestNamesQueuedAction(t *testing.T) {
	c := testController(t, engine.Result{Success: true, Text: "hello"}, nil, nil)

	// Start capture without a consuming Run loop so the first action stays
	// queued in the buffer.
	require.NoError(t, c.machine.Start(context.Background()))
	defer func() { _, _ = c.machine.Stop() }()

	resp := c.Handle(context.Background(), ipc.Request{Command: "stop"})
	require.True(t, resp.OK)
	require.Equal(t, "stop requested", resp.Message)

	// A repeat of the same action is acknowledged as pending.
	resp = c.Handle(context.Background(), ipc.Request{Command: "stop"})
	require.True(t, resp.OK)
	require.Equal(t, "stop already requested", resp.Message)

	// A different action must be rejected and name what is actually queued.
	resp = c.Handle(context.Background(), ipc.Request{Command: "cancel"})
	require.False(t, resp.OK)
	require.Equal(t, "cannot cancel: stop already requested", resp.Error)
}

func TestControllerStopCommitsOutcome(t *testing.T) {
	committer := &capturingCommitter{}
	c := testController(t, engine.Result{Success: true, Text: "hello", Method: method.Streaming}, committer, nil)

	done := make(chan Result, 1)
	go func() { done <- c.Run(context.Background()) }()

	waitForState(t, c, capture.StateRecording)
	resp := c.Handle(context.Background(), ipc.Request{Command: "stop"})
	require.True(t, resp.OK)

	result := <-done
	require.NoError(t, result.Err)
	require.False(t, result.Cancelled)
	require.True(t, result.Outcome.Success)
	require.Equal(t, capture.StateCompleted, result.State)
	require.Equal(t, 1, committer.count())
	require.False(t, result.FinishedAt.Before(result.StartedAt))
}

func TestControllerCancelDiscardsRecording(t *testing.T) {
	committer := &capturingCommitter{}
	c := testController(t, engine.Result{Success: true, Text: "unused"}, committer, nil)

	done := make(chan Result, 1)
	go func() { done <- c.Run(context.Background()) }()

	waitForState(t, c, capture.StateRecording)
	resp := c.Handle(context.Background(), ipc.Request{Command: "cancel"})
	require.True(t, resp.OK)

	result := <-done
	require.True(t, result.Cancelled)
	require.Zero(t, committer.count(), "cancelled sessions must not commit")
	require.Equal(t, capture.StateIdle, result.State)
}

func TestControllerPauseResumeOverIPC(t *testing.T) {
	c := testController(t, engine.Result{Success: true, Text: "x"}, nil, nil)

	done := make(chan Result, 1)
	go func() { done <- c.Run(context.Background()) }()

	waitForState(t, c, capture.StateRecording)

	resp := c.Handle(context.Background(), ipc.Request{Command: "pause"})
	require.True(t, resp.OK)
	require.Equal(t, string(capture.StatePaused), resp.State)

	// Pausing twice is an explicit rejection, not a no-op.
	resp = c.Handle(context.Background(), ipc.Request{Command: "pause"})
	require.False(t, resp.OK)
	require.Contains(t, resp.Error, "invalid transition")

	resp = c.Handle(context.Background(), ipc.Request{Command: "resume"})
	require.True(t, resp.OK)
	require.Equal(t, string(capture.StateRecording), resp.State)

	c.Handle(context.Background(), ipc.Request{Command: "stop"})
	<-done
}

func TestControllerStopFromPaused(t *testing.T) {
	c := testController(t, engine.Result{Success: true, Text: "x"}, nil, nil)

	done := make(chan Result, 1)
	go func() { done <- c.Run(context.Background()) }()

	waitForState(t, c, capture.StateRecording)
	require.True(t, c.Handle(context.Background(), ipc.Request{Command: "pause"}).OK)
	require.True(t, c.Handle(context.Background(), ipc.Request{Command: "stop"}).OK)

	result := <-done
	require.NoError(t, result.Err)
}

func TestControllerRunFailsWhenCaptureCannotStart(t *testing.T) {
	machine := capture.NewMachine(nil, capture.OpenerFunc(func(context.Context) (capture.Recorder, error) {
		return nil, faults.ErrPermissionDenied
	}))
	coordinator := recovery.NewCoordinator(nil, machine, scriptedTranscriber{})
	c := NewController(nil, machine, coordinator, nil, nil, nil, "en")

	result := c.Run(context.Background())
	require.ErrorIs(t, result.Err, faults.ErrPermissionDenied)
	require.Equal(t, capture.StateError, result.State)
	require.Contains(t, result.Plan.Actions, recovery.ActionRetry)
}

func TestControllerInterruptFinishesInsteadOfDiscarding(t *testing.T) {
	committer := &capturingCommitter{}
	c := testController(t, engine.Result{Success: true, Text: "kept"}, committer, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan Result, 1)
	go func() { done <- c.Run(ctx) }()

	waitForState(t, c, capture.StateRecording)
	cancel()

	result := <-done
	require.NoError(t, result.Err)
	require.True(t, result.Outcome.Success)
	require.Equal(t, 1, committer.count())
}

func TestHandleRejectsStopWhenIdle(t *testing.T) {
	c := testController(t, engine.Result{}, nil, nil)

	resp := c.Handle(context.Background(), ipc.Request{Command: "stop"})
	require.False(t, resp.OK)
	require.Contains(t, resp.Error, "cannot stop")

	resp = c.Handle(context.Background(), ipc.Request{Command: "cancel"})
	require.False(t, resp.OK)
}

func TestHandleDrainInvokesDrainer(t *testing.T) {
	var drained bool
	c := testController(t, engine.Result{}, nil, DrainFunc(func(context.Context) error {
		drained = true
		return nil
	}))

	resp := c.Handle(context.Background(), ipc.Request{Command: "drain"})
	require.True(t, resp.OK)
	require.True(t, drained)
}

func TestHandleDrainReportsFailure(t *testing.T) {
	c := testController(t, engine.Result{}, nil, DrainFunc(func(context.Context) error {
		return errors.New("queue unreachable")
	}))

	resp := c.Handle(context.Background(), ipc.Request{Command: "drain"})
	require.False(t, resp.OK)
	require.Contains(t, resp.Error, "queue unreachable")
}

func TestHandleUnknownCommand(t *testing.T) {
	c := testController(t, engine.Result{}, nil, nil)

	resp := c.Handle(context.Background(), ipc.Request{Command: "levitate"})
	require.False(t, resp.OK)
	require.Contains(t, resp.Error, "unknown command")
}
