// Package session coordinates one recording lifecycle: capture, control
// commands, transcription, and result commit.
package session

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/ndisuite/voicepipe/internal/capture"
	"github.com/ndisuite/voicepipe/internal/engine"
	"github.com/ndisuite/voicepipe/internal/ipc"
	"github.com/ndisuite/voicepipe/internal/method"
	"github.com/ndisuite/voicepipe/internal/recovery"
)

type action int

const (
	actionStop action = iota + 1
	actionCancel
)

func (a action) String() string {
	switch a {
	case actionStop:
		return "stop"
	case actionCancel:
		return "cancel"
	default:
		return "unknown"
	}
}

// Committer persists a finished transcription result.
type Committer interface {
	Commit(result engine.Result) (string, error)
}

// CommitFunc adapts a function to the Committer interface.
type CommitFunc func(result engine.Result) (string, error)

func (f CommitFunc) Commit(result engine.Result) (string, error) {
	return f(result)
}

// Drainer replays the offline queue on request.
type Drainer interface {
	DrainNow(ctx context.Context) error
}

// DrainFunc adapts a function to the Drainer interface.
type DrainFunc func(ctx context.Context) error

func (f DrainFunc) DrainNow(ctx context.Context) error {
	return f(ctx)
}

// Result is the complete lifecycle output returned by one Run invocation.
type Result struct {
	State      capture.State
	Outcome    engine.Result
	Plan       recovery.Plan
	Cancelled  bool
	Err        error
	Attempts   int
	StartedAt  time.Time
	FinishedAt time.Time
}

// Controller orchestrates session state transitions and side effects.
type Controller struct {
	logger      *slog.Logger
	machine     *capture.Machine
	coordinator *recovery.Coordinator
	commit      Committer
	drainer     Drainer

	order    []method.Method
	language string

	actions   chan action
	pendingMu sync.Mutex
	pending   action
}

// NewController constructs a session controller with safe default fallbacks.
func NewController(
	logger *slog.Logger,
	machine *capture.Machine,
	coordinator *recovery.Coordinator,
	committer Committer,
	drainer Drainer,
	order []method.Method,
	language string,
) *Controller {
	if committer == nil {
		committer = CommitFunc(func(engine.Result) (string, error) { return "", nil })
	}
	if drainer == nil {
		drainer = DrainFunc(func(context.Context) error { return nil })
	}
	return &Controller{
		logger:      logger,
		machine:     machine,
		coordinator: coordinator,
		commit:      committer,
		drainer:     drainer,
		order:       order,
		language:    language,
		actions:     make(chan action, 1),
	}
}

// Run executes one recording lifecycle from start to stop/cancel/failure.
func (c *Controller) Run(ctx context.Context) Result {
	result := Result{StartedAt: time.Now()}

	plan, err := c.coordinator.Start(ctx)
	if err != nil {
		result.State = c.machine.State()
		result.Plan = plan
		result.Err = err
		result.FinishedAt = time.Now()
		return result
	}

	select {
	case <-ctx.Done():
		// Interrupt stops and transcribes rather than discarding audio.
		return c.finish(context.Background(), result)
	case a := <-c.actions:
		switch a {
		case actionCancel:
			if _, err := c.machine.Stop(); err == nil {
				_ = c.machine.Reset()
			}
			result.State = c.machine.State()
			result.Cancelled = true
			result.FinishedAt = time.Now()
			return result
		case actionStop:
			return c.finish(ctx, result)
		default:
			result.State = c.machine.State()
			result.Err = fmt.Errorf("unknown action %d", a)
			result.FinishedAt = time.Now()
			return result
		}
	}
}

// finish stops capture, runs the fallback chain, and commits the outcome.
func (c *Controller) finish(ctx context.Context, result Result) Result {
	outcome, plan, err := c.coordinator.Finish(ctx, c.order, c.language)
	result.State = c.machine.State()
	result.Outcome = outcome
	result.Plan = plan
	result.Err = err
	result.Attempts = c.coordinator.Attempts()
	result.FinishedAt = time.Now()

	if err == nil {
		if _, commitErr := c.commit.Commit(outcome); commitErr != nil {
			if c.logger != nil {
				c.logger.Error("result commit failed", "error", commitErr.Error())
			}
			result.Err = commitErr
		}
	}
	return result
}

// Handle serves IPC commands for the active session.
func (c *Controller) Handle(ctx context.Context, req ipc.Request) ipc.Response {
	switch req.Command {
	case "status":
		status := c.machine.Status()
		return ipc.Response{
			OK:        true,
			State:     string(status.State),
			ElapsedMS: status.Elapsed.Milliseconds(),
			Message:   "status",
		}
	case "pause":
		if err := c.machine.Pause(); err != nil {
			return c.reject(err)
		}
		return c.ack("paused")
	case "resume":
		if err := c.machine.Resume(); err != nil {
			return c.reject(err)
		}
		return c.ack("resumed")
	case "stop":
		return c.requestAction(actionStop, "stop")
	case "cancel":
		return c.requestAction(actionCancel, "cancel")
	case "drain":
		if err := c.drainer.DrainNow(ctx); err != nil {
			return c.reject(err)
		}
		return c.ack("drained")
	default:
		return ipc.Response{
			OK:    false,
			State: string(c.machine.State()),
			Error: fmt.Sprintf("unknown command: %s", req.Command),
		}
	}
}

// requestAction enqueues a stop/cancel action when state permits it.
func (c *Controller) requestAction(a action, source string) ipc.Response {
	state := c.machine.State()
	if state != capture.StateRecording && state != capture.StatePaused {
		return ipc.Response{
			OK:    false,
			State: string(state),
			Error: fmt.Sprintf("cannot %s from state %s", source, state),
		}
	}

	c.pendingMu.Lock()
	defer c.pendingMu.Unlock()

	select {
	case c.actions <- a:
		c.pending = a
		return c.ack(source + " requested")
	default:
		if c.pending == a {
			return c.ack(source + " already requested")
		}
		return ipc.Response{
			OK:    false,
			State: string(state),
			Error: fmt.Sprintf("cannot %s: %s already requested", source, c.pending),
		}
	}
}

func (c *Controller) ack(msg string) ipc.Response {
	status := c.machine.Status()
	return ipc.Response{
		OK:        true,
		State:     string(status.State),
		ElapsedMS: status.Elapsed.Milliseconds(),
		Message:   msg,
	}
}

func (c *Controller) reject(err error) ipc.Response {
	return ipc.Response{
		OK:    false,
		State: string(c.machine.State()),
		Error: err.Error(),
	}
}
