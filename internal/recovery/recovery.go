// Package recovery wraps capture and transcription with bounded retries and
// maps failures onto the user-facing recovery actions that keep a recording
// completable.
package recovery

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"

	"github.com/ndisuite/voicepipe/internal/capture"
	"github.com/ndisuite/voicepipe/internal/engine"
	"github.com/ndisuite/voicepipe/internal/faults"
	"github.com/ndisuite/voicepipe/internal/method"
	"github.com/ndisuite/voicepipe/internal/segment"
)

// Action is one recovery affordance offered to the user.
type Action string

const (
	// ActionRetry re-invokes Start on the capture machine.
	ActionRetry Action = "retry"
	// ActionManualEntry bypasses audio entirely with free-text entry.
	ActionManualEntry Action = "manual-entry"
)

// Plan is the user-facing recovery guidance for one failure.
type Plan struct {
	Message string
	Actions []Action
}

// PlanFor maps a failure onto recovery guidance. Every failure path ends in
// a retry prompt, an alternate path, or manual entry; never a dead end.
func PlanFor(err error) Plan {
	switch {
	case errors.Is(err, faults.ErrPermissionDenied):
		return Plan{
			Message: "Microphone access was denied. Allow access and retry, or type the note instead.",
			Actions: []Action{ActionRetry, ActionManualEntry},
		}
	case errors.Is(err, faults.ErrDeviceUnavailable):
		return Plan{
			Message: "No usable microphone was found. Check the device and retry, or type the note instead.",
			Actions: []Action{ActionRetry, ActionManualEntry},
		}
	case errors.Is(err, faults.ErrAllMethodsExhausted):
		return Plan{
			Message: "Transcription is unavailable right now. The recording was kept; add the text manually.",
			Actions: []Action{ActionManualEntry},
		}
	default:
		return Plan{
			Message: "Something went wrong. Retry, or type the note instead.",
			Actions: []Action{ActionRetry, ActionManualEntry},
		}
	}
}

// Transcriber is the engine-facing subset the coordinator drives.
type Transcriber interface {
	Transcribe(ctx context.Context, seg segment.Segment, order []method.Method, language string) engine.Result
}

// Coordinator drives one capture machine through record/transcribe cycles.
// The streaming retry counter is exposed for UI progress feedback and reset
// on every new start.
type Coordinator struct {
	logger  *slog.Logger
	machine *capture.Machine
	engine  Transcriber

	attempts atomic.Int32
}

// NewCoordinator binds a capture machine to a fallback engine.
func NewCoordinator(logger *slog.Logger, machine *capture.Machine, transcriber Transcriber) *Coordinator {
	return &Coordinator{logger: logger, machine: machine, engine: transcriber}
}

// Bind attaches the engine after construction. The retrying streaming
// adapter needs the coordinator before the engine exists, so wiring happens
// in two steps.
func (c *Coordinator) Bind(transcriber Transcriber) {
	c.engine = transcriber
}

// Attempts reports streaming reconnection attempts made since the last start.
func (c *Coordinator) Attempts() int {
	return int(c.attempts.Load())
}

// noteAttempt is called by the retrying streaming adapter on each retry.
func (c *Coordinator) noteAttempt() {
	c.attempts.Add(1)
}

// Start begins recording. Permission and device failures surface immediately
// with a recovery plan; no fallback can substitute for a missing microphone.
func (c *Coordinator) Start(ctx context.Context) (Plan, error) {
	c.attempts.Store(0)
	if err := c.machine.Start(ctx); err != nil {
		plan := PlanFor(err)
		if c.logger != nil {
			c.logger.Warn("capture start failed", "error", err.Error(), "actions", plan.Actions)
		}
		return plan, err
	}
	return Plan{}, nil
}

// Finish stops the recording and runs the fallback chain over the finished
// segment. A failed chain still returns a result carrying the manual-entry
// affordance.
func (c *Coordinator) Finish(ctx context.Context, order []method.Method, language string) (engine.Result, Plan, error) {
	seg, err := c.machine.Stop()
	if err != nil {
		return engine.Result{}, PlanFor(err), err
	}

	result := c.engine.Transcribe(ctx, seg, order, language)
	if result.Success || result.Queued {
		return result, Plan{}, nil
	}
	return result, PlanFor(faults.ErrAllMethodsExhausted), nil
}
