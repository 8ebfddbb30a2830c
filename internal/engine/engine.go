// Package engine executes the ordered transcription fallback chain for one
// finished audio segment, stopping at the first method that succeeds.
package engine

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/ndisuite/voicepipe/internal/faults"
	"github.com/ndisuite/voicepipe/internal/method"
	"github.com/ndisuite/voicepipe/internal/metrics"
	"github.com/ndisuite/voicepipe/internal/segment"
)

// Result is the outcome of one transcription attempt chain.
type Result struct {
	RecordingID string
	Text        string
	Confidence  float64
	Method      method.Method
	Success     bool
	Err         string

	// Queued means the segment was deferred to the offline queue and no
	// live method was attempted.
	Queued bool

	// ManualEntry signals the caller should offer free-text entry; failure
	// must never block the user from completing a recording.
	ManualEntry bool
}

// Adapter is one transcription method implementation. Adapters report their
// own bounded attempt window; zero means the engine applies no extra bound.
type Adapter interface {
	Name() method.Method
	Timeout(seg segment.Segment) time.Duration
	Transcribe(ctx context.Context, seg segment.Segment, language string) (string, float64, error)
}

// OnlineChecker reports current connectivity status.
type OnlineChecker interface {
	Online() bool
}

// Enqueuer defers a segment for replay when connectivity returns.
type Enqueuer interface {
	Enqueue(seg segment.Segment) error
}

// Engine iterates a method chain over registered adapters.
type Engine struct {
	logger   *slog.Logger
	online   OnlineChecker
	queue    Enqueuer
	adapters map[method.Method]Adapter
	metrics  *metrics.Metrics
}

// New constructs an engine. The queue and monitor may be nil in tests that
// only exercise the live path.
func New(logger *slog.Logger, online OnlineChecker, queue Enqueuer, m *metrics.Metrics, adapters ...Adapter) *Engine {
	byName := make(map[method.Method]Adapter, len(adapters))
	for _, a := range adapters {
		byName[a.Name()] = a
	}
	return &Engine{
		logger:   logger,
		online:   online,
		queue:    queue,
		adapters: byName,
		metrics:  m,
	}
}

// Transcribe runs the fallback chain strictly in the given order. If the
// runtime is offline at call time, no method is attempted and the segment is
// enqueued for a later drain. At most one method succeeds per segment.
func (e *Engine) Transcribe(ctx context.Context, seg segment.Segment, order []method.Method, language string) Result {
	if e.online != nil && !e.online.Online() {
		return e.deferSegment(seg, "offline at call time")
	}

	var lastErr error
	lastMethod := method.Method("")

	for _, name := range order {
		adapter, ok := e.adapters[name]
		if !ok {
			// Skipped, never surfaced per method.
			e.observeFailure(name, faults.ErrCapabilityUnsupported)
			continue
		}

		lastMethod = name
		text, confidence, err := e.attempt(ctx, adapter, seg, language)
		if err == nil && text != "" {
			e.observeSuccess(name)
			if e.logger != nil {
				e.logger.Info("transcription succeeded",
					"segment_id", seg.ID, "method", string(name), "confidence", confidence)
			}
			return Result{
				RecordingID: seg.ID,
				Text:        text,
				Confidence:  confidence,
				Method:      name,
				Success:     true,
			}
		}
		if err == nil {
			err = errors.New("empty transcription")
		}
		lastErr = err
		e.observeFailure(name, err)
		if e.logger != nil {
			e.logger.Warn("transcription method failed",
				"segment_id", seg.ID, "method", string(name), "error", err.Error())
		}
	}

	if faults.IsConnectivity(lastErr) && e.queue != nil {
		return e.deferSegment(seg, lastErr.Error())
	}

	aggregate := faults.Exhausted(lastErr)
	return Result{
		RecordingID: seg.ID,
		Method:      lastMethod,
		Success:     false,
		Err:         aggregate.Error(),
		ManualEntry: true,
	}
}

// attempt invokes one adapter under its bounded window.
func (e *Engine) attempt(ctx context.Context, adapter Adapter, seg segment.Segment, language string) (string, float64, error) {
	if e.metrics != nil {
		e.metrics.TranscriptionAttempts.WithLabelValues(string(adapter.Name())).Inc()
	}
	if window := adapter.Timeout(seg); window > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, window)
		defer cancel()
	}

	start := time.Now()
	text, confidence, err := adapter.Transcribe(ctx, seg, language)
	if e.metrics != nil {
		e.metrics.TranscriptionDuration.WithLabelValues(string(adapter.Name())).Observe(time.Since(start).Seconds())
	}
	if err != nil && errors.Is(ctx.Err(), context.DeadlineExceeded) {
		err = faults.Timeout(string(adapter.Name()), adapter.Timeout(seg))
	}
	return text, confidence, err
}

// deferSegment enqueues the segment and returns the synthetic queued result.
func (e *Engine) deferSegment(seg segment.Segment, reason string) Result {
	if e.queue != nil {
		if err := e.queue.Enqueue(seg); err != nil && e.logger != nil {
			e.logger.Error("offline enqueue failed", "segment_id", seg.ID, "error", err.Error())
		}
	}
	if e.metrics != nil {
		e.metrics.QueueDeferred.Inc()
	}
	if e.logger != nil {
		e.logger.Info("segment deferred to offline queue", "segment_id", seg.ID, "reason", reason)
	}
	return Result{
		RecordingID: seg.ID,
		Success:     false,
		Queued:      true,
		Err:         "transcription deferred until connectivity returns",
	}
}

func (e *Engine) observeSuccess(name method.Method) {
	if e.metrics != nil {
		e.metrics.TranscriptionSuccesses.WithLabelValues(string(name)).Inc()
	}
}

func (e *Engine) observeFailure(name method.Method, _ error) {
	if e.metrics != nil {
		e.metrics.TranscriptionFailures.WithLabelValues(string(name)).Inc()
	}
}
