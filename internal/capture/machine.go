// Package capture owns the microphone stream, the elapsed timer, and the
// visualization feed for one recording session, behind an explicit state
// machine. Every acquired handle is tracked and released on every exit path;
// teardown never relies on garbage collection.
package capture

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/ndisuite/voicepipe/internal/faults"
	"github.com/ndisuite/voicepipe/internal/segment"
)

// ErrStale marks an asynchronous acquisition that completed after the session
// it belonged to was torn down.
var ErrStale = errors.New("capture session superseded")

// VizFunc receives raw audio chunks at the recorder's native cadence while
// recording. It is invoked best-effort and must not block.
type VizFunc func(chunk []byte)

// Status is a point-in-time snapshot of the machine for UIs and IPC.
type Status struct {
	State   State
	Elapsed time.Duration
	Bytes   int64
}

// Machine is the audio capture state machine. At most one session is live
// (non-idle, non-terminal) per machine at any time.
type Machine struct {
	logger      *slog.Logger
	opener      Opener
	maxDuration time.Duration
	viz         VizFunc

	now func() time.Time

	mu         sync.Mutex
	state      State
	generation uint64
	lastErr    error

	recorder  Recorder
	autoStop  *time.Timer
	pumpDone  chan struct{}
	blob      []byte
	accum     time.Duration
	startedAt time.Time
}

// Option configures a Machine.
type Option func(*Machine)

// WithMaxDuration caps recording length; reaching the cap stops the session
// through the same path as an explicit Stop.
func WithMaxDuration(d time.Duration) Option {
	return func(m *Machine) { m.maxDuration = d }
}

// WithVisualizer registers the chunk visualization callback.
func WithVisualizer(fn VizFunc) Option {
	return func(m *Machine) { m.viz = fn }
}

// withClock overrides time observation for tests.
func withClock(now func() time.Time) Option {
	return func(m *Machine) { m.now = now }
}

// NewMachine constructs an idle machine bound to one recorder opener.
func NewMachine(logger *slog.Logger, opener Opener, opts ...Option) *Machine {
	m := &Machine{
		logger: logger,
		opener: opener,
		state:  StateIdle,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// State returns the current lifecycle state.
func (m *Machine) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Err returns the failure that moved the machine into StateError, if any.
func (m *Machine) Err() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastErr
}

// Status reports state, elapsed time, and captured byte count.
func (m *Machine) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := Status{State: m.state, Elapsed: m.elapsedLocked()}
	if m.recorder != nil {
		s.Bytes = m.recorder.BytesCaptured()
	}
	return s
}

// Elapsed returns recorded time excluding paused spans.
func (m *Machine) Elapsed() time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.elapsedLocked()
}

func (m *Machine) elapsedLocked() time.Duration {
	if m.state == StateRecording {
		return m.accum + m.now().Sub(m.startedAt)
	}
	return m.accum
}

// Start begins a new session. Legal from Idle, Completed, and Error, so a
// denied permission can be retried without an explicit Reset. Acquisition is
// the single suspension point; a Stop or Reset racing it wins, and the stale
// recorder is released immediately.
func (m *Machine) Start(ctx context.Context) error {
	m.mu.Lock()
	next, err := Transition(m.state, EventStart)
	if err != nil {
		m.mu.Unlock()
		return err
	}
	m.state = next
	m.generation++
	gen := m.generation
	m.lastErr = nil
	m.blob = nil
	m.accum = 0
	m.mu.Unlock()

	rec, err := m.opener.Open(ctx)

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.generation != gen || m.state != StateRequesting {
		// Torn down while acquisition was in flight.
		if rec != nil {
			_ = rec.Stop()
		}
		return ErrStale
	}

	if err != nil {
		m.state = StateError
		m.lastErr = err
		if m.logger != nil {
			m.logger.Error("microphone acquisition failed", "error", err.Error())
		}
		return err
	}

	m.state = StateRecording
	m.recorder = rec
	m.startedAt = m.now()
	m.pumpDone = make(chan struct{})
	m.armAutoStopLocked(gen)

	go m.pump(gen, rec)

	if m.logger != nil {
		m.logger.Info("recording started", "mime", rec.MIMEType())
	}
	return nil
}

// Pause suspends the timer without losing elapsed time. Legal only while
// recording.
func (m *Machine) Pause() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	next, err := Transition(m.state, EventPause)
	if err != nil {
		return err
	}
	m.accum += m.now().Sub(m.startedAt)
	m.state = next
	m.disarmAutoStopLocked()
	return nil
}

// Resume recomputes the timer's logical start from accumulated elapsed time,
// not from scratch. Legal only while paused.
func (m *Machine) Resume() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	next, err := Transition(m.state, EventResume)
	if err != nil {
		return err
	}
	m.state = next
	m.startedAt = m.now()
	m.armAutoStopLocked(m.generation)
	return nil
}

// Stop flushes buffered audio into one segment, releases every held handle,
// and completes the session. Legal from Recording and Paused.
func (m *Machine) Stop() (segment.Segment, error) {
	m.mu.Lock()
	next, err := Transition(m.state, EventStop)
	if err != nil {
		m.mu.Unlock()
		return segment.Segment{}, err
	}
	from := m.state
	if m.state == StateRecording {
		m.accum += m.now().Sub(m.startedAt)
	}
	m.state = next

	rec := m.recorder
	pumpDone := m.pumpDone
	m.disarmAutoStopLocked()
	m.mu.Unlock()

	if rec != nil {
		_ = rec.Stop()
	}
	if pumpDone != nil {
		<-pumpDone
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	seg := segment.New(m.blob, mimeOf(rec), m.accum, string(from))
	m.blob = nil
	m.recorder = nil
	m.pumpDone = nil
	m.state = StateCompleted

	if m.logger != nil {
		m.logger.Info("recording stopped",
			"segment_id", seg.ID,
			"duration_ms", seg.DurationMS,
			"bytes", len(seg.Blob),
		)
	}
	return seg, nil
}

// Reset returns to Idle from a terminal state, discarding any segment data.
func (m *Machine) Reset() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	next, err := Transition(m.state, EventReset)
	if err != nil {
		return err
	}
	m.generation++
	m.releaseLocked()
	m.state = next
	m.lastErr = nil
	m.blob = nil
	m.accum = 0
	return nil
}

// pump moves recorder chunks into the session buffer and visualization feed
// until the recorder closes its channel. An unexpected closure while the
// session is still live means the device was lost.
func (m *Machine) pump(gen uint64, rec Recorder) {
	defer func() {
		m.mu.Lock()
		if m.pumpDone != nil && m.generation == gen {
			close(m.pumpDone)
		}
		m.mu.Unlock()
	}()

	for chunk := range rec.Chunks() {
		m.mu.Lock()
		if m.generation != gen {
			m.mu.Unlock()
			return
		}
		paused := m.state == StatePaused
		if !paused {
			m.blob = append(m.blob, chunk...)
		}
		viz := m.viz
		m.mu.Unlock()

		if !paused && viz != nil {
			safeViz(viz, chunk)
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.generation != gen {
		return
	}
	if m.state == StateRecording || m.state == StatePaused {
		m.lastErr = fmt.Errorf("%w: audio stream ended unexpectedly", faults.ErrDeviceUnavailable)
		m.state = StateError
		m.releaseLocked()
		if m.logger != nil {
			m.logger.Error("capture device lost", "error", m.lastErr.Error())
		}
	}
}

// armAutoStopLocked schedules the max-duration stop for the remaining window.
func (m *Machine) armAutoStopLocked(gen uint64) {
	if m.maxDuration <= 0 {
		return
	}
	remaining := m.maxDuration - m.accum
	if remaining <= 0 {
		remaining = time.Millisecond
	}
	m.autoStop = time.AfterFunc(remaining, func() {
		m.mu.Lock()
		live := m.generation == gen && m.state == StateRecording
		m.mu.Unlock()
		if live {
			_, _ = m.Stop()
		}
	})
}

func (m *Machine) disarmAutoStopLocked() {
	if m.autoStop != nil {
		m.autoStop.Stop()
		m.autoStop = nil
	}
}

// releaseLocked tears down every held handle exactly once.
func (m *Machine) releaseLocked() {
	m.disarmAutoStopLocked()
	if m.recorder != nil {
		_ = m.recorder.Stop()
		m.recorder = nil
	}
	m.pumpDone = nil
}

func mimeOf(rec Recorder) string {
	if rec == nil {
		return ""
	}
	return rec.MIMEType()
}

func safeViz(fn VizFunc, chunk []byte) {
	defer func() { _ = recover() }()
	fn(chunk)
}
