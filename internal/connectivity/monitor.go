// Package connectivity tracks online/offline status and notifies subscribers
// of transitions. Subscription is explicit so tests can simulate transitions
// deterministically and nothing leaks listeners across runs.
package connectivity

import (
	"context"
	"log/slog"
	"net"
	"sync"
	"time"
)

// CheckFunc reports whether the network currently looks reachable.
type CheckFunc func(ctx context.Context) bool

// DialCheck probes TCP reachability of one address.
func DialCheck(addr string, timeout time.Duration) CheckFunc {
	return func(ctx context.Context) bool {
		dialer := net.Dialer{Timeout: timeout}
		conn, err := dialer.DialContext(ctx, "tcp", addr)
		if err != nil {
			return false
		}
		_ = conn.Close()
		return true
	}
}

// Monitor polls a connectivity check and fans out transition events.
// The poll loop is the single writer of the online flag; readers tolerate
// eventual consistency.
type Monitor struct {
	logger   *slog.Logger
	check    CheckFunc
	interval time.Duration

	mu     sync.Mutex
	online bool
	subs   map[int]chan bool
	nextID int

	cancel context.CancelFunc
	done   chan struct{}
}

// NewMonitor constructs a stopped monitor. The initial status is assumed
// online until the first poll says otherwise.
func NewMonitor(logger *slog.Logger, check CheckFunc, interval time.Duration) *Monitor {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	return &Monitor{
		logger:   logger,
		check:    check,
		interval: interval,
		online:   true,
		subs:     map[int]chan bool{},
	}
}

// Online returns the last observed status.
func (m *Monitor) Online() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.online
}

// SetOnline records a status observed out of band (for example a socket
// error during streaming) and notifies subscribers on transition.
func (m *Monitor) SetOnline(online bool) {
	m.mu.Lock()
	changed := m.online != online
	m.online = online
	var targets []chan bool
	if changed {
		for _, ch := range m.subs {
			targets = append(targets, ch)
		}
	}
	m.mu.Unlock()

	if !changed {
		return
	}
	if m.logger != nil {
		m.logger.Info("connectivity transition", "online", online)
	}
	for _, ch := range targets {
		select {
		case ch <- online:
		default:
		}
	}
}

// Refresh runs the check once, records the result, and returns it. Callers
// that never Start the poll loop use this for an on-demand reading instead
// of trusting the constructor default.
func (m *Monitor) Refresh(ctx context.Context) bool {
	if m.check == nil {
		return m.Online()
	}
	online := m.check(ctx)
	m.SetOnline(online)
	return online
}

// Subscribe registers a transition listener. The returned channel receives
// the new status on every transition; Unsubscribe releases it.
func (m *Monitor) Subscribe() (<-chan bool, func()) {
	m.mu.Lock()
	id := m.nextID
	m.nextID++
	ch := make(chan bool, 1)
	m.subs[id] = ch
	m.mu.Unlock()

	unsubscribe := func() {
		m.mu.Lock()
		delete(m.subs, id)
		m.mu.Unlock()
	}
	return ch, unsubscribe
}

// Start launches the poll loop. Stop tears it down.
func (m *Monitor) Start(ctx context.Context) {
	if m.check == nil {
		return
	}
	ctx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.done = make(chan struct{})

	go func() {
		defer close(m.done)
		ticker := time.NewTicker(m.interval)
		defer ticker.Stop()

		m.SetOnline(m.check(ctx))
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				m.SetOnline(m.check(ctx))
			}
		}
	}()
}

// Stop halts the poll loop and waits for it to exit.
func (m *Monitor) Stop() {
	if m.cancel == nil {
		return
	}
	m.cancel()
	<-m.done
	m.cancel = nil
}
