package connectivity

import (
	"context"
	"net"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestMonitorAssumesOnlineUntilTold(t *testing.T) {
	m := NewMonitor(nil, nil, time.Second)
	require.True(t, m.Online())
}

func TestSetOnlineNotifiesOnTransitionOnly(t *testing.T) {
	m := NewMonitor(nil, nil, time.Second)
	events, unsubscribe := m.Subscribe()
	defer unsubscribe()

	// Already online; no event.
	m.SetOnline(true)
	select {
	case <-events:
		t.Fatal("notification without a transition")
	case <-time.After(50 * time.Millisecond):
	}

	m.SetOnline(false)
	select {
	case online := <-events:
		require.False(t, online)
	case <-time.After(time.Second):
		t.Fatal("transition never delivered")
	}
	require.False(t, m.Online())

	m.SetOnline(true)
	select {
	case online := <-events:
		require.True(t, online)
	case <-time.After(time.Second):
		t.Fatal("transition never delivered")
	}
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	m := NewMonitor(nil, nil, time.Second)
	events, unsubscribe := m.Subscribe()
	unsubscribe()

	m.SetOnline(false)
	select {
	case <-events:
		t.Fatal("delivery after unsubscribe")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestSlowSubscriberDoesNotBlockOthers(t *testing.T) {
	m := NewMonitor(nil, nil, time.Second)

	stale, unsubStale := m.Subscribe()
	defer unsubStale()
	live, unsubLive := m.Subscribe()
	defer unsubLive()

	// Fill the stale subscriber's buffer; the next transition must still
	// reach the live one without blocking.
	m.SetOnline(false)
	m.SetOnline(true)
	m.SetOnline(false)

	require.Len(t, stale, 1)
	require.NotEmpty(t, live)
}

func TestRefreshRunsCheckOnDemand(t *testing.T) {
	var calls atomic.Int32
	m := NewMonitor(nil, func(context.Context) bool {
		calls.Add(1)
		return false
	}, time.Hour)

	// Constructor default says online; a refresh must consult the check.
	require.True(t, m.Online())
	require.False(t, m.Refresh(context.Background()))
	require.False(t, m.Online())
	require.Equal(t, int32(1), calls.Load())
}

func TestRefreshWithoutCheckKeepsCurrentStatus(t *testing.T) {
	m := NewMonitor(nil, nil, time.Hour)
	require.True(t, m.Refresh(context.Background()))

	m.SetOnline(false)
	require.False(t, m.Refresh(context.Background()))
}

func TestStartPollsCheckFunc(t *testing.T) {
	var calls atomic.Int32
	check := func(context.Context) bool {
		calls.Add(1)
		return false
	}

	m := NewMonitor(nil, check, 10*time.Millisecond)
	m.Start(context.Background())
	defer m.Stop()

	require.Eventually(t, func() bool {
		return calls.Load() >= 2 && !m.Online()
	}, 2*time.Second, 5*time.Millisecond)
}

func TestDialCheckAgainstLocalListener(t *testing.T) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer func() { _ = listener.Close() }()

	go func() {
		for {
			conn, err := listener.Accept()
			if err != nil {
				return
			}
			_ = conn.Close()
		}
	}()

	check := DialCheck(listener.Addr().String(), time.Second)
	require.True(t, check(context.Background()))

	require.NoError(t, listener.Close())
	require.False(t, check(context.Background()))
}
