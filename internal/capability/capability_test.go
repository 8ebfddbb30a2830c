package capability

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ndisuite/voicepipe/internal/method"
)

func allProbes(result bool) Probes {
	p := func(context.Context) bool { return result }
	return Probes{Streaming: p, Speech: p, AudioGraph: p, Recorder: p}
}

func TestDetectDerivesPreferredMethod(t *testing.T) {
	snap := Detect(context.Background(), allProbes(true), false)

	require.True(t, snap.Streaming)
	require.True(t, snap.Speech)
	require.True(t, snap.AudioGraph)
	require.True(t, snap.Recorder)
	require.Equal(t, method.Streaming, snap.Preferred)
	require.WithinDuration(t, time.Now(), snap.ProbedAt, time.Minute)
}

func TestDetectNilProbesReportUnsupported(t *testing.T) {
	snap := Detect(context.Background(), Probes{}, false)

	require.False(t, snap.Streaming)
	require.False(t, snap.Speech)
	require.False(t, snap.Recorder)
	// The chain still terminates; local heuristic needs nothing.
	require.Equal(t, method.Local, snap.Preferred)
}

func TestDetectProbePanicCountsAsUnsupported(t *testing.T) {
	probes := allProbes(true)
	probes.Streaming = func(context.Context) bool { panic("probe exploded") }

	snap := Detect(context.Background(), probes, false)
	require.False(t, snap.Streaming)
	require.True(t, snap.Speech)
	require.Equal(t, method.HostedAPI, snap.Preferred)
}

func TestAvailabilityMirrorsSnapshot(t *testing.T) {
	snap := Snapshot{Streaming: true, Recorder: true}
	avail := snap.Availability()
	require.True(t, avail.Streaming)
	require.True(t, avail.Recorder)
	require.False(t, avail.Speech)
}

func TestCacheDetectsOnceAndRefreshes(t *testing.T) {
	calls := 0
	probes := Probes{
		Streaming: func(context.Context) bool {
			calls++
			return calls > 1
		},
	}
	cache := NewCache(probes, false)

	first := cache.Get(context.Background())
	require.False(t, first.Streaming)
	require.Equal(t, 1, calls)

	// Cached; the probe does not rerun.
	again := cache.Get(context.Background())
	require.False(t, again.Streaming)
	require.Equal(t, 1, calls)

	refreshed := cache.Refresh(context.Background())
	require.True(t, refreshed.Streaming)
	require.Equal(t, 2, calls)
}

func TestCacheClearForcesRedetection(t *testing.T) {
	calls := 0
	probes := Probes{
		Streaming: func(context.Context) bool {
			calls++
			return true
		},
	}
	cache := NewCache(probes, false)

	cache.Get(context.Background())
	cache.Clear()
	cache.Get(context.Background())
	require.Equal(t, 2, calls)
}
