// Package capability probes the runtime once for the primitives transcription
// depends on and produces an immutable snapshot of what is available.
package capability

import (
	"context"
	"net"
	"net/url"
	"os/exec"
	"time"

	"github.com/jfreymuth/pulse"

	"github.com/ndisuite/voicepipe/internal/method"
)

// Snapshot records which runtime primitives are available. Immutable once
// computed; re-probed only on explicit request.
type Snapshot struct {
	Streaming  bool
	Speech     bool
	AudioGraph bool
	Recorder   bool

	// Preferred is the highest-ranked method viable under this snapshot.
	Preferred method.Method

	ProbedAt time.Time
}

// Availability projects the snapshot onto the selector's dependency booleans.
func (s Snapshot) Availability() method.Availability {
	return method.Availability{
		Streaming: s.Streaming,
		Speech:    s.Speech,
		Recorder:  s.Recorder,
	}
}

// Probe checks one runtime primitive. Probes must be side-effect free beyond
// creating and discarding transient detection objects, and must not panic.
type Probe func(ctx context.Context) bool

// Probes bundles the individual feature probes. Zero-value fields are treated
// as unsupported, so tests can simulate arbitrary runtimes.
type Probes struct {
	Streaming  Probe
	Speech     Probe
	AudioGraph Probe
	Recorder   Probe
}

// Detect runs every probe and derives the preferred method. It never returns
// an error: a failed or missing probe records false.
func Detect(ctx context.Context, probes Probes, production bool) Snapshot {
	snap := Snapshot{
		Streaming:  run(ctx, probes.Streaming),
		Speech:     run(ctx, probes.Speech),
		AudioGraph: run(ctx, probes.AudioGraph),
		Recorder:   run(ctx, probes.Recorder),
		ProbedAt:   time.Now(),
	}
	if chain := method.Select(snap.Availability(), "", production); len(chain) > 0 {
		snap.Preferred = chain[0]
	}
	return snap
}

func run(ctx context.Context, p Probe) bool {
	if p == nil {
		return false
	}
	defer func() { _ = recover() }()
	return p(ctx)
}

// DefaultProbes builds the production probe set.
//
// Streaming support is a TCP reachability check against the configured
// streaming endpoint; speech support is the presence of a local recognizer
// command; audio graph and recorder support are Pulse server connectivity
// and input-source enumeration.
func DefaultProbes(streamingURL, recognizerCmd string) Probes {
	return Probes{
		Streaming:  streamingReachable(streamingURL),
		Speech:     commandAvailable(recognizerCmd),
		AudioGraph: pulseReachable(),
		Recorder:   pulseHasSource(),
	}
}

func streamingReachable(rawURL string) Probe {
	return func(ctx context.Context) bool {
		u, err := url.Parse(rawURL)
		if err != nil || u.Host == "" {
			return false
		}
		host := u.Host
		if u.Port() == "" {
			switch u.Scheme {
			case "wss", "https":
				host = net.JoinHostPort(u.Hostname(), "443")
			default:
				host = net.JoinHostPort(u.Hostname(), "80")
			}
		}
		dialer := net.Dialer{Timeout: 2 * time.Second}
		conn, err := dialer.DialContext(ctx, "tcp", host)
		if err != nil {
			return false
		}
		_ = conn.Close()
		return true
	}
}

func commandAvailable(name string) Probe {
	return func(context.Context) bool {
		if name == "" {
			return false
		}
		_, err := exec.LookPath(name)
		return err == nil
	}
}

func pulseReachable() Probe {
	return func(context.Context) bool {
		client, err := pulse.NewClient(pulse.ClientApplicationName("voicepipe-probe"))
		if err != nil {
			return false
		}
		client.Close()
		return true
	}
}

func pulseHasSource() Probe {
	return func(context.Context) bool {
		client, err := pulse.NewClient(pulse.ClientApplicationName("voicepipe-probe"))
		if err != nil {
			return false
		}
		defer client.Close()
		_, err = client.DefaultSource()
		return err == nil
	}
}
