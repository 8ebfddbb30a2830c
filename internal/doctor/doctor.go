// Package doctor runs runtime readiness diagnostics for config, capture,
// transcription backends, and the offline queue store.
package doctor

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/ndisuite/voicepipe/internal/capability"
	"github.com/ndisuite/voicepipe/internal/config"
	"github.com/ndisuite/voicepipe/internal/method"
)

// Check is one doctor assertion result.
type Check struct {
	Name    string
	Pass    bool
	Message string
}

// Report is the full doctor output contract.
type Report struct {
	Checks []Check
}

// OK returns true when all checks pass.
func (r Report) OK() bool {
	for _, check := range r.Checks {
		if !check.Pass {
			return false
		}
	}
	return true
}

// String renders the report as user-facing text output.
func (r Report) String() string {
	var b strings.Builder
	for _, check := range r.Checks {
		status := "OK"
		if !check.Pass {
			status = "FAIL"
		}
		b.WriteString(fmt.Sprintf("[%s] %s: %s\n", status, check.Name, check.Message))
	}
	return strings.TrimSuffix(b.String(), "\n")
}

// Run executes environment/config/runtime checks for a loaded config.
// A capability probe returning false is reported but does not fail the
// report on its own: the fallback chain tolerates missing methods as long
// as at least one is viable.
func Run(ctx context.Context, cfg config.Loaded) Report {
	checks := []Check{{
		Name:    "config",
		Pass:    true,
		Message: fmt.Sprintf("loaded %q", cfg.Path),
	}}

	checks = append(checks, checkQueueDir(cfg.Config.Queue.Dir))

	snap := capability.Detect(ctx, capability.DefaultProbes(
		cfg.Config.Streaming.URL,
		cfg.Config.OnDevice.Command,
	), cfg.Config.Production)

	checks = append(checks,
		capCheck("capability.recorder", snap.Recorder, "microphone capture available", "no capture source reachable"),
		capCheck("capability.streaming", snap.Streaming, "streaming endpoint reachable", "streaming endpoint unreachable"),
		capCheck("capability.speech", snap.Speech, "local recognizer present", "no local recognizer configured or found"),
		capCheck("capability.audio_graph", snap.AudioGraph, "audio graph available", "audio server unreachable"),
	)

	if cfg.Config.OnDevice.Command != "" {
		checks = append(checks, checkBinary(cfg.Config.OnDevice.Command))
	}

	chain := method.Select(snap.Availability(), method.Method(cfg.Config.PreferredMethod), cfg.Config.Production)
	chainCheck := Check{
		Name:    "fallback.chain",
		Pass:    len(chain) > 0,
		Message: fmt.Sprintf("methods: %s", joinMethods(chain)),
	}
	if !chainCheck.Pass {
		chainCheck.Message = "no transcription method is viable"
	}
	checks = append(checks, chainCheck)

	return Report{Checks: checks}
}

func capCheck(name string, pass bool, okMsg, failMsg string) Check {
	// Capability misses degrade rather than fail: report pass with detail.
	if pass {
		return Check{Name: name, Pass: true, Message: okMsg}
	}
	return Check{Name: name, Pass: true, Message: "unsupported: " + failMsg}
}

// checkQueueDir verifies the offline store directory is creatable and
// writable.
func checkQueueDir(dir string) Check {
	if strings.TrimSpace(dir) == "" {
		return Check{Name: "queue.dir", Pass: false, Message: "queue dir is empty"}
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return Check{Name: "queue.dir", Pass: false, Message: fmt.Sprintf("create failed: %v", err)}
	}
	probe := filepath.Join(dir, ".doctor-probe")
	if err := os.WriteFile(probe, []byte("ok"), 0o600); err != nil {
		return Check{Name: "queue.dir", Pass: false, Message: fmt.Sprintf("not writable: %v", err)}
	}
	_ = os.Remove(probe)
	return Check{Name: "queue.dir", Pass: true, Message: fmt.Sprintf("writable at %q", dir)}
}

// checkBinary validates that a binary exists in PATH.
func checkBinary(bin string) Check {
	path, err := exec.LookPath(bin)
	if err != nil {
		return Check{Name: bin, Pass: false, Message: fmt.Sprintf("binary not found in PATH: %s", bin)}
	}
	return Check{Name: bin, Pass: true, Message: fmt.Sprintf("found at %s", path)}
}

func joinMethods(chain []method.Method) string {
	parts := make([]string, 0, len(chain))
	for _, m := range chain {
		parts = append(parts, string(m))
	}
	return strings.Join(parts, " -> ")
}
