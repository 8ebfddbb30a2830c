// Package app wires configuration, capture, the fallback engine, the
// offline queue, and IPC into the voicepipe command surface.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ndisuite/voicepipe/internal/capability"
	"github.com/ndisuite/voicepipe/internal/capture"
	"github.com/ndisuite/voicepipe/internal/cli"
	"github.com/ndisuite/voicepipe/internal/config"
	"github.com/ndisuite/voicepipe/internal/connectivity"
	"github.com/ndisuite/voicepipe/internal/doctor"
	"github.com/ndisuite/voicepipe/internal/engine"
	"github.com/ndisuite/voicepipe/internal/ipc"
	"github.com/ndisuite/voicepipe/internal/logging"
	"github.com/ndisuite/voicepipe/internal/method"
	"github.com/ndisuite/voicepipe/internal/metrics"
	"github.com/ndisuite/voicepipe/internal/output"
	"github.com/ndisuite/voicepipe/internal/queue"
	"github.com/ndisuite/voicepipe/internal/recovery"
	"github.com/ndisuite/voicepipe/internal/segment"
	"github.com/ndisuite/voicepipe/internal/session"
	"github.com/ndisuite/voicepipe/internal/transcript"
	"github.com/ndisuite/voicepipe/internal/version"
)

type Runner struct {
	Stdout io.Writer
	Stderr io.Writer
	Logger *slog.Logger
}

func Execute(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	r := Runner{Stdout: stdout, Stderr: stderr}
	return r.Execute(ctx, args)
}

func (r Runner) Execute(ctx context.Context, args []string) int {
	parsed, err := cli.Parse(args)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n\n", err)
		fmt.Fprint(r.Stderr, cli.HelpText("voicepipe"))
		return 2
	}

	if parsed.ShowHelp {
		fmt.Fprint(r.Stdout, cli.HelpText("voicepipe"))
		return 0
	}

	if parsed.Command == cli.CommandVersion {
		fmt.Fprintln(r.Stdout, version.String())
		return 0
	}

	logRuntime, err := logging.New()
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: setup logging: %v\n", err)
		return 1
	}
	defer func() { _ = logRuntime.Close() }()

	logger := r.Logger
	if logger == nil {
		logger = logRuntime.Logger
	}

	cfgLoaded, err := config.Load(parsed.ConfigPath)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		logger.Error("load config failed", "error", err.Error())
		return 1
	}
	for _, w := range cfgLoaded.Warnings {
		fmt.Fprintf(r.Stderr, "warning: %s\n", w.Message)
		logger.Warn("config warning", "message", w.Message)
	}

	if parsed.Language != "" {
		cfgLoaded.Config.Language = parsed.Language
	}
	if parsed.Method != "" {
		cfgLoaded.Config.PreferredMethod = parsed.Method
	}

	logger.Info("command start",
		"command", parsed.Command,
		"config", cfgLoaded.Path,
		"log", logRuntime.Path,
	)

	switch parsed.Command {
	case cli.CommandDoctor:
		report := doctor.Run(ctx, cfgLoaded)
		fmt.Fprintln(r.Stdout, report.String())
		if report.OK() {
			return 0
		}
		return 1
	case cli.CommandStatus:
		return r.commandStatus(ctx)
	case cli.CommandStop:
		return r.forwardOrFail(ctx, "stop")
	case cli.CommandPause:
		return r.forwardOrFail(ctx, "pause")
	case cli.CommandResume:
		return r.forwardOrFail(ctx, "resume")
	case cli.CommandCancel:
		return r.forwardOrFail(ctx, "cancel")
	case cli.CommandQueue:
		return r.commandQueue(cfgLoaded.Config, logger)
	case cli.CommandDrain:
		return r.commandDrain(ctx, cfgLoaded.Config, logger)
	case cli.CommandRecord:
		return r.commandRecord(ctx, cfgLoaded.Config, logger)
	default:
		fmt.Fprintf(r.Stderr, "error: unsupported command %q\n", parsed.Command)
		return 2
	}
}

// commandQueue lists pending offline entries, oldest first.
func (r Runner) commandQueue(cfg config.Config, logger *slog.Logger) int {
	q := queue.New(logger, cfg.Queue.Dir, nil)
	pending, err := q.ListPending()
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}
	if len(pending) == 0 {
		fmt.Fprintln(r.Stdout, "offline queue is empty")
		return 0
	}

	for _, entry := range pending {
		fmt.Fprintf(
			r.Stdout,
			"%s | status=%s | duration=%s | enqueued=%s\n",
			entry.RecordingID,
			entry.Status,
			(time.Duration(entry.DurationMS) * time.Millisecond).String(),
			entry.EnqueuedAt.Format(time.RFC3339),
		)
	}
	return 0
}

// commandDrain forwards to an active session when one exists, otherwise
// replays the queue in-process.
func (r Runner) commandDrain(ctx context.Context, cfg config.Config, logger *slog.Logger) int {
	if socketPath, err := ipc.RuntimeSocketPath(); err == nil {
		resp, handled, err := tryForward(ctx, socketPath, "drain")
		if handled {
			if err != nil {
				fmt.Fprintf(r.Stderr, "error: %v\n", err)
				return 1
			}
			if resp.Message != "" {
				fmt.Fprintln(r.Stdout, resp.Message)
			}
			return 0
		}
	}

	rt, err := newRuntime(ctx, cfg, logger)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}
	defer rt.close()

	if !rt.monitor.Refresh(ctx) {
		fmt.Fprintln(r.Stderr, "error: offline; queued recordings kept for a later drain")
		return 1
	}
	if err := rt.queue.Drain(ctx, rt.replay); err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}
	fmt.Fprintln(r.Stdout, "drained")
	return 0
}

func (r Runner) commandStatus(ctx context.Context) int {
	socketPath, err := ipc.RuntimeSocketPath()
	if err != nil {
		fmt.Fprintln(r.Stdout, "idle")
		return 0
	}

	resp, handled, err := tryForward(ctx, socketPath, "status")
	if handled {
		if err != nil {
			fmt.Fprintf(r.Stderr, "error: %v\n", err)
			return 1
		}
		if resp.State == "" {
			resp.State = "idle"
		}
		fmt.Fprintln(r.Stdout, resp.State)
		return 0
	}

	fmt.Fprintln(r.Stdout, "idle")
	return 0
}

func (r Runner) forwardOrFail(ctx context.Context, command string) int {
	socketPath, err := ipc.RuntimeSocketPath()
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}

	resp, handled, err := tryForward(ctx, socketPath, command)
	if !handled {
		fmt.Fprintf(r.Stderr, "error: no active voicepipe session\n")
		return 1
	}
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}
	if resp.Message != "" {
		fmt.Fprintln(r.Stdout, resp.Message)
	}
	return 0
}

// commandRecord owns one full recording session: it acquires the runtime
// socket, serves control commands over IPC, and runs capture through the
// fallback chain to a committed result.
func (r Runner) commandRecord(ctx context.Context, cfg config.Config, logger *slog.Logger) int {
	socketPath, err := ipc.RuntimeSocketPath()
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}

	listener, err := ipc.Acquire(ctx, socketPath, 180*time.Millisecond, 8, nil)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}
	defer func() {
		_ = listener.Close()
		_ = os.Remove(socketPath)
	}()

	rt, err := newRuntime(ctx, cfg, logger)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}
	defer rt.close()

	rt.monitor.Start(ctx)
	defer rt.monitor.Stop()

	events, unsubscribe := rt.monitor.Subscribe()
	stopAttach := rt.queue.AttachTo(ctx, events, unsubscribe, rt.replay)
	defer stopAttach()

	controller := session.NewController(
		logger,
		rt.machine,
		rt.coordinator,
		rt.sink,
		session.DrainFunc(func(ctx context.Context) error {
			return rt.queue.Drain(ctx, rt.replay)
		}),
		rt.order,
		cfg.Language,
	)

	serverCtx, serverCancel := context.WithCancel(ctx)
	defer serverCancel()

	serverErrCh := make(chan error, 1)
	go func() {
		serverErrCh <- ipc.Serve(serverCtx, listener, controller)
	}()

	rt.metrics.CaptureSessions.Inc()
	result := controller.Run(ctx)
	serverCancel()
	if serverErr := <-serverErrCh; serverErr != nil {
		fmt.Fprintf(r.Stderr, "error: ipc server failed: %v\n", serverErr)
		return 1
	}

	logSessionResult(logger, result)
	return r.reportSession(rt, result)
}

func (r Runner) reportSession(rt *runtime, result session.Result) int {
	if result.Cancelled {
		fmt.Fprintln(r.Stdout, "cancelled")
		return 0
	}
	if result.Err != nil {
		rt.metrics.CaptureFailures.WithLabelValues("session").Inc()
		if result.Plan.Message != "" {
			fmt.Fprintf(r.Stderr, "%s\n", result.Plan.Message)
		}
		fmt.Fprintf(r.Stderr, "error: %v\n", result.Err)
		return 1
	}

	rt.metrics.CaptureDuration.Observe(rt.machine.Elapsed().Seconds())
	if result.Outcome.Queued {
		fmt.Fprintln(r.Stdout, "offline; recording queued for transcription")
		return 0
	}
	if text := strings.TrimSpace(result.Outcome.Text); text != "" {
		fmt.Fprintln(r.Stdout, text)
	}
	return 0
}

// runtime bundles the long-lived components one command invocation builds.
type runtime struct {
	metrics     *metrics.Metrics
	monitor     *connectivity.Monitor
	queue       *queue.Queue
	machine     *capture.Machine
	coordinator *recovery.Coordinator
	engine      *engine.Engine
	sink        *output.Sink
	order       []method.Method
	replay      queue.TranscribeFunc

	metricsSrv *http.Server
}

func newRuntime(ctx context.Context, cfg config.Config, logger *slog.Logger) (*runtime, error) {
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)

	monitor := connectivity.NewMonitor(
		logger,
		connectivity.DialCheck(cfg.Connectivity.ProbeAddr, 2*time.Second),
		time.Duration(cfg.Connectivity.IntervalS)*time.Second,
	)

	q := queue.New(logger, cfg.Queue.Dir, m)

	cache := capability.NewCache(
		capability.DefaultProbes(cfg.Streaming.URL, cfg.OnDevice.Command),
		cfg.Production,
	)
	snapshot := cache.Get(ctx)
	order := method.Select(snapshot.Availability(), method.Method(cfg.PreferredMethod), cfg.Production)
	logger.Info("fallback chain resolved",
		"order", methodNames(order),
		"streaming", snapshot.Streaming,
		"speech", snapshot.Speech,
		"recorder", snapshot.Recorder,
	)

	machine := capture.NewMachine(
		logger,
		capture.PulseOpener{Config: capture.PulseConfig{
			SampleRate: cfg.Capture.SampleRate,
			ChunkMS:    cfg.Capture.ChunkMS,
			Source:     cfg.Capture.Source,
		}},
		capture.WithMaxDuration(time.Duration(cfg.Capture.MaxDurationS)*time.Second),
	)

	coordinator := recovery.NewCoordinator(logger, machine, nil)

	streaming := recovery.WrapStreaming(engine.StreamingAdapter{
		URL:            cfg.Streaming.URL,
		SampleRate:     cfg.Capture.SampleRate,
		ConnectTimeout: time.Duration(cfg.Streaming.ConnectTimeoutS) * time.Second,
	}, coordinator, m)

	adapters := []engine.Adapter{
		streaming,
		engine.HostedAdapter{
			URL:            cfg.Hosted.URL,
			APIKey:         cfg.Hosted.APIKey,
			Model:          cfg.Hosted.Model,
			Prompt:         cfg.Hosted.Prompt,
			RequestTimeout: time.Duration(cfg.Hosted.TimeoutS) * time.Second,
		},
		engine.OnDeviceAdapter{
			Recognizer: engine.CommandRecognizer{
				Command: cfg.OnDevice.Command,
				Args:    cfg.OnDevice.Args,
			},
		},
		engine.LocalAdapter{},
	}
	adapters = appendMockAdapter(adapters)

	eng := engine.New(logger, monitor, q, m, adapters...)
	coordinator.Bind(eng)

	// Replay attempts bypass enqueueing; a failed replay stays pending in
	// the store instead of re-entering through the engine.
	replayEngine := engine.New(logger, monitor, nil, m, adapters...)

	sink, err := output.NewSink(logger, "", output.WithFormat(transcript.Options{
		TrailingSpace:       cfg.Transcript.TrailingSpace,
		CapitalizeSentences: cfg.Transcript.CapitalizeSentences,
	}))
	if err != nil {
		return nil, fmt.Errorf("open results sink: %w", err)
	}

	rt := &runtime{
		metrics:     m,
		monitor:     monitor,
		queue:       q,
		machine:     machine,
		coordinator: coordinator,
		engine:      eng,
		sink:        sink,
		order:       order,
	}
	rt.replay = func(ctx context.Context, seg segment.Segment) error {
		result := replayEngine.Transcribe(ctx, seg, order, cfg.Language)
		if !result.Success {
			if result.Err != "" {
				return errors.New(result.Err)
			}
			return fmt.Errorf("replay of %s did not complete", seg.ID)
		}
		if _, err := sink.Commit(result); err != nil {
			return err
		}
		return nil
	}

	if cfg.Metrics.Enabled {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
		rt.metricsSrv = &http.Server{Addr: cfg.Metrics.Addr, Handler: mux}
		go func() {
			if err := rt.metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Warn("metrics listener failed", "addr", cfg.Metrics.Addr, "error", err.Error())
			}
		}()
	}

	return rt, nil
}

func (rt *runtime) close() {
	if rt.metricsSrv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = rt.metricsSrv.Shutdown(shutdownCtx)
	}
}

func methodNames(order []method.Method) []string {
	names := make([]string, 0, len(order))
	for _, m := range order {
		names = append(names, string(m))
	}
	return names
}

func logSessionResult(logger *slog.Logger, result session.Result) {
	if logger == nil {
		return
	}
	fields := []any{
		"state", result.State,
		"cancelled", result.Cancelled,
		"started_at", result.StartedAt.Format(time.RFC3339Nano),
		"finished_at", result.FinishedAt.Format(time.RFC3339Nano),
		"duration_ms", result.FinishedAt.Sub(result.StartedAt).Milliseconds(),
		"method", string(result.Outcome.Method),
		"queued", result.Outcome.Queued,
		"retry_attempts", result.Attempts,
		"transcript_length", len(result.Outcome.Text),
	}

	if result.Err != nil {
		logger.Error("session failed", append(fields, "error", result.Err.Error())...)
		return
	}
	logger.Info("session complete", fields...)
}

func tryForward(ctx context.Context, socketPath string, command string) (ipc.Response, bool, error) {
	resp, err := ipc.Send(ctx, socketPath, ipc.Request{Command: command}, 220*time.Millisecond)
	if err == nil {
		if resp.OK {
			return resp, true, nil
		}
		return resp, true, errors.New(resp.Error)
	}

	if ipc.Unreachable(err) {
		return ipc.Response{}, false, nil
	}

	return ipc.Response{}, true, fmt.Errorf("forward command %q: %w", command, err)
}
