// Package metrics registers Prometheus instrumentation for the capture and
// transcription pipeline.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics bundles every collector the pipeline reports into.
type Metrics struct {
	// Capture metrics
	CaptureSessions prometheus.Counter
	CaptureDuration prometheus.Histogram
	CaptureFailures *prometheus.CounterVec

	// Fallback engine metrics
	TranscriptionAttempts  *prometheus.CounterVec
	TranscriptionSuccesses *prometheus.CounterVec
	TranscriptionFailures  *prometheus.CounterVec
	TranscriptionDuration  *prometheus.HistogramVec

	// Offline queue metrics
	QueueDepth    prometheus.Gauge
	QueueDeferred prometheus.Counter
	QueueReplayed prometheus.Counter
	DrainRuns     prometheus.Counter

	// Recovery metrics
	RecoveryRetries prometheus.Counter
}

// New creates and registers all collectors against the given registerer.
// Tests pass a fresh registry; the process passes the default one.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		CaptureSessions: factory.NewCounter(prometheus.CounterOpts{
			Name: "voicepipe_capture_sessions_total",
			Help: "Total capture sessions started",
		}),
		CaptureDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "voicepipe_capture_duration_seconds",
			Help:    "Recorded segment durations",
			Buckets: prometheus.ExponentialBuckets(1, 2, 10),
		}),
		CaptureFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "voicepipe_capture_failures_total",
			Help: "Capture failures by reason",
		}, []string{"reason"}),

		TranscriptionAttempts: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "voicepipe_transcription_attempts_total",
			Help: "Transcription attempts by method",
		}, []string{"method"}),
		TranscriptionSuccesses: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "voicepipe_transcription_successes_total",
			Help: "Transcription successes by method",
		}, []string{"method"}),
		TranscriptionFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "voicepipe_transcription_failures_total",
			Help: "Transcription failures by method",
		}, []string{"method"}),
		TranscriptionDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "voicepipe_transcription_duration_seconds",
			Help:    "Per-method transcription attempt durations",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 12),
		}, []string{"method"}),

		QueueDepth: factory.NewGauge(prometheus.GaugeOpts{
			Name: "voicepipe_offline_queue_depth",
			Help: "Pending entries in the offline queue",
		}),
		QueueDeferred: factory.NewCounter(prometheus.CounterOpts{
			Name: "voicepipe_offline_deferred_total",
			Help: "Segments deferred to the offline queue",
		}),
		QueueReplayed: factory.NewCounter(prometheus.CounterOpts{
			Name: "voicepipe_offline_replayed_total",
			Help: "Queue entries successfully replayed",
		}),
		DrainRuns: factory.NewCounter(prometheus.CounterOpts{
			Name: "voicepipe_offline_drain_runs_total",
			Help: "Offline queue drain passes executed",
		}),

		RecoveryRetries: factory.NewCounter(prometheus.CounterOpts{
			Name: "voicepipe_recovery_retries_total",
			Help: "Bounded streaming reconnection attempts",
		}),
	}
}
