package recovery

import (
	"context"
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/ndisuite/voicepipe/internal/engine"
	"github.com/ndisuite/voicepipe/internal/faults"
	"github.com/ndisuite/voicepipe/internal/method"
	"github.com/ndisuite/voicepipe/internal/metrics"
	"github.com/ndisuite/voicepipe/internal/segment"
)

const (
	streamingMaxRetries  = 3
	streamingBackoffBase = 500 * time.Millisecond
)

// retryingStreaming retries transient streaming failures with increasing
// backoff before the engine falls through to the next method. Protocol
// rejections are not retried; only connectivity failures are transient.
type retryingStreaming struct {
	inner       engine.Adapter
	coordinator *Coordinator
	metrics     *metrics.Metrics
	backoffBase time.Duration
}

// WrapStreaming decorates a streaming adapter with the coordinator's bounded
// reconnection policy. Attempt counts feed Coordinator.Attempts.
func WrapStreaming(inner engine.Adapter, coordinator *Coordinator, m *metrics.Metrics) engine.Adapter {
	return &retryingStreaming{
		inner:       inner,
		coordinator: coordinator,
		metrics:     m,
		backoffBase: streamingBackoffBase,
	}
}

func (r *retryingStreaming) Name() method.Method { return r.inner.Name() }

func (r *retryingStreaming) Timeout(seg segment.Segment) time.Duration {
	// The inner per-attempt window is enforced inside the retry loop; the
	// outer bound covers all attempts plus backoff.
	inner := r.inner.Timeout(seg)
	if inner <= 0 {
		return 0
	}
	return inner*(streamingMaxRetries+1) + 8*r.backoffBase
}

func (r *retryingStreaming) Transcribe(ctx context.Context, seg segment.Segment, language string) (string, float64, error) {
	var (
		text       string
		confidence float64
	)

	backoff := retry.WithMaxRetries(streamingMaxRetries, retry.NewExponential(r.backoffBase))
	first := true

	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		if !first {
			if r.coordinator != nil {
				r.coordinator.noteAttempt()
			}
			if r.metrics != nil {
				r.metrics.RecoveryRetries.Inc()
			}
		}
		first = false

		attemptCtx := ctx
		if window := r.inner.Timeout(seg); window > 0 {
			var cancel context.CancelFunc
			attemptCtx, cancel = context.WithTimeout(ctx, window)
			defer cancel()
		}

		var err error
		text, confidence, err = r.inner.Transcribe(attemptCtx, seg, language)
		if err == nil {
			return nil
		}
		if faults.IsConnectivity(err) {
			return retry.RetryableError(err)
		}
		return err
	})
	if err != nil {
		return "", 0, err
	}
	return text, confidence, nil
}
