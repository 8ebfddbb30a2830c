package capture

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/jfreymuth/pulse"
	pulseproto "github.com/jfreymuth/pulse/proto"

	"github.com/ndisuite/voicepipe/internal/faults"
)

// PulseConfig controls the Pulse record stream.
type PulseConfig struct {
	SampleRate int
	ChunkMS    int
	Source     string
}

// pulseRecorder streams fixed-size PCM chunks from a Pulse input source.
type pulseRecorder struct {
	client *pulse.Client
	stream *pulse.RecordStream

	chunkSize int
	chunks    chan []byte
	stopCh    chan struct{}

	mu      sync.Mutex
	pending []byte
	stopped bool

	inflight sync.WaitGroup
	bytes    atomic.Int64
}

// PulseOpener acquires microphone streams from the Pulse server.
type PulseOpener struct {
	Config PulseConfig
}

// Open connects to Pulse, resolves the configured source, and starts a mono
// s16 record stream. The returned recorder owns the Pulse client and stream.
func (o PulseOpener) Open(ctx context.Context) (Recorder, error) {
	cfg := o.Config
	if cfg.SampleRate <= 0 {
		cfg.SampleRate = 16000
	}
	if cfg.ChunkMS <= 0 {
		cfg.ChunkMS = 20
	}
	// bytes per chunk: mono s16 at the configured rate
	chunkSize := cfg.SampleRate * 2 * cfg.ChunkMS / 1000

	client, err := pulse.NewClient(
		pulse.ClientApplicationName("voicepipe"),
		pulse.ClientApplicationIconName("audio-input-microphone"),
	)
	if err != nil {
		return nil, classifyAcquisition(fmt.Errorf("connect pulse server: %w", err))
	}

	var source *pulse.Source
	if strings.TrimSpace(cfg.Source) == "" || cfg.Source == "default" {
		source, err = client.DefaultSource()
	} else {
		source, err = client.SourceByID(cfg.Source)
	}
	if err != nil {
		client.Close()
		return nil, classifyAcquisition(fmt.Errorf("resolve source %q: %w", cfg.Source, err))
	}

	rec := &pulseRecorder{
		client:    client,
		chunkSize: chunkSize,
		chunks:    make(chan []byte, 128),
		stopCh:    make(chan struct{}),
	}

	writer := pulse.NewWriter(writerFunc(rec.onPCM), pulseproto.FormatInt16LE)
	stream, err := client.NewRecord(
		writer,
		pulse.RecordSource(source),
		pulse.RecordMono,
		pulse.RecordSampleRate(cfg.SampleRate),
		pulse.RecordBufferFragmentSize(uint32(chunkSize)),
		pulse.RecordMediaName("voicepipe capture"),
	)
	if err != nil {
		rec.Close()
		return nil, classifyAcquisition(fmt.Errorf("create pulse record stream: %w", err))
	}

	rec.stream = stream
	stream.Start()

	go func() {
		<-ctx.Done()
		_ = rec.Stop()
	}()

	return rec, nil
}

// classifyAcquisition maps Pulse acquisition failures onto the fault taxonomy.
func classifyAcquisition(err error) error {
	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "access denied") || strings.Contains(msg, "permission") {
		return fmt.Errorf("%w: %w", faults.ErrPermissionDenied, err)
	}
	return fmt.Errorf("%w: %w", faults.ErrDeviceUnavailable, err)
}

// Chunks returns the PCM stream as fixed-size byte slices.
func (r *pulseRecorder) Chunks() <-chan []byte {
	return r.chunks
}

// MIMEType declares the blob encoding assembled from this recorder.
func (r *pulseRecorder) MIMEType() string {
	return "audio/pcm;bit=16"
}

// BytesCaptured reports total bytes accepted from Pulse.
func (r *pulseRecorder) BytesCaptured() int64 {
	return r.bytes.Load()
}

// Stop halts the stream, flushes residual PCM, and closes Chunks exactly once.
func (r *pulseRecorder) Stop() error {
	r.mu.Lock()
	if r.stopped {
		r.mu.Unlock()
		return nil
	}
	r.stopped = true
	close(r.stopCh)
	r.mu.Unlock()

	if r.stream != nil {
		r.stream.Stop()
		r.stream.Close()
	}
	if r.client != nil {
		r.client.Close()
	}

	r.inflight.Wait()

	r.mu.Lock()
	pending := append([]byte(nil), r.pending...)
	r.pending = nil
	r.mu.Unlock()

	if len(pending) > 0 {
		select {
		case r.chunks <- pending:
		default:
		}
	}

	close(r.chunks)
	return nil
}

// Close is a convenience alias for Stop.
func (r *pulseRecorder) Close() {
	_ = r.Stop()
}

// onPCM receives raw Pulse frames and emits chunkSize slices to r.chunks.
func (r *pulseRecorder) onPCM(buffer []byte) (int, error) {
	if len(buffer) == 0 {
		return 0, nil
	}

	select {
	case <-r.stopCh:
		return 0, io.EOF
	default:
	}

	r.mu.Lock()
	if r.stopped {
		r.mu.Unlock()
		return 0, io.EOF
	}
	// Guard Add under the same mutex as r.stopped to avoid Add/Wait races.
	r.inflight.Add(1)

	r.pending = append(r.pending, buffer...)

	chunks := make([][]byte, 0, len(r.pending)/r.chunkSize)
	for len(r.pending) >= r.chunkSize {
		chunk := make([]byte, r.chunkSize)
		copy(chunk, r.pending[:r.chunkSize])
		r.pending = r.pending[r.chunkSize:]
		chunks = append(chunks, chunk)
	}
	r.mu.Unlock()
	defer r.inflight.Done()

	r.bytes.Add(int64(len(buffer)))

	for _, chunk := range chunks {
		select {
		case <-r.stopCh:
			return 0, io.EOF
		case r.chunks <- chunk:
		}
	}

	return len(buffer), nil
}

// writerFunc adapts a function to io.Writer for pulse.NewWriter.
type writerFunc func([]byte) (int, error)

func (f writerFunc) Write(b []byte) (int, error) {
	return f(b)
}
