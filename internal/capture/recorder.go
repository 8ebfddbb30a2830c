package capture

import "context"

// Recorder is an open microphone stream producing raw audio chunks at the
// device's native cadence. The chunk channel closes after Stop.
type Recorder interface {
	Chunks() <-chan []byte
	MIMEType() string
	BytesCaptured() int64
	Stop() error
}

// Opener acquires microphone streams. Acquisition failures are reported with
// faults.ErrPermissionDenied or faults.ErrDeviceUnavailable so callers can
// distinguish a refusal from a missing device.
type Opener interface {
	Open(ctx context.Context) (Recorder, error)
}

// OpenerFunc adapts a function to the Opener interface.
type OpenerFunc func(ctx context.Context) (Recorder, error)

func (f OpenerFunc) Open(ctx context.Context) (Recorder, error) {
	return f(ctx)
}
