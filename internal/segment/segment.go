// Package segment defines the finished audio unit handed from capture to
// transcription. A segment is owned by exactly one component at a time;
// ownership transfers capture -> engine -> queue and is never shared.
package segment

import (
	"time"

	"github.com/google/uuid"
)

// Segment is one immutable unit of recorded audio.
type Segment struct {
	ID          string
	Blob        []byte
	MIMEType    string
	DurationMS  int64
	CreatedAt   time.Time
	SourceState string
}

// New assembles a segment from flushed capture output.
func New(blob []byte, mimeType string, duration time.Duration, sourceState string) Segment {
	return Segment{
		ID:          uuid.NewString(),
		Blob:        blob,
		MIMEType:    mimeType,
		DurationMS:  duration.Milliseconds(),
		CreatedAt:   time.Now(),
		SourceState: sourceState,
	}
}

// Duration returns the recorded length as a time.Duration.
func (s Segment) Duration() time.Duration {
	return time.Duration(s.DurationMS) * time.Millisecond
}

// Empty reports whether the segment carries no audio payload.
func (s Segment) Empty() bool {
	return len(s.Blob) == 0
}
