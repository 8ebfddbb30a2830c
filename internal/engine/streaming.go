package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/gorilla/websocket"

	"github.com/ndisuite/voicepipe/internal/faults"
	"github.com/ndisuite/voicepipe/internal/method"
	"github.com/ndisuite/voicepipe/internal/segment"
	"github.com/ndisuite/voicepipe/internal/transcript"
)

const (
	defaultConnectTimeout = 5 * time.Second
	streamChunkBytes      = 32 * 1024
)

// clientFrame is the client-to-server control framing. Raw audio travels as
// binary messages between the config and end frames.
type clientFrame struct {
	Type       string `json:"type"`
	Language   string `json:"language,omitempty"`
	SampleRate int    `json:"sampleRate,omitempty"`
}

// serverFrame is the server-to-client framing.
type serverFrame struct {
	Type       string  `json:"type"`
	Text       string  `json:"text,omitempty"`
	Confidence float64 `json:"confidence,omitempty"`
	Message    string  `json:"message,omitempty"`
}

// StreamingAdapter transcribes over a duplex websocket: one config frame,
// the raw audio, an end frame, then transcription frames until complete.
type StreamingAdapter struct {
	URL            string
	SampleRate     int
	ConnectTimeout time.Duration
	AttemptTimeout time.Duration
}

func (a StreamingAdapter) Name() method.Method { return method.Streaming }

// Timeout bounds one full attempt; the connect timeout is enforced
// separately by the dialer.
func (a StreamingAdapter) Timeout(seg segment.Segment) time.Duration {
	if a.AttemptTimeout > 0 {
		return a.AttemptTimeout
	}
	// Enough to ship the audio and let the server finish decoding.
	return seg.Duration() + 30*time.Second
}

// Transcribe runs one duplex exchange. Socket closure before a complete
// frame is a protocol failure; an error frame is a terminal failure.
func (a StreamingAdapter) Transcribe(ctx context.Context, seg segment.Segment, language string) (string, float64, error) {
	connectTimeout := a.ConnectTimeout
	if connectTimeout <= 0 {
		connectTimeout = defaultConnectTimeout
	}

	dialer := websocket.Dialer{HandshakeTimeout: connectTimeout}
	conn, _, err := dialer.DialContext(ctx, a.URL, nil)
	if err != nil {
		return "", 0, fmt.Errorf("%w: dial %s: %w", faults.ErrNetworkTimeout, a.URL, err)
	}
	defer conn.Close()

	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetReadDeadline(deadline)
		_ = conn.SetWriteDeadline(deadline)
	}

	cfg := clientFrame{Type: "config", Language: language, SampleRate: a.SampleRate}
	if err := writeJSONFrame(conn, cfg); err != nil {
		return "", 0, faults.Protocol("send config frame: %v", err)
	}

	for offset := 0; offset < len(seg.Blob); offset += streamChunkBytes {
		end := offset + streamChunkBytes
		if end > len(seg.Blob) {
			end = len(seg.Blob)
		}
		if err := conn.WriteMessage(websocket.BinaryMessage, seg.Blob[offset:end]); err != nil {
			return "", 0, fmt.Errorf("%w: send audio: %w", faults.ErrNetworkTimeout, err)
		}
	}

	if err := writeJSONFrame(conn, clientFrame{Type: "end"}); err != nil {
		return "", 0, faults.Protocol("send end frame: %v", err)
	}

	var segments []string
	for {
		select {
		case <-ctx.Done():
			return "", 0, ctx.Err()
		default:
		}

		_, payload, err := conn.ReadMessage()
		if err != nil {
			return "", 0, faults.Protocol("socket closed before complete frame: %v", err)
		}

		var frame serverFrame
		if err := json.Unmarshal(payload, &frame); err != nil {
			return "", 0, faults.Protocol("malformed server frame: %v", err)
		}

		switch frame.Type {
		case "transcription":
			if frame.Text != "" {
				segments = append(segments, frame.Text)
			}
		case "complete":
			text := transcript.Assemble(segments, transcript.Options{CapitalizeSentences: true})
			confidence := frame.Confidence
			if confidence <= 0 {
				confidence = method.Confidence(method.Streaming)
			}
			if text == "" {
				return "", 0, fmt.Errorf("stream completed with no transcription")
			}
			return text, confidence, nil
		case "error":
			return "", 0, faults.Protocol("server error: %s", frame.Message)
		default:
			return "", 0, faults.Protocol("unexpected frame type %q", frame.Type)
		}
	}
}

func writeJSONFrame(conn *websocket.Conn, frame clientFrame) error {
	payload, err := json.Marshal(frame)
	if err != nil {
		return err
	}
	return conn.WriteMessage(websocket.TextMessage, payload)
}
