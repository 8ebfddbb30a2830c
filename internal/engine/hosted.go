package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/ndisuite/voicepipe/internal/faults"
	"github.com/ndisuite/voicepipe/internal/method"
	"github.com/ndisuite/voicepipe/internal/segment"
)

const defaultHostedTimeout = 30 * time.Second

// HostedAdapter uploads the finished segment to a hosted transcription API
// as one multipart request and reads back the transcribed text.
type HostedAdapter struct {
	URL            string
	APIKey         string
	Model          string
	Prompt         string
	RequestTimeout time.Duration

	// Client may be overridden in tests; nil uses http.DefaultClient.
	Client *http.Client
}

func (a HostedAdapter) Name() method.Method { return method.HostedAPI }

func (a HostedAdapter) Timeout(segment.Segment) time.Duration {
	if a.RequestTimeout > 0 {
		return a.RequestTimeout
	}
	return defaultHostedTimeout
}

// hostedResponse covers structured success bodies; plain-text bodies are
// accepted as-is.
type hostedResponse struct {
	Text  string `json:"text"`
	Error string `json:"error"`
}

// Transcribe posts fields file, model, language, and an optional domain
// prompt hint. Non-2xx responses fail carrying the provider's message.
func (a HostedAdapter) Transcribe(ctx context.Context, seg segment.Segment, language string) (string, float64, error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)

	if err := mw.WriteField("model", a.Model); err != nil {
		return "", 0, fmt.Errorf("build request: %w", err)
	}
	if language != "" {
		if err := mw.WriteField("language", language); err != nil {
			return "", 0, fmt.Errorf("build request: %w", err)
		}
	}
	if a.Prompt != "" {
		if err := mw.WriteField("prompt", a.Prompt); err != nil {
			return "", 0, fmt.Errorf("build request: %w", err)
		}
	}

	fw, err := mw.CreateFormFile("file", seg.ID+".pcm")
	if err != nil {
		return "", 0, fmt.Errorf("build request: %w", err)
	}
	if _, err := fw.Write(seg.Blob); err != nil {
		return "", 0, fmt.Errorf("build request: %w", err)
	}
	if err := mw.Close(); err != nil {
		return "", 0, fmt.Errorf("build request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.URL, &body)
	if err != nil {
		return "", 0, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	if a.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+a.APIKey)
	}

	client := a.Client
	if client == nil {
		client = http.DefaultClient
	}

	resp, err := client.Do(req)
	if err != nil {
		return "", 0, fmt.Errorf("%w: %w", faults.ErrNetworkTimeout, err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", 0, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", 0, faults.Protocol("hosted API %d: %s", resp.StatusCode, providerMessage(payload))
	}

	text := strings.TrimSpace(string(payload))
	if strings.HasPrefix(text, "{") {
		var parsed hostedResponse
		if err := json.Unmarshal(payload, &parsed); err != nil {
			return "", 0, faults.Protocol("malformed hosted API body: %v", err)
		}
		text = strings.TrimSpace(parsed.Text)
	}
	if text == "" {
		return "", 0, faults.Protocol("hosted API returned no text")
	}
	return text, method.Confidence(method.HostedAPI), nil
}

// providerMessage extracts the provider's error string from a failure body.
func providerMessage(payload []byte) string {
	var parsed hostedResponse
	if err := json.Unmarshal(payload, &parsed); err == nil && parsed.Error != "" {
		return parsed.Error
	}
	msg := strings.TrimSpace(string(payload))
	if msg == "" {
		return "no error detail"
	}
	return msg
}
