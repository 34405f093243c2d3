// Package silero provides a Silero VAD-backed detector that connects to a
// running silero-vad sidecar over HTTP. The sidecar wraps the ONNX model and
// exposes a single scoring endpoint at POST /score that accepts one raw PCM
// frame and returns a speech probability.
//
// Usage:
//
//	d, err := silero.New("http://localhost:9090")
//	p, err := d.Score(ctx, frame)
package silero

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/AmaanP314/AI-Caller-Agent/pkg/provider/vad"
)

const (
	scoreEndpoint  = "/score"
	defaultTimeout = 5 * time.Second
)

// Compile-time interface assertion.
var _ vad.Detector = (*Detector)(nil)

// Option is a functional option for configuring a Detector.
type Option func(*Detector)

// WithTimeout sets the per-request HTTP timeout. Scoring happens once per
// 32 ms frame, so the default is deliberately short (5 s) — a sidecar slower
// than that is effectively down.
func WithTimeout(d time.Duration) Option {
	return func(det *Detector) {
		det.httpClient.Timeout = d
	}
}

// Detector implements vad.Detector backed by a silero-vad HTTP sidecar.
// It is safe for concurrent use; each Score call is an independent request.
type Detector struct {
	serverURL  string
	httpClient *http.Client
}

// New creates a Detector that connects to the silero-vad sidecar at serverURL
// (e.g., "http://localhost:9090"). serverURL must be non-empty.
func New(serverURL string, opts ...Option) (*Detector, error) {
	if serverURL == "" {
		return nil, errors.New("silero: serverURL must not be empty")
	}
	d := &Detector{
		serverURL:  strings.TrimSuffix(serverURL, "/"),
		httpClient: &http.Client{Timeout: defaultTimeout},
	}
	for _, o := range opts {
		o(d)
	}
	return d, nil
}

// Score implements vad.Detector.
func (d *Detector) Score(ctx context.Context, frame []byte) (float64, error) {
	if len(frame) != vad.FrameBytes {
		return 0, fmt.Errorf("silero: frame must be %d bytes, got %d", vad.FrameBytes, len(frame))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.serverURL+scoreEndpoint, bytes.NewReader(frame))
	if err != nil {
		return 0, fmt.Errorf("silero: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/octet-stream")

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("silero: http request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("silero: server returned HTTP %d", resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, fmt.Errorf("silero: read response body: %w", err)
	}

	var result struct {
		Probability float64 `json:"probability"`
	}
	if err := json.Unmarshal(data, &result); err != nil {
		return 0, fmt.Errorf("silero: parse JSON response: %w", err)
	}
	if result.Probability < 0 || result.Probability > 1 {
		return 0, fmt.Errorf("silero: probability %v out of range", result.Probability)
	}
	return result.Probability, nil
}
