// Package whisper provides a whisper.cpp-backed STT transcriber.
//
// It connects to a running whisper-server binary (which exposes a REST API at
// POST /inference), wraps each utterance in a RIFF/WAV container, and submits
// it as a batch inference request. whisper.cpp is a batch engine, which fits
// the pipeline's utterance-at-a-time transcription model exactly.
//
// Usage:
//
//	t, err := whisper.New("http://localhost:8080", whisper.WithLanguage("en"))
//	text, err := t.Transcribe(ctx, utterancePCM)
package whisper

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/AmaanP314/AI-Caller-Agent/pkg/provider/stt"
)

const (
	// bitsPerSample is fixed at 16 for the 16-bit signed little-endian PCM
	// audio that whisper.cpp expects.
	bitsPerSample = 16

	defaultLanguage   = "en"
	defaultSampleRate = 16000
	defaultTimeout    = 30 * time.Second
)

// Compile-time assertion that Transcriber implements stt.Transcriber.
var _ stt.Transcriber = (*Transcriber)(nil)

// Option is a functional option for configuring a Transcriber.
type Option func(*Transcriber)

// WithModel sets the model identifier forwarded to the whisper.cpp server
// (e.g., "base.en", "small"). When empty the server uses whichever model it
// was started with — this is the default.
func WithModel(model string) Option {
	return func(t *Transcriber) {
		t.model = model
	}
}

// WithLanguage sets the BCP-47 language code sent to the whisper.cpp server
// (e.g., "en", "de", "fr"). Defaults to "en".
func WithLanguage(lang string) Option {
	return func(t *Transcriber) {
		t.language = lang
	}
}

// WithSampleRate sets the sample rate in Hz of the PCM passed to Transcribe,
// used when building the WAV header. Defaults to 16000.
func WithSampleRate(rate int) Option {
	return func(t *Transcriber) {
		t.sampleRate = rate
	}
}

// WithTimeout sets the per-request HTTP timeout. Defaults to 30 s.
func WithTimeout(d time.Duration) Option {
	return func(t *Transcriber) {
		t.httpClient.Timeout = d
	}
}

// Transcriber implements stt.Transcriber backed by a whisper.cpp HTTP server.
// It is safe for concurrent use; each Transcribe call is an independent request.
type Transcriber struct {
	serverURL  string
	model      string
	language   string
	sampleRate int
	httpClient *http.Client
}

// New creates a Transcriber that connects to the whisper.cpp HTTP server at
// serverURL (e.g., "http://localhost:8080"). serverURL must be non-empty.
func New(serverURL string, opts ...Option) (*Transcriber, error) {
	if serverURL == "" {
		return nil, errors.New("whisper: serverURL must not be empty")
	}
	t := &Transcriber{
		serverURL:  strings.TrimSuffix(serverURL, "/"),
		language:   defaultLanguage,
		sampleRate: defaultSampleRate,
		httpClient: &http.Client{Timeout: defaultTimeout},
	}
	for _, o := range opts {
		o(t)
	}
	return t, nil
}

// Transcribe encodes pcm as a WAV file and POSTs it to the whisper.cpp
// /inference endpoint as multipart/form-data.
func (t *Transcriber) Transcribe(ctx context.Context, pcm []byte) (string, error) {
	if len(pcm) == 0 {
		return "", nil
	}

	wav := encodeWAV(pcm, t.sampleRate, 1)

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)

	fw, err := mw.CreateFormFile("file", "audio.wav")
	if err != nil {
		return "", fmt.Errorf("whisper: create form file: %w", err)
	}
	if _, err := fw.Write(wav); err != nil {
		return "", fmt.Errorf("whisper: write wav data: %w", err)
	}

	if t.language != "" {
		if err := mw.WriteField("language", t.language); err != nil {
			return "", fmt.Errorf("whisper: write language field: %w", err)
		}
	}
	if t.model != "" {
		if err := mw.WriteField("model", t.model); err != nil {
			return "", fmt.Errorf("whisper: write model field: %w", err)
		}
	}

	if err := mw.Close(); err != nil {
		return "", fmt.Errorf("whisper: close multipart writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.serverURL+"/inference", &body)
	if err != nil {
		return "", fmt.Errorf("whisper: create request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("whisper: http request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("whisper: server returned HTTP %d", resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("whisper: read response body: %w", err)
	}

	var result struct {
		Text string `json:"text"`
	}
	if err := json.Unmarshal(data, &result); err != nil {
		return "", fmt.Errorf("whisper: parse JSON response: %w", err)
	}

	return strings.TrimSpace(result.Text), nil
}

// encodeWAV wraps raw 16-bit signed little-endian PCM data in a standard
// RIFF/WAV container suitable for direct inclusion in a multipart upload.
func encodeWAV(pcm []byte, sampleRate, channels int) []byte {
	byteRate := sampleRate * channels * bitsPerSample / 8
	blockAlign := channels * bitsPerSample / 8
	dataSize := len(pcm)

	buf := make([]byte, 44+dataSize)

	// RIFF chunk descriptor
	copy(buf[0:4], "RIFF")
	binary.LittleEndian.PutUint32(buf[4:8], uint32(36+dataSize)) // file size − 8
	copy(buf[8:12], "WAVE")

	// fmt sub-chunk
	copy(buf[12:16], "fmt ")
	binary.LittleEndian.PutUint32(buf[16:20], 16)                 // sub-chunk size (PCM)
	binary.LittleEndian.PutUint16(buf[20:22], 1)                  // audio format: PCM
	binary.LittleEndian.PutUint16(buf[22:24], uint16(channels))   // num channels
	binary.LittleEndian.PutUint32(buf[24:28], uint32(sampleRate)) // sample rate
	binary.LittleEndian.PutUint32(buf[28:32], uint32(byteRate))   // byte rate
	binary.LittleEndian.PutUint16(buf[32:34], uint16(blockAlign)) // block align
	binary.LittleEndian.PutUint16(buf[34:36], bitsPerSample)      // bits per sample

	// data sub-chunk
	copy(buf[36:40], "data")
	binary.LittleEndian.PutUint32(buf[40:44], uint32(dataSize))
	copy(buf[44:], pcm)

	return buf
}
