// Package coqui provides a Coqui TTS-backed synthesizer that connects to
// either a Coqui XTTS v2 server or a standard Coqui TTS server via its REST
// API. It implements the tts.Synthesizer interface.
//
// Two API modes are supported:
//
//   - APIModeStandard (default): targets the standard Coqui TTS server
//     (ghcr.io/coqui-ai/tts-cpu). Synthesis is performed via GET /api/tts
//     with URL query parameters.
//
//   - APIModeXTTS: targets the Coqui XTTS v2 API server. Synthesis is
//     performed via POST /tts_to_audio/ with a JSON body.
//
// Both servers return a WAV file per request; the synthesizer strips the
// container and, when the server's native rate differs from the configured
// output rate, resamples the PCM before returning it.
//
// Typical usage:
//
//	s, err := coqui.New("http://localhost:5002",
//	    coqui.WithLanguage("en"),
//	    coqui.WithOutputSampleRate(16000),
//	)
//	pcm, err := s.Synthesize(ctx, "Hi, this is Jane.")
package coqui

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/AmaanP314/AI-Caller-Agent/pkg/audio"
	"github.com/AmaanP314/AI-Caller-Agent/pkg/provider/tts"
)

// Compile-time interface assertion.
var _ tts.Synthesizer = (*Synthesizer)(nil)

const (
	defaultLanguage   = "en"
	defaultTimeout    = 30 * time.Second
	defaultOutputRate = 16000

	ttsEndpoint    = "/tts_to_audio/"
	apiTTSEndpoint = "/api/tts"
)

// APIMode selects which Coqui server API the synthesizer will target.
type APIMode string

const (
	// APIModeXTTS targets the Coqui XTTS v2 API server (/tts_to_audio/).
	APIModeXTTS APIMode = "xtts"

	// APIModeStandard targets the standard Coqui TTS server (/api/tts).
	// This is the default mode.
	APIModeStandard APIMode = "standard"
)

// Option is a functional option for configuring a Synthesizer.
type Option func(*Synthesizer)

// WithLanguage sets the BCP-47 language code sent to the TTS server (e.g.,
// "en", "de", "fr"). Defaults to "en".
func WithLanguage(lang string) Option {
	return func(s *Synthesizer) {
		s.language = lang
	}
}

// WithSpeaker sets the speaker/voice identifier. For the standard server this
// is the speaker_id query parameter; for XTTS it is the studio speaker name.
func WithSpeaker(speaker string) Option {
	return func(s *Synthesizer) {
		s.speaker = speaker
	}
}

// WithTimeout sets the per-request HTTP timeout. Defaults to 30 s.
func WithTimeout(d time.Duration) Option {
	return func(s *Synthesizer) {
		s.httpClient.Timeout = d
	}
}

// WithAPIMode sets the server API mode. Use APIModeStandard (default) for the
// standard Coqui TTS Docker image or APIModeXTTS for the XTTS v2 API server.
func WithAPIMode(mode APIMode) Option {
	return func(s *Synthesizer) {
		s.apiMode = mode
	}
}

// WithOutputSampleRate sets the sample rate of the PCM returned by Synthesize.
// Audio arriving from the server at a different rate is resampled. Defaults
// to 16000.
func WithOutputSampleRate(rate int) Option {
	return func(s *Synthesizer) {
		s.outputRate = rate
	}
}

// Synthesizer implements tts.Synthesizer backed by a Coqui TTS server.
// It is safe for concurrent use; each Synthesize call is an independent request.
type Synthesizer struct {
	serverURL  string
	language   string
	speaker    string
	apiMode    APIMode
	outputRate int
	httpClient *http.Client
}

// New creates a Synthesizer that targets the TTS server at serverURL
// (e.g., "http://localhost:5002"). serverURL must be non-empty.
func New(serverURL string, opts ...Option) (*Synthesizer, error) {
	if serverURL == "" {
		return nil, errors.New("coqui: serverURL must not be empty")
	}
	s := &Synthesizer{
		serverURL:  strings.TrimSuffix(serverURL, "/"),
		language:   defaultLanguage,
		apiMode:    APIModeStandard,
		outputRate: defaultOutputRate,
		httpClient: &http.Client{Timeout: defaultTimeout},
	}
	for _, o := range opts {
		o(s)
	}
	return s, nil
}

// SampleRate implements tts.Synthesizer.
func (s *Synthesizer) SampleRate() int { return s.outputRate }

// Synthesize implements tts.Synthesizer.
func (s *Synthesizer) Synthesize(ctx context.Context, text string) ([]byte, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, nil
	}

	var (
		wav []byte
		err error
	)
	switch s.apiMode {
	case APIModeXTTS:
		wav, err = s.synthesizeXTTS(ctx, text)
	default:
		wav, err = s.synthesizeStandard(ctx, text)
	}
	if err != nil {
		return nil, err
	}

	pcm, nativeRate, err := decodeWAV(wav)
	if err != nil {
		return nil, fmt.Errorf("coqui: decode response: %w", err)
	}
	if nativeRate != s.outputRate {
		pcm = audio.NewResampler(nativeRate, s.outputRate).Resample(pcm)
	}
	return pcm, nil
}

// synthesizeStandard performs a GET /api/tts request against the standard
// Coqui TTS server.
func (s *Synthesizer) synthesizeStandard(ctx context.Context, text string) ([]byte, error) {
	q := url.Values{}
	q.Set("text", text)
	if s.speaker != "" {
		q.Set("speaker_id", s.speaker)
	}
	if s.language != "" {
		q.Set("language_id", s.language)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.serverURL+apiTTSEndpoint+"?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("coqui: create request: %w", err)
	}
	return s.do(req)
}

// synthesizeXTTS performs a POST /tts_to_audio/ request against the XTTS v2
// API server.
func (s *Synthesizer) synthesizeXTTS(ctx context.Context, text string) ([]byte, error) {
	payload, err := json.Marshal(map[string]string{
		"text":        text,
		"speaker_wav": s.speaker,
		"language":    s.language,
	})
	if err != nil {
		return nil, fmt.Errorf("coqui: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.serverURL+ttsEndpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("coqui: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return s.do(req)
}

func (s *Synthesizer) do(req *http.Request) ([]byte, error) {
	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("coqui: http request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("coqui: server returned HTTP %d", resp.StatusCode)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("coqui: read response body: %w", err)
	}
	return data, nil
}

// decodeWAV extracts the raw PCM payload and sample rate from a RIFF/WAV
// container. Only 16-bit mono PCM is accepted; anything else is an error
// because the rest of the pipeline assumes that format.
func decodeWAV(data []byte) (pcm []byte, sampleRate int, err error) {
	if len(data) < 44 || string(data[0:4]) != "RIFF" || string(data[8:12]) != "WAVE" {
		return nil, 0, errors.New("not a RIFF/WAVE file")
	}

	// Walk the sub-chunks; fmt and data are not guaranteed to be adjacent.
	var (
		haveFmt  bool
		format   uint16
		channels uint16
		bits     uint16
	)
	off := 12
	for off+8 <= len(data) {
		id := string(data[off : off+4])
		size := int(binary.LittleEndian.Uint32(data[off+4 : off+8]))
		body := off + 8
		if body+size > len(data) {
			size = len(data) - body
		}

		switch id {
		case "fmt ":
			if size < 16 {
				return nil, 0, errors.New("fmt chunk too short")
			}
			format = binary.LittleEndian.Uint16(data[body : body+2])
			channels = binary.LittleEndian.Uint16(data[body+2 : body+4])
			sampleRate = int(binary.LittleEndian.Uint32(data[body+4 : body+8]))
			bits = binary.LittleEndian.Uint16(data[body+14 : body+16])
			haveFmt = true
		case "data":
			if !haveFmt {
				return nil, 0, errors.New("data chunk before fmt chunk")
			}
			if format != 1 || bits != 16 {
				return nil, 0, fmt.Errorf("unsupported format (fmt=%d, bits=%d)", format, bits)
			}
			if channels != 1 {
				return nil, 0, fmt.Errorf("unsupported channel count %d", channels)
			}
			return data[body : body+size], sampleRate, nil
		}

		// Chunks are word-aligned.
		off = body + size + size%2
	}
	return nil, 0, errors.New("no data chunk found")
}
