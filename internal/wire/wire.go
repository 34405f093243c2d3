// Package wire defines the JSON message schema spoken over the WebSocket
// between the telephony relay and the agent service. Both sides import this
// package so the two binaries cannot drift apart.
package wire

import (
	"encoding/base64"
	"fmt"
)

// Message type discriminators.
const (
	// TypeAudioData carries caller audio from the relay to the agent.
	TypeAudioData = "audio_data"

	// TypeAudioResponse carries synthesized agent audio back to the relay.
	TypeAudioResponse = "audio_response"

	// TypeTranscript echoes an endpointed transcript to the relay for
	// monitoring. Informational; the relay ignores it.
	TypeTranscript = "transcript"

	// TypeInterrupt tells the relay the caller barged in: drop any buffered
	// playback immediately.
	TypeInterrupt = "interrupt"

	// TypeHangup signals call termination in either direction.
	TypeHangup = "hangup"
)

// FormatPCM16K identifies 16-bit signed little-endian mono PCM at 16 kHz,
// the only audio format carried on the wire.
const FormatPCM16K = "pcm16k"

// Message is one WebSocket JSON frame. Unused fields are omitted per type.
type Message struct {
	Type       string `json:"type"`
	Audio      string `json:"audio,omitempty"` // base64-encoded PCM
	Format     string `json:"format,omitempty"`
	SampleRate int    `json:"sample_rate,omitempty"`
	Text       string `json:"text,omitempty"`
	Role       string `json:"role,omitempty"`
}

// AudioData builds a TypeAudioData message from raw PCM.
func AudioData(pcm []byte) Message {
	return Message{
		Type:  TypeAudioData,
		Audio: base64.StdEncoding.EncodeToString(pcm),
	}
}

// AudioResponse builds a TypeAudioResponse message from raw PCM at the given
// sample rate.
func AudioResponse(pcm []byte, sampleRate int) Message {
	return Message{
		Type:       TypeAudioResponse,
		Audio:      base64.StdEncoding.EncodeToString(pcm),
		Format:     FormatPCM16K,
		SampleRate: sampleRate,
	}
}

// Transcript builds a TypeTranscript message.
func Transcript(role, text string) Message {
	return Message{Type: TypeTranscript, Role: role, Text: text}
}

// PCM decodes the base64 audio payload.
func (m Message) PCM() ([]byte, error) {
	pcm, err := base64.StdEncoding.DecodeString(m.Audio)
	if err != nil {
		return nil, fmt.Errorf("wire: decode %s audio: %w", m.Type, err)
	}
	return pcm, nil
}
