package relay

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/google/uuid"
)

// FrameType is the one-byte kind discriminator of an AudioSocket frame.
type FrameType byte

// AudioSocket frame types. Asterisk sends the session UUID first, then a
// steady stream of audio frames, and a hangup frame (or a closed socket)
// when the call ends.
const (
	FrameHangup FrameType = 0x00
	FrameUUID   FrameType = 0x01
	FrameAudio  FrameType = 0x10
)

const (
	// headerSize is the fixed frame header: type byte plus big-endian
	// uint16 payload length.
	headerSize = 3

	// maxPayload is the largest payload the length field can describe.
	maxPayload = 0xFFFF

	// AudioFrameBytes is one 20 ms frame of 8 kHz 16-bit mono PCM.
	AudioFrameBytes = 320
)

// Frame is one AudioSocket protocol frame.
type Frame struct {
	Type    FrameType
	Payload []byte
}

// ReadFrame reads one complete frame. Unknown frame types are returned as-is
// with their payload consumed, so callers can skip what they do not handle
// without losing stream alignment.
func ReadFrame(r io.Reader) (Frame, error) {
	var hdr [headerSize]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		if err == io.EOF {
			return Frame{}, io.EOF
		}
		return Frame{}, fmt.Errorf("relay: read frame header: %w", err)
	}

	f := Frame{Type: FrameType(hdr[0])}
	length := binary.BigEndian.Uint16(hdr[1:])
	if length == 0 {
		return f, nil
	}
	f.Payload = make([]byte, length)
	if _, err := io.ReadFull(r, f.Payload); err != nil {
		return Frame{}, fmt.Errorf("relay: read frame payload (type 0x%02x, %d bytes): %w", hdr[0], length, err)
	}
	return f, nil
}

// WriteFrame writes one complete frame.
func WriteFrame(w io.Writer, f Frame) error {
	if len(f.Payload) > maxPayload {
		return fmt.Errorf("relay: frame payload %d exceeds %d bytes", len(f.Payload), maxPayload)
	}
	buf := make([]byte, headerSize+len(f.Payload))
	buf[0] = byte(f.Type)
	binary.BigEndian.PutUint16(buf[1:], uint16(len(f.Payload)))
	copy(buf[headerSize:], f.Payload)
	if _, err := w.Write(buf); err != nil {
		return fmt.Errorf("relay: write frame: %w", err)
	}
	return nil
}

// ReadHandshake reads the opening UUID frame that identifies the call.
func ReadHandshake(r io.Reader) (uuid.UUID, error) {
	f, err := ReadFrame(r)
	if err != nil {
		return uuid.Nil, fmt.Errorf("relay: read handshake: %w", err)
	}
	if f.Type != FrameUUID {
		return uuid.Nil, fmt.Errorf("relay: handshake frame type 0x%02x, want 0x%02x", byte(f.Type), byte(FrameUUID))
	}
	id, err := uuid.FromBytes(f.Payload)
	if err != nil {
		return uuid.Nil, fmt.Errorf("relay: handshake UUID: %w", err)
	}
	return id, nil
}
