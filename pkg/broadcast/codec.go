package broadcast

import (
	"encoding/json"
	"fmt"

	"github.com/golang/snappy"
)

// Compression selects how network frames are encoded
type Compression string

const (
	CompressionNone   Compression = "none"
	CompressionSnappy Compression = "snappy"
)

// Frame header bytes. Decoders accept either, so tabs with different
// compression settings interoperate.
const (
	frameJSON   byte = 0x00
	frameSnappy byte = 0x01
)

// ParseCompression converts a config value to a Compression
func ParseCompression(s string) (Compression, error) {
	switch Compression(s) {
	case "", CompressionNone:
		return CompressionNone, nil
	case CompressionSnappy:
		return CompressionSnappy, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownCompression, s)
	}
}

// EncodeFrame renders msg as a network frame
func EncodeFrame(msg Message, c Compression) ([]byte, error) {
	if err := msg.Validate(); err != nil {
		return nil, err
	}
	body, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("failed to encode message: %w", err)
	}

	switch c {
	case "", CompressionNone:
		return append([]byte{frameJSON}, body...), nil
	case CompressionSnappy:
		return append([]byte{frameSnappy}, snappy.Encode(nil, body)...), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownCompression, c)
	}
}

// DecodeFrame parses a frame produced by EncodeFrame
func DecodeFrame(frame []byte) (Message, error) {
	if len(frame) == 0 {
		return Message{}, fmt.Errorf("%w: empty frame", ErrMalformedMessage)
	}

	body := frame[1:]
	switch frame[0] {
	case frameJSON:
	case frameSnappy:
		decoded, err := snappy.Decode(nil, body)
		if err != nil {
			return Message{}, fmt.Errorf("%w: %v", ErrMalformedMessage, err)
		}
		body = decoded
	default:
		return Message{}, fmt.Errorf("%w: frame header 0x%02x", ErrUnknownCompression, frame[0])
	}

	var msg Message
	if err := json.Unmarshal(body, &msg); err != nil {
		return Message{}, fmt.Errorf("%w: %w", ErrMalformedMessage, err)
	}
	if err := msg.Validate(); err != nil {
		return Message{}, err
	}
	return msg, nil
}
