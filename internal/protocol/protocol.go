package protocol

import (
	"encoding/binary"
	"fmt"
)

// Protocol constants. All multi-byte fields are little-endian, matching the
// byte order of the audio payloads themselves.
const (
	// Message types
	MsgTypeMetadata    = 0x01
	MsgTypeStreamStart = 0x02
	MsgTypeAudio       = 0x03
	MsgTypeStreamStop  = 0x04

	// Source identifiers
	SourceSystem = 0x01
	SourceMic    = 0x02

	// Flags
	FlagPartial = 0x01 // final flush packet, may be shorter than one chunk

	// HeaderSize is the fixed message header size: 1 + 1 + 2 + 4 bytes.
	HeaderSize = 8
)

// Header represents the 8-byte message header.
// Layout: [MsgType:1][Flags:1][SourceID:2][PayloadLen:4]
type Header struct {
	MsgType    uint8  // message type, MsgType*
	Flags      uint8  // FlagPartial on the final flush packet
	SourceID   uint16 // SourceSystem or SourceMic
	PayloadLen uint32 // payload byte count (0 for start/stop)
}

// AppendMessage appends a complete framed message (header + payload) to dst
// and returns the extended slice. Payload may be nil for start/stop
// messages.
func AppendMessage(dst []byte, msgType uint8, flags uint8, sourceID uint16, payload []byte) []byte {
	dst = append(dst, msgType, flags)
	dst = binary.LittleEndian.AppendUint16(dst, sourceID)
	dst = binary.LittleEndian.AppendUint32(dst, uint32(len(payload)))
	return append(dst, payload...)
}

// ParseHeader parses the 8-byte message header.
func ParseHeader(data []byte) (*Header, error) {
	if len(data) < HeaderSize {
		return nil, fmt.Errorf("header too short: expected %d bytes, got %d", HeaderSize, len(data))
	}

	header := &Header{
		MsgType:    data[0],
		Flags:      data[1],
		SourceID:   binary.LittleEndian.Uint16(data[2:4]),
		PayloadLen: binary.LittleEndian.Uint32(data[4:8]),
	}

	if err := ValidateHeader(header); err != nil {
		return nil, fmt.Errorf("invalid header: %w", err)
	}

	return header, nil
}

// ValidateHeader validates the message header fields
func ValidateHeader(header *Header) error {
	if !IsValidMsgType(header.MsgType) {
		return fmt.Errorf("unknown message type: 0x%02x", header.MsgType)
	}

	if !IsValidSource(header.SourceID) {
		return fmt.Errorf("unknown source: 0x%04x", header.SourceID)
	}

	switch header.MsgType {
	case MsgTypeStreamStart, MsgTypeStreamStop:
		if header.PayloadLen != 0 {
			return fmt.Errorf("%s carries no payload, got %d bytes",
				msgTypeString(header.MsgType), header.PayloadLen)
		}
	case MsgTypeMetadata:
		if header.PayloadLen == 0 {
			return fmt.Errorf("metadata message requires a payload")
		}
	}

	return nil
}

// IsValidMsgType checks if the message type is valid
func IsValidMsgType(t uint8) bool {
	return t >= MsgTypeMetadata && t <= MsgTypeStreamStop
}

// IsValidSource checks if the source identifier is valid
func IsValidSource(s uint16) bool {
	return s == SourceSystem || s == SourceMic
}

// String returns a human-readable representation of the header
func (h *Header) String() string {
	return fmt.Sprintf("Header{Type:%s, Source:%s, Flags:0x%02x, PayloadLen:%d}",
		msgTypeString(h.MsgType), sourceString(h.SourceID), h.Flags, h.PayloadLen)
}

func msgTypeString(t uint8) string {
	switch t {
	case MsgTypeMetadata:
		return "Metadata"
	case MsgTypeStreamStart:
		return "StreamStart"
	case MsgTypeAudio:
		return "Audio"
	case MsgTypeStreamStop:
		return "StreamStop"
	default:
		return fmt.Sprintf("Unknown(0x%02x)", t)
	}
}

func sourceString(s uint16) string {
	switch s {
	case SourceSystem:
		return "System"
	case SourceMic:
		return "Mic"
	default:
		return fmt.Sprintf("Unknown(0x%04x)", s)
	}
}
