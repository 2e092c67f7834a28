package output

import (
	"encoding/json"
	"fmt"
	"io"
	"sync"

	"github.com/maksspace/audiotee/internal/audio"
	"github.com/maksspace/audiotee/internal/protocol"
	"github.com/maksspace/audiotee/internal/recorder"
)

// StreamWriter frames recorder output as protocol messages on a single
// io.Writer. Both recorders write through one mutex, so messages from the
// system and microphone streams interleave at message granularity, never
// mid-message.
type StreamWriter struct {
	mu      sync.Mutex
	w       io.Writer
	scratch []byte
}

// NewStreamWriter creates a stream writer on w. Typically w is stdout.
func NewStreamWriter(w io.Writer) *StreamWriter {
	return &StreamWriter{
		w:       w,
		scratch: make([]byte, 0, 64*1024),
	}
}

func sourceID(source string) uint16 {
	if source == recorder.SourceMic {
		return protocol.SourceMic
	}
	return protocol.SourceSystem
}

// writeMessage frames and writes one message under the lock.
func (s *StreamWriter) writeMessage(msgType uint8, flags uint8, source string, payload []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.scratch = protocol.AppendMessage(s.scratch[:0], msgType, flags, sourceID(source), payload)
	if _, err := s.w.Write(s.scratch); err != nil {
		return fmt.Errorf("write %s message: %w", source, err)
	}
	return nil
}

// HandleMetadata writes the stream description as a JSON payload.
func (s *StreamWriter) HandleMetadata(meta recorder.Metadata) error {
	payload, err := json.Marshal(meta)
	if err != nil {
		return fmt.Errorf("encode metadata: %w", err)
	}
	return s.writeMessage(protocol.MsgTypeMetadata, 0, meta.Source, payload)
}

// HandleStreamStart writes a payload-free stream start marker.
func (s *StreamWriter) HandleStreamStart(source string) error {
	return s.writeMessage(protocol.MsgTypeStreamStart, 0, source, nil)
}

// HandleAudioPacket writes one audio message. The final flush packet is
// flagged partial so consumers know it may be shorter than a full chunk.
func (s *StreamWriter) HandleAudioPacket(source string, pkt audio.Packet, partial bool) error {
	var flags uint8
	if partial {
		flags = protocol.FlagPartial
	}
	return s.writeMessage(protocol.MsgTypeAudio, flags, source, pkt.Data)
}

// HandleStreamStop writes a payload-free stream stop marker.
func (s *StreamWriter) HandleStreamStop(source string) error {
	return s.writeMessage(protocol.MsgTypeStreamStop, 0, source, nil)
}
