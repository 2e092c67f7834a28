package output

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/maksspace/audiotee/internal/audio"
	"github.com/maksspace/audiotee/internal/protocol"
	"github.com/maksspace/audiotee/internal/recorder"
)

// parseMessages walks a captured stream and returns every header with its
// payload.
func parseMessages(t *testing.T, data []byte) []struct {
	header  *protocol.Header
	payload []byte
} {
	t.Helper()
	var msgs []struct {
		header  *protocol.Header
		payload []byte
	}
	for len(data) > 0 {
		h, err := protocol.ParseHeader(data)
		if err != nil {
			t.Fatalf("parse header: %v", err)
		}
		if err := protocol.ValidateHeader(h); err != nil {
			t.Fatalf("validate header: %v", err)
		}
		end := protocol.HeaderSize + int(h.PayloadLen)
		if end > len(data) {
			t.Fatalf("truncated message: need %d bytes, have %d", end, len(data))
		}
		msgs = append(msgs, struct {
			header  *protocol.Header
			payload []byte
		}{h, data[protocol.HeaderSize:end]})
		data = data[end:]
	}
	return msgs
}

func TestStreamWriterFullSession(t *testing.T) {
	var buf bytes.Buffer
	w := NewStreamWriter(&buf)

	meta := recorder.Metadata{
		Source:        recorder.SourceSystem,
		SampleRate:    16000,
		Channels:      1,
		BitsPerSample: 16,
		ChunkDuration: 0.2,
	}
	if err := w.HandleMetadata(meta); err != nil {
		t.Fatalf("HandleMetadata: %v", err)
	}
	if err := w.HandleStreamStart(recorder.SourceSystem); err != nil {
		t.Fatalf("HandleStreamStart: %v", err)
	}
	pktData := []byte{1, 2, 3, 4}
	pkt := audio.Packet{Data: pktData}
	if err := w.HandleAudioPacket(recorder.SourceSystem, pkt, false); err != nil {
		t.Fatalf("HandleAudioPacket: %v", err)
	}
	if err := w.HandleAudioPacket(recorder.SourceSystem, pkt, true); err != nil {
		t.Fatalf("HandleAudioPacket partial: %v", err)
	}
	if err := w.HandleStreamStop(recorder.SourceSystem); err != nil {
		t.Fatalf("HandleStreamStop: %v", err)
	}

	msgs := parseMessages(t, buf.Bytes())
	if len(msgs) != 5 {
		t.Fatalf("message count = %d, want 5", len(msgs))
	}

	wantTypes := []uint8{
		protocol.MsgTypeMetadata,
		protocol.MsgTypeStreamStart,
		protocol.MsgTypeAudio,
		protocol.MsgTypeAudio,
		protocol.MsgTypeStreamStop,
	}
	for i, m := range msgs {
		if m.header.MsgType != wantTypes[i] {
			t.Errorf("message %d type = 0x%02x, want 0x%02x", i, m.header.MsgType, wantTypes[i])
		}
		if m.header.SourceID != protocol.SourceSystem {
			t.Errorf("message %d source = %d, want system", i, m.header.SourceID)
		}
	}

	var gotMeta recorder.Metadata
	if err := json.Unmarshal(msgs[0].payload, &gotMeta); err != nil {
		t.Fatalf("decode metadata payload: %v", err)
	}
	if gotMeta != meta {
		t.Errorf("metadata roundtrip = %+v, want %+v", gotMeta, meta)
	}

	if !bytes.Equal(msgs[2].payload, pktData) {
		t.Errorf("audio payload = %v, want %v", msgs[2].payload, pktData)
	}
	if msgs[2].header.Flags != 0 {
		t.Errorf("full chunk flags = 0x%02x, want 0", msgs[2].header.Flags)
	}
	if msgs[3].header.Flags != protocol.FlagPartial {
		t.Errorf("flush packet flags = 0x%02x, want FlagPartial", msgs[3].header.Flags)
	}
}

func TestStreamWriterSourceRouting(t *testing.T) {
	var buf bytes.Buffer
	w := NewStreamWriter(&buf)

	pkt := audio.Packet{Data: []byte{9}}
	if err := w.HandleAudioPacket(recorder.SourceSystem, pkt, false); err != nil {
		t.Fatal(err)
	}
	if err := w.HandleAudioPacket(recorder.SourceMic, pkt, false); err != nil {
		t.Fatal(err)
	}

	msgs := parseMessages(t, buf.Bytes())
	if msgs[0].header.SourceID != protocol.SourceSystem {
		t.Errorf("first message source = %d, want system", msgs[0].header.SourceID)
	}
	if msgs[1].header.SourceID != protocol.SourceMic {
		t.Errorf("second message source = %d, want mic", msgs[1].header.SourceID)
	}
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) {
	return 0, bytes.ErrTooLarge
}

func TestStreamWriterPropagatesWriteErrors(t *testing.T) {
	w := NewStreamWriter(failingWriter{})
	err := w.HandleAudioPacket(recorder.SourceSystem, audio.Packet{Data: []byte{1}}, false)
	if err == nil {
		t.Error("write failure not propagated")
	}
}
