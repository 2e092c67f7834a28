package audio

import (
	"bytes"
	"testing"
)

func float32Mono48k() Format {
	return Format{SampleRate: 48000, Channels: 1, BitsPerSample: 32, Float: true}
}

func TestNewChunkBufferChunkSize(t *testing.T) {
	tests := []struct {
		name     string
		format   Format
		duration float64
		want     int
	}{
		{
			name:     "0.2s mono 32-bit float at 48kHz",
			format:   float32Mono48k(),
			duration: 0.2,
			want:     38400, // 48000 * 0.2 * 4
		},
		{
			name:     "0.1s stereo 16-bit int at 16kHz",
			format:   Format{SampleRate: 16000, Channels: 2, BitsPerSample: 16},
			duration: 0.1,
			want:     6400, // 16000 * 0.1 * 4
		},
		{
			name:     "duration rounds down to a whole frame",
			format:   Format{SampleRate: 44100, Channels: 2, BitsPerSample: 16},
			duration: 0.333,
			want:     14685 * 4, // int(44100*0.333) frames * 4 bytes
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := NewChunkBuffer(tt.format, tt.duration)
			if got := buf.ChunkBytes(); got != tt.want {
				t.Errorf("ChunkBytes() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestDrainExactChunk(t *testing.T) {
	buf := NewChunkBuffer(float32Mono48k(), 0.2)

	buf.Append(make([]byte, 38400))
	packets := buf.DrainChunks()

	if len(packets) != 1 {
		t.Fatalf("expected 1 packet, got %d", len(packets))
	}
	if len(packets[0].Data) != 38400 {
		t.Errorf("packet size = %d, want 38400", len(packets[0].Data))
	}
	if buf.Pending() != 0 {
		t.Errorf("pending = %d after exact drain, want 0", buf.Pending())
	}
}

func TestDrainOneByteShort(t *testing.T) {
	buf := NewChunkBuffer(float32Mono48k(), 0.2)

	buf.Append(make([]byte, 38399))
	if packets := buf.DrainChunks(); len(packets) != 0 {
		t.Fatalf("expected no packets one byte short of a chunk, got %d", len(packets))
	}

	packet, ok := buf.FlushRemainder()
	if !ok {
		t.Fatal("FlushRemainder returned nothing with bytes pending")
	}
	if len(packet.Data) != 38399 {
		t.Errorf("flushed packet size = %d, want 38399", len(packet.Data))
	}
}

func TestDrainExactMultiple(t *testing.T) {
	format := Format{SampleRate: 1000, Channels: 1, BitsPerSample: 16}
	buf := NewChunkBuffer(format, 0.1) // 200-byte chunks

	// Feed 5 chunks' worth in uneven appends.
	total := 5 * 200
	fed := 0
	for _, size := range []int{150, 250, 300, 170, 130} {
		buf.Append(make([]byte, size))
		fed += size
	}
	buf.Append(make([]byte, total-fed))

	packets := buf.DrainChunks()
	if len(packets) != 5 {
		t.Fatalf("expected 5 chunks, got %d", len(packets))
	}
	for i, p := range packets {
		if len(p.Data) != 200 {
			t.Errorf("chunk %d size = %d, want 200", i, len(p.Data))
		}
	}
	if buf.Pending() != 0 {
		t.Errorf("pending = %d, want 0", buf.Pending())
	}
	if _, ok := buf.FlushRemainder(); ok {
		t.Error("FlushRemainder returned a packet with an empty accumulator")
	}
}

func TestBytesNeverReorderedOrDuplicated(t *testing.T) {
	format := Format{SampleRate: 1000, Channels: 1, BitsPerSample: 16}
	buf := NewChunkBuffer(format, 0.1) // 200-byte chunks

	// A recognizable byte pattern split across irregular appends.
	input := make([]byte, 1033)
	for i := range input {
		input[i] = byte(i % 251)
	}

	var output []byte
	offset := 0
	for _, size := range []int{7, 300, 1, 200, 199, 326} {
		buf.Append(input[offset : offset+size])
		offset += size
		for _, p := range buf.DrainChunks() {
			output = append(output, p.Data...)
		}
	}
	if packet, ok := buf.FlushRemainder(); ok {
		output = append(output, packet.Data...)
	}

	if !bytes.Equal(output, input) {
		t.Error("concatenated drained/flushed packets differ from input bytes")
	}
}

func TestAppendEmptyIsNoop(t *testing.T) {
	buf := NewChunkBuffer(float32Mono48k(), 0.2)

	buf.Append(nil)
	buf.Append([]byte{})

	if buf.Pending() != 0 {
		t.Errorf("pending = %d after empty appends, want 0", buf.Pending())
	}
	if _, ok := buf.FlushRemainder(); ok {
		t.Error("FlushRemainder returned a packet after only empty appends")
	}
}

func TestPacketsCarryBufferFormat(t *testing.T) {
	format := float32Mono48k()
	buf := NewChunkBuffer(format, 0.2)

	buf.Append(make([]byte, 38401))
	packets := buf.DrainChunks()
	if len(packets) != 1 {
		t.Fatalf("expected 1 packet, got %d", len(packets))
	}
	if packets[0].Format != format {
		t.Errorf("packet format = %v, want %v", packets[0].Format, format)
	}

	packet, ok := buf.FlushRemainder()
	if !ok {
		t.Fatal("expected a remainder packet")
	}
	if packet.Format != format {
		t.Errorf("flushed packet format = %v, want %v", packet.Format, format)
	}
	if len(packet.Data) != 1 {
		t.Errorf("flushed packet size = %d, want 1", len(packet.Data))
	}
}
