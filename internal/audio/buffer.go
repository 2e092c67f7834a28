package audio

// ChunkBuffer accumulates raw audio bytes from a real-time callback and
// emits complete, fixed-duration packets. It knows nothing about devices or
// conversion.
//
// A ChunkBuffer has a single owner: the recorder whose callback appends to
// it. Append and DrainChunks run only on the capture callback thread, and
// FlushRemainder runs only after the device has stopped delivering
// callbacks, so no locking is needed (and none is permitted - the callback
// must not block).
type ChunkBuffer struct {
	format     Format
	chunkBytes int
	acc        []byte
}

// NewChunkBuffer creates a buffer that emits packets of chunkDuration
// seconds in the given format. The chunk byte size is rounded down to a
// whole frame so packets never split a sample frame. The caller is
// responsible for validating chunkDuration (0 < d <= 5.0 seconds); the
// buffer does not re-validate.
func NewChunkBuffer(format Format, chunkDuration float64) *ChunkBuffer {
	frames := int(format.SampleRate * chunkDuration)
	chunkBytes := frames * format.BytesPerFrame()
	return &ChunkBuffer{
		format:     format,
		chunkBytes: chunkBytes,
		acc:        make([]byte, 0, chunkBytes*2),
	}
}

// ChunkBytes returns the configured chunk size in bytes.
func (b *ChunkBuffer) ChunkBytes() int {
	return b.chunkBytes
}

// Pending returns the number of accumulated bytes not yet drained.
func (b *ChunkBuffer) Pending() int {
	return len(b.acc)
}

// Append concatenates raw bytes onto the accumulator. A zero-length input
// is a no-op. Growth beyond the pre-sized capacity only happens if drains
// stop keeping pace, which is a caller contract violation rather than a
// condition the buffer checks for.
func (b *ChunkBuffer) Append(data []byte) {
	if len(data) == 0 {
		return
	}
	b.acc = append(b.acc, data...)
}

// DrainChunks slices exactly chunk-sized packets off the front of the
// accumulator for as long as at least one chunk's worth of bytes remain.
// The returned sequence is ordered and possibly empty; no packet is ever
// short. After DrainChunks returns, the accumulator holds strictly fewer
// bytes than one chunk.
func (b *ChunkBuffer) DrainChunks() []Packet {
	if len(b.acc) < b.chunkBytes {
		return nil
	}

	var packets []Packet
	cursor := 0
	for len(b.acc)-cursor >= b.chunkBytes {
		chunk := make([]byte, b.chunkBytes)
		copy(chunk, b.acc[cursor:cursor+b.chunkBytes])
		packets = append(packets, Packet{Data: chunk, Format: b.format})
		cursor += b.chunkBytes
	}

	// Compact the leftover prefix to the front of the accumulator.
	remaining := len(b.acc) - cursor
	copy(b.acc, b.acc[cursor:])
	b.acc = b.acc[:remaining]

	return packets
}

// FlushRemainder returns whatever partial bytes remain as a single final
// packet, or ok=false if the accumulator is empty. This is the only path
// that ever produces a packet shorter than one chunk; it is called once at
// stream stop.
func (b *ChunkBuffer) FlushRemainder() (Packet, bool) {
	if len(b.acc) == 0 {
		return Packet{}, false
	}

	data := make([]byte, len(b.acc))
	copy(data, b.acc)
	b.acc = b.acc[:0]

	return Packet{Data: data, Format: b.format}, true
}
