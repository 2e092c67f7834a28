package output

import (
	"encoding/binary"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sync"
	"time"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"

	"github.com/maksspace/audiotee/internal/audio"
	"github.com/maksspace/audiotee/internal/recorder"
)

// wavStream is one source's open WAV file.
type wavStream struct {
	file *os.File
	enc  *wav.Encoder
	meta recorder.Metadata
}

// WAVSink writes each recorder's stream to its own WAV file in a target
// directory. Files are created when metadata arrives and finalized at
// stream stop. Supported input formats are 16-bit integer and 32-bit
// float, both little-endian; float samples are requantized to 16-bit on
// write.
type WAVSink struct {
	mu      sync.Mutex
	dir     string
	streams map[string]*wavStream
}

// NewWAVSink creates a sink writing into dir. The directory is created if
// missing.
func NewWAVSink(dir string) (*WAVSink, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create output directory: %w", err)
	}
	return &WAVSink{
		dir:     dir,
		streams: make(map[string]*wavStream),
	}, nil
}

// HandleMetadata opens the WAV file for the described stream.
func (s *WAVSink) HandleMetadata(meta recorder.Metadata) error {
	if err := checkWAVFormat(meta); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.streams[meta.Source]; exists {
		return fmt.Errorf("duplicate metadata for source %s", meta.Source)
	}

	name := fmt.Sprintf("audiotee-%s-%s.wav", meta.Source, time.Now().Format("20060102-150405"))
	f, err := os.Create(filepath.Join(s.dir, name))
	if err != nil {
		return fmt.Errorf("create wav file: %w", err)
	}

	enc := wav.NewEncoder(f, meta.SampleRate, 16, meta.Channels, 1)
	s.streams[meta.Source] = &wavStream{file: f, enc: enc, meta: meta}
	return nil
}

func checkWAVFormat(meta recorder.Metadata) error {
	if meta.BigEndian {
		return fmt.Errorf("wav output: big-endian input for source %s not supported", meta.Source)
	}
	switch {
	case meta.Float && meta.BitsPerSample == 32:
	case !meta.Float && meta.BitsPerSample == 16:
	default:
		return fmt.Errorf("wav output: unsupported input format %d-bit float=%v for source %s",
			meta.BitsPerSample, meta.Float, meta.Source)
	}
	return nil
}

// HandleStreamStart is a no-op; the file was created with the metadata.
func (s *WAVSink) HandleStreamStart(string) error { return nil }

// HandleAudioPacket appends one packet's samples to the source's file.
func (s *WAVSink) HandleAudioPacket(source string, pkt audio.Packet, _ bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, ok := s.streams[source]
	if !ok {
		return fmt.Errorf("audio for unknown source %s", source)
	}

	buf := &goaudio.IntBuffer{
		Format: &goaudio.Format{
			NumChannels: st.meta.Channels,
			SampleRate:  st.meta.SampleRate,
		},
		Data:           decodeSamples(pkt.Data, st.meta),
		SourceBitDepth: 16,
	}
	if err := st.enc.Write(buf); err != nil {
		return fmt.Errorf("write wav samples: %w", err)
	}
	return nil
}

// decodeSamples converts raw little-endian packet bytes into 16-bit sample
// values.
func decodeSamples(data []byte, meta recorder.Metadata) []int {
	if meta.Float {
		out := make([]int, 0, len(data)/4)
		for i := 0; i+4 <= len(data); i += 4 {
			f := math.Float32frombits(binary.LittleEndian.Uint32(data[i:]))
			switch {
			case f > 1.0:
				f = 1.0
			case f < -1.0:
				f = -1.0
			}
			out = append(out, int(f*32767))
		}
		return out
	}

	out := make([]int, 0, len(data)/2)
	for i := 0; i+2 <= len(data); i += 2 {
		out = append(out, int(int16(binary.LittleEndian.Uint16(data[i:]))))
	}
	return out
}

// HandleStreamStop finalizes and closes the source's file.
func (s *WAVSink) HandleStreamStop(source string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, ok := s.streams[source]
	if !ok {
		return fmt.Errorf("stop for unknown source %s", source)
	}
	delete(s.streams, source)

	if err := st.enc.Close(); err != nil {
		st.file.Close()
		return fmt.Errorf("finalize wav file: %w", err)
	}
	return st.file.Close()
}

// Close finalizes any streams that were never stopped.
func (s *WAVSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var firstErr error
	for source, st := range s.streams {
		delete(s.streams, source)
		if err := st.enc.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("finalize wav file for %s: %w", source, err)
		}
		st.file.Close()
	}
	return firstErr
}
