package audio

import "fmt"

// Format describes the layout of a PCM stream. It is captured once from a
// device (or computed once by a converter) and treated as immutable.
type Format struct {
	SampleRate    float64 `json:"sample_rate"`
	Channels      int     `json:"channels"`
	BitsPerSample int     `json:"bits_per_sample"`
	Float         bool    `json:"float"`
	BigEndian     bool    `json:"big_endian"`
}

// BytesPerSample returns the byte width of one channel sample.
func (f Format) BytesPerSample() int {
	return f.BitsPerSample / 8
}

// BytesPerFrame returns the byte width of one frame (one sample per channel).
func (f Format) BytesPerFrame() int {
	return f.Channels * f.BitsPerSample / 8
}

// RateCompatible reports whether two formats agree on sample rate and
// channel count. Bit depth and encoding may still differ.
func (f Format) RateCompatible(other Format) bool {
	return f.SampleRate == other.SampleRate && f.Channels == other.Channels
}

// String returns a human-readable representation of the format.
func (f Format) String() string {
	encoding := "int"
	if f.Float {
		encoding = "float"
	}
	order := "le"
	if f.BigEndian {
		order = "be"
	}
	return fmt.Sprintf("%.0fHz/%dch/%dbit-%s-%s", f.SampleRate, f.Channels, f.BitsPerSample, encoding, order)
}

// Packet is a contiguous run of audio bytes plus the format describing them.
// Packets are immutable once produced; ownership moves to the receiver and
// the data is never aliased by the producing stage afterwards.
type Packet struct {
	Data   []byte
	Format Format
}

// Frames returns the number of complete sample frames in the packet.
func (p Packet) Frames() int {
	bpf := p.Format.BytesPerFrame()
	if bpf == 0 {
		return 0
	}
	return len(p.Data) / bpf
}

// Duration returns the packet length in seconds.
func (p Packet) Duration() float64 {
	if p.Format.SampleRate == 0 {
		return 0
	}
	return float64(p.Frames()) / p.Format.SampleRate
}
