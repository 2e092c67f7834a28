package audio

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
)

// SupportedRates lists the target sample rates the converter accepts,
// chosen for downstream speech-recognition consumers.
var SupportedRates = []int{8000, 16000, 22050, 24000, 32000, 44100, 48000}

// ErrInvalidSampleRate is returned when a requested target rate is not in
// SupportedRates.
var ErrInvalidSampleRate = errors.New("unsupported target sample rate")

// historyFrames is the trailing-input retention needed for cubic
// interpolation to stay continuous across packet boundaries.
const historyFrames = 3

// Converter is a stateful streaming sample-rate converter. It transforms
// one input packet into one output packet, retaining trailing input frames
// between calls so resampling stays continuous over the whole session.
//
// Any conversion, including to a rate equal to the source rate, forces the
// output to 16-bit signed little-endian integer samples regardless of the
// source depth. This trades dynamic range for half the bandwidth, which is
// acceptable for speech recognition. Channel count is never altered.
//
// Like the ChunkBuffer, a Converter has a single owner and is only invoked
// from its recorder's callback thread (and the recorder's stop-time flush).
type Converter struct {
	src    Format
	target Format

	// step is how many source frames one output frame advances.
	step float64
	// pos is the interpolation position, in frames, within the
	// concatenation of retained history and the current input.
	pos float64
	// hist holds up to historyFrames trailing frames (interleaved
	// float32) carried over from the previous Transform call.
	hist []float32
}

// NewConverter builds a converter from the source format to the requested
// target rate. The target rate is validated against SupportedRates before
// any state is created; once constructed, Transform cannot fail.
func NewConverter(src Format, targetRate int) (*Converter, error) {
	if !IsSupportedRate(targetRate) {
		return nil, fmt.Errorf("target rate %d Hz: %w", targetRate, ErrInvalidSampleRate)
	}
	if src.SampleRate <= 0 || src.Channels <= 0 {
		return nil, fmt.Errorf("invalid source format %s", src)
	}

	return &Converter{
		src: src,
		target: Format{
			SampleRate:    float64(targetRate),
			Channels:      src.Channels,
			BitsPerSample: 16,
			Float:         false,
			BigEndian:     false,
		},
		step: src.SampleRate / float64(targetRate),
		pos:  1.0,
		hist: make([]float32, 0, historyFrames*src.Channels),
	}, nil
}

// IsSupportedRate reports whether rate is a valid conversion target.
func IsSupportedRate(rate int) bool {
	for _, r := range SupportedRates {
		if r == rate {
			return true
		}
	}
	return false
}

// TargetFormat returns the format a consumer should expect in packets
// produced by Transform. Computed once at construction, immutable.
func (c *Converter) TargetFormat() Format {
	return c.target
}

// Transform resamples and requantizes one input packet, producing an output
// packet in the target format. Trailing bytes that do not form a complete
// sample frame are ignored. The output may be empty while the converter is
// accumulating enough history for interpolation.
func (c *Converter) Transform(in Packet) Packet {
	ch := c.src.Channels
	frames := c.decode(in.Data)

	// Prepend retained history so interpolation spans the packet boundary.
	combined := append(c.hist, frames...)
	n := len(combined) / ch

	out := make([]byte, 0, c.estimateOutputBytes(n))
	for {
		ip := int(c.pos)
		if ip < 1 || ip+2 >= n {
			break
		}
		frac := float32(c.pos - float64(ip))
		base := ip * ch
		for s := 0; s < ch; s++ {
			y0 := combined[base-ch+s]
			y1 := combined[base+s]
			y2 := combined[base+ch+s]
			y3 := combined[base+2*ch+s]
			out = appendSample16(out, cubicInterpolate(y0, y1, y2, y3, frac))
		}
		c.pos += c.step
	}

	// Retain the trailing frames and rebase the position onto them.
	if n > historyFrames {
		keep := (n - historyFrames) * ch
		c.hist = append(c.hist[:0], combined[keep:]...)
		c.pos -= float64(n - historyFrames)
	} else {
		c.hist = append(c.hist[:0], combined...)
	}

	return Packet{Data: out, Format: c.target}
}

// estimateOutputBytes sizes the output slice for n combined input frames.
func (c *Converter) estimateOutputBytes(n int) int {
	outFrames := int(float64(n)/c.step) + 2
	return outFrames * c.target.BytesPerFrame()
}

// decode converts raw source bytes into interleaved float32 samples in
// [-1, 1], honoring the source depth, encoding, and byte order. Only whole
// frames are decoded.
func (c *Converter) decode(data []byte) []float32 {
	bps := c.src.BytesPerSample()
	if bps == 0 {
		return nil
	}
	count := len(data) / (bps * c.src.Channels) * c.src.Channels

	var ord binary.ByteOrder = binary.LittleEndian
	if c.src.BigEndian {
		ord = binary.BigEndian
	}

	samples := make([]float32, count)
	switch {
	case c.src.Float && c.src.BitsPerSample == 32:
		for i := 0; i < count; i++ {
			samples[i] = math.Float32frombits(ord.Uint32(data[i*4:]))
		}
	case c.src.Float && c.src.BitsPerSample == 64:
		for i := 0; i < count; i++ {
			samples[i] = float32(math.Float64frombits(ord.Uint64(data[i*8:])))
		}
	case !c.src.Float && c.src.BitsPerSample == 16:
		for i := 0; i < count; i++ {
			samples[i] = float32(int16(ord.Uint16(data[i*2:]))) / 32768.0
		}
	case !c.src.Float && c.src.BitsPerSample == 32:
		for i := 0; i < count; i++ {
			samples[i] = float32(int32(ord.Uint32(data[i*4:]))) / 2147483648.0
		}
	}
	return samples
}

// appendSample16 clamps x to [-1, 1], quantizes to 16-bit signed PCM, and
// appends it little-endian.
func appendSample16(dst []byte, x float32) []byte {
	if x > 1 {
		x = 1
	} else if x < -1 {
		x = -1
	}
	// Use 32767 for positive max to avoid overflow.
	v := uint16(int16(x * 32767.0))
	return append(dst, byte(v), byte(v>>8))
}

// cubicInterpolate evaluates a Catmull-Rom spline through four consecutive
// samples at fractional position x between y1 and y2 (0 <= x <= 1).
func cubicInterpolate(y0, y1, y2, y3, x float32) float32 {
	a0 := -0.5*y0 + 1.5*y1 - 1.5*y2 + 0.5*y3
	a1 := y0 - 2.5*y1 + 2*y2 - 0.5*y3
	a2 := -0.5*y0 + 0.5*y2
	a3 := y1

	return a0*x*x*x + a1*x*x + a2*x + a3
}
