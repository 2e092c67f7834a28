package audio

import (
	"encoding/binary"
	"errors"
	"math"
	"testing"
)

// sinePacketFloat32 builds a mono float32-LE packet carrying a sine tone.
func sinePacketFloat32(format Format, freq float64, frames int) Packet {
	data := make([]byte, frames*4)
	for i := 0; i < frames; i++ {
		v := float32(0.5 * math.Sin(2*math.Pi*freq*float64(i)/format.SampleRate))
		binary.LittleEndian.PutUint32(data[i*4:], math.Float32bits(v))
	}
	return Packet{Data: data, Format: format}
}

func TestNewConverterRateValidation(t *testing.T) {
	src := Format{SampleRate: 48000, Channels: 1, BitsPerSample: 32, Float: true}

	for _, rate := range SupportedRates {
		if _, err := NewConverter(src, rate); err != nil {
			t.Errorf("NewConverter(%d) returned error: %v", rate, err)
		}
	}

	for _, rate := range []int{0, -1, 11025, 44000, 96000, 192000} {
		_, err := NewConverter(src, rate)
		if !errors.Is(err, ErrInvalidSampleRate) {
			t.Errorf("NewConverter(%d) error = %v, want ErrInvalidSampleRate", rate, err)
		}
	}
}

func TestTargetFormatForces16BitInt(t *testing.T) {
	tests := []struct {
		name string
		src  Format
		rate int
	}{
		{
			name: "downsample 32-bit float",
			src:  Format{SampleRate: 48000, Channels: 1, BitsPerSample: 32, Float: true},
			rate: 16000,
		},
		{
			name: "equal-rate conversion still requantizes",
			src:  Format{SampleRate: 48000, Channels: 2, BitsPerSample: 32, Float: true},
			rate: 48000,
		},
		{
			name: "upsample 16-bit int",
			src:  Format{SampleRate: 22050, Channels: 1, BitsPerSample: 16},
			rate: 44100,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			conv, err := NewConverter(tt.src, tt.rate)
			if err != nil {
				t.Fatalf("NewConverter: %v", err)
			}

			target := conv.TargetFormat()
			if target.BitsPerSample != 16 || target.Float {
				t.Errorf("target format %v, want 16-bit signed int", target)
			}
			if target.BigEndian {
				t.Error("target format must be little-endian")
			}
			if target.SampleRate != float64(tt.rate) {
				t.Errorf("target rate = %v, want %d", target.SampleRate, tt.rate)
			}
			if target.Channels != tt.src.Channels {
				t.Errorf("target channels = %d, converter must not alter channel count", target.Channels)
			}
		})
	}
}

func TestTransformOutputDepth(t *testing.T) {
	src := Format{SampleRate: 48000, Channels: 1, BitsPerSample: 32, Float: true}
	conv, err := NewConverter(src, 16000)
	if err != nil {
		t.Fatalf("NewConverter: %v", err)
	}

	for i := 0; i < 10; i++ {
		out := conv.Transform(sinePacketFloat32(src, 440, 4800))
		if out.Format != conv.TargetFormat() {
			t.Fatalf("output format = %v, want %v", out.Format, conv.TargetFormat())
		}
		if len(out.Data)%2 != 0 {
			t.Fatalf("output length %d not 16-bit aligned", len(out.Data))
		}
	}
}

func TestTransformOutputFrameCount(t *testing.T) {
	src := Format{SampleRate: 48000, Channels: 1, BitsPerSample: 32, Float: true}
	conv, err := NewConverter(src, 16000)
	if err != nil {
		t.Fatalf("NewConverter: %v", err)
	}

	// 1 second of input at 48kHz should yield very close to 16000 output
	// frames once streamed through in packet-sized pieces; only the
	// interpolation warm-up at the session edges may be lost.
	totalOut := 0
	for i := 0; i < 10; i++ {
		out := conv.Transform(sinePacketFloat32(src, 440, 4800))
		totalOut += out.Frames()
	}

	if totalOut < 15990 || totalOut > 16000 {
		t.Errorf("output frames = %d, want ~16000", totalOut)
	}
}

func TestTransformContinuityAcrossPackets(t *testing.T) {
	src := Format{SampleRate: 48000, Channels: 1, BitsPerSample: 32, Float: true}

	// Transform one continuous tone in a single packet and in many small
	// packets. If history is retained across calls the outputs must match.
	whole, err := NewConverter(src, 16000)
	if err != nil {
		t.Fatalf("NewConverter: %v", err)
	}
	pieces, err := NewConverter(src, 16000)
	if err != nil {
		t.Fatalf("NewConverter: %v", err)
	}

	input := sinePacketFloat32(src, 440, 4800)

	wholeOut := whole.Transform(input).Data

	var piecesOut []byte
	for off := 0; off < len(input.Data); off += 960 {
		end := off + 960
		if end > len(input.Data) {
			end = len(input.Data)
		}
		out := pieces.Transform(Packet{Data: input.Data[off:end], Format: src})
		piecesOut = append(piecesOut, out.Data...)
	}

	if len(wholeOut) != len(piecesOut) {
		t.Fatalf("whole=%d bytes, pieces=%d bytes", len(wholeOut), len(piecesOut))
	}
	for i := range wholeOut {
		if wholeOut[i] != piecesOut[i] {
			t.Fatalf("outputs diverge at byte %d: packetization changed the resampled signal", i)
		}
	}
}

func TestTransformEqualRatePreservesSignal(t *testing.T) {
	src := Format{SampleRate: 48000, Channels: 1, BitsPerSample: 16}
	conv, err := NewConverter(src, 48000)
	if err != nil {
		t.Fatalf("NewConverter: %v", err)
	}

	// A constant signal passes through cubic interpolation unchanged, so
	// an equal-rate conversion should reproduce it (modulo quantization).
	frames := 1000
	data := make([]byte, frames*2)
	for i := 0; i < frames; i++ {
		binary.LittleEndian.PutUint16(data[i*2:], uint16(int16(8192)))
	}

	out := conv.Transform(Packet{Data: data, Format: src})
	if out.Frames() == 0 {
		t.Fatal("no output frames")
	}
	for i := 0; i < out.Frames(); i++ {
		v := int16(binary.LittleEndian.Uint16(out.Data[i*2:]))
		if v < 8190 || v > 8194 {
			t.Fatalf("frame %d = %d, want ~8192", i, v)
		}
	}
}

func TestTransformIgnoresPartialFrame(t *testing.T) {
	src := Format{SampleRate: 48000, Channels: 2, BitsPerSample: 32, Float: true}
	conv, err := NewConverter(src, 24000)
	if err != nil {
		t.Fatalf("NewConverter: %v", err)
	}

	// 100 whole stereo frames plus 3 stray bytes.
	data := make([]byte, 100*8+3)
	out := conv.Transform(Packet{Data: data, Format: src})
	if len(out.Data)%out.Format.BytesPerFrame() != 0 {
		t.Errorf("output not frame-aligned: %d bytes", len(out.Data))
	}
}

func TestIsSupportedRate(t *testing.T) {
	if IsSupportedRate(44000) {
		t.Error("44000 should not be supported")
	}
	if !IsSupportedRate(22050) {
		t.Error("22050 should be supported")
	}
}
