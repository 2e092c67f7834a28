//go:build cgo

package device

import (
	"encoding/binary"
	"fmt"
	"log/slog"
	"math"

	"github.com/gordonklaus/portaudio"

	"github.com/maksspace/audiotee/internal/audio"
)

const micFramesPerBuffer = 512

// micDevice captures the default input device through PortAudio. Samples
// are delivered as native-endian float32; the device encodes them to
// little-endian bytes before handing them to the callback so downstream
// stages see the same byte-oriented stream as the system tap.
type micDevice struct {
	logger *slog.Logger
	format audio.Format
	info   *portaudio.DeviceInfo
	stream *portaudio.Stream
	handle uintptr
	buf    []byte
}

func newMicDevice(logger *slog.Logger) (CaptureDevice, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("%w: portaudio: %v", ErrSetupFailed, err)
	}

	info, err := portaudio.DefaultInputDevice()
	if err != nil {
		portaudio.Terminate()
		return nil, fmt.Errorf("%w: no default input device: %v", ErrSetupFailed, err)
	}

	return &micDevice{
		logger: logger,
		info:   info,
		format: audio.Format{
			SampleRate:    info.DefaultSampleRate,
			Channels:      1,
			BitsPerSample: 32,
			Float:         true,
		},
		buf: make([]byte, 0, micFramesPerBuffer*4),
	}, nil
}

func (d *micDevice) Format() audio.Format { return d.format }

// Alive reports whether the system still resolves a default input. The
// original device may have been unplugged between resolution and start.
func (d *micDevice) Alive() bool {
	info, err := portaudio.DefaultInputDevice()
	return err == nil && info != nil && info.Name == d.info.Name
}

func (d *micDevice) Start(fn RawFrameFunc) error {
	d.handle = callbacks.register(fn)
	handle := d.handle

	params := portaudio.StreamParameters{
		Input: portaudio.StreamDeviceParameters{
			Device:   d.info,
			Channels: 1,
			Latency:  d.info.DefaultLowInputLatency,
		},
		SampleRate:      d.format.SampleRate,
		FramesPerBuffer: micFramesPerBuffer,
	}

	stream, err := portaudio.OpenStream(params, func(in []float32) {
		cb, ok := callbacks.lookup(handle)
		if !ok {
			return
		}
		cb(d.encode(in))
	})
	if err != nil {
		callbacks.unregister(d.handle)
		d.handle = 0
		return fmt.Errorf("%w: could not open input stream: %v", ErrSetupFailed, err)
	}

	if err := stream.Start(); err != nil {
		stream.Close()
		callbacks.unregister(d.handle)
		d.handle = 0
		return fmt.Errorf("%w: could not start input stream: %v", ErrSetupFailed, err)
	}

	d.stream = stream
	return nil
}

// encode serializes float32 samples to little-endian bytes, reusing the
// device's scratch buffer. Only called from PortAudio's stream callback.
func (d *micDevice) encode(in []float32) []byte {
	d.buf = d.buf[:0]
	for _, s := range in {
		d.buf = binary.LittleEndian.AppendUint32(d.buf, math.Float32bits(s))
	}
	return d.buf
}

func (d *micDevice) Stop() error {
	if d.stream == nil {
		callbacks.unregister(d.handle)
		d.handle = 0
		return nil
	}
	err := d.stream.Stop()
	callbacks.unregister(d.handle)
	d.handle = 0
	if err != nil {
		return fmt.Errorf("%w: could not stop input stream: %v", ErrSetupFailed, err)
	}
	return nil
}

func (d *micDevice) Close() error {
	if d.stream != nil {
		d.stream.Close()
		d.stream = nil
	}
	return portaudio.Terminate()
}
