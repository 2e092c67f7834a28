//go:build darwin && cgo

package device

/*
#cgo LDFLAGS: -framework CoreAudio -framework Foundation

#include <stdlib.h>
#include "tap_darwin.h"
*/
import "C"

import (
	"fmt"
	"log/slog"
	"unsafe"

	"github.com/maksspace/audiotee/internal/audio"
	"github.com/maksspace/audiotee/internal/config"
)

// tapDevice captures system audio through a Core Audio process tap wrapped
// in a private aggregate device.
type tapDevice struct {
	logger *slog.Logger
	format audio.Format
	tap    C.audiotee_tap
	handle uintptr
}

func newTapDevice(cfg config.CaptureConfig, logger *slog.Logger) (CaptureDevice, error) {
	include := toCPIDs(cfg.IncludeProcesses)
	exclude := toCPIDs(cfg.ExcludeProcesses)
	defer C.free(unsafe.Pointer(include))
	defer C.free(unsafe.Pointer(exclude))

	mute := C.int(0)
	if cfg.Mute {
		mute = 1
	}
	mono := C.int(0)
	if cfg.ChannelMode == config.ChannelModeMono {
		mono = 1
	}

	failed := make([]C.pid_t, len(cfg.IncludeProcesses)+len(cfg.ExcludeProcesses)+1)
	var failedCount C.int

	d := &tapDevice{logger: logger}
	rc := C.audiotee_tap_create(
		include, C.int(len(cfg.IncludeProcesses)),
		exclude, C.int(len(cfg.ExcludeProcesses)),
		mute, mono,
		&d.tap,
		&failed[0], &failedCount,
	)
	switch rc {
	case C.AUDIOTEE_TAP_OK:
	case C.AUDIOTEE_TAP_ERR_PID_TRANSLATION:
		pids := make([]int32, failedCount)
		for i := range pids {
			pids[i] = int32(failed[i])
		}
		return nil, &PIDTranslationError{PIDs: pids}
	default:
		return nil, fmt.Errorf("%w: could not create process tap", ErrSetupFailed)
	}

	d.format = audio.Format{
		SampleRate:    float64(d.tap.sampleRate),
		Channels:      int(d.tap.channels),
		BitsPerSample: int(d.tap.bitsPerSample),
		Float:         d.tap.isFloat != 0,
		BigEndian:     d.tap.isBigEndian != 0,
	}
	return d, nil
}

func toCPIDs(pids []int32) *C.pid_t {
	// Always at least one element so &arr[0] is valid on the C side.
	arr := (*C.pid_t)(C.malloc(C.size_t(len(pids)+1) * C.size_t(unsafe.Sizeof(C.pid_t(0)))))
	slice := unsafe.Slice(arr, len(pids)+1)
	for i, pid := range pids {
		slice[i] = C.pid_t(pid)
	}
	return arr
}

func (d *tapDevice) Format() audio.Format { return d.format }

func (d *tapDevice) Alive() bool {
	return C.audiotee_tap_alive(&d.tap) != 0
}

func (d *tapDevice) Start(fn RawFrameFunc) error {
	d.handle = callbacks.register(fn)
	if rc := C.audiotee_tap_start(&d.tap, C.uintptr_t(d.handle)); rc != C.AUDIOTEE_TAP_OK {
		callbacks.unregister(d.handle)
		d.handle = 0
		return fmt.Errorf("%w: could not start aggregate device", ErrSetupFailed)
	}
	return nil
}

func (d *tapDevice) Stop() error {
	rc := C.audiotee_tap_stop(&d.tap)
	callbacks.unregister(d.handle)
	d.handle = 0
	if rc != C.AUDIOTEE_TAP_OK {
		return fmt.Errorf("%w: could not stop aggregate device", ErrSetupFailed)
	}
	return nil
}

func (d *tapDevice) Close() error {
	C.audiotee_tap_destroy(&d.tap)
	return nil
}

//export audioteeTapFrames
func audioteeTapFrames(handle C.uintptr_t, data unsafe.Pointer, length C.int) {
	fn, ok := callbacks.lookup(uintptr(handle))
	if !ok {
		return
	}
	if data == nil || length == 0 {
		fn(nil)
		return
	}
	fn(unsafe.Slice((*byte)(data), int(length)))
}
