//go:build !darwin || !cgo

package device

import (
	"fmt"
	"log/slog"
	"runtime"

	"github.com/maksspace/audiotee/internal/config"
)

func newTapDevice(_ config.CaptureConfig, _ *slog.Logger) (CaptureDevice, error) {
	return nil, fmt.Errorf("%w: system audio capture is not supported on %s", ErrSetupFailed, runtime.GOOS)
}
