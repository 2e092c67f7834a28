//go:build !cgo

package device

import (
	"fmt"
	"log/slog"
)

func newMicDevice(_ *slog.Logger) (CaptureDevice, error) {
	return nil, fmt.Errorf("%w: microphone capture requires cgo", ErrSetupFailed)
}
