package transcribe

import (
	"fmt"
	"runtime"

	"github.com/chaz8081/gostt-stream/internal/models"
)

// CheckDevice reports whether whisper.cpp can run on d on this platform.
func CheckDevice(d models.Device) error {
	switch d {
	case models.DeviceCPU:
		return nil
	case models.DeviceMetal:
		if runtime.GOOS == "darwin" {
			return nil
		}
	case models.DeviceCUDA:
		if runtime.GOOS == "linux" || runtime.GOOS == "windows" {
			return nil
		}
	}
	return fmt.Errorf("%w: %s on %s/%s", ErrUnsupportedDevice, d, runtime.GOOS, runtime.GOARCH)
}
