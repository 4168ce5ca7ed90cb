//go:build !whispercpp

package transcribe

import (
	"errors"

	"github.com/chaz8081/gostt-stream/internal/models"
)

// ErrWhisperUnavailable indicates the binary was built without the
// whispercpp tag.
var ErrWhisperUnavailable = errors.New("transcribe: whisper backend not compiled in (build with -tags whispercpp)")

// WhisperAvailable reports whether the whisper backend is compiled in.
func WhisperAvailable() bool { return false }

// NewWhisperModel returns ErrWhisperUnavailable when the native backend is
// not built.
func NewWhisperModel(path string, def models.Definition, opts WhisperOptions) (Model, error) {
	return nil, ErrWhisperUnavailable
}
