// Package transcribe provides the acoustic model behind the pipeline.
//
// Supported backends:
//   - whisper: whisper.cpp via Go bindings (build tag whispercpp)
//   - stub: deterministic placeholder transcripts, no weights required
package transcribe

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/chaz8081/gostt-stream/internal/models"
	"github.com/chaz8081/gostt-stream/internal/segment"
)

var (
	// ErrFatal marks errors after which the model can no longer be used
	// (device loss, corrupted state). Any other error returned from
	// Transcribe affects only the segment being processed.
	ErrFatal = errors.New("transcribe: fatal model error")
	// ErrUnsupportedDevice is returned by a Loader when the definition asks
	// for a compute backend this build or platform cannot provide.
	ErrUnsupportedDevice = errors.New("transcribe: unsupported device")
	// ErrUnsupportedFormat is returned for audio the model cannot consume.
	ErrUnsupportedFormat = errors.New("transcribe: unsupported audio format")
)

// Result is one recognized utterance within a segment. Start and End are
// relative to the start of the segment and only meaningful when Timed is set.
type Result struct {
	Text  string
	Start time.Duration
	End   time.Duration
	Timed bool
}

// Model converts audio segments to text. Implementations are not assumed to
// be safe for concurrent use.
type Model interface {
	// Transcribe returns zero or more results for one segment.
	Transcribe(ctx context.Context, seg segment.AudioSegment) ([]Result, error)
	// Close releases backend resources.
	Close() error
}

// Loader loads the model denoted by a definition.
type Loader func(def models.Definition) (Model, error)

// Options configures NewLoader.
type Options struct {
	Backend   string // "whisper" (default) or "stub"
	ModelsDir string
	ModelPath string // overrides ModelsDir resolution
	Language  string
	Threads   uint
	Logger    *slog.Logger
}

// NewLoader returns a Loader for the configured backend.
func NewLoader(opts Options) (Loader, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	switch opts.Backend {
	case "stub":
		return func(def models.Definition) (Model, error) {
			if err := checkDefinition(def, true); err != nil {
				return nil, err
			}
			return NewStubModel(def, logger), nil
		}, nil
	case "whisper", "":
		return func(def models.Definition) (Model, error) {
			if err := checkDefinition(def, false); err != nil {
				return nil, err
			}
			path, err := models.Resolve(opts.ModelsDir, def.Type, opts.ModelPath)
			if err != nil {
				return nil, fmt.Errorf("transcribe: %w", err)
			}
			logger.Info("loading whisper model", "path", path, "definition", def.String())
			return NewWhisperModel(path, def, WhisperOptions{
				Language: opts.Language,
				Threads:  opts.Threads,
			})
		}, nil
	default:
		return nil, fmt.Errorf("transcribe: unknown backend %q (supported: whisper, stub)", opts.Backend)
	}
}

// checkDefinition rejects unknown variants and devices. Unless anyDevice is
// set, the device must also be usable on this platform.
func checkDefinition(def models.Definition, anyDevice bool) error {
	if !def.Type.Valid() {
		return fmt.Errorf("transcribe: invalid model type %d", int(def.Type))
	}
	if !def.Device.Valid() {
		return fmt.Errorf("%w: %s", ErrUnsupportedDevice, def.Device)
	}
	if anyDevice {
		return nil
	}
	return CheckDevice(def.Device)
}

// cleanText trims whitespace and drops whisper's non-speech markers.
func cleanText(s string) string {
	for _, marker := range []string{"[BLANK_AUDIO]", "[ Silence ]", "[silence]"} {
		s = strings.ReplaceAll(s, marker, "")
	}
	return strings.TrimSpace(s)
}
