//go:build whispercpp

package transcribe

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	whisper "github.com/ggerganov/whisper.cpp/bindings/go/pkg/whisper"

	"github.com/chaz8081/gostt-stream/internal/models"
	"github.com/chaz8081/gostt-stream/internal/segment"
)

// ErrWhisperUnavailable is never returned when the backend is compiled in.
var ErrWhisperUnavailable = errors.New("transcribe: whisper backend not compiled in (build with -tags whispercpp)")

// WhisperAvailable reports whether the whisper backend is compiled in.
func WhisperAvailable() bool { return true }

// WhisperModel wraps a whisper.cpp model. A fresh decoding context is created
// per segment so no state leaks between utterances.
type WhisperModel struct {
	mu       sync.Mutex
	model    whisper.Model
	def      models.Definition
	language string
	threads  uint
}

// NewWhisperModel loads whisper weights from path. The caller must call
// Close when done.
func NewWhisperModel(path string, def models.Definition, opts WhisperOptions) (Model, error) {
	model, err := whisper.New(path)
	if err != nil {
		return nil, fmt.Errorf("transcribe: load whisper model %q: %w", path, err)
	}

	language := opts.Language
	if def.Type.EnglishOnly() || !model.IsMultilingual() {
		language = "en"
	}

	return &WhisperModel{
		model:    model,
		def:      def,
		language: language,
		threads:  opts.Threads,
	}, nil
}

// Close releases the whisper model resources.
func (m *WhisperModel) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.model == nil {
		return nil
	}
	err := m.model.Close()
	m.model = nil
	return err
}

// Transcribe runs inference over one mono 16kHz segment.
func (m *WhisperModel) Transcribe(ctx context.Context, seg segment.AudioSegment) ([]Result, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.model == nil {
		return nil, fmt.Errorf("%w: model closed", ErrFatal)
	}
	if seg.SampleRate != whisper.SampleRate {
		return nil, fmt.Errorf("%w: %dHz, whisper needs %dHz", ErrUnsupportedFormat, seg.SampleRate, whisper.SampleRate)
	}
	if len(seg.Samples) == 0 {
		return nil, nil
	}

	wctx, err := m.model.NewContext()
	if err != nil {
		// Context allocation only fails when the backend is out of memory
		// or the device is gone.
		return nil, fmt.Errorf("%w: create context: %v", ErrFatal, err)
	}

	if m.language != "" {
		if err := wctx.SetLanguage(m.language); err != nil {
			return nil, fmt.Errorf("transcribe: set language %q: %w", m.language, err)
		}
	}
	if m.threads > 0 {
		wctx.SetThreads(m.threads)
	}

	keepGoing := func() bool { return ctx.Err() == nil }
	if err := wctx.Process(seg.Samples, keepGoing, nil, nil); err != nil {
		return nil, fmt.Errorf("transcribe: process: %w", err)
	}

	var results []Result
	for {
		s, err := wctx.NextSegment()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("transcribe: next segment: %w", err)
		}
		text := cleanText(s.Text)
		if text == "" {
			continue
		}
		results = append(results, Result{
			Text:  text,
			Start: s.Start,
			End:   s.End,
			Timed: true,
		})
	}

	return results, nil
}
