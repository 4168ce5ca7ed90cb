package transcribe

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/chaz8081/gostt-stream/internal/models"
	"github.com/chaz8081/gostt-stream/internal/segment"
)

// StubModel produces deterministic transcripts without loading weights.
type StubModel struct {
	log      *slog.Logger
	def      models.Definition
	segments atomic.Uint64
	closed   atomic.Bool
}

// NewStubModel returns a Model that describes each segment it receives.
func NewStubModel(def models.Definition, logger *slog.Logger) *StubModel {
	if logger == nil {
		logger = slog.Default()
	}
	return &StubModel{
		log: logger.With("component", "transcribe.stub", "definition", def.String()),
		def: def,
	}
}

// Transcribe implements Model.
func (m *StubModel) Transcribe(ctx context.Context, seg segment.AudioSegment) ([]Result, error) {
	if m.closed.Load() {
		return nil, fmt.Errorf("%w: stub model closed", ErrFatal)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(seg.Samples) == 0 {
		return nil, nil
	}

	m.segments.Add(1)
	d := seg.Duration()
	m.log.Debug("stub transcript", "seq", seg.Seq, "duration", d)
	return []Result{{
		Text:  fmt.Sprintf("[stub:%s] segment %d (%.2fs)", m.def.Type, seg.Seq, d.Seconds()),
		Start: 0,
		End:   d,
		Timed: true,
	}}, nil
}

// Segments returns how many segments were transcribed.
func (m *StubModel) Segments() uint64 {
	return m.segments.Load()
}

// Close implements Model.
func (m *StubModel) Close() error {
	m.closed.Store(true)
	return nil
}
