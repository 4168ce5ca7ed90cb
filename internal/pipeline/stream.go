package pipeline

import (
	"context"
	"fmt"
	"iter"
	"sync"
	"time"
)

// Segment is one unit of recognized text. Seq starts at 0 for every run and
// increases by one per segment. Start and End are offsets from the start of
// the run and are only set when Timed is true.
type Segment struct {
	Run      uint64
	Seq      uint64
	AudioSeq uint64
	Text     string
	Start    time.Duration
	End      time.Duration
	Timed    bool
}

func (s Segment) String() string {
	if !s.Timed {
		return s.Text
	}
	return fmt.Sprintf("[%s -> %s] %s", formatOffset(s.Start), formatOffset(s.End), s.Text)
}

func formatOffset(d time.Duration) string {
	ms := d.Milliseconds()
	return fmt.Sprintf("%02d:%02d.%03d", ms/60000, (ms/1000)%60, ms%1000)
}

// Stream delivers the transcript segments of a single run in order. It has
// one consumer. The producer never blocks on it, so segments queue up until
// they are read.
type Stream struct {
	run uint64

	mu     sync.Mutex
	queue  []Segment
	closed bool
	ready  chan struct{}
}

func newStream(run uint64) *Stream {
	return &Stream{run: run, ready: make(chan struct{}, 1)}
}

// Run returns the run epoch this stream belongs to.
func (s *Stream) Run() uint64 {
	return s.run
}

// Next blocks until a segment is available, the run has ended and every
// segment was read, or ctx is done. It reports false in the last two cases.
func (s *Stream) Next(ctx context.Context) (Segment, bool) {
	for {
		s.mu.Lock()
		if len(s.queue) > 0 {
			seg := s.queue[0]
			s.queue[0] = Segment{}
			s.queue = s.queue[1:]
			s.mu.Unlock()
			return seg, true
		}
		if s.closed {
			s.mu.Unlock()
			return Segment{}, false
		}
		s.mu.Unlock()

		select {
		case <-s.ready:
		case <-ctx.Done():
			return Segment{}, false
		}
	}
}

// Segments ranges over the stream until it ends or ctx is done.
func (s *Stream) Segments(ctx context.Context) iter.Seq[Segment] {
	return func(yield func(Segment) bool) {
		for {
			seg, ok := s.Next(ctx)
			if !ok || !yield(seg) {
				return
			}
		}
	}
}

func (s *Stream) push(seg Segment) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.queue = append(s.queue, seg)
	s.mu.Unlock()
	s.wake()
}

func (s *Stream) close() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	s.wake()
}

func (s *Stream) wake() {
	select {
	case s.ready <- struct{}{}:
	default:
	}
}
