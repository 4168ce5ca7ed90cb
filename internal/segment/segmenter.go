// Package segment splits a stream of audio chunks into utterances bounded by
// silence gaps.
package segment

import (
	"time"

	"github.com/chaz8081/gostt-stream/internal/audio"
)

// State is the segmenter's position in the silence state machine.
type State int

const (
	// Listening discards silence while waiting for voice.
	Listening State = iota
	// Accumulating appends voiced chunks to the open segment.
	Accumulating
	// FlushingOnSilence holds trailing silence until it either reaches the
	// minimum gap (segment closes) or voice resumes (silence is kept).
	FlushingOnSilence
)

func (s State) String() string {
	switch s {
	case Listening:
		return "listening"
	case Accumulating:
		return "accumulating"
	case FlushingOnSilence:
		return "flushing"
	default:
		return "unknown"
	}
}

// AudioSegment is a bounded span of mono audio closed by a silence gap.
type AudioSegment struct {
	Seq        uint64
	Samples    []float32
	SampleRate uint32
	Offset     time.Duration // position of the first sample within the run
}

// Duration returns the length of the segment's audio.
func (a AudioSegment) Duration() time.Duration {
	if a.SampleRate == 0 {
		return 0
	}
	return time.Duration(int64(len(a.Samples)) * int64(time.Second) / int64(a.SampleRate))
}

// Segmenter is not safe for concurrent use; one goroutine feeds it.
type Segmenter struct {
	settings audio.Settings
	state    State
	seq      uint64

	buf     []float32 // open segment, starts with a voiced chunk
	pending []float32 // trailing silence not yet committed to buf
	start   int       // frame position of buf[0]
	pos     int       // frames consumed so far

	minSilenceFrames int
	maxFrames        int
}

// New returns a Segmenter for chunks shaped by settings. Settings are assumed
// to be valid.
func New(settings audio.Settings) *Segmenter {
	maxFrames := 0
	if settings.MaxSegmentDuration > 0 {
		maxFrames = durationToFrames(settings.MaxSegmentDuration, settings.SampleRate)
	}
	return &Segmenter{
		settings:         settings,
		minSilenceFrames: max(1, durationToFrames(settings.MinSilenceDuration, settings.SampleRate)),
		maxFrames:        maxFrames,
	}
}

// State returns the current state.
func (s *Segmenter) State() State {
	return s.state
}

// Push feeds one interleaved chunk and returns the segment it closed, if any.
func (s *Segmenter) Push(chunk []float32) (AudioSegment, bool) {
	mono := audio.Mono(chunk, s.settings.Channels)
	frames := len(mono)
	if frames == 0 {
		return AudioSegment{}, false
	}
	// Digital silence is never voiced, whatever the threshold.
	rms := audio.RMS(mono)
	voiced := rms > 0 && rms >= s.settings.SilenceThreshold

	var (
		seg    AudioSegment
		closed bool
	)

	switch s.state {
	case Listening:
		if voiced {
			s.start = s.pos
			s.buf = append(s.buf[:0:0], mono...)
			s.state = Accumulating
		}
	case Accumulating:
		if voiced {
			s.buf = append(s.buf, mono...)
		} else {
			s.pending = append(s.pending, mono...)
			s.state = FlushingOnSilence
		}
	case FlushingOnSilence:
		if voiced {
			s.buf = append(s.buf, s.pending...)
			s.buf = append(s.buf, mono...)
			s.pending = nil
			s.state = Accumulating
		} else {
			s.pending = append(s.pending, mono...)
		}
	}
	s.pos += frames

	if s.state == FlushingOnSilence && len(s.pending) >= s.minSilenceFrames {
		seg, closed = s.emit(), true
	}
	if !closed && s.state != Listening && s.maxFrames > 0 && len(s.buf)+len(s.pending) >= s.maxFrames {
		seg, closed = s.emit(), true
	}

	return seg, closed
}

// Flush closes the open segment, dropping any trailing silence. It reports
// false when there is no voiced audio to emit.
func (s *Segmenter) Flush() (AudioSegment, bool) {
	if s.state == Listening {
		return AudioSegment{}, false
	}
	return s.emit(), true
}

func (s *Segmenter) emit() AudioSegment {
	seg := AudioSegment{
		Seq:        s.seq,
		Samples:    s.buf,
		SampleRate: s.settings.SampleRate,
		Offset:     s.settings.FramesToDuration(s.start),
	}
	s.seq++
	s.buf = nil
	s.pending = nil
	s.state = Listening
	return seg
}

func durationToFrames(d time.Duration, sampleRate uint32) int {
	return int(int64(d) * int64(sampleRate) / int64(time.Second))
}
