// Package audio captures raw sample chunks from a microphone or a WAV file
// and describes the input format the rest of the pipeline expects.
package audio

import (
	"fmt"
	"time"
)

// Settings configures an audio source and the silence detection applied to
// its chunks. A copy is taken when a run starts.
type Settings struct {
	SampleRate         uint32
	Channels           uint32
	ChunkDuration      time.Duration
	SilenceThreshold   float32       // RMS below this is silence
	MinSilenceDuration time.Duration // silence gap that closes a segment
	MaxSegmentDuration time.Duration // 0 disables the hard cut
}

// DefaultSettings returns settings suited to whisper: 16kHz mono in 100ms
// chunks, closing a segment after 800ms below an RMS of 0.01.
func DefaultSettings() Settings {
	return Settings{
		SampleRate:         16000,
		Channels:           1,
		ChunkDuration:      100 * time.Millisecond,
		SilenceThreshold:   0.01,
		MinSilenceDuration: 800 * time.Millisecond,
		MaxSegmentDuration: 30 * time.Second,
	}
}

// Validate checks the settings for values no source can honour.
func (s Settings) Validate() error {
	if s.SampleRate == 0 {
		return fmt.Errorf("audio: sample_rate must be > 0")
	}
	if s.Channels == 0 {
		return fmt.Errorf("audio: channels must be > 0")
	}
	if s.ChunkDuration <= 0 {
		return fmt.Errorf("audio: chunk_duration must be > 0")
	}
	if s.ChunkFrames() == 0 {
		return fmt.Errorf("audio: chunk_duration %s is shorter than one frame at %dHz", s.ChunkDuration, s.SampleRate)
	}
	if s.SilenceThreshold <= 0 {
		return fmt.Errorf("audio: silence_threshold must be > 0")
	}
	if s.MinSilenceDuration <= 0 {
		return fmt.Errorf("audio: min_silence_duration must be > 0")
	}
	if s.MaxSegmentDuration < 0 {
		return fmt.Errorf("audio: max_segment_duration must be >= 0")
	}
	if s.MaxSegmentDuration > 0 && s.MaxSegmentDuration < s.ChunkDuration {
		return fmt.Errorf("audio: max_segment_duration must be at least one chunk")
	}
	return nil
}

// ChunkFrames returns the number of frames in one chunk.
func (s Settings) ChunkFrames() int {
	return int(uint64(s.SampleRate) * uint64(s.ChunkDuration) / uint64(time.Second))
}

// ChunkSamples returns the number of interleaved samples in one chunk.
func (s Settings) ChunkSamples() int {
	return s.ChunkFrames() * int(s.Channels)
}

// FramesToDuration converts a frame count at the configured rate into a
// duration.
func (s Settings) FramesToDuration(frames int) time.Duration {
	if s.SampleRate == 0 {
		return 0
	}
	return time.Duration(int64(frames) * int64(time.Second) / int64(s.SampleRate))
}
