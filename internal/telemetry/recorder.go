// Package telemetry counts pipeline activity and logs per-run summaries.
package telemetry

import (
	"log/slog"
	"sync/atomic"
	"time"
	"unicode/utf8"
)

// Recorder tracks totals across every run of a worker. A nil *Recorder is
// valid and records nothing.
type Recorder struct {
	log *slog.Logger

	totalRuns            atomic.Uint64
	activeRuns           atomic.Int64
	totalChunks          atomic.Uint64
	totalAudioSegments   atomic.Uint64
	totalAudio           atomic.Int64 // nanoseconds of segmented audio
	totalTranscripts     atomic.Uint64
	totalInferenceErrors atomic.Uint64
	totalDroppedChunks   atomic.Uint64
}

// Snapshot captures cumulative metrics recorded so far.
type Snapshot struct {
	TotalRuns            uint64
	ActiveRuns           int64
	TotalChunks          uint64
	TotalAudioSegments   uint64
	TotalAudio           time.Duration
	TotalTranscripts     uint64
	TotalInferenceErrors uint64
	TotalDroppedChunks   uint64
}

// NewRecorder constructs a Recorder using the provided logger.
func NewRecorder(logger *slog.Logger) *Recorder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Recorder{
		log: logger.With("component", "telemetry.Recorder"),
	}
}

// Snapshot returns an immutable view of the recorder totals.
func (r *Recorder) Snapshot() Snapshot {
	if r == nil {
		return Snapshot{}
	}
	return Snapshot{
		TotalRuns:            r.totalRuns.Load(),
		ActiveRuns:           r.activeRuns.Load(),
		TotalChunks:          r.totalChunks.Load(),
		TotalAudioSegments:   r.totalAudioSegments.Load(),
		TotalAudio:           time.Duration(r.totalAudio.Load()),
		TotalTranscripts:     r.totalTranscripts.Load(),
		TotalInferenceErrors: r.totalInferenceErrors.Load(),
		TotalDroppedChunks:   r.totalDroppedChunks.Load(),
	}
}

// RunMetrics accumulates statistics for a single run. It is owned by the
// worker goroutine.
type RunMetrics struct {
	recorder *Recorder
	log      *slog.Logger

	run     uint64
	started time.Time

	chunks          int
	audioSegments   int
	audio           time.Duration
	transcripts     int
	inferenceErrors int
	inferenceTime   time.Duration
	dropped         uint64
	closed          atomic.Bool
}

// StartRun initialises a RunMetrics instance bound to the recorder.
func (r *Recorder) StartRun(run uint64) *RunMetrics {
	if r == nil {
		return nil
	}

	r.totalRuns.Add(1)
	r.activeRuns.Add(1)

	return &RunMetrics{
		recorder: r,
		log:      r.log.With("run", run),
		run:      run,
		started:  time.Now(),
	}
}

// RecordChunk counts one captured chunk.
func (m *RunMetrics) RecordChunk() {
	if m == nil {
		return
	}
	m.chunks++
	m.recorder.totalChunks.Add(1)
}

// RecordAudioSegment counts a segment closed by the segmenter.
func (m *RunMetrics) RecordAudioSegment(seq uint64, duration time.Duration) {
	if m == nil {
		return
	}
	m.audioSegments++
	m.audio += duration
	m.recorder.totalAudioSegments.Add(1)
	m.recorder.totalAudio.Add(int64(duration))

	m.log.Debug("audio segment closed",
		"audio_seq", seq,
		"duration_ms", duration.Milliseconds(),
	)
}

// RecordInference stores how long inference took for a segment and whether
// it failed.
func (m *RunMetrics) RecordInference(seq uint64, took time.Duration, err error) {
	if m == nil {
		return
	}
	m.inferenceTime += took
	if err != nil {
		m.inferenceErrors++
		m.recorder.totalInferenceErrors.Add(1)
		return
	}
	m.log.Debug("inference finished",
		"audio_seq", seq,
		"took_ms", took.Milliseconds(),
	)
}

// RecordTranscript counts an emitted transcript segment.
func (m *RunMetrics) RecordTranscript(seq uint64, text string) {
	if m == nil {
		return
	}
	m.transcripts++
	m.recorder.totalTranscripts.Add(1)

	m.log.Debug("transcript emitted",
		"seq", seq,
		"chars", len(text),
		"runes", utf8.RuneCountInString(text),
	)
}

// RecordDropped stores the number of chunks the source discarded.
func (m *RunMetrics) RecordDropped(n uint64) {
	if m == nil || n == 0 {
		return
	}
	m.dropped += n
	m.recorder.totalDroppedChunks.Add(n)
}

// Finish logs a summary and updates active run counters. Only the first
// call has any effect.
func (m *RunMetrics) Finish(err error) {
	if m == nil {
		return
	}
	if !m.closed.CompareAndSwap(false, true) {
		return
	}

	defer m.recorder.activeRuns.Add(-1)

	args := []any{
		"duration_ms", time.Since(m.started).Milliseconds(),
		"chunks", m.chunks,
		"audio_segments", m.audioSegments,
		"audio_ms", m.audio.Milliseconds(),
		"transcripts", m.transcripts,
		"inference_errors", m.inferenceErrors,
		"inference_ms", m.inferenceTime.Milliseconds(),
		"dropped_chunks", m.dropped,
	}

	if err != nil {
		m.log.Error("run completed with error", append(args, "error", err)...)
		return
	}

	m.log.Info("run completed", args...)
}
