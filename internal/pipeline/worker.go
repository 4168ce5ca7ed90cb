package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/chaz8081/gostt-stream/internal/audio"
	"github.com/chaz8081/gostt-stream/internal/models"
	"github.com/chaz8081/gostt-stream/internal/segment"
	"github.com/chaz8081/gostt-stream/internal/telemetry"
	"github.com/chaz8081/gostt-stream/internal/transcribe"
)

// worker owns the model. Everything below runs on the worker goroutine.
type worker struct {
	def     models.Definition
	loader  transcribe.Loader
	source  audio.Source
	log     *slog.Logger
	metrics *telemetry.Recorder
	control chan command

	model transcribe.Model
	state stateCell
}

func (w *worker) main(ready chan<- error) (err error) {
	model, err := w.load()
	if err != nil {
		w.state.store(Failed)
		w.log.Error("loading model failed", "error", err)
		ready <- err
		return err
	}
	w.model = model

	defer func() {
		if cerr := model.Close(); cerr != nil {
			w.log.Warn("closing model", "error", cerr)
		}
		if err != nil {
			w.state.store(Failed)
			w.log.Error("worker failed", "error", err)
			return
		}
		w.state.store(Stopped)
		w.log.Info("worker stopped")
	}()

	w.state.store(Idle)
	w.log.Info("worker ready")
	ready <- nil

	for cmd := range w.control {
		if err := w.serve(cmd); err != nil {
			return err
		}
	}
	return nil
}

func (w *worker) load() (model transcribe.Model, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("loader panicked: %v", p)
		}
	}()

	start := time.Now()
	model, err = w.loader(w.def)
	if err != nil {
		return nil, err
	}
	if model == nil {
		return nil, errors.New("loader returned no model")
	}
	w.log.Info("model loaded", "took_ms", time.Since(start).Milliseconds())
	return model, nil
}

// serve executes one run from capture open to stream close.
func (w *worker) serve(cmd command) error {
	r := cmd.run
	defer close(r.finished)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var droppedBefore uint64
	counter, counts := w.source.(audio.DropCounter)
	if counts {
		droppedBefore = counter.Dropped()
	}

	chunks, err := w.source.Capture(ctx, r.settings)
	if err != nil {
		r.stream.close()
		cmd.ack <- err
		return nil
	}

	w.state.store(Capturing)
	cmd.ack <- nil
	log := w.log.With("run", r.id)
	log.Info("capture started",
		"sample_rate", r.settings.SampleRate,
		"channels", r.settings.Channels,
	)

	metrics := w.metrics.StartRun(r.id)
	err = w.process(r, chunks, cancel, metrics, log)
	if counts {
		metrics.RecordDropped(counter.Dropped() - droppedBefore)
	}
	metrics.Finish(err)
	r.stream.close()

	if err != nil {
		return err
	}
	w.state.store(Idle)
	log.Info("run finished")
	return nil
}

func (w *worker) process(r *run, chunks <-chan []float32, cancel context.CancelFunc, metrics *telemetry.RunMetrics, log *slog.Logger) error {
	seg := segment.New(r.settings)
	t := transcriber{w: w, run: r, metrics: metrics, log: log}

	push := func(chunk []float32) error {
		metrics.RecordChunk()
		if a, ok := seg.Push(chunk); ok {
			return t.transcribe(a)
		}
		return nil
	}
	flush := func() error {
		if a, ok := seg.Flush(); ok {
			return t.transcribe(a)
		}
		return nil
	}
	fail := func(err error) error {
		cancel()
		for range chunks {
		}
		return err
	}

	for {
		select {
		case <-r.stop:
			w.state.store(Stopping)
			log.Info("stopping, draining captured audio")
			cancel()
			for chunk := range chunks {
				if err := push(chunk); err != nil {
					return fail(err)
				}
			}
			return flush()

		case chunk, ok := <-chunks:
			if !ok {
				log.Info("audio source exhausted")
				w.state.store(Stopping)
				return flush()
			}
			if err := push(chunk); err != nil {
				return fail(err)
			}
		}
	}
}

// transcriber turns audio segments of one run into transcript segments.
type transcriber struct {
	w       *worker
	run     *run
	metrics *telemetry.RunMetrics
	log     *slog.Logger
	next    uint64
}

func (t *transcriber) transcribe(a segment.AudioSegment) error {
	t.metrics.RecordAudioSegment(a.Seq, a.Duration())

	prev := t.w.state.load()
	t.w.state.store(Transcribing)
	defer t.w.state.store(prev)

	start := time.Now()
	results, err := t.infer(a)
	took := time.Since(start)
	t.metrics.RecordInference(a.Seq, took, err)

	if err != nil {
		if errors.Is(err, transcribe.ErrFatal) {
			return fmt.Errorf("pipeline: transcribing segment %d: %w", a.Seq, err)
		}
		t.log.Warn("transcription failed, skipping segment",
			"audio_seq", a.Seq,
			"error", err,
		)
		return nil
	}

	for _, res := range results {
		text := strings.TrimSpace(res.Text)
		if text == "" {
			continue
		}
		s := Segment{
			Run:      t.run.id,
			Seq:      t.next,
			AudioSeq: a.Seq,
			Text:     text,
		}
		if res.Timed {
			s.Start = a.Offset + res.Start
			s.End = a.Offset + res.End
			s.Timed = true
		}
		t.next++
		t.run.stream.push(s)
		t.metrics.RecordTranscript(s.Seq, text)
	}
	return nil
}

// infer runs the model with a context that Stop never cancels, so a segment
// handed to the model always finishes.
func (t *transcriber) infer(a segment.AudioSegment) (results []transcribe.Result, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("%w: model panicked: %v", transcribe.ErrFatal, p)
		}
	}()
	return t.w.model.Transcribe(context.Background(), a)
}
