// Package pipeline runs continuous speech-to-text: a dedicated worker owns
// one loaded model, segments captured audio on silence and transcribes each
// segment in order. Callers control it through a Handle and read results
// from a per-run Stream.
package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"runtime"
	"sync"

	"github.com/google/uuid"

	"github.com/chaz8081/gostt-stream/internal/audio"
	"github.com/chaz8081/gostt-stream/internal/models"
	"github.com/chaz8081/gostt-stream/internal/telemetry"
	"github.com/chaz8081/gostt-stream/internal/transcribe"
)

// Options configures Spawn. Loader and Source are required.
type Options struct {
	Loader  transcribe.Loader
	Source  audio.Source
	Logger  *slog.Logger
	Metrics *telemetry.Recorder
}

// Spawn starts a worker that loads def and waits for runs. It blocks until
// the model is loaded. On failure it returns a *SpawnError and no goroutine
// is left running.
func Spawn(def models.Definition, opts Options) (*JoinHandle, *Handle, error) {
	if opts.Loader == nil {
		return nil, nil, errors.New("pipeline: loader is required")
	}
	if opts.Source == nil {
		return nil, nil, errors.New("pipeline: audio source is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	metrics := opts.Metrics
	if metrics == nil {
		metrics = telemetry.NewRecorder(logger)
	}

	session := uuid.NewString()
	w := &worker{
		def:     def,
		loader:  opts.Loader,
		source:  opts.Source,
		log:     logger.With("component", "pipeline", "session", session, "model", def.String()),
		metrics: metrics,
		control: make(chan command),
	}
	join := &JoinHandle{done: make(chan struct{}), session: session, w: w}
	ready := make(chan error, 1)

	go func() {
		// Never unlocked: the thread exits with the worker and takes any
		// thread-local accelerator state with it.
		runtime.LockOSThread()
		defer close(join.done)
		join.err = w.main(ready)
	}()

	if err := <-ready; err != nil {
		<-join.done
		return nil, nil, &SpawnError{Definition: def, Err: err}
	}

	l := &link{control: w.control, done: join.done}
	h := &Handle{l: l}
	runtime.AddCleanup(h, func(l *link) { l.close() }, l)
	return join, h, nil
}

// JoinHandle observes worker termination.
type JoinHandle struct {
	done    chan struct{}
	err     error
	session string
	w       *worker
}

// Session returns the identifier attached to every log line of this worker.
func (j *JoinHandle) Session() string {
	return j.session
}

// Join blocks until the worker has exited and returns its terminal error,
// nil after a graceful shutdown.
func (j *JoinHandle) Join() error {
	<-j.done
	return j.err
}

// Wait is Join bounded by ctx.
func (j *JoinHandle) Wait(ctx context.Context) error {
	select {
	case <-j.done:
		return j.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Done is closed once the worker has exited.
func (j *JoinHandle) Done() <-chan struct{} {
	return j.done
}

// Handle starts and stops runs on a spawned worker. It is safe for
// concurrent use.
type Handle struct {
	l *link
}

// link is the handle's state, kept separate so the cleanup attached to the
// Handle can release the worker without keeping the Handle reachable.
type link struct {
	mu      sync.Mutex
	control chan command
	done    <-chan struct{}
	closed  bool
	started bool
	runs    uint64
	current *run
}

// Start begins a new run with the given settings and returns its stream.
func (h *Handle) Start(settings audio.Settings) (*Stream, error) {
	l := h.l
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return nil, ErrClosed
	}
	if l.current != nil && !l.current.finishedYet() {
		return nil, ErrAlreadyRunning
	}
	select {
	case <-l.done:
		return nil, ErrWorkerExited
	default:
	}
	if err := settings.Validate(); err != nil {
		return nil, &StartError{Err: err}
	}

	r := newRun(l.runs+1, settings)
	cmd := command{run: r, ack: make(chan error, 1)}
	select {
	case l.control <- cmd:
	case <-l.done:
		return nil, ErrWorkerExited
	}
	if err := <-cmd.ack; err != nil {
		return nil, &StartError{Err: err}
	}

	l.runs = r.id
	l.started = true
	l.current = r
	return r.stream, nil
}

// Stop ends the current run and waits until it has drained: audio captured
// so far is segmented and transcribed and the stream is closed. Stopping an
// already stopped run returns nil. If ctx is done first Stop returns
// ctx.Err() and the shutdown carries on in the background.
func (h *Handle) Stop(ctx context.Context) error {
	l := h.l
	l.mu.Lock()
	if !l.started {
		l.mu.Unlock()
		return ErrNotRunning
	}
	r := l.current
	l.mu.Unlock()

	r.requestStop()
	select {
	case <-r.finished:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops any active run and releases the worker. It does not wait;
// use JoinHandle.Join for that.
func (h *Handle) Close() error {
	h.l.close()
	return nil
}

func (l *link) close() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return
	}
	l.closed = true
	if l.current != nil {
		l.current.requestStop()
	}
	close(l.control)
}

type command struct {
	run *run
	ack chan error
}

type run struct {
	id       uint64
	settings audio.Settings
	stream   *Stream

	stop     chan struct{}
	stopOnce sync.Once
	finished chan struct{}
}

func newRun(id uint64, settings audio.Settings) *run {
	return &run{
		id:       id,
		settings: settings,
		stream:   newStream(id),
		stop:     make(chan struct{}),
		finished: make(chan struct{}),
	}
}

func (r *run) requestStop() {
	r.stopOnce.Do(func() { close(r.stop) })
}

func (r *run) finishedYet() bool {
	select {
	case <-r.finished:
		return true
	default:
		return false
	}
}
