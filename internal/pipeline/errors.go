package pipeline

import (
	"errors"
	"fmt"

	"github.com/chaz8081/gostt-stream/internal/models"
)

var (
	// ErrAlreadyRunning is returned by Start while the previous run has not
	// been stopped and drained.
	ErrAlreadyRunning = errors.New("pipeline: already running")
	// ErrNotRunning is returned by Stop when Start was never called.
	ErrNotRunning = errors.New("pipeline: not running")
	// ErrClosed is returned by Start after the handle was closed.
	ErrClosed = errors.New("pipeline: handle closed")
	// ErrWorkerExited is returned by Start once the worker has terminated;
	// the cause is available from JoinHandle.Join.
	ErrWorkerExited = errors.New("pipeline: worker exited")
)

// SpawnError reports a model that could not be loaded. No worker is left
// running when it is returned.
type SpawnError struct {
	Definition models.Definition
	Err        error
}

func (e *SpawnError) Error() string {
	return fmt.Sprintf("pipeline: spawn %s: %v", e.Definition, e.Err)
}

func (e *SpawnError) Unwrap() error { return e.Err }

// StartError reports invalid settings or an audio source that failed to
// open. The handle stays usable.
type StartError struct {
	Err error
}

func (e *StartError) Error() string {
	return fmt.Sprintf("pipeline: start: %v", e.Err)
}

func (e *StartError) Unwrap() error { return e.Err }
