// Package hotkey turns a global key combination into start/stop requests for
// the transcription pipeline. In "hold" mode a run lasts while the keys are
// held; in "toggle" mode each press flips between running and stopped.
package hotkey

import (
	"fmt"
	"log/slog"
	"sync"

	hook "github.com/robotn/gohook"
)

// EventType indicates whether a run should start or stop.
type EventType int

const (
	EventStart EventType = iota
	EventStop
)

func (t EventType) String() string {
	if t == EventStart {
		return "start"
	}
	return "stop"
}

// Event is emitted on the channel returned by Events.
type Event struct {
	Type EventType
}

// Mode selects how key presses map to events.
type Mode string

const (
	ModeHold   Mode = "hold"
	ModeToggle Mode = "toggle"
)

// ParseMode validates a mode name from the config file.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ModeHold, ModeToggle:
		return Mode(s), nil
	default:
		return "", fmt.Errorf("hotkey: unknown mode %q (supported: hold, toggle)", s)
	}
}

// tracker converts raw key down/up callbacks into at most one event each.
// Key repeat delivers many KeyDown callbacks for one press, so presses are
// deduplicated until the matching release.
type tracker struct {
	mu      sync.Mutex
	mode    Mode
	held    bool
	running bool
}

func (t *tracker) down() (Event, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.held {
		return Event{}, false
	}
	t.held = true

	if t.mode == ModeToggle && t.running {
		t.running = false
		return Event{Type: EventStop}, true
	}
	t.running = true
	return Event{Type: EventStart}, true
}

func (t *tracker) up() (Event, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.held {
		return Event{}, false
	}
	t.held = false

	if t.mode == ModeHold && t.running {
		t.running = false
		return Event{Type: EventStop}, true
	}
	return Event{}, false
}

// Listener manages a global hotkey and emits start/stop events.
type Listener struct {
	keys  []string
	log   *slog.Logger
	track tracker
	ch    chan Event
	done  chan struct{}
	once  sync.Once
}

// NewListener creates a Listener for the given key combo, e.g.
// ["ctrl", "shift", "r"].
func NewListener(keys []string, mode Mode, logger *slog.Logger) *Listener {
	if logger == nil {
		logger = slog.Default()
	}
	return &Listener{
		keys:  keys,
		log:   logger.With("component", "hotkey"),
		track: tracker{mode: mode},
		ch:    make(chan Event, 16),
		done:  make(chan struct{}),
	}
}

// Events returns the channel that receives hotkey events. It is closed when
// the listener stops.
func (l *Listener) Events() <-chan Event {
	return l.ch
}

// Run listens for the hotkey until Stop is called. It blocks; run it in a
// goroutine.
func (l *Listener) Run() {
	hook.Register(hook.KeyDown, l.keys, func(hook.Event) {
		if ev, ok := l.track.down(); ok {
			l.emit(ev)
		}
	})
	hook.Register(hook.KeyUp, l.keys, func(hook.Event) {
		if ev, ok := l.track.up(); ok {
			l.emit(ev)
		}
	})

	evChan := hook.Start()
	go func() {
		<-l.done
		hook.End()
	}()
	<-hook.Process(evChan)
	close(l.ch)
}

// emit never blocks the hook callback.
func (l *Listener) emit(ev Event) {
	select {
	case l.ch <- ev:
		l.log.Debug("hotkey event", "type", ev.Type.String())
	default:
		l.log.Warn("hotkey event dropped, consumer is behind", "type", ev.Type.String())
	}
}

// Stop terminates the listener. It is safe to call multiple times.
func (l *Listener) Stop() {
	l.once.Do(func() {
		close(l.done)
	})
}
