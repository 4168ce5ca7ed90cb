// Package inject delivers transcript text to the focused application, either
// by simulating keystrokes or through the clipboard.
package inject

import (
	"fmt"
	"runtime"
	"strings"
	"sync"

	"github.com/go-vgo/robotgo"
)

// TextInjector is anything that can deliver a piece of transcript text.
type TextInjector interface {
	Inject(text string) error
}

// Method selects how text reaches the active application.
type Method string

const (
	MethodNone  Method = "none"
	MethodType  Method = "type"
	MethodPaste Method = "paste"
)

// ParseMethod validates a method name from the config file.
func ParseMethod(s string) (Method, error) {
	switch Method(s) {
	case MethodNone, MethodType, MethodPaste:
		return Method(s), nil
	default:
		return "", fmt.Errorf("inject: unknown method %q (supported: none, type, paste)", s)
	}
}

// keyboard is the desktop automation the Injector drives.
type keyboard interface {
	Type(text string)
	ReadClipboard() (string, error)
	WriteClipboard(text string) error
	Paste() error
}

type robotKeyboard struct{}

func (robotKeyboard) Type(text string) { robotgo.Type(text) }

func (robotKeyboard) ReadClipboard() (string, error) { return robotgo.ReadAll() }

func (robotKeyboard) WriteClipboard(text string) error { return robotgo.WriteAll(text) }

func (robotKeyboard) Paste() error {
	modifier := "ctrl"
	if runtime.GOOS == "darwin" {
		modifier = "cmd"
	}
	return robotgo.KeyTap("v", modifier)
}

// Injector types or pastes successive transcript segments, separating them
// with a single space so they read as continuous text.
type Injector struct {
	method Method
	kb     keyboard

	mu      sync.Mutex
	written bool
}

var _ TextInjector = (*Injector)(nil)

// NewInjector creates an Injector with the given method.
func NewInjector(method Method) *Injector {
	return &Injector{method: method, kb: robotKeyboard{}}
}

// Inject sends text to the active application using the configured method.
func (inj *Injector) Inject(text string) error {
	text = strings.TrimSpace(text)
	if text == "" || inj.method == MethodNone {
		return nil
	}

	inj.mu.Lock()
	defer inj.mu.Unlock()

	if inj.written {
		text = " " + text
	}

	var err error
	switch inj.method {
	case MethodPaste:
		err = inj.paste(text)
	default:
		inj.kb.Type(text)
	}
	if err != nil {
		return err
	}
	inj.written = true
	return nil
}

// Reset starts a new paragraph: the next segment is not prefixed with a
// space.
func (inj *Injector) Reset() {
	inj.mu.Lock()
	inj.written = false
	inj.mu.Unlock()
}

// paste is faster than typing for long text. The previous clipboard is
// restored afterwards on a best effort basis.
func (inj *Injector) paste(text string) error {
	prev, _ := inj.kb.ReadClipboard()

	if err := inj.kb.WriteClipboard(text); err != nil {
		return fmt.Errorf("inject: write to clipboard: %w", err)
	}
	if err := inj.kb.Paste(); err != nil {
		return fmt.Errorf("inject: paste: %w", err)
	}

	_ = inj.kb.WriteClipboard(prev)
	return nil
}
