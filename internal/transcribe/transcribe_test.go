package transcribe

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/chaz8081/gostt-stream/internal/models"
	"github.com/chaz8081/gostt-stream/internal/segment"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func oneSecond(seq uint64) segment.AudioSegment {
	return segment.AudioSegment{
		Seq:        seq,
		Samples:    make([]float32, 16000),
		SampleRate: 16000,
	}
}

func TestStubModelTranscribe(t *testing.T) {
	m := NewStubModel(models.NewDefinition(models.TypeBaseEn, models.DeviceCPU), discardLogger())
	defer func() { _ = m.Close() }()

	results, err := m.Transcribe(context.Background(), oneSecond(3))
	if err != nil {
		t.Fatalf("Transcribe() error = %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("Transcribe() returned %d results, want 1", len(results))
	}
	r := results[0]
	if !strings.Contains(r.Text, "segment 3") || !strings.Contains(r.Text, "base.en") {
		t.Errorf("Text = %q, want it to mention the segment and variant", r.Text)
	}
	if !r.Timed || r.End != time.Second {
		t.Errorf("timestamps = %v..%v (timed=%v), want 0..1s", r.Start, r.End, r.Timed)
	}
	if m.Segments() != 1 {
		t.Errorf("Segments() = %d, want 1", m.Segments())
	}
}

func TestStubModelEmptySegment(t *testing.T) {
	m := NewStubModel(models.Definition{}, nil)
	results, err := m.Transcribe(context.Background(), segment.AudioSegment{SampleRate: 16000})
	if err != nil || len(results) != 0 {
		t.Errorf("Transcribe(empty) = %v, %v; want no results, no error", results, err)
	}
}

func TestStubModelClosedIsFatal(t *testing.T) {
	m := NewStubModel(models.Definition{}, discardLogger())
	_ = m.Close()

	_, err := m.Transcribe(context.Background(), oneSecond(0))
	if !errors.Is(err, ErrFatal) {
		t.Errorf("Transcribe() after Close error = %v, want ErrFatal", err)
	}
}

func TestNewLoaderUnknownBackend(t *testing.T) {
	if _, err := NewLoader(Options{Backend: "parakeet"}); err == nil {
		t.Fatal("NewLoader() should reject unknown backends")
	}
}

func TestStubLoader(t *testing.T) {
	load, err := NewLoader(Options{Backend: "stub", Logger: discardLogger()})
	if err != nil {
		t.Fatalf("NewLoader() error = %v", err)
	}

	m, err := load(models.NewDefinition(models.TypeTiny, models.DeviceMetal))
	if err != nil {
		t.Fatalf("load() error = %v", err)
	}
	if _, ok := m.(*StubModel); !ok {
		t.Errorf("load() returned %T, want *StubModel", m)
	}
	_ = m.Close()

	_, err = load(models.Definition{Type: models.TypeTiny, Device: models.Device(99)})
	if !errors.Is(err, ErrUnsupportedDevice) {
		t.Errorf("load(invalid device) error = %v, want ErrUnsupportedDevice", err)
	}

	if _, err := load(models.Definition{Type: models.Type(99)}); err == nil {
		t.Error("load(invalid type) should fail")
	}
}

func TestWhisperLoaderMissingModel(t *testing.T) {
	load, err := NewLoader(Options{ModelsDir: t.TempDir(), Logger: discardLogger()})
	if err != nil {
		t.Fatalf("NewLoader() error = %v", err)
	}

	_, err = load(models.NewDefinition(models.TypeBaseEn, models.DeviceCPU))
	if !errors.Is(err, models.ErrModelNotFound) {
		t.Errorf("load() error = %v, want ErrModelNotFound", err)
	}
}

func TestWhisperLoaderUnavailable(t *testing.T) {
	if WhisperAvailable() {
		t.Skip("whisper backend compiled in")
	}
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "ggml-base.en.bin"), []byte("weights"), 0644); err != nil {
		t.Fatal(err)
	}

	load, err := NewLoader(Options{ModelsDir: dir, Logger: discardLogger()})
	if err != nil {
		t.Fatalf("NewLoader() error = %v", err)
	}
	_, err = load(models.NewDefinition(models.TypeBaseEn, models.DeviceCPU))
	if !errors.Is(err, ErrWhisperUnavailable) {
		t.Errorf("load() error = %v, want ErrWhisperUnavailable", err)
	}
}

func TestCheckDevice(t *testing.T) {
	if err := CheckDevice(models.DeviceCPU); err != nil {
		t.Errorf("CheckDevice(cpu) error = %v", err)
	}

	err := CheckDevice(models.DeviceMetal)
	if runtime.GOOS == "darwin" {
		if err != nil {
			t.Errorf("CheckDevice(metal) on darwin error = %v", err)
		}
	} else if !errors.Is(err, ErrUnsupportedDevice) {
		t.Errorf("CheckDevice(metal) on %s error = %v, want ErrUnsupportedDevice", runtime.GOOS, err)
	}

	if err := CheckDevice(models.Device(7)); !errors.Is(err, ErrUnsupportedDevice) {
		t.Errorf("CheckDevice(7) error = %v, want ErrUnsupportedDevice", err)
	}
}

func TestCleanText(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"  hello world ", "hello world"},
		{"[BLANK_AUDIO]", ""},
		{" [BLANK_AUDIO] ok", "ok"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := cleanText(tt.in); got != tt.want {
			t.Errorf("cleanText(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
