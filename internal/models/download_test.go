package models

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
)

func TestResolveMissing(t *testing.T) {
	dir := t.TempDir()

	_, err := Resolve(dir, TypeBaseEn, "")
	if !errors.Is(err, ErrModelNotFound) {
		t.Fatalf("Resolve() error = %v, want ErrModelNotFound", err)
	}
}

func TestResolveEmptyFile(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(Path(dir, TypeBaseEn), nil, 0644); err != nil {
		t.Fatal(err)
	}

	_, err := Resolve(dir, TypeBaseEn, "")
	if !errors.Is(err, ErrModelNotFound) {
		t.Fatalf("Resolve() error = %v, want ErrModelNotFound", err)
	}
}

func TestResolveFromDir(t *testing.T) {
	dir := t.TempDir()
	want := filepath.Join(dir, "ggml-small.en.bin")
	if err := os.WriteFile(want, []byte("weights"), 0644); err != nil {
		t.Fatal(err)
	}

	got, err := Resolve(dir, TypeSmallEn, "")
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if got != want {
		t.Errorf("Resolve() = %q, want %q", got, want)
	}
}

func TestResolveOverrideWins(t *testing.T) {
	dir := t.TempDir()
	override := filepath.Join(dir, "custom.bin")
	if err := os.WriteFile(override, []byte("weights"), 0644); err != nil {
		t.Fatal(err)
	}

	got, err := Resolve("/nonexistent", TypeBaseEn, override)
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if got != override {
		t.Errorf("Resolve() = %q, want %q", got, override)
	}
}

func TestDownload(t *testing.T) {
	payload := bytes.Repeat([]byte{0xAB}, 4096)
	var requested string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requested = r.URL.Path
		_, _ = w.Write(payload)
	}))
	defer srv.Close()

	prev := baseURL
	baseURL = srv.URL
	defer func() { baseURL = prev }()

	dir := t.TempDir()
	var progress bytes.Buffer
	path, err := Download(context.Background(), dir, TypeTinyEn, &progress)
	if err != nil {
		t.Fatalf("Download() error = %v", err)
	}

	if requested != "/ggml-tiny.en.bin" {
		t.Errorf("requested path = %q, want /ggml-tiny.en.bin", requested)
	}
	got, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading downloaded file: %v", err)
	}
	if !bytes.Equal(got, payload) {
		t.Errorf("downloaded %d bytes, want %d", len(got), len(payload))
	}
	if _, err := os.Stat(path + ".tmp"); !os.IsNotExist(err) {
		t.Errorf("temp file should be removed after download")
	}
	if progress.Len() == 0 {
		t.Error("expected progress output")
	}
}

func TestDownloadHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusNotFound)
	}))
	defer srv.Close()

	prev := baseURL
	baseURL = srv.URL
	defer func() { baseURL = prev }()

	dir := t.TempDir()
	if _, err := Download(context.Background(), dir, TypeBase, nil); err == nil {
		t.Fatal("Download() should fail on HTTP 404")
	}
	if _, err := os.Stat(Path(dir, TypeBase)); !os.IsNotExist(err) {
		t.Error("no model file should be left behind on failure")
	}
}

func TestDownloadSkipsExisting(t *testing.T) {
	dir := t.TempDir()
	existing := Path(dir, TypeBase)
	if err := os.WriteFile(existing, []byte("already here"), 0644); err != nil {
		t.Fatal(err)
	}

	prev := baseURL
	baseURL = "http://127.0.0.1:0"
	defer func() { baseURL = prev }()

	path, err := Download(context.Background(), dir, TypeBase, io.Discard)
	if err != nil {
		t.Fatalf("Download() error = %v", err)
	}
	if path != existing {
		t.Errorf("Download() path = %q, want %q", path, existing)
	}
}

func TestProgressWriter(t *testing.T) {
	tmpDir := t.TempDir()
	f, err := os.Create(filepath.Join(tmpDir, "out"))
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = f.Close() }()

	var out bytes.Buffer
	pw := &progressWriter{
		writer: f,
		out:    &out,
		total:  100,
		label:  "test",
	}

	data := make([]byte, 50)
	n, err := pw.Write(data)
	if err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	if n != 50 {
		t.Errorf("Write() n = %d, want 50", n)
	}
	if pw.written != 50 {
		t.Errorf("written = %d, want 50", pw.written)
	}
	if !bytes.Contains(out.Bytes(), []byte("50%")) {
		t.Errorf("progress output %q should contain 50%%", out.String())
	}
}
