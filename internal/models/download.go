package models

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
)

// ErrModelNotFound is returned by Resolve when the weights are not on disk.
var ErrModelNotFound = errors.New("models: model file not found")

// baseURL hosts the ggml conversions of every whisper variant.
var baseURL = "https://huggingface.co/ggerganov/whisper.cpp/resolve/main"

// DefaultDir returns the default directory model weights are stored in.
func DefaultDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", "models")
	}
	return filepath.Join(home, ".local", "share", "gostt-stream", "models")
}

// Path returns where the weights for t live inside dir.
func Path(dir string, t Type) string {
	return filepath.Join(dir, t.Filename())
}

// Resolve returns the on-disk path of the weights for t. A non-empty override
// wins over dir. It returns an error wrapping ErrModelNotFound if the file
// does not exist or is empty.
func Resolve(dir string, t Type, override string) (string, error) {
	path := strings.TrimSpace(override)
	if path == "" {
		if !t.Valid() {
			return "", fmt.Errorf("models: resolve: invalid model type %d", int(t))
		}
		path = Path(dir, t)
	}

	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", fmt.Errorf("%w: %s", ErrModelNotFound, path)
		}
		return "", fmt.Errorf("models: stat %s: %w", path, err)
	}
	if info.IsDir() || info.Size() == 0 {
		return "", fmt.Errorf("%w: %s is empty or a directory", ErrModelNotFound, path)
	}
	return path, nil
}

// Download fetches the ggml weights for t into dir and returns the final
// path. Existing non-empty files are left untouched. Progress is written to
// progress when it is non-nil.
func Download(ctx context.Context, dir string, t Type, progress io.Writer) (string, error) {
	if !t.Valid() {
		return "", fmt.Errorf("models: download: invalid model type %d", int(t))
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("creating models dir: %w", err)
	}

	destPath := Path(dir, t)
	if info, err := os.Stat(destPath); err == nil && info.Size() > 0 {
		if progress != nil {
			fmt.Fprintf(progress, "  Model already exists: %s (%.0f MB)\n", destPath, float64(info.Size())/(1024*1024))
		}
		return destPath, nil
	}

	url := baseURL + "/" + t.Filename()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("models: build request: %w", err)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("downloading %s: %w", t.Filename(), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("download %s failed: HTTP %d", t.Filename(), resp.StatusCode)
	}

	// Write to temp file first, then rename (atomic)
	tmpPath := destPath + ".tmp"
	f, err := os.Create(tmpPath)
	if err != nil {
		return "", fmt.Errorf("creating temp file: %w", err)
	}

	var w io.Writer = f
	if progress != nil {
		w = &progressWriter{
			writer: f,
			out:    progress,
			total:  resp.ContentLength,
			label:  t.Filename(),
		}
	}

	written, err := io.Copy(w, resp.Body)
	f.Close()
	if err != nil {
		os.Remove(tmpPath)
		return "", fmt.Errorf("writing model file: %w", err)
	}

	if progress != nil {
		fmt.Fprintf(progress, "\n  Downloaded %.1f MB\n", float64(written)/(1024*1024))
	}

	if err := os.Rename(tmpPath, destPath); err != nil {
		os.Remove(tmpPath)
		return "", fmt.Errorf("moving model file: %w", err)
	}

	return destPath, nil
}

// progressWriter wraps an io.Writer and reports download progress to out.
type progressWriter struct {
	writer  io.Writer
	out     io.Writer
	total   int64
	written int64
	label   string
}

func (pw *progressWriter) Write(p []byte) (int, error) {
	n, err := pw.writer.Write(p)
	pw.written += int64(n)
	if pw.total > 0 {
		pct := float64(pw.written) / float64(pw.total) * 100
		fmt.Fprintf(pw.out, "\r  %s: %.1f MB / %.1f MB (%.0f%%)",
			pw.label,
			float64(pw.written)/(1024*1024),
			float64(pw.total)/(1024*1024),
			pct)
	} else {
		fmt.Fprintf(pw.out, "\r  %s: %.1f MB downloaded",
			pw.label,
			float64(pw.written)/(1024*1024))
	}
	return n, err
}
