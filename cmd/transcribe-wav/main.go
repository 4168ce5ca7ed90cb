// Command transcribe-wav streams a WAV file through the transcription
// pipeline and prints each segment as it arrives. With a reference
// transcript it also reports the word error rate of the joined segments.
//
// Usage:
//
//	go run ./cmd/transcribe-wav -wav speech.wav [-ref "expected text"] [-model base.en] [-backend whisper|stub]
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/chaz8081/gostt-stream/internal/audio"
	"github.com/chaz8081/gostt-stream/internal/config"
	"github.com/chaz8081/gostt-stream/internal/models"
	"github.com/chaz8081/gostt-stream/internal/pipeline"
	"github.com/chaz8081/gostt-stream/internal/telemetry"
	"github.com/chaz8081/gostt-stream/internal/transcribe"
)

func main() {
	wavPath := flag.String("wav", "", "WAV file to transcribe (required)")
	ref := flag.String("ref", "", "reference transcript for WER scoring")
	refFile := flag.String("ref-file", "", "file holding the reference transcript")
	modelName := flag.String("model", "base.en", "model type")
	deviceName := flag.String("device", "cpu", "compute device: cpu, metal or cuda")
	backend := flag.String("backend", "whisper", "backend: whisper or stub")
	modelsDir := flag.String("models-dir", models.DefaultDir(), "directory holding ggml weights")
	realtime := flag.Bool("realtime", false, "pace the file like a live microphone")
	threshold := flag.Float64("silence-threshold", 0.01, "RMS below which audio is silence")
	minSilence := flag.Duration("min-silence", 800*time.Millisecond, "silence that closes a segment")
	logLevel := flag.String("log-level", "warn", "debug, info, warn or error")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: config.ParseLogLevel(*logLevel),
	}))

	if err := run(logger, options{
		wavPath:    *wavPath,
		ref:        *ref,
		refFile:    *refFile,
		modelName:  *modelName,
		deviceName: *deviceName,
		backend:    *backend,
		modelsDir:  *modelsDir,
		realtime:   *realtime,
		threshold:  float32(*threshold),
		minSilence: *minSilence,
	}); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

type options struct {
	wavPath    string
	ref        string
	refFile    string
	modelName  string
	deviceName string
	backend    string
	modelsDir  string
	realtime   bool
	threshold  float32
	minSilence time.Duration
}

func run(logger *slog.Logger, opts options) error {
	if opts.wavPath == "" {
		return fmt.Errorf("-wav is required")
	}
	reference := opts.ref
	if opts.refFile != "" {
		data, err := os.ReadFile(opts.refFile)
		if err != nil {
			return fmt.Errorf("reading reference: %w", err)
		}
		reference = string(data)
	}

	t, err := models.ParseType(opts.modelName)
	if err != nil {
		return err
	}
	d, err := models.ParseDevice(opts.deviceName)
	if err != nil {
		return err
	}

	// Capture at the file's own format; the segmenter downmixes to mono.
	_, format, err := audio.ReadWAV(opts.wavPath)
	if err != nil {
		return err
	}
	if opts.backend != "stub" && format.SampleRate != config.WhisperSampleRate {
		return fmt.Errorf("%s is %dHz; whisper needs %dHz audio (ffmpeg -i in.wav -ar 16000 out.wav)",
			opts.wavPath, format.SampleRate, config.WhisperSampleRate)
	}
	settings := audio.DefaultSettings()
	settings.SampleRate = uint32(format.SampleRate)
	settings.Channels = uint32(format.NumChannels)
	settings.SilenceThreshold = opts.threshold
	settings.MinSilenceDuration = opts.minSilence

	loader, err := transcribe.NewLoader(transcribe.Options{
		Backend:   opts.backend,
		ModelsDir: opts.modelsDir,
		Logger:    logger,
	})
	if err != nil {
		return err
	}

	metrics := telemetry.NewRecorder(logger)
	join, handle, err := pipeline.Spawn(models.NewDefinition(t, d), pipeline.Options{
		Loader:  loader,
		Source:  audio.WAVFile{Path: opts.wavPath, Realtime: opts.realtime},
		Logger:  logger,
		Metrics: metrics,
	})
	if err != nil {
		return err
	}
	defer handle.Close()

	start := time.Now()
	stream, err := handle.Start(settings)
	if err != nil {
		return err
	}

	var texts []string
	for seg := range stream.Segments(context.Background()) {
		fmt.Println(seg)
		texts = append(texts, seg.Text)
	}
	elapsed := time.Since(start)

	handle.Close()
	if err := join.Join(); err != nil {
		return err
	}

	snap := metrics.Snapshot()
	fmt.Printf("\n%d segments from %s of speech in %s\n",
		len(texts), snap.TotalAudio.Round(time.Millisecond), elapsed.Round(time.Millisecond))

	if reference != "" {
		wer := transcribe.ComputeSegmentWER(reference, texts)
		fmt.Printf("WER: %.2f%% (S=%d I=%d D=%d, %d reference words)\n",
			wer.WER*100, wer.Substitutions, wer.Insertions, wer.Deletions, wer.RefWords)
	}
	return nil
}
