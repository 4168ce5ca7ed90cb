// Command gostt-stream transcribes speech continuously. Audio from the
// microphone (or a WAV file) is split on silence and each segment is
// printed, and optionally typed into the focused application, as soon as it
// has been transcribed.
//
// Usage:
//
//	gostt-stream [-config path] [-write-config] [-download] [-list-devices] [-wav file]
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/chaz8081/gostt-stream/internal/audio"
	"github.com/chaz8081/gostt-stream/internal/config"
	"github.com/chaz8081/gostt-stream/internal/hotkey"
	"github.com/chaz8081/gostt-stream/internal/inject"
	"github.com/chaz8081/gostt-stream/internal/models"
	"github.com/chaz8081/gostt-stream/internal/pipeline"
	"github.com/chaz8081/gostt-stream/internal/telemetry"
	"github.com/chaz8081/gostt-stream/internal/transcribe"
)

// stopGrace bounds how long a stop may take to transcribe the audio that
// was already captured.
const stopGrace = 30 * time.Second

func main() {
	configPath := flag.String("config", "", "path to config file (default: ~/.config/gostt-stream/config.yaml)")
	writeConfig := flag.Bool("write-config", false, "write the default config file and exit")
	download := flag.Bool("download", false, "download the configured model and exit")
	wavPath := flag.String("wav", "", "transcribe a WAV file instead of the microphone")
	listDevices := flag.Bool("list-devices", false, "print the available microphones and exit")
	flag.Parse()

	if *listDevices {
		if err := printDevices(); err != nil {
			fmt.Fprintf(os.Stderr, "list devices: %v\n", err)
			os.Exit(1)
		}
		return
	}

	if *writeConfig {
		path, err := config.WriteDefault()
		if err != nil {
			fmt.Fprintf(os.Stderr, "write config: %v\n", err)
			os.Exit(1)
		}
		if path == "" {
			fmt.Printf("Config already exists at %s\n", config.DefaultConfigPath())
			return
		}
		fmt.Printf("Wrote default config to %s\n", path)
		return
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	if *wavPath != "" {
		cfg.Input.Source = "wav"
		cfg.Input.WAVPath = *wavPath
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "config validation: %v\n", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: config.ParseLogLevel(cfg.LogLevel),
	}))
	slog.SetDefault(logger)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if *download {
		path, err := models.Download(ctx, cfg.ModelsDir, cfg.Model.Type, os.Stderr)
		if err != nil {
			logger.Error("model download failed", "error", err)
			os.Exit(1)
		}
		fmt.Printf("Model ready at %s\n", path)
		return
	}

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("gostt-stream failed", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	printBanner(cfg)

	loader, err := transcribe.NewLoader(transcribe.Options{
		Backend:   cfg.Model.Backend,
		ModelsDir: cfg.ModelsDir,
		ModelPath: cfg.Model.Path,
		Language:  cfg.Model.Language,
		Threads:   cfg.Model.Threads,
		Logger:    logger,
	})
	if err != nil {
		return err
	}

	var source audio.Source
	switch cfg.Input.Source {
	case "wav":
		source = audio.WAVFile{Path: cfg.Input.WAVPath, Realtime: cfg.Input.Realtime}
		logger.Info("reading audio from file", "path", cfg.Input.WAVPath, "realtime", cfg.Input.Realtime)
	default:
		mic, err := audio.NewMic(cfg.Input.QueueSize, cfg.Input.DeviceName)
		if errors.Is(err, audio.ErrDeviceNotFound) {
			return fmt.Errorf("%w\n\nRun 'gostt-stream -list-devices' to see the available microphones", err)
		}
		if err != nil {
			return fmt.Errorf("%w\n\nEnsure microphone access is granted to this terminal", err)
		}
		defer mic.Close()
		source = mic
		device := mic.DeviceName()
		if device == "" {
			device = "default"
		}
		logger.Info("microphone ready", "device", device)
	}

	method, err := inject.ParseMethod(cfg.Inject.Method)
	if err != nil {
		return err
	}
	injector := inject.NewInjector(method)
	metrics := telemetry.NewRecorder(logger)

	logger.Info("loading model", "model", cfg.Definition().String(), "backend", cfg.Model.Backend)
	join, handle, err := pipeline.Spawn(cfg.Definition(), pipeline.Options{
		Loader:  loader,
		Source:  source,
		Logger:  logger,
		Metrics: metrics,
	})
	if err != nil {
		if errors.Is(err, models.ErrModelNotFound) {
			return fmt.Errorf("%w\n\nRun 'gostt-stream -download' to fetch %s", err, cfg.Model.Type.Filename())
		}
		return err
	}

	d := &driver{
		cfg:      cfg,
		log:      logger,
		handle:   handle,
		join:     join,
		injector: injector,
	}
	if cfg.Hotkey.Enabled {
		err = d.hotkeyLoop(ctx)
	} else {
		err = d.cycleLoop(ctx)
	}

	handle.Close()
	waitCtx, cancel := context.WithTimeout(context.Background(), stopGrace)
	defer cancel()
	joinErr := join.Wait(waitCtx)

	snap := metrics.Snapshot()
	logger.Info("session summary",
		"session", join.Session(),
		"runs", snap.TotalRuns,
		"audio_segments", snap.TotalAudioSegments,
		"audio", snap.TotalAudio.Round(time.Millisecond),
		"transcripts", snap.TotalTranscripts,
		"inference_errors", snap.TotalInferenceErrors,
		"dropped_chunks", snap.TotalDroppedChunks,
	)

	if err != nil {
		return err
	}
	return joinErr
}

// driver starts and stops runs and forwards their segments to stdout and
// the injector.
type driver struct {
	cfg      *config.Config
	log      *slog.Logger
	handle   *pipeline.Handle
	join     *pipeline.JoinHandle
	injector *inject.Injector
}

// start begins a run and returns a channel closed once its stream has been
// fully consumed.
func (d *driver) start() (<-chan struct{}, error) {
	stream, err := d.handle.Start(d.cfg.Settings())
	if err != nil {
		return nil, err
	}
	d.injector.Reset()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for seg := range stream.Segments(context.Background()) {
			fmt.Println(seg)
			if err := d.injector.Inject(seg.Text); err != nil {
				d.log.Warn("text injection failed", "seq", seg.Seq, "error", err)
			}
		}
	}()
	return done, nil
}

func (d *driver) stop(consumed <-chan struct{}) error {
	ctx, cancel := context.WithTimeout(context.Background(), stopGrace)
	defer cancel()
	if err := d.handle.Stop(ctx); err != nil && !errors.Is(err, pipeline.ErrNotRunning) {
		return fmt.Errorf("stopping run: %w", err)
	}
	if consumed != nil {
		<-consumed
	}
	return nil
}

// cycleLoop runs for poll_interval, stops and restarts the configured number
// of times. A run also ends early when its source is exhausted.
func (d *driver) cycleLoop(ctx context.Context) error {
	restarts := d.cfg.Run.Restarts
	for cycle := 0; restarts < 0 || cycle <= restarts; cycle++ {
		if cycle > 0 {
			d.log.Info("restarting", "cycle", cycle)
		}

		consumed, err := d.start()
		if err != nil {
			return err
		}

		var (
			timer   *time.Timer
			timeout <-chan time.Time
		)
		if d.cfg.Run.PollInterval > 0 {
			timer = time.NewTimer(d.cfg.Run.PollInterval)
			timeout = timer.C
		}

		last := false
		select {
		case <-timeout:
		case <-consumed:
			d.log.Info("run ended")
			last = true
		case <-d.join.Done():
			last = true
		case <-ctx.Done():
			d.log.Info("interrupted, shutting down")
			last = true
		}
		if timer != nil {
			timer.Stop()
		}

		if err := d.stop(consumed); err != nil {
			return err
		}
		if last {
			return nil
		}
	}
	return nil
}

// hotkeyLoop starts and stops runs from the global hotkey until interrupted.
func (d *driver) hotkeyLoop(ctx context.Context) error {
	mode, err := hotkey.ParseMode(d.cfg.Hotkey.Mode)
	if err != nil {
		return err
	}
	listener := hotkey.NewListener(d.cfg.Hotkey.Keys, mode, d.log)
	// The listener is never stopped: unhooking in gohook's C cleanup can
	// crash, and the OS reclaims the hook on process exit.
	go listener.Run()

	combo := strings.Join(d.cfg.Hotkey.Keys, "+")
	d.log.Info("ready", "hotkey", combo, "mode", string(mode))
	fmt.Printf("Ready! Press %s to transcribe. Ctrl+C to quit.\n", combo)

	var consumed <-chan struct{}
	events := listener.Events()
	for {
		select {
		case ev, ok := <-events:
			if !ok {
				d.log.Info("hotkey listener stopped")
				return d.stop(consumed)
			}
			switch ev.Type {
			case hotkey.EventStart:
				c, err := d.start()
				if errors.Is(err, pipeline.ErrAlreadyRunning) {
					d.log.Debug("run already active")
					continue
				}
				if err != nil {
					d.log.Error("failed to start run", "error", err)
					if d.workerGone() {
						return nil
					}
					continue
				}
				consumed = c
				d.log.Info("listening")
			case hotkey.EventStop:
				if err := d.stop(consumed); err != nil {
					return err
				}
				consumed = nil
				d.log.Info("stopped")
			}

		case <-d.join.Done():
			return nil

		case <-ctx.Done():
			d.log.Info("interrupted, shutting down")
			return d.stop(consumed)
		}
	}
}

func (d *driver) workerGone() bool {
	select {
	case <-d.join.Done():
		return true
	default:
		return false
	}
}

// loadConfig loads the config from the specified path, or falls back to
// the default config path, or uses built-in defaults.
func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.Load(path)
	}

	defaultPath := config.DefaultConfigPath()
	if _, err := os.Stat(defaultPath); err == nil {
		cfg, err := config.Load(defaultPath)
		if err != nil {
			return nil, fmt.Errorf("loading %s: %w", defaultPath, err)
		}
		return cfg, nil
	}

	cfg := config.Default()
	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	return cfg, nil
}

// printDevices lists the capture devices that input.device_name can match.
func printDevices() error {
	mic, err := audio.NewMic(0, "")
	if err != nil {
		return err
	}
	defer mic.Close()

	names, err := mic.CaptureDevices()
	if err != nil {
		return err
	}
	if len(names) == 0 {
		fmt.Println("No microphones found.")
		return nil
	}
	for i, name := range names {
		fmt.Printf("%d: %s\n", i, name)
	}
	return nil
}

// printBanner displays the startup configuration summary.
func printBanner(cfg *config.Config) {
	s := cfg.Settings()
	fmt.Println("=== gostt-stream ===")
	fmt.Printf("  Model:    %s (%s)\n", cfg.Definition(), cfg.Model.Backend)
	if cfg.Input.Source == "wav" {
		fmt.Printf("  Input:    %s\n", cfg.Input.WAVPath)
	} else if cfg.Input.DeviceName != "" {
		fmt.Printf("  Input:    microphone matching %q\n", cfg.Input.DeviceName)
	} else {
		fmt.Println("  Input:    microphone")
	}
	fmt.Printf("  Audio:    %dHz, %dch, %s chunks\n", s.SampleRate, s.Channels, s.ChunkDuration)
	fmt.Printf("  Silence:  rms < %.3f for %s (max segment %s)\n", s.SilenceThreshold, s.MinSilenceDuration, s.MaxSegmentDuration)
	if cfg.Hotkey.Enabled {
		fmt.Printf("  Hotkey:   %s (%s mode)\n", strings.Join(cfg.Hotkey.Keys, "+"), cfg.Hotkey.Mode)
	} else {
		fmt.Printf("  Cycle:    %s, %d restarts\n", cfg.Run.PollInterval, cfg.Run.Restarts)
	}
	fmt.Printf("  Inject:   %s\n", cfg.Inject.Method)
	fmt.Printf("  Log:      %s\n", cfg.LogLevel)
	fmt.Println("====================")
}
