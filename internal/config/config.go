package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/chaz8081/gostt-stream/internal/audio"
	"github.com/chaz8081/gostt-stream/internal/models"
)

// Config holds all application configuration.
type Config struct {
	Model     ModelConfig  `yaml:"model"`
	ModelsDir string       `yaml:"models_dir"`
	Input     InputConfig  `yaml:"input"`
	Run       RunConfig    `yaml:"run"`
	Hotkey    HotkeyConfig `yaml:"hotkey"`
	Inject    InjectConfig `yaml:"inject"`
	LogLevel  string       `yaml:"log_level"`
}

// ModelConfig selects the model the worker loads and how inference runs.
type ModelConfig struct {
	Type     models.Type   `yaml:"type"`
	Device   models.Device `yaml:"device"`
	Path     string        `yaml:"path"`    // overrides models_dir lookup
	Backend  string        `yaml:"backend"` // "whisper" or "stub"
	Language string        `yaml:"language"`
	Threads  uint          `yaml:"threads"` // 0 lets whisper decide
}

// InputConfig holds audio capture and segmentation settings.
type InputConfig struct {
	Source             string        `yaml:"source"`      // "mic" or "wav"
	DeviceName         string        `yaml:"device_name"` // substring of the mic name, "" for default
	WAVPath            string        `yaml:"wav_path"`
	Realtime           bool          `yaml:"realtime"`
	QueueSize          int           `yaml:"queue_size"`
	SampleRate         uint32        `yaml:"sample_rate"`
	Channels           uint32        `yaml:"channels"`
	ChunkDuration      time.Duration `yaml:"chunk_duration"`
	SilenceThreshold   float32       `yaml:"silence_threshold"`
	MinSilenceDuration time.Duration `yaml:"min_silence_duration"`
	MaxSegmentDuration time.Duration `yaml:"max_segment_duration"`
}

// RunConfig controls the unattended start/stop cycle used when the hotkey
// is disabled.
type RunConfig struct {
	PollInterval time.Duration `yaml:"poll_interval"` // 0 runs until interrupted
	Restarts     int           `yaml:"restarts"`      // extra cycles, -1 forever
}

// HotkeyConfig holds hotkey-related settings.
type HotkeyConfig struct {
	Enabled bool     `yaml:"enabled"`
	Keys    []string `yaml:"keys"`
	Mode    string   `yaml:"mode"` // "hold" or "toggle"
}

// InjectConfig holds text injection settings.
type InjectConfig struct {
	Method string `yaml:"method"` // "none", "type" or "paste"
}

// WhisperSampleRate is the only input rate whisper models accept.
const WhisperSampleRate = 16000

// Environment variables that override file values.
const (
	EnvLogLevel = "GOSTT_LOG_LEVEL"
	EnvModel    = "GOSTT_MODEL"
	EnvDevice   = "GOSTT_DEVICE"
	EnvBackend  = "GOSTT_BACKEND"
)

// DefaultConfigDir returns the default config directory path.
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", "gostt-stream")
}

// DefaultConfigPath returns the default config file path.
func DefaultConfigPath() string {
	return filepath.Join(DefaultConfigDir(), "config.yaml")
}

// Default returns a Config with sensible default values.
func Default() *Config {
	settings := audio.DefaultSettings()
	return &Config{
		Model: ModelConfig{
			Type:     models.TypeBaseEn,
			Device:   models.DeviceCPU,
			Backend:  "whisper",
			Language: "en",
		},
		ModelsDir: models.DefaultDir(),
		Input: InputConfig{
			Source:             "mic",
			QueueSize:          audio.DefaultQueueSize,
			SampleRate:         settings.SampleRate,
			Channels:           settings.Channels,
			ChunkDuration:      settings.ChunkDuration,
			SilenceThreshold:   settings.SilenceThreshold,
			MinSilenceDuration: settings.MinSilenceDuration,
			MaxSegmentDuration: settings.MaxSegmentDuration,
		},
		Run: RunConfig{
			PollInterval: 5 * time.Second,
		},
		Hotkey: HotkeyConfig{
			Keys: []string{"ctrl", "shift", "r"},
			Mode: "toggle",
		},
		Inject: InjectConfig{
			Method: "none",
		},
		LogLevel: "info",
	}
}

// Load reads and parses a YAML config file. Missing fields are filled
// with defaults and environment overrides are applied. Tilde (~) in paths
// is expanded to the user's home directory.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}
	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	cfg.expandPaths()

	return cfg, nil
}

// ApplyEnv overrides fields from environment variables read through lookup.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	if lookup == nil {
		return nil
	}
	if v, ok := lookup(EnvLogLevel); ok && v != "" {
		c.LogLevel = strings.ToLower(strings.TrimSpace(v))
	}
	if v, ok := lookup(EnvModel); ok && v != "" {
		t, err := models.ParseType(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvModel, err)
		}
		c.Model.Type = t
	}
	if v, ok := lookup(EnvDevice); ok && v != "" {
		d, err := models.ParseDevice(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvDevice, err)
		}
		c.Model.Device = d
	}
	if v, ok := lookup(EnvBackend); ok && v != "" {
		c.Model.Backend = strings.ToLower(strings.TrimSpace(v))
	}
	return nil
}

func (c *Config) expandPaths() {
	c.ModelsDir = expandTilde(c.ModelsDir)
	c.Model.Path = expandTilde(c.Model.Path)
	c.Input.WAVPath = expandTilde(c.Input.WAVPath)
}

// Validate checks the config for invalid values.
func (c *Config) Validate() error {
	if !c.Model.Type.Valid() {
		return fmt.Errorf("model.type is invalid")
	}
	if !c.Model.Device.Valid() {
		return fmt.Errorf("model.device is invalid")
	}

	switch c.Model.Backend {
	case "whisper":
		if c.Model.Path == "" && c.ModelsDir == "" {
			return fmt.Errorf("models_dir or model.path is required for the whisper backend")
		}
		if c.Input.SampleRate != WhisperSampleRate {
			return fmt.Errorf("input.sample_rate must be %d for the whisper backend, got %d", WhisperSampleRate, c.Input.SampleRate)
		}
	case "stub":
	default:
		return fmt.Errorf("model.backend must be \"whisper\" or \"stub\", got %q", c.Model.Backend)
	}

	switch c.Input.Source {
	case "mic":
	case "wav":
		if c.Input.WAVPath == "" {
			return fmt.Errorf("input.wav_path is required when input.source is \"wav\"")
		}
	default:
		return fmt.Errorf("input.source must be \"mic\" or \"wav\", got %q", c.Input.Source)
	}
	if c.Input.QueueSize < 0 {
		return fmt.Errorf("input.queue_size must be >= 0")
	}
	if err := c.Settings().Validate(); err != nil {
		return fmt.Errorf("input: %w", err)
	}

	if c.Run.PollInterval < 0 {
		return fmt.Errorf("run.poll_interval must be >= 0")
	}
	if c.Run.Restarts < -1 {
		return fmt.Errorf("run.restarts must be >= -1")
	}

	if c.Hotkey.Enabled {
		if len(c.Hotkey.Keys) == 0 {
			return fmt.Errorf("hotkey.keys must not be empty")
		}
		switch c.Hotkey.Mode {
		case "hold", "toggle":
		default:
			return fmt.Errorf("hotkey.mode must be \"hold\" or \"toggle\", got %q", c.Hotkey.Mode)
		}
	}

	switch c.Inject.Method {
	case "none", "type", "paste":
	default:
		return fmt.Errorf("inject.method must be \"none\", \"type\" or \"paste\", got %q", c.Inject.Method)
	}

	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log_level must be debug, info, warn, or error, got %q", c.LogLevel)
	}

	return nil
}

// Settings returns the audio settings a run is started with.
func (c *Config) Settings() audio.Settings {
	return audio.Settings{
		SampleRate:         c.Input.SampleRate,
		Channels:           c.Input.Channels,
		ChunkDuration:      c.Input.ChunkDuration,
		SilenceThreshold:   c.Input.SilenceThreshold,
		MinSilenceDuration: c.Input.MinSilenceDuration,
		MaxSegmentDuration: c.Input.MaxSegmentDuration,
	}
}

// Definition returns the model definition the worker is spawned with.
func (c *Config) Definition() models.Definition {
	return models.NewDefinition(c.Model.Type, c.Model.Device)
}

// ParseLogLevel converts a config log level string to slog.Level.
// Unknown values default to info.
func ParseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

const defaultConfigTemplate = `# gostt-stream configuration
# Continuous speech-to-text: audio is split on silence and each segment is
# transcribed as soon as it closes.

model:
  # tiny, tiny.en, base, base.en, small, small.en, medium, medium.en,
  # large-v3, large-v3-turbo
  type: base.en
  # cpu, metal, cuda
  device: cpu
  # whisper (requires a build with -tags whispercpp) or stub
  backend: whisper
  language: en
  # threads: 4
  # path: ~/models/ggml-base.en.bin

# Downloaded ggml weights live here (gostt-stream -download fetches them).
models_dir: ~/.local/share/gostt-stream/models

input:
  # mic or wav
  source: mic
  # Substring of the microphone name (gostt-stream -list-devices shows them).
  # device_name: USB
  # wav_path: ~/recordings/meeting.wav
  # realtime: false
  sample_rate: 16000
  channels: 1
  chunk_duration: 100ms
  silence_threshold: 0.01
  min_silence_duration: 800ms
  max_segment_duration: 30s

run:
  # Each run lasts poll_interval before it is stopped (0 = until Ctrl+C).
  poll_interval: 5s
  # Extra stop/start cycles after the first run (-1 = forever).
  restarts: 0

hotkey:
  # When enabled the hotkey starts and stops runs instead of the timer.
  enabled: false
  keys: ["ctrl", "shift", "r"]
  # hold or toggle
  mode: toggle

inject:
  # none, type or paste
  method: none

# debug, info, warn, error
log_level: info
`

// WriteDefault writes the default config template to DefaultConfigPath.
// It returns the written path, or "" when a config file already exists.
func WriteDefault() (string, error) {
	path := DefaultConfigPath()
	if path == "config.yaml" {
		return "", errors.New("cannot determine home directory")
	}

	if _, err := os.Stat(path); err == nil {
		return "", nil
	} else if !errors.Is(err, os.ErrNotExist) {
		return "", fmt.Errorf("checking config file: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("creating config dir: %w", err)
	}
	if err := os.WriteFile(path, []byte(defaultConfigTemplate), 0o644); err != nil {
		return "", fmt.Errorf("writing config file: %w", err)
	}
	return path, nil
}

// expandTilde replaces a leading ~ with the user's home directory.
func expandTilde(path string) string {
	if !strings.HasPrefix(path, "~") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, path[1:])
}
