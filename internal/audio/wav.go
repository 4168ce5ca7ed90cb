package audio

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// ErrFormatMismatch is returned when a WAV file does not match the
// requested sample rate or channel count.
var ErrFormatMismatch = errors.New("audio: wav format does not match settings")

// WAVFile replays a PCM WAV file as a capture source. With Realtime set,
// chunks are paced at ChunkDuration intervals like a live microphone.
type WAVFile struct {
	Path     string
	Realtime bool
}

// Capture decodes the whole file and streams it in chunks until the file is
// exhausted or ctx is done.
func (w WAVFile) Capture(ctx context.Context, settings Settings) (<-chan []float32, error) {
	if err := settings.Validate(); err != nil {
		return nil, err
	}

	samples, format, err := ReadWAV(w.Path)
	if err != nil {
		return nil, err
	}
	if uint32(format.SampleRate) != settings.SampleRate || uint32(format.NumChannels) != settings.Channels {
		return nil, fmt.Errorf("%w: %s is %dHz/%dch, want %dHz/%dch", ErrFormatMismatch,
			w.Path, format.SampleRate, format.NumChannels, settings.SampleRate, settings.Channels)
	}

	out := make(chan []float32)
	size := settings.ChunkSamples()

	go func() {
		defer close(out)

		var tick <-chan time.Time
		if w.Realtime {
			ticker := time.NewTicker(settings.ChunkDuration)
			defer ticker.Stop()
			tick = ticker.C
		}

		for start := 0; start < len(samples); start += size {
			end := min(start+size, len(samples))
			if tick != nil {
				select {
				case <-tick:
				case <-ctx.Done():
					return
				}
			}
			select {
			case out <- samples[start:end]:
			case <-ctx.Done():
				return
			}
		}
	}()

	return out, nil
}

// ReadWAV decodes a PCM WAV file into interleaved float32 samples normalized
// to [-1.0, 1.0].
func ReadWAV(path string) ([]float32, *goaudio.Format, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("audio: open wav: %w", err)
	}
	defer f.Close()

	dec := wav.NewDecoder(f)
	if !dec.IsValidFile() {
		return nil, nil, fmt.Errorf("audio: %s is not a valid wav file", path)
	}

	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, nil, fmt.Errorf("audio: decode wav %s: %w", path, err)
	}

	bitDepth := buf.SourceBitDepth
	if bitDepth == 0 {
		bitDepth = int(dec.BitDepth)
	}
	if bitDepth <= 0 || bitDepth > 32 {
		return nil, nil, fmt.Errorf("audio: unsupported bit depth %d in %s", bitDepth, path)
	}
	scale := float32(int64(1) << (bitDepth - 1))
	// 8-bit PCM is unsigned, centred on 128.
	var bias int
	if bitDepth == 8 {
		bias = 128
	}

	samples := make([]float32, len(buf.Data))
	for i, s := range buf.Data {
		samples[i] = float32(s-bias) / scale
	}
	return samples, buf.Format, nil
}

// WriteWAV encodes interleaved float32 samples as 16-bit PCM.
func WriteWAV(path string, samples []float32, sampleRate, channels int) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("audio: create wav: %w", err)
	}

	enc := wav.NewEncoder(f, sampleRate, 16, channels, 1)
	data := make([]int, len(samples))
	for i, s := range samples {
		s = max(-1, min(1, s))
		data[i] = int(s * 32767)
	}
	buf := &goaudio.IntBuffer{
		Format:         &goaudio.Format{NumChannels: channels, SampleRate: sampleRate},
		Data:           data,
		SourceBitDepth: 16,
	}

	if err := enc.Write(buf); err != nil {
		f.Close()
		return fmt.Errorf("audio: encode wav: %w", err)
	}
	if err := enc.Close(); err != nil {
		f.Close()
		return fmt.Errorf("audio: finalize wav: %w", err)
	}
	return f.Close()
}
