package audio

import (
	"context"
	"encoding/binary"
	"math"
)

// Source produces interleaved float32 sample chunks shaped by Settings.
//
// Capture returns once the source is open. The returned channel is closed
// after ctx is done (once any already-captured audio has been delivered) or
// when the source is exhausted. Consumers must drain it until closed.
type Source interface {
	Capture(ctx context.Context, settings Settings) (<-chan []float32, error)
}

// DropCounter is implemented by sources that discard chunks when the
// consumer falls behind.
type DropCounter interface {
	Dropped() uint64
}

// Mono down-mixes interleaved samples to a single channel by averaging.
// Mono input is returned as is.
func Mono(samples []float32, channels uint32) []float32 {
	if channels <= 1 {
		return samples
	}
	frames := len(samples) / int(channels)
	out := make([]float32, frames)
	for i := 0; i < frames; i++ {
		var sum float32
		for c := 0; c < int(channels); c++ {
			sum += samples[i*int(channels)+c]
		}
		out[i] = sum / float32(channels)
	}
	return out
}

// RMS returns the root mean square energy of the samples.
func RMS(samples []float32) float32 {
	if len(samples) == 0 {
		return 0
	}
	var sum float64
	for _, s := range samples {
		sum += float64(s) * float64(s)
	}
	return float32(math.Sqrt(sum / float64(len(samples))))
}

// bytesToFloat32 converts raw bytes (little-endian float32) to a float32 slice.
func bytesToFloat32(data []byte, sampleCount uint32) []float32 {
	samples := make([]float32, 0, sampleCount)
	for i := uint32(0); i < sampleCount; i++ {
		offset := i * 4
		if offset+4 > uint32(len(data)) {
			break
		}
		bits := binary.LittleEndian.Uint32(data[offset : offset+4])
		samples = append(samples, math.Float32frombits(bits))
	}
	return samples
}
