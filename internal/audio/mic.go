package audio

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"unsafe"

	"github.com/gen2brain/malgo"
)

// DefaultQueueSize is the number of chunks buffered between the capture
// callback and the consumer.
const DefaultQueueSize = 256

// ErrDeviceNotFound is returned by NewMic when no capture device matches
// the requested name.
var ErrDeviceNotFound = errors.New("audio: capture device not found")

// Mic captures audio from a microphone. It supports one capture at a time;
// call Close when done.
type Mic struct {
	ctx        *malgo.AllocatedContext
	queueSize  int
	deviceID   unsafe.Pointer // nil selects the system default
	deviceName string
	dropped    atomic.Uint64

	mu        sync.Mutex
	device    *malgo.Device
	capturing bool
}

// NewMic initializes the audio context. queueSize <= 0 uses
// DefaultQueueSize. A non-empty deviceName selects the first capture device
// whose name contains it, ignoring case; otherwise the default device is
// used.
func NewMic(queueSize int, deviceName string) (*Mic, error) {
	ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return nil, fmt.Errorf("initializing audio context: %w", err)
	}
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}
	m := &Mic{ctx: ctx, queueSize: queueSize}

	if deviceName != "" {
		infos, err := ctx.Devices(malgo.Capture)
		if err != nil {
			m.Close()
			return nil, fmt.Errorf("listing capture devices: %w", err)
		}
		names := make([]string, len(infos))
		for i := range infos {
			names[i] = infos[i].Name()
		}
		i, err := MatchDevice(names, deviceName)
		if err != nil {
			m.Close()
			return nil, err
		}
		m.deviceID = infos[i].ID.Pointer()
		m.deviceName = names[i]
	}
	return m, nil
}

// CaptureDevices returns the names of the available capture devices.
func (m *Mic) CaptureDevices() ([]string, error) {
	infos, err := m.ctx.Devices(malgo.Capture)
	if err != nil {
		return nil, fmt.Errorf("listing capture devices: %w", err)
	}
	names := make([]string, len(infos))
	for i := range infos {
		names[i] = infos[i].Name()
	}
	return names, nil
}

// DeviceName returns the name of the selected device, or "" for the system
// default.
func (m *Mic) DeviceName() string {
	return m.deviceName
}

// MatchDevice returns the index of the first name containing want, ignoring
// case. The error wraps ErrDeviceNotFound and lists the available names.
func MatchDevice(names []string, want string) (int, error) {
	needle := strings.ToLower(strings.TrimSpace(want))
	for i, name := range names {
		if strings.Contains(strings.ToLower(name), needle) {
			return i, nil
		}
	}
	available := "none"
	if len(names) > 0 {
		available = strings.Join(names, ", ")
	}
	return -1, fmt.Errorf("%w: %q (available: %s)", ErrDeviceNotFound, want, available)
}

// Capture starts the capture device and streams chunks of
// settings.ChunkDuration until ctx is done. A trailing partial chunk is
// delivered before the channel closes.
func (m *Mic) Capture(ctx context.Context, settings Settings) (<-chan []float32, error) {
	if err := settings.Validate(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	if m.capturing {
		m.mu.Unlock()
		return nil, fmt.Errorf("audio: already capturing")
	}
	m.capturing = true
	m.mu.Unlock()

	out := make(chan []float32, m.queueSize)
	chunker := &chunker{size: settings.ChunkSamples()}

	deviceCfg := malgo.DefaultDeviceConfig(malgo.Capture)
	deviceCfg.Capture.Format = malgo.FormatF32
	deviceCfg.Capture.Channels = settings.Channels
	deviceCfg.Capture.DeviceID = m.deviceID
	deviceCfg.SampleRate = settings.SampleRate

	onData := func(_, pSample []byte, frameCount uint32) {
		samples := bytesToFloat32(pSample, frameCount*settings.Channels)
		for _, chunk := range chunker.add(samples) {
			select {
			case out <- chunk:
			default:
				// The callback runs on the audio thread and must not block.
				m.dropped.Add(1)
			}
		}
	}

	device, err := malgo.InitDevice(m.ctx.Context, deviceCfg, malgo.DeviceCallbacks{Data: onData})
	if err != nil {
		m.release()
		return nil, fmt.Errorf("initializing capture device: %w", err)
	}

	if err := device.Start(); err != nil {
		device.Uninit()
		m.release()
		return nil, fmt.Errorf("starting capture device: %w", err)
	}

	m.mu.Lock()
	m.device = device
	m.mu.Unlock()

	go func() {
		<-ctx.Done()
		m.finish(chunker, out)
	}()

	return out, nil
}

// finish ends a capture. The mic is released before out closes, so a
// consumer that sees the end of the stream can capture again at once.
func (m *Mic) finish(c *chunker, out chan<- []float32) {
	m.stopDevice()
	m.release()
	if tail := c.rest(); len(tail) > 0 {
		out <- tail
	}
	close(out)
}

// Dropped returns how many chunks were discarded because the consumer fell
// behind.
func (m *Mic) Dropped() uint64 {
	return m.dropped.Load()
}

// IsCapturing returns whether a capture is in progress.
func (m *Mic) IsCapturing() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.capturing
}

// Close stops any capture and releases all audio resources.
func (m *Mic) Close() error {
	m.stopDevice()

	if m.ctx != nil {
		if err := m.ctx.Uninit(); err != nil {
			return fmt.Errorf("uninitializing audio context: %w", err)
		}
		m.ctx.Free()
		m.ctx = nil
	}

	return nil
}

// stopDevice uninitializes the device. No callbacks run after it returns.
func (m *Mic) stopDevice() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.device != nil {
		m.device.Uninit()
		m.device = nil
	}
}

func (m *Mic) release() {
	m.mu.Lock()
	m.capturing = false
	m.mu.Unlock()
}

// chunker regroups arbitrarily sized callback buffers into fixed-size chunks.
type chunker struct {
	mu   sync.Mutex
	size int
	buf  []float32
}

func (c *chunker) add(samples []float32) [][]float32 {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.buf = append(c.buf, samples...)
	var chunks [][]float32
	for len(c.buf) >= c.size {
		chunk := make([]float32, c.size)
		copy(chunk, c.buf[:c.size])
		chunks = append(chunks, chunk)
		c.buf = c.buf[c.size:]
	}
	return chunks
}

func (c *chunker) rest() []float32 {
	c.mu.Lock()
	defer c.mu.Unlock()

	tail := c.buf
	c.buf = nil
	return tail
}
