package audio

import (
	"context"
	"fmt"
	"io"
	"sync"
	"sync/atomic"

	"github.com/jfreymuth/pulse"
	pulseproto "github.com/jfreymuth/pulse/proto"

	"github.com/rbright/livescribe/internal/capability"
)

const (
	// SampleRate is the capture rate in Hz.
	SampleRate = 16000
	// ChunkBytes is 20ms of 16 kHz mono s16le.
	ChunkBytes = 640
)

// Capture streams fixed-size PCM chunks from one Pulse source until stopped.
type Capture struct {
	device Device

	client *pulse.Client
	stream *pulse.RecordStream

	chunks chan []byte
	done   chan struct{}

	mu       sync.Mutex
	pending  []byte
	stopped  bool
	inflight sync.WaitGroup

	bytes atomic.Int64
}

// StartCapture opens a record stream on device. The capture stops when ctx is cancelled.
// Failures are coded audio-capture.
func StartCapture(ctx context.Context, device Device) (*Capture, error) {
	client, err := newClient()
	if err != nil {
		return nil, capability.WithCode(capability.CodeAudioCapture, err)
	}

	source, err := client.SourceByID(device.ID)
	if err != nil {
		client.Close()
		return nil, capability.WithCode(capability.CodeAudioCapture, fmt.Errorf("resolve source %q: %w", device.ID, err))
	}

	c := &Capture{
		device: device,
		client: client,
		chunks: make(chan []byte, 128),
		done:   make(chan struct{}),
	}

	stream, err := client.NewRecord(
		pulse.NewWriter(writerFunc(c.write), pulseproto.FormatInt16LE),
		pulse.RecordSource(source),
		pulse.RecordMono,
		pulse.RecordSampleRate(SampleRate),
		pulse.RecordBufferFragmentSize(ChunkBytes),
		pulse.RecordMediaName("livescribe recognition"),
	)
	if err != nil {
		_ = c.Stop()
		return nil, capability.WithCode(capability.CodeAudioCapture, fmt.Errorf("create pulse record stream: %w", err))
	}
	c.stream = stream
	stream.Start()

	go func() {
		select {
		case <-ctx.Done():
			_ = c.Stop()
		case <-c.done:
		}
	}()

	return c, nil
}

// Device returns the captured source.
func (c *Capture) Device() Device {
	return c.device
}

// Chunks is closed after Stop.
func (c *Capture) Chunks() <-chan []byte {
	return c.chunks
}

// BytesCaptured reports the total PCM bytes accepted from Pulse.
func (c *Capture) BytesCaptured() int64 {
	return c.bytes.Load()
}

// Stop halts recording, flushes any partial chunk, and closes Chunks. Safe to call repeatedly.
func (c *Capture) Stop() error {
	c.mu.Lock()
	if c.stopped {
		c.mu.Unlock()
		return nil
	}
	c.stopped = true
	close(c.done)
	c.mu.Unlock()

	if c.stream != nil {
		c.stream.Stop()
		c.stream.Close()
	}
	if c.client != nil {
		c.client.Close()
	}

	c.inflight.Wait()

	c.mu.Lock()
	tail := c.pending
	c.pending = nil
	c.mu.Unlock()

	if len(tail) > 0 {
		select {
		case c.chunks <- tail:
		default:
		}
	}
	close(c.chunks)
	return nil
}

// write is the Pulse record callback; it slices incoming frames into ChunkBytes pieces.
func (c *Capture) write(frames []byte) (int, error) {
	if len(frames) == 0 {
		return 0, nil
	}

	c.mu.Lock()
	if c.stopped {
		c.mu.Unlock()
		return 0, io.EOF
	}
	// Add under mu so Stop's Wait never races a late callback.
	c.inflight.Add(1)
	defer c.inflight.Done()

	c.pending = append(c.pending, frames...)
	var ready [][]byte
	for len(c.pending) >= ChunkBytes {
		chunk := make([]byte, ChunkBytes)
		copy(chunk, c.pending)
		c.pending = c.pending[ChunkBytes:]
		ready = append(ready, chunk)
	}
	c.mu.Unlock()

	c.bytes.Add(int64(len(frames)))

	for _, chunk := range ready {
		select {
		case <-c.done:
			return 0, io.EOF
		case c.chunks <- chunk:
		}
	}
	return len(frames), nil
}

type writerFunc func([]byte) (int, error)

func (f writerFunc) Write(b []byte) (int, error) {
	return f(b)
}
