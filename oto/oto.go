// Package oto wires the engine's audio output to the system audio device
// through github.com/ebitengine/oto/v3.
package oto

import (
	"fmt"
	"io"
	"math"
	"sync"
	"time"

	"github.com/ebitengine/oto/v3"

	reelforge "github.com/Bojan20/reelforge-standalone-sub003"
)

type (
	// Context adapts one oto device context. Oto contexts are process-wide
	// singletons on most platforms, so hosts should create exactly one.
	Context struct {
		ctx        *oto.Context
		sampleRate int
		bufferSize int
	}

	// output bridges the engine's push-style WriteAudio to oto's pull-style
	// player: written blocks queue in a byte fifo that the device reader
	// drains. WriteAudio blocks while the fifo holds more than a few device
	// buffers, which paces the processing loop to the hardware.
	output struct {
		player *oto.Player
		fifo   *byteFIFO
		conv   []byte
	}

	byteFIFO struct {
		mu     sync.Mutex
		cond   *sync.Cond
		buf    []byte
		limit  int
		closed bool
	}
)

const latency = 50 * time.Millisecond

// NewContext opens the audio device at the given sample rate.
func NewContext(sampleRate int) (*Context, error) {
	if sampleRate <= 0 {
		sampleRate = 44100
	}
	ctx, ready, err := oto.NewContext(&oto.NewContextOptions{
		SampleRate:   sampleRate,
		ChannelCount: 2,
		Format:       oto.FormatFloat32LE,
		BufferSize:   latency,
	})
	if err != nil {
		return nil, fmt.Errorf("cannot create audio context: %w", err)
	}
	<-ready
	return &Context{
		ctx:        ctx,
		sampleRate: sampleRate,
		bufferSize: int(latency.Seconds() * float64(sampleRate)),
	}, nil
}

func (c *Context) SampleRate() int { return c.sampleRate }
func (c *Context) BufferSize() int { return c.bufferSize }

// Output starts a new device player and returns the sink feeding it.
func (c *Context) Output() reelforge.AudioSink {
	f := newByteFIFO(4 * c.bufferSize * 8) // 8 bytes per stereo float32 frame
	p := c.ctx.NewPlayer(f)
	p.Play()
	return &output{player: p, fifo: f}
}

// Close suspends the device context. Oto has no way to destroy a context;
// suspending releases the device as far as the platform allows.
func (c *Context) Close() error {
	if err := c.ctx.Suspend(); err != nil {
		return fmt.Errorf("cannot suspend audio context: %w", err)
	}
	return nil
}

func (o *output) WriteAudio(buffer reelforge.AudioBuffer) error {
	o.conv = floatBufferToLE(buffer, o.conv[:0])
	if err := o.fifo.Write(o.conv); err != nil {
		return fmt.Errorf("cannot write to audio device: %w", err)
	}
	return nil
}

func (o *output) Close() error {
	o.fifo.Close()
	if err := o.player.Close(); err != nil {
		return fmt.Errorf("cannot close audio device player: %w", err)
	}
	return nil
}

// floatBufferToLE appends the buffer's samples to to as little-endian IEEE
// float32, the device format.
func floatBufferToLE(buffer reelforge.AudioBuffer, to []byte) []byte {
	for _, frame := range buffer {
		for c := 0; c < 2; c++ {
			bits := math.Float32bits(frame[c])
			to = append(to, byte(bits), byte(bits>>8), byte(bits>>16), byte(bits>>24))
		}
	}
	return to
}

func newByteFIFO(limit int) *byteFIFO {
	f := &byteFIFO{limit: limit}
	f.cond = sync.NewCond(&f.mu)
	return f
}

// Write appends data, blocking while the fifo is over its limit.
func (f *byteFIFO) Write(data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for len(f.buf) > f.limit && !f.closed {
		f.cond.Wait()
	}
	if f.closed {
		return io.ErrClosedPipe
	}
	f.buf = append(f.buf, data...)
	f.cond.Broadcast()
	return nil
}

// Read hands out queued bytes. When the fifo is empty it returns silence
// instead of blocking, so a stalled engine causes dropouts rather than
// device underrun errors.
func (f *byteFIFO) Read(p []byte) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed && len(f.buf) == 0 {
		return 0, io.EOF
	}
	n := copy(p, f.buf)
	if n > 0 {
		f.buf = f.buf[:copy(f.buf, f.buf[n:])]
		f.cond.Broadcast()
		return n, nil
	}
	for i := range p {
		p[i] = 0
	}
	return len(p), nil
}

func (f *byteFIFO) Close() {
	f.mu.Lock()
	f.closed = true
	f.cond.Broadcast()
	f.mu.Unlock()
}
