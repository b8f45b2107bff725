// Package engine implements the control-and-processing core of the mixing
// engine: the command surface a host drives (Engine), the real-time audio
// path (Player), the offline bounce renderer (Renderer) and the metering
// pipeline (meters + Detector). The control context and the audio path never
// share mutable state; they exchange immutable snapshots through the Broker.
package engine

import (
	"sync"
	"time"

	reelforge "github.com/Bojan20/reelforge-standalone-sub003"
)

type (
	// Broker is the centralized message hub between the engine (control
	// context), the player (audio path) and the detector (advanced metering
	// goroutine). Communication is many-to-one, one channel per recipient,
	// and every send from the audio path is non-blocking: if a recipient is
	// behind, messages are dropped rather than stalling a block. A sync.Pool
	// of audio buffers lets the player hand analysis audio to the detector
	// without allocating on the hot path.
	//
	// For closing the detector goroutine there are two channels: Close has a
	// capacity of 1, so requesting closure never blocks (a full channel
	// means someone already asked). Finished is closed by the goroutine when
	// it has cleaned up, so shutdown can wait with a timeout.
	Broker struct {
		ToPlayer   chan any
		ToModel    chan MsgToModel
		ToDetector chan MsgToDetector

		CloseDetector    chan struct{}
		FinishedDetector chan struct{}

		bufferPool sync.Pool
	}

	// MsgToModel carries player and detector results back to the control
	// context. The frequent payloads are plain fields to avoid boxing
	// allocations; rare ones travel in Data.
	MsgToModel struct {
		HasTransport bool
		Transport    TransportSnapshot

		HasDetectorResult bool
		DetectorResult    DetectorResult

		Data any
	}

	// MsgToDetector configures or feeds the detector. Data may hold a
	// *reelforge.AudioBuffer to analyze (returned to the pool afterwards) or
	// a func() executed on the detector goroutine.
	MsgToDetector struct {
		Reset bool
		Quit  bool

		HasSampleRate bool
		SampleRate    int

		Data any
	}
)

func NewBroker() *Broker {
	return &Broker{
		ToPlayer:         make(chan any, 1024),
		ToModel:          make(chan MsgToModel, 1024),
		ToDetector:       make(chan MsgToDetector, 1024),
		CloseDetector:    make(chan struct{}, 1),
		FinishedDetector: make(chan struct{}),
		bufferPool:       sync.Pool{New: func() any { return &reelforge.AudioBuffer{} }},
	}
}

// GetAudioBuffer returns an empty buffer from the pool. After use it should
// be handed back with PutAudioBuffer.
func (b *Broker) GetAudioBuffer() *reelforge.AudioBuffer {
	return b.bufferPool.Get().(*reelforge.AudioBuffer)
}

// PutAudioBuffer resets the buffer's length (keeping capacity) and returns
// it to the pool.
func (b *Broker) PutAudioBuffer(buf *reelforge.AudioBuffer) {
	if len(*buf) > 0 {
		*buf = (*buf)[:0]
	}
	b.bufferPool.Put(buf)
}

// TrySend sends a value to a channel if it is not full. It never blocks;
// the return tells whether the value was delivered.
func TrySend[T any](c chan<- T, v T) bool {
	select {
	case c <- v:
	default:
		return false
	}
	return true
}

// TimeoutReceive blocks until a value arrives or the timeout elapses. ok is
// false on timeout or when the channel is closed.
func TimeoutReceive[T any](c <-chan T, t time.Duration) (v T, ok bool) {
	select {
	case v, ok = <-c:
		return v, ok
	case <-time.After(t):
		return v, false
	}
}
