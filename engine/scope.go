package engine

import (
	reelforge "github.com/Bojan20/reelforge-standalone-sub003"
)

// ScopeSamples is the fixed capacity of the oscilloscope ring, about 186 ms
// at 44.1 kHz.
const ScopeSamples = 8192

// RingBuffer is a generic ring with a write cursor, the storage behind the
// oscilloscope tap.
type RingBuffer[T any] struct {
	Buffer []T
	Cursor int
}

// WriteWrap appends values, overwriting the oldest entries once the ring is
// full. Writes larger than the ring keep only the tail.
func (r *RingBuffer[T]) WriteWrap(values []T) {
	if len(r.Buffer) == 0 {
		return
	}
	r.Cursor = (r.Cursor + len(values)) % len(r.Buffer)
	a := min(len(values), r.Cursor)                 // how many values land before the cursor
	b := min(len(values)-a, len(r.Buffer)-r.Cursor) // how many wrap to the end
	copy(r.Buffer[r.Cursor-a:r.Cursor], values[len(values)-a:])
	copy(r.Buffer[len(r.Buffer)-b:], values[len(values)-a-b:])
}

// Ordered returns the ring's contents oldest first.
func (r *RingBuffer[T]) Ordered() []T {
	out := make([]T, len(r.Buffer))
	n := copy(out, r.Buffer[r.Cursor:])
	copy(out[n:], r.Buffer[:r.Cursor])
	return out
}

// ScopeWaveform drains the master audio the player has published since the
// last call into the bounded scope ring and returns its contents, oldest
// sample first. Like the other meter reads this is a control-context call;
// the audio path only ever hands buffers over through the broker.
func (e *Engine) ScopeWaveform() [][2]float32 {
	for {
		select {
		case msg := <-e.broker.ToModel:
			if data, ok := msg.Data.(*reelforge.AudioBuffer); ok {
				e.scope.WriteWrap(*data)
				e.broker.PutAudioBuffer(data)
			}
		default:
			return e.scope.Ordered()
		}
	}
}
