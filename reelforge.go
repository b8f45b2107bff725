// Package reelforge contains the data model of the ReelForge mixing engine: a
// project with tracks, buses, sends, clips and effect chains, along with the
// transport state and the interfaces the engine expects from its host
// (audio output, codec and persistence services).
//
// The types in this package are plain serializable values. All behavior —
// command validation, undo, real-time processing, metering — lives in the
// engine, dsp and oto packages. Everything here can be deep-copied with the
// Copy methods, which the engine relies on when handing immutable snapshots
// to the audio thread.
package reelforge

import (
	"errors"
	"math"
)

// Opaque handles for entities owned by the engine. The engine is the sole
// allocator; a handle from one project is meaningless in another.
type (
	TrackID     int
	ClipID      int
	CrossfadeID int
	VCAID       int
	GroupID     int
	MarkerID    int
)

// Error taxonomy shared by every command of the engine. Commands wrap these
// with context; callers test with errors.Is.
var (
	// ErrNotFound is returned when an operation references a handle that does
	// not exist or was already deleted.
	ErrNotFound = errors.New("not found")

	// ErrInvalidParameter is returned when a value is outside a processor's
	// valid domain and clamping is not the documented policy for it.
	ErrInvalidParameter = errors.New("invalid parameter")

	// ErrInvalidState is returned when an operation is not legal in the
	// current state, e.g. starting a bounce while one is active.
	ErrInvalidState = errors.New("invalid state")

	// ErrResourceExhausted is returned when a bounded resource (EQ bands,
	// chain slots) is full.
	ErrResourceExhausted = errors.New("resource exhausted")
)

// Decibel is a level relative to full scale; 0 dB = signal level of +-1.
type Decibel float32

// MinusInfDb is the floor for linear-to-decibel conversions, so that meters
// and faders never see -Inf or NaN.
const MinusInfDb Decibel = -60

// linearEpsilon is the linear gain below which LinearToDb returns MinusInfDb.
const linearEpsilon = 1e-3

// LinearToDb converts a linear gain to decibels, flooring at MinusInfDb.
func LinearToDb(linear float32) Decibel {
	if linear <= linearEpsilon {
		return MinusInfDb
	}
	return Decibel(20 * math.Log10(float64(linear)))
}

// DbToLinear converts decibels to a linear gain. Values at or below
// MinusInfDb map to 0.
func DbToLinear(db Decibel) float32 {
	if db <= MinusInfDb {
		return 0
	}
	return float32(math.Pow(10, float64(db)/20))
}

// Clamp limits value to [low, high].
func Clamp[T ~float32 | ~float64 | ~int | ~int64](value, low, high T) T {
	if value < low {
		return low
	}
	if value > high {
		return high
	}
	return value
}
