package reelforge

// PlayState is the primary transport state. Recording is an orthogonal flag,
// valid only while not stopped.
type PlayState int

const (
	Stopped PlayState = iota
	Playing
	Paused
)

// Tempo bounds in beats per minute; SetTempo clamps to these.
const (
	MinBPM float64 = 20
	MaxBPM float64 = 999
)

type (
	// Transport is the timeline state machine of a project. The sample
	// position is the authority; seconds are always derived from it, so the
	// two can never drift apart. Transport is mutated only through the
	// engine's state-machine operations, never by assigning fields directly.
	Transport struct {
		State      PlayState
		Recording  bool `yaml:",omitempty"`
		PosSamples int64
		BPM        float64
		TimeSigNum int
		TimeSigDen int
		Loop       Loop
	}

	// Loop is the loop region in seconds. Start < End is the caller's
	// responsibility; the engine does not reorder the endpoints.
	Loop struct {
		Enabled bool `yaml:",omitempty"`
		Start   float64
		End     float64
	}
)

// PosSeconds derives the position in seconds at the given sample rate.
func (t *Transport) PosSeconds(sampleRate int) float64 {
	if sampleRate <= 0 {
		return 0
	}
	return float64(t.PosSamples) / float64(sampleRate)
}

// SecondsToSamples converts a position in seconds to samples, truncating
// toward zero so repeated conversions stay consistent.
func SecondsToSamples(seconds float64, sampleRate int) int64 {
	return int64(seconds * float64(sampleRate))
}
