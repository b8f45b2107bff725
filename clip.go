package reelforge

import "github.com/chewxy/math32"

// FadeCurve is the gain curve shape of a fade or crossfade.
type FadeCurve int

const (
	CurveLinear FadeCurve = iota
	CurveEqualPower
	CurveSCurve
)

type (
	// Clip places a region of a source asset on a track's timeline. All
	// positions and lengths are in samples at the project sample rate;
	// samples are the authority, seconds are derived. The invariant
	// SourceOffset+Duration <= SourceLength must hold at all times.
	Clip struct {
		ID           ClipID
		Name         string `yaml:",omitempty"`
		Source       string `yaml:",omitempty"` // asset path, decoded via the Codec collaborator
		Start        int64  // timeline position, samples
		Duration     int64  // samples, > 0
		SourceOffset int64  // offset into the source asset, samples
		SourceLength int64  // length of the source asset, samples
		GainDb       Decibel
		FadeIn       Fade `yaml:",omitempty"`
		FadeOut      Fade `yaml:",omitempty"`
		Reversed     bool `yaml:",omitempty"`
		Chain        Chain

		// PCM is the decoded audio of the whole source asset. It is loaded
		// through the Codec and not serialized; destructive edits (normalize,
		// reverse, apply-gain) operate on it.
		PCM AudioBuffer `yaml:"-"`
	}

	// Fade is a fade-in or fade-out at a clip edge.
	Fade struct {
		Duration int64 `yaml:",omitempty"` // samples
		Curve    FadeCurve
	}

	// Crossfade blends two overlapping or adjacent clips. It exists only
	// while both clips exist; deleting either clip deletes the crossfade.
	// There is no update operation: changing a crossfade is delete and
	// recreate.
	Crossfade struct {
		ID       CrossfadeID
		A, B     ClipID
		Duration int64 // samples
		Curve    FadeCurve
	}
)

func (c *Clip) Copy() Clip {
	ret := *c
	ret.Chain = c.Chain.Copy()
	// PCM is shared between copies on purpose: snapshots of the project are
	// taken per edit and per block, and copying minutes of audio there would
	// be prohibitive. Destructive clip edits replace the slice instead of
	// mutating it, so older snapshots keep seeing their own audio.
	return ret
}

// End returns the first sample after the clip.
func (c *Clip) End() int64 {
	return c.Start + c.Duration
}

// Validate checks the duration/offset invariant against the source length.
func (c *Clip) Validate() error {
	if c.Duration <= 0 {
		return ErrInvalidParameter
	}
	if c.SourceOffset < 0 || c.SourceOffset+c.Duration > c.SourceLength {
		return ErrInvalidParameter
	}
	return nil
}

// Overlap returns the overlapping sample range of two clips, or ok=false if
// they do not touch. Adjacent clips (a.End == b.Start) overlap zero samples
// but are still considered touching.
func Overlap(a, b *Clip) (start, end int64, ok bool) {
	start = max64(a.Start, b.Start)
	end = min64(a.End(), b.End())
	if end < start {
		return 0, 0, false
	}
	return start, end, true
}

// FadeGain evaluates the curve at position t in [0, 1], where 0 is silent and
// 1 is full level. The complementary curve for the outgoing side of a
// crossfade is FadeGain(curve, 1-t).
func FadeGain(curve FadeCurve, t float32) float32 {
	t = Clamp(t, 0, 1)
	switch curve {
	case CurveEqualPower:
		// sin(t*pi/2) keeps the summed power of a crossfade constant
		return math32.Sin(t * math32.Pi / 2)
	case CurveSCurve:
		return t * t * (3 - 2*t)
	default:
		return t
	}
}

func max64(a, b int64) int64 {
	if a > b {
		return a
	}
	return b
}

func min64(a, b int64) int64 {
	if a < b {
		return a
	}
	return b
}
