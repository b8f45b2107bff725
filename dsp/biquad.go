package dsp

import (
	"math"

	reelforge "github.com/Bojan20/reelforge-standalone-sub003"
	"github.com/chewxy/math32"
)

type (
	// biquadCoeff is one second-order section, normalized so a0 == 1.
	biquadCoeff struct {
		b0, b1, b2, a1, a2 float32
	}

	// biquadState is the direct form I state of one section and channel.
	biquadState struct {
		x1, x2, y1, y2 float32
	}
)

// Filter runs the section over the buffer in place.
func (state *biquadState) Filter(buffer []float32, coeff biquadCoeff) {
	s := *state
	for i := 0; i < len(buffer); i++ {
		x := buffer[i]
		y := coeff.b0*x + coeff.b1*s.x1 + coeff.b2*s.x2 - coeff.a1*s.y1 - coeff.a2*s.y2
		s.x2, s.x1 = s.x1, x
		s.y2, s.y1 = s.y1, y
		buffer[i] = y
	}
	*state = s
}

func passthroughCoeff() biquadCoeff {
	return biquadCoeff{b0: 1}
}

// MagnitudeAt evaluates |H(e^jw)| of the section at the given frequency,
// using the cos(w) identity to avoid complex arithmetic.
func (c biquadCoeff) MagnitudeAt(freq, sampleRate float64) float64 {
	w := 2 * math.Pi * freq / sampleRate
	cosw, cos2w := math.Cos(w), math.Cos(2*w)
	b0, b1, b2 := float64(c.b0), float64(c.b1), float64(c.b2)
	a1, a2 := float64(c.a1), float64(c.a2)
	num := b0*b0 + b1*b1 + b2*b2 + 2*(b0*b1+b1*b2)*cosw + 2*b0*b2*cos2w
	den := 1 + a1*a1 + a2*a2 + 2*(a1+a1*a2)*cosw + 2*a2*cos2w
	if den <= 0 || num < 0 {
		return 0
	}
	return math.Sqrt(num / den)
}

// The designs below follow the RBJ audio EQ cookbook:
// https://www.w3.org/TR/audio-eq-cookbook/

func peakingCoeffs(freq, gainDb, q float32, sampleRate int) biquadCoeff {
	a := math32.Pow(10, gainDb/40)
	w0 := 2 * math32.Pi * freq / float32(sampleRate)
	alpha := math32.Sin(w0) / (2 * q)
	cosw0 := math32.Cos(w0)
	a0 := 1 + alpha/a
	return biquadCoeff{
		b0: (1 + alpha*a) / a0,
		b1: -2 * cosw0 / a0,
		b2: (1 - alpha*a) / a0,
		a1: -2 * cosw0 / a0,
		a2: (1 - alpha/a) / a0,
	}
}

func shelfCoeffs(freq, gainDb, q float32, high bool, sampleRate int) biquadCoeff {
	a := math32.Pow(10, gainDb/40)
	w0 := 2 * math32.Pi * freq / float32(sampleRate)
	cosw0, sinw0 := math32.Cos(w0), math32.Sin(w0)
	alpha := sinw0 / 2 * math32.Sqrt((a+1/a)*(1/q-1)+2)
	twoRootAAlpha := 2 * math32.Sqrt(a) * alpha
	sign := float32(1)
	if high {
		sign = -1
	}
	a0 := (a + 1) - sign*(a-1)*cosw0 + twoRootAAlpha
	return biquadCoeff{
		b0: a * ((a + 1) + sign*(a-1)*cosw0 + twoRootAAlpha) / a0,
		b1: -sign * 2 * a * ((a - 1) + sign*(a+1)*cosw0) / a0,
		b2: a * ((a + 1) + sign*(a-1)*cosw0 - twoRootAAlpha) / a0,
		a1: -sign * 2 * ((a - 1) - sign*(a+1)*cosw0) / a0,
		a2: ((a + 1) - sign*(a-1)*cosw0 - twoRootAAlpha) / a0,
	}
}

func passCoeffs(freq, q float32, high bool, sampleRate int) biquadCoeff {
	w0 := 2 * math32.Pi * freq / float32(sampleRate)
	cosw0, sinw0 := math32.Cos(w0), math32.Sin(w0)
	alpha := sinw0 / (2 * q)
	a0 := 1 + alpha
	var b0, b1 float32
	if high {
		b0 = (1 + cosw0) / 2
		b1 = -(1 + cosw0)
	} else {
		b0 = (1 - cosw0) / 2
		b1 = 1 - cosw0
	}
	return biquadCoeff{
		b0: b0 / a0,
		b1: b1 / a0,
		b2: b0 / a0,
		a1: -2 * cosw0 / a0,
		a2: (1 - alpha) / a0,
	}
}

func notchCoeffs(freq, q float32, sampleRate int) biquadCoeff {
	w0 := 2 * math32.Pi * freq / float32(sampleRate)
	cosw0, sinw0 := math32.Cos(w0), math32.Sin(w0)
	alpha := sinw0 / (2 * q)
	a0 := 1 + alpha
	return biquadCoeff{
		b0: 1 / a0,
		b1: -2 * cosw0 / a0,
		b2: 1 / a0,
		a1: -2 * cosw0 / a0,
		a2: (1 - alpha) / a0,
	}
}

func bandPassCoeffs(freq, q float32, sampleRate int) biquadCoeff {
	w0 := 2 * math32.Pi * freq / float32(sampleRate)
	cosw0, sinw0 := math32.Cos(w0), math32.Sin(w0)
	alpha := sinw0 / (2 * q)
	a0 := 1 + alpha
	return biquadCoeff{
		b0: alpha / a0,
		b2: -alpha / a0,
		a1: -2 * cosw0 / a0,
		a2: (1 - alpha) / a0,
	}
}

// bandCoeffs expands one EQ band into its second-order sections. Pass and
// shelf slopes above 12 dB/oct cascade multiple sections; everything else is
// a single section.
func bandCoeffs(b *reelforge.EQBand, gainDb float32, sampleRate int) []biquadCoeff {
	switch b.Shape {
	case reelforge.Bell:
		return []biquadCoeff{peakingCoeffs(b.Frequency, gainDb, b.Q, sampleRate)}
	case reelforge.Notch:
		return []biquadCoeff{notchCoeffs(b.Frequency, b.Q, sampleRate)}
	case reelforge.BandPass:
		return []biquadCoeff{bandPassCoeffs(b.Frequency, b.Q, sampleRate)}
	case reelforge.HighShelf:
		return []biquadCoeff{shelfCoeffs(b.Frequency, gainDb, b.Q, true, sampleRate)}
	case reelforge.LowShelf:
		return []biquadCoeff{shelfCoeffs(b.Frequency, gainDb, b.Q, false, sampleRate)}
	case reelforge.TiltShelf:
		// tilt = complementary low and high shelves around the center
		return []biquadCoeff{
			shelfCoeffs(b.Frequency, -gainDb/2, b.Q, false, sampleRate),
			shelfCoeffs(b.Frequency, gainDb/2, b.Q, true, sampleRate),
		}
	case reelforge.HighPass, reelforge.LowPass:
		high := b.Shape == reelforge.HighPass
		order := b.Slope / 6
		if order < 2 {
			order = 2
		}
		sections := order / 2
		ret := make([]biquadCoeff, sections)
		for k := 0; k < sections; k++ {
			// Butterworth pole angles: Q_k = 1/(2 sin(theta_k))
			theta := math32.Pi * (2*float32(k) + 1) / (2 * float32(order))
			q := 1 / (2 * math32.Sin(theta))
			if sections == 1 {
				q = b.Q // single section honors the user's Q
			}
			ret[k] = passCoeffs(b.Frequency, q, high, sampleRate)
		}
		return ret
	}
	return []biquadCoeff{passthroughCoeff()}
}
