package engine

import "math"

// kBiquad is a direct-form biquad with independent state per channel, used
// for the two stages of the BS.1770 K-weighting filter. The coefficients
// are designed at the measurement sample rate, not copied from the 48 kHz
// tables of the standard, so the detector measures correctly at any rate.
type kBiquad struct {
	b0, b1, b2, a1, a2 float64
	x1, x2, y1, y2     [2]float64
}

// kShelf is the first K-weighting stage: a +4 dB high shelf around 1.68 kHz
// modeling the acoustic effect of the head.
func kShelf(sampleRate int) kBiquad {
	const (
		f0 = 1681.9744509555319
		g  = 3.99984385397
		q  = 0.7071752369554193
	)
	k := math.Tan(math.Pi * f0 / float64(sampleRate))
	vh := math.Pow(10, g/20)
	vb := math.Pow(vh, 0.499666774155)
	a0 := 1 + k/q + k*k
	return kBiquad{
		b0: (vh + vb*k/q + k*k) / a0,
		b1: 2 * (k*k - vh) / a0,
		b2: (vh - vb*k/q + k*k) / a0,
		a1: 2 * (k*k - 1) / a0,
		a2: (1 - k/q + k*k) / a0,
	}
}

// kHighpass is the second stage: the RLB revised low-frequency B-curve, a
// highpass at 38 Hz.
func kHighpass(sampleRate int) kBiquad {
	const (
		f0 = 38.13547087602444
		q  = 0.5003270373238773
	)
	k := math.Tan(math.Pi * f0 / float64(sampleRate))
	a0 := 1 + k/q + k*k
	return kBiquad{
		b0: 1 / a0,
		b1: -2 / a0,
		b2: 1 / a0,
		a1: 2 * (k*k - 1) / a0,
		a2: (1 - k/q + k*k) / a0,
	}
}

func (b *kBiquad) filter(buf []float32, ch int) {
	x1, x2 := b.x1[ch], b.x2[ch]
	y1, y2 := b.y1[ch], b.y2[ch]
	for i := range buf {
		x := float64(buf[i])
		y := b.b0*x + b.b1*x1 + b.b2*x2 - b.a1*y1 - b.a2*y2
		x2, x1 = x1, x
		y2, y1 = y1, y
		buf[i] = float32(y)
	}
	b.x1[ch], b.x2[ch] = x1, x2
	b.y1[ch], b.y2[ch] = y1, y2
}

func (b *kBiquad) resetState() {
	b.x1, b.x2 = [2]float64{}, [2]float64{}
	b.y1, b.y2 = [2]float64{}, [2]float64{}
}

// truePeakDetector estimates inter-sample peaks by interpolating the signal
// at 8 phases between samples with a polyphase windowed-sinc filter, per
// the BS.1770 true-peak annex (at a higher oversampling factor).
type truePeakDetector struct {
	phases  [truePeakPhases][truePeakTaps]float32
	histL   [truePeakTaps]float32
	histR   [truePeakTaps]float32
	histPos int
}

const (
	truePeakPhases = 8
	truePeakTaps   = 8
)

func (t *truePeakDetector) init() {
	total := truePeakPhases * truePeakTaps
	center := float64(total-1) / 2
	for p := 0; p < truePeakPhases; p++ {
		for j := 0; j < truePeakTaps; j++ {
			k := float64(j*truePeakPhases + p)
			x := (k - center) / truePeakPhases
			w := 0.5 - 0.5*math.Cos(2*math.Pi*k/float64(total-1))
			t.phases[p][j] = float32(sinc(x) * w)
		}
	}
	t.histL = [truePeakTaps]float32{}
	t.histR = [truePeakTaps]float32{}
	t.histPos = 0
}

// process consumes one block per channel and returns its true-peak
// amplitude, linear.
func (t *truePeakDetector) process(l, r []float32) float64 {
	var peak float32
	for i := range l {
		t.histL[t.histPos] = l[i]
		t.histR[t.histPos] = r[i]
		t.histPos = (t.histPos + 1) % truePeakTaps
		for p := 0; p < truePeakPhases; p++ {
			var sl, sr float32
			for j := 0; j < truePeakTaps; j++ {
				h := t.phases[p][j]
				idx := (t.histPos + truePeakTaps - 1 - j) % truePeakTaps
				sl += h * t.histL[idx]
				sr += h * t.histR[idx]
			}
			if a := abs32(sl); a > peak {
				peak = a
			}
			if a := abs32(sr); a > peak {
				peak = a
			}
		}
	}
	return float64(peak)
}

func sinc(x float64) float64 {
	if x == 0 {
		return 1
	}
	return math.Sin(math.Pi*x) / (math.Pi * x)
}
