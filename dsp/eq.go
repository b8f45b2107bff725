package dsp

import (
	"math"

	reelforge "github.com/Bojan20/reelforge-standalone-sub003"
	"github.com/chewxy/math32"
)

// EQ is the parametric/dynamic equalizer. Every band expands into one or
// more biquad sections from {frequency, gain, Q, shape, slope}; dynamic
// bands modulate their gain between zero and the static value with a
// soft-knee gain computer fed by a band-passed detector. Stereo placement
// routes a band to the full stereo signal, one channel, or a mid/side
// component. The phase mode changes the realization (and the reported
// latency) but never the steady-state magnitude response.
type EQ struct {
	params     reelforge.EQParams
	sampleRate int

	bands      []bandRuntime
	outputGain float32

	osUp, osDown halfband // NaturalPhase 2x oversampling
	fir          firPair  // LinearPhase realization

	left, right, mid, side, osBuf []float32
	firDirty                      bool
}

type bandRuntime struct {
	band   reelforge.EQBand
	coeffs []biquadCoeff
	states [2][]biquadState
	rate   int // the rate the coefficients were designed for

	// dynamic sub-state
	detCoeff  biquadCoeff
	detStates [2]biquadState
	env       envelope
	computer  gainComputer
	effGainDb float32
	detBuf    []float32
}

// The coefficients of each band are designed at the processing rate: the
// project rate for ZeroLatency and LinearPhase, twice that for NaturalPhase,
// which runs the same sections on a 2x oversampled signal to undo the
// bilinear-transform cramping near Nyquist.

// NewEQ builds the runtime for a parameter snapshot. Parameter changes
// arrive as a fresh snapshot between blocks (the chain runtime rebuilds the
// processor), so A/B recalls and band edits always land on a block boundary.
func NewEQ(p *reelforge.EQParams, sampleRate int) *EQ {
	e := &EQ{
		params:     *p.Copy(),
		sampleRate: sampleRate,
		firDirty:   true,
	}
	rate := sampleRate
	if p.Phase == reelforge.NaturalPhase {
		rate = sampleRate * 2
		e.osUp = makeHalfband()
		e.osDown = makeHalfband()
	}
	for i := range e.params.Bands {
		b := &e.params.Bands[i]
		if !b.Enabled {
			continue
		}
		br := bandRuntime{band: *b, rate: rate, effGainDb: float32(b.GainDb)}
		br.coeffs = bandCoeffs(b, float32(b.GainDb), rate)
		for chn := range br.states {
			br.states[chn] = make([]biquadState, len(br.coeffs))
		}
		if d := b.Dynamic; d != nil && d.Enabled {
			br.detCoeff = bandPassCoeffs(b.Frequency, b.Q, rate)
			br.env = makeEnvelope(d.AttackMs, d.ReleaseMs, rate)
			br.computer = gainComputer{
				thresholdDb: float32(d.ThresholdDb),
				ratio:       d.Ratio,
				kneeDb:      d.KneeDb,
			}
		}
		e.bands = append(e.bands, br)
	}
	e.updateOutputGain()
	return e
}

func (e *EQ) updateOutputGain() {
	db := float32(e.params.OutputGainDb)
	if e.params.AutoGain {
		// first-order loudness compensation: half of the net bell/shelf gain
		for i := range e.bands {
			switch e.bands[i].band.Shape {
			case reelforge.Bell, reelforge.HighShelf, reelforge.LowShelf:
				db -= e.bands[i].effGainDb / 2
			}
		}
	}
	e.outputGain = reelforge.DbToLinear(reelforge.Decibel(db))
}

func (e *EQ) Process(buffer reelforge.AudioBuffer) {
	n := len(buffer)
	if n == 0 {
		return
	}
	setSliceLen(&e.left, n)
	setSliceLen(&e.right, n)
	for i := range buffer {
		e.left[i] = buffer[i][0]
		e.right[i] = buffer[i][1]
	}

	switch e.params.Phase {
	case reelforge.NaturalPhase:
		setSliceLen(&e.osBuf, n*2)
		e.processOversampled(e.left, 0)
		e.processOversampled(e.right, 1)
	case reelforge.LinearPhase:
		e.processLinearPhase(n)
	default:
		e.processBands(e.left, e.right)
	}

	for i := range buffer {
		buffer[i][0] = e.left[i] * e.outputGain
		buffer[i][1] = e.right[i] * e.outputGain
	}
}

// processBands runs every band over the left/right pair, decoding mid/side
// around bands that ask for it. Bands apply in order, so a side band after a
// stereo band sees the stereo band's output like an analog chain would.
func (e *EQ) processBands(left, right []float32) {
	n := len(left)
	for i := range e.bands {
		b := &e.bands[i]
		e.updateDynamicGain(b, left, right)
		switch b.band.Placement {
		case reelforge.PlaceLeftOnly:
			b.filter(left, 0)
		case reelforge.PlaceRightOnly:
			b.filter(right, 1)
		case reelforge.PlaceMidOnly, reelforge.PlaceSideOnly:
			setSliceLen(&e.mid, n)
			setSliceLen(&e.side, n)
			for j := 0; j < n; j++ {
				e.mid[j] = (left[j] + right[j]) * 0.5
				e.side[j] = (left[j] - right[j]) * 0.5
			}
			if b.band.Placement == reelforge.PlaceMidOnly {
				b.filter(e.mid, 0)
			} else {
				b.filter(e.side, 1)
			}
			for j := 0; j < n; j++ {
				left[j] = e.mid[j] + e.side[j]
				right[j] = e.mid[j] - e.side[j]
			}
		default:
			b.filter(left, 0)
			b.filter(right, 1)
		}
	}
}

// processOversampled zero-stuffs one channel to twice the rate, runs the
// band cascade there and decimates back. chn selects the filter state bank.
func (e *EQ) processOversampled(samples []float32, chn int) {
	n := len(samples)
	up := e.osBuf[:n*2]
	for i := 0; i < n; i++ {
		up[i*2] = samples[i] * 2
		up[i*2+1] = 0
	}
	e.osUp.filter(up, chn)
	for i := range e.bands {
		b := &e.bands[i]
		if e.placementMatchesChannel(b.band.Placement, chn) {
			b.filter(up, chn)
		}
	}
	e.osDown.filter(up, chn+2)
	for i := 0; i < n; i++ {
		samples[i] = up[i*2]
	}
}

// placementMatchesChannel: the oversampled path processes channels
// independently, so mid/side placements fall back to stereo there. The
// control surface documents NaturalPhase as a stereo-placement mode.
func (e *EQ) placementMatchesChannel(p reelforge.StereoPlacement, chn int) bool {
	switch p {
	case reelforge.PlaceLeftOnly:
		return chn == 0
	case reelforge.PlaceRightOnly:
		return chn == 1
	}
	return true
}

func (e *EQ) processLinearPhase(n int) {
	if e.firDirty {
		e.designFIR()
		e.firDirty = false
	}
	e.fir.process(e.left, e.right)
	// dynamic bands still track their detectors so the FIR follows level
	for i := range e.bands {
		b := &e.bands[i]
		if b.band.Dynamic != nil && b.band.Dynamic.Enabled {
			before := b.effGainDb
			e.updateDynamicGain(b, e.left, e.right)
			if math32.Abs(before-b.effGainDb) > 0.25 {
				e.firDirty = true // redesign on the next block boundary
			}
		}
	}
}

// updateDynamicGain follows the band-passed detector over the block and
// computes the effective band gain for the next coefficient update. The
// modulation is block-rate: coefficients change only between blocks.
func (e *EQ) updateDynamicGain(b *bandRuntime, left, right []float32) {
	if b.band.Dynamic == nil || !b.band.Dynamic.Enabled {
		return
	}
	setSliceLen(&b.detBuf, len(left))
	for i := range left {
		b.detBuf[i] = (left[i] + right[i]) * 0.5
	}
	det := b.detStates[0]
	det.Filter(b.detBuf, b.detCoeff)
	b.detStates[0] = det
	var level float32
	for _, v := range b.detBuf {
		level = b.env.update(math32.Abs(v))
	}
	levelDb := float32(reelforge.LinearToDb(level))
	reduction := -b.computer.reductionDb(levelDb) // dB of attenuation, >= 0
	static := float32(b.band.GainDb)
	mag := math32.Abs(static)
	if reduction > mag {
		reduction = mag
	}
	target := static
	if static > 0 {
		target = static - reduction
	} else if static < 0 {
		target = static + reduction
	}
	if math32.Abs(target-b.effGainDb) > 0.01 {
		b.effGainDb = target
		b.coeffs = bandCoeffs(&b.band, b.effGainDb, b.rate)
		e.updateOutputGain()
	}
}

func (b *bandRuntime) filter(samples []float32, chn int) {
	for k := range b.coeffs {
		b.states[chn][k].Filter(samples, b.coeffs[k])
	}
}

// MagnitudeAt reports the steady-state magnitude response of the whole EQ at
// the given frequency, in dB. All phase modes share this response by
// construction; NaturalPhase evaluates its sections at the oversampled rate.
func (e *EQ) MagnitudeAt(freq float64) reelforge.Decibel {
	mag := 1.0
	for i := range e.bands {
		rate := float64(e.bands[i].rate)
		for _, c := range e.bands[i].coeffs {
			mag *= c.MagnitudeAt(freq, rate)
		}
	}
	mag *= float64(e.outputGain)
	if mag <= 0 {
		return reelforge.MinusInfDb
	}
	return reelforge.Decibel(20 * math.Log10(mag))
}

func (e *EQ) Latency() int {
	switch e.params.Phase {
	case reelforge.NaturalPhase:
		// two halfband group delays of (taps-1)/2 each at the 2x rate,
		// which is one group delay at the base rate
		return (halfbandTaps - 1) / 2
	case reelforge.LinearPhase:
		return (firTaps - 1) / 2
	}
	return 0
}

func (e *EQ) Reset() {
	for i := range e.bands {
		b := &e.bands[i]
		for chn := range b.states {
			for k := range b.states[chn] {
				b.states[chn][k] = biquadState{}
			}
		}
		b.detStates = [2]biquadState{}
		b.env.level = 0
	}
	e.osUp.reset()
	e.osDown.reset()
	e.fir.reset()
}

func setSliceLen(slice *[]float32, length int) {
	if cap(*slice) < length {
		*slice = append((*slice)[:cap(*slice)], make([]float32, length-cap(*slice))...)
	}
	*slice = (*slice)[:length]
}

// halfband is a 23-tap windowed-sinc lowpass at a quarter of the oversampled
// rate, used for the NaturalPhase interpolation and decimation stages.
const halfbandTaps = 23

type halfband struct {
	coeffs  [halfbandTaps]float32
	history [4][halfbandTaps]float32 // up/down x left/right state banks
	ready   bool
}

func makeHalfband() halfband {
	var h halfband
	center := halfbandTaps / 2
	var sum float32
	for i := 0; i < halfbandTaps; i++ {
		x := float64(i - center)
		var v float64
		if x == 0 {
			v = 0.5
		} else {
			v = math.Sin(math.Pi*x/2) / (math.Pi * x)
		}
		// Hamming window
		v *= 0.54 - 0.46*math.Cos(2*math.Pi*float64(i)/float64(halfbandTaps-1))
		h.coeffs[i] = float32(v)
		sum += float32(v)
	}
	for i := range h.coeffs { // normalize to unity DC gain
		h.coeffs[i] /= sum
	}
	h.ready = true
	return h
}

func (h *halfband) filter(samples []float32, bank int) {
	if !h.ready {
		return
	}
	hist := &h.history[bank]
	for i := range samples {
		copy(hist[1:], hist[:halfbandTaps-1])
		hist[0] = samples[i]
		var acc float32
		for k := 0; k < halfbandTaps; k++ {
			acc += h.coeffs[k] * hist[k]
		}
		samples[i] = acc
	}
}

func (h *halfband) reset() {
	for i := range h.history {
		h.history[i] = [halfbandTaps]float32{}
	}
}

// firTaps is the linear-phase FIR length; latency is (firTaps-1)/2.
const firTaps = 1023

// firGrid is the frequency-sampling grid size for the FIR design.
const firGrid = 4096

type firPair struct {
	taps    []float32
	history [2][]float32
	pos     [2]int
}

// designFIR builds a linear-phase FIR whose magnitude matches the band
// cascade, by sampling the cascade's magnitude on a uniform grid, taking the
// zero-phase inverse transform and windowing the symmetric impulse response.
func (e *EQ) designFIR() {
	re := make([]float64, firGrid)
	im := make([]float64, firGrid)
	for k := 0; k <= firGrid/2; k++ {
		freq := float64(k) * float64(e.sampleRate) / firGrid
		mag := 1.0
		for i := range e.bands {
			rate := float64(e.bands[i].rate)
			for _, c := range e.bands[i].coeffs {
				mag *= c.MagnitudeAt(freq, rate)
			}
		}
		re[k] = mag
		if k > 0 && k < firGrid/2 {
			re[firGrid-k] = mag // hermitian symmetry, zero phase
		}
	}
	IFFT(re, im)
	taps := make([]float32, firTaps)
	half := firTaps / 2
	for i := 0; i < firTaps; i++ {
		// center the symmetric impulse response and apply a Hann window
		idx := (i - half + firGrid) % firGrid
		w := 0.5 - 0.5*math.Cos(2*math.Pi*float64(i)/float64(firTaps-1))
		taps[i] = float32(re[idx] * w)
	}
	e.fir.taps = taps
	for chn := range e.fir.history {
		if len(e.fir.history[chn]) != firTaps {
			e.fir.history[chn] = make([]float32, firTaps)
			e.fir.pos[chn] = 0
		}
	}
}

func (f *firPair) process(left, right []float32) {
	if f.taps == nil {
		return
	}
	f.convolve(left, 0)
	f.convolve(right, 1)
}

func (f *firPair) convolve(samples []float32, chn int) {
	hist := f.history[chn]
	pos := f.pos[chn]
	n := len(hist)
	for i := range samples {
		hist[pos] = samples[i]
		var acc float32
		idx := pos
		for k := 0; k < n; k++ {
			acc += f.taps[k] * hist[idx]
			idx--
			if idx < 0 {
				idx = n - 1
			}
		}
		samples[i] = acc
		pos++
		if pos == n {
			pos = 0
		}
	}
	f.pos[chn] = pos
}

func (f *firPair) reset() {
	for chn := range f.history {
		for i := range f.history[chn] {
			f.history[chn][i] = 0
		}
		f.pos[chn] = 0
	}
}
