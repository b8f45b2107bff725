package engine

import (
	"math"
	"sort"
	"sync/atomic"

	reelforge "github.com/Bojan20/reelforge-standalone-sub003"
	"github.com/Bojan20/reelforge-standalone-sub003/dsp"
	"github.com/viterin/vek/vek32"
)

type (
	// Detector is the advanced-metering pipeline. It runs on its own
	// goroutine, fed pooled audio buffers by the player through the broker,
	// and publishes complete DetectorResult snapshots through an atomic
	// pointer. Losing a buffer under load skews the meters slightly; it
	// never stalls the audio path.
	Detector struct {
		broker *Broker
		result *atomic.Pointer[DetectorResult]

		sampleRate int

		shelf  kBiquad
		high   kBiquad
		inL    []float32
		inR    []float32
		kL     []float32
		kR     []float32
		absBuf []float32

		hopSize   int
		hopFill   int
		hopEnergy float64
		hopPeak   float32

		energies  ringF64   // per-hop mean square, 3 s of history
		hopPeaks  ringF32   // per-hop sample peak, 3 s of history
		blocks    []float64 // gated 400 ms block energies for integrated loudness
		shortHist []float64 // short-term loudness history for loudness range
		latest4   [4]float64
		hopCount  int

		truePeak     truePeakDetector
		maxTruePeak  float64
		winTruePeaks ringF64

		barkRing [barkFFTSize]float64
		barkFill int
		barkWin  [barkFFTSize]float64
		barkRe   [barkFFTSize]float64
		barkIm   [barkFFTSize]float64

		sonesHist ringF64 // per-hop total loudness, for fluctuation strength
		envSize   int     // samples per fast-envelope point (5 ms)
		envFill   int
		envEnergy float64
		envRing   ringF64 // 1 s of fast envelope RMS, for roughness
	}

	// DetectorResult is one complete metering snapshot: program loudness per
	// ITU-R BS.1770 with EBU R128 gating, oversampled true peak, the
	// peak-to-short-term-loudness ratio and crest factor with plain-language
	// assessments, and a 24-band Bark-scale specific loudness distribution
	// after Zwicker.
	DetectorResult struct {
		MomentaryLUFS  float64
		ShortTermLUFS  float64
		IntegratedLUFS float64
		LoudnessRange  float64 // LU

		TruePeakDb    float64 // max over the short-term window
		MaxTruePeakDb float64 // max since reset
		Clipping      bool    // true peak over the clip threshold

		PSR             float64
		PSRAssessment   string
		CrestDb         float64
		CrestAssessment string

		Bark        [BarkBands]float32 // specific loudness per band, sones
		Sones       float64
		Phons       float64
		Sharpness   float64 // acum, weighted specific-loudness centroid
		Fluctuation float64 // vacil, slow loudness modulation near 4 Hz
		Roughness   float64 // asper, fast envelope modulation near 70 Hz
	}
)

// Loudness measurement geometry per BS.1770: 100 ms hops, momentary = 400 ms
// (4 hops), short-term = 3 s (30 hops), integrated over gated 400 ms blocks.
const (
	hopsPerMomentary = 4
	hopsPerShort     = 30
	absoluteGateLUFS = -70
	lufsOffset       = -0.691
)

// BarkBands is the number of critical bands of the Zwicker model.
const BarkBands = 24

const barkFFTSize = 2048

// silenceLUFS is the floor reported when a window holds no energy.
const silenceLUFS = -100

// clipThresholdDb is the true-peak level above which the clipping flag
// raises. Slightly under full scale, since DAC reconstruction overshoots
// before the converter itself clips.
const clipThresholdDb = -0.1

func NewDetector(broker *Broker, result *atomic.Pointer[DetectorResult]) *Detector {
	d := &Detector{broker: broker, result: result}
	for i := range d.barkWin {
		d.barkWin[i] = 0.5 - 0.5*math.Cos(2*math.Pi*float64(i)/barkFFTSize)
	}
	d.setSampleRate(44100)
	return d
}

// Run is the detector goroutine body. It exits on a Quit message or a close
// request and signals completion by closing FinishedDetector.
func (d *Detector) Run() {
	defer close(d.broker.FinishedDetector)
	for {
		select {
		case msg := <-d.broker.ToDetector:
			if msg.Quit {
				return
			}
			if msg.HasSampleRate {
				d.setSampleRate(msg.SampleRate)
			}
			if msg.Reset {
				d.reset()
			}
			switch data := msg.Data.(type) {
			case *reelforge.AudioBuffer:
				d.analyze(*data)
				d.broker.PutAudioBuffer(data)
			case func():
				data()
			}
		case <-d.broker.CloseDetector:
			return
		}
	}
}

func (d *Detector) setSampleRate(rate int) {
	if rate <= 0 || rate == d.sampleRate {
		return
	}
	d.sampleRate = rate
	d.hopSize = rate / 10
	d.envSize = rate / envPointsPerSecond
	d.shelf = kShelf(rate)
	d.high = kHighpass(rate)
	d.truePeak.init()
	d.reset()
}

func (d *Detector) reset() {
	d.shelf.resetState()
	d.high.resetState()
	d.hopFill, d.hopEnergy, d.hopPeak = 0, 0, 0
	d.energies = ringF64{}
	d.hopPeaks = ringF32{}
	d.winTruePeaks = ringF64{}
	d.blocks = d.blocks[:0]
	d.shortHist = d.shortHist[:0]
	d.latest4 = [4]float64{}
	d.hopCount = 0
	d.maxTruePeak = 0
	d.barkFill = 0
	d.sonesHist = ringF64{}
	d.envRing = ringF64{}
	d.envFill, d.envEnergy = 0, 0
	d.result.Store(&DetectorResult{
		MomentaryLUFS:  silenceLUFS,
		ShortTermLUFS:  silenceLUFS,
		IntegratedLUFS: silenceLUFS,
		TruePeakDb:     silenceLUFS,
		MaxTruePeakDb:  silenceLUFS,
	})
}

func (d *Detector) analyze(buffer reelforge.AudioBuffer) {
	n := len(buffer)
	if n == 0 || d.sampleRate <= 0 {
		return
	}
	d.inL = growFloats(d.inL, n)
	d.inR = growFloats(d.inR, n)
	d.kL = growFloats(d.kL, n)
	d.kR = growFloats(d.kR, n)
	d.absBuf = growFloats(d.absBuf, n)
	for i := range buffer {
		d.inL[i] = buffer[i][0]
		d.inR[i] = buffer[i][1]
		m := float64(buffer[i][0]+buffer[i][1]) * 0.5
		d.barkRing[d.barkFill%barkFFTSize] = m
		d.barkFill++
		d.envEnergy += m * m
		d.envFill++
		if d.envFill == d.envSize {
			d.envRing.push(math.Sqrt(d.envEnergy/float64(d.envSize)), envPointsPerSecond)
			d.envFill, d.envEnergy = 0, 0
		}
	}

	copy(d.kL, d.inL)
	copy(d.kR, d.inR)
	d.shelf.filter(d.kL, 0)
	d.shelf.filter(d.kR, 1)
	d.high.filter(d.kL, 0)
	d.high.filter(d.kR, 1)

	tp := d.truePeak.process(d.inL, d.inR)
	if tp > d.maxTruePeak {
		d.maxTruePeak = tp
	}

	copy(d.absBuf, d.inL)
	vek32.Abs_Inplace(d.absBuf)
	blockPeak := vek32.Max(d.absBuf)
	copy(d.absBuf, d.inR)
	vek32.Abs_Inplace(d.absBuf)
	if p := vek32.Max(d.absBuf); p > blockPeak {
		blockPeak = p
	}

	offset := 0
	for offset < n {
		take := n - offset
		if room := d.hopSize - d.hopFill; take > room {
			take = room
		}
		l := d.kL[offset : offset+take]
		r := d.kR[offset : offset+take]
		d.hopEnergy += float64(vek32.Dot(l, l)) + float64(vek32.Dot(r, r))
		if blockPeak > d.hopPeak {
			d.hopPeak = blockPeak
		}
		d.hopFill += take
		offset += take
		if d.hopFill == d.hopSize {
			d.completeHop(tp)
			d.hopFill, d.hopEnergy, d.hopPeak = 0, 0, 0
		}
	}
}

// completeHop folds one 100 ms hop into every running measurement and
// publishes a fresh snapshot.
func (d *Detector) completeHop(blockTruePeak float64) {
	meanSq := d.hopEnergy / float64(d.hopSize)
	d.energies.push(meanSq, hopsPerShort)
	d.hopPeaks.push(d.hopPeak, hopsPerShort)
	d.winTruePeaks.push(blockTruePeak, hopsPerShort)
	d.latest4[d.hopCount%hopsPerMomentary] = meanSq
	d.hopCount++

	var res DetectorResult

	momentary := mean64(d.latest4[:min(d.hopCount, hopsPerMomentary)])
	res.MomentaryLUFS = powerToLUFS(momentary)
	shortTerm := d.energies.mean()
	res.ShortTermLUFS = powerToLUFS(shortTerm)

	// every hop completes a new 75%-overlapped 400 ms gating block
	if d.hopCount >= hopsPerMomentary {
		block := mean64(d.latest4[:])
		if powerToLUFS(block) > absoluteGateLUFS {
			d.blocks = append(d.blocks, block)
		}
	}
	res.IntegratedLUFS = gatedLoudness(d.blocks)
	if res.ShortTermLUFS > absoluteGateLUFS {
		d.shortHist = append(d.shortHist, res.ShortTermLUFS)
	}
	res.LoudnessRange = loudnessRange(d.shortHist)

	res.TruePeakDb = amplitudeToDb(d.winTruePeaks.max())
	res.MaxTruePeakDb = amplitudeToDb(d.maxTruePeak)
	res.Clipping = res.TruePeakDb > clipThresholdDb

	res.PSR = res.TruePeakDb - res.ShortTermLUFS
	res.PSRAssessment = dynamicsAssessment(res.PSR)
	if rms := math.Sqrt(d.energiesUnweightedMean()); rms > 0 {
		res.CrestDb = amplitudeToDb(float64(d.hopPeaks.max())) - amplitudeToDb(rms)
	}
	res.CrestAssessment = dynamicsAssessment(res.CrestDb)

	d.analyzeBark(&res)

	d.sonesHist.push(res.Sones, hopsPerShort)
	depth, rate := modulation(d.sonesHist.vals, 10)
	res.Fluctuation = modulationStrength(depth, rate, fluctuationCenterHz)
	depth, rate = modulation(d.envRing.vals, float64(envPointsPerSecond))
	res.Roughness = modulationStrength(depth, rate, roughnessCenterHz)

	d.result.Store(&res)
	TrySend(d.broker.ToModel, MsgToModel{HasDetectorResult: true, DetectorResult: res})
}

// energiesUnweightedMean approximates the unweighted short-term mean square
// from the sample-peak window's companion energy ring. The K-weighted
// energies are close enough for a crest figure, whose buckets are several
// dB wide.
func (d *Detector) energiesUnweightedMean() float64 {
	return d.energies.mean() / 2
}

func powerToLUFS(power float64) float64 {
	if power <= 0 {
		return silenceLUFS
	}
	// power is summed over both channels, matching the BS.1770 channel sum
	return lufsOffset + 10*math.Log10(power)
}

func amplitudeToDb(a float64) float64 {
	if a <= 0 {
		return silenceLUFS
	}
	return 20 * math.Log10(a)
}

// gatedLoudness runs the two-stage BS.1770 gate: blocks already passed the
// -70 LUFS absolute gate; the relative gate sits 10 LU under the ungated
// mean.
func gatedLoudness(blocks []float64) float64 {
	if len(blocks) == 0 {
		return silenceLUFS
	}
	ungated := mean64(blocks)
	threshold := powerToLUFS(ungated) - 10
	var sum float64
	var count int
	for _, b := range blocks {
		if powerToLUFS(b) > threshold {
			sum += b
			count++
		}
	}
	if count == 0 {
		return silenceLUFS
	}
	return powerToLUFS(sum / float64(count))
}

// loudnessRange is the EBU R128 LRA: the spread between the 10th and 95th
// percentiles of the short-term loudness distribution, relative-gated 20 LU
// under its mean.
func loudnessRange(hist []float64) float64 {
	if len(hist) < 2 {
		return 0
	}
	threshold := meanLoudness(hist) - 20
	gated := make([]float64, 0, len(hist))
	for _, l := range hist {
		if l > threshold {
			gated = append(gated, l)
		}
	}
	if len(gated) < 2 {
		return 0
	}
	sort.Float64s(gated)
	lo := gated[int(float64(len(gated)-1)*0.10)]
	hi := gated[int(float64(len(gated)-1)*0.95)]
	return hi - lo
}

func meanLoudness(hist []float64) float64 {
	var sum float64
	for _, l := range hist {
		sum += math.Pow(10, l/10)
	}
	return 10 * math.Log10(sum/float64(len(hist)))
}

// dynamicsAssessment buckets a dynamics figure (PSR or crest, both in dB)
// into the plain-language scale shown next to the meter.
func dynamicsAssessment(db float64) string {
	switch {
	case db >= 12:
		return "very dynamic"
	case db >= 9:
		return "dynamic"
	case db >= 6:
		return "moderate"
	case db >= 3:
		return "compressed"
	default:
		return "very compressed"
	}
}

// barkEdges are the upper edge frequencies of the 24 critical bands.
var barkEdges = [BarkBands]float64{
	100, 200, 300, 400, 510, 630, 770, 920, 1080, 1270, 1480, 1720,
	2000, 2320, 2700, 3150, 3700, 4400, 5300, 6400, 7700, 9500, 12000, 15500,
}

// barkRefEnergy is the reference band energy E0 of the specific-loudness
// law S = (E/E0)^0.23, placed near the threshold of hearing.
const barkRefEnergy = 1e-9

// analyzeBark computes the Zwicker specific loudness per critical band from
// the most recent analysis window of the mono sum.
func (d *Detector) analyzeBark(res *DetectorResult) {
	if d.barkFill < barkFFTSize {
		return
	}
	start := d.barkFill % barkFFTSize
	for i := 0; i < barkFFTSize; i++ {
		d.barkRe[i] = d.barkRing[(start+i)%barkFFTSize] * d.barkWin[i]
		d.barkIm[i] = 0
	}
	dsp.FFT(d.barkRe[:], d.barkIm[:])
	hzPerBin := float64(d.sampleRate) / barkFFTSize
	scale := 2.0 / float64(barkFFTSize)
	band := 0
	var total float64
	var energy [BarkBands]float64
	for i := 1; i < barkFFTSize/2 && band < BarkBands; i++ {
		f := float64(i) * hzPerBin
		for band < BarkBands && f > barkEdges[band] {
			band++
		}
		if band >= BarkBands {
			break
		}
		mag := math.Hypot(d.barkRe[i], d.barkIm[i]) * scale
		energy[band] += mag * mag
	}
	var weighted float64
	for b := 0; b < BarkBands; b++ {
		s := math.Pow(energy[b]/barkRefEnergy, 0.23)
		if energy[b] <= 0 {
			s = 0
		}
		res.Bark[b] = float32(s)
		total += s
		weighted += s * float64(b+1) * sharpnessWeight(b+1)
	}
	res.Sones = total
	if total > 0 {
		// Stevens' law inverted: 40 phons at 1 sone, +10 per doubling
		res.Phons = 40 + 10*math.Log2(total)
		res.Sharpness = 0.11 * weighted / total
	}
}

// sharpnessWeight is von Bismarck's g(z) emphasis of the upper critical
// bands, unity below 16 Bark and rising steeply above.
func sharpnessWeight(z int) float64 {
	if z <= 16 {
		return 1
	}
	return 0.066 * math.Exp(0.171*float64(z))
}

// Fluctuation strength and roughness both rate amplitude modulation of the
// envelope, fluctuation maximal near 4 Hz and roughness near 70 Hz.
const (
	envPointsPerSecond  = 200 // 5 ms fast-envelope resolution
	fluctuationCenterHz = 4
	roughnessCenterHz   = 70

	// modulationCal maps a fully modulated envelope (maxModulationDb deep)
	// at the center rate to a reading of 1 vacil / asper
	modulationCal   = 0.05
	maxModulationDb = 40
	minModulationDb = 1 // anything shallower counts as steady
)

// modulation measures the dominant amplitude modulation of an envelope
// series: the peak-to-trough depth in dB, saturating like masking depth
// does, and the rate from mean crossings.
func modulation(env []float64, sampleHz float64) (depthDb, rate float64) {
	if len(env) < 4 {
		return 0, 0
	}
	lo, hi := env[0], env[0]
	for _, v := range env[1:] {
		if v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
	}
	if hi <= 0 {
		return 0, 0
	}
	if floor := hi * math.Pow(10, -maxModulationDb/20.0); lo < floor {
		lo = floor
	}
	depthDb = 20 * math.Log10(hi/lo)
	if depthDb < minModulationDb {
		return 0, 0
	}
	m := mean64(env)
	crossings := 0
	up := env[0] >= m
	for _, v := range env[1:] {
		if (v >= m) != up {
			up = !up
			crossings++
		}
	}
	rate = float64(crossings) * sampleHz / (2 * float64(len(env)))
	return depthDb, rate
}

// modulationStrength applies the band-pass weighting over the modulation
// rate that shapes both the vacil and the asper scale.
func modulationStrength(depthDb, rate, centerHz float64) float64 {
	if depthDb <= 0 || rate <= 0 {
		return 0
	}
	return modulationCal * depthDb / (rate/centerHz + centerHz/rate)
}

// ringF64 is a small fixed-window ring of float64 measurements.
type ringF64 struct {
	vals []float64
	pos  int
}

func (r *ringF64) push(v float64, window int) {
	if len(r.vals) < window {
		r.vals = append(r.vals, v)
		return
	}
	r.vals[r.pos%len(r.vals)] = v
	r.pos++
}

func (r *ringF64) mean() float64 {
	if len(r.vals) == 0 {
		return 0
	}
	return mean64(r.vals)
}

func (r *ringF64) max() float64 {
	var m float64
	for _, v := range r.vals {
		if v > m {
			m = v
		}
	}
	return m
}

type ringF32 struct {
	vals []float32
	pos  int
}

func (r *ringF32) push(v float32, window int) {
	if len(r.vals) < window {
		r.vals = append(r.vals, v)
		return
	}
	r.vals[r.pos%len(r.vals)] = v
	r.pos++
}

func (r *ringF32) max() float32 {
	var m float32
	for _, v := range r.vals {
		if v > m {
			m = v
		}
	}
	return m
}

func mean64(vals []float64) float64 {
	var sum float64
	for _, v := range vals {
		sum += v
	}
	return sum / float64(len(vals))
}

func growFloats(buf []float32, n int) []float32 {
	if cap(buf) < n {
		return append(buf[:cap(buf)], make([]float32, n-cap(buf))...)
	}
	return buf[:n]
}
