package dsp

import (
	reelforge "github.com/Bojan20/reelforge-standalone-sub003"
	"github.com/chewxy/math32"
)

// envelope is a peak follower with separate attack and release one-pole
// coefficients, shared by every dynamics processor.
type envelope struct {
	attackCoeff  float32
	releaseCoeff float32
	level        float32
}

func makeEnvelope(attackMs, releaseMs float32, sampleRate int) envelope {
	return envelope{
		attackCoeff:  onePoleCoeff(attackMs, sampleRate),
		releaseCoeff: onePoleCoeff(releaseMs, sampleRate),
	}
}

func onePoleCoeff(ms float32, sampleRate int) float32 {
	if ms <= 0 {
		return 1
	}
	return 1 - math32.Exp(-1000/(ms*float32(sampleRate)))
}

func (e *envelope) update(peak float32) float32 {
	coeff := e.releaseCoeff
	if peak > e.level {
		coeff = e.attackCoeff
	}
	e.level += (peak - e.level) * coeff
	return e.level
}

// gainComputer is the static transfer curve of a compressor-style processor:
// below the knee the gain is unity, above it the level is reduced toward
// threshold + excess/ratio, with a quadratic interpolation inside the knee.
type gainComputer struct {
	thresholdDb float32
	ratio       float32
	kneeDb      float32
}

// reductionDb returns the gain reduction (<= 0) for an input level in dB.
func (g *gainComputer) reductionDb(levelDb float32) float32 {
	over := levelDb - g.thresholdDb
	if g.kneeDb > 0 && over > -g.kneeDb/2 && over < g.kneeDb/2 {
		x := over + g.kneeDb/2
		return (1/g.ratio - 1) * x * x / (2 * g.kneeDb)
	}
	if over <= 0 {
		return 0
	}
	return over * (1/g.ratio - 1)
}

type compressor struct {
	computer gainComputer
	env      envelope
	makeup   float32
}

func newCompressor(p *reelforge.CompressorParams, sampleRate int) *compressor {
	return &compressor{
		computer: gainComputer{
			thresholdDb: float32(p.ThresholdDb),
			ratio:       p.Ratio,
			kneeDb:      p.KneeDb,
		},
		env:    makeEnvelope(p.AttackMs, p.ReleaseMs, sampleRate),
		makeup: reelforge.DbToLinear(p.MakeupDb),
	}
}

func (c *compressor) Process(buffer reelforge.AudioBuffer) {
	for i := range buffer {
		peak := max32(math32.Abs(buffer[i][0]), math32.Abs(buffer[i][1]))
		level := c.env.update(peak)
		gain := reelforge.DbToLinear(reelforge.Decibel(c.computer.reductionDb(float32(reelforge.LinearToDb(level))))) * c.makeup
		buffer[i][0] *= gain
		buffer[i][1] *= gain
	}
}

func (c *compressor) Latency() int { return 0 }
func (c *compressor) Reset()       { c.env.level = 0 }

// limiter is a hard-knee, effectively infinite-ratio compressor at the
// ceiling with instant attack.
type limiter struct {
	ceiling      float32
	releaseCoeff float32
	gain         float32
}

func newLimiter(p *reelforge.LimiterParams, sampleRate int) *limiter {
	return &limiter{
		ceiling:      reelforge.DbToLinear(p.CeilingDb),
		releaseCoeff: onePoleCoeff(p.ReleaseMs, sampleRate),
		gain:         1,
	}
}

func (l *limiter) Process(buffer reelforge.AudioBuffer) {
	for i := range buffer {
		peak := max32(math32.Abs(buffer[i][0]), math32.Abs(buffer[i][1]))
		target := float32(1)
		if peak > l.ceiling {
			target = l.ceiling / peak
		}
		if target < l.gain {
			l.gain = target // clamp instantly, never overshoot the ceiling
		} else {
			l.gain += (target - l.gain) * l.releaseCoeff
		}
		buffer[i][0] *= l.gain
		buffer[i][1] *= l.gain
	}
}

func (l *limiter) Latency() int { return 0 }
func (l *limiter) Reset()       { l.gain = 1 }

// gate mutes the signal below the threshold, with attack/release smoothing
// on the open/close transitions.
type gate struct {
	threshold float32
	env       envelope
	gain      float32
}

func newGate(p *reelforge.GateParams, sampleRate int) *gate {
	return &gate{
		threshold: reelforge.DbToLinear(p.ThresholdDb),
		env:       makeEnvelope(p.AttackMs, p.ReleaseMs, sampleRate),
	}
}

func (g *gate) Process(buffer reelforge.AudioBuffer) {
	for i := range buffer {
		peak := max32(math32.Abs(buffer[i][0]), math32.Abs(buffer[i][1]))
		target := float32(0)
		if peak >= g.threshold {
			target = 1
		}
		coeff := g.env.releaseCoeff
		if target > g.gain {
			coeff = g.env.attackCoeff
		}
		g.gain += (target - g.gain) * coeff
		buffer[i][0] *= g.gain
		buffer[i][1] *= g.gain
	}
}

func (g *gate) Latency() int { return 0 }
func (g *gate) Reset()       { g.gain = 0 }

func max32(a, b float32) float32 {
	if a > b {
		return a
	}
	return b
}
