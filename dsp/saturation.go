package dsp

import (
	reelforge "github.com/Bojan20/reelforge-standalone-sub003"
	"github.com/chewxy/math32"
)

// gain applies level and constant-power pan.
type gain struct {
	left, right float32
}

func newGain(p *reelforge.GainParams) *gain {
	level := reelforge.DbToLinear(p.Db)
	pan := reelforge.Clamp(p.Pan, -1, 1)
	angle := (pan + 1) * math32.Pi / 4
	return &gain{
		left:  level * math32.Cos(angle) * math32.Sqrt2,
		right: level * math32.Sin(angle) * math32.Sqrt2,
	}
}

func (g *gain) Process(buffer reelforge.AudioBuffer) {
	for i := range buffer {
		buffer[i][0] *= g.left
		buffer[i][1] *= g.right
	}
}

func (g *gain) Latency() int { return 0 }
func (g *gain) Reset()       {}

// saturation is a tanh waveshaper with drive and dry/wet mix. The output is
// scaled by 1/tanh(drive) so unity-level input stays at unity level and only
// the curvature changes with drive.
type saturation struct {
	drive float32
	norm  float32
	mix   float32
}

func newSaturation(p *reelforge.SaturationParams) *saturation {
	drive := reelforge.DbToLinear(reelforge.Decibel(p.Drive))
	norm := float32(1)
	if t := math32.Tanh(drive); t > 0 {
		norm = 1 / t
	}
	return &saturation{
		drive: drive,
		norm:  norm,
		mix:   reelforge.Clamp(p.Mix, 0, 1),
	}
}

func (s *saturation) Process(buffer reelforge.AudioBuffer) {
	for i := range buffer {
		for chn := 0; chn < 2; chn++ {
			x := buffer[i][chn]
			wet := math32.Tanh(x*s.drive) * s.norm
			buffer[i][chn] = wet*s.mix + x*(1-s.mix)
		}
	}
}

func (s *saturation) Latency() int { return 0 }
func (s *saturation) Reset()       {}
