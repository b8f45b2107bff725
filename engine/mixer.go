package engine

import (
	"github.com/chewxy/math32"

	reelforge "github.com/Bojan20/reelforge-standalone-sub003"
)

// mixBlock renders one block of the project at the current playhead into
// out, through the full signal flow: clips with fades and crossfades, clip
// chains, track chains, sends, buses and the master stage. Called only
// while playing.
func (p *Player) mixBlock(out reelforge.AudioBuffer) {
	n := len(out)
	for b := range p.busBufs {
		p.busBufs[b] = ensureLen(p.busBufs[b], n)
		p.busBufs[b].Zero()
	}
	p.trackBuf = ensureLen(p.trackBuf, n)

	for ti := range p.project.Tracks {
		p.renderTrack(&p.project.Tracks[ti], n)
	}

	anyBusSolo := false
	for b := 1; b < len(p.project.Buses); b++ {
		if p.project.Buses[b].Solo {
			anyBusSolo = true
			break
		}
	}
	for b := 1; b < len(p.project.Buses); b++ {
		bus := &p.project.Buses[b]
		buf := p.busBufs[b]
		if b < len(p.project.BusChains) {
			p.chainFor(chainKey{bus: b}, &p.project.BusChains[b]).Process(buf)
		}
		if bus.Mute || (anyBusSolo && !bus.Solo) {
			buf.Zero()
			continue
		}
		g := reelforge.DbToLinear(bus.VolumeDb)
		lg, rg := panGains(bus.Pan)
		master := p.busBufs[reelforge.MasterBus]
		for i := range buf {
			buf[i][0] *= g * lg
			buf[i][1] *= g * rg
			master[i][0] += buf[i][0]
			master[i][1] += buf[i][1]
		}
	}

	master := p.busBufs[reelforge.MasterBus]
	if len(p.project.BusChains) > 0 {
		p.chainFor(chainKey{bus: reelforge.MasterBus}, &p.project.BusChains[reelforge.MasterBus]).Process(master)
	}
	mb := &p.project.Buses[reelforge.MasterBus]
	g := reelforge.DbToLinear(mb.VolumeDb) * p.project.MasterVolume
	if mb.Mute {
		g = 0
	}
	lg, rg := panGains(mb.Pan)
	for i := range master {
		out[i][0] = master[i][0] * g * lg
		out[i][1] = master[i][1] * g * rg
	}
	copy(master, out)

	p.advance(int64(n))
}

// renderTrack renders one track's block into its destination bus and sends.
func (p *Player) renderTrack(t *reelforge.Track, n int) {
	p.trackBuf.Zero()
	p.renderClips(t, n)
	p.chainFor(chainKey{track: t.ID}, &t.Chain).Process(p.trackBuf)

	for si := range t.Sends {
		s := &t.Sends[si]
		if s.Tap == reelforge.PreFader && !s.Mute {
			addScaled(p.busBufs[s.Bus], p.trackBuf, s.Level, s.Level)
		}
	}
	level := p.project.EffectiveLevel(t.ID)
	for i := range p.trackBuf {
		p.trackBuf[i][0] *= level
		p.trackBuf[i][1] *= level
	}
	for si := range t.Sends {
		s := &t.Sends[si]
		if s.Tap == reelforge.PostFader && !s.Mute {
			addScaled(p.busBufs[s.Bus], p.trackBuf, s.Level, s.Level)
		}
	}
	lg, rg := panGains(t.Pan)
	for i := range p.trackBuf {
		p.trackBuf[i][0] *= lg
		p.trackBuf[i][1] *= rg
	}
	for si := range t.Sends {
		s := &t.Sends[si]
		if s.Tap == reelforge.PostPan && !s.Mute {
			addScaled(p.busBufs[s.Bus], p.trackBuf, s.Level, s.Level)
		}
	}
	addScaled(p.busBufs[t.Bus], p.trackBuf, 1, 1)
}

// renderClips sums every clip window overlapping the block into trackBuf,
// with clip gain, edge fades, crossfade gains and the clip's insert chain
// applied.
func (p *Player) renderClips(t *reelforge.Track, n int) {
	blockStart := p.pos
	blockEnd := p.pos + int64(n)
	for ci := range t.Clips {
		c := &t.Clips[ci]
		from := max64(blockStart, c.Start)
		to := min64(blockEnd, c.End())
		if from >= to || len(c.PCM) == 0 {
			continue
		}
		span := int(to - from)
		p.clipBuf = ensureLen(p.clipBuf, span)

		gain := reelforge.DbToLinear(c.GainDb)
		xfades := p.clipCrossfades(c)
		for i := 0; i < span; i++ {
			timeline := from + int64(i)
			src := c.SourceOffset + (timeline - c.Start)
			if src < 0 || src >= int64(len(c.PCM)) {
				p.clipBuf[i] = [2]float32{}
				continue
			}
			g := gain * clipEdgeGain(c, timeline) * crossfadeGain(xfades, timeline)
			p.clipBuf[i][0] = c.PCM[src][0] * g
			p.clipBuf[i][1] = c.PCM[src][1] * g
		}
		if len(c.Chain.Slots) > 0 || c.Chain.Bypass || c.Chain.InputTrimDb != 0 || c.Chain.OutputTrimDb != 0 {
			p.chainFor(chainKey{clip: c.ID}, &c.Chain).Process(p.clipBuf)
		}
		off := int(from - blockStart)
		for i := 0; i < span; i++ {
			p.trackBuf[off+i][0] += p.clipBuf[i][0]
			p.trackBuf[off+i][1] += p.clipBuf[i][1]
		}
	}
}

// clipXfade is a crossfade window resolved against one clip: the gain ramps
// from 1 to 0 over the window when fading out, 0 to 1 when fading in.
type clipXfade struct {
	start, end int64
	curve      reelforge.FadeCurve
	fadeOut    bool
}

func (p *Player) clipCrossfades(c *reelforge.Clip) []clipXfade {
	var out []clipXfade
	for i := range p.project.Crossfades {
		x := &p.project.Crossfades[i]
		if x.A != c.ID && x.B != c.ID {
			continue
		}
		_, ca, okA := p.project.FindClip(x.A)
		if !okA {
			continue
		}
		end := ca.End()
		out = append(out, clipXfade{
			start:   end - x.Duration,
			end:     end,
			curve:   x.Curve,
			fadeOut: x.A == c.ID,
		})
	}
	return out
}

func crossfadeGain(xfades []clipXfade, timeline int64) float32 {
	g := float32(1)
	for i := range xfades {
		x := &xfades[i]
		if timeline < x.start || timeline >= x.end || x.end <= x.start {
			continue
		}
		t := float32(timeline-x.start) / float32(x.end-x.start)
		if x.fadeOut {
			t = 1 - t
		}
		g *= reelforge.FadeGain(x.curve, t)
	}
	return g
}

// clipEdgeGain evaluates the clip's own fade-in/fade-out at a timeline
// position.
func clipEdgeGain(c *reelforge.Clip, timeline int64) float32 {
	g := float32(1)
	rel := timeline - c.Start
	if d := c.FadeIn.Duration; d > 0 && rel < d {
		g *= reelforge.FadeGain(c.FadeIn.Curve, float32(rel)/float32(d))
	}
	if d := c.FadeOut.Duration; d > 0 {
		fromEnd := c.Duration - rel
		if fromEnd <= d {
			g *= reelforge.FadeGain(c.FadeOut.Curve, float32(fromEnd)/float32(d))
		}
	}
	return g
}

// panGains is the constant-power pan law shared by tracks and buses.
func panGains(pan float32) (l, r float32) {
	angle := (pan + 1) * math32.Pi / 4
	return math32.Cos(angle) * math32.Sqrt2, math32.Sin(angle) * math32.Sqrt2
}

func addScaled(dst, src reelforge.AudioBuffer, lg, rg float32) {
	for i := range src {
		dst[i][0] += src[i][0] * lg
		dst[i][1] += src[i][1] * rg
	}
}

func ensureLen(buf reelforge.AudioBuffer, n int) reelforge.AudioBuffer {
	if cap(buf) < n {
		return append(buf[:cap(buf)], make(reelforge.AudioBuffer, n-cap(buf))...)
	}
	return buf[:n]
}

func max64(a, b int64) int64 {
	if a > b {
		return a
	}
	return b
}
