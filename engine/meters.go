package engine

import (
	"github.com/chewxy/math32"

	reelforge "github.com/Bojan20/reelforge-standalone-sub003"
)

type (
	// BusMeter is the basic per-bus meter block: block peak and RMS per
	// channel, a decaying held peak, phase correlation and stereo balance.
	BusMeter struct {
		PeakL, PeakR float32
		RMSL, RMSR   float32
		HeldL, HeldR float32
		Correlation  float32 // -1 out of phase .. +1 in phase
		Balance      float32 // -1 all left .. +1 all right
	}

	// MeterSnapshot is the complete basic-meter state published by the audio
	// path at a bounded rate. Index 0 is the master output.
	MeterSnapshot struct {
		Buses          [reelforge.NumBuses]BusMeter
		DynamicRangeDb float32   // master crest over the meter window
		Spectrum       []float32 // log-spaced master magnitude bins, 20 Hz..20 kHz
	}

	meterState struct {
		acc  [reelforge.NumBuses]meterAccum
		held [reelforge.NumBuses][2]float32
	}

	meterAccum struct {
		peakL, peakR float32
		sumL2, sumR2 float64
		sumLR        float64
		frames       int
	}
)

// heldPeakDecay is the held-peak falloff per published snapshot, chosen so a
// full-scale hold fades out in roughly two seconds at the meter rate.
const heldPeakDecay = 0.35 / meterHz

func (m *meterState) init() {
	*m = meterState{}
}

// accumulate folds one block into the running accumulators. busBufs carry
// the post-processing signal of each bus except the master, whose final
// output arrives separately.
func (m *meterState) accumulate(busBufs []reelforge.AudioBuffer, master reelforge.AudioBuffer) {
	for b := 0; b < reelforge.NumBuses; b++ {
		buf := master
		if b != reelforge.MasterBus && b < len(busBufs) {
			buf = busBufs[b]
		}
		a := &m.acc[b]
		for i := range buf {
			l, r := buf[i][0], buf[i][1]
			if al := abs32(l); al > a.peakL {
				a.peakL = al
			}
			if ar := abs32(r); ar > a.peakR {
				a.peakR = ar
			}
			a.sumL2 += float64(l) * float64(l)
			a.sumR2 += float64(r) * float64(r)
			a.sumLR += float64(l) * float64(r)
		}
		a.frames += len(buf)
	}
}

// snapshot derives a publishable snapshot from the accumulators and resets
// them for the next window.
func (m *meterState) snapshot() MeterSnapshot {
	var snap MeterSnapshot
	for b := 0; b < reelforge.NumBuses; b++ {
		a := &m.acc[b]
		bm := &snap.Buses[b]
		bm.PeakL, bm.PeakR = a.peakL, a.peakR
		if a.frames > 0 {
			bm.RMSL = math32.Sqrt(float32(a.sumL2 / float64(a.frames)))
			bm.RMSR = math32.Sqrt(float32(a.sumR2 / float64(a.frames)))
			denom := math32.Sqrt(float32(a.sumL2 * a.sumR2))
			if denom > 0 {
				bm.Correlation = reelforge.Clamp(float32(a.sumLR)/denom, -1, 1)
			}
			if s := bm.RMSL + bm.RMSR; s > 0 {
				bm.Balance = (bm.RMSR - bm.RMSL) / s
			}
		}
		m.held[b][0] = max32(a.peakL, m.held[b][0]-heldPeakDecay)
		m.held[b][1] = max32(a.peakR, m.held[b][1]-heldPeakDecay)
		if m.held[b][0] < 0 {
			m.held[b][0] = 0
		}
		if m.held[b][1] < 0 {
			m.held[b][1] = 0
		}
		bm.HeldL, bm.HeldR = m.held[b][0], m.held[b][1]
		*a = meterAccum{}
	}
	mm := &snap.Buses[reelforge.MasterBus]
	if rms := max32(mm.RMSL, mm.RMSR); rms > 0 {
		peak := max32(mm.PeakL, mm.PeakR)
		snap.DynamicRangeDb = float32(reelforge.LinearToDb(peak) - reelforge.LinearToDb(rms))
	}
	return snap
}

func max32(a, b float32) float32 {
	if a > b {
		return a
	}
	return b
}
