package engine

import (
	"math"

	reelforge "github.com/Bojan20/reelforge-standalone-sub003"
	"github.com/Bojan20/reelforge-standalone-sub003/dsp"
)

// Spectrum analyzer geometry: a Hann-windowed FFT of the master output,
// folded into log-spaced display bins covering the audible range.
const (
	spectrumFFTSize = 2048
	SpectrumBins    = 256
	spectrumMinHz   = 20.0
	spectrumMaxHz   = 20000.0
)

type spectrumState struct {
	mono   [spectrumFFTSize]float64
	fill   int
	window [spectrumFFTSize]float64
	re, im [spectrumFFTSize]float64
	mags   []float32
	fresh  bool
}

func (s *spectrumState) init() {
	for i := range s.window {
		s.window[i] = 0.5 - 0.5*math.Cos(2*math.Pi*float64(i)/float64(spectrumFFTSize))
	}
	s.mags = make([]float32, spectrumFFTSize/2)
}

// accumulate collects the mono sum of the block and transforms whenever a
// full window has been gathered. Windows do not overlap; at display rates
// that is plenty.
func (s *spectrumState) accumulate(buffer reelforge.AudioBuffer) {
	for i := range buffer {
		s.mono[s.fill] = float64(buffer[i][0]+buffer[i][1]) * 0.5
		s.fill++
		if s.fill == spectrumFFTSize {
			s.transform()
			s.fill = 0
		}
	}
}

func (s *spectrumState) transform() {
	for i := 0; i < spectrumFFTSize; i++ {
		s.re[i] = s.mono[i] * s.window[i]
		s.im[i] = 0
	}
	dsp.FFT(s.re[:], s.im[:])
	// 2/N for the window's one-sided amplitude, times 2 for the Hann
	// coherent gain of 0.5
	scale := 4.0 / float64(spectrumFFTSize)
	for i := 0; i < spectrumFFTSize/2; i++ {
		s.mags[i] = float32(math.Hypot(s.re[i], s.im[i]) * scale)
	}
	s.fresh = true
}

// bins folds the magnitude spectrum into SpectrumBins log-spaced bins from
// 20 Hz to 20 kHz, each bin holding the peak magnitude of the FFT bins it
// covers. Returns nil until the first full window has been analyzed.
func (s *spectrumState) bins(sampleRate int) []float32 {
	if !s.fresh || sampleRate <= 0 {
		return nil
	}
	out := make([]float32, SpectrumBins)
	ratio := math.Log(spectrumMaxHz / spectrumMinHz)
	hzPerBin := float64(sampleRate) / spectrumFFTSize
	for b := 0; b < SpectrumBins; b++ {
		lo := spectrumMinHz * math.Exp(ratio*float64(b)/SpectrumBins)
		hi := spectrumMinHz * math.Exp(ratio*float64(b+1)/SpectrumBins)
		i0 := int(lo / hzPerBin)
		i1 := int(hi / hzPerBin)
		if i1 <= i0 {
			i1 = i0 + 1
		}
		var peak float32
		for i := i0; i < i1 && i < len(s.mags); i++ {
			if s.mags[i] > peak {
				peak = s.mags[i]
			}
		}
		out[b] = peak
	}
	return out
}
