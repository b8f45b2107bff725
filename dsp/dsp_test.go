package dsp_test

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	reelforge "github.com/Bojan20/reelforge-standalone-sub003"
	"github.com/Bojan20/reelforge-standalone-sub003/dsp"
)

const testRate = 48000

func constBuffer(value float32, frames int) reelforge.AudioBuffer {
	buf := make(reelforge.AudioBuffer, frames)
	for i := range buf {
		buf[i] = [2]float32{value, value}
	}
	return buf
}

func TestValidateBand(t *testing.T) {
	good := reelforge.EQBand{Enabled: true, Frequency: 1000, GainDb: 3, Q: 0.7, Shape: reelforge.Bell}
	require.NoError(t, dsp.ValidateBand(&good, testRate))

	cases := []struct {
		name   string
		mutate func(*reelforge.EQBand)
	}{
		{"below audible floor", func(b *reelforge.EQBand) { b.Frequency = 10 }},
		{"at nyquist", func(b *reelforge.EQBand) { b.Frequency = testRate / 2 }},
		{"zero q", func(b *reelforge.EQBand) { b.Q = 0 }},
		{"negative q", func(b *reelforge.EQBand) { b.Q = -1 }},
		{"odd slope", func(b *reelforge.EQBand) { b.Slope = 18 }},
		{"dynamic ratio below one", func(b *reelforge.EQBand) {
			b.Dynamic = &reelforge.DynamicBand{Enabled: true, Ratio: 0.5, AttackMs: 5, ReleaseMs: 50}
		}},
		{"dynamic zero attack", func(b *reelforge.EQBand) {
			b.Dynamic = &reelforge.DynamicBand{Enabled: true, Ratio: 2, AttackMs: 0, ReleaseMs: 50}
		}},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			b := good
			c.mutate(&b)
			assert.ErrorIs(t, dsp.ValidateBand(&b, testRate), reelforge.ErrInvalidParameter)
		})
	}
}

func TestValidateSlotParams(t *testing.T) {
	slot, err := reelforge.DefaultSlot(reelforge.ProcCompressor)
	require.NoError(t, err)
	require.NoError(t, dsp.ValidateSlotParams(&slot, testRate))

	slot.Compressor.Ratio = 0.5
	assert.ErrorIs(t, dsp.ValidateSlotParams(&slot, testRate), reelforge.ErrInvalidParameter)

	lim, _ := reelforge.DefaultSlot(reelforge.ProcLimiter)
	lim.Limiter.ReleaseMs = 0
	assert.ErrorIs(t, dsp.ValidateSlotParams(&lim, testRate), reelforge.ErrInvalidParameter)

	sat, _ := reelforge.DefaultSlot(reelforge.ProcSaturation)
	sat.Saturation.Mix = 2
	assert.ErrorIs(t, dsp.ValidateSlotParams(&sat, testRate), reelforge.ErrInvalidParameter)

	eq, _ := reelforge.DefaultSlot(reelforge.ProcEQ)
	eq.EQ.Bands = []reelforge.EQBand{{Enabled: true, Frequency: 5, Q: 1}}
	assert.ErrorIs(t, dsp.ValidateSlotParams(&eq, testRate), reelforge.ErrInvalidParameter)
}

func TestEQBellMagnitude(t *testing.T) {
	p := &reelforge.EQParams{Bands: []reelforge.EQBand{
		{Enabled: true, Frequency: 1000, GainDb: 6, Q: 1, Shape: reelforge.Bell},
	}}
	eq := dsp.NewEQ(p, testRate)

	assert.InDelta(t, 6.0, float64(eq.MagnitudeAt(1000)), 0.05, "gain at center")
	assert.InDelta(t, 0.0, float64(eq.MagnitudeAt(30)), 0.2, "flat far below")
	assert.InDelta(t, 0.0, float64(eq.MagnitudeAt(18000)), 0.2, "flat far above")
}

func TestEQDisabledBandIsFlat(t *testing.T) {
	p := &reelforge.EQParams{Bands: []reelforge.EQBand{
		{Enabled: false, Frequency: 1000, GainDb: 12, Q: 1, Shape: reelforge.Bell},
	}}
	eq := dsp.NewEQ(p, testRate)
	assert.InDelta(t, 0.0, float64(eq.MagnitudeAt(1000)), 1e-9)
}

func TestEQPhaseModesShareMagnitude(t *testing.T) {
	for _, mode := range []reelforge.PhaseMode{reelforge.ZeroLatency, reelforge.NaturalPhase, reelforge.LinearPhase} {
		p := &reelforge.EQParams{
			Phase: mode,
			Bands: []reelforge.EQBand{
				{Enabled: true, Frequency: 1000, GainDb: 6, Q: 1, Shape: reelforge.Bell},
			},
		}
		eq := dsp.NewEQ(p, testRate)
		assert.InDelta(t, 6.0, float64(eq.MagnitudeAt(1000)), 0.3, "mode %d", mode)
	}
}

func TestEQLatencyPerPhaseMode(t *testing.T) {
	band := reelforge.EQBand{Enabled: true, Frequency: 1000, GainDb: 3, Q: 1, Shape: reelforge.Bell}

	zero := dsp.NewEQ(&reelforge.EQParams{Phase: reelforge.ZeroLatency, Bands: []reelforge.EQBand{band}}, testRate)
	assert.Equal(t, 0, zero.Latency())

	natural := dsp.NewEQ(&reelforge.EQParams{Phase: reelforge.NaturalPhase, Bands: []reelforge.EQBand{band}}, testRate)
	assert.Equal(t, 11, natural.Latency(), "oversampling group delay reported at the base rate")

	linear := dsp.NewEQ(&reelforge.EQParams{Phase: reelforge.LinearPhase, Bands: []reelforge.EQBand{band}}, testRate)
	assert.Equal(t, 511, linear.Latency())
}

func TestEQBoostsSine(t *testing.T) {
	p := &reelforge.EQParams{Bands: []reelforge.EQBand{
		{Enabled: true, Frequency: 1000, GainDb: 6, Q: 1, Shape: reelforge.Bell},
	}}
	eq := dsp.NewEQ(p, testRate)

	n := testRate / 2
	buf := make(reelforge.AudioBuffer, n)
	for i := range buf {
		s := float32(0.25 * math.Sin(2*math.Pi*1000*float64(i)/testRate))
		buf[i] = [2]float32{s, s}
	}
	eq.Process(buf)

	// measure the peak over the settled tail
	var peak float32
	for _, s := range buf[n/2:] {
		if a := abs32(s[0]); a > peak {
			peak = a
		}
	}
	assert.InDelta(t, 0.25*2.0, float64(peak), 0.02, "+6 dB roughly doubles")
}

func TestCompressorReducesAboveThreshold(t *testing.T) {
	slot, err := reelforge.DefaultSlot(reelforge.ProcCompressor)
	require.NoError(t, err)
	*slot.Compressor = reelforge.CompressorParams{ThresholdDb: -30, Ratio: 4, AttackMs: 1, ReleaseMs: 100}
	proc := dsp.NewProcessor(&slot, testRate)

	buf := constBuffer(0.5, testRate)
	proc.Process(buf)
	out := buf[len(buf)-1][0]
	assert.Less(t, out, float32(0.2), "settled gain reduction")
	assert.Greater(t, out, float32(0.0))
}

func TestCompressorBelowThresholdIsUnity(t *testing.T) {
	slot, err := reelforge.DefaultSlot(reelforge.ProcCompressor)
	require.NoError(t, err)
	*slot.Compressor = reelforge.CompressorParams{ThresholdDb: -6, Ratio: 4, AttackMs: 1, ReleaseMs: 100}
	proc := dsp.NewProcessor(&slot, testRate)

	buf := constBuffer(0.1, testRate/10)
	proc.Process(buf)
	assert.InDelta(t, 0.1, float64(buf[len(buf)-1][0]), 1e-4)
}

func TestLimiterHoldsCeiling(t *testing.T) {
	slot, err := reelforge.DefaultSlot(reelforge.ProcLimiter)
	require.NoError(t, err)
	*slot.Limiter = reelforge.LimiterParams{CeilingDb: -6, ReleaseMs: 50}
	proc := dsp.NewProcessor(&slot, testRate)

	ceiling := reelforge.DbToLinear(-6)
	buf := constBuffer(1.0, testRate/10)
	proc.Process(buf)
	for i, s := range buf {
		require.LessOrEqual(t, s[0], ceiling*1.0001, "sample %d over the ceiling", i)
	}
	assert.InDelta(t, float64(ceiling), float64(buf[0][0]), 1e-4, "attack is instant")
}

func TestGate(t *testing.T) {
	slot, err := reelforge.DefaultSlot(reelforge.ProcGate)
	require.NoError(t, err)
	*slot.Gate = reelforge.GateParams{ThresholdDb: -20, AttackMs: 1, ReleaseMs: 20}
	proc := dsp.NewProcessor(&slot, testRate)

	quiet := constBuffer(0.001, testRate/10)
	proc.Process(quiet)
	assert.Less(t, quiet[len(quiet)-1][0], float32(1e-5), "stays closed below threshold")

	proc.Reset()
	loud := constBuffer(0.5, testRate/10)
	proc.Process(loud)
	assert.InDelta(t, 0.5, float64(loud[len(loud)-1][0]), 1e-3, "opens above threshold")
}

func TestSaturationShapesAndNormalizes(t *testing.T) {
	slot, err := reelforge.DefaultSlot(reelforge.ProcSaturation)
	require.NoError(t, err)
	*slot.Saturation = reelforge.SaturationParams{Drive: 24, Mix: 1}
	proc := dsp.NewProcessor(&slot, testRate)

	buf := make(reelforge.AudioBuffer, 64)
	for i := range buf {
		v := float32(i)/32 - 1 // ramp -1..1
		buf[i] = [2]float32{v, v}
	}
	proc.Process(buf)
	for i, s := range buf {
		require.LessOrEqual(t, abs32(s[0]), float32(1.0001), "sample %d", i)
	}
	// unity input stays at unity by construction
	assert.InDelta(t, -1.0, float64(buf[0][0]), 1e-3)
}

func TestGainSlotPansConstantPower(t *testing.T) {
	slot, err := reelforge.DefaultSlot(reelforge.ProcGain)
	require.NoError(t, err)
	*slot.Gain = reelforge.GainParams{Db: 0, Pan: -1}
	proc := dsp.NewProcessor(&slot, testRate)

	buf := constBuffer(0.5, 8)
	proc.Process(buf)
	assert.InDelta(t, 0.5*math.Sqrt2, float64(buf[0][0]), 1e-4, "hard left boosts left by 3 dB")
	assert.InDelta(t, 0.0, float64(buf[0][1]), 1e-4)
}

func TestChainRuntimeProcessAndTrims(t *testing.T) {
	rt := dsp.NewChainRuntime(testRate)
	chain := reelforge.Chain{InputTrimDb: 6, OutputTrimDb: -6}
	rt.Update(&chain)

	buf := constBuffer(0.5, 16)
	rt.Process(buf)
	assert.InDelta(t, 0.5, float64(buf[0][0]), 1e-3, "trims cancel")

	chain.Bypass = true
	rt.Update(&chain)
	buf = constBuffer(0.5, 16)
	rt.Process(buf)
	assert.Equal(t, float32(0.5), buf[0][0], "bypassed chain is untouched")
}

func TestChainRuntimeMix(t *testing.T) {
	rt := dsp.NewChainRuntime(testRate)
	slot, err := reelforge.DefaultSlot(reelforge.ProcGain)
	require.NoError(t, err)
	*slot.Gain = reelforge.GainParams{Db: 6}
	slot.Mix = 0.5
	chain := reelforge.Chain{Slots: []reelforge.Slot{slot}}
	rt.Update(&chain)

	buf := constBuffer(0.5, 16)
	rt.Process(buf)
	wet := 0.5 * float64(reelforge.DbToLinear(6))
	want := 0.5*wet + 0.5*0.5
	assert.InDelta(t, want, float64(buf[0][0]), 1e-3)
}

func TestChainRuntimeLatency(t *testing.T) {
	rt := dsp.NewChainRuntime(testRate)
	eqSlot, err := reelforge.DefaultSlot(reelforge.ProcEQ)
	require.NoError(t, err)
	eqSlot.EQ.Phase = reelforge.LinearPhase
	compSlot, err := reelforge.DefaultSlot(reelforge.ProcCompressor)
	require.NoError(t, err)
	chain := reelforge.Chain{Slots: []reelforge.Slot{eqSlot, compSlot}}
	rt.Update(&chain)
	assert.Equal(t, 511, rt.Latency())

	chain.Slots[0].Bypass = true
	rt.Update(&chain)
	assert.Equal(t, 0, rt.Latency(), "bypassed slots report no latency")

	// the static query agrees with the runtime for the same snapshot
	assert.Equal(t, rt.Latency(), dsp.ChainLatency(&chain))
	chain.Slots[0].Bypass = false
	assert.Equal(t, 511, dsp.ChainLatency(&chain))
}

func TestChainRuntimeEmptySlotPassesThrough(t *testing.T) {
	rt := dsp.NewChainRuntime(testRate)
	gainSlot, err := reelforge.DefaultSlot(reelforge.ProcGain)
	require.NoError(t, err)
	*gainSlot.Gain = reelforge.GainParams{Db: -6}
	chain := reelforge.Chain{Slots: []reelforge.Slot{
		{Kind: reelforge.ProcNone, Mix: 1},
		gainSlot,
	}}
	rt.Update(&chain)

	buf := constBuffer(0.5, 16)
	rt.Process(buf)
	want := 0.5 * float64(reelforge.DbToLinear(-6))
	assert.InDelta(t, want, float64(buf[0][0]), 1e-4, "empty slot leaves the signal to the loaded one")
	assert.Equal(t, 0, dsp.ChainLatency(&chain))
}

func TestFFTRoundTrip(t *testing.T) {
	const n = 256
	re := make([]float64, n)
	im := make([]float64, n)
	orig := make([]float64, n)
	for i := range re {
		re[i] = math.Sin(2*math.Pi*7*float64(i)/n) + 0.3*math.Cos(2*math.Pi*31*float64(i)/n)
		orig[i] = re[i]
	}
	dsp.FFT(re, im)
	dsp.IFFT(re, im)
	for i := range re {
		require.InDelta(t, orig[i], re[i], 1e-9, "sample %d", i)
		require.InDelta(t, 0.0, im[i], 1e-9, "imag %d", i)
	}
}

func abs32(x float32) float32 {
	if x < 0 {
		return -x
	}
	return x
}
