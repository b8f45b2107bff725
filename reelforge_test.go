package reelforge_test

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"

	reelforge "github.com/Bojan20/reelforge-standalone-sub003"
)

func TestLinearToDbFloor(t *testing.T) {
	assert.Equal(t, reelforge.MinusInfDb, reelforge.LinearToDb(0))
	assert.Equal(t, reelforge.MinusInfDb, reelforge.LinearToDb(1e-3))
	assert.Equal(t, reelforge.MinusInfDb, reelforge.LinearToDb(-1))
	assert.Greater(t, reelforge.LinearToDb(2e-3), reelforge.MinusInfDb)
}

func TestDbToLinearFloor(t *testing.T) {
	assert.Equal(t, float32(0), reelforge.DbToLinear(reelforge.MinusInfDb))
	assert.Equal(t, float32(0), reelforge.DbToLinear(-100))
	assert.InDelta(t, 1.0, reelforge.DbToLinear(0), 1e-6)
}

func TestDbRoundTrip(t *testing.T) {
	for _, db := range []reelforge.Decibel{-40, -12, -6, -3, 0, 6, 12} {
		got := reelforge.LinearToDb(reelforge.DbToLinear(db))
		assert.InDelta(t, float64(db), float64(got), 1e-3, "round trip at %v dB", db)
	}
}

func TestClamp(t *testing.T) {
	assert.Equal(t, float32(0), reelforge.Clamp(float32(-1), 0, 1.5))
	assert.Equal(t, float32(1.5), reelforge.Clamp(float32(7), 0, 1.5))
	assert.Equal(t, 42, reelforge.Clamp(42, 0, 100))

	// named types over the base kinds must satisfy the constraint too
	assert.Equal(t, reelforge.Decibel(6), reelforge.Clamp(reelforge.Decibel(20), -60, 6))
	assert.Equal(t, reelforge.Decibel(-60), reelforge.Clamp(reelforge.Decibel(-90), -60, 6))
}

func TestFadeGainEndpoints(t *testing.T) {
	for _, curve := range []reelforge.FadeCurve{reelforge.CurveLinear, reelforge.CurveEqualPower, reelforge.CurveSCurve} {
		assert.InDelta(t, 0, float64(reelforge.FadeGain(curve, 0)), 1e-6)
		assert.InDelta(t, 1, float64(reelforge.FadeGain(curve, 1)), 1e-6)
	}
}

func TestEqualPowerCrossfadeConstantPower(t *testing.T) {
	// in + out sides must sum to unity power everywhere along the fade
	for i := 0; i <= 16; i++ {
		x := float32(i) / 16
		in := reelforge.FadeGain(reelforge.CurveEqualPower, x)
		out := reelforge.FadeGain(reelforge.CurveEqualPower, 1-x)
		power := float64(in*in + out*out)
		assert.InDelta(t, 1.0, power, 1e-5, "at t=%v", x)
	}
}

func TestClipValidate(t *testing.T) {
	c := reelforge.Clip{Duration: 100, SourceLength: 100}
	assert.NoError(t, c.Validate())

	c.Duration = 0
	assert.Error(t, c.Validate())

	c.Duration = 60
	c.SourceOffset = 50
	assert.Error(t, c.Validate(), "window past the end of the source")

	c.SourceOffset = 40
	assert.NoError(t, c.Validate())
}

func TestOverlap(t *testing.T) {
	a := &reelforge.Clip{Start: 0, Duration: 100, SourceLength: 100}
	b := &reelforge.Clip{Start: 80, Duration: 100, SourceLength: 100}
	start, end, ok := reelforge.Overlap(a, b)
	assert.True(t, ok)
	assert.Equal(t, int64(80), start)
	assert.Equal(t, int64(100), end)

	b.Start = 100 // adjacent clips touch with zero overlap
	start, end, ok = reelforge.Overlap(a, b)
	assert.True(t, ok)
	assert.Equal(t, start, end)

	b.Start = 101
	_, _, ok = reelforge.Overlap(a, b)
	assert.False(t, ok)
}

func TestSecondsToSamplesTruncates(t *testing.T) {
	assert.Equal(t, int64(44099), reelforge.SecondsToSamples(0.9999999, 44100))
	assert.Equal(t, int64(0), reelforge.SecondsToSamples(0, 44100))
}

func TestTransportPosSeconds(t *testing.T) {
	tr := reelforge.Transport{PosSamples: 22050}
	assert.InDelta(t, 0.5, tr.PosSeconds(44100), 1e-9)
	assert.Equal(t, 0.0, tr.PosSeconds(0))
}

func TestDefaultSlotKinds(t *testing.T) {
	for _, kind := range []reelforge.ProcessorKind{
		reelforge.ProcGain, reelforge.ProcCompressor, reelforge.ProcLimiter,
		reelforge.ProcGate, reelforge.ProcSaturation, reelforge.ProcEQ,
	} {
		slot, err := reelforge.DefaultSlot(kind)
		assert.NoError(t, err)
		assert.Equal(t, kind, slot.Kind)
		assert.Equal(t, float32(1), slot.Mix)
		assert.NotNil(t, slot.Params(), "kind %v", kind)
	}
	_, err := reelforge.DefaultSlot(reelforge.ProcessorKind(99))
	assert.Error(t, err)
}

func TestSlotSetParamsKindMismatch(t *testing.T) {
	slot, _ := reelforge.DefaultSlot(reelforge.ProcGain)
	assert.Error(t, slot.SetParams(reelforge.LimiterParams{}))
	assert.NoError(t, slot.SetParams(reelforge.GainParams{Db: -6}))
	assert.InDelta(t, -6, float64(slot.Gain.Db), 1e-9)
}

func TestAudioBufferZeroAndCopy(t *testing.T) {
	b := reelforge.AudioBuffer{{1, 2}, {3, 4}}
	c := b.Copy()
	b.Zero()
	assert.Equal(t, reelforge.AudioBuffer{{0, 0}, {0, 0}}, b)
	assert.Equal(t, reelforge.AudioBuffer{{1, 2}, {3, 4}}, c)
}

func TestLinearToDbMonotonic(t *testing.T) {
	prev := float64(reelforge.MinusInfDb)
	for g := 0.01; g <= 2.0; g += 0.01 {
		db := float64(reelforge.LinearToDb(float32(g)))
		assert.GreaterOrEqual(t, db, prev)
		prev = db
	}
	assert.False(t, math.IsInf(prev, 0))
}
