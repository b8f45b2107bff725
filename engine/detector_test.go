package engine_test

import (
	"math"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Bojan20/reelforge-standalone-sub003/engine"
)

// measureSine feeds seconds of a full-scale-relative stereo sine through a
// private detector and returns the final snapshot.
func measureSine(t *testing.T, freq float64, amplitude float32, rate, seconds int) engine.DetectorResult {
	t.Helper()
	broker := engine.NewBroker()
	var snap atomic.Pointer[engine.DetectorResult]
	d := engine.NewDetector(broker, &snap)
	go d.Run()

	broker.ToDetector <- engine.MsgToDetector{HasSampleRate: true, SampleRate: rate}

	total := rate * seconds
	const chunk = 4096
	for off := 0; off < total; off += chunk {
		n := chunk
		if total-off < n {
			n = total - off
		}
		data := broker.GetAudioBuffer()
		for i := 0; i < n; i++ {
			s := amplitude * float32(math.Sin(2*math.Pi*freq*float64(off+i)/float64(rate)))
			*data = append(*data, [2]float32{s, s})
		}
		broker.ToDetector <- engine.MsgToDetector{Data: data}
	}
	broker.ToDetector <- engine.MsgToDetector{Quit: true}
	_, ok := engine.TimeoutReceive(broker.FinishedDetector, 10*time.Second)
	require.False(t, ok, "finished channel closes on exit")

	res := snap.Load()
	require.NotNil(t, res)
	return *res
}

func TestDetectorFullScaleSine(t *testing.T) {
	res := measureSine(t, 997, 1.0, 48000, 4)

	// a full-scale 997 Hz sine on both channels reads about 0 LUFS: the
	// -0.691 offset cancels the K-filter gain at the reference frequency and
	// the second channel adds 3 dB over the mono -3 LUFS figure
	assert.InDelta(t, 0.0, res.IntegratedLUFS, 1.0)
	assert.InDelta(t, res.IntegratedLUFS, res.ShortTermLUFS, 0.5)
	assert.InDelta(t, res.IntegratedLUFS, res.MomentaryLUFS, 0.5)

	assert.InDelta(t, 0.0, res.MaxTruePeakDb, 0.3, "true peak of a full-scale sine")
	assert.GreaterOrEqual(t, res.MaxTruePeakDb, res.TruePeakDb-1e-9)

	assert.Less(t, res.LoudnessRange, 1.0, "steady tone has no loudness range")

	assert.InDelta(t, 3.0, res.CrestDb, 1.5, "sine crest factor")
	assert.NotEmpty(t, res.PSRAssessment)
	assert.Equal(t, "very compressed", res.PSRAssessment, "steady full-scale tone")

	assert.Greater(t, res.Sones, 0.0)
	assert.Greater(t, res.Phons, 0.0)
	assert.True(t, res.Clipping, "a full-scale tone peaks over the clip threshold")
	var loudest int
	for b := range res.Bark {
		if res.Bark[b] > res.Bark[loudest] {
			loudest = b
		}
	}
	// 997 Hz lands in the band below the 1080 Hz edge
	assert.Equal(t, 8, loudest)
}

// measureModulated feeds a fully amplitude-modulated stereo sine through a
// private detector and returns the final snapshot.
func measureModulated(t *testing.T, carrier, modHz float64, rate, seconds int) engine.DetectorResult {
	t.Helper()
	broker := engine.NewBroker()
	var snap atomic.Pointer[engine.DetectorResult]
	d := engine.NewDetector(broker, &snap)
	go d.Run()

	broker.ToDetector <- engine.MsgToDetector{HasSampleRate: true, SampleRate: rate}

	total := rate * seconds
	const chunk = 4096
	for off := 0; off < total; off += chunk {
		n := chunk
		if total-off < n {
			n = total - off
		}
		data := broker.GetAudioBuffer()
		for i := 0; i < n; i++ {
			ts := float64(off+i) / float64(rate)
			env := 0.5 * (1 + math.Sin(2*math.Pi*modHz*ts))
			s := float32(env * math.Sin(2*math.Pi*carrier*ts))
			*data = append(*data, [2]float32{s, s})
		}
		broker.ToDetector <- engine.MsgToDetector{Data: data}
	}
	broker.ToDetector <- engine.MsgToDetector{Quit: true}
	_, ok := engine.TimeoutReceive(broker.FinishedDetector, 10*time.Second)
	require.False(t, ok)

	res := snap.Load()
	require.NotNil(t, res)
	return *res
}

func TestDetectorModulationMetrics(t *testing.T) {
	steady := measureSine(t, 997, 1.0, 48000, 4)
	assert.Less(t, steady.Fluctuation, 0.05, "a steady tone does not fluctuate")
	assert.Less(t, steady.Roughness, 0.05)

	slow := measureModulated(t, 997, 2, 48000, 4)
	assert.Greater(t, slow.Fluctuation, 0.1, "slow loudness modulation reads as fluctuation")
	assert.Greater(t, slow.Fluctuation, steady.Fluctuation)

	fast := measureModulated(t, 997, 30, 48000, 4)
	assert.Greater(t, fast.Roughness, 0.1, "fast envelope modulation reads as roughness")
	assert.Greater(t, fast.Roughness, slow.Roughness)
}

func TestDetectorQuietToneGatesOut(t *testing.T) {
	// -80 dB sits under the -70 LUFS absolute gate
	res := measureSine(t, 1000, 1e-4, 48000, 2)
	assert.Equal(t, -100.0, res.IntegratedLUFS, "nothing passes the gate")
	assert.Less(t, res.MomentaryLUFS, -70.0)
}

func TestDetectorLevelDifferenceTracks(t *testing.T) {
	loud := measureSine(t, 997, 1.0, 48000, 2)
	soft := measureSine(t, 997, 0.5, 48000, 2)
	assert.InDelta(t, 6.02, loud.IntegratedLUFS-soft.IntegratedLUFS, 0.2)
	assert.InDelta(t, 6.02, loud.MaxTruePeakDb-soft.MaxTruePeakDb, 0.2)
}

func TestDetectorResetClearsState(t *testing.T) {
	broker := engine.NewBroker()
	var snap atomic.Pointer[engine.DetectorResult]
	d := engine.NewDetector(broker, &snap)
	go d.Run()

	data := broker.GetAudioBuffer()
	for i := 0; i < 48000; i++ {
		*data = append(*data, [2]float32{0.5, 0.5})
	}
	broker.ToDetector <- engine.MsgToDetector{HasSampleRate: true, SampleRate: 48000}
	broker.ToDetector <- engine.MsgToDetector{Data: data}
	broker.ToDetector <- engine.MsgToDetector{Reset: true}
	broker.ToDetector <- engine.MsgToDetector{Quit: true}
	engine.TimeoutReceive(broker.FinishedDetector, 10*time.Second)

	res := snap.Load()
	require.NotNil(t, res)
	assert.Equal(t, -100.0, res.IntegratedLUFS)
	assert.Equal(t, -100.0, res.MaxTruePeakDb)
}

func TestDetectorCloseChannelStopsRun(t *testing.T) {
	broker := engine.NewBroker()
	var snap atomic.Pointer[engine.DetectorResult]
	d := engine.NewDetector(broker, &snap)
	go d.Run()

	broker.CloseDetector <- struct{}{}
	_, ok := engine.TimeoutReceive(broker.FinishedDetector, 10*time.Second)
	assert.False(t, ok)
}
