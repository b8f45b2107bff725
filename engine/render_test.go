package engine_test

import (
	"bytes"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	reelforge "github.com/Bojan20/reelforge-standalone-sub003"
	"github.com/Bojan20/reelforge-standalone-sub003/engine"
)

func newRenderEngine(t *testing.T) *engine.Engine {
	t.Helper()
	e := engine.NewEngine(engine.Config{
		SampleRate: 44100,
		Codec:      stubCodec{buffer: constantBuffer(0.25, 4410), rate: 44100},
		Persister:  reelforge.DiskPersister{},
	})
	t.Cleanup(e.Close)
	tr := e.AddTrack("t")
	_, err := e.AddClip(tr, "a.wav", 0)
	require.NoError(t, err)
	return e
}

func waitRender(t *testing.T, r *engine.Renderer) {
	t.Helper()
	deadline := time.Now().Add(10 * time.Second)
	for r.State() == engine.Rendering {
		if time.Now().After(deadline) {
			t.Fatal("render did not finish")
		}
		time.Sleep(time.Millisecond)
	}
}

func TestRenderProducesWav(t *testing.T) {
	e := newRenderEngine(t)
	path := filepath.Join(t.TempDir(), "bounce.wav")
	require.NoError(t, e.StartRender(engine.RenderOptions{Path: path, BitDepth: reelforge.BitDepth32}))
	waitRender(t, e.Renderer())
	require.Equal(t, engine.RenderComplete, e.Renderer().State())
	assert.InDelta(t, 1.0, e.Renderer().Progress(), 1e-9)

	pcm, rate, err := reelforge.WavCodec{}.Decode(path)
	require.NoError(t, err)
	assert.Equal(t, 44100, rate)
	require.Len(t, pcm, 4410)
	assert.InDelta(t, 0.25, float64(pcm[0][0]), 1e-6)
	assert.InDelta(t, 0.25, float64(pcm[len(pcm)-1][1]), 1e-6)
}

func TestRenderReportsSpeedAndPeak(t *testing.T) {
	e := newRenderEngine(t)
	path := filepath.Join(t.TempDir(), "stats.wav")
	require.NoError(t, e.StartRender(engine.RenderOptions{Path: path, BitDepth: reelforge.BitDepth32}))
	waitRender(t, e.Renderer())
	require.Equal(t, engine.RenderComplete, e.Renderer().State())

	r := e.Renderer()
	assert.Greater(t, r.Speed(), 0.0)
	assert.InDelta(t, -12.04, float64(r.PeakDb()), 0.1, "steady 0.25 signal")
	assert.GreaterOrEqual(t, r.ETA(), time.Duration(0))

	require.NoError(t, r.Clear())
	assert.Zero(t, r.Speed())
	assert.Equal(t, reelforge.MinusInfDb, r.PeakDb())
}

func TestRenderDeterministic(t *testing.T) {
	e := newRenderEngine(t)
	dir := t.TempDir()
	a := filepath.Join(dir, "a.wav")
	b := filepath.Join(dir, "b.wav")

	require.NoError(t, e.StartRender(engine.RenderOptions{Path: a, BitDepth: reelforge.BitDepth24}))
	waitRender(t, e.Renderer())
	require.Equal(t, engine.RenderComplete, e.Renderer().State())
	require.NoError(t, e.Renderer().Clear())

	require.NoError(t, e.StartRender(engine.RenderOptions{Path: b, BitDepth: reelforge.BitDepth24}))
	waitRender(t, e.Renderer())
	require.Equal(t, engine.RenderComplete, e.Renderer().State())

	da, err := reelforge.DiskPersister{}.Load(a)
	require.NoError(t, err)
	db, err := reelforge.DiskPersister{}.Load(b)
	require.NoError(t, err)
	assert.True(t, bytes.Equal(da, db), "same project bounces byte-identical")
}

func TestRenderRangeAndTail(t *testing.T) {
	e := newRenderEngine(t)
	path := filepath.Join(t.TempDir(), "cut.wav")
	require.NoError(t, e.StartRender(engine.RenderOptions{
		Path: path, BitDepth: reelforge.BitDepth32,
		From: 100, To: 1100, TailSamples: 50,
	}))
	waitRender(t, e.Renderer())
	require.Equal(t, engine.RenderComplete, e.Renderer().State())

	pcm, _, err := reelforge.WavCodec{}.Decode(path)
	require.NoError(t, err)
	assert.Len(t, pcm, 1050)
}

func TestRenderNormalize(t *testing.T) {
	e := newRenderEngine(t)
	path := filepath.Join(t.TempDir(), "norm.wav")
	require.NoError(t, e.StartRender(engine.RenderOptions{
		Path: path, BitDepth: reelforge.BitDepth32,
		Normalize: true, TargetDb: 0,
	}))
	waitRender(t, e.Renderer())
	require.Equal(t, engine.RenderComplete, e.Renderer().State())

	pcm, _, err := reelforge.WavCodec{}.Decode(path)
	require.NoError(t, err)
	var peak float64
	for _, s := range pcm {
		if a := float64(s[0]); a > peak {
			peak = a
		}
	}
	assert.InDelta(t, 1.0, peak, 1e-5)
}

func TestRenderRejectsWhileRunning(t *testing.T) {
	e := newRenderEngine(t)
	dir := t.TempDir()
	require.NoError(t, e.StartRender(engine.RenderOptions{Path: filepath.Join(dir, "a.wav"), BitDepth: reelforge.BitDepth16}))

	// running or already complete, the renderer is not idle either way
	err := e.StartRender(engine.RenderOptions{Path: filepath.Join(dir, "b.wav"), BitDepth: reelforge.BitDepth16})
	assert.ErrorIs(t, err, reelforge.ErrInvalidState)

	waitRender(t, e.Renderer())
	require.NoError(t, e.Renderer().Clear())
	require.NoError(t, e.StartRender(engine.RenderOptions{Path: filepath.Join(dir, "b.wav"), BitDepth: reelforge.BitDepth16}))
	waitRender(t, e.Renderer())
}

func TestRenderEmptyProjectFails(t *testing.T) {
	e := engine.NewEngine(engine.Config{SampleRate: 44100, Persister: reelforge.DiskPersister{}})
	t.Cleanup(e.Close)
	err := e.StartRender(engine.RenderOptions{Path: "out.wav", BitDepth: reelforge.BitDepth16})
	assert.ErrorIs(t, err, reelforge.ErrInvalidState, "nothing to bounce")
}
