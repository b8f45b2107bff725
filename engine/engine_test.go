package engine_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	reelforge "github.com/Bojan20/reelforge-standalone-sub003"
	"github.com/Bojan20/reelforge-standalone-sub003/engine"
)

// stubCodec feeds every decode request the same PCM, standing in for real
// audio files.
type stubCodec struct {
	buffer reelforge.AudioBuffer
	rate   int
}

func (c stubCodec) Decode(path string) (reelforge.AudioBuffer, int, error) {
	return c.buffer, c.rate, nil
}

func (c stubCodec) Peaks(path string, samplesPerPeak int) ([][2]float32, error) {
	return nil, nil
}

func constantBuffer(value float32, frames int) reelforge.AudioBuffer {
	buf := make(reelforge.AudioBuffer, frames)
	for i := range buf {
		buf[i] = [2]float32{value, value}
	}
	return buf
}

func newTestEngine(t *testing.T, pcm reelforge.AudioBuffer) *engine.Engine {
	t.Helper()
	e := engine.NewEngine(engine.Config{
		SampleRate: 44100,
		BlockSize:  512,
		Codec:      stubCodec{buffer: pcm, rate: 44100},
	})
	t.Cleanup(e.Close)
	return e
}

func TestAddDeleteTrack(t *testing.T) {
	e := newTestEngine(t, nil)
	id := e.AddTrack("drums")
	p := e.Project()
	require.Len(t, p.Tracks, 1)
	assert.Equal(t, "drums", p.Tracks[0].Name)
	assert.Equal(t, reelforge.MasterBus, p.Tracks[0].Bus)
	assert.Equal(t, float32(1.0), p.Tracks[0].Volume)

	require.NoError(t, e.DeleteTrack(id))
	assert.Empty(t, e.Project().Tracks)
	assert.ErrorIs(t, e.DeleteTrack(id), reelforge.ErrNotFound)
}

func TestFaderClampPolicy(t *testing.T) {
	e := newTestEngine(t, nil)
	id := e.AddTrack("t")

	require.NoError(t, e.SetTrackVolume(id, 99))
	assert.Equal(t, reelforge.MaxTrackVolume, e.Project().Tracks[0].Volume)
	require.NoError(t, e.SetTrackVolume(id, -1))
	assert.Equal(t, reelforge.MinTrackVolume, e.Project().Tracks[0].Volume)

	require.NoError(t, e.SetTrackPan(id, -7))
	assert.Equal(t, float32(-1), e.Project().Tracks[0].Pan)

	require.NoError(t, e.SetBusVolumeDb(reelforge.MasterBus, 100))
	assert.Equal(t, reelforge.MaxBusVolumeDb, e.Project().Buses[reelforge.MasterBus].VolumeDb)
}

func TestStaleHandleFailsNotFound(t *testing.T) {
	e := newTestEngine(t, nil)
	id := e.AddTrack("t")
	require.NoError(t, e.DeleteTrack(id))
	id2 := e.AddTrack("u")
	assert.NotEqual(t, id, id2, "handles are never reused")
	assert.ErrorIs(t, e.SetTrackVolume(id, 1), reelforge.ErrNotFound)
}

func TestGroupLinkModes(t *testing.T) {
	e := newTestEngine(t, nil)
	a := e.AddTrack("a")
	b := e.AddTrack("b")
	require.NoError(t, e.SetTrackVolume(a, 1.0))
	require.NoError(t, e.SetTrackVolume(b, 0.5))

	g := e.CreateGroup("mix", reelforge.LinkRelative)
	require.NoError(t, e.AddToGroup(g, a))
	require.NoError(t, e.AddToGroup(g, b))

	// relative: the delta propagates
	require.NoError(t, e.SetTrackVolume(a, 1.2))
	p := e.Project()
	assert.InDelta(t, 1.2, float64(p.Tracks[0].Volume), 1e-6)
	assert.InDelta(t, 0.7, float64(p.Tracks[1].Volume), 1e-6)

	require.NoError(t, e.DeleteGroup(g))
	g = e.CreateGroup("mix", reelforge.LinkAbsolute)
	require.NoError(t, e.AddToGroup(g, a))
	require.NoError(t, e.AddToGroup(g, b))

	// absolute: every member lands on the same value
	require.NoError(t, e.SetTrackVolume(a, 0.4))
	p = e.Project()
	assert.Equal(t, float32(0.4), p.Tracks[0].Volume)
	assert.Equal(t, float32(0.4), p.Tracks[1].Volume)
}

func TestVCAAssignment(t *testing.T) {
	e := newTestEngine(t, nil)
	tr := e.AddTrack("t")
	v := e.CreateVCA("master vca")
	require.NoError(t, e.AssignVCA(v, tr))
	require.NoError(t, e.AssignVCA(v, tr), "double assign is a no-op")
	require.NoError(t, e.SetVCALevel(v, 0.5))

	p := e.Project()
	require.Len(t, p.VCAs, 1)
	require.Len(t, p.VCAs[0].Tracks, 1)
	assert.Equal(t, float32(0.5), p.EffectiveLevel(tr))

	require.NoError(t, e.UnassignVCA(v, tr))
	assert.ErrorIs(t, e.UnassignVCA(v, tr), reelforge.ErrNotFound)

	// deleting a track detaches it from its VCA
	require.NoError(t, e.AssignVCA(v, tr))
	require.NoError(t, e.DeleteTrack(tr))
	assert.Empty(t, e.Project().VCAs[0].Tracks)
}

func TestSends(t *testing.T) {
	e := newTestEngine(t, nil)
	tr := e.AddTrack("t")

	idx, err := e.AddSend(tr, reelforge.FXReturnA, 2.0, reelforge.PostFader)
	require.NoError(t, err)
	assert.Equal(t, 0, idx)
	assert.Equal(t, reelforge.MaxSendLevel, e.Project().Tracks[0].Sends[0].Level, "level clamps")

	_, err = e.AddSend(tr, 99, 0.5, reelforge.PreFader)
	assert.ErrorIs(t, err, reelforge.ErrNotFound)

	require.NoError(t, e.SetSendTap(tr, 0, reelforge.PostPan))
	require.NoError(t, e.SetSendMute(tr, 0, true))
	require.NoError(t, e.RemoveSend(tr, 0))
	assert.ErrorIs(t, e.RemoveSend(tr, 0), reelforge.ErrNotFound)
}

func TestClipLifecycle(t *testing.T) {
	e := newTestEngine(t, constantBuffer(0.5, 1000))
	tr := e.AddTrack("t")

	id, err := e.AddClip(tr, "take1.wav", 100)
	require.NoError(t, err)
	p := e.Project()
	require.Len(t, p.Tracks[0].Clips, 1)
	c := p.Tracks[0].Clips[0]
	assert.Equal(t, int64(100), c.Start)
	assert.Equal(t, int64(1000), c.Duration)
	assert.Equal(t, int64(1000), c.SourceLength)

	require.NoError(t, e.MoveClip(id, 200))
	assert.ErrorIs(t, e.MoveClip(id, -1), reelforge.ErrInvalidParameter)

	// shrinking from the left keeps the audio under the playhead
	require.NoError(t, e.ResizeClip(id, 300, 500))
	c = e.Project().Tracks[0].Clips[0]
	assert.Equal(t, int64(300), c.Start)
	assert.Equal(t, int64(500), c.Duration)
	assert.Equal(t, int64(100), c.SourceOffset)

	assert.ErrorIs(t, e.ResizeClip(id, 300, 1000), reelforge.ErrInvalidParameter, "past source end")

	require.NoError(t, e.DeleteClip(id))
	assert.ErrorIs(t, e.DeleteClip(id), reelforge.ErrNotFound)
}

func TestSplitClip(t *testing.T) {
	e := newTestEngine(t, constantBuffer(0.5, 1000))
	tr := e.AddTrack("t")
	id, err := e.AddClip(tr, "take1.wav", 0)
	require.NoError(t, err)
	require.NoError(t, e.SetClipFades(id, 100, 100, reelforge.CurveLinear))

	_, err = e.SplitClip(id, 0)
	assert.ErrorIs(t, err, reelforge.ErrInvalidParameter, "split at the edge")

	right, err := e.SplitClip(id, 600)
	require.NoError(t, err)
	p := e.Project()
	require.Len(t, p.Tracks[0].Clips, 2)
	left := p.Tracks[0].Clips[0]
	rc := p.Tracks[0].Clips[1]
	assert.Equal(t, id, left.ID)
	assert.Equal(t, right, rc.ID)
	assert.Equal(t, int64(600), left.Duration)
	assert.Equal(t, int64(600), rc.Start)
	assert.Equal(t, int64(400), rc.Duration)
	assert.Equal(t, int64(600), rc.SourceOffset)
	// fades stay with their edges
	assert.Equal(t, int64(100), left.FadeIn.Duration)
	assert.Equal(t, int64(0), left.FadeOut.Duration)
	assert.Equal(t, int64(0), rc.FadeIn.Duration)
	assert.Equal(t, int64(100), rc.FadeOut.Duration)
}

func TestCrossfadeLifecycle(t *testing.T) {
	e := newTestEngine(t, constantBuffer(0.5, 1000))
	tr := e.AddTrack("t")
	a, err := e.AddClip(tr, "a.wav", 0)
	require.NoError(t, err)
	b, err := e.AddClip(tr, "b.wav", 500)
	require.NoError(t, err)

	x, err := e.CreateCrossfade(a, b, 0, reelforge.CurveEqualPower)
	require.NoError(t, err)
	p := e.Project()
	require.Len(t, p.Crossfades, 1)
	assert.Equal(t, int64(500), p.Crossfades[0].Duration, "clamped to the overlap")

	// deleting either clip deletes the crossfade
	require.NoError(t, e.DeleteClip(b))
	assert.Empty(t, e.Project().Crossfades)
	assert.ErrorIs(t, e.DeleteCrossfade(x), reelforge.ErrNotFound)

	// non-overlapping clips cannot crossfade
	c, err := e.AddClip(tr, "c.wav", 5000)
	require.NoError(t, err)
	_, err = e.CreateCrossfade(a, c, 100, reelforge.CurveLinear)
	assert.ErrorIs(t, err, reelforge.ErrInvalidState)
}

func TestDestructiveClipEdits(t *testing.T) {
	e := newTestEngine(t, constantBuffer(0.25, 100))
	tr := e.AddTrack("t")
	id, err := e.AddClip(tr, "a.wav", 0)
	require.NoError(t, err)

	require.NoError(t, e.NormalizeClip(id, 0))
	proj := e.Project()
	_, c, ok := proj.FindClip(id)
	require.True(t, ok)
	assert.InDelta(t, 1.0, float64(c.PCM[0][0]), 1e-6)

	require.NoError(t, e.ReverseClip(id))
	assert.True(t, e.Project().Tracks[0].Clips[0].Reversed)
}

func TestReverseTrimmedClipKeepsAudibleWindow(t *testing.T) {
	ramp := make(reelforge.AudioBuffer, 100)
	for i := range ramp {
		ramp[i] = [2]float32{float32(i), float32(i)}
	}
	e := newTestEngine(t, ramp)
	tr := e.AddTrack("t")
	id, err := e.AddClip(tr, "a.wav", 0)
	require.NoError(t, err)

	// window over source samples 40..99
	require.NoError(t, e.ResizeClip(id, 40, 60))
	require.NoError(t, e.ReverseClip(id))

	proj := e.Project()
	_, c, ok := proj.FindClip(id)
	require.True(t, ok)
	assert.Equal(t, int64(0), c.SourceOffset, "window mirrors to the front of the reversed source")
	assert.Equal(t, int64(60), c.Duration)
	// the audible material is the old window back to front
	assert.Equal(t, float32(99), c.PCM[c.SourceOffset][0])
	assert.Equal(t, float32(40), c.PCM[c.SourceOffset+c.Duration-1][0])
}

func TestFXChainCommands(t *testing.T) {
	e := newTestEngine(t, nil)
	tr := e.AddTrack("t")
	tgt := engine.TrackChain(tr)

	idx, err := e.AddSlot(tgt, reelforge.ProcCompressor)
	require.NoError(t, err)
	assert.Equal(t, 0, idx)

	err = e.SetSlotParams(tgt, idx, reelforge.CompressorParams{
		ThresholdDb: -20, Ratio: 4, AttackMs: 5, ReleaseMs: 80, KneeDb: 6,
	})
	require.NoError(t, err)

	// structural errors reject, they do not clamp
	err = e.SetSlotParams(tgt, idx, reelforge.CompressorParams{Ratio: 0, AttackMs: 5, ReleaseMs: 80})
	assert.ErrorIs(t, err, reelforge.ErrInvalidParameter)
	err = e.SetSlotParams(tgt, idx, reelforge.GateParams{})
	assert.ErrorIs(t, err, reelforge.ErrInvalidParameter, "kind mismatch")

	require.NoError(t, e.SetSlotBypass(tgt, idx, true))
	require.NoError(t, e.SetSlotMix(tgt, idx, 2.0))
	assert.Equal(t, float32(1), e.Project().Tracks[0].Chain.Slots[0].Mix)

	idx2, err := e.AddSlot(tgt, reelforge.ProcGain)
	require.NoError(t, err)
	require.NoError(t, e.MoveSlot(tgt, idx2, 0))
	p := e.Project()
	assert.Equal(t, reelforge.ProcGain, p.Tracks[0].Chain.Slots[0].Kind)
	assert.Equal(t, reelforge.ProcCompressor, p.Tracks[0].Chain.Slots[1].Kind)

	require.NoError(t, e.RemoveSlot(tgt, 0))
	assert.ErrorIs(t, e.RemoveSlot(tgt, 5), reelforge.ErrNotFound)
}

func TestSparseSlotLoading(t *testing.T) {
	e := newTestEngine(t, nil)
	tr := e.AddTrack("t")
	tgt := engine.TrackChain(tr)

	// loading at index 2 grows the chain with pass-through slots
	require.NoError(t, e.LoadSlot(tgt, 2, reelforge.ProcGain))
	p := e.Project()
	require.Len(t, p.Tracks[0].Chain.Slots, 3)
	assert.Equal(t, reelforge.ProcNone, p.Tracks[0].Chain.Slots[0].Kind)
	assert.Equal(t, reelforge.ProcNone, p.Tracks[0].Chain.Slots[1].Kind)
	assert.Equal(t, reelforge.ProcGain, p.Tracks[0].Chain.Slots[2].Kind)

	assert.ErrorIs(t, e.LoadSlot(tgt, 2, reelforge.ProcGate), reelforge.ErrInvalidState, "slot occupied")
	assert.ErrorIs(t, e.LoadSlot(tgt, -1, reelforge.ProcGate), reelforge.ErrInvalidParameter)

	// an empty slot accepts a load
	require.NoError(t, e.LoadSlot(tgt, 0, reelforge.ProcGate))
	assert.Equal(t, reelforge.ProcGate, e.Project().Tracks[0].Chain.Slots[0].Kind)

	// unloading keeps later indices stable, unlike RemoveSlot
	require.NoError(t, e.UnloadSlot(tgt, 0))
	p = e.Project()
	require.Len(t, p.Tracks[0].Chain.Slots, 3)
	assert.Equal(t, reelforge.ProcNone, p.Tracks[0].Chain.Slots[0].Kind)
	assert.Equal(t, reelforge.ProcGain, p.Tracks[0].Chain.Slots[2].Kind)

	assert.ErrorIs(t, e.UnloadSlot(tgt, 5), reelforge.ErrNotFound)
}

func TestChainLatencyQuery(t *testing.T) {
	e := newTestEngine(t, nil)
	tr := e.AddTrack("t")
	tgt := engine.TrackChain(tr)
	slot, err := e.AddSlot(tgt, reelforge.ProcEQ)
	require.NoError(t, err)

	lat, err := e.ChainLatency(tgt)
	require.NoError(t, err)
	assert.Equal(t, 0, lat, "zero-latency mode by default")

	require.NoError(t, e.SetEQPhaseMode(tgt, slot, reelforge.LinearPhase))
	lat, err = e.ChainLatency(tgt)
	require.NoError(t, err)
	assert.Equal(t, 511, lat)

	require.NoError(t, e.SetEQPhaseMode(tgt, slot, reelforge.NaturalPhase))
	lat, err = e.ChainLatency(tgt)
	require.NoError(t, err)
	assert.Equal(t, 11, lat)

	require.NoError(t, e.SetSlotBypass(tgt, slot, true))
	lat, err = e.ChainLatency(tgt)
	require.NoError(t, err)
	assert.Equal(t, 0, lat, "bypassed slots add no delay")

	_, err = e.ChainLatency(engine.TrackChain(reelforge.TrackID(9999)))
	assert.ErrorIs(t, err, reelforge.ErrNotFound)
}

func TestEQBandCommands(t *testing.T) {
	e := newTestEngine(t, nil)
	tr := e.AddTrack("t")
	tgt := engine.TrackChain(tr)
	slot, err := e.AddSlot(tgt, reelforge.ProcEQ)
	require.NoError(t, err)

	band := reelforge.EQBand{Enabled: true, Frequency: 1000, GainDb: 6, Q: 1, Shape: reelforge.Bell}
	idx, err := e.AddEQBand(tgt, slot, band)
	require.NoError(t, err)
	assert.Equal(t, 0, idx)

	band.Frequency = 5 // below the audible floor
	_, err = e.AddEQBand(tgt, slot, band)
	assert.ErrorIs(t, err, reelforge.ErrInvalidParameter)

	band.Frequency = 2000
	require.NoError(t, e.SetEQBand(tgt, slot, 0, band))
	assert.ErrorIs(t, e.SetEQBand(tgt, slot, 3, band), reelforge.ErrNotFound)

	require.NoError(t, e.StoreEQSnapshot(tgt, slot, 'A'))
	band.GainDb = -6
	require.NoError(t, e.SetEQBand(tgt, slot, 0, band))
	require.NoError(t, e.RecallEQSnapshot(tgt, slot, 'A'))
	p := e.Project()
	assert.Equal(t, reelforge.Decibel(6), p.Tracks[0].Chain.Slots[slot].EQ.Bands[0].GainDb)

	assert.ErrorIs(t, e.RecallEQSnapshot(tgt, slot, 'B'), reelforge.ErrNotFound)

	require.NoError(t, e.RemoveEQBand(tgt, slot, 0))
	assert.Empty(t, e.Project().Tracks[0].Chain.Slots[slot].EQ.Bands)
}

func TestRejectedSnapshotStoreKeepsRedo(t *testing.T) {
	e := newTestEngine(t, nil)
	tr := e.AddTrack("t")
	tgt := engine.TrackChain(tr)
	slot, err := e.AddSlot(tgt, reelforge.ProcEQ)
	require.NoError(t, err)

	e.AddTrack("scratch")
	e.Undo()
	require.True(t, e.CanRedo())

	assert.ErrorIs(t, e.StoreEQSnapshot(tgt, slot, 'X'), reelforge.ErrInvalidParameter)
	assert.True(t, e.CanRedo(), "a rejected command leaves the redo stack alone")

	// and no spurious undo entry was pushed: one undo removes the slot
	e.Undo()
	assert.Empty(t, e.Project().Tracks[0].Chain.Slots)
}

func TestEQBandCapacity(t *testing.T) {
	e := newTestEngine(t, nil)
	tr := e.AddTrack("t")
	tgt := engine.TrackChain(tr)
	slot, err := e.AddSlot(tgt, reelforge.ProcEQ)
	require.NoError(t, err)

	band := reelforge.EQBand{Enabled: true, Frequency: 1000, Q: 1}
	for i := 0; i < reelforge.MaxEQBands; i++ {
		_, err := e.AddEQBand(tgt, slot, band)
		require.NoError(t, err)
	}
	_, err = e.AddEQBand(tgt, slot, band)
	assert.ErrorIs(t, err, reelforge.ErrResourceExhausted)
}

func TestMarkers(t *testing.T) {
	e := newTestEngine(t, nil)
	id := e.AddMarker("verse", 12.5, 0xff0000)
	require.NoError(t, e.MoveMarker(id, 14.0))
	p := e.Project()
	require.Len(t, p.Markers, 1)
	assert.Equal(t, 14.0, p.Markers[0].Time)
	require.NoError(t, e.DeleteMarker(id))
	assert.ErrorIs(t, e.MoveMarker(id, 1), reelforge.ErrNotFound)
}

func TestUndoRedoRoundTrip(t *testing.T) {
	e := newTestEngine(t, constantBuffer(0.5, 1000))
	before := e.Project()

	count := 0
	tr := e.AddTrack("drums")
	count++
	require.NoError(t, e.SetTrackVolume(tr, 1.2))
	count++
	_, err := e.AddClip(tr, "a.wav", 0)
	require.NoError(t, err)
	count++
	v := e.CreateVCA("v")
	count++
	require.NoError(t, e.AssignVCA(v, tr))
	count++
	e.SetTempo(140)
	count++
	require.NoError(t, e.SetBusVolumeDb(1, -6))
	count++

	for i := 0; i < count; i++ {
		require.True(t, e.CanUndo(), "undo %d", i)
		e.Undo()
	}
	after := e.Project()
	assert.Equal(t, before.Tracks, after.Tracks)
	assert.Equal(t, before.Buses, after.Buses)
	assert.Equal(t, before.VCAs, after.VCAs)
	assert.Equal(t, before.Crossfades, after.Crossfades)
	assert.Equal(t, before.NextID, after.NextID)
	assert.Equal(t, before.Transport.BPM, after.Transport.BPM)

	for i := 0; i < count; i++ {
		require.True(t, e.CanRedo(), "redo %d", i)
		e.Redo()
	}
	p := e.Project()
	require.Len(t, p.Tracks, 1)
	assert.Equal(t, float32(1.2), p.Tracks[0].Volume)
	assert.Equal(t, 140.0, p.Transport.BPM)
}

func TestUndoDepthBound(t *testing.T) {
	e := engine.NewEngine(engine.Config{SampleRate: 44100, UndoDepth: 4})
	t.Cleanup(e.Close)
	for i := 0; i < 10; i++ {
		e.AddTrack("t")
	}
	undos := 0
	for e.CanUndo() {
		e.Undo()
		undos++
	}
	assert.Equal(t, 4, undos)
	assert.Len(t, e.Project().Tracks, 6, "the oldest edits are beyond the horizon")
}

func TestNewEditClearsRedo(t *testing.T) {
	e := newTestEngine(t, nil)
	e.AddTrack("a")
	e.Undo()
	assert.True(t, e.CanRedo())
	e.AddTrack("b")
	assert.False(t, e.CanRedo())
}

func TestTransportStateMachine(t *testing.T) {
	e := newTestEngine(t, nil)

	e.Play()
	assert.Equal(t, reelforge.Playing, e.Project().Transport.State)
	assert.False(t, e.CanUndo(), "run state is not an edit")

	e.Pause()
	assert.Equal(t, reelforge.Paused, e.Project().Transport.State)

	require.NoError(t, e.ToggleRecord())
	assert.True(t, e.Project().Transport.Recording)

	// pausing an already paused transport still drops the record flag
	e.Pause()
	assert.False(t, e.Project().Transport.Recording, "pausing drops the record flag")

	require.NoError(t, e.ToggleRecord())
	e.Stop()
	p := e.Project()
	assert.Equal(t, reelforge.Stopped, p.Transport.State)
	assert.False(t, p.Transport.Recording)
	assert.Equal(t, int64(0), p.Transport.PosSamples)

	assert.ErrorIs(t, e.ToggleRecord(), reelforge.ErrInvalidState, "no record flag while stopped")
	e.Pause()
	assert.Equal(t, reelforge.Stopped, e.Project().Transport.State, "pause has no effect while stopped")

	require.NoError(t, e.SetPosition(1000))
	assert.ErrorIs(t, e.SetPosition(-1), reelforge.ErrInvalidParameter)
}

func TestTempoAndLoopEdits(t *testing.T) {
	e := newTestEngine(t, nil)

	e.SetTempo(5000)
	assert.Equal(t, reelforge.MaxBPM, e.Project().Transport.BPM)
	e.SetTempo(1)
	assert.Equal(t, reelforge.MinBPM, e.Project().Transport.BPM)
	assert.True(t, e.CanUndo(), "tempo is part of the document")

	assert.ErrorIs(t, e.SetLoopRegion(5, 2), reelforge.ErrInvalidParameter)
	require.NoError(t, e.SetLoopRegion(1, 5))
	e.ToggleLoop()
	p := e.Project()
	assert.True(t, p.Transport.Loop.Enabled)
	assert.Equal(t, 1.0, p.Transport.Loop.Start)
	assert.Equal(t, 5.0, p.Transport.Loop.End)

	assert.ErrorIs(t, e.SetTimeSignature(0, 4), reelforge.ErrInvalidParameter)
	require.NoError(t, e.SetTimeSignature(3, 4))
}
