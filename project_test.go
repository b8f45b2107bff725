package reelforge_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	reelforge "github.com/Bojan20/reelforge-standalone-sub003"
)

func TestNewProjectTopology(t *testing.T) {
	p := reelforge.NewProject("test", 48000)
	require.Len(t, p.Buses, reelforge.NumBuses)
	assert.Equal(t, "Master", p.Buses[reelforge.MasterBus].Name)
	assert.Equal(t, "FX A", p.Buses[reelforge.FXReturnA].Name)
	assert.Equal(t, "FX B", p.Buses[reelforge.FXReturnB].Name)
	assert.Len(t, p.BusChains, reelforge.NumBuses)
	assert.Equal(t, 120.0, p.Transport.BPM)
	assert.Equal(t, float32(1.0), p.MasterVolume)
	assert.NoError(t, p.Validate())
}

func TestProjectCopyIsDeep(t *testing.T) {
	p := reelforge.NewProject("test", 44100)
	id := reelforge.TrackID(p.AllocateID())
	p.Tracks = append(p.Tracks, reelforge.Track{ID: id, Name: "drums", Volume: 1})
	p.Tracks[0].Sends = append(p.Tracks[0].Sends, reelforge.Send{Bus: reelforge.FXReturnA, Level: 0.5})
	p.VCAs = append(p.VCAs, reelforge.VCA{ID: 1, Level: 1, Tracks: []reelforge.TrackID{id}})

	c := p.Copy()
	c.Tracks[0].Name = "changed"
	c.Tracks[0].Sends[0].Level = 0.9
	c.VCAs[0].Tracks[0] = 99

	assert.Equal(t, "drums", p.Tracks[0].Name)
	assert.Equal(t, float32(0.5), p.Tracks[0].Sends[0].Level)
	assert.Equal(t, id, p.VCAs[0].Tracks[0])
}

func TestHandlesNeverReused(t *testing.T) {
	p := reelforge.NewProject("test", 44100)
	a := p.AllocateID()
	b := p.AllocateID()
	assert.NotEqual(t, a, b)
	assert.Greater(t, b, a)
}

func TestEffectiveLevelMuteSoloVCA(t *testing.T) {
	p := reelforge.NewProject("test", 44100)
	t1 := reelforge.TrackID(p.AllocateID())
	t2 := reelforge.TrackID(p.AllocateID())
	p.Tracks = append(p.Tracks,
		reelforge.Track{ID: t1, Volume: 1.0},
		reelforge.Track{ID: t2, Volume: 0.8},
	)

	assert.Equal(t, float32(1.0), p.EffectiveLevel(t1))
	assert.Equal(t, float32(0.8), p.EffectiveLevel(t2))

	p.Tracks[0].Mute = true
	assert.Equal(t, float32(0), p.EffectiveLevel(t1))
	p.Tracks[0].Mute = false

	// soloing one silences the other
	p.Tracks[0].Solo = true
	assert.Equal(t, float32(1.0), p.EffectiveLevel(t1))
	assert.Equal(t, float32(0), p.EffectiveLevel(t2))
	p.Tracks[0].Solo = false

	// VCA scales and its mute silences
	p.VCAs = append(p.VCAs, reelforge.VCA{ID: 10, Level: 0.5, Tracks: []reelforge.TrackID{t1}})
	assert.Equal(t, float32(0.5), p.EffectiveLevel(t1))
	assert.Equal(t, float32(0.8), p.EffectiveLevel(t2))
	p.VCAs[0].Mute = true
	assert.Equal(t, float32(0), p.EffectiveLevel(t1))

	// two VCAs compose multiplicatively
	p.VCAs[0].Mute = false
	p.VCAs = append(p.VCAs, reelforge.VCA{ID: 11, Level: 0.5, Tracks: []reelforge.TrackID{t1}})
	assert.InDelta(t, 0.25, float64(p.EffectiveLevel(t1)), 1e-6)
}

func TestProjectDuration(t *testing.T) {
	p := reelforge.NewProject("test", 44100)
	assert.Equal(t, int64(0), p.Duration())
	p.Tracks = append(p.Tracks, reelforge.Track{ID: 1, Clips: []reelforge.Clip{
		{ID: 2, Start: 100, Duration: 50, SourceLength: 50},
		{ID: 3, Start: 10, Duration: 20, SourceLength: 20},
	}})
	assert.Equal(t, int64(150), p.Duration())
}

func TestValidateRejectsBadRouting(t *testing.T) {
	p := reelforge.NewProject("test", 44100)
	p.Tracks = append(p.Tracks, reelforge.Track{ID: 1, Bus: 99})
	assert.Error(t, p.Validate())

	p.Tracks[0].Bus = 0
	p.Tracks[0].Sends = []reelforge.Send{{Bus: -1}}
	assert.Error(t, p.Validate())
}

func TestValidateRejectsDanglingCrossfade(t *testing.T) {
	p := reelforge.NewProject("test", 44100)
	p.Crossfades = append(p.Crossfades, reelforge.Crossfade{ID: 1, A: 2, B: 3, Duration: 10})
	assert.Error(t, p.Validate())
}
