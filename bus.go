package reelforge

// Fixed bus topology: tracks route into exactly one of these. Two dedicated
// FX-return buses follow the five sub-buses; sends can target any bus except
// the implicit circularity of a bus into itself (buses have no sends).
const (
	MasterBus = 0
	NumSubBus = 5
	FXReturnA = NumSubBus + 1
	FXReturnB = NumSubBus + 2
	NumBuses  = NumSubBus + 3 // master + subs + two FX returns
)

// Bus volume range in decibels.
const (
	MinBusVolumeDb Decibel = -96
	MaxBusVolumeDb Decibel = 12
)

type (
	// Bus is one node of the fixed summing topology. Unlike tracks, bus
	// volume is kept in decibels because it is a trim, not a fader.
	Bus struct {
		Name     string  `yaml:",omitempty"`
		VolumeDb Decibel // -96..+12 dB
		Pan      float32 // -1..1
		Mute     bool    `yaml:",omitempty"`
		Solo     bool    `yaml:",omitempty"`
	}

	// VCA scales the output level of every assigned track without touching
	// the routing topology. Assignment is many-to-many; a track's effective
	// level is its own fader times the level of every VCA it belongs to.
	VCA struct {
		ID     VCAID
		Name   string `yaml:",omitempty"`
		Level  float32
		Mute   bool      `yaml:",omitempty"`
		Tracks []TrackID `yaml:",flow,omitempty"`
	}

	// LinkMode selects how a Group propagates fader moves to its members.
	LinkMode int

	// Group links member track faders: Relative mode applies the same delta
	// to every member, Absolute mode forces every member to the same value.
	// A Group never contributes gain by itself, which is what distinguishes
	// it from a VCA.
	Group struct {
		ID     GroupID
		Name   string `yaml:",omitempty"`
		Mode   LinkMode
		Tracks []TrackID `yaml:",flow,omitempty"`
	}

	// Marker is a named position on the timeline.
	Marker struct {
		ID    MarkerID
		Name  string `yaml:",omitempty"`
		Time  float64
		Color uint32 `yaml:",omitempty"`
	}
)

const (
	LinkRelative LinkMode = iota
	LinkAbsolute
)

func (v *VCA) Copy() VCA {
	tracks := make([]TrackID, len(v.Tracks))
	copy(tracks, v.Tracks)
	ret := *v
	ret.Tracks = tracks
	return ret
}

func (g *Group) Copy() Group {
	tracks := make([]TrackID, len(g.Tracks))
	copy(tracks, g.Tracks)
	ret := *g
	ret.Tracks = tracks
	return ret
}

// Contains reports whether id is assigned to the VCA.
func (v *VCA) Contains(id TrackID) bool {
	for _, t := range v.Tracks {
		if t == id {
			return true
		}
	}
	return false
}

// Contains reports whether id is a member of the Group.
func (g *Group) Contains(id TrackID) bool {
	for _, t := range g.Tracks {
		if t == id {
			return true
		}
	}
	return false
}
