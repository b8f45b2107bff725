package reelforge

// TapPoint is the point in a track's signal flow from which a send draws its
// signal.
type TapPoint int

const (
	PreFader TapPoint = iota
	PostFader
	PostPan
)

// Track volume range, linear gain. Unity is 1.0.
const (
	MinTrackVolume float32 = 0.0
	MaxTrackVolume float32 = 1.5
)

// Send level range in linear gain.
const (
	MinSendLevel float32 = 0.0
	MaxSendLevel float32 = 1.0
)

type (
	// Track is a mixer channel: it owns an ordered list of clips, an insert
	// chain, and zero or more sends, and routes into exactly one bus.
	Track struct {
		ID     TrackID
		Name   string  `yaml:",omitempty"`
		Color  uint32  `yaml:",omitempty"`
		Mute   bool    `yaml:",omitempty"`
		Solo   bool    `yaml:",omitempty"`
		Arm    bool    `yaml:",omitempty"`
		Volume float32 // linear gain, 0..1.5, unity 1.0
		Pan    float32 // -1 (left) .. 1 (right)
		Bus    int     // destination bus index
		Chain  Chain
		Sends  []Send `yaml:",omitempty"`
		Clips  []Clip `yaml:",omitempty"`
	}

	// Send taps the track's signal at Tap and feeds it to bus Bus at Level.
	// Sends have no identity of their own; they are addressed as (track,
	// index).
	Send struct {
		Bus   int
		Level float32 // linear gain, 0..1
		Tap   TapPoint
		Mute  bool `yaml:",omitempty"`
	}
)

func (t *Track) Copy() Track {
	sends := make([]Send, len(t.Sends))
	copy(sends, t.Sends)
	clips := make([]Clip, len(t.Clips))
	for i := range t.Clips {
		clips[i] = t.Clips[i].Copy()
	}
	ret := *t
	ret.Chain = t.Chain.Copy()
	ret.Sends = sends
	ret.Clips = clips
	return ret
}

// ClipIndex returns the index of the clip with the given id, or -1.
func (t *Track) ClipIndex(id ClipID) int {
	for i := range t.Clips {
		if t.Clips[i].ID == id {
			return i
		}
	}
	return -1
}
