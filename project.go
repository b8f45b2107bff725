package reelforge

import (
	"errors"
	"time"
)

type (
	// Project is the aggregate root of everything the engine edits: the
	// routing graph, clips, effect chains, markers and the transport. The
	// engine hands deep copies of it to the audio thread; the audio thread
	// never sees a half-edited project.
	Project struct {
		Name       string
		SampleRate int
		Created    time.Time `yaml:",omitempty"`
		Modified   time.Time `yaml:",omitempty"`

		MasterVolume float32 // linear gain, 0..1.5
		Transport    Transport

		Tracks     []Track     `yaml:",omitempty"`
		Buses      []Bus       `yaml:",omitempty"`
		BusChains  []Chain     `yaml:",omitempty"` // insert chain per bus, indexed like Buses
		VCAs       []VCA       `yaml:",omitempty"`
		Groups     []Group     `yaml:",omitempty"`
		Crossfades []Crossfade `yaml:",omitempty"`
		Markers    []Marker    `yaml:",omitempty"`

		// NextID is the next unallocated handle. Handles are never reused
		// within a project, so a stale handle reliably fails with not-found
		// instead of silently addressing a new entity.
		NextID int
	}
)

// NewProject creates an empty project with the fixed bus topology and
// default transport at the given sample rate.
func NewProject(name string, sampleRate int) Project {
	now := time.Now()
	buses := make([]Bus, NumBuses)
	buses[MasterBus].Name = "Master"
	names := [NumSubBus]string{"Drums", "Bass", "Music", "Vocals", "Aux"}
	for i := 0; i < NumSubBus; i++ {
		buses[1+i].Name = names[i]
	}
	buses[FXReturnA].Name = "FX A"
	buses[FXReturnB].Name = "FX B"
	return Project{
		Name:         name,
		SampleRate:   sampleRate,
		Created:      now,
		Modified:     now,
		MasterVolume: 1.0,
		Transport: Transport{
			BPM:        120,
			TimeSigNum: 4,
			TimeSigDen: 4,
		},
		Buses:     buses,
		BusChains: make([]Chain, NumBuses),
		NextID:    1,
	}
}

// Copy returns a deep copy of the project.
func (p *Project) Copy() Project {
	tracks := make([]Track, len(p.Tracks))
	for i := range p.Tracks {
		tracks[i] = p.Tracks[i].Copy()
	}
	buses := make([]Bus, len(p.Buses))
	copy(buses, p.Buses)
	busChains := make([]Chain, len(p.BusChains))
	for i := range p.BusChains {
		busChains[i] = p.BusChains[i].Copy()
	}
	vcas := make([]VCA, len(p.VCAs))
	for i := range p.VCAs {
		vcas[i] = p.VCAs[i].Copy()
	}
	groups := make([]Group, len(p.Groups))
	for i := range p.Groups {
		groups[i] = p.Groups[i].Copy()
	}
	crossfades := make([]Crossfade, len(p.Crossfades))
	copy(crossfades, p.Crossfades)
	markers := make([]Marker, len(p.Markers))
	copy(markers, p.Markers)
	ret := *p
	ret.Tracks = tracks
	ret.Buses = buses
	ret.BusChains = busChains
	ret.VCAs = vcas
	ret.Groups = groups
	ret.Crossfades = crossfades
	ret.Markers = markers
	return ret
}

// Validate checks the structural invariants of the project: the bus
// topology, track destinations, clip ranges and crossfade references.
func (p *Project) Validate() error {
	if p.SampleRate <= 0 {
		return errors.New("sample rate must be positive")
	}
	if len(p.Buses) != NumBuses {
		return errors.New("bus topology is fixed and cannot be resized")
	}
	if len(p.BusChains) != 0 && len(p.BusChains) != NumBuses {
		return errors.New("bus chains must match the bus topology")
	}
	for i := range p.Tracks {
		t := &p.Tracks[i]
		if t.Bus < 0 || t.Bus >= len(p.Buses) {
			return errors.New("track routed to a nonexistent bus")
		}
		for _, s := range t.Sends {
			if s.Bus < 0 || s.Bus >= len(p.Buses) {
				return errors.New("send targets a nonexistent bus")
			}
		}
		for j := range t.Clips {
			if err := t.Clips[j].Validate(); err != nil {
				return errors.New("clip invariant violated")
			}
		}
	}
	for _, x := range p.Crossfades {
		if _, _, ok := p.FindClip(x.A); !ok {
			return errors.New("crossfade references a deleted clip")
		}
		if _, _, ok := p.FindClip(x.B); !ok {
			return errors.New("crossfade references a deleted clip")
		}
	}
	return nil
}

// AllocateID hands out the next opaque handle.
func (p *Project) AllocateID() int {
	id := p.NextID
	p.NextID++
	return id
}

// FindTrack returns the track with the given id.
func (p *Project) FindTrack(id TrackID) (*Track, bool) {
	for i := range p.Tracks {
		if p.Tracks[i].ID == id {
			return &p.Tracks[i], true
		}
	}
	return nil, false
}

// FindClip returns the clip with the given id and its owning track.
func (p *Project) FindClip(id ClipID) (*Track, *Clip, bool) {
	for i := range p.Tracks {
		if j := p.Tracks[i].ClipIndex(id); j >= 0 {
			return &p.Tracks[i], &p.Tracks[i].Clips[j], true
		}
	}
	return nil, nil, false
}

// FindVCA returns the VCA with the given id.
func (p *Project) FindVCA(id VCAID) (*VCA, bool) {
	for i := range p.VCAs {
		if p.VCAs[i].ID == id {
			return &p.VCAs[i], true
		}
	}
	return nil, false
}

// FindGroup returns the Group with the given id.
func (p *Project) FindGroup(id GroupID) (*Group, bool) {
	for i := range p.Groups {
		if p.Groups[i].ID == id {
			return &p.Groups[i], true
		}
	}
	return nil, false
}

// FindMarker returns the marker with the given id.
func (p *Project) FindMarker(id MarkerID) (*Marker, bool) {
	for i := range p.Markers {
		if p.Markers[i].ID == id {
			return &p.Markers[i], true
		}
	}
	return nil, false
}

// FindCrossfade returns the crossfade with the given id.
func (p *Project) FindCrossfade(id CrossfadeID) (*Crossfade, bool) {
	for i := range p.Crossfades {
		if p.Crossfades[i].ID == id {
			return &p.Crossfades[i], true
		}
	}
	return nil, false
}

// Duration returns the end of the last clip in samples, the project's
// natural length.
func (p *Project) Duration() int64 {
	var end int64
	for i := range p.Tracks {
		for j := range p.Tracks[i].Clips {
			if e := p.Tracks[i].Clips[j].End(); e > end {
				end = e
			}
		}
	}
	return end
}

// AnySolo reports whether any track or bus is soloed. The audibility rule
// "any solo active silences everything not soloed" is evaluated lazily at mix
// time from this, never stored per track.
func (p *Project) AnySolo() bool {
	for i := range p.Tracks {
		if p.Tracks[i].Solo {
			return true
		}
	}
	return false
}

// EffectiveLevel computes the track's output level: its own fader times every
// assigned VCA's level, zeroed when the track or any of its VCAs is muted, or
// when another track is soloed and this one is not.
func (p *Project) EffectiveLevel(id TrackID) float32 {
	t, ok := p.FindTrack(id)
	if !ok {
		return 0
	}
	if t.Mute {
		return 0
	}
	if p.AnySolo() && !t.Solo {
		return 0
	}
	level := t.Volume
	for i := range p.VCAs {
		if !p.VCAs[i].Contains(id) {
			continue
		}
		if p.VCAs[i].Mute {
			return 0
		}
		level *= p.VCAs[i].Level
	}
	return level
}
