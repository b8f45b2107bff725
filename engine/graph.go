package engine

import (
	"fmt"

	reelforge "github.com/Bojan20/reelforge-standalone-sub003"
)

// AddTrack creates a track routed to the master bus and returns its handle.
func (e *Engine) AddTrack(name string) reelforge.TrackID {
	e.saveUndo()
	id := reelforge.TrackID(e.d.Project.AllocateID())
	e.d.Project.Tracks = append(e.d.Project.Tracks, reelforge.Track{
		ID:     id,
		Name:   name,
		Volume: 1.0,
		Bus:    reelforge.MasterBus,
	})
	e.completeChange("AddTrack")
	return id
}

// DeleteTrack removes the track, detaches it from every VCA and group, and
// deletes any crossfade referencing its clips.
func (e *Engine) DeleteTrack(id reelforge.TrackID) error {
	idx := -1
	for i := range e.d.Project.Tracks {
		if e.d.Project.Tracks[i].ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		return fmt.Errorf("delete track %d: %w", id, reelforge.ErrNotFound)
	}
	e.saveUndo()
	for _, c := range e.d.Project.Tracks[idx].Clips {
		e.dropCrossfadesOf(c.ID)
	}
	e.d.Project.Tracks = append(e.d.Project.Tracks[:idx], e.d.Project.Tracks[idx+1:]...)
	for i := range e.d.Project.VCAs {
		e.d.Project.VCAs[i].Tracks = removeTrackID(e.d.Project.VCAs[i].Tracks, id)
	}
	for i := range e.d.Project.Groups {
		e.d.Project.Groups[i].Tracks = removeTrackID(e.d.Project.Groups[i].Tracks, id)
	}
	e.completeChange("DeleteTrack")
	return nil
}

// SetTrackVolume sets the track fader. The value clamps to the documented
// 0..1.5 range because it originates from continuous UI gestures. Tracks in
// an absolute-link group drag their group members along; relative groups
// propagate the delta.
func (e *Engine) SetTrackVolume(id reelforge.TrackID, volume float32) error {
	t, ok := e.d.Project.FindTrack(id)
	if !ok {
		return fmt.Errorf("set track volume %d: %w", id, reelforge.ErrNotFound)
	}
	volume = reelforge.Clamp(volume, reelforge.MinTrackVolume, reelforge.MaxTrackVolume)
	e.saveUndo()
	delta := volume - t.Volume
	t.Volume = volume
	for i := range e.d.Project.Groups {
		g := &e.d.Project.Groups[i]
		if !g.Contains(id) {
			continue
		}
		for _, member := range g.Tracks {
			if member == id {
				continue
			}
			mt, ok := e.d.Project.FindTrack(member)
			if !ok {
				continue
			}
			switch g.Mode {
			case reelforge.LinkAbsolute:
				mt.Volume = volume
			default:
				mt.Volume = reelforge.Clamp(mt.Volume+delta, reelforge.MinTrackVolume, reelforge.MaxTrackVolume)
			}
		}
	}
	e.completeChange("SetTrackVolume")
	return nil
}

// SetTrackPan sets the track pan, clamped to -1..1.
func (e *Engine) SetTrackPan(id reelforge.TrackID, pan float32) error {
	t, ok := e.d.Project.FindTrack(id)
	if !ok {
		return fmt.Errorf("set track pan %d: %w", id, reelforge.ErrNotFound)
	}
	e.saveUndo()
	t.Pan = reelforge.Clamp(pan, -1, 1)
	e.completeChange("SetTrackPan")
	return nil
}

// SetTrackMute sets the track mute flag.
func (e *Engine) SetTrackMute(id reelforge.TrackID, mute bool) error {
	return e.setTrackFlag(id, "SetTrackMute", func(t *reelforge.Track) { t.Mute = mute })
}

// SetTrackSolo sets the track solo flag. Audibility of the other tracks is
// resolved at mix time, never stored.
func (e *Engine) SetTrackSolo(id reelforge.TrackID, solo bool) error {
	return e.setTrackFlag(id, "SetTrackSolo", func(t *reelforge.Track) { t.Solo = solo })
}

// SetTrackArm sets the record-arm flag.
func (e *Engine) SetTrackArm(id reelforge.TrackID, arm bool) error {
	return e.setTrackFlag(id, "SetTrackArm", func(t *reelforge.Track) { t.Arm = arm })
}

// SetTrackName renames the track.
func (e *Engine) SetTrackName(id reelforge.TrackID, name string) error {
	return e.setTrackFlag(id, "SetTrackName", func(t *reelforge.Track) { t.Name = name })
}

// SetTrackColor sets the track's display color.
func (e *Engine) SetTrackColor(id reelforge.TrackID, color uint32) error {
	return e.setTrackFlag(id, "SetTrackColor", func(t *reelforge.Track) { t.Color = color })
}

// SetTrackBus reroutes the track into another bus.
func (e *Engine) SetTrackBus(id reelforge.TrackID, bus int) error {
	if bus < 0 || bus >= len(e.d.Project.Buses) {
		return fmt.Errorf("set track bus: bus %d: %w", bus, reelforge.ErrNotFound)
	}
	return e.setTrackFlag(id, "SetTrackBus", func(t *reelforge.Track) { t.Bus = bus })
}

func (e *Engine) setTrackFlag(id reelforge.TrackID, kind string, mutate func(*reelforge.Track)) error {
	t, ok := e.d.Project.FindTrack(id)
	if !ok {
		return fmt.Errorf("%s %d: %w", kind, id, reelforge.ErrNotFound)
	}
	e.saveUndo()
	mutate(t)
	e.completeChange(kind)
	return nil
}

// SetMasterVolume sets the master fader, clamped to 0..1.5.
func (e *Engine) SetMasterVolume(volume float32) {
	e.saveUndo()
	e.d.Project.MasterVolume = reelforge.Clamp(volume, reelforge.MinTrackVolume, reelforge.MaxTrackVolume)
	e.completeChange("SetMasterVolume")
}

// SetBusVolumeDb sets the bus trim, clamped to -96..+12 dB.
func (e *Engine) SetBusVolumeDb(bus int, db reelforge.Decibel) error {
	if bus < 0 || bus >= len(e.d.Project.Buses) {
		return fmt.Errorf("set bus volume %d: %w", bus, reelforge.ErrNotFound)
	}
	e.saveUndo()
	e.d.Project.Buses[bus].VolumeDb = reelforge.Clamp(db, reelforge.MinBusVolumeDb, reelforge.MaxBusVolumeDb)
	e.completeChange("SetBusVolume")
	return nil
}

// SetBusPan sets the bus pan, clamped to -1..1.
func (e *Engine) SetBusPan(bus int, pan float32) error {
	if bus < 0 || bus >= len(e.d.Project.Buses) {
		return fmt.Errorf("set bus pan %d: %w", bus, reelforge.ErrNotFound)
	}
	e.saveUndo()
	e.d.Project.Buses[bus].Pan = reelforge.Clamp(pan, -1, 1)
	e.completeChange("SetBusPan")
	return nil
}

// SetBusMute sets the bus mute flag.
func (e *Engine) SetBusMute(bus int, mute bool) error {
	if bus < 0 || bus >= len(e.d.Project.Buses) {
		return fmt.Errorf("set bus mute %d: %w", bus, reelforge.ErrNotFound)
	}
	e.saveUndo()
	e.d.Project.Buses[bus].Mute = mute
	e.completeChange("SetBusMute")
	return nil
}

// SetBusSolo sets the bus solo flag. Like track solo, audibility of the
// other buses is resolved at mix time.
func (e *Engine) SetBusSolo(bus int, solo bool) error {
	if bus < 0 || bus >= len(e.d.Project.Buses) {
		return fmt.Errorf("set bus solo %d: %w", bus, reelforge.ErrNotFound)
	}
	e.saveUndo()
	e.d.Project.Buses[bus].Solo = solo
	e.completeChange("SetBusSolo")
	return nil
}

// AddSend creates a send on the track and returns its index. The level
// clamps to 0..1.
func (e *Engine) AddSend(id reelforge.TrackID, bus int, level float32, tap reelforge.TapPoint) (int, error) {
	t, ok := e.d.Project.FindTrack(id)
	if !ok {
		return 0, fmt.Errorf("add send %d: %w", id, reelforge.ErrNotFound)
	}
	if bus < 0 || bus >= len(e.d.Project.Buses) {
		return 0, fmt.Errorf("add send: bus %d: %w", bus, reelforge.ErrNotFound)
	}
	e.saveUndo()
	t.Sends = append(t.Sends, reelforge.Send{
		Bus:   bus,
		Level: reelforge.Clamp(level, reelforge.MinSendLevel, reelforge.MaxSendLevel),
		Tap:   tap,
	})
	e.completeChange("AddSend")
	return len(t.Sends) - 1, nil
}

// RemoveSend deletes the send at the given index; later sends shift down.
func (e *Engine) RemoveSend(id reelforge.TrackID, index int) error {
	t, ok := e.d.Project.FindTrack(id)
	if !ok {
		return fmt.Errorf("remove send %d: %w", id, reelforge.ErrNotFound)
	}
	if index < 0 || index >= len(t.Sends) {
		return fmt.Errorf("remove send %d[%d]: %w", id, index, reelforge.ErrNotFound)
	}
	e.saveUndo()
	t.Sends = append(t.Sends[:index], t.Sends[index+1:]...)
	e.completeChange("RemoveSend")
	return nil
}

// SetSendLevel sets the send level, clamped to 0..1.
func (e *Engine) SetSendLevel(id reelforge.TrackID, index int, level float32) error {
	return e.setSend(id, index, "SetSendLevel", func(s *reelforge.Send) {
		s.Level = reelforge.Clamp(level, reelforge.MinSendLevel, reelforge.MaxSendLevel)
	})
}

// SetSendTap moves the send's tap point in the track signal flow.
func (e *Engine) SetSendTap(id reelforge.TrackID, index int, tap reelforge.TapPoint) error {
	return e.setSend(id, index, "SetSendTap", func(s *reelforge.Send) { s.Tap = tap })
}

// SetSendMute sets the send mute flag.
func (e *Engine) SetSendMute(id reelforge.TrackID, index int, mute bool) error {
	return e.setSend(id, index, "SetSendMute", func(s *reelforge.Send) { s.Mute = mute })
}

func (e *Engine) setSend(id reelforge.TrackID, index int, kind string, mutate func(*reelforge.Send)) error {
	t, ok := e.d.Project.FindTrack(id)
	if !ok {
		return fmt.Errorf("%s %d: %w", kind, id, reelforge.ErrNotFound)
	}
	if index < 0 || index >= len(t.Sends) {
		return fmt.Errorf("%s %d[%d]: %w", kind, id, index, reelforge.ErrNotFound)
	}
	e.saveUndo()
	mutate(&t.Sends[index])
	e.completeChange(kind)
	return nil
}

// CreateVCA creates a level-control node and returns its handle.
func (e *Engine) CreateVCA(name string) reelforge.VCAID {
	e.saveUndo()
	id := reelforge.VCAID(e.d.Project.AllocateID())
	e.d.Project.VCAs = append(e.d.Project.VCAs, reelforge.VCA{ID: id, Name: name, Level: 1.0})
	e.completeChange("CreateVCA")
	return id
}

// DeleteVCA removes the VCA; assigned tracks keep their own faders.
func (e *Engine) DeleteVCA(id reelforge.VCAID) error {
	for i := range e.d.Project.VCAs {
		if e.d.Project.VCAs[i].ID == id {
			e.saveUndo()
			e.d.Project.VCAs = append(e.d.Project.VCAs[:i], e.d.Project.VCAs[i+1:]...)
			e.completeChange("DeleteVCA")
			return nil
		}
	}
	return fmt.Errorf("delete vca %d: %w", id, reelforge.ErrNotFound)
}

// SetVCALevel sets the VCA multiplier, clamped like a fader.
func (e *Engine) SetVCALevel(id reelforge.VCAID, level float32) error {
	v, ok := e.d.Project.FindVCA(id)
	if !ok {
		return fmt.Errorf("set vca level %d: %w", id, reelforge.ErrNotFound)
	}
	e.saveUndo()
	v.Level = reelforge.Clamp(level, reelforge.MinTrackVolume, reelforge.MaxTrackVolume)
	e.completeChange("SetVCALevel")
	return nil
}

// SetVCAMute sets the VCA mute flag, silencing every assigned track.
func (e *Engine) SetVCAMute(id reelforge.VCAID, mute bool) error {
	v, ok := e.d.Project.FindVCA(id)
	if !ok {
		return fmt.Errorf("set vca mute %d: %w", id, reelforge.ErrNotFound)
	}
	e.saveUndo()
	v.Mute = mute
	e.completeChange("SetVCAMute")
	return nil
}

// AssignVCA adds a track to the VCA. Assigning twice is a no-op, not an
// error.
func (e *Engine) AssignVCA(id reelforge.VCAID, track reelforge.TrackID) error {
	v, ok := e.d.Project.FindVCA(id)
	if !ok {
		return fmt.Errorf("assign vca %d: %w", id, reelforge.ErrNotFound)
	}
	if _, ok := e.d.Project.FindTrack(track); !ok {
		return fmt.Errorf("assign vca: track %d: %w", track, reelforge.ErrNotFound)
	}
	if v.Contains(track) {
		return nil
	}
	e.saveUndo()
	v.Tracks = append(v.Tracks, track)
	e.completeChange("AssignVCA")
	return nil
}

// UnassignVCA removes a track from the VCA.
func (e *Engine) UnassignVCA(id reelforge.VCAID, track reelforge.TrackID) error {
	v, ok := e.d.Project.FindVCA(id)
	if !ok {
		return fmt.Errorf("unassign vca %d: %w", id, reelforge.ErrNotFound)
	}
	if !v.Contains(track) {
		return fmt.Errorf("unassign vca: track %d: %w", track, reelforge.ErrNotFound)
	}
	e.saveUndo()
	v.Tracks = removeTrackID(v.Tracks, track)
	e.completeChange("UnassignVCA")
	return nil
}

// CreateGroup creates a fader-link group and returns its handle.
func (e *Engine) CreateGroup(name string, mode reelforge.LinkMode) reelforge.GroupID {
	e.saveUndo()
	id := reelforge.GroupID(e.d.Project.AllocateID())
	e.d.Project.Groups = append(e.d.Project.Groups, reelforge.Group{ID: id, Name: name, Mode: mode})
	e.completeChange("CreateGroup")
	return id
}

// DeleteGroup removes the group; member faders stay where they are.
func (e *Engine) DeleteGroup(id reelforge.GroupID) error {
	for i := range e.d.Project.Groups {
		if e.d.Project.Groups[i].ID == id {
			e.saveUndo()
			e.d.Project.Groups = append(e.d.Project.Groups[:i], e.d.Project.Groups[i+1:]...)
			e.completeChange("DeleteGroup")
			return nil
		}
	}
	return fmt.Errorf("delete group %d: %w", id, reelforge.ErrNotFound)
}

// AddToGroup adds a track to the group. Adding twice is a no-op.
func (e *Engine) AddToGroup(id reelforge.GroupID, track reelforge.TrackID) error {
	g, ok := e.d.Project.FindGroup(id)
	if !ok {
		return fmt.Errorf("add to group %d: %w", id, reelforge.ErrNotFound)
	}
	if _, ok := e.d.Project.FindTrack(track); !ok {
		return fmt.Errorf("add to group: track %d: %w", track, reelforge.ErrNotFound)
	}
	if g.Contains(track) {
		return nil
	}
	e.saveUndo()
	g.Tracks = append(g.Tracks, track)
	e.completeChange("AddToGroup")
	return nil
}

// RemoveFromGroup removes a track from the group.
func (e *Engine) RemoveFromGroup(id reelforge.GroupID, track reelforge.TrackID) error {
	g, ok := e.d.Project.FindGroup(id)
	if !ok {
		return fmt.Errorf("remove from group %d: %w", id, reelforge.ErrNotFound)
	}
	if !g.Contains(track) {
		return fmt.Errorf("remove from group: track %d: %w", track, reelforge.ErrNotFound)
	}
	e.saveUndo()
	g.Tracks = removeTrackID(g.Tracks, track)
	e.completeChange("RemoveFromGroup")
	return nil
}

// AddMarker places a named marker on the timeline and returns its handle.
func (e *Engine) AddMarker(name string, time float64, color uint32) reelforge.MarkerID {
	e.saveUndo()
	id := reelforge.MarkerID(e.d.Project.AllocateID())
	e.d.Project.Markers = append(e.d.Project.Markers, reelforge.Marker{ID: id, Name: name, Time: time, Color: color})
	e.completeChange("AddMarker")
	return id
}

// DeleteMarker removes a marker.
func (e *Engine) DeleteMarker(id reelforge.MarkerID) error {
	for i := range e.d.Project.Markers {
		if e.d.Project.Markers[i].ID == id {
			e.saveUndo()
			e.d.Project.Markers = append(e.d.Project.Markers[:i], e.d.Project.Markers[i+1:]...)
			e.completeChange("DeleteMarker")
			return nil
		}
	}
	return fmt.Errorf("delete marker %d: %w", id, reelforge.ErrNotFound)
}

// MoveMarker changes a marker's time.
func (e *Engine) MoveMarker(id reelforge.MarkerID, time float64) error {
	m, ok := e.d.Project.FindMarker(id)
	if !ok {
		return fmt.Errorf("move marker %d: %w", id, reelforge.ErrNotFound)
	}
	e.saveUndo()
	m.Time = time
	e.completeChange("MoveMarker")
	return nil
}

func removeTrackID(ids []reelforge.TrackID, id reelforge.TrackID) []reelforge.TrackID {
	for i, v := range ids {
		if v == id {
			return append(ids[:i], ids[i+1:]...)
		}
	}
	return ids
}
