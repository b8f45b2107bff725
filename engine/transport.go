package engine

import (
	"fmt"

	reelforge "github.com/Bojan20/reelforge-standalone-sub003"
)

// Play starts or resumes playback from the current position. Transport run
// state is live state, not an edit: it is not undoable and does not dirty
// the project.
func (e *Engine) Play() {
	if e.d.Project.Transport.State == reelforge.Playing {
		return
	}
	e.d.Project.Transport.State = reelforge.Playing
	TrySend(e.broker.ToPlayer, any(playMsg{}))
}

// Stop halts playback and returns the position to zero.
func (e *Engine) Stop() {
	e.d.Project.Transport.State = reelforge.Stopped
	e.d.Project.Transport.Recording = false
	e.d.Project.Transport.PosSamples = 0
	TrySend(e.broker.ToPlayer, any(stopMsg{}))
}

// Pause halts playback, keeping the position. Pausing drops the record
// flag even when the transport is already paused; capture does not
// survive a pause.
func (e *Engine) Pause() {
	if e.d.Project.Transport.State == reelforge.Stopped {
		return
	}
	if e.d.Project.Transport.State == reelforge.Playing {
		if s := e.transportSnap.Load(); s != nil {
			e.d.Project.Transport.PosSamples = s.PosSamples
		}
	}
	e.d.Project.Transport.State = reelforge.Paused
	e.d.Project.Transport.Recording = false
	TrySend(e.broker.ToPlayer, any(pauseMsg{}))
}

// ToggleRecord flips the record flag. The flag is only valid while the
// transport is rolling or paused; toggling while stopped is rejected.
// Capture itself only rolls while playing.
func (e *Engine) ToggleRecord() error {
	if e.d.Project.Transport.State == reelforge.Stopped {
		return fmt.Errorf("toggle record while stopped: %w", reelforge.ErrInvalidState)
	}
	e.d.Project.Transport.Recording = !e.d.Project.Transport.Recording
	TrySend(e.broker.ToPlayer, any(recordMsg{on: e.d.Project.Transport.Recording}))
	return nil
}

// SetPosition seeks to an absolute sample position. Negative positions are
// rejected. Seeking is live state, like play/stop.
func (e *Engine) SetPosition(samples int64) error {
	if samples < 0 {
		return fmt.Errorf("set position %d: %w", samples, reelforge.ErrInvalidParameter)
	}
	e.d.Project.Transport.PosSamples = samples
	TrySend(e.broker.ToPlayer, any(seekMsg{pos: samples}))
	return nil
}

// SetPositionSeconds seeks to a time in seconds, truncated toward zero to a
// sample boundary.
func (e *Engine) SetPositionSeconds(seconds float64) error {
	return e.SetPosition(reelforge.SecondsToSamples(seconds, e.d.Project.SampleRate))
}

// SetTempo sets the project tempo, clamped to 20..999 BPM. Tempo is part of
// the project document, so unlike the run state it is undoable.
func (e *Engine) SetTempo(bpm float64) {
	e.saveUndo()
	e.d.Project.Transport.BPM = reelforge.Clamp(bpm, reelforge.MinBPM, reelforge.MaxBPM)
	e.completeChange("SetTempo")
}

// SetTimeSignature sets the meter. Zero or negative components are rejected.
func (e *Engine) SetTimeSignature(num, den int) error {
	if num <= 0 || den <= 0 {
		return fmt.Errorf("set time signature %d/%d: %w", num, den, reelforge.ErrInvalidParameter)
	}
	e.saveUndo()
	e.d.Project.Transport.TimeSigNum = num
	e.d.Project.Transport.TimeSigDen = den
	e.completeChange("SetTimeSignature")
	return nil
}

// SetLoopRegion sets the loop boundaries in seconds. An inverted or empty
// region is rejected. Undoable, like tempo.
func (e *Engine) SetLoopRegion(start, end float64) error {
	if start < 0 || end <= start {
		return fmt.Errorf("set loop region %g..%g: %w", start, end, reelforge.ErrInvalidParameter)
	}
	e.saveUndo()
	e.d.Project.Transport.Loop.Start = start
	e.d.Project.Transport.Loop.End = end
	e.completeChange("SetLoopRegion")
	return nil
}

// ToggleLoop flips loop playback on or off.
func (e *Engine) ToggleLoop() {
	e.saveUndo()
	e.d.Project.Transport.Loop.Enabled = !e.d.Project.Transport.Loop.Enabled
	e.completeChange("ToggleLoop")
}
