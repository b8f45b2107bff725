package engine

import (
	"fmt"
	"math"

	reelforge "github.com/Bojan20/reelforge-standalone-sub003"
)

// AddClip places an audio file on the timeline of a track and returns the
// clip's handle. The file is decoded immediately so the audio path never
// touches the disk.
func (e *Engine) AddClip(track reelforge.TrackID, path string, start int64) (reelforge.ClipID, error) {
	t, ok := e.d.Project.FindTrack(track)
	if !ok {
		return 0, fmt.Errorf("add clip: track %d: %w", track, reelforge.ErrNotFound)
	}
	if e.cfg.Codec == nil {
		return 0, fmt.Errorf("add clip: no codec configured: %w", reelforge.ErrInvalidState)
	}
	pcm, rate, err := e.cfg.Codec.Decode(path)
	if err != nil {
		return 0, fmt.Errorf("add clip: decode %s: %w", path, err)
	}
	if rate != e.d.Project.SampleRate {
		e.log.WithField("path", path).WithField("rate", rate).
			Warn("clip sample rate differs from project, playing unresampled")
	}
	e.saveUndo()
	id := reelforge.ClipID(e.d.Project.AllocateID())
	t.Clips = append(t.Clips, reelforge.Clip{
		ID:           id,
		Name:         path,
		Source:       path,
		Start:        start,
		Duration:     int64(len(pcm)),
		SourceLength: int64(len(pcm)),
		PCM:          pcm,
	})
	e.completeChange("AddClip")
	return id, nil
}

// DeleteClip removes the clip and any crossfade referencing it.
func (e *Engine) DeleteClip(id reelforge.ClipID) error {
	t, idx, ok := e.findClip(id)
	if !ok {
		return fmt.Errorf("delete clip %d: %w", id, reelforge.ErrNotFound)
	}
	e.saveUndo()
	e.dropCrossfadesOf(id)
	t.Clips = append(t.Clips[:idx], t.Clips[idx+1:]...)
	e.completeChange("DeleteClip")
	return nil
}

// MoveClip changes the timeline start of the clip. Negative starts are
// rejected; the source window is untouched.
func (e *Engine) MoveClip(id reelforge.ClipID, start int64) error {
	_, c, ok := e.d.Project.FindClip(id)
	if !ok {
		return fmt.Errorf("move clip %d: %w", id, reelforge.ErrNotFound)
	}
	if start < 0 {
		return fmt.Errorf("move clip %d to %d: %w", id, start, reelforge.ErrInvalidParameter)
	}
	e.saveUndo()
	c.Start = start
	e.completeChange("MoveClip")
	return nil
}

// MoveClipToTrack moves the clip to a different track, keeping its timeline
// position. Crossfades survive only if the partner clip is on the same
// track, so any involving this clip are dropped.
func (e *Engine) MoveClipToTrack(id reelforge.ClipID, track reelforge.TrackID) error {
	from, idx, ok := e.findClip(id)
	if !ok {
		return fmt.Errorf("move clip %d: %w", id, reelforge.ErrNotFound)
	}
	to, ok := e.d.Project.FindTrack(track)
	if !ok {
		return fmt.Errorf("move clip: track %d: %w", track, reelforge.ErrNotFound)
	}
	if from == to {
		return nil
	}
	e.saveUndo()
	e.dropCrossfadesOf(id)
	clip := from.Clips[idx]
	from.Clips = append(from.Clips[:idx], from.Clips[idx+1:]...)
	to.Clips = append(to.Clips, clip)
	e.completeChange("MoveClipToTrack")
	return nil
}

// ResizeClip trims the clip window. Start and duration are timeline samples;
// the left edge moves the source offset with it so the audio under the
// playhead stays put. Resizing past the source material is rejected.
func (e *Engine) ResizeClip(id reelforge.ClipID, start, duration int64) error {
	_, c, ok := e.d.Project.FindClip(id)
	if !ok {
		return fmt.Errorf("resize clip %d: %w", id, reelforge.ErrNotFound)
	}
	if start < 0 || duration <= 0 {
		return fmt.Errorf("resize clip %d: %w", id, reelforge.ErrInvalidParameter)
	}
	offset := c.SourceOffset + (start - c.Start)
	if offset < 0 || offset+duration > c.SourceLength {
		return fmt.Errorf("resize clip %d past source: %w", id, reelforge.ErrInvalidParameter)
	}
	e.saveUndo()
	c.Start = start
	c.Duration = duration
	c.SourceOffset = offset
	if c.FadeIn.Duration+c.FadeOut.Duration > duration {
		c.FadeIn.Duration = min64(c.FadeIn.Duration, duration)
		c.FadeOut.Duration = duration - c.FadeIn.Duration
	}
	e.completeChange("ResizeClip")
	return nil
}

// SplitClip cuts the clip at a timeline position strictly inside it and
// returns the handle of the right half. Fades stay with the edge they
// belong to; crossfades referencing the original clip are re-pointed to
// whichever half still touches them.
func (e *Engine) SplitClip(id reelforge.ClipID, at int64) (reelforge.ClipID, error) {
	t, idx, ok := e.findClip(id)
	if !ok {
		return 0, fmt.Errorf("split clip %d: %w", id, reelforge.ErrNotFound)
	}
	c := &t.Clips[idx]
	if at <= c.Start || at >= c.End() {
		return 0, fmt.Errorf("split clip %d at %d: %w", id, at, reelforge.ErrInvalidParameter)
	}
	e.saveUndo()
	left := at - c.Start
	right := c.Duration - left

	newID := reelforge.ClipID(e.d.Project.AllocateID())
	rightClip := c.Copy()
	rightClip.ID = newID
	rightClip.Start = at
	rightClip.Duration = right
	rightClip.SourceOffset = c.SourceOffset + left
	rightClip.FadeIn = reelforge.Fade{}
	rightClip.FadeOut = c.FadeOut
	rightClip.FadeOut.Duration = min64(c.FadeOut.Duration, right)

	c.Duration = left
	c.FadeOut = reelforge.Fade{}
	c.FadeIn.Duration = min64(c.FadeIn.Duration, left)

	for i := range e.d.Project.Crossfades {
		x := &e.d.Project.Crossfades[i]
		if x.B == id {
			x.B = newID
		}
	}

	t.Clips = append(t.Clips, reelforge.Clip{})
	copy(t.Clips[idx+2:], t.Clips[idx+1:])
	t.Clips[idx+1] = rightClip
	e.completeChange("SplitClip")
	return newID, nil
}

// DuplicateClip copies the clip immediately after itself on the timeline
// and returns the copy's handle. The copy shares the decoded audio.
func (e *Engine) DuplicateClip(id reelforge.ClipID) (reelforge.ClipID, error) {
	t, idx, ok := e.findClip(id)
	if !ok {
		return 0, fmt.Errorf("duplicate clip %d: %w", id, reelforge.ErrNotFound)
	}
	e.saveUndo()
	dup := t.Clips[idx].Copy()
	dup.ID = reelforge.ClipID(e.d.Project.AllocateID())
	dup.Start = t.Clips[idx].End()
	t.Clips = append(t.Clips, dup)
	e.completeChange("DuplicateClip")
	return dup.ID, nil
}

// SetClipGain sets the clip gain, clamped to -60..+12 dB.
func (e *Engine) SetClipGain(id reelforge.ClipID, db reelforge.Decibel) error {
	_, c, ok := e.d.Project.FindClip(id)
	if !ok {
		return fmt.Errorf("set clip gain %d: %w", id, reelforge.ErrNotFound)
	}
	e.saveUndo()
	c.GainDb = reelforge.Clamp(db, reelforge.MinusInfDb, 12)
	e.completeChange("SetClipGain")
	return nil
}

// SetClipFades sets the fade-in and fade-out lengths in samples. Fades that
// together exceed the clip are rejected.
func (e *Engine) SetClipFades(id reelforge.ClipID, fadeIn, fadeOut int64, curve reelforge.FadeCurve) error {
	_, c, ok := e.d.Project.FindClip(id)
	if !ok {
		return fmt.Errorf("set clip fades %d: %w", id, reelforge.ErrNotFound)
	}
	if fadeIn < 0 || fadeOut < 0 || fadeIn+fadeOut > c.Duration {
		return fmt.Errorf("set clip fades %d: %w", id, reelforge.ErrInvalidParameter)
	}
	e.saveUndo()
	c.FadeIn = reelforge.Fade{Duration: fadeIn, Curve: curve}
	c.FadeOut = reelforge.Fade{Duration: fadeOut, Curve: curve}
	e.completeChange("SetClipFades")
	return nil
}

// SetClipName renames the clip.
func (e *Engine) SetClipName(id reelforge.ClipID, name string) error {
	_, c, ok := e.d.Project.FindClip(id)
	if !ok {
		return fmt.Errorf("set clip name %d: %w", id, reelforge.ErrNotFound)
	}
	e.saveUndo()
	c.Name = name
	e.completeChange("SetClipName")
	return nil
}

// NormalizeClip rewrites the clip audio so its peak hits the target level.
// This is a destructive edit: the decoded buffer is replaced, so other
// clips sharing the same source keep the old audio.
func (e *Engine) NormalizeClip(id reelforge.ClipID, targetDb reelforge.Decibel) error {
	_, c, ok := e.d.Project.FindClip(id)
	if !ok {
		return fmt.Errorf("normalize clip %d: %w", id, reelforge.ErrNotFound)
	}
	if len(c.PCM) == 0 {
		return fmt.Errorf("normalize clip %d: no audio loaded: %w", id, reelforge.ErrInvalidState)
	}
	var peak float32
	for _, s := range c.PCM {
		if a := abs32(s[0]); a > peak {
			peak = a
		}
		if a := abs32(s[1]); a > peak {
			peak = a
		}
	}
	if peak == 0 {
		return nil
	}
	e.saveUndo()
	g := reelforge.DbToLinear(targetDb) / peak
	out := make(reelforge.AudioBuffer, len(c.PCM))
	for i, s := range c.PCM {
		out[i] = [2]float32{s[0] * g, s[1] * g}
	}
	c.PCM = out
	e.completeChange("NormalizeClip")
	return nil
}

// ReverseClip rewrites the clip audio back to front. Destructive, same
// buffer-replacement rule as NormalizeClip.
func (e *Engine) ReverseClip(id reelforge.ClipID) error {
	_, c, ok := e.d.Project.FindClip(id)
	if !ok {
		return fmt.Errorf("reverse clip %d: %w", id, reelforge.ErrNotFound)
	}
	if len(c.PCM) == 0 {
		return fmt.Errorf("reverse clip %d: no audio loaded: %w", id, reelforge.ErrInvalidState)
	}
	e.saveUndo()
	out := make(reelforge.AudioBuffer, len(c.PCM))
	for i, s := range c.PCM {
		out[len(out)-1-i] = s
	}
	c.PCM = out
	// mirror the source window so a trimmed clip keeps playing the same
	// material, now back to front
	c.SourceOffset = c.SourceLength - (c.SourceOffset + c.Duration)
	c.Reversed = !c.Reversed
	e.completeChange("ReverseClip")
	return nil
}

// CreateCrossfade builds a crossfade across the overlap of two clips on the
// same track. The clips must actually overlap; the duration clamps to the
// overlap length.
func (e *Engine) CreateCrossfade(a, b reelforge.ClipID, duration int64, curve reelforge.FadeCurve) (reelforge.CrossfadeID, error) {
	ta, ia, ok := e.findClip(a)
	if !ok {
		return 0, fmt.Errorf("crossfade: clip %d: %w", a, reelforge.ErrNotFound)
	}
	tb, ib, ok := e.findClip(b)
	if !ok {
		return 0, fmt.Errorf("crossfade: clip %d: %w", b, reelforge.ErrNotFound)
	}
	if ta != tb {
		return 0, fmt.Errorf("crossfade: clips on different tracks: %w", reelforge.ErrInvalidState)
	}
	ca, cb := &ta.Clips[ia], &tb.Clips[ib]
	if cb.Start < ca.Start {
		ca, cb = cb, ca
		a, b = b, a
	}
	overlap := ca.End() - cb.Start
	if overlap <= 0 {
		return 0, fmt.Errorf("crossfade: clips %d and %d do not overlap: %w", a, b, reelforge.ErrInvalidState)
	}
	if duration <= 0 || duration > overlap {
		duration = overlap
	}
	e.saveUndo()
	id := reelforge.CrossfadeID(e.d.Project.AllocateID())
	e.d.Project.Crossfades = append(e.d.Project.Crossfades, reelforge.Crossfade{
		ID: id, A: a, B: b, Duration: duration, Curve: curve,
	})
	e.completeChange("CreateCrossfade")
	return id, nil
}

// DeleteCrossfade removes the crossfade; both clips play at full level over
// the former overlap again.
func (e *Engine) DeleteCrossfade(id reelforge.CrossfadeID) error {
	for i := range e.d.Project.Crossfades {
		if e.d.Project.Crossfades[i].ID == id {
			e.saveUndo()
			e.d.Project.Crossfades = append(e.d.Project.Crossfades[:i], e.d.Project.Crossfades[i+1:]...)
			e.completeChange("DeleteCrossfade")
			return nil
		}
	}
	return fmt.Errorf("delete crossfade %d: %w", id, reelforge.ErrNotFound)
}

// dropCrossfadesOf removes every crossfade referencing the clip. Caller
// already holds an undo snapshot.
func (e *Engine) dropCrossfadesOf(id reelforge.ClipID) {
	xs := e.d.Project.Crossfades[:0]
	for _, x := range e.d.Project.Crossfades {
		if x.A != id && x.B != id {
			xs = append(xs, x)
		}
	}
	e.d.Project.Crossfades = xs
}

func (e *Engine) findClip(id reelforge.ClipID) (*reelforge.Track, int, bool) {
	for i := range e.d.Project.Tracks {
		t := &e.d.Project.Tracks[i]
		if idx := t.ClipIndex(id); idx >= 0 {
			return t, idx, true
		}
	}
	return nil, 0, false
}

func abs32(x float32) float32 {
	return float32(math.Abs(float64(x)))
}

func min64(a, b int64) int64 {
	if a < b {
		return a
	}
	return b
}
