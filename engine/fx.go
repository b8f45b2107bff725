package engine

import (
	"fmt"

	reelforge "github.com/Bojan20/reelforge-standalone-sub003"
	"github.com/Bojan20/reelforge-standalone-sub003/dsp"
)

// ChainTarget addresses one of the three places a chain can live: a track
// insert, a clip insert, or a bus insert.
type ChainTarget struct {
	Track reelforge.TrackID
	Clip  reelforge.ClipID
	Bus   int
}

// TrackChain addresses a track's insert chain.
func TrackChain(id reelforge.TrackID) ChainTarget { return ChainTarget{Track: id, Bus: -1} }

// ClipChain addresses a clip's insert chain.
func ClipChain(id reelforge.ClipID) ChainTarget { return ChainTarget{Clip: id, Bus: -1} }

// BusChain addresses a bus insert chain.
func BusChain(bus int) ChainTarget { return ChainTarget{Bus: bus} }

func (e *Engine) chainOf(tgt ChainTarget) (*reelforge.Chain, error) {
	switch {
	case tgt.Clip != 0:
		_, c, ok := e.d.Project.FindClip(tgt.Clip)
		if !ok {
			return nil, fmt.Errorf("chain of clip %d: %w", tgt.Clip, reelforge.ErrNotFound)
		}
		return &c.Chain, nil
	case tgt.Track != 0:
		t, ok := e.d.Project.FindTrack(tgt.Track)
		if !ok {
			return nil, fmt.Errorf("chain of track %d: %w", tgt.Track, reelforge.ErrNotFound)
		}
		return &t.Chain, nil
	default:
		if tgt.Bus < 0 || tgt.Bus >= len(e.d.Project.BusChains) {
			return nil, fmt.Errorf("chain of bus %d: %w", tgt.Bus, reelforge.ErrNotFound)
		}
		return &e.d.Project.BusChains[tgt.Bus], nil
	}
}

// ChainLatency reports the cumulative processing delay of the chain in
// samples, for sample-accurate compensation by the host.
func (e *Engine) ChainLatency(tgt ChainTarget) (int, error) {
	ch, err := e.chainOf(tgt)
	if err != nil {
		return 0, err
	}
	return dsp.ChainLatency(ch), nil
}

// AddSlot appends a processor slot with its kind's default parameters and
// returns the slot index.
func (e *Engine) AddSlot(tgt ChainTarget, kind reelforge.ProcessorKind) (int, error) {
	ch, err := e.chainOf(tgt)
	if err != nil {
		return 0, err
	}
	slot, err := reelforge.DefaultSlot(kind)
	if err != nil {
		return 0, err
	}
	e.saveUndo()
	ch.Slots = append(ch.Slots, slot)
	e.completeChange("AddSlot")
	return len(ch.Slots) - 1, nil
}

// LoadSlot loads a processor with its kind's default parameters into the
// given slot index. The chain grows with empty pass-through slots as needed,
// so hosts can address slots sparsely; loading over an occupied slot is
// rejected.
func (e *Engine) LoadSlot(tgt ChainTarget, index int, kind reelforge.ProcessorKind) error {
	ch, err := e.chainOf(tgt)
	if err != nil {
		return err
	}
	if index < 0 {
		return fmt.Errorf("load slot %d: %w", index, reelforge.ErrInvalidParameter)
	}
	if index < len(ch.Slots) && ch.Slots[index].Kind != reelforge.ProcNone {
		return fmt.Errorf("load slot %d: occupied: %w", index, reelforge.ErrInvalidState)
	}
	slot, err := reelforge.DefaultSlot(kind)
	if err != nil {
		return fmt.Errorf("load slot %d: %w", index, err)
	}
	e.saveUndo()
	for len(ch.Slots) <= index {
		ch.Slots = append(ch.Slots, reelforge.Slot{Kind: reelforge.ProcNone, Mix: 1})
	}
	ch.Slots[index] = slot
	e.completeChange("LoadSlot")
	return nil
}

// UnloadSlot empties the slot at index, leaving a pass-through in its place.
// Unlike RemoveSlot the later slots keep their indices.
func (e *Engine) UnloadSlot(tgt ChainTarget, index int) error {
	ch, err := e.chainOf(tgt)
	if err != nil {
		return err
	}
	if index < 0 || index >= len(ch.Slots) {
		return fmt.Errorf("unload slot %d: %w", index, reelforge.ErrNotFound)
	}
	e.saveUndo()
	ch.Slots[index] = reelforge.Slot{Kind: reelforge.ProcNone, Mix: 1}
	e.completeChange("UnloadSlot")
	return nil
}

// RemoveSlot deletes the slot at index; later slots shift down.
func (e *Engine) RemoveSlot(tgt ChainTarget, index int) error {
	ch, err := e.chainOf(tgt)
	if err != nil {
		return err
	}
	if index < 0 || index >= len(ch.Slots) {
		return fmt.Errorf("remove slot %d: %w", index, reelforge.ErrNotFound)
	}
	e.saveUndo()
	ch.Slots = append(ch.Slots[:index], ch.Slots[index+1:]...)
	e.completeChange("RemoveSlot")
	return nil
}

// MoveSlot reorders a slot within the chain.
func (e *Engine) MoveSlot(tgt ChainTarget, from, to int) error {
	ch, err := e.chainOf(tgt)
	if err != nil {
		return err
	}
	if from < 0 || from >= len(ch.Slots) || to < 0 || to >= len(ch.Slots) {
		return fmt.Errorf("move slot %d to %d: %w", from, to, reelforge.ErrNotFound)
	}
	if from == to {
		return nil
	}
	e.saveUndo()
	slot := ch.Slots[from]
	ch.Slots = append(ch.Slots[:from], ch.Slots[from+1:]...)
	ch.Slots = append(ch.Slots, reelforge.Slot{})
	copy(ch.Slots[to+1:], ch.Slots[to:])
	ch.Slots[to] = slot
	e.completeChange("MoveSlot")
	return nil
}

// SetSlotParams replaces the slot's parameters. The parameter struct must
// match the slot's kind and pass domain validation; structural errors are
// rejected rather than clamped.
func (e *Engine) SetSlotParams(tgt ChainTarget, index int, params any) error {
	ch, err := e.chainOf(tgt)
	if err != nil {
		return err
	}
	if index < 0 || index >= len(ch.Slots) {
		return fmt.Errorf("set slot params %d: %w", index, reelforge.ErrNotFound)
	}
	slot := &ch.Slots[index]
	next := slot.Copy()
	if err := next.SetParams(params); err != nil {
		return fmt.Errorf("set slot params %d: %w", index, err)
	}
	if err := dsp.ValidateSlotParams(&next, e.cfg.SampleRate); err != nil {
		return fmt.Errorf("set slot params %d: %w", index, err)
	}
	e.saveUndo()
	*slot = next
	e.completeChange("SetSlotParams")
	return nil
}

// SetSlotBypass toggles the slot in or out of the signal path without
// losing its state.
func (e *Engine) SetSlotBypass(tgt ChainTarget, index int, bypass bool) error {
	ch, err := e.chainOf(tgt)
	if err != nil {
		return err
	}
	if index < 0 || index >= len(ch.Slots) {
		return fmt.Errorf("set slot bypass %d: %w", index, reelforge.ErrNotFound)
	}
	e.saveUndo()
	ch.Slots[index].Bypass = bypass
	e.completeChange("SetSlotBypass")
	return nil
}

// SetSlotMix sets the slot's wet/dry mix, clamped to 0..1.
func (e *Engine) SetSlotMix(tgt ChainTarget, index int, mix float32) error {
	ch, err := e.chainOf(tgt)
	if err != nil {
		return err
	}
	if index < 0 || index >= len(ch.Slots) {
		return fmt.Errorf("set slot mix %d: %w", index, reelforge.ErrNotFound)
	}
	e.saveUndo()
	ch.Slots[index].Mix = reelforge.Clamp(mix, 0, 1)
	e.completeChange("SetSlotMix")
	return nil
}

// SetChainBypass bypasses the whole chain.
func (e *Engine) SetChainBypass(tgt ChainTarget, bypass bool) error {
	ch, err := e.chainOf(tgt)
	if err != nil {
		return err
	}
	e.saveUndo()
	ch.Bypass = bypass
	e.completeChange("SetChainBypass")
	return nil
}

// SetChainTrims sets the chain's input and output trims, clamped to the
// bus trim range.
func (e *Engine) SetChainTrims(tgt ChainTarget, inputDb, outputDb reelforge.Decibel) error {
	ch, err := e.chainOf(tgt)
	if err != nil {
		return err
	}
	e.saveUndo()
	ch.InputTrimDb = reelforge.Clamp(inputDb, reelforge.MinBusVolumeDb, reelforge.MaxBusVolumeDb)
	ch.OutputTrimDb = reelforge.Clamp(outputDb, reelforge.MinBusVolumeDb, reelforge.MaxBusVolumeDb)
	e.completeChange("SetChainTrims")
	return nil
}

// AddEQBand appends a band to the EQ in the given slot and returns the band
// index. Bands beyond the fixed maximum are rejected.
func (e *Engine) AddEQBand(tgt ChainTarget, index int, band reelforge.EQBand) (int, error) {
	eq, err := e.eqAt(tgt, index)
	if err != nil {
		return 0, err
	}
	if len(eq.Bands) >= reelforge.MaxEQBands {
		return 0, fmt.Errorf("add eq band: %w", reelforge.ErrResourceExhausted)
	}
	if err := dsp.ValidateBand(&band, e.cfg.SampleRate); err != nil {
		return 0, fmt.Errorf("add eq band: %w", err)
	}
	e.saveUndo()
	eq.Bands = append(eq.Bands, band)
	e.completeChange("AddEQBand")
	return len(eq.Bands) - 1, nil
}

// RemoveEQBand deletes a band; later bands shift down.
func (e *Engine) RemoveEQBand(tgt ChainTarget, index, band int) error {
	eq, err := e.eqAt(tgt, index)
	if err != nil {
		return err
	}
	if band < 0 || band >= len(eq.Bands) {
		return fmt.Errorf("remove eq band %d: %w", band, reelforge.ErrNotFound)
	}
	e.saveUndo()
	eq.Bands = append(eq.Bands[:band], eq.Bands[band+1:]...)
	e.completeChange("RemoveEQBand")
	return nil
}

// SetEQBand replaces a band's parameters after validation.
func (e *Engine) SetEQBand(tgt ChainTarget, index, band int, params reelforge.EQBand) error {
	eq, err := e.eqAt(tgt, index)
	if err != nil {
		return err
	}
	if band < 0 || band >= len(eq.Bands) {
		return fmt.Errorf("set eq band %d: %w", band, reelforge.ErrNotFound)
	}
	if err := dsp.ValidateBand(&params, e.cfg.SampleRate); err != nil {
		return fmt.Errorf("set eq band %d: %w", band, err)
	}
	e.saveUndo()
	eq.Bands[band] = params
	e.completeChange("SetEQBand")
	return nil
}

// SetEQPhaseMode switches the EQ between its three phase realizations. The
// magnitude response is the same in all three; only latency and transient
// behavior differ.
func (e *Engine) SetEQPhaseMode(tgt ChainTarget, index int, mode reelforge.PhaseMode) error {
	eq, err := e.eqAt(tgt, index)
	if err != nil {
		return err
	}
	e.saveUndo()
	eq.Phase = mode
	e.completeChange("SetEQPhaseMode")
	return nil
}

// StoreEQSnapshot saves the current band layout into snapshot A or B.
func (e *Engine) StoreEQSnapshot(tgt ChainTarget, index int, which rune) error {
	eq, err := e.eqAt(tgt, index)
	if err != nil {
		return err
	}
	switch which {
	case 'A', 'a', 'B', 'b':
	default:
		return fmt.Errorf("store eq snapshot %q: %w", which, reelforge.ErrInvalidParameter)
	}
	e.saveUndo()
	snap := reelforge.EQSnapshot{Bands: copyEQBands(eq.Bands), OutputGainDb: eq.OutputGainDb}
	switch which {
	case 'A', 'a':
		eq.SnapshotA = &snap
	default:
		eq.SnapshotB = &snap
	}
	e.completeChange("StoreEQSnapshot")
	return nil
}

// RecallEQSnapshot restores a previously stored band layout.
func (e *Engine) RecallEQSnapshot(tgt ChainTarget, index int, which rune) error {
	eq, err := e.eqAt(tgt, index)
	if err != nil {
		return err
	}
	var snap *reelforge.EQSnapshot
	switch which {
	case 'A', 'a':
		snap = eq.SnapshotA
	case 'B', 'b':
		snap = eq.SnapshotB
	default:
		return fmt.Errorf("recall eq snapshot %q: %w", which, reelforge.ErrInvalidParameter)
	}
	if snap == nil {
		return fmt.Errorf("recall eq snapshot %q: %w", which, reelforge.ErrNotFound)
	}
	e.saveUndo()
	eq.Bands = copyEQBands(snap.Bands)
	eq.OutputGainDb = snap.OutputGainDb
	e.completeChange("RecallEQSnapshot")
	return nil
}

func (e *Engine) eqAt(tgt ChainTarget, index int) (*reelforge.EQParams, error) {
	ch, err := e.chainOf(tgt)
	if err != nil {
		return nil, err
	}
	if index < 0 || index >= len(ch.Slots) {
		return nil, fmt.Errorf("slot %d: %w", index, reelforge.ErrNotFound)
	}
	if ch.Slots[index].Kind != reelforge.ProcEQ || ch.Slots[index].EQ == nil {
		return nil, fmt.Errorf("slot %d is not an eq: %w", index, reelforge.ErrInvalidState)
	}
	return ch.Slots[index].EQ, nil
}

func copyEQBands(bands []reelforge.EQBand) []reelforge.EQBand {
	out := make([]reelforge.EQBand, len(bands))
	for i := range bands {
		out[i] = bands[i]
		if bands[i].Dynamic != nil {
			d := *bands[i].Dynamic
			out[i].Dynamic = &d
		}
	}
	return out
}
