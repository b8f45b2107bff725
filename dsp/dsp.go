// Package dsp implements the processor library of the engine: gain,
// compressor, limiter, gate, saturation and the parametric/dynamic EQ, plus
// the chain runtime that hosts them. Processors are created from the typed
// parameter blocks of the data model and process stereo buffers in place.
//
// Nothing in this package allocates per block once constructed; scratch
// buffers grow to a high-water mark and stay there.
package dsp

import (
	"reflect"

	reelforge "github.com/Bojan20/reelforge-standalone-sub003"
)

// Processor is a runtime processing unit. Process filters the buffer in
// place; Latency reports the samples of delay the unit adds, which the host
// compensates for.
type Processor interface {
	Process(buffer reelforge.AudioBuffer)
	Latency() int
	Reset()
}

// NewProcessor builds a runtime processor for the slot's parameter block.
// Empty slots return nil, which the chain treats as a pass-through. The
// switch is exhaustive over the processor kinds.
func NewProcessor(slot *reelforge.Slot, sampleRate int) Processor {
	switch slot.Kind {
	case reelforge.ProcGain:
		return newGain(slot.Gain)
	case reelforge.ProcCompressor:
		return newCompressor(slot.Compressor, sampleRate)
	case reelforge.ProcLimiter:
		return newLimiter(slot.Limiter, sampleRate)
	case reelforge.ProcGate:
		return newGate(slot.Gate, sampleRate)
	case reelforge.ProcSaturation:
		return newSaturation(slot.Saturation)
	case reelforge.ProcEQ:
		return NewEQ(slot.EQ, sampleRate)
	case reelforge.ProcNone:
		return nil
	}
	return nil
}

// ValidateSlotParams checks the hard parameter domains of a slot the way the
// engine's command surface requires: out-of-domain values are rejected, not
// clamped. sampleRate bounds EQ band frequencies at Nyquist.
func ValidateSlotParams(slot *reelforge.Slot, sampleRate int) error {
	switch slot.Kind {
	case reelforge.ProcCompressor:
		p := slot.Compressor
		if p == nil || p.Ratio < 1 || p.AttackMs <= 0 || p.ReleaseMs <= 0 || p.KneeDb < 0 {
			return reelforge.ErrInvalidParameter
		}
	case reelforge.ProcLimiter:
		p := slot.Limiter
		if p == nil || p.ReleaseMs <= 0 {
			return reelforge.ErrInvalidParameter
		}
	case reelforge.ProcGate:
		p := slot.Gate
		if p == nil || p.AttackMs <= 0 || p.ReleaseMs <= 0 {
			return reelforge.ErrInvalidParameter
		}
	case reelforge.ProcSaturation:
		p := slot.Saturation
		if p == nil || p.Drive < 0 || p.Mix < 0 || p.Mix > 1 {
			return reelforge.ErrInvalidParameter
		}
	case reelforge.ProcEQ:
		p := slot.EQ
		if p == nil {
			return reelforge.ErrInvalidParameter
		}
		for i := range p.Bands {
			if err := ValidateBand(&p.Bands[i], sampleRate); err != nil {
				return err
			}
		}
	case reelforge.ProcGain:
		if slot.Gain == nil {
			return reelforge.ErrInvalidParameter
		}
	}
	return nil
}

// ValidateBand checks one EQ band's parameter domain.
func ValidateBand(b *reelforge.EQBand, sampleRate int) error {
	nyquist := float32(sampleRate) / 2
	if b.Frequency < 20 || b.Frequency >= nyquist {
		return reelforge.ErrInvalidParameter
	}
	if b.Q <= 0 {
		return reelforge.ErrInvalidParameter
	}
	switch b.Slope {
	case 0, 6, 12, 24, 48, 96:
	default:
		return reelforge.ErrInvalidParameter
	}
	if d := b.Dynamic; d != nil {
		if d.Ratio < 1 || d.AttackMs <= 0 || d.ReleaseMs <= 0 || d.KneeDb < 0 {
			return reelforge.ErrInvalidParameter
		}
	}
	return nil
}

type chainSlot struct {
	params reelforge.Slot // deep copy, for change detection
	proc   Processor
}

// ChainRuntime hosts the processors of one chain on the audio path. It is
// updated from chain snapshots between blocks; slots whose parameters did not
// change keep their filter state, so edits elsewhere in the chain never click
// the surviving processors.
type ChainRuntime struct {
	chain      reelforge.Chain
	slots      []chainSlot
	sampleRate int
	dry        reelforge.AudioBuffer
}

func NewChainRuntime(sampleRate int) *ChainRuntime {
	return &ChainRuntime{sampleRate: sampleRate}
}

// Update reconciles the runtime with a new chain snapshot. Only slots whose
// parameter block differs are rebuilt.
func (c *ChainRuntime) Update(chain *reelforge.Chain) {
	if len(c.slots) > len(chain.Slots) {
		c.slots = c.slots[:len(chain.Slots)]
	}
	for len(c.slots) < len(chain.Slots) {
		c.slots = append(c.slots, chainSlot{})
	}
	for i := range chain.Slots {
		s := &chain.Slots[i]
		if c.slots[i].proc != nil && c.slots[i].params.Kind == s.Kind &&
			reflect.DeepEqual(c.slots[i].params.Params(), s.Params()) {
			// parameters unchanged, keep state; bypass/mix are applied live
			c.slots[i].params.Bypass = s.Bypass
			c.slots[i].params.Mix = s.Mix
			continue
		}
		c.slots[i].params = s.Copy()
		c.slots[i].proc = NewProcessor(s, c.sampleRate)
	}
	c.chain = *chain
}

// Process runs the buffer through input trim, every loaded slot and output
// trim. Empty and bypassed slots pass through.
func (c *ChainRuntime) Process(buffer reelforge.AudioBuffer) {
	if c.chain.Bypass || len(buffer) == 0 {
		return
	}
	applyGain(buffer, reelforge.DbToLinear(c.chain.InputTrimDb))
	for i := range c.slots {
		s := &c.slots[i]
		if s.proc == nil || s.params.Bypass {
			continue
		}
		mix := reelforge.Clamp(s.params.Mix, 0, 1)
		if mix <= 0 {
			continue
		}
		if mix >= 1 {
			s.proc.Process(buffer)
			continue
		}
		setBufferLength(&c.dry, len(buffer))
		copy(c.dry, buffer)
		s.proc.Process(buffer)
		for j := range buffer {
			buffer[j][0] = buffer[j][0]*mix + c.dry[j][0]*(1-mix)
			buffer[j][1] = buffer[j][1]*mix + c.dry[j][1]*(1-mix)
		}
	}
	applyGain(buffer, reelforge.DbToLinear(c.chain.OutputTrimDb))
}

// Latency returns the cumulative delay of the loaded processors in samples.
func (c *ChainRuntime) Latency() int {
	if c.chain.Bypass {
		return 0
	}
	total := 0
	for i := range c.slots {
		if c.slots[i].proc != nil && !c.slots[i].params.Bypass {
			total += c.slots[i].proc.Latency()
		}
	}
	return total
}

// ChainLatency reports the cumulative delay a chain snapshot will add once
// the audio path adopts it, in samples, without building runtime state. Only
// the EQ's phase modes delay the signal; everything else in the library is
// zero-latency.
func ChainLatency(chain *reelforge.Chain) int {
	if chain.Bypass {
		return 0
	}
	total := 0
	for i := range chain.Slots {
		s := &chain.Slots[i]
		if s.Bypass || s.Kind != reelforge.ProcEQ || s.EQ == nil {
			continue
		}
		switch s.EQ.Phase {
		case reelforge.NaturalPhase:
			total += (halfbandTaps - 1) / 2
		case reelforge.LinearPhase:
			total += (firTaps - 1) / 2
		}
	}
	return total
}

// Reset clears the state of every processor in the chain.
func (c *ChainRuntime) Reset() {
	for i := range c.slots {
		if c.slots[i].proc != nil {
			c.slots[i].proc.Reset()
		}
	}
}

func applyGain(buffer reelforge.AudioBuffer, gain float32) {
	if gain == 1 {
		return
	}
	for i := range buffer {
		buffer[i][0] *= gain
		buffer[i][1] *= gain
	}
}

// setBufferLength grows the buffer to length without allocating when the
// capacity suffices.
func setBufferLength(buf *reelforge.AudioBuffer, length int) {
	if cap(*buf) < length {
		*buf = append((*buf)[:cap(*buf)], make(reelforge.AudioBuffer, length-cap(*buf))...)
	}
	*buf = (*buf)[:length]
}
