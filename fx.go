package reelforge

// ProcessorKind tags the variant held by a chain slot. ProcNone marks an
// empty slot, which passes audio through untouched.
type ProcessorKind int

const (
	ProcNone ProcessorKind = iota
	ProcGain
	ProcCompressor
	ProcLimiter
	ProcGate
	ProcSaturation
	ProcEQ
)

func (k ProcessorKind) String() string {
	switch k {
	case ProcGain:
		return "gain"
	case ProcCompressor:
		return "compressor"
	case ProcLimiter:
		return "limiter"
	case ProcGate:
		return "gate"
	case ProcSaturation:
		return "saturation"
	case ProcEQ:
		return "eq"
	}
	return "none"
}

type (
	// Chain is an ordered sequence of effect slots with chain-level trim and
	// bypass. Slots may be empty; an empty slot is a pass-through, so hosts
	// can keep stable slot indices while inserting processors sparsely.
	Chain struct {
		Slots        []Slot `yaml:",omitempty"`
		InputTrimDb  Decibel
		OutputTrimDb Decibel
		Bypass       bool `yaml:",omitempty"`
	}

	// Slot holds one processor as a tagged union: Kind selects which of the
	// parameter pointers is meaningful. Exactly the pointer matching Kind is
	// non-nil on a well-formed slot.
	Slot struct {
		Kind   ProcessorKind
		Bypass bool    `yaml:",omitempty"`
		Mix    float32 // 0 = dry, 1 = wet

		Gain       *GainParams       `yaml:",omitempty"`
		Compressor *CompressorParams `yaml:",omitempty"`
		Limiter    *LimiterParams    `yaml:",omitempty"`
		Gate       *GateParams       `yaml:",omitempty"`
		Saturation *SaturationParams `yaml:",omitempty"`
		EQ         *EQParams         `yaml:",omitempty"`
	}

	GainParams struct {
		Db  Decibel
		Pan float32 // -1..1
	}

	CompressorParams struct {
		ThresholdDb Decibel
		Ratio       float32 // >= 1
		AttackMs    float32 // > 0
		ReleaseMs   float32 // > 0
		KneeDb      float32 // >= 0
		MakeupDb    Decibel
	}

	LimiterParams struct {
		CeilingDb Decibel
		ReleaseMs float32 // > 0
	}

	GateParams struct {
		ThresholdDb Decibel
		AttackMs    float32 // > 0
		ReleaseMs   float32 // > 0
	}

	SaturationParams struct {
		Drive float32 // 0..24 dB of input drive
		Mix   float32 // 0..1
	}
)

// BandShape is the filter type of one EQ band.
type BandShape int

const (
	Bell BandShape = iota
	HighPass
	LowPass
	HighShelf
	LowShelf
	Notch
	BandPass
	TiltShelf
)

// StereoPlacement selects which component of the stereo signal a band
// filters.
type StereoPlacement int

const (
	PlaceStereo StereoPlacement = iota
	PlaceLeftOnly
	PlaceRightOnly
	PlaceMidOnly
	PlaceSideOnly
)

// PhaseMode selects the filter realization of the EQ. All modes share the
// same magnitude response; they differ in phase and added latency.
type PhaseMode int

const (
	ZeroLatency PhaseMode = iota
	NaturalPhase
	LinearPhase
)

// MaxEQBands is the fixed band capacity of one EQ instance.
const MaxEQBands = 64

type (
	// EQParams is the full parameter state of the parametric/dynamic EQ, the
	// most elaborate processor of the library.
	EQParams struct {
		Bands        []EQBand `yaml:",omitempty"` // at most MaxEQBands
		OutputGainDb Decibel
		Phase        PhaseMode
		AutoGain     bool `yaml:",omitempty"`
		MatchMode    bool `yaml:",omitempty"`

		// SnapshotA/B are stored copies of the band state for instant
		// recall/compare. Recall is applied by the audio path at a block
		// boundary, never mid-block.
		SnapshotA *EQSnapshot `yaml:",omitempty"`
		SnapshotB *EQSnapshot `yaml:",omitempty"`
	}

	EQBand struct {
		Enabled   bool
		Frequency float32 // Hz, 20 <= f < Nyquist
		GainDb    Decibel
		Q         float32 // > 0
		Shape     BandShape
		Slope     int // dB/octave for shelf/pass shapes: 6, 12, 24, 48, 96
		Placement StereoPlacement
		Dynamic   *DynamicBand `yaml:",omitempty"`
	}

	// DynamicBand modulates the band's gain between zero and its static gain
	// with a soft-knee gain computer driven by the band-passed signal, the
	// same math as a single-band compressor.
	DynamicBand struct {
		Enabled     bool
		ThresholdDb Decibel
		Ratio       float32 // >= 1
		AttackMs    float32 // > 0
		ReleaseMs   float32 // > 0
		KneeDb      float32 // >= 0
	}

	// EQSnapshot is the band state captured by the A/B store operation.
	EQSnapshot struct {
		Bands        []EQBand
		OutputGainDb Decibel
	}
)

func (c *Chain) Copy() Chain {
	slots := make([]Slot, len(c.Slots))
	for i := range c.Slots {
		slots[i] = c.Slots[i].Copy()
	}
	ret := *c
	ret.Slots = slots
	return ret
}

func (s *Slot) Copy() Slot {
	ret := *s
	if s.Gain != nil {
		g := *s.Gain
		ret.Gain = &g
	}
	if s.Compressor != nil {
		c := *s.Compressor
		ret.Compressor = &c
	}
	if s.Limiter != nil {
		l := *s.Limiter
		ret.Limiter = &l
	}
	if s.Gate != nil {
		g := *s.Gate
		ret.Gate = &g
	}
	if s.Saturation != nil {
		sat := *s.Saturation
		ret.Saturation = &sat
	}
	if s.EQ != nil {
		ret.EQ = s.EQ.Copy()
	}
	return ret
}

func (e *EQParams) Copy() *EQParams {
	ret := *e
	ret.Bands = copyBands(e.Bands)
	if e.SnapshotA != nil {
		ret.SnapshotA = &EQSnapshot{Bands: copyBands(e.SnapshotA.Bands), OutputGainDb: e.SnapshotA.OutputGainDb}
	}
	if e.SnapshotB != nil {
		ret.SnapshotB = &EQSnapshot{Bands: copyBands(e.SnapshotB.Bands), OutputGainDb: e.SnapshotB.OutputGainDb}
	}
	return &ret
}

func copyBands(bands []EQBand) []EQBand {
	ret := make([]EQBand, len(bands))
	for i := range bands {
		ret[i] = bands[i]
		if bands[i].Dynamic != nil {
			d := *bands[i].Dynamic
			ret[i].Dynamic = &d
		}
	}
	return ret
}

// DefaultSlot returns a fully-wet slot of the given kind with conservative
// starting parameters.
func DefaultSlot(kind ProcessorKind) (Slot, error) {
	s := Slot{Kind: kind, Mix: 1}
	switch kind {
	case ProcNone:
	case ProcGain:
		s.Gain = &GainParams{}
	case ProcCompressor:
		s.Compressor = &CompressorParams{ThresholdDb: -18, Ratio: 2, AttackMs: 10, ReleaseMs: 100, KneeDb: 6}
	case ProcLimiter:
		s.Limiter = &LimiterParams{CeilingDb: -0.3, ReleaseMs: 50}
	case ProcGate:
		s.Gate = &GateParams{ThresholdDb: -50, AttackMs: 1, ReleaseMs: 100}
	case ProcSaturation:
		s.Saturation = &SaturationParams{Drive: 6, Mix: 1}
	case ProcEQ:
		s.EQ = &EQParams{}
	default:
		return Slot{}, ErrInvalidParameter
	}
	return s, nil
}

// SetParams replaces the slot's parameter block. The value's type must match
// the slot's kind; a mismatch is rejected without touching the slot.
func (s *Slot) SetParams(params any) error {
	switch p := params.(type) {
	case GainParams:
		if s.Kind != ProcGain {
			return ErrInvalidParameter
		}
		s.Gain = &p
	case CompressorParams:
		if s.Kind != ProcCompressor {
			return ErrInvalidParameter
		}
		s.Compressor = &p
	case LimiterParams:
		if s.Kind != ProcLimiter {
			return ErrInvalidParameter
		}
		s.Limiter = &p
	case GateParams:
		if s.Kind != ProcGate {
			return ErrInvalidParameter
		}
		s.Gate = &p
	case SaturationParams:
		if s.Kind != ProcSaturation {
			return ErrInvalidParameter
		}
		s.Saturation = &p
	case EQParams:
		if s.Kind != ProcEQ {
			return ErrInvalidParameter
		}
		s.EQ = p.Copy()
	default:
		return ErrInvalidParameter
	}
	return nil
}

// Params returns the parameter block matching the slot kind as an any, for
// exhaustive switches at apply time. Empty slots return nil.
func (s *Slot) Params() any {
	switch s.Kind {
	case ProcGain:
		return s.Gain
	case ProcCompressor:
		return s.Compressor
	case ProcLimiter:
		return s.Limiter
	case ProcGate:
		return s.Gate
	case ProcSaturation:
		return s.Saturation
	case ProcEQ:
		return s.EQ
	}
	return nil
}
