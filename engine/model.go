package engine

import (
	"fmt"
	"sync/atomic"
	"time"

	reelforge "github.com/Bojan20/reelforge-standalone-sub003"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

type (
	// Config is everything needed to construct an Engine. The engine has no
	// global state; hosts construct one per project and own its lifetime.
	Config struct {
		SampleRate int
		BlockSize  int
		UndoDepth  int // 0 means DefaultUndoDepth

		Codec     reelforge.Codec     // may be nil if clips are fed PCM directly
		Persister reelforge.Persister // may be nil if save/load is unused
		Log       *logrus.Logger      // nil gets a logger with the default config
	}

	// Engine is the control-context command surface over one project. All
	// mutating calls are expected from a single goroutine (single-writer
	// discipline); the audio path runs concurrently and is fed immutable
	// snapshots through the broker. Every committed mutation is undoable,
	// bumps the project's modified time and republishes the project to the
	// audio path.
	Engine struct {
		broker *Broker
		cfg    Config
		log    *logrus.Entry

		d modelData

		undoStack []reelforge.Project
		redoStack []reelforge.Project

		player   *Player
		detector *Detector
		renderer *Renderer

		transportSnap atomic.Pointer[TransportSnapshot]
		meterSnap     atomic.Pointer[MeterSnapshot]
		detectorSnap  atomic.Pointer[DetectorResult]

		scope RingBuffer[[2]float32]
	}

	modelData struct {
		Project          reelforge.Project
		FilePath         string
		ChangedSinceSave bool
	}
)

// DefaultUndoDepth bounds the undo stack when Config.UndoDepth is zero.
const DefaultUndoDepth = 256

// NewEngine constructs the engine, its audio-path player and its detector
// goroutine state for the given configuration.
func NewEngine(cfg Config) *Engine {
	if cfg.SampleRate <= 0 {
		cfg.SampleRate = 44100
	}
	if cfg.BlockSize <= 0 {
		cfg.BlockSize = 512
	}
	if cfg.UndoDepth <= 0 {
		cfg.UndoDepth = DefaultUndoDepth
	}
	if cfg.Log == nil {
		cfg.Log = logrus.New()
	}
	e := &Engine{
		broker: NewBroker(),
		cfg:    cfg,
		log:    cfg.Log.WithField("component", "engine"),
		d: modelData{
			Project: reelforge.NewProject("Untitled", cfg.SampleRate),
		},
		scope: RingBuffer[[2]float32]{Buffer: make([][2]float32, ScopeSamples)},
	}
	e.player = NewPlayer(e.broker, cfg.SampleRate, &e.transportSnap, &e.meterSnap)
	e.detector = NewDetector(e.broker, &e.detectorSnap)
	e.renderer = NewRenderer(e.broker, cfg.Log)
	go e.detector.Run()
	e.publishProject()
	return e
}

// Broker exposes the message hub, for hosts that wire their own audio I/O
// loop around Player.Process.
func (e *Engine) Broker() *Broker { return e.broker }

// Player returns the audio-path processor. The host audio I/O layer calls
// its Process method once per hardware block.
func (e *Engine) Player() *Player { return e.player }

// Detector returns the advanced-metering pipeline.
func (e *Engine) Detector() *Detector { return e.detector }

// Renderer returns the bounce/export state machine.
func (e *Engine) Renderer() *Renderer { return e.renderer }

// Project returns a deep copy of the current project snapshot.
func (e *Engine) Project() reelforge.Project { return e.d.Project.Copy() }

// SampleRate returns the project sample rate.
func (e *Engine) SampleRate() int { return e.d.Project.SampleRate }

// Dirty reports whether there are unsaved changes.
func (e *Engine) Dirty() bool { return e.d.ChangedSinceSave }

// FilePath returns the path of the last save/load, or "".
func (e *Engine) FilePath() string { return e.d.FilePath }

// TransportSnapshot returns the most recent complete transport state
// published by the audio path. Hosts poll this at whatever rate their
// playhead display needs.
func (e *Engine) TransportSnapshot() TransportSnapshot {
	if s := e.transportSnap.Load(); s != nil {
		return *s
	}
	t := &e.d.Project.Transport
	return TransportSnapshot{
		State:      t.State,
		Recording:  t.Recording,
		PosSamples: t.PosSamples,
		PosSeconds: t.PosSeconds(e.d.Project.SampleRate),
		BPM:        t.BPM,
		Loop:       t.Loop,
	}
}

// Meters returns the most recent complete basic-meter snapshot.
func (e *Engine) Meters() MeterSnapshot {
	if s := e.meterSnap.Load(); s != nil {
		return *s
	}
	return MeterSnapshot{}
}

// DetectorSnapshot returns the most recent advanced-metering result, valid
// once the detector has been initialized and fed audio.
func (e *Engine) DetectorSnapshot() DetectorResult {
	if s := e.detectorSnap.Load(); s != nil {
		return *s
	}
	return DetectorResult{}
}

// NewProject discards the current project and starts an empty one. The undo
// history does not survive, matching the bounded-history contract.
func (e *Engine) NewProject(name string) {
	e.d = modelData{Project: reelforge.NewProject(name, e.cfg.SampleRate)}
	e.undoStack = e.undoStack[:0]
	e.redoStack = e.redoStack[:0]
	e.publishProject()
	e.log.WithField("name", name).Info("new project")
}

// Save serializes the project snapshot through the persister.
func (e *Engine) Save(path string) error {
	if e.cfg.Persister == nil {
		return fmt.Errorf("save: no persistence service: %w", reelforge.ErrInvalidState)
	}
	out, err := yaml.Marshal(&e.d.Project)
	if err != nil {
		return fmt.Errorf("could not marshal project: %w", err)
	}
	if err := e.cfg.Persister.Save(path, out); err != nil {
		return fmt.Errorf("could not save project: %w", err)
	}
	e.d.FilePath = path
	e.d.ChangedSinceSave = false
	e.log.WithField("path", path).Info("project saved")
	return nil
}

// Load replaces the project with a deserialized snapshot and reloads every
// clip's audio through the codec. The undo history is cleared.
func (e *Engine) Load(path string) error {
	if e.cfg.Persister == nil {
		return fmt.Errorf("load: no persistence service: %w", reelforge.ErrInvalidState)
	}
	in, err := e.cfg.Persister.Load(path)
	if err != nil {
		return fmt.Errorf("could not load project: %w", err)
	}
	var p reelforge.Project
	if err := yaml.Unmarshal(in, &p); err != nil {
		return fmt.Errorf("could not unmarshal project: %w", err)
	}
	if err := p.Validate(); err != nil {
		return fmt.Errorf("loaded project is invalid: %w", err)
	}
	if err := e.loadClipAudio(&p); err != nil {
		return err
	}
	if len(p.BusChains) == 0 {
		p.BusChains = make([]reelforge.Chain, reelforge.NumBuses)
	}
	e.d = modelData{Project: p, FilePath: path}
	e.undoStack = e.undoStack[:0]
	e.redoStack = e.redoStack[:0]
	e.publishProject()
	e.log.WithField("path", path).Info("project loaded")
	return nil
}

// loadClipAudio decodes each distinct clip source once and shares the PCM
// between clips referencing the same asset.
func (e *Engine) loadClipAudio(p *reelforge.Project) error {
	if e.cfg.Codec == nil {
		return nil
	}
	cache := make(map[string]reelforge.AudioBuffer)
	for i := range p.Tracks {
		for j := range p.Tracks[i].Clips {
			c := &p.Tracks[i].Clips[j]
			if c.Source == "" {
				continue
			}
			pcm, ok := cache[c.Source]
			if !ok {
				var err error
				pcm, _, err = e.cfg.Codec.Decode(c.Source)
				if err != nil {
					return fmt.Errorf("could not decode %q: %w", c.Source, err)
				}
				cache[c.Source] = pcm
			}
			c.PCM = pcm
		}
	}
	return nil
}

// saveUndo pushes the current project onto the undo stack, evicting the
// oldest entry past the depth bound, and discards the redo tail.
func (e *Engine) saveUndo() {
	if len(e.undoStack) >= e.cfg.UndoDepth {
		copy(e.undoStack, e.undoStack[len(e.undoStack)-e.cfg.UndoDepth+1:])
		e.undoStack = e.undoStack[:e.cfg.UndoDepth-1]
	}
	e.undoStack = append(e.undoStack, e.d.Project.Copy())
	e.redoStack = e.redoStack[:0]
}

// completeChange finalizes a committed mutation: timestamps, dirty flag,
// logging and republication to the audio path.
func (e *Engine) completeChange(kind string) {
	e.d.Project.Modified = time.Now()
	e.d.ChangedSinceSave = true
	e.publishProject()
	e.log.WithField("change", kind).Debug("committed")
}

func (e *Engine) publishProject() {
	TrySend(e.broker.ToPlayer, any(projectMsg{project: e.d.Project.Copy()}))
}

// Close shuts down the detector goroutine, waiting briefly for it to finish.
func (e *Engine) Close() {
	select {
	case e.broker.CloseDetector <- struct{}{}:
	default:
	}
	TimeoutReceive(e.broker.FinishedDetector, 3*time.Second)
}
