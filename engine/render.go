package engine

import (
	"fmt"
	"math"
	"sync/atomic"
	"time"

	reelforge "github.com/Bojan20/reelforge-standalone-sub003"
	"github.com/sirupsen/logrus"
)

// RenderState is the bounce state machine. Only one render runs at a time;
// a finished or cancelled render must be cleared before the next starts.
type RenderState int32

const (
	RenderIdle RenderState = iota
	Rendering
	RenderComplete
	RenderCancelled
	RenderFailed
)

type (
	// Renderer bounces a project to a WAV file offline. The render runs on
	// its own goroutine against a private copy of the project and a private
	// audio path, so the live player and its processor states are untouched
	// and the output is deterministic for a given project.
	Renderer struct {
		broker *Broker
		log    *logrus.Entry

		state    atomic.Int32
		progress atomic.Uint64 // math.Float64bits of the 0..1 fraction
		speed    atomic.Uint64 // math.Float64bits of the realtime speed factor
		peak     atomic.Uint64 // math.Float64bits of the running linear peak
		remain   atomic.Int64  // estimated nanoseconds to completion
		cancel   atomic.Bool
		err      atomic.Pointer[error]
	}

	// RenderOptions selects the bounce range and output format. A zero To
	// renders to the end of the last clip plus the render tail.
	RenderOptions struct {
		Path        string
		BitDepth    reelforge.BitDepth
		From, To    int64 // sample range
		TailSamples int64 // extra samples after To for effect tails
		BlockSize   int

		Normalize bool
		TargetDb  reelforge.Decibel // normalize peak target
	}
)

// StartRender bounces the current project through the persistence service.
func (e *Engine) StartRender(opts RenderOptions) error {
	if e.cfg.Persister == nil {
		return fmt.Errorf("render: no persistence service: %w", reelforge.ErrInvalidState)
	}
	return e.renderer.Start(e.d.Project.Copy(), opts, e.cfg.Persister.Save)
}

func NewRenderer(broker *Broker, log *logrus.Logger) *Renderer {
	return &Renderer{broker: broker, log: log.WithField("component", "renderer")}
}

// State returns the current bounce state.
func (r *Renderer) State() RenderState { return RenderState(r.state.Load()) }

// Progress returns the completed fraction of the running render, 0..1.
func (r *Renderer) Progress() float64 { return math.Float64frombits(r.progress.Load()) }

// Speed returns how much faster than realtime the render is running.
func (r *Renderer) Speed() float64 { return math.Float64frombits(r.speed.Load()) }

// ETA estimates the remaining render time from the speed so far.
func (r *Renderer) ETA() time.Duration { return time.Duration(r.remain.Load()) }

// PeakDb returns the loudest sample rendered so far.
func (r *Renderer) PeakDb() reelforge.Decibel {
	return reelforge.LinearToDb(float32(math.Float64frombits(r.peak.Load())))
}

// Err returns the failure of the last render, if any.
func (r *Renderer) Err() error {
	if p := r.err.Load(); p != nil {
		return *p
	}
	return nil
}

// Cancel requests cancellation of the running render. The render goroutine
// notices at the next block boundary.
func (r *Renderer) Cancel() {
	if r.State() == Rendering {
		r.cancel.Store(true)
	}
}

// Clear returns a finished, failed or cancelled renderer to idle.
func (r *Renderer) Clear() error {
	switch r.State() {
	case Rendering:
		return fmt.Errorf("render in progress: %w", reelforge.ErrInvalidState)
	default:
		r.state.Store(int32(RenderIdle))
		r.progress.Store(0)
		r.speed.Store(0)
		r.peak.Store(0)
		r.remain.Store(0)
		r.err.Store(nil)
		return nil
	}
}

// Start begins a bounce of the given project snapshot. save persists the
// finished WAV bytes; the call returns immediately and the result is
// observed through State/Progress/Err.
func (r *Renderer) Start(project reelforge.Project, opts RenderOptions, save func(path string, data []byte) error) error {
	if !r.state.CompareAndSwap(int32(RenderIdle), int32(Rendering)) {
		return fmt.Errorf("render already started: %w", reelforge.ErrInvalidState)
	}
	if opts.BlockSize <= 0 {
		opts.BlockSize = 512
	}
	if opts.To <= opts.From {
		opts.To = project.Duration()
	}
	if opts.To <= opts.From {
		r.state.Store(int32(RenderIdle))
		return fmt.Errorf("render range is empty: %w", reelforge.ErrInvalidState)
	}
	r.cancel.Store(false)
	r.progress.Store(0)
	r.speed.Store(0)
	r.peak.Store(0)
	r.remain.Store(0)
	r.err.Store(nil)
	go r.run(project, opts, save)
	return nil
}

func (r *Renderer) run(project reelforge.Project, opts RenderOptions, save func(path string, data []byte) error) {
	out, err := r.render(project, opts)
	switch {
	case err != nil:
		r.log.WithError(err).Error("render failed")
		r.err.Store(&err)
		r.state.Store(int32(RenderFailed))
	case out == nil:
		r.log.Info("render cancelled")
		r.state.Store(int32(RenderCancelled))
	default:
		data, err := reelforge.Wav(out, project.SampleRate, opts.BitDepth)
		if err == nil {
			err = save(opts.Path, data)
		}
		if err != nil {
			r.log.WithError(err).Error("render failed")
			r.err.Store(&err)
			r.state.Store(int32(RenderFailed))
			return
		}
		r.log.WithField("path", opts.Path).WithField("samples", len(out)).Info("render complete")
		r.state.Store(int32(RenderComplete))
	}
}

// render runs a private offline audio path over the project. A nil buffer
// with a nil error means the render was cancelled.
func (r *Renderer) render(project reelforge.Project, opts RenderOptions) (reelforge.AudioBuffer, error) {
	// transport run state must not leak into the bounce
	project.Transport.Loop.Enabled = false

	broker := NewBroker()
	var transport atomic.Pointer[TransportSnapshot]
	var meters atomic.Pointer[MeterSnapshot]
	player := NewPlayer(broker, project.SampleRate, &transport, &meters)
	TrySend(broker.ToPlayer, any(projectMsg{project: project}))
	TrySend(broker.ToPlayer, any(seekMsg{pos: opts.From}))
	TrySend(broker.ToPlayer, any(playMsg{}))

	total := opts.To + opts.TailSamples - opts.From
	out := make(reelforge.AudioBuffer, 0, total)
	block := make(reelforge.AudioBuffer, opts.BlockSize)
	start := time.Now()
	var done int64
	var peak float32
	for done < total {
		if r.cancel.Load() {
			return nil, nil
		}
		n := int64(len(block))
		if total-done < n {
			n = total - done
		}
		player.Process(block[:n])
		for _, s := range block[:n] {
			if a := abs32(s[0]); a > peak {
				peak = a
			}
			if a := abs32(s[1]); a > peak {
				peak = a
			}
		}
		out = append(out, block[:n]...)
		done += n
		r.progress.Store(math.Float64bits(float64(done) / float64(total)))
		r.peak.Store(math.Float64bits(float64(peak)))
		if elapsed := time.Since(start).Seconds(); elapsed > 0 {
			rendered := float64(done) / float64(project.SampleRate)
			speed := rendered / elapsed
			r.speed.Store(math.Float64bits(speed))
			remaining := float64(total-done) / float64(project.SampleRate)
			r.remain.Store(int64(remaining / speed * float64(time.Second)))
		}
		drainAnalysisFeeds(broker)
	}

	if opts.Normalize {
		normalize(out, opts.TargetDb)
	}
	return out, nil
}

// drainAnalysisFeeds returns the offline player's analysis and scope buffers
// to the pool; no detector goroutine or scope reader consumes them during a
// bounce.
func drainAnalysisFeeds(broker *Broker) {
	for {
		select {
		case msg := <-broker.ToDetector:
			if data, ok := msg.Data.(*reelforge.AudioBuffer); ok {
				broker.PutAudioBuffer(data)
			}
		case msg := <-broker.ToModel:
			if data, ok := msg.Data.(*reelforge.AudioBuffer); ok {
				broker.PutAudioBuffer(data)
			}
		default:
			return
		}
	}
}

func normalize(buf reelforge.AudioBuffer, targetDb reelforge.Decibel) {
	var peak float32
	for i := range buf {
		if a := abs32(buf[i][0]); a > peak {
			peak = a
		}
		if a := abs32(buf[i][1]); a > peak {
			peak = a
		}
	}
	if peak == 0 {
		return
	}
	g := reelforge.DbToLinear(targetDb) / peak
	for i := range buf {
		buf[i][0] *= g
		buf[i][1] *= g
	}
}
