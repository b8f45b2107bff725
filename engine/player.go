package engine

import (
	"math"
	"sync/atomic"
	"time"

	reelforge "github.com/Bojan20/reelforge-standalone-sub003"
	"github.com/Bojan20/reelforge-standalone-sub003/dsp"
)

type (
	// Player is the audio path. The host audio I/O layer calls Process once
	// per hardware block from its own goroutine; everything the player needs
	// arrives as messages through the broker, so Process never blocks and
	// never takes a lock.
	Player struct {
		broker     *Broker
		sampleRate int

		project reelforge.Project
		state   reelforge.PlayState
		record  bool
		pos     int64

		chains map[chainKey]*dsp.ChainRuntime

		trackBuf reelforge.AudioBuffer
		clipBuf  reelforge.AudioBuffer
		busBufs  []reelforge.AudioBuffer

		meters   meterState
		spectrum spectrumState

		cpuLoad       float64
		framesToMeter int

		transportSnap *atomic.Pointer[TransportSnapshot]
		meterSnap     *atomic.Pointer[MeterSnapshot]
	}

	// TransportSnapshot is the consistent transport state the audio path
	// publishes after every block.
	TransportSnapshot struct {
		State      reelforge.PlayState
		Recording  bool
		PosSamples int64
		PosSeconds float64
		BPM        float64
		Loop       reelforge.Loop
		CPULoad    float64
	}

	// chainKey addresses one effect chain instance across project snapshots,
	// so processor state survives edits that do not touch the chain.
	chainKey struct {
		track reelforge.TrackID
		clip  reelforge.ClipID
		bus   int
	}

	projectMsg struct{ project reelforge.Project }
	playMsg    struct{}
	stopMsg    struct{}
	pauseMsg   struct{}
	recordMsg  struct{ on bool }
	seekMsg    struct{ pos int64 }
)

// meterHz is the publication rate of the basic meter snapshot.
const meterHz = 30

func NewPlayer(broker *Broker, sampleRate int, transport *atomic.Pointer[TransportSnapshot], meters *atomic.Pointer[MeterSnapshot]) *Player {
	p := &Player{
		broker:        broker,
		sampleRate:    sampleRate,
		chains:        make(map[chainKey]*dsp.ChainRuntime),
		busBufs:       make([]reelforge.AudioBuffer, reelforge.NumBuses),
		transportSnap: transport,
		meterSnap:     meters,
	}
	p.meters.init()
	p.spectrum.init()
	TrySend(broker.ToDetector, MsgToDetector{HasSampleRate: true, SampleRate: sampleRate})
	return p
}

// Process renders one block into buffer. It drains pending control messages
// first, so edits land at block boundaries only.
func (p *Player) Process(buffer reelforge.AudioBuffer) {
	start := time.Now()
	p.drainMessages()

	buffer.Zero()
	if p.state == reelforge.Playing {
		p.mixBlock(buffer)
	} else {
		for b := range p.busBufs {
			p.busBufs[b] = ensureLen(p.busBufs[b], len(buffer))
			p.busBufs[b].Zero()
		}
	}
	p.guardOutput(buffer)

	p.meters.accumulate(p.busBufs, buffer)
	p.spectrum.accumulate(buffer)
	p.framesToMeter -= len(buffer)
	if p.framesToMeter <= 0 {
		p.framesToMeter = p.sampleRate / meterHz
		snap := p.meters.snapshot()
		snap.Spectrum = p.spectrum.bins(p.sampleRate)
		p.meterSnap.Store(&snap)
	}

	p.feedDetector(buffer)
	p.feedScope(buffer)

	elapsed := time.Since(start).Seconds()
	budget := float64(len(buffer)) / float64(p.sampleRate)
	if budget > 0 {
		// slow exponential average so single spikes do not flap the display
		p.cpuLoad = 0.9*p.cpuLoad + 0.1*elapsed/budget
	}
	p.publishTransport()
}

func (p *Player) drainMessages() {
	for {
		select {
		case msg := <-p.broker.ToPlayer:
			switch m := msg.(type) {
			case projectMsg:
				p.applyProject(m.project)
			case playMsg:
				p.state = reelforge.Playing
			case stopMsg:
				p.state = reelforge.Stopped
				p.record = false
				p.pos = 0
				p.resetChains()
			case pauseMsg:
				if p.state == reelforge.Playing {
					p.state = reelforge.Paused
					p.record = false
				}
			case recordMsg:
				p.record = m.on
			case seekMsg:
				p.pos = m.pos
			}
		default:
			return
		}
	}
}

func (p *Player) applyProject(proj reelforge.Project) {
	p.project = proj
	if proj.SampleRate != p.sampleRate && proj.SampleRate > 0 {
		p.sampleRate = proj.SampleRate
		p.chains = make(map[chainKey]*dsp.ChainRuntime)
		TrySend(p.broker.ToDetector, MsgToDetector{HasSampleRate: true, SampleRate: p.sampleRate})
	}
	p.pruneChains()
}

// chainFor returns the runtime for the chain at key, updating its
// parameters from the current project snapshot.
func (p *Player) chainFor(key chainKey, chain *reelforge.Chain) *dsp.ChainRuntime {
	rt, ok := p.chains[key]
	if !ok {
		rt = dsp.NewChainRuntime(p.sampleRate)
		p.chains[key] = rt
	}
	rt.Update(chain)
	return rt
}

// pruneChains drops runtimes whose chain no longer exists, releasing their
// processor state.
func (p *Player) pruneChains() {
	for key := range p.chains {
		switch {
		case key.clip != 0:
			if _, _, ok := p.project.FindClip(key.clip); !ok {
				delete(p.chains, key)
			}
		case key.track != 0:
			if _, ok := p.project.FindTrack(key.track); !ok {
				delete(p.chains, key)
			}
		default:
			if key.bus < 0 || key.bus >= len(p.project.BusChains) {
				delete(p.chains, key)
			}
		}
	}
}

func (p *Player) resetChains() {
	for _, rt := range p.chains {
		rt.Reset()
	}
}

// advance moves the playhead by n samples, wrapping at the loop end. The
// wrap happens between blocks, never inside one.
func (p *Player) advance(n int64) {
	p.pos += n
	loop := p.project.Transport.Loop
	if !loop.Enabled {
		return
	}
	end := reelforge.SecondsToSamples(loop.End, p.sampleRate)
	if p.pos >= end {
		p.pos = reelforge.SecondsToSamples(loop.Start, p.sampleRate)
	}
}

// guardOutput zeroes non-finite samples so one misbehaving processor cannot
// poison downstream buffers or the host's output device.
func (p *Player) guardOutput(buffer reelforge.AudioBuffer) {
	for i := range buffer {
		for c := 0; c < 2; c++ {
			if f := float64(buffer[i][c]); math.IsNaN(f) || math.IsInf(f, 0) {
				buffer[i][c] = 0
			}
		}
	}
}

func (p *Player) feedDetector(buffer reelforge.AudioBuffer) {
	data := p.broker.GetAudioBuffer()
	*data = append((*data)[:0], buffer...)
	if !TrySend(p.broker.ToDetector, MsgToDetector{Data: data}) {
		p.broker.PutAudioBuffer(data)
	}
}

// feedScope hands the host a copy of the master block for the oscilloscope
// ring. Like the detector feed, a full channel drops the block rather than
// stalling the audio path.
func (p *Player) feedScope(buffer reelforge.AudioBuffer) {
	data := p.broker.GetAudioBuffer()
	*data = append((*data)[:0], buffer...)
	if !TrySend(p.broker.ToModel, MsgToModel{Data: data}) {
		p.broker.PutAudioBuffer(data)
	}
}

func (p *Player) publishTransport() {
	t := p.project.Transport
	p.transportSnap.Store(&TransportSnapshot{
		State:      p.state,
		Recording:  p.record,
		PosSamples: p.pos,
		PosSeconds: float64(p.pos) / float64(p.sampleRate),
		BPM:        t.BPM,
		Loop:       t.Loop,
		CPULoad:    p.cpuLoad,
	})
}
