package reelforge

// AudioBuffer is a buffer of stereo audio samples of variable length, each
// sample represented as [2]float32. [0] is left channel, [1] is right.
type AudioBuffer [][2]float32

// AudioSink is something where stereo audio can be played back, typically a
// hardware output. WriteAudio may block until the sink can accept more audio,
// which paces the engine's processing loop.
type AudioSink interface {
	WriteAudio(buffer AudioBuffer) error
	Close() error
}

// AudioContext is the host audio I/O layer: it knows the hardware sample rate
// and block size and hands out sinks.
type AudioContext interface {
	Output() AudioSink
	SampleRate() int
	BufferSize() int
	Close() error
}

// Codec decodes audio files into PCM; encoding back to a file goes through
// the renderer and Wav. The engine does not do codec work itself, it calls
// this collaborator.
type Codec interface {
	// Decode reads the file at path and returns its samples and sample rate.
	Decode(path string) (buffer AudioBuffer, sampleRate int, err error)

	// Peaks returns a min/max peak reduction of the file for waveform
	// display, with samplesPerPeak samples folded into each peak pair.
	Peaks(path string, samplesPerPeak int) (peaks [][2]float32, err error)
}

// Persister stores and recalls project snapshots. The engine treats the
// format as opaque beyond "bytes at a path"; the default implementation in
// the engine package uses YAML.
type Persister interface {
	Save(path string, data []byte) error
	Load(path string) ([]byte, error)
}

// Zero silences the buffer in place without changing its length.
func (b AudioBuffer) Zero() {
	for i := range b {
		b[i] = [2]float32{}
	}
}

// Copy returns a deep copy of the buffer.
func (b AudioBuffer) Copy() AudioBuffer {
	ret := make(AudioBuffer, len(b))
	copy(ret, b)
	return ret
}
