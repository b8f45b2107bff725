package reelforge

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"os"
)

// WavCodec decodes RIFF WAVE files: 16/24/32-bit integer and 32-bit float
// PCM, mono or stereo. Mono files are decoded to both channels; extra
// channels beyond stereo are dropped.
type WavCodec struct{}

func (WavCodec) Decode(path string) (AudioBuffer, int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, 0, fmt.Errorf("could not read %q: %w", path, err)
	}
	buffer, rate, err := decodeWav(data)
	if err != nil {
		return nil, 0, fmt.Errorf("could not decode %q: %w", path, err)
	}
	return buffer, rate, nil
}

// Peaks folds the decoded audio into per-window min/max pairs of the mono
// sum, the reduction a waveform display draws from.
func (c WavCodec) Peaks(path string, samplesPerPeak int) ([][2]float32, error) {
	if samplesPerPeak <= 0 {
		return nil, ErrInvalidParameter
	}
	buffer, _, err := c.Decode(path)
	if err != nil {
		return nil, err
	}
	n := (len(buffer) + samplesPerPeak - 1) / samplesPerPeak
	peaks := make([][2]float32, n)
	for i := range peaks {
		lo, hi := float32(math.Inf(1)), float32(math.Inf(-1))
		from := i * samplesPerPeak
		to := from + samplesPerPeak
		if to > len(buffer) {
			to = len(buffer)
		}
		for j := from; j < to; j++ {
			m := (buffer[j][0] + buffer[j][1]) * 0.5
			if m < lo {
				lo = m
			}
			if m > hi {
				hi = m
			}
		}
		peaks[i] = [2]float32{lo, hi}
	}
	return peaks, nil
}

const (
	formatPCM        = 1
	formatIEEEFloat  = 3
	formatExtensible = 0xFFFE
)

func decodeWav(data []byte) (AudioBuffer, int, error) {
	if len(data) < 12 || string(data[0:4]) != "RIFF" || string(data[8:12]) != "WAVE" {
		return nil, 0, errors.New("not a RIFF WAVE file")
	}
	var (
		format, channels, bits int
		sampleRate             int
		pcm                    []byte
	)
	pos := 12
	for pos+8 <= len(data) {
		id := string(data[pos : pos+4])
		size := int(binary.LittleEndian.Uint32(data[pos+4 : pos+8]))
		body := pos + 8
		if body+size > len(data) {
			size = len(data) - body
		}
		switch id {
		case "fmt ":
			if size < 16 {
				return nil, 0, errors.New("malformed fmt chunk")
			}
			format = int(binary.LittleEndian.Uint16(data[body:]))
			channels = int(binary.LittleEndian.Uint16(data[body+2:]))
			sampleRate = int(binary.LittleEndian.Uint32(data[body+4:]))
			bits = int(binary.LittleEndian.Uint16(data[body+14:]))
			if format == formatExtensible && size >= 26 {
				format = int(binary.LittleEndian.Uint16(data[body+24:]))
			}
		case "data":
			pcm = data[body : body+size]
		}
		pos = body + size + size&1
	}
	if pcm == nil || channels == 0 || sampleRate == 0 {
		return nil, 0, errors.New("missing fmt or data chunk")
	}
	frameBytes := channels * bits / 8
	if frameBytes == 0 {
		return nil, 0, errors.New("zero-size frames")
	}
	frames := len(pcm) / frameBytes
	buffer := make(AudioBuffer, frames)
	for i := 0; i < frames; i++ {
		for c := 0; c < 2; c++ {
			src := c
			if src >= channels {
				src = channels - 1
			}
			off := i*frameBytes + src*bits/8
			v, err := decodeSample(pcm[off:], format, bits)
			if err != nil {
				return nil, 0, err
			}
			buffer[i][c] = v
		}
	}
	return buffer, sampleRate, nil
}

func decodeSample(b []byte, format, bits int) (float32, error) {
	switch {
	case format == formatIEEEFloat && bits == 32:
		return math.Float32frombits(binary.LittleEndian.Uint32(b)), nil
	case format == formatPCM && bits == 16:
		return float32(int16(binary.LittleEndian.Uint16(b))) / 32768, nil
	case format == formatPCM && bits == 24:
		v := int32(b[0]) | int32(b[1])<<8 | int32(b[2])<<16
		v = v << 8 >> 8 // sign extend
		return float32(v) / 8388608, nil
	case format == formatPCM && bits == 32:
		return float32(int32(binary.LittleEndian.Uint32(b))) / 2147483648, nil
	}
	return 0, fmt.Errorf("unsupported sample format %d/%d bits", format, bits)
}

// DiskPersister stores project snapshots and bounces as plain files.
type DiskPersister struct{}

func (DiskPersister) Save(path string, data []byte) error {
	return os.WriteFile(path, data, 0644)
}

func (DiskPersister) Load(path string) ([]byte, error) {
	return os.ReadFile(path)
}
