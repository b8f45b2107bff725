package reelforge

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"
)

// BitDepth selects the sample format of an exported file.
type BitDepth int

const (
	BitDepth16 BitDepth = 16
	BitDepth24 BitDepth = 24
	BitDepth32 BitDepth = 32 // 32-bit IEEE float
)

// Wav converts a stereo buffer into a valid WAV file at the given sample rate
// and bit depth.
func Wav(buffer AudioBuffer, sampleRate int, depth BitDepth) ([]byte, error) {
	buf := new(bytes.Buffer)
	wavHeader(len(buffer)*2, sampleRate, depth, buf)
	err := rawToBuffer(buffer, depth, buf)
	if err != nil {
		return nil, fmt.Errorf("Wav failed: %w", err)
	}
	return buf.Bytes(), nil
}

// Raw converts a stereo buffer into headerless samples at the given bit
// depth, interleaved L R.
func Raw(buffer AudioBuffer, depth BitDepth) ([]byte, error) {
	buf := new(bytes.Buffer)
	err := rawToBuffer(buffer, depth, buf)
	if err != nil {
		return nil, fmt.Errorf("Raw failed: %w", err)
	}
	return buf.Bytes(), nil
}

func rawToBuffer(data AudioBuffer, depth BitDepth, buf *bytes.Buffer) error {
	var err error
	switch depth {
	case BitDepth16:
		int16data := make([]int16, len(data)*2)
		for i, v := range data {
			int16data[i*2] = int16(clampInt(int(v[0]*math.MaxInt16), math.MinInt16, math.MaxInt16))
			int16data[i*2+1] = int16(clampInt(int(v[1]*math.MaxInt16), math.MinInt16, math.MaxInt16))
		}
		err = binary.Write(buf, binary.LittleEndian, int16data)
	case BitDepth24:
		b := make([]byte, 0, len(data)*6)
		for _, v := range data {
			for chn := 0; chn < 2; chn++ {
				s := clampInt(int(float64(v[chn])*(1<<23)), -(1 << 23), 1<<23-1)
				b = append(b, byte(s), byte(s>>8), byte(s>>16))
			}
		}
		_, err = buf.Write(b)
	case BitDepth32:
		float32data := make([]float32, len(data)*2)
		for i, v := range data {
			float32data[i*2] = v[0]
			float32data[i*2+1] = v[1]
		}
		err = binary.Write(buf, binary.LittleEndian, float32data)
	default:
		return fmt.Errorf("unsupported bit depth %d", depth)
	}
	if err != nil {
		return fmt.Errorf("could not binary write data to binary buffer: %w", err)
	}
	return nil
}

// wavHeader writes a wave header into the bytes.Buffer. bufferLength is the
// number of individual samples (stereo frames times two). Refer to:
// http://www-mmsp.ece.mcgill.ca/Documents/AudioFormats/WAVE/WAVE.html
func wavHeader(bufferLength, sampleRate int, depth BitDepth, buf *bytes.Buffer) {
	numChannels := 2
	bytesPerSample := int(depth) / 8
	var chunkSize, fmtChunkSize, waveFormat int
	var factChunk bool
	if depth == BitDepth32 {
		chunkSize = 50 + bytesPerSample*bufferLength
		fmtChunkSize = 18
		waveFormat = 3 // IEEE float
		factChunk = true
	} else {
		chunkSize = 36 + bytesPerSample*bufferLength
		fmtChunkSize = 16
		waveFormat = 1 // PCM
		factChunk = false
	}
	buf.Write([]byte("RIFF"))
	binary.Write(buf, binary.LittleEndian, uint32(chunkSize))
	buf.Write([]byte("WAVE"))
	buf.Write([]byte("fmt "))
	binary.Write(buf, binary.LittleEndian, uint32(fmtChunkSize))
	binary.Write(buf, binary.LittleEndian, uint16(waveFormat))
	binary.Write(buf, binary.LittleEndian, uint16(numChannels))
	binary.Write(buf, binary.LittleEndian, uint32(sampleRate))
	binary.Write(buf, binary.LittleEndian, uint32(sampleRate*numChannels*bytesPerSample)) // avgBytesPerSec
	binary.Write(buf, binary.LittleEndian, uint16(numChannels*bytesPerSample))            // blockAlign
	binary.Write(buf, binary.LittleEndian, uint16(8*bytesPerSample))                      // bits per sample
	if fmtChunkSize > 16 {
		binary.Write(buf, binary.LittleEndian, uint16(0)) // size of extension
	}
	if factChunk {
		buf.Write([]byte("fact"))
		binary.Write(buf, binary.LittleEndian, uint32(4))              // fact chunk size
		binary.Write(buf, binary.LittleEndian, uint32(bufferLength/2)) // sample length per channel
	}
	buf.Write([]byte("data"))
	binary.Write(buf, binary.LittleEndian, uint32(bytesPerSample*bufferLength))
}

func clampInt(value, min, max int) int {
	if value < min {
		return min
	}
	if value > max {
		return max
	}
	return value
}
