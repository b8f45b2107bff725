package oto

import (
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	reelforge "github.com/Bojan20/reelforge-standalone-sub003"
)

func TestFloatBufferToLE(t *testing.T) {
	buf := reelforge.AudioBuffer{{1.0, -1.0}}
	out := floatBufferToLE(buf, nil)
	require.Len(t, out, 8)
	// 1.0 = 0x3f800000, -1.0 = 0xbf800000, little endian
	assert.Equal(t, []byte{0, 0, 0x80, 0x3f, 0, 0, 0x80, 0xbf}, out)
}

func TestByteFIFOReadBack(t *testing.T) {
	f := newByteFIFO(1024)
	require.NoError(t, f.Write([]byte{1, 2, 3, 4}))

	p := make([]byte, 3)
	n, err := f.Read(p)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Equal(t, []byte{1, 2, 3}, p)

	n, err = f.Read(p)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, byte(4), p[0])
}

func TestByteFIFOEmptyReadsSilence(t *testing.T) {
	f := newByteFIFO(1024)
	p := []byte{9, 9, 9, 9}
	n, err := f.Read(p)
	require.NoError(t, err)
	assert.Equal(t, len(p), n, "an empty fifo yields a full block of silence")
	assert.Equal(t, []byte{0, 0, 0, 0}, p)
}

func TestByteFIFOWriteBlocksOverLimit(t *testing.T) {
	f := newByteFIFO(4)
	require.NoError(t, f.Write(make([]byte, 8))) // first write always lands

	unblocked := make(chan struct{})
	go func() {
		f.Write([]byte{1}) //nolint:errcheck
		close(unblocked)
	}()

	select {
	case <-unblocked:
		t.Fatal("write over the limit did not block")
	case <-time.After(20 * time.Millisecond):
	}

	// draining below the limit releases the writer
	p := make([]byte, 8)
	_, err := f.Read(p)
	require.NoError(t, err)
	select {
	case <-unblocked:
	case <-time.After(2 * time.Second):
		t.Fatal("write did not resume after drain")
	}
}

func TestByteFIFOClose(t *testing.T) {
	f := newByteFIFO(1024)
	require.NoError(t, f.Write([]byte{1, 2}))
	f.Close()

	p := make([]byte, 4)
	n, err := f.Read(p)
	require.NoError(t, err)
	assert.Equal(t, 2, n, "queued bytes drain after close")

	_, err = f.Read(p)
	assert.ErrorIs(t, err, io.EOF)

	assert.ErrorIs(t, f.Write([]byte{3}), io.ErrClosedPipe)
}
