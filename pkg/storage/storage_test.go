package storage

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileWriterAppendsAndRenamesOnFinish(t *testing.T) {
	dir := t.TempDir()
	w, err := NewFileWriter(dir, "photo.jpg", nil)
	require.NoError(t, err)

	require.NoError(t, w.Append([]byte("hello ")))
	require.NoError(t, w.Append([]byte("world")))

	tmpPath := filepath.Join(dir, "photo.jpg.tmp")
	_, err = os.Stat(tmpPath)
	assert.NoError(t, err, "temp file should exist before Finish")

	finalPath, err := w.Finish()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "photo.jpg"), finalPath)

	got, err := os.ReadFile(finalPath)
	require.NoError(t, err)
	assert.Equal(t, "hello world", string(got))

	_, err = os.Stat(tmpPath)
	assert.True(t, os.IsNotExist(err), "temp file must not remain after rename")
}

func TestFileWriterAbortRemovesTempFile(t *testing.T) {
	dir := t.TempDir()
	w, err := NewFileWriter(dir, "partial.bin", nil)
	require.NoError(t, err)
	require.NoError(t, w.Append([]byte("partial")))

	w.Abort()

	_, err = os.Stat(filepath.Join(dir, "partial.bin.tmp"))
	assert.True(t, os.IsNotExist(err))
}

func TestMessageSpillBufferStaysInMemoryBelowThreshold(t *testing.T) {
	b := NewMessageSpillBuffer(nil)
	require.NoError(t, b.Append([]byte("small message")))

	got, err := b.GetCompleteMessage()
	require.NoError(t, err)
	assert.Equal(t, "small message", string(got))
	assert.NoError(t, b.Close())
}

func TestMessageSpillBufferFlushesPastThresholdAndReassembles(t *testing.T) {
	b := NewMessageSpillBuffer(nil)
	big := bytes.Repeat([]byte("a"), SpillThreshold+10)
	require.NoError(t, b.Append(big))
	require.NoError(t, b.Append([]byte("tail")))

	got, err := b.GetCompleteMessage()
	require.NoError(t, err)
	assert.Equal(t, append(append([]byte{}, big...), []byte("tail")...), got)
	assert.NoError(t, b.Close())
}
