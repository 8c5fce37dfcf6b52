package stats

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTrackerAccumulatesBytesAndFragments(t *testing.T) {
	tr := NewTracker(DirectionSend, "file", "note.txt", 100)
	tr.RecordFragment(40)
	tr.RecordFragment(60)

	snap := tr.Snapshot()
	assert.Equal(t, int64(100), snap.BytesMoved)
	assert.Equal(t, 2, snap.FragmentsAcked)
	assert.Equal(t, int64(100), snap.TotalBytes)
	assert.Equal(t, DirectionSend, snap.Direction)
	assert.NotEmpty(t, snap.SessionID)
}

func TestSnapshotMarshalsToJSON(t *testing.T) {
	tr := NewTracker(DirectionReceive, "message", "", 0)
	tr.RecordFragment(5)
	snap := tr.Snapshot()

	raw, err := json.Marshal(snap)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.Equal(t, "receive", decoded["direction"])
	assert.Equal(t, float64(5), decoded["bytes_moved"])
}

func TestNewSessionIDIsUnique(t *testing.T) {
	a := NewSessionID()
	b := NewSessionID()
	assert.NotEqual(t, a, b)
}

func TestSnapshotElapsedGrowsOverTime(t *testing.T) {
	tr := NewTracker(DirectionSend, "message", "", 0)
	first := tr.Snapshot()
	time.Sleep(2 * time.Millisecond)
	second := tr.Snapshot()
	assert.Greater(t, second.Elapsed, first.Elapsed)
}
