// Package stats tracks throughput for one payload transfer and exports a
// JSON-serializable snapshot, the way the reference transfer layer keeps a
// TransferStatus separate from the wire protocol itself.
package stats

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// SessionID is a process-unique identifier minted once per payload
// transfer, used only for local logging and the status snapshot; it never
// appears on the wire.
type SessionID string

// NewSessionID mints a fresh identifier.
func NewSessionID() SessionID {
	return SessionID(uuid.NewString())
}

// Direction distinguishes an outbound transfer this peer initiated from an
// inbound one it is receiving.
type Direction string

const (
	DirectionSend    Direction = "send"
	DirectionReceive Direction = "receive"
)

// Snapshot is the JSON-facing view of one transfer's progress, analogous to
// the reference's TransferStatus.
type Snapshot struct {
	SessionID    SessionID     `json:"session_id"`
	Direction    Direction     `json:"direction"`
	Kind         string        `json:"kind"`
	Name         string        `json:"name,omitempty"`
	BytesMoved   int64         `json:"bytes_moved"`
	TotalBytes   int64         `json:"total_bytes,omitempty"`
	FragmentsAcked int         `json:"fragments_acked"`
	StartedAt    time.Time     `json:"started_at"`
	Elapsed      time.Duration `json:"elapsed"`
	ThroughputBps float64      `json:"throughput_bps"`
}

// Tracker accumulates the running counters behind one Snapshot. It is
// owned by the same event loop goroutine that drives the transfer, so it
// needs no internal lock.
type Tracker struct {
	id         SessionID
	direction  Direction
	kind       string
	name       string
	totalBytes int64
	moved      int64
	fragments  int
	startedAt  time.Time
}

// NewTracker begins tracking a transfer.
func NewTracker(direction Direction, kind, name string, totalBytes int64) *Tracker {
	return &Tracker{
		id:         NewSessionID(),
		direction:  direction,
		kind:       kind,
		name:       name,
		totalBytes: totalBytes,
		startedAt:  time.Now(),
	}
}

// RecordFragment adds n bytes moved and increments the acknowledged
// fragment count.
func (t *Tracker) RecordFragment(n int) {
	t.moved += int64(n)
	t.fragments++
}

// Snapshot renders the tracker's current state, computing throughput over
// elapsed wall time.
func (t *Tracker) Snapshot() Snapshot {
	elapsed := time.Since(t.startedAt)
	var bps float64
	if elapsed > 0 {
		bps = float64(t.moved) / elapsed.Seconds()
	}
	return Snapshot{
		SessionID:      t.id,
		Direction:      t.direction,
		Kind:           t.kind,
		Name:           t.name,
		BytesMoved:     t.moved,
		TotalBytes:     t.totalBytes,
		FragmentsAcked: t.fragments,
		StartedAt:      t.startedAt,
		Elapsed:        elapsed,
		ThroughputBps:  bps,
	}
}

// MarshalJSON renders the snapshot as JSON, matching the reference's
// explicit-serializer pattern (json.go) but collapsed to a single method
// since there is only one wire-facing shape here, not a family of message
// types.
func (s Snapshot) MarshalJSON() ([]byte, error) {
	type alias Snapshot
	return json.Marshal(alias(s))
}
