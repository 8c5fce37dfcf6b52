// Package retransmit tracks packets that have been sent but not yet
// acknowledged, retransmitting them on timeout and clearing them on
// confirmation (§4.4). It is the "ack engine" half of the core transport.
package retransmit

import (
	"log/slog"
	"sync"
	"time"
)

// DefaultTimeout is the hard resend threshold named in §4.4.
const DefaultTimeout = 10 * time.Second

// Descriptor is the per-in-flight-packet bookkeeping record named in §3
// ("Fragment Descriptor"): the serialized bytes to resend, when it was last
// sent, and how many times it has been retried.
type Descriptor struct {
	Sequence  uint32
	Raw       []byte
	LastSent  time.Time
	RetryCount int
}

// Table is the in-flight table (§3, §4.4). It is safe for concurrent use
// because the retransmit sweep may be invoked from the event loop while a
// socket-level send path (shared across goroutines per §5) also touches it
// indirectly through Sweep's returned batch; the table itself only ever
// mutates under its own mutex.
type Table struct {
	mu      sync.Mutex
	entries map[uint32]*Descriptor
	timeout time.Duration
	log     *slog.Logger
}

// New creates an empty in-flight table with the given resend timeout.
func New(timeout time.Duration, log *slog.Logger) *Table {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if log == nil {
		log = slog.Default()
	}
	return &Table{
		entries: make(map[uint32]*Descriptor),
		timeout: timeout,
		log:     log,
	}
}

// Track records that seq was just sent with the given serialized bytes.
func (t *Table) Track(seq uint32, raw []byte) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.entries[seq] = &Descriptor{
		Sequence: seq,
		Raw:      raw,
		LastSent: time.Now(),
	}
}

// Ack removes seq from the table (its CONFIRM arrived) and returns the RTT
// sample measured against the descriptor's last send timestamp, plus
// whether an entry actually existed (a duplicate ack is harmless, §4.4).
func (t *Table) Ack(seq uint32) (rtt time.Duration, existed bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	d, ok := t.entries[seq]
	if !ok {
		return 0, false
	}
	delete(t.entries, seq)
	return time.Since(d.LastSent), true
}

// Count returns the number of packets currently outstanding.
func (t *Table) Count() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.entries)
}

// Has reports whether seq is currently tracked as in-flight.
func (t *Table) Has(seq uint32) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.entries[seq]
	return ok
}

// Clear empties the table, used when a session ends (§3 lifecycle).
func (t *Table) Clear() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.entries = make(map[uint32]*Descriptor)
}

// Sweep finds entries older than the configured timeout, refreshes their
// send timestamp and retry count, and returns their raw bytes for
// retransmission. Called opportunistically by the event loop (§4.4, §5).
func (t *Table) Sweep(now time.Time) [][]byte {
	t.mu.Lock()
	defer t.mu.Unlock()

	var due [][]byte
	for seq, d := range t.entries {
		if now.Sub(d.LastSent) >= t.timeout {
			d.LastSent = now
			d.RetryCount++
			due = append(due, d.Raw)
			t.log.Debug("retransmit timeout", "seq", seq, "retry_count", d.RetryCount)
		}
	}
	return due
}

// RawFor returns the currently tracked raw bytes for seq, used to satisfy
// an explicit RESEND request without re-fragmenting (§4.4 "finalRequest").
func (t *Table) RawFor(seq uint32) ([]byte, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	d, ok := t.entries[seq]
	if !ok {
		return nil, false
	}
	return d.Raw, true
}

// UpdateRaw replaces the tracked bytes for seq (used after re-sealing a
// packet with a fresh checksum in response to RESEND) and refreshes its
// send timestamp.
func (t *Table) UpdateRaw(seq uint32, raw []byte) {
	t.mu.Lock()
	defer t.mu.Unlock()
	d, ok := t.entries[seq]
	if !ok {
		return
	}
	d.Raw = raw
	d.LastSent = time.Now()
}
