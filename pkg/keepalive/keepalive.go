// Package keepalive implements the heartbeat supervisor (§4.6): it emits
// KEEPALIVE packets on idle, tracks consecutive reply failures, and signals
// termination once the failure threshold is breached.
package keepalive

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

const (
	// Interval is how often the supervisor checks for idleness and, if
	// idle, emits a heartbeat.
	Interval = 5 * time.Second
	// ReplyTimeout is how long without a KEEPALIVE_REPLY before a failure
	// is counted.
	ReplyTimeout = 15 * time.Second
	// FailureThreshold is the number of consecutive failures that triggers
	// termination.
	FailureThreshold = 3
)

// Sender is the minimal capability the supervisor needs from the transport:
// the ability to emit one KEEPALIVE packet carrying the given sequence
// number.
type Sender interface {
	SendKeepAlive(seq uint32)
}

// Supervisor runs the cooperative heartbeat task described in §4.6 and §5.
// Its mutable fields (failure count, last-activity timestamps) are accessed
// through atomics so the event loop's NoteActivity/NoteReply calls and the
// supervisor's own ticking goroutine never need a shared lock (§5 "shared
// timestamp cells for liveness").
type Supervisor struct {
	sender Sender
	log    *slog.Logger

	interval         time.Duration
	replyTimeout     time.Duration
	failureThreshold int

	lastActivityUnixNano atomic.Int64
	lastReplyUnixNano    atomic.Int64
	failures             atomic.Int32
	nextSeq              atomic.Uint32

	onTerminate func(reason string)

	wg     sync.WaitGroup
	cancel context.CancelFunc
}

// New builds a Supervisor using the package defaults for interval, reply
// timeout and failure threshold. onTerminate is invoked exactly once, from
// the supervisor's own goroutine, when the failure threshold is reached
// (invariant f: "no silent drift").
func New(sender Sender, log *slog.Logger, onTerminate func(reason string)) *Supervisor {
	return NewWithParams(sender, Interval, ReplyTimeout, FailureThreshold, log, onTerminate)
}

// NewWithParams builds a Supervisor with caller-chosen timing, letting a
// transport.Config override the defaults named in §4.6.
func NewWithParams(sender Sender, interval, replyTimeout time.Duration, failureThreshold int, log *slog.Logger, onTerminate func(reason string)) *Supervisor {
	if log == nil {
		log = slog.Default()
	}
	if interval <= 0 {
		interval = Interval
	}
	if replyTimeout <= 0 {
		replyTimeout = ReplyTimeout
	}
	if failureThreshold <= 0 {
		failureThreshold = FailureThreshold
	}
	s := &Supervisor{
		sender:           sender,
		log:              log,
		interval:         interval,
		replyTimeout:     replyTimeout,
		failureThreshold: failureThreshold,
		onTerminate:      onTerminate,
	}
	now := time.Now().UnixNano()
	s.lastActivityUnixNano.Store(now)
	s.lastReplyUnixNano.Store(now)
	return s
}

// Start launches the supervisor's background loop.
func (s *Supervisor) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.wg.Add(1)
	go s.run(ctx)
}

// Stop cancels the background loop and waits for it to exit.
func (s *Supervisor) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
}

// NoteActivity records that a packet was just sent, deferring the next
// idle-triggered heartbeat (§4.6: "wakes ... if wall-time since last
// outbound activity exceeds the interval").
func (s *Supervisor) NoteActivity() {
	s.lastActivityUnixNano.Store(time.Now().UnixNano())
}

// NoteReply records receipt of a KEEPALIVE_REPLY: it zeroes the failure
// counter and updates the last-ack timestamp.
func (s *Supervisor) NoteReply() {
	s.lastReplyUnixNano.Store(time.Now().UnixNano())
	s.failures.Store(0)
}

// SeedSequence primes the sequence counter used for outgoing KEEPALIVEs so
// it continues from the session's last-known sequence, per §4.6
// ("sequence = last-known +1").
func (s *Supervisor) SeedSequence(last uint32) {
	s.nextSeq.Store(last + 1)
}

func (s *Supervisor) run(ctx context.Context) {
	defer s.wg.Done()
	// Wake often enough to notice an overdue reply even when the reply
	// timeout is shorter than the heartbeat interval.
	period := s.interval
	if s.replyTimeout < period {
		period = s.replyTimeout
	}
	ticker := time.NewTicker(period)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.tick()
		}
	}
}

func (s *Supervisor) tick() {
	now := time.Now()
	lastActivity := time.Unix(0, s.lastActivityUnixNano.Load())
	if now.Sub(lastActivity) >= s.interval {
		seq := s.nextSeq.Add(1) - 1
		s.sender.SendKeepAlive(seq)
		s.log.Debug("keepalive sent", "seq", seq)
	}

	lastReply := time.Unix(0, s.lastReplyUnixNano.Load())
	if now.Sub(lastReply) > s.replyTimeout {
		n := s.failures.Add(1)
		s.log.Warn("keepalive reply overdue", "consecutive_failures", n)
		if int(n) == s.failureThreshold {
			s.log.Error("heartbeat failure threshold breached, terminating connection")
			if s.onTerminate != nil {
				s.onTerminate("heartbeat failure threshold breached")
			}
		}
	}
}
