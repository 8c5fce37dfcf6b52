// Package session drives the per-role handshake state machine (§4.2): the
// START/ANSWER/FINISH choreography that wraps each payload transfer. It
// owns the session's sequence-number namespace and activity timestamps, but
// never touches a socket — it hands back the packets that should be sent
// and lets the caller (pkg/transport) do the I/O, the way the reference
// protocol layer stays decoupled from its status layer.
package session

import (
	"errors"
	"math/rand/v2"
	"time"

	"github.com/dkovalenko/udpflow/pkg/wire"
)

// Role fixes whether this Session is driving a local submission (Sender) or
// answering one that arrived from the peer (Receiver). A session is
// RoleNone before its first event.
type Role uint8

const (
	RoleNone Role = iota
	RoleSender
	RoleReceiver
)

// ErrWrongState is returned when an event arrives that the current state
// does not accept; callers should log and drop the triggering packet rather
// than propagate this past the event loop.
var ErrWrongState = errors.New("session: event not valid in current state")

// ErrDuplicateStart signals that an incoming START echoed
// last_processed_start_sequence and must be silently ignored per §4.2: the
// original ANSWER, if lost, will arrive again via the sender's own
// retransmit path.
var ErrDuplicateStart = errors.New("session: duplicate start sequence")

// Activity holds the three liveness timestamps named in §3: last-send,
// last-receive, last-heartbeat-ack. No method of Session updates them; the
// keep-alive supervisor keeps its own liveness timestamps.
type Activity struct {
	LastSend         time.Time
	LastReceive      time.Time
	LastHeartbeatAck time.Time
}

// Session is the live per-peer conversation described in §3. It is owned
// exclusively by the event loop that services one UDP peer; nothing in this
// package takes a lock.
type Session struct {
	role  Role
	state State
	kind  wire.FlagKind

	seq     uint32 // next sequence number this session will hand out
	startSeq uint32 // the sequence this session's START was sent/received with

	lastProcessedStartSequence uint32
	hasProcessedStart          bool

	Activity Activity
}

// New builds a Session sitting Idle, ready to accept either a local submit
// or an incoming START.
func New() *Session {
	return &Session{state: StateIdle, role: RoleNone}
}

// State reports the current node of the state machine.
func (s *Session) State() State { return s.state }

// Role reports which side of the handshake this session is currently
// playing. RoleNone while idle.
func (s *Session) Role() Role { return s.role }

// Kind reports the payload kind (message or file) of the in-flight
// transfer. Meaningless while Idle.
func (s *Session) Kind() wire.FlagKind { return s.kind }

// NextSequence hands out the next number in this session's single
// monotonic counter, which per §9 open question 1 continues from the
// randomized START seed rather than keeping a separate data-sequence
// namespace.
func (s *Session) NextSequence() uint32 {
	n := s.seq
	s.seq++
	return n
}

func (s *Session) transition(next State) error {
	if !s.state.CanTransitionTo(next) {
		return ErrWrongState
	}
	s.state = next
	return nil
}

// Submit begins the sender role: Idle -> SendingStart. It mints a random
// initial sequence number (invariant c: never reused within a session) and
// returns the START packet to transmit.
func (s *Session) Submit(kind wire.FlagKind, window uint16) (*wire.Packet, error) {
	if err := s.transition(StateSendingStart); err != nil {
		return nil, err
	}
	s.role = RoleSender
	s.kind = kind
	s.startSeq = rand.Uint32()
	s.seq = s.startSeq
	pkt := wire.NewStart(s.NextSequence(), window, kind)
	return pkt, nil
}

// OnAnswer handles an incoming ANSWER: SendingStart -> Sending, provided the
// echoed sequence matches the START this session sent. A mismatched
// sequence is treated as belonging to a stale exchange and ignored.
func (s *Session) OnAnswer(seq uint32) error {
	if s.state != StateSendingStart || seq != s.startSeq {
		return ErrWrongState
	}
	return s.transition(StateSending)
}

// RequestFinish emits the initiating FINISH once all payload bytes are
// queued and the in-flight table is empty (§4.2): Sending ->
// AwaitingFinishAck.
func (s *Session) RequestFinish(window uint16) (*wire.Packet, error) {
	if err := s.transition(StateAwaitingFinishAck); err != nil {
		return nil, err
	}
	return wire.NewFinishRequest(s.NextSequence(), window, s.kind), nil
}

// OnFinishConfirm completes the sender-side handshake: AwaitingFinishAck ->
// Idle, ready for the next queued submission.
func (s *Session) OnFinishConfirm() error {
	if err := s.transition(StateIdle); err != nil {
		return err
	}
	s.role = RoleNone
	return nil
}

// OnStart handles an incoming START on the receiver side: Idle ->
// Receiving, unless it repeats last_processed_start_sequence, in which case
// it is silently ignored (§4.2 duplicate handling).
func (s *Session) OnStart(seq uint32, kind wire.FlagKind, window uint16) (*wire.Packet, error) {
	if s.hasProcessedStart && seq == s.lastProcessedStartSequence {
		return nil, ErrDuplicateStart
	}
	if err := s.transition(StateReceiving); err != nil {
		return nil, err
	}
	s.role = RoleReceiver
	s.kind = kind
	s.startSeq = seq
	s.lastProcessedStartSequence = seq
	s.hasProcessedStart = true
	return wire.NewAnswer(seq, window, kind), nil
}

// OnFinish handles an incoming initiating FINISH on the receiver side:
// Receiving -> Idle, returning the confirming FINISH to send back. The
// confirm echoes the initiating FINISH's own sequence number, the same way
// ANSWER echoes START's.
func (s *Session) OnFinish(seq uint32, window uint16) (*wire.Packet, error) {
	if err := s.transition(StateIdle); err != nil {
		return nil, err
	}
	kind := s.kind
	s.role = RoleNone
	return wire.NewFinishConfirm(seq, window, kind), nil
}
