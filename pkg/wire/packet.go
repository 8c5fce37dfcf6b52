// Package wire defines the on-the-wire packet format shared by both peers:
// a fixed 14-byte header plus an optional payload, and the CRC32 coverage
// rules used to detect corruption.
package wire

import "fmt"

// Type identifies the role a packet plays in the session handshake, the data
// transfer, or the keep-alive exchange.
type Type uint8

const (
	TypeStart Type = iota
	TypeAnswer
	TypeFinish
	TypeSendData
	TypeConfirmData
	TypeResend
	TypeKeepAlive
	TypeKeepAliveReply
	TypeSendFile
	TypeConfirmFile
)

func (t Type) String() string {
	switch t {
	case TypeStart:
		return "START"
	case TypeAnswer:
		return "ANSWER"
	case TypeFinish:
		return "FINISH"
	case TypeSendData:
		return "SEND_DATA"
	case TypeConfirmData:
		return "CONFIRM_DATA"
	case TypeResend:
		return "RESEND"
	case TypeKeepAlive:
		return "KEEPALIVE"
	case TypeKeepAliveReply:
		return "KEEPALIVE_REPLY"
	case TypeSendFile:
		return "SEND_FILE"
	case TypeConfirmFile:
		return "CONFIRM_FILE"
	default:
		return fmt.Sprintf("UNKNOWN(%d)", uint8(t))
	}
}

// HasPayload reports whether this packet type carries a payload on the wire,
// which decides which CRC coverage helper applies (§4.1).
func (t Type) HasPayload() bool {
	return t == TypeSendData || t == TypeSendFile
}

// valid reports whether t is one of the ten known wire types.
func (t Type) valid() bool {
	return t <= TypeConfirmFile
}

// Flag values carried in the 8-bit flags field. START/ANSWER use the kind
// bit to say "this session carries a file" vs "this session carries a
// message". FINISH uses four distinct values so the initiating FINISH and
// the confirming FINISH can never be confused on the wire (§4.2).

// FlagKind is the payload-kind bit used on START and ANSWER.
type FlagKind uint8

const (
	KindMessage FlagKind = 0
	KindFile    FlagKind = 1
)

// FinishFlag is the four-value encoding FINISH uses to distinguish an
// initiating FINISH from its confirmation, per payload kind (§4.2). These
// exact values are part of the wire contract and must never change.
type FinishFlag uint8

const (
	FinishMessageConfirm FinishFlag = 0
	FinishFileRequest    FinishFlag = 1
	FinishFileConfirm    FinishFlag = 2
	FinishMessageRequest FinishFlag = 3
)

// HeaderSize is the fixed width, in bytes, of every packet's header:
// sequence_number(4) + type(1) + checksum(4) + window(2) + flags(1) + name_length(2).
const HeaderSize = 14

// MaxFragmentSize is the hard cap on a serialized packet's payload-bearing
// portion, sized to clear a typical Ethernet MTU minus IP+UDP headers.
const MaxFragmentSize = 1458

// Packet is the decoded, in-memory form of one datagram.
type Packet struct {
	SequenceNumber uint32
	Type           Type
	Checksum       uint32
	Window         uint16
	Flags          uint8
	NameLength     uint16
	Payload        []byte // raw wire payload: opaque bytes, or name‖content for SEND_FILE
}

// PayloadKind is the tagged-variant discriminant for a logical Payload,
// replacing the nil-vs-non-nil discrimination of the reference
// implementation (§9 re-architectures).
type PayloadKind uint8

const (
	PayloadNone PayloadKind = iota
	PayloadMessage
	PayloadFile
)

// Payload is the logical unit handed to the transport by the local caller,
// or reconstructed by the receiver. Exactly one of Message or (Name,
// Content) is meaningful, selected by Kind. FragmentSize and CorruptFirst
// let one submission override the peer's configured defaults; zero/false
// mean "use the configured default".
type Payload struct {
	Kind         PayloadKind
	Message      []byte
	Name         string
	Content      []byte
	FragmentSize int
	CorruptFirst bool
}

// Bytes returns the payload's serialized body: raw bytes for a message,
// name‖content for a file, nothing for PayloadNone.
func (p Payload) Bytes() []byte {
	switch p.Kind {
	case PayloadMessage:
		return p.Message
	case PayloadFile:
		out := make([]byte, 0, len(p.Name)+len(p.Content))
		out = append(out, p.Name...)
		out = append(out, p.Content...)
		return out
	default:
		return nil
	}
}

// Size returns the total byte length of the logical payload.
func (p Payload) Size() int64 {
	switch p.Kind {
	case PayloadMessage:
		return int64(len(p.Message))
	case PayloadFile:
		return int64(len(p.Name) + len(p.Content))
	default:
		return 0
	}
}
