package wire

import (
	"encoding/binary"
	"fmt"
	"hash/crc32"
)

// DecodeResult distinguishes the three outcomes decoding must be able to
// report without ever panicking past the codec boundary (§4.1, §9): a
// well-formed packet, a well-formed packet whose checksum does not match,
// and a datagram that cannot be parsed as a packet at all.
type DecodeResult int

const (
	DecodeOK DecodeResult = iota
	DecodeCRCFailed
	DecodeMalformed
)

func (r DecodeResult) String() string {
	switch r {
	case DecodeOK:
		return "ok"
	case DecodeCRCFailed:
		return "crc-failed"
	case DecodeMalformed:
		return "malformed"
	default:
		return "unknown"
	}
}

// ErrMalformed wraps the specific reason a datagram failed to decode.
type ErrMalformed struct {
	Reason string
}

func (e *ErrMalformed) Error() string {
	return fmt.Sprintf("malformed packet: %s", e.Reason)
}

// Encode serializes p into its wire representation. The caller is
// responsible for having set p.Checksum via CoverageBytes beforehand;
// Encode does not compute it, so that tests can construct deliberately
// corrupt packets (scenario (d), §8).
func Encode(p *Packet) []byte {
	payload := p.Payload
	buf := make([]byte, HeaderSize+len(payload))

	binary.BigEndian.PutUint32(buf[0:4], p.SequenceNumber)
	buf[4] = byte(p.Type)
	binary.BigEndian.PutUint32(buf[5:9], p.Checksum)
	binary.BigEndian.PutUint16(buf[9:11], p.Window)
	buf[11] = p.Flags
	binary.BigEndian.PutUint16(buf[12:14], p.NameLength)
	copy(buf[HeaderSize:], payload)

	return buf
}

// Decode parses a raw datagram into a Packet. It never panics: any
// malformation yields DecodeMalformed with a nil Packet, matching the
// "ignore or request resend, never crash" contract of §4.1 and §7.
func Decode(data []byte) (*Packet, DecodeResult) {
	if len(data) < HeaderSize {
		return nil, DecodeMalformed
	}

	p := &Packet{
		SequenceNumber: binary.BigEndian.Uint32(data[0:4]),
		Type:           Type(data[4]),
		Checksum:       binary.BigEndian.Uint32(data[5:9]),
		Window:         binary.BigEndian.Uint16(data[9:11]),
		Flags:          data[11],
		NameLength:     binary.BigEndian.Uint16(data[12:14]),
	}

	if !p.Type.valid() {
		return nil, DecodeMalformed
	}

	rest := data[HeaderSize:]
	switch p.Type {
	case TypeSendFile:
		if int(p.NameLength) > len(rest) {
			return nil, DecodeMalformed
		}
		p.Payload = rest
	case TypeSendData:
		p.Payload = rest
	default:
		if len(rest) != 0 {
			return nil, DecodeMalformed
		}
		p.Payload = nil
	}

	if !isValidCRC(p) {
		return p, DecodeCRCFailed
	}
	return p, DecodeOK
}

// CoverageBytes returns the canonical CRC32 coverage region for p: the
// header fields excluding the checksum itself, followed by the payload when
// includePayload is true. Collapsing the reference implementation's two
// near-duplicate "for CRC" structs into this single helper is the
// re-architecture named in §9.
func CoverageBytes(p *Packet, includePayload bool) []byte {
	buf := make([]byte, 0, HeaderSize-4+len(p.Payload))

	var seq [4]byte
	binary.BigEndian.PutUint32(seq[:], p.SequenceNumber)
	buf = append(buf, seq[:]...)

	buf = append(buf, byte(p.Type))

	var win [2]byte
	binary.BigEndian.PutUint16(win[:], p.Window)
	buf = append(buf, win[:]...)

	buf = append(buf, p.Flags)

	var nameLen [2]byte
	binary.BigEndian.PutUint16(nameLen[:], p.NameLength)
	buf = append(buf, nameLen[:]...)

	if includePayload {
		buf = append(buf, p.Payload...)
	}
	return buf
}

// Checksum computes the CRC32 over p's canonical coverage region, choosing
// the payload-bearing or payload-free helper based on p.Type.
func Checksum(p *Packet) uint32 {
	return crc32.ChecksumIEEE(CoverageBytes(p, p.Type.HasPayload()))
}

// isValidCRC reports whether p.Checksum matches its canonical coverage.
func isValidCRC(p *Packet) bool {
	return p.Checksum == Checksum(p)
}

// Seal computes and stores p's checksum in place, then returns p for
// convenient chaining at call sites.
func Seal(p *Packet) *Packet {
	p.Checksum = Checksum(p)
	return p
}
