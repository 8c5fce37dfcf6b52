// Package fragment implements the fragmentation engine (§4.3): splitting an
// outbound payload into fragment-sized SEND_DATA/SEND_FILE packets, and
// reassembling inbound fragments back into a contiguous byte stream
// regardless of arrival order.
package fragment

import (
	"bytes"
	"errors"
	"io"

	"github.com/dkovalenko/udpflow/pkg/wire"
)

// ErrFragmentSizeOutOfRange is returned when a caller asks for a fragment
// size outside the wire-supported bound.
var ErrFragmentSizeOutOfRange = errors.New("fragment: size must be between 1 and wire.MaxFragmentSize")

// SequenceSource hands out the next sequence number to stamp on an outbound
// fragment. In practice this is a *session.Session's NextSequence method.
type SequenceSource func() uint32

// Outbound is a pull-style iterator over the fragments of one payload,
// mirroring the reference chunker's Next-returns-io.EOF shape.
type Outbound struct {
	r             io.Reader
	buf           []byte
	window        uint16
	nextSeq       SequenceSource
	isFile        bool
	nameRemaining int
}

// NewMessageOutbound fragments a message payload into SEND_DATA packets.
func NewMessageOutbound(message []byte, fragmentSize int, window uint16, nextSeq SequenceSource) (*Outbound, error) {
	if fragmentSize <= 0 || fragmentSize > wire.MaxFragmentSize {
		return nil, ErrFragmentSizeOutOfRange
	}
	return &Outbound{
		r:       bytes.NewReader(message),
		buf:     make([]byte, fragmentSize),
		window:  window,
		nextSeq: nextSeq,
	}, nil
}

// NewFileOutbound fragments a file's name followed by its content into
// SEND_FILE packets, splitting the name prefix across leading fragments
// exactly as described in §4.3.
func NewFileOutbound(name string, content io.Reader, fragmentSize int, window uint16, nextSeq SequenceSource) (*Outbound, error) {
	if fragmentSize <= 0 || fragmentSize > wire.MaxFragmentSize {
		return nil, ErrFragmentSizeOutOfRange
	}
	nameBytes := []byte(name)
	return &Outbound{
		r:             io.MultiReader(bytes.NewReader(nameBytes), content),
		buf:           make([]byte, fragmentSize),
		window:        window,
		nextSeq:       nextSeq,
		isFile:        true,
		nameRemaining: len(nameBytes),
	}, nil
}

// Next produces the next fragment packet, or io.EOF once the payload is
// exhausted.
func (o *Outbound) Next() (*wire.Packet, error) {
	n, err := o.r.Read(o.buf)
	if n == 0 {
		if err == io.EOF || err == nil {
			return nil, io.EOF
		}
		return nil, err
	}

	chunk := make([]byte, n)
	copy(chunk, o.buf[:n])

	seq := o.nextSeq()
	if !o.isFile {
		return wire.NewSendData(seq, o.window, chunk), nil
	}

	take := o.nameRemaining
	if take > len(chunk) {
		take = len(chunk)
	}
	o.nameRemaining -= take

	return wire.NewSendFile(seq, o.window, uint16(take), chunk), nil
}
