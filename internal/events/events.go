// Package events defines the marker-interface message types exchanged
// between the operator TUI and the peer event loop, the same shape the
// reference app uses to separate "things the TUI asked for" from "things
// the backend reports back".
package events

import "github.com/dkovalenko/udpflow/pkg/stats"

// OperatorCommand is a marker interface for messages sent from the
// operator to the peer. Only types in this package (by embedding command)
// can satisfy it.
type OperatorCommand interface {
	isOperatorCommand()
}

type command struct{}

func (command) isOperatorCommand() {}

// SendMessage asks the peer to submit a text message. FragmentSize of 0
// means "use the peer's configured default".
type SendMessage struct {
	command
	Text         string
	FragmentSize int
	CorruptFirst bool
}

// SendFile asks the peer to submit the file at Path.
type SendFile struct {
	command
	Path         string
	FragmentSize int
	CorruptFirst bool
}

// ChangeDestDir redirects where finished incoming files are written.
type ChangeDestDir struct {
	command
	Dir string
}

// Terminate asks the peer to close its socket and end the process.
type Terminate struct{ command }

// PeerEvent is a marker interface for messages sent from the peer back to
// the operator.
type PeerEvent interface {
	isPeerEvent()
}

type event struct{}

func (event) isPeerEvent() {}

// MessageReceived reports a fully reassembled incoming text message.
type MessageReceived struct {
	event
	Content []byte
}

// FileReceived reports a fully reassembled incoming file, already renamed
// into its final destination path.
type FileReceived struct {
	event
	Name string
	Path string
	MIME string
}

// TransferFinished reports the throughput snapshot of a completed send or
// receive.
type TransferFinished struct {
	event
	Snapshot stats.Snapshot
}

// PeerTerminated reports that the keep-alive supervisor (or an operator
// command) ended the connection.
type PeerTerminated struct {
	event
	Reason string
}

// PeerError reports a non-fatal problem worth surfacing in the TUI.
type PeerError struct {
	event
	Err error
}
