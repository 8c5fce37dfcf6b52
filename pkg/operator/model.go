// Package operator implements the bubbletea-driven terminal menu an
// operator uses to drive one peer connection: send a file or message,
// redirect where finished files land, or terminate the session.
package operator

import (
	"strconv"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"

	"github.com/dkovalenko/udpflow/internal/events"
	"github.com/dkovalenko/udpflow/internal/style"
	"github.com/dkovalenko/udpflow/internal/util"
)

type state int

const (
	stateMenu state = iota
	stateComposePrimary
	stateComposeFragmentSize
	stateComposeCorrupt
	stateComposeDestDir
	stateAwaitingResult
	stateQuitting
)

type draftKind int

const (
	draftNone draftKind = iota
	draftMessage
	draftFile
)

const maxLogLines = 6

var menuItems = []string{
	"Send message",
	"Send file",
	"Change destination folder",
	"Terminate",
}

// Model is the bubbletea model driving the operator menu. It never talks
// to the socket directly; every effect crosses the commands channel, and
// every fact about the connection arrives on peerEvents.
type Model struct {
	commands   chan<- events.OperatorCommand
	peerEvents <-chan events.PeerEvent

	localPort int
	peerAddr  string
	destDir   string

	spinner spinner.Model
	input   textinput.Model

	state  state
	cursor int

	draftKind     draftKind
	draftPrimary  string
	draftFragment int

	log []string
	err error
}

// New builds the operator model. commands is the channel the peer's
// bridging goroutine reads from; peerEvents is the channel it writes to.
func New(commands chan<- events.OperatorCommand, peerEvents <-chan events.PeerEvent, localPort int, peerAddr, destDir string) Model {
	return Model{
		commands:   commands,
		peerEvents: peerEvents,
		localPort:  localPort,
		peerAddr:   peerAddr,
		destDir:    destDir,
		spinner:    style.NewSpinner(),
		input:      style.NewTextInput(""),
		state:      stateMenu,
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.listenForPeerEvents())
}

// listenForPeerEvents blocks for exactly one event, then re-arms itself;
// the model re-issues this command after handling whatever it receives.
func (m Model) listenForPeerEvents() tea.Cmd {
	return func() tea.Msg {
		return <-m.peerEvents
	}
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case events.MessageReceived:
		m.pushLog("received message (" + strconv.Itoa(len(msg.Content)) + " bytes)")
		return m, m.listenForPeerEvents()
	case events.FileReceived:
		line := "received file " + msg.Name + " -> " + msg.Path
		if msg.MIME != "" {
			line += " (" + msg.MIME + ")"
		}
		m.pushLog(line)
		return m, m.listenForPeerEvents()
	case events.TransferFinished:
		snap := msg.Snapshot
		m.pushLog(string(snap.Direction) + " " + snap.Kind + " complete: " + util.FormatSize(snap.BytesMoved))
		if m.state == stateAwaitingResult {
			m.state = stateMenu
		}
		return m, m.listenForPeerEvents()
	case events.PeerTerminated:
		m.pushLog("connection terminated: " + msg.Reason)
		m.state = stateQuitting
		return m, tea.Quit
	case events.PeerError:
		m.err = msg.Err
		return m, m.listenForPeerEvents()
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	case tea.KeyMsg:
		return m.handleKey(msg)
	}
	return m, nil
}

func (m *Model) pushLog(line string) {
	m.log = append(m.log, line)
	if len(m.log) > maxLogLines {
		m.log = m.log[len(m.log)-maxLogLines:]
	}
}
