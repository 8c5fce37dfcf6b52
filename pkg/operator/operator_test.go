package operator

import (
	"errors"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dkovalenko/udpflow/internal/events"
	"github.com/dkovalenko/udpflow/pkg/stats"
)

func newTestModel() (Model, chan events.OperatorCommand, chan events.PeerEvent) {
	cmds := make(chan events.OperatorCommand, 4)
	evs := make(chan events.PeerEvent, 4)
	m := New(cmds, evs, 9000, "127.0.0.1:9001", "/tmp")
	return m, cmds, evs
}

func press(m Model, key tea.KeyType) Model {
	updated, _ := m.Update(tea.KeyMsg{Type: key})
	return updated.(Model)
}

func pressRune(m Model, r rune) Model {
	updated, _ := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}})
	return updated.(Model)
}

func TestMenuCursorMovesWithinBounds(t *testing.T) {
	m, _, _ := newTestModel()
	require.Equal(t, 0, m.cursor)

	m = press(m, tea.KeyUp)
	assert.Equal(t, 0, m.cursor, "cursor should clamp at top")

	for i := 0; i < len(menuItems)+2; i++ {
		m = press(m, tea.KeyDown)
	}
	assert.Equal(t, len(menuItems)-1, m.cursor, "cursor should clamp at bottom")
}

func TestSelectingSendMessageEntersComposeFlow(t *testing.T) {
	m, _, _ := newTestModel()
	m = press(m, tea.KeyEnter)
	assert.Equal(t, stateComposePrimary, m.state)
	assert.Equal(t, draftMessage, m.draftKind)
}

func TestComposeMessageFlowSubmitsSendMessageCommand(t *testing.T) {
	m, cmds, _ := newTestModel()
	m = press(m, tea.KeyEnter) // select "Send message"

	m.input.SetValue("hello there")
	m = press(m, tea.KeyEnter) // confirm primary text
	assert.Equal(t, stateComposeFragmentSize, m.state)

	m.input.SetValue("4")
	m = press(m, tea.KeyEnter) // confirm fragment size
	assert.Equal(t, stateComposeCorrupt, m.state)
	assert.Equal(t, 4, m.draftFragment)

	m = pressRune(m, 'n')
	assert.Equal(t, stateAwaitingResult, m.state)

	select {
	case cmd := <-cmds:
		sendMsg, ok := cmd.(events.SendMessage)
		require.True(t, ok)
		assert.Equal(t, "hello there", sendMsg.Text)
		assert.Equal(t, 4, sendMsg.FragmentSize)
		assert.False(t, sendMsg.CorruptFirst)
	default:
		t.Fatal("expected a SendMessage command to be emitted")
	}
}

func TestEscapeDuringComposeReturnsToMenu(t *testing.T) {
	m, _, _ := newTestModel()
	m = press(m, tea.KeyEnter)
	require.Equal(t, stateComposePrimary, m.state)

	m = press(m, tea.KeyEsc)
	assert.Equal(t, stateMenu, m.state)
}

func TestChangeDestDirEmitsCommandAndUpdatesLocalState(t *testing.T) {
	m, cmds, _ := newTestModel()
	m.cursor = 2
	m = press(m, tea.KeyEnter)
	require.Equal(t, stateComposeDestDir, m.state)

	m.input.SetValue("/srv/incoming")
	m = press(m, tea.KeyEnter)

	assert.Equal(t, stateMenu, m.state)
	assert.Equal(t, "/srv/incoming", m.destDir)

	cmd := <-cmds
	changeDir, ok := cmd.(events.ChangeDestDir)
	require.True(t, ok)
	assert.Equal(t, "/srv/incoming", changeDir.Dir)
}

func TestTerminateSelectionEmitsCommand(t *testing.T) {
	m, cmds, _ := newTestModel()
	m.cursor = 3
	m = press(m, tea.KeyEnter)

	assert.Equal(t, stateQuitting, m.state)
	cmd := <-cmds
	_, ok := cmd.(events.Terminate)
	assert.True(t, ok)
}

func TestPeerEventsAreAppendedToLog(t *testing.T) {
	m, _, _ := newTestModel()
	updated, _ := m.Update(events.MessageReceived{Content: []byte("abc")})
	m = updated.(Model)
	require.Len(t, m.log, 1)

	updated, _ = m.Update(events.TransferFinished{Snapshot: stats.Snapshot{Direction: stats.DirectionSend, Kind: "message", BytesMoved: 2048}})
	m = updated.(Model)
	require.Len(t, m.log, 2)
	assert.Contains(t, m.log[1], "KB")
}

func TestPeerErrorIsSurfacedWithoutChangingState(t *testing.T) {
	m, _, _ := newTestModel()
	updated, _ := m.Update(events.PeerError{Err: errors.New("boom")})
	m = updated.(Model)

	assert.Equal(t, stateMenu, m.state)
	require.Error(t, m.err)
	assert.Equal(t, "boom", m.err.Error())
}

func TestPeerTerminatedEndsTheProgram(t *testing.T) {
	m, _, _ := newTestModel()
	updated, cmd := m.Update(events.PeerTerminated{Reason: "heartbeat timeout"})
	m = updated.(Model)

	assert.Equal(t, stateQuitting, m.state)
	require.NotNil(t, cmd)
}
