package operator

import (
	"strconv"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/dkovalenko/udpflow/internal/events"
	"github.com/dkovalenko/udpflow/internal/style"
)

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.Type == tea.KeyCtrlC {
		m.state = stateQuitting
		return m, tea.Quit
	}

	switch m.state {
	case stateMenu:
		return m.handleMenuKey(msg)
	case stateComposePrimary, stateComposeFragmentSize, stateComposeDestDir:
		return m.handleTextInputKey(msg)
	case stateComposeCorrupt:
		return m.handleCorruptKey(msg)
	}
	return m, nil
}

func (m Model) handleMenuKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyUp:
		if m.cursor > 0 {
			m.cursor--
		}
	case tea.KeyDown:
		if m.cursor < len(menuItems)-1 {
			m.cursor++
		}
	case tea.KeyEnter:
		return m.selectMenuItem()
	}
	return m, nil
}

func (m Model) selectMenuItem() (tea.Model, tea.Cmd) {
	switch m.cursor {
	case 0:
		m.draftKind = draftMessage
		m.state = stateComposePrimary
		m.input = style.NewTextInput("message text")
	case 1:
		m.draftKind = draftFile
		m.state = stateComposePrimary
		m.input = style.NewTextInput("path to file")
	case 2:
		m.state = stateComposeDestDir
		m.input = style.NewTextInput(m.destDir)
	case 3:
		m.commands <- events.Terminate{}
		m.state = stateQuitting
		return m, nil
	}
	return m, nil
}

func (m Model) handleTextInputKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.Type == tea.KeyEsc {
		m.state = stateMenu
		return m, nil
	}
	if msg.Type == tea.KeyEnter {
		return m.advanceCompose()
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) advanceCompose() (tea.Model, tea.Cmd) {
	switch m.state {
	case stateComposePrimary:
		m.draftPrimary = m.input.Value()
		m.state = stateComposeFragmentSize
		m.input = style.NewTextInput("fragment size (blank for default)")
	case stateComposeFragmentSize:
		m.draftFragment = 0
		if v := m.input.Value(); v != "" {
			if n, err := strconv.Atoi(v); err == nil && n > 0 {
				m.draftFragment = n
			}
		}
		m.state = stateComposeCorrupt
	case stateComposeDestDir:
		dir := m.input.Value()
		if dir != "" {
			m.destDir = dir
			m.commands <- events.ChangeDestDir{Dir: dir}
			m.pushLog("destination folder set to " + dir)
		}
		m.state = stateMenu
	}
	return m, nil
}

func (m Model) handleCorruptKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "y", "Y":
		m.submitDraft(true)
		m.state = stateAwaitingResult
	case "n", "N", "enter":
		m.submitDraft(false)
		m.state = stateAwaitingResult
	case "esc":
		m.state = stateMenu
	}
	return m, nil
}

func (m *Model) submitDraft(corrupt bool) {
	switch m.draftKind {
	case draftMessage:
		m.commands <- events.SendMessage{Text: m.draftPrimary, FragmentSize: m.draftFragment, CorruptFirst: corrupt}
	case draftFile:
		m.commands <- events.SendFile{Path: m.draftPrimary, FragmentSize: m.draftFragment, CorruptFirst: corrupt}
	}
	m.draftKind = draftNone
	m.draftPrimary = ""
	m.draftFragment = 0
}
