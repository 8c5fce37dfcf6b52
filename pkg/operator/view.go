package operator

import (
	"fmt"
	"strings"

	"github.com/dkovalenko/udpflow/internal/style"
	"github.com/dkovalenko/udpflow/internal/util"
)

const logColumnWidth = 60

func (m Model) View() string {
	if m.state == stateQuitting {
		return "closing connection...\n"
	}

	var b strings.Builder
	b.WriteString(style.TitleStyle.Render(fmt.Sprintf("udpflow peer — local :%d, remote %s", m.localPort, m.peerAddr)))
	b.WriteString("\n")
	b.WriteString(fmt.Sprintf("destination folder: %s\n\n", m.destDir))

	switch m.state {
	case stateMenu:
		b.WriteString(m.menuView())
	case stateComposePrimary, stateComposeFragmentSize, stateComposeDestDir:
		b.WriteString(m.input.View())
		b.WriteString("\n" + style.HelpStyle.Render("enter to confirm, esc to cancel"))
	case stateComposeCorrupt:
		b.WriteString("corrupt the first outbound fragment? (y/n)\n")
		b.WriteString(style.HelpStyle.Render("used to exercise the resend path; esc to cancel"))
	case stateAwaitingResult:
		b.WriteString(fmt.Sprintf("%s transfer in flight...\n", m.spinner.View()))
	}

	b.WriteString("\n\n")
	b.WriteString(m.logView())

	if m.err != nil {
		b.WriteString("\n" + style.ErrorStyle.Render(m.err.Error()))
	}

	b.WriteString("\n\nctrl+c to quit")
	return b.String()
}

func (m Model) menuView() string {
	var b strings.Builder
	for i, item := range menuItems {
		cursor := style.NoCursorStyle.String()
		if i == m.cursor {
			cursor = style.CursorStyle.String()
		}
		b.WriteString(cursor + style.MenuItemStyle.Render(item) + "\n")
	}
	return b.String()
}

func (m Model) logView() string {
	if len(m.log) == 0 {
		return style.HelpStyle.Render("no activity yet")
	}
	var b strings.Builder
	for _, line := range m.log {
		b.WriteString(util.PadRight(line, logColumnWidth) + "\n")
	}
	return b.String()
}
