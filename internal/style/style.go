// Package style centralizes the lipgloss styles shared by the operator
// TUI's views.
package style

import (
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/lipgloss"
)

var (
	colorPink      = lipgloss.Color("205")
	colorDarkGray  = lipgloss.Color("240")
	colorLightGray = lipgloss.Color("229")
	colorCyan      = lipgloss.Color("212")
	colorRed       = lipgloss.Color("196")
	colorGreen     = lipgloss.Color("42")
)

var (
	ErrorStyle     = lipgloss.NewStyle().Foreground(colorRed)
	SuccessStyle   = lipgloss.NewStyle().Foreground(colorGreen)
	BaseStyle      = lipgloss.NewStyle().BorderStyle(lipgloss.NormalBorder()).BorderForeground(colorDarkGray)
	HighlightStyle = lipgloss.NewStyle().Foreground(colorCyan)
	HelpStyle      = lipgloss.NewStyle().Faint(true)
	TitleStyle     = lipgloss.NewStyle().Bold(true).Foreground(colorPink)
	CursorStyle    = lipgloss.NewStyle().Foreground(colorCyan).SetString("> ")
	NoCursorStyle  = lipgloss.NewStyle().SetString("  ")
	MenuItemStyle  = lipgloss.NewStyle().Foreground(colorLightGray)
)

// NewSpinner creates a spinner with the operator's consistent style.
func NewSpinner() spinner.Model {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(colorPink)
	return s
}

// NewTextInput creates a single-line input field with the operator's
// consistent style.
func NewTextInput(placeholder string) textinput.Model {
	ti := textinput.New()
	ti.Placeholder = placeholder
	ti.PromptStyle = HighlightStyle
	ti.Focus()
	return ti
}
