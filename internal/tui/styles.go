package tui

import "github.com/charmbracelet/lipgloss"

var (
	colorAccent  = lipgloss.Color("#5B8DEF")
	colorBrand   = lipgloss.Color("#FF6B6B")
	colorMuted   = lipgloss.Color("#888888")
	colorDim     = lipgloss.Color("#AAAAAA")
	colorBorder  = lipgloss.Color("#444444")
	colorOK      = lipgloss.Color("#4CAF50")
	colorWarn    = lipgloss.Color("#F7B801")
	colorChecked = lipgloss.Color("#2E7D32")

	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(colorBrand)
	tabStyle    = lipgloss.NewStyle().Foreground(colorMuted).Padding(0, 1)
	tabActive   = lipgloss.NewStyle().Bold(true).Foreground(colorAccent).Padding(0, 1).Underline(true)
	panelStyle  = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(colorBorder).Padding(0, 1)
	panelTitle  = lipgloss.NewStyle().Bold(true).Foreground(colorAccent)
	mutedStyle  = lipgloss.NewStyle().Foreground(colorMuted)
	dimStyle    = lipgloss.NewStyle().Foreground(colorDim)
	statStyle   = lipgloss.NewStyle().Bold(true)
	footerStyle = lipgloss.NewStyle().Foreground(colorMuted).MarginTop(1)

	buttonStyle         = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#FFFFFF")).Background(colorAccent).Padding(0, 1)
	buttonDisabledStyle = lipgloss.NewStyle().Foreground(colorMuted).Background(lipgloss.Color("#2A2A2A")).Padding(0, 1)

	rowActiveStyle   = lipgloss.NewStyle().Bold(true).Foreground(colorAccent)
	rowCheckedStyle  = lipgloss.NewStyle().Foreground(colorChecked)
	rowCursorStyle   = lipgloss.NewStyle().Reverse(true)
	overrideStyle    = lipgloss.NewStyle().Bold(true).Foreground(colorWarn)
	overrideRowLabel = lipgloss.NewStyle().Foreground(colorWarn)
	aiValueStyle     = lipgloss.NewStyle().Foreground(colorOK)

	dialogStyle = lipgloss.NewStyle().
			Border(lipgloss.DoubleBorder()).
			BorderForeground(colorAccent).
			Padding(1, 2)
	dialogHint = lipgloss.NewStyle().Foreground(colorDim).MarginTop(1)
)

// button is an action with a label that can be disabled while its request runs.
type button struct {
	label    string
	disabled bool
}

func (b button) View() string {
	if b.disabled {
		return buttonDisabledStyle.Render(b.label)
	}
	return buttonStyle.Render(b.label)
}

func checkbox(checked bool) string {
	if checked {
		return "[x]"
	}
	return "[ ]"
}
