package tui

import (
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

type dialogKind int

const (
	dialogAlert dialogKind = iota
	dialogConfirm
	dialogPrompt
)

// dialog is a modal overlay: alert, yes/no confirmation or a one-line prompt.
type dialog struct {
	kind    dialogKind
	message string
	input   textinput.Model

	// onAccept runs on enter (confirm: "yes", prompt: the typed text).
	onAccept func(value string) tea.Cmd
}

func newAlert(message string) *dialog {
	return &dialog{kind: dialogAlert, message: message}
}

func newConfirm(message string, onYes func() tea.Cmd) *dialog {
	return &dialog{
		kind:    dialogConfirm,
		message: message,
		onAccept: func(string) tea.Cmd {
			if onYes == nil {
				return nil
			}
			return onYes()
		},
	}
}

func newPrompt(message, initial string, onOK func(value string) tea.Cmd) *dialog {
	input := textinput.New()
	input.Prompt = "› "
	input.CharLimit = 64
	input.SetValue(initial)
	input.CursorEnd()
	input.Focus()
	return &dialog{kind: dialogPrompt, message: message, input: input, onAccept: onOK}
}

// update handles one key. done reports whether the dialog should be dismissed.
func (d *dialog) update(msg tea.KeyMsg) (cmd tea.Cmd, done bool) {
	switch d.kind {
	case dialogAlert:
		if key.Matches(msg, dialogKeyMap.Yes, dialogKeyMap.No) || msg.Type == tea.KeySpace {
			return nil, true
		}
		return nil, false
	case dialogConfirm:
		switch {
		case key.Matches(msg, dialogKeyMap.Yes):
			return d.accept(""), true
		case key.Matches(msg, dialogKeyMap.No):
			return nil, true
		}
		return nil, false
	default:
		switch msg.Type {
		case tea.KeyEnter:
			return d.accept(d.input.Value()), true
		case tea.KeyEsc:
			return nil, true
		}
		var inputCmd tea.Cmd
		d.input, inputCmd = d.input.Update(msg)
		return inputCmd, false
	}
}

func (d *dialog) accept(value string) tea.Cmd {
	if d.onAccept == nil {
		return nil
	}
	return d.onAccept(value)
}

func (d *dialog) View(width int) string {
	var b strings.Builder
	b.WriteString(d.message)
	switch d.kind {
	case dialogAlert:
		b.WriteString("\n")
		b.WriteString(dialogHint.Render("enter · ок"))
	case dialogConfirm:
		b.WriteString("\n")
		b.WriteString(dialogHint.Render("y/enter · да    n/esc · нет"))
	case dialogPrompt:
		b.WriteString("\n\n")
		b.WriteString(d.input.View())
		b.WriteString("\n")
		b.WriteString(dialogHint.Render("enter · ок    esc · отмена"))
	}
	w := width / 2
	if w < 40 {
		w = 40
	}
	return dialogStyle.Width(w).Render(b.String())
}

// overlay centers the dialog over the screen body.
func overlay(width, height int, content string) string {
	if width <= 0 || height <= 0 {
		return content
	}
	return lipgloss.Place(width, height, lipgloss.Center, lipgloss.Center, content)
}
