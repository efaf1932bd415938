package tui

import (
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/table"
)

type globalKeys struct {
	Stage1 key.Binding
	Stage2 key.Binding
	Quit   key.Binding
	Force  key.Binding
	Help   key.Binding
}

type stage1Keys struct {
	Up        key.Binding
	Down      key.Binding
	Toggle    key.Binding
	SelectAll key.Binding
	Forward   key.Binding
	Ingest    key.Binding
	Reload    key.Binding
	Open      key.Binding
	Copy      key.Binding
}

type stage2Keys struct {
	Up       key.Binding
	Down     key.Binding
	Select   key.Binding
	Toggle   key.Binding
	Focus    key.Binding
	Edit     key.Binding
	Generate key.Binding
	Reload   key.Binding
	PageUp   key.Binding
	PageDown key.Binding
	Open     key.Binding
}

type modalKeys struct {
	Save   key.Binding
	Cancel key.Binding
}

type dialogKeys struct {
	Yes key.Binding
	No  key.Binding
}

var (
	globalKeyMap = globalKeys{
		Stage1: key.NewBinding(key.WithKeys("1"), key.WithHelp("1", "stage 1")),
		Stage2: key.NewBinding(key.WithKeys("2"), key.WithHelp("2", "stage 2")),
		Quit:   key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "выход")),
		Force:  key.NewBinding(key.WithKeys("ctrl+c")),
		Help:   key.NewBinding(key.WithKeys("?"), key.WithHelp("?", "подсказки")),
	}

	stage1KeyMap = stage1Keys{
		Up:        key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("↑/k", "вверх")),
		Down:      key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("↓/j", "вниз")),
		Toggle:    key.NewBinding(key.WithKeys(" ", "space"), key.WithHelp("space", "отметить")),
		SelectAll: key.NewBinding(key.WithKeys("a"), key.WithHelp("a", "выбрать все")),
		Forward:   key.NewBinding(key.WithKeys("enter", "f"), key.WithHelp("enter/f", "добавить в stage 2")),
		Ingest:    key.NewBinding(key.WithKeys("i"), key.WithHelp("i", "загрузить с ЕИС")),
		Reload:    key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "обновить")),
		Open:      key.NewBinding(key.WithKeys("o"), key.WithHelp("o", "открыть на ЕИС")),
		Copy:      key.NewBinding(key.WithKeys("y"), key.WithHelp("y", "копировать ссылку")),
	}

	stage2KeyMap = stage2Keys{
		Up:       key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("↑/k", "вверх")),
		Down:     key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("↓/j", "вниз")),
		Select:   key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "открыть")),
		Toggle:   key.NewBinding(key.WithKeys(" ", "space"), key.WithHelp("space", "в stage 3")),
		Focus:    key.NewBinding(key.WithKeys("tab"), key.WithHelp("tab", "список/поля")),
		Edit:     key.NewBinding(key.WithKeys("e"), key.WithHelp("e", "изменить поле")),
		Generate: key.NewBinding(key.WithKeys("g"), key.WithHelp("g", "запустить stage 3")),
		Reload:   key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "обновить")),
		PageUp:   key.NewBinding(key.WithKeys("pgup"), key.WithHelp("pgup", "текст вверх")),
		PageDown: key.NewBinding(key.WithKeys("pgdown"), key.WithHelp("pgdn", "текст вниз")),
		Open:     key.NewBinding(key.WithKeys("o"), key.WithHelp("o", "открыть на ЕИС")),
	}

	modalKeyMap = modalKeys{
		Save:   key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "сохранить")),
		Cancel: key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "отмена")),
	}

	dialogKeyMap = dialogKeys{
		Yes: key.NewBinding(key.WithKeys("enter", "y"), key.WithHelp("enter/y", "да")),
		No:  key.NewBinding(key.WithKeys("esc", "n"), key.WithHelp("esc/n", "нет")),
	}
)

func (k stage1Keys) ShortHelp() []key.Binding {
	return []key.Binding{k.Toggle, k.SelectAll, k.Forward, k.Ingest, k.Reload}
}

func (k stage1Keys) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Up, k.Down, k.Toggle, k.SelectAll},
		{k.Forward, k.Ingest, k.Reload},
		{k.Open, k.Copy},
	}
}

func (k stage2Keys) ShortHelp() []key.Binding {
	return []key.Binding{k.Select, k.Toggle, k.Focus, k.Edit, k.Generate}
}

func (k stage2Keys) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Up, k.Down, k.Select, k.Toggle},
		{k.Focus, k.Edit, k.PageUp, k.PageDown},
		{k.Generate, k.Reload, k.Open},
	}
}

func (k modalKeys) ShortHelp() []key.Binding { return []key.Binding{k.Save, k.Cancel} }

func (k modalKeys) FullHelp() [][]key.Binding { return [][]key.Binding{k.ShortHelp()} }

// noticeTableKeys keeps only navigation on the table: space and f belong to the screen.
func noticeTableKeys() table.KeyMap {
	return table.KeyMap{
		LineUp:       stage1KeyMap.Up,
		LineDown:     stage1KeyMap.Down,
		PageUp:       key.NewBinding(key.WithKeys("pgup")),
		PageDown:     key.NewBinding(key.WithKeys("pgdown")),
		HalfPageUp:   key.NewBinding(key.WithKeys("ctrl+u")),
		HalfPageDown: key.NewBinding(key.WithKeys("ctrl+d")),
		GotoTop:      key.NewBinding(key.WithKeys("home")),
		GotoBottom:   key.NewBinding(key.WithKeys("end")),
	}
}
