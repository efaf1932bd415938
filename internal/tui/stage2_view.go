package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"go.uber.org/zap"

	"github.com/kingrea/zakupki-desk/internal/api"
	"github.com/kingrea/zakupki-desk/internal/procurement"
)

const (
	stage3Running     = "Генерация..."
	noPromotionNotice = "Выберите закупки галочками для генерации ссылок"
	saveError         = "Ошибка сохранения"
)

type reviewLoadedMsg struct {
	mount int
	items []procurement.ReviewItem
	err   error
}

type overridesLoadedMsg struct {
	mount     int
	regNumber string
	overrides procurement.Overrides
	err       error
}

type overrideSavedMsg struct {
	mount     int
	regNumber string
	field     string
	value     string
	result    api.ActionResult
	err       error
}

type stage3DoneMsg struct {
	mount  int
	sent   int
	result api.ActionResult
	err    error
}

func (m reviewLoadedMsg) mountID() int    { return m.mount }
func (m overridesLoadedMsg) mountID() int { return m.mount }
func (m overrideSavedMsg) mountID() int   { return m.mount }
func (m stage3DoneMsg) mountID() int      { return m.mount }

type stage2Focus int

const (
	focusList stage2Focus = iota
	focusFields
)

// editModal is the override editor for one field of the active record.
type editModal struct {
	key     string
	label   string
	aiValue string
	initial string
	input   textinput.Model
}

func (m *editModal) dirty() bool {
	return m != nil && m.input.Value() != m.initial
}

// stage2View is the AI review screen.
type stage2View struct {
	app   *App
	mount int

	items     []procurement.ReviewItem
	promotion *procurement.SelectionSet
	list      procurement.ReviewList
	listIdx   int

	// active is the record open in the workspace; empty when none.
	active    string
	overrides procurement.Overrides
	workspace *procurement.Workspace
	loading   bool
	fieldIdx  int
	focus     stage2Focus
	text      viewport.Model
	modal     *editModal

	running bool
	trigger button

	width  int
	height int
}

func newStage2View(app *App, mount int) *stage2View {
	v := &stage2View{
		app:       app,
		mount:     mount,
		promotion: procurement.NewSelectionSet(),
		overrides: procurement.Overrides{},
		text:      viewport.New(40, 12),
	}
	v.renderList(nil)
	v.updateStats()
	return v
}

func (v *stage2View) Init() tea.Cmd {
	return v.loadList()
}

func (v *stage2View) resize(width, height int) {
	if width <= 0 || height <= 0 {
		return
	}
	v.width = width
	v.height = height
	v.text.Width = max(20, width/3-4)
	v.text.Height = max(5, height-16)
}

// capturesInput reports whether keys belong to the edit modal.
func (v *stage2View) capturesInput() bool { return v.modal != nil }

// dirty reports an override edit with unsaved changes.
func (v *stage2View) dirty() bool { return v.modal.dirty() }

// loadList fetches the review items.
func (v *stage2View) loadList() tea.Cmd {
	backend, ctx, mount := v.app.backend, v.app.ctx, v.mount
	return func() tea.Msg {
		items, err := backend.ListReviewItems(ctx)
		return reviewLoadedMsg{mount: mount, items: items, err: err}
	}
}

func (v *stage2View) Update(msg tea.Msg) tea.Cmd {
	switch m := msg.(type) {
	case reviewLoadedMsg:
		if m.err != nil {
			v.app.logger.Warn("load review items", zap.Error(m.err))
			v.app.logError("Загрузка Stage 2: %v", m.err)
			v.app.alert(loadError)
			return nil
		}
		v.items = m.items
		present := make(map[string]bool, len(v.items))
		for _, item := range v.items {
			present[item.RegNumber] = true
		}
		if dropped := v.promotion.Retain(func(reg string) bool { return present[reg] }); dropped > 0 {
			v.app.logInfo("Сняты отметки с %d исчезнувших закупок", dropped)
		}
		v.active = ""
		v.workspace = nil
		v.loading = false
		v.focus = focusList
		v.renderList(v.items)
		v.updateStats()
		v.app.logInfo("Stage 2: %d закупок на проверке", len(v.items))
		return nil

	case overridesLoadedMsg:
		if m.regNumber != v.active {
			return nil
		}
		if m.err != nil {
			v.app.logger.Debug("fetch overrides", zap.String("reg_number", m.regNumber), zap.Error(m.err))
			m.overrides = procurement.Overrides{}
		}
		v.overrides = m.overrides
		v.loading = false
		if item, ok := procurement.FindItem(v.items, v.active); ok {
			v.renderWorkspace(item)
		}
		return nil

	case overrideSavedMsg:
		return v.handleOverrideSaved(m)

	case stage3DoneMsg:
		return v.handleStage3Done(m)

	case tea.KeyMsg:
		if v.modal != nil {
			return v.updateModal(m)
		}
		return v.handleKey(m)
	}
	return nil
}

func (v *stage2View) handleKey(msg tea.KeyMsg) tea.Cmd {
	switch {
	case key.Matches(msg, stage2KeyMap.Generate):
		if v.running {
			return nil
		}
		v.runStage3()
		return nil
	case key.Matches(msg, stage2KeyMap.Reload):
		return v.loadList()
	case key.Matches(msg, stage2KeyMap.Focus):
		if v.workspace != nil && v.focus == focusList {
			v.focus = focusFields
		} else {
			v.focus = focusList
		}
		return nil
	case key.Matches(msg, stage2KeyMap.PageUp):
		v.text.HalfViewUp()
		return nil
	case key.Matches(msg, stage2KeyMap.PageDown):
		v.text.HalfViewDown()
		return nil
	case key.Matches(msg, stage2KeyMap.Open):
		if v.active != "" {
			return v.app.openLink(v.active)
		}
		return nil
	case key.Matches(msg, stage2KeyMap.Edit):
		v.editCurrentField()
		return nil
	}

	if v.focus == focusFields && v.workspace != nil {
		if v.loading {
			return nil
		}
		switch {
		case key.Matches(msg, stage2KeyMap.Up):
			v.fieldIdx = max(0, v.fieldIdx-1)
		case key.Matches(msg, stage2KeyMap.Down):
			v.fieldIdx = min(len(v.workspace.Fields)-1, v.fieldIdx+1)
		case key.Matches(msg, stage2KeyMap.Select):
			v.editCurrentField()
		}
		return nil
	}

	switch {
	case key.Matches(msg, stage2KeyMap.Up):
		v.listIdx = max(0, v.listIdx-1)
	case key.Matches(msg, stage2KeyMap.Down):
		v.listIdx = min(len(v.list.Rows)-1, v.listIdx+1)
		v.listIdx = max(0, v.listIdx)
	case key.Matches(msg, stage2KeyMap.Toggle):
		if reg, ok := v.cursorRegNumber(); ok {
			v.toggleStage3Selection(reg, !v.promotion.Has(reg))
		}
	case key.Matches(msg, stage2KeyMap.Select):
		if reg, ok := v.cursorRegNumber(); ok {
			return v.selectItem(reg)
		}
	}
	return nil
}

func (v *stage2View) cursorRegNumber() (string, bool) {
	if v.listIdx < 0 || v.listIdx >= len(v.list.Rows) {
		return "", false
	}
	return v.list.Rows[v.listIdx].Key, true
}

// renderList rebuilds the list description from the current state.
func (v *stage2View) renderList(items []procurement.ReviewItem) {
	v.list = procurement.BuildReviewList(items, v.promotion, v.active)
	if v.listIdx >= len(v.list.Rows) {
		v.listIdx = len(v.list.Rows) - 1
	}
	if v.listIdx < 0 {
		v.listIdx = 0
	}
}

// toggleStage3Selection adds or removes a record from the promotion set.
func (v *stage2View) toggleStage3Selection(reg string, checked bool) {
	v.promotion.Set(reg, checked)
	v.updateStats()
	v.renderList(v.items)
}

// selectItem opens a record in the workspace once its overrides arrive.
func (v *stage2View) selectItem(reg string) tea.Cmd {
	v.active = reg
	if _, ok := procurement.FindItem(v.items, reg); !ok {
		return nil
	}
	v.renderList(v.items)
	v.loading = true
	v.overrides = procurement.Overrides{}
	v.fieldIdx = 0
	backend, ctx, mount := v.app.backend, v.app.ctx, v.mount
	return func() tea.Msg {
		overrides, err := backend.FetchOverrides(ctx, reg)
		return overridesLoadedMsg{mount: mount, regNumber: reg, overrides: overrides, err: err}
	}
}

// renderWorkspace builds the detail panel for item.
func (v *stage2View) renderWorkspace(item procurement.ReviewItem) {
	ws := procurement.BuildWorkspace(item, v.overrides, v.app.noticeURL)
	if v.workspace == nil || v.workspace.RegNumber != ws.RegNumber {
		v.text.SetContent(wrapText(ws.Text, v.text.Width))
		v.text.GotoTop()
	}
	v.workspace = &ws
	if v.fieldIdx >= len(ws.Fields) {
		v.fieldIdx = len(ws.Fields) - 1
	}
}

// editCurrentField is a no-op until the active record's overrides arrive.
func (v *stage2View) editCurrentField() {
	if v.loading || v.workspace == nil || v.workspace.RegNumber != v.active {
		return
	}
	if v.fieldIdx < 0 || v.fieldIdx >= len(v.workspace.Fields) {
		return
	}
	row := v.workspace.Fields[v.fieldIdx]
	v.openEditModal(row.Key, row.Label, row.AIValue)
}

// openEditModal shows the override editor pre-filled with the stored override,
// else the AI value.
func (v *stage2View) openEditModal(field, label, aiValue string) {
	input := textinput.New()
	input.Prompt = "› "
	input.CharLimit = 256
	initial := procurement.ModalPrefill(v.overrides, field, aiValue)
	input.SetValue(initial)
	input.CursorEnd()
	input.Focus()
	v.modal = &editModal{key: field, label: label, aiValue: aiValue, initial: initial, input: input}
}

func (v *stage2View) closeModal() {
	v.modal = nil
}

func (v *stage2View) updateModal(msg tea.KeyMsg) tea.Cmd {
	switch {
	case key.Matches(msg, modalKeyMap.Cancel):
		v.closeModal()
		return nil
	case key.Matches(msg, modalKeyMap.Save):
		return v.saveOverride()
	}
	var cmd tea.Cmd
	v.modal.input, cmd = v.modal.input.Update(msg)
	return cmd
}

// saveOverride sends the modal's value and closes the modal.
func (v *stage2View) saveOverride() tea.Cmd {
	modal := v.modal
	v.closeModal()
	if modal == nil || modal.key == "" || v.active == "" {
		return nil
	}
	value := strings.TrimSpace(modal.input.Value())
	reg, field := v.active, modal.key
	v.app.logInfo("Правка %s.%s = %s", reg, field, value)
	backend, ctx, mount := v.app.backend, v.app.ctx, v.mount
	return func() tea.Msg {
		res, err := backend.SaveOverride(ctx, reg, field, value)
		return overrideSavedMsg{mount: mount, regNumber: reg, field: field, value: value, result: res, err: err}
	}
}

func (v *stage2View) handleOverrideSaved(m overrideSavedMsg) tea.Cmd {
	switch {
	case m.err != nil:
		v.app.logger.Warn("save override", zap.Error(m.err))
		v.app.logError("Сохранение правки: %v", m.err)
		v.app.alert("%s", failureText(m.err))
	case m.result.OK():
		if m.regNumber != v.active {
			return nil
		}
		v.overrides.Set(m.field, m.value)
		if item, ok := procurement.FindItem(v.items, v.active); ok {
			v.renderWorkspace(item)
		}
	default:
		v.app.logWarn("Правка отклонена: %s", m.result.Message)
		v.app.alert(saveError)
	}
	return nil
}

// runStage3 approves every promoted record, one request at a time, then asks
// the backend to generate links.
func (v *stage2View) runStage3() {
	if v.promotion.Len() == 0 {
		v.app.alert(noPromotionNotice)
		return
	}
	ids := v.promotion.Items()
	v.app.confirm(fmt.Sprintf("Сгенерировать ссылки для %d закупок?", len(ids)), func() tea.Cmd {
		v.running = true
		v.trigger = button{label: stage3Running, disabled: true}
		v.app.logInfo("Stage 3: %d закупок", len(ids))
		backend, ctx, mount := v.app.backend, v.app.ctx, v.mount
		return func() tea.Msg {
			for i, reg := range ids {
				if err := backend.SaveDecision(ctx, procurement.Approve(reg)); err != nil {
					return stage3DoneMsg{mount: mount, sent: i, err: err}
				}
			}
			res, err := backend.RunStage3(ctx)
			return stage3DoneMsg{mount: mount, sent: len(ids), result: res, err: err}
		}
	})
}

func (v *stage2View) handleStage3Done(m stage3DoneMsg) tea.Cmd {
	defer func() {
		v.running = false
		v.updateStats()
	}()
	if m.err != nil {
		v.app.logger.Warn("run stage3", zap.Int("sent", m.sent), zap.Error(m.err))
		v.app.logError("Stage 3 прерван после %d решений: %v", m.sent, m.err)
		v.app.alert("%s", failureText(m.err))
		return nil
	}
	if m.result.OK() {
		v.app.logInfo("Stage 3: сгенерировано %d", m.result.Generated)
		v.app.alert("Успешно! Сгенерировано ссылок: %d", m.result.Generated)
	} else {
		v.app.logWarn("Stage 3 отказал: %s", m.result.Message)
		v.app.alert("Ошибка: %s", m.result.Message)
	}
	v.promotion.Clear()
	return v.loadList()
}

// updateStats refreshes the counters and the stage-3 trigger.
func (v *stage2View) updateStats() {
	n := v.promotion.Len()
	v.trigger = button{
		label:    fmt.Sprintf("🚀 Запустить Stage 3 (%d выбрано)", n),
		disabled: n == 0,
	}
}

func (v *stage2View) View() string {
	width := v.width
	if width <= 0 {
		width = 120
	}
	stats := lipgloss.JoinHorizontal(lipgloss.Top,
		mutedStyle.Render("На проверке: "), statStyle.Render(fmt.Sprint(len(v.items))),
		mutedStyle.Render("   Отмечено: "), statStyle.Render(fmt.Sprint(v.promotion.Len())),
		"   ", v.trigger.View(),
	)

	listWidth := max(30, width/3)
	list := panelStyle.Width(listWidth).Render(v.renderListView())
	workspace := panelStyle.Width(max(30, width-listWidth-6)).Render(v.renderWorkspaceView())
	body := lipgloss.JoinHorizontal(lipgloss.Top, list, workspace)

	if v.modal != nil {
		body = overlay(width, lipgloss.Height(body), v.renderModal(width))
	}
	return lipgloss.JoinVertical(lipgloss.Left, stats, "", body)
}

func (v *stage2View) renderListView() string {
	title := panelTitle.Render("Закупки")
	if v.list.Placeholder != "" {
		return title + "\n" + mutedStyle.Render(v.list.Placeholder)
	}
	lines := []string{title}
	for i, row := range v.list.Rows {
		header := checkbox(row.Checked) + " " + row.Key
		style := lipgloss.NewStyle()
		switch {
		case row.Active:
			style = rowActiveStyle
		case row.Checked:
			style = rowCheckedStyle
		}
		if i == v.listIdx && v.focus == focusList {
			style = style.Inherit(rowCursorStyle)
		}
		lines = append(lines, style.Render(header), dimStyle.Render("    "+row.Summary))
	}
	return strings.Join(lines, "\n")
}

func (v *stage2View) renderWorkspaceView() string {
	if v.loading {
		return mutedStyle.Render("Загрузка...")
	}
	if v.workspace == nil {
		return mutedStyle.Render(procurement.EmptyWorkspaceText)
	}
	ws := v.workspace
	header := lipgloss.JoinVertical(lipgloss.Left,
		panelTitle.Render(ws.RegNumber)+"  "+mutedStyle.Render(ws.UpdateDate),
		dimStyle.Render("Открыть на ЕИС (o): "+ws.Link),
	)

	var rows []string
	for i, f := range ws.Fields {
		label := fmt.Sprintf("%-18s", f.Label)
		if f.HasOverride {
			label = overrideRowLabel.Render(label)
		}
		line := label + " " + aiValueStyle.Render(f.Display)
		if f.HasOverride {
			line += " " + overrideStyle.Render(f.OverrideText())
		}
		if i == v.fieldIdx && v.focus == focusFields {
			line = rowCursorStyle.Render("✏ ") + line
		} else {
			line = "  " + line
		}
		rows = append(rows, line)
	}
	fields := strings.Join(rows, "\n")
	textPanel := lipgloss.JoinVertical(lipgloss.Left, panelTitle.Render("Документация"), v.text.View())
	return lipgloss.JoinVertical(lipgloss.Left,
		header, "",
		lipgloss.JoinHorizontal(lipgloss.Top, fields, "   ", textPanel),
	)
}

func (v *stage2View) renderModal(width int) string {
	m := v.modal
	aiValue := m.aiValue
	if aiValue == "" {
		aiValue = "-"
	}
	content := lipgloss.JoinVertical(lipgloss.Left,
		panelTitle.Render(m.label),
		mutedStyle.Render("AI: ")+aiValueStyle.Render(aiValue),
		"",
		m.input.View(),
		dialogHint.Render("enter · сохранить    esc · отмена"),
	)
	return dialogStyle.Width(max(40, width/2)).Render(content)
}

func wrapText(text string, width int) string {
	if width <= 0 {
		return text
	}
	return lipgloss.NewStyle().Width(width).Render(text)
}
