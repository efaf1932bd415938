package tui

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"go.uber.org/zap"

	"github.com/kingrea/zakupki-desk/internal/api"
	"github.com/kingrea/zakupki-desk/internal/procurement"
)

const (
	forwardLabel      = "➕ Добавить закупки"
	ingestLabel       = "⬇ Загрузить закупки с ЕИС"
	ingestPrompt      = "Сколько новых закупок загрузить?"
	ingestDefault     = "10"
	connectionError   = "Ошибка соединения"
	loadError         = "Ошибка загрузки данных"
	noSelectionNotice = "Пожалуйста, выберите закупки галочками."
	badNumber         = "Пожалуйста, введите корректное число"
)

type noticesLoadedMsg struct {
	mount   int
	notices []procurement.Notice
	err     error
}

type promoteDoneMsg struct {
	mount  int
	result api.ActionResult
	err    error
}

type ingestDoneMsg struct {
	mount  int
	result api.ActionResult
	err    error
}

func (m noticesLoadedMsg) mountID() int { return m.mount }
func (m promoteDoneMsg) mountID() int   { return m.mount }
func (m ingestDoneMsg) mountID() int    { return m.mount }

// stage1View is the notice selection screen.
type stage1View struct {
	app   *App
	mount int

	limit     int
	notices   []procurement.Notice
	checked   map[string]bool
	selectAll bool
	rows      procurement.NoticeTable
	table     table.Model

	total    int
	selected int
	forward  button
	ingest   button
	// status lines next to each action
	forwardStatus string
	ingestStatus  string
}

func newStage1View(app *App, mount int) *stage1View {
	t := table.New(
		table.WithColumns(noticeColumns(120)),
		table.WithFocused(true),
		table.WithHeight(12),
	)
	t.KeyMap = noticeTableKeys()
	styles := table.DefaultStyles()
	styles.Header = styles.Header.BorderStyle(lipgloss.NormalBorder()).BorderForeground(colorBorder).BorderBottom(true).Bold(true)
	styles.Selected = rowCursorStyle
	t.SetStyles(styles)

	v := &stage1View{
		app:     app,
		mount:   mount,
		limit:   app.config.Project.Stage1.DefaultLimit,
		checked: map[string]bool{},
		table:   t,
		forward: button{label: forwardLabel, disabled: true},
		ingest:  button{label: ingestLabel},
	}
	v.renderTable(nil)
	return v
}

func noticeColumns(width int) []table.Column {
	desc := width - 3 - 22 - 12 - 18 - 12
	if desc < 20 {
		desc = 20
	}
	return []table.Column{
		{Title: "✓", Width: 3},
		{Title: "Реестровый номер", Width: 22},
		{Title: "Обновлено", Width: 12},
		{Title: "Окончание подачи", Width: 18},
		{Title: "Описание", Width: desc},
	}
}

func (v *stage1View) Init() tea.Cmd {
	return v.loadData()
}

func (v *stage1View) resize(width, height int) {
	if width <= 0 || height <= 0 {
		return
	}
	v.table.SetColumns(noticeColumns(width - 4))
	v.table.SetWidth(width - 2)
	v.table.SetHeight(max(5, height-18))
}

// loadData fetches the current page of notices.
func (v *stage1View) loadData() tea.Cmd {
	backend, ctx, mount, limit := v.app.backend, v.app.ctx, v.mount, v.limit
	return func() tea.Msg {
		notices, err := backend.ListNotices(ctx, limit)
		return noticesLoadedMsg{mount: mount, notices: notices, err: err}
	}
}

func (v *stage1View) Update(msg tea.Msg) tea.Cmd {
	switch m := msg.(type) {
	case noticesLoadedMsg:
		if m.err != nil {
			v.app.logger.Warn("load notices", zap.Error(m.err))
			v.app.logError("Загрузка закупок: %v", m.err)
			v.app.alert(loadError)
			return nil
		}
		v.notices = m.notices
		v.checked = map[string]bool{}
		v.selectAll = false
		v.renderTable(v.notices)
		v.updateStats()
		v.app.logInfo("Stage 1: загружено %d закупок", len(v.notices))
		return nil

	case promoteDoneMsg:
		return v.handlePromoteDone(m)

	case ingestDoneMsg:
		return v.handleIngestDone(m)

	case tea.KeyMsg:
		return v.handleKey(m)
	}
	return nil
}

func (v *stage1View) handleKey(msg tea.KeyMsg) tea.Cmd {
	switch {
	case key.Matches(msg, stage1KeyMap.Toggle):
		if reg, ok := v.cursorRegNumber(); ok {
			v.setChecked(reg, !v.checked[reg])
			v.updateSelectionStats()
		}
		return nil
	case key.Matches(msg, stage1KeyMap.SelectAll):
		v.toggleSelectAll(!v.selectAll)
		return nil
	case key.Matches(msg, stage1KeyMap.Forward):
		if v.forward.disabled {
			return nil
		}
		return v.addToStage2()
	case key.Matches(msg, stage1KeyMap.Ingest):
		if v.ingest.disabled {
			return nil
		}
		v.runIngestion()
		return nil
	case key.Matches(msg, stage1KeyMap.Reload):
		return v.loadData()
	case key.Matches(msg, stage1KeyMap.Open):
		if reg, ok := v.cursorRegNumber(); ok {
			return v.app.openLink(reg)
		}
		return nil
	case key.Matches(msg, stage1KeyMap.Copy):
		if reg, ok := v.cursorRegNumber(); ok {
			return v.app.copyLink(reg)
		}
		return nil
	}
	var cmd tea.Cmd
	v.table, cmd = v.table.Update(msg)
	return cmd
}

// renderTable rebuilds the table body from notices. Check marks come from the
// current selection.
func (v *stage1View) renderTable(notices []procurement.Notice) {
	v.rows = procurement.BuildNoticeTable(notices, func(reg string) bool { return v.checked[reg] }, v.app.noticeURL)
	rows := make([]table.Row, 0, len(v.rows.Rows))
	for _, r := range v.rows.Rows {
		if r.IsPlaceholder() {
			continue
		}
		rows = append(rows, table.Row{checkbox(r.Checked), r.Key, r.UpdateDate, r.BidEndDate, r.Description})
	}
	cursor := v.table.Cursor()
	v.table.SetRows(rows)
	if cursor >= len(rows) {
		cursor = len(rows) - 1
	}
	if cursor < 0 {
		cursor = 0
	}
	v.table.SetCursor(cursor)
}

func (v *stage1View) cursorRegNumber() (string, bool) {
	idx := v.table.Cursor()
	if idx < 0 || idx >= len(v.notices) {
		return "", false
	}
	return v.notices[idx].RegNumber, true
}

func (v *stage1View) setChecked(reg string, checked bool) {
	if checked {
		v.checked[reg] = true
	} else {
		delete(v.checked, reg)
	}
	v.renderTable(v.notices)
}

// toggleSelectAll sets every row to checked.
func (v *stage1View) toggleSelectAll(checked bool) {
	v.selectAll = checked
	v.checked = map[string]bool{}
	if checked {
		for _, n := range v.notices {
			v.checked[n.RegNumber] = true
		}
	}
	v.renderTable(v.notices)
	v.updateSelectionStats()
}

// selectedIDs returns the checked registry numbers in table order.
func (v *stage1View) selectedIDs() []string {
	var ids []string
	for _, n := range v.notices {
		if v.checked[n.RegNumber] {
			ids = append(ids, n.RegNumber)
		}
	}
	return ids
}

// updateSelectionStats refreshes the counter and the forward action.
func (v *stage1View) updateSelectionStats() {
	v.selected = len(v.selectedIDs())
	if v.selected > 0 {
		v.forward = button{label: fmt.Sprintf("%s (%d)", forwardLabel, v.selected)}
	} else {
		v.forward = button{label: forwardLabel, disabled: true}
	}
}

// updateStats resets the counters after a reload.
func (v *stage1View) updateStats() {
	v.total = len(v.notices)
	v.selected = 0
	v.forward = button{label: forwardLabel, disabled: true}
}

func (v *stage1View) addToStage2() tea.Cmd {
	ids := v.selectedIDs()
	if len(ids) == 0 {
		v.app.alert(noSelectionNotice)
		return nil
	}
	v.app.confirm(fmt.Sprintf("Добавить %d закупок для ИИ-анализа?", len(ids)), func() tea.Cmd {
		v.forward.disabled = true
		v.forwardStatus = "Добавление..."
		v.app.logInfo("Добавляю в Stage 2: %s", strings.Join(ids, ", "))
		backend, ctx, mount := v.app.backend, v.app.ctx, v.mount
		return func() tea.Msg {
			res, err := backend.AddToStage2(ctx, ids)
			return promoteDoneMsg{mount: mount, result: res, err: err}
		}
	})
	return nil
}

func (v *stage1View) handlePromoteDone(m promoteDoneMsg) tea.Cmd {
	defer func() { v.forward.disabled = false }()
	switch {
	case m.err != nil:
		v.app.logger.Warn("add to stage2", zap.Error(m.err))
		v.app.logError("Добавление в Stage 2: %v", m.err)
		v.forwardStatus = failureText(m.err)
	case m.result.OK():
		v.forwardStatus = "Добавлено!"
		v.app.logInfo("Добавлено в Stage 2: %d", m.result.Count)
		v.app.alert("Добавлено %d закупок. Перейдите на вкладку \"Stage 2: AI Review\".", m.result.Count)
		v.selectAll = false
		v.checked = map[string]bool{}
		v.renderTable(v.notices)
		v.updateSelectionStats()
	default:
		v.forwardStatus = "Ошибка"
		v.app.logWarn("Stage 2 отказал: %s", m.result.Message)
		v.app.alert("Ошибка: %s", m.result.Message)
	}
	return nil
}

func (v *stage1View) runIngestion() {
	v.app.prompt(ingestPrompt, ingestDefault, func(input string) tea.Cmd {
		limit, ok := parseLeadingInt(input)
		if !ok || limit <= 0 {
			v.app.alert(badNumber)
			return nil
		}
		v.limit = limit
		v.ingest.disabled = true
		v.ingestStatus = "Загрузка..."
		v.app.logInfo("Загрузка с ЕИС: %d", limit)
		backend, ctx, mount := v.app.backend, v.app.ctx, v.mount
		return func() tea.Msg {
			res, err := backend.RunIngestion(ctx, limit)
			return ingestDoneMsg{mount: mount, result: res, err: err}
		}
	})
}

func (v *stage1View) handleIngestDone(m ingestDoneMsg) tea.Cmd {
	defer func() { v.ingest.disabled = false }()
	switch {
	case m.err != nil:
		v.app.logger.Warn("run ingestion", zap.Error(m.err))
		v.app.logError("Загрузка с ЕИС: %v", m.err)
		v.ingestStatus = failureText(m.err)
		return nil
	case m.result.OK():
		v.ingestStatus = "Готово!"
		v.app.logInfo("ЕИС: %s", m.result.Message)
		v.app.alert("%s", m.result.Message)
		return v.loadData()
	default:
		v.ingestStatus = "Ошибка"
		v.app.logWarn("ЕИС отказал: %s", m.result.Message)
		v.app.alert("Ошибка: %s", m.result.Message)
		return nil
	}
}

// parseLeadingInt reads an optionally signed run of leading digits, ignoring
// leading whitespace and anything after the digits: "12abc" is 12.
func parseLeadingInt(input string) (int, bool) {
	s := strings.TrimLeftFunc(input, unicode.IsSpace)
	sign := 1
	if s != "" && (s[0] == '+' || s[0] == '-') {
		if s[0] == '-' {
			sign = -1
		}
		s = s[1:]
	}
	n, digits := 0, 0
	for _, r := range s {
		if r < '0' || r > '9' {
			break
		}
		if n > (1<<31)/10 {
			break
		}
		n = n*10 + int(r-'0')
		digits++
	}
	if digits == 0 {
		return 0, false
	}
	return sign * n, true
}

func (v *stage1View) View() string {
	stats := lipgloss.JoinHorizontal(lipgloss.Top,
		mutedStyle.Render("Всего: "), statStyle.Render(fmt.Sprint(v.total)),
		mutedStyle.Render("   Выбрано: "), statStyle.Render(fmt.Sprint(v.selected)),
		mutedStyle.Render(fmt.Sprintf("   Страница: %d", v.limit)),
	)
	actions := lipgloss.JoinHorizontal(lipgloss.Center,
		v.ingest.View(), " ", mutedStyle.Render(v.ingestStatus), "   ",
		v.forward.View(), " ", mutedStyle.Render(v.forwardStatus),
	)

	var body string
	if len(v.table.Rows()) == 0 {
		placeholder := procurement.NoticePlaceholder
		if len(v.rows.Rows) > 0 && v.rows.Rows[0].IsPlaceholder() {
			placeholder = v.rows.Rows[0].Placeholder
		}
		body = lipgloss.JoinVertical(lipgloss.Left, v.table.View(), "", mutedStyle.Render(placeholder))
	} else {
		selectAll := mutedStyle.Render(checkbox(v.selectAll) + " выбрать все (a)")
		body = lipgloss.JoinVertical(lipgloss.Left, selectAll, v.table.View())
	}
	return lipgloss.JoinVertical(lipgloss.Left, stats, actions, "", panelStyle.Render(body))
}
