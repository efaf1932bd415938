// internal/tui/app.go
//
// The terminal front end for the review workflow. It follows The Elm
// Architecture like every bubbletea program:
//
// 1. Model: the App plus the screen that is currently mounted
// 2. Update: key presses and backend responses arrive as messages
// 3. View: the App renders the header, the screen, dialogs and the journal
//
// Screens are independent. Switching screens discards the old one; any
// response that arrives for it afterwards is dropped.

package tui

import (
	"context"
	"fmt"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"go.uber.org/zap"

	"github.com/kingrea/zakupki-desk/internal/api"
	"github.com/kingrea/zakupki-desk/internal/config"
	"github.com/kingrea/zakupki-desk/internal/logbook"
	"github.com/kingrea/zakupki-desk/internal/procurement"
)

// Screen identifies one of the two review screens.
type Screen string

const (
	ScreenStage1 Screen = config.ScreenStage1
	ScreenStage2 Screen = config.ScreenStage2
)

const (
	logPanelLines = 6
	quitPrompt    = "Закрыть приложение? Несохранённые изменения будут потеряны."
)

// ParseScreen accepts "stage1"/"stage2" as well as "1"/"2".
func ParseScreen(value string) (Screen, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case config.ScreenStage1, "1":
		return ScreenStage1, nil
	case config.ScreenStage2, "2":
		return ScreenStage2, nil
	}
	return "", fmt.Errorf("tui: unknown screen %q", value)
}

func (s Screen) title() string {
	if s == ScreenStage2 {
		return "Stage 2: AI Review"
	}
	return "Stage 1: Отбор закупок"
}

// Backend is the part of the API the screens use. *api.Client implements it.
type Backend interface {
	UserID() int
	ListNotices(ctx context.Context, limit int) ([]procurement.Notice, error)
	AddToStage2(ctx context.Context, regNumbers []string) (api.ActionResult, error)
	RunIngestion(ctx context.Context, limit int) (api.ActionResult, error)
	ListReviewItems(ctx context.Context) ([]procurement.ReviewItem, error)
	FetchOverrides(ctx context.Context, regNumber string) (procurement.Overrides, error)
	SaveOverride(ctx context.Context, regNumber, field, value string) (api.ActionResult, error)
	SaveDecision(ctx context.Context, d procurement.Decision) error
	RunStage3(ctx context.Context) (api.ActionResult, error)
}

var _ Backend = (*api.Client)(nil)

// AppOption customizes App construction for tests and alternate runtimes.
type AppOption func(*App)

// WithLogger sets the structured logger.
func WithLogger(logger *zap.Logger) AppOption {
	return func(a *App) {
		if logger != nil {
			a.logger = logger
		}
	}
}

// WithLogbook attaches the activity journal shown in the log panel.
func WithLogbook(lb *logbook.Logbook) AppOption {
	return func(a *App) {
		a.logbook = lb
	}
}

// WithURLOpener replaces the system browser launcher.
func WithURLOpener(open func(url string) error) AppOption {
	return func(a *App) {
		if open != nil {
			a.openURL = open
		}
	}
}

// WithClipboard replaces the system clipboard writer.
func WithClipboard(write func(text string) error) AppOption {
	return func(a *App) {
		if write != nil {
			a.copyText = write
		}
	}
}

// WithStartScreen overrides the configured start screen.
func WithStartScreen(screen Screen) AppOption {
	return func(a *App) {
		if screen != "" {
			a.startScreen = screen
		}
	}
}

// WithContext sets the parent context for backend requests.
func WithContext(ctx context.Context) AppOption {
	return func(a *App) {
		if ctx != nil {
			a.parent = ctx
		}
	}
}

// screenMsg is implemented by every response addressed to a mounted screen.
type screenMsg interface {
	mountID() int
}

// linkActionMsg reports the outcome of opening or copying a registry link.
type linkActionMsg struct {
	done string
	err  error
}

// App is the root model.
type App struct {
	config  *config.Config
	backend Backend
	logbook *logbook.Logbook
	logger  *zap.Logger

	parent context.Context
	ctx    context.Context
	cancel context.CancelFunc

	openURL  func(string) error
	copyText func(string) error

	startScreen Screen
	screen      Screen
	mountSeq    int
	stage1      *stage1View
	stage2      *stage2View

	dialogs   []*dialog
	help      help.Model
	statusMsg string
	quitting  bool

	width  int
	height int
}

// NewApp creates the root model. The first screen is mounted by Init.
func NewApp(cfg *config.Config, backend Backend, opts ...AppOption) (*App, error) {
	if cfg == nil {
		return nil, fmt.Errorf("tui: config is required")
	}
	if backend == nil {
		return nil, fmt.Errorf("tui: backend is required")
	}
	app := &App{
		config:   cfg,
		backend:  backend,
		logger:   zap.NewNop(),
		parent:   context.Background(),
		openURL:  openInBrowser,
		copyText: clipboard.WriteAll,
		help:     help.New(),
	}
	if screen, err := ParseScreen(cfg.StartScreen()); err == nil {
		app.startScreen = screen
	} else {
		app.startScreen = ScreenStage1
	}
	for _, opt := range opts {
		if opt != nil {
			opt(app)
		}
	}
	app.logger = app.logger.Named("tui")
	app.ctx, app.cancel = context.WithCancel(app.parent)
	return app, nil
}

// Init mounts the start screen.
func (a *App) Init() tea.Cmd {
	a.logInfo("Сессия открыта · %s", a.startScreen.title())
	return a.mount(a.startScreen)
}

// Screen reports the mounted screen.
func (a *App) Screen() Screen { return a.screen }

func (a *App) mount(screen Screen) tea.Cmd {
	a.mountSeq++
	a.screen = screen
	a.stage1 = nil
	a.stage2 = nil
	a.help.ShowAll = false
	a.logger.Debug("mount screen", zap.String("screen", string(screen)), zap.Int("mount", a.mountSeq))
	switch screen {
	case ScreenStage2:
		a.stage2 = newStage2View(a, a.mountSeq)
		a.stage2.resize(a.width, a.height)
		return a.stage2.Init()
	default:
		a.stage1 = newStage1View(a, a.mountSeq)
		a.stage1.resize(a.width, a.height)
		return a.stage1.Init()
	}
}

func (a *App) switchScreen(screen Screen) tea.Cmd {
	if screen == a.screen {
		return nil
	}
	if err := a.config.SetStartScreen(string(screen)); err != nil {
		a.logWarn("Не удалось сохранить экран: %v", err)
	}
	a.statusMsg = screen.title()
	return a.mount(screen)
}

// Update is called when a message is received.
func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		a.help.Width = msg.Width
		if a.stage1 != nil {
			a.stage1.resize(msg.Width, msg.Height)
		}
		if a.stage2 != nil {
			a.stage2.resize(msg.Width, msg.Height)
		}
		return a, nil

	case tea.KeyMsg:
		return a, a.handleKey(msg)

	case linkActionMsg:
		if msg.err != nil {
			a.statusMsg = "Не удалось: " + msg.err.Error()
			a.logWarn("Ссылка: %v", msg.err)
		} else {
			a.statusMsg = msg.done
		}
		return a, nil

	case screenMsg:
		if msg.mountID() != a.mountSeq {
			a.logger.Debug("drop stale response", zap.String("type", fmt.Sprintf("%T", msg)))
			return a, nil
		}
		return a, a.routeToScreen(msg)
	}
	return a, nil
}

func (a *App) routeToScreen(msg tea.Msg) tea.Cmd {
	switch {
	case a.stage1 != nil:
		return a.stage1.Update(msg)
	case a.stage2 != nil:
		return a.stage2.Update(msg)
	}
	return nil
}

func (a *App) handleKey(msg tea.KeyMsg) tea.Cmd {
	if len(a.dialogs) > 0 {
		if key.Matches(msg, globalKeyMap.Force) {
			return a.quit()
		}
		top := a.dialogs[0]
		cmd, done := top.update(msg)
		if done {
			// callbacks may have queued more dialogs behind this one
			a.dialogs = a.dialogs[1:]
		}
		return cmd
	}

	if a.stage2 != nil && a.stage2.capturesInput() {
		if key.Matches(msg, globalKeyMap.Force) {
			return a.requestQuit()
		}
		return a.stage2.Update(msg)
	}

	switch {
	case key.Matches(msg, globalKeyMap.Quit):
		return a.requestQuit()
	case key.Matches(msg, globalKeyMap.Stage1):
		return a.switchScreen(ScreenStage1)
	case key.Matches(msg, globalKeyMap.Stage2):
		return a.switchScreen(ScreenStage2)
	case key.Matches(msg, globalKeyMap.Help):
		a.help.ShowAll = !a.help.ShowAll
		return nil
	}
	return a.routeToScreen(msg)
}

// requestQuit applies the quit guard.
func (a *App) requestQuit() tea.Cmd {
	switch a.config.Project.UI.ConfirmQuit {
	case config.ConfirmQuitNever:
		return a.quit()
	case config.ConfirmQuitDirty:
		if a.stage2 == nil || !a.stage2.dirty() {
			return a.quit()
		}
	}
	a.confirm(quitPrompt, a.quit)
	return nil
}

func (a *App) quit() tea.Cmd {
	a.quitting = true
	a.cancel()
	a.logInfo("Сессия закрыта")
	return tea.Quit
}

// alert queues an informational dialog.
func (a *App) alert(format string, args ...any) {
	message := format
	if len(args) > 0 {
		message = fmt.Sprintf(format, args...)
	}
	a.dialogs = append(a.dialogs, newAlert(message))
}

// confirm queues a yes/no dialog; onYes runs only on "yes".
func (a *App) confirm(message string, onYes func() tea.Cmd) {
	a.dialogs = append(a.dialogs, newConfirm(message, onYes))
}

// prompt queues a text dialog; onOK is skipped when the user cancels.
func (a *App) prompt(message, initial string, onOK func(string) tea.Cmd) {
	a.dialogs = append(a.dialogs, newPrompt(message, initial, onOK))
}

func (a *App) noticeURL(regNumber string) string {
	return a.config.NoticeURL(regNumber)
}

func (a *App) openLink(regNumber string) tea.Cmd {
	link := a.noticeURL(regNumber)
	open := a.openURL
	a.logInfo("Открываю %s", regNumber)
	return func() tea.Msg {
		if err := open(link); err != nil {
			return linkActionMsg{err: err}
		}
		return linkActionMsg{done: "Открыто: " + link}
	}
}

func (a *App) copyLink(regNumber string) tea.Cmd {
	link := a.noticeURL(regNumber)
	write := a.copyText
	return func() tea.Msg {
		if err := write(link); err != nil {
			return linkActionMsg{err: err}
		}
		return linkActionMsg{done: "Ссылка скопирована"}
	}
}

// failureText is what the user sees when a request did not produce an answer.
// Anything but a transport failure was rejected locally and is shown as is.
func failureText(err error) string {
	if api.IsTransport(err) {
		return connectionError
	}
	return "Ошибка: " + err.Error()
}

func openInBrowser(url string) error {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", url)
	case "windows":
		cmd = exec.Command("rundll32", "url.dll,FileProtocolHandler", url)
	default:
		cmd = exec.Command("xdg-open", url)
	}
	return cmd.Start()
}

func (a *App) logInfo(format string, args ...any) {
	if a.logbook == nil {
		return
	}
	a.logbook.Info(format, args...)
}

func (a *App) logWarn(format string, args ...any) {
	if a.logbook == nil {
		return
	}
	a.logbook.Warn(format, args...)
}

func (a *App) logError(format string, args ...any) {
	if a.logbook == nil {
		return
	}
	a.logbook.Error(format, args...)
}

// View renders the current state to a string.
func (a *App) View() string {
	if a.quitting {
		return ""
	}
	width := a.width
	if width <= 0 {
		width = 120
	}
	var body string
	var keys help.KeyMap
	switch {
	case a.stage1 != nil:
		body = a.stage1.View()
		keys = stage1KeyMap
	case a.stage2 != nil:
		body = a.stage2.View()
		keys = stage2KeyMap
		if a.stage2.capturesInput() {
			keys = modalKeyMap
		}
	default:
		body = mutedStyle.Render("Загрузка...")
	}
	if len(a.dialogs) > 0 {
		body = overlay(width, lipgloss.Height(body), a.dialogs[0].View(width))
	}

	sections := []string{a.renderHeader(), body}
	if logPanel := a.renderLogPanel(width); logPanel != "" {
		sections = append(sections, logPanel)
	}
	footer := a.statusMsg
	if keys != nil {
		footer = strings.TrimSpace(footer + "\n" + a.help.View(keys) + "   " + a.help.ShortHelpView([]key.Binding{
			globalKeyMap.Stage1, globalKeyMap.Stage2, globalKeyMap.Help, globalKeyMap.Quit,
		}))
	}
	sections = append(sections, footerStyle.Render(footer))
	return strings.Join(sections, "\n")
}

func (a *App) renderHeader() string {
	tabs := []string{}
	for _, s := range []Screen{ScreenStage1, ScreenStage2} {
		style := tabStyle
		if s == a.screen {
			style = tabActive
		}
		tabs = append(tabs, style.Render(s.title()))
	}
	operator := mutedStyle.Render(fmt.Sprintf("оператор #%d", a.backend.UserID()))
	return lipgloss.JoinHorizontal(lipgloss.Bottom, headerStyle.Render("⬡ ZAKUPKI"), "  ", strings.Join(tabs, " "), "  ", operator)
}

func (a *App) renderLogPanel(width int) string {
	if a.logbook == nil {
		return ""
	}
	lines, total := a.logbook.Tail(logPanelLines)
	if len(lines) == 0 {
		return ""
	}
	fileName := filepath.Base(a.logbook.Path())
	if fileName == "." || fileName == "" {
		fileName = "journal"
	}
	head := panelTitle.Render(fmt.Sprintf("ЖУРНАЛ · %s · %d", fileName, total))
	body := dimStyle.Render(strings.Join(lines, "\n"))
	return panelStyle.Width(max(20, width-4)).Render(head + "\n" + body)
}
