package tui

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/kingrea/zakupki-desk/internal/api"
	"github.com/kingrea/zakupki-desk/internal/config"
	"github.com/kingrea/zakupki-desk/internal/logbook"
)

const (
	noticesJSON = `[
		{"reg_number":"0373100000124000017","update_date":"2024-03-05T10:21:00","bid_end_date":"2024-03-20","description":"Квартира в г. Тверь"},
		{"reg_number":"0148300000124000211","update_date":"2024-03-06T08:00:00","bid_end_date":null,"description":null}
	]`
	reviewJSON = `[
		{"reg_number":"A1","update_date":"2024-03-05T10:00:00","initial_price":4500000,"ai_city":"Тверь","ai_area_min":20,"ai_area_max":50,"ai_zakupka_name":"Квартира","combined_text":"Текст извещения"},
		{"reg_number":"B2","ai_city":"Псков"}
	]`
	okJSON = `{"status":"ok"}`
)

type backendCall struct {
	Route string
	Query url.Values
	Body  map[string]any
}

// fakeBackend serves canned JSON per route and records every request.
type fakeBackend struct {
	mu        sync.Mutex
	calls     []backendCall
	responses map[string]string
	status    map[string]int
	drop      map[string]bool
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		responses: map[string]string{
			"GET /api/stage1":                 noticesJSON,
			"GET /api/stage2":                 reviewJSON,
			"POST /api/actions/add_to_stage2": `{"status":"ok","count":2}`,
			"POST /api/actions/run_stage1":    `{"status":"ok","message":"Загружено 25 закупок"}`,
			"POST /api/actions/run_stage3":    `{"status":"ok","generated":2}`,
			"POST /api/overrides":             `{"status":"ok","message":"Сохранено"}`,
			"POST /api/decisions":             `{"status":"ok","decision":"approved"}`,
			"GET /api/overrides/A1":           `{"city":"Москва","rooms":null}`,
			"GET /api/overrides/B2":           `{}`,
		},
		status: map[string]int{},
		drop:   map[string]bool{},
	}
}

func (f *fakeBackend) set(route, body string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.responses[route] = body
	delete(f.status, route)
	delete(f.drop, route)
}

func (f *fakeBackend) failWithStatus(route string, code int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.status[route] = code
}

// dropConnection makes route fail at the network level. Only use it for POST
// routes: the client retries idempotent requests on a dropped connection.
func (f *fakeBackend) dropConnection(route string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.drop[route] = true
}

func (f *fakeBackend) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	route := r.Method + " " + r.URL.Path
	call := backendCall{Route: route, Query: r.URL.Query()}
	if raw, _ := io.ReadAll(r.Body); len(raw) > 0 {
		_ = json.Unmarshal(raw, &call.Body)
	}

	f.mu.Lock()
	f.calls = append(f.calls, call)
	body, ok := f.responses[route]
	code := f.status[route]
	drop := f.drop[route]
	f.mu.Unlock()

	if drop {
		if hj, ok := w.(http.Hijacker); ok {
			if conn, _, err := hj.Hijack(); err == nil {
				_ = conn.Close()
				return
			}
		}
	}
	if code != 0 {
		http.Error(w, "backend failure", code)
		return
	}
	if !ok {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = io.WriteString(w, body)
}

func (f *fakeBackend) routes() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.calls))
	for i, c := range f.calls {
		out[i] = c.Route
	}
	return out
}

func (f *fakeBackend) callsTo(route string) []backendCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []backendCall
	for _, c := range f.calls {
		if c.Route == route {
			out = append(out, c)
		}
	}
	return out
}

func (f *fakeBackend) reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = nil
}

type testEnv struct {
	app     *App
	backend *fakeBackend
	config  *config.Config
	copied  []string
	opened  []string
}

func newTestEnv(t *testing.T, mutate func(cfg *config.Config), opts ...AppOption) *testEnv {
	t.Helper()
	projectDir := t.TempDir()
	if err := config.InitProjectDir(projectDir); err != nil {
		t.Fatalf("init project dir: %v", err)
	}
	cfg, err := config.NewConfig(projectDir)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if mutate != nil {
		mutate(cfg)
	}

	fb := newFakeBackend()
	srv := httptest.NewServer(fb)
	t.Cleanup(srv.Close)

	logger := zaptest.NewLogger(t)
	client, err := api.New(srv.URL+"/api", cfg.Project.API.UserID, api.WithHTTPClient(srv.Client()), api.WithLogger(logger))
	require.NoError(t, err)
	lb, err := logbook.New(cfg.JournalPath(), logger)
	require.NoError(t, err)

	env := &testEnv{backend: fb, config: cfg}
	baseOpts := []AppOption{
		WithLogger(logger),
		WithLogbook(lb),
		WithClipboard(func(text string) error {
			env.copied = append(env.copied, text)
			return nil
		}),
		WithURLOpener(func(link string) error {
			env.opened = append(env.opened, link)
			return nil
		}),
	}
	app, err := NewApp(cfg, client, append(baseOpts, opts...)...)
	if err != nil {
		t.Fatalf("new app: %v", err)
	}
	model, _ := app.Update(tea.WindowSizeMsg{Width: 140, Height: 40})
	env.app = runCommands(t, model, app.Init())
	return env
}

// press sends each key and runs the resulting commands to completion.
func (e *testEnv) press(t *testing.T, keys ...string) {
	t.Helper()
	for _, k := range keys {
		model, cmd := e.app.Update(keyMsg(k))
		e.app = runCommands(t, model, cmd)
	}
}

func keyMsg(k string) tea.KeyMsg {
	switch k {
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	case "esc":
		return tea.KeyMsg{Type: tea.KeyEsc}
	case "tab":
		return tea.KeyMsg{Type: tea.KeyTab}
	case "up":
		return tea.KeyMsg{Type: tea.KeyUp}
	case "down":
		return tea.KeyMsg{Type: tea.KeyDown}
	case "space":
		return tea.KeyMsg{Type: tea.KeySpace, Runes: []rune{' '}}
	case "ctrl+c":
		return tea.KeyMsg{Type: tea.KeyCtrlC}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(k)}
}

// runCommands drives Update with every message the commands produce until
// nothing is left to run.
func runCommands(t *testing.T, model tea.Model, cmd tea.Cmd) *App {
	t.Helper()
	app, ok := model.(*App)
	if !ok {
		t.Fatalf("unexpected model type: %T", model)
	}
	queue := []tea.Cmd{cmd}
	for steps := 0; len(queue) > 0; steps++ {
		if steps > 200 {
			t.Fatalf("commands did not settle")
		}
		next := queue[0]
		queue = queue[1:]
		if next == nil {
			continue
		}
		switch msg := next().(type) {
		case nil, tea.QuitMsg:
			continue
		case tea.BatchMsg:
			queue = append(queue, msg...)
		default:
			nextModel, nextCmd := app.Update(msg)
			app, ok = nextModel.(*App)
			if !ok {
				t.Fatalf("unexpected model type: %T", nextModel)
			}
			queue = append(queue, nextCmd)
		}
	}
	return app
}

func (e *testEnv) topDialog(t *testing.T) *dialog {
	t.Helper()
	if len(e.app.dialogs) == 0 {
		t.Fatalf("expected a dialog")
	}
	return e.app.dialogs[0]
}

func (e *testEnv) dismissAll(t *testing.T) {
	t.Helper()
	for len(e.app.dialogs) > 0 {
		e.press(t, "esc")
	}
}

func TestParseScreen(t *testing.T) {
	for input, want := range map[string]Screen{"stage1": ScreenStage1, " STAGE2 ": ScreenStage2, "1": ScreenStage1, "2": ScreenStage2} {
		got, err := ParseScreen(input)
		require.NoError(t, err, input)
		assert.Equal(t, want, got)
	}
	_, err := ParseScreen("stage3")
	assert.Error(t, err)
}

func TestAppStartsOnConfiguredScreen(t *testing.T) {
	env := newTestEnv(t, func(cfg *config.Config) { cfg.Project.UI.StartScreen = config.ScreenStage2 })
	assert.Equal(t, ScreenStage2, env.app.Screen())
	require.NotNil(t, env.app.stage2)
	assert.Nil(t, env.app.stage1)
	assert.Equal(t, []string{"GET /api/stage2"}, env.backend.routes())
}

func TestStartScreenOptionWins(t *testing.T) {
	env := newTestEnv(t, nil, WithStartScreen(ScreenStage2))
	assert.Equal(t, ScreenStage2, env.app.Screen())
}

func TestSwitchScreenDiscardsViewAndPersists(t *testing.T) {
	env := newTestEnv(t, nil)
	require.NotNil(t, env.app.stage1)
	env.app.stage1.toggleSelectAll(true)

	env.press(t, "2")
	assert.Nil(t, env.app.stage1)
	require.NotNil(t, env.app.stage2)

	reloaded, err := config.NewConfig(env.config.ProjectDir)
	require.NoError(t, err)
	assert.Equal(t, config.ScreenStage2, reloaded.StartScreen())

	env.press(t, "1")
	require.NotNil(t, env.app.stage1)
	assert.Zero(t, env.app.stage1.selected, "a remounted screen starts fresh")
}

func TestStaleResponseIsDropped(t *testing.T) {
	env := newTestEnv(t, nil)
	staleLoad := env.app.stage1.loadData()

	env.press(t, "2")
	before := len(env.app.stage2.items)

	env.app = runCommands(t, env.app, staleLoad)
	assert.Nil(t, env.app.stage1)
	assert.Len(t, env.app.stage2.items, before)
	assert.Empty(t, env.app.dialogs)
}

func TestDialogsQueue(t *testing.T) {
	env := newTestEnv(t, nil)
	env.app.alert("first")
	env.app.alert("second %d", 2)

	assert.Equal(t, "first", env.topDialog(t).message)
	assert.Contains(t, env.app.View(), "first")
	env.press(t, "enter")
	assert.Equal(t, "second 2", env.topDialog(t).message)
	env.press(t, "enter")
	assert.Empty(t, env.app.dialogs)
}

func TestDialogSwallowsScreenKeys(t *testing.T) {
	env := newTestEnv(t, nil)
	env.app.alert("blocking")
	env.press(t, "2")
	assert.Equal(t, ScreenStage1, env.app.Screen())
}

func TestQuitGuardAlways(t *testing.T) {
	env := newTestEnv(t, nil)

	env.press(t, "q")
	require.Len(t, env.app.dialogs, 1)
	assert.Equal(t, quitPrompt, env.topDialog(t).message)
	env.press(t, "n")
	assert.False(t, env.app.quitting)

	env.press(t, "q")
	_, cmd := env.app.Update(keyMsg("y"))
	require.NotNil(t, cmd)
	assert.IsType(t, tea.QuitMsg{}, cmd())
	assert.True(t, env.app.quitting)
	assert.Error(t, env.app.ctx.Err(), "requests are cancelled on quit")
}

func TestQuitGuardNever(t *testing.T) {
	env := newTestEnv(t, func(cfg *config.Config) { cfg.Project.UI.ConfirmQuit = config.ConfirmQuitNever })
	_, cmd := env.app.Update(keyMsg("q"))
	require.NotNil(t, cmd)
	assert.IsType(t, tea.QuitMsg{}, cmd())
}

func TestQuitGuardDirty(t *testing.T) {
	env := newTestEnv(t, func(cfg *config.Config) {
		cfg.Project.UI.ConfirmQuit = config.ConfirmQuitDirty
		cfg.Project.UI.StartScreen = config.ScreenStage2
	})

	env.press(t, "enter", "e")
	require.NotNil(t, env.app.stage2.modal)
	assert.False(t, env.app.stage2.dirty())
	env.app.stage2.modal.input.SetValue("Новое название")
	assert.True(t, env.app.stage2.dirty())

	_, cmd := env.app.Update(keyMsg("ctrl+c"))
	assert.Nil(t, cmd)
	require.Len(t, env.app.dialogs, 1)
	assert.Equal(t, quitPrompt, env.topDialog(t).message)
	env.press(t, "n")

	env.press(t, "esc")
	require.Nil(t, env.app.stage2.modal)
	_, cmd = env.app.Update(keyMsg("q"))
	require.NotNil(t, cmd)
	assert.IsType(t, tea.QuitMsg{}, cmd())
}

func TestLogPanelShowsJournal(t *testing.T) {
	env := newTestEnv(t, nil)
	view := env.app.View()
	assert.Contains(t, view, "ЖУРНАЛ")
	assert.True(t, strings.Contains(view, "Stage 1: загружено 2 закупок"), view)
}

func TestHeaderShowsOperator(t *testing.T) {
	env := newTestEnv(t, func(cfg *config.Config) { cfg.Project.API.UserID = 42 })
	assert.Contains(t, env.app.renderHeader(), "оператор #42")
}

func TestFailureText(t *testing.T) {
	transport := fmt.Errorf("wrapped: %w", &api.TransportError{Op: "list notices", Err: errors.New("connection refused")})
	assert.Equal(t, connectionError, failureText(transport))

	invalid := &api.ValidationError{Op: "add to stage2", Err: errors.New("reg_numbers empty")}
	assert.Equal(t, "Ошибка: "+invalid.Error(), failureText(invalid))
}
