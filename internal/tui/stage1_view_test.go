package tui

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStage1LoadsNoticesOnMount(t *testing.T) {
	env := newTestEnv(t, nil)
	v := env.app.stage1
	require.NotNil(t, v)

	assert.Len(t, v.table.Rows(), 2)
	assert.Equal(t, 2, v.total)
	assert.Equal(t, 0, v.selected)
	assert.True(t, v.forward.disabled)
	assert.Equal(t, forwardLabel, v.forward.label)

	calls := env.backend.callsTo("GET /api/stage1")
	require.Len(t, calls, 1)
	assert.Equal(t, "10", calls[0].Query.Get("limit"))
	assert.Equal(t, "1", calls[0].Query.Get("user_id"))

	row := v.table.Rows()[0]
	assert.Equal(t, "0373100000124000017", row[1])
	assert.Equal(t, "2024-03-05", row[2])
	assert.Equal(t, "-", v.table.Rows()[1][4])
}

func TestStage1EmptyListShowsPlaceholder(t *testing.T) {
	env := newTestEnv(t, nil)
	env.backend.set("GET /api/stage1", `[]`)
	env.press(t, "r")

	v := env.app.stage1
	assert.Empty(t, v.table.Rows())
	require.Len(t, v.rows.Rows, 1)
	assert.True(t, v.rows.Rows[0].IsPlaceholder())
	assert.Contains(t, v.View(), "Нет данных")
}

func TestStage1LoadFailureKeepsPreviousState(t *testing.T) {
	env := newTestEnv(t, nil)
	env.backend.failWithStatus("GET /api/stage1", http.StatusInternalServerError)

	env.press(t, "r")

	assert.Equal(t, loadError, env.topDialog(t).message)
	assert.Len(t, env.app.stage1.notices, 2)
}

func TestStage1ToggleRowUpdatesForwardAction(t *testing.T) {
	env := newTestEnv(t, nil)
	env.press(t, "down", "space")

	v := env.app.stage1
	assert.Equal(t, []string{"0148300000124000211"}, v.selectedIDs())
	assert.Equal(t, 1, v.selected)
	assert.False(t, v.forward.disabled)
	assert.Equal(t, "➕ Добавить закупки (1)", v.forward.label)
	assert.Equal(t, "[x]", v.table.Rows()[1][0])

	env.press(t, "space")
	assert.True(t, v.forward.disabled)
	assert.Equal(t, forwardLabel, v.forward.label)
}

func TestStage1ForwardSelection(t *testing.T) {
	env := newTestEnv(t, nil)
	env.backend.reset()

	env.press(t, "a")
	v := env.app.stage1
	assert.Equal(t, 2, v.selected)

	env.press(t, "f")
	assert.Equal(t, "Добавить 2 закупок для ИИ-анализа?", env.topDialog(t).message)
	env.press(t, "y")

	calls := env.backend.callsTo("POST /api/actions/add_to_stage2")
	require.Len(t, calls, 1)
	assert.Equal(t, []any{"0373100000124000017", "0148300000124000211"}, calls[0].Body["reg_numbers"])
	assert.Equal(t, float64(1), calls[0].Body["user_id"])

	assert.Contains(t, env.topDialog(t).message, "Добавлено 2 закупок")
	assert.Empty(t, v.selectedIDs())
	assert.False(t, v.selectAll)
	assert.Equal(t, 0, v.selected)
	assert.False(t, v.forward.disabled, "the action is re-enabled after the request")
	assert.Equal(t, "Добавлено!", v.forwardStatus)
}

func TestStage1ForwardDeclined(t *testing.T) {
	env := newTestEnv(t, nil)
	env.press(t, "a", "f", "n")

	assert.Empty(t, env.backend.callsTo("POST /api/actions/add_to_stage2"))
	assert.Equal(t, 2, env.app.stage1.selected)
}

func TestStage1ForwardWithoutSelectionAlerts(t *testing.T) {
	env := newTestEnv(t, nil)
	v := env.app.stage1
	v.forward.disabled = false

	env.press(t, "f")
	assert.Equal(t, noSelectionNotice, env.topDialog(t).message)
}

func TestStage1ForwardApplicationError(t *testing.T) {
	env := newTestEnv(t, nil)
	env.backend.set("POST /api/actions/add_to_stage2", `{"status":"warning","count":0,"message":"Ни одна закупка не была добавлена"}`)

	env.press(t, "a", "f", "y")

	assert.Equal(t, "Ошибка: Ни одна закупка не была добавлена", env.topDialog(t).message)
	v := env.app.stage1
	assert.Len(t, v.selectedIDs(), 2, "selection survives a refusal")
	assert.Equal(t, "Ошибка", v.forwardStatus)
	assert.False(t, v.forward.disabled)
}

func TestStage1ForwardConnectionError(t *testing.T) {
	env := newTestEnv(t, nil)
	env.backend.dropConnection("POST /api/actions/add_to_stage2")

	env.press(t, "a", "f", "y")

	v := env.app.stage1
	assert.Equal(t, connectionError, v.forwardStatus)
	assert.Empty(t, env.app.dialogs)
	assert.False(t, v.forward.disabled)
}

func TestStage1IngestionRejectsBadInput(t *testing.T) {
	env := newTestEnv(t, nil)
	for _, input := range []string{"abc", "0", "-3", ""} {
		env.press(t, "i")
		d := env.topDialog(t)
		require.Equal(t, ingestPrompt, d.message)
		assert.Equal(t, ingestDefault, d.input.Value())
		d.input.SetValue(input)
		env.press(t, "enter")
		assert.Equal(t, badNumber, env.topDialog(t).message, "input %q", input)
		env.dismissAll(t)
	}
	assert.Empty(t, env.backend.callsTo("POST /api/actions/run_stage1"))
	assert.Equal(t, 10, env.app.stage1.limit)
}

func TestStage1IngestionCancelled(t *testing.T) {
	env := newTestEnv(t, nil)
	env.press(t, "i", "esc")
	assert.Empty(t, env.app.dialogs)
	assert.Empty(t, env.backend.callsTo("POST /api/actions/run_stage1"))
}

func TestStage1IngestionReloadsWithNewPageSize(t *testing.T) {
	env := newTestEnv(t, nil)
	env.press(t, "i")
	env.topDialog(t).input.SetValue("25 штук")
	env.press(t, "enter")

	calls := env.backend.callsTo("POST /api/actions/run_stage1")
	require.Len(t, calls, 1)
	assert.Equal(t, map[string]any{"limit": float64(25)}, calls[0].Body)

	assert.Equal(t, "Загружено 25 закупок", env.topDialog(t).message)
	loads := env.backend.callsTo("GET /api/stage1")
	require.Len(t, loads, 2)
	assert.Equal(t, "25", loads[1].Query.Get("limit"))
	v := env.app.stage1
	assert.Equal(t, 25, v.limit)
	assert.Equal(t, "Готово!", v.ingestStatus)
	assert.False(t, v.ingest.disabled)
}

func TestStage1IngestionRefused(t *testing.T) {
	env := newTestEnv(t, nil)
	env.backend.set("POST /api/actions/run_stage1", `{"status":"error","message":"ЕИС недоступна"}`)
	env.press(t, "i", "enter")

	assert.Equal(t, "Ошибка: ЕИС недоступна", env.topDialog(t).message)
	assert.Len(t, env.backend.callsTo("GET /api/stage1"), 1)
	assert.Equal(t, 10, env.app.stage1.limit)
}

func TestStage1CopyAndOpenLink(t *testing.T) {
	env := newTestEnv(t, nil)
	env.press(t, "y", "down", "o")

	want0 := "https://zakupki.gov.ru/epz/order/notice/zk20/view/common-info.html?regNumber=0373100000124000017"
	want1 := "https://zakupki.gov.ru/epz/order/notice/zk20/view/common-info.html?regNumber=0148300000124000211"
	assert.Equal(t, []string{want0}, env.copied)
	assert.Equal(t, []string{want1}, env.opened)
	assert.Equal(t, "Открыто: "+want1, env.app.statusMsg)
}

func TestParseLeadingInt(t *testing.T) {
	cases := []struct {
		in   string
		want int
		ok   bool
	}{
		{"10", 10, true},
		{"  25", 25, true},
		{"12abc", 12, true},
		{"+7", 7, true},
		{"-5", -5, true},
		{"abc", 0, false},
		{"", 0, false},
		{"-", 0, false},
	}
	for _, tc := range cases {
		got, ok := parseLeadingInt(tc.in)
		assert.Equal(t, tc.ok, ok, tc.in)
		assert.Equal(t, tc.want, got, tc.in)
	}
}

func TestStage1IngestionMessageShownVerbatim(t *testing.T) {
	env := newTestEnv(t, nil)
	env.backend.set("POST /api/actions/run_stage1", `{"status":"ok","message":"Обработано 100% (%d) закупок"}`)
	env.press(t, "i", "enter")

	assert.Equal(t, "Обработано 100% (%d) закупок", env.topDialog(t).message)
}
