package ui

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/HamStudy/gridwatch/internal/config"
	"github.com/HamStudy/gridwatch/internal/core"
	"github.com/HamStudy/gridwatch/internal/lookup"
	"github.com/HamStudy/gridwatch/internal/profile"
	"github.com/HamStudy/gridwatch/internal/store"
)

type memorySource struct {
	tables map[string][]lookup.Item
}

func (m *memorySource) Fetch(_ context.Context, group string) ([]lookup.Item, error) {
	items, ok := m.tables[group]
	if !ok {
		return nil, fmt.Errorf("%w: %s", lookup.ErrGroupNotFound, group)
	}
	return items, nil
}

func (m *memorySource) Groups(context.Context) ([]string, error) {
	groups := make([]string, 0, len(m.tables))
	for g := range m.tables {
		groups = append(groups, g)
	}
	return groups, nil
}

func codes(n int) []lookup.Item {
	items := make([]lookup.Item, n)
	for i := range items {
		items[i] = lookup.Item{Code: fmt.Sprintf("C%05d", i), Label: fmt.Sprintf("entry %d", i)}
	}
	return items
}

var statusItems = []lookup.Item{
	{Code: "A", Label: "Active"},
	{Code: "I", Label: "Inactive"},
	{Code: "P", Label: "Pending"},
}

func newTestApp(t *testing.T, src lookup.Source, prof profile.Profile) (*App, string) {
	t.Helper()

	cfg := config.NewLoader(t.TempDir()).Get()
	path := filepath.Join(t.TempDir(), "state.yaml")
	st, err := store.Open(path)
	require.NoError(t, err)
	t.Cleanup(st.Close)

	svc := lookup.NewService(src, lookup.ServiceOptions{
		Fallbacks: map[string][]lookup.Item{
			"yes-no": {{Code: "Y", Label: "Yes"}, {Code: "N", Label: "No"}},
		},
	})

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	state := core.NewState(&core.Config{CurrentNamespace: "gridwatch"})
	app := NewApp(ctx, state, Options{Lookups: svc, Store: st, Profile: prof, Config: cfg})
	t.Cleanup(app.Close)

	app.Update(tea.WindowSizeMsg{Width: 80, Height: 24})
	return app, path
}

// loadAll lists the groups and loads whichever group the app picks.
func loadAll(t *testing.T, app *App) {
	t.Helper()
	_, cmd := app.Update(app.loadGroups()())
	if cmd != nil {
		app.Update(cmd())
	}
}

func press(app *App, keys ...string) tea.Cmd {
	var cmd tea.Cmd
	for _, k := range keys {
		var msg tea.KeyMsg
		switch k {
		case "enter":
			msg = tea.KeyMsg{Type: tea.KeyEnter}
		case "esc":
			msg = tea.KeyMsg{Type: tea.KeyEsc}
		case "tab":
			msg = tea.KeyMsg{Type: tea.KeyTab}
		case "pgdown":
			msg = tea.KeyMsg{Type: tea.KeyPgDown}
		case "pgup":
			msg = tea.KeyMsg{Type: tea.KeyPgUp}
		default:
			msg = tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(k)}
		}
		_, cmd = app.Update(msg)
	}
	return cmd
}

func typeText(app *App, text string) {
	for _, r := range text {
		press(app, string(r))
	}
}

func TestAppPaintsOnlyVisibleRows(t *testing.T) {
	app, _ := newTestApp(t, &memorySource{tables: map[string][]lookup.Item{"codes": codes(10000)}}, profile.Profile{})
	loadAll(t, app)

	view := app.View()
	// 24 lines minus header, search, status, help and the table header.
	assert.Contains(t, view, "C00000")
	assert.Contains(t, view, "C00018")
	assert.NotContains(t, view, "C00019")
	assert.Contains(t, view, "rows 1-19 of 10000")

	// 19 visible rows plus the default overscan of 5.
	assert.Equal(t, 24, app.table.Stats().Rendered)
}

func TestKeysAndWheelDriveScrollOffset(t *testing.T) {
	app, _ := newTestApp(t, &memorySource{tables: map[string][]lookup.Item{"codes": codes(10000)}}, profile.Profile{})
	loadAll(t, app)
	vm := app.table.Viewport()

	press(app, "G")
	assert.Equal(t, 9999, app.table.GetSelectedIndex())
	assert.Equal(t, 9981.0, vm.CurrentOffset())
	assert.Contains(t, app.View(), "C09999")

	press(app, "g")
	assert.Equal(t, 0.0, vm.CurrentOffset())

	press(app, "pgdown")
	assert.Equal(t, 19.0, vm.CurrentOffset())
	assert.Equal(t, 19, app.table.GetSelectedIndex())

	app.Update(tea.MouseMsg{Button: tea.MouseButtonWheelDown, Action: tea.MouseActionPress})
	assert.Equal(t, 22.0, vm.CurrentOffset())

	app.Update(tea.MouseMsg{Button: tea.MouseButtonWheelUp, Action: tea.MouseActionPress})
	assert.Equal(t, 19.0, vm.CurrentOffset())
}

func TestResizeKeepsRawOffset(t *testing.T) {
	app, _ := newTestApp(t, &memorySource{tables: map[string][]lookup.Item{"codes": codes(10000)}}, profile.Profile{})
	loadAll(t, app)

	press(app, "G")
	app.Update(tea.WindowSizeMsg{Width: 80, Height: 10})

	vm := app.table.Viewport()
	assert.Equal(t, 9981.0, vm.CurrentOffset())
	r := vm.Range()
	assert.Equal(t, 9981, r.VisibleStart)
	assert.Equal(t, 9985, r.VisibleEnd)
}

func TestSearchAppliesOnEnterAndClearsOnEscape(t *testing.T) {
	app, _ := newTestApp(t, &memorySource{tables: map[string][]lookup.Item{"status": statusItems}}, profile.Profile{})
	loadAll(t, app)

	press(app, "/")
	require.Equal(t, ModeSearch, app.mode)
	typeText(app, "act")

	assert.Equal(t, "act", app.query.Raw())
	assert.Equal(t, "", app.state.FilterString, "filter waits for the input to settle")

	press(app, "enter")
	assert.Equal(t, ModeList, app.mode)
	assert.Equal(t, "act", app.state.FilterString)
	assert.Equal(t, 2, app.table.GetRowCount())

	press(app, "/", "esc")
	assert.Equal(t, "", app.state.FilterString)
	assert.Equal(t, 3, app.table.GetRowCount())
}

func TestSettledFilterMessage(t *testing.T) {
	app, _ := newTestApp(t, &memorySource{tables: map[string][]lookup.Item{"status": statusItems}}, profile.Profile{})
	loadAll(t, app)

	_, cmd := app.Update(filterMsg("pend"))
	assert.NotNil(t, cmd, "keeps listening for settled input")
	assert.Equal(t, 1, app.table.GetRowCount())
}

func TestSelectionFollowsCodeAcrossFilter(t *testing.T) {
	app, _ := newTestApp(t, &memorySource{tables: map[string][]lookup.Item{"status": statusItems}}, profile.Profile{})
	loadAll(t, app)

	press(app, "j", "j")
	require.Equal(t, "P", app.table.GetSelectedRow().ID)

	press(app, "/")
	typeText(app, "en")
	press(app, "enter")

	require.Equal(t, 1, app.table.GetRowCount())
	assert.Equal(t, "P", app.table.GetSelectedRow().ID)

	press(app, "/", "esc")
	assert.Equal(t, 2, app.table.GetSelectedIndex(), "selection stays on P when rows come back")
}

func TestGroupSwitchUsesFallback(t *testing.T) {
	src := &memorySource{tables: map[string][]lookup.Item{"status": statusItems}}
	app, _ := newTestApp(t, src, profile.Profile{})
	loadAll(t, app)
	require.Equal(t, "status", app.state.CurrentGroup)
	app.View()
	require.NotNil(t, app.monitor.GetMetric("render"))

	press(app, "tab")
	require.Equal(t, ModeGroups, app.mode)
	assert.Contains(t, app.View(), "yes-no")

	cmd := press(app, "j", "enter")
	require.NotNil(t, cmd)
	assert.Equal(t, ModeList, app.mode)

	_, load := app.Update(cmd())
	require.NotNil(t, load)
	assert.Nil(t, app.monitor.GetMetric("render"), "render timings restart with the new group")
	app.Update(load())

	assert.Equal(t, "yes-no", app.state.CurrentGroup)
	assert.Equal(t, 2, app.table.GetRowCount())
	assert.Contains(t, app.View(), "offline: built-in list")
}

func TestRefreshIsRateLimited(t *testing.T) {
	app, _ := newTestApp(t, &memorySource{tables: map[string][]lookup.Item{"status": statusItems}}, profile.Profile{})
	loadAll(t, app)

	assert.NotNil(t, press(app, "r"))
	assert.Nil(t, press(app, "r"))
	assert.Contains(t, app.View(), "refresh throttled")
}

func TestQuitPersistsView(t *testing.T) {
	app, path := newTestApp(t, &memorySource{tables: map[string][]lookup.Item{"codes": codes(10000)}}, profile.Profile{})
	loadAll(t, app)

	press(app, "G")
	cmd := press(app, "q")
	require.NotNil(t, cmd)
	assert.IsType(t, tea.QuitMsg{}, cmd())

	reopened, err := store.Open(path)
	require.NoError(t, err)
	defer reopened.Close()

	saved := profile.Load(reopened)
	require.NotNil(t, saved)
	assert.Equal(t, "codes", saved.LastGroup)
	assert.Equal(t, 9981.0, saved.ScrollOffset)
}

func TestScrollingSavesViewBeforeQuit(t *testing.T) {
	app, _ := newTestApp(t, &memorySource{tables: map[string][]lookup.Item{"codes": codes(10000)}}, profile.Profile{})
	loadAll(t, app)

	app.Update(tea.MouseMsg{Button: tea.MouseButtonWheelDown, Action: tea.MouseActionPress})
	saved := profile.Load(app.store)
	require.NotNil(t, saved)
	assert.Equal(t, "codes", saved.LastGroup)
	assert.Equal(t, 3.0, saved.ScrollOffset)

	press(app, "G")
	assert.Equal(t, 9981.0, profile.Load(app.store).ScrollOffset)
}

func TestRestoresSavedOffset(t *testing.T) {
	prof := profile.Profile{LastGroup: "codes", ScrollOffset: 500}
	app, _ := newTestApp(t, &memorySource{tables: map[string][]lookup.Item{"codes": codes(10000)}}, prof)
	require.Equal(t, "codes", app.state.CurrentGroup)

	app.Update(app.loadGroup("codes", false)())
	_, cmd := app.Update(app.loadGroups()())
	assert.Nil(t, cmd, "group already requested")

	assert.Equal(t, 500.0, app.table.Viewport().CurrentOffset())
	assert.Equal(t, 500, app.table.GetSelectedIndex())
	assert.Nil(t, profile.Load(app.store), "restoring leaves the saved view untouched")
	assert.Contains(t, app.View(), "C00500")
}

func TestMouseIgnoredWhileSearching(t *testing.T) {
	app, _ := newTestApp(t, &memorySource{tables: map[string][]lookup.Item{"codes": codes(100)}}, profile.Profile{})
	loadAll(t, app)

	press(app, "/")
	app.Update(tea.MouseMsg{Button: tea.MouseButtonWheelDown, Action: tea.MouseActionPress})
	assert.Equal(t, 0.0, app.table.Viewport().CurrentOffset())
}

func TestInitialisingView(t *testing.T) {
	app, _ := newTestApp(t, &memorySource{}, profile.Profile{})
	app.ready = false
	assert.Equal(t, "Initializing...", app.View())
}

func TestClusterChangeReloadsCurrentGroup(t *testing.T) {
	src := &memorySource{tables: map[string][]lookup.Item{"status": statusItems}}
	app, _ := newTestApp(t, src, profile.Profile{})
	loadAll(t, app)
	press(app, "j", "j")
	require.Equal(t, "P", app.table.GetSelectedRow().ID)

	src.tables["status"] = append([]lookup.Item{{Code: "B", Label: "Blocked"}}, statusItems...)
	app.lookups.Invalidate("status")

	batch, ok := app.handleChange(lookup.Change{Group: "status"})().(tea.BatchMsg)
	require.True(t, ok)
	for _, cmd := range batch {
		if cmd != nil {
			app.Update(cmd())
		}
	}

	assert.Equal(t, 4, app.table.GetRowCount())
	assert.Equal(t, "P", app.table.GetSelectedRow().ID, "selection follows the code")
	assert.Equal(t, 3, app.table.GetSelectedIndex())
}

func TestChangesChannelClosed(t *testing.T) {
	app, _ := newTestApp(t, &memorySource{}, profile.Profile{})
	assert.Nil(t, app.waitForChange(), "no watcher configured")

	changes := make(chan lookup.Change)
	close(changes)
	app.changes = changes
	assert.Nil(t, app.waitForChange()())
}
