package ui

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/HamStudy/gridwatch/internal/components/dropdown"
	"github.com/HamStudy/gridwatch/internal/components/performance"
	"github.com/HamStudy/gridwatch/internal/components/selection"
	"github.com/HamStudy/gridwatch/internal/components/table"
	"github.com/HamStudy/gridwatch/internal/config"
	"github.com/HamStudy/gridwatch/internal/core"
	"github.com/HamStudy/gridwatch/internal/lookup"
	"github.com/HamStudy/gridwatch/internal/profile"
	"github.com/HamStudy/gridwatch/internal/store"
)

// Rows moved per mouse wheel notch
const wheelRows = 3

// Mode is what currently receives key presses
type Mode int

const (
	ModeList Mode = iota
	ModeSearch
	ModeGroups
)

// Options wires the app to its collaborators.
type Options struct {
	Lookups *lookup.Service
	Store   *store.Store
	Profile profile.Profile
	Config  *config.Config
	Theme   string

	// Changes, when set, reports lookup tables edited in the cluster
	Changes <-chan lookup.Change
}

// Message types
type groupsLoadedMsg struct {
	groups []string
	err    error
}

type groupLoadedMsg lookup.Result

type filterMsg string

type changeMsg lookup.Change

// App represents the main application model
type App struct {
	ctx     context.Context
	state   *core.State
	lookups *lookup.Service
	changes <-chan lookup.Change
	store   *store.Store
	profile profile.Profile
	keys    KeyMap
	theme   *table.Theme

	// Components
	table   *table.Model
	groups  dropdown.Model
	search  textinput.Model
	help    help.Model
	tracker *selection.Tracker

	// Search input debounce; settled values arrive on settled
	query   *performance.Value[string]
	settled chan string

	monitor *performance.PerformanceMonitor
	refresh *performance.RateLimiter

	// UI state
	mode      Mode
	width     int
	height    int
	ready     bool
	status    string
	requested string

	// Offset saved in the profile, applied once its group has loaded
	pendingOffset float64
	hasPending    bool
}

// NewApp creates a new application instance
func NewApp(ctx context.Context, state *core.State, opts Options) *App {
	cfg := opts.Config
	theme := table.ThemeByName(opts.Theme)

	t := table.New([]table.Column{
		{Title: "Code", Width: 14, TruncateAt: "start"},
		{Title: "Label", Flex: true},
	})
	t.SetTheme(theme)
	t.SetRowHeight(cfg.Viewport.RowHeight)
	overscan := cfg.Viewport.Overscan
	if opts.Profile.Overscan > 0 {
		overscan = opts.Profile.Overscan
	}
	t.SetOverscan(overscan)
	if cfg.Viewport.CacheRows > 0 {
		t.SetCacheSize(cfg.Viewport.CacheRows)
	}
	t.Focus()

	groups := dropdown.New(nil)
	groups.SetTitle("Lookup group")
	groups.SetPlaceholder("No lookup groups")

	search := textinput.New()
	search.Prompt = "/ "
	search.Placeholder = "search code or label"

	a := &App{
		ctx:     ctx,
		state:   state,
		lookups: opts.Lookups,
		changes: opts.Changes,
		store:   opts.Store,
		profile: opts.Profile,
		keys:    DefaultKeyMap(),
		theme:   theme,
		table:   t,
		groups:  groups,
		search:  search,
		help:    help.New(),
		tracker: selection.New(),
		query:   performance.NewValue("", cfg.Debounce.Search),
		settled: make(chan string, 1),
		monitor: performance.NewPerformanceMonitor(),
		refresh: performance.NewRateLimiter(cfg.Lookup.RefreshLimit),
	}

	if state.CurrentGroup == "" {
		state.SetGroup(opts.Profile.LastGroup)
	}
	if state.CurrentGroup != "" && state.CurrentGroup == opts.Profile.LastGroup {
		a.pendingOffset = opts.Profile.ScrollOffset
		a.hasPending = true
	}

	a.query.OnSettle(a.publishFilter)
	t.Viewport().SetOnRangeChange(a.rangeChanged)
	return a
}

// Init initializes the application
func (a *App) Init() tea.Cmd {
	cmds := []tea.Cmd{a.loadGroups(), a.waitForFilter(), a.waitForChange()}
	if a.state.CurrentGroup != "" {
		cmds = append(cmds, a.loadGroup(a.state.CurrentGroup, false))
	}
	return tea.Batch(cmds...)
}

// Close stops background work owned by the app.
func (a *App) Close() {
	a.query.Stop()
}

// Update handles messages
func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		a.ready = true
		a.layout()
		return a, nil

	case groupsLoadedMsg:
		return a, a.handleGroups(msg)

	case groupLoadedMsg:
		a.handleGroup(lookup.Result(msg))
		return a, nil

	case filterMsg:
		a.applyFilter(string(msg))
		return a, a.waitForFilter()

	case changeMsg:
		return a, tea.Batch(a.handleChange(lookup.Change(msg)), a.waitForChange())

	case dropdown.SelectedMsg:
		a.mode = ModeList
		return a, a.switchGroup(msg.Option.Value)

	case dropdown.CancelledMsg:
		a.mode = ModeList
		return a, nil

	case tea.MouseMsg:
		a.handleMouse(msg)
		return a, nil

	case tea.KeyMsg:
		return a.handleKey(msg)
	}

	if a.mode == ModeSearch {
		var cmd tea.Cmd
		a.search, cmd = a.search.Update(msg)
		return a, cmd
	}
	return a, nil
}

func (a *App) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.Type == tea.KeyCtrlC {
		return a, a.quit()
	}

	switch a.mode {
	case ModeGroups:
		var cmd tea.Cmd
		a.groups, cmd = a.groups.Update(msg)
		if !a.groups.IsOpen() {
			a.mode = ModeList
		}
		return a, cmd

	case ModeSearch:
		switch msg.Type {
		case tea.KeyEsc:
			a.search.SetValue("")
			a.endSearch()
			return a, nil
		case tea.KeyEnter:
			a.endSearch()
			return a, nil
		}
		var cmd tea.Cmd
		a.search, cmd = a.search.Update(msg)
		a.query.Set(a.search.Value())
		return a, cmd
	}

	switch {
	case key.Matches(msg, a.keys.Quit):
		return a, a.quit()

	case key.Matches(msg, a.keys.Help):
		a.state.ShowHelp = !a.state.ShowHelp
		a.help.ShowAll = a.state.ShowHelp
		a.layout()

	case key.Matches(msg, a.keys.Search):
		a.mode = ModeSearch
		return a, a.search.Focus()

	case key.Matches(msg, a.keys.Groups):
		a.mode = ModeGroups
		a.groups.SetSelectedValue(a.state.CurrentGroup)
		a.groups.Open()

	case key.Matches(msg, a.keys.Refresh):
		return a, a.refreshCurrent()

	case key.Matches(msg, a.keys.Up):
		a.table.MoveUp()
		a.afterMove()
	case key.Matches(msg, a.keys.Down):
		a.table.MoveDown()
		a.afterMove()
	case key.Matches(msg, a.keys.PageUp):
		a.table.PageUp()
		a.afterMove()
	case key.Matches(msg, a.keys.PageDown):
		a.table.PageDown()
		a.afterMove()
	case key.Matches(msg, a.keys.Top):
		a.table.MoveToTop()
		a.afterMove()
	case key.Matches(msg, a.keys.Bottom):
		a.table.MoveToBottom()
		a.afterMove()
	}
	return a, nil
}

func (a *App) handleMouse(msg tea.MouseMsg) {
	if a.mode != ModeList || msg.Action != tea.MouseActionPress {
		return
	}
	switch msg.Button {
	case tea.MouseButtonWheelUp:
		a.table.ScrollBy(-wheelRows)
	case tea.MouseButtonWheelDown:
		a.table.ScrollBy(wheelRows)
	}
}

// endSearch leaves search mode and applies the typed filter without waiting
// for the debounce.
func (a *App) endSearch() {
	a.mode = ModeList
	a.search.Blur()
	a.query.Set(a.search.Value())
	a.query.Flush()
	a.applyFilter(a.query.Current())
}

func (a *App) afterMove() {
	a.tracker.UpdateSelection(a.table.GetSelectedIndex())
}

// rangeChanged saves the view whenever scrolling moves the window. While a
// saved offset is still waiting for its rows, the stored view is left alone.
func (a *App) rangeChanged(performance.Window) {
	if a.hasPending {
		return
	}
	a.persistView()
}

func (a *App) quit() tea.Cmd {
	a.persistView()
	if a.store != nil {
		if err := a.store.Flush(); err != nil {
			log.Printf("Warning: failed to save state: %v", err)
		}
	}
	return tea.Quit
}

// publishFilter runs on the debounce timer goroutine. Only the newest value
// is kept for the UI loop.
func (a *App) publishFilter(q string) {
	for {
		select {
		case a.settled <- q:
			return
		default:
			select {
			case <-a.settled:
			default:
			}
		}
	}
}

func (a *App) waitForFilter() tea.Cmd {
	return func() tea.Msg {
		select {
		case q := <-a.settled:
			return filterMsg(q)
		case <-a.ctx.Done():
			return nil
		}
	}
}

func (a *App) waitForChange() tea.Cmd {
	if a.changes == nil {
		return nil
	}
	return func() tea.Msg {
		select {
		case c, ok := <-a.changes:
			if !ok {
				return nil
			}
			return changeMsg(c)
		case <-a.ctx.Done():
			return nil
		}
	}
}

func (a *App) loadGroups() tea.Cmd {
	return func() tea.Msg {
		groups, err := a.lookups.Groups(a.ctx)
		return groupsLoadedMsg{groups: groups, err: err}
	}
}

func (a *App) loadGroup(group string, refresh bool) tea.Cmd {
	a.requested = group
	return func() tea.Msg {
		if refresh {
			return groupLoadedMsg(a.lookups.Refresh(a.ctx, group))
		}
		return groupLoadedMsg(a.lookups.Get(a.ctx, group))
	}
}

func (a *App) refreshCurrent() tea.Cmd {
	if !a.refresh.Allow() {
		a.status = "refresh throttled"
		return nil
	}
	a.status = ""
	cmds := []tea.Cmd{a.loadGroups()}
	if a.state.CurrentGroup != "" {
		cmds = append(cmds, a.loadGroup(a.state.CurrentGroup, true))
	}
	return tea.Batch(cmds...)
}

func (a *App) handleGroups(msg groupsLoadedMsg) tea.Cmd {
	if msg.err != nil {
		log.Printf("Warning: failed to list lookup groups: %v", msg.err)
	}
	a.state.SetGroups(msg.groups)
	a.groups.SetOptions(dropdown.FromStrings(msg.groups))

	current := a.state.CurrentGroup
	if current == "" {
		if len(msg.groups) == 0 {
			a.status = "no lookup groups"
			return nil
		}
		current = msg.groups[0]
		a.state.SetGroup(current)
	}
	a.groups.SetSelectedValue(current)

	if a.requested == current {
		return nil
	}
	return a.loadGroup(current, false)
}

// handleChange reloads the group list, and the shown table when it is the
// one that changed. The service cache was already invalidated.
func (a *App) handleChange(c lookup.Change) tea.Cmd {
	cmds := []tea.Cmd{a.loadGroups()}
	if c.Group == a.state.CurrentGroup {
		cmds = append(cmds, a.loadGroup(c.Group, false))
	}
	return tea.Batch(cmds...)
}

func (a *App) handleGroup(res lookup.Result) {
	if res.Group != a.state.CurrentGroup {
		return
	}
	a.state.UpdateItems(res)

	a.status = ""
	if res.Err != nil && !res.Degraded {
		a.status = res.Err.Error()
	}
	a.syncTable()
}

func (a *App) switchGroup(group string) tea.Cmd {
	if group == "" || group == a.state.CurrentGroup {
		return nil
	}
	a.state.SetGroup(group)
	a.hasPending = false
	a.tracker.Clear()
	// Render timings of the previous table do not apply to the new one
	a.monitor.Reset("render")
	a.table.ClearRows()
	a.persistView()
	return a.loadGroup(group, false)
}

func (a *App) applyFilter(q string) {
	if q == a.state.FilterString {
		return
	}
	a.state.SetFilter(q)
	a.syncTable()
}

// syncTable pushes the filtered items into the table, keeping the selection
// on the same code.
func (a *App) syncTable() {
	items := a.state.VisibleItems()
	group := a.state.CurrentGroup

	rows := make([]table.Row, len(items))
	ids := make([]selection.Identity, len(items))
	for i, item := range items {
		rows[i] = table.Row{ID: item.Code, Values: []string{item.Code, item.Label}}
		ids[i] = selection.Identity{Group: group, Code: item.Code}
	}
	a.table.SetRows(rows)
	a.tracker.SetRows(ids)

	if a.hasPending {
		a.hasPending = false
		a.table.ScrollTo(a.pendingOffset)
		if r := a.table.Viewport().Range(); !r.IsEmpty() {
			a.table.SetSelectedIndex(r.VisibleStart)
			a.tracker.UpdateSelection(r.VisibleStart)
		}
		return
	}

	a.table.SetSelectedIndex(a.tracker.Restore())
}

// persistView records the group and raw scroll offset in the profile. The
// store batches the writes.
func (a *App) persistView() {
	if a.store == nil {
		return
	}
	p := a.profile
	p.LastGroup = a.state.CurrentGroup
	p.ScrollOffset = a.table.Viewport().CurrentOffset()
	if p == a.profile {
		return
	}
	a.profile = p
	if err := profile.Save(a.store, p); err != nil {
		log.Printf("Warning: %v", err)
	}
}

func (a *App) layout() {
	if !a.ready {
		return
	}
	a.help.Width = a.width
	a.search.Width = a.width - lipgloss.Width(a.search.Prompt) - 1
	a.groups.SetSize(min(a.width, 40), min(a.bodyHeight(), 16))
	// The stored offset is left alone; Compute clamps it per frame.
	a.table.SetSize(a.width, a.bodyHeight())
}

func (a *App) bodyHeight() int {
	chrome := 3 + lipgloss.Height(a.help.View(a.keys))
	return max(a.height-chrome, 0)
}

// View renders the application
func (a *App) View() string {
	if !a.ready {
		return "Initializing..."
	}

	var body string
	if a.mode == ModeGroups {
		body = lipgloss.Place(a.width, a.bodyHeight(), lipgloss.Center, lipgloss.Center, a.groups.View())
	} else {
		stop := a.monitor.StartTimer("render")
		body = a.table.View()
		stop()
	}

	return lipgloss.JoinVertical(lipgloss.Left,
		a.renderHeader(),
		a.search.View(),
		body,
		a.renderStatus(),
		a.help.View(a.keys),
	)
}

func (a *App) renderHeader() string {
	title := lipgloss.NewStyle().Bold(true).Foreground(a.theme.Primary).Render("gridwatch")
	muted := lipgloss.NewStyle().Foreground(a.theme.Muted)

	parts := []string{title, a.profile.Label()}
	if a.state.CurrentNamespace != "" {
		parts = append(parts, muted.Render("ns:"+a.state.CurrentNamespace))
	}
	group := a.state.CurrentGroup
	if group == "" {
		group = "-"
	}
	parts = append(parts, "group: "+group)
	return strings.Join(parts, " ")
}

func (a *App) renderStatus() string {
	muted := lipgloss.NewStyle().Foreground(a.theme.Muted)

	vs := a.table.Viewport().Stats()
	parts := []string{"no rows"}
	if r := vs.Range; !r.IsEmpty() {
		parts[0] = fmt.Sprintf("rows %d-%d of %d", r.VisibleStart+1, r.VisibleEnd+1, vs.TotalItems)
	}
	if a.state.FilterString != "" {
		parts = append(parts, fmt.Sprintf("filter %q", a.state.FilterString))
	}
	if m := a.monitor.GetMetric("render"); m != nil {
		parts = append(parts, "render "+m.RecentAverageTime(10).Round(time.Microsecond).String())
	}
	parts = append(parts, fmt.Sprintf("cache %.0f%%", a.lookups.Metrics().GetHitRatio()*100))

	line := muted.Render(strings.Join(parts, " · "))
	if a.state.Degraded {
		line += " " + lipgloss.NewStyle().Foreground(a.theme.Warning).Render("offline: built-in list")
	}
	if a.status != "" {
		line += " " + lipgloss.NewStyle().Foreground(a.theme.Error).Render(a.status)
	}
	return line
}
