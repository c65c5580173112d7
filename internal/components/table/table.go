package table

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/reflow/truncate"

	"github.com/HamStudy/gridwatch/internal/components/performance"
)

// Column represents a table column configuration
type Column struct {
	Title      string
	Width      int
	MinWidth   int
	MaxWidth   int
	Flex       bool // If true, column can expand to fill available space
	Align      lipgloss.Position
	TruncateAt string // Where to truncate: "end" or "start"
}

// Row represents a single row of data
type Row struct {
	ID     string   // Unique identifier for the row
	Values []string // Cell values
	Style  lipgloss.Style
}

// RenderStats counts row paints since the last reset.
type RenderStats struct {
	Rendered int // rows laid out from cell values
	Cached   int // rows served from the render cache
}

// Model is a virtualized table: only rows inside the render range of its
// ViewportManager are laid out, and only the visible ones are painted.
type Model struct {
	// Configuration
	columns           []Column
	rows              []Row
	width             int
	height            int
	rowHeight         int
	overscan          int
	headerStyle       lipgloss.Style
	selectedStyle     lipgloss.Style
	rowStyle          lipgloss.Style
	alternateRowStyle lipgloss.Style

	// State
	selectedIndex int
	columnWidths  []int
	vm            *performance.ViewportManager
	stats         RenderStats

	// Behavior
	selectable bool
	focused    bool
}

// New creates a new table model
func New(columns []Column) *Model {
	m := &Model{
		columns:           columns,
		rows:              []Row{},
		rowHeight:         1,
		overscan:          performance.DefaultOverscan,
		selectable:        true,
		headerStyle:       lipgloss.NewStyle().Bold(true),
		selectedStyle:     lipgloss.NewStyle().Background(lipgloss.Color("240")),
		rowStyle:          lipgloss.NewStyle(),
		alternateRowStyle: lipgloss.NewStyle(),
	}
	m.vm = performance.NewViewportManager(m.viewport())
	return m
}

// Viewport exposes the scroll state of the table body
func (m *Model) Viewport() *performance.ViewportManager {
	return m.vm
}

// SetRows sets the table rows
func (m *Model) SetRows(rows []Row) {
	m.rows = rows
	if m.selectedIndex >= len(rows) {
		m.selectedIndex = len(rows) - 1
	}
	if m.selectedIndex < 0 {
		m.selectedIndex = 0
	}
	m.vm.ClearCache()
	m.vm.SetTotalItems(len(rows))
}

// ClearRows removes all rows from the table
func (m *Model) ClearRows() {
	m.SetRows([]Row{})
	m.selectedIndex = 0
	m.vm.OnScroll(0)
}

// SetSize sets the table dimensions
func (m *Model) SetSize(width, height int) {
	if width != m.width {
		m.vm.ClearCache()
	}
	m.width = width
	m.height = height
	m.calculateColumnWidths()
	m.vm.SetViewport(m.viewport())
}

// SetRowHeight sets the number of lines per row
func (m *Model) SetRowHeight(lines int) {
	if lines < 1 {
		lines = 1
	}
	m.rowHeight = lines
	m.vm.ClearCache()
	m.vm.SetViewport(m.viewport())
}

// SetOverscan sets how many rows beyond each edge are laid out ahead of time
func (m *Model) SetOverscan(rows int) {
	m.overscan = rows
	m.vm.SetViewport(m.viewport())
}

// SetCacheSize bounds the number of laid-out rows kept between frames
func (m *Model) SetCacheSize(rows int) {
	m.vm.SetCacheSize(rows)
}

// SetStyles sets the table styles
func (m *Model) SetStyles(header, selected, row, alternateRow lipgloss.Style) {
	m.headerStyle = header
	m.selectedStyle = selected
	m.rowStyle = row
	m.alternateRowStyle = alternateRow
}

// SetTheme applies a theme's styles
func (m *Model) SetTheme(theme *Theme) {
	if theme == nil {
		return
	}
	m.SetStyles(theme.HeaderStyle, theme.SelectedStyle, theme.RowStyle, theme.AlternateStyle)
}

// Focus sets the focus state
func (m *Model) Focus() {
	m.focused = true
}

// ScrollTo records a raw scroll offset in lines. The selection is untouched.
func (m *Model) ScrollTo(offset float64) {
	m.vm.OnScroll(offset)
}

// ScrollBy scrolls by delta rows
func (m *Model) ScrollBy(delta int) {
	m.vm.ScrollBy(delta)
}

// MoveUp moves selection up
func (m *Model) MoveUp() {
	m.moveTo(m.selectedIndex - 1)
}

// MoveDown moves selection down
func (m *Model) MoveDown() {
	m.moveTo(m.selectedIndex + 1)
}

// MoveToTop moves selection to the first row
func (m *Model) MoveToTop() {
	m.moveTo(0)
}

// MoveToBottom moves selection to the last row
func (m *Model) MoveToBottom() {
	m.moveTo(len(m.rows) - 1)
}

// PageUp moves selection and the viewport up by one page
func (m *Model) PageUp() {
	if !m.selectable || len(m.rows) == 0 {
		return
	}
	page := m.pageRows()
	m.vm.ScrollBy(-page)
	m.moveTo(m.selectedIndex - page)
}

// PageDown moves selection and the viewport down by one page
func (m *Model) PageDown() {
	if !m.selectable || len(m.rows) == 0 {
		return
	}
	page := m.pageRows()
	m.vm.ScrollBy(page)
	m.moveTo(m.selectedIndex + page)
}

func (m *Model) moveTo(index int) {
	if !m.selectable || len(m.rows) == 0 {
		return
	}
	if index < 0 {
		index = 0
	}
	if index >= len(m.rows) {
		index = len(m.rows) - 1
	}
	m.selectedIndex = index
	m.vm.EnsureVisible(index)
}

// GetSelectedRow returns the currently selected row
func (m *Model) GetSelectedRow() *Row {
	if m.selectedIndex >= 0 && m.selectedIndex < len(m.rows) {
		return &m.rows[m.selectedIndex]
	}
	return nil
}

// GetSelectedIndex returns the current selection index
func (m *Model) GetSelectedIndex() int {
	return m.selectedIndex
}

// SetSelectedIndex sets the selection index and scrolls it into view
func (m *Model) SetSelectedIndex(index int) {
	if index >= 0 && index < len(m.rows) {
		m.moveTo(index)
	}
}

// GetRowCount returns the total number of rows
func (m *Model) GetRowCount() int {
	return len(m.rows)
}

// Stats returns the paint counters
func (m *Model) Stats() RenderStats {
	return m.stats
}

// ResetStats zeroes the paint counters
func (m *Model) ResetStats() {
	m.stats = RenderStats{}
}

// View renders the table
func (m *Model) View() string {
	if m.width == 0 || m.height == 0 {
		return ""
	}

	lines := []string{m.renderHeader()}

	body := m.bodyHeight()
	window := m.vm.Window()
	offset := m.vm.EffectiveOffset()

	painted := 0
	for _, item := range window.Items {
		content := m.layoutRow(item.Index)
		if !window.Range.IsVisible(item.Index) || painted >= body {
			continue
		}
		for j, line := range m.paintRow(item.Index, content) {
			// Skip lines scrolled above the top edge.
			if item.Offset+float64(j+1) <= offset {
				continue
			}
			if painted >= body {
				break
			}
			lines = append(lines, line)
			painted++
		}
	}

	for len(lines) < m.height {
		lines = append(lines, strings.Repeat(" ", m.width))
	}
	if len(lines) > m.height {
		lines = lines[:m.height]
	}

	return strings.Join(lines, "\n")
}

// Private methods

func (m *Model) bodyHeight() int {
	// One line for the header
	h := m.height - 1
	if h < 0 {
		h = 0
	}
	return h
}

func (m *Model) pageRows() int {
	page := m.bodyHeight() / m.rowHeight
	if page < 1 {
		page = 1
	}
	return page
}

func (m *Model) viewport() performance.Viewport {
	return performance.Viewport{
		Height:     float64(m.bodyHeight()),
		ItemHeight: float64(m.rowHeight),
		Overscan:   m.overscan,
	}
}

// layoutRow returns the unstyled cells of index, from cache when possible.
func (m *Model) layoutRow(index int) string {
	if content, ok := m.vm.GetCachedItem(index); ok {
		m.stats.Cached++
		return content
	}
	content := m.renderCells(m.rows[index])
	m.vm.CacheRenderedItem(index, content)
	m.stats.Rendered++
	return content
}

// paintRow styles a laid-out row and pads it to the row height.
func (m *Model) paintRow(index int, content string) []string {
	row := m.rows[index]

	style := m.rowStyle
	if index%2 == 1 {
		style = m.alternateRowStyle
	}
	if row.Style.String() != "" {
		style = row.Style
	}
	if m.selectable && m.focused && index == m.selectedIndex {
		style = m.selectedStyle
	}

	lines := make([]string, m.rowHeight)
	lines[0] = style.Render(content)
	blank := strings.Repeat(" ", m.width)
	for i := 1; i < m.rowHeight; i++ {
		lines[i] = blank
	}
	return lines
}

func (m *Model) calculateColumnWidths() {
	if len(m.columns) == 0 || m.width == 0 {
		return
	}

	m.columnWidths = make([]int, len(m.columns))
	totalFixed := 0
	flexCount := 0

	for i, col := range m.columns {
		switch {
		case col.Width > 0:
			width := col.Width
			if col.MaxWidth > 0 && width > col.MaxWidth {
				width = col.MaxWidth
			}
			if col.MinWidth > 0 && width < col.MinWidth {
				width = col.MinWidth
			}
			m.columnWidths[i] = width
			totalFixed += width
		case col.Flex:
			flexCount++
			m.columnWidths[i] = max(col.MinWidth, 1)
		default:
			width := col.MinWidth
			if width == 0 {
				width = 10
			}
			m.columnWidths[i] = width
			totalFixed += width
		}
	}

	if flexCount == 0 {
		return
	}

	// One space between columns
	available := m.width - totalFixed - (len(m.columns) - 1)
	minTotal := 0
	for i, col := range m.columns {
		if col.Flex && col.Width == 0 {
			minTotal += m.columnWidths[i]
		}
	}

	switch {
	case available > minTotal:
		// Hand out the extra space one column at a time, honouring MaxWidth.
		extra := available - minTotal
		for extra > 0 {
			grew := false
			for i, col := range m.columns {
				if extra == 0 {
					break
				}
				if !col.Flex || col.Width != 0 {
					continue
				}
				if col.MaxWidth > 0 && m.columnWidths[i] >= col.MaxWidth {
					continue
				}
				m.columnWidths[i]++
				extra--
				grew = true
			}
			if !grew {
				break
			}
		}
	case available < minTotal:
		for i, col := range m.columns {
			if !col.Flex || col.Width != 0 {
				continue
			}
			if available <= 0 {
				m.columnWidths[i] = 1
				continue
			}
			w := int(float64(available) * float64(m.columnWidths[i]) / float64(minTotal))
			m.columnWidths[i] = max(w, 1)
		}
	}
}

func (m *Model) renderHeader() string {
	if len(m.columns) == 0 || len(m.columnWidths) == 0 {
		return ""
	}

	cells := make([]string, len(m.columns))
	for i, col := range m.columns {
		width := m.columnWidths[i]
		if width <= 0 {
			continue
		}
		text := truncate.StringWithTail(col.Title, uint(width), "…")
		cells[i] = align(text, width, col.Align)
	}

	return m.headerStyle.Render(strings.Join(cells, " "))
}

func (m *Model) renderCells(row Row) string {
	if len(m.columns) == 0 || len(m.columnWidths) == 0 {
		return ""
	}

	cells := make([]string, len(m.columns))
	for i, col := range m.columns {
		width := m.columnWidths[i]
		if width <= 0 {
			continue
		}

		text := ""
		if i < len(row.Values) {
			text = row.Values[i]
		}
		if lipgloss.Width(text) > width {
			if col.TruncateAt == "start" {
				text = truncateStart(text, width)
			} else {
				text = truncate.StringWithTail(text, uint(width), "…")
			}
		}

		cells[i] = align(text, width, col.Align)
	}

	return strings.Join(cells, " ")
}

func align(text string, width int, pos lipgloss.Position) string {
	return lipgloss.NewStyle().Width(width).MaxWidth(width).Align(pos).Render(text)
}

// truncateStart keeps the tail of text, which is the informative part of
// long dotted codes.
func truncateStart(text string, width int) string {
	if width <= 1 {
		return "…"
	}
	runes := []rune(text)
	keep := width - 1
	if keep > len(runes) {
		keep = len(runes)
	}
	return "…" + string(runes[len(runes)-keep:])
}
