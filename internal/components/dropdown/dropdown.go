package dropdown

import (
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/reflow/truncate"

	"github.com/HamStudy/gridwatch/internal/components/performance"
	"github.com/HamStudy/gridwatch/internal/lookup"
)

// Option represents a dropdown option
type Option struct {
	Label string
	Value string
}

// FromItems builds options from a lookup table, labelled "code  label".
func FromItems(items []lookup.Item) []Option {
	options := make([]Option, len(items))
	for i, item := range items {
		label := item.Code
		if item.Label != "" && item.Label != item.Code {
			label = item.Code + "  " + item.Label
		}
		options[i] = Option{Label: label, Value: item.Code}
	}
	return options
}

// FromStrings builds options whose label is their value.
func FromStrings(values []string) []Option {
	options := make([]Option, len(values))
	for i, v := range values {
		options[i] = Option{Label: v, Value: v}
	}
	return options
}

// Model represents the dropdown component
type Model struct {
	// Options
	options []Option

	// State
	selectedIndex int
	isOpen        bool
	width         int
	height        int

	// Styling
	selectedStyle   lipgloss.Style
	unselectedStyle lipgloss.Style
	borderStyle     lipgloss.Style
	titleStyle      lipgloss.Style
	hintStyle       lipgloss.Style

	// Configuration
	title       string
	placeholder string

	// Key bindings
	keyMap KeyMap
}

// KeyMap defines the key bindings for the dropdown
type KeyMap struct {
	Up     key.Binding
	Down   key.Binding
	Enter  key.Binding
	Escape key.Binding
}

// DefaultKeyMap returns the default key bindings
func DefaultKeyMap() KeyMap {
	return KeyMap{
		Up: key.NewBinding(
			key.WithKeys("up", "k"),
			key.WithHelp("↑/k", "move up"),
		),
		Down: key.NewBinding(
			key.WithKeys("down", "j"),
			key.WithHelp("↓/j", "move down"),
		),
		Enter: key.NewBinding(
			key.WithKeys("enter"),
			key.WithHelp("enter", "select"),
		),
		Escape: key.NewBinding(
			key.WithKeys("esc"),
			key.WithHelp("esc", "cancel"),
		),
	}
}

// New creates a new dropdown model
func New(options []Option) Model {
	return Model{
		options:         options,
		width:           30,
		height:          10,
		selectedStyle:   lipgloss.NewStyle().Background(lipgloss.Color("57")).Foreground(lipgloss.Color("229")),
		unselectedStyle: lipgloss.NewStyle().Foreground(lipgloss.Color("7")),
		borderStyle:     lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("240")),
		titleStyle:      lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("86")),
		hintStyle:       lipgloss.NewStyle().Foreground(lipgloss.Color("241")),
		placeholder:     "Select an option...",
		keyMap:          DefaultKeyMap(),
	}
}

// SetOptions updates the dropdown options, keeping the selected value when
// it is still present
func (m *Model) SetOptions(options []Option) {
	current := m.GetSelectedOption().Value
	m.options = options
	m.selectedIndex = 0
	m.SetSelectedValue(current)
}

// SetTitle sets the dropdown title
func (m *Model) SetTitle(title string) {
	m.title = title
}

// SetPlaceholder sets the placeholder text
func (m *Model) SetPlaceholder(placeholder string) {
	m.placeholder = placeholder
}

// SetSize sets the dropdown dimensions
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
}

// Open opens the dropdown
func (m *Model) Open() {
	m.isOpen = true
}

// Close closes the dropdown
func (m *Model) Close() {
	m.isOpen = false
}

// IsOpen returns whether the dropdown is open
func (m *Model) IsOpen() bool {
	return m.isOpen
}

// GetSelectedOption returns the currently selected option
func (m *Model) GetSelectedOption() Option {
	if m.selectedIndex >= 0 && m.selectedIndex < len(m.options) {
		return m.options[m.selectedIndex]
	}
	return Option{}
}

// GetSelectedIndex returns the currently selected index
func (m *Model) GetSelectedIndex() int {
	return m.selectedIndex
}

// SetSelectedIndex sets the selected index
func (m *Model) SetSelectedIndex(index int) {
	if index >= 0 && index < len(m.options) {
		m.selectedIndex = index
	}
}

// SetSelectedValue sets the selected option by value
func (m *Model) SetSelectedValue(value string) {
	for i, option := range m.options {
		if option.Value == value {
			m.selectedIndex = i
			return
		}
	}
}

// Init initializes the dropdown
func (m Model) Init() tea.Cmd {
	return nil
}

// Update handles messages
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if !m.isOpen || len(m.options) == 0 {
			if m.isOpen && key.Matches(msg, m.keyMap.Escape) {
				m.isOpen = false
				return m, func() tea.Msg { return CancelledMsg{} }
			}
			return m, nil
		}

		switch {
		case key.Matches(msg, m.keyMap.Up):
			if m.selectedIndex > 0 {
				m.selectedIndex--
			} else {
				m.selectedIndex = len(m.options) - 1
			}
			return m, nil

		case key.Matches(msg, m.keyMap.Down):
			if m.selectedIndex < len(m.options)-1 {
				m.selectedIndex++
			} else {
				m.selectedIndex = 0
			}
			return m, nil

		case key.Matches(msg, m.keyMap.Enter):
			m.isOpen = false
			selected := SelectedMsg{
				Option: m.GetSelectedOption(),
				Index:  m.selectedIndex,
			}
			return m, func() tea.Msg { return selected }

		case key.Matches(msg, m.keyMap.Escape):
			m.isOpen = false
			return m, func() tea.Msg { return CancelledMsg{} }
		}
	}

	return m, nil
}

// maxVisible is the number of option rows that fit inside the border.
func (m Model) maxVisible() int {
	rows := m.height - 2
	if m.title != "" {
		rows--
	}
	if rows < 1 {
		rows = 1
	}
	return rows
}

// visibleRange centers the selection in a window of maxVisible rows.
func (m Model) visibleRange() (start, end int) {
	rows := m.maxVisible()
	n := len(m.options)
	if n <= rows {
		return 0, n
	}

	offset := float64(m.selectedIndex - rows/2)
	vp := performance.Viewport{Height: float64(rows), ItemHeight: 1}
	r, err := performance.Compute(n, vp, offset)
	if err != nil || r.IsEmpty() {
		return 0, 0
	}
	return r.RenderStart, r.RenderEnd + 1
}

// View renders the dropdown
func (m Model) View() string {
	if !m.isOpen {
		return ""
	}

	var content strings.Builder

	if m.title != "" {
		content.WriteString(m.titleStyle.Render(m.title))
		content.WriteString("\n")
	}

	maxWidth := m.width - 4
	if maxWidth < 4 {
		maxWidth = 4
	}

	if len(m.options) == 0 {
		content.WriteString(m.hintStyle.Render(m.placeholder))
		return m.borderStyle.Width(m.width).Render(content.String())
	}

	startIndex, endIndex := m.visibleRange()
	for i := startIndex; i < endIndex; i++ {
		line := truncate.StringWithTail(m.options[i].Label, uint(maxWidth), "...")

		if i == m.selectedIndex {
			line = m.selectedStyle.Width(maxWidth).Render(line)
		} else {
			line = m.unselectedStyle.Width(maxWidth).Render(line)
		}

		content.WriteString(line)
		if i < endIndex-1 {
			content.WriteString("\n")
		}
	}

	if len(m.options) > m.maxVisible() {
		scrollInfo := ""
		if startIndex > 0 {
			scrollInfo += "↑ "
		}
		if endIndex < len(m.options) {
			scrollInfo += "↓"
		}
		if scrollInfo != "" {
			content.WriteString("\n")
			content.WriteString(m.hintStyle.Render(scrollInfo))
		}
	}

	return m.borderStyle.Width(m.width).Render(content.String())
}

// SelectedMsg is sent when an option is selected
type SelectedMsg struct {
	Option Option
	Index  int
}

// CancelledMsg is sent when the dropdown is cancelled
type CancelledMsg struct{}
