package table

import "github.com/charmbracelet/lipgloss"

// Theme defines styling for the table and the chrome around it
type Theme struct {
	Name           string
	HeaderStyle    lipgloss.Style
	RowStyle       lipgloss.Style
	AlternateStyle lipgloss.Style
	SelectedStyle  lipgloss.Style
	BorderStyle    lipgloss.Style

	Primary lipgloss.Color
	Muted   lipgloss.Color
	Warning lipgloss.Color
	Error   lipgloss.Color
}

// DefaultTheme returns the default table theme
func DefaultTheme() *Theme {
	return &Theme{
		Name:           "default",
		HeaderStyle:    lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("15")),
		RowStyle:       lipgloss.NewStyle().Foreground(lipgloss.Color("252")),
		AlternateStyle: lipgloss.NewStyle().Foreground(lipgloss.Color("252")).Background(lipgloss.Color("235")),
		SelectedStyle:  lipgloss.NewStyle().Foreground(lipgloss.Color("15")).Background(lipgloss.Color("33")),
		BorderStyle:    lipgloss.NewStyle().Foreground(lipgloss.Color("240")),

		Primary: lipgloss.Color("33"),
		Muted:   lipgloss.Color("241"),
		Warning: lipgloss.Color("226"),
		Error:   lipgloss.Color("196"),
	}
}

// LightTheme returns a light theme
func LightTheme() *Theme {
	theme := DefaultTheme()
	theme.Name = "light"
	theme.HeaderStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("0"))
	theme.RowStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("0"))
	theme.AlternateStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("0")).Background(lipgloss.Color("255"))
	theme.Muted = lipgloss.Color("244")
	return theme
}

// HighContrastTheme uses pure black and white with saturated accents
func HighContrastTheme() *Theme {
	return &Theme{
		Name:           "high-contrast",
		HeaderStyle:    lipgloss.NewStyle().Bold(true).Underline(true).Foreground(lipgloss.Color("#ffffff")),
		RowStyle:       lipgloss.NewStyle().Foreground(lipgloss.Color("#ffffff")).Background(lipgloss.Color("#000000")),
		AlternateStyle: lipgloss.NewStyle().Foreground(lipgloss.Color("#ffffff")).Background(lipgloss.Color("#000000")),
		SelectedStyle:  lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#000000")).Background(lipgloss.Color("#ffffff")),
		BorderStyle:    lipgloss.NewStyle().Foreground(lipgloss.Color("#ffffff")),

		Primary: lipgloss.Color("#00ffff"),
		Muted:   lipgloss.Color("#ffffff"),
		Warning: lipgloss.Color("#ffff00"),
		Error:   lipgloss.Color("#ff0000"),
	}
}

// ThemeByName returns the named theme, or the default one.
func ThemeByName(name string) *Theme {
	switch name {
	case "light":
		return LightTheme()
	case "high-contrast":
		return HighContrastTheme()
	}
	return DefaultTheme()
}
