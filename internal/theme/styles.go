package theme

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
)

// Styles is the lipgloss rendering of a theme for the TUI.
type Styles struct {
	Terminal     lipgloss.Style
	Sidebar      lipgloss.Style
	SidebarTitle lipgloss.Style
	Muted        lipgloss.Style
	Accent       lipgloss.Style
	Palette      lipgloss.Style
	Selected     lipgloss.Style
	StatusOK     lipgloss.Style
	StatusBad    lipgloss.Style
	ChartCPU     lipgloss.Style
	ChartMemory  lipgloss.Style
	Notification map[string]lipgloss.Style
}

// NewStyles builds the TUI styles for t.
func NewStyles(t Theme) Styles {
	p, r := t.Palette, t.Roles
	bg2 := lipgloss.Color(r.SecondaryBG)
	fg := lipgloss.Color(r.TextPrimary)
	fg2 := lipgloss.Color(r.TextSecondary)

	notification := func(c string) lipgloss.Style {
		return lipgloss.NewStyle().
			Foreground(lipgloss.Color(c)).
			Background(bg2).
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color(c)).
			Padding(0, 1)
	}

	return Styles{
		Terminal: lipgloss.NewStyle().
			Background(lipgloss.Color(r.PrimaryBG)).
			Foreground(lipgloss.Color(p.Foreground)),
		Sidebar: lipgloss.NewStyle().
			Background(bg2).
			Foreground(fg).
			Padding(0, 1),
		SidebarTitle: lipgloss.NewStyle().
			Foreground(lipgloss.Color(p.Cursor)).
			Bold(true),
		Muted:  lipgloss.NewStyle().Foreground(fg2),
		Accent: lipgloss.NewStyle().Foreground(lipgloss.Color(p.Cursor)),
		Palette: lipgloss.NewStyle().
			Background(bg2).
			Foreground(fg).
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color(p.Cursor)).
			Padding(0, 1),
		Selected: lipgloss.NewStyle().
			Background(lipgloss.Color(p.Selection)).
			Foreground(fg),
		StatusOK:    lipgloss.NewStyle().Foreground(lipgloss.Color(p.Green)),
		StatusBad:   lipgloss.NewStyle().Foreground(lipgloss.Color(p.Red)),
		ChartCPU:    lipgloss.NewStyle().Foreground(lipgloss.Color(p.Blue)),
		ChartMemory: lipgloss.NewStyle().Foreground(lipgloss.Color(p.Green)),
		Notification: map[string]lipgloss.Style{
			"info":    notification(p.Cyan),
			"success": notification(p.Green),
			"warning": notification(p.Yellow),
			"error":   notification(p.Red),
		},
	}
}

// ANSI renders text in color c for a plain terminal, degrading to the
// profile the output supports.
func ANSI(profile termenv.Profile, c, text string) string {
	return profile.String(text).Foreground(profile.Color(c)).String()
}

// Level maps a notification level onto a palette color.
func (t Theme) Level(level string) string {
	switch level {
	case "success":
		return t.Palette.Green
	case "warning":
		return t.Palette.Yellow
	case "error":
		return t.Palette.Red
	}
	return t.Palette.Cyan
}
