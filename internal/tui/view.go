package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"
	"github.com/mattn/go-runewidth"

	"webterm/internal/chrome"
	"webterm/internal/theme"
)

func (m *Model) View() string {
	if m.width == 0 {
		return "connecting..."
	}
	st := theme.NewStyles(m.sess.Theme.Current())
	paneW, paneH := m.paneSize()

	var pane string
	if m.sess.Palette.Visible() {
		pane = st.Terminal.Width(paneW).Height(paneH).Render(
			lipgloss.Place(paneW, paneH, lipgloss.Center, lipgloss.Top, m.paletteView(st, paneW)))
	} else {
		pane = st.Terminal.Width(paneW).Height(paneH).Render(m.terminalView(paneW, paneH))
	}

	body := pane
	if !m.sess.Sidebar.Collapsed() {
		side := st.Sidebar.Width(sidebarWidth).Height(paneH).Render(m.sidebarView(st))
		body = lipgloss.JoinHorizontal(lipgloss.Top, pane, side)
	}
	return lipgloss.JoinVertical(lipgloss.Left, body, m.statusView(st))
}

func (m *Model) terminalView(w, h int) string {
	rows := m.term.StyledRows()
	if len(rows) > h {
		rows = rows[len(rows)-h:]
	}
	lines := make([]string, len(rows))
	for i, r := range rows {
		r = ansi.Truncate(r, w, "")
		if pad := w - ansi.StringWidth(r); pad > 0 {
			r += strings.Repeat(" ", pad)
		}
		lines[i] = r
	}
	return strings.Join(lines, "\n")
}

func (m *Model) sidebarView(st theme.Styles) string {
	inner := sidebarWidth - 2
	var b strings.Builder
	line := func(s string) {
		b.WriteString(s)
		b.WriteByte('\n')
	}
	field := func(label, value string) {
		value = runewidth.Truncate(value, inner-runewidth.StringWidth(label)-1, "…")
		line(st.Muted.Render(label+" ") + value)
	}

	line(st.SidebarTitle.Render("webterm"))
	if m.sess.Renderer.Connected() {
		line(st.StatusOK.Render("● connected"))
	} else {
		line(st.StatusBad.Render("○ disconnected"))
	}
	b.WriteByte('\n')

	stats := m.sess.Stats
	id := stats.SessionID
	if len(id) > 8 {
		id = id[:8]
	}
	if id == "" {
		id = "-"
	}
	field("Session", id)
	field("Commands", fmt.Sprint(stats.CommandCount))
	field("Uptime", m.sess.Uptime())
	field("Theme", m.sess.Theme.Current().Name)

	if perf := m.sess.Perf; perf != nil {
		b.WriteByte('\n')
		r := perf.Readout()
		field("CPU", r.CPU)
		field("Memory", r.Memory)
		field("Disk", r.Disk)
		if c := perf.Chart(); c != nil && c.Len() > 0 {
			line(st.Muted.Render("cpu ") + st.ChartCPU.Render(tail(chrome.Sparkline(c.CPU), inner-4)))
			line(st.Muted.Render("mem ") + st.ChartMemory.Render(tail(chrome.Sparkline(c.Memory), inner-4)))
		}
	}

	if recent := m.sess.History.Entries(); len(recent) > 0 {
		b.WriteByte('\n')
		line(st.SidebarTitle.Render("Recent"))
		for _, cmd := range recent[max(0, len(recent)-recentCommands):] {
			line(runewidth.Truncate(cmd, inner, "…"))
		}
	}

	b.WriteByte('\n')
	line(st.SidebarTitle.Render("Quick commands"))
	for i, cmd := range chrome.QuickCommands {
		line(st.Accent.Render(fmt.Sprintf("alt+%d ", i+1)) + runewidth.Truncate(cmd, inner-6, "…"))
	}

	if active := m.sess.Notifier.Active(); len(active) > 0 {
		b.WriteByte('\n')
		for _, n := range active {
			style := st.Notification[string(n.Level)]
			b.WriteString(style.Width(inner - 2).Render(n.Message))
			b.WriteByte('\n')
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

func (m *Model) paletteView(st theme.Styles, paneW int) string {
	w := min(paneW-4, 60)
	var b strings.Builder
	m.input.Width = w - 4
	b.WriteString(m.input.View())
	b.WriteByte('\n')

	results := m.sess.Palette.Results()
	if len(results) == 0 {
		b.WriteString(st.Muted.Render("Enter runs the typed command"))
	}
	cmdW := 16
	for i, e := range results {
		row := runewidth.FillRight(e.Command, cmdW) + " " + e.Description
		row = runewidth.FillRight(runewidth.Truncate(row, w-2, "…"), w-2)
		if i == m.sess.Palette.Selected() {
			row = st.Selected.Render(row)
		}
		b.WriteString(row)
		if i < len(results)-1 {
			b.WriteByte('\n')
		}
	}
	return st.Palette.Width(w).Render(b.String())
}

func (m *Model) statusView(st theme.Styles) string {
	var text string
	if active := m.sess.Notifier.Active(); len(active) > 0 && m.sess.Sidebar.Collapsed() {
		n := active[len(active)-1]
		c := m.sess.Theme.Current().Level(string(n.Level))
		text = lipgloss.NewStyle().Foreground(lipgloss.Color(c)).Render(n.Message)
	} else {
		var parts []string
		for _, b := range m.keys.ShortHelp() {
			h := b.Help()
			parts = append(parts, st.Accent.Render(h.Key)+" "+st.Muted.Render(h.Desc))
		}
		text = strings.Join(parts, "  ")
	}
	return lipgloss.NewStyle().MaxWidth(m.width).Render(text)
}

// tail keeps the last n runes of s.
func tail(s string, n int) string {
	r := []rune(s)
	if n <= 0 || len(r) <= n {
		return s
	}
	return string(r[len(r)-n:])
}
