package screen

import (
	"fmt"
	"image/color"
	"strings"

	"github.com/charmbracelet/lipgloss"
	uv "github.com/charmbracelet/ultraviolet"
	"github.com/charmbracelet/x/ansi"

	"webterm/internal/theme"
)

// SetPalette sets the colors StyledRows draws with. The eight ANSI colors
// and their bright variants resolve to the palette's named roles; cells
// without a color get the palette's foreground and background.
func (t *Terminal) SetPalette(p theme.Palette) {
	t.mu.Lock()
	t.palette = &p
	t.mu.Unlock()
}

// StyledRows returns every screen row with its colors and attributes,
// padded to the terminal's width.
func (t *Terminal) StyledRows() []string {
	t.mu.Lock()
	cols, rows, p := t.cols, t.rows, t.palette
	t.mu.Unlock()

	out := make([]string, rows)
	var line, run strings.Builder
	for y := 0; y < rows; y++ {
		line.Reset()
		run.Reset()
		var cur uv.Style
		for x := 0; x < cols; x++ {
			content, st := " ", uv.Style{}
			if c := t.emu.CellAt(x, y); c != nil {
				if c.IsZero() {
					// trailing half of a wide cell
					continue
				}
				st = c.Style
				if c.Content != "" {
					content = c.Content
				}
			}
			if run.Len() > 0 && !st.Equal(&cur) {
				line.WriteString(cellStyle(cur, p).Render(run.String()))
				run.Reset()
			}
			cur = st
			run.WriteString(content)
		}
		if run.Len() > 0 {
			line.WriteString(cellStyle(cur, p).Render(run.String()))
		}
		out[y] = line.String()
	}
	return out
}

func cellStyle(s uv.Style, p *theme.Palette) lipgloss.Style {
	fg, bg := colorHex(s.Fg, p), colorHex(s.Bg, p)
	if p != nil {
		if fg == "" {
			fg = p.Foreground
		}
		if bg == "" {
			bg = p.Background
		}
	}

	ls := lipgloss.NewStyle().
		Bold(s.Attrs&uv.AttrBold != 0).
		Faint(s.Attrs&uv.AttrFaint != 0).
		Italic(s.Attrs&uv.AttrItalic != 0).
		Blink(s.Attrs&(uv.AttrBlink|uv.AttrRapidBlink) != 0).
		Strikethrough(s.Attrs&uv.AttrStrikethrough != 0).
		Underline(s.Underline != uv.UnderlineStyleNone)
	if s.Attrs&uv.AttrReverse != 0 {
		if fg == "" && bg == "" {
			ls = ls.Reverse(true)
		}
		fg, bg = bg, fg
	}
	if fg != "" {
		ls = ls.Foreground(lipgloss.Color(fg))
	}
	if bg != "" {
		ls = ls.Background(lipgloss.Color(bg))
	}
	return ls
}

// colorHex resolves c to a hex color. "" means the default color.
func colorHex(c color.Color, p *theme.Palette) string {
	if c == nil {
		return ""
	}
	if p != nil {
		switch v := c.(type) {
		case ansi.BasicColor:
			return paletteColor(p, int(v))
		case ansi.IndexedColor:
			if v < 16 {
				return paletteColor(p, int(v))
			}
		}
	}
	r, g, b, _ := c.RGBA()
	return fmt.Sprintf("#%02x%02x%02x", r>>8, g>>8, b>>8)
}

// paletteColor maps ANSI color n (0-15) onto the palette. Bright colors
// share their normal counterpart's role.
func paletteColor(p *theme.Palette, n int) string {
	roles := [8]string{p.Black, p.Red, p.Green, p.Yellow, p.Blue, p.Magenta, p.Cyan, p.White}
	return roles[n%8]
}
