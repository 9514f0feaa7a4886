// Package screen wraps a virtual terminal emulator so ANSI output can be read
// back as the composed text a person would see. Cursor movement, clears and
// the alternate screen are interpreted instead of stripped, which keeps the
// layout of full-screen programs intact.
package screen

import (
	"strings"
	"sync"

	"github.com/charmbracelet/x/vt"

	"webterm/internal/theme"
)

const clearSequence = "\x1b[2J\x1b[3J\x1b[H"

// Terminal is a virtual terminal of fixed size. It is safe for concurrent
// use.
type Terminal struct {
	emu *vt.SafeEmulator

	mu         sync.Mutex
	cols, rows int
	palette    *theme.Palette
}

// New creates a virtual terminal with the given dimensions.
func New(cols, rows int) *Terminal {
	return &Terminal{
		emu:  vt.NewSafeEmulator(cols, rows),
		cols: cols,
		rows: rows,
	}
}

// Write feeds raw bytes into the emulator as-is.
func (t *Terminal) Write(p []byte) (int, error) {
	return t.emu.Write(p)
}

// WriteString feeds s into the emulator as-is.
func (t *Terminal) WriteString(s string) (int, error) {
	return t.emu.Write([]byte(s))
}

// Print writes s with lone line feeds turned into CRLF, the way a terminal
// widget with EOL conversion enabled would.
func (t *Terminal) Print(s string) {
	t.emu.Write([]byte(ConvertEOL(s)))
}

// Clear erases the screen and scrollback and homes the cursor.
func (t *Terminal) Clear() {
	t.emu.Write([]byte(clearSequence))
}

// Size returns the current dimensions.
func (t *Terminal) Size() (cols, rows int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.cols, t.rows
}

// Resize changes the emulator dimensions. Non-positive sizes are ignored.
func (t *Terminal) Resize(cols, rows int) {
	if cols <= 0 || rows <= 0 {
		return
	}
	t.mu.Lock()
	t.cols, t.rows = cols, rows
	t.mu.Unlock()
	t.emu.Resize(cols, rows)
}

// Rows returns every screen row with trailing whitespace trimmed, including
// the empty ones, so the result always has the terminal's height.
func (t *Terminal) Rows() []string {
	_, rows := t.Size()
	lines := strings.Split(t.emu.String(), "\n")
	out := make([]string, rows)
	for i := 0; i < rows && i < len(lines); i++ {
		out[i] = strings.TrimRight(lines[i], " \t\r")
	}
	return out
}

// Screen returns the current content as plain text with trailing blank
// lines removed.
func (t *Terminal) Screen() string {
	lines := t.Rows()
	last := -1
	for i := len(lines) - 1; i >= 0; i-- {
		if lines[i] != "" {
			last = i
			break
		}
	}
	if last < 0 {
		return ""
	}
	return strings.Join(lines[:last+1], "\n")
}

// ConvertEOL turns every line feed not already preceded by a carriage
// return into CRLF.
func ConvertEOL(s string) string {
	if !strings.Contains(s, "\n") {
		return s
	}
	var b strings.Builder
	b.Grow(len(s) + strings.Count(s, "\n"))
	for i := 0; i < len(s); i++ {
		if s[i] == '\n' && (i == 0 || s[i-1] != '\r') {
			b.WriteByte('\r')
		}
		b.WriteByte(s[i])
	}
	return b.String()
}
