package chrome

import "strings"

// Entry is one command offered by the palette.
type Entry struct {
	Command     string
	Description string
}

// Catalog is the fixed set of palette commands.
var Catalog = []Entry{
	{"ls -la", "List all files with details"},
	{"pwd", "Show current directory"},
	{"ps aux", "Show running processes"},
	{"df -h", "Show disk usage"},
	{"top -n 1", "Show system processes"},
	{"cbash status", "Show CBash system status"},
	{"cbash history", "Show command history"},
	{"clear", "Clear terminal screen"},
	{"whoami", "Show current user"},
	{"date", "Show current date and time"},
}

// emptyQueryLimit caps the entries shown before anything is typed.
const emptyQueryLimit = 5

// Filter returns the catalog entries matching query, case-insensitively, on
// either command or description. An empty query returns the first five.
func Filter(catalog []Entry, query string) []Entry {
	if query == "" {
		n := emptyQueryLimit
		if n > len(catalog) {
			n = len(catalog)
		}
		return append([]Entry(nil), catalog[:n]...)
	}
	q := strings.ToLower(query)
	var out []Entry
	for _, e := range catalog {
		if strings.Contains(strings.ToLower(e.Command), q) ||
			strings.Contains(strings.ToLower(e.Description), q) {
			out = append(out, e)
		}
	}
	return out
}

// Palette is the command palette overlay: visibility, the query, the
// filtered results and a selection among them.
type Palette struct {
	catalog  []Entry
	visible  bool
	query    string
	results  []Entry
	selected int
	picked   bool
}

// NewPalette returns a hidden palette over catalog.
func NewPalette(catalog []Entry) *Palette {
	return &Palette{catalog: catalog}
}

// Toggle shows or hides the palette. Showing it clears the query.
func (p *Palette) Toggle() {
	if p.visible {
		p.Hide()
		return
	}
	p.visible = true
	p.SetQuery("")
}

// Hide closes the palette.
func (p *Palette) Hide() {
	p.visible = false
}

// Visible reports whether the palette is open.
func (p *Palette) Visible() bool { return p.visible }

// SetQuery updates the filter and resets the selection.
func (p *Palette) SetQuery(q string) {
	p.query = q
	p.results = Filter(p.catalog, q)
	p.selected = 0
	p.picked = false
}

// Query returns the current filter text.
func (p *Palette) Query() string { return p.query }

// Results returns the entries matching the query.
func (p *Palette) Results() []Entry { return p.results }

// Selected returns the index of the highlighted result.
func (p *Palette) Selected() int { return p.selected }

// Move shifts the highlight by delta, clamped to the results.
func (p *Palette) Move(delta int) {
	p.picked = true
	p.selected += delta
	if p.selected >= len(p.results) {
		p.selected = len(p.results) - 1
	}
	if p.selected < 0 {
		p.selected = 0
	}
}

// Choice returns the command Enter should run: the highlighted result if the
// user moved onto one, otherwise the trimmed query text.
func (p *Palette) Choice() string {
	if p.picked && p.selected < len(p.results) {
		return p.results[p.selected].Command
	}
	return strings.TrimSpace(p.query)
}
