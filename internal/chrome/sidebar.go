// Package chrome contains the controllers for the client's surrounding UI:
// the sidebar, the command palette, notifications and the performance readout.
// None of them touch the terminal directly; callers render their state.
package chrome

// Sidebar is a collapsible panel.
type Sidebar struct {
	collapsed bool
	onToggle  func(collapsed bool)
}

// NewSidebar returns an expanded sidebar. onToggle, if set, runs after every
// toggle; the client uses it to refit the terminal.
func NewSidebar(onToggle func(collapsed bool)) *Sidebar {
	return &Sidebar{onToggle: onToggle}
}

// Toggle flips the collapsed state.
func (s *Sidebar) Toggle() {
	s.collapsed = !s.collapsed
	if s.onToggle != nil {
		s.onToggle(s.collapsed)
	}
}

// Collapsed reports whether the sidebar is hidden.
func (s *Sidebar) Collapsed() bool { return s.collapsed }

// QuickCommands are the one-keystroke commands listed in the sidebar.
var QuickCommands = []string{"ls -la", "pwd", "whoami", "date", "cbash status"}
