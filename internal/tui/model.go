// Package tui renders a client session as a bubbletea program: the terminal
// pane, a sidebar with session stats and the performance readout, the
// command palette, and transient notifications.
package tui

import (
	"context"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"webterm/internal/app"
	"webterm/internal/chrome"
	"webterm/internal/protocol"
	"webterm/internal/screen"
	"webterm/internal/theme"
	"webterm/internal/transport"
)

const (
	sidebarWidth  = 32
	statusHeight  = 1
	minPaneWidth  = 20
	minPaneHeight = 4

	recentCommands = 3

	uptimeInterval = time.Second
)

// DefaultPollInterval is how often the performance readout refreshes.
const DefaultPollInterval = 5 * time.Second

type eventMsg struct{ ev protocol.Event }

type streamClosedMsg struct{}

type uptimeTickMsg time.Time

type perfTickMsg time.Time

type perfResultMsg struct {
	info chrome.SystemInfo
	err  error
}

// Options configures the program.
type Options struct {
	// Session is the configuration the client session is built from.
	// Surface and Fit are supplied by the model.
	Session      app.Config
	PollInterval time.Duration
	Keys         *KeyMap
}

// Model is the bubbletea model for a client session.
type Model struct {
	ctx   context.Context
	sess  *app.Session
	term  *screen.Terminal
	conn  transport.Conn
	keys  KeyMap
	input textinput.Model
	poll  time.Duration

	width, height int
}

// New builds the session on a virtual terminal surface and attaches conn.
func New(ctx context.Context, conn transport.Conn, opts Options) *Model {
	m := &Model{
		ctx:  ctx,
		term: screen.New(80, 24),
		conn: conn,
		keys: DefaultKeyMap(),
		poll: opts.PollInterval,
	}
	if opts.Keys != nil {
		m.keys = *opts.Keys
	}
	if m.poll <= 0 {
		m.poll = DefaultPollInterval
	}

	cfg := opts.Session
	cfg.Surface = m.term
	cfg.Fit = m.fit
	m.sess = app.New(cfg)
	m.sess.Theme.OnChange(m.applyTheme)
	m.applyTheme(m.sess.Theme.Current())
	m.sess.Attach(conn)

	ti := textinput.New()
	ti.Placeholder = "Type a command..."
	ti.Prompt = "> "
	ti.CharLimit = 200
	m.input = ti
	return m
}

// Session exposes the client session.
func (m *Model) Session() *app.Session { return m.sess }

// Terminal exposes the terminal surface.
func (m *Model) Terminal() *screen.Terminal { return m.term }

func (m *Model) Init() tea.Cmd {
	cmds := []tea.Cmd{m.waitForEvent(), m.uptimeTick()}
	if m.sess.Perf != nil {
		cmds = append(cmds, m.perfTick())
	}
	return tea.Batch(cmds...)
}

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.fit()
		return m, nil

	case eventMsg:
		m.sess.Apply(msg.ev)
		if _, ok := msg.ev.(protocol.Disconnected); ok && m.sess.LoggedOut() {
			return m, tea.Quit
		}
		return m, m.waitForEvent()

	case streamClosedMsg:
		return m, nil

	case uptimeTickMsg:
		m.sess.Tick()
		return m, m.uptimeTick()

	case perfTickMsg:
		return m, tea.Batch(m.fetchPerf(), m.perfTick())

	case perfResultMsg:
		if msg.err != nil {
			m.sess.Perf.Fail(msg.err)
		} else {
			m.sess.Perf.Apply(msg.info)
		}
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)
	}
	return m, nil
}

func (m *Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if key.Matches(msg, m.keys.Quit) {
		m.sess.Close()
		return m, tea.Quit
	}
	if key.Matches(msg, m.keys.Palette) {
		m.togglePalette()
		return m, nil
	}
	if m.sess.Palette.Visible() {
		return m.handlePaletteKey(msg)
	}

	switch {
	case key.Matches(msg, m.keys.Sidebar):
		m.sess.Sidebar.Toggle()
		return m, nil
	case key.Matches(msg, m.keys.Theme):
		m.sess.Theme.Cycle()
		return m, nil
	case key.Matches(msg, m.keys.Dismiss):
		m.sess.Dismiss()
		return m, nil
	}
	for i, b := range m.keys.Quick {
		if key.Matches(msg, b) {
			m.sess.RunQuick(i)
			return m, nil
		}
	}

	if seq := editorInput(msg); seq != "" {
		m.sess.Input(seq)
	}
	return m, nil
}

func (m *Model) handlePaletteKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Dismiss):
		m.sess.Dismiss()
		m.input.Blur()
		return m, nil
	case key.Matches(msg, m.keys.PaletteRun):
		if m.sess.ExecutePalette() {
			m.input.Blur()
		}
		return m, nil
	case key.Matches(msg, m.keys.PaletteUp):
		m.sess.Palette.Move(-1)
		return m, nil
	case key.Matches(msg, m.keys.PaletteDown):
		m.sess.Palette.Move(1)
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	if m.input.Value() != m.sess.Palette.Query() {
		m.sess.Palette.SetQuery(m.input.Value())
	}
	return m, cmd
}

func (m *Model) togglePalette() {
	m.sess.Palette.Toggle()
	if m.sess.Palette.Visible() {
		m.input.SetValue("")
		m.input.Focus()
		return
	}
	m.input.Blur()
}

// paneSize is the terminal pane's size for the current window and sidebar.
func (m *Model) paneSize() (int, int) {
	w, h := m.width, m.height-statusHeight
	if !m.sess.Sidebar.Collapsed() {
		w -= sidebarWidth
	}
	return max(w, minPaneWidth), max(h, minPaneHeight)
}

// applyTheme restyles the terminal pane. The store has already activated a
// theme by the time the model registers, so New calls it once directly.
func (m *Model) applyTheme(t theme.Theme) {
	m.term.SetPalette(t.Palette)
}

func (m *Model) fit() {
	if m.width == 0 || m.height == 0 {
		return
	}
	m.term.Resize(m.paneSize())
}

func (m *Model) waitForEvent() tea.Cmd {
	events := m.conn.Events()
	return func() tea.Msg {
		ev, ok := <-events
		if !ok {
			return streamClosedMsg{}
		}
		return eventMsg{ev: ev}
	}
}

func (m *Model) uptimeTick() tea.Cmd {
	return tea.Tick(uptimeInterval, func(t time.Time) tea.Msg {
		return uptimeTickMsg(t)
	})
}

func (m *Model) perfTick() tea.Cmd {
	return tea.Tick(m.poll, func(t time.Time) tea.Msg {
		return perfTickMsg(t)
	})
}

func (m *Model) fetchPerf() tea.Cmd {
	perf := m.sess.Perf
	ctx := m.ctx
	return func() tea.Msg {
		info, err := perf.Fetch(ctx)
		return perfResultMsg{info: info, err: err}
	}
}

// Run starts the program on the current terminal and blocks until it exits.
func Run(ctx context.Context, conn transport.Conn, opts Options) error {
	m := New(ctx, conn, opts)
	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx))
	_, err := p.Run()
	return err
}
