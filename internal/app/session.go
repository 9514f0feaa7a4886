// Package app assembles a client session from its controllers. Everything a
// front-end needs hangs off one explicitly constructed Session instead of
// package-level state.
package app

import (
	"context"
	"net/http"
	"strings"
	"time"

	"pkt.systems/pslog"

	"webterm/internal/chrome"
	"webterm/internal/history"
	"webterm/internal/lineedit"
	"webterm/internal/protocol"
	"webterm/internal/stats"
	"webterm/internal/storage"
	"webterm/internal/theme"
	"webterm/internal/transport"
)

// Capabilities are optional features decided once at startup.
type Capabilities struct {
	// Fit resizes the terminal surface to its container. Nil when the
	// surface cannot be resized.
	Fit func()
	// Chart keeps a rolling performance chart next to the readout.
	Chart bool
}

// Config holds what a Session is built from.
type Config struct {
	// Storage persists the theme and command history. Nil keeps both in
	// memory for the life of the session.
	Storage storage.KV
	// Surface is the terminal the session renders to.
	Surface transport.Surface
	// Theme is used when no valid theme was saved.
	Theme string
	// PerfURL is the system-info endpoint. Empty disables polling.
	PerfURL     string
	HTTPClient  *http.Client
	SlowCommand time.Duration
	Capabilities
	Now func() time.Time
	Log pslog.Logger
}

// Session is one client session. It is not safe for concurrent use: the
// front-end drives it from a single loop.
type Session struct {
	Storage  storage.KV
	Theme    *theme.Store
	History  *history.Buffer
	Editor   *lineedit.Editor
	Stats    *stats.Session
	Sidebar  *chrome.Sidebar
	Palette  *chrome.Palette
	Notifier *chrome.Notifier
	Perf     *chrome.PerfMonitor
	Renderer *transport.Renderer

	surface  transport.Surface
	caps     Capabilities
	conn     transport.Conn
	now      func() time.Time
	log      pslog.Logger
	lastSent string
	ended    bool
}

// New builds a session in a fixed order: storage, theme, history, editor,
// stats, chrome, renderer. The transport is attached afterwards.
func New(cfg Config) *Session {
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	log := cfg.Log
	if log == nil {
		log = pslog.Ctx(context.Background())
	}
	s := &Session{
		surface: cfg.Surface,
		caps:    cfg.Capabilities,
		now:     now,
		log:     log,
	}

	s.Storage = cfg.Storage
	if s.Storage == nil {
		s.Storage = storage.NewMemory(0)
	}

	s.Theme = theme.NewStore(s.Storage, log)
	s.Theme.Load(cfg.Theme)

	s.History = history.New(history.WithStore(s.Storage, history.DefaultKey), history.WithLogger(log))
	s.History.Restore()

	s.Editor = lineedit.New(s.History, cfg.Surface, lineedit.SenderFunc(s.send))

	s.Stats = stats.New(now())

	s.Sidebar = chrome.NewSidebar(func(bool) {
		if s.caps.Fit != nil {
			s.caps.Fit()
		}
	})
	s.Palette = chrome.NewPalette(chrome.Catalog)
	s.Notifier = chrome.NewNotifier(now)
	if cfg.PerfURL != "" {
		var chart *chrome.Chart
		if s.caps.Chart {
			chart = chrome.NewChart(chrome.ChartLimit)
		}
		s.Perf = chrome.NewPerfMonitor(cfg.PerfURL, cfg.HTTPClient, chart, log)
	}

	s.Renderer = transport.NewRenderer(cfg.Surface, s.Stats, s.Notifier, cfg.SlowCommand)
	return s
}

// Attach sets the connection submissions are sent on.
func (s *Session) Attach(conn transport.Conn) {
	s.conn = conn
	s.ended = false
}

// Input feeds a raw chunk of keystrokes to the line editor.
func (s *Session) Input(chunk string) {
	for _, tok := range lineedit.Tokenize(chunk) {
		s.Editor.Handle(lineedit.Normalize(tok))
	}
}

// Key feeds one already-separated keystroke to the line editor.
func (s *Session) Key(seq string) {
	s.Editor.Handle(lineedit.Normalize(seq))
}

// Submit runs cmd outside the line editor, as quick commands and the
// palette do. The command is echoed, recorded and persisted. Blank commands
// are ignored.
func (s *Session) Submit(cmd string) bool {
	cmd = strings.TrimSpace(cmd)
	if cmd == "" {
		return false
	}
	s.surface.Print(cmd + "\r\n")
	s.History.Append(cmd)
	s.History.Persist()
	s.send(cmd)
	return true
}

// RunQuick submits quick command i, counted from zero.
func (s *Session) RunQuick(i int) bool {
	if i < 0 || i >= len(chrome.QuickCommands) {
		return false
	}
	return s.Submit(chrome.QuickCommands[i])
}

// ExecutePalette submits the palette's current choice and closes it.
func (s *Session) ExecutePalette() bool {
	cmd := s.Palette.Choice()
	if cmd == "" {
		return false
	}
	s.Palette.Hide()
	return s.Submit(cmd)
}

// Dismiss closes any open overlay.
func (s *Session) Dismiss() {
	s.Palette.Hide()
}

// Apply renders one transport event.
func (s *Session) Apply(ev protocol.Event) {
	if d, ok := ev.(protocol.Disconnected); ok {
		s.ended = true
		if d.Err != nil {
			s.log.Warn("disconnected", "err", d.Err)
		} else {
			s.log.Info("disconnected")
		}
	}
	s.Renderer.Apply(ev)
}

// Ended reports whether the connection has gone away.
func (s *Session) Ended() bool { return s.ended }

// LoggedOut reports whether the connection ended after the user sent exit.
func (s *Session) LoggedOut() bool {
	return s.ended && s.lastSent == "exit"
}

// Tick drops expired notifications and reports whether any were removed.
func (s *Session) Tick() bool {
	return s.Notifier.Prune()
}

// Uptime formats the session age for display.
func (s *Session) Uptime() string {
	return stats.FormatUptime(s.Stats.Uptime(s.now()))
}

// Close ends the connection, if any.
func (s *Session) Close() error {
	if s.conn == nil {
		return nil
	}
	return s.conn.Close()
}

func (s *Session) send(cmd string) {
	s.lastSent = strings.TrimSpace(cmd)
	if s.conn == nil {
		s.log.Debug("no connection, dropping command", "command", cmd)
		return
	}
	if err := s.conn.Send(protocol.Command(cmd)); err != nil {
		s.log.Warn("failed to send command", "command", cmd, "err", err)
	}
}
