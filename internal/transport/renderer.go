package transport

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"webterm/internal/chrome"
	"webterm/internal/protocol"
	"webterm/internal/stats"
)

// Surface is the terminal the renderer draws on. Implementations translate
// lone line feeds to CRLF themselves.
type Surface interface {
	Print(s string)
	Clear()
}

// DefaultSlowCommand is the execution time above which a response raises a
// warning notification.
const DefaultSlowCommand = 2 * time.Second

// Renderer applies server events to a surface, the session stats and the
// notifier. It is not safe for concurrent use.
type Renderer struct {
	surface   Surface
	stats     *stats.Session
	notifier  *chrome.Notifier
	slow      time.Duration
	connected bool
}

// NewRenderer returns a renderer. notifier may be nil.
func NewRenderer(surface Surface, st *stats.Session, notifier *chrome.Notifier, slow time.Duration) *Renderer {
	if slow <= 0 {
		slow = DefaultSlowCommand
	}
	return &Renderer{surface: surface, stats: st, notifier: notifier, slow: slow}
}

// Connected reports whether the last transport event was a connect.
func (r *Renderer) Connected() bool { return r.connected }

// Apply renders one event.
func (r *Renderer) Apply(ev protocol.Event) {
	switch e := ev.(type) {
	case protocol.Connected:
		r.connected = true
		r.notify("Connected to server", chrome.LevelSuccess)
	case protocol.Disconnected:
		r.connected = false
		r.notify("Disconnected from server", chrome.LevelError)
	case protocol.InitialPrompt:
		r.surface.Print(e.Prompt)
	case protocol.Response:
		r.response(e)
		r.stats.CountResponse()
	case protocol.ClearTerminal:
		r.surface.Clear()
		if e.Cwd != "" {
			r.surface.Print(e.Cwd + " $ ")
		}
	case protocol.SessionInfo:
		r.stats.Identify(e.SessionID, e.ConnectedAt)
	case protocol.Output:
		r.surface.Print(e.Text)
	}
}

func (r *Renderer) response(e protocol.Response) {
	if e.Raw {
		r.surface.Print(e.Output)
		return
	}
	if e.Output != "" {
		r.surface.Print(e.Output)
		if !strings.HasSuffix(e.Output, "\n") {
			r.surface.Print("\r\n")
		}
	}
	if e.Prompt != "" {
		r.surface.Print(e.Prompt)
	}
	if e.ExecutionTime > r.slow.Seconds() {
		r.notify(fmt.Sprintf("Command \"%s\" took %ss", e.Command,
			strconv.FormatFloat(e.ExecutionTime, 'f', -1, 64)), chrome.LevelWarning)
	}
}

func (r *Renderer) notify(msg string, level chrome.Level) {
	if r.notifier != nil {
		r.notifier.Show(msg, level, 0)
	}
}
