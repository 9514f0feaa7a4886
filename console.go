package main

import (
	"context"
	"io"
	"os"
	"strings"
	"time"

	"github.com/muesli/termenv"
	"golang.org/x/term"

	"webterm/internal/app"
	"webterm/internal/chrome"
	"webterm/internal/protocol"
	"webterm/internal/screen"
	"webterm/internal/theme"
	"webterm/internal/transport"
)

const clearSequence = "\x1b[2J\x1b[3J\x1b[H"

// OSC 110 to 112 restore the terminal's own default colors.
const resetColorsSequence = termenv.OSC + "110" + string(termenv.BEL) +
	termenv.OSC + "111" + string(termenv.BEL) +
	termenv.OSC + "112" + string(termenv.BEL)

// consoleSurface draws straight onto the controlling terminal.
type consoleSurface struct {
	w io.Writer
}

func (c consoleSurface) Print(s string) { io.WriteString(c.w, screen.ConvertEOL(s)) }
func (c consoleSurface) Clear()         { io.WriteString(c.w, clearSequence) }

// console is the raw-tty client: no panes, the terminal itself is the
// surface. Notifications are printed on their own line and the readout goes
// to the window title.
type console struct {
	sess    *app.Session
	out     io.Writer
	output  *termenv.Output
	profile termenv.Profile
	prompt  string
	shown   int
}

type perfResult struct {
	info chrome.SystemInfo
	err  error
}

// runConsole drives a session from stdin until the server logs the client
// out, the connection drops or ctx ends.
func runConsole(ctx context.Context, conn transport.Conn, cfg app.Config, poll time.Duration, in *os.File, out *os.File) error {
	fd := int(in.Fd())
	if term.IsTerminal(fd) {
		old, err := term.MakeRaw(fd)
		if err != nil {
			return err
		}
		defer term.Restore(fd, old)
	}

	c := newConsole(cfg, out)
	defer c.resetColors()
	c.sess.Attach(conn)
	defer c.sess.Close()

	input := make(chan string)
	go readChunks(in, input)

	uptime := time.NewTicker(time.Second)
	defer uptime.Stop()
	var perfTick <-chan time.Time
	if c.sess.Perf != nil {
		t := time.NewTicker(poll)
		defer t.Stop()
		perfTick = t.C
	}
	perfDone := make(chan perfResult, 1)
	events := conn.Events()

	for {
		select {
		case <-ctx.Done():
			return nil

		case chunk, ok := <-input:
			if !ok {
				return nil
			}
			c.sess.Input(chunk)

		case ev, ok := <-events:
			if !ok {
				return nil
			}
			if d, isEnd := c.apply(ev); isEnd {
				if c.sess.LoggedOut() {
					return nil
				}
				return d.Err
			}

		case <-uptime.C:
			c.sess.Tick()

		case <-perfTick:
			perf := c.sess.Perf
			go func() {
				info, err := perf.Fetch(ctx)
				select {
				case perfDone <- perfResult{info: info, err: err}:
				default:
				}
			}()

		case res := <-perfDone:
			if res.err != nil {
				c.sess.Perf.Fail(res.err)
				continue
			}
			c.sess.Perf.Apply(res.info)
			r := c.sess.Perf.Readout()
			c.output.SetWindowTitle("webterm  cpu " + r.CPU + "  mem " + r.Memory + "  disk " + r.Disk)
		}
	}
}

func newConsole(cfg app.Config, out io.Writer) *console {
	cfg.Surface = consoleSurface{w: out}
	cfg.Capabilities = app.Capabilities{}
	c := &console{
		sess:    app.New(cfg),
		out:     out,
		output:  termenv.NewOutput(out),
		profile: termenv.ColorProfile(),
	}
	c.sess.Theme.OnChange(c.applyTheme)
	c.applyTheme(c.sess.Theme.Current())
	return c
}

// applyTheme sets the terminal's default colors to the palette.
func (c *console) applyTheme(t theme.Theme) {
	p := t.Palette
	c.output.SetForegroundColor(termenv.RGBColor(p.Foreground))
	c.output.SetBackgroundColor(termenv.RGBColor(p.Background))
	c.output.SetCursorColor(termenv.RGBColor(p.Cursor))
}

// resetColors hands the default colors back to the terminal's own settings.
func (c *console) resetColors() {
	io.WriteString(c.out, resetColorsSequence)
}

// apply renders ev, tracks the current prompt and prints new notifications.
func (c *console) apply(ev protocol.Event) (protocol.Disconnected, bool) {
	switch e := ev.(type) {
	case protocol.InitialPrompt:
		c.prompt = e.Prompt
	case protocol.Response:
		if e.Prompt != "" {
			c.prompt = e.Prompt
		}
	case protocol.ClearTerminal:
		c.prompt = ""
		if e.Cwd != "" {
			c.prompt = e.Cwd + " $ "
		}
	}
	c.sess.Apply(ev)
	c.flushNotifications()
	d, ok := ev.(protocol.Disconnected)
	return d, ok
}

// flushNotifications prints every notification not shown yet above the
// current input line, then redraws the prompt and the line being edited.
func (c *console) flushNotifications() {
	for _, n := range c.sess.Notifier.Active() {
		if n.ID <= c.shown {
			continue
		}
		c.shown = n.ID
		color := c.sess.Theme.Current().Level(string(n.Level))
		var b strings.Builder
		b.WriteString("\r\x1b[2K")
		b.WriteString(theme.ANSI(c.profile, color, n.Message))
		b.WriteString("\r\n")
		b.WriteString(c.prompt)
		b.WriteString(c.sess.Editor.Line())
		io.WriteString(c.out, b.String())
	}
}

func readChunks(r io.Reader, out chan<- string) {
	defer close(out)
	buf := make([]byte, 1024)
	for {
		n, err := r.Read(buf)
		if n > 0 {
			out <- string(buf[:n])
		}
		if err != nil {
			return
		}
	}
}
