// Package lineedit implements client-side line editing for a terminal that
// does not run a line discipline of its own: it buffers keystrokes into one
// in-progress line, recalls history, and decides when to submit.
package lineedit

import (
	"strings"
	"unicode/utf8"

	"webterm/internal/history"
)

// Raw keystroke sequences understood by the editor.
const (
	KeyEnter     = "\r"
	KeyBackspace = "\x7f"
	KeyUp        = "\x1b[A"
	KeyDown      = "\x1b[B"
	KeyCtrlC     = "\x03"
	KeyCtrlD     = "\x04"
)

const (
	eraseOne     = "\b \b"
	cancelMarker = "^C\r\n"
	newline      = "\r\n"
)

// Display receives the editor's echo.
type Display interface {
	Print(s string)
}

// Sender delivers submitted commands to the remote side. An empty command
// asks the remote side for a fresh prompt.
type Sender interface {
	Send(cmd string)
}

// SenderFunc adapts a function to Sender.
type SenderFunc func(cmd string)

func (f SenderFunc) Send(cmd string) { f(cmd) }

// Editor owns the in-progress line. It is not safe for concurrent use; feed
// it one event at a time from the input loop.
type Editor struct {
	line    string
	history *history.Buffer
	display Display
	sender  Sender
}

// New returns an editor that records submissions in hist, echoes to display
// and submits through sender.
func New(hist *history.Buffer, display Display, sender Sender) *Editor {
	return &Editor{history: hist, display: display, sender: sender}
}

// Line returns the in-progress line.
func (e *Editor) Line() string { return e.line }

// Handle processes one input event: a single character or one control
// sequence. Unrecognized sequences are ignored.
func (e *Editor) Handle(data string) {
	switch data {
	case KeyEnter:
		e.submit()
	case KeyBackspace:
		if e.line == "" {
			return
		}
		_, size := utf8.DecodeLastRuneInString(e.line)
		e.line = e.line[:len(e.line)-size]
		e.display.Print(eraseOne)
	case KeyUp:
		if line, ok := e.history.Prev(); ok {
			e.replace(line)
		}
	case KeyDown:
		if line, ok := e.history.Next(); ok {
			e.replace(line)
		}
	case KeyCtrlC:
		e.display.Print(cancelMarker)
		e.line = ""
		e.sender.Send("")
	case KeyCtrlD:
		e.sender.Send("exit")
	default:
		if isPrintable(data) {
			e.line += data
			e.display.Print(data)
		}
	}
}

func (e *Editor) submit() {
	line := e.line
	e.line = ""
	if strings.TrimSpace(line) == "" {
		return
	}
	e.history.Append(line)
	e.history.Persist()
	e.display.Print(newline)
	e.sender.Send(line)
}

// replace erases exactly the characters currently shown and displays line.
func (e *Editor) replace(line string) {
	if n := utf8.RuneCountInString(e.line); n > 0 {
		e.display.Print(strings.Repeat(eraseOne, n))
	}
	e.line = line
	if line != "" {
		e.display.Print(line)
	}
}

func isPrintable(data string) bool {
	r, size := utf8.DecodeRuneInString(data)
	if size == 0 || size != len(data) || r == utf8.RuneError {
		return false
	}
	return r >= 32 && r != 0x7f
}
