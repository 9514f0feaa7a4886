package main

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"os/exec"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/creack/pty"
)

// ErrCommandTimeout is returned when a command outlives the executor timeout.
var ErrCommandTimeout = errors.New("command timed out")

const (
	execCols = 120
	execRows = 30

	// drainGrace bounds how long output is collected after the command
	// exits while a background child still holds the pty open.
	drainGrace = 500 * time.Millisecond
)

// Executor runs one command at a time in a fresh pty, so programs that
// check for a terminal still color and format their output.
type Executor struct {
	Shell   string
	Timeout time.Duration
}

// NewExecutor returns an executor using shell (the platform shell when
// empty) and timeout.
func NewExecutor(shell string, timeout time.Duration) *Executor {
	if shell == "" {
		shell = getShell()
	}
	return &Executor{Shell: shell, Timeout: timeout}
}

// getCleanEnvironment returns the process environment without the terminal
// geometry variables the executor sets itself.
func getCleanEnvironment() []string {
	env := os.Environ()
	cleaned := make([]string, 0, len(env)+3)
	for _, e := range env {
		if strings.HasPrefix(e, "TERM=") || strings.HasPrefix(e, "COLUMNS=") || strings.HasPrefix(e, "LINES=") {
			continue
		}
		cleaned = append(cleaned, e)
	}
	return append(cleaned,
		"TERM=xterm-256color",
		"COLUMNS="+strconv.Itoa(execCols),
		"LINES="+strconv.Itoa(execRows),
	)
}

// lockedBuffer lets the pty reader and the caller share output safely.
type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

// Run executes command in dir and returns its combined output. A non-zero
// exit status is not an error; the output speaks for itself. On timeout the
// whole process group is killed and the output collected so far is returned
// with ErrCommandTimeout.
func (e *Executor) Run(ctx context.Context, dir, command string) (string, error) {
	cmd := exec.Command(e.Shell, shellArgs(e.Shell, command)...)
	cmd.Dir = dir
	cmd.Env = getCleanEnvironment()
	setProcAttr(cmd)

	ptmx, err := pty.StartWithSize(cmd, &pty.Winsize{Rows: execRows, Cols: execCols})
	if err != nil {
		return "", err
	}

	var out lockedBuffer
	copied := make(chan struct{})
	go func() {
		// Reads end with EIO once every holder of the tty has exited.
		_, _ = io.Copy(&out, ptmx)
		close(copied)
	}()

	waited := make(chan error, 1)
	go func() { waited <- cmd.Wait() }()

	finish := func() string {
		ptmx.Close()
		<-copied
		return out.String()
	}

	var timeout <-chan time.Time
	if e.Timeout > 0 {
		timer := time.NewTimer(e.Timeout)
		defer timer.Stop()
		timeout = timer.C
	}

	select {
	case <-waited:
	case <-timeout:
		killProcessGroup(cmd)
		<-waited
		return finish(), ErrCommandTimeout
	case <-ctx.Done():
		killProcessGroup(cmd)
		<-waited
		return finish(), ctx.Err()
	}

	select {
	case <-copied:
	case <-time.After(drainGrace):
	}
	return finish(), nil
}

var excessNewlines = regexp.MustCompile(`\n{4,}`)

// normalizeOutput turns CRLF and lone CR into LF and collapses runs of four
// or more newlines to three.
func normalizeOutput(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")
	return excessNewlines.ReplaceAllString(s, "\n\n\n")
}
