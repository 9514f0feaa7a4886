package main

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"webterm/internal/app"
	"webterm/internal/protocol"
	"webterm/internal/storage"
	"webterm/internal/transport"
)

// TestLoopbackGreeting verifies the in-process connection greets like the
// server does.
func TestLoopbackGreeting(t *testing.T) {
	collab, _ := newTestCollaborator(t)
	l := newLoopback(context.Background(), collab)
	defer l.Close()

	_, info := readGreeting(t, l.Events())
	if info.SessionID == "" {
		t.Error("empty session id")
	}
	if collab.ActiveSessions() != 1 {
		t.Errorf("ActiveSessions = %d, want 1", collab.ActiveSessions())
	}
}

// TestLoopbackCommandAndExit verifies commands are answered in order and
// exit ends the stream with a clean disconnect.
func TestLoopbackCommandAndExit(t *testing.T) {
	collab, _ := newTestCollaborator(t)
	l := newLoopback(context.Background(), collab)
	defer l.Close()
	readGreeting(t, l.Events())

	if err := l.Send(protocol.ClientMessage{Kind: protocol.KindCommand, Data: "cbash"}); err != nil {
		t.Fatal(err)
	}
	if err := l.Send(protocol.ClientMessage{Kind: protocol.KindCommand, Data: "exit"}); err != nil {
		t.Fatal(err)
	}

	resp, ok := nextEvent(t, l.Events()).(protocol.Response)
	if !ok || resp.Output != cbashHelp {
		t.Fatalf("first response = %+v", resp)
	}
	resp, ok = nextEvent(t, l.Events()).(protocol.Response)
	if !ok || resp.Output != "logout" {
		t.Fatalf("second response = %+v", resp)
	}
	d, ok := nextEvent(t, l.Events()).(protocol.Disconnected)
	if !ok || d.Err != nil {
		t.Fatalf("expected clean Disconnected, got %#v", d)
	}

	select {
	case _, open := <-l.Events():
		if open {
			t.Error("event stream should be closed after logout")
		}
	case <-time.After(5 * time.Second):
		t.Fatal("event stream not closed")
	}
	if collab.ActiveSessions() != 0 {
		t.Errorf("ActiveSessions = %d, want 0", collab.ActiveSessions())
	}
}

// TestLoopbackSendAfterClose verifies a closed connection refuses commands.
func TestLoopbackSendAfterClose(t *testing.T) {
	collab, _ := newTestCollaborator(t)
	l := newLoopback(context.Background(), collab)
	l.Close()
	l.Close()

	err := l.Send(protocol.ClientMessage{Kind: protocol.KindCommand, Data: "cbash"})
	if !errors.Is(err, transport.ErrClosed) {
		t.Errorf("Send after Close = %v, want ErrClosed", err)
	}
}

// TestLoopbackSendAfterLogout verifies sends after the session ended fail
// fast instead of filling the queue and blocking.
func TestLoopbackSendAfterLogout(t *testing.T) {
	collab, _ := newTestCollaborator(t)
	l := newLoopback(context.Background(), collab)
	defer l.Close()
	readGreeting(t, l.Events())

	if err := l.Send(protocol.ClientMessage{Kind: protocol.KindCommand, Data: "exit"}); err != nil {
		t.Fatal(err)
	}
	for range l.Events() {
	}

	done := make(chan error, 1)
	go func() {
		var err error
		for i := 0; i < 64 && err == nil; i++ {
			err = l.Send(protocol.ClientMessage{Kind: protocol.KindCommand, Data: "cbash"})
		}
		done <- err
	}()
	select {
	case err := <-done:
		if !errors.Is(err, transport.ErrClosed) {
			t.Errorf("Send after logout = %v, want ErrClosed", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Send blocked after logout")
	}
}

// TestLoopbackRejectsInput verifies raw input events are not accepted.
func TestLoopbackRejectsInput(t *testing.T) {
	collab, _ := newTestCollaborator(t)
	l := newLoopback(context.Background(), collab)
	defer l.Close()

	if err := l.Send(protocol.ClientMessage{Kind: protocol.KindInput, Data: "x"}); err == nil {
		t.Error("expected error for input message")
	}
}

// TestConsoleSurface verifies console output gets CRLF line endings and
// clear resets the screen.
func TestConsoleSurface(t *testing.T) {
	var buf bytes.Buffer
	s := consoleSurface{w: &buf}

	s.Print("one\ntwo\r\n")
	if got := buf.String(); got != "one\r\ntwo\r\n" {
		t.Errorf("Print wrote %q", got)
	}
	buf.Reset()
	s.Clear()
	if buf.String() != clearSequence {
		t.Errorf("Clear wrote %q", buf.String())
	}
}

// TestConsoleFollowsTheme verifies the console sets the terminal's default
// colors at startup and again on every theme change.
func TestConsoleFollowsTheme(t *testing.T) {
	var buf bytes.Buffer
	c := newConsole(app.Config{Storage: storage.NewMemory(0)}, &buf)

	dark := c.sess.Theme.Current().Palette
	if want := "\x1b]11;" + dark.Background + "\a"; !strings.Contains(buf.String(), want) {
		t.Errorf("startup output %q lacks %q", buf.String(), want)
	}
	if want := "\x1b]12;" + dark.Cursor + "\a"; !strings.Contains(buf.String(), want) {
		t.Errorf("startup output %q lacks %q", buf.String(), want)
	}

	buf.Reset()
	light := c.sess.Theme.Cycle().Palette
	if want := "\x1b]10;" + light.Foreground + "\a"; !strings.Contains(buf.String(), want) {
		t.Errorf("theme change wrote %q, want %q", buf.String(), want)
	}

	buf.Reset()
	c.resetColors()
	if buf.String() != "\x1b]110\a\x1b]111\a\x1b]112\a" {
		t.Errorf("resetColors wrote %q", buf.String())
	}
}
