package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"webterm/internal/history"
	"webterm/internal/lineedit"
	"webterm/internal/protocol"
	"webterm/internal/storage"
	"webterm/internal/theme"
	"webterm/internal/transport"
)

type surface struct {
	out strings.Builder
}

func (s *surface) Print(str string) { s.out.WriteString(str) }
func (s *surface) Clear()           { s.out.Reset() }

type fakeConn struct {
	sent   []protocol.ClientMessage
	err    error
	closed bool
}

func (c *fakeConn) Send(msg protocol.ClientMessage) error {
	if c.err != nil {
		return c.err
	}
	c.sent = append(c.sent, msg)
	return nil
}

func (c *fakeConn) Events() <-chan protocol.Event { return nil }

func (c *fakeConn) Close() error {
	c.closed = true
	return nil
}

var _ transport.Conn = (*fakeConn)(nil)

func (c *fakeConn) commands() []string {
	var out []string
	for _, m := range c.sent {
		out = append(out, m.Data)
	}
	return out
}

func newSession(t *testing.T, cfg Config) (*Session, *surface, *fakeConn) {
	t.Helper()
	surf := &surface{}
	cfg.Surface = surf
	s := New(cfg)
	conn := &fakeConn{}
	s.Attach(conn)
	return s, surf, conn
}

func TestInitRestoresThemeAndHistory(t *testing.T) {
	store := storage.NewMemory(0)
	require.NoError(t, store.SetItem(theme.DefaultKey, "hacker"))
	require.NoError(t, store.SetItem(history.DefaultKey, `["ls","pwd"]`))

	s, _, _ := newSession(t, Config{Storage: store, Theme: "light"})
	require.Equal(t, "hacker", s.Theme.Current().Name)
	require.Equal(t, []string{"ls", "pwd"}, s.History.Entries())
	require.Equal(t, 2, s.History.Cursor())
}

func TestInitFallsBackToConfiguredTheme(t *testing.T) {
	s, _, _ := newSession(t, Config{Theme: "light"})
	require.Equal(t, "light", s.Theme.Current().Name)

	s, _, _ = newSession(t, Config{Theme: "neon"})
	require.Equal(t, theme.Default, s.Theme.Current().Name)
}

func TestTypedLineIsSubmitted(t *testing.T) {
	s, surf, conn := newSession(t, Config{})
	s.Input("ls\r")
	s.Input("   \r")
	require.Equal(t, []string{"ls"}, conn.commands())
	require.Equal(t, "ls\r\n   ", surf.out.String())
	require.Equal(t, []string{"ls"}, s.History.Entries())
}

func TestPastedCRLFSubmitsOncePerLine(t *testing.T) {
	s, surf, conn := newSession(t, Config{})
	s.Input("ls\r\npwd\r\n")
	require.Equal(t, []string{"ls", "pwd"}, conn.commands())
	require.Equal(t, "ls\r\npwd\r\n", surf.out.String())
}

func TestHistoryRecallThroughSession(t *testing.T) {
	s, _, _ := newSession(t, Config{})
	s.Input("ls\rpwd\r")
	s.Key(lineedit.KeyUp)
	s.Key(lineedit.KeyUp)
	require.Equal(t, "ls", s.Editor.Line())
	s.Input("\x1bOA")
	require.Equal(t, "ls", s.Editor.Line())
}

func TestCtrlCSendsEmptyCommand(t *testing.T) {
	s, surf, conn := newSession(t, Config{})
	s.Input("abc\x03")
	require.Equal(t, []string{""}, conn.commands())
	require.Equal(t, "abc^C\r\n", surf.out.String())
	require.Zero(t, s.History.Len())
}

func TestQuickCommandsRecordAndPersist(t *testing.T) {
	store := storage.NewMemory(0)
	s, surf, conn := newSession(t, Config{Storage: store})
	require.True(t, s.RunQuick(1))
	require.False(t, s.RunQuick(5))
	require.Equal(t, []string{"pwd"}, conn.commands())
	require.Equal(t, "pwd\r\n", surf.out.String())

	saved, err := store.GetItem(history.DefaultKey)
	require.NoError(t, err)
	require.Equal(t, `["pwd"]`, saved)
}

func TestPaletteExecution(t *testing.T) {
	s, _, conn := newSession(t, Config{})
	s.Palette.Toggle()
	s.Palette.SetQuery("disk")
	s.Palette.Move(0)
	require.True(t, s.ExecutePalette())
	require.False(t, s.Palette.Visible())

	s.Palette.Toggle()
	s.Palette.SetQuery("  uptime  ")
	require.True(t, s.ExecutePalette())

	s.Palette.Toggle()
	require.False(t, s.ExecutePalette())
	require.True(t, s.Palette.Visible())
	s.Dismiss()
	require.False(t, s.Palette.Visible())

	require.Equal(t, []string{"df -h", "uptime"}, conn.commands())
	require.Equal(t, []string{"df -h", "uptime"}, s.History.Entries())
}

func TestSidebarToggleFits(t *testing.T) {
	fits := 0
	s, _, _ := newSession(t, Config{Capabilities: Capabilities{Fit: func() { fits++ }}})
	s.Sidebar.Toggle()
	s.Sidebar.Toggle()
	require.Equal(t, 2, fits)

	s, _, _ = newSession(t, Config{})
	s.Sidebar.Toggle()
	require.True(t, s.Sidebar.Collapsed())
}

func TestChartCapability(t *testing.T) {
	s, _, _ := newSession(t, Config{PerfURL: "http://unused", Capabilities: Capabilities{Chart: true}})
	require.NotNil(t, s.Perf.Chart())

	s, _, _ = newSession(t, Config{PerfURL: "http://unused"})
	require.Nil(t, s.Perf.Chart())

	s, _, _ = newSession(t, Config{})
	require.Nil(t, s.Perf)
}

func TestPerfPollThroughSession(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"cpu_percent": 42.6, "memory_percent": 10.1, "disk_percent": 5}`)
	}))
	defer srv.Close()

	s, _, _ := newSession(t, Config{PerfURL: srv.URL, HTTPClient: srv.Client(), Capabilities: Capabilities{Chart: true}})
	s.Perf.Poll(context.Background())
	require.Equal(t, "43%", s.Perf.Readout().CPU)
	require.Equal(t, 1, s.Perf.Chart().Len())
}

func TestApplyTracksLogout(t *testing.T) {
	s, surf, conn := newSession(t, Config{})
	s.Apply(protocol.Connected{})
	s.Apply(protocol.InitialPrompt{Prompt: "/ $ "})
	s.Input("\x04")
	require.Equal(t, []string{"exit"}, conn.commands())
	require.False(t, s.Ended())

	s.Apply(protocol.Response{Output: "logout"})
	s.Apply(protocol.Disconnected{})
	require.True(t, s.Ended())
	require.True(t, s.LoggedOut())
	require.Equal(t, "/ $ logout\r\n", surf.out.String())
	require.Equal(t, 1, s.Stats.CommandCount)

	require.NoError(t, s.Close())
	require.True(t, conn.closed)
}

func TestDisconnectWithoutExit(t *testing.T) {
	s, _, _ := newSession(t, Config{})
	s.Input("ls\r")
	s.Apply(protocol.Disconnected{Err: errors.New("reset")})
	require.True(t, s.Ended())
	require.False(t, s.LoggedOut())
}

func TestSendFailureIsNotFatal(t *testing.T) {
	s, _, conn := newSession(t, Config{})
	conn.err = transport.ErrClosed
	s.Input("ls\r")
	require.Equal(t, []string{"ls"}, s.History.Entries())
}

func TestUptimeAndTick(t *testing.T) {
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	s, _, _ := newSession(t, Config{Now: func() time.Time { return now }})
	s.Apply(protocol.Connected{})
	now = now.Add(65 * time.Second)
	require.Equal(t, "1m 5s", s.Uptime())
	require.True(t, s.Tick())
	require.Empty(t, s.Notifier.Active())
}
