package lineedit

import (
	"math/rand"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"webterm/internal/history"
)

type screen struct{ out strings.Builder }

func (s *screen) Print(str string) { s.out.WriteString(str) }

// visible replays backspace-erase the way a terminal would and returns the
// characters left on the current line.
func (s *screen) visible() string {
	var line []rune
	out := s.out.String()
	if i := strings.LastIndex(out, "\r\n"); i >= 0 {
		out = out[i+2:]
	}
	for _, r := range out {
		if r == '\b' {
			if len(line) > 0 {
				line = line[:len(line)-1]
			}
			continue
		}
		line = append(line, r)
	}
	return strings.TrimRight(string(line), " ")
}

type recorder struct{ sent []string }

func (r *recorder) Send(cmd string) { r.sent = append(r.sent, cmd) }

func newEditor() (*Editor, *screen, *recorder) {
	s := &screen{}
	r := &recorder{}
	return New(history.New(), s, r), s, r
}

func typeText(e *Editor, text string) {
	for _, r := range text {
		e.Handle(string(r))
	}
}

func TestSubmitAppendsAndSends(t *testing.T) {
	e, s, r := newEditor()
	typeText(e, "ls -la")
	e.Handle(KeyEnter)

	require.Equal(t, []string{"ls -la"}, r.sent)
	require.Equal(t, []string{"ls -la"}, e.history.Entries())
	require.Equal(t, 1, e.history.Cursor())
	require.Equal(t, "", e.Line())
	require.True(t, strings.HasSuffix(s.out.String(), "ls -la\r\n"))
}

func TestBlankLinesAreNotSubmitted(t *testing.T) {
	for _, text := range []string{"", " ", "\t  "} {
		e, _, r := newEditor()
		typeText(e, text)
		e.Handle(KeyEnter)
		require.Empty(t, r.sent)
		require.Equal(t, 0, e.history.Len())
		require.Equal(t, "", e.Line())
	}
}

func TestBackspace(t *testing.T) {
	e, s, _ := newEditor()
	typeText(e, "lsx")
	e.Handle(KeyBackspace)
	require.Equal(t, "ls", e.Line())
	require.Equal(t, "ls", s.visible())

	e.Handle(KeyBackspace)
	e.Handle(KeyBackspace)
	e.Handle(KeyBackspace)
	require.Equal(t, "", e.Line())
	require.Equal(t, "lsx\b \b\b \b\b \b", s.out.String(), "backspace on an empty line writes nothing")
}

func TestBackspaceRemovesWholeRune(t *testing.T) {
	e, _, _ := newEditor()
	typeText(e, "café")
	e.Handle(KeyBackspace)
	require.Equal(t, "caf", e.Line())
}

func TestHistoryRecallExample(t *testing.T) {
	e, s, _ := newEditor()
	typeText(e, "ls")
	e.Handle(KeyEnter)
	typeText(e, "pwd")
	e.Handle(KeyEnter)

	e.Handle(KeyUp)
	require.Equal(t, "pwd", e.Line())
	e.Handle(KeyUp)
	require.Equal(t, "ls", e.Line())
	require.Equal(t, "ls", s.visible())

	e.Handle(KeyUp)
	require.Equal(t, "ls", e.Line(), "recall clamps at the oldest entry")
	require.Equal(t, "ls", s.visible())
}

func TestDownPastEndYieldsEmptyLine(t *testing.T) {
	e, s, _ := newEditor()
	typeText(e, "ls")
	e.Handle(KeyEnter)
	e.Handle(KeyUp)
	e.Handle(KeyDown)
	require.Equal(t, "", e.Line())
	require.Equal(t, "", s.visible())

	before := s.out.String()
	e.Handle(KeyDown)
	require.Equal(t, before, s.out.String(), "down past the end is a no-op")
}

func TestRecallErasesVisibleCharacters(t *testing.T) {
	e, s, _ := newEditor()
	typeText(e, "a")
	e.Handle(KeyEnter)
	typeText(e, "longer text")

	mark := s.out.Len()
	e.Handle(KeyUp)
	written := s.out.String()[mark:]
	require.Equal(t, strings.Repeat("\b \b", len("longer text"))+"a", written)
}

func TestArrowPropertyDisplayedLineMatchesCursor(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	e, s, _ := newEditor()
	for _, cmd := range []string{"ls", "pwd", "whoami", "date"} {
		typeText(e, cmd)
		e.Handle(KeyEnter)
	}
	h := e.history
	for i := 0; i < 200; i++ {
		if rng.Intn(2) == 0 {
			e.Handle(KeyUp)
		} else {
			e.Handle(KeyDown)
		}
		require.GreaterOrEqual(t, h.Cursor(), 0)
		require.LessOrEqual(t, h.Cursor(), h.Len())
		want := ""
		if h.Cursor() < h.Len() {
			want = h.Entries()[h.Cursor()]
		}
		require.Equal(t, want, e.Line())
		require.Equal(t, want, s.visible())
	}
}

func TestCtrlCClearsAndRequestsPrompt(t *testing.T) {
	e, s, r := newEditor()
	typeText(e, "sleep 100")
	e.Handle(KeyCtrlC)

	require.Equal(t, "", e.Line())
	require.Equal(t, []string{""}, r.sent)
	require.Equal(t, 0, e.history.Len())
	require.True(t, strings.HasSuffix(s.out.String(), "^C\r\n"))
}

func TestCtrlDSendsExit(t *testing.T) {
	e, _, r := newEditor()
	typeText(e, "partial")
	e.Handle(KeyCtrlD)
	require.Equal(t, []string{"exit"}, r.sent)
	require.Equal(t, 0, e.history.Len())
}

func TestUnknownSequencesIgnored(t *testing.T) {
	e, s, r := newEditor()
	for _, seq := range []string{"\x1b[C", "\x1b[D", "\x01", "\t", "ab", "\x1b"} {
		e.Handle(seq)
	}
	require.Equal(t, "", e.Line())
	require.Empty(t, s.out.String())
	require.Empty(t, r.sent)
}

func TestSubmitPersistsHistory(t *testing.T) {
	store := &mapStore{items: map[string]string{}}
	s := &screen{}
	e := New(history.New(history.WithStore(store, history.DefaultKey)), s, &recorder{})
	typeText(e, "uptime")
	e.Handle(KeyEnter)
	require.Equal(t, `["uptime"]`, store.items[history.DefaultKey])
}

type mapStore struct{ items map[string]string }

func (m *mapStore) GetItem(k string) (string, error) { return m.items[k], nil }
func (m *mapStore) SetItem(k, v string) error {
	m.items[k] = v
	return nil
}
func (m *mapStore) RemoveItem(k string) error {
	delete(m.items, k)
	return nil
}
