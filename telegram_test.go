package main

import (
	"context"
	"strings"
	"sync"
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// fakeBot records the messages the bridge sends.
type fakeBot struct {
	mu       sync.Mutex
	messages []tgbotapi.MessageConfig
	actions  int
}

func (f *fakeBot) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	switch m := c.(type) {
	case tgbotapi.MessageConfig:
		f.messages = append(f.messages, m)
	case tgbotapi.ChatActionConfig:
		f.actions++
	}
	return tgbotapi.Message{}, nil
}

func (f *fakeBot) texts() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.messages))
	for i, m := range f.messages {
		out[i] = m.Text
	}
	return out
}

func (f *fakeBot) reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.messages = nil
}

func newTestBridge(t *testing.T) (*TelegramBridge, *fakeBot, *Collaborator) {
	t.Helper()
	collab, _ := newTestCollaborator(t)
	bot := &fakeBot{}
	return NewTelegramBridge(bot, collab, []int64{42}), bot, collab
}

func chatMessage(userID, chatID int64, text string) *tgbotapi.Message {
	return &tgbotapi.Message{
		From: &tgbotapi.User{ID: userID, UserName: "tester"},
		Chat: &tgbotapi.Chat{ID: chatID},
		Text: text,
	}
}

// TestTelegramUnauthorized verifies strangers are turned away without a
// session being opened.
func TestTelegramUnauthorized(t *testing.T) {
	tb, bot, collab := newTestBridge(t)

	tb.handleMessage(context.Background(), chatMessage(7, 700, "ls"))

	texts := bot.texts()
	if len(texts) != 1 || texts[0] != "❌ Unauthorized" {
		t.Errorf("messages = %q", texts)
	}
	if collab.ActiveSessions() != 0 {
		t.Errorf("ActiveSessions = %d, want 0", collab.ActiveSessions())
	}
}

// TestTelegramStartAndStatus verifies the bot commands.
func TestTelegramStartAndStatus(t *testing.T) {
	tb, bot, _ := newTestBridge(t)
	ctx := context.Background()

	tb.handleMessage(ctx, chatMessage(42, 100, "/start"))
	tb.handleMessage(ctx, chatMessage(42, 100, "/status"))
	texts := bot.texts()
	if len(texts) != 2 {
		t.Fatalf("messages = %q", texts)
	}
	if texts[0] != telegramHelp {
		t.Errorf("start = %q", texts[0])
	}
	if !strings.Contains(texts[1], "No active session") {
		t.Errorf("status = %q", texts[1])
	}

	bot.reset()
	tb.handleMessage(ctx, chatMessage(42, 100, "cbash"))
	tb.handleMessage(ctx, chatMessage(42, 100, "/status"))
	texts = bot.texts()
	if len(texts) != 2 {
		t.Fatalf("messages = %q", texts)
	}
	if !strings.Contains(texts[1], "Active Session") || !strings.Contains(texts[1], "Commands: 1") {
		t.Errorf("status = %q", texts[1])
	}
}

// TestTelegramCommand verifies a command reply is sent as escaped HTML with
// the prompt appended.
func TestTelegramCommand(t *testing.T) {
	tb, bot, _ := newTestBridge(t)

	tb.handleMessage(context.Background(), chatMessage(42, 100, "cbash"))

	bot.mu.Lock()
	msgs := append([]tgbotapi.MessageConfig(nil), bot.messages...)
	actions := bot.actions
	bot.mu.Unlock()
	if actions != 1 {
		t.Errorf("chat actions = %d, want 1", actions)
	}
	if len(msgs) != 1 {
		t.Fatalf("got %d messages, want 1", len(msgs))
	}
	m := msgs[0]
	if m.ParseMode != tgbotapi.ModeHTML {
		t.Errorf("ParseMode = %q", m.ParseMode)
	}
	if !strings.HasPrefix(m.Text, "<pre>") || !strings.HasSuffix(m.Text, "</pre>") {
		t.Errorf("text = %q", m.Text)
	}
	if !strings.Contains(m.Text, cbashHelp) || !strings.Contains(m.Text, " $") {
		t.Errorf("text = %q", m.Text)
	}
}

// TestTelegramClearAndExit verifies clear is acknowledged and exit ends the
// chat session.
func TestTelegramClearAndExit(t *testing.T) {
	tb, bot, collab := newTestBridge(t)
	ctx := context.Background()

	tb.handleMessage(ctx, chatMessage(42, 100, "clear"))
	if texts := bot.texts(); len(texts) != 1 || texts[0] != "Screen cleared" {
		t.Errorf("messages = %q", texts)
	}
	if collab.ActiveSessions() != 1 {
		t.Errorf("ActiveSessions = %d, want 1", collab.ActiveSessions())
	}

	tb.handleMessage(ctx, chatMessage(42, 100, "exit"))
	if collab.ActiveSessions() != 0 {
		t.Errorf("ActiveSessions after exit = %d, want 0", collab.ActiveSessions())
	}
}

// TestTelegramSessionsPerChat verifies each chat keeps its own directory.
func TestTelegramSessionsPerChat(t *testing.T) {
	tb, _, collab := newTestBridge(t)
	a := tb.session(1)
	b := tb.session(2)
	if a == b {
		t.Fatal("chats share a session")
	}
	if tb.session(1) != a {
		t.Error("session not reused for the same chat")
	}
	if collab.ActiveSessions() != 2 {
		t.Errorf("ActiveSessions = %d, want 2", collab.ActiveSessions())
	}
	tb.CleanupAllSessions()
	if collab.ActiveSessions() != 0 {
		t.Errorf("ActiveSessions after cleanup = %d, want 0", collab.ActiveSessions())
	}
}

// TestFormatPre verifies chunking stays within the limit, keeps entities
// whole and escapes HTML.
func TestFormatPre(t *testing.T) {
	if got := formatPre("a < b", 100); len(got) != 1 || got[0] != "<pre>a &lt; b</pre>" {
		t.Errorf("formatPre = %q", got)
	}
	if got := formatPre("  \n", 100); len(got) != 0 {
		t.Errorf("blank text produced %q", got)
	}

	var b strings.Builder
	for i := 0; i < 300; i++ {
		b.WriteString("line with <tags> & more\n")
	}
	b.WriteString(strings.Repeat("&", 500))
	chunks := formatPre(b.String(), 200)
	if len(chunks) < 2 {
		t.Fatalf("expected several chunks, got %d", len(chunks))
	}
	for i, c := range chunks {
		if len(c) > 200 {
			t.Errorf("chunk %d is %d bytes", i, len(c))
		}
		body := strings.TrimSuffix(strings.TrimPrefix(c, "<pre>"), "</pre>")
		if strings.ContainsAny(body, "<>") {
			t.Errorf("chunk %d has unescaped markup: %q", i, body)
		}
		if idx := strings.LastIndex(body, "&"); idx >= 0 && !strings.Contains(body[idx:], ";") {
			t.Errorf("chunk %d splits an entity: %q", i, body[idx:])
		}
	}
}

// TestFlattenOutput verifies escape sequences resolve to visible text.
func TestFlattenOutput(t *testing.T) {
	if got := flattenOutput(""); got != "" {
		t.Errorf("flattenOutput(\"\") = %q", got)
	}
	got := flattenOutput("\x1b[31mred\x1b[0m\nabc\rX")
	if !strings.Contains(got, "red") || strings.Contains(got, "\x1b") {
		t.Errorf("flattenOutput = %q", got)
	}
	if !strings.Contains(got, "Xbc") {
		t.Errorf("carriage return not applied: %q", got)
	}
}
