package main

import (
	"context"
	"fmt"
	"html"
	"strings"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"pkt.systems/pslog"

	"webterm/internal/protocol"
	"webterm/internal/screen"
)

// telegramMaxLen is the largest message the bridge sends, tags included.
const telegramMaxLen = 4000

const telegramHelp = "✅ Connected!\n\n" +
	"Send shell commands and the output comes back here.\n" +
	"• cd, clear and cbash status|history|sessions work as in the web terminal\n" +
	"• exit ends the session; the next message starts a new one\n" +
	"• /status shows session info"

// botSender is the part of the Bot API the bridge needs.
type botSender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// TelegramBridge serves allowed Telegram users through the collaborator.
// Each chat gets its own session and working directory.
type TelegramBridge struct {
	bot     botSender
	collab  *Collaborator
	allowed map[int64]bool

	mu       sync.Mutex
	sessions map[int64]*Session // chatID -> session
}

func NewTelegramBridge(bot botSender, collab *Collaborator, allowedUsers []int64) *TelegramBridge {
	allowed := make(map[int64]bool, len(allowedUsers))
	for _, id := range allowedUsers {
		allowed[id] = true
	}
	return &TelegramBridge{
		bot:      bot,
		collab:   collab,
		allowed:  allowed,
		sessions: make(map[int64]*Session),
	}
}

// Listen handles updates until ctx is done or updates is closed. Messages
// are handled one at a time.
func (tb *TelegramBridge) Listen(ctx context.Context, updates tgbotapi.UpdatesChannel) {
	defer tb.CleanupAllSessions()
	for {
		select {
		case <-ctx.Done():
			return
		case update, ok := <-updates:
			if !ok {
				return
			}
			if update.Message == nil {
				continue
			}
			tb.handleMessage(ctx, update.Message)
		}
	}
}

func (tb *TelegramBridge) handleMessage(ctx context.Context, m *tgbotapi.Message) {
	if m.From == nil || m.Chat == nil {
		return
	}
	chatID := m.Chat.ID
	logger := pslog.Ctx(ctx).With("chat", chatID, "user", m.From.UserName)

	if !tb.allowed[m.From.ID] {
		logger.Warn("unauthorized telegram user", "user_id", m.From.ID)
		tb.sendText(ctx, chatID, "❌ Unauthorized")
		return
	}

	text := strings.TrimSpace(m.Text)
	switch text {
	case "/start":
		tb.sendText(ctx, chatID, telegramHelp)
		return
	case "/status":
		tb.showStatus(ctx, chatID)
		return
	}

	sess := tb.session(chatID)
	ctx = pslog.ContextWithLogger(ctx, logger.With("session", sess.ID))
	tb.bot.Send(tgbotapi.NewChatAction(chatID, tgbotapi.ChatTyping))

	reply := tb.collab.Handle(ctx, sess, text)
	tb.deliver(ctx, chatID, reply.Event)
	if reply.Logout {
		tb.endSession(chatID)
	}
}

// session returns the chat's session, opening one on first use.
func (tb *TelegramBridge) session(chatID int64) *Session {
	tb.mu.Lock()
	defer tb.mu.Unlock()
	if s, ok := tb.sessions[chatID]; ok {
		return s
	}
	s := tb.collab.Open(fmt.Sprintf("telegram:%d", chatID))
	tb.sessions[chatID] = s
	return s
}

func (tb *TelegramBridge) endSession(chatID int64) {
	tb.mu.Lock()
	s, ok := tb.sessions[chatID]
	delete(tb.sessions, chatID)
	tb.mu.Unlock()
	if ok {
		tb.collab.Close(s)
	}
}

// CleanupAllSessions closes every chat session.
func (tb *TelegramBridge) CleanupAllSessions() {
	tb.mu.Lock()
	sessions := tb.sessions
	tb.sessions = make(map[int64]*Session)
	tb.mu.Unlock()
	for _, s := range sessions {
		tb.collab.Close(s)
	}
}

func (tb *TelegramBridge) showStatus(ctx context.Context, chatID int64) {
	tb.mu.Lock()
	s, ok := tb.sessions[chatID]
	tb.mu.Unlock()
	if !ok {
		tb.sendText(ctx, chatID, "📊 Status: No active session")
		return
	}
	status := fmt.Sprintf("📊 Active Session\n\n"+
		"Session: %s\n"+
		"Commands: %d\n"+
		"Directory: %s\n"+
		"Started: %s",
		s.ID[:8],
		s.CommandCount(),
		s.Cwd(),
		s.ConnectedAt.Format("15:04:05"))
	tb.sendText(ctx, chatID, status)
}

// deliver renders a collaborator event as chat messages.
func (tb *TelegramBridge) deliver(ctx context.Context, chatID int64, ev protocol.Event) {
	switch e := ev.(type) {
	case protocol.ClearTerminal:
		tb.sendText(ctx, chatID, "Screen cleared")
	case protocol.Response:
		text := flattenOutput(e.Output)
		if text != "" {
			text += "\n"
		}
		text += strings.TrimSpace(e.Prompt)
		for _, chunk := range formatPre(text, telegramMaxLen) {
			msg := tgbotapi.NewMessage(chatID, chunk)
			msg.ParseMode = tgbotapi.ModeHTML
			if _, err := tb.bot.Send(msg); err != nil {
				pslog.Ctx(ctx).Warn("telegram send failed", "err", err)
			}
		}
	}
}

func (tb *TelegramBridge) sendText(ctx context.Context, chatID int64, text string) {
	if _, err := tb.bot.Send(tgbotapi.NewMessage(chatID, text)); err != nil {
		pslog.Ctx(ctx).Warn("telegram send failed", "err", err)
	}
}

// flattenOutput runs output through a virtual terminal so cursor movement
// and colors resolve into the plain text a person would have seen.
func flattenOutput(output string) string {
	if output == "" {
		return ""
	}
	rows := strings.Count(output, "\n") + len(output)/execCols + 2
	term := screen.New(execCols, rows)
	term.Print(output)
	return term.Screen()
}

// formatPre escapes text and wraps it in <pre> blocks no longer than maxLen
// bytes each. Blocks break at line ends when possible and never inside an
// HTML entity.
func formatPre(text string, maxLen int) []string {
	const open, closing = "<pre>", "</pre>"
	room := maxLen - len(open) - len(closing)
	escaped := html.EscapeString(text)

	var chunks []string
	var cur strings.Builder
	flush := func() {
		if strings.TrimSpace(cur.String()) != "" {
			chunks = append(chunks, open+strings.TrimRight(cur.String(), "\n")+closing)
		}
		cur.Reset()
	}
	for _, line := range strings.SplitAfter(escaped, "\n") {
		if cur.Len()+len(line) <= room {
			cur.WriteString(line)
			continue
		}
		flush()
		for _, part := range splitAtSafeBoundary(line, room) {
			if cur.Len()+len(part) > room {
				flush()
			}
			cur.WriteString(part)
		}
	}
	flush()
	return chunks
}

// splitAtSafeBoundary splits s into parts of at most maxLen bytes without
// cutting an HTML entity (&...;) in half.
func splitAtSafeBoundary(s string, maxLen int) []string {
	var parts []string
	for len(s) > maxLen {
		end := maxLen
		for j := end - 1; j >= 0 && j >= end-10; j-- {
			if s[j] == ';' {
				break
			}
			if s[j] == '&' {
				end = j
				break
			}
		}
		parts = append(parts, s[:end])
		s = s[end:]
	}
	if len(s) > 0 {
		parts = append(parts, s)
	}
	return parts
}

// runTelegram connects to the Bot API and serves until ctx is done.
func runTelegram(ctx context.Context, cfg Config, collab *Collaborator) error {
	if cfg.Telegram.BotToken == "" {
		return fmt.Errorf("telegram.bot_token is not configured")
	}
	if len(cfg.Telegram.AllowedUsers) == 0 {
		return fmt.Errorf("telegram.allowed_users is empty")
	}
	bot, err := tgbotapi.NewBotAPI(cfg.Telegram.BotToken)
	if err != nil {
		return fmt.Errorf("connect to telegram: %w", err)
	}
	logger := pslog.Ctx(ctx)
	logger.Info("telegram bot authorized", "bot", bot.Self.UserName, "allowed", len(cfg.Telegram.AllowedUsers))

	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates := bot.GetUpdatesChan(u)
	go func() {
		<-ctx.Done()
		bot.StopReceivingUpdates()
	}()

	start := time.Now()
	NewTelegramBridge(bot, collab, cfg.Telegram.AllowedUsers).Listen(ctx, updates)
	logger.Info("telegram bridge stopped", "duration", time.Since(start).Round(time.Second))
	return nil
}
