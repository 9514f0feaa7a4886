package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"pkt.systems/pslog"

	"webterm/internal/protocol"
	"webterm/internal/storage"
	"webterm/internal/sysinfo"
)

const (
	defaultHistoryLimit = 20
	cbashHelp           = "Available CBash commands: status, history [n], sessions"
	blockedMessage      = "Error: Dangerous command blocked for security"
	interactiveMessage  = "Error: interactive programs are not supported here"
)

// Session is one connected client of the collaborator: a browser tab, a TUI
// client or a Telegram chat. Each session keeps its own working directory.
type Session struct {
	ID          string
	ConnectedAt time.Time
	ClientIP    string

	mu           sync.Mutex
	cwd          string
	commandCount int
	lastActivity time.Time
}

// Cwd returns the session's working directory.
func (s *Session) Cwd() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cwd
}

// CommandCount returns the number of non-empty commands received.
func (s *Session) CommandCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.commandCount
}

// LastActivity returns when the session last submitted a command.
func (s *Session) LastActivity() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastActivity
}

func (s *Session) prompt() string {
	return s.Cwd() + " $ "
}

// Reply is the collaborator's answer to one command. Logout asks the caller
// to end the session once Event has been delivered.
type Reply struct {
	Event  protocol.Event
	Logout bool
}

// Collaborator executes commands on behalf of sessions. All front-ends (the
// WebSocket hub, the Telegram bridge and the standalone loopback) share it.
type Collaborator struct {
	exec    *Executor
	audit   storage.AuditLog
	sampler sysinfo.Sampler
	blocked []string
	started time.Time
	now     func() time.Time
	home    string
	workdir string

	mu       sync.Mutex
	sessions map[string]*Session
}

// CollaboratorOptions configures NewCollaborator. Zero values fall back to
// defaults.
type CollaboratorOptions struct {
	Executor *Executor
	Audit    storage.AuditLog
	Sampler  sysinfo.Sampler
	Blocked  []string
	// Workdir is where new sessions start. Defaults to the process cwd.
	Workdir string
	Now     func() time.Time
}

func NewCollaborator(opts CollaboratorOptions) *Collaborator {
	c := &Collaborator{
		exec:     opts.Executor,
		audit:    opts.Audit,
		sampler:  opts.Sampler,
		blocked:  opts.Blocked,
		now:      opts.Now,
		workdir:  opts.Workdir,
		sessions: make(map[string]*Session),
	}
	if c.exec == nil {
		c.exec = NewExecutor("", 30*time.Second)
	}
	if c.audit == nil {
		c.audit = storage.NewMemory(1000)
	}
	if c.sampler == nil {
		c.sampler = sysinfo.Host{}
	}
	if c.blocked == nil {
		c.blocked = defaultBlockedCommands
	}
	if c.now == nil {
		c.now = time.Now
	}
	if c.workdir == "" {
		c.workdir, _ = os.Getwd()
	}
	c.home, _ = os.UserHomeDir()
	c.started = c.now()
	return c
}

// Open registers a new session starting in the collaborator's workdir.
func (c *Collaborator) Open(clientIP string) *Session {
	now := c.now()
	s := &Session{
		ID:           uuid.NewString(),
		ConnectedAt:  now,
		ClientIP:     clientIP,
		cwd:          c.workdir,
		lastActivity: now,
	}
	c.mu.Lock()
	c.sessions[s.ID] = s
	c.mu.Unlock()
	return s
}

// Greeting is what a freshly opened session is sent: its prompt and its
// identity.
func (c *Collaborator) Greeting(s *Session) []protocol.Event {
	return []protocol.Event{
		protocol.InitialPrompt{Prompt: s.prompt()},
		protocol.SessionInfo{SessionID: s.ID, ConnectedAt: s.ConnectedAt},
	}
}

// Close drops the session.
func (c *Collaborator) Close(s *Session) {
	c.mu.Lock()
	delete(c.sessions, s.ID)
	c.mu.Unlock()
}

// ActiveSessions returns the number of open sessions.
func (c *Collaborator) ActiveSessions() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.sessions)
}

// Uptime returns the time since the collaborator started.
func (c *Collaborator) Uptime() time.Duration {
	return c.now().Sub(c.started)
}

// Sample reports host utilization.
func (c *Collaborator) Sample(ctx context.Context) (sysinfo.Usage, error) {
	return c.sampler.Sample(ctx)
}

// Audit exposes the command audit log.
func (c *Collaborator) Audit() storage.AuditLog {
	return c.audit
}

// Handle runs one submitted command for s. Failures never escape: they
// become the response's output.
func (c *Collaborator) Handle(ctx context.Context, s *Session, command string) Reply {
	logger := pslog.Ctx(ctx).With("session", s.ID)
	cmd := strings.TrimSpace(command)
	if cmd == "" {
		return Reply{Event: protocol.Response{Prompt: s.prompt()}}
	}

	start := c.now()
	s.mu.Lock()
	s.commandCount++
	s.lastActivity = start
	s.mu.Unlock()

	entry := storage.AuditEntry{SessionID: s.ID, Command: cmd, Timestamp: start.UTC(), ClientIP: s.ClientIP}
	if err := c.audit.Append(ctx, entry); err != nil {
		logger.Warn("audit append failed", "err", err)
	}
	logger.Info("command", "command", cmd, "remote", s.ClientIP)

	respond := func(output string) Reply {
		return Reply{Event: protocol.Response{
			Output:        normalizeOutput(output),
			Prompt:        s.prompt(),
			ExecutionTime: math.Round(c.now().Sub(start).Seconds()*1000) / 1000,
			Command:       cmd,
		}}
	}

	fields := strings.Fields(cmd)
	switch {
	case cmd == "exit":
		r := respond("logout")
		r.Logout = true
		return r
	case fields[0] == "cd":
		return respond(c.changeDir(s, strings.TrimSpace(strings.TrimPrefix(cmd, "cd"))))
	case cmd == "clear":
		return Reply{Event: protocol.ClearTerminal{Cwd: s.Cwd()}}
	case fields[0] == "cbash":
		return respond(c.cbash(ctx, s, fields[1:]))
	case c.isBlocked(cmd):
		logger.Warn("command blocked", "command", cmd)
		return respond(blockedMessage)
	case len(fields) == 1 && isInteractiveCommand(cmd):
		return respond(interactiveMessage)
	}

	out, err := c.exec.Run(ctx, s.Cwd(), cmd)
	switch {
	case errors.Is(err, ErrCommandTimeout):
		logger.Warn("command timed out", "command", cmd, "duration", c.exec.Timeout)
		out = strings.TrimRight(out, "\r\n")
		if out != "" {
			out += "\n"
		}
		out += fmt.Sprintf("Error: Command timed out (%ds limit)", int(c.exec.Timeout/time.Second))
	case err != nil:
		logger.Warn("command failed", "command", cmd, "err", err)
		out = fmt.Sprintf("Error: %v", err)
	}
	return respond(out)
}

// changeDir resolves target against the session cwd, expanding ~. An empty
// target means the home directory. It returns the output to show.
func (c *Collaborator) changeDir(s *Session, target string) string {
	switch {
	case target == "" || target == "~":
		target = c.home
	case strings.HasPrefix(target, "~/"):
		target = filepath.Join(c.home, target[2:])
	}
	if target == "" {
		return "cd: no home directory"
	}
	if !filepath.IsAbs(target) {
		target = filepath.Join(s.Cwd(), target)
	}
	info, err := os.Stat(target)
	if err != nil {
		var pathErr *os.PathError
		if errors.As(err, &pathErr) {
			return fmt.Sprintf("cd: %s: %v", target, pathErr.Err)
		}
		return fmt.Sprintf("cd: %v", err)
	}
	if !info.IsDir() {
		return fmt.Sprintf("cd: %s: not a directory", target)
	}
	s.mu.Lock()
	s.cwd = filepath.Clean(target)
	s.mu.Unlock()
	return ""
}

func (c *Collaborator) isBlocked(cmd string) bool {
	for _, b := range c.blocked {
		if b != "" && strings.Contains(cmd, b) {
			return true
		}
	}
	return false
}

type cbashStatus struct {
	SessionID        string  `json:"session_id"`
	Uptime           float64 `json:"uptime"`
	CommandsExecuted int     `json:"commands_executed"`
	CPUUsage         float64 `json:"cpu_usage"`
	MemoryUsage      float64 `json:"memory_usage"`
}

type cbashSession struct {
	SessionID    string `json:"session_id"`
	ConnectedAt  string `json:"connected_at"`
	CommandCount int    `json:"command_count"`
	LastActivity string `json:"last_activity"`
}

// cbash implements the built-in "cbash status|history [n]|sessions".
func (c *Collaborator) cbash(ctx context.Context, s *Session, args []string) string {
	sub := ""
	if len(args) > 0 {
		sub = args[0]
	}
	switch sub {
	case "status":
		st := cbashStatus{
			SessionID:        s.ID,
			Uptime:           c.Uptime().Seconds(),
			CommandsExecuted: s.CommandCount(),
		}
		if u, err := c.sampler.Sample(ctx); err != nil {
			pslog.Ctx(ctx).Warn("system sample failed", "err", err)
		} else {
			st.CPUUsage, st.MemoryUsage = u.CPUPercent, u.MemoryPercent
		}
		return indentJSON(st)

	case "history":
		limit := defaultHistoryLimit
		if len(args) > 1 {
			if n, err := strconv.Atoi(args[1]); err == nil && n > 0 {
				limit = n
			}
		}
		entries, err := c.audit.Recent(ctx, limit)
		if err != nil {
			return fmt.Sprintf("Error: %v", err)
		}
		lines := make([]string, 0, len(entries))
		for i := len(entries) - 1; i >= 0; i-- {
			lines = append(lines, fmt.Sprintf("%d: %s", len(lines)+1, entries[i].Command))
		}
		return strings.Join(lines, "\n")

	case "sessions":
		c.mu.Lock()
		list := make([]*Session, 0, len(c.sessions))
		for _, other := range c.sessions {
			list = append(list, other)
		}
		c.mu.Unlock()
		sort.Slice(list, func(i, j int) bool { return list[i].ConnectedAt.Before(list[j].ConnectedAt) })

		out := make([]cbashSession, 0, len(list))
		for _, other := range list {
			id := other.ID
			if len(id) > 8 {
				id = id[:8]
			}
			out = append(out, cbashSession{
				SessionID:    id + "...",
				ConnectedAt:  other.ConnectedAt.UTC().Format(time.RFC3339),
				CommandCount: other.CommandCount(),
				LastActivity: other.LastActivity().UTC().Format(time.RFC3339),
			})
		}
		return indentJSON(out)
	}
	return cbashHelp
}

func indentJSON(v any) string {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Sprintf("Error: %v", err)
	}
	return string(data)
}

// isInteractiveCommand checks if a command starts a program that needs a
// persistent terminal (REPLs, editors, pagers, monitors).
func isInteractiveCommand(cmd string) bool {
	parts := strings.Fields(cmd)
	if len(parts) == 0 {
		return false
	}

	firstWord := parts[0]

	interactive := []string{
		"python", "python3", "ipython",
		"node", "deno", "bun",
		"irb", "ruby",
		"ghci",
		"lua",
		"psql", "mysql", "redis-cli",
		"vim", "vi", "nvim", "emacs", "nano",
		"less", "more",
		"top", "htop", "btop",
		"watch",
		"ssh", "telnet",
		"bash", "sh", "zsh",
	}

	for _, name := range interactive {
		if firstWord == name {
			return true
		}
	}

	return false
}
