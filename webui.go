package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/time/rate"
	"pkt.systems/pslog"

	"webterm/internal/history"
	"webterm/internal/lineedit"
	"webterm/internal/protocol"
	"webterm/internal/storage"
)

const (
	writeWait       = 10 * time.Second
	shutdownTimeout = 5 * time.Second
	historyRoute    = 100
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Same-origin is not enforced; basic auth guards access
	},
}

// WebUIServer serves the browser page, the WebSocket endpoint and the small
// JSON API on top of a Collaborator.
type WebUIServer struct {
	// TrustProxy takes client addresses from X-Forwarded-For.
	TrustProxy bool

	collab       *Collaborator
	passwordHash []byte
	limiter      *ipLimiter
}

func NewWebUIServer(collab *Collaborator, passwordHash string, systemInfoPerMinute int) *WebUIServer {
	s := &WebUIServer{
		collab:  collab,
		limiter: newIPLimiter(systemInfoPerMinute, time.Minute),
	}
	if passwordHash != "" {
		s.passwordHash = []byte(passwordHash)
	}
	return s
}

// Handler returns the routes, wrapped in basic auth when a password hash is
// configured.
func (s *WebUIServer) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", serveHTML)
	mux.HandleFunc("/ws", s.handleWebSocket)
	mux.HandleFunc("/api/system-info", s.handleSystemInfo)
	mux.HandleFunc("/api/command-history", s.handleCommandHistory)
	mux.HandleFunc("/health", s.handleHealth)
	if s.passwordHash == nil {
		return mux
	}
	return s.requireAuth(mux)
}

// Start serves on addr until ctx is cancelled.
func (s *WebUIServer) Start(ctx context.Context, addr string) error {
	logger := pslog.Ctx(ctx)
	server := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ErrorLog:          pslog.LogLoggerWithLevel(logger, pslog.ErrorLevel),
		BaseContext: func(_ net.Listener) context.Context {
			return ctx
		},
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("web ui listening", "addr", addr)
		errCh <- server.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
		return nil
	case err := <-errCh:
		return err
	}
}

func (s *WebUIServer) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, password, ok := r.BasicAuth()
		if !ok || bcrypt.CompareHashAndPassword(s.passwordHash, []byte(password)) != nil {
			w.Header().Set("WWW-Authenticate", `Basic realm="webterm"`)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// wsClient is one WebSocket connection. Writes are serialized; the
// server-side line editor is used only by thin clients sending "input".
type wsClient struct {
	conn   *websocket.Conn
	sess   *Session
	mu     sync.Mutex
	editor *lineedit.Editor
	logout bool
}

func (c *wsClient) send(ev protocol.Event) error {
	env, err := protocol.EncodeEvent(ev)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteJSON(env)
}

// Print carries the server-side editor's echo.
func (c *wsClient) Print(s string) {
	c.send(protocol.Output{Text: s})
}

func (s *WebUIServer) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		pslog.Ctx(r.Context()).Warn("websocket upgrade failed", "err", err)
		return
	}
	defer conn.Close()

	ctx := r.Context()
	sess := s.collab.Open(clientIP(r, s.TrustProxy))
	defer s.collab.Close(sess)
	logger := pslog.Ctx(ctx).With("session", sess.ID)
	ctx = pslog.ContextWithLogger(ctx, logger)
	logger.Info("client connected", "remote", sess.ClientIP, "active", s.collab.ActiveSessions())

	client := &wsClient{conn: conn, sess: sess}
	client.editor = lineedit.New(history.New(), client, lineedit.SenderFunc(func(cmd string) {
		s.dispatch(ctx, client, cmd)
	}))

	for _, ev := range s.collab.Greeting(sess) {
		if err := client.send(ev); err != nil {
			logger.Warn("websocket write failed", "err", err)
			return
		}
	}

	for !client.logout {
		var env protocol.Envelope
		if err := conn.ReadJSON(&env); err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				logger.Debug("websocket read ended", "err", err)
			}
			break
		}
		msg, err := protocol.DecodeClient(env)
		if err != nil {
			logger.Warn("ignoring client message", "err", err)
			continue
		}
		switch msg.Kind {
		case protocol.KindCommand:
			s.dispatch(ctx, client, msg.Data)
		case protocol.KindInput:
			for _, tok := range lineedit.Tokenize(msg.Data) {
				client.editor.Handle(lineedit.Normalize(tok))
				if client.logout {
					break
				}
			}
		}
	}

	if client.logout {
		client.mu.Lock()
		conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, "logout"),
			time.Now().Add(writeWait))
		client.mu.Unlock()
	}
	logger.Info("client disconnected", "commands", sess.CommandCount(), "duration", time.Since(sess.ConnectedAt).Round(time.Second))
}

func (s *WebUIServer) dispatch(ctx context.Context, c *wsClient, cmd string) {
	if c.logout {
		return
	}
	reply := s.collab.Handle(ctx, c.sess, cmd)
	if err := c.send(reply.Event); err != nil {
		pslog.Ctx(ctx).Warn("websocket write failed", "err", err)
	}
	c.logout = reply.Logout
}

type systemInfoResponse struct {
	CPUPercent     float64 `json:"cpu_percent"`
	MemoryPercent  float64 `json:"memory_percent"`
	DiskPercent    float64 `json:"disk_percent"`
	ActiveSessions int     `json:"active_sessions"`
	Uptime         float64 `json:"uptime"`
}

func (s *WebUIServer) handleSystemInfo(w http.ResponseWriter, r *http.Request) {
	if !s.limiter.Allow(clientIP(r, s.TrustProxy)) {
		writeJSON(w, http.StatusTooManyRequests, map[string]string{"error": "Rate limit exceeded"})
		return
	}
	u, err := s.collab.Sample(r.Context())
	if err != nil {
		pslog.Ctx(r.Context()).Warn("system sample failed", "err", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, systemInfoResponse{
		CPUPercent:     u.CPUPercent,
		MemoryPercent:  u.MemoryPercent,
		DiskPercent:    u.DiskPercent,
		ActiveSessions: s.collab.ActiveSessions(),
		Uptime:         s.collab.Uptime().Seconds(),
	})
}

// handleCommandHistory returns the most recent audit entries, oldest first.
func (s *WebUIServer) handleCommandHistory(w http.ResponseWriter, r *http.Request) {
	entries, err := s.collab.Audit().Recent(r.Context(), historyRoute)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	for i, j := 0, len(entries)-1; i < j; i, j = i+1, j-1 {
		entries[i], entries[j] = entries[j], entries[i]
	}
	if entries == nil {
		entries = []storage.AuditEntry{}
	}
	writeJSON(w, http.StatusOK, entries)
}

type healthResponse struct {
	Status         string  `json:"status"`
	Timestamp      string  `json:"timestamp"`
	ActiveSessions int     `json:"active_sessions"`
	Uptime         float64 `json:"uptime"`
}

func (s *WebUIServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{
		Status:         "healthy",
		Timestamp:      time.Now().UTC().Format(time.RFC3339),
		ActiveSessions: s.collab.ActiveSessions(),
		Uptime:         s.collab.Uptime().Seconds(),
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// clientIP returns the socket peer's address, or the first X-Forwarded-For
// hop when the server sits behind a trusted proxy.
func clientIP(r *http.Request, trustProxy bool) string {
	if fwd := r.Header.Get("X-Forwarded-For"); trustProxy && fwd != "" {
		first, _, _ := strings.Cut(fwd, ",")
		return strings.TrimSpace(first)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// ipLimiter hands out one token bucket per client address. A bucket idle for
// a whole window has refilled completely, so it is dropped.
type ipLimiter struct {
	mu        sync.Mutex
	buckets   map[string]*ipBucket
	limit     rate.Limit
	burst     int
	window    time.Duration
	lastSweep time.Time
	now       func() time.Time
}

type ipBucket struct {
	lim      *rate.Limiter
	lastSeen time.Time
}

// newIPLimiter allows n requests per window for each address.
func newIPLimiter(n int, window time.Duration) *ipLimiter {
	return &ipLimiter{
		buckets: make(map[string]*ipBucket),
		limit:   rate.Limit(float64(n) / window.Seconds()),
		burst:   n,
		window:  window,
		now:     time.Now,
	}
}

func (l *ipLimiter) Allow(ip string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.now()
	if now.Sub(l.lastSweep) >= l.window {
		for key, b := range l.buckets {
			if now.Sub(b.lastSeen) >= l.window {
				delete(l.buckets, key)
			}
		}
		l.lastSweep = now
	}
	b, ok := l.buckets[ip]
	if !ok {
		b = &ipBucket{lim: rate.NewLimiter(l.limit, l.burst)}
		l.buckets[ip] = b
	}
	b.lastSeen = now
	return b.lim.AllowN(now, 1)
}

func serveHTML(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	fmt.Fprint(w, htmlContent)
}

const htmlContent = `<!DOCTYPE html>
<html>
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>webterm</title>
    <link rel="stylesheet" href="https://cdn.jsdelivr.net/npm/xterm@5.3.0/css/xterm.css" />
    <script src="https://cdn.jsdelivr.net/npm/xterm@5.3.0/lib/xterm.js"></script>
    <script src="https://cdn.jsdelivr.net/npm/xterm-addon-fit@0.8.0/lib/xterm-addon-fit.js"></script>
    <style>
        * { margin: 0; padding: 0; box-sizing: border-box; }
        body {
            font-family: 'SF Mono', 'Monaco', 'Courier New', monospace;
            background: #0d1117;
            color: #f0f6fc;
            height: 100vh;
            display: flex;
            flex-direction: column;
            overflow: hidden;
        }
        header {
            background: #161b22;
            padding: 10px 16px;
            border-bottom: 1px solid #30363d;
            display: flex;
            justify-content: space-between;
            font-size: 13px;
        }
        .status.connected { color: #3fb950; }
        .status.disconnected { color: #f85149; }
        #terminal { flex: 1; padding: 8px; overflow: hidden; }
    </style>
</head>
<body>
    <header>
        <span>webterm</span>
        <span class="status" id="status">Connecting...</span>
    </header>
    <div id="terminal"></div>
    <script>
        const term = new Terminal({
            cursorBlink: true,
            convertEol: true,
            fontSize: 14,
            theme: { background: '#0d1117', foreground: '#f0f6fc' }
        });
        const fit = new FitAddon.FitAddon();
        term.loadAddon(fit);
        term.open(document.getElementById('terminal'));
        fit.fit();
        window.addEventListener('resize', () => fit.fit());

        const status = document.getElementById('status');
        const proto = location.protocol === 'https:' ? 'wss:' : 'ws:';
        const ws = new WebSocket(proto + '//' + location.host + '/ws');

        ws.onopen = () => {
            status.textContent = 'Connected';
            status.className = 'status connected';
        };
        ws.onclose = () => {
            status.textContent = 'Disconnected';
            status.className = 'status disconnected';
        };
        ws.onmessage = (e) => {
            const msg = JSON.parse(e.data);
            const data = msg.data;
            switch (msg.event) {
            case 'initial_prompt':
            case 'output':
                term.write(data || '');
                break;
            case 'response':
                if (typeof data === 'string') {
                    term.write(data);
                    break;
                }
                if (data.output) {
                    term.write(data.output);
                    if (!data.output.endsWith('\n')) term.write('\r\n');
                }
                if (data.prompt) term.write(data.prompt);
                break;
            case 'clear_terminal':
                term.clear();
                term.write('\x1b[2J\x1b[H');
                if (data && data.cwd) term.write(data.cwd + ' $ ');
                break;
            case 'session_info':
                status.textContent = 'Connected (' + data.session_id.slice(0, 8) + ')';
                break;
            }
        };

        term.onData((d) => {
            if (ws.readyState === WebSocket.OPEN) {
                ws.send(JSON.stringify({ event: 'input', data: d }));
            }
        });
        term.focus();
    </script>
</body>
</html>
`
