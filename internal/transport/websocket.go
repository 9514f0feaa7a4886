package transport

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"pkt.systems/pslog"

	"webterm/internal/protocol"
)

const (
	writeWait   = 10 * time.Second
	eventBuffer = 64
)

// WebSocket is a Conn over a gorilla WebSocket. User info in the dial URL
// is sent as HTTP basic auth.
type WebSocket struct {
	ws     *websocket.Conn
	events chan protocol.Event
	done   chan struct{}
	log    pslog.Logger

	writeMu   sync.Mutex
	closeOnce sync.Once
}

// Dial connects to the server's WebSocket endpoint. header may be nil.
func Dial(ctx context.Context, url string, header http.Header) (*WebSocket, error) {
	dialer := websocket.Dialer{
		Proxy:            http.ProxyFromEnvironment,
		HandshakeTimeout: 15 * time.Second,
	}
	ws, resp, err := dialer.DialContext(ctx, url, header)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("dial %s: %w (%s)", url, err, resp.Status)
		}
		return nil, fmt.Errorf("dial %s: %w", url, err)
	}
	return newWebSocket(ws, pslog.Ctx(ctx)), nil
}

func newWebSocket(ws *websocket.Conn, log pslog.Logger) *WebSocket {
	c := &WebSocket{
		ws:     ws,
		events: make(chan protocol.Event, eventBuffer),
		done:   make(chan struct{}),
		log:    log,
	}
	go c.readLoop()
	return c
}

// Events returns the event stream.
func (c *WebSocket) Events() <-chan protocol.Event { return c.events }

// Send writes one client message.
func (c *WebSocket) Send(msg protocol.ClientMessage) error {
	select {
	case <-c.done:
		return ErrClosed
	default:
	}
	env, err := protocol.EncodeClient(msg)
	if err != nil {
		return err
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	c.ws.SetWriteDeadline(time.Now().Add(writeWait))
	if err := c.ws.WriteJSON(env); err != nil {
		return fmt.Errorf("send %s: %w", msg.Kind, err)
	}
	return nil
}

// Close ends the connection. The event stream still finishes with a
// Disconnected event if the reader is draining it.
func (c *WebSocket) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.done)
		c.writeMu.Lock()
		c.ws.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		c.writeMu.Unlock()
		err = c.ws.Close()
	})
	return err
}

func (c *WebSocket) readLoop() {
	defer close(c.events)
	c.emit(protocol.Connected{})

	var reason error
	for {
		var env protocol.Envelope
		if err := c.ws.ReadJSON(&env); err != nil {
			reason = c.readError(err)
			break
		}
		ev, err := protocol.DecodeEvent(env)
		if err != nil {
			c.log.Warn("skipping event", "event", env.Event, "err", err)
			continue
		}
		if !c.emit(ev) {
			break
		}
	}
	c.ws.Close()
	c.emitFinal(protocol.Disconnected{Err: reason})
}

// readError maps a read failure to the Disconnected reason: nil for a clean
// close from either side.
func (c *WebSocket) readError(err error) error {
	select {
	case <-c.done:
		return nil
	default:
	}
	if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
		return nil
	}
	var closeErr *websocket.CloseError
	if errors.As(err, &closeErr) {
		return closeErr
	}
	return fmt.Errorf("read: %w", err)
}

func (c *WebSocket) emit(ev protocol.Event) bool {
	select {
	case c.events <- ev:
		return true
	case <-c.done:
		return false
	}
}

func (c *WebSocket) emitFinal(ev protocol.Event) {
	select {
	case c.events <- ev:
	default:
		c.log.Debug("event buffer full, dropping disconnect")
	}
}
