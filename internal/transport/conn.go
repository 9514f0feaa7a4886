// Package transport connects a client to the command-execution server and
// renders the server's events onto a terminal surface.
package transport

import (
	"errors"
	"fmt"
	"net/url"

	"webterm/internal/protocol"
)

// ErrClosed is returned when sending on a connection that has ended.
var ErrClosed = errors.New("transport: connection closed")

// Conn is an established session with the server. Events delivers a
// Connected event first and a Disconnected event last, then is closed.
type Conn interface {
	Send(msg protocol.ClientMessage) error
	Events() <-chan protocol.Event
	Close() error
}

// HTTPBase derives the HTTP origin of a WebSocket URL, keeping any user
// info: ws://h:8000/ws becomes http://h:8000.
func HTTPBase(wsURL string) (string, error) {
	u, err := url.Parse(wsURL)
	if err != nil {
		return "", fmt.Errorf("parse url: %w", err)
	}
	switch u.Scheme {
	case "ws":
		u.Scheme = "http"
	case "wss":
		u.Scheme = "https"
	case "http", "https":
	default:
		return "", fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	u.Path, u.RawPath, u.RawQuery, u.Fragment = "", "", "", ""
	return u.String(), nil
}
