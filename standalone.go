package main

import (
	"context"
	"fmt"
	"sync"

	"pkt.systems/pslog"

	"webterm/internal/protocol"
	"webterm/internal/transport"
)

// loopback is an in-process transport.Conn: the client talks straight to a
// Collaborator with no network in between. Commands run one at a time on
// a worker so the client loop never blocks on execution.
type loopback struct {
	ctx    context.Context
	collab *Collaborator
	sess   *Session

	events chan protocol.Event
	queue  chan string
	done   chan struct{}

	closeOnce sync.Once
}

var _ transport.Conn = (*loopback)(nil)

func newLoopback(ctx context.Context, collab *Collaborator) *loopback {
	l := &loopback{
		ctx:    ctx,
		collab: collab,
		sess:   collab.Open("local"),
		events: make(chan protocol.Event, 64),
		queue:  make(chan string, 16),
		done:   make(chan struct{}),
	}
	l.events <- protocol.Connected{}
	for _, ev := range collab.Greeting(l.sess) {
		l.events <- ev
	}
	go l.run()
	return l
}

func (l *loopback) run() {
	defer func() {
		l.closeOnce.Do(func() { close(l.done) })
		l.collab.Close(l.sess)
		select {
		case l.events <- protocol.Disconnected{}:
		default:
		}
		close(l.events)
	}()
	ctx := pslog.ContextWithLogger(l.ctx, pslog.Ctx(l.ctx).With("session", l.sess.ID))
	for {
		select {
		case <-l.done:
			return
		case <-ctx.Done():
			return
		case cmd := <-l.queue:
			reply := l.collab.Handle(ctx, l.sess, cmd)
			select {
			case l.events <- reply.Event:
			case <-l.done:
				return
			}
			if reply.Logout {
				return
			}
		}
	}
}

func (l *loopback) Send(msg protocol.ClientMessage) error {
	if msg.Kind != protocol.KindCommand {
		return fmt.Errorf("loopback: unsupported message %q", msg.Kind)
	}
	select {
	case <-l.done:
		return transport.ErrClosed
	default:
	}
	select {
	case l.queue <- msg.Data:
		return nil
	case <-l.done:
		return transport.ErrClosed
	}
}

func (l *loopback) Events() <-chan protocol.Event { return l.events }

func (l *loopback) Close() error {
	l.closeOnce.Do(func() { close(l.done) })
	return nil
}
