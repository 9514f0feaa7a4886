// Package history keeps the submitted command lines of a terminal session
// and the recall cursor used by up/down navigation.
package history

import (
	"encoding/json"
	"errors"
	"fmt"

	"pkt.systems/pslog"
)

// PersistLimit is the number of most recent entries written by Persist.
const PersistLimit = 100

// DefaultKey is the storage key the client uses for its history.
const DefaultKey = "webterm-command-history"

// Store is the persistence the buffer writes to and restores from.
type Store interface {
	GetItem(key string) (string, error)
	SetItem(key, value string) error
	RemoveItem(key string) error
}

var errCorrupt = errors.New("corrupt history")

// Buffer is an ordered list of command lines with a cursor in [0, Len()].
// A cursor equal to Len() means the current line is not a recalled entry.
type Buffer struct {
	lines  []string
	cursor int
	store  Store
	key    string
	log    pslog.Logger
}

// Option configures a Buffer.
type Option func(*Buffer)

// WithStore enables Persist and Restore against s under key.
func WithStore(s Store, key string) Option {
	return func(b *Buffer) {
		b.store = s
		b.key = key
	}
}

// WithLogger sets the logger used to report persistence failures.
func WithLogger(l pslog.Logger) Option {
	return func(b *Buffer) { b.log = l }
}

// New returns an empty buffer.
func New(opts ...Option) *Buffer {
	b := &Buffer{key: DefaultKey}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Append pushes line to the end and moves the cursor past it.
func (b *Buffer) Append(line string) {
	b.lines = append(b.lines, line)
	b.cursor = len(b.lines)
}

// Len reports the number of entries.
func (b *Buffer) Len() int { return len(b.lines) }

// Cursor reports the recall position.
func (b *Buffer) Cursor() int { return b.cursor }

// Entries returns a copy of all entries, oldest first.
func (b *Buffer) Entries() []string {
	out := make([]string, len(b.lines))
	copy(out, b.lines)
	return out
}

// Prev moves the cursor back one entry and returns it. ok is false, and the
// cursor unchanged, when already at the first entry.
func (b *Buffer) Prev() (line string, ok bool) {
	if b.cursor <= 0 {
		return "", false
	}
	b.cursor--
	return b.lines[b.cursor], true
}

// Next moves the cursor forward. Stepping onto Len() yields the empty line.
// ok is false when the cursor is already past the end.
func (b *Buffer) Next() (line string, ok bool) {
	if b.cursor >= len(b.lines) {
		return "", false
	}
	b.cursor++
	if b.cursor == len(b.lines) {
		return "", true
	}
	return b.lines[b.cursor], true
}

// Persist writes the last PersistLimit entries to the store. Failures are
// logged and otherwise ignored.
func (b *Buffer) Persist() {
	if b.store == nil {
		return
	}
	tail := b.lines
	if len(tail) > PersistLimit {
		tail = tail[len(tail)-PersistLimit:]
	}
	if tail == nil {
		tail = []string{}
	}
	data, err := json.Marshal(tail)
	if err == nil {
		err = b.store.SetItem(b.key, string(data))
	}
	if err != nil && b.log != nil {
		b.log.Warn("failed to save command history", "err", err)
	}
}

// Restore replaces the buffer with the persisted entries and puts the cursor
// past the end. Missing or corrupt data leaves the buffer empty.
func (b *Buffer) Restore() {
	b.lines = nil
	b.cursor = 0
	if b.store == nil {
		return
	}
	lines, err := b.load()
	if err != nil {
		if b.log != nil {
			b.log.Debug("command history not restored", "err", err)
		}
		if errors.Is(err, errCorrupt) {
			if err := b.store.RemoveItem(b.key); err != nil && b.log != nil {
				b.log.Warn("failed to drop corrupt command history", "err", err)
			}
		}
		return
	}
	b.lines = lines
	b.cursor = len(lines)
}

func (b *Buffer) load() ([]string, error) {
	raw, err := b.store.GetItem(b.key)
	if err != nil {
		return nil, err
	}
	var lines []string
	if err := json.Unmarshal([]byte(raw), &lines); err != nil {
		return nil, fmt.Errorf("%w: %v", errCorrupt, err)
	}
	if lines == nil {
		return nil, fmt.Errorf("%w: null", errCorrupt)
	}
	return lines, nil
}
