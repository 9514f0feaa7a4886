// Package storage provides the persisted state of webterm: a small key/value
// store (the client's equivalent of browser local storage) and the server's
// command audit log. Both live in one sqlite database; Memory offers the same
// surface without touching disk.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // Pure Go SQLite driver
)

// ErrNotFound is returned by GetItem when the key has never been set.
var ErrNotFound = errors.New("storage: key not found")

// KV is the key/value surface shared by Local and Memory.
type KV interface {
	GetItem(key string) (string, error)
	SetItem(key, value string) error
	RemoveItem(key string) error
}

// AuditEntry is one recorded command submission.
type AuditEntry struct {
	SessionID string    `json:"session_id"`
	Command   string    `json:"command"`
	Timestamp time.Time `json:"timestamp"`
	ClientIP  string    `json:"client_ip"`
}

// AuditLog records submitted commands, newest kept, oldest trimmed past a limit.
type AuditLog interface {
	Append(ctx context.Context, e AuditEntry) error
	Recent(ctx context.Context, n int) ([]AuditEntry, error)
}

// Local is a sqlite-backed store.
type Local struct {
	db         *sql.DB
	auditLimit int
}

const schema = `
CREATE TABLE IF NOT EXISTS kv (
	key   TEXT PRIMARY KEY,
	value TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS command_log (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	session_id TEXT NOT NULL,
	command    TEXT NOT NULL,
	client_ip  TEXT NOT NULL,
	at         INTEGER NOT NULL
);
`

// OpenLocal opens (creating if needed) the database at path. auditLimit caps
// the command log; zero or less keeps everything.
func OpenLocal(path string, auditLimit int) (*Local, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("failed to create storage directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite only supports one writer at a time
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to apply %q: %w", p, err)
		}
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return &Local{db: db, auditLimit: auditLimit}, nil
}

// Close releases the database.
func (l *Local) Close() error {
	return l.db.Close()
}

func (l *Local) GetItem(key string) (string, error) {
	var value string
	err := l.db.QueryRow(`SELECT value FROM kv WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("get %q: %w", key, err)
	}
	return value, nil
}

func (l *Local) SetItem(key, value string) error {
	_, err := l.db.Exec(`INSERT INTO kv (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value`, key, value)
	if err != nil {
		return fmt.Errorf("set %q: %w", key, err)
	}
	return nil
}

func (l *Local) RemoveItem(key string) error {
	if _, err := l.db.Exec(`DELETE FROM kv WHERE key = ?`, key); err != nil {
		return fmt.Errorf("remove %q: %w", key, err)
	}
	return nil
}

// Append records an audit entry and trims the log to its limit.
func (l *Local) Append(ctx context.Context, e AuditEntry) error {
	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin audit append: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO command_log (session_id, command, client_ip, at) VALUES (?, ?, ?, ?)`,
		e.SessionID, e.Command, e.ClientIP, e.Timestamp.UTC().UnixNano())
	if err != nil {
		return fmt.Errorf("insert audit entry: %w", err)
	}
	if l.auditLimit > 0 {
		_, err = tx.ExecContext(ctx,
			`DELETE FROM command_log WHERE id NOT IN (SELECT id FROM command_log ORDER BY id DESC LIMIT ?)`,
			l.auditLimit)
		if err != nil {
			return fmt.Errorf("trim audit log: %w", err)
		}
	}
	return tx.Commit()
}

// Recent returns up to n entries, newest first.
func (l *Local) Recent(ctx context.Context, n int) ([]AuditEntry, error) {
	rows, err := l.db.QueryContext(ctx,
		`SELECT session_id, command, client_ip, at FROM command_log ORDER BY id DESC LIMIT ?`, n)
	if err != nil {
		return nil, fmt.Errorf("query audit log: %w", err)
	}
	defer rows.Close()

	var out []AuditEntry
	for rows.Next() {
		var e AuditEntry
		var at int64
		if err := rows.Scan(&e.SessionID, &e.Command, &e.ClientIP, &at); err != nil {
			return nil, fmt.Errorf("scan audit entry: %w", err)
		}
		e.Timestamp = time.Unix(0, at).UTC()
		out = append(out, e)
	}
	return out, rows.Err()
}
