package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"
)

var ErrNoToken = errors.New("no stored token")

const (
	keyToken    = "token"
	keyLastRoom = "last_room"
)

// Store persists the client's session-scoped local state: the bearer token
// and the last-focused room. Both are set at login and cleared at logout.
type Store interface {
	SaveToken(ctx context.Context, token string) error
	Token(ctx context.Context) (string, error)
	SaveLastRoom(ctx context.Context, roomID string) error
	LastRoom(ctx context.Context) (string, error)
	Clear(ctx context.Context) error
	Close() error
}

// SQLStore is a sqlite-backed Store.
type SQLStore struct {
	db *sqlx.DB
}

// Open initializes the local state database and runs migrations. Use
// ":memory:" for a store that lives only for the process.
func Open(path string) (*SQLStore, error) {
	db, err := sqlx.Connect("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open state db: %w", err)
	}
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS session_state (
        key TEXT PRIMARY KEY,
        value TEXT NOT NULL
    );`); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate state db: %w", err)
	}
	return &SQLStore{db: db}, nil
}

// SaveToken stores the bearer token issued at login.
func (s *SQLStore) SaveToken(ctx context.Context, token string) error {
	return s.set(ctx, keyToken, token)
}

// Token returns the stored bearer token, or ErrNoToken.
func (s *SQLStore) Token(ctx context.Context) (string, error) {
	value, err := s.get(ctx, keyToken)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNoToken
	}
	return value, err
}

// SaveLastRoom remembers the focused room so the next session can restore it.
func (s *SQLStore) SaveLastRoom(ctx context.Context, roomID string) error {
	return s.set(ctx, keyLastRoom, roomID)
}

// LastRoom returns the last focused room id, or "" when none is stored.
func (s *SQLStore) LastRoom(ctx context.Context) (string, error) {
	value, err := s.get(ctx, keyLastRoom)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	return value, err
}

// Clear wipes all session state. Called on logout.
func (s *SQLStore) Clear(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM session_state`)
	return err
}

func (s *SQLStore) Close() error {
	return s.db.Close()
}

func (s *SQLStore) set(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO session_state (key, value) VALUES (?, ?)
        ON CONFLICT (key) DO UPDATE SET value = excluded.value`, key, value)
	return err
}

func (s *SQLStore) get(ctx context.Context, key string) (string, error) {
	var value string
	err := s.db.GetContext(ctx, &value, `SELECT value FROM session_state WHERE key = ?`, key)
	return value, err
}
