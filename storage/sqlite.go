package storage

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrations embed.FS

// SQLite persists slots in a single database file.
type SQLite struct {
	db *sql.DB
}

// OpenSQLite opens (creating if needed) the database at path and applies migrations.
func OpenSQLite(ctx context.Context, path string) (*SQLite, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("storage path is required")
	}

	dsn := filepath.Clean(path) + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)"

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}

	if err := applyMigrations(ctx, db, migrations, "migrations"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLite{db: db}, nil
}

func (s *SQLite) Get(ctx context.Context, session, key string) ([]byte, error) {
	var value []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT value FROM slots WHERE session_id = ? AND key = ?`,
		session, key,
	).Scan(&value)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return nil, ErrNotFound
	case err != nil:
		return nil, fmt.Errorf("get slot %s/%s: %w", session, key, err)
	}

	return value, nil
}

func (s *SQLite) Put(ctx context.Context, session, key string, value []byte) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO slots (session_id, key, value, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (session_id, key) DO UPDATE SET
			value = excluded.value,
			updated_at = excluded.updated_at;
		`,
		session, key, value, time.Now().UTC().UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("put slot %s/%s: %w", session, key, err)
	}

	return nil
}

func (s *SQLite) Delete(ctx context.Context, session string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM slots WHERE session_id = ?`, session); err != nil {
		return fmt.Errorf("delete session %s: %w", session, err)
	}

	return nil
}

func (s *SQLite) Close() error {
	if s == nil || s.db == nil {
		return nil
	}

	return s.db.Close()
}
