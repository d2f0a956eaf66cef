package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	_ "modernc.org/sqlite" // Pure Go SQLite driver
)

// SQLiteBackend persists keys to SQLite.
// It is suitable for single-process production use. Field values are
// stored as JSON, so numbers read back as float64. A hash exists from its
// first HSet until Del, even when it has no fields.
type SQLiteBackend struct {
	db     *sql.DB
	mu     sync.RWMutex
	closed bool
}

var _ Backend = (*SQLiteBackend)(nil)

const schema = `
CREATE TABLE IF NOT EXISTS hash_keys (
	key TEXT PRIMARY KEY
);
CREATE TABLE IF NOT EXISTS hashes (
	key TEXT NOT NULL,
	field TEXT NOT NULL,
	value TEXT NOT NULL,
	PRIMARY KEY (key, field)
);
CREATE TABLE IF NOT EXISTS set_members (
	key TEXT NOT NULL,
	member TEXT NOT NULL,
	PRIMARY KEY (key, member)
);
CREATE TABLE IF NOT EXISTS strings (
	key TEXT PRIMARY KEY,
	value TEXT NOT NULL
);
`

// NewSQLiteBackend opens or creates a SQLite database.
// The path should be a file path (e.g., "./rhom.db") or ":memory:" for testing.
func NewSQLiteBackend(path string) (*SQLiteBackend, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// Every connection to ":memory:" is its own database.
	db.SetMaxOpenConns(1)

	// Enable WAL mode for better concurrent read performance
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable WAL mode: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create tables: %w", err)
	}

	return &SQLiteBackend{db: db}, nil
}

// HGetAll implements Backend.
func (s *SQLiteBackend) HGetAll(ctx context.Context, key string) (map[string]any, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, ErrClosed
	}

	var one int
	err := s.db.QueryRowContext(ctx, `SELECT 1 FROM hash_keys WHERE key = ?`, key).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("hgetall %s: %w", key, err)
	}

	rows, err := s.db.QueryContext(ctx, `SELECT field, value FROM hashes WHERE key = ?`, key)
	if err != nil {
		return nil, fmt.Errorf("hgetall %s: %w", key, err)
	}
	defer rows.Close()

	out := make(map[string]any)
	for rows.Next() {
		var field, raw string
		if err := rows.Scan(&field, &raw); err != nil {
			return nil, fmt.Errorf("scan field: %w", err)
		}
		var v any
		if err := json.Unmarshal([]byte(raw), &v); err != nil {
			return nil, fmt.Errorf("decode %s.%s: %w", key, field, err)
		}
		out[field] = v
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate fields: %w", err)
	}
	return out, nil
}

// HSet implements Backend.
func (s *SQLiteBackend) HSet(ctx context.Context, key string, fields map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback() // no-op after commit

	if _, err := tx.ExecContext(ctx, `INSERT OR IGNORE INTO hash_keys (key) VALUES (?)`, key); err != nil {
		return fmt.Errorf("hset %s: %w", key, err)
	}
	for field, v := range fields {
		if v == nil {
			if _, err := tx.ExecContext(ctx, `DELETE FROM hashes WHERE key = ? AND field = ?`, key, field); err != nil {
				return fmt.Errorf("hdel %s.%s: %w", key, field, err)
			}
			continue
		}
		raw, err := json.Marshal(v)
		if err != nil {
			return fmt.Errorf("encode %s.%s: %w", key, field, err)
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO hashes (key, field, value) VALUES (?, ?, ?)
			ON CONFLICT(key, field) DO UPDATE SET value = excluded.value
		`, key, field, string(raw)); err != nil {
			return fmt.Errorf("hset %s.%s: %w", key, field, err)
		}
	}
	return tx.Commit()
}

// SAdd implements Backend.
func (s *SQLiteBackend) SAdd(ctx context.Context, key string, members ...string) error {
	return s.members(ctx, `INSERT OR IGNORE INTO set_members (key, member) VALUES (?, ?)`, "sadd", key, members)
}

// SRem implements Backend.
func (s *SQLiteBackend) SRem(ctx context.Context, key string, members ...string) error {
	return s.members(ctx, `DELETE FROM set_members WHERE key = ? AND member = ?`, "srem", key, members)
}

func (s *SQLiteBackend) members(ctx context.Context, stmt, op, key string, members []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback() // no-op after commit

	for _, m := range members {
		if _, err := tx.ExecContext(ctx, stmt, key, m); err != nil {
			return fmt.Errorf("%s %s: %w", op, key, err)
		}
	}
	return tx.Commit()
}

// SMembers implements Backend.
func (s *SQLiteBackend) SMembers(ctx context.Context, key string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, ErrClosed
	}

	rows, err := s.db.QueryContext(ctx, `SELECT member FROM set_members WHERE key = ? ORDER BY member`, key)
	if err != nil {
		return nil, fmt.Errorf("smembers %s: %w", key, err)
	}
	defer rows.Close()

	out := []string{}
	for rows.Next() {
		var m string
		if err := rows.Scan(&m); err != nil {
			return nil, fmt.Errorf("scan member: %w", err)
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate members: %w", err)
	}
	return out, nil
}

// GetString implements Backend.
func (s *SQLiteBackend) GetString(ctx context.Context, key string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return "", ErrClosed
	}

	var v string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM strings WHERE key = ?`, key).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("get %s: %w", key, err)
	}
	return v, nil
}

// SetString implements Backend.
func (s *SQLiteBackend) SetString(ctx context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}

	if _, err := s.db.ExecContext(ctx, `
		INSERT INTO strings (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, key, value); err != nil {
		return fmt.Errorf("set %s: %w", key, err)
	}
	return nil
}

// Del implements Backend.
func (s *SQLiteBackend) Del(ctx context.Context, keys ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback() // no-op after commit

	for _, k := range keys {
		for _, stmt := range []string{
			`DELETE FROM hash_keys WHERE key = ?`,
			`DELETE FROM hashes WHERE key = ?`,
			`DELETE FROM set_members WHERE key = ?`,
			`DELETE FROM strings WHERE key = ?`,
		} {
			if _, err := tx.ExecContext(ctx, stmt, k); err != nil {
				return fmt.Errorf("del %s: %w", k, err)
			}
		}
	}
	return tx.Commit()
}

// Keys implements Backend.
func (s *SQLiteBackend) Keys(ctx context.Context, prefix string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, ErrClosed
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT key FROM hash_keys WHERE substr(key, 1, length(?1)) = ?1
		UNION
		SELECT key FROM set_members WHERE substr(key, 1, length(?1)) = ?1
		UNION
		SELECT key FROM strings WHERE substr(key, 1, length(?1)) = ?1
		ORDER BY key
	`, prefix)
	if err != nil {
		return nil, fmt.Errorf("keys %s: %w", prefix, err)
	}
	defer rows.Close()

	out := []string{}
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, fmt.Errorf("scan key: %w", err)
		}
		out = append(out, k)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate keys: %w", err)
	}
	return out, nil
}

// Close implements Backend.
func (s *SQLiteBackend) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}

	s.closed = true
	return s.db.Close()
}
