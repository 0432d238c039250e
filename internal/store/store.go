// Package store persists operator state between runs: per-backend
// credentials, default query preferences and the minted device identifier.
// It is read by the binary only; the booking engine never touches it.
package store

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// schemaSQL is the single source of truth for the database schema,
// embedded at compile time from schema.sql.
//
//go:embed schema.sql
var schemaSQL string

// ErrNotFound reports a missing credential or preference row.
var ErrNotFound = errors.New("not found in store")

// Store wraps a SQLite database connection with write serialization.
type Store struct {
	conn    *sql.DB
	writeMu sync.Mutex // SQLite supports one writer at a time
}

// Open opens the store with WAL mode enabled and a single-connection pool.
func Open(path string) (*Store, error) {
	dsn := path + "?_journal=WAL&_fk=1&_busy_timeout=5000"
	conn, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}

	conn.SetMaxOpenConns(1)
	conn.SetMaxIdleConns(1)
	conn.SetConnMaxLifetime(time.Hour)

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to ping store: %w", err)
	}

	pragmas := []string{
		"PRAGMA synchronous = NORMAL",
		"PRAGMA temp_store = MEMORY",
	}
	for _, pragma := range pragmas {
		if _, err := conn.Exec(pragma); err != nil {
			log.Printf("Warning: failed to set %s: %v", pragma, err)
		}
	}

	return &Store{conn: conn}, nil
}

// Close closes the underlying connection.
func (s *Store) Close() error {
	return s.conn.Close()
}

// EnsureSchema creates the tables if they don't exist, from the embedded
// schema.sql.
func (s *Store) EnsureSchema(ctx context.Context) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if _, err := s.conn.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

// Credentials returns the stored login for one backend. ErrNotFound when
// the backend has never been configured.
func (s *Store) Credentials(ctx context.Context, backend string) (id, password string, err error) {
	row := s.conn.QueryRowContext(ctx,
		"SELECT login_id, password FROM credentials WHERE backend = ?", backend)
	if err := row.Scan(&id, &password); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", "", fmt.Errorf("credentials for %s: %w", backend, ErrNotFound)
		}
		return "", "", err
	}
	return id, password, nil
}

// SetCredentials stores or replaces the login for one backend.
func (s *Store) SetCredentials(ctx context.Context, backend, id, password string) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	_, err := s.conn.ExecContext(ctx, `
		INSERT INTO credentials (backend, login_id, password, updated_at)
		VALUES (?, ?, ?, datetime('now'))
		ON CONFLICT(backend) DO UPDATE SET
			login_id = excluded.login_id,
			password = excluded.password,
			updated_at = excluded.updated_at`,
		backend, id, password)
	return err
}

// Preference returns one stored preference value. ErrNotFound when unset.
func (s *Store) Preference(ctx context.Context, key string) (string, error) {
	var value string
	row := s.conn.QueryRowContext(ctx, "SELECT value FROM preferences WHERE key = ?", key)
	if err := row.Scan(&value); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", fmt.Errorf("preference %s: %w", key, ErrNotFound)
		}
		return "", err
	}
	return value, nil
}

// SetPreference stores or replaces one preference value.
func (s *Store) SetPreference(ctx context.Context, key, value string) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	_, err := s.conn.ExecContext(ctx, `
		INSERT INTO preferences (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		key, value)
	return err
}

// DeviceKey returns the persistent device identifier, minting one on first
// use. The backends see the same identifier across runs.
func (s *Store) DeviceKey(ctx context.Context) (string, error) {
	var key string
	row := s.conn.QueryRowContext(ctx, "SELECT device_key FROM device WHERE id = 1")
	err := row.Scan(&key)
	if err == nil {
		return key, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return "", err
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	key = uuid.NewString()
	if _, err := s.conn.ExecContext(ctx,
		"INSERT INTO device (id, device_key) VALUES (1, ?)", key); err != nil {
		return "", fmt.Errorf("failed to mint device key: %w", err)
	}
	log.Printf("Minted device key %s", key)
	return key, nil
}
