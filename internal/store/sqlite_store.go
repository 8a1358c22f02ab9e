package store

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	_ "modernc.org/sqlite"

	"conclave/internal/domain"
)

// SQLiteStore keeps namespaced properties in a single SQLite table.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLiteStore opens (creating if needed) the database at path.
func OpenSQLiteStore(path string) (*SQLiteStore, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("sqlite path is required")
	}
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, err
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	s := &SQLiteStore{db: db}
	if err := s.initSchema(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLiteStore) initSchema() error {
	schema := []string{
		`PRAGMA journal_mode=WAL;`,
		`CREATE TABLE IF NOT EXISTS properties (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);`,
	}
	for _, stmt := range schema {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("init schema: %w", err)
		}
	}
	return nil
}

// Close releases the database handle.
func (s *SQLiteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *SQLiteStore) GetString(key string) (string, bool, error) {
	var value string
	err := s.db.QueryRow(`SELECT value FROM properties WHERE key = ?`, key).Scan(&value)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", false, nil
		}
		return "", false, err
	}
	return value, true, nil
}

func (s *SQLiteStore) SetString(key, value string) error {
	_, err := s.db.Exec(`
		INSERT INTO properties(key, value) VALUES(?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, key, value)
	return err
}

func (s *SQLiteStore) GetBool(key string) (bool, bool, error) {
	v, ok, err := s.GetString(key)
	if err != nil || !ok {
		return false, false, err
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, false, fmt.Errorf("property %q: %w", key, err)
	}
	return b, true, nil
}

func (s *SQLiteStore) SetBool(key string, value bool) error {
	return s.SetString(key, strconv.FormatBool(value))
}

func (s *SQLiteStore) Remove(key string) error {
	_, err := s.db.Exec(`DELETE FROM properties WHERE key = ?`, key)
	return err
}

// KeysWithPrefix lists the keys below prefix in lexical order.
func (s *SQLiteStore) KeysWithPrefix(prefix string) ([]string, error) {
	// substr avoids LIKE wildcards in user-controlled prefixes.
	p := prefix + "."
	rows, err := s.db.Query(
		`SELECT key FROM properties WHERE substr(key, 1, ?) = ? ORDER BY key`,
		len(p), p,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]string, 0)
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, err
		}
		out = append(out, k)
	}
	return out, rows.Err()
}

// Compile-time assertion that SQLiteStore implements domain.PropertyStore.
var _ domain.PropertyStore = (*SQLiteStore)(nil)
