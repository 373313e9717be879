package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/example/visited-atlas/internal/types"
)

// SQLiteStore persists visited records in a local SQLite database. It is
// the single-node backend, replacing the flat JSON file the service grew
// out of.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLite opens (and creates when missing) the database at path with
// safe defaults.
func OpenSQLite(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("set pragma %q: %w", pragma, err)
		}
	}

	if _, err := db.Exec(`
CREATE TABLE IF NOT EXISTS visited_countries (
    user_id  TEXT NOT NULL,
    country  TEXT NOT NULL,
    added_at INTEGER NOT NULL DEFAULT (strftime('%s', 'now')),
    PRIMARY KEY (user_id, country)
)`); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Visited implements VisitStore.
func (s *SQLiteStore) Visited(ctx context.Context, user types.UserID) ([]types.CountryName, error) {
	started := time.Now()
	rows, err := s.db.QueryContext(ctx, `
SELECT country FROM visited_countries WHERE user_id = ? ORDER BY country`, string(user))
	observeQuery("sqlite", "visited", started, err)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var countries []types.CountryName
	for rows.Next() {
		var country string
		if err := rows.Scan(&country); err != nil {
			return nil, err
		}
		countries = append(countries, types.CountryName(country))
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(countries) == 0 {
		return nil, ErrNotFound
	}
	return countries, nil
}

// Add implements VisitStore.
func (s *SQLiteStore) Add(ctx context.Context, user types.UserID, country types.CountryName) error {
	started := time.Now()
	_, err := s.db.ExecContext(ctx, `
INSERT INTO visited_countries (user_id, country) VALUES (?, ?)
ON CONFLICT (user_id, country) DO NOTHING`, string(user), string(country))
	observeQuery("sqlite", "add", started, err)
	return err
}

// Users implements VisitStore.
func (s *SQLiteStore) Users(ctx context.Context) ([]types.UserID, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT DISTINCT user_id FROM visited_countries ORDER BY user_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []types.UserID
	for rows.Next() {
		var user string
		if err := rows.Scan(&user); err != nil {
			return nil, err
		}
		users = append(users, types.UserID(user))
	}
	return users, rows.Err()
}

// Close implements VisitStore.
func (s *SQLiteStore) Close() error { return s.db.Close() }
