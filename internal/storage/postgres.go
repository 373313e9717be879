package storage

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/example/visited-atlas/internal/types"
)

// PostgresStore persists visited records in Postgres.
type PostgresStore struct {
	pool       *pgxpool.Pool
	maxRetries int
	retryDelay time.Duration
}

// PostgresOption configures the store.
type PostgresOption func(*PostgresStore)

// WithMaxRetries sets the maximum retry count for transient failures.
func WithMaxRetries(n int) PostgresOption {
	return func(s *PostgresStore) { s.maxRetries = n }
}

// WithRetryDelay sets the base delay between retries.
func WithRetryDelay(d time.Duration) PostgresOption {
	return func(s *PostgresStore) { s.retryDelay = d }
}

// NewPostgresStore wraps the provided pool.
func NewPostgresStore(pool *pgxpool.Pool, opts ...PostgresOption) *PostgresStore {
	s := &PostgresStore{
		pool:       pool,
		maxRetries: 3,
		retryDelay: 100 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// EnsureSchema creates the visited_countries table when missing.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
CREATE TABLE IF NOT EXISTS visited_countries (
    user_id  TEXT NOT NULL,
    country  TEXT NOT NULL,
    added_at TIMESTAMPTZ NOT NULL DEFAULT now(),
    PRIMARY KEY (user_id, country)
)`)
	return err
}

// Visited implements VisitStore.
func (s *PostgresStore) Visited(ctx context.Context, user types.UserID) ([]types.CountryName, error) {
	started := time.Now()
	rows, err := s.pool.Query(ctx, `
SELECT country FROM visited_countries WHERE user_id = $1 ORDER BY country`, string(user))
	observeQuery("postgres", "visited", started, err)
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
		// Records are additive only, so an empty result means the user was
		// never recorded at all.
		return nil, ErrNotFound
	}
	return countries, nil
}

// Add implements VisitStore. The upsert keeps adds idempotent and transient
// failures are retried with backoff.
func (s *PostgresStore) Add(ctx context.Context, user types.UserID, country types.CountryName) error {
	started := time.Now()
	err := s.retry(ctx, func(ctx context.Context) error {
		_, err := s.pool.Exec(ctx, `
INSERT INTO visited_countries (user_id, country)
VALUES ($1, $2)
ON CONFLICT (user_id, country) DO NOTHING`, string(user), string(country))
		return err
	})
	observeQuery("postgres", "add", started, err)
	return err
}

// Users implements VisitStore.
func (s *PostgresStore) Users(ctx context.Context) ([]types.UserID, error) {
	rows, err := s.pool.Query(ctx, `SELECT DISTINCT user_id FROM visited_countries ORDER BY user_id`)
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
func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func (s *PostgresStore) retry(ctx context.Context, fn func(context.Context) error) error {
	delay := s.retryDelay
	for attempt := 0; ; attempt++ {
		err := fn(ctx)
		if err == nil {
			return nil
		}
		if !isTransient(err) || attempt == s.maxRetries {
			return err
		}
		select {
		case <-time.After(delay):
			delay *= 2
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func isTransient(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return false
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "40001", // serialization_failure
			"40P01": // deadlock_detected
			return true
		}
	}

	var connectErr *pgconn.ConnectError
	return errors.As(err, &connectErr)
}
