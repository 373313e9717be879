// Package storage persists the per-user visited-country records behind the
// authoritative store API. Backends share one interface so the server can
// run against Postgres, SQLite, or memory, optionally fronted by a Redis
// read-through cache.
package storage

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/example/visited-atlas/internal/types"
)

// ErrNotFound reports that a user has no visited record yet. The API layer
// maps it to a 404, which clients treat as the normal empty state.
var ErrNotFound = errors.New("no visited record for user")

// VisitStore is the persistence contract for visited-country records.
type VisitStore interface {
	// Visited returns the countries recorded for the user in lexicographic
	// order, or ErrNotFound when no record exists.
	Visited(ctx context.Context, user types.UserID) ([]types.CountryName, error)

	// Add records one country for the user. Adds are idempotent: recording
	// an already-present country succeeds and leaves a single entry.
	Add(ctx context.Context, user types.UserID, country types.CountryName) error

	// Users lists every user with at least one recorded country.
	Users(ctx context.Context) ([]types.UserID, error)

	// Close releases backend resources.
	Close() error
}

// MemoryStore is an in-process VisitStore used by tests and the memory
// backend.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[types.UserID]types.VisitedSet
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[types.UserID]types.VisitedSet)}
}

// Visited implements VisitStore.
func (m *MemoryStore) Visited(_ context.Context, user types.UserID) ([]types.CountryName, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	set, ok := m.records[user]
	if !ok {
		return nil, ErrNotFound
	}
	return set.Sorted(), nil
}

// Add implements VisitStore.
func (m *MemoryStore) Add(_ context.Context, user types.UserID, country types.CountryName) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.records[user] == nil {
		m.records[user] = types.NewVisitedSet()
	}
	m.records[user][country] = struct{}{}
	return nil
}

// Users implements VisitStore.
func (m *MemoryStore) Users(context.Context) ([]types.UserID, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	users := make([]types.UserID, 0, len(m.records))
	for user := range m.records {
		users = append(users, user)
	}
	sort.Slice(users, func(i, j int) bool { return users[i] < users[j] })
	return users, nil
}

// Close implements VisitStore.
func (m *MemoryStore) Close() error { return nil }
