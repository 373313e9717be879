// Package state holds the client-side cache of the authoritative visited
// set and enforces the lifecycle around it. The cache is pessimistic: it is
// never mutated ahead of server confirmation, and after every confirmed
// mutation it is refreshed in full from the latest authoritative read.
package state

import (
	"context"
	"errors"
	"sync"

	"github.com/rs/zerolog"

	"github.com/example/visited-atlas/internal/syncapi"
	"github.com/example/visited-atlas/internal/types"
)

var (
	// ErrNoIdentity rejects mutations in guest mode. Raised locally; no
	// network call is attempted.
	ErrNoIdentity = errors.New("no identity for this session")

	// ErrBusy rejects an operation while another one is still in flight.
	ErrBusy = errors.New("operation already in flight")

	// ErrNotReady rejects an add before a successful load, including while
	// the store sits in the error state.
	ErrNotReady = errors.New("visited set not loaded")

	// ErrAlreadyVisited is the advisory duplicate check against the
	// last-known set. The authoritative duplicate check is the server's.
	ErrAlreadyVisited = errors.New("country already visited")

	// ErrEmptyCountry rejects a blank submission before any request is sent.
	ErrEmptyCountry = errors.New("country must not be empty")
)

// Protocol is the slice of the sync layer the store depends on.
type Protocol interface {
	FetchAll(ctx context.Context, user types.UserID) ([]types.CountryName, error)
	PostOne(ctx context.Context, user types.UserID, country types.CountryName) error
}

// Store caches the visited set for one resolved identity.
//
// Lifecycle: uninitialized -> loading -> {ready | error}. Add is only
// accepted from ready and re-enters loading for the post-mutation refresh.
// A single in-flight guard serializes operations; a second call while one
// is outstanding fails fast with ErrBusy.
type Store struct {
	user   types.UserID
	proto  Protocol
	logger zerolog.Logger

	mu       sync.Mutex
	phase    types.Phase
	set      types.VisitedSet
	err      error
	inFlight bool
}

// New constructs a store for the resolved identity.
func New(user types.UserID, proto Protocol, logger zerolog.Logger) *Store {
	return &Store{
		user:   user,
		proto:  proto,
		logger: logger.With().Str("user_id", string(user)).Logger(),
		phase:  types.PhaseUninitialized,
	}
}

// User returns the identity the store is bound to.
func (s *Store) User() types.UserID { return s.user }

// State returns a snapshot of the current sync state. The contained set is
// a copy; callers may hold it across later transitions.
func (s *Store) State() types.SyncState {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := types.SyncState{Phase: s.phase, Err: s.err}
	if s.set != nil {
		snap.Set = s.set.Clone()
	}
	return snap
}

// Load fetches the authoritative visited set. In guest mode it resolves
// immediately to an empty ready set without touching the network. A
// no-record response is the normal empty state for a new identity; any
// other failure moves the store to the error phase, which blocks adds until
// a later Load succeeds.
func (s *Store) Load(ctx context.Context) (types.VisitedSet, error) {
	if s.user.Guest() {
		s.mu.Lock()
		s.phase = types.PhaseReady
		s.set = types.NewVisitedSet()
		s.err = nil
		s.mu.Unlock()
		s.logger.Debug().Msg("guest mode, visited set pinned empty")
		return types.NewVisitedSet(), nil
	}

	if err := s.acquire(); err != nil {
		return nil, err
	}
	defer s.release()

	return s.refresh(ctx)
}

// Add submits one country and, once the server confirms creation, refreshes
// the whole set from an authoritative read. The local cache is never
// appended to directly: the server may normalize or reject in ways the
// client cannot predict, and the rendered state must always reflect server
// truth.
func (s *Store) Add(ctx context.Context, country types.CountryName) (types.VisitedSet, error) {
	if s.user.Guest() {
		return nil, ErrNoIdentity
	}
	if country == "" {
		return nil, ErrEmptyCountry
	}

	s.mu.Lock()
	if s.inFlight {
		s.mu.Unlock()
		return nil, ErrBusy
	}
	if s.phase != types.PhaseReady {
		s.mu.Unlock()
		return nil, ErrNotReady
	}
	if s.set.Contains(country) {
		s.mu.Unlock()
		return nil, ErrAlreadyVisited
	}
	s.inFlight = true
	prior := s.set
	s.phase = types.PhaseLoading
	s.mu.Unlock()

	defer s.release()

	if err := s.proto.PostOne(ctx, s.user, country); err != nil {
		// The prior ready state stays intact: a failed mutation must not
		// corrupt the cache.
		s.mu.Lock()
		s.phase = types.PhaseReady
		s.set = prior
		s.mu.Unlock()
		s.logger.Warn().Err(err).Str("country", string(country)).Msg("add not confirmed by server")
		return nil, err
	}

	s.logger.Info().Str("country", string(country)).Msg("add confirmed, refreshing authoritative state")
	return s.refresh(ctx)
}

// refresh performs the authoritative read and applies the resulting phase
// transition. The in-flight guard must already be held.
func (s *Store) refresh(ctx context.Context) (types.VisitedSet, error) {
	s.mu.Lock()
	s.phase = types.PhaseLoading
	s.mu.Unlock()

	names, err := s.proto.FetchAll(ctx, s.user)
	switch {
	case err == nil:
	case errors.Is(err, syncapi.ErrNoRecord):
		names = nil
	default:
		s.mu.Lock()
		s.phase = types.PhaseError
		s.err = err
		s.mu.Unlock()
		s.logger.Warn().Err(err).Msg("authoritative fetch failed")
		return nil, err
	}

	set := types.NewVisitedSet(names...)

	s.mu.Lock()
	s.phase = types.PhaseReady
	s.set = set
	s.err = nil
	s.mu.Unlock()

	return set.Clone(), nil
}

func (s *Store) acquire() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.inFlight {
		return ErrBusy
	}
	s.inFlight = true
	return nil
}

func (s *Store) release() {
	s.mu.Lock()
	s.inFlight = false
	s.mu.Unlock()
}
