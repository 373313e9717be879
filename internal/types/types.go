package types

import "sort"

// UserID identifies a user session to the authoritative store. It is an
// opaque lookup key; the zero value means the session runs in guest mode.
type UserID string

// Guest reports whether the identity is absent.
func (u UserID) Guest() bool { return u == "" }

// CountryName is a key drawn from the reference catalog. Values are opaque:
// no case folding or alias resolution is applied, so a name only matches
// server state and map features that spell it identically.
type CountryName string

// VisitedSet holds the countries confirmed as visited for one user.
type VisitedSet map[CountryName]struct{}

// NewVisitedSet builds a set from a list of names, dropping duplicates.
func NewVisitedSet(names ...CountryName) VisitedSet {
	set := make(VisitedSet, len(names))
	for _, name := range names {
		set[name] = struct{}{}
	}
	return set
}

// Contains reports membership of a country name.
func (s VisitedSet) Contains(name CountryName) bool {
	_, ok := s[name]
	return ok
}

// Len returns the cardinality of the set.
func (s VisitedSet) Len() int { return len(s) }

// Sorted returns the members in lexicographic order. Ordering is
// case-sensitive and matches the server-returned spelling.
func (s VisitedSet) Sorted() []CountryName {
	names := make([]CountryName, 0, len(s))
	for name := range s {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool { return names[i] < names[j] })
	return names
}

// Clone returns an independent copy of the set.
func (s VisitedSet) Clone() VisitedSet {
	clone := make(VisitedSet, len(s))
	for name := range s {
		clone[name] = struct{}{}
	}
	return clone
}

// Phase enumerates the lifecycle of the client-side state store.
type Phase int

const (
	PhaseUninitialized Phase = iota
	PhaseLoading
	PhaseReady
	PhaseError
)

// String implements fmt.Stringer.
func (p Phase) String() string {
	switch p {
	case PhaseUninitialized:
		return "uninitialized"
	case PhaseLoading:
		return "loading"
	case PhaseReady:
		return "ready"
	case PhaseError:
		return "error"
	default:
		return "unknown"
	}
}

// SyncState is a point-in-time snapshot of the store. Set is only populated
// in the ready phase, Err only in the error phase. An empty ready set is a
// valid state distinct from both uninitialized and error.
type SyncState struct {
	Phase Phase
	Set   VisitedSet
	Err   error
}
