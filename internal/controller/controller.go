// Package controller wires user actions to the state store and re-derives
// the presented view after every state transition. The view is only ever
// replaced wholesale from a projection of the current set; a failed action
// leaves the last ready view untouched.
package controller

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/example/visited-atlas/internal/overlay"
	"github.com/example/visited-atlas/internal/state"
	"github.com/example/visited-atlas/internal/status"
	"github.com/example/visited-atlas/internal/types"
)

// Store is the slice of the state layer the controller drives.
type Store interface {
	Load(ctx context.Context) (types.VisitedSet, error)
	Add(ctx context.Context, country types.CountryName) (types.VisitedSet, error)
	State() types.SyncState
	User() types.UserID
}

// Notifier surfaces transient feedback to the user.
type Notifier interface {
	Notify(text string, severity status.Severity)
}

// View is the fully derived presentation state for one session.
type View struct {
	Projection  overlay.Projection
	ListVisible bool
}

// Controller owns one session's view and serializes its updates.
type Controller struct {
	store    Store
	features []overlay.Feature
	notifier Notifier
	logger   zerolog.Logger

	mu     sync.Mutex
	gen    uint64
	closed bool
	view   View
}

// New builds a controller over the session's store and feature collection.
func New(store Store, features []overlay.Feature, notifier Notifier, logger zerolog.Logger) *Controller {
	return &Controller{store: store, features: features, notifier: notifier, logger: logger}
}

// Start performs the initial authoritative load and derives the first view.
// A failed load leaves the store in its error state and reports it; the
// session stays alive so the user can retry by reloading.
func (c *Controller) Start(ctx context.Context) error {
	gen := c.generation()

	set, err := c.store.Load(ctx)
	if err != nil {
		c.notifier.Notify("Could not load your visited countries. Try again later.", status.SeverityError)
		return fmt.Errorf("initial load: %w", err)
	}

	c.apply(gen, set)
	return nil
}

// Reload re-fetches the authoritative set, recovering from a previous load
// failure.
func (c *Controller) Reload(ctx context.Context) error {
	gen := c.generation()

	set, err := c.store.Load(ctx)
	if err != nil {
		if errors.Is(err, state.ErrBusy) {
			c.notifier.Notify("Still syncing, hold on.", status.SeverityInfo)
			return err
		}
		c.notifier.Notify("Could not load your visited countries. Try again later.", status.SeverityError)
		return err
	}

	c.apply(gen, set)
	return nil
}

// Add submits the current catalog selection. An empty selection is a no-op
// with no network call and no status message.
func (c *Controller) Add(ctx context.Context, selection types.CountryName) {
	if selection == "" {
		return
	}

	gen := c.generation()

	set, err := c.store.Add(ctx, selection)
	if err != nil {
		c.reportAddFailure(selection, err)
		return
	}

	c.apply(gen, set)
	c.notifier.Notify(fmt.Sprintf("%s added to your map.", selection), status.SeveritySuccess)
}

func (c *Controller) reportAddFailure(selection types.CountryName, err error) {
	switch {
	case errors.Is(err, state.ErrAlreadyVisited):
		// Advisory only; state is unchanged and no request was sent.
		c.notifier.Notify(fmt.Sprintf("%s is already on your map.", selection), status.SeverityInfo)
	case errors.Is(err, state.ErrNoIdentity):
		c.notifier.Notify("Sign in to save visited countries.", status.SeverityError)
	case errors.Is(err, state.ErrBusy):
		c.notifier.Notify("Still syncing, hold on.", status.SeverityInfo)
	case errors.Is(err, state.ErrNotReady):
		c.notifier.Notify("Visited countries are not loaded yet. Reload first.", status.SeverityError)
	case errors.Is(err, state.ErrEmptyCountry):
		c.notifier.Notify("Pick a country first.", status.SeverityError)
	default:
		c.logger.Warn().Err(err).Str("country", string(selection)).Msg("add failed")
		c.notifier.Notify(fmt.Sprintf("Could not add %s. Try again.", selection), status.SeverityError)
	}
}

// ToggleList flips the list panel visibility. Purely local: no state or
// network involved.
func (c *Controller) ToggleList() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.view.ListVisible = !c.view.ListVisible
	return c.view.ListVisible
}

// View returns a copy of the current presentation state.
func (c *Controller) View() View {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.view
}

// Close tears the session down. Responses from operations still in flight
// are discarded instead of mutating a no-longer-current view.
func (c *Controller) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	c.gen++
}

func (c *Controller) generation() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.gen
}

// apply re-derives the view from the given set, unless the session was torn
// down or superseded while the operation was in flight.
func (c *Controller) apply(gen uint64, set types.VisitedSet) {
	proj := overlay.Project(set, c.features)

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || gen != c.gen {
		c.logger.Debug().Msg("discarding stale result for torn-down session")
		return
	}
	c.view.Projection = proj
}
