// Package server exposes the authoritative store over HTTP: the visited-set
// sync API, the static country catalog, and rendered overlay images.
package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/example/visited-atlas/internal/overlay"
	"github.com/example/visited-atlas/internal/storage"
	"github.com/example/visited-atlas/internal/types"
)

// DirtyMarker is notified after each confirmed mutation so overlay
// snapshots can be refreshed out of band.
type DirtyMarker interface {
	MarkDirty(user types.UserID)
}

// Handler serves the sync API.
type Handler struct {
	store    storage.VisitStore
	catalog  []byte
	features []overlay.Feature
	dirty    DirtyMarker
	renders  *renderCache
	logger   zerolog.Logger
}

// HandlerOption configures the handler.
type HandlerOption func(*Handler)

// WithDirtyMarker wires the overlay snapshot worker into mutations.
func WithDirtyMarker(marker DirtyMarker) HandlerOption {
	return func(h *Handler) { h.dirty = marker }
}

// NewHandler builds the API handler. catalog is served verbatim from
// /all_countries; features back the overlay endpoint.
func NewHandler(store storage.VisitStore, catalog []byte, features []overlay.Feature, logger zerolog.Logger, opts ...HandlerOption) *Handler {
	h := &Handler{store: store, catalog: catalog, features: features, renders: newRenderCache(64), logger: logger}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Mux wires the routes with logging and metrics middleware.
func (h *Handler) Mux() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", h.handleHealth)
	mux.HandleFunc("/all_countries", h.handleCatalog)
	mux.HandleFunc("/api/countries", h.handleCountries)
	mux.HandleFunc("/api/overlay", h.handleOverlay)
	return withObservability(mux, h.logger)
}

func (h *Handler) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
}

func (h *Handler) handleCatalog(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write(h.catalog)
}

func (h *Handler) handleCountries(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.getCountries(w, r)
	case http.MethodPost:
		h.addCountry(w, r)
	default:
		http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
	}
}

func (h *Handler) getCountries(w http.ResponseWriter, r *http.Request) {
	user := types.UserID(r.URL.Query().Get("userId"))
	if user == "" {
		http.Error(w, "userId query parameter is required", http.StatusBadRequest)
		return
	}

	countries, err := h.store.Visited(r.Context(), user)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			// A new identity simply has no record yet. Clients treat this
			// as the empty state.
			http.Error(w, "no record for user", http.StatusNotFound)
			return
		}
		h.logger.Error().Err(err).Str("user_id", string(user)).Msg("visited lookup failed")
		http.Error(w, "failed to read visited countries", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(countries); err != nil {
		h.logger.Error().Err(err).Msg("encode visited response failed")
	}
}

type addRequest struct {
	UserID  string `json:"userId"`
	Country string `json:"country"`
}

func (h *Handler) addCountry(w http.ResponseWriter, r *http.Request) {
	var req addRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.UserID == "" || req.Country == "" {
		http.Error(w, "userId and country are required", http.StatusBadRequest)
		return
	}

	user := types.UserID(req.UserID)
	if err := h.store.Add(r.Context(), user, types.CountryName(req.Country)); err != nil {
		h.logger.Error().Err(err).Str("user_id", req.UserID).Str("country", req.Country).Msg("add failed")
		http.Error(w, "failed to record country", http.StatusInternalServerError)
		return
	}

	if h.dirty != nil {
		h.dirty.MarkDirty(user)
	}

	h.logger.Info().Str("user_id", req.UserID).Str("country", req.Country).Msg("country recorded")
	w.WriteHeader(http.StatusCreated)
}

func (h *Handler) handleOverlay(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
		return
	}
	user := types.UserID(r.URL.Query().Get("userId"))
	if user == "" {
		http.Error(w, "userId query parameter is required", http.StatusBadRequest)
		return
	}
	if len(h.features) == 0 {
		http.Error(w, "no feature source configured", http.StatusServiceUnavailable)
		return
	}

	countries, err := h.store.Visited(r.Context(), user)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		h.logger.Error().Err(err).Str("user_id", string(user)).Msg("visited lookup failed")
		http.Error(w, "failed to read visited countries", http.StatusInternalServerError)
		return
	}

	key := renderKey{User: user, Signature: signature(countries)}
	if payload, ok := h.renders.Get(key); ok {
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write(payload)
		return
	}

	proj := overlay.Project(types.NewVisitedSet(countries...), h.features)
	buffer, err := overlay.Render(proj, h.features)
	if err != nil {
		h.logger.Error().Err(err).Str("user_id", string(user)).Msg("overlay render failed")
		http.Error(w, "failed to render overlay", http.StatusInternalServerError)
		return
	}
	h.renders.Put(key, buffer.Bytes())

	w.Header().Set("Content-Type", "image/png")
	_, _ = w.Write(buffer.Bytes())
}
