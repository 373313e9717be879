package server

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	geojson "github.com/paulmach/go.geojson"
	"github.com/rs/zerolog"

	"github.com/example/visited-atlas/internal/overlay"
	"github.com/example/visited-atlas/internal/storage"
	"github.com/example/visited-atlas/internal/types"
)

func testFeatures() []overlay.Feature {
	ring := [][]float64{{-120, 50}, {-100, 50}, {-100, 70}, {-120, 70}, {-120, 50}}
	return []overlay.Feature{{Name: "Canada", Geometry: geojson.NewPolygonGeometry([][][]float64{ring})}}
}

func newTestHandler(store storage.VisitStore) http.Handler {
	h := NewHandler(store, []byte("Canada\nFrance\n"), testFeatures(), zerolog.New(io.Discard))
	return h.Mux()
}

func TestGetCountriesRequiresUserID(t *testing.T) {
	mux := newTestHandler(storage.NewMemoryStore())

	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/countries", nil))

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
}

func TestGetCountriesUnknownUserIs404(t *testing.T) {
	mux := newTestHandler(storage.NewMemoryStore())

	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/countries?userId=u1", nil))

	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown user, got %d", rr.Code)
	}
}

func TestAddThenGetRoundTrip(t *testing.T) {
	store := storage.NewMemoryStore()
	mux := newTestHandler(store)

	post := func(body string) int {
		rr := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/api/countries", strings.NewReader(body))
		mux.ServeHTTP(rr, req)
		return rr.Code
	}

	if code := post(`{"userId":"u1","country":"France"}`); code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", code)
	}
	if code := post(`{"userId":"u1","country":"Canada"}`); code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", code)
	}
	// Idempotent: a duplicate add still confirms creation.
	if code := post(`{"userId":"u1","country":"France"}`); code != http.StatusCreated {
		t.Fatalf("expected 201 for duplicate, got %d", code)
	}

	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/countries?userId=u1", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}

	var countries []string
	if err := json.Unmarshal(rr.Body.Bytes(), &countries); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(countries) != 2 || countries[0] != "Canada" || countries[1] != "France" {
		t.Fatalf("expected sorted deduplicated list, got %v", countries)
	}
}

func TestAddValidation(t *testing.T) {
	mux := newTestHandler(storage.NewMemoryStore())

	cases := []string{
		`{"userId":"","country":"France"}`,
		`{"userId":"u1","country":""}`,
		`not json`,
	}
	for _, body := range cases {
		rr := httptest.NewRecorder()
		mux.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/api/countries", strings.NewReader(body)))
		if rr.Code != http.StatusBadRequest {
			t.Errorf("body %q: expected 400, got %d", body, rr.Code)
		}
	}
}

func TestCatalogEndpoint(t *testing.T) {
	mux := newTestHandler(storage.NewMemoryStore())

	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/all_countries", nil))

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if got := rr.Body.String(); got != "Canada\nFrance\n" {
		t.Fatalf("unexpected catalog body: %q", got)
	}
}

func TestOverlayEndpointRendersPNG(t *testing.T) {
	store := storage.NewMemoryStore()
	if err := store.Add(context.Background(), types.UserID("u1"), "Canada"); err != nil {
		t.Fatalf("seed store: %v", err)
	}
	mux := newTestHandler(store)

	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/overlay?userId=u1", nil))

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if ct := rr.Header().Get("Content-Type"); ct != "image/png" {
		t.Fatalf("expected image/png, got %q", ct)
	}
	body := rr.Body.Bytes()
	if len(body) < 8 || body[1] != 'P' || body[2] != 'N' || body[3] != 'G' {
		t.Fatal("response is not a PNG")
	}
}

func TestMethodNotAllowed(t *testing.T) {
	mux := newTestHandler(storage.NewMemoryStore())

	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, httptest.NewRequest(http.MethodDelete, "/api/countries", nil))

	if rr.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", rr.Code)
	}
}
