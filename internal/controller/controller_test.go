package controller

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	geojson "github.com/paulmach/go.geojson"
	"github.com/rs/zerolog"

	"github.com/example/visited-atlas/internal/overlay"
	"github.com/example/visited-atlas/internal/state"
	"github.com/example/visited-atlas/internal/status"
	"github.com/example/visited-atlas/internal/syncapi"
	"github.com/example/visited-atlas/internal/types"
)

// remoteStore is a minimal authoritative store speaking the sync contract.
type remoteStore struct {
	mu      sync.Mutex
	records map[string][]string
	fail    bool
	gets    int
	posts   int
}

func (s *remoteStore) handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		defer s.mu.Unlock()

		if s.fail {
			http.Error(w, "boom", http.StatusInternalServerError)
			return
		}

		switch r.Method {
		case http.MethodGet:
			s.gets++
			countries, ok := s.records[r.URL.Query().Get("userId")]
			if !ok {
				http.Error(w, "no record for user", http.StatusNotFound)
				return
			}
			_ = json.NewEncoder(w).Encode(countries)
		case http.MethodPost:
			s.posts++
			var req struct {
				UserID  string `json:"userId"`
				Country string `json:"country"`
			}
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.UserID == "" || req.Country == "" {
				http.Error(w, "bad request", http.StatusBadRequest)
				return
			}
			if s.records == nil {
				s.records = make(map[string][]string)
			}
			for _, existing := range s.records[req.UserID] {
				if existing == req.Country {
					w.WriteHeader(http.StatusCreated)
					return
				}
			}
			s.records[req.UserID] = append(s.records[req.UserID], req.Country)
			w.WriteHeader(http.StatusCreated)
		}
	})
}

func (s *remoteStore) postCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.posts
}

func (s *remoteStore) setFail(fail bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fail = fail
}

type recordingNotifier struct {
	mu       sync.Mutex
	messages []string
}

func (n *recordingNotifier) Notify(text string, _ status.Severity) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.messages = append(n.messages, text)
}

func (n *recordingNotifier) last() string {
	n.mu.Lock()
	defer n.mu.Unlock()
	if len(n.messages) == 0 {
		return ""
	}
	return n.messages[len(n.messages)-1]
}

func squareFeature(name types.CountryName, originX, originY, size float64) overlay.Feature {
	ring := [][]float64{
		{originX, originY},
		{originX + size, originY},
		{originX + size, originY + size},
		{originX, originY + size},
		{originX, originY},
	}
	return overlay.Feature{Name: name, Geometry: geojson.NewPolygonGeometry([][][]float64{ring})}
}

func newSession(t *testing.T, remote *remoteStore, user types.UserID) (*Controller, *recordingNotifier, func()) {
	t.Helper()

	srv := httptest.NewServer(remote.handler())
	logger := zerolog.New(io.Discard)

	proto := syncapi.NewClient(srv.URL, logger)
	store := state.New(user, proto, logger)
	notifier := &recordingNotifier{}
	features := []overlay.Feature{
		squareFeature("Canada", -120, 50, 20),
		squareFeature("France", 0, 44, 6),
	}
	ctrl := New(store, features, notifier, logger)

	return ctrl, notifier, srv.Close
}

func TestSessionAddFlow(t *testing.T) {
	remote := &remoteStore{}
	ctrl, notifier, cleanup := newSession(t, remote, "u1")
	defer cleanup()

	if err := ctrl.Start(context.Background()); err != nil {
		t.Fatalf("start err: %v", err)
	}
	if view := ctrl.View(); view.Projection.Count != 0 {
		t.Fatalf("expected empty initial view, got count %d", view.Projection.Count)
	}

	ctrl.Add(context.Background(), "Canada")

	view := ctrl.View()
	if view.Projection.Count != 1 {
		t.Fatalf("expected count 1 after add, got %d", view.Projection.Count)
	}
	if len(view.Projection.SortedList) != 1 || view.Projection.SortedList[0] != "Canada" {
		t.Fatalf("unexpected list: %v", view.Projection.SortedList)
	}
	if len(view.Projection.Markers) != 1 {
		t.Fatalf("expected one marker, got %v", view.Projection.Markers)
	}
	marker := view.Projection.Markers[0]
	if marker.Name != "Canada" || marker.Lon != -110 || marker.Lat != 60 {
		t.Fatalf("marker not at Canada centroid: %+v", marker)
	}
	if notifier.last() != "Canada added to your map." {
		t.Fatalf("unexpected notification: %q", notifier.last())
	}
}

func TestDuplicateAddIsLocalNoOp(t *testing.T) {
	remote := &remoteStore{records: map[string][]string{"u1": {"Canada"}}}
	ctrl, notifier, cleanup := newSession(t, remote, "u1")
	defer cleanup()

	if err := ctrl.Start(context.Background()); err != nil {
		t.Fatalf("start err: %v", err)
	}

	ctrl.Add(context.Background(), "Canada")

	if remote.postCount() != 0 {
		t.Fatalf("duplicate add must not reach the network, saw %d posts", remote.postCount())
	}
	if view := ctrl.View(); view.Projection.Count != 1 {
		t.Fatalf("state must be unchanged, got count %d", view.Projection.Count)
	}
	if notifier.last() != "Canada is already on your map." {
		t.Fatalf("unexpected notification: %q", notifier.last())
	}
}

func TestEmptySelectionIsSilentNoOp(t *testing.T) {
	remote := &remoteStore{}
	ctrl, notifier, cleanup := newSession(t, remote, "u1")
	defer cleanup()

	if err := ctrl.Start(context.Background()); err != nil {
		t.Fatalf("start err: %v", err)
	}

	ctrl.Add(context.Background(), "")

	if remote.postCount() != 0 {
		t.Fatal("empty selection must not reach the network")
	}
	if got := notifier.last(); got != "" {
		t.Fatalf("empty selection must not notify, got %q", got)
	}
}

func TestLoadFailureBlocksAddUntilRecovery(t *testing.T) {
	remote := &remoteStore{fail: true}
	ctrl, notifier, cleanup := newSession(t, remote, "u1")
	defer cleanup()

	if err := ctrl.Start(context.Background()); err == nil {
		t.Fatal("expected start failure")
	}

	ctrl.Add(context.Background(), "Canada")
	if remote.postCount() != 0 {
		t.Fatal("add in error state must not reach the network")
	}
	if notifier.last() != "Visited countries are not loaded yet. Reload first." {
		t.Fatalf("unexpected notification: %q", notifier.last())
	}

	remote.setFail(false)
	if err := ctrl.Reload(context.Background()); err != nil {
		t.Fatalf("reload err: %v", err)
	}
	ctrl.Add(context.Background(), "Canada")
	if view := ctrl.View(); view.Projection.Count != 1 {
		t.Fatalf("expected add to succeed after recovery, got count %d", view.Projection.Count)
	}
}

func TestGuestAddIsRejectedLocally(t *testing.T) {
	remote := &remoteStore{}
	ctrl, notifier, cleanup := newSession(t, remote, "")
	defer cleanup()

	if err := ctrl.Start(context.Background()); err != nil {
		t.Fatalf("guest start err: %v", err)
	}

	ctrl.Add(context.Background(), "Canada")

	if remote.postCount() != 0 {
		t.Fatal("guest add must not reach the network")
	}
	if notifier.last() != "Sign in to save visited countries." {
		t.Fatalf("unexpected notification: %q", notifier.last())
	}
}

func TestToggleListIsPurelyLocal(t *testing.T) {
	remote := &remoteStore{records: map[string][]string{"u1": {"Canada"}}}
	ctrl, _, cleanup := newSession(t, remote, "u1")
	defer cleanup()

	if err := ctrl.Start(context.Background()); err != nil {
		t.Fatalf("start err: %v", err)
	}

	remote.mu.Lock()
	getsBefore := remote.gets
	remote.mu.Unlock()

	if !ctrl.ToggleList() {
		t.Fatal("expected list visible after first toggle")
	}
	if ctrl.ToggleList() {
		t.Fatal("expected list hidden after second toggle")
	}

	remote.mu.Lock()
	getsAfter := remote.gets
	remote.mu.Unlock()
	if getsAfter != getsBefore {
		t.Fatal("toggle must not touch the network")
	}
}

func TestClosedSessionDiscardsResults(t *testing.T) {
	remote := &remoteStore{records: map[string][]string{"u1": {"Canada"}}}
	ctrl, _, cleanup := newSession(t, remote, "u1")
	defer cleanup()

	ctrl.Close()
	_ = ctrl.Start(context.Background())

	if view := ctrl.View(); view.Projection.Count != 0 {
		t.Fatalf("torn-down session must not apply results, got count %d", view.Projection.Count)
	}
}
