package catalog

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestParseNewlineDelimited(t *testing.T) {
	raw := []byte("Canada\nFrance\n\n  Japan  \n")
	names, err := Parse(raw)
	if err != nil {
		t.Fatalf("parse err: %v", err)
	}
	if len(names) != 3 {
		t.Fatalf("expected 3 names, got %d: %v", len(names), names)
	}
	if names[0] != "Canada" || names[1] != "France" || names[2] != "Japan" {
		t.Fatalf("unexpected names: %v", names)
	}
}

func TestParseJSONArray(t *testing.T) {
	names, err := Parse([]byte(`["Canada", "France", ""]`))
	if err != nil {
		t.Fatalf("parse err: %v", err)
	}
	if len(names) != 2 || names[0] != "Canada" || names[1] != "France" {
		t.Fatalf("unexpected names: %v", names)
	}
}

func TestParseEmpty(t *testing.T) {
	names, err := Parse([]byte("  \n "))
	if err != nil {
		t.Fatalf("parse err: %v", err)
	}
	if len(names) != 0 {
		t.Fatalf("expected empty catalog, got %v", names)
	}
}

func TestHTTPSourceStatusPolicy(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/all_countries" {
			_, _ = w.Write([]byte("Canada\nFrance"))
			return
		}
		http.NotFound(w, r)
	}))
	defer srv.Close()

	names, err := Load(context.Background(), HTTPSource{URL: srv.URL + "/all_countries"})
	if err != nil {
		t.Fatalf("load err: %v", err)
	}
	if len(names) != 2 {
		t.Fatalf("expected 2 names, got %v", names)
	}

	if _, err := Load(context.Background(), HTTPSource{URL: srv.URL + "/missing"}); err == nil {
		t.Fatal("expected error for non-200 response")
	}
}
