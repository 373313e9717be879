package syncapi

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/rs/zerolog"
)

func zeroLogger() zerolog.Logger {
	return zerolog.New(io.Discard)
}

func TestFetchAllDecodesList(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("userId") != "u1" {
			t.Errorf("unexpected userId %q", r.URL.Query().Get("userId"))
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`["Canada","France"]`))
	}))
	defer srv.Close()

	client := NewClient(srv.URL, zeroLogger())
	names, err := client.FetchAll(context.Background(), "u1")
	if err != nil {
		t.Fatalf("fetch err: %v", err)
	}
	if len(names) != 2 || names[0] != "Canada" || names[1] != "France" {
		t.Fatalf("unexpected names: %v", names)
	}
}

func TestFetchAllNotFoundIsNoRecord(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "no record for user", http.StatusNotFound)
	}))
	defer srv.Close()

	client := NewClient(srv.URL, zeroLogger())
	_, err := client.FetchAll(context.Background(), "u1")
	if !errors.Is(err, ErrNoRecord) {
		t.Fatalf("expected ErrNoRecord, got %v", err)
	}
	if IsTransient(err) {
		t.Fatal("no-record must not classify as transient")
	}
}

func TestFetchAllServerErrorIsTransient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	client := NewClient(srv.URL, zeroLogger())
	_, err := client.FetchAll(context.Background(), "u1")
	if !IsTransient(err) {
		t.Fatalf("expected transient error, got %v", err)
	}
}

func TestPostOneOnlyCreatedSucceeds(t *testing.T) {
	var status atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(int(status.Load()))
	}))
	defer srv.Close()

	client := NewClient(srv.URL, zeroLogger())

	status.Store(http.StatusCreated)
	if err := client.PostOne(context.Background(), "u1", "Canada"); err != nil {
		t.Fatalf("expected success on 201, got %v", err)
	}

	// A plain 200 is not a confirmation: anything but 201 fails.
	status.Store(http.StatusOK)
	err := client.PostOne(context.Background(), "u1", "Canada")
	if !IsTransient(err) {
		t.Fatalf("expected transient error on 200, got %v", err)
	}
}

func TestPostOneRejectsEmptyCountryLocally(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	client := NewClient(srv.URL, zeroLogger())
	err := client.PostOne(context.Background(), "u1", "")

	var ve *ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if calls.Load() != 0 {
		t.Fatalf("expected no request for empty country, got %d", calls.Load())
	}
}

func TestNetworkFailureIsTransient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	srv.Close() // connection refused from here on

	client := NewClient(srv.URL, zeroLogger())
	if _, err := client.FetchAll(context.Background(), "u1"); !IsTransient(err) {
		t.Fatalf("expected transient error, got %v", err)
	}
	if err := client.PostOne(context.Background(), "u1", "Canada"); !IsTransient(err) {
		t.Fatalf("expected transient error, got %v", err)
	}
}
