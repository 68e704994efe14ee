package titles

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestFetch_ValidFeed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{
			"abcEFghiJKL": {"clean_title": "[Recap] Magnus Resigns After 3 Moves", "tag": "Recap"},
			"zyxWVutsRQP": {"clean_title": "[Guess] Rook &amp; King Endgames"}
		}`))
	}))
	defer srv.Close()

	m, err := NewFetcher(srv.URL, nil).Fetch(context.Background())
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if len(m) != 2 {
		t.Fatalf("Fetch: got %d entries, want 2", len(m))
	}
	if got := m["abcEFghiJKL"].CleanTitle; got != "[Recap] Magnus Resigns After 3 Moves" {
		t.Errorf("clean title: got %q", got)
	}
	// Entities come back as plain text, not escapes.
	if got := m["zyxWVutsRQP"].CleanTitle; got != "[Guess] Rook & King Endgames" {
		t.Errorf("entity handling: got %q", got)
	}
}

func TestFetch_SanitisesHostileTitles(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{
			"abcEFghiJKL": {"clean_title": "Safe <script>alert(1)</script> Title"},
			"zyxWVutsRQP": {"clean_title": "<b>Bold</b>   claim"}
		}`))
	}))
	defer srv.Close()

	m, err := NewFetcher(srv.URL, nil).Fetch(context.Background())
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if got := m["abcEFghiJKL"].CleanTitle; got != "Safe Title" {
		t.Errorf("script stripping: got %q, want %q", got, "Safe Title")
	}
	if got := m["zyxWVutsRQP"].CleanTitle; got != "Bold claim" {
		t.Errorf("tag stripping: got %q, want %q", got, "Bold claim")
	}
}

func TestFetch_DropsMalformedEntries(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{
			"abcEFghiJKL": {"clean_title": "Good"},
			"tooshort": {"clean_title": "Bad id"},
			"zyxWVutsRQP": {"clean_title": ""}
		}`))
	}))
	defer srv.Close()

	m, err := NewFetcher(srv.URL, nil).Fetch(context.Background())
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if len(m) != 1 {
		t.Errorf("Fetch: got %d entries, want 1 (malformed dropped)", len(m))
	}
}

func TestFetch_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	if _, err := NewFetcher(srv.URL, nil).Fetch(context.Background()); err == nil {
		t.Error("Fetch: expected error on 503")
	}
}
