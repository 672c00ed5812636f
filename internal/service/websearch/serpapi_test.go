package websearch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestSearchJoinsTopSnippets(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("engine"); got != "google" {
			t.Fatalf("unexpected engine %q", got)
		}
		if got := r.URL.Query().Get("q"); got != "best kettle" {
			t.Fatalf("unexpected query %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"organic_results": [
			{"title": "a", "snippet": "first"},
			{"title": "b", "snippet": ""},
			{"title": "c", "snippet": "second"},
			{"title": "d", "snippet": "third"},
			{"title": "e", "snippet": "fourth"}
		]}`))
	}))
	defer srv.Close()

	client := NewSerpAPIClient("key")
	client.baseURL = srv.URL

	snippet, err := client.Search(context.Background(), "best kettle")
	if err != nil {
		t.Fatalf("Search err: %v", err)
	}
	if snippet != "first\nsecond\nthird" {
		t.Fatalf("unexpected snippet %q", snippet)
	}
}

func TestSearchNoResults(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`{"organic_results": []}`))
	}))
	defer srv.Close()

	client := NewSerpAPIClient("key")
	client.baseURL = srv.URL

	snippet, err := client.Search(context.Background(), "obscure")
	if err != nil {
		t.Fatalf("Search err: %v", err)
	}
	if snippet != "" {
		t.Fatalf("expected empty snippet, got %q", snippet)
	}
}

func TestSearchErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	client := NewSerpAPIClient("bad-key")
	client.baseURL = srv.URL

	if _, err := client.Search(context.Background(), "q"); err == nil {
		t.Fatal("expected error for non-200 status")
	}
}
