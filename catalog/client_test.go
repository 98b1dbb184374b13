package catalog

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"github.com/Chamal1120/globalbooks-soa/errdefs"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) (*HTTPClient, *httptest.Server) {
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	client := NewHTTPClient(srv.URL, time.Second, nil, time.Minute, zaptest.NewLogger(t))
	return client, srv
}

func TestHTTPClient_Lookup(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/books/1" {
			t.Errorf("Unexpected path %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id":"1","title":"The Great Gatsby","author":"F. Scott Fitzgerald"}`))
	})

	book, err := client.Lookup(context.Background(), "1")
	if err != nil {
		t.Fatalf("Lookup failed: %v", err)
	}
	if book.Title != "The Great Gatsby" || book.Author != "F. Scott Fitzgerald" {
		t.Errorf("Book = %+v, want Gatsby/Fitzgerald", book)
	}
}

func TestHTTPClient_LookupUnknownBook(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	_, err := client.Lookup(context.Background(), "999")
	if !errdefs.IsNotFound(err) {
		t.Errorf("Expected not-found error, got %v", err)
	}
}

func TestHTTPClient_LookupServerError(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})

	_, err := client.Lookup(context.Background(), "1")
	if !errdefs.IsUpstream(err) {
		t.Errorf("Expected upstream error, got %v", err)
	}
}

func TestHTTPClient_CircuitOpensAfterRepeatedFailures(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})

	for i := 0; i < 5; i++ {
		if _, err := client.Lookup(context.Background(), "1"); err == nil {
			t.Fatal("Expected lookup to fail")
		}
	}

	// Breaker is now open; the failure is immediate and still an
	// upstream error.
	_, err := client.Lookup(context.Background(), "1")
	if !errdefs.IsUpstream(err) {
		t.Errorf("Expected upstream error from open circuit, got %v", err)
	}
}

func TestHTTPClient_NotFoundDoesNotTripBreaker(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	for i := 0; i < 10; i++ {
		if _, err := client.Lookup(context.Background(), "999"); !errdefs.IsNotFound(err) {
			t.Fatalf("Expected not-found error on attempt %d, got %v", i, err)
		}
	}
}
