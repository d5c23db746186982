package transport

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"scouter/wire"
)

func testRecord() wire.Record {
	return wire.NewSPCRecord("space", "name", "1.0.0", time.Now(), "x", 3.5)
}

func TestHTTPProducer_Send_PostsCanonicalJSONBatch(t *testing.T) {
	var gotAuth string
	var gotBody []wire.Record
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Errorf("failed to decode body: %v", err)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	p, err := NewHTTPProducer(HTTPConfig{URI: srv.URL, Auth: Auth{Token: "abc123"}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer p.Close(context.Background())

	records := []wire.Record{testRecord()}
	if err := p.Send(t.Context(), records); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotAuth != "Bearer abc123" {
		t.Errorf("expected bearer auth header, got %q", gotAuth)
	}
	if len(gotBody) != 1 {
		t.Fatalf("expected 1 record, got %d", len(gotBody))
	}
}

func TestHTTPProducer_Send_RetriesOnServerError(t *testing.T) {
	attempts := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts < 2 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	p, err := NewHTTPProducer(HTTPConfig{
		URI:     srv.URL,
		Retrier: Retrier{MaxRetries: 2, BaseDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer p.Close(context.Background())

	if err := p.Send(t.Context(), []wire.Record{testRecord()}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if attempts != 2 {
		t.Errorf("expected 2 attempts, got %d", attempts)
	}
}

func TestHTTPProducer_Send_EmptyBatchIsNoop(t *testing.T) {
	called := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	defer srv.Close()

	p, err := NewHTTPProducer(HTTPConfig{URI: srv.URL})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer p.Close(context.Background())

	if err := p.Send(t.Context(), nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if called {
		t.Error("expected no request for an empty batch")
	}
}

func TestNewHTTPProducer_RequiresURI(t *testing.T) {
	if _, err := NewHTTPProducer(HTTPConfig{}); err == nil {
		t.Fatal("expected an error for a missing uri")
	}
}
