package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestSparkPostBatchSendOrder(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/transmissions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") == "" {
			t.Error("missing api key header")
		}
		calls++
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"results":{"id":"tx-%d"}}`, calls)
	}))
	defer srv.Close()

	sp := NewSparkPost("key", srv.URL, time.Second)
	ids, err := sp.BatchSend(context.Background(), []Item{
		{To: "a@example.com", Subject: "hi"},
		{To: "b@example.com", Subject: "hi"},
	})
	if err != nil {
		t.Fatalf("batch send: %v", err)
	}
	if len(ids) != 2 || ids[0] != "tx-1" || ids[1] != "tx-2" {
		t.Fatalf("ids out of order: %v", ids)
	}
}

func TestSparkPostRateLimited(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	sp := NewSparkPost("key", srv.URL, time.Second)
	_, err := sp.BatchSend(context.Background(), []Item{{To: "a@example.com"}})
	if !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected ErrRateLimited, got %v", err)
	}
}

func TestSparkPostAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"errors": []map[string]string{{"message": "invalid recipient"}},
		})
	}))
	defer srv.Close()

	sp := NewSparkPost("key", srv.URL, time.Second)
	_, err := sp.BatchSend(context.Background(), []Item{{To: "bad"}})
	if err == nil {
		t.Fatal("expected error for 422 response")
	}
	if errors.Is(err, ErrRateLimited) {
		t.Fatal("api error must not look like rate limiting")
	}
}
