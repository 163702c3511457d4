package identity

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/campusconnect/messaging/internal/model"
)

func TestLookupCaches(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		json.NewEncoder(w).Encode(model.UserPublic{ID: "alice", DisplayName: "Alice", PhotoURL: "https://cdn/a.png"})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, time.Minute)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		u, err := c.Lookup(ctx, "alice")
		if err != nil {
			t.Fatal(err)
		}
		if u.DisplayName != "Alice" {
			t.Errorf("display name = %q", u.DisplayName)
		}
	}
	if got := atomic.LoadInt32(&hits); got != 1 {
		t.Errorf("identity service hit %d times, want 1", got)
	}
}

func TestLookupServesStaleOnOutage(t *testing.T) {
	var down atomic.Bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if down.Load() {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		json.NewEncoder(w).Encode(model.UserPublic{ID: "bob", DisplayName: "Bob"})
	}))
	defer srv.Close()

	// TTL of 1ns: every lookup after the first refetches.
	c := NewClient(srv.URL, time.Nanosecond)
	ctx := context.Background()

	if _, err := c.Lookup(ctx, "bob"); err != nil {
		t.Fatal(err)
	}
	down.Store(true)
	u, err := c.Lookup(ctx, "bob")
	if err != nil {
		t.Fatalf("expected stale profile during outage, got %v", err)
	}
	if u.DisplayName != "Bob" {
		t.Errorf("display name = %q", u.DisplayName)
	}
}

func TestLookupWithoutService(t *testing.T) {
	c := NewClient("", time.Minute)
	u, err := c.Lookup(context.Background(), "carol")
	if err != nil {
		t.Fatal(err)
	}
	if u.ID != "carol" || u.DisplayName != "carol" {
		t.Errorf("got %+v, want bare id fallback", u)
	}
}
