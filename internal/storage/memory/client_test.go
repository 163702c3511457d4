package memory

import (
	"context"
	"testing"
	"time"

	"github.com/campusconnect/messaging/internal/model"
)

func TestPresenceExpiry(t *testing.T) {
	ctx := context.Background()
	c := New()

	seen := time.Now().UTC().Truncate(time.Second)
	err := c.SetPresence(ctx, model.Presence{UserID: "alice", Status: model.PresenceOnline, LastSeen: seen}, 30*time.Millisecond)
	if err != nil {
		t.Fatal(err)
	}

	p, err := c.GetPresence(ctx, "alice")
	if err != nil {
		t.Fatal(err)
	}
	if p.Status != model.PresenceOnline {
		t.Errorf("status = %s, want online", p.Status)
	}

	time.Sleep(50 * time.Millisecond)
	p, err = c.GetPresence(ctx, "alice")
	if err != nil {
		t.Fatal(err)
	}
	if p.Status != model.PresenceOffline {
		t.Errorf("status after ttl = %s, want offline", p.Status)
	}
	if !p.LastSeen.Equal(seen) {
		t.Errorf("lastSeen lost on expiry: %v", p.LastSeen)
	}
}

func TestOfflinePresenceKeepsLastSeen(t *testing.T) {
	ctx := context.Background()
	c := New()

	seen := time.Now().UTC()
	if err := c.SetPresence(ctx, model.Presence{UserID: "bob", Status: model.PresenceOffline, LastSeen: seen}, 30*time.Millisecond); err != nil {
		t.Fatal(err)
	}
	time.Sleep(50 * time.Millisecond)

	// Offline records do not expire with the heartbeat TTL.
	p, err := c.GetPresence(ctx, "bob")
	if err != nil {
		t.Fatal(err)
	}
	if p.Status != model.PresenceOffline || !p.LastSeen.Equal(seen) {
		t.Errorf("got %+v, want stable offline record", p)
	}
}

func TestPushSubscriptions(t *testing.T) {
	ctx := context.Background()
	c := New()

	if err := c.SavePushSubscription(ctx, "alice", "https://push/1", `{"endpoint":"https://push/1"}`); err != nil {
		t.Fatal(err)
	}
	if err := c.SavePushSubscription(ctx, "alice", "https://push/2", `{"endpoint":"https://push/2"}`); err != nil {
		t.Fatal(err)
	}

	subs, err := c.ListPushSubscriptions(ctx, "alice")
	if err != nil {
		t.Fatal(err)
	}
	if len(subs) != 2 {
		t.Fatalf("got %d subscriptions, want 2", len(subs))
	}

	if err := c.DeletePushSubscription(ctx, "alice", "https://push/1"); err != nil {
		t.Fatal(err)
	}
	subs, err = c.ListPushSubscriptions(ctx, "alice")
	if err != nil {
		t.Fatal(err)
	}
	if len(subs) != 1 {
		t.Errorf("got %d subscriptions after delete, want 1", len(subs))
	}

	// Unknown user is empty, not an error.
	subs, err = c.ListPushSubscriptions(ctx, "nobody")
	if err != nil || len(subs) != 0 {
		t.Errorf("unknown user: %v, %v", subs, err)
	}
}
