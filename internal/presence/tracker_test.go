package presence

import (
	"context"
	"testing"
	"time"

	"github.com/campusconnect/messaging/internal/model"
	"github.com/campusconnect/messaging/internal/storage/memory"
)

func newTestTracker(cfg Config) *Tracker {
	return NewTracker(cfg, memory.New())
}

func TestConnectDisconnect(t *testing.T) {
	ctx := context.Background()
	tr := newTestTracker(Config{})

	if got := tr.Get(ctx, "alice").Status; got != model.PresenceOffline {
		t.Errorf("initial status = %s, want offline", got)
	}

	tr.Connect(ctx, "alice")
	if got := tr.Get(ctx, "alice").Status; got != model.PresenceOnline {
		t.Errorf("after connect = %s, want online", got)
	}

	// A second device keeps the user online after the first leaves.
	tr.Connect(ctx, "alice")
	tr.Disconnect(ctx, "alice")
	if got := tr.Get(ctx, "alice").Status; got != model.PresenceOnline {
		t.Errorf("one device left = %s, want online", got)
	}

	tr.Disconnect(ctx, "alice")
	p := tr.Get(ctx, "alice")
	if p.Status != model.PresenceOffline {
		t.Errorf("all devices gone = %s, want offline", p.Status)
	}
	if p.LastSeen.IsZero() {
		t.Error("lastSeen not recorded on disconnect")
	}
}

func TestDisconnectPersistsLastSeen(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	tr := NewTracker(Config{}, store)

	tr.Connect(ctx, "alice")
	tr.Connect(ctx, "alice")
	before, err := store.GetPresence(ctx, "alice")
	if err != nil {
		t.Fatal(err)
	}

	time.Sleep(5 * time.Millisecond)
	tr.Disconnect(ctx, "alice")

	// One device remains online, but the stored lastSeen must still move.
	after, err := store.GetPresence(ctx, "alice")
	if err != nil {
		t.Fatal(err)
	}
	if after.Status != model.PresenceOnline {
		t.Errorf("stored status = %s, want online", after.Status)
	}
	if !after.LastSeen.After(before.LastSeen) {
		t.Errorf("stored lastSeen = %v, not refreshed past %v", after.LastSeen, before.LastSeen)
	}
}

func TestHeartbeatExpiry(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	tr := newTestTracker(Config{
		HeartbeatTTL: 30 * time.Millisecond,
		SweepEvery:   10 * time.Millisecond,
	})
	go tr.Run(ctx)

	// No Disconnect ever arrives: the sweeper must resolve the silence.
	tr.Connect(ctx, "bob")
	deadline := time.Now().Add(time.Second)
	for tr.Get(ctx, "bob").Status != model.PresenceOffline {
		if time.Now().After(deadline) {
			t.Fatal("user never went offline after heartbeats stopped")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestAwayAfterIdle(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	tr := newTestTracker(Config{
		HeartbeatTTL: time.Minute,
		AwayAfter:    20 * time.Millisecond,
		SweepEvery:   10 * time.Millisecond,
	})
	go tr.Run(ctx)

	tr.Connect(ctx, "carol")
	deadline := time.Now().Add(time.Second)
	for tr.Get(ctx, "carol").Status != model.PresenceAway {
		if time.Now().After(deadline) {
			t.Fatal("idle user never went away")
		}
		// Inactive heartbeats keep the connection alive but not the activity.
		tr.Heartbeat(ctx, "carol", false)
		time.Sleep(5 * time.Millisecond)
	}

	// Real activity brings them straight back.
	tr.Heartbeat(ctx, "carol", true)
	if got := tr.Get(ctx, "carol").Status; got != model.PresenceOnline {
		t.Errorf("after active heartbeat = %s, want online", got)
	}
}

func TestSubscribe(t *testing.T) {
	ctx := context.Background()
	tr := newTestTracker(Config{})

	sub := tr.Subscribe(ctx, "dave")
	defer sub.Close()

	// First delivery is the current snapshot.
	select {
	case p := <-sub.Updates():
		if p.Status != model.PresenceOffline {
			t.Errorf("snapshot = %s, want offline", p.Status)
		}
	case <-time.After(time.Second):
		t.Fatal("no initial snapshot")
	}

	tr.Connect(ctx, "dave")
	select {
	case p := <-sub.Updates():
		if p.Status != model.PresenceOnline {
			t.Errorf("update = %s, want online", p.Status)
		}
	case <-time.After(time.Second):
		t.Fatal("no update after connect")
	}

	// No update for a change that is not a change.
	tr.Heartbeat(ctx, "dave", true)
	select {
	case p, ok := <-sub.Updates():
		if ok {
			t.Errorf("unexpected update %+v for unchanged status", p)
		}
	case <-time.After(50 * time.Millisecond):
	}
}

func TestSubscriptionClose(t *testing.T) {
	ctx := context.Background()
	tr := newTestTracker(Config{})

	sub := tr.Subscribe(ctx, "erin")
	<-sub.Updates() // drain the snapshot
	sub.Close()
	sub.Close() // idempotent

	if _, ok := <-sub.Updates(); ok {
		t.Error("channel should be closed after Close")
	}

	// Updates after close must not panic.
	tr.Connect(ctx, "erin")
}
