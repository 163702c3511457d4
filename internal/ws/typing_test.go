package ws

import (
	"testing"
	"time"
)

func TestTypingSet(t *testing.T) {
	tr := newTypingTracker(time.Minute)

	if !tr.set("c1", "alice", true) {
		t.Error("first signal should change state")
	}
	if tr.set("c1", "alice", true) {
		t.Error("refresh should not re-broadcast")
	}
	if !tr.set("c1", "alice", false) {
		t.Error("explicit stop should change state")
	}
	if tr.set("c1", "alice", false) {
		t.Error("stop while not typing should be silent")
	}
}

func TestTypingExpire(t *testing.T) {
	tr := newTypingTracker(50 * time.Millisecond)
	tr.set("c1", "alice", true)
	tr.set("c2", "bob", true)

	if got := tr.expire(time.Now()); len(got) != 0 {
		t.Errorf("expired early: %v", got)
	}

	later := time.Now().Add(100 * time.Millisecond)
	expired := tr.expire(later)
	if len(expired) != 2 {
		t.Fatalf("expired %d entries, want 2", len(expired))
	}
	// Gone means gone: a fresh signal counts as a change again.
	if !tr.set("c1", "alice", true) {
		t.Error("entry survived expiry")
	}
}

func TestTypingRefreshExtendsDeadline(t *testing.T) {
	tr := newTypingTracker(50 * time.Millisecond)
	tr.set("c1", "alice", true)
	time.Sleep(30 * time.Millisecond)
	tr.set("c1", "alice", true)

	// The original deadline has passed, the refreshed one has not.
	if got := tr.expire(time.Now().Add(30 * time.Millisecond)); len(got) != 0 {
		t.Errorf("refreshed entry expired: %v", got)
	}
}

func TestTypingDrop(t *testing.T) {
	tr := newTypingTracker(time.Minute)
	tr.set("c1", "alice", true)
	tr.set("c2", "alice", true)
	tr.set("c1", "bob", true)

	dropped := tr.drop("alice")
	if len(dropped) != 2 {
		t.Fatalf("dropped %d, want 2", len(dropped))
	}
	for _, key := range dropped {
		if key.userID != "alice" {
			t.Errorf("dropped wrong user: %+v", key)
		}
	}
	// Other users keep typing.
	if tr.set("c1", "bob", true) {
		t.Error("bob's entry should have survived")
	}
}
