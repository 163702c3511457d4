package model

import "testing"

func TestSortPair(t *testing.T) {
	lo, hi := SortPair("bob", "alice")
	if lo != "alice" || hi != "bob" {
		t.Errorf("SortPair = (%s, %s), want (alice, bob)", lo, hi)
	}
	lo2, hi2 := SortPair("alice", "bob")
	if lo2 != lo || hi2 != hi {
		t.Error("pair identity must not depend on argument order")
	}
}

func TestPeer(t *testing.T) {
	c := &Conversation{ParticipantLo: "alice", ParticipantHi: "bob"}
	if got := c.Peer("alice"); got != "bob" {
		t.Errorf("Peer(alice) = %s, want bob", got)
	}
	if got := c.Peer("bob"); got != "alice" {
		t.Errorf("Peer(bob) = %s, want alice", got)
	}
	if !c.HasParticipant("alice") || !c.HasParticipant("bob") {
		t.Error("participants not recognized")
	}
	if c.HasParticipant("carol") {
		t.Error("outsider recognized as participant")
	}
}
