package model

import "testing"

func TestCanTransition(t *testing.T) {
	cases := []struct {
		from, to MessageStatus
		want     bool
	}{
		{MessageStatusSending, MessageStatusSent, true},
		{MessageStatusSending, MessageStatusFailed, true},
		{MessageStatusSent, MessageStatusDelivered, true},
		{MessageStatusSent, MessageStatusRead, true},
		{MessageStatusDelivered, MessageStatusRead, true},

		{MessageStatusRead, MessageStatusDelivered, false},
		{MessageStatusDelivered, MessageStatusSent, false},
		{MessageStatusSent, MessageStatusSending, false},
		{MessageStatusSent, MessageStatusFailed, false},
		{MessageStatusDelivered, MessageStatusFailed, false},
		{MessageStatusFailed, MessageStatusSent, false},
		{MessageStatusFailed, MessageStatusDelivered, false},

		// Re-applying the current status is a harmless no-op.
		{MessageStatusRead, MessageStatusRead, true},
		{MessageStatusFailed, MessageStatusFailed, true},
	}
	for _, tc := range cases {
		if got := tc.from.CanTransition(tc.to); got != tc.want {
			t.Errorf("%s -> %s = %v, want %v", tc.from, tc.to, got, tc.want)
		}
	}
}

func TestRedact(t *testing.T) {
	m := &Message{
		Content: "secret",
		Media:   &MediaMeta{URL: "https://cdn/x.png", Type: "image/png"},
		LinkPreview: &LinkPreview{
			Title: "a page",
		},
		Deleted: true,
	}
	m.Redact()
	if m.Content != DeletedPlaceholder {
		t.Errorf("content = %q, want placeholder", m.Content)
	}
	if m.Media != nil || m.LinkPreview != nil {
		t.Error("attachments must not survive deletion")
	}

	// Non-deleted messages are untouched.
	kept := &Message{Content: "hello"}
	kept.Redact()
	if kept.Content != "hello" {
		t.Errorf("content = %q, want unchanged", kept.Content)
	}
}
