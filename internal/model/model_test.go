package model

import "testing"

func TestIsHold(t *testing.T) {
	cases := []struct {
		status string
		want   bool
	}{
		{SlotStatusAvailable, false},
		{SlotStatusLocked, true},
		{SlotStatusPending, true},
		{SlotStatusOffered, true},
		{SlotStatusPaid, false},
		{"garbage", false},
	}
	for _, c := range cases {
		if got := IsHold(c.status); got != c.want {
			t.Fatalf("IsHold(%q) = %v, want %v", c.status, got, c.want)
		}
	}
}

func TestEventAllowsAssignment(t *testing.T) {
	cases := []struct {
		status string
		want   bool
	}{
		{EventStatusDraft, true},
		{EventStatusOpen, true},
		{EventStatusClosed, false},
		{EventStatusArchived, false},
	}
	for _, c := range cases {
		if got := EventAllowsAssignment(c.status); got != c.want {
			t.Fatalf("EventAllowsAssignment(%q) = %v, want %v", c.status, got, c.want)
		}
	}
}
