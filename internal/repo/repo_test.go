package repo

import (
	"reflect"
	"testing"
)

func TestIDListEncoding(t *testing.T) {
	ids := []string{"s1", "s2", "s3"}
	if got := splitIDs(joinIDs(ids)); !reflect.DeepEqual(got, ids) {
		t.Fatalf("id list did not round-trip: %v", got)
	}
	if got := splitIDs(""); got != nil {
		t.Fatalf("empty encoding must decode to nil, got %v", got)
	}
	if got := joinIDs(nil); got != "" {
		t.Fatalf("nil list must encode empty, got %q", got)
	}
}

func TestPlaceholders(t *testing.T) {
	if got := placeholders(3, 2); got != "$2, $3, $4" {
		t.Fatalf("placeholders(3, 2) = %q", got)
	}
	if got := placeholders(1, 1); got != "$1" {
		t.Fatalf("placeholders(1, 1) = %q", got)
	}
}

func TestAuditReport_Clean(t *testing.T) {
	report := &AuditReport{EventID: "ev1", OrphanSlotRefs: map[string][]string{}}
	if !report.Clean() {
		t.Fatalf("empty report must be clean")
	}

	report.GhostRegistrations = []string{"u1"}
	if report.Clean() {
		t.Fatalf("report with ghost registrations is not clean")
	}

	report = &AuditReport{EventID: "ev1", OrphanSlotRefs: map[string][]string{"pay1": {"s1"}}}
	if report.Clean() {
		t.Fatalf("report with orphan slot refs is not clean")
	}
}
