package apperr

import (
	"errors"
	"strings"
	"testing"
)

func TestProtectedSlotsError_ItemizesSlots(t *testing.T) {
	err := &ProtectedSlotsError{SlotIDs: []string{"s1", "s2"}}

	if !errors.Is(err, ErrProtectedState) {
		t.Fatalf("ProtectedSlotsError must unwrap to ErrProtectedState")
	}
	msg := err.Error()
	if !strings.Contains(msg, "s1") || !strings.Contains(msg, "s2") {
		t.Fatalf("error message must name the slots: %q", msg)
	}
}
