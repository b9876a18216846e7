package payments

import (
	"reflect"
	"testing"
)

func TestMetadata_RoundTrip(t *testing.T) {
	in := Metadata{
		UserID:   "u1",
		EventID:  "ev1",
		SlotIDs:  []string{"s1", "s2", "s3"},
		PackName: "Duo Pack",
	}

	out := DecodeMetadata(in.Encode())
	if !reflect.DeepEqual(in, out) {
		t.Fatalf("metadata did not round-trip: in=%+v out=%+v", in, out)
	}
}

func TestMetadata_EncodeOmitsEmptyPack(t *testing.T) {
	encoded := Metadata{UserID: "u1", EventID: "ev1", SlotIDs: []string{"s1"}}.Encode()
	if _, ok := encoded["pack_name"]; ok {
		t.Fatalf("empty pack name must not be encoded: %v", encoded)
	}
}

func TestDecodeMetadata_EmptySlotList(t *testing.T) {
	m := DecodeMetadata(map[string]string{"user_id": "u1", "slot_ids": ""})
	if m.SlotIDs != nil {
		t.Fatalf("empty slot list must decode to nil, got %v", m.SlotIDs)
	}
}
