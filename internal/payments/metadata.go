package payments

import "strings"

// Metadata keys as stored on the gateway session. Slot ids are comma-joined,
// matching the store's list encoding.
const (
	metaUserID   = "user_id"
	metaEventID  = "event_id"
	metaSlotIDs  = "slot_ids"
	metaPackName = "pack_name"
)

func (m Metadata) Encode() map[string]string {
	out := map[string]string{
		metaUserID:  m.UserID,
		metaEventID: m.EventID,
		metaSlotIDs: strings.Join(m.SlotIDs, ","),
	}
	if m.PackName != "" {
		out[metaPackName] = m.PackName
	}
	return out
}

func DecodeMetadata(raw map[string]string) Metadata {
	m := Metadata{
		UserID:   raw[metaUserID],
		EventID:  raw[metaEventID],
		PackName: raw[metaPackName],
	}
	if s := raw[metaSlotIDs]; s != "" {
		m.SlotIDs = strings.Split(s, ",")
	}
	return m
}
