package repo

import (
	"context"
	"fmt"
)

// AuditReport cross-references payments, registrations and slots for one
// event. Read-only: corrections go through ReconcileUserFromPaymentTx.
type AuditReport struct {
	EventID string `json:"event_id"`

	// GhostRegistrations are users marked paid with no paid payment.
	GhostRegistrations []string `json:"ghost_registrations"`
	// UnregisteredPayments are paid payments whose user is not marked paid.
	UnregisteredPayments []string `json:"unregistered_payments"`
	// ZeroAmountPayments are gateway-sourced paid payments of amount zero.
	ZeroAmountPayments []string `json:"zero_amount_payments"`
	// OrphanSlotRefs maps payment id -> slot ids that no longer exist.
	OrphanSlotRefs map[string][]string `json:"orphan_slot_refs"`
}

func (a *AuditReport) Clean() bool {
	return len(a.GhostRegistrations) == 0 && len(a.UnregisteredPayments) == 0 &&
		len(a.ZeroAmountPayments) == 0 && len(a.OrphanSlotRefs) == 0
}

func (r *repository) AuditEvent(ctx context.Context, eventID string) (*AuditReport, error) {
	report := &AuditReport{EventID: eventID, OrphanSlotRefs: map[string][]string{}}

	rows, err := r.db.QueryContext(ctx, `
		SELECT r.user_id
		FROM registrations r
		WHERE r.event_id = $1 AND r.paid = TRUE
		  AND NOT EXISTS (
			SELECT 1 FROM payments p
			WHERE p.user_id = r.user_id AND p.event_id = r.event_id AND p.status = 'paid'
		  )
		ORDER BY r.user_id
	`, eventID)
	if err != nil {
		return nil, fmt.Errorf("failed to query ghost registrations: %w", err)
	}
	for rows.Next() {
		var userID string
		if err := rows.Scan(&userID); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan user id: %w", err)
		}
		report.GhostRegistrations = append(report.GhostRegistrations, userID)
	}
	rows.Close()

	rows, err = r.db.QueryContext(ctx, `
		SELECT p.id
		FROM payments p
		LEFT JOIN registrations r ON r.user_id = p.user_id AND r.event_id = p.event_id
		WHERE p.event_id = $1 AND p.status = 'paid'
		  AND (r.user_id IS NULL OR r.paid = FALSE)
		ORDER BY p.created_at
	`, eventID)
	if err != nil {
		return nil, fmt.Errorf("failed to query unregistered payments: %w", err)
	}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan payment id: %w", err)
		}
		report.UnregisteredPayments = append(report.UnregisteredPayments, id)
	}
	rows.Close()

	rows, err = r.db.QueryContext(ctx, `
		SELECT id FROM payments
		WHERE event_id = $1 AND status = 'paid' AND source = 'stripe' AND amount_cents = 0
		ORDER BY created_at
	`, eventID)
	if err != nil {
		return nil, fmt.Errorf("failed to query zero-amount payments: %w", err)
	}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan payment id: %w", err)
		}
		report.ZeroAmountPayments = append(report.ZeroAmountPayments, id)
	}
	rows.Close()

	// slot_ids is an encoded list, so the dangling-reference check joins in Go.
	slotIDs := map[string]bool{}
	rows, err = r.db.QueryContext(ctx, `SELECT id FROM slots WHERE event_id = $1`, eventID)
	if err != nil {
		return nil, fmt.Errorf("failed to query slots: %w", err)
	}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan slot id: %w", err)
		}
		slotIDs[id] = true
	}
	rows.Close()

	rows, err = r.db.QueryContext(ctx, `
		SELECT id, slot_ids FROM payments
		WHERE event_id = $1 AND status = 'paid'
	`, eventID)
	if err != nil {
		return nil, fmt.Errorf("failed to query payments: %w", err)
	}
	for rows.Next() {
		var id, encoded string
		if err := rows.Scan(&id, &encoded); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan payment: %w", err)
		}
		for _, slotID := range splitIDs(encoded) {
			if !slotIDs[slotID] {
				report.OrphanSlotRefs[id] = append(report.OrphanSlotRefs[id], slotID)
			}
		}
	}
	rows.Close()

	return report, nil
}
