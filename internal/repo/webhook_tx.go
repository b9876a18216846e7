package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"time"

	"pizzacup/internal/apperr"
	"pizzacup/internal/model"
)

// FinalizePaymentTx applies a confirmed payment in one transaction: the
// payment row (deduplicated by session ref, since the gateway redelivers),
// the slot transitions to paid, and the user's registration. Returns false
// without side effects when a paid payment for the session already exists.
func (r *repository) FinalizePaymentTx(ctx context.Context, p *model.Payment) (bool, error) {
	tx, err := r.db.Master.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("failed to start transaction: %w", err)
	}
	defer rollbackOnPanic(tx)

	var pendingID string
	if p.SessionRef != "" {
		rows, err := tx.QueryContext(ctx, `
			SELECT id, status FROM payments WHERE session_ref = $1 FOR UPDATE
		`, p.SessionRef)
		if err != nil {
			_ = tx.Rollback()
			return false, fmt.Errorf("failed to lock payments: %w", err)
		}
		for rows.Next() {
			var id, status string
			if err := rows.Scan(&id, &status); err != nil {
				rows.Close()
				_ = tx.Rollback()
				return false, fmt.Errorf("failed to scan payment: %w", err)
			}
			if status == model.PaymentStatusPaid {
				rows.Close()
				_ = tx.Rollback()
				return false, nil
			}
			if status == model.PaymentStatusPending {
				pendingID = id
			}
		}
		rows.Close()
	}

	if pendingID != "" {
		p.ID = pendingID
		if _, err := tx.ExecContext(ctx, `
			UPDATE payments
			SET status = 'paid', amount_cents = $1, charge_ref = $2, metadata = $3, updated_at = NOW()
			WHERE id = $4
		`, p.AmountCents, p.ChargeRef, p.Metadata, pendingID); err != nil {
			_ = tx.Rollback()
			return false, fmt.Errorf("failed to mark payment paid: %w", err)
		}
	} else {
		// Two concurrent deliveries of the same session both see zero rows
		// above (no lock exists on absent rows); the partial unique index on
		// paid session refs makes the second insert a no-op.
		res, err := tx.ExecContext(ctx, `
			INSERT INTO payments (id, event_id, user_id, session_ref, charge_ref, amount_cents,
			                      status, source, slot_ids, is_pack, pack_name, metadata)
			VALUES ($1, $2, $3, $4, $5, $6, 'paid', $7, $8, $9, $10, $11)
			ON CONFLICT (session_ref) WHERE status = 'paid' DO NOTHING
		`, p.ID, p.EventID, p.UserID, p.SessionRef, p.ChargeRef, p.AmountCents,
			p.Source, joinIDs(p.SlotIDs), p.IsPack, p.PackName, p.Metadata)
		if err != nil {
			_ = tx.Rollback()
			return false, fmt.Errorf("failed to insert payment: %w", err)
		}
		if n, err := res.RowsAffected(); err == nil && n == 0 {
			_ = tx.Rollback()
			return false, nil
		}
	}

	// A slot released by the expiry sweep in the meantime is reclaimed for
	// the payer; a slot re-sold to someone else is left alone and flagged.
	update := `
		UPDATE slots
		SET status = 'paid', user_id = $1, payment_id = $2, session_ref = $3,
		    assignment_type = 'payment', assigned_at = NOW(), updated_at = NOW()
		WHERE id IN (` + placeholders(len(p.SlotIDs), 4) + `)
		  AND status != 'paid'
		  AND (user_id = $1 OR user_id IS NULL)
	`
	args := append([]any{p.UserID, p.ID, p.SessionRef}, idArgs(p.SlotIDs)...)
	res, err := tx.ExecContext(ctx, update, args...)
	if err != nil {
		_ = tx.Rollback()
		return false, fmt.Errorf("failed to finalize slots: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && int(n) != len(p.SlotIDs) {
		r.log.Warn().
			Str("payment_id", p.ID).
			Str("session_ref", p.SessionRef).
			Int64("finalized", n).
			Int("expected", len(p.SlotIDs)).
			Msg("payment finalized fewer slots than it paid for")
	}

	if err := upsertRegistrationPaid(ctx, tx, p.UserID, p.EventID, p.ID, p.SlotIDs); err != nil {
		_ = tx.Rollback()
		return false, err
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return true, nil
}

// RefundPaymentTx is the explicit refund path and the only legal way a paid
// slot returns to available. Idempotent by payment status.
func (r *repository) RefundPaymentTx(ctx context.Context, ref string) (*model.Payment, error) {
	tx, err := r.db.Master.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to start transaction: %w", err)
	}
	defer rollbackOnPanic(tx)

	row := tx.QueryRowContext(ctx, `
		SELECT `+paymentColumns+`
		FROM payments
		WHERE session_ref = $1 OR charge_ref = $1
		ORDER BY created_at DESC
		LIMIT 1
		FOR UPDATE
	`, ref)
	p, err := scanPayment(row)
	if err != nil {
		_ = tx.Rollback()
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperr.ErrNotFound
		}
		return nil, fmt.Errorf("failed to find payment: %w", err)
	}

	if p.Status == model.PaymentStatusRefunded {
		_ = tx.Rollback()
		return p, nil
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE payments SET status = 'refunded', updated_at = NOW() WHERE id = $1
	`, p.ID); err != nil {
		_ = tx.Rollback()
		return nil, fmt.Errorf("failed to mark payment refunded: %w", err)
	}
	p.Status = model.PaymentStatusRefunded

	if len(p.SlotIDs) > 0 {
		query := `
			UPDATE slots
			SET status = 'available', user_id = NULL, session_ref = NULL, payment_id = NULL,
			    assignment_type = NULL, assigned_by = NULL, assigned_at = NULL, updated_at = NOW()
			WHERE id IN (` + placeholders(len(p.SlotIDs), 2) + `)
			  AND payment_id = $1
		`
		args := append([]any{p.ID}, idArgs(p.SlotIDs)...)
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			_ = tx.Rollback()
			return nil, fmt.Errorf("failed to release refunded slots: %w", err)
		}
	}

	var remaining int
	if err := tx.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM payments
		WHERE user_id = $1 AND event_id = $2 AND status = 'paid' AND id != $3
	`, p.UserID, p.EventID, p.ID).Scan(&remaining); err != nil {
		_ = tx.Rollback()
		return nil, fmt.Errorf("failed to count remaining payments: %w", err)
	}
	if remaining == 0 {
		if _, err := tx.ExecContext(ctx, `
			UPDATE registrations
			SET paid = FALSE, payment_id = NULL, updated_at = NOW()
			WHERE user_id = $1 AND event_id = $2
		`, p.UserID, p.EventID); err != nil {
			_ = tx.Rollback()
			return nil, fmt.Errorf("failed to clear registration: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return p, nil
}

// RedeemVoucherTx grants a product's slots without payment. The single-use
// guard, the slot claims, the zero-amount payment record and the
// registration update commit together or not at all.
func (r *repository) RedeemVoucherTx(ctx context.Context, voucherID string, payment *model.Payment) error {
	tx, err := r.db.Master.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to start transaction: %w", err)
	}
	defer rollbackOnPanic(tx)

	var singleUse, isUsed bool
	var expiresAt *time.Time
	if err := tx.QueryRowContext(ctx, `
		SELECT single_use, is_used, expires_at FROM vouchers WHERE id = $1 FOR UPDATE
	`, voucherID).Scan(&singleUse, &isUsed, &expiresAt); err != nil {
		_ = tx.Rollback()
		return apperr.ErrNotFound
	}
	if singleUse && isUsed {
		_ = tx.Rollback()
		return apperr.ErrVoucherUsed
	}
	if expiresAt != nil && expiresAt.Before(time.Now()) {
		_ = tx.Rollback()
		return apperr.ErrVoucherExpired
	}

	query := `
		SELECT id, status FROM slots
		WHERE id IN (` + placeholders(len(payment.SlotIDs), 1) + `)
		FOR UPDATE
	`
	rows, err := tx.QueryContext(ctx, query, idArgs(payment.SlotIDs)...)
	if err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("failed to lock slots: %w", err)
	}
	seen := 0
	for rows.Next() {
		var id, status string
		if err := rows.Scan(&id, &status); err != nil {
			rows.Close()
			_ = tx.Rollback()
			return fmt.Errorf("failed to scan slot: %w", err)
		}
		seen++
		if status != model.SlotStatusAvailable {
			rows.Close()
			_ = tx.Rollback()
			return apperr.ErrSlotUnavailable
		}
	}
	rows.Close()
	if seen != len(payment.SlotIDs) {
		_ = tx.Rollback()
		return apperr.ErrNotFound
	}

	update := `
		UPDATE slots
		SET status = 'paid', user_id = $1, payment_id = $2, assignment_type = 'voucher',
		    assigned_at = NOW(), updated_at = NOW()
		WHERE id IN (` + placeholders(len(payment.SlotIDs), 3) + `)
	`
	args := append([]any{payment.UserID, payment.ID}, idArgs(payment.SlotIDs)...)
	if _, err := tx.ExecContext(ctx, update, args...); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("failed to assign voucher slots: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE vouchers SET is_used = TRUE, used_by = $1 WHERE id = $2
	`, payment.UserID, voucherID); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("failed to mark voucher used: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO payments (id, event_id, user_id, amount_cents, status, source, slot_ids, is_pack, pack_name, metadata)
		VALUES ($1, $2, $3, 0, 'paid', 'manual', $4, $5, $6, $7)
	`, payment.ID, payment.EventID, payment.UserID, joinIDs(payment.SlotIDs),
		payment.IsPack, payment.PackName, payment.Metadata); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("failed to insert voucher payment: %w", err)
	}

	if err := upsertRegistrationPaid(ctx, tx, payment.UserID, payment.EventID, payment.ID, payment.SlotIDs); err != nil {
		_ = tx.Rollback()
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// ReconcileUserFromPaymentTx is the manual escape hatch for a user whose
// registration drifted from an existing paid payment.
func (r *repository) ReconcileUserFromPaymentTx(ctx context.Context, userID, paymentID string) error {
	tx, err := r.db.Master.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to start transaction: %w", err)
	}
	defer rollbackOnPanic(tx)

	row := tx.QueryRowContext(ctx, `
		SELECT `+paymentColumns+` FROM payments WHERE id = $1 FOR UPDATE
	`, paymentID)
	p, err := scanPayment(row)
	if err != nil {
		_ = tx.Rollback()
		return apperr.ErrNotFound
	}
	if p.UserID != userID {
		_ = tx.Rollback()
		return fmt.Errorf("payment %s belongs to another user: %w", paymentID, apperr.ErrValidation)
	}
	if p.Status != model.PaymentStatusPaid {
		_ = tx.Rollback()
		return fmt.Errorf("payment %s is not paid: %w", paymentID, apperr.ErrValidation)
	}

	if err := upsertRegistrationPaid(ctx, tx, p.UserID, p.EventID, p.ID, p.SlotIDs); err != nil {
		_ = tx.Rollback()
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// MarkPaymentFailed closes out a pending payment intent whose hold expired.
// Paid and refunded rows are never touched.
func (r *repository) MarkPaymentFailed(ctx context.Context, sessionRef string) error {
	if _, err := r.db.ExecContext(ctx, `
		UPDATE payments SET status = 'failed', updated_at = NOW()
		WHERE session_ref = $1 AND status = 'pending'
	`, sessionRef); err != nil {
		return fmt.Errorf("failed to mark payment failed: %w", err)
	}
	return nil
}

type queryExecer interface {
	execer
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func upsertRegistrationPaid(ctx context.Context, tx queryExecer, userID, eventID, paymentID string, slotIDs []string) error {
	categories := map[string]bool{}

	var existing string
	err := tx.QueryRowContext(ctx, `
		SELECT category_ids FROM registrations
		WHERE user_id = $1 AND event_id = $2
		FOR UPDATE
	`, userID, eventID).Scan(&existing)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("failed to read registration: %w", err)
	}
	for _, c := range splitIDs(existing) {
		categories[c] = true
	}

	if len(slotIDs) > 0 {
		rows, err := tx.QueryContext(ctx, `
			SELECT DISTINCT category_id FROM slots
			WHERE id IN (`+placeholders(len(slotIDs), 1)+`)
		`, idArgs(slotIDs)...)
		if err != nil {
			return fmt.Errorf("failed to read slot categories: %w", err)
		}
		for rows.Next() {
			var c string
			if err := rows.Scan(&c); err != nil {
				rows.Close()
				return fmt.Errorf("failed to scan category: %w", err)
			}
			categories[c] = true
		}
		rows.Close()
	}

	merged := make([]string, 0, len(categories))
	for c := range categories {
		merged = append(merged, c)
	}
	sort.Strings(merged)

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO registrations (user_id, event_id, paid, category_ids, payment_id, registered_at)
		VALUES ($1, $2, TRUE, $3, $4, NOW())
		ON CONFLICT (user_id, event_id) DO UPDATE
		SET paid = TRUE, category_ids = EXCLUDED.category_ids,
		    payment_id = EXCLUDED.payment_id, updated_at = NOW()
	`, userID, eventID, joinIDs(merged), paymentID); err != nil {
		return fmt.Errorf("failed to upsert registration: %w", err)
	}
	return nil
}
