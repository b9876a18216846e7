package repo

import (
	"context"
	"database/sql"
	"fmt"

	"pizzacup/internal/apperr"
	"pizzacup/internal/model"
)

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// Slot state transitions happen here and nowhere else. Every batch operation
// locks all referenced rows with FOR UPDATE inside one transaction, so two
// overlapping claims serialize on the database and the loser sees the
// winner's committed status. No in-process lock is held across I/O.

// ReserveSlotsTx claims a batch of slots for one user. All-or-nothing: if any
// slot is missing, belongs to another event, or is not available, nothing is
// mutated and the caller gets the typed reason.
func (r *repository) ReserveSlotsTx(ctx context.Context, eventID string, slotIDs []string, userID, mode string) error {
	if mode != model.SlotStatusLocked && mode != model.SlotStatusPending {
		return fmt.Errorf("invalid hold mode %q: %w", mode, apperr.ErrValidation)
	}
	if len(slotIDs) == 0 {
		return apperr.ErrValidation
	}

	tx, err := r.db.Master.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to start transaction: %w", err)
	}
	defer rollbackOnPanic(tx)

	query := `
		SELECT id, event_id, status
		FROM slots
		WHERE id IN (` + placeholders(len(slotIDs), 1) + `)
		FOR UPDATE
	`
	rows, err := tx.QueryContext(ctx, query, idArgs(slotIDs)...)
	if err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("failed to lock slots: %w", err)
	}

	seen := 0
	for rows.Next() {
		var id, slotEventID, status string
		if err := rows.Scan(&id, &slotEventID, &status); err != nil {
			rows.Close()
			_ = tx.Rollback()
			return fmt.Errorf("failed to scan slot: %w", err)
		}
		seen++
		if slotEventID != eventID {
			rows.Close()
			_ = tx.Rollback()
			return fmt.Errorf("slot %s belongs to another event: %w", id, apperr.ErrValidation)
		}
		if status != model.SlotStatusAvailable {
			rows.Close()
			_ = tx.Rollback()
			return apperr.ErrSlotUnavailable
		}
	}
	rows.Close()
	if seen != len(slotIDs) {
		_ = tx.Rollback()
		return apperr.ErrNotFound
	}

	update := `
		UPDATE slots
		SET status = $1, user_id = $2, updated_at = NOW()
		WHERE id IN (` + placeholders(len(slotIDs), 3) + `)
	`
	args := append([]any{mode, userID}, idArgs(slotIDs)...)
	if _, err := tx.ExecContext(ctx, update, args...); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("failed to hold slots: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// SetSlotsSession stamps the gateway session reference onto already-held
// slots so the webhook and the expiry sweep can correlate back.
func (r *repository) SetSlotsSession(ctx context.Context, slotIDs []string, sessionRef string) error {
	query := `
		UPDATE slots
		SET session_ref = $1, updated_at = NOW()
		WHERE id IN (` + placeholders(len(slotIDs), 2) + `)
	`
	args := append([]any{sessionRef}, idArgs(slotIDs)...)
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to set session ref: %w", err)
	}
	return nil
}

// ReleaseSlotsTx reverts held slots to available. Paid slots refuse: the only
// legal paid -> available path is RefundPaymentTx.
func (r *repository) ReleaseSlotsTx(ctx context.Context, slotIDs []string) error {
	if len(slotIDs) == 0 {
		return nil
	}

	tx, err := r.db.Master.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to start transaction: %w", err)
	}
	defer rollbackOnPanic(tx)

	query := `
		SELECT id, status
		FROM slots
		WHERE id IN (` + placeholders(len(slotIDs), 1) + `)
		FOR UPDATE
	`
	rows, err := tx.QueryContext(ctx, query, idArgs(slotIDs)...)
	if err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("failed to lock slots: %w", err)
	}
	for rows.Next() {
		var id, status string
		if err := rows.Scan(&id, &status); err != nil {
			rows.Close()
			_ = tx.Rollback()
			return fmt.Errorf("failed to scan slot: %w", err)
		}
		if status == model.SlotStatusPaid {
			rows.Close()
			_ = tx.Rollback()
			return apperr.ErrProtectedState
		}
	}
	rows.Close()

	if err := releaseInTx(ctx, tx, slotIDs); err != nil {
		_ = tx.Rollback()
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// ReleaseExpiredHoldTx is the expiry sweep path: it releases only slots that
// are still pending under the given session. Slots finalized by the webhook
// in the meantime, or re-sold after an earlier release, are left alone.
func (r *repository) ReleaseExpiredHoldTx(ctx context.Context, slotIDs []string, sessionRef string) ([]string, error) {
	if len(slotIDs) == 0 {
		return nil, nil
	}

	tx, err := r.db.Master.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to start transaction: %w", err)
	}
	defer rollbackOnPanic(tx)

	query := `
		SELECT id
		FROM slots
		WHERE id IN (` + placeholders(len(slotIDs), 2) + `)
		  AND status = 'pending' AND session_ref = $1
		FOR UPDATE
	`
	args := append([]any{sessionRef}, idArgs(slotIDs)...)
	rows, err := tx.QueryContext(ctx, query, args...)
	if err != nil {
		_ = tx.Rollback()
		return nil, fmt.Errorf("failed to lock expired slots: %w", err)
	}

	var expired []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			_ = tx.Rollback()
			return nil, fmt.Errorf("failed to scan slot: %w", err)
		}
		expired = append(expired, id)
	}
	rows.Close()

	if len(expired) == 0 {
		_ = tx.Rollback()
		return nil, nil
	}

	if err := releaseInTx(ctx, tx, expired); err != nil {
		_ = tx.Rollback()
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return expired, nil
}

func releaseInTx(ctx context.Context, tx execer, slotIDs []string) error {
	query := `
		UPDATE slots
		SET status = 'available', user_id = NULL, session_ref = NULL, payment_id = NULL,
		    assignment_type = NULL, assigned_by = NULL, assigned_at = NULL, updated_at = NOW()
		WHERE id IN (` + placeholders(len(slotIDs), 1) + `)
	`
	if _, err := tx.ExecContext(ctx, query, idArgs(slotIDs)...); err != nil {
		return fmt.Errorf("failed to release slots: %w", err)
	}
	return nil
}

// AssignSlotsManualTx is the staff path. Same exclusivity rule as a reserve,
// except a slot already claimed by the same user may be restated (offered ->
// paid when the competitor settles up at the desk).
func (r *repository) AssignSlotsManualTx(ctx context.Context, slotIDs []string, userID, resultingStatus, adminID string) error {
	if resultingStatus != model.SlotStatusOffered && resultingStatus != model.SlotStatusPaid {
		return fmt.Errorf("invalid assignment status %q: %w", resultingStatus, apperr.ErrValidation)
	}
	if len(slotIDs) == 0 {
		return apperr.ErrValidation
	}

	tx, err := r.db.Master.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to start transaction: %w", err)
	}
	defer rollbackOnPanic(tx)

	query := `
		SELECT id, status, COALESCE(user_id, '')
		FROM slots
		WHERE id IN (` + placeholders(len(slotIDs), 1) + `)
		FOR UPDATE
	`
	rows, err := tx.QueryContext(ctx, query, idArgs(slotIDs)...)
	if err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("failed to lock slots: %w", err)
	}

	seen := 0
	for rows.Next() {
		var id, status, claimant string
		if err := rows.Scan(&id, &status, &claimant); err != nil {
			rows.Close()
			_ = tx.Rollback()
			return fmt.Errorf("failed to scan slot: %w", err)
		}
		seen++
		if status != model.SlotStatusAvailable && claimant != userID {
			rows.Close()
			_ = tx.Rollback()
			return apperr.ErrSlotUnavailable
		}
		// Restating a slot the same user already holds is allowed, but never
		// downward from paid.
		if status == model.SlotStatusPaid && resultingStatus == model.SlotStatusOffered {
			rows.Close()
			_ = tx.Rollback()
			return apperr.ErrProtectedState
		}
	}
	rows.Close()
	if seen != len(slotIDs) {
		_ = tx.Rollback()
		return apperr.ErrNotFound
	}

	update := `
		UPDATE slots
		SET status = $1, user_id = $2, assignment_type = 'manual',
		    assigned_by = $3, assigned_at = NOW(), updated_at = NOW()
		WHERE id IN (` + placeholders(len(slotIDs), 4) + `)
	`
	args := append([]any{resultingStatus, userID, adminID}, idArgs(slotIDs)...)
	if _, err := tx.ExecContext(ctx, update, args...); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("failed to assign slots: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func (r *repository) DeleteSlot(ctx context.Context, id string) error {
	tx, err := r.db.Master.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to start transaction: %w", err)
	}
	defer rollbackOnPanic(tx)

	var status string
	if err := tx.QueryRowContext(ctx, `
		SELECT status FROM slots WHERE id = $1 FOR UPDATE
	`, id).Scan(&status); err != nil {
		_ = tx.Rollback()
		return apperr.ErrNotFound
	}
	if status == model.SlotStatusPaid {
		_ = tx.Rollback()
		return apperr.ErrProtectedState
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM slots WHERE id = $1`, id); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("failed to delete slot: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// DeleteSlotsByDateTx removes a whole day's slots. If any of them is paid the
// entire deletion refuses with the offending ids itemized.
func (r *repository) DeleteSlotsByDateTx(ctx context.Context, eventID, date string) (int, error) {
	tx, err := r.db.Master.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to start transaction: %w", err)
	}
	defer rollbackOnPanic(tx)

	rows, err := tx.QueryContext(ctx, `
		SELECT id, status FROM slots
		WHERE event_id = $1 AND date = $2
		FOR UPDATE
	`, eventID, date)
	if err != nil {
		_ = tx.Rollback()
		return 0, fmt.Errorf("failed to lock slots: %w", err)
	}

	var all, paid []string
	for rows.Next() {
		var id, status string
		if err := rows.Scan(&id, &status); err != nil {
			rows.Close()
			_ = tx.Rollback()
			return 0, fmt.Errorf("failed to scan slot: %w", err)
		}
		all = append(all, id)
		if status == model.SlotStatusPaid {
			paid = append(paid, id)
		}
	}
	rows.Close()

	if len(paid) > 0 {
		_ = tx.Rollback()
		return 0, &apperr.ProtectedSlotsError{SlotIDs: paid}
	}
	if len(all) == 0 {
		_ = tx.Rollback()
		return 0, nil
	}

	if _, err := tx.ExecContext(ctx, `
		DELETE FROM slots WHERE event_id = $1 AND date = $2
	`, eventID, date); err != nil {
		_ = tx.Rollback()
		return 0, fmt.Errorf("failed to delete slots: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return len(all), nil
}
