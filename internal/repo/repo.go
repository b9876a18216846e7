package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
	"github.com/wb-go/wbf/dbpg"

	"pizzacup/internal/apperr"
	"pizzacup/internal/model"
)

type Repository interface {
	CreateEvent(ctx context.Context, e *model.Event) error
	GetEventByID(ctx context.Context, id string) (*model.Event, error)
	GetAllEvents(ctx context.Context) ([]model.Event, error)
	UpdateEventSettings(ctx context.Context, e *model.Event) error

	CreateCategory(ctx context.Context, c *model.Category) error
	GetCategoryByID(ctx context.Context, id string) (*model.Category, error)
	GetCategoriesByEventID(ctx context.Context, eventID string) ([]model.Category, error)
	DeleteCategory(ctx context.Context, id string) error

	CreateProduct(ctx context.Context, p *model.Product) error
	GetProductByID(ctx context.Context, id string) (*model.Product, error)

	GetUserByID(ctx context.Context, id string) (*model.User, error)
	EnsureUser(ctx context.Context, u *model.User) error
	GetRegistration(ctx context.Context, userID, eventID string) (*model.Registration, error)

	CreateSlots(ctx context.Context, slots []model.Slot) error
	GetSlotByID(ctx context.Context, id string) (*model.Slot, error)
	GetSlotsByEventDate(ctx context.Context, eventID, date string) ([]model.Slot, error)
	GetSlotsByEventCategory(ctx context.Context, eventID, categoryID string) ([]model.Slot, error)
	CountSlotsForDay(ctx context.Context, categoryID, date string) (int, error)

	ReserveSlotsTx(ctx context.Context, eventID string, slotIDs []string, userID, mode string) error
	SetSlotsSession(ctx context.Context, slotIDs []string, sessionRef string) error
	ReleaseSlotsTx(ctx context.Context, slotIDs []string) error
	ReleaseExpiredHoldTx(ctx context.Context, slotIDs []string, sessionRef string) ([]string, error)
	AssignSlotsManualTx(ctx context.Context, slotIDs []string, userID, resultingStatus, adminID string) error
	DeleteSlot(ctx context.Context, id string) error
	DeleteSlotsByDateTx(ctx context.Context, eventID, date string) (int, error)

	CreateVoucher(ctx context.Context, v *model.Voucher) error
	GetVoucherByCode(ctx context.Context, eventID, code string) (*model.Voucher, error)
	RedeemVoucherTx(ctx context.Context, voucherID string, payment *model.Payment) error

	CreatePayment(ctx context.Context, p *model.Payment) error
	GetPaymentByID(ctx context.Context, id string) (*model.Payment, error)
	GetPaymentBySessionRef(ctx context.Context, sessionRef string) (*model.Payment, error)
	FinalizePaymentTx(ctx context.Context, p *model.Payment) (bool, error)
	RefundPaymentTx(ctx context.Context, ref string) (*model.Payment, error)
	MarkPaymentFailed(ctx context.Context, sessionRef string) error

	AuditEvent(ctx context.Context, eventID string) (*AuditReport, error)
	ReconcileUserFromPaymentTx(ctx context.Context, userID, paymentID string) error

	MigrateUp(migrationsDir string) error
	MigrateDown(migrationsDir string) error
}

type repository struct {
	db  *dbpg.DB
	log *zerolog.Logger
}

func NewRepository(db *dbpg.DB, log *zerolog.Logger) (Repository, error) {
	if db == nil {
		return nil, fmt.Errorf("db cannot be nil")
	}
	if err := db.Master.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping DB: %w", err)
	}
	return &repository{db: db, log: log}, nil
}

func (r *repository) MigrateUp(migrationsDir string) error {
	files, err := filepath.Glob(filepath.Join(migrationsDir, "*.up.sql"))
	if err != nil {
		return fmt.Errorf("failed to read migration files: %w", err)
	}

	for _, file := range files {
		sqlBytes, err := os.ReadFile(file)
		if err != nil {
			return fmt.Errorf("failed to read migration file %s: %w", file, err)
		}

		if _, err := r.db.ExecContext(context.Background(), string(sqlBytes)); err != nil {
			return fmt.Errorf("failed to apply migration %s: %w", file, err)
		}
	}

	r.log.Info().Msgf("Migrations applied successfully from %s", migrationsDir)
	return nil
}

func (r *repository) MigrateDown(migrationsDir string) error {
	files, err := filepath.Glob(filepath.Join(migrationsDir, "*.down.sql"))
	if err != nil {
		return fmt.Errorf("failed to read rollback files: %w", err)
	}

	for _, file := range files {
		sqlBytes, err := os.ReadFile(file)
		if err != nil {
			return fmt.Errorf("failed to read rollback file %s: %w", file, err)
		}

		if _, err := r.db.ExecContext(context.Background(), string(sqlBytes)); err != nil {
			return fmt.Errorf("failed to rollback migration %s: %w", file, err)
		}
	}

	r.log.Info().Msgf("Migrations rolled back successfully from %s", migrationsDir)
	return nil
}

// joinIDs and splitIDs encode id lists into a single text column. The same
// comma encoding is used for gateway metadata, so the two round-trip.
func joinIDs(ids []string) string {
	return strings.Join(ids, ",")
}

func splitIDs(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(s, ",")
}

func placeholders(n, from int) string {
	parts := make([]string, n)
	for i := range parts {
		parts[i] = fmt.Sprintf("$%d", from+i)
	}
	return strings.Join(parts, ", ")
}

func idArgs(ids []string) []any {
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	return args
}

func (r *repository) CreateEvent(ctx context.Context, e *model.Event) error {
	query := `
		INSERT INTO events (id, name, year, start_time, end_time, registration_deadline, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	if _, err := r.db.ExecContext(ctx, query,
		e.ID, e.Name, e.Year, e.StartTime, e.EndTime, e.RegistrationDeadline, e.Status,
	); err != nil {
		return fmt.Errorf("failed to insert event: %w", err)
	}
	return nil
}

func (r *repository) GetEventByID(ctx context.Context, id string) (*model.Event, error) {
	query := `
		SELECT id, name, year, start_time, end_time, registration_deadline, status, created_at, updated_at
		FROM events WHERE id = $1
	`
	row := r.db.QueryRowContext(ctx, query, id)

	var e model.Event
	if err := row.Scan(
		&e.ID, &e.Name, &e.Year, &e.StartTime, &e.EndTime, &e.RegistrationDeadline,
		&e.Status, &e.CreatedAt, &e.UpdatedAt,
	); err != nil {
		return nil, apperr.ErrNotFound
	}
	return &e, nil
}

func (r *repository) GetAllEvents(ctx context.Context) ([]model.Event, error) {
	query := `
		SELECT id, name, year, start_time, end_time, registration_deadline, status, created_at, updated_at
		FROM events
		ORDER BY year DESC, created_at DESC
	`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to get events: %w", err)
	}
	defer rows.Close()

	var events []model.Event
	for rows.Next() {
		var e model.Event
		if err := rows.Scan(
			&e.ID, &e.Name, &e.Year, &e.StartTime, &e.EndTime, &e.RegistrationDeadline,
			&e.Status, &e.CreatedAt, &e.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		events = append(events, e)
	}
	return events, nil
}

func (r *repository) UpdateEventSettings(ctx context.Context, e *model.Event) error {
	query := `
		UPDATE events
		SET name = $1, year = $2, start_time = $3, end_time = $4,
		    registration_deadline = $5, status = $6, updated_at = NOW()
		WHERE id = $7
	`
	res, err := r.db.ExecContext(ctx, query,
		e.Name, e.Year, e.StartTime, e.EndTime, e.RegistrationDeadline, e.Status, e.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update event: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return apperr.ErrNotFound
	}
	return nil
}

func (r *repository) CreateCategory(ctx context.Context, c *model.Category) error {
	query := `
		INSERT INTO categories (id, event_id, name, description, rules, price_cents,
		                        max_slots_day, slot_minutes, is_active, active_dates)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	if _, err := r.db.ExecContext(ctx, query,
		c.ID, c.EventID, c.Name, c.Description, c.Rules, c.PriceCents,
		c.MaxSlotsDay, c.SlotMinutes, c.IsActive, joinIDs(c.ActiveDates),
	); err != nil {
		return fmt.Errorf("failed to insert category: %w", err)
	}
	return nil
}

func (r *repository) GetCategoryByID(ctx context.Context, id string) (*model.Category, error) {
	query := `
		SELECT id, event_id, name, description, rules, price_cents,
		       max_slots_day, slot_minutes, is_active, active_dates, created_at, updated_at
		FROM categories WHERE id = $1
	`
	row := r.db.QueryRowContext(ctx, query, id)

	var c model.Category
	var dates string
	if err := row.Scan(
		&c.ID, &c.EventID, &c.Name, &c.Description, &c.Rules, &c.PriceCents,
		&c.MaxSlotsDay, &c.SlotMinutes, &c.IsActive, &dates, &c.CreatedAt, &c.UpdatedAt,
	); err != nil {
		return nil, apperr.ErrNotFound
	}
	c.ActiveDates = splitIDs(dates)
	return &c, nil
}

func (r *repository) GetCategoriesByEventID(ctx context.Context, eventID string) ([]model.Category, error) {
	query := `
		SELECT id, event_id, name, description, rules, price_cents,
		       max_slots_day, slot_minutes, is_active, active_dates, created_at, updated_at
		FROM categories
		WHERE event_id = $1
		ORDER BY name ASC
	`
	rows, err := r.db.QueryContext(ctx, query, eventID)
	if err != nil {
		return nil, fmt.Errorf("failed to get categories: %w", err)
	}
	defer rows.Close()

	var cats []model.Category
	for rows.Next() {
		var c model.Category
		var dates string
		if err := rows.Scan(
			&c.ID, &c.EventID, &c.Name, &c.Description, &c.Rules, &c.PriceCents,
			&c.MaxSlotsDay, &c.SlotMinutes, &c.IsActive, &dates, &c.CreatedAt, &c.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan category: %w", err)
		}
		c.ActiveDates = splitIDs(dates)
		cats = append(cats, c)
	}
	return cats, nil
}

// DeleteCategory enforces referential integrity at delete time: a category
// still referenced by any slot refuses to go.
func (r *repository) DeleteCategory(ctx context.Context, id string) error {
	tx, err := r.db.Master.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to start transaction: %w", err)
	}
	defer rollbackOnPanic(tx)

	var count int
	if err := tx.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM slots WHERE category_id = $1
	`, id).Scan(&count); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("failed to count category slots: %w", err)
	}
	if count > 0 {
		_ = tx.Rollback()
		return apperr.ErrCategoryInUse
	}

	res, err := tx.ExecContext(ctx, `DELETE FROM categories WHERE id = $1`, id)
	if err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("failed to delete category: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		_ = tx.Rollback()
		return apperr.ErrNotFound
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func (r *repository) CreateProduct(ctx context.Context, p *model.Product) error {
	query := `
		INSERT INTO products (id, event_id, name, price_cents, slots_required, is_pack, includes_meal, is_active)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	if _, err := r.db.ExecContext(ctx, query,
		p.ID, p.EventID, p.Name, p.PriceCents, p.SlotsRequired, p.IsPack, p.IncludesMeal, p.IsActive,
	); err != nil {
		return fmt.Errorf("failed to insert product: %w", err)
	}
	return nil
}

func (r *repository) GetProductByID(ctx context.Context, id string) (*model.Product, error) {
	query := `
		SELECT id, event_id, name, price_cents, slots_required, is_pack, includes_meal, is_active, created_at
		FROM products WHERE id = $1
	`
	row := r.db.QueryRowContext(ctx, query, id)

	var p model.Product
	if err := row.Scan(
		&p.ID, &p.EventID, &p.Name, &p.PriceCents, &p.SlotsRequired,
		&p.IsPack, &p.IncludesMeal, &p.IsActive, &p.CreatedAt,
	); err != nil {
		return nil, apperr.ErrNotFound
	}
	return &p, nil
}

func (r *repository) GetUserByID(ctx context.Context, id string) (*model.User, error) {
	query := `
		SELECT id, full_name, email, phone, role, created_at
		FROM users WHERE id = $1
	`
	row := r.db.QueryRowContext(ctx, query, id)

	var u model.User
	if err := row.Scan(&u.ID, &u.FullName, &u.Email, &u.Phone, &u.Role, &u.CreatedAt); err != nil {
		return nil, apperr.ErrNotFound
	}
	return &u, nil
}

// EnsureUser records the identity-provider user on first contact. The id is
// trusted as-is; subsequent calls refresh contact fields only.
func (r *repository) EnsureUser(ctx context.Context, u *model.User) error {
	query := `
		INSERT INTO users (id, full_name, email, phone, role)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE SET full_name = EXCLUDED.full_name, email = EXCLUDED.email
	`
	if _, err := r.db.ExecContext(ctx, query, u.ID, u.FullName, u.Email, u.Phone, u.Role); err != nil {
		return fmt.Errorf("failed to upsert user: %w", err)
	}
	return nil
}

func (r *repository) GetRegistration(ctx context.Context, userID, eventID string) (*model.Registration, error) {
	query := `
		SELECT user_id, event_id, paid, category_ids, payment_id, registered_at, updated_at
		FROM registrations
		WHERE user_id = $1 AND event_id = $2
	`
	row := r.db.QueryRowContext(ctx, query, userID, eventID)

	var reg model.Registration
	var cats string
	if err := row.Scan(
		&reg.UserID, &reg.EventID, &reg.Paid, &cats, &reg.PaymentID,
		&reg.RegisteredAt, &reg.UpdatedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperr.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get registration: %w", err)
	}
	reg.CategoryIDs = splitIDs(cats)
	return &reg, nil
}

func (r *repository) CreateSlots(ctx context.Context, slots []model.Slot) error {
	tx, err := r.db.Master.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to start transaction: %w", err)
	}
	defer rollbackOnPanic(tx)

	query := `
		INSERT INTO slots (id, event_id, category_id, date, start_time, end_time, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	for i := range slots {
		s := &slots[i]
		if _, err := tx.ExecContext(ctx, query,
			s.ID, s.EventID, s.CategoryID, s.Date, s.StartTime, s.EndTime, model.SlotStatusAvailable,
		); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("failed to insert slot: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

const slotColumns = `
	id, event_id, category_id, date, start_time, end_time, status,
	COALESCE(user_id, ''), COALESCE(session_ref, ''), COALESCE(payment_id, ''),
	COALESCE(assignment_type, ''), COALESCE(assigned_by, ''), assigned_at,
	created_at, updated_at
`

func scanSlot(row interface{ Scan(...any) error }) (*model.Slot, error) {
	var s model.Slot
	if err := row.Scan(
		&s.ID, &s.EventID, &s.CategoryID, &s.Date, &s.StartTime, &s.EndTime, &s.Status,
		&s.UserID, &s.SessionRef, &s.PaymentID,
		&s.AssignmentType, &s.AssignedBy, &s.AssignedAt,
		&s.CreatedAt, &s.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *repository) GetSlotByID(ctx context.Context, id string) (*model.Slot, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+slotColumns+` FROM slots WHERE id = $1`, id)
	s, err := scanSlot(row)
	if err != nil {
		return nil, apperr.ErrNotFound
	}
	return s, nil
}

func (r *repository) querySlots(ctx context.Context, query string, args ...any) ([]model.Slot, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to get slots: %w", err)
	}
	defer rows.Close()

	var slots []model.Slot
	for rows.Next() {
		s, err := scanSlot(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan slot: %w", err)
		}
		slots = append(slots, *s)
	}
	return slots, nil
}

func (r *repository) GetSlotsByEventDate(ctx context.Context, eventID, date string) ([]model.Slot, error) {
	return r.querySlots(ctx, `
		SELECT `+slotColumns+` FROM slots
		WHERE event_id = $1 AND date = $2
		ORDER BY start_time ASC
	`, eventID, date)
}

func (r *repository) GetSlotsByEventCategory(ctx context.Context, eventID, categoryID string) ([]model.Slot, error) {
	return r.querySlots(ctx, `
		SELECT `+slotColumns+` FROM slots
		WHERE event_id = $1 AND category_id = $2
		ORDER BY date ASC, start_time ASC
	`, eventID, categoryID)
}

func (r *repository) CountSlotsForDay(ctx context.Context, categoryID, date string) (int, error) {
	var count int
	if err := r.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM slots WHERE category_id = $1 AND date = $2
	`, categoryID, date).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count slots: %w", err)
	}
	return count, nil
}

func (r *repository) CreateVoucher(ctx context.Context, v *model.Voucher) error {
	query := `
		INSERT INTO vouchers (id, event_id, code, product_id, single_use, is_used, expires_at)
		VALUES ($1, $2, $3, $4, $5, FALSE, $6)
	`
	if _, err := r.db.ExecContext(ctx, query,
		v.ID, v.EventID, v.Code, v.ProductID, v.SingleUse, v.ExpiresAt,
	); err != nil {
		return fmt.Errorf("failed to insert voucher: %w", err)
	}
	return nil
}

func (r *repository) GetVoucherByCode(ctx context.Context, eventID, code string) (*model.Voucher, error) {
	query := `
		SELECT id, event_id, code, product_id, single_use, is_used, COALESCE(used_by, ''), expires_at, created_at
		FROM vouchers
		WHERE event_id = $1 AND code = $2
	`
	row := r.db.QueryRowContext(ctx, query, eventID, code)

	var v model.Voucher
	if err := row.Scan(
		&v.ID, &v.EventID, &v.Code, &v.ProductID, &v.SingleUse, &v.IsUsed,
		&v.UsedBy, &v.ExpiresAt, &v.CreatedAt,
	); err != nil {
		return nil, apperr.ErrNotFound
	}
	return &v, nil
}

func (r *repository) CreatePayment(ctx context.Context, p *model.Payment) error {
	query := `
		INSERT INTO payments (id, event_id, user_id, session_ref, charge_ref, amount_cents,
		                      status, source, slot_ids, is_pack, pack_name, metadata)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`
	if _, err := r.db.ExecContext(ctx, query,
		p.ID, p.EventID, p.UserID, p.SessionRef, p.ChargeRef, p.AmountCents,
		p.Status, p.Source, joinIDs(p.SlotIDs), p.IsPack, p.PackName, p.Metadata,
	); err != nil {
		return fmt.Errorf("failed to insert payment: %w", err)
	}
	return nil
}

const paymentColumns = `
	id, event_id, user_id, COALESCE(session_ref, ''), COALESCE(charge_ref, ''),
	amount_cents, status, source, slot_ids, is_pack, COALESCE(pack_name, ''),
	COALESCE(metadata, ''), created_at, updated_at
`

func scanPayment(row interface{ Scan(...any) error }) (*model.Payment, error) {
	var p model.Payment
	var slotIDs string
	if err := row.Scan(
		&p.ID, &p.EventID, &p.UserID, &p.SessionRef, &p.ChargeRef,
		&p.AmountCents, &p.Status, &p.Source, &slotIDs, &p.IsPack, &p.PackName,
		&p.Metadata, &p.CreatedAt, &p.UpdatedAt,
	); err != nil {
		return nil, err
	}
	p.SlotIDs = splitIDs(slotIDs)
	return &p, nil
}

func (r *repository) GetPaymentByID(ctx context.Context, id string) (*model.Payment, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+paymentColumns+` FROM payments WHERE id = $1`, id)
	p, err := scanPayment(row)
	if err != nil {
		return nil, apperr.ErrNotFound
	}
	return p, nil
}

func (r *repository) GetPaymentBySessionRef(ctx context.Context, sessionRef string) (*model.Payment, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+paymentColumns+` FROM payments
		WHERE session_ref = $1
		ORDER BY created_at DESC
		LIMIT 1
	`, sessionRef)
	p, err := scanPayment(row)
	if err != nil {
		return nil, apperr.ErrNotFound
	}
	return p, nil
}

func rollbackOnPanic(tx *sql.Tx) {
	if p := recover(); p != nil {
		_ = tx.Rollback()
		panic(p)
	}
}
