package model

import "time"

// Event lifecycle statuses. Slots may be created while the event is draft or
// open; assignment is refused once the event is closed or archived.
const (
	EventStatusDraft    = "draft"
	EventStatusOpen     = "open"
	EventStatusClosed   = "closed"
	EventStatusArchived = "archived"
)

// Slot statuses form a closed set. Any other value in the store is a data
// integrity error and is surfaced by the audit report, never coerced.
const (
	SlotStatusAvailable = "available"
	SlotStatusLocked    = "locked"
	SlotStatusPending   = "pending"
	SlotStatusOffered   = "offered"
	SlotStatusPaid      = "paid"
)

const (
	AssignmentTypeManual  = "manual"
	AssignmentTypePayment = "payment"
	AssignmentTypeVoucher = "voucher"
)

const (
	PaymentStatusPaid     = "paid"
	PaymentStatusRefunded = "refunded"
	PaymentStatusFailed   = "failed"
	PaymentStatusPending  = "pending"
)

const (
	PaymentSourceStripe = "stripe"
	PaymentSourceManual = "manual"
	PaymentSourceAdmin  = "admin"
)

// IsHold reports whether a slot status is a temporary, non-final claim.
func IsHold(status string) bool {
	return status == SlotStatusLocked || status == SlotStatusPending || status == SlotStatusOffered
}

// EventAllowsAssignment reports whether slots of the event may still be
// assigned to competitors.
func EventAllowsAssignment(status string) bool {
	return status == EventStatusDraft || status == EventStatusOpen
}

type Event struct {
	ID                   string    `db:"id" json:"id"`
	Name                 string    `db:"name" json:"name"`
	Year                 int       `db:"year" json:"year"`
	StartTime            time.Time `db:"start_time" json:"start_time"`
	EndTime              time.Time `db:"end_time" json:"end_time"`
	RegistrationDeadline time.Time `db:"registration_deadline" json:"registration_deadline"`
	Status               string    `db:"status" json:"status"`
	CreatedAt            time.Time `db:"created_at" json:"created_at"`
	UpdatedAt            time.Time `db:"updated_at" json:"updated_at"`
}

type Category struct {
	ID          string    `db:"id" json:"id"`
	EventID     string    `db:"event_id" json:"event_id"`
	Name        string    `db:"name" json:"name"`
	Description string    `db:"description,omitempty" json:"description,omitempty"`
	Rules       string    `db:"rules,omitempty" json:"rules,omitempty"`
	PriceCents  int64     `db:"price_cents" json:"price_cents"`
	MaxSlotsDay int       `db:"max_slots_day" json:"max_slots_day"`
	SlotMinutes int       `db:"slot_minutes" json:"slot_minutes"`
	IsActive    bool      `db:"is_active" json:"is_active"`
	ActiveDates []string  `db:"active_dates" json:"active_dates"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}

type Slot struct {
	ID             string     `db:"id" json:"id"`
	EventID        string     `db:"event_id" json:"event_id"`
	CategoryID     string     `db:"category_id" json:"category_id"`
	Date           string     `db:"date" json:"date"`
	StartTime      time.Time  `db:"start_time" json:"start_time"`
	EndTime        time.Time  `db:"end_time" json:"end_time"`
	Status         string     `db:"status" json:"status"`
	UserID         string     `db:"user_id,omitempty" json:"user_id,omitempty"`
	SessionRef     string     `db:"session_ref,omitempty" json:"session_ref,omitempty"`
	PaymentID      string     `db:"payment_id,omitempty" json:"payment_id,omitempty"`
	AssignmentType string     `db:"assignment_type,omitempty" json:"assignment_type,omitempty"`
	AssignedBy     string     `db:"assigned_by,omitempty" json:"assigned_by,omitempty"`
	AssignedAt     *time.Time `db:"assigned_at,omitempty" json:"assigned_at,omitempty"`
	CreatedAt      time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time  `db:"updated_at" json:"updated_at"`
}

type Product struct {
	ID            string    `db:"id" json:"id"`
	EventID       string    `db:"event_id" json:"event_id"`
	Name          string    `db:"name" json:"name"`
	PriceCents    int64     `db:"price_cents" json:"price_cents"`
	SlotsRequired int       `db:"slots_required" json:"slots_required"`
	IsPack        bool      `db:"is_pack" json:"is_pack"`
	IncludesMeal  bool      `db:"includes_meal" json:"includes_meal"`
	IsActive      bool      `db:"is_active" json:"is_active"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
}

// Payment is append-only: rows are created by checkout, webhook
// reconciliation or admin action and updated only by refund flows.
type Payment struct {
	ID          string    `db:"id" json:"id"`
	EventID     string    `db:"event_id" json:"event_id"`
	UserID      string    `db:"user_id" json:"user_id"`
	SessionRef  string    `db:"session_ref,omitempty" json:"session_ref,omitempty"`
	ChargeRef   string    `db:"charge_ref,omitempty" json:"charge_ref,omitempty"`
	AmountCents int64     `db:"amount_cents" json:"amount_cents"`
	Status      string    `db:"status" json:"status"`
	Source      string    `db:"source" json:"source"`
	SlotIDs     []string  `db:"slot_ids" json:"slot_ids"`
	IsPack      bool      `db:"is_pack" json:"is_pack"`
	PackName    string    `db:"pack_name,omitempty" json:"pack_name,omitempty"`
	Metadata    string    `db:"metadata,omitempty" json:"metadata,omitempty"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}

type User struct {
	ID        string    `db:"id" json:"id"`
	FullName  string    `db:"full_name" json:"full_name"`
	Email     string    `db:"email" json:"email"`
	Phone     string    `db:"phone,omitempty" json:"phone,omitempty"`
	Role      string    `db:"role" json:"role"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// Registration is a user's per-event record. Paid=true without a matching
// paid Payment is a reportable inconsistency ("ghost registration").
type Registration struct {
	UserID       string    `db:"user_id" json:"user_id"`
	EventID      string    `db:"event_id" json:"event_id"`
	Paid         bool      `db:"paid" json:"paid"`
	CategoryIDs  []string  `db:"category_ids" json:"category_ids"`
	PaymentID    string    `db:"payment_id,omitempty" json:"payment_id,omitempty"`
	RegisteredAt time.Time `db:"registered_at" json:"registered_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}

type Voucher struct {
	ID        string     `db:"id" json:"id"`
	EventID   string     `db:"event_id" json:"event_id"`
	Code      string     `db:"code" json:"code"`
	ProductID string     `db:"product_id" json:"product_id"`
	SingleUse bool       `db:"single_use" json:"single_use"`
	IsUsed    bool       `db:"is_used" json:"is_used"`
	UsedBy    string     `db:"used_by,omitempty" json:"used_by,omitempty"`
	ExpiresAt *time.Time `db:"expires_at,omitempty" json:"expires_at,omitempty"`
	CreatedAt time.Time  `db:"created_at" json:"created_at"`
}
