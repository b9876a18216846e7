package dto

import (
	"errors"
	"time"

	"github.com/wb-go/wbf/ginext"

	"pizzacup/internal/apperr"
)

const (
	FieldIncorrect     = "FIELD_INCORRECT"
	ServiceUnavailable = "SERVICE_UNAVAILABLE"
	InternalError      = "Service is currently unavailable. Please try again later."

	NotFound        = "NOT_FOUND"
	SlotUnavailable = "SLOT_UNAVAILABLE"
	ProductMismatch = "PRODUCT_MISMATCH"
	EventLocked     = "EVENT_LOCKED"
	ProtectedState  = "PROTECTED_STATE"
	GatewayError    = "GATEWAY_ERROR"
	BadSignature    = "BAD_SIGNATURE"
	VoucherUsed     = "VOUCHER_USED"
	VoucherExpired  = "VOUCHER_EXPIRED"
	CategoryInUse   = "CATEGORY_IN_USE"
)

type Response struct {
	Status string `json:"status"`
	Error  *Error `json:"error,omitempty"`
	Data   any    `json:"data,omitempty"`
}

type Error struct {
	Code string `json:"code"`
	Desc string `json:"desc"`
}

func errorResponse(c *ginext.Context, httpStatus int, code, desc string) {
	c.JSON(httpStatus, Response{
		Status: "error",
		Error:  &Error{Code: code, Desc: desc},
	})
}

func BadResponseError(c *ginext.Context, code, desc string) {
	errorResponse(c, 400, code, desc)
}

func InternalServerError(c *ginext.Context) {
	errorResponse(c, 500, ServiceUnavailable, InternalError)
}

func SuccessResponse(c *ginext.Context, data any) {
	c.JSON(200, Response{Status: "ok", Data: data})
}

func SuccessCreatedResponse(c *ginext.Context, data any) {
	c.JSON(201, Response{Status: "ok", Data: data})
}

// FromError maps the error taxonomy onto HTTP. Checkout-facing messages stay
// human-readable without leaking internals; itemized admin detail rides on
// ProtectedSlotsError's own message.
func FromError(c *ginext.Context, err error) {
	var protected *apperr.ProtectedSlotsError
	switch {
	case errors.As(err, &protected):
		errorResponse(c, 409, ProtectedState, protected.Error())
	case errors.Is(err, apperr.ErrNotFound):
		errorResponse(c, 404, NotFound, "Not found")
	case errors.Is(err, apperr.ErrSlotUnavailable):
		errorResponse(c, 409, SlotUnavailable, "Slot no longer available")
	case errors.Is(err, apperr.ErrProductMismatch):
		errorResponse(c, 400, ProductMismatch, "Slot selection does not match the product")
	case errors.Is(err, apperr.ErrEventLocked):
		errorResponse(c, 409, EventLocked, "Event is closed for assignment")
	case errors.Is(err, apperr.ErrProtectedState):
		errorResponse(c, 409, ProtectedState, "Paid slots cannot be deleted or released")
	case errors.Is(err, apperr.ErrVoucherUsed):
		errorResponse(c, 409, VoucherUsed, "Voucher has already been redeemed")
	case errors.Is(err, apperr.ErrVoucherExpired):
		errorResponse(c, 409, VoucherExpired, "Voucher has expired")
	case errors.Is(err, apperr.ErrCategoryInUse):
		errorResponse(c, 409, CategoryInUse, "Category still has slots")
	case errors.Is(err, apperr.ErrSignatureVerification):
		errorResponse(c, 400, BadSignature, "Invalid webhook signature")
	case errors.Is(err, apperr.ErrUpstreamGateway):
		errorResponse(c, 502, GatewayError, "Payment provider is unavailable")
	case errors.Is(err, apperr.ErrValidation):
		errorResponse(c, 400, FieldIncorrect, err.Error())
	default:
		InternalServerError(c)
	}
}

type SingleCheckoutRequest struct {
	EventID   string   `json:"event_id" validate:"required"`
	SlotIDs   []string `json:"slot_ids" validate:"required,min=1"`
	UserID    string   `json:"user_id" validate:"required"`
	UserEmail string   `json:"user_email" validate:"required,email"`
	UserName  string   `json:"user_name"`
}

type PackCheckoutRequest struct {
	EventID   string   `json:"event_id" validate:"required"`
	ProductID string   `json:"product_id" validate:"required"`
	SlotIDs   []string `json:"slot_ids" validate:"required,min=1"`
	UserID    string   `json:"user_id" validate:"required"`
	UserEmail string   `json:"user_email" validate:"required,email"`
	UserName  string   `json:"user_name"`
}

type VoucherCheckoutRequest struct {
	EventID   string   `json:"event_id" validate:"required"`
	Code      string   `json:"code" validate:"required"`
	SlotIDs   []string `json:"slot_ids" validate:"required,min=1"`
	UserID    string   `json:"user_id" validate:"required"`
	UserEmail string   `json:"user_email" validate:"required,email"`
	UserName  string   `json:"user_name"`
}

type CheckoutResponse struct {
	SessionID string `json:"session_id"`
	URL       string `json:"url"`
}

type CreateEventRequest struct {
	Name                 string    `json:"name" validate:"required"`
	Year                 int       `json:"year" validate:"required"`
	StartTime            time.Time `json:"start_time" validate:"required"`
	EndTime              time.Time `json:"end_time" validate:"required"`
	RegistrationDeadline time.Time `json:"registration_deadline" validate:"required"`
}

type UpdateEventRequest struct {
	Name                 string     `json:"name"`
	Year                 int        `json:"year"`
	StartTime            *time.Time `json:"start_time"`
	EndTime              *time.Time `json:"end_time"`
	RegistrationDeadline *time.Time `json:"registration_deadline"`
	Status               string     `json:"status" validate:"omitempty,oneof=draft open closed archived"`
}

type CreateCategoryRequest struct {
	EventID     string   `json:"event_id" validate:"required"`
	Name        string   `json:"name" validate:"required"`
	Description string   `json:"description"`
	Rules       string   `json:"rules"`
	PriceCents  int64    `json:"price_cents" validate:"gte=0"`
	MaxSlotsDay int      `json:"max_slots_day" validate:"gt=0"`
	SlotMinutes int      `json:"slot_minutes" validate:"gt=0"`
	ActiveDates []string `json:"active_dates"`
}

type CreateProductRequest struct {
	EventID       string `json:"event_id" validate:"required"`
	Name          string `json:"name" validate:"required"`
	PriceCents    int64  `json:"price_cents" validate:"gte=0"`
	SlotsRequired int    `json:"slots_required" validate:"gt=0"`
	IsPack        bool   `json:"is_pack"`
	IncludesMeal  bool   `json:"includes_meal"`
}

type CreateVoucherRequest struct {
	EventID   string     `json:"event_id" validate:"required"`
	Code      string     `json:"code" validate:"required"`
	ProductID string     `json:"product_id" validate:"required"`
	SingleUse bool       `json:"single_use"`
	ExpiresAt *time.Time `json:"expires_at"`
}

// CreateSlotsRequest generates slots for a category and date: count slots of
// the category's duration starting at from.
type CreateSlotsRequest struct {
	EventID    string    `json:"event_id" validate:"required"`
	CategoryID string    `json:"category_id" validate:"required"`
	Date       string    `json:"date" validate:"required,caldate"`
	From       time.Time `json:"from" validate:"required"`
	Count      int       `json:"count" validate:"gt=0"`
}

type AssignRequest struct {
	SlotIDs []string `json:"slot_ids" validate:"required,min=1"`
	UserID  string   `json:"user_id" validate:"required"`
	AdminID string   `json:"admin_id" validate:"required"`
}

type UnassignRequest struct {
	SlotIDs []string `json:"slot_ids" validate:"required,min=1"`
}

type ReconcileRequest struct {
	UserID    string `json:"user_id" validate:"required"`
	PaymentID string `json:"payment_id" validate:"required"`
}

// HoldExpiryMessage travels through the delayed queue: published when a
// checkout session opens, consumed when the hold timeout elapses.
type HoldExpiryMessage struct {
	SessionRef string    `json:"session_ref"`
	EventID    string    `json:"event_id"`
	UserID     string    `json:"user_id"`
	UserEmail  string    `json:"user_email"`
	SlotIDs    []string  `json:"slot_ids"`
	ExpireAt   time.Time `json:"expire_at"`
}
