package service

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"pizzacup/internal/apperr"
	"pizzacup/internal/model"
	"pizzacup/internal/payments"
	"pizzacup/internal/repo"
)

// fakeRepo implements the slice of repo.Repository the service layer touches.
// Unimplemented methods panic through the embedded nil interface, which is
// the desired failure mode for a call a test did not expect.
type fakeRepo struct {
	repo.Repository

	events        map[string]*model.Event
	categories    map[string]*model.Category
	products      map[string]*model.Product
	slots         map[string]*model.Slot
	vouchers      map[string]*model.Voucher
	registrations map[string]*model.Registration
	users         map[string]*model.User

	reservedSlots  []string
	reservedMode   string
	reservedUserID string
	reserveErr     error

	releasedSlots [][]string

	sessionSlots []string
	sessionRef   string
	sessionErr   error

	createdPayments []*model.Payment

	finalized       []*model.Payment
	finalizeApplied bool
	finalizeErr     error

	refundedRefs  []string
	refundPayment *model.Payment
	refundErr     error

	redeemedVoucherID string
	redeemedPayment   *model.Payment

	assignedSlots  []string
	assignedUserID string
	assignedStatus string
	assignedAdmin  string

	createdSlots []model.Slot
	slotsPerDay  int
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		events:        map[string]*model.Event{},
		categories:    map[string]*model.Category{},
		products:      map[string]*model.Product{},
		slots:         map[string]*model.Slot{},
		vouchers:      map[string]*model.Voucher{},
		registrations: map[string]*model.Registration{},
		users:         map[string]*model.User{},
	}
}

func (f *fakeRepo) GetEventByID(_ context.Context, id string) (*model.Event, error) {
	if e, ok := f.events[id]; ok {
		return e, nil
	}
	return nil, apperr.ErrNotFound
}

func (f *fakeRepo) GetCategoryByID(_ context.Context, id string) (*model.Category, error) {
	if c, ok := f.categories[id]; ok {
		return c, nil
	}
	return nil, apperr.ErrNotFound
}

func (f *fakeRepo) GetProductByID(_ context.Context, id string) (*model.Product, error) {
	if p, ok := f.products[id]; ok {
		return p, nil
	}
	return nil, apperr.ErrNotFound
}

func (f *fakeRepo) GetSlotByID(_ context.Context, id string) (*model.Slot, error) {
	if s, ok := f.slots[id]; ok {
		return s, nil
	}
	return nil, apperr.ErrNotFound
}

func (f *fakeRepo) GetVoucherByCode(_ context.Context, eventID, code string) (*model.Voucher, error) {
	if v, ok := f.vouchers[eventID+"|"+code]; ok {
		return v, nil
	}
	return nil, apperr.ErrNotFound
}

func (f *fakeRepo) GetRegistration(_ context.Context, userID, eventID string) (*model.Registration, error) {
	if r, ok := f.registrations[userID+"|"+eventID]; ok {
		return r, nil
	}
	return nil, apperr.ErrNotFound
}

func (f *fakeRepo) GetUserByID(_ context.Context, id string) (*model.User, error) {
	if u, ok := f.users[id]; ok {
		return u, nil
	}
	return nil, apperr.ErrNotFound
}

func (f *fakeRepo) EnsureUser(_ context.Context, u *model.User) error {
	f.users[u.ID] = u
	return nil
}

func (f *fakeRepo) ReserveSlotsTx(_ context.Context, _ string, slotIDs []string, userID, mode string) error {
	if f.reserveErr != nil {
		return f.reserveErr
	}
	f.reservedSlots = append(f.reservedSlots, slotIDs...)
	f.reservedMode = mode
	f.reservedUserID = userID
	return nil
}

func (f *fakeRepo) ReleaseSlotsTx(_ context.Context, slotIDs []string) error {
	f.releasedSlots = append(f.releasedSlots, slotIDs)
	return nil
}

func (f *fakeRepo) SetSlotsSession(_ context.Context, slotIDs []string, sessionRef string) error {
	if f.sessionErr != nil {
		return f.sessionErr
	}
	f.sessionSlots = slotIDs
	f.sessionRef = sessionRef
	return nil
}

func (f *fakeRepo) CreatePayment(_ context.Context, p *model.Payment) error {
	f.createdPayments = append(f.createdPayments, p)
	return nil
}

func (f *fakeRepo) FinalizePaymentTx(_ context.Context, p *model.Payment) (bool, error) {
	if f.finalizeErr != nil {
		return false, f.finalizeErr
	}
	f.finalized = append(f.finalized, p)
	return f.finalizeApplied, nil
}

func (f *fakeRepo) RefundPaymentTx(_ context.Context, ref string) (*model.Payment, error) {
	f.refundedRefs = append(f.refundedRefs, ref)
	if f.refundErr != nil {
		return nil, f.refundErr
	}
	return f.refundPayment, nil
}

func (f *fakeRepo) RedeemVoucherTx(_ context.Context, voucherID string, payment *model.Payment) error {
	f.redeemedVoucherID = voucherID
	f.redeemedPayment = payment
	return nil
}

func (f *fakeRepo) AssignSlotsManualTx(_ context.Context, slotIDs []string, userID, resultingStatus, adminID string) error {
	f.assignedSlots = slotIDs
	f.assignedUserID = userID
	f.assignedStatus = resultingStatus
	f.assignedAdmin = adminID
	return nil
}

func (f *fakeRepo) CountSlotsForDay(_ context.Context, _, _ string) (int, error) {
	return f.slotsPerDay, nil
}

func (f *fakeRepo) CreateSlots(_ context.Context, slots []model.Slot) error {
	f.createdSlots = append(f.createdSlots, slots...)
	return nil
}

type fakeProvider struct {
	session  *payments.Session
	err      error
	sessions int
	lastMeta payments.Metadata
}

func (f *fakeProvider) Name() string { return "fake" }

func (f *fakeProvider) CreateSession(_ context.Context, _ []payments.LineItem, meta payments.Metadata, _, _ string) (*payments.Session, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.sessions++
	f.lastMeta = meta
	return f.session, nil
}

func (f *fakeProvider) ParseWebhook(_ []byte, _ string) (*payments.WebhookEvent, error) {
	return nil, nil
}

type fakePublisher struct {
	messages [][]byte
	delays   []time.Duration
}

func (f *fakePublisher) PublishDelayed(message []byte, delay time.Duration) error {
	f.messages = append(f.messages, message)
	f.delays = append(f.delays, delay)
	return nil
}

type fakeNotifier struct {
	recipients []string
	kinds      []string
}

func (f *fakeNotifier) Send(recipient, kind, _ string, _ int) error {
	f.recipients = append(f.recipients, recipient)
	f.kinds = append(f.kinds, kind)
	return nil
}

func newTestService(r *fakeRepo, p payments.Provider) (*service, *fakePublisher, *fakeNotifier) {
	log := zerolog.Nop()
	pub := &fakePublisher{}
	mail := &fakeNotifier{}
	svc := &service{
		repo:     r,
		log:      &log,
		rbt:      pub,
		provider: p,
		mail:     mail,
		checkout: CheckoutConfig{
			HoldTimeout: 30 * time.Minute,
			SuccessURL:  "https://pizzacup.test/checkout/success",
			CancelURL:   "https://pizzacup.test/checkout/cancel",
		},
	}
	return svc, pub, mail
}

func openEvent(id string) *model.Event {
	return &model.Event{
		ID:                   id,
		Name:                 "Pizza Cup",
		Year:                 2026,
		Status:               model.EventStatusOpen,
		StartTime:            time.Now().Add(30 * 24 * time.Hour),
		EndTime:              time.Now().Add(32 * 24 * time.Hour),
		RegistrationDeadline: time.Now().Add(14 * 24 * time.Hour),
	}
}
