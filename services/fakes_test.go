package services

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/wanjalasam/bus_booking/apperr"
	"github.com/wanjalasam/bus_booking/models"
)

// fakeStore is an in-memory Store with the same vacancy and compare-and-swap
// semantics the GORM implementation enforces at the database.
type fakeStore struct {
	mu sync.Mutex

	bookings    map[uuid.UUID]*models.Booking
	routes      map[uuid.UUID]*models.Route
	variations  map[uuid.UUID][]models.PriceVariation
	payments    map[uuid.UUID]*models.Payment
	events      []models.PaymentEvent
	transfers   map[uuid.UUID]*models.BookingTransfer
	histories   []models.SeatHistory
	webhookLogs []models.WebhookLog
	refundTasks map[uuid.UUID]*models.RefundTask
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		bookings:    make(map[uuid.UUID]*models.Booking),
		routes:      make(map[uuid.UUID]*models.Route),
		variations:  make(map[uuid.UUID][]models.PriceVariation),
		payments:    make(map[uuid.UUID]*models.Payment),
		transfers:   make(map[uuid.UUID]*models.BookingTransfer),
		refundTasks: make(map[uuid.UUID]*models.RefundTask),
	}
}

func (f *fakeStore) addBooking(b models.Booking) *models.Booking {
	f.mu.Lock()
	defer f.mu.Unlock()
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	f.bookings[b.ID] = &b
	return &b
}

func (f *fakeStore) addRoute(r models.Route) *models.Route {
	f.mu.Lock()
	defer f.mu.Unlock()
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	f.routes[r.ID] = &r
	return &r
}

func (f *fakeStore) addPayment(p models.Payment) *models.Payment {
	f.mu.Lock()
	defer f.mu.Unlock()
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	f.payments[p.ID] = &p
	return &p
}

func (f *fakeStore) addTransfer(t models.BookingTransfer) *models.BookingTransfer {
	f.mu.Lock()
	defer f.mu.Unlock()
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	f.transfers[t.ID] = &t
	return &t
}

func (f *fakeStore) eventTypes(paymentID uuid.UUID) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var types []string
	for _, ev := range f.events {
		if ev.PaymentID == paymentID {
			types = append(types, ev.Type)
		}
	}
	return types
}

func (f *fakeStore) GetBooking(ctx context.Context, id uuid.UUID) (*models.Booking, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.bookings[id]
	if !ok {
		return nil, apperr.NotFoundErr("booking not found")
	}
	copied := *b
	return &copied, nil
}

func (f *fakeStore) UpdateBookingStatus(ctx context.Context, id uuid.UUID, from, to models.BookingStatus) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if b, ok := f.bookings[id]; ok && b.Status == from {
		b.Status = to
	}
	return nil
}

func (f *fakeStore) UpdateBookingForTransfer(ctx context.Context, t *models.BookingTransfer, h *models.SeatHistory) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.bookings[t.BookingID]
	if !ok {
		return apperr.NotFoundErr("booking not found")
	}
	b.RouteID = t.ToRouteID
	b.TravelDate = t.ToTravelDate
	b.SeatNumber = t.ToSeat
	b.TotalAmount = t.NewAmount
	b.ActualPrice = t.NewAmount
	copied := *t
	f.transfers[t.ID] = &copied
	f.histories = append(f.histories, *h)
	return nil
}

func (f *fakeStore) GetPayment(ctx context.Context, id uuid.UUID) (*models.Payment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.payments[id]
	if !ok {
		return nil, apperr.NotFoundErr("payment not found")
	}
	copied := *p
	return &copied, nil
}

func (f *fakeStore) GetBookingPayment(ctx context.Context, bookingID uuid.UUID) (*models.Payment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, p := range f.payments {
		if p.BookingID == bookingID && p.Purpose == models.PurposeBooking && p.Status == models.PaymentCompleted {
			copied := *p
			return &copied, nil
		}
	}
	return nil, apperr.NotFoundErr("no completed payment for booking")
}

func (f *fakeStore) FindPaymentByTransaction(ctx context.Context, key string) (*models.Payment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, p := range f.payments {
		if (p.TransactionID != nil && *p.TransactionID == key) || p.Reference == key {
			copied := *p
			return &copied, nil
		}
	}
	return nil, apperr.NotFoundErr("no payment matches transaction " + key)
}

func (f *fakeStore) CreatePaymentIfVacant(ctx context.Context, p *models.Payment) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, existing := range f.payments {
		switch p.Purpose {
		case models.PurposeTransfer:
			if existing.TransferID != nil && p.TransferID != nil &&
				*existing.TransferID == *p.TransferID && existing.Status == models.PaymentPending {
				return apperr.ConflictErr("Payment already initiated for this booking")
			}
		default:
			if existing.BookingID == p.BookingID && existing.Purpose == models.PurposeBooking &&
				(existing.Status == models.PaymentPending || existing.Status == models.PaymentCompleted) {
				return apperr.ConflictErr("Payment already initiated for this booking")
			}
		}
	}
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	copied := *p
	f.payments[p.ID] = &copied
	return nil
}

func (f *fakeStore) SavePayment(ctx context.Context, p *models.Payment) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	copied := *p
	f.payments[p.ID] = &copied
	return nil
}

func (f *fakeStore) TransitionPayment(ctx context.Context, p *models.Payment, to models.PaymentStatus, ev *models.PaymentEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	stored, ok := f.payments[p.ID]
	if !ok {
		return apperr.NotFoundErr("payment not found")
	}
	if stored.Status != p.Status {
		return apperr.ConflictErr("payment status has changed")
	}
	stored.Status = to
	stored.FailureReason = p.FailureReason
	stored.RefundAmount = p.RefundAmount
	stored.RefundReason = p.RefundReason
	stored.TransactionID = p.TransactionID
	f.events = append(f.events, *ev)
	return nil
}

func (f *fakeStore) AppendPaymentEvent(ctx context.Context, ev *models.PaymentEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, *ev)
	return nil
}

func (f *fakeStore) ListStalePendingPayments(ctx context.Context, olderThan time.Time) ([]models.Payment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Payment
	for _, p := range f.payments {
		if p.Status == models.PaymentPending && p.CreatedAt.Before(olderThan) {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (f *fakeStore) SeatTaken(ctx context.Context, routeID uuid.UUID, travelDate time.Time, seat string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	day := travelDate.Format("2006-01-02")
	for _, b := range f.bookings {
		if b.RouteID == routeID && b.SeatNumber == seat && b.TravelDate.Format("2006-01-02") == day &&
			(b.Status == models.BookingPending || b.Status == models.BookingConfirmed) {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeStore) GetRoute(ctx context.Context, id uuid.UUID) (*models.Route, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.routes[id]
	if !ok {
		return nil, apperr.NotFoundErr("route not found")
	}
	copied := *r
	return &copied, nil
}

func (f *fakeStore) ActiveVariations(ctx context.Context, routeID uuid.UUID) ([]models.PriceVariation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.PriceVariation
	for _, v := range f.variations[routeID] {
		if v.Active {
			out = append(out, v)
		}
	}
	return out, nil
}

func (f *fakeStore) CreateTransferIfVacant(ctx context.Context, t *models.BookingTransfer) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, existing := range f.transfers {
		if existing.BookingID == t.BookingID && !existing.Status.IsTerminal() {
			return apperr.ConflictErr("a transfer request is already open for this booking")
		}
	}
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	copied := *t
	f.transfers[t.ID] = &copied
	return nil
}

func (f *fakeStore) GetTransfer(ctx context.Context, id uuid.UUID) (*models.BookingTransfer, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.transfers[id]
	if !ok {
		return nil, apperr.NotFoundErr("transfer not found")
	}
	copied := *t
	return &copied, nil
}

func (f *fakeStore) SaveTransfer(ctx context.Context, t *models.BookingTransfer) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	copied := *t
	f.transfers[t.ID] = &copied
	return nil
}

func (f *fakeStore) CreateWebhookLog(ctx context.Context, l *models.WebhookLog) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.webhookLogs = append(f.webhookLogs, *l)
	return nil
}

func (f *fakeStore) ListWebhookLogs(ctx context.Context, paymentID uuid.UUID) ([]models.WebhookLog, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.WebhookLog
	for _, l := range f.webhookLogs {
		if l.PaymentID != nil && *l.PaymentID == paymentID {
			out = append(out, l)
		}
	}
	return out, nil
}

func (f *fakeStore) CreateRefundTask(ctx context.Context, rt *models.RefundTask) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if rt.ID == uuid.Nil {
		rt.ID = uuid.New()
	}
	copied := *rt
	f.refundTasks[rt.ID] = &copied
	return nil
}

func (f *fakeStore) GetRefundTask(ctx context.Context, id uuid.UUID) (*models.RefundTask, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	rt, ok := f.refundTasks[id]
	if !ok {
		return nil, apperr.NotFoundErr("refund task not found")
	}
	copied := *rt
	return &copied, nil
}

func (f *fakeStore) SaveRefundTask(ctx context.Context, rt *models.RefundTask) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	copied := *rt
	f.refundTasks[rt.ID] = &copied
	return nil
}

func (f *fakeStore) ListRefundTasks(ctx context.Context, status models.RefundTaskStatus) ([]models.RefundTask, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.RefundTask
	for _, rt := range f.refundTasks {
		if rt.Status == status {
			out = append(out, *rt)
		}
	}
	return out, nil
}

type fakeNotifier struct {
	mu            sync.Mutex
	confirmations int
	failures      int
}

func (n *fakeNotifier) SendPaymentConfirmation(userID, bookingID uuid.UUID, amount float64, method models.PaymentMethod, transactionID string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.confirmations++
	return nil
}

func (n *fakeNotifier) SendPaymentFailed(userID, bookingID uuid.UUID, amount float64, method models.PaymentMethod, reason string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.failures++
	return nil
}

type fakeTickets struct {
	mu        sync.Mutex
	generated []uuid.UUID
}

func (t *fakeTickets) Generate(ctx context.Context, bookingID uuid.UUID) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.generated = append(t.generated, bookingID)
	return nil
}

type fakeFeed struct {
	mu       sync.Mutex
	payments []models.PaymentStatus
	transfer []models.TransferStatus
}

func (f *fakeFeed) PaymentStatusChanged(paymentID uuid.UUID, status models.PaymentStatus) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.payments = append(f.payments, status)
}

func (f *fakeFeed) TransferStatusChanged(transferID uuid.UUID, status models.TransferStatus) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.transfer = append(f.transfer, status)
}
