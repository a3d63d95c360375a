package services

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/wanjalasam/bus_booking/models"
)

// Store is the booking-store contract the engine runs against. The GORM
// implementation lives in the database package; tests use in-memory fakes.
//
// The three operations the concurrency model depends on are atomic at the
// storage layer: CreatePaymentIfVacant (check + insert in one transaction),
// TransitionPayment (compare-and-swap on the current status plus the event
// append), and ExecuteTransfer (seat history + booking update + transfer
// completion in one transaction).
type Store interface {
	GetBooking(ctx context.Context, id uuid.UUID) (*models.Booking, error)
	// UpdateBookingStatus only applies when the booking currently holds
	// `from`; a stale row is left untouched and no error is returned.
	UpdateBookingStatus(ctx context.Context, id uuid.UUID, from, to models.BookingStatus) error
	UpdateBookingForTransfer(ctx context.Context, t *models.BookingTransfer, h *models.SeatHistory) error

	GetPayment(ctx context.Context, id uuid.UUID) (*models.Payment, error)
	// GetBookingPayment returns the booking-purpose payment currently in
	// COMPLETED for the booking, if any.
	GetBookingPayment(ctx context.Context, bookingID uuid.UUID) (*models.Payment, error)
	// FindPaymentByTransaction matches either the provider transaction id or
	// the client reference; providers echo back whichever they kept.
	FindPaymentByTransaction(ctx context.Context, key string) (*models.Payment, error)
	// CreatePaymentIfVacant inserts p unless a non-terminal payment with the
	// same purpose scope already exists for the booking; then it returns a
	// conflict and inserts nothing.
	CreatePaymentIfVacant(ctx context.Context, p *models.Payment) error
	SavePayment(ctx context.Context, p *models.Payment) error
	// TransitionPayment applies status `to` only if the row still holds
	// p.Status, appending the event in the same transaction. A lost race
	// returns a conflict and writes nothing.
	TransitionPayment(ctx context.Context, p *models.Payment, to models.PaymentStatus, ev *models.PaymentEvent) error
	AppendPaymentEvent(ctx context.Context, ev *models.PaymentEvent) error
	ListStalePendingPayments(ctx context.Context, olderThan time.Time) ([]models.Payment, error)

	SeatTaken(ctx context.Context, routeID uuid.UUID, travelDate time.Time, seat string) (bool, error)

	GetRoute(ctx context.Context, id uuid.UUID) (*models.Route, error)
	ActiveVariations(ctx context.Context, routeID uuid.UUID) ([]models.PriceVariation, error)

	// CreateTransferIfVacant inserts t unless a non-terminal transfer already
	// exists for the booking.
	CreateTransferIfVacant(ctx context.Context, t *models.BookingTransfer) error
	GetTransfer(ctx context.Context, id uuid.UUID) (*models.BookingTransfer, error)
	SaveTransfer(ctx context.Context, t *models.BookingTransfer) error

	CreateWebhookLog(ctx context.Context, l *models.WebhookLog) error
	ListWebhookLogs(ctx context.Context, paymentID uuid.UUID) ([]models.WebhookLog, error)

	CreateRefundTask(ctx context.Context, rt *models.RefundTask) error
	GetRefundTask(ctx context.Context, id uuid.UUID) (*models.RefundTask, error)
	SaveRefundTask(ctx context.Context, rt *models.RefundTask) error
	ListRefundTasks(ctx context.Context, status models.RefundTaskStatus) ([]models.RefundTask, error)
}

// Notifier delivers customer messages. Fire and forget: callers log failures
// and move on.
type Notifier interface {
	SendPaymentConfirmation(userID, bookingID uuid.UUID, amount float64, method models.PaymentMethod, transactionID string) error
	SendPaymentFailed(userID, bookingID uuid.UUID, amount float64, method models.PaymentMethod, reason string) error
}

// TicketGenerator produces the ticket artifact for a confirmed booking. Its
// failure never rolls back a payment confirmation.
type TicketGenerator interface {
	Generate(ctx context.Context, bookingID uuid.UUID) error
}

// Broadcaster pushes status transitions to connected dashboards.
type Broadcaster interface {
	PaymentStatusChanged(paymentID uuid.UUID, status models.PaymentStatus)
	TransferStatusChanged(transferID uuid.UUID, status models.TransferStatus)
}
