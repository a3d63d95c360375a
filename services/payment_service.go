package services

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/wanjalasam/bus_booking/apperr"
	"github.com/wanjalasam/bus_booking/gateways"
	"github.com/wanjalasam/bus_booking/models"
	"github.com/wanjalasam/bus_booking/utils"
)

// PaymentService owns the initiate and poll use cases and is the single
// authority for payment status transitions. The webhook reconciler funnels
// its updates through ApplyStatus on this service so both paths share one
// transition function.
type PaymentService struct {
	store    Store
	registry *gateways.Registry
	notifier Notifier
	tickets  TicketGenerator
	feed     Broadcaster
	now      func() time.Time

	// onTransferPaid executes an approved transfer once its difference
	// payment completes. Set by the transfer service after construction to
	// break the mutual dependency.
	onTransferPaid func(ctx context.Context, transferID uuid.UUID) error
}

func NewPaymentService(store Store, registry *gateways.Registry, notifier Notifier, tickets TicketGenerator, feed Broadcaster, now func() time.Time) *PaymentService {
	if now == nil {
		now = time.Now
	}
	return &PaymentService{
		store:    store,
		registry: registry,
		notifier: notifier,
		tickets:  tickets,
		feed:     feed,
		now:      now,
	}
}

func (s *PaymentService) SetTransferExecutor(fn func(ctx context.Context, transferID uuid.UUID) error) {
	s.onTransferPaid = fn
}

type InitiateResult struct {
	Payment         *models.Payment `json:"payment"`
	CheckoutURL     string          `json:"checkout_url,omitempty"`
	CustomerMessage string          `json:"customer_message,omitempty"`
}

// Initiate creates the booking's payment and, for online methods, pushes the
// charge to the rail. The vacancy check and the insert are one storage-level
// transaction, so two concurrent calls cannot both create a payment.
func (s *PaymentService) Initiate(ctx context.Context, bookingID, userID uuid.UUID, method models.PaymentMethod, phoneNumber string) (*InitiateResult, error) {
	booking, err := s.store.GetBooking(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if booking.UserID != userID {
		return nil, apperr.ForbiddenErr("this is not your booking")
	}
	if booking.Status != models.BookingPending {
		return nil, apperr.ConflictErr("booking is not awaiting payment")
	}

	route, err := s.store.GetRoute(ctx, booking.RouteID)
	if err != nil {
		return nil, err
	}

	payment := &models.Payment{
		BookingID: bookingID,
		UserID:    userID,
		Amount:    booking.TotalAmount,
		Currency:  route.Currency,
		Method:    method,
		Purpose:   models.PurposeBooking,
		Status:    models.PaymentPending,
		Reference: utils.NewPaymentReference(),
	}
	if err := s.store.CreatePaymentIfVacant(ctx, payment); err != nil {
		return nil, err
	}
	s.appendEvent(ctx, payment.ID, "initiated", map[string]any{"method": method, "amount": payment.Amount})

	if method == models.MethodCash {
		return &InitiateResult{Payment: payment}, nil
	}

	adapter, err := s.registry.Resolve(method)
	if err != nil {
		return nil, err
	}
	if v, ok := adapter.(gateways.PhoneValidator); ok && phoneNumber != "" {
		if !v.ValidatePhoneNumber(phoneNumber, "KE") {
			return nil, apperr.ValidationErr("invalid phone number for this payment method")
		}
	}

	resp, err := adapter.RequestPayment(ctx, gateways.Request{
		Amount:      payment.Amount,
		Currency:    payment.Currency,
		Reference:   payment.Reference,
		PhoneNumber: phoneNumber,
		Description: "Bus seat booking " + bookingID.String(),
		Country:     "KE",
	})
	if err != nil {
		return nil, s.recordInitiationFailure(ctx, payment, resp, err)
	}

	if resp.TransactionID != "" {
		payment.TransactionID = &resp.TransactionID
		if err := s.store.SavePayment(ctx, payment); err != nil {
			return nil, err
		}
	}
	s.appendEvent(ctx, payment.ID, "provider_accepted", map[string]any{
		"transaction_id": resp.TransactionID,
		"status":         resp.Status,
	})

	return &InitiateResult{
		Payment:         payment,
		CheckoutURL:     resp.CheckoutURL,
		CustomerMessage: resp.Reason,
	}, nil
}

// recordInitiationFailure classifies an adapter error. A provider decline is
// final and fails the payment; a network failure leaves the outcome unknown,
// so the payment stays PENDING for a later poll rather than being marked
// FAILED.
func (s *PaymentService) recordInitiationFailure(ctx context.Context, payment *models.Payment, resp *gateways.Response, err error) error {
	ae, ok := apperr.As(err)
	if !ok {
		ae = apperr.Wrap(err, "payment initiation failed")
	}

	switch ae.Kind {
	case apperr.PaymentProvider:
		if resp != nil && resp.TransactionID != "" {
			payment.TransactionID = &resp.TransactionID
		}
		reason := ae.Message
		payment.FailureReason = &reason
		if applyErr := s.ApplyStatus(ctx, payment, models.PaymentFailed, "initiate", "", reason); applyErr != nil {
			log.Printf("failed to record declined payment %s: %v", payment.ID, applyErr)
		}
	case apperr.PaymentNetwork:
		s.appendEvent(ctx, payment.ID, "network_error", map[string]any{"error": ae.Message})
	default:
		s.appendEvent(ctx, payment.ID, "initiation_error", map[string]any{"error": ae.Message})
	}
	return ae
}

// PollStatus re-queries the rail for the stored transaction and applies the
// mapped status through the same transition function the reconciler uses.
func (s *PaymentService) PollStatus(ctx context.Context, paymentID uuid.UUID) (*models.Payment, error) {
	payment, err := s.store.GetPayment(ctx, paymentID)
	if err != nil {
		return nil, err
	}
	if payment.Status.IsTerminal() {
		return payment, nil
	}
	if !payment.Method.IsOnline() {
		return nil, apperr.ValidationErr("cash payments are confirmed by staff, not polled")
	}
	if payment.TransactionID == nil {
		return payment, nil
	}

	adapter, err := s.registry.Resolve(payment.Method)
	if err != nil {
		return nil, err
	}
	res, err := adapter.GetTransactionStatus(ctx, *payment.TransactionID)
	if err != nil {
		return nil, err
	}

	mapped := gateways.Canonical(res.Status)
	if mapped != payment.Status {
		if err := s.ApplyStatus(ctx, payment, mapped, "poll", res.ProviderTxnID, res.Message); err != nil {
			return nil, err
		}
	}
	return payment, nil
}

// ConfirmCashPayment is the staff action that settles an over-the-counter
// payment.
func (s *PaymentService) ConfirmCashPayment(ctx context.Context, paymentID, staffID uuid.UUID) (*models.Payment, error) {
	payment, err := s.store.GetPayment(ctx, paymentID)
	if err != nil {
		return nil, err
	}
	if payment.Method != models.MethodCash {
		return nil, apperr.ValidationErr("only cash payments are confirmed manually")
	}
	if payment.Status != models.PaymentPending {
		return nil, apperr.ConflictErr("payment is not pending")
	}
	if err := s.ApplyStatus(ctx, payment, models.PaymentCompleted, "manual:"+staffID.String(), "", "cash received"); err != nil {
		return nil, err
	}
	return payment, nil
}

// CreateTransferDifferencePayment creates the pending payment that gates an
// approved transfer's execution. The difference is collected manually (or by
// a later initiation), so no adapter is called here.
func (s *PaymentService) CreateTransferDifferencePayment(ctx context.Context, transfer *models.BookingTransfer) (*models.Payment, error) {
	transferID := transfer.ID
	payment := &models.Payment{
		BookingID:  transfer.BookingID,
		UserID:     transfer.UserID,
		TransferID: &transferID,
		Amount:     transfer.PriceDifference,
		Currency:   "KES",
		Method:     models.MethodCash,
		Purpose:    models.PurposeTransfer,
		Status:     models.PaymentPending,
		Reference:  utils.NewPaymentReference(),
	}
	if route, err := s.store.GetRoute(ctx, transfer.ToRouteID); err == nil {
		payment.Currency = route.Currency
	}
	if err := s.store.CreatePaymentIfVacant(ctx, payment); err != nil {
		return nil, err
	}
	s.appendEvent(ctx, payment.ID, "initiated", map[string]any{
		"transfer_id": transfer.ID,
		"amount":      payment.Amount,
	})
	return payment, nil
}

// RefundForTransfer flags the booking's settled payment REFUNDED and queues
// the money movement as a manual settlement task. Nothing here talks to a
// gateway; no rail-mediated refund exists.
func (s *PaymentService) RefundForTransfer(ctx context.Context, transfer *models.BookingTransfer, amount float64, staffID uuid.UUID) error {
	payment, err := s.store.GetBookingPayment(ctx, transfer.BookingID)
	if err != nil {
		return err
	}

	reason := "booking transfer price downgrade"
	payment.RefundAmount = &amount
	payment.RefundReason = &reason

	ev := &models.PaymentEvent{
		PaymentID: payment.ID,
		Type:      "status:" + string(models.PaymentRefunded),
		Payload:   eventPayload(map[string]any{"source": "transfer:" + transfer.ID.String(), "amount": amount, "staff_id": staffID}),
		At:        s.now(),
	}
	if err := s.store.TransitionPayment(ctx, payment, models.PaymentRefunded, ev); err != nil {
		return err
	}
	payment.Status = models.PaymentRefunded
	if s.feed != nil {
		s.feed.PaymentStatusChanged(payment.ID, payment.Status)
	}

	task := &models.RefundTask{
		PaymentID: payment.ID,
		Amount:    amount,
		Reason:    reason,
	}
	task.Status = models.RefundQueued
	if err := s.store.CreateRefundTask(ctx, task); err != nil {
		return err
	}
	return nil
}

// SettleRefundTask records that a staff member has moved the money back.
func (s *PaymentService) SettleRefundTask(ctx context.Context, taskID, staffID uuid.UUID) (*models.RefundTask, error) {
	task, err := s.store.GetRefundTask(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if task.Status != models.RefundQueued {
		return nil, apperr.ConflictErr("refund task is already settled")
	}
	now := s.now()
	task.Status = models.RefundSettled
	task.SettledBy = &staffID
	task.SettledAt = &now
	if err := s.store.SaveRefundTask(ctx, task); err != nil {
		return nil, err
	}
	s.appendEvent(ctx, task.PaymentID, "refund_settled", map[string]any{"task_id": task.ID, "staff_id": staffID})
	return task, nil
}

// ApplyStatus is the one place a payment status changes. It is idempotent
// (same target status is a no-op) and monotonic (terminal statuses never
// regress), and the storage layer re-checks the current status under the
// same transaction that appends the event, so a stale caller loses cleanly.
func (s *PaymentService) ApplyStatus(ctx context.Context, payment *models.Payment, to models.PaymentStatus, source, providerTxnID, message string) error {
	if payment.Status == to {
		return nil
	}
	if payment.Status.IsTerminal() {
		log.Printf("ignoring stale %s transition for payment %s: %s is terminal", to, payment.ID, payment.Status)
		return nil
	}

	if to == models.PaymentFailed && message != "" {
		reason := message
		payment.FailureReason = &reason
	}

	ev := &models.PaymentEvent{
		PaymentID: payment.ID,
		Type:      "status:" + string(to),
		Payload:   eventPayload(map[string]any{"source": source, "provider_txn_id": providerTxnID, "message": message}),
		At:        s.now(),
	}
	if err := s.store.TransitionPayment(ctx, payment, to, ev); err != nil {
		if apperr.IsKind(err, apperr.Conflict) {
			// Lost the race to a concurrent webhook or poll; the winner
			// already applied a transition.
			return nil
		}
		return err
	}
	payment.Status = to

	if s.feed != nil {
		s.feed.PaymentStatusChanged(payment.ID, to)
	}

	switch to {
	case models.PaymentCompleted:
		s.onCompleted(ctx, payment)
	case models.PaymentFailed:
		s.onFailed(ctx, payment, message)
	}
	return nil
}

func (s *PaymentService) onCompleted(ctx context.Context, payment *models.Payment) {
	if payment.TransferID != nil {
		if s.onTransferPaid == nil {
			log.Printf("no transfer executor wired; transfer %s stays approved", *payment.TransferID)
			return
		}
		if err := s.onTransferPaid(ctx, *payment.TransferID); err != nil {
			log.Printf("failed to execute paid transfer %s: %v", *payment.TransferID, err)
		}
		return
	}

	if err := s.store.UpdateBookingStatus(ctx, payment.BookingID, models.BookingPending, models.BookingConfirmed); err != nil {
		log.Printf("failed to confirm booking %s: %v", payment.BookingID, err)
		return
	}

	// Collaborator failures are logged, never propagated.
	go func(p models.Payment) {
		if err := s.tickets.Generate(context.Background(), p.BookingID); err != nil {
			log.Printf("ticket generation failed for booking %s: %v", p.BookingID, err)
		}
		txnID := ""
		if p.TransactionID != nil {
			txnID = *p.TransactionID
		}
		if err := s.notifier.SendPaymentConfirmation(p.UserID, p.BookingID, p.Amount, p.Method, txnID); err != nil {
			log.Printf("payment confirmation notification failed for booking %s: %v", p.BookingID, err)
		}
	}(*payment)
}

func (s *PaymentService) onFailed(ctx context.Context, payment *models.Payment, reason string) {
	if payment.Purpose == models.PurposeBooking {
		if err := s.store.UpdateBookingStatus(ctx, payment.BookingID, models.BookingPending, models.BookingCancelled); err != nil {
			log.Printf("failed to cancel booking %s: %v", payment.BookingID, err)
		}
	}
	go func(p models.Payment) {
		if err := s.notifier.SendPaymentFailed(p.UserID, p.BookingID, p.Amount, p.Method, reason); err != nil {
			log.Printf("payment failure notification failed for booking %s: %v", p.BookingID, err)
		}
	}(*payment)
}

func (s *PaymentService) appendEvent(ctx context.Context, paymentID uuid.UUID, kind string, payload map[string]any) {
	ev := &models.PaymentEvent{
		PaymentID: paymentID,
		Type:      kind,
		Payload:   eventPayload(payload),
		At:        s.now(),
	}
	if err := s.store.AppendPaymentEvent(ctx, ev); err != nil {
		log.Printf("failed to append %s event for payment %s: %v", kind, paymentID, err)
	}
}

func eventPayload(m map[string]any) string {
	b, err := json.Marshal(m)
	if err != nil {
		return "{}"
	}
	return string(b)
}
