package services

import (
	"context"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/wanjalasam/bus_booking/apperr"
	"github.com/wanjalasam/bus_booking/gateways"
	"github.com/wanjalasam/bus_booking/models"
)

// ReconcileService applies asynchronous gateway notifications to payment
// state. Webhook delivery is at-least-once and possibly out of order; the
// idempotency and monotonicity rules inside PaymentService.ApplyStatus are
// the only defense, so this service never mutates a payment directly.
type ReconcileService struct {
	store    Store
	registry *gateways.Registry
	payments *PaymentService
	now      func() time.Time
}

func NewReconcileService(store Store, registry *gateways.Registry, payments *PaymentService, now func() time.Time) *ReconcileService {
	if now == nil {
		now = time.Now
	}
	return &ReconcileService{store: store, registry: registry, payments: payments, now: now}
}

type ReconcileResult struct {
	Success   bool                 `json:"success"`
	PaymentID uuid.UUID            `json:"paymentId"`
	Status    models.PaymentStatus `json:"status"`
}

// Reconcile verifies, parses, and applies one inbound webhook.
func (s *ReconcileService) Reconcile(ctx context.Context, gateway string, rawPayload []byte, signature string) (*ReconcileResult, error) {
	adapter, err := s.registry.ResolveGateway(gateway)
	if err != nil {
		// A webhook for a rail we cannot serve is our misconfiguration,
		// not the caller's mistake.
		return nil, apperr.ConfigErr("gateway is not configured: " + gateway)
	}

	if !adapter.VerifyWebhookSignature(rawPayload, signature) {
		log.Printf("SECURITY: webhook signature verification failed for gateway %s", gateway)
		s.logWebhook(ctx, gateway, nil, rawPayload, "signature rejected")
		return nil, apperr.SignatureErr("invalid webhook signature")
	}

	event, err := adapter.ExtractWebhook(rawPayload)
	if err != nil {
		s.logWebhook(ctx, gateway, nil, rawPayload, "unparseable payload")
		return nil, err
	}

	payment, err := s.store.FindPaymentByTransaction(ctx, event.TransactionID)
	if err != nil {
		s.logWebhook(ctx, gateway, nil, rawPayload, "payment not found: "+event.TransactionID)
		return nil, err
	}

	// Providers that matched on our reference may carry a transaction id we
	// have not recorded yet.
	if payment.TransactionID == nil && event.TransactionID != payment.Reference {
		txn := event.TransactionID
		payment.TransactionID = &txn
		if err := s.store.SavePayment(ctx, payment); err != nil {
			log.Printf("failed to record transaction id on payment %s: %v", payment.ID, err)
		}
	}

	mapped := gateways.Canonical(adapter.MapVendorStatus(event.VendorStatus))
	if err := s.payments.ApplyStatus(ctx, payment, mapped, "webhook:"+gateway, event.ProviderTxnID, event.VendorStatus); err != nil {
		s.logWebhook(ctx, gateway, &payment.ID, rawPayload, "transition failed: "+err.Error())
		return nil, err
	}

	s.logWebhook(ctx, gateway, &payment.ID, rawPayload, "applied "+string(payment.Status))
	return &ReconcileResult{Success: true, PaymentID: payment.ID, Status: payment.Status}, nil
}

// logWebhook is best effort; reconciliation never fails because the audit
// insert did.
func (s *ReconcileService) logWebhook(ctx context.Context, gateway string, paymentID *uuid.UUID, payload []byte, outcome string) {
	entry := &models.WebhookLog{
		Gateway:   gateway,
		PaymentID: paymentID,
		Payload:   string(payload),
		Outcome:   outcome,
	}
	if err := s.store.CreateWebhookLog(ctx, entry); err != nil {
		log.Printf("failed to write webhook log for gateway %s: %v", gateway, err)
	}
}

// Logs returns the audit trail for one payment.
func (s *ReconcileService) Logs(ctx context.Context, paymentID uuid.UUID) ([]models.WebhookLog, error) {
	return s.store.ListWebhookLogs(ctx, paymentID)
}
