package services

import (
	"context"
	"strconv"
	"testing"

	"github.com/google/uuid"
	"github.com/wanjalasam/bus_booking/apperr"
	"github.com/wanjalasam/bus_booking/gateways"
	"github.com/wanjalasam/bus_booking/models"
)

const mpesaWebhookSecret = "mpesa-webhook-secret"

func mpesaCallback(checkoutID string, resultCode int, receipt string) []byte {
	return []byte(`{"Body":{"stkCallback":{"MerchantRequestID":"mr-1","CheckoutRequestID":"` + checkoutID + `","ResultCode":` + strconv.Itoa(resultCode) + `,"ResultDesc":"done","CallbackMetadata":{"Item":[{"Name":"MpesaReceiptNumber","Value":"` + receipt + `"}]}}}}`)
}

func newTestReconciler(t *testing.T, store *fakeStore) (*ReconcileService, *PaymentService) {
	t.Helper()
	registry := newTestRegistry(t, "", "")
	payments := newTestPaymentService(t, store, registry)
	return NewReconcileService(store, registry, payments, fixedNow), payments
}

func seedWebhookPayment(store *fakeStore, txn string) (*models.Booking, *models.Payment) {
	userID := uuid.New()
	booking, _ := seedPendingBooking(store, userID)
	payment := store.addPayment(models.Payment{
		BookingID:     booking.ID,
		UserID:        userID,
		Method:        models.MethodMpesa,
		Purpose:       models.PurposeBooking,
		Status:        models.PaymentPending,
		Reference:     "BKP-WEBHOOK" + txn,
		TransactionID: &txn,
	})
	return booking, payment
}

func TestReconcileAppliesCompletion(t *testing.T) {
	store := newFakeStore()
	booking, payment := seedWebhookPayment(store, "ws_CO_100")
	svc, _ := newTestReconciler(t, store)

	payload := mpesaCallback("ws_CO_100", 0, "QDX100")
	sig := gateways.SignPayload(payload, mpesaWebhookSecret)

	res, err := svc.Reconcile(context.Background(), "mpesa", payload, sig)
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	if !res.Success {
		t.Error("result not marked success")
	}
	if res.Status != models.PaymentCompleted {
		t.Errorf("result status = %s, want COMPLETED", res.Status)
	}

	stored, _ := store.GetPayment(context.Background(), payment.ID)
	if stored.Status != models.PaymentCompleted {
		t.Errorf("payment status = %s, want COMPLETED", stored.Status)
	}
	gotBooking, _ := store.GetBooking(context.Background(), booking.ID)
	if gotBooking.Status != models.BookingConfirmed {
		t.Errorf("booking status = %s, want CONFIRMED", gotBooking.Status)
	}

	logs, _ := svc.Logs(context.Background(), payment.ID)
	if len(logs) != 1 {
		t.Fatalf("webhook logs = %d, want 1", len(logs))
	}
	if logs[0].Outcome != "applied COMPLETED" {
		t.Errorf("log outcome = %q", logs[0].Outcome)
	}
}

func TestReconcileReplayIsIdempotent(t *testing.T) {
	store := newFakeStore()
	_, payment := seedWebhookPayment(store, "ws_CO_101")
	svc, _ := newTestReconciler(t, store)

	payload := mpesaCallback("ws_CO_101", 0, "QDX101")
	sig := gateways.SignPayload(payload, mpesaWebhookSecret)

	if _, err := svc.Reconcile(context.Background(), "mpesa", payload, sig); err != nil {
		t.Fatalf("first delivery: %v", err)
	}
	eventsAfterFirst := len(store.eventTypes(payment.ID))

	res, err := svc.Reconcile(context.Background(), "mpesa", payload, sig)
	if err != nil {
		t.Fatalf("replay must succeed, got %v", err)
	}
	if !res.Success || res.Status != models.PaymentCompleted {
		t.Errorf("replay result = %+v", res)
	}
	if got := len(store.eventTypes(payment.ID)); got != eventsAfterFirst {
		t.Errorf("replay appended status events: %d -> %d", eventsAfterFirst, got)
	}
}

func TestReconcileFailureCancelsBooking(t *testing.T) {
	store := newFakeStore()
	booking, payment := seedWebhookPayment(store, "ws_CO_102")
	svc, _ := newTestReconciler(t, store)

	payload := mpesaCallback("ws_CO_102", 1032, "")
	sig := gateways.SignPayload(payload, mpesaWebhookSecret)

	res, err := svc.Reconcile(context.Background(), "mpesa", payload, sig)
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	if res.Status != models.PaymentFailed {
		t.Errorf("result status = %s, want FAILED", res.Status)
	}
	stored, _ := store.GetPayment(context.Background(), payment.ID)
	if stored.Status != models.PaymentFailed {
		t.Errorf("payment status = %s, want FAILED", stored.Status)
	}
	gotBooking, _ := store.GetBooking(context.Background(), booking.ID)
	if gotBooking.Status != models.BookingCancelled {
		t.Errorf("booking status = %s, want CANCELLED", gotBooking.Status)
	}
}

func TestReconcileUnknownTransaction(t *testing.T) {
	store := newFakeStore()
	svc, _ := newTestReconciler(t, store)

	payload := mpesaCallback("ws_CO_GHOST", 0, "QDXGHOST")
	sig := gateways.SignPayload(payload, mpesaWebhookSecret)

	_, err := svc.Reconcile(context.Background(), "mpesa", payload, sig)
	if !apperr.IsKind(err, apperr.NotFound) {
		t.Fatalf("err = %v, want NotFound", err)
	}
	if len(store.payments) != 0 {
		t.Error("unknown transaction must write no payment state")
	}
	if len(store.webhookLogs) != 1 {
		t.Errorf("webhook logs = %d, the attempt must still be audited", len(store.webhookLogs))
	}
}

func TestReconcileRejectsBadSignature(t *testing.T) {
	store := newFakeStore()
	_, payment := seedWebhookPayment(store, "ws_CO_103")
	svc, _ := newTestReconciler(t, store)

	payload := mpesaCallback("ws_CO_103", 0, "QDX103")

	_, err := svc.Reconcile(context.Background(), "mpesa", payload, "deadbeef")
	if !apperr.IsKind(err, apperr.Signature) {
		t.Fatalf("err = %v, want Signature", err)
	}
	stored, _ := store.GetPayment(context.Background(), payment.ID)
	if stored.Status != models.PaymentPending {
		t.Errorf("forged webhook changed payment status to %s", stored.Status)
	}
	if len(store.webhookLogs) != 1 || store.webhookLogs[0].Outcome != "signature rejected" {
		t.Errorf("expected one signature-rejected log, got %+v", store.webhookLogs)
	}
}

func TestReconcileUnknownGateway(t *testing.T) {
	store := newFakeStore()
	svc, _ := newTestReconciler(t, store)

	_, err := svc.Reconcile(context.Background(), "quickpay", []byte(`{}`), "sig")
	if !apperr.IsKind(err, apperr.Config) {
		t.Fatalf("err = %v, want Config", err)
	}
}
