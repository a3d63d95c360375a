package gateways

import (
	"context"

	"github.com/wanjalasam/bus_booking/apperr"
)

// CashAdapter covers over-the-counter payments. There is no external rail:
// initiation yields PENDING and a staff member confirms receipt manually, so
// every other operation on this adapter is a programming error.
type CashAdapter struct{}

func NewCashAdapter() *CashAdapter { return &CashAdapter{} }

func (a *CashAdapter) Name() string { return "cash" }

func (a *CashAdapter) RequestPayment(ctx context.Context, req Request) (*Response, error) {
	return &Response{TransactionID: req.Reference, Status: VendorPending}, nil
}

func (a *CashAdapter) GetTransactionStatus(ctx context.Context, transactionID string) (*StatusResult, error) {
	return nil, apperr.ValidationErr("cash payments have no remote status")
}

func (a *CashAdapter) VerifyWebhookSignature(payload []byte, signature string) bool {
	return false
}

func (a *CashAdapter) ExtractWebhook(payload []byte) (*WebhookEvent, error) {
	return nil, apperr.ValidationErr("cash payments have no webhooks")
}

func (a *CashAdapter) MapVendorStatus(vendor string) VendorStatus {
	return VendorPending
}
