package gateways

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"

	"github.com/wanjalasam/bus_booking/models"
)

// Request is the standardized payment request every adapter accepts. Phone
// formatting and provider error vocabulary stay inside the adapter.
type Request struct {
	Amount      float64
	Currency    string
	Reference   string
	PhoneNumber string
	Description string
	Country     string
}

// VendorStatus is the three-value status shared by every rail.
type VendorStatus string

const (
	VendorPending    VendorStatus = "PENDING"
	VendorSuccessful VendorStatus = "SUCCESSFUL"
	VendorFailed     VendorStatus = "FAILED"
)

// Canonical converts the three-value vendor status to the payment status
// lattice. Both the polling path and the webhook path go through this one
// function.
func Canonical(v VendorStatus) models.PaymentStatus {
	switch v {
	case VendorSuccessful:
		return models.PaymentCompleted
	case VendorFailed:
		return models.PaymentFailed
	default:
		return models.PaymentPending
	}
}

type Response struct {
	TransactionID string
	Status        VendorStatus
	Reason        string
	CheckoutURL   string
}

type StatusResult struct {
	Status        VendorStatus
	ProviderTxnID string
	Message       string
}

// WebhookEvent is what a gateway-specific extractor pulls out of a raw
// notification body. VendorStatus is the provider's own vocabulary, still
// unmapped.
type WebhookEvent struct {
	TransactionID string
	VendorStatus  string
	ProviderTxnID string
}

// Adapter wraps one external payment rail. Adapters hold credentials but no
// payment state; their only side effect is the outbound HTTP call.
type Adapter interface {
	Name() string
	RequestPayment(ctx context.Context, req Request) (*Response, error)
	GetTransactionStatus(ctx context.Context, transactionID string) (*StatusResult, error)
	// VerifyWebhookSignature never returns an error; any internal failure
	// reads as false.
	VerifyWebhookSignature(payload []byte, signature string) bool
	// ExtractWebhook is a pure function of the raw body.
	ExtractWebhook(payload []byte) (*WebhookEvent, error)
	// MapVendorStatus resolves the provider's status vocabulary through the
	// adapter's canonical table.
	MapVendorStatus(vendor string) VendorStatus
}

// PhoneValidator is optionally implemented by adapters that can pre-validate
// a wallet number before charging it. Absence means "assume valid".
type PhoneValidator interface {
	ValidatePhoneNumber(phone, country string) bool
}

// verifyHMAC is the shared constant-time signature check. The signature is
// the hex HMAC-SHA256 of the raw payload under the gateway's shared secret.
func verifyHMAC(payload []byte, signature, secret string) bool {
	if secret == "" || signature == "" {
		return false
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(signature))
}

// SignPayload produces the signature verifyHMAC expects. Used by tests and
// by the mock webhook tool.
func SignPayload(payload []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}
