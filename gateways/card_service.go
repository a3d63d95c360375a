package gateways

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/wanjalasam/bus_booking/apperr"
)

// CardAdapter drives the hosted card checkout rail. Initiation returns a
// checkout URL the customer is redirected to; the outcome arrives later on
// the webhook or through the verify endpoint.
type CardAdapter struct {
	BaseURL       string
	SecretKey     string
	CallbackURL   string
	WebhookSecret string

	client *http.Client
}

type CardConfig struct {
	BaseURL       string
	SecretKey     string
	CallbackURL   string
	WebhookSecret string
}

func NewCardAdapter(cfg CardConfig) (*CardAdapter, error) {
	if cfg.SecretKey == "" || cfg.WebhookSecret == "" {
		return nil, apperr.ConfigErr("card gateway credentials are not configured")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.paystack.co"
	}
	return &CardAdapter{
		BaseURL:       cfg.BaseURL,
		SecretKey:     cfg.SecretKey,
		CallbackURL:   cfg.CallbackURL,
		WebhookSecret: cfg.WebhookSecret,
		client:        &http.Client{Timeout: 30 * time.Second},
	}, nil
}

func (a *CardAdapter) Name() string { return "card" }

type cardInitRequest struct {
	Amount      int64  `json:"amount"` // minor units
	Currency    string `json:"currency"`
	Reference   string `json:"reference"`
	CallbackURL string `json:"callback_url"`
	Description string `json:"description"`
}

type cardInitResponse struct {
	Status  bool   `json:"status"`
	Message string `json:"message"`
	Data    struct {
		AuthorizationURL string `json:"authorization_url"`
		AccessCode       string `json:"access_code"`
		Reference        string `json:"reference"`
	} `json:"data"`
}

func (a *CardAdapter) RequestPayment(ctx context.Context, req Request) (*Response, error) {
	payload := cardInitRequest{
		Amount:      int64(req.Amount * 100),
		Currency:    req.Currency,
		Reference:   req.Reference,
		CallbackURL: a.CallbackURL,
		Description: req.Description,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, apperr.Wrap(err, "failed to marshal card init payload")
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, a.BaseURL+"/transaction/initialize", bytes.NewBuffer(body))
	if err != nil {
		return nil, apperr.Wrap(err, "failed to create card init request")
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+a.SecretKey)

	resp, err := a.client.Do(httpReq)
	if err != nil {
		return nil, apperr.NetworkErr("card gateway unreachable", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, apperr.NetworkErr("failed to read card init response", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, apperr.NetworkErr(fmt.Sprintf("card gateway returned status %d", resp.StatusCode), nil)
	}

	var out cardInitResponse
	if err := json.Unmarshal(respBody, &out); err != nil {
		return nil, apperr.Wrap(err, "failed to unmarshal card init response")
	}
	if !out.Status {
		return nil, apperr.ProviderErr(cardReason(out.Message), nil)
	}

	return &Response{
		TransactionID: out.Data.Reference,
		Status:        VendorPending,
		CheckoutURL:   out.Data.AuthorizationURL,
	}, nil
}

type cardVerifyResponse struct {
	Status bool `json:"status"`
	Data   struct {
		ID             int64  `json:"id"`
		Status         string `json:"status"`
		Reference      string `json:"reference"`
		GatewayMessage string `json:"gateway_response"`
	} `json:"data"`
}

func (a *CardAdapter) GetTransactionStatus(ctx context.Context, transactionID string) (*StatusResult, error) {
	url := fmt.Sprintf("%s/transaction/verify/%s", a.BaseURL, transactionID)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, apperr.Wrap(err, "failed to create card verify request")
	}
	httpReq.Header.Set("Authorization", "Bearer "+a.SecretKey)

	resp, err := a.client.Do(httpReq)
	if err != nil {
		return nil, apperr.NetworkErr("card gateway unreachable", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return &StatusResult{Status: VendorFailed, Message: "transaction not found or expired"}, nil
	}
	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, apperr.NetworkErr("failed to read card verify response", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, apperr.NetworkErr(fmt.Sprintf("card verify returned %d", resp.StatusCode), nil)
	}

	var out cardVerifyResponse
	if err := json.Unmarshal(respBody, &out); err != nil {
		return nil, apperr.Wrap(err, "failed to unmarshal card verify response")
	}

	return &StatusResult{
		Status:        a.MapVendorStatus(out.Data.Status),
		ProviderTxnID: fmt.Sprintf("%d", out.Data.ID),
		Message:       out.Data.GatewayMessage,
	}, nil
}

var cardStatusTable = map[string]VendorStatus{
	"success":   VendorSuccessful,
	"failed":    VendorFailed,
	"abandoned": VendorFailed,
	"reversed":  VendorFailed,
	"pending":   VendorPending,
	"ongoing":   VendorPending,
}

func (a *CardAdapter) MapVendorStatus(vendor string) VendorStatus {
	if s, ok := cardStatusTable[vendor]; ok {
		return s
	}
	return VendorPending
}

func cardReason(message string) string {
	switch message {
	case "Duplicate Transaction Reference":
		return "duplicate transaction"
	case "Insufficient Funds":
		return "insufficient balance"
	default:
		return "payment declined"
	}
}

type cardWebhookPayload struct {
	Event string `json:"event"`
	Data  struct {
		ID        int64  `json:"id"`
		Status    string `json:"status"`
		Reference string `json:"reference"`
	} `json:"data"`
}

func (a *CardAdapter) ExtractWebhook(payload []byte) (*WebhookEvent, error) {
	var p cardWebhookPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return nil, apperr.ValidationErr("cannot parse card webhook payload")
	}
	if p.Data.Reference == "" {
		return nil, apperr.ValidationErr("card webhook payload has no transaction reference")
	}
	return &WebhookEvent{
		TransactionID: p.Data.Reference,
		VendorStatus:  p.Data.Status,
		ProviderTxnID: fmt.Sprintf("%d", p.Data.ID),
	}, nil
}

func (a *CardAdapter) VerifyWebhookSignature(payload []byte, signature string) bool {
	return verifyHMAC(payload, signature, a.WebhookSecret)
}
