package gateways

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/wanjalasam/bus_booking/apperr"
)

// AirtelAdapter drives the MOBILE_MONEY_B rail (Airtel Money collections).
// Airtel wants the subscriber number without the country prefix in the
// request body and the country/currency pair alongside it.
type AirtelAdapter struct {
	BaseURL       string
	ClientID      string
	ClientSecret  string
	WebhookSecret string

	client *http.Client

	tokenMu     sync.RWMutex
	token       string
	tokenExpiry time.Time
}

type AirtelConfig struct {
	BaseURL       string
	ClientID      string
	ClientSecret  string
	WebhookSecret string
}

func NewAirtelAdapter(cfg AirtelConfig) (*AirtelAdapter, error) {
	if cfg.ClientID == "" || cfg.ClientSecret == "" || cfg.WebhookSecret == "" {
		return nil, apperr.ConfigErr("airtel gateway credentials are not configured")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://openapi.airtel.africa"
	}
	return &AirtelAdapter{
		BaseURL:       cfg.BaseURL,
		ClientID:      cfg.ClientID,
		ClientSecret:  cfg.ClientSecret,
		WebhookSecret: cfg.WebhookSecret,
		client:        &http.Client{Timeout: 30 * time.Second},
	}, nil
}

func (a *AirtelAdapter) Name() string { return "airtel" }

// sanitizeAirtelNumber strips the country prefix: Airtel expects the bare
// subscriber number, e.g. 733123456 for a Kenyan line.
func sanitizeAirtelNumber(phone, country string) (string, error) {
	sanitized := nonNumericRegex.ReplaceAllString(phone, "")
	prefix := countryDialPrefix(country)

	if strings.HasPrefix(sanitized, prefix) {
		sanitized = sanitized[len(prefix):]
	}
	if strings.HasPrefix(sanitized, "0") {
		sanitized = sanitized[1:]
	}
	if len(sanitized) != 9 {
		return "", fmt.Errorf("invalid Airtel Money phone number")
	}
	return sanitized, nil
}

func countryDialPrefix(country string) string {
	switch strings.ToUpper(country) {
	case "UG":
		return "256"
	case "TZ":
		return "255"
	default:
		return "254"
	}
}

func (a *AirtelAdapter) ValidatePhoneNumber(phone, country string) bool {
	_, err := sanitizeAirtelNumber(phone, country)
	return err == nil
}

type airtelPaymentRequest struct {
	Reference  string `json:"reference"`
	Subscriber struct {
		Country  string `json:"country"`
		Currency string `json:"currency"`
		MSISDN   string `json:"msisdn"`
	} `json:"subscriber"`
	Transaction struct {
		Amount   float64 `json:"amount"`
		Country  string  `json:"country"`
		Currency string  `json:"currency"`
		ID       string  `json:"id"`
	} `json:"transaction"`
}

type airtelPaymentResponse struct {
	Data struct {
		Transaction struct {
			ID     string `json:"id"`
			Status string `json:"status"`
		} `json:"transaction"`
	} `json:"data"`
	Status struct {
		Code       string `json:"code"`
		Message    string `json:"message"`
		ResultCode string `json:"result_code"`
		Success    bool   `json:"success"`
	} `json:"status"`
}

func (a *AirtelAdapter) RequestPayment(ctx context.Context, req Request) (*Response, error) {
	token, err := a.accessToken(ctx)
	if err != nil {
		return nil, err
	}

	msisdn, err := sanitizeAirtelNumber(req.PhoneNumber, req.Country)
	if err != nil {
		return nil, apperr.ValidationErr(err.Error())
	}

	var payload airtelPaymentRequest
	payload.Reference = req.Reference
	payload.Subscriber.Country = strings.ToUpper(req.Country)
	payload.Subscriber.Currency = req.Currency
	payload.Subscriber.MSISDN = msisdn
	payload.Transaction.Amount = req.Amount
	payload.Transaction.Country = strings.ToUpper(req.Country)
	payload.Transaction.Currency = req.Currency
	payload.Transaction.ID = req.Reference

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, apperr.Wrap(err, "failed to marshal airtel payload")
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, a.BaseURL+"/merchant/v1/payments/", bytes.NewBuffer(body))
	if err != nil {
		return nil, apperr.Wrap(err, "failed to create airtel request")
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("X-Country", strings.ToUpper(req.Country))
	httpReq.Header.Set("X-Currency", req.Currency)
	httpReq.Header.Set("Authorization", "Bearer "+token)

	resp, err := a.client.Do(httpReq)
	if err != nil {
		return nil, apperr.NetworkErr("airtel gateway unreachable", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, apperr.NetworkErr("failed to read airtel response", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, apperr.NetworkErr(fmt.Sprintf("airtel gateway returned status %d", resp.StatusCode), nil)
	}

	var out airtelPaymentResponse
	if err := json.Unmarshal(respBody, &out); err != nil {
		return nil, apperr.Wrap(err, "failed to unmarshal airtel response")
	}

	if !out.Status.Success {
		reason := airtelReason(out.Status.ResultCode)
		return &Response{
			TransactionID: out.Data.Transaction.ID,
			Status:        VendorFailed,
			Reason:        reason,
		}, apperr.ProviderErr(reason, nil)
	}

	return &Response{
		TransactionID: out.Data.Transaction.ID,
		Status:        a.MapVendorStatus(out.Data.Transaction.Status),
	}, nil
}

func (a *AirtelAdapter) GetTransactionStatus(ctx context.Context, transactionID string) (*StatusResult, error) {
	token, err := a.accessToken(ctx)
	if err != nil {
		return nil, err
	}

	url := fmt.Sprintf("%s/standard/v1/payments/%s", a.BaseURL, transactionID)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, apperr.Wrap(err, "failed to create airtel status request")
	}
	httpReq.Header.Set("Authorization", "Bearer "+token)

	resp, err := a.client.Do(httpReq)
	if err != nil {
		return nil, apperr.NetworkErr("airtel gateway unreachable", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return &StatusResult{Status: VendorFailed, Message: "transaction not found or expired"}, nil
	}
	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, apperr.NetworkErr("failed to read airtel status response", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, apperr.NetworkErr(fmt.Sprintf("airtel status query returned %d", resp.StatusCode), nil)
	}

	var out airtelPaymentResponse
	if err := json.Unmarshal(respBody, &out); err != nil {
		return nil, apperr.Wrap(err, "failed to unmarshal airtel status response")
	}

	return &StatusResult{
		Status:        a.MapVendorStatus(out.Data.Transaction.Status),
		ProviderTxnID: out.Data.Transaction.ID,
		Message:       out.Status.Message,
	}, nil
}

// airtelStatusTable maps Airtel's transaction status vocabulary. TA
// (ambiguous) stays pending so a later poll or webhook settles it.
var airtelStatusTable = map[string]VendorStatus{
	"TS":  VendorSuccessful,
	"TF":  VendorFailed,
	"TA":  VendorPending,
	"TIP": VendorPending,
}

func (a *AirtelAdapter) MapVendorStatus(vendor string) VendorStatus {
	if s, ok := airtelStatusTable[strings.ToUpper(vendor)]; ok {
		return s
	}
	return VendorPending
}

func airtelReason(resultCode string) string {
	switch resultCode {
	case "ESB000008":
		return "wallet not found"
	case "ESB000011":
		return "insufficient balance"
	case "ESB000033":
		return "duplicate transaction"
	default:
		return "payment could not be processed"
	}
}

type airtelWebhookPayload struct {
	Transaction struct {
		ID            string `json:"id"`
		Message       string `json:"message"`
		StatusCode    string `json:"status_code"`
		AirtelMoneyID string `json:"airtel_money_id"`
	} `json:"transaction"`
}

func (a *AirtelAdapter) ExtractWebhook(payload []byte) (*WebhookEvent, error) {
	var p airtelWebhookPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return nil, apperr.ValidationErr("cannot parse airtel webhook payload")
	}
	if p.Transaction.ID == "" {
		return nil, apperr.ValidationErr("airtel webhook payload has no transaction id")
	}
	return &WebhookEvent{
		TransactionID: p.Transaction.ID,
		VendorStatus:  p.Transaction.StatusCode,
		ProviderTxnID: p.Transaction.AirtelMoneyID,
	}, nil
}

func (a *AirtelAdapter) VerifyWebhookSignature(payload []byte, signature string) bool {
	return verifyHMAC(payload, signature, a.WebhookSecret)
}

func (a *AirtelAdapter) accessToken(ctx context.Context) (string, error) {
	a.tokenMu.RLock()
	if a.token != "" && time.Now().Before(a.tokenExpiry) {
		token := a.token
		a.tokenMu.RUnlock()
		return token, nil
	}
	a.tokenMu.RUnlock()

	a.tokenMu.Lock()
	defer a.tokenMu.Unlock()

	if a.token != "" && time.Now().Before(a.tokenExpiry) {
		return a.token, nil
	}

	body, _ := json.Marshal(map[string]string{
		"client_id":     a.ClientID,
		"client_secret": a.ClientSecret,
		"grant_type":    "client_credentials",
	})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.BaseURL+"/auth/oauth2/token", bytes.NewBuffer(body))
	if err != nil {
		return "", apperr.Wrap(err, "failed to create airtel token request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return "", apperr.NetworkErr("airtel token endpoint unreachable", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", apperr.NetworkErr(fmt.Sprintf("airtel token endpoint returned %s", resp.Status), nil)
	}

	var tok tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tok); err != nil {
		return "", apperr.Wrap(err, "failed to decode airtel token response")
	}

	a.token = tok.AccessToken
	a.tokenExpiry = time.Now().Add(time.Duration(tok.ExpiresIn-300) * time.Second)
	return a.token, nil
}
