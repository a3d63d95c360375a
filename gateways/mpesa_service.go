package gateways

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/wanjalasam/bus_booking/apperr"
)

// MpesaAdapter drives the MOBILE_MONEY_A rail: an M-Pesa STK push through the
// KCB Buni aggregator. The customer approves the charge on their handset, so
// the initiate call only ever yields PENDING or FAILED.
type MpesaAdapter struct {
	BaseURL       string
	TokenURL      string
	APIKey        string
	APISecret     string
	ShortCode     string
	RouteCode     string
	CallbackURL   string
	WebhookSecret string

	client *http.Client

	tokenMu     sync.RWMutex
	token       string
	tokenExpiry time.Time
}

type MpesaConfig struct {
	BaseURL       string
	TokenURL      string
	APIKey        string
	APISecret     string
	ShortCode     string
	RouteCode     string
	CallbackURL   string
	WebhookSecret string
}

func NewMpesaAdapter(cfg MpesaConfig) (*MpesaAdapter, error) {
	if cfg.APIKey == "" || cfg.APISecret == "" || cfg.ShortCode == "" || cfg.WebhookSecret == "" {
		return nil, apperr.ConfigErr("mpesa gateway credentials are not configured")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.buni.kcbgroup.com/mm/api/request/1.0.0"
	}
	if cfg.TokenURL == "" {
		cfg.TokenURL = "https://api.buni.kcbgroup.com/token?grant_type=client_credentials"
	}
	return &MpesaAdapter{
		BaseURL:       cfg.BaseURL,
		TokenURL:      cfg.TokenURL,
		APIKey:        cfg.APIKey,
		APISecret:     cfg.APISecret,
		ShortCode:     cfg.ShortCode,
		RouteCode:     cfg.RouteCode,
		CallbackURL:   cfg.CallbackURL,
		WebhookSecret: cfg.WebhookSecret,
		client:        &http.Client{Timeout: 30 * time.Second},
	}, nil
}

func (a *MpesaAdapter) Name() string { return "mpesa" }

var nonNumericRegex = regexp.MustCompile(`[^0-9]`)

// SanitizeMpesaNumber normalizes a Kenyan mobile number to the 2547XXXXXXXX
// shape the rail expects.
func SanitizeMpesaNumber(phone string) (string, error) {
	sanitized := nonNumericRegex.ReplaceAllString(phone, "")

	if (strings.HasPrefix(sanitized, "07") || strings.HasPrefix(sanitized, "01")) && len(sanitized) == 10 {
		return "254" + sanitized[1:], nil
	}
	if (strings.HasPrefix(sanitized, "7") || strings.HasPrefix(sanitized, "1")) && len(sanitized) == 9 {
		return "254" + sanitized, nil
	}
	if strings.HasPrefix(sanitized, "254") && len(sanitized) == 12 {
		return sanitized, nil
	}

	return "", errors.New("invalid M-Pesa phone number format")
}

func (a *MpesaAdapter) ValidatePhoneNumber(phone, country string) bool {
	_, err := SanitizeMpesaNumber(phone)
	return err == nil
}

type stkPushRequest struct {
	PhoneNumber            string `json:"phoneNumber"`
	Amount                 string `json:"amount"`
	InvoiceNumber          string `json:"invoiceNumber"`
	SharedShortCode        bool   `json:"sharedShortCode"`
	OrgShortCode           string `json:"orgShortCode"`
	CallbackURL            string `json:"callbackUrl"`
	TransactionDescription string `json:"transactionDescription"`
}

type stkPushResponse struct {
	Response struct {
		MerchantRequestID   string `json:"MerchantRequestID"`
		CheckoutRequestID   string `json:"CheckoutRequestID"`
		CustomerMessage     string `json:"CustomerMessage"`
		ResponseCode        string `json:"ResponseCode"`
		ResponseDescription string `json:"ResponseDescription"`
	} `json:"response"`
}

func (a *MpesaAdapter) RequestPayment(ctx context.Context, req Request) (*Response, error) {
	accessToken, err := a.accessToken(ctx)
	if err != nil {
		return nil, err
	}

	phone, err := SanitizeMpesaNumber(req.PhoneNumber)
	if err != nil {
		return nil, apperr.ValidationErr(err.Error())
	}

	payload := stkPushRequest{
		PhoneNumber:            phone,
		Amount:                 strconv.FormatFloat(req.Amount, 'f', 0, 64),
		InvoiceNumber:          fmt.Sprintf("%s-%s", a.ShortCode, req.Reference),
		SharedShortCode:        true,
		OrgShortCode:           a.ShortCode,
		CallbackURL:            a.CallbackURL,
		TransactionDescription: req.Description,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, apperr.Wrap(err, "failed to marshal STK payload")
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, a.BaseURL+"/stkpush", bytes.NewBuffer(body))
	if err != nil {
		return nil, apperr.Wrap(err, "failed to create STK request")
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("routeCode", a.RouteCode)
	httpReq.Header.Set("operation", "STKPush")
	httpReq.Header.Set("messageId", fmt.Sprintf("%s_%d", req.Reference, time.Now().UnixNano()))
	httpReq.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := a.client.Do(httpReq)
	if err != nil {
		return nil, apperr.NetworkErr("mpesa gateway unreachable", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, apperr.NetworkErr("failed to read STK response", err)
	}
	if resp.StatusCode != http.StatusOK {
		log.Printf("mpesa STK push returned %d: %s", resp.StatusCode, string(respBody))
		return nil, apperr.NetworkErr(fmt.Sprintf("mpesa gateway returned status %d", resp.StatusCode), nil)
	}

	var stk stkPushResponse
	if err := json.Unmarshal(respBody, &stk); err != nil {
		return nil, apperr.Wrap(err, "failed to unmarshal STK response")
	}

	if stk.Response.ResponseCode != "0" {
		return &Response{
			TransactionID: stk.Response.CheckoutRequestID,
			Status:        VendorFailed,
			Reason:        mpesaReason(stk.Response.ResponseCode),
		}, apperr.ProviderErr(mpesaReason(stk.Response.ResponseCode), nil)
	}

	return &Response{
		TransactionID: stk.Response.CheckoutRequestID,
		Status:        VendorPending,
		Reason:        stk.Response.CustomerMessage,
	}, nil
}

type mpesaQueryResponse struct {
	Response struct {
		ResultCode         string `json:"ResultCode"`
		ResultDesc         string `json:"ResultDesc"`
		MpesaReceiptNumber string `json:"MpesaReceiptNumber"`
	} `json:"response"`
}

func (a *MpesaAdapter) GetTransactionStatus(ctx context.Context, transactionID string) (*StatusResult, error) {
	accessToken, err := a.accessToken(ctx)
	if err != nil {
		return nil, err
	}

	url := fmt.Sprintf("%s/stkpush/status/%s", a.BaseURL, transactionID)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, apperr.Wrap(err, "failed to create status request")
	}
	httpReq.Header.Set("routeCode", a.RouteCode)
	httpReq.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := a.client.Do(httpReq)
	if err != nil {
		return nil, apperr.NetworkErr("mpesa gateway unreachable", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return &StatusResult{Status: VendorFailed, Message: "transaction not found or expired"}, nil
	}
	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, apperr.NetworkErr("failed to read status response", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, apperr.NetworkErr(fmt.Sprintf("mpesa status query returned %d", resp.StatusCode), nil)
	}

	var q mpesaQueryResponse
	if err := json.Unmarshal(respBody, &q); err != nil {
		return nil, apperr.Wrap(err, "failed to unmarshal status response")
	}

	return &StatusResult{
		Status:        a.MapVendorStatus(q.Response.ResultCode),
		ProviderTxnID: q.Response.MpesaReceiptNumber,
		Message:       q.Response.ResultDesc,
	}, nil
}

// mpesaStatusTable maps the rail's result codes onto the three-value status.
// Consumed identically by polling and by webhook reconciliation.
var mpesaStatusTable = map[string]VendorStatus{
	"0":    VendorSuccessful,
	"1001": VendorPending, // push delivered, awaiting PIN
	"1032": VendorFailed,  // cancelled by user
	"1037": VendorFailed,  // handset unreachable
	"2001": VendorFailed,  // wrong PIN or insufficient balance
	"1":    VendorFailed,
}

func (a *MpesaAdapter) MapVendorStatus(vendor string) VendorStatus {
	if s, ok := mpesaStatusTable[vendor]; ok {
		return s
	}
	return VendorPending
}

func mpesaReason(code string) string {
	switch code {
	case "1032":
		return "payment declined"
	case "1037":
		return "wallet not found"
	case "2001":
		return "insufficient balance"
	case "409":
		return "duplicate transaction"
	default:
		return "payment could not be processed"
	}
}

type mpesaWebhookPayload struct {
	Body struct {
		StkCallback struct {
			MerchantRequestID string `json:"MerchantRequestID"`
			CheckoutRequestID string `json:"CheckoutRequestID"`
			ResultCode        int    `json:"ResultCode"`
			ResultDesc        string `json:"ResultDesc"`
			CallbackMetadata  struct {
				Item []struct {
					Name  string      `json:"Name"`
					Value interface{} `json:"Value"`
				} `json:"Item"`
			} `json:"CallbackMetadata"`
		} `json:"stkCallback"`
	} `json:"Body"`
}

func (a *MpesaAdapter) ExtractWebhook(payload []byte) (*WebhookEvent, error) {
	var p mpesaWebhookPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return nil, apperr.ValidationErr("cannot parse mpesa webhook payload")
	}
	stk := p.Body.StkCallback
	if stk.CheckoutRequestID == "" {
		return nil, apperr.ValidationErr("mpesa webhook payload has no transaction id")
	}

	var receipt string
	for _, item := range stk.CallbackMetadata.Item {
		if item.Name == "MpesaReceiptNumber" {
			if v, ok := item.Value.(string); ok {
				receipt = v
			}
			break
		}
	}

	return &WebhookEvent{
		TransactionID: stk.CheckoutRequestID,
		VendorStatus:  strconv.Itoa(stk.ResultCode),
		ProviderTxnID: receipt,
	}, nil
}

func (a *MpesaAdapter) VerifyWebhookSignature(payload []byte, signature string) bool {
	return verifyHMAC(payload, signature, a.WebhookSecret)
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int    `json:"expires_in"`
}

// accessToken returns a cached bearer token, refreshing it under a write
// lock shortly before expiry.
func (a *MpesaAdapter) accessToken(ctx context.Context) (string, error) {
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

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.TokenURL, strings.NewReader("grant_type=client_credentials"))
	if err != nil {
		return "", apperr.Wrap(err, "failed to create token request")
	}
	req.SetBasicAuth(a.APIKey, a.APISecret)
	req.Header.Add("Content-Type", "application/x-www-form-urlencoded")

	resp, err := a.client.Do(req)
	if err != nil {
		return "", apperr.NetworkErr("mpesa token endpoint unreachable", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", apperr.NetworkErr(fmt.Sprintf("mpesa token endpoint returned %s", resp.Status), nil)
	}

	var tok tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tok); err != nil {
		return "", apperr.Wrap(err, "failed to decode token response")
	}

	a.token = tok.AccessToken
	a.tokenExpiry = time.Now().Add(time.Duration(tok.ExpiresIn-300) * time.Second)
	return a.token, nil
}
