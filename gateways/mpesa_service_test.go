package gateways

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/wanjalasam/bus_booking/apperr"
)

func testMpesaConfig(baseURL string) MpesaConfig {
	return MpesaConfig{
		BaseURL:       baseURL,
		TokenURL:      baseURL + "/token",
		APIKey:        "key",
		APISecret:     "secret",
		ShortCode:     "174379",
		RouteCode:     "207",
		CallbackURL:   "https://example.test/webhooks/mpesa",
		WebhookSecret: "whsec",
	}
}

func TestSanitizeMpesaNumber(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"0712345678", "254712345678", false},
		{"0112345678", "254112345678", false},
		{"712345678", "254712345678", false},
		{"254712345678", "254712345678", false},
		{"+254 712 345 678", "254712345678", false},
		{"0712-345-678", "254712345678", false},
		{"12345", "", true},
		{"0812345678", "", true},
		{"", "", true},
	}
	for _, tt := range tests {
		got, err := SanitizeMpesaNumber(tt.in)
		if tt.wantErr {
			if err == nil {
				t.Errorf("SanitizeMpesaNumber(%q) = %q, want error", tt.in, got)
			}
			continue
		}
		if err != nil {
			t.Errorf("SanitizeMpesaNumber(%q) error: %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("SanitizeMpesaNumber(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestMpesaMapVendorStatus(t *testing.T) {
	a := &MpesaAdapter{}
	tests := []struct {
		code string
		want VendorStatus
	}{
		{"0", VendorSuccessful},
		{"1001", VendorPending},
		{"1032", VendorFailed},
		{"1037", VendorFailed},
		{"2001", VendorFailed},
		{"1", VendorFailed},
		{"somethingelse", VendorPending},
	}
	for _, tt := range tests {
		if got := a.MapVendorStatus(tt.code); got != tt.want {
			t.Errorf("MapVendorStatus(%q) = %s, want %s", tt.code, got, tt.want)
		}
	}
}

func TestMpesaExtractWebhook(t *testing.T) {
	a := &MpesaAdapter{}
	payload := []byte(`{"Body":{"stkCallback":{"MerchantRequestID":"mr","CheckoutRequestID":"ws_CO_1","ResultCode":0,"ResultDesc":"ok","CallbackMetadata":{"Item":[{"Name":"Amount","Value":3000},{"Name":"MpesaReceiptNumber","Value":"QDX1"}]}}}}`)

	ev, err := a.ExtractWebhook(payload)
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if ev.TransactionID != "ws_CO_1" {
		t.Errorf("transaction id = %q", ev.TransactionID)
	}
	if ev.VendorStatus != "0" {
		t.Errorf("vendor status = %q", ev.VendorStatus)
	}
	if ev.ProviderTxnID != "QDX1" {
		t.Errorf("provider txn id = %q", ev.ProviderTxnID)
	}

	if _, err := a.ExtractWebhook([]byte(`{"Body":{}}`)); !apperr.IsKind(err, apperr.Validation) {
		t.Errorf("missing checkout id err = %v, want Validation", err)
	}
	if _, err := a.ExtractWebhook([]byte(`not-json`)); !apperr.IsKind(err, apperr.Validation) {
		t.Errorf("garbage payload err = %v, want Validation", err)
	}
}

func TestMpesaWebhookSignature(t *testing.T) {
	a := &MpesaAdapter{WebhookSecret: "whsec"}
	payload := []byte(`{"Body":{}}`)

	if !a.VerifyWebhookSignature(payload, SignPayload(payload, "whsec")) {
		t.Error("valid signature rejected")
	}
	if a.VerifyWebhookSignature(payload, SignPayload(payload, "wrong-secret")) {
		t.Error("signature under the wrong secret accepted")
	}
	if a.VerifyWebhookSignature(payload, "") {
		t.Error("empty signature accepted")
	}
	if (&MpesaAdapter{}).VerifyWebhookSignature(payload, SignPayload(payload, "")) {
		t.Error("adapter without a secret accepted a signature")
	}
}

func TestMpesaStatusNotFoundReadsAsFailed(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"access_token": "tok", "expires_in": 3600})
	})
	mux.HandleFunc("/stkpush/status/", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	a, err := NewMpesaAdapter(testMpesaConfig(server.URL))
	if err != nil {
		t.Fatal(err)
	}

	res, err := a.GetTransactionStatus(context.Background(), "ws_CO_gone")
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if res.Status != VendorFailed {
		t.Errorf("status = %s, want FAILED for an expired transaction", res.Status)
	}
	if res.Message != "transaction not found or expired" {
		t.Errorf("message = %q", res.Message)
	}
}

func TestMpesaRequestPaymentDeclineReturnsProviderErr(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"access_token": "tok", "expires_in": 3600})
	})
	mux.HandleFunc("/stkpush", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"response": map[string]any{
			"CheckoutRequestID": "ws_CO_declined",
			"ResponseCode":      "2001",
		}})
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	a, err := NewMpesaAdapter(testMpesaConfig(server.URL))
	if err != nil {
		t.Fatal(err)
	}

	resp, err := a.RequestPayment(context.Background(), Request{
		Amount: 3000, Currency: "KES", Reference: "BKP-DECLINE", PhoneNumber: "0712345678", Country: "KE",
	})
	if !apperr.IsKind(err, apperr.PaymentProvider) {
		t.Fatalf("err = %v, want PaymentProvider", err)
	}
	if resp == nil || resp.TransactionID != "ws_CO_declined" {
		t.Errorf("declined response must still carry the transaction id, got %+v", resp)
	}
	if resp.Reason != "insufficient balance" {
		t.Errorf("reason = %q, want %q", resp.Reason, "insufficient balance")
	}
}

func TestMpesaTokenIsCached(t *testing.T) {
	var tokenCalls int
	mux := http.NewServeMux()
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		tokenCalls++
		json.NewEncoder(w).Encode(map[string]any{"access_token": "tok", "expires_in": 3600})
	})
	mux.HandleFunc("/stkpush/status/", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"response": map[string]any{"ResultCode": "1001"}})
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	a, err := NewMpesaAdapter(testMpesaConfig(server.URL))
	if err != nil {
		t.Fatal(err)
	}

	for i := 0; i < 3; i++ {
		if _, err := a.GetTransactionStatus(context.Background(), "ws_CO_1"); err != nil {
			t.Fatalf("status call %d: %v", i, err)
		}
	}
	if tokenCalls != 1 {
		t.Errorf("token endpoint hit %d times, want 1", tokenCalls)
	}
}
