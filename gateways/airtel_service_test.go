package gateways

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/wanjalasam/bus_booking/apperr"
)

func TestSanitizeAirtelNumber(t *testing.T) {
	tests := []struct {
		phone   string
		country string
		want    string
		wantErr bool
	}{
		{"0733123456", "KE", "733123456", false},
		{"254733123456", "KE", "733123456", false},
		{"+254 733 123 456", "KE", "733123456", false},
		{"733123456", "KE", "733123456", false},
		{"256700123456", "UG", "700123456", false},
		{"12345", "KE", "", true},
		{"", "KE", "", true},
	}
	for _, tt := range tests {
		got, err := sanitizeAirtelNumber(tt.phone, tt.country)
		if tt.wantErr {
			if err == nil {
				t.Errorf("sanitizeAirtelNumber(%q, %q) = %q, want error", tt.phone, tt.country, got)
			}
			continue
		}
		if err != nil {
			t.Errorf("sanitizeAirtelNumber(%q, %q) error: %v", tt.phone, tt.country, err)
			continue
		}
		if got != tt.want {
			t.Errorf("sanitizeAirtelNumber(%q, %q) = %q, want %q", tt.phone, tt.country, got, tt.want)
		}
	}
}

func TestAirtelMapVendorStatus(t *testing.T) {
	a := &AirtelAdapter{}
	tests := []struct {
		code string
		want VendorStatus
	}{
		{"TS", VendorSuccessful},
		{"TF", VendorFailed},
		{"TA", VendorPending},
		{"TIP", VendorPending},
		{"ts", VendorSuccessful}, // case-insensitive
		{"XYZ", VendorPending},
	}
	for _, tt := range tests {
		if got := a.MapVendorStatus(tt.code); got != tt.want {
			t.Errorf("MapVendorStatus(%q) = %s, want %s", tt.code, got, tt.want)
		}
	}
}

func TestAirtelExtractWebhook(t *testing.T) {
	a := &AirtelAdapter{}
	payload := []byte(`{"transaction":{"id":"BKP-AIR1","message":"Paid","status_code":"TS","airtel_money_id":"AM-991"}}`)

	ev, err := a.ExtractWebhook(payload)
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if ev.TransactionID != "BKP-AIR1" || ev.VendorStatus != "TS" || ev.ProviderTxnID != "AM-991" {
		t.Errorf("event = %+v", ev)
	}

	if _, err := a.ExtractWebhook([]byte(`{"transaction":{}}`)); !apperr.IsKind(err, apperr.Validation) {
		t.Errorf("missing transaction id err = %v, want Validation", err)
	}
}

func airtelTestServer(t *testing.T, payments http.HandlerFunc) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/auth/oauth2/token", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"access_token": "tok", "expires_in": 3600})
	})
	if payments != nil {
		mux.HandleFunc("/merchant/v1/payments/", payments)
	}
	return httptest.NewServer(mux)
}

func TestAirtelRequestPayment(t *testing.T) {
	server := airtelTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		var body airtelPaymentRequest
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decoding request body: %v", err)
		}
		if body.Subscriber.MSISDN != "733123456" {
			t.Errorf("msisdn = %q, want stripped subscriber number", body.Subscriber.MSISDN)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"data":   map[string]any{"transaction": map[string]any{"id": body.Reference, "status": "TIP"}},
			"status": map[string]any{"success": true, "code": "200"},
		})
	})
	defer server.Close()

	a, err := NewAirtelAdapter(AirtelConfig{
		BaseURL: server.URL, ClientID: "id", ClientSecret: "secret", WebhookSecret: "whsec",
	})
	if err != nil {
		t.Fatal(err)
	}

	resp, err := a.RequestPayment(context.Background(), Request{
		Amount: 2500, Currency: "KES", Reference: "BKP-AIR2", PhoneNumber: "0733123456", Country: "KE",
	})
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	if resp.TransactionID != "BKP-AIR2" {
		t.Errorf("transaction id = %q", resp.TransactionID)
	}
	if resp.Status != VendorPending {
		t.Errorf("status = %s, want PENDING for TIP", resp.Status)
	}
}

func TestAirtelRequestPaymentProviderFailure(t *testing.T) {
	server := airtelTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"data":   map[string]any{"transaction": map[string]any{"id": "BKP-AIR3"}},
			"status": map[string]any{"success": false, "result_code": "ESB000011"},
		})
	})
	defer server.Close()

	a, err := NewAirtelAdapter(AirtelConfig{
		BaseURL: server.URL, ClientID: "id", ClientSecret: "secret", WebhookSecret: "whsec",
	})
	if err != nil {
		t.Fatal(err)
	}

	resp, err := a.RequestPayment(context.Background(), Request{
		Amount: 2500, Currency: "KES", Reference: "BKP-AIR3", PhoneNumber: "0733123456", Country: "KE",
	})
	if !apperr.IsKind(err, apperr.PaymentProvider) {
		t.Fatalf("err = %v, want PaymentProvider", err)
	}
	if resp == nil || resp.Reason != "insufficient balance" {
		t.Errorf("response = %+v, want insufficient balance reason", resp)
	}
}

func TestAirtelStatusNotFoundReadsAsFailed(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/auth/oauth2/token", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"access_token": "tok", "expires_in": 3600})
	})
	mux.HandleFunc("/standard/v1/payments/", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	a, err := NewAirtelAdapter(AirtelConfig{
		BaseURL: server.URL, ClientID: "id", ClientSecret: "secret", WebhookSecret: "whsec",
	})
	if err != nil {
		t.Fatal(err)
	}

	res, err := a.GetTransactionStatus(context.Background(), "BKP-GONE")
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if res.Status != VendorFailed || res.Message != "transaction not found or expired" {
		t.Errorf("result = %+v", res)
	}
}
