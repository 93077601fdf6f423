package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/paygate-sk/tatrapay/provider"
	"github.com/paygate-sk/tatrapay/store"
)

// fakeGateway is a scripted PaymentProvider for handler tests
type fakeGateway struct {
	createCalls int
	statusCalls int

	lastCreateReq provider.PaymentRequest
	lastStatusReq provider.GetPaymentStatusRequest

	createResp *provider.PaymentResponse
	createErr  error
	statusResp *provider.PaymentStatusResponse
	statusErr  error
}

func (f *fakeGateway) Initialize(map[string]string) error { return nil }

func (f *fakeGateway) CreatePayment(_ context.Context, req provider.PaymentRequest) (*provider.PaymentResponse, error) {
	f.createCalls++
	f.lastCreateReq = req
	return f.createResp, f.createErr
}

func (f *fakeGateway) GetPaymentStatus(_ context.Context, req provider.GetPaymentStatusRequest) (*provider.PaymentStatusResponse, error) {
	f.statusCalls++
	f.lastStatusReq = req
	return f.statusResp, f.statusErr
}

func (f *fakeGateway) GetAvailablePaymentMethods(context.Context) ([]provider.PaymentMethodInfo, error) {
	return nil, nil
}

const testAppURL = "https://shop.example.com"

func newTestHandler(gateway *fakeGateway, payments store.PaymentStore) *PaymentHandler {
	if payments == nil {
		payments = store.NewMemoryStore()
	}
	return NewPaymentHandler(gateway, payments, validator.New(), testAppURL, nil)
}

func TestCreatePayment(t *testing.T) {
	gateway := &fakeGateway{
		createResp: &provider.PaymentResponse{
			PaymentID:   "pay-1",
			Status:      provider.StatusPending,
			Method:      provider.MethodCardPay,
			RedirectURL: "https://pay.tatrabanka.sk/pay-1",
			CreatedAt:   time.Now().UTC(),
		},
	}
	payments := store.NewMemoryStore()
	h := newTestHandler(gateway, payments)

	body := `{"orderId":"ORDER-1","method":"CARD_PAY","amount":7900,"email":"jan@example.com","name":"Jan Novak"}`
	req := httptest.NewRequest(http.MethodPost, "https://gw.example.com/api/payment/create", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()

	h.CreatePayment(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}

	var resp struct {
		Success bool `json:"success"`
		Data    struct {
			PaymentID   string `json:"paymentId"`
			RedirectURL string `json:"redirectUrl"`
		} `json:"data"`
	}
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("response decode error: %v", err)
	}
	if !resp.Success || resp.Data.PaymentID != "pay-1" || resp.Data.RedirectURL == "" {
		t.Errorf("unexpected response: %+v", resp)
	}

	if gateway.lastCreateReq.Currency != "EUR" {
		t.Errorf("currency = %q, want default EUR", gateway.lastCreateReq.Currency)
	}
	if !strings.Contains(gateway.lastCreateReq.ReturnURL, "/api/payment/callback?orderId=ORDER-1") {
		t.Errorf("ReturnURL = %q", gateway.lastCreateReq.ReturnURL)
	}
	if !strings.HasSuffix(gateway.lastCreateReq.NotificationURL, "/api/payment/webhook") {
		t.Errorf("NotificationURL = %q", gateway.lastCreateReq.NotificationURL)
	}
	if gateway.lastCreateReq.ClientIP == "" {
		t.Error("ClientIP must be populated")
	}

	paymentID, err := payments.LookupPaymentID(context.Background(), "ORDER-1")
	if err != nil || paymentID != "pay-1" {
		t.Errorf("stored mapping = (%q, %v), want (pay-1, nil)", paymentID, err)
	}
}

func TestCreatePaymentValidation(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"malformed json", `{"orderId":`},
		{"missing order id", `{"method":"CARD_PAY","amount":100,"email":"a@b.com"}`},
		{"unknown method", `{"orderId":"O1","method":"WALLET","amount":100,"email":"a@b.com"}`},
		{"zero amount", `{"orderId":"O1","method":"CARD_PAY","amount":0,"email":"a@b.com"}`},
		{"invalid email", `{"orderId":"O1","method":"CARD_PAY","amount":100,"email":"nope"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gateway := &fakeGateway{}
			h := newTestHandler(gateway, nil)

			req := httptest.NewRequest(http.MethodPost, "/api/payment/create", strings.NewReader(tt.body))
			w := httptest.NewRecorder()

			h.CreatePayment(w, req)

			if w.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", w.Code)
			}
			if gateway.createCalls != 0 {
				t.Errorf("gateway called %d times on invalid input", gateway.createCalls)
			}
		})
	}
}

func TestCreatePaymentGatewayFailure(t *testing.T) {
	gateway := &fakeGateway{createErr: errors.New("gateway down")}
	h := newTestHandler(gateway, nil)

	body := `{"orderId":"ORDER-1","method":"CARD_PAY","amount":7900,"email":"jan@example.com"}`
	req := httptest.NewRequest(http.MethodPost, "/api/payment/create", strings.NewReader(body))
	w := httptest.NewRecorder()

	h.CreatePayment(w, req)

	if w.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", w.Code)
	}
}

func TestHandleCallbackSuccess(t *testing.T) {
	gateway := &fakeGateway{
		statusResp: &provider.PaymentStatusResponse{
			PaymentID:         "pay-1",
			StatusCode:        "ACCC",
			Status:            provider.StatusCompleted,
			MerchantReference: "ORDER-1",
		},
	}
	payments := store.NewMemoryStore()
	_ = payments.SavePaymentID(context.Background(), "ORDER-1", "pay-1")
	h := newTestHandler(gateway, payments)

	req := httptest.NewRequest(http.MethodGet, "/api/payment/callback?orderId=ORDER-1", nil)
	w := httptest.NewRecorder()

	h.HandleCallback(w, req)

	if w.Code != http.StatusFound {
		t.Fatalf("status = %d, want 302", w.Code)
	}
	location := w.Header().Get("Location")
	if !strings.HasPrefix(location, testAppURL+"/payment/success") {
		t.Errorf("Location = %q, want success page", location)
	}
	if gateway.lastStatusReq.PaymentID != "pay-1" {
		t.Errorf("verified payment id = %q, want pay-1", gateway.lastStatusReq.PaymentID)
	}

	rec, err := payments.GetRecord(context.Background(), "ORDER-1")
	if err != nil || rec.Status != string(provider.StatusCompleted) {
		t.Errorf("recorded status = (%+v, %v), want completed", rec, err)
	}
}

func TestHandleCallbackFailedCarriesOrderID(t *testing.T) {
	gateway := &fakeGateway{
		statusResp: &provider.PaymentStatusResponse{
			PaymentID:         "pay-1",
			StatusCode:        "RJCT",
			Status:            provider.StatusFailed,
			MerchantReference: "ORDER-1",
		},
	}
	payments := store.NewMemoryStore()
	_ = payments.SavePaymentID(context.Background(), "ORDER-1", "pay-1")
	h := newTestHandler(gateway, payments)

	req := httptest.NewRequest(http.MethodGet, "/api/payment/callback?orderId=ORDER-1", nil)
	w := httptest.NewRecorder()

	h.HandleCallback(w, req)

	location := w.Header().Get("Location")
	if !strings.HasPrefix(location, testAppURL+"/payment/failed") {
		t.Errorf("Location = %q, want failed page", location)
	}
	if !strings.Contains(location, "orderId=ORDER-1") {
		t.Errorf("Location = %q, failed page must carry the order id", location)
	}
}

func TestHandleCallbackPending(t *testing.T) {
	gateway := &fakeGateway{
		statusResp: &provider.PaymentStatusResponse{
			PaymentID:  "pay-1",
			StatusCode: "PDNG",
			Status:     provider.StatusPending,
		},
	}
	payments := store.NewMemoryStore()
	_ = payments.SavePaymentID(context.Background(), "ORDER-1", "pay-1")
	h := newTestHandler(gateway, payments)

	req := httptest.NewRequest(http.MethodGet, "/api/payment/callback?orderId=ORDER-1", nil)
	w := httptest.NewRecorder()

	h.HandleCallback(w, req)

	if location := w.Header().Get("Location"); !strings.HasPrefix(location, testAppURL+"/payment/pending") {
		t.Errorf("Location = %q, want pending page", location)
	}
}

func TestHandleCallbackMissingOrderID(t *testing.T) {
	gateway := &fakeGateway{}
	h := newTestHandler(gateway, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/payment/callback", nil)
	w := httptest.NewRecorder()

	h.HandleCallback(w, req)

	if w.Code != http.StatusFound {
		t.Fatalf("status = %d, want 302", w.Code)
	}
	if location := w.Header().Get("Location"); !strings.HasPrefix(location, testAppURL+"/payment/error") {
		t.Errorf("Location = %q, want error page", location)
	}
	if gateway.statusCalls != 0 {
		t.Errorf("gateway called %d times without an order id, want 0", gateway.statusCalls)
	}
}

func TestHandleCallbackUsesPaymentIDFallback(t *testing.T) {
	gateway := &fakeGateway{
		statusResp: &provider.PaymentStatusResponse{
			PaymentID:  "pay-9",
			StatusCode: "ACCC",
			Status:     provider.StatusCompleted,
		},
	}
	h := newTestHandler(gateway, store.NewMemoryStore())

	// Order unknown to the store, payment id echoed on the query string
	req := httptest.NewRequest(http.MethodGet, "/api/payment/callback?orderId=ORDER-9&paymentId=pay-9", nil)
	w := httptest.NewRecorder()

	h.HandleCallback(w, req)

	if gateway.lastStatusReq.PaymentID != "pay-9" {
		t.Errorf("verified payment id = %q, want fallback pay-9", gateway.lastStatusReq.PaymentID)
	}
	if location := w.Header().Get("Location"); !strings.HasPrefix(location, testAppURL+"/payment/success") {
		t.Errorf("Location = %q, want success page", location)
	}
}

func TestHandleCallbackStatusCheckFailure(t *testing.T) {
	gateway := &fakeGateway{statusErr: errors.New("gateway down")}
	payments := store.NewMemoryStore()
	_ = payments.SavePaymentID(context.Background(), "ORDER-1", "pay-1")
	h := newTestHandler(gateway, payments)

	req := httptest.NewRequest(http.MethodGet, "/api/payment/callback?orderId=ORDER-1", nil)
	w := httptest.NewRecorder()

	h.HandleCallback(w, req)

	if location := w.Header().Get("Location"); !strings.HasPrefix(location, testAppURL+"/payment/error") {
		t.Errorf("Location = %q, want error page", location)
	}
}

func TestHandleWebhook(t *testing.T) {
	gateway := &fakeGateway{
		statusResp: &provider.PaymentStatusResponse{
			PaymentID:         "pay-1",
			StatusCode:        "ACCC",
			Status:            provider.StatusCompleted,
			MerchantReference: "ORDER-1",
		},
	}
	payments := store.NewMemoryStore()
	_ = payments.SavePaymentID(context.Background(), "ORDER-1", "pay-1")
	h := newTestHandler(gateway, payments)

	// The delivered status is a lie; the re-fetched one wins
	body := `{"paymentId":"pay-1","status":"RJCT"}`

	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodPost, "/api/payment/webhook", strings.NewReader(body))
		w := httptest.NewRecorder()

		h.HandleWebhook(w, req)

		if w.Code != http.StatusOK {
			t.Fatalf("delivery %d: status = %d, want 200", i+1, w.Code)
		}

		var resp map[string]any
		if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
			t.Fatalf("response decode error: %v", err)
		}
		if received, _ := resp["received"].(bool); !received {
			t.Errorf("delivery %d: received = %v, want true", i+1, resp["received"])
		}
	}

	// Redelivery must re-verify every time
	if gateway.statusCalls != 2 {
		t.Errorf("status verified %d times for 2 deliveries, want 2", gateway.statusCalls)
	}

	rec, err := payments.GetRecord(context.Background(), "ORDER-1")
	if err != nil || rec.Status != string(provider.StatusCompleted) {
		t.Errorf("recorded status = (%+v, %v), want completed from re-fetch", rec, err)
	}
}

func TestHandleWebhookVerificationFailure(t *testing.T) {
	gateway := &fakeGateway{statusErr: errors.New("gateway down")}
	h := newTestHandler(gateway, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/payment/webhook", strings.NewReader(`{"paymentId":"pay-1"}`))
	w := httptest.NewRecorder()

	h.HandleWebhook(w, req)

	if w.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500 so the gateway retries", w.Code)
	}
}

func TestHandleWebhookInvalidPayload(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"malformed json", `{`},
		{"missing payment id", `{"status":"ACCC"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gateway := &fakeGateway{}
			h := newTestHandler(gateway, nil)

			req := httptest.NewRequest(http.MethodPost, "/api/payment/webhook", strings.NewReader(tt.body))
			w := httptest.NewRecorder()

			h.HandleWebhook(w, req)

			if w.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", w.Code)
			}
			if gateway.statusCalls != 0 {
				t.Errorf("gateway called %d times on invalid payload", gateway.statusCalls)
			}
		})
	}
}

func TestHandleWebhookLiveness(t *testing.T) {
	h := newTestHandler(&fakeGateway{}, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/payment/webhook", nil)
	w := httptest.NewRecorder()

	h.HandleWebhook(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", w.Code)
	}
}

func TestRequestBaseURL(t *testing.T) {
	tests := []struct {
		name    string
		proto   string
		fwdHost string
		host    string
		want    string
	}{
		{"forwarded proto and host", "https", "gw.example.com", "internal:9999", "https://gw.example.com"},
		{"host header only", "", "", "localhost:9999", "http://localhost:9999"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.Host = tt.host
			if tt.proto != "" {
				req.Header.Set("X-Forwarded-Proto", tt.proto)
			}
			if tt.fwdHost != "" {
				req.Header.Set("X-Forwarded-Host", tt.fwdHost)
			}

			if got := requestBaseURL(req); got != tt.want {
				t.Errorf("requestBaseURL() = %q, want %q", got, tt.want)
			}
		})
	}
}
