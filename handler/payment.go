package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/paygate-sk/tatrapay/infra/logger"
	"github.com/paygate-sk/tatrapay/infra/middle"
	"github.com/paygate-sk/tatrapay/infra/opensearch"
	"github.com/paygate-sk/tatrapay/infra/response"
	"github.com/paygate-sk/tatrapay/provider"
	"github.com/paygate-sk/tatrapay/store"
)

// Outcome pages the callback handler redirects the browser to. The pages
// themselves are served by the host application.
const (
	outcomeSuccess = "success"
	outcomeFailed  = "failed"
	outcomePending = "pending"
	outcomeError   = "error"
)

// PaymentHandler handles payment related HTTP requests
type PaymentHandler struct {
	gateway    provider.PaymentProvider
	payments   store.PaymentStore
	validate   *validator.Validate
	appBaseURL string
	osLogger   *opensearch.Logger
}

// NewPaymentHandler creates a new payment handler. osLogger may be nil when
// OpenSearch logging is disabled.
func NewPaymentHandler(gateway provider.PaymentProvider, payments store.PaymentStore, validate *validator.Validate, appBaseURL string, osLogger *opensearch.Logger) *PaymentHandler {
	return &PaymentHandler{
		gateway:    gateway,
		payments:   payments,
		validate:   validate,
		appBaseURL: appBaseURL,
		osLogger:   osLogger,
	}
}

// CreatePaymentRequest is the inbound payload for payment creation
type CreatePaymentRequest struct {
	OrderID     string `json:"orderId" validate:"required"`
	Method      string `json:"method" validate:"required"`
	Amount      int64  `json:"amount" validate:"required,gt=0"` // minor units
	Currency    string `json:"currency"`
	Email       string `json:"email" validate:"required,email"`
	Name        string `json:"name"`
	Phone       string `json:"phone"`
	Language    string `json:"language"`
	Description string `json:"description"`

	// ValidUntil bounds how long the payment can be completed at the gateway
	ValidUntil *time.Time `json:"validUntil,omitempty"`
}

// CreatePayment handles payment creation requests
func (h *PaymentHandler) CreatePayment(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
	defer cancel()

	var req CreatePaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Error(w, http.StatusBadRequest, "Invalid request format", err)
		return
	}

	if err := h.validate.Struct(req); err != nil {
		response.Error(w, http.StatusBadRequest, "Validation error", err)
		return
	}

	method := provider.PaymentMethod(req.Method)
	if !method.Valid() {
		response.Error(w, http.StatusBadRequest, "Validation error",
			fmt.Errorf("method must be %s or %s", provider.MethodCardPay, provider.MethodBankTransfer))
		return
	}

	currency := req.Currency
	if currency == "" {
		currency = "EUR"
	}

	baseURL := requestBaseURL(r)
	start := time.Now()

	paymentReq := provider.PaymentRequest{
		Method:            method,
		Amount:            req.Amount,
		Currency:          currency,
		MerchantReference: req.OrderID,
		Customer: provider.Customer{
			Name:  req.Name,
			Email: req.Email,
			Phone: req.Phone,
		},
		ReturnURL:       fmt.Sprintf("%s/api/payment/callback?orderId=%s", baseURL, url.QueryEscape(req.OrderID)),
		NotificationURL: fmt.Sprintf("%s/api/payment/webhook", baseURL),
		Language:        req.Language,
		Description:     req.Description,
		ValidUntil:      req.ValidUntil,
		ClientIP:        middle.GetClientIP(r),
	}

	resp, err := h.gateway.CreatePayment(ctx, paymentReq)
	if err != nil {
		var validationErr *provider.ValidationError
		if errors.As(err, &validationErr) {
			response.Error(w, http.StatusBadRequest, "Validation error", err)
			return
		}

		logger.Error("Payment creation failed", err, logger.LogContext{
			Provider: "tatrapay",
			OrderID:  req.OrderID,
			Fields:   map[string]any{"method": req.Method},
		})
		h.logPaymentEvent(opensearch.PaymentLog{
			Operation:   "create",
			OrderID:     req.OrderID,
			Method:      req.Method,
			AmountMinor: req.Amount,
			Currency:    currency,
			ClientIP:    paymentReq.ClientIP,
			Error:       err.Error(),
		})
		response.Error(w, http.StatusInternalServerError, "Payment creation failed", err)
		return
	}

	// The callback handler needs this mapping to resolve the gateway
	// payment id from the order id
	if err := h.payments.SavePaymentID(ctx, req.OrderID, resp.PaymentID); err != nil {
		logger.Warn("Failed to store payment mapping", logger.LogContext{
			Provider:  "tatrapay",
			OrderID:   req.OrderID,
			PaymentID: resp.PaymentID,
			Fields:    map[string]any{"error": err.Error()},
		})
	}

	h.logPaymentEvent(opensearch.PaymentLog{
		Operation:    "create",
		OrderID:      req.OrderID,
		PaymentID:    resp.PaymentID,
		Method:       req.Method,
		Status:       string(resp.Status),
		AmountMinor:  req.Amount,
		Currency:     currency,
		ClientIP:     paymentReq.ClientIP,
		ProcessingMs: time.Since(start).Milliseconds(),
	})

	payload := map[string]any{
		"paymentId": resp.PaymentID,
		"status":    resp.Status,
	}
	if resp.RedirectURL != "" {
		payload["redirectUrl"] = resp.RedirectURL
	}
	if resp.BankTransfer != nil {
		payload["bankTransfer"] = resp.BankTransfer
	}

	response.Success(w, http.StatusOK, "Payment created", payload)
}

// HandleCallback handles the browser return from the gateway. Every failure
// collapses to the error outcome page so the customer always lands
// somewhere usable; detail stays in the server logs.
func (h *PaymentHandler) HandleCallback(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
	defer cancel()

	orderID := r.URL.Query().Get("orderId")
	if orderID == "" {
		h.redirectOutcome(w, r, outcomeError, "Missing order reference", "")
		return
	}

	paymentID, err := h.payments.LookupPaymentID(ctx, orderID)
	if err != nil || paymentID == "" {
		// The gateway echoes the payment id on the return URL
		paymentID = r.URL.Query().Get("paymentId")
	}
	if paymentID == "" {
		logger.Warn("No payment id known for callback", logger.LogContext{
			Provider: "tatrapay",
			OrderID:  orderID,
		})
		h.redirectOutcome(w, r, outcomeError, "Payment could not be verified", "")
		return
	}

	status, err := h.gateway.GetPaymentStatus(ctx, provider.GetPaymentStatusRequest{PaymentID: paymentID})
	if err != nil {
		logger.Error("Callback status check failed", err, logger.LogContext{
			Provider:  "tatrapay",
			OrderID:   orderID,
			PaymentID: paymentID,
		})
		h.redirectOutcome(w, r, outcomeError, "Payment could not be verified", "")
		return
	}

	if err := h.payments.RecordStatus(ctx, orderID, string(status.Status)); err != nil && !errors.Is(err, store.ErrNotFound) {
		logger.Warn("Failed to record callback status", logger.LogContext{
			Provider:  "tatrapay",
			OrderID:   orderID,
			PaymentID: paymentID,
			Fields:    map[string]any{"error": err.Error()},
		})
	}

	h.logPaymentEvent(opensearch.PaymentLog{
		Operation: "callback",
		OrderID:   orderID,
		PaymentID: paymentID,
		Status:    string(status.Status),
	})

	switch status.Status {
	case provider.StatusCompleted:
		h.redirectOutcome(w, r, outcomeSuccess, "Payment completed successfully", "")
	case provider.StatusFailed:
		// The failed page offers a retry link, so it needs the order id
		h.redirectOutcome(w, r, outcomeFailed, "Payment was not completed", orderID)
	default:
		h.redirectOutcome(w, r, outcomePending, "Payment is being processed", "")
	}
}

// HandleWebhook handles asynchronous status notifications from the gateway.
// The delivered payload is never trusted; the authoritative status is
// re-fetched by payment id on every delivery, which keeps redelivery
// idempotent. 200 tells the gateway to stop retrying, 500 to retry.
func (h *PaymentHandler) HandleWebhook(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodGet {
		// Gateway-side URL verification
		_ = response.WriteJSON(w, http.StatusOK, map[string]any{
			"status":    "ok",
			"timestamp": time.Now().UTC(),
		})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
	defer cancel()

	var payload struct {
		PaymentID string `json:"paymentId"`
		Status    string `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		response.Error(w, http.StatusBadRequest, "Invalid webhook payload", err)
		return
	}
	if payload.PaymentID == "" {
		response.Error(w, http.StatusBadRequest, "Missing payment id", nil)
		return
	}

	status, err := h.gateway.GetPaymentStatus(ctx, provider.GetPaymentStatusRequest{PaymentID: payload.PaymentID})
	if err != nil {
		logger.Error("Webhook status verification failed", err, logger.LogContext{
			Provider:  "tatrapay",
			PaymentID: payload.PaymentID,
			Fields:    map[string]any{"delivered_status": payload.Status},
		})
		response.Error(w, http.StatusInternalServerError, "Status verification failed", err)
		return
	}

	if status.MerchantReference != "" {
		err := h.payments.RecordStatus(ctx, status.MerchantReference, string(status.Status))
		if err != nil && !errors.Is(err, store.ErrNotFound) {
			logger.Error("Failed to record webhook status", err, logger.LogContext{
				Provider:  "tatrapay",
				OrderID:   status.MerchantReference,
				PaymentID: payload.PaymentID,
			})
			response.Error(w, http.StatusInternalServerError, "Failed to record status", err)
			return
		}
	}

	logger.Info("Webhook processed", logger.LogContext{
		Provider:  "tatrapay",
		OrderID:   status.MerchantReference,
		PaymentID: payload.PaymentID,
		Fields: map[string]any{
			"verified_status":  string(status.Status),
			"delivered_status": payload.Status,
		},
	})
	h.logPaymentEvent(opensearch.PaymentLog{
		Operation: "webhook",
		OrderID:   status.MerchantReference,
		PaymentID: payload.PaymentID,
		Status:    string(status.Status),
	})

	_ = response.WriteJSON(w, http.StatusOK, map[string]any{"received": true})
}

// redirectOutcome sends the browser to one of the static outcome pages
func (h *PaymentHandler) redirectOutcome(w http.ResponseWriter, r *http.Request, outcome, message, orderID string) {
	redirectURL := fmt.Sprintf("%s/payment/%s?message=%s", h.appBaseURL, outcome, url.QueryEscape(message))
	if orderID != "" {
		redirectURL += "&orderId=" + url.QueryEscape(orderID)
	}
	http.Redirect(w, r, redirectURL, http.StatusFound)
}

// logPaymentEvent ships a payment log entry to OpenSearch without blocking
// the request
func (h *PaymentHandler) logPaymentEvent(entry opensearch.PaymentLog) {
	if h.osLogger == nil {
		return
	}
	if entry.Provider == "" {
		entry.Provider = "tatrapay"
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := h.osLogger.LogPaymentEvent(ctx, entry); err != nil {
			logger.Warn("Failed to ship payment log", logger.LogContext{
				Provider: "tatrapay",
				Fields:   map[string]any{"error": err.Error()},
			})
		}
	}()
}

// requestBaseURL derives the externally visible base URL from the inbound
// request's forwarding headers
func requestBaseURL(r *http.Request) string {
	scheme := r.Header.Get("X-Forwarded-Proto")
	if scheme == "" {
		if r.TLS != nil {
			scheme = "https"
		} else {
			scheme = "http"
		}
	}

	host := r.Header.Get("X-Forwarded-Host")
	if host == "" {
		host = r.Host
	}

	return fmt.Sprintf("%s://%s", scheme, host)
}
