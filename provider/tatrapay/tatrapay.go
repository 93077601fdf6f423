package tatrapay

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/paygate-sk/tatrapay/infra/logger"
	"github.com/paygate-sk/tatrapay/provider"
)

const (
	// API URLs
	apiSandboxURL    = "https://api.tatrabanka.sk/tatrapayplus/sandbox"
	apiProductionURL = "https://api.tatrabanka.sk/tatrapayplus/production"

	// API Endpoints
	endpointToken          = "/auth/oauth/v2/token"
	endpointPayments       = "/v1/payments"
	endpointPaymentStatus  = "/v1/payments/%s/status" // %s will be replaced with paymentId
	endpointPaymentMethods = "/v1/payments/methods"

	tokenScope = "TATRAPAYPLUS"

	cardHolderMaxLen   = 45
	cardHolderFallback = "Customer"
)

var (
	whitespacePattern = regexp.MustCompile(`\s+`)
	cardHolderPattern = regexp.MustCompile(`[^A-Za-z0-9 .@_-]`)
)

// TatraPayProvider implements the provider.PaymentProvider interface for the
// TatraPayPlus banking gateway
type TatraPayProvider struct {
	clientID     string
	clientSecret string
	baseURL      string
	isProduction bool
	httpClient   *provider.ProviderHTTPClient
	tokens       *tokenCache
}

// NewProvider creates a new TatraPayPlus payment provider
func NewProvider() provider.PaymentProvider {
	return &TatraPayProvider{tokens: newTokenCache()}
}

// Initialize sets up the provider with authentication credentials
func (p *TatraPayProvider) Initialize(conf map[string]string) error {
	p.clientID = conf["clientId"]
	p.clientSecret = conf["clientSecret"]

	if p.clientID == "" {
		return errors.New("tatrapay: clientId is required")
	}
	if p.clientSecret == "" {
		return errors.New("tatrapay: clientSecret is required")
	}

	p.isProduction = conf["environment"] == "production"
	if p.isProduction {
		p.baseURL = apiProductionURL
	} else {
		p.baseURL = apiSandboxURL
	}

	// apiUrl overrides the environment-selected base, used for local stubs
	if apiURL := conf["apiUrl"]; apiURL != "" {
		p.baseURL = apiURL
	}

	p.httpClient = provider.NewProviderHTTPClient(provider.CreateHTTPClientConfig(p.baseURL, p.isProduction))

	return nil
}

// getAccessToken returns a cached bearer token or performs an OAuth2
// client-credentials exchange when the cache is empty or near expiry
func (p *TatraPayProvider) getAccessToken(ctx context.Context) (string, error) {
	if token, ok := p.tokens.get(); ok {
		return token, nil
	}

	resp, err := p.httpClient.SendForm(ctx, &provider.HTTPRequest{
		Method:   "POST",
		Endpoint: endpointToken,
		FormData: map[string]string{
			"grant_type":    "client_credentials",
			"client_id":     p.clientID,
			"client_secret": p.clientSecret,
			"scope":         tokenScope,
		},
	})
	if err != nil {
		if resp != nil {
			return "", &provider.AuthenticationError{StatusCode: resp.StatusCode, Body: resp.RawBody}
		}
		return "", fmt.Errorf("tatrapay: token request failed: %w", err)
	}

	var tokenResp struct {
		AccessToken string `json:"access_token"`
		TokenType   string `json:"token_type"`
		ExpiresIn   int64  `json:"expires_in"`
		Scope       string `json:"scope"`
	}
	if err := p.httpClient.ParseJSONResponse(resp, &tokenResp); err != nil {
		return "", &provider.AuthenticationError{StatusCode: resp.StatusCode, Body: resp.RawBody}
	}
	if tokenResp.AccessToken == "" {
		return "", &provider.AuthenticationError{StatusCode: resp.StatusCode, Body: resp.RawBody}
	}

	p.tokens.set(tokenResp.AccessToken, tokenResp.ExpiresIn)

	return tokenResp.AccessToken, nil
}

// CreatePayment creates a payment at the gateway. For CARD_PAY the response
// always carries a redirect URL, for BANK_TRANSFER always transfer
// instructions; a missing payload is a hard error, not a degraded success.
func (p *TatraPayProvider) CreatePayment(ctx context.Context, request provider.PaymentRequest) (*provider.PaymentResponse, error) {
	if err := p.validatePaymentRequest(request); err != nil {
		return nil, err
	}

	token, err := p.getAccessToken(ctx)
	if err != nil {
		return nil, err
	}

	payload := p.mapToCreatePayload(request)

	resp, err := p.httpClient.SendJSON(ctx, &provider.HTTPRequest{
		Method:   "POST",
		Endpoint: endpointPayments,
		Body:     payload,
		Headers: map[string]string{
			"Authorization":    "Bearer " + token,
			"X-Request-ID":     uuid.New().String(),
			"IP-Address":       request.ClientIP,
			"Redirect-URI":     stripQueryString(request.ReturnURL),
			"Preferred-Method": string(request.Method),
		},
	})
	if err != nil {
		if resp != nil {
			gwErr := &provider.GatewayError{Operation: "createPayment", StatusCode: resp.StatusCode, Body: resp.RawBody}
			logger.Error("Payment creation rejected by gateway", gwErr, logger.LogContext{
				Provider: "tatrapay",
				OrderID:  request.MerchantReference,
				Fields:   map[string]any{"method": string(request.Method)},
			})
			return nil, gwErr
		}
		return nil, fmt.Errorf("tatrapay: create payment request failed: %w", err)
	}

	var createResp createResponsePayload
	if err := p.httpClient.ParseJSONResponse(resp, &createResp); err != nil {
		return nil, &provider.GatewayError{Operation: "createPayment", StatusCode: resp.StatusCode, Body: "malformed response body"}
	}

	result := &provider.PaymentResponse{
		PaymentID: createResp.PaymentID,
		Status:    provider.MapToInternalStatus(createResp.Status),
		Method:    request.Method,
		CreatedAt: time.Now().UTC(),
	}

	switch request.Method {
	case provider.MethodCardPay:
		if createResp.TatraPayPlusURL == "" {
			err := &provider.MethodUnavailableError{
				Method: provider.MethodCardPay,
				Reason: unavailabilityReason(createResp.AvailablePaymentMethods, provider.MethodCardPay),
			}
			logger.Error("Card payment accepted but no redirect URL returned", err, logger.LogContext{
				Provider:  "tatrapay",
				OrderID:   request.MerchantReference,
				PaymentID: createResp.PaymentID,
			})
			return nil, err
		}
		result.RedirectURL = createResp.TatraPayPlusURL

	case provider.MethodBankTransfer:
		if createResp.BankTransferData == nil {
			return nil, &provider.GatewayError{Operation: "createPayment", StatusCode: resp.StatusCode, Body: "bankTransferData missing in response"}
		}
		amount := createResp.BankTransferData.Amount
		if amount == 0 {
			// Some gateway responses omit the echoed amount; fall back to
			// the instructed one
			amount = minorToDecimal(request.Amount)
		}
		result.BankTransfer = &provider.TransferInstructions{
			IBAN:           createResp.BankTransferData.IBAN,
			BIC:            createResp.BankTransferData.BIC,
			VariableSymbol: createResp.BankTransferData.VariableSymbol,
			Amount:         amount,
			AmountMinor:    decimalToMinor(amount),
			Currency:       request.Currency,
		}
	}

	logger.Info("Payment created", logger.LogContext{
		Provider:  "tatrapay",
		OrderID:   request.MerchantReference,
		PaymentID: result.PaymentID,
		Fields:    map[string]any{"method": string(request.Method), "amount_minor": request.Amount},
	})

	return result, nil
}

// GetPaymentStatus retrieves the current status of a payment
func (p *TatraPayProvider) GetPaymentStatus(ctx context.Context, request provider.GetPaymentStatusRequest) (*provider.PaymentStatusResponse, error) {
	if request.PaymentID == "" {
		return nil, &provider.ValidationError{Field: "paymentId", Message: "is required"}
	}

	token, err := p.getAccessToken(ctx)
	if err != nil {
		return nil, err
	}

	resp, err := p.httpClient.SendJSON(ctx, &provider.HTTPRequest{
		Method:   "GET",
		Endpoint: fmt.Sprintf(endpointPaymentStatus, url.PathEscape(request.PaymentID)),
		Headers: map[string]string{
			"Authorization": "Bearer " + token,
			"X-Request-ID":  uuid.New().String(),
		},
	})
	if err != nil {
		if resp != nil {
			return nil, &provider.GatewayError{Operation: "getPaymentStatus", StatusCode: resp.StatusCode, Body: resp.RawBody}
		}
		return nil, fmt.Errorf("tatrapay: status request failed: %w", err)
	}

	var statusResp statusResponsePayload
	if err := p.httpClient.ParseJSONResponse(resp, &statusResp); err != nil {
		return nil, &provider.GatewayError{Operation: "getPaymentStatus", StatusCode: resp.StatusCode, Body: "malformed response body"}
	}

	result := &provider.PaymentStatusResponse{
		PaymentID:         statusResp.PaymentID,
		StatusCode:        statusResp.Status,
		Status:            provider.MapToInternalStatus(statusResp.Status),
		MerchantReference: statusResp.MerchantReference,
		InstructedAmount: provider.Amount{
			Value:    decimalToMinor(statusResp.InstructedAmount.Amount),
			Currency: statusResp.InstructedAmount.Currency,
		},
		Method:        provider.PaymentMethod(statusResp.PaymentMethod),
		CreatedAt:     parseGatewayTime(statusResp.CreatedAt),
		UpdatedAt:     parseGatewayTime(statusResp.UpdatedAt),
		TransactionID: statusResp.TransactionID,
	}

	if statusResp.PaidAmount != nil {
		result.PaidAmount = &provider.Amount{
			Value:    decimalToMinor(statusResp.PaidAmount.Amount),
			Currency: statusResp.PaidAmount.Currency,
		}
	}

	return result, nil
}

// GetAvailablePaymentMethods queries which payment methods the gateway
// currently offers for this merchant
func (p *TatraPayProvider) GetAvailablePaymentMethods(ctx context.Context) ([]provider.PaymentMethodInfo, error) {
	token, err := p.getAccessToken(ctx)
	if err != nil {
		return nil, err
	}

	resp, err := p.httpClient.SendJSON(ctx, &provider.HTTPRequest{
		Method:   "GET",
		Endpoint: endpointPaymentMethods,
		Headers: map[string]string{
			"Authorization": "Bearer " + token,
			"X-Request-ID":  uuid.New().String(),
		},
	})
	if err != nil {
		if resp != nil {
			return nil, &provider.GatewayError{Operation: "getPaymentMethods", StatusCode: resp.StatusCode, Body: resp.RawBody}
		}
		return nil, fmt.Errorf("tatrapay: methods request failed: %w", err)
	}

	var methodsResp struct {
		PaymentMethods []struct {
			PaymentMethod string  `json:"paymentMethod"`
			IsAvailable   bool    `json:"isAvailable"`
			MinAmount     float64 `json:"minAmount"`
			MaxAmount     float64 `json:"maxAmount"`
		} `json:"paymentMethods"`
	}
	if err := p.httpClient.ParseJSONResponse(resp, &methodsResp); err != nil {
		return nil, &provider.GatewayError{Operation: "getPaymentMethods", StatusCode: resp.StatusCode, Body: "malformed response body"}
	}

	methods := make([]provider.PaymentMethodInfo, 0, len(methodsResp.PaymentMethods))
	for _, m := range methodsResp.PaymentMethods {
		methods = append(methods, provider.PaymentMethodInfo{
			Method:    provider.PaymentMethod(m.PaymentMethod),
			Available: m.IsAvailable,
			MinAmount: decimalToMinor(m.MinAmount),
			MaxAmount: decimalToMinor(m.MaxAmount),
		})
	}

	return methods, nil
}

// validatePaymentRequest validates the payment request
func (p *TatraPayProvider) validatePaymentRequest(request provider.PaymentRequest) error {
	if !request.Method.Valid() {
		return &provider.ValidationError{Field: "method", Message: "must be CARD_PAY or BANK_TRANSFER"}
	}
	if request.Amount <= 0 {
		return &provider.ValidationError{Field: "amount", Message: "must be greater than 0"}
	}
	if request.Currency == "" {
		return &provider.ValidationError{Field: "currency", Message: "is required"}
	}
	if request.MerchantReference == "" {
		return &provider.ValidationError{Field: "merchantReference", Message: "is required"}
	}
	if request.Customer.Email == "" {
		return &provider.ValidationError{Field: "customer.email", Message: "is required"}
	}
	if request.ReturnURL == "" {
		return &provider.ValidationError{Field: "returnUrl", Message: "is required"}
	}
	if request.ClientIP == "" {
		return &provider.ValidationError{Field: "clientIp", Message: "is required"}
	}
	return nil
}

// mapToCreatePayload maps a generic payment request to the gateway wire format.
// The method-specific block is mandatory: the gateway reports no available
// payment method when cardDetail or the empty bankTransfer marker is missing.
func (p *TatraPayProvider) mapToCreatePayload(request provider.PaymentRequest) createPaymentPayload {
	language := request.Language
	if language == "" {
		language = "sk"
	}

	payload := createPaymentPayload{
		BaseAmount: baseAmountPayload{
			AmountValue: minorToDecimal(request.Amount),
			Currency:    request.Currency,
		},
		MerchantReference:  sanitizeMerchantReference(request.MerchantReference),
		Language:           language,
		PaymentDescription: request.Description,
	}

	if request.ValidUntil != nil {
		payload.ValidUntil = request.ValidUntil.UTC().Format(time.RFC3339)
	}

	if request.Customer.Email != "" {
		firstName, lastName := splitName(request.Customer.Name)
		payload.UserData = &userDataPayload{
			FirstName: firstName,
			LastName:  lastName,
			Email:     request.Customer.Email,
			Phone:     request.Customer.Phone,
		}
	}

	switch request.Method {
	case provider.MethodCardPay:
		payload.CardDetail = &cardDetailPayload{
			CardHolder: sanitizeCardHolder(request.Customer.Name),
		}
	case provider.MethodBankTransfer:
		payload.BankTransfer = &struct{}{}
	}

	return payload
}

// sanitizeMerchantReference strips all whitespace; the gateway rejects
// references containing spaces
func sanitizeMerchantReference(ref string) string {
	return whitespacePattern.ReplaceAllString(ref, "")
}

// sanitizeCardHolder restricts the card holder name to the character set the
// gateway accepts and truncates it to 45 characters. An input that
// sanitizes to nothing falls back to a literal placeholder.
func sanitizeCardHolder(name string) string {
	s := cardHolderPattern.ReplaceAllString(name, "")
	s = strings.TrimSpace(s)
	if len(s) > cardHolderMaxLen {
		s = strings.TrimSpace(s[:cardHolderMaxLen])
	}
	if s == "" {
		return cardHolderFallback
	}
	return s
}

// stripQueryString returns the URL without its query string and fragment
func stripQueryString(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	u.RawQuery = ""
	u.Fragment = ""
	return u.String()
}

// splitName splits a full name into first and last name for the gateway's
// userData block
func splitName(full string) (string, string) {
	parts := strings.Fields(full)
	switch len(parts) {
	case 0:
		return "", ""
	case 1:
		return parts[0], ""
	default:
		return parts[0], strings.Join(parts[1:], " ")
	}
}

// unavailabilityReason extracts the gateway's reason code for a method from
// the availablePaymentMethods detail, when present
func unavailabilityReason(methods []availableMethodPayload, method provider.PaymentMethod) string {
	for _, m := range methods {
		if m.PaymentMethod == string(method) && !m.IsAvailable {
			return m.ReasonCode
		}
	}
	return ""
}

func minorToDecimal(v int64) float64 {
	return float64(v) / 100
}

func decimalToMinor(v float64) int64 {
	return int64(math.Round(v * 100))
}

// parseGatewayTime parses gateway timestamps, tolerating absent values
func parseGatewayTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t
	}
	return time.Time{}
}

// Wire types

type baseAmountPayload struct {
	AmountValue float64 `json:"amountValue"`
	Currency    string  `json:"currency"`
}

type userDataPayload struct {
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Email     string `json:"email"`
	Phone     string `json:"phone,omitempty"`
}

type cardDetailPayload struct {
	CardHolder string `json:"cardHolder"`
}

type createPaymentPayload struct {
	BaseAmount         baseAmountPayload  `json:"baseAmount"`
	MerchantReference  string             `json:"merchantReference"`
	Language           string             `json:"language"`
	PaymentDescription string             `json:"paymentDescription,omitempty"`
	ValidUntil         string             `json:"validUntil,omitempty"`
	UserData           *userDataPayload   `json:"userData,omitempty"`
	CardDetail         *cardDetailPayload `json:"cardDetail,omitempty"`
	BankTransfer       *struct{}          `json:"bankTransfer,omitempty"`
}

type bankTransferDataPayload struct {
	IBAN           string  `json:"iban"`
	BIC            string  `json:"bic"`
	VariableSymbol string  `json:"variableSymbol"`
	Amount         float64 `json:"amount,omitempty"`
}

type availableMethodPayload struct {
	PaymentMethod string `json:"paymentMethod"`
	IsAvailable   bool   `json:"isAvailable"`
	ReasonCode    string `json:"reasonCode,omitempty"`
}

type createResponsePayload struct {
	PaymentID               string                   `json:"paymentId"`
	Status                  string                   `json:"status,omitempty"`
	TatraPayPlusURL         string                   `json:"tatraPayPlusUrl,omitempty"`
	BankTransferData        *bankTransferDataPayload `json:"bankTransferData,omitempty"`
	AvailablePaymentMethods []availableMethodPayload `json:"availablePaymentMethods,omitempty"`
}

type wireAmountPayload struct {
	Amount   float64 `json:"amount"`
	Currency string  `json:"currency"`
}

type statusResponsePayload struct {
	PaymentID         string             `json:"paymentId"`
	Status            string             `json:"status"`
	MerchantReference string             `json:"merchantReference"`
	InstructedAmount  wireAmountPayload  `json:"instructedAmount"`
	PaidAmount        *wireAmountPayload `json:"paidAmount,omitempty"`
	PaymentMethod     string             `json:"paymentMethod"`
	CreatedAt         string             `json:"createdAt"`
	UpdatedAt         string             `json:"updatedAt"`
	TransactionID     string             `json:"transactionId,omitempty"`
}
