package provider

import (
	"context"
	"time"
)

// PaymentMethod identifies one of the payment methods supported by the gateway
type PaymentMethod string

const (
	MethodCardPay      PaymentMethod = "CARD_PAY"
	MethodBankTransfer PaymentMethod = "BANK_TRANSFER"
)

// Valid reports whether the method is one of the supported values
func (m PaymentMethod) Valid() bool {
	return m == MethodCardPay || m == MethodBankTransfer
}

// PaymentStatus represents the internal status of a payment
type PaymentStatus string

const (
	StatusCompleted PaymentStatus = "completed"
	StatusFailed    PaymentStatus = "failed"
	StatusPending   PaymentStatus = "pending"
)

// Amount is a monetary amount in integer minor units (cents)
type Amount struct {
	Value    int64  `json:"value"`
	Currency string `json:"currency"`
}

// Address represents a physical address
type Address struct {
	Street  string `json:"street,omitempty"`
	City    string `json:"city,omitempty"`
	ZipCode string `json:"zipCode,omitempty"`
	Country string `json:"country,omitempty"`
}

// Customer represents the buyer information
type Customer struct {
	Name    string   `json:"name,omitempty"`
	Email   string   `json:"email"`
	Phone   string   `json:"phone,omitempty"`
	Address *Address `json:"address,omitempty"`
}

// PaymentRequest contains all information required to create a payment
type PaymentRequest struct {
	Method            PaymentMethod `json:"method"`
	Amount            int64         `json:"amount"` // minor units
	Currency          string        `json:"currency"`
	MerchantReference string        `json:"merchantReference"`
	Customer          Customer      `json:"customer"`
	ReturnURL         string        `json:"returnUrl"`
	NotificationURL   string        `json:"notificationUrl,omitempty"`
	Language          string        `json:"language,omitempty"`
	Description       string        `json:"description,omitempty"`
	ValidUntil        *time.Time    `json:"validUntil,omitempty"`
	ClientIP          string        `json:"clientIp"`
}

// TransferInstructions carries the bank transfer details the customer needs
// to complete a BANK_TRANSFER payment. Amount is the gateway-reported
// decimal value, AmountMinor its minor-unit equivalent.
type TransferInstructions struct {
	IBAN           string  `json:"iban"`
	BIC            string  `json:"bic"`
	VariableSymbol string  `json:"variableSymbol"`
	Amount         float64 `json:"amount"`
	AmountMinor    int64   `json:"amountMinor"`
	Currency       string  `json:"currency"`
}

// PaymentResponse contains the result of a payment creation.
// For CARD_PAY the RedirectURL is always set; for BANK_TRANSFER the
// BankTransfer block is always set. The gateway client enforces this.
type PaymentResponse struct {
	PaymentID    string                `json:"paymentId"`
	Status       PaymentStatus         `json:"status"`
	Method       PaymentMethod         `json:"method"`
	RedirectURL  string                `json:"redirectUrl,omitempty"`
	BankTransfer *TransferInstructions `json:"bankTransfer,omitempty"`
	CreatedAt    time.Time             `json:"createdAt"`
}

// GetPaymentStatusRequest contains information to request a payment status
type GetPaymentStatusRequest struct {
	PaymentID string `json:"paymentId"`
}

// PaymentStatusResponse contains the current state of a payment as reported
// by the gateway. StatusCode is the raw gateway code; Status is its
// classification into the internal vocabulary.
type PaymentStatusResponse struct {
	PaymentID         string        `json:"paymentId"`
	StatusCode        string        `json:"statusCode"`
	Status            PaymentStatus `json:"status"`
	MerchantReference string        `json:"merchantReference"`
	InstructedAmount  Amount        `json:"instructedAmount"`
	PaidAmount        *Amount       `json:"paidAmount,omitempty"`
	Method            PaymentMethod `json:"method"`
	CreatedAt         time.Time     `json:"createdAt"`
	UpdatedAt         time.Time     `json:"updatedAt"`
	TransactionID     string        `json:"transactionId,omitempty"`
}

// PaymentMethodInfo describes the availability of a payment method.
// Amount bounds are in minor units; zero means unbounded.
type PaymentMethodInfo struct {
	Method    PaymentMethod `json:"method"`
	Available bool          `json:"available"`
	MinAmount int64         `json:"minAmount,omitempty"`
	MaxAmount int64         `json:"maxAmount,omitempty"`
}

// PaymentProvider defines the interface a payment gateway client must implement
type PaymentProvider interface {
	// Initialize sets up the payment provider with authentication and configuration
	Initialize(config map[string]string) error

	// CreatePayment creates a payment at the gateway
	CreatePayment(ctx context.Context, request PaymentRequest) (*PaymentResponse, error)

	// GetPaymentStatus retrieves the current status of a payment
	GetPaymentStatus(ctx context.Context, request GetPaymentStatusRequest) (*PaymentStatusResponse, error)

	// GetAvailablePaymentMethods queries which payment methods the gateway offers
	GetAvailablePaymentMethods(ctx context.Context) ([]PaymentMethodInfo, error)
}

// ProviderFactory is a function type that creates a new PaymentProvider
type ProviderFactory func() PaymentProvider
