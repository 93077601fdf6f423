package provider

import "fmt"

// ValidationError indicates missing or invalid caller input
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// AuthenticationError indicates a failed OAuth2 token exchange. The gateway
// response body is kept for diagnosis; it never contains credentials.
type AuthenticationError struct {
	StatusCode int
	Body       string
}

func (e *AuthenticationError) Error() string {
	return fmt.Sprintf("token exchange failed with status %d: %s", e.StatusCode, e.Body)
}

// GatewayError indicates a non-2xx or malformed gateway response
type GatewayError struct {
	Operation  string
	StatusCode int
	Body       string
}

func (e *GatewayError) Error() string {
	return fmt.Sprintf("%s failed with gateway status %d: %s", e.Operation, e.StatusCode, e.Body)
}

// MethodUnavailableError indicates the gateway accepted a card payment but
// reported no redirect URL, meaning the method is not available for this
// request. Reason carries the gateway's per-method reason code when present.
type MethodUnavailableError struct {
	Method PaymentMethod
	Reason string
}

func (e *MethodUnavailableError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("payment method %s unavailable: %s", e.Method, e.Reason)
	}
	return fmt.Sprintf("payment method %s unavailable", e.Method)
}
