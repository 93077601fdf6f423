package provider

// ISO 20022 payment status codes as used by the gateway. The live gateway
// occasionally emits codes outside this vocabulary (e.g. OK, AUTH_DONE in a
// secondary field), so classification is total and fail-open: anything
// unrecognized maps to pending, never to a false success or failure.

var successStatuses = map[string]struct{}{
	"ACCC": {}, // AcceptedSettlementCompletedCreditor
	"ACSC": {}, // AcceptedSettlementCompleted
	"ACSP": {}, // AcceptedSettlementInProcess
	"ACCP": {}, // AcceptedCustomerProfile
	"ACTC": {}, // AcceptedTechnicalValidation
	"ACWC": {}, // AcceptedWithChange
	"ACWP": {}, // AcceptedWithoutPosting
	"ACFC": {}, // AcceptedFundsChecked
}

var failedStatuses = map[string]struct{}{
	"RJCT": {}, // Rejected
	"CANC": {}, // Cancelled
}

var pendingStatuses = map[string]struct{}{
	"RCVD": {}, // Received
	"PDNG": {}, // Pending
	"PATC": {}, // PartiallyAcceptedTechnicalCorrect
	"PART": {}, // PartiallyAccepted
}

// IsPaymentSuccessful reports whether the gateway status code means the
// payment has been accepted
func IsPaymentSuccessful(statusCode string) bool {
	_, ok := successStatuses[statusCode]
	return ok
}

// IsPaymentFailed reports whether the gateway status code means the payment
// was rejected or cancelled
func IsPaymentFailed(statusCode string) bool {
	_, ok := failedStatuses[statusCode]
	return ok
}

// IsPaymentPending reports whether the gateway status code means the payment
// is still in flight
func IsPaymentPending(statusCode string) bool {
	_, ok := pendingStatuses[statusCode]
	return ok
}

// MapToInternalStatus classifies a gateway status code into the internal
// vocabulary. Unrecognized codes map to pending.
func MapToInternalStatus(statusCode string) PaymentStatus {
	switch {
	case IsPaymentSuccessful(statusCode):
		return StatusCompleted
	case IsPaymentFailed(statusCode):
		return StatusFailed
	default:
		return StatusPending
	}
}
