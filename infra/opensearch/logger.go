package opensearch

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Logger ships structured log entries to OpenSearch
type Logger struct {
	client *Client
}

// NewLogger creates a new OpenSearch logger
func NewLogger(client *Client) *Logger {
	return &Logger{client: client}
}

// PaymentLog represents a structured payment log entry
type PaymentLog struct {
	Timestamp    time.Time `json:"timestamp"`
	Provider     string    `json:"provider"`
	Operation    string    `json:"operation"`
	PaymentID    string    `json:"payment_id,omitempty"`
	OrderID      string    `json:"order_id,omitempty"`
	Method       string    `json:"method,omitempty"`
	Status       string    `json:"status,omitempty"`
	AmountMinor  int64     `json:"amount_minor,omitempty"`
	Currency     string    `json:"currency,omitempty"`
	ClientIP     string    `json:"client_ip,omitempty"`
	RequestID    string    `json:"request_id,omitempty"`
	Error        string    `json:"error,omitempty"`
	ProcessingMs int64     `json:"processing_ms,omitempty"`
}

// LogSystemEvent indexes a system log entry. The entry is marshaled as-is,
// so callers control the document shape.
func (l *Logger) LogSystemEvent(ctx context.Context, entry any) error {
	body, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to marshal system log entry: %w", err)
	}

	return l.client.index(ctx, l.client.SystemLogIndexName(), uuid.New().String(), string(body))
}

// LogPaymentEvent indexes a payment log entry
func (l *Logger) LogPaymentEvent(ctx context.Context, entry PaymentLog) error {
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now().UTC()
	}

	body, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to marshal payment log entry: %w", err)
	}

	return l.client.index(ctx, l.client.PaymentLogIndexName(), uuid.New().String(), string(body))
}
