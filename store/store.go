package store

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrNotFound is returned when no payment mapping exists for an order
var ErrNotFound = errors.New("payment mapping not found")

// PaymentRecord is one order's gateway mapping and last verified status
type PaymentRecord struct {
	OrderID   string    `json:"orderId"`
	PaymentID string    `json:"paymentId"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// PaymentStore is the order to gateway-payment-id mapping capability the
// handlers depend on. Order persistence itself belongs to the host
// application; this interface only covers what the payment flow needs.
type PaymentStore interface {
	// SavePaymentID records the gateway payment id assigned to an order.
	// Saving the same mapping again is a no-op, so redelivery is safe.
	SavePaymentID(ctx context.Context, orderID, paymentID string) error

	// LookupPaymentID returns the gateway payment id for an order, or
	// ErrNotFound
	LookupPaymentID(ctx context.Context, orderID string) (string, error)

	// RecordStatus stores the last verified status for an order
	RecordStatus(ctx context.Context, orderID, status string) error

	// GetRecord returns the full mapping record for an order, or ErrNotFound
	GetRecord(ctx context.Context, orderID string) (*PaymentRecord, error)
}

// MemoryStore is an in-process PaymentStore, used as the default backend
// and in tests
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string]*PaymentRecord
}

// NewMemoryStore creates a new in-memory payment store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[string]*PaymentRecord)}
}

// SavePaymentID records the gateway payment id assigned to an order
func (s *MemoryStore) SavePaymentID(_ context.Context, orderID, paymentID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	if rec, ok := s.records[orderID]; ok {
		rec.PaymentID = paymentID
		rec.UpdatedAt = now
		return nil
	}

	s.records[orderID] = &PaymentRecord{
		OrderID:   orderID,
		PaymentID: paymentID,
		Status:    "pending",
		CreatedAt: now,
		UpdatedAt: now,
	}
	return nil
}

// LookupPaymentID returns the gateway payment id for an order
func (s *MemoryStore) LookupPaymentID(_ context.Context, orderID string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.records[orderID]
	if !ok {
		return "", ErrNotFound
	}
	return rec.PaymentID, nil
}

// RecordStatus stores the last verified status for an order
func (s *MemoryStore) RecordStatus(_ context.Context, orderID, status string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[orderID]
	if !ok {
		return ErrNotFound
	}
	rec.Status = status
	rec.UpdatedAt = time.Now().UTC()
	return nil
}

// GetRecord returns the full mapping record for an order
func (s *MemoryStore) GetRecord(_ context.Context, orderID string) (*PaymentRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.records[orderID]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *rec
	return &cp, nil
}
