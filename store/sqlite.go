package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/paygate-sk/tatrapay/infra/logger"
)

// SQLiteStore is a PaymentStore backed by a local SQLite database, so the
// order to payment-id mapping survives process restarts
type SQLiteStore struct {
	db   *sql.DB
	path string
}

// NewSQLiteStore creates a new SQLite-backed payment store
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory %s: %w", dir, err)
	}

	// WAL mode so webhook and callback handlers can read/write concurrently
	connStr := fmt.Sprintf("%s?_journal_mode=WAL&_synchronous=NORMAL&_timeout=20000", dbPath)

	db, err := sql.Open("sqlite3", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)

	s := &SQLiteStore{db: db, path: dbPath}

	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	logger.Info("SQLite payment store initialized", logger.LogContext{
		Fields: map[string]any{"path": dbPath},
	})

	return s, nil
}

// initSchema creates the payments table
func (s *SQLiteStore) initSchema() error {
	query := `
	CREATE TABLE IF NOT EXISTS payments (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		order_id TEXT NOT NULL UNIQUE,
		payment_id TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'pending',
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_payments_payment_id ON payments(payment_id);
	`

	_, err := s.db.Exec(query)
	return err
}

// retryOperation executes a database operation with retry logic for SQLITE_BUSY errors
func (s *SQLiteStore) retryOperation(operation func() error, maxRetries int) error {
	var lastErr error

	for attempt := 0; attempt <= maxRetries; attempt++ {
		err := operation()
		if err == nil {
			return nil
		}

		if strings.Contains(err.Error(), "SQLITE_BUSY") || strings.Contains(err.Error(), "database is locked") {
			lastErr = err
			if attempt < maxRetries {
				// Exponential backoff: 10ms, 20ms, 40ms
				backoff := time.Duration(10*(1<<attempt)) * time.Millisecond
				time.Sleep(backoff)
				continue
			}
		} else {
			return err
		}
	}

	return fmt.Errorf("operation failed after %d retries, last error: %w", maxRetries+1, lastErr)
}

// SavePaymentID records the gateway payment id assigned to an order.
// Upserting keeps redelivery and payment retries idempotent.
func (s *SQLiteStore) SavePaymentID(ctx context.Context, orderID, paymentID string) error {
	return s.retryOperation(func() error {
		query := `
		INSERT INTO payments (order_id, payment_id, updated_at)
		VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(order_id)
		DO UPDATE SET
			payment_id = excluded.payment_id,
			updated_at = CURRENT_TIMESTAMP
		`

		if _, err := s.db.ExecContext(ctx, query, orderID, paymentID); err != nil {
			return fmt.Errorf("failed to save payment mapping: %w", err)
		}
		return nil
	}, 3)
}

// LookupPaymentID returns the gateway payment id for an order
func (s *SQLiteStore) LookupPaymentID(ctx context.Context, orderID string) (string, error) {
	var paymentID string
	err := s.retryOperation(func() error {
		err := s.db.QueryRowContext(ctx, "SELECT payment_id FROM payments WHERE order_id = ?", orderID).Scan(&paymentID)
		if err == sql.ErrNoRows {
			return ErrNotFound
		}
		return err
	}, 3)

	return paymentID, err
}

// RecordStatus stores the last verified status for an order
func (s *SQLiteStore) RecordStatus(ctx context.Context, orderID, status string) error {
	return s.retryOperation(func() error {
		result, err := s.db.ExecContext(ctx,
			"UPDATE payments SET status = ?, updated_at = CURRENT_TIMESTAMP WHERE order_id = ?",
			status, orderID)
		if err != nil {
			return fmt.Errorf("failed to record status: %w", err)
		}

		affected, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to get rows affected: %w", err)
		}
		if affected == 0 {
			return ErrNotFound
		}
		return nil
	}, 3)
}

// GetRecord returns the full mapping record for an order
func (s *SQLiteStore) GetRecord(ctx context.Context, orderID string) (*PaymentRecord, error) {
	var rec PaymentRecord
	err := s.retryOperation(func() error {
		row := s.db.QueryRowContext(ctx,
			"SELECT order_id, payment_id, status, created_at, updated_at FROM payments WHERE order_id = ?",
			orderID)

		err := row.Scan(&rec.OrderID, &rec.PaymentID, &rec.Status, &rec.CreatedAt, &rec.UpdatedAt)
		if err == sql.ErrNoRows {
			return ErrNotFound
		}
		return err
	}, 3)

	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}
