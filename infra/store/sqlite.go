package store

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/crmpay/qpbridge/quickpay"
)

// OrderStore is a SQLite-backed implementation of quickpay.OrderGateway.
// The conditional completion update gives the notification processor its
// exactly-once guarantee.
type OrderStore struct {
	db   *sql.DB
	path string
}

// NewOrderStore opens (or creates) the order database at dbPath.
func NewOrderStore(dbPath string) (*OrderStore, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory %s: %w", dir, err)
	}

	// WAL with immediate transactions keeps concurrent notification
	// deliveries from starving each other on the write lock.
	connStr := fmt.Sprintf("%s?_journal_mode=WAL&_synchronous=NORMAL&_cache_size=1000&_timeout=20000&_txlock=immediate", dbPath)

	db, err := sql.Open("sqlite3", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(0)

	store := &OrderStore{
		db:   db,
		path: dbPath,
	}

	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	log.Printf("Order store initialized at: %s", dbPath)
	return store, nil
}

// initSchema creates the orders table
func (s *OrderStore) initSchema() error {
	query := `
	CREATE TABLE IF NOT EXISTS orders (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		contact_id INTEGER NOT NULL,
		component TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'pending',
		total_amount TEXT NOT NULL,
		currency TEXT NOT NULL,
		invoice_id TEXT NOT NULL,
		trxn_id TEXT NOT NULL DEFAULT '',
		fail_reason TEXT NOT NULL DEFAULT '',
		order_type_id INTEGER NOT NULL DEFAULT 0,
		event_id INTEGER NOT NULL DEFAULT 0,
		participant_id INTEGER NOT NULL DEFAULT 0,
		membership_id INTEGER NOT NULL DEFAULT 0,
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_orders_status ON orders(status);
	CREATE INDEX IF NOT EXISTS idx_orders_invoice ON orders(invoice_id);
	`

	_, err := s.db.Exec(query)
	return err
}

// retryOperation executes a database operation with retry logic for SQLITE_BUSY errors
func (s *OrderStore) retryOperation(operation func() error, maxRetries int) error {
	var lastErr error

	for attempt := 0; attempt <= maxRetries; attempt++ {
		err := operation()
		if err == nil {
			return nil
		}

		if strings.Contains(err.Error(), "SQLITE_BUSY") || strings.Contains(err.Error(), "database is locked") {
			lastErr = err
			if attempt < maxRetries {
				// Exponential backoff: 10ms, 20ms, 40ms, 80ms
				backoff := time.Duration(10*(1<<attempt)) * time.Millisecond
				log.Printf("SQLite busy, retrying in %v (attempt %d/%d)", backoff, attempt+1, maxRetries+1)
				time.Sleep(backoff)
				continue
			}
		} else {
			return err
		}
	}

	return fmt.Errorf("operation failed after %d retries, last error: %w", maxRetries+1, lastErr)
}

// CreateOrder persists a new pending order and returns its id.
func (s *OrderStore) CreateOrder(ctx context.Context, ord *quickpay.Order) (int64, error) {
	query := `
		INSERT INTO orders (
			contact_id, component, status, total_amount, currency,
			invoice_id, order_type_id, event_id, participant_id, membership_id
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	var id int64
	err := s.retryOperation(func() error {
		res, err := s.db.ExecContext(ctx, query,
			ord.ContactID, string(ord.Component), string(quickpay.StatusPending),
			ord.TotalAmount.String(), ord.Currency, ord.InvoiceID,
			ord.OrderTypeID, ord.EventID, ord.ParticipantID, ord.MembershipID,
		)
		if err != nil {
			return err
		}
		id, err = res.LastInsertId()
		return err
	}, 3)

	if err != nil {
		return 0, fmt.Errorf("failed to create order: %w", err)
	}
	return id, nil
}

// FindOrder looks up an order by id.
func (s *OrderStore) FindOrder(ctx context.Context, orderID int64) (*quickpay.Order, error) {
	query := `
		SELECT id, contact_id, component, status, total_amount, currency,
			invoice_id, trxn_id, order_type_id, event_id, participant_id, membership_id
		FROM orders
		WHERE id = ?
	`

	var ord quickpay.Order
	var component, status, totalAmount string

	err := s.db.QueryRowContext(ctx, query, orderID).Scan(
		&ord.ID, &ord.ContactID, &component, &status, &totalAmount, &ord.Currency,
		&ord.InvoiceID, &ord.TrxnID, &ord.OrderTypeID, &ord.EventID, &ord.ParticipantID, &ord.MembershipID,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, quickpay.ErrOrderNotFound
		}
		return nil, fmt.Errorf("failed to find order %d: %w", orderID, err)
	}

	amount, err := decimal.NewFromString(totalAmount)
	if err != nil {
		return nil, fmt.Errorf("order %d has unparseable amount %q: %w", orderID, totalAmount, err)
	}

	ord.Component = quickpay.ComponentKind(component)
	ord.Status = quickpay.OrderStatus(status)
	ord.TotalAmount = amount
	return &ord, nil
}

// CompleteOrder transitions an order from pending to completed and
// records the gateway's transaction reference as the durable
// reconciliation key. The status guard in the WHERE clause makes the
// transition first-writer-wins: zero affected rows means some other
// delivery already settled the order.
func (s *OrderStore) CompleteOrder(ctx context.Context, orderID int64, trxnID string) (bool, error) {
	query := `
		UPDATE orders
		SET status = ?, trxn_id = ?, invoice_id = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ? AND status = ?
	`

	var affected int64
	err := s.retryOperation(func() error {
		res, err := s.db.ExecContext(ctx, query,
			string(quickpay.StatusCompleted), trxnID, trxnID,
			orderID, string(quickpay.StatusPending),
		)
		if err != nil {
			return err
		}
		affected, err = res.RowsAffected()
		return err
	}, 3)

	if err != nil {
		return false, fmt.Errorf("failed to complete order %d: %w", orderID, err)
	}
	return affected == 1, nil
}

// FailOrder marks a pending order as failed with the gateway's reason.
// Already-settled orders are left untouched.
func (s *OrderStore) FailOrder(ctx context.Context, orderID int64, reason string) error {
	query := `
		UPDATE orders
		SET status = ?, fail_reason = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ? AND status = ?
	`

	return s.retryOperation(func() error {
		_, err := s.db.ExecContext(ctx, query,
			string(quickpay.StatusFailed), reason,
			orderID, string(quickpay.StatusPending),
		)
		return err
	}, 3)
}

// Ping verifies the database connection is alive.
func (s *OrderStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Stats exposes connection-pool statistics for health reporting.
func (s *OrderStore) Stats() sql.DBStats {
	return s.db.Stats()
}

// Close closes the underlying database.
func (s *OrderStore) Close() error {
	return s.db.Close()
}
