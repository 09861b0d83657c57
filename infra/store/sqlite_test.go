package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/crmpay/qpbridge/quickpay"
)

func newTestStore(t *testing.T) *OrderStore {
	t.Helper()
	store, err := NewOrderStore(filepath.Join(t.TempDir(), "orders.db"))
	if err != nil {
		t.Fatalf("NewOrderStore: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func testOrder() *quickpay.Order {
	return &quickpay.Order{
		ContactID:   7,
		Component:   quickpay.ComponentContribution,
		Status:      quickpay.StatusPending,
		TotalAmount: decimal.RequireFromString("100.00"),
		Currency:    "DKK",
		InvoiceID:   "inv-1",
		OrderTypeID: 3,
	}
}

func TestCreateAndFindOrder(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	id, err := store.CreateOrder(ctx, testOrder())
	if err != nil {
		t.Fatalf("CreateOrder: %v", err)
	}
	if id == 0 {
		t.Fatal("expected a non-zero order id")
	}

	ord, err := store.FindOrder(ctx, id)
	if err != nil {
		t.Fatalf("FindOrder: %v", err)
	}
	if ord.ID != id {
		t.Errorf("id = %d, want %d", ord.ID, id)
	}
	if ord.Status != quickpay.StatusPending {
		t.Errorf("status = %q, want pending", ord.Status)
	}
	if !ord.TotalAmount.Equal(decimal.RequireFromString("100.00")) {
		t.Errorf("amount = %s, want 100.00", ord.TotalAmount)
	}
	if ord.Component != quickpay.ComponentContribution {
		t.Errorf("component = %q", ord.Component)
	}
	if ord.InvoiceID != "inv-1" {
		t.Errorf("invoice = %q", ord.InvoiceID)
	}
}

func TestFindOrderNotFound(t *testing.T) {
	store := newTestStore(t)

	_, err := store.FindOrder(context.Background(), 9999)
	if !errors.Is(err, quickpay.ErrOrderNotFound) {
		t.Errorf("err = %v, want ErrOrderNotFound", err)
	}
}

func TestCompleteOrderExactlyOnce(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	id, err := store.CreateOrder(ctx, testOrder())
	if err != nil {
		t.Fatalf("CreateOrder: %v", err)
	}

	won, err := store.CompleteOrder(ctx, id, "987654321")
	if err != nil {
		t.Fatalf("CompleteOrder: %v", err)
	}
	if !won {
		t.Fatal("first completion should win")
	}

	// A redelivered notification loses the conditional update.
	won, err = store.CompleteOrder(ctx, id, "987654321")
	if err != nil {
		t.Fatalf("second CompleteOrder: %v", err)
	}
	if won {
		t.Fatal("second completion must not win")
	}

	ord, err := store.FindOrder(ctx, id)
	if err != nil {
		t.Fatalf("FindOrder: %v", err)
	}
	if ord.Status != quickpay.StatusCompleted {
		t.Errorf("status = %q, want completed", ord.Status)
	}
	if ord.TrxnID != "987654321" {
		t.Errorf("trxn_id = %q", ord.TrxnID)
	}
	// The transaction reference replaces the provisional invoice id as
	// the reconciliation key.
	if ord.InvoiceID != "987654321" {
		t.Errorf("invoice_id = %q, want transaction reference", ord.InvoiceID)
	}
}

func TestFailOrder(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	id, err := store.CreateOrder(ctx, testOrder())
	if err != nil {
		t.Fatalf("CreateOrder: %v", err)
	}

	if err := store.FailOrder(ctx, id, "Rejected by acquirer"); err != nil {
		t.Fatalf("FailOrder: %v", err)
	}

	ord, err := store.FindOrder(ctx, id)
	if err != nil {
		t.Fatalf("FindOrder: %v", err)
	}
	if ord.Status != quickpay.StatusFailed {
		t.Errorf("status = %q, want failed", ord.Status)
	}
}

func TestFailOrderLeavesCompletedUntouched(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	id, err := store.CreateOrder(ctx, testOrder())
	if err != nil {
		t.Fatalf("CreateOrder: %v", err)
	}
	if _, err := store.CompleteOrder(ctx, id, "987654321"); err != nil {
		t.Fatalf("CompleteOrder: %v", err)
	}

	if err := store.FailOrder(ctx, id, "late failure"); err != nil {
		t.Fatalf("FailOrder: %v", err)
	}

	ord, err := store.FindOrder(ctx, id)
	if err != nil {
		t.Fatalf("FindOrder: %v", err)
	}
	if ord.Status != quickpay.StatusCompleted {
		t.Errorf("status = %q, completed order must not regress", ord.Status)
	}
}

func TestPing(t *testing.T) {
	store := newTestStore(t)
	if err := store.Ping(context.Background()); err != nil {
		t.Errorf("Ping: %v", err)
	}
}
