package quickpay

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
)

// OrderStatus represents the lifecycle state of an order record.
type OrderStatus string

const (
	StatusPending   OrderStatus = "pending"
	StatusCompleted OrderStatus = "completed"
	StatusFailed    OrderStatus = "failed"
)

// ComponentKind identifies the business object behind an order. It is
// stored on the order record when the checkout is built, so notification
// processing never has to guess it from free-text fields.
type ComponentKind string

const (
	ComponentContribution ComponentKind = "contribute"
	ComponentEvent        ComponentKind = "event"
)

// Order is the bridge's view of the persisted order/contribution record.
// The record itself is owned by the order gateway; this core only reads
// it and drives its status transition.
type Order struct {
	ID            int64
	ContactID     int64
	Component     ComponentKind
	Status        OrderStatus
	TotalAmount   decimal.Decimal
	Currency      string
	InvoiceID     string
	TrxnID        string
	OrderTypeID   int64
	EventID       int64
	ParticipantID int64
	MembershipID  int64
}

// Errors surfaced by notification processing. AlreadyProcessed is not
// among them: a redelivered notification for a settled order is an
// expected no-op outcome, not a failure.
var (
	ErrOrderNotFound = errors.New("quickpay: order not found")
	ErrMissingField  = errors.New("quickpay: required notification field missing")
	ErrDataMismatch  = errors.New("quickpay: notification does not match stored order")
)

// OrderGateway is the contract the host application's order storage must
// satisfy. CompleteOrder must perform the status check and update as one
// transaction: it returns true only for the single caller that moved the
// order out of pending, so concurrent duplicate notifications cannot
// both complete it.
type OrderGateway interface {
	FindOrder(ctx context.Context, orderID int64) (*Order, error)
	CompleteOrder(ctx context.Context, orderID int64, trxnID string) (bool, error)
	FailOrder(ctx context.Context, orderID int64, reason string) error
}
