package quickpay

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/crmpay/qpbridge/infra/logger"
)

// NotifyState is the terminal state of one notification-processing run.
type NotifyState string

const (
	// NotifyCompleted: the payment succeeded and this run moved the
	// order to completed.
	NotifyCompleted NotifyState = "completed"
	// NotifyFailed: the payment failed, or the notification disagreed
	// with the stored order and was refused.
	NotifyFailed NotifyState = "failed"
	// NotifyIgnored: the order was already settled; the redelivery is
	// acknowledged without touching anything.
	NotifyIgnored NotifyState = "ignored"
	// NotifyRejected: signature verification failed; the message is not
	// authenticated and no order was looked up or mutated.
	NotifyRejected NotifyState = "rejected"
)

// NotifyOutcome is the single outcome every processing run produces.
// Ack tells the transport whether to answer the gateway with success
// (stop redelivering) or failure (redeliver later).
type NotifyOutcome struct {
	State       NotifyState
	Ack         bool
	Message     string
	OrderID     int64
	Transaction string
	Result      Result
	Err         error
}

// Processor drives the notification state machine for one merchant
// account. It holds no mutable state of its own; the order gateway's
// transactional update is the only concurrency guard needed.
type Processor struct {
	cfg    MerchantConfig
	orders OrderGateway
}

// NewProcessor creates a notification processor backed by the given
// order gateway.
func NewProcessor(cfg MerchantConfig, orders OrderGateway) *Processor {
	return &Processor{cfg: cfg, orders: orders}
}

// Process runs one inbound notification through verification, order
// resolution and the lifecycle transition. It always returns exactly one
// outcome; errors are carried inside it so the transport layer can map
// them to a response without losing the ack decision.
func (p *Processor) Process(ctx context.Context, fields map[string]string) NotifyOutcome {
	if !VerifySignature(fields, p.cfg.Secret) {
		logger.Warn("Notification signature verification failed", logger.LogContext{
			Merchant: p.cfg.MerchantID,
			Fields:   map[string]any{"ordernumber": fields["ordernumber"]},
		})
		return NotifyOutcome{
			State:   NotifyRejected,
			Ack:     false,
			Message: "signature verification failed",
			Err:     fmt.Errorf("quickpay: md5check mismatch"),
		}
	}

	custom := ExtractCustomFields(fields)
	orderID, err := requireID(custom, "orderID")
	if err != nil {
		return p.fail(0, "missing order reference", err)
	}
	if _, err := requireID(custom, "contactID"); err != nil {
		return p.fail(orderID, "missing contact reference", err)
	}

	ord, err := p.orders.FindOrder(ctx, orderID)
	if err != nil {
		// A missing order and a storage outage are different incidents;
		// keep the messages apart so operator logs don't misreport one
		// as the other.
		message := "order lookup failed"
		if errors.Is(err, ErrOrderNotFound) {
			message = fmt.Sprintf("order %d not found", orderID)
		}
		logger.Error("Order lookup failed", err, logger.LogContext{
			Merchant: p.cfg.MerchantID,
			OrderID:  orderID,
		})
		return NotifyOutcome{
			State:   NotifyFailed,
			Ack:     false,
			Message: message,
			OrderID: orderID,
			Err:     err,
		}
	}

	// Idempotency latch: a settled order means this delivery is a
	// duplicate. Acknowledge it so the gateway stops retrying.
	if ord.Status == StatusCompleted {
		logger.Info("Duplicate notification for completed order", logger.LogContext{
			Merchant: p.cfg.MerchantID,
			OrderID:  ord.ID,
		})
		return NotifyOutcome{
			State:   NotifyIgnored,
			Ack:     true,
			Message: "order already completed",
			OrderID: ord.ID,
		}
	}

	if mismatch := p.checkConsistency(ord, fields, custom); mismatch != nil {
		logger.Warn("Notification does not match stored order", logger.LogContext{
			Merchant: p.cfg.MerchantID,
			OrderID:  ord.ID,
			Fields:   map[string]any{"reason": mismatch.Error()},
		})
		return NotifyOutcome{
			State:   NotifyFailed,
			Ack:     false,
			Message: mismatch.Error(),
			OrderID: ord.ID,
			Err:     ErrDataMismatch,
		}
	}

	result := ResultFromStatus(fields["qpstat"])
	transaction := fields["transaction"]

	switch result {
	case ResultSuccess:
		return p.complete(ctx, ord, transaction)
	case ResultFailed:
		reason := fields["qpstatmsg"]
		if err := p.orders.FailOrder(ctx, ord.ID, reason); err != nil {
			logger.Error("Failed to record payment failure", err, logger.LogContext{
				Merchant: p.cfg.MerchantID,
				OrderID:  ord.ID,
			})
			return NotifyOutcome{State: NotifyFailed, Ack: false, Message: "could not record payment failure", OrderID: ord.ID, Result: result, Err: err}
		}
		logger.Info("Payment failed at gateway", logger.LogContext{
			Merchant: p.cfg.MerchantID,
			OrderID:  ord.ID,
			Fields:   map[string]any{"qpstat": fields["qpstat"], "qpstatmsg": reason},
		})
		return NotifyOutcome{
			State:       NotifyFailed,
			Ack:         true,
			Message:     fmt.Sprintf("payment failed: %s", reason),
			OrderID:     ord.ID,
			Transaction: transaction,
			Result:      result,
		}
	default:
		// Gateway-side or unknown errors leave the order pending; a
		// failure ack lets the gateway redeliver once its problem
		// clears.
		logger.Warn("Gateway reported error status", logger.LogContext{
			Merchant: p.cfg.MerchantID,
			OrderID:  ord.ID,
			Fields:   map[string]any{"qpstat": fields["qpstat"], "qpstatmsg": fields["qpstatmsg"]},
		})
		return NotifyOutcome{
			State:       NotifyFailed,
			Ack:         false,
			Message:     fmt.Sprintf("gateway error status %q", fields["qpstat"]),
			OrderID:     ord.ID,
			Transaction: transaction,
			Result:      result,
		}
	}
}

// checkConsistency guards against cross-order replay: the notification's
// invoice id and amount must match the stored order exactly.
func (p *Processor) checkConsistency(ord *Order, fields, custom map[string]string) error {
	if invoice := custom["invoiceID"]; invoice != ord.InvoiceID {
		return fmt.Errorf("invoice id %q does not match stored order", invoice)
	}
	expected, _, err := ConvertAmount(ord.TotalAmount, ord.Currency)
	if err != nil {
		return fmt.Errorf("stored order amount unusable: %w", err)
	}
	if fields["amount"] != expected {
		return fmt.Errorf("amount %q does not match stored order amount %s", fields["amount"], expected)
	}
	if currency := fields["currency"]; currency != "" && currency != ord.Currency {
		return fmt.Errorf("currency %q does not match stored order currency %s", currency, ord.Currency)
	}
	return nil
}

// complete performs the exactly-once completion. The gateway's
// conditional update decides the winner under concurrent delivery; the
// loser takes the ignored path.
func (p *Processor) complete(ctx context.Context, ord *Order, transaction string) NotifyOutcome {
	won, err := p.orders.CompleteOrder(ctx, ord.ID, transaction)
	if err != nil {
		logger.Error("Order completion failed", err, logger.LogContext{
			Merchant: p.cfg.MerchantID,
			OrderID:  ord.ID,
		})
		return NotifyOutcome{
			State:       NotifyFailed,
			Ack:         false,
			Message:     "order completion failed",
			OrderID:     ord.ID,
			Transaction: transaction,
			Result:      ResultSuccess,
			Err:         err,
		}
	}
	if !won {
		return NotifyOutcome{
			State:       NotifyIgnored,
			Ack:         true,
			Message:     "order already completed",
			OrderID:     ord.ID,
			Transaction: transaction,
			Result:      ResultSuccess,
		}
	}
	logger.Info("Order completed", logger.LogContext{
		Merchant: p.cfg.MerchantID,
		OrderID:  ord.ID,
		Fields:   map[string]any{"transaction": transaction},
	})
	return NotifyOutcome{
		State:       NotifyCompleted,
		Ack:         true,
		Message:     "order completed",
		OrderID:     ord.ID,
		Transaction: transaction,
		Result:      ResultSuccess,
	}
}

// fail builds the outcome for a notification whose required identifiers
// are absent. The message authenticated but cannot be resolved, so no
// order is mutated.
func (p *Processor) fail(orderID int64, message string, err error) NotifyOutcome {
	logger.Warn("Notification missing required field", logger.LogContext{
		Merchant: p.cfg.MerchantID,
		OrderID:  orderID,
		Fields:   map[string]any{"reason": message},
	})
	return NotifyOutcome{
		State:   NotifyFailed,
		Ack:     false,
		Message: message,
		OrderID: orderID,
		Err:     err,
	}
}

// requireID parses a required integer identifier out of the extracted
// custom fields.
func requireID(custom map[string]string, key string) (int64, error) {
	raw, ok := custom[key]
	if !ok || raw == "" {
		return 0, fmt.Errorf("%w: %s", ErrMissingField, key)
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %s is not an integer", ErrMissingField, key)
	}
	return id, nil
}
