package handler

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/crmpay/qpbridge/infra/logger"
	"github.com/crmpay/qpbridge/infra/middle"
	"github.com/crmpay/qpbridge/infra/opensearch"
	"github.com/crmpay/qpbridge/infra/response"
	"github.com/crmpay/qpbridge/quickpay"
)

// NotifyHandler receives the gateway's server-to-server payment
// notifications. This endpoint is the only unauthenticated route; the
// MD5 signature inside the form body is its authentication.
type NotifyHandler struct {
	processor *quickpay.Processor
	merchant  string
	audit     *opensearch.Logger
}

// NewNotifyHandler creates a new notification handler
func NewNotifyHandler(processor *quickpay.Processor, merchant string, audit *opensearch.Logger) *NotifyHandler {
	return &NotifyHandler{
		processor: processor,
		merchant:  merchant,
		audit:     audit,
	}
}

// HandleNotification handles POST /notify. The gateway retries until it
// receives a 2xx; anything else it treats as undelivered. Replies are
// plain text so the gateway operator can read the reason in its logs.
func (h *NotifyHandler) HandleNotification(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	ctx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
	defer cancel()

	if err := r.ParseForm(); err != nil {
		logger.WithMerchant(h.merchant).AddField("error", err.Error()).Warn("Unparseable notification body")
		response.Text(w, http.StatusBadRequest, "Failure: unparseable request body")
		return
	}

	fields := make(map[string]string, len(r.PostForm))
	for key := range r.PostForm {
		fields[key] = r.PostForm.Get(key)
	}

	outcome := h.processor.Process(ctx, fields)

	h.auditOutcome(r, fields, outcome, time.Since(start))

	if outcome.Ack {
		response.Text(w, http.StatusOK, "Success: %s", outcome.Message)
		return
	}

	status := http.StatusBadRequest
	switch outcome.State {
	case quickpay.NotifyRejected:
		status = http.StatusForbidden
	case quickpay.NotifyFailed:
		// A pending order left untouched means the gateway should try
		// again later.
		if errors.Is(outcome.Err, quickpay.ErrOrderNotFound) {
			status = http.StatusNotFound
		}
	}
	response.Text(w, status, "Failure: %s", outcome.Message)
}

// auditOutcome ships the processed notification to the audit index.
// Indexing happens on a detached context so a slow OpenSearch never
// delays the ack the gateway is waiting for.
func (h *NotifyHandler) auditOutcome(r *http.Request, fields map[string]string, outcome quickpay.NotifyOutcome, elapsed time.Duration) {
	if h.audit == nil {
		return
	}

	entry := opensearch.NotificationLog{
		Timestamp:        time.Now(),
		Merchant:         h.merchant,
		OrderID:          outcome.OrderID,
		OrderNumber:      fields["ordernumber"],
		Transaction:      outcome.Transaction,
		Qpstat:           fields["qpstat"],
		Result:           string(outcome.Result),
		State:            string(outcome.State),
		Acknowledged:     outcome.Ack,
		Message:          outcome.Message,
		ClientIP:         middle.GetClientIP(r),
		ProcessingTimeMs: elapsed.Milliseconds(),
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := h.audit.LogNotification(ctx, entry); err != nil {
			logger.WithOrder(h.merchant, outcome.OrderID).
				AddField("error", err.Error()).
				Warn("Failed to index notification audit entry")
		}
	}()
}
