package handler

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/crmpay/qpbridge/infra/opensearch"
	"github.com/crmpay/qpbridge/infra/response"
)

// NotificationSearcher queries the notification audit index.
type NotificationSearcher interface {
	SearchNotifications(ctx context.Context, query map[string]any) ([]opensearch.NotificationLog, error)
}

// AuditHandler exposes the notification audit trail to operators. Money
// disputes get settled from these records, so they are queryable without
// shelling into OpenSearch directly.
type AuditHandler struct {
	search NotificationSearcher
}

// NewAuditHandler creates a new audit handler
func NewAuditHandler(search NotificationSearcher) *AuditHandler {
	return &AuditHandler{search: search}
}

// ListNotifications handles GET /v1/notifications. Supported filters:
// orderId, state, hours (default 24, max 168).
func (h *AuditHandler) ListNotifications(w http.ResponseWriter, r *http.Request) {
	if h.search == nil {
		response.Error(w, http.StatusServiceUnavailable, "Audit logging is disabled", nil)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
	defer cancel()

	var filters []map[string]any

	if orderID := r.URL.Query().Get("orderId"); orderID != "" {
		id, err := strconv.ParseInt(orderID, 10, 64)
		if err != nil {
			response.Error(w, http.StatusBadRequest, "orderId must be an integer", err)
			return
		}
		filters = append(filters, map[string]any{
			"match": map[string]any{"order_id": id},
		})
	}

	if state := r.URL.Query().Get("state"); state != "" {
		filters = append(filters, map[string]any{
			"match": map[string]any{"state": state},
		})
	}

	hours := 24
	if hoursStr := r.URL.Query().Get("hours"); hoursStr != "" {
		if parsed, err := strconv.Atoi(hoursStr); err == nil && parsed > 0 && parsed <= 168 { // Max 7 days
			hours = parsed
		}
	}
	filters = append(filters, map[string]any{
		"range": map[string]any{
			"timestamp": map[string]any{
				"gte": fmt.Sprintf("now-%dh", hours),
			},
		},
	})

	query := filters[0]
	if len(filters) > 1 {
		query = map[string]any{
			"bool": map[string]any{
				"must": filters,
			},
		}
	}

	logs, err := h.search.SearchNotifications(ctx, query)
	if err != nil {
		response.Error(w, http.StatusInternalServerError, "Failed to search notification logs", err)
		return
	}

	response.Success(w, http.StatusOK, "Notification logs retrieved", map[string]any{
		"count":         len(logs),
		"hours":         hours,
		"notifications": logs,
	})
}
