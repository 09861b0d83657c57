package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/crmpay/qpbridge/infra/opensearch"
	"github.com/crmpay/qpbridge/infra/response"
	"github.com/crmpay/qpbridge/infra/store"
)

// HealthHandler reports liveness of the bridge and its dependencies.
type HealthHandler struct {
	orders     *store.OrderStore
	openSearch *opensearch.Client
	startedAt  time.Time
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(orders *store.OrderStore, openSearch *opensearch.Client) *HealthHandler {
	return &HealthHandler{
		orders:     orders,
		openSearch: openSearch,
		startedAt:  time.Now(),
	}
}

// Health handles GET /health. The order database is the only hard
// dependency; the audit index being down degrades but does not fail
// the check.
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	dbStatus := "ok"
	statusCode := http.StatusOK
	if err := h.orders.Ping(ctx); err != nil {
		dbStatus = "unavailable"
		statusCode = http.StatusServiceUnavailable
	}

	auditStatus := "disabled"
	if h.openSearch != nil && h.openSearch.IsEnabled() {
		auditStatus = "enabled"
	}

	stats := h.orders.Stats()
	data := map[string]any{
		"status":    dbStatus,
		"uptime":    time.Since(h.startedAt).Round(time.Second).String(),
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"database": map[string]any{
			"status":           dbStatus,
			"open_connections": stats.OpenConnections,
			"in_use":           stats.InUse,
			"idle":             stats.Idle,
		},
		"audit_log": auditStatus,
	}

	if statusCode != http.StatusOK {
		response.Error(w, statusCode, "Service degraded", nil)
		return
	}
	response.Success(w, statusCode, "Service healthy", data)
}
