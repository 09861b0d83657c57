package handler

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/crmpay/qpbridge/infra/store"
)

func TestHealth(t *testing.T) {
	orders, err := store.NewOrderStore(filepath.Join(t.TempDir(), "orders.db"))
	if err != nil {
		t.Fatalf("NewOrderStore: %v", err)
	}
	t.Cleanup(func() { orders.Close() })

	h := NewHealthHandler(orders, nil)

	rec := httptest.NewRecorder()
	h.Health(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	var envelope struct {
		Success bool `json:"success"`
		Data    struct {
			Status   string `json:"status"`
			AuditLog string `json:"audit_log"`
		} `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !envelope.Success || envelope.Data.Status != "ok" {
		t.Errorf("unexpected envelope: %s", rec.Body.String())
	}
	if envelope.Data.AuditLog != "disabled" {
		t.Errorf("audit_log = %q, want disabled without a client", envelope.Data.AuditLog)
	}
}
