package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/crmpay/qpbridge/infra/opensearch"
)

// fakeSearcher records the query it was asked and returns canned logs.
type fakeSearcher struct {
	query map[string]any
	logs  []opensearch.NotificationLog
	err   error
}

func (s *fakeSearcher) SearchNotifications(ctx context.Context, query map[string]any) ([]opensearch.NotificationLog, error) {
	s.query = query
	return s.logs, s.err
}

func getNotifications(t *testing.T, h *AuditHandler, target string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ListNotifications(rec, httptest.NewRequest(http.MethodGet, target, nil))
	return rec
}

func TestListNotifications(t *testing.T) {
	searcher := &fakeSearcher{logs: []opensearch.NotificationLog{
		{Timestamp: time.Now(), OrderID: 42, State: "completed", Acknowledged: true},
	}}
	h := NewAuditHandler(searcher)

	rec := getNotifications(t, h, "/v1/notifications")

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}

	var envelope struct {
		Data struct {
			Count int `json:"count"`
			Hours int `json:"hours"`
		} `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if envelope.Data.Count != 1 {
		t.Errorf("count = %d", envelope.Data.Count)
	}
	if envelope.Data.Hours != 24 {
		t.Errorf("hours = %d, want default 24", envelope.Data.Hours)
	}

	// With no filters, the query is the bare time-range window.
	if _, ok := searcher.query["range"]; !ok {
		t.Errorf("query = %v, want a range filter", searcher.query)
	}
}

func TestListNotificationsOrderFilter(t *testing.T) {
	searcher := &fakeSearcher{}
	h := NewAuditHandler(searcher)

	rec := getNotifications(t, h, "/v1/notifications?orderId=42&state=rejected&hours=48")

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	boolQuery, ok := searcher.query["bool"].(map[string]any)
	if !ok {
		t.Fatalf("query = %v, combined filters must form a bool query", searcher.query)
	}
	must, ok := boolQuery["must"].([]map[string]any)
	if !ok || len(must) != 3 {
		t.Fatalf("must = %v, want order, state and time filters", boolQuery["must"])
	}
}

func TestListNotificationsBadOrderID(t *testing.T) {
	h := NewAuditHandler(&fakeSearcher{})

	rec := getNotifications(t, h, "/v1/notifications?orderId=abc")

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestListNotificationsHoursCapped(t *testing.T) {
	searcher := &fakeSearcher{}
	h := NewAuditHandler(searcher)

	rec := getNotifications(t, h, "/v1/notifications?hours=9999")

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	var envelope struct {
		Data struct {
			Hours int `json:"hours"`
		} `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if envelope.Data.Hours != 24 {
		t.Errorf("hours = %d, out-of-range values fall back to the default", envelope.Data.Hours)
	}
}

func TestListNotificationsDisabled(t *testing.T) {
	h := NewAuditHandler(nil)

	rec := getNotifications(t, h, "/v1/notifications")

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503 when auditing is disabled", rec.Code)
	}
}

func TestListNotificationsSearchFailure(t *testing.T) {
	h := NewAuditHandler(&fakeSearcher{err: errors.New("index unavailable")})

	rec := getNotifications(t, h, "/v1/notifications")

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}
}
