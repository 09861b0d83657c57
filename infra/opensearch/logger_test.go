package opensearch

import (
	"context"
	"encoding/json"
	"testing"
	"time"
)

func TestNotificationLogMarshalling(t *testing.T) {
	entry := NotificationLog{
		Timestamp:        time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC),
		RequestID:        "req-1",
		Merchant:         "12345678",
		OrderID:          42,
		OrderNumber:      "shop00042",
		Transaction:      "987654321",
		Qpstat:           "000",
		Result:           "success",
		State:            "completed",
		Acknowledged:     true,
		Message:          "order completed",
		ClientIP:         "203.0.113.7",
		ProcessingTimeMs: 12,
	}

	raw, err := json.Marshal(entry)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var doc map[string]any
	if err := json.Unmarshal(raw, &doc); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	// Field names must match the index mapping.
	for _, key := range []string{"timestamp", "order_id", "ordernumber", "transaction", "qpstat", "state", "acknowledged", "client_ip"} {
		if _, ok := doc[key]; !ok {
			t.Errorf("document missing %q: %s", key, raw)
		}
	}
	if doc["order_id"] != float64(42) {
		t.Errorf("order_id = %v", doc["order_id"])
	}
}

func TestNotificationLogOmitsEmptyFields(t *testing.T) {
	raw, err := json.Marshal(NotificationLog{State: "rejected"})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var doc map[string]any
	if err := json.Unmarshal(raw, &doc); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	for _, key := range []string{"merchant", "order_id", "transaction", "message"} {
		if _, ok := doc[key]; ok {
			t.Errorf("empty %q should be omitted: %s", key, raw)
		}
	}
}

func TestLogNotificationDisabled(t *testing.T) {
	// A logger over a disabled client drops entries without error, so a
	// missing OpenSearch never breaks notification processing.
	logger := NewLogger(&Client{})

	err := logger.LogNotification(context.Background(), NotificationLog{State: "completed"})
	if err != nil {
		t.Errorf("disabled logging must be a no-op, got %v", err)
	}

	if err := logger.LogSystemEvent(context.Background(), map[string]string{"k": "v"}); err != nil {
		t.Errorf("disabled system logging must be a no-op, got %v", err)
	}
}

func TestSearchNotificationsDisabled(t *testing.T) {
	logger := NewLogger(&Client{})

	if _, err := logger.SearchNotifications(context.Background(), map[string]any{}); err == nil {
		t.Error("searching a disabled index must report an error")
	}
}
