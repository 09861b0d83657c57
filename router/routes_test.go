package router

import (
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/crmpay/qpbridge/handler"
	"github.com/crmpay/qpbridge/infra/store"
	"github.com/crmpay/qpbridge/quickpay"
)

func testServer(t *testing.T) (*chi.Mux, *store.OrderStore, quickpay.MerchantConfig) {
	t.Helper()
	t.Setenv("API_KEY", "test-api-key")

	cfg := quickpay.MerchantConfig{
		MerchantID:  "12345678",
		Secret:      "s3cret",
		OrderPrefix: "shop",
		SubmitURL:   "https://secure.quickpay.dk/form/",
		CallbackURL: "https://example.org/notify",
		TestMode:    true,
	}

	accounts := quickpay.NewRegistry()
	if err := accounts.Register("default", cfg); err != nil {
		t.Fatalf("Register: %v", err)
	}

	orders, err := store.NewOrderStore(filepath.Join(t.TempDir(), "orders.db"))
	if err != nil {
		t.Fatalf("NewOrderStore: %v", err)
	}
	t.Cleanup(func() { orders.Close() })

	r := chi.NewRouter()
	Routes(r, Handlers{
		Checkout: handler.NewCheckoutHandler(accounts, orders, validator.New(), "default"),
		Notify:   handler.NewNotifyHandler(quickpay.NewProcessor(cfg, orders), cfg.MerchantID, nil),
		Health:   handler.NewHealthHandler(orders, nil),
		Audit:    handler.NewAuditHandler(nil),
	})
	return r, orders, cfg
}

func TestHealthRoute(t *testing.T) {
	r, _, _ := testServer(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestCheckoutRequiresAPIKey(t *testing.T) {
	r, _, _ := testServer(t)

	req := httptest.NewRequest(http.MethodPost, "/v1/checkout", strings.NewReader("{}"))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
}

func TestNotificationsRouteRequiresAPIKey(t *testing.T) {
	r, _, _ := testServer(t)

	req := httptest.NewRequest(http.MethodGet, "/v1/notifications", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}

	authed := httptest.NewRequest(http.MethodGet, "/v1/notifications", nil)
	authed.Header.Set("Authorization", "Bearer test-api-key")
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, authed)

	// Auditing is disabled in this fixture; the route itself is reachable.
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", rec.Code)
	}
}

// notificationDigest reproduces the gateway's signing of its callback.
func notificationDigest(form url.Values, secret string) string {
	order := []string{
		"msgtype", "ordernumber", "amount", "currency", "time", "state",
		"qpstat", "qpstatmsg", "chstat", "chstatmsg", "merchant",
		"merchantemail", "transaction", "cardtype", "cardnumber",
	}
	var sb strings.Builder
	for _, name := range order {
		if form.Has(name) {
			sb.WriteString(form.Get(name))
		}
	}
	sb.WriteString(secret)
	sum := md5.Sum([]byte(sb.String()))
	return hex.EncodeToString(sum[:])
}

func TestCheckoutThenNotificationFlow(t *testing.T) {
	r, orders, cfg := testServer(t)

	body := `{
		"component": "contribute",
		"contactId": 7,
		"amount": "100.00",
		"currency": "DKK",
		"invoiceId": "inv-flow",
		"continueUrl": "https://example.org/thanks",
		"cancelUrl": "https://example.org/cancel"
	}`
	req := httptest.NewRequest(http.MethodPost, "/v1/checkout", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer test-api-key")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("checkout status = %d, body = %s", rec.Code, rec.Body.String())
	}

	var envelope struct {
		Data handler.CheckoutResponse `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	orderID := envelope.Data.OrderID

	// Simulate the gateway's callback for that order.
	form := url.Values{}
	form.Set("msgtype", "authorize")
	form.Set("ordernumber", envelope.Data.OrderNumber)
	form.Set("amount", "10000")
	form.Set("currency", "DKK")
	form.Set("time", "240901120000")
	form.Set("state", "3")
	form.Set("qpstat", "000")
	form.Set("qpstatmsg", "OK")
	form.Set("chstat", "000")
	form.Set("chstatmsg", "OK")
	form.Set("merchant", cfg.MerchantID)
	form.Set("transaction", "555000111")
	form.Set("cardtype", "dankort")
	form.Set("CUSTOM_orderID", envelope.Data.Fields["CUSTOM_orderID"])
	form.Set("CUSTOM_contactID", "7")
	form.Set("CUSTOM_invoiceID", "inv-flow")
	form.Set("md5check", notificationDigest(form, cfg.Secret))

	notifyReq := httptest.NewRequest(http.MethodPost, "/notify", strings.NewReader(form.Encode()))
	notifyReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	notifyRec := httptest.NewRecorder()
	r.ServeHTTP(notifyRec, notifyReq)

	if notifyRec.Code != http.StatusOK {
		t.Fatalf("notify status = %d, body = %s", notifyRec.Code, notifyRec.Body.String())
	}

	ord, err := orders.FindOrder(notifyReq.Context(), orderID)
	if err != nil {
		t.Fatalf("FindOrder: %v", err)
	}
	if ord.Status != quickpay.StatusCompleted {
		t.Errorf("order status = %q, want completed", ord.Status)
	}
	if ord.TrxnID != "555000111" {
		t.Errorf("trxn = %q", ord.TrxnID)
	}
}
