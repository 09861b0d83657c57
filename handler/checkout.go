package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/crmpay/qpbridge/infra/logger"
	"github.com/crmpay/qpbridge/infra/response"
	"github.com/crmpay/qpbridge/quickpay"
)

// OrderWriter persists a new pending order record before the shopper is
// redirected to the gateway, and closes it out when the checkout cannot
// be handed off.
type OrderWriter interface {
	CreateOrder(ctx context.Context, ord *quickpay.Order) (int64, error)
	FailOrder(ctx context.Context, orderID int64, reason string) error
}

// CheckoutHandler builds signed checkout requests for the gateway's
// hosted payment page.
type CheckoutHandler struct {
	accounts       *quickpay.Registry
	orders         OrderWriter
	validate       *validator.Validate
	defaultAccount string
}

// NewCheckoutHandler creates a new checkout handler
func NewCheckoutHandler(accounts *quickpay.Registry, orders OrderWriter, validate *validator.Validate, defaultAccount string) *CheckoutHandler {
	return &CheckoutHandler{
		accounts:       accounts,
		orders:         orders,
		validate:       validate,
		defaultAccount: defaultAccount,
	}
}

// CheckoutRequestBody is the JSON payload accepted by the checkout API.
type CheckoutRequestBody struct {
	Account           string `json:"account,omitempty"`
	Component         string `json:"component" validate:"required,oneof=contribute event"`
	ContactID         int64  `json:"contactId" validate:"required,gt=0"`
	OrderTypeID       int64  `json:"orderTypeId,omitempty"`
	Amount            string `json:"amount" validate:"required"`
	Currency          string `json:"currency" validate:"required,len=3,uppercase"`
	InvoiceID         string `json:"invoiceId,omitempty"`
	EventID           int64  `json:"eventId,omitempty"`
	ParticipantID     int64  `json:"participantId,omitempty"`
	MembershipID      int64  `json:"membershipId,omitempty"`
	RelatedContactID  int64  `json:"relatedContactId,omitempty"`
	OnBehalfDupeAlert int64  `json:"onBehalfDupeAlert,omitempty"`
	ContinueURL       string `json:"continueUrl" validate:"required,url"`
	CancelURL         string `json:"cancelUrl" validate:"required,url"`
}

// CheckoutResponse carries everything the caller needs to hand the
// shopper's browser off to the gateway.
type CheckoutResponse struct {
	OrderID     int64             `json:"orderId"`
	OrderNumber string            `json:"orderNumber"`
	InvoiceID   string            `json:"invoiceId"`
	SubmitURL   string            `json:"submitUrl"`
	Fields      map[string]string `json:"fields"`
}

// CreateCheckout handles POST /v1/checkout. It persists a pending order,
// builds and signs the gateway field set and returns it as JSON, or as a
// self-submitting redirect page when format=html is requested.
func (h *CheckoutHandler) CreateCheckout(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
	defer cancel()

	var req CheckoutRequestBody
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Error(w, http.StatusBadRequest, "Invalid request format", err)
		return
	}

	if err := h.validate.Struct(req); err != nil {
		response.Error(w, http.StatusBadRequest, "Validation error", err)
		return
	}

	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		response.Error(w, http.StatusBadRequest, "Invalid amount", err)
		return
	}

	account := req.Account
	if account == "" {
		account = h.defaultAccount
	}
	cfg, err := h.accounts.Get(account)
	if err != nil {
		response.Error(w, http.StatusBadRequest, "Unknown merchant account", err)
		return
	}

	invoiceID := req.InvoiceID
	if invoiceID == "" {
		invoiceID = uuid.New().String()
	}

	ord := quickpay.Order{
		ContactID:     req.ContactID,
		Component:     quickpay.ComponentKind(req.Component),
		Status:        quickpay.StatusPending,
		TotalAmount:   amount,
		Currency:      req.Currency,
		InvoiceID:     invoiceID,
		OrderTypeID:   req.OrderTypeID,
		EventID:       req.EventID,
		ParticipantID: req.ParticipantID,
		MembershipID:  req.MembershipID,
	}

	orderID, err := h.orders.CreateOrder(ctx, &ord)
	if err != nil {
		logger.Error("Failed to persist pending order", err, logger.LogContext{
			Merchant: cfg.MerchantID,
		})
		response.Error(w, http.StatusInternalServerError, "Failed to create order", err)
		return
	}

	checkout, err := quickpay.BuildCheckoutRequest(cfg, quickpay.CheckoutOrder{
		OrderID:           orderID,
		ContactID:         req.ContactID,
		OrderTypeID:       req.OrderTypeID,
		Component:         quickpay.ComponentKind(req.Component),
		Amount:            amount,
		Currency:          req.Currency,
		InvoiceID:         invoiceID,
		EventID:           req.EventID,
		ParticipantID:     req.ParticipantID,
		MembershipID:      req.MembershipID,
		RelatedContactID:  req.RelatedContactID,
		OnBehalfDupeAlert: req.OnBehalfDupeAlert,
	}, req.ContinueURL, req.CancelURL)
	if err != nil {
		logger.Error("Checkout request build failed", err, logger.LogContext{
			Merchant: cfg.MerchantID,
			OrderID:  orderID,
		})
		// Nothing was handed to the gateway; close the pending row so it
		// cannot linger as an orphan waiting for a notification that will
		// never arrive.
		if failErr := h.orders.FailOrder(ctx, orderID, "checkout request could not be built"); failErr != nil {
			logger.Error("Failed to close orphaned order", failErr, logger.LogContext{
				Merchant: cfg.MerchantID,
				OrderID:  orderID,
			})
		}
		response.Error(w, http.StatusInternalServerError, "Failed to build checkout request", err)
		return
	}

	logger.Info("Checkout request built", logger.LogContext{
		Merchant: cfg.MerchantID,
		OrderID:  orderID,
		Fields: map[string]any{
			"ordernumber": checkout.OrderNumber,
			"amount":      checkout.Amount,
			"currency":    checkout.Currency,
		},
	})

	if r.URL.Query().Get("format") == "html" {
		writeRedirectPage(w, cfg.SubmitURL, checkout.Fields())
		return
	}

	response.Success(w, http.StatusOK, "Checkout request created", CheckoutResponse{
		OrderID:     orderID,
		OrderNumber: checkout.OrderNumber,
		InvoiceID:   invoiceID,
		SubmitURL:   cfg.SubmitURL,
		Fields:      checkout.Fields(),
	})
}
