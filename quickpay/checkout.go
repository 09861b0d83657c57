package quickpay

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"

	"github.com/shopspring/decimal"
)

// MerchantConfig holds the gateway account settings for one merchant.
type MerchantConfig struct {
	// MerchantID is the 8-digit account number assigned by the gateway.
	MerchantID string
	// Secret is the shared MD5 secret used for signing and verification.
	Secret string
	// OrderPrefix is prepended to the zero-padded order id to form the
	// ordernumber sent to the gateway.
	OrderPrefix string
	// SubmitURL is the gateway's hosted payment form endpoint.
	SubmitURL string
	// CallbackURL is this bridge's notification endpoint, reachable by
	// the gateway's servers.
	CallbackURL string
	// Language is the 2-letter language code for the hosted page.
	Language string
	// TestMode asks the gateway to process in test mode.
	TestMode bool
}

var orderPrefixPattern = regexp.MustCompile(`^[a-zA-Z0-9]{0,15}$`)

// Validate checks the account settings before they are registered.
// Catching a bad merchant id here beats finding out after a shopper has
// been redirected.
func (c MerchantConfig) Validate() error {
	if !fieldPatterns["merchant"].MatchString(c.MerchantID) {
		return fmt.Errorf("merchant id %q must be an 8-digit number", c.MerchantID)
	}
	if c.Secret == "" {
		return errors.New("md5 secret is required")
	}
	if !orderPrefixPattern.MatchString(c.OrderPrefix) {
		return fmt.Errorf("order prefix %q must be alphanumeric and at most 15 characters", c.OrderPrefix)
	}
	if !fieldPatterns["callbackurl"].MatchString(c.CallbackURL) {
		return fmt.Errorf("callback url %q must be an http(s) url", c.CallbackURL)
	}
	if c.SubmitURL != "" && !fieldPatterns["callbackurl"].MatchString(c.SubmitURL) {
		return fmt.Errorf("submit url %q must be an http(s) url", c.SubmitURL)
	}
	if c.Language != "" && !fieldPatterns["language"].MatchString(c.Language) {
		return fmt.Errorf("language %q must be a 2-letter lowercase code", c.Language)
	}
	return nil
}

// language returns the configured page language, defaulting to English.
func (c MerchantConfig) language() string {
	if c.Language == "" {
		return "en"
	}
	return c.Language
}

// CheckoutOrder is the order context a checkout request is built from.
// Optional identifiers are zero when absent.
type CheckoutOrder struct {
	OrderID           int64
	ContactID         int64
	OrderTypeID       int64
	Component         ComponentKind
	Amount            decimal.Decimal
	Currency          string
	InvoiceID         string
	EventID           int64
	ParticipantID     int64
	MembershipID      int64
	RelatedContactID  int64
	OnBehalfDupeAlert int64
}

// CheckoutRequest is the signed field set posted to the gateway's hosted
// payment page. Protocol fields are explicit; merchant passthrough data
// lives in Custom and is emitted with the CUSTOM_ prefix.
type CheckoutRequest struct {
	Protocol    string
	MsgType     string
	Merchant    string
	Language    string
	OrderNumber string
	Amount      string
	Currency    string
	ContinueURL string
	CancelURL   string
	CallbackURL string
	AutoCapture string
	TestMode    string
	MD5Check    string
	Custom      map[string]string
}

// Fields flattens the request into the wire field set, custom fields
// prefixed. The signature in MD5Check covers exactly this set.
func (r *CheckoutRequest) Fields() map[string]string {
	fields := map[string]string{
		"protocol":    r.Protocol,
		"msgtype":     r.MsgType,
		"merchant":    r.Merchant,
		"language":    r.Language,
		"ordernumber": r.OrderNumber,
		"amount":      r.Amount,
		"currency":    r.Currency,
		"continueurl": r.ContinueURL,
		"cancelurl":   r.CancelURL,
		"callbackurl": r.CallbackURL,
		"autocapture": r.AutoCapture,
		"testmode":    r.TestMode,
	}
	for key, value := range r.Custom {
		fields[CustomFieldPrefix+key] = value
	}
	if r.MD5Check != "" {
		fields["md5check"] = r.MD5Check
	}
	return fields
}

// BuildCheckoutRequest assembles, signs and validates the outbound field
// set for one checkout attempt. A validation failure aborts the checkout;
// nothing may be submitted with a field the gateway would reject.
func BuildCheckoutRequest(cfg MerchantConfig, ord CheckoutOrder, continueURL, cancelURL string) (*CheckoutRequest, error) {
	amount, currency, err := ConvertAmount(ord.Amount, ord.Currency)
	if err != nil {
		return nil, err
	}

	testMode := "0"
	if cfg.TestMode {
		testMode = "1"
	}

	req := &CheckoutRequest{
		Protocol:    ProtocolVersion,
		MsgType:     "authorize", // subscriptions are not supported
		Merchant:    cfg.MerchantID,
		Language:    cfg.language(),
		OrderNumber: fmt.Sprintf("%s%05d", cfg.OrderPrefix, ord.OrderID),
		Amount:      amount,
		Currency:    currency,
		ContinueURL: continueURL,
		CancelURL:   cancelURL,
		CallbackURL: cfg.CallbackURL,
		// Nothing sold through this bridge is shippable, so capture
		// immediately instead of authorize-then-capture.
		AutoCapture: "1",
		TestMode:    testMode,
		Custom:      passthroughFields(ord),
	}

	req.MD5Check = Sign(req.Fields(), cfg.Secret)

	if err := ValidateFields(req.Fields()); err != nil {
		return nil, fmt.Errorf("quickpay: checkout request invalid: %w", err)
	}
	return req, nil
}

// passthroughFields selects the identifiers round-tripped through the
// gateway so the notification can be tied back to the order.
func passthroughFields(ord CheckoutOrder) map[string]string {
	custom := map[string]string{
		"contactID":   strconv.FormatInt(ord.ContactID, 10),
		"orderID":     strconv.FormatInt(ord.OrderID, 10),
		"orderTypeID": strconv.FormatInt(ord.OrderTypeID, 10),
		"invoiceID":   ord.InvoiceID,
	}

	if ord.Component == ComponentEvent {
		custom["eventID"] = strconv.FormatInt(ord.EventID, 10)
		custom["participantID"] = strconv.FormatInt(ord.ParticipantID, 10)
		return custom
	}

	if ord.MembershipID != 0 {
		custom["membershipID"] = strconv.FormatInt(ord.MembershipID, 10)
	}
	if ord.RelatedContactID != 0 {
		custom["relatedContactID"] = strconv.FormatInt(ord.RelatedContactID, 10)
		if ord.OnBehalfDupeAlert != 0 {
			custom["onBehalfDupeAlert"] = strconv.FormatInt(ord.OnBehalfDupeAlert, 10)
		}
	}
	return custom
}
