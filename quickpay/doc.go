// Package quickpay implements the QuickPay v3 hosted-checkout form
// protocol: building and MD5-signing the outbound checkout field set,
// verifying and validating the asynchronous server-to-server
// notification the gateway posts back, and driving the exactly-once
// completion of the underlying order record.
//
// # Checkout flow
//
// A checkout attempt starts with BuildCheckoutRequest, which converts
// the order amount to minor units, attaches the CUSTOM_ passthrough
// identifiers, signs the canonical field concatenation with the shared
// MD5 secret and validates every field against the protocol's syntax
// rules:
//
//	req, err := quickpay.BuildCheckoutRequest(cfg, order, continueURL, cancelURL)
//	if err != nil {
//		// nothing was submitted; the checkout is aborted
//	}
//	fields := req.Fields() // form-POST these to cfg.SubmitURL
//
// The shopper's browser posts the fields to the gateway's hosted payment
// page. The bridge never talks to the gateway directly on this leg.
//
// # Notification flow
//
// After the shopper pays, the gateway posts a notification to the
// configured callback URL. Processor.Process runs it through the state
// machine: signature verification (the protocol's only authentication),
// extraction of the CUSTOM_ identifiers, lookup of the stored order,
// consistency checks on invoice id and amount, and finally the status
// transition keyed on the qpstat result code. Every run yields exactly
// one NotifyOutcome telling the transport whether to acknowledge the
// delivery or let the gateway retry.
//
// Notifications are delivered at least once and may race. The order's
// own status column is the deduplication latch: OrderGateway
// implementations must make CompleteOrder a conditional transition out
// of pending so only one delivery wins, and redeliveries for a settled
// order take the ignored path.
//
// # Wire compatibility
//
// The signing digest is MD5 because the counterparty's protocol fixes
// it; upgrading the hash unilaterally would break verification on both
// legs. The per-field syntax rules and the two canonical signing orders
// are likewise protocol constants and must not be edited.
package quickpay
