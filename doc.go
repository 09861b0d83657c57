// Package qpbridge is a payment bridge between a CRM's order records
// and the QuickPay v3 form gateway. It builds signed hosted-checkout
// requests, verifies inbound payment notifications and drives each
// order through an exactly-once pending to completed/failed transition.
package qpbridge
