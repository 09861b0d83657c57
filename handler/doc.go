// Package handler contains the HTTP handlers for the bridge: checkout
// request construction, gateway notification intake and health checks.
package handler
