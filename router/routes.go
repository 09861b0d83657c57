package router

import (
	"github.com/go-chi/chi/v5"

	"github.com/crmpay/qpbridge/handler"
	"github.com/crmpay/qpbridge/infra/middle"
)

// Handlers carries the wired handler set. Routes takes them explicitly
// instead of reaching for package globals so tests can assemble their
// own.
type Handlers struct {
	Checkout *handler.CheckoutHandler
	Notify   *handler.NotifyHandler
	Health   *handler.HealthHandler
	Audit    *handler.AuditHandler
}

// Routes registers all routes on the given router.
//
// The notification endpoint stays outside the authenticated group: the
// gateway cannot send an API key, its MD5 signature is checked inside
// the handler instead.
func Routes(r chi.Router, h Handlers) {
	r.Get("/health", h.Health.Health)

	r.Post("/notify", h.Notify.HandleNotification)

	r.Route("/v1", func(r chi.Router) {
		r.Use(middle.AuthMiddleware())
		r.Post("/checkout", h.Checkout.CreateCheckout)
		r.Get("/notifications", h.Audit.ListNotifications)
	})
}
