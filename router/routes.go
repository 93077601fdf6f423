package router

import (
	"github.com/go-chi/chi/v5"

	"github.com/paygate-sk/tatrapay/handler"
)

// Routes registers all HTTP routes on the given router
func Routes(r chi.Router, payments *handler.PaymentHandler, health *handler.HealthHandler) {
	r.Get("/health", health.CheckHealth)

	r.Route("/api/payment", func(r chi.Router) {
		r.Post("/create", payments.CreatePayment)
		r.Get("/callback", payments.HandleCallback)
		r.Post("/webhook", payments.HandleWebhook)
		r.Get("/webhook", payments.HandleWebhook)
	})
}
