package http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

func NewRouter(cart *CartHandler, checkout *CheckoutHandler, requestTimeout time.Duration, logger *zap.Logger) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.Recoverer)
	r.Use(RequestIDMiddleware)
	r.Use(LoggerMiddleware(logger))
	r.Use(middleware.Timeout(requestTimeout))
	r.Use(middleware.Compress(5))
	r.Use(UserMiddleware)

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		cart.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/cart", func(r chi.Router) {
			r.Get("/", cart.GetCart)
			r.Delete("/", cart.ClearCart)
			r.Get("/count", cart.Count)
			r.Put("/selection", cart.SelectAll)
			r.Post("/validate", cart.Validate)
			r.Post("/recover", cart.Recover)
			r.Post("/items", cart.AddItem)
			r.Put("/items/{product_id}", cart.UpdateQuantity)
			r.Delete("/items/{product_id}", cart.RemoveItem)
			r.Put("/items/{product_id}/selection", cart.SetSelection)
		})
		r.Route("/checkout/sessions", func(r chi.Router) {
			r.Post("/", checkout.CreateSession)
			r.Get("/{session_id}", checkout.GetSession)
			r.Delete("/{session_id}", checkout.ClearSession)
			r.Post("/{session_id}/complete", checkout.CompleteSession)
		})
	})

	return r
}
