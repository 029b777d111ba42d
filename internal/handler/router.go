package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	custommiddleware "github.com/mmeshcher/emind-bff/internal/middleware"
)

// SetupRouter настраивает HTTP-маршруты и middleware BFF.
func (h *Handler) SetupRouter() *chi.Mux {
	r := chi.NewRouter()

	r.Use(custommiddleware.Logger(h.logger))
	r.Use(chimw.Recoverer)
	r.Use(chimw.Compress(5, "application/json", "text/plain"))
	r.Use(custommiddleware.GzipMiddleware)

	r.Get("/healthz", h.Healthz)
	// Ответ сжимает chimw.Compress.
	r.Handle("/metrics", promhttp.HandlerFor(h.gatherer, promhttp.HandlerOpts{DisableCompression: true}))

	r.Route("/api/view", func(r chi.Router) {
		r.Post("/schedule", h.FormatSchedule)
		r.Get("/statuses", h.GetStatuses)
		r.Get("/carousel", h.Carousel)

		r.Route("/{role}", func(r chi.Router) {
			r.Use(h.sessions.Middleware)

			r.Get("/payments", h.GetPayments)
			r.Get("/payments/pending", h.GetPendingPayments)
			r.Post("/payments/{id}/verify", h.VerifyPayment)
			r.Get("/payments/{id}/verifications", h.GetVerifications)
		})
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		h.writeJSON(w, http.StatusNotFound, errorResponse{Error: http.StatusText(http.StatusNotFound)})
	})

	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		h.writeJSON(w, http.StatusMethodNotAllowed, errorResponse{Error: http.StatusText(http.StatusMethodNotAllowed)})
	})

	return r
}
