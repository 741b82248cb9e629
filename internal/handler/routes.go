package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

// NewRouter builds the chi router with the global middleware stack. A nil
// limiter disables rate limiting.
func NewRouter(h *LibraryHandler, logger *zap.Logger, limiter *RateLimiter) http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.Recoverer) // recover from panics, return 500
	r.Use(chimiddleware.RequestID) // attach request IDs
	r.Use(chimiddleware.RealIP)    // trust X-Forwarded-For
	r.Use(Logger(logger))
	r.Use(CORS)
	if limiter != nil {
		r.Use(limiter.Middleware)
	}

	r.Get("/health", HealthCheck)

	r.Route("/books", func(r chi.Router) {
		r.Post("/", h.RegisterBook)
		r.Get("/", h.ListBooks)
		r.Get("/{id}", h.GetBook)
		r.Patch("/{id}", h.UpdateBook)
		r.Delete("/{id}", h.DeleteBook)
	})

	r.Route("/members", func(r chi.Router) {
		r.Post("/", h.RegisterMember)
		r.Get("/", h.ListMembers)
		r.Get("/{id}", h.GetMember)
		r.Patch("/{id}", h.UpdateMember)
		r.Delete("/{id}", h.DeleteMember)
		r.Get("/{id}/loans", h.ListMemberLoans)
	})

	r.Route("/library", func(r chi.Router) {
		r.Post("/borrow", h.Borrow)
		r.Post("/return", h.Return)
	})

	return r
}
