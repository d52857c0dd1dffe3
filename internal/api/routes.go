package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
)

func NewRouter(h *Handler) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", h.Healthz)
	r.Get("/readyz", h.Readyz)

	r.Route("/v1", func(r chi.Router) {
		r.Post("/documents", h.UploadDocument)
		r.Route("/documents/{documentId}", func(r chi.Router) {
			r.Get("/", func(w http.ResponseWriter, r *http.Request) {
				h.GetDocument(w, r, chi.URLParam(r, "documentId"))
			})
			r.Delete("/", func(w http.ResponseWriter, r *http.Request) {
				h.DeleteDocument(w, r, chi.URLParam(r, "documentId"))
			})
			r.Get("/metadata", func(w http.ResponseWriter, r *http.Request) {
				h.GetDocumentMetadata(w, r, chi.URLParam(r, "documentId"))
			})
		})

		r.Route("/invoices/{invoiceId}", func(r chi.Router) {
			r.Get("/", func(w http.ResponseWriter, r *http.Request) {
				h.GetInvoice(w, r, chi.URLParam(r, "invoiceId"))
			})
			r.Route("/consolidated-report", func(r chi.Router) {
				r.Get("/", func(w http.ResponseWriter, r *http.Request) {
					h.GetConsolidatedReport(w, r, chi.URLParam(r, "invoiceId"))
				})
				r.Delete("/", func(w http.ResponseWriter, r *http.Request) {
					h.DeleteConsolidatedReport(w, r, chi.URLParam(r, "invoiceId"))
				})

				generate := r
				if h.cfg.GenerateRateLimit > 0 {
					generate = r.With(httprate.LimitByIP(h.cfg.GenerateRateLimit, time.Minute))
				}
				generate.Post("/generate", func(w http.ResponseWriter, r *http.Request) {
					h.GenerateConsolidatedReport(w, r, chi.URLParam(r, "invoiceId"))
				})
			})
		})
	})

	return r
}
