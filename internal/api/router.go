package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/splitledger/splitledger/internal/service"
)

// NewRouter creates the Chi router with all API routes mounted.
func NewRouter(svc *service.LedgerService, defaultCurrency string) http.Handler {
	h := &Handlers{
		svc:             svc,
		defaultCurrency: defaultCurrency,
	}

	r := chi.NewRouter()

	// Middleware.
	r.Use(middleware.RequestID)
	r.Use(RequestLogger)
	r.Use(middleware.Recoverer)

	r.Route("/api/v1", func(r chi.Router) {
		// Scopes.
		r.Post("/scopes", h.CreateScope)
		r.Get("/scopes/{id}", h.GetScope)

		// Expenses.
		r.Post("/scopes/{id}/expenses", h.RecordExpense)
		r.Get("/scopes/{id}/expenses", h.ListExpenses)
		r.Put("/expenses/{id}", h.EditExpense)
		r.Delete("/expenses/{id}", h.RemoveExpense)

		// Balances and settlement.
		r.Get("/scopes/{id}/balances", h.GetBalances)
		r.Get("/scopes/{id}/plan", h.GetPlan)
		r.Get("/scopes/{id}/settlements", h.ListSettlements)
		r.Post("/scopes/{id}/payments", h.RecordPayment)
		r.Post("/scopes/{id}/settlements/{txnID}/cancel", h.CancelSettlement)
	})

	r.Get("/healthz", h.Healthz)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	return r
}
