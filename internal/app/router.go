package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/fakturio/fakturio/internal/billing"
	"github.com/fakturio/fakturio/internal/inventory"
	"github.com/fakturio/fakturio/internal/invoices"
	"github.com/fakturio/fakturio/internal/observability"
	"github.com/fakturio/fakturio/internal/organizations"
	"github.com/fakturio/fakturio/internal/periods"
	"github.com/fakturio/fakturio/internal/received"
	"github.com/fakturio/fakturio/internal/recurring"
	"github.com/fakturio/fakturio/internal/worklog"
	"github.com/fakturio/fakturio/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger *slog.Logger
	Config *Config

	PeriodsHandler       *periods.Handler
	OrganizationsHandler *organizations.Handler
	ReceivedHandler      *received.Handler
	InventoryHandler     *inventory.Handler
	WorklogHandler       *worklog.Handler
	RecurringHandler     *recurring.Handler
	BillingHandler       *billing.Handler
	InvoicesHandler      *invoices.Handler
	JobHandler           *jobs.Handler
	Metrics              *observability.Metrics
}

// NewRouter constructs the chi.Router with application defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:  params.Logger,
		Config:  params.Config,
		Metrics: params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Route("/api", func(r chi.Router) {
		params.PeriodsHandler.Mount(r)
		params.OrganizationsHandler.Mount(r)
		params.ReceivedHandler.Mount(r)
		params.InventoryHandler.Mount(r)
		params.WorklogHandler.Mount(r)
		params.RecurringHandler.Mount(r)
		params.BillingHandler.Mount(r)
		params.InvoicesHandler.Mount(r)
	})

	if params.JobHandler != nil {
		r.Route("/jobs", params.JobHandler.MountRoutes)
	}
	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	return r
}
