package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/aquabill/aquabill/internal/billingconfig"
	"github.com/aquabill/aquabill/internal/customers"
	"github.com/aquabill/aquabill/internal/invoices"
	"github.com/aquabill/aquabill/internal/observability"
	"github.com/aquabill/aquabill/internal/readings"
	"github.com/aquabill/aquabill/jobs"
	"github.com/aquabill/aquabill/report"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger *slog.Logger
	Config *Config

	CustomersHandler     *customers.Handler
	ReadingsHandler      *readings.Handler
	BillingConfigHandler *billingconfig.Handler
	InvoicesHandler      *invoices.Handler

	ReportHandler *report.Handler
	JobHandler    *jobs.Handler
	Metrics       *observability.Metrics
}

// NewRouter constructs the chi.Router with the API defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:  params.Logger,
		Config:  params.Config,
		Metrics: params.Metrics,
	}) {
		r.Use(mw)
	}

	if params.Config == nil || !params.Config.IsProduction() {
		r.Use(chimw.Logger)
	}

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Route("/api", func(r chi.Router) {
		if params.CustomersHandler != nil {
			r.Route("/customers", func(r chi.Router) {
				params.CustomersHandler.MountRoutes(r)
				if params.ReadingsHandler != nil {
					r.Get("/{id}/readings", params.ReadingsHandler.ListByCustomer)
				}
			})
		}
		if params.ReadingsHandler != nil {
			r.Route("/readings", params.ReadingsHandler.MountRoutes)
		}
		if params.BillingConfigHandler != nil {
			r.Route("/billing-config", params.BillingConfigHandler.MountRoutes)
		}
		if params.InvoicesHandler != nil {
			r.Route("/invoices", params.InvoicesHandler.MountRoutes)
		}
	})

	if params.ReportHandler != nil {
		r.Route("/report", params.ReportHandler.MountRoutes)
	}
	if params.JobHandler != nil {
		r.Route("/jobs", params.JobHandler.MountRoutes)
	}
	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	return r
}
