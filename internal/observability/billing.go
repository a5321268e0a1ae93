package observability

import "github.com/prometheus/client_golang/prometheus"

// BillingMetrics counts billing pipeline events. A nil *BillingMetrics is a no-op.
type BillingMetrics struct {
	invoicesGenerated prometheus.Counter
	usageClamped      prometheus.Counter
	statusChanges     *prometheus.CounterVec
}

// NewBillingMetrics registers the billing collectors against registerer.
func NewBillingMetrics(registerer prometheus.Registerer) *BillingMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}
	m := &BillingMetrics{
		invoicesGenerated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "aquabill_invoices_generated_total",
			Help: "Number of invoices generated from meter readings.",
		}),
		usageClamped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "aquabill_usage_clamped_total",
			Help: "Number of meter readings lower than the resolved previous reading.",
		}),
		statusChanges: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "aquabill_invoice_status_changes_total",
			Help: "Invoice status writes by target status.",
		}, []string{"status"}),
	}
	registerer.MustRegister(m.invoicesGenerated, m.usageClamped, m.statusChanges)
	return m
}

func (m *BillingMetrics) InvoiceGenerated() {
	if m == nil {
		return
	}
	m.invoicesGenerated.Inc()
}

func (m *BillingMetrics) UsageClamped() {
	if m == nil {
		return
	}
	m.usageClamped.Inc()
}

func (m *BillingMetrics) StatusChanged(status string) {
	if m == nil {
		return
	}
	m.statusChanges.WithLabelValues(status).Inc()
}
