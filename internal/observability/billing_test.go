package observability

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestBillingMetricsCounts(t *testing.T) {
	m := NewBillingMetrics(prometheus.NewRegistry())
	m.InvoiceGenerated()
	m.InvoiceGenerated()
	m.UsageClamped()
	m.StatusChanged("paid")

	require.Equal(t, float64(2), testutil.ToFloat64(m.invoicesGenerated))
	require.Equal(t, float64(1), testutil.ToFloat64(m.usageClamped))
	require.Equal(t, float64(1), testutil.ToFloat64(m.statusChanges.WithLabelValues("paid")))
}

func TestBillingMetricsNilSafe(t *testing.T) {
	var m *BillingMetrics
	require.NotPanics(t, func() {
		m.InvoiceGenerated()
		m.UsageClamped()
		m.StatusChanged("overdue")
	})
}
