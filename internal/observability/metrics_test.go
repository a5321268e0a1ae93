package observability

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func scrape(t *testing.T, m *Metrics) string {
	t.Helper()
	rr := httptest.NewRecorder()
	m.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	return rr.Body.String()
}

func TestHandlerIncludesRuntimeCollectors(t *testing.T) {
	body := scrape(t, NewMetrics())
	require.Contains(t, body, "go_goroutines")
}

func TestMiddlewareLabelsByRoutePattern(t *testing.T) {
	m := NewMetrics()
	r := chi.NewRouter()
	r.Use(m.Middleware)
	r.Get("/api/invoices/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})

	for _, id := range []string{"1", "2"} {
		rr := httptest.NewRecorder()
		r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/invoices/"+id, nil))
		require.Equal(t, http.StatusTeapot, rr.Code)
	}

	require.Equal(t, 2.0, testutil.ToFloat64(m.requestsTotal.WithLabelValues("/api/invoices/{id}", http.MethodGet, "418")))
	require.Contains(t, scrape(t, m), `aquabill_http_request_duration_seconds_bucket{route="/api/invoices/{id}"`)
}

func TestMiddlewareWithoutRouteContext(t *testing.T) {
	m := NewMetrics()
	h := m.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	req := httptest.NewRequest(http.MethodPost, "/raw", nil).WithContext(context.Background())
	h.ServeHTTP(httptest.NewRecorder(), req)

	require.Equal(t, 1.0, testutil.ToFloat64(m.requestsTotal.WithLabelValues("unknown", http.MethodPost, "200")))
}

func TestNilMetrics(t *testing.T) {
	var m *Metrics
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})
	require.NotNil(t, m.Middleware(next))

	rr := httptest.NewRecorder()
	m.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusServiceUnavailable, rr.Code)
}

func TestRegistererFeedsHandler(t *testing.T) {
	m := NewMetrics()
	NewBillingMetrics(m.Registerer()).InvoiceGenerated()
	require.Contains(t, scrape(t, m), "aquabill_invoices_generated_total 1")
}
