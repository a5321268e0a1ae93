package invoices

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/aquabill/aquabill/internal/shared"
	"github.com/aquabill/aquabill/report"
)

type memoryGuard struct {
	keys map[string]bool
}

func (g *memoryGuard) CheckAndInsert(_ context.Context, key, module string) error {
	if g.keys[module+"/"+key] {
		return shared.ErrIdempotencyConflict
	}
	g.keys[module+"/"+key] = true
	return nil
}

func (g *memoryGuard) Delete(_ context.Context, key, module string) error {
	delete(g.keys, module+"/"+key)
	return nil
}

type stubPDF struct {
	html string
	err  error
}

func (s *stubPDF) RenderHTML(_ context.Context, html string) ([]byte, error) {
	s.html = html
	if s.err != nil {
		return nil, s.err
	}
	return []byte("%PDF"), nil
}

func newTestRouter(store *memoryStore, guard IdempotencyGuard, pdf PDFConverter) http.Handler {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	h := NewHandler(
		logger,
		newTestGenerator(store, nil),
		NewStatusManager(store, nil, nil, nil),
		NewService(store),
		NewDocuments(store, report.NewFormatter("en", "IDR"), pdf),
		guard,
	)
	r := chi.NewRouter()
	r.Route("/api/invoices", h.MountRoutes)
	return r
}

func do(t *testing.T, h http.Handler, method, path, body string, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func TestHandlerCreateInvoice(t *testing.T) {
	router := newTestRouter(seededStore("50.5", "2.5", 15), nil, nil)

	rr := do(t, router, http.MethodPost, "/api/invoices", `{"customer_id":1,"meter_reading_id":7,"billing_period":"2025-05"}`)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())

	var body map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	require.Equal(t, 126.25, body["amount_due"])
	require.Equal(t, 50.5, body["total_usage"])
	require.Equal(t, 2.5, body["price_per_unit"])
	require.Equal(t, "pending", body["status"])
}

func TestHandlerCreateInvoiceErrors(t *testing.T) {
	cases := []struct {
		name  string
		store *memoryStore
		body  string
		code  int
	}{
		{"missing reading", seededStore("1", "1", 15), `{"customer_id":1,"meter_reading_id":99,"billing_period":"May"}`, http.StatusNotFound},
		{"no configuration", seededStore("1", "", 0), `{"customer_id":1,"meter_reading_id":7,"billing_period":"May"}`, http.StatusConflict},
		{"empty period", seededStore("1", "1", 15), `{"customer_id":1,"meter_reading_id":7,"billing_period":""}`, http.StatusBadRequest},
		{"string id", seededStore("1", "1", 15), `{"customer_id":"1","meter_reading_id":7,"billing_period":"May"}`, http.StatusBadRequest},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rr := do(t, newTestRouter(tc.store, nil, nil), http.MethodPost, "/api/invoices", tc.body)
			require.Equal(t, tc.code, rr.Code, rr.Body.String())
			require.Equal(t, "application/problem+json", rr.Header().Get("Content-Type"))
		})
	}
}

func TestHandlerIdempotentReplay(t *testing.T) {
	store := seededStore("1", "1", 15)
	guard := &memoryGuard{keys: map[string]bool{}}
	router := newTestRouter(store, guard, nil)
	body := `{"customer_id":1,"meter_reading_id":7,"billing_period":"May"}`

	rr := do(t, router, http.MethodPost, "/api/invoices", body, IdempotencyKeyHeader, "abc")
	require.Equal(t, http.StatusCreated, rr.Code)
	rr = do(t, router, http.MethodPost, "/api/invoices", body, IdempotencyKeyHeader, "abc")
	require.Equal(t, http.StatusConflict, rr.Code)
	require.Len(t, store.invoices, 1)

	// a failed attempt releases its key
	store.config = nil
	rr = do(t, router, http.MethodPost, "/api/invoices", body, IdempotencyKeyHeader, "retry")
	require.Equal(t, http.StatusConflict, rr.Code)
	require.False(t, guard.keys[idempotencyModule+"/retry"])
}

func TestHandlerStatusAndReads(t *testing.T) {
	store, inv := storeWithInvoice(StatusPending, generationTime)
	router := newTestRouter(store, nil, nil)

	rr := do(t, router, http.MethodPatch, "/api/invoices/1/status", `{"status":"paid"}`)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	require.Equal(t, StatusPaid, store.invoices[inv.ID].Status)

	rr = do(t, router, http.MethodPatch, "/api/invoices/1/status", `{"status":"refunded"}`)
	require.Equal(t, http.StatusBadRequest, rr.Code)

	rr = do(t, router, http.MethodPatch, "/api/invoices/42/status", `{"status":"overdue"}`)
	require.Equal(t, http.StatusNotFound, rr.Code)

	rr = do(t, router, http.MethodGet, "/api/invoices/1", "")
	require.Equal(t, http.StatusOK, rr.Code)

	rr = do(t, router, http.MethodGet, "/api/invoices?status=paid&customer_id=1", "")
	require.Equal(t, http.StatusOK, rr.Code)
	var list []Invoice
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &list))
	require.Len(t, list, 1)

	rr = do(t, router, http.MethodGet, "/api/invoices?customer_id=abc", "")
	require.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestHandlerDocuments(t *testing.T) {
	store, _ := storeWithInvoice(StatusPending, generationTime)
	pdf := &stubPDF{}
	router := newTestRouter(store, nil, pdf)

	rr := do(t, router, http.MethodGet, "/api/invoices/1/document", "")
	require.Equal(t, http.StatusOK, rr.Code)
	require.Contains(t, rr.Header().Get("Content-Type"), "text/html")
	page := rr.Body.String()
	require.Contains(t, page, "Ada")
	require.Contains(t, page, "1 Reservoir Rd")
	require.Contains(t, page, "IDR 25.00")
	require.Contains(t, page, "12.50")
	require.Contains(t, page, "2025-05-10")

	rr = do(t, router, http.MethodGet, "/api/invoices/1/pdf", "")
	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, "application/pdf", rr.Header().Get("Content-Type"))
	require.Equal(t, "%PDF", rr.Body.String())
	require.Contains(t, pdf.html, "Invoice #1")

	pdf.err = errors.New("gotenberg down")
	rr = do(t, router, http.MethodGet, "/api/invoices/1/pdf", "")
	require.Equal(t, http.StatusBadGateway, rr.Code)

	rr = do(t, router, http.MethodGet, "/api/invoices/9/document", "")
	require.Equal(t, http.StatusNotFound, rr.Code)
}
