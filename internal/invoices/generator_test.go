package invoices

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/aquabill/aquabill/internal/billingconfig"
	"github.com/aquabill/aquabill/internal/customers"
	"github.com/aquabill/aquabill/internal/readings"
	"github.com/aquabill/aquabill/internal/shared"
)

var generationTime = time.Date(2025, time.May, 10, 17, 45, 0, 0, time.UTC)

type recordingNotifier struct {
	invoices []Invoice
	err      error
}

func (n *recordingNotifier) InvoiceCreated(_ context.Context, inv Invoice) error {
	n.invoices = append(n.invoices, inv)
	return n.err
}

func seededStore(usage string, price string, offset int) *memoryStore {
	s := newMemoryStore()
	s.customers[1] = customers.Customer{ID: 1, Name: "Ada", Address: "1 Reservoir Rd", WhatsAppNumber: "+62811"}
	s.customers[2] = customers.Customer{ID: 2, Name: "Bo", Address: "2 Pump Ln", WhatsAppNumber: "+62822"}
	s.readings[7] = readings.MeterReading{ID: 7, CustomerID: 1, UsageCalculated: decimal.RequireFromString(usage)}
	if price != "" {
		s.config = &billingconfig.Config{
			ID:                billingconfig.SingletonID,
			PricePerUnit:      decimal.RequireFromString(price),
			DueDateOffsetDays: offset,
		}
	}
	return s
}

func newTestGenerator(repo Repository, notifier Notifier) *Generator {
	return NewGenerator(repo, notifier, nil, slog.New(slog.NewTextHandler(io.Discard, nil))).
		WithClock(func() time.Time { return generationTime })
}

func TestCreateInvoiceDerivesAmount(t *testing.T) {
	store := seededStore("50.5", "2.5", 15)
	inv, err := newTestGenerator(store, nil).CreateInvoice(context.Background(), CreateInvoiceInput{
		CustomerID: 1, MeterReadingID: 7, BillingPeriod: "2025-05",
	})
	require.NoError(t, err)
	require.Equal(t, "126.25", inv.AmountDue.String())
	require.Equal(t, "50.5", inv.TotalUsage.String())
	require.Equal(t, "2.5", inv.PricePerUnit.String())
	require.Equal(t, StatusPending, inv.Status)
	require.Equal(t, "2025-05", inv.BillingPeriod)
}

func TestCreateInvoiceDueDateAddsOffsetDays(t *testing.T) {
	store := seededStore("10", "1", 30)
	inv, err := newTestGenerator(store, nil).CreateInvoice(context.Background(), CreateInvoiceInput{
		CustomerID: 1, MeterReadingID: 7, BillingPeriod: "May",
	})
	require.NoError(t, err)
	require.Equal(t, "2025-06-09", inv.DueDate.Format("2006-01-02"))
	require.Equal(t, 30, int(inv.DueDate.Sub(generationTime).Hours()/24))
}

func TestCreateInvoiceRoundsAmount(t *testing.T) {
	store := seededStore("3.33", "1.2345", 15)
	inv, err := newTestGenerator(store, nil).CreateInvoice(context.Background(), CreateInvoiceInput{
		CustomerID: 1, MeterReadingID: 7, BillingPeriod: "May",
	})
	require.NoError(t, err)
	// 3.33 * 1.2345 = 4.110885
	require.Equal(t, "4.11", inv.AmountDue.String())
}

func TestCreateInvoiceSnapshotsPricing(t *testing.T) {
	store := seededStore("20", "2", 15)
	gen := newTestGenerator(store, nil)
	ctx := context.Background()

	first, err := gen.CreateInvoice(ctx, CreateInvoiceInput{CustomerID: 1, MeterReadingID: 7, BillingPeriod: "May"})
	require.NoError(t, err)

	store.config.PricePerUnit = decimal.NewFromInt(5)
	stored, err := store.Get(ctx, first.ID)
	require.NoError(t, err)
	require.Equal(t, "40", stored.AmountDue.String())
	require.Equal(t, "2", stored.PricePerUnit.String())
}

func TestCreateInvoiceMissingReading(t *testing.T) {
	store := seededStore("1", "1", 15)
	_, err := newTestGenerator(store, nil).CreateInvoice(context.Background(), CreateInvoiceInput{
		CustomerID: 1, MeterReadingID: 404, BillingPeriod: "May",
	})
	require.ErrorIs(t, err, shared.ErrNotFound)
	require.Empty(t, store.invoices)
}

func TestCreateInvoiceWithoutConfiguration(t *testing.T) {
	store := seededStore("1", "", 0)
	_, err := newTestGenerator(store, nil).CreateInvoice(context.Background(), CreateInvoiceInput{
		CustomerID: 1, MeterReadingID: 7, BillingPeriod: "May",
	})
	require.ErrorIs(t, err, shared.ErrConfigurationMissing)
	require.Nil(t, store.config)
	require.Empty(t, store.invoices)
}

func TestCreateInvoiceRejectsForeignReading(t *testing.T) {
	store := seededStore("1", "1", 15)
	_, err := newTestGenerator(store, nil).CreateInvoice(context.Background(), CreateInvoiceInput{
		CustomerID: 2, MeterReadingID: 7, BillingPeriod: "May",
	})
	require.ErrorIs(t, err, shared.ErrValidation)
	require.Empty(t, store.invoices)
}

func TestCreateInvoiceValidation(t *testing.T) {
	gen := newTestGenerator(seededStore("1", "1", 15), nil)
	for name, in := range map[string]CreateInvoiceInput{
		"blank period":    {CustomerID: 1, MeterReadingID: 7, BillingPeriod: "   "},
		"missing reading": {CustomerID: 1, BillingPeriod: "May"},
		"missing owner":   {MeterReadingID: 7, BillingPeriod: "May"},
	} {
		t.Run(name, func(t *testing.T) {
			_, err := gen.CreateInvoice(context.Background(), in)
			require.ErrorIs(t, err, shared.ErrValidation)
		})
	}
}

func TestCreateInvoiceRejectsAmountBeyondColumn(t *testing.T) {
	store := seededStore("9999999999.99", "999999.9999", 15)
	notifier := &recordingNotifier{}
	_, err := newTestGenerator(store, notifier).CreateInvoice(context.Background(), CreateInvoiceInput{
		CustomerID: 1, MeterReadingID: 7, BillingPeriod: "2025-05",
	})
	require.ErrorIs(t, err, shared.ErrValidation)
	require.ErrorContains(t, err, "amount_due")
	require.Empty(t, store.invoices)
	require.Empty(t, notifier.invoices)
}

func TestCreateInvoiceAcceptsLargestStorableAmount(t *testing.T) {
	store := seededStore("9999999999.99", "1", 15)
	inv, err := newTestGenerator(store, nil).CreateInvoice(context.Background(), CreateInvoiceInput{
		CustomerID: 1, MeterReadingID: 7, BillingPeriod: "2025-05",
	})
	require.NoError(t, err)
	require.Equal(t, "9999999999.99", inv.AmountDue.String())
}

func TestCreateInvoiceRejectsUnencodableDueDate(t *testing.T) {
	store := seededStore("10", "2", billingconfig.MaxDueDateOffsetDays)
	_, err := newTestGenerator(store, nil).CreateInvoice(context.Background(), CreateInvoiceInput{
		CustomerID: 1, MeterReadingID: 7, BillingPeriod: "2025-05",
	})
	require.ErrorIs(t, err, shared.ErrValidation)
	require.ErrorContains(t, err, "due_date_offset_days")
	require.Empty(t, store.invoices)
}

func TestCreateInvoiceNotifies(t *testing.T) {
	notifier := &recordingNotifier{}
	inv, err := newTestGenerator(seededStore("1", "1", 15), notifier).CreateInvoice(context.Background(), CreateInvoiceInput{
		CustomerID: 1, MeterReadingID: 7, BillingPeriod: "May",
	})
	require.NoError(t, err)
	require.Len(t, notifier.invoices, 1)
	require.Equal(t, inv.ID, notifier.invoices[0].ID)
}

func TestCreateInvoiceSurvivesNotifierFailure(t *testing.T) {
	notifier := &recordingNotifier{err: errors.New("redis down")}
	store := seededStore("1", "1", 15)
	inv, err := newTestGenerator(store, notifier).CreateInvoice(context.Background(), CreateInvoiceInput{
		CustomerID: 1, MeterReadingID: 7, BillingPeriod: "May",
	})
	require.NoError(t, err)
	require.Contains(t, store.invoices, inv.ID)
}
