package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/aquabill/aquabill/internal/customers"
	"github.com/aquabill/aquabill/internal/invoices"
	jobmetrics "github.com/aquabill/aquabill/internal/jobs"
	"github.com/aquabill/aquabill/internal/shared"
	"github.com/aquabill/aquabill/report"
)

// Notice is a composed payment notice addressed to a customer's WhatsApp number.
type Notice struct {
	InvoiceID int64
	To        string
	Body      string
}

// NoticeSender delivers notices.
type NoticeSender interface {
	Send(ctx context.Context, notice Notice) error
}

// LogSender writes notices to the log instead of delivering them.
type LogSender struct {
	Logger *slog.Logger
}

// Send implements NoticeSender.
func (s LogSender) Send(_ context.Context, notice Notice) error {
	logger := s.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.Info("invoice notice",
		slog.Int64("invoice_id", notice.InvoiceID),
		slog.String("to", notice.To),
		slog.String("body", notice.Body),
	)
	return nil
}

// InvoiceNoticeJob composes and sends the notice for a generated invoice.
type InvoiceNoticeJob struct {
	Repo      invoices.Repository
	Formatter *report.Formatter
	Sender    NoticeSender
	Logger    *slog.Logger
	Metrics   *jobmetrics.Metrics
}

// NewInvoiceNoticeJob initialises the notice handler.
func NewInvoiceNoticeJob(repo invoices.Repository, formatter *report.Formatter, sender NoticeSender, logger *slog.Logger, metrics *jobmetrics.Metrics) *InvoiceNoticeJob {
	if formatter == nil {
		formatter = report.NewFormatter("en", "")
	}
	if logger == nil {
		logger = slog.Default()
	}
	if sender == nil {
		sender = LogSender{Logger: logger}
	}
	return &InvoiceNoticeJob{Repo: repo, Formatter: formatter, Sender: sender, Logger: logger, Metrics: metrics}
}

// Handle executes the notice task.
func (j *InvoiceNoticeJob) Handle(ctx context.Context, t *asynq.Task) (err error) {
	if j == nil || j.Repo == nil {
		return errors.New("invoice notice: handler not configured")
	}
	var payload InvoiceNoticePayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil || payload.InvoiceID <= 0 {
		return fmt.Errorf("invoice notice: bad payload: %w", asynq.SkipRetry)
	}

	tracker := j.Metrics.Track(TaskInvoiceNotice)
	defer func() {
		err = tracker.End(err)
	}()

	var (
		inv      *invoices.Invoice
		customer *customers.Customer
	)
	err = j.Repo.WithTx(ctx, func(ctx context.Context, repo invoices.Repository) error {
		var err error
		if inv, err = repo.Get(ctx, payload.InvoiceID); err != nil {
			return err
		}
		customer, err = repo.Customer(ctx, inv.CustomerID)
		return err
	})
	if errors.Is(err, shared.ErrNotFound) {
		// deleted together with its customer before the task ran
		j.Logger.Warn("invoice notice skipped", slog.Int64("invoice_id", payload.InvoiceID), slog.Any("error", err))
		return nil
	}
	if err != nil {
		return err
	}

	notice := Notice{
		InvoiceID: inv.ID,
		To:        customer.WhatsAppNumber,
		Body:      j.compose(*inv, *customer),
	}
	if err := j.Sender.Send(ctx, notice); err != nil {
		return fmt.Errorf("send invoice notice %d: %w", inv.ID, err)
	}
	j.Metrics.AddProcessed(TaskInvoiceNotice, 1)
	return nil
}

func (j *InvoiceNoticeJob) compose(inv invoices.Invoice, customer customers.Customer) string {
	f := j.Formatter
	return fmt.Sprintf(
		"Hello %s, your water bill for %s is ready. Usage: %s m3 at %s per unit. Amount due: %s, payable by %s. Invoice #%d.",
		customer.Name,
		inv.BillingPeriod,
		f.Quantity(inv.TotalUsage),
		f.Price(inv.PricePerUnit),
		f.Amount(inv.AmountDue),
		f.Date(inv.DueDate),
		inv.ID,
	)
}
