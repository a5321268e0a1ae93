package jobs

import (
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskInvoiceNotice sends the payment notice for a freshly generated invoice.
	TaskInvoiceNotice = "invoice:notice"
	// TaskOverdueSweep marks pending invoices past their due date as overdue.
	TaskOverdueSweep = "invoice:overdue_sweep"
	// TaskIdempotencyCleanup prunes expired idempotency keys.
	TaskIdempotencyCleanup = "maintenance:idempotency_cleanup"
)

// InvoiceNoticePayload identifies the invoice to announce.
type InvoiceNoticePayload struct {
	InvoiceID int64 `json:"invoice_id"`
}

// OverdueSweepPayload bounds a single sweep run.
type OverdueSweepPayload struct {
	Limit int `json:"limit"`
}

// IdempotencyCleanupPayload sets how long keys are kept.
type IdempotencyCleanupPayload struct {
	Retention time.Duration `json:"retention"`
}

// NewInvoiceNoticeTask constructs an Asynq task.
func NewInvoiceNoticeTask(invoiceID int64) (*asynq.Task, error) {
	return newTask(TaskInvoiceNotice, InvoiceNoticePayload{InvoiceID: invoiceID})
}

// NewOverdueSweepTask constructs the overdue sweep task.
func NewOverdueSweepTask(limit int) (*asynq.Task, error) {
	return newTask(TaskOverdueSweep, OverdueSweepPayload{Limit: limit})
}

// NewIdempotencyCleanupTask constructs the cleanup task.
func NewIdempotencyCleanupTask(retention time.Duration) (*asynq.Task, error) {
	return newTask(TaskIdempotencyCleanup, IdempotencyCleanupPayload{Retention: retention})
}

func newTask(typ string, payload any) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(typ, data), nil
}
