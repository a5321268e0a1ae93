package jobs

import (
	"context"
	"fmt"

	"github.com/hibiken/asynq"

	"github.com/aquabill/aquabill/internal/invoices"
)

// Client enqueues billing tasks.
type Client struct {
	queue *asynq.Client
}

// NewClient constructs an Asynq client.
func NewClient(redisOpts asynq.RedisClientOpt) (*Client, error) {
	if redisOpts.Addr == "" {
		return nil, fmt.Errorf("jobs client: redis address required")
	}
	return &Client{queue: asynq.NewClient(redisOpts)}, nil
}

// EnqueueInvoiceNotice queues the notice for invoiceID. The task id is derived
// from the invoice so one invoice never gets two queued notices.
func (c *Client) EnqueueInvoiceNotice(ctx context.Context, invoiceID int64) (*asynq.TaskInfo, error) {
	task, err := NewInvoiceNoticeTask(invoiceID)
	if err != nil {
		return nil, err
	}
	return c.queue.EnqueueContext(ctx, task,
		asynq.Queue(QueueDefault),
		asynq.MaxRetry(5),
		asynq.TaskID(fmt.Sprintf("invoice-notice-%d", invoiceID)),
	)
}

// InvoiceCreated implements invoices.Notifier.
func (c *Client) InvoiceCreated(ctx context.Context, inv invoices.Invoice) error {
	if c == nil {
		return nil
	}
	_, err := c.EnqueueInvoiceNotice(ctx, inv.ID)
	return err
}

// Close releases the Redis connection.
func (c *Client) Close() error {
	if c == nil {
		return nil
	}
	return c.queue.Close()
}

var _ invoices.Notifier = (*Client)(nil)
