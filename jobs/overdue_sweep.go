package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/aquabill/aquabill/internal/invoices"
	jobmetrics "github.com/aquabill/aquabill/internal/jobs"
)

const defaultSweepLimit = 500

// OverdueMarker is the part of the invoice status manager the sweep needs.
type OverdueMarker interface {
	MarkOverdue(ctx context.Context, asOf time.Time, limit int) ([]invoices.Invoice, error)
}

// OverdueSweepJob marks pending invoices whose due date has passed as overdue.
type OverdueSweepJob struct {
	Marker  OverdueMarker
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
	clock   func() time.Time
}

// NewOverdueSweepJob initialises the sweep handler.
func NewOverdueSweepJob(marker OverdueMarker, logger *slog.Logger, metrics *jobmetrics.Metrics) *OverdueSweepJob {
	if logger == nil {
		logger = slog.Default()
	}
	return &OverdueSweepJob{
		Marker:  marker,
		Logger:  logger,
		Metrics: metrics,
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// Handle executes one sweep.
func (j *OverdueSweepJob) Handle(ctx context.Context, t *asynq.Task) (err error) {
	if j == nil || j.Marker == nil {
		return errors.New("overdue sweep: handler not configured")
	}
	var payload OverdueSweepPayload
	if len(t.Payload()) > 0 {
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return asynq.SkipRetry
		}
	}
	if payload.Limit <= 0 {
		payload.Limit = defaultSweepLimit
	}

	tracker := j.Metrics.Track(TaskOverdueSweep)
	defer func() {
		err = tracker.End(err)
	}()

	asOf := j.clock()
	changed, err := j.Marker.MarkOverdue(ctx, asOf, payload.Limit)
	j.Metrics.AddProcessed(TaskOverdueSweep, len(changed))
	if err != nil {
		j.Logger.Error("overdue sweep failed", slog.Int("marked", len(changed)), slog.Any("error", err))
		return err
	}
	j.Logger.Info("overdue sweep completed",
		slog.Time("as_of", asOf),
		slog.Int("marked", len(changed)),
	)
	return nil
}
