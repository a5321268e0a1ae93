// Package cli holds the operator subcommands of the aquabill binary.
package cli

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hibiken/asynq"

	"github.com/aquabill/aquabill/jobs"
)

// manualTriggerWindow stops an operator from queueing the same job twice in a row.
const manualTriggerWindow = 10 * time.Minute

var triggers = map[string]func() (*asynq.Task, error){
	jobs.TaskOverdueSweep:       func() (*asynq.Task, error) { return jobs.NewOverdueSweepTask(0) },
	jobs.TaskIdempotencyCleanup: func() (*asynq.Task, error) { return jobs.NewIdempotencyCleanupTask(0) },
}

// Jobs triggers maintenance tasks by hand and reports queue depth.
type Jobs struct {
	client    *asynq.Client
	inspector *asynq.Inspector
}

// NewJobs connects to the queue at redisAddr.
func NewJobs(redisAddr string) (*Jobs, error) {
	if redisAddr == "" {
		return nil, errors.New("jobs cli: redis address required")
	}
	opts := asynq.RedisClientOpt{Addr: redisAddr}
	return &Jobs{client: asynq.NewClient(opts), inspector: asynq.NewInspector(opts)}, nil
}

// Close releases both connections.
func (j *Jobs) Close() error {
	return errors.Join(j.inspector.Close(), j.client.Close())
}

// BuildTask returns the default task for a job name. Only scheduled maintenance
// jobs can be triggered; invoice notices are queued by invoice generation.
func BuildTask(name string) (*asynq.Task, error) {
	build, ok := triggers[name]
	if !ok {
		return nil, fmt.Errorf("jobs cli: %s cannot be triggered manually", name)
	}
	return build()
}

// Trigger enqueues the named job with its default payload.
func (j *Jobs) Trigger(ctx context.Context, name string) (*asynq.TaskInfo, error) {
	task, err := BuildTask(name)
	if err != nil {
		return nil, err
	}
	return j.client.EnqueueContext(ctx, task,
		asynq.Queue(jobs.QueueDefault),
		asynq.MaxRetry(3),
		asynq.Unique(manualTriggerWindow),
	)
}

// QueueStats summarises the default queue.
type QueueStats struct {
	Queue     string
	Pending   int
	Active    int
	Scheduled int
	Retry     int
	Archived  int
}

// Stats reads the default queue counters.
func (j *Jobs) Stats() (QueueStats, error) {
	info, err := j.inspector.GetQueueInfo(jobs.QueueDefault)
	if err != nil {
		return QueueStats{}, fmt.Errorf("jobs cli: inspect queue: %w", err)
	}
	return QueueStats{
		Queue:     info.Queue,
		Pending:   info.Pending,
		Active:    info.Active,
		Scheduled: info.Scheduled,
		Retry:     info.Retry,
		Archived:  info.Archived,
	}, nil
}
