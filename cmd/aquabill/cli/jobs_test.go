package cli

import (
	"context"
	"testing"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/require"

	"github.com/aquabill/aquabill/jobs"
)

func TestBuildTask(t *testing.T) {
	for _, name := range []string{jobs.TaskOverdueSweep, jobs.TaskIdempotencyCleanup} {
		task, err := BuildTask(name)
		require.NoError(t, err)
		require.Equal(t, name, task.Type())
	}
	_, err := BuildTask(jobs.TaskInvoiceNotice)
	require.ErrorContains(t, err, "cannot be triggered manually")
}

func TestTriggerIsUniqueWithinWindow(t *testing.T) {
	mr := miniredis.RunT(t)
	j, err := NewJobs(mr.Addr())
	require.NoError(t, err)
	t.Cleanup(func() { _ = j.Close() })

	info, err := j.Trigger(context.Background(), jobs.TaskOverdueSweep)
	require.NoError(t, err)
	require.Equal(t, jobs.QueueDefault, info.Queue)
	require.Equal(t, jobs.TaskOverdueSweep, info.Type)

	_, err = j.Trigger(context.Background(), jobs.TaskOverdueSweep)
	require.ErrorIs(t, err, asynq.ErrDuplicateTask)
}

func TestNewJobsRequiresAddr(t *testing.T) {
	_, err := NewJobs("")
	require.Error(t, err)
}
