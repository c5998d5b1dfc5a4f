package cli

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/require"

	"github.com/lostfound/lostfound/jobs"
)

func TestTriggerCatalogVerify(t *testing.T) {
	mr := miniredis.RunT(t)
	c, err := NewJobsCLI(asynq.RedisClientOpt{Addr: mr.Addr()})
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })

	info, err := c.Trigger(context.Background(), jobs.TaskCatalogVerify)
	require.NoError(t, err)
	require.Equal(t, jobs.TaskCatalogVerify, info.Type)
	require.Equal(t, jobs.QueueDefault, info.Queue)
}

func TestTriggerUnsupported(t *testing.T) {
	mr := miniredis.RunT(t)
	c, err := NewJobsCLI(asynq.RedisClientOpt{Addr: mr.Addr()})
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })

	_, err = c.Trigger(context.Background(), "assignment:notify")
	require.ErrorContains(t, err, "unsupported job")
}

func TestNilCLI(t *testing.T) {
	var c *JobsCLI
	_, err := c.Trigger(context.Background(), jobs.TaskCatalogVerify)
	require.Error(t, err)
	_, err = c.InspectQueue(context.Background())
	require.Error(t, err)
}
