package cli

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-mill/jobs"
)

func TestBuildTaskReconcileCarriesOwner(t *testing.T) {
	task, err := buildTask(jobs.TaskInventoryReconcile, TriggerOptions{Owner: "budi"})
	require.NoError(t, err)
	assert.Equal(t, jobs.TaskInventoryReconcile, task.Type())

	var payload jobs.InventoryReconcilePayload
	require.NoError(t, json.Unmarshal(task.Payload(), &payload))
	assert.Equal(t, "budi", payload.Owner)
	assert.False(t, payload.ScheduledFor.IsZero())
}

func TestBuildTaskCleanupDefaultsRetention(t *testing.T) {
	task, err := buildTask(jobs.TaskIdempotencyCleanup, TriggerOptions{})
	require.NoError(t, err)

	var payload jobs.IdempotencyCleanupPayload
	require.NoError(t, json.Unmarshal(task.Payload(), &payload))
	assert.Equal(t, int((7 * 24 * time.Hour).Hours()), payload.RetentionHours)
}

func TestTriggerRejectsUnknownJob(t *testing.T) {
	var c *JobsCLI
	_, err := c.Trigger(context.Background(), "mail:send", TriggerOptions{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported job")
}
