package jobs

import (
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskInventoryReconcile recomputes stock snapshots from full history.
	TaskInventoryReconcile = "inventory:reconcile"
	// TaskIdempotencyCleanup purges expired form submission keys.
	TaskIdempotencyCleanup = "idempotency:cleanup"
)

// InventoryReconcilePayload scopes a reconcile run. An empty owner means every owner.
type InventoryReconcilePayload struct {
	Owner        string    `json:"owner,omitempty"`
	ScheduledFor time.Time `json:"scheduled_for"`
}

// NewInventoryReconcileTask constructs an Asynq task for a reconcile run.
func NewInventoryReconcileTask(owner string, at time.Time) (*asynq.Task, error) {
	body, err := json.Marshal(InventoryReconcilePayload{Owner: owner, ScheduledFor: at})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskInventoryReconcile, body, asynq.Queue(QueueDefault)), nil
}

// IdempotencyCleanupPayload carries the retention window in hours.
type IdempotencyCleanupPayload struct {
	RetentionHours int `json:"retention_hours"`
}

// NewIdempotencyCleanupTask constructs an Asynq task purging keys older than retention.
func NewIdempotencyCleanupTask(retention time.Duration) (*asynq.Task, error) {
	body, err := json.Marshal(IdempotencyCleanupPayload{RetentionHours: int(retention.Hours())})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskIdempotencyCleanup, body, asynq.Queue(QueueDefault)), nil
}
