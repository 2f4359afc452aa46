package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/odyssey-erp/odyssey-mill/internal/inventory"
	jobmetrics "github.com/odyssey-erp/odyssey-mill/internal/jobs"
)

// Reconciler is the inventory surface the reconcile job drives.
type Reconciler interface {
	Owners(ctx context.Context) ([]string, error)
	Reconcile(ctx context.Context, owner string) (inventory.Snapshot, error)
}

// InventoryReconcileJob recomputes every owner's snapshot, warms the cache
// and publishes the negative stock gauge.
type InventoryReconcileJob struct {
	Inventory    Reconciler
	Logger       *slog.Logger
	Metrics      *jobmetrics.Metrics
	OwnerTimeout time.Duration
}

// NewInventoryReconcileJob wires dependencies for the reconcile handler.
func NewInventoryReconcileJob(reconciler Reconciler, logger *slog.Logger, metrics *jobmetrics.Metrics) *InventoryReconcileJob {
	return &InventoryReconcileJob{
		Inventory:    reconciler,
		Logger:       logger,
		Metrics:      metrics,
		OwnerTimeout: 30 * time.Second,
	}
}

// Handle processes inventory reconcile tasks.
func (j *InventoryReconcileJob) Handle(ctx context.Context, t *asynq.Task) (resultErr error) {
	if j == nil || j.Inventory == nil {
		return errors.New("inventory reconcile: handler not configured")
	}
	var payload InventoryReconcilePayload
	if len(t.Payload()) > 0 {
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return fmt.Errorf("inventory reconcile payload: %w", asynq.SkipRetry)
		}
	}

	tracker := j.metrics().Track(TaskInventoryReconcile)
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	logger := j.logger()
	owners := []string{payload.Owner}
	if payload.Owner == "" {
		var err error
		owners, err = j.Inventory.Owners(ctx)
		if err != nil {
			logger.Error("load inventory owners", slog.Any("error", err))
			return err
		}
	}

	start := time.Now()
	var failed []error
	for _, owner := range owners {
		if err := j.reconcileOwner(ctx, owner); err != nil {
			logger.Error("reconcile owner", slog.String("owner", owner), slog.Any("error", err))
			failed = append(failed, fmt.Errorf("%s: %w", owner, err))
		}
	}
	logger.Info("completed inventory reconcile",
		slog.Int("owners", len(owners)),
		slog.Int("failed", len(failed)),
		slog.Duration("duration", time.Since(start)))
	return errors.Join(failed...)
}

func (j *InventoryReconcileJob) reconcileOwner(ctx context.Context, owner string) error {
	timeout := j.OwnerTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	ownerCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	snap, err := j.Inventory.Reconcile(ownerCtx, owner)
	if err != nil {
		return err
	}
	negative := snap.NegativeCount()
	j.metrics().SetNegativeStock(owner, negative)
	if negative > 0 {
		j.logger().Warn("negative stock detected", slog.String("owner", owner), slog.Int("items", negative))
	}
	return nil
}

func (j *InventoryReconcileJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger
	}
	return slog.Default()
}

func (j *InventoryReconcileJob) metrics() *jobmetrics.Metrics {
	if j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}

var defaultJobMetrics = jobmetrics.NewMetrics(nil)
