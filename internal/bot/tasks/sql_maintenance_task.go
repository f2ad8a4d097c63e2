package tasks

import (
	"context"
	"fmt"
	"time"
)

const maintenanceTimeout = 10 * time.Minute

// newSQLMaintenanceTask returns the task that runs the store's database maintenance.
func newSQLMaintenanceTask(deps TaskDeps) ScheduledTaskFunc {
	log := deps.Logger.With("task", "sql_maintenance")

	return func(ctx context.Context) error {
		log.InfoContext(ctx, "Starting SQL maintenance")
		start := time.Now()

		ctx, cancel := context.WithTimeout(ctx, maintenanceTimeout)
		defer cancel()

		if err := deps.Store.RunMaintenance(ctx); err != nil {
			log.ErrorContext(ctx, "SQL maintenance failed", "error", err, "duration", time.Since(start))
			return fmt.Errorf("sql maintenance failed: %w", err)
		}

		log.InfoContext(ctx, "SQL maintenance completed", "duration", time.Since(start))
		return nil
	}
}
