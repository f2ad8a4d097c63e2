package tasks

import (
	"context"
)

// ScheduledTaskFunc is the signature of every scheduled task. Tasks should
// respect ctx cancellation.
type ScheduledTaskFunc func(ctx context.Context) error

// RegisterAllTasks returns the available tasks keyed by the name used in the
// scheduler configuration.
func RegisterAllTasks(deps TaskDeps) map[string]ScheduledTaskFunc {
	tasks := make(map[string]ScheduledTaskFunc)

	tasks["sql_maintenance"] = newSQLMaintenanceTask(deps)

	deps.Logger.Info("Initialized scheduled tasks", "count", len(tasks))
	return tasks
}
