package tasks

import (
	"context"
	"time"
)

// ScheduledTaskFunc defines the standard signature for all scheduled tasks.
// The context provided by the scheduler should be respected for cancellation.
type ScheduledTaskFunc func(ctx context.Context) error

// ScheduledTask pairs a task function with its run interval.
type ScheduledTask struct {
	Interval time.Duration
	Run      ScheduledTaskFunc
}

// RegisterAllTasks initializes and returns a map of all registered scheduled
// tasks, keyed by task name.
func RegisterAllTasks(deps TaskDeps) map[string]ScheduledTask {
	tasks := make(map[string]ScheduledTask)

	tasks["answer_delivery"] = ScheduledTask{
		Interval: deps.Config.Delivery.Interval,
		Run:      newDeliveryTask(deps),
	}

	deps.Logger.Info("Initialized scheduled tasks", "count", len(tasks))
	return tasks
}
