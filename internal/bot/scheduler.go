package bot

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/go-co-op/gocron/v2"

	"github.com/edgard/expensebot/internal/bot/tasks"
	"github.com/edgard/expensebot/internal/config"
	"github.com/edgard/expensebot/internal/logger"
)

// Scheduler runs the registered tasks enabled in the configuration on their cron schedules.
type Scheduler struct {
	scheduler gocron.Scheduler
	logger    *slog.Logger
	cfg       config.SchedulerConfig
	taskMap   map[string]tasks.ScheduledTaskFunc
	mu        sync.Mutex
	running   bool
}

// NewScheduler creates a scheduler whose cron expressions are evaluated in loc.
func NewScheduler(log *slog.Logger, cfg config.SchedulerConfig, loc *time.Location, taskMap map[string]tasks.ScheduledTaskFunc) (*Scheduler, error) {
	if log == nil {
		log = slog.Default()
	}
	log = log.With("component", "scheduler")

	opts := []gocron.SchedulerOption{gocron.WithLogger(logger.Gocron(log))}
	if loc != nil {
		opts = append(opts, gocron.WithLocation(loc))
	}
	s, err := gocron.NewScheduler(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create scheduler: %w", err)
	}

	return &Scheduler{
		scheduler: s,
		logger:    log,
		cfg:       cfg,
		taskMap:   taskMap,
	}, nil
}

// Start registers every enabled task and starts ticking. A task that fails
// to register is logged and skipped.
func (s *Scheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return fmt.Errorf("scheduler is already running")
	}

	scheduled := 0
	for name, taskCfg := range s.cfg.Tasks {
		if !taskCfg.Enabled {
			s.logger.Info("Skipping disabled task", "task_name", name)
			continue
		}

		taskFunc, ok := s.taskMap[name]
		if !ok {
			s.logger.Warn("Scheduled task configured but not registered, skipping", "task_name", name)
			continue
		}

		_, err := s.scheduler.NewJob(
			gocron.CronJob(taskCfg.Schedule, true),
			gocron.NewTask(s.wrap(name, taskFunc), context.Background()),
			gocron.WithName(name),
			gocron.WithSingletonMode(gocron.LimitModeReschedule),
		)
		if err != nil {
			s.logger.Error("Failed to schedule task", "task_name", name, "schedule", taskCfg.Schedule, "error", err)
			continue
		}

		s.logger.Info("Scheduled task", "task_name", name, "schedule", taskCfg.Schedule)
		scheduled++
	}

	s.scheduler.Start()
	s.running = true
	s.logger.Info("Scheduler started", "tasks_scheduled", scheduled)
	return nil
}

func (s *Scheduler) wrap(name string, task tasks.ScheduledTaskFunc) func(context.Context) {
	return func(ctx context.Context) {
		s.logger.Info("Running scheduled task", "task_name", name)
		start := time.Now()
		if err := task(ctx); err != nil {
			s.logger.Error("Scheduled task failed", "task_name", name, "error", err)
			return
		}
		s.logger.Info("Finished scheduled task", "task_name", name, "duration", time.Since(start))
	}
}

// Jobs returns the names of the scheduled jobs.
func (s *Scheduler) Jobs() []string {
	jobs := s.scheduler.Jobs()
	names := make([]string, 0, len(jobs))
	for _, j := range jobs {
		names = append(names, j.Name())
	}
	return names
}

// Stop shuts the scheduler down, waiting for running jobs.
func (s *Scheduler) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return nil
	}

	err := s.scheduler.Shutdown()
	s.running = false
	if err != nil {
		return fmt.Errorf("scheduler shutdown: %w", err)
	}
	s.logger.Info("Scheduler stopped")
	return nil
}
