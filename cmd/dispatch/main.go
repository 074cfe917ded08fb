// Package main implements a small demonstration driver for the dispatch
// scheduler: it creates a few tasks with mixed priorities, runs them
// through the worker pool and prints the resulting statistics.
package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"time"

	"github.com/dispatchd/dispatch/internal/config"
	"github.com/dispatchd/dispatch/internal/events"
	"github.com/dispatchd/dispatch/internal/platform/logger"
	"github.com/dispatchd/dispatch/internal/task"
)

func main() {
	scheduler, err := initializeApp()
	if err != nil {
		log.Fatalf("Failed to initialize application: %v", err)
	}

	runDemo(scheduler)
}

// initializeApp loads configuration and sets up application components.
// Returns a ready scheduler and any initialization error.
func initializeApp() (*task.Scheduler, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	appLogger, err := logger.Setup(cfg.Log)
	if err != nil {
		return nil, fmt.Errorf("failed to set up logger: %w", err)
	}

	slog.Info("configuration loaded",
		"workers", cfg.Scheduler.Workers,
		"max_retries", cfg.Scheduler.MaxRetries,
		"backoff_base_ms", cfg.Scheduler.BackoffBaseMS,
		"log_level", cfg.Log.Level)

	scheduler := task.New(task.Config{
		Workers:     cfg.Scheduler.Workers,
		MaxRetries:  cfg.Scheduler.MaxRetries,
		BackoffBase: time.Duration(cfg.Scheduler.BackoffBaseMS) * time.Millisecond,
	}, appLogger)

	emitter := events.NewInMemoryEmitter(appLogger)
	emitter.RegisterHandler(logHandler{logger: appLogger})
	scheduler.SetEmitter(emitter)

	return scheduler, nil
}

// logHandler writes every lifecycle event to the structured log.
type logHandler struct {
	logger *slog.Logger
}

func (h logHandler) HandleEvent(ctx context.Context, event *events.Event) error {
	h.logger.Info("lifecycle event",
		"event_type", event.Type,
		"task_id", event.TaskID)
	return nil
}

// runDemo mirrors a minimal scheduler session: create, submit, wait,
// report, stop.
func runDemo(scheduler *task.Scheduler) {
	add := func(x, y int) task.Func {
		return func(ctx context.Context) (any, error) {
			time.Sleep(100 * time.Millisecond)
			return x + y, nil
		}
	}

	first, err := scheduler.Create("add numbers", add(5, 3), task.PriorityHigh)
	if err != nil {
		log.Fatalf("Failed to create task: %v", err)
	}
	second, err := scheduler.Create("another task", add(10, 20), task.PriorityNormal)
	if err != nil {
		log.Fatalf("Failed to create task: %v", err)
	}

	if err := scheduler.Start(); err != nil {
		log.Fatalf("Failed to start scheduler: %v", err)
	}

	for _, id := range []string{first, second} {
		if err := scheduler.Submit(id); err != nil {
			log.Fatalf("Failed to submit task %s: %v", id, err)
		}
	}

	time.Sleep(time.Second)

	stats := scheduler.Statistics()
	fmt.Printf("total=%d completed=%d failed=%d queue_depth=%d avg_duration=%s\n",
		stats.Total,
		stats.StatusCounts[task.StatusCompleted],
		stats.StatusCounts[task.StatusFailed],
		stats.QueueDepth,
		stats.AverageCompletedDuration)

	scheduler.Stop()
}
