package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"fintrack/internal/core"
)

// TaskStore is the task_results storage used by the processor.
type TaskStore interface {
	ClaimTask(ctx context.Context, taskID string) (core.Task, error)
	PendingTaskIDs(ctx context.Context, limit int) ([]string, error)
	CompleteTask(ctx context.Context, taskID string, result json.RawMessage) error
	FailTask(ctx context.Context, taskID, errMsg string) error
	RetryTask(ctx context.Context, taskID, errMsg string) error
	ResetStaleTasks(ctx context.Context, cutoff time.Time) (int64, error)
	DeleteFinishedTasks(ctx context.Context, cutoff time.Time) (int64, error)
}

// TaskHandler runs one task and returns its JSON result. Errors wrapping
// core.ErrValidation fail the task without retrying.
type TaskHandler func(ctx context.Context, payload json.RawMessage) (json.RawMessage, error)

// TaskProcessorConfig holds configuration for the task processor
type TaskProcessorConfig struct {
	// PollInterval is how often to check for pending tasks (default: 10s)
	PollInterval time.Duration

	// BatchSize is the max number of tasks to run per poll cycle (default: 10)
	BatchSize int

	// MaxRetries is the number of attempts before a task is marked failed (default: 3)
	MaxRetries int

	// CleanupInterval is how often finished and stuck tasks are swept (default: 1h)
	CleanupInterval time.Duration

	// CleanupAge is how old finished tasks must be before removal (default: 7 days)
	CleanupAge time.Duration

	// StaleAfter is how long a task may stay running before it is requeued (default: 30m)
	StaleAfter time.Duration
}

// DefaultTaskProcessorConfig returns sensible defaults
func DefaultTaskProcessorConfig() TaskProcessorConfig {
	return TaskProcessorConfig{
		PollInterval:    10 * time.Second,
		BatchSize:       10,
		MaxRetries:      3,
		CleanupInterval: 1 * time.Hour,
		CleanupAge:      7 * 24 * time.Hour,
		StaleAfter:      30 * time.Minute,
	}
}

// TaskProcessor polls task_results and runs pending tasks with the handler
// registered for their type.
type TaskProcessor struct {
	store    TaskStore
	config   TaskProcessorConfig
	handlers map[string]TaskHandler

	// Lifecycle management
	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

func NewTaskProcessor(store TaskStore, config TaskProcessorConfig) *TaskProcessor {
	def := DefaultTaskProcessorConfig()
	if config.PollInterval <= 0 {
		config.PollInterval = def.PollInterval
	}
	if config.BatchSize <= 0 {
		config.BatchSize = def.BatchSize
	}
	if config.MaxRetries <= 0 {
		config.MaxRetries = def.MaxRetries
	}
	if config.CleanupInterval <= 0 {
		config.CleanupInterval = def.CleanupInterval
	}
	if config.CleanupAge <= 0 {
		config.CleanupAge = def.CleanupAge
	}
	if config.StaleAfter <= 0 {
		config.StaleAfter = def.StaleAfter
	}
	return &TaskProcessor{
		store:    store,
		config:   config,
		handlers: make(map[string]TaskHandler),
	}
}

// Register binds handler to taskType. Call before Start.
func (p *TaskProcessor) Register(taskType string, handler TaskHandler) {
	p.handlers[taskType] = handler
}

// Start begins the processing loop. Returns an error if already running.
func (p *TaskProcessor) Start(ctx context.Context) error {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return fmt.Errorf("task processor is already running")
	}
	p.running = true
	p.stopCh = make(chan struct{})
	p.doneCh = make(chan struct{})
	p.mu.Unlock()

	// Requeue tasks left running by a previous crash
	p.resetStale(ctx)

	go p.runLoop(ctx)

	slog.InfoContext(ctx, "Task processor started",
		"poll_interval", p.config.PollInterval,
		"batch_size", p.config.BatchSize,
		"max_retries", p.config.MaxRetries)

	return nil
}

// Stop gracefully stops the processor and waits for the current batch.
func (p *TaskProcessor) Stop(ctx context.Context) error {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return nil
	}
	p.mu.Unlock()

	close(p.stopCh)

	select {
	case <-p.doneCh:
		slog.InfoContext(ctx, "Task processor stopped gracefully")
	case <-ctx.Done():
		slog.WarnContext(ctx, "Task processor stop timed out")
		return ctx.Err()
	}

	p.mu.Lock()
	p.running = false
	p.mu.Unlock()

	return nil
}

func (p *TaskProcessor) IsRunning() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

func (p *TaskProcessor) runLoop(ctx context.Context) {
	defer close(p.doneCh)

	pollTicker := time.NewTicker(p.config.PollInterval)
	defer pollTicker.Stop()

	cleanupTicker := time.NewTicker(p.config.CleanupInterval)
	defer cleanupTicker.Stop()

	// Process immediately on startup
	p.ProcessBatch(ctx)

	for {
		select {
		case <-p.stopCh:
			return
		case <-ctx.Done():
			return
		case <-pollTicker.C:
			p.ProcessBatch(ctx)
		case <-cleanupTicker.C:
			p.Cleanup(ctx)
		}
	}
}

// ProcessBatch runs up to BatchSize pending tasks and returns how many it
// attempted.
func (p *TaskProcessor) ProcessBatch(ctx context.Context) int {
	ids, err := p.store.PendingTaskIDs(ctx, p.config.BatchSize)
	if err != nil {
		slog.ErrorContext(ctx, "Failed to list pending tasks", "error", err)
		return 0
	}
	if len(ids) == 0 {
		return 0
	}

	slog.DebugContext(ctx, "Processing task batch", "count", len(ids))

	attempted := 0
	for _, id := range ids {
		select {
		case <-p.stopCh:
			return attempted
		case <-ctx.Done():
			return attempted
		default:
		}

		if err := p.ProcessTask(ctx, id); err != nil {
			slog.ErrorContext(ctx, "Task processing failed", "task_id", id, "error", err)
		}
		attempted++
	}
	return attempted
}

// ProcessTask claims and runs one task. A task already claimed elsewhere is
// skipped without error. The returned error is the handler's, after the
// task's status has been recorded.
func (p *TaskProcessor) ProcessTask(ctx context.Context, taskID string) error {
	task, err := p.store.ClaimTask(ctx, taskID)
	if errors.Is(err, core.ErrConflict) {
		slog.DebugContext(ctx, "Task already claimed, skipping", "task_id", taskID)
		return nil
	}
	if err != nil {
		return fmt.Errorf("claim task: %w", err)
	}

	handler, ok := p.handlers[task.TaskType]
	if !ok {
		msg := fmt.Sprintf("unknown task type: %s", task.TaskType)
		if err := p.store.FailTask(ctx, taskID, msg); err != nil {
			slog.ErrorContext(ctx, "Failed to mark task as failed", "task_id", taskID, "error", err)
		}
		return errors.New(msg)
	}

	started := time.Now()
	result, runErr := handler(ctx, task.Payload)
	if runErr != nil {
		p.handleFailure(ctx, task, runErr)
		return runErr
	}

	if err := p.store.CompleteTask(ctx, taskID, result); err != nil {
		return fmt.Errorf("mark task complete: %w", err)
	}
	slog.InfoContext(ctx, "Task completed",
		"task_id", taskID,
		"task_type", task.TaskType,
		"attempt", task.Attempts,
		"duration", time.Since(started))
	return nil
}

// handleFailure retries the task until MaxRetries attempts have been made.
func (p *TaskProcessor) handleFailure(ctx context.Context, task core.Task, runErr error) {
	permanent := errors.Is(runErr, core.ErrValidation) || task.Attempts >= p.config.MaxRetries
	slog.WarnContext(ctx, "Task attempt failed",
		"task_id", task.TaskID,
		"task_type", task.TaskType,
		"attempt", task.Attempts,
		"permanent", permanent,
		"error", runErr)

	if permanent {
		if err := p.store.FailTask(ctx, task.TaskID, runErr.Error()); err != nil {
			slog.ErrorContext(ctx, "Failed to mark task as failed", "task_id", task.TaskID, "error", err)
		}
		return
	}
	if err := p.store.RetryTask(ctx, task.TaskID, runErr.Error()); err != nil {
		slog.ErrorContext(ctx, "Failed to requeue task", "task_id", task.TaskID, "error", err)
	}
}

// Cleanup removes old finished tasks and requeues stuck ones.
func (p *TaskProcessor) Cleanup(ctx context.Context) {
	n, err := p.store.DeleteFinishedTasks(ctx, time.Now().Add(-p.config.CleanupAge))
	if err != nil {
		slog.ErrorContext(ctx, "Failed to clean up finished tasks", "error", err)
	} else if n > 0 {
		slog.InfoContext(ctx, "Removed finished tasks", "count", n)
	}
	p.resetStale(ctx)
}

func (p *TaskProcessor) resetStale(ctx context.Context) {
	n, err := p.store.ResetStaleTasks(ctx, time.Now().Add(-p.config.StaleAfter))
	if err != nil {
		slog.WarnContext(ctx, "Failed to reset stale tasks", "error", err)
		return
	}
	if n > 0 {
		slog.InfoContext(ctx, "Requeued stale tasks", "count", n)
	}
}
