package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"fintrack/internal/core"
)

type TaskQueueStore interface {
	CreateTask(ctx context.Context, taskID, taskType string, payload json.RawMessage) (core.Task, error)
	GetTask(ctx context.Context, taskID string) (core.Task, error)
}

// TaskService records background tasks and reports their status.
type TaskService struct {
	store  TaskQueueStore
	events EventPublisher
}

func NewTaskService(store TaskQueueStore, events EventPublisher) *TaskService {
	return &TaskService{store: store, events: events}
}

// Enqueue stores a pending task and nudges the workers over AMQP. Without
// AMQP the task is picked up by the next poll.
func (s *TaskService) Enqueue(ctx context.Context, taskType string, payload any) (core.Task, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return core.Task{}, fmt.Errorf("encode task payload: %w", err)
	}
	task, err := s.store.CreateTask(ctx, uuid.NewString(), taskType, raw)
	if err != nil {
		return core.Task{}, fmt.Errorf("create task: %w", err)
	}

	slog.InfoContext(ctx, "Task enqueued", "task_id", task.TaskID, "task_type", taskType)

	if s.events != nil {
		if err := s.events.PublishTaskEnqueued(ctx, task.TaskID, taskType); err != nil {
			slog.WarnContext(ctx, "Failed to publish task message, relying on poll",
				"task_id", task.TaskID, "error", err)
		}
	}
	return task, nil
}

// Status returns the task. Unknown ids are reported as pending with an
// unknown type.
func (s *TaskService) Status(ctx context.Context, taskID string) (core.Task, error) {
	task, err := s.store.GetTask(ctx, taskID)
	if errors.Is(err, core.ErrNotFound) {
		return core.Task{TaskID: taskID, TaskType: "unknown", Status: core.TaskPending}, nil
	}
	return task, err
}
