package core

import (
	"encoding/json"
	"time"
)

const (
	TaskPending   TaskStatus = "pending"
	TaskRunning   TaskStatus = "running"
	TaskCompleted TaskStatus = "completed"
	TaskFailed    TaskStatus = "failed"
)

const TaskTypeCSVImport = "csv_import"

type TaskStatus string

// Task is a unit of background work tracked in task_results.
type Task struct {
	TaskID    string          `json:"task_id"`
	TaskType  string          `json:"task_type"`
	Status    TaskStatus      `json:"status"`
	Payload   json.RawMessage `json:"-"`
	Result    json.RawMessage `json:"result,omitempty"`
	Error     *string         `json:"error,omitempty"`
	Attempts  int             `json:"-"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

func (s TaskStatus) Finished() bool {
	return s == TaskCompleted || s == TaskFailed
}
