package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"fintrack/internal/core"
)

const taskColumns = `task_id, task_type, status, payload, result, error, attempts, created_at, updated_at`

func scanTask(row interface{ Scan(...any) error }) (core.Task, error) {
	var (
		t                       core.Task
		status                  string
		payload, result, errMsg sql.NullString
		createdAt, updatedAt    string
	)
	if err := row.Scan(&t.TaskID, &t.TaskType, &status, &payload, &result, &errMsg, &t.Attempts, &createdAt, &updatedAt); err != nil {
		return core.Task{}, err
	}
	t.Status = core.TaskStatus(status)
	if payload.Valid {
		t.Payload = json.RawMessage(payload.String)
	}
	if result.Valid {
		t.Result = json.RawMessage(result.String)
	}
	t.Error = stringPtr(errMsg)
	t.CreatedAt = parseTime(createdAt)
	t.UpdatedAt = parseTime(updatedAt)
	return t, nil
}

// CreateTask stores a new pending task.
func (r *SQLiteRepository) CreateTask(ctx context.Context, taskID, taskType string, payload json.RawMessage) (core.Task, error) {
	ts := utcNow()
	_, err := r.db.ExecContext(ctx, `INSERT INTO task_results (`+taskColumns+`) VALUES (?, ?, ?, ?, NULL, NULL, 0, ?, ?)`,
		taskID, taskType, string(core.TaskPending), string(payload), formatTime(ts), formatTime(ts))
	if err != nil {
		return core.Task{}, wrapErr("create task", err)
	}
	return core.Task{TaskID: taskID, TaskType: taskType, Status: core.TaskPending, Payload: payload, CreatedAt: ts, UpdatedAt: ts}, nil
}

func (r *SQLiteRepository) GetTask(ctx context.Context, taskID string) (core.Task, error) {
	t, err := scanTask(r.db.QueryRowContext(ctx, `SELECT `+taskColumns+` FROM task_results WHERE task_id = ?`, taskID))
	if err != nil {
		return core.Task{}, wrapErr(fmt.Sprintf("get task %s", taskID), err)
	}
	return t, nil
}

// ClaimTask moves a pending task to running. It returns ErrConflict when the
// task was claimed by someone else or is no longer pending.
func (r *SQLiteRepository) ClaimTask(ctx context.Context, taskID string) (core.Task, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE task_results SET status = ?, attempts = attempts + 1, updated_at = ?
		WHERE task_id = ? AND status = ?`,
		string(core.TaskRunning), formatTime(utcNow()), taskID, string(core.TaskPending))
	if err != nil {
		return core.Task{}, wrapErr("claim task", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return core.Task{}, wrapErr("claim task", err)
	}
	if n == 0 {
		if _, err := r.GetTask(ctx, taskID); err != nil {
			return core.Task{}, err
		}
		return core.Task{}, fmt.Errorf("claim task %s: %w: not pending", taskID, core.ErrConflict)
	}
	return r.GetTask(ctx, taskID)
}

// PendingTaskIDs returns up to limit pending task ids, oldest first.
func (r *SQLiteRepository) PendingTaskIDs(ctx context.Context, limit int) ([]string, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT task_id FROM task_results WHERE status = ? ORDER BY created_at LIMIT ?`, string(core.TaskPending), limit)
	if err != nil {
		return nil, wrapErr("list pending tasks", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, wrapErr("scan task id", err)
		}
		ids = append(ids, id)
	}
	return ids, wrapErr("list pending tasks", rows.Err())
}

func (r *SQLiteRepository) CompleteTask(ctx context.Context, taskID string, result json.RawMessage) error {
	return r.setTaskStatus(ctx, taskID, core.TaskCompleted, sql.NullString{String: string(result), Valid: true}, sql.NullString{})
}

func (r *SQLiteRepository) FailTask(ctx context.Context, taskID, errMsg string) error {
	return r.setTaskStatus(ctx, taskID, core.TaskFailed, sql.NullString{}, sql.NullString{String: errMsg, Valid: true})
}

// RetryTask puts a running task back to pending, keeping the last error.
func (r *SQLiteRepository) RetryTask(ctx context.Context, taskID, errMsg string) error {
	return r.setTaskStatus(ctx, taskID, core.TaskPending, sql.NullString{}, sql.NullString{String: errMsg, Valid: true})
}

func (r *SQLiteRepository) setTaskStatus(ctx context.Context, taskID string, status core.TaskStatus, result, errMsg sql.NullString) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE task_results SET status = ?, result = ?, error = ?, updated_at = ? WHERE task_id = ?`,
		string(status), result, errMsg, formatTime(utcNow()), taskID)
	if err != nil {
		return wrapErr("update task", err)
	}
	return expectOneRow(res, "update task", taskID)
}

// ResetStaleTasks returns tasks stuck in running since before cutoff to pending.
func (r *SQLiteRepository) ResetStaleTasks(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE task_results SET status = ?, updated_at = ? WHERE status = ? AND updated_at < ?`,
		string(core.TaskPending), formatTime(utcNow()), string(core.TaskRunning), formatTime(cutoff))
	if err != nil {
		return 0, wrapErr("reset stale tasks", err)
	}
	return res.RowsAffected()
}

// DeleteFinishedTasks removes completed and failed tasks last updated before cutoff.
func (r *SQLiteRepository) DeleteFinishedTasks(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM task_results WHERE status IN (?, ?) AND updated_at < ?`,
		string(core.TaskCompleted), string(core.TaskFailed), formatTime(cutoff))
	if err != nil {
		return 0, wrapErr("delete finished tasks", err)
	}
	return res.RowsAffected()
}
