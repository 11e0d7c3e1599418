// Package worker consumes queue messages: it runs enqueued tasks right away
// and mirrors newly created transactions to the spreadsheet.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"fintrack/internal/amqp"
	"fintrack/internal/core"
	"fintrack/internal/sheets"
)

// TransactionSource loads transactions to mirror.
type TransactionSource interface {
	Get(ctx context.Context, id string) (core.Transaction, error)
	List(ctx context.Context, f core.TransactionFilter) (core.TransactionPage, error)
}

// TaskRunner runs one background task by id.
type TaskRunner interface {
	ProcessTask(ctx context.Context, taskID string) error
}

// Mirror is the spreadsheet the worker keeps in step with the database.
type Mirror interface {
	sheets.TransactionWriter
	sheets.TransactionLister
}

// SyncWorker handles messages from the fintrack queue.
type SyncWorker struct {
	transactions TransactionSource
	tasks        TaskRunner
	mirror       Mirror
	pageSize     int
}

// NewSyncWorker wires the worker. mirror may be nil, in which case
// transaction.created messages are acknowledged without doing anything.
func NewSyncWorker(transactions TransactionSource, tasks TaskRunner, mirror Mirror) *SyncWorker {
	return &SyncWorker{
		transactions: transactions,
		tasks:        tasks,
		mirror:       mirror,
		pageSize:     100,
	}
}

// HandleMessage dispatches on the message type. A returned error requeues
// the message.
func (w *SyncWorker) HandleMessage(ctx context.Context, msg *amqp.Message) error {
	switch msg.Type {
	case amqp.TypeTaskEnqueued:
		return w.HandleTaskMessage(ctx, msg)
	case amqp.TypeTransactionCreated:
		return w.HandleTransactionCreated(ctx, msg)
	default:
		slog.WarnContext(ctx, "Dropping message of unknown type", "type", msg.Type)
		return nil
	}
}

// HandleTaskMessage runs the task immediately instead of waiting for the next
// poll. Failures are recorded on the task and retried by the poll loop, so
// the message itself is never requeued.
func (w *SyncWorker) HandleTaskMessage(ctx context.Context, msg *amqp.Message) error {
	if msg.TaskID == "" {
		slog.WarnContext(ctx, "Task message without task id", "task_type", msg.TaskType)
		return nil
	}
	if w.tasks == nil {
		return nil
	}

	slog.InfoContext(ctx, "Processing task message",
		"task_id", msg.TaskID,
		"task_type", msg.TaskType)

	if err := w.tasks.ProcessTask(ctx, msg.TaskID); err != nil {
		slog.WarnContext(ctx, "Task run from message failed",
			"task_id", msg.TaskID,
			"task_type", msg.TaskType,
			"error", err)
	}
	return nil
}

// HandleTransactionCreated appends the transaction to the mirror.
func (w *SyncWorker) HandleTransactionCreated(ctx context.Context, msg *amqp.Message) error {
	if w.mirror == nil {
		return nil
	}
	if msg.TransactionID == "" {
		slog.WarnContext(ctx, "Transaction message without transaction id")
		return nil
	}

	txn, err := w.transactions.Get(ctx, msg.TransactionID)
	if errors.Is(err, core.ErrNotFound) {
		slog.InfoContext(ctx, "Transaction deleted before it was mirrored", "transaction_id", msg.TransactionID)
		return nil
	}
	if err != nil {
		return fmt.Errorf("get transaction: %w", err)
	}

	return w.mirrorTransaction(ctx, txn)
}

func (w *SyncWorker) mirrorTransaction(ctx context.Context, txn core.Transaction) error {
	ref, err := w.mirror.Append(ctx, sheets.RowFromTransaction(txn))
	if err != nil {
		return fmt.Errorf("append to sheets: %w", err)
	}
	slog.InfoContext(ctx, "Mirrored transaction",
		"transaction_id", txn.ID,
		"sheets_ref", ref,
		"amount_cents", txn.Amount.Cents,
		"currency", txn.Currency)
	return nil
}

// ReconcileMonth appends every transaction dated in year/month that the
// mirror does not hold yet. It recovers from lost messages and worker
// downtime, and returns how many rows were added.
func (w *SyncWorker) ReconcileMonth(ctx context.Context, year int, month time.Month) (int, error) {
	if w.mirror == nil {
		return 0, nil
	}

	rows, err := w.mirror.ListRows(ctx, year, int(month))
	if err != nil {
		return 0, fmt.Errorf("list mirrored rows: %w", err)
	}
	mirrored := make(map[string]struct{}, len(rows))
	for _, r := range rows {
		mirrored[r.TransactionID] = struct{}{}
	}

	start := core.NewDate(year, int(month), 1)
	end := core.DateOf(start.AddDate(0, 1, -1))
	added, failed := 0, 0
	for page := 1; ; page++ {
		res, err := w.transactions.List(ctx, core.TransactionFilter{
			StartDate: &start,
			EndDate:   &end,
			Page:      page,
			PageSize:  w.pageSize,
		})
		if err != nil {
			return added, fmt.Errorf("list transactions: %w", err)
		}
		for _, txn := range res.Items {
			if _, ok := mirrored[txn.ID]; ok {
				continue
			}
			if err := w.mirrorTransaction(ctx, txn); err != nil {
				slog.ErrorContext(ctx, "Failed to mirror transaction", "transaction_id", txn.ID, "error", err)
				failed++
				continue
			}
			mirrored[txn.ID] = struct{}{}
			added++
		}
		if page >= res.Pages {
			break
		}
	}

	slog.InfoContext(ctx, "Mirror reconciliation completed",
		"year", year,
		"month", int(month),
		"already_mirrored", len(rows),
		"added", added,
		"errors", failed)
	return added, nil
}
