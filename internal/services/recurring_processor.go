package services

import (
	"context"
	"fmt"
	"log/slog"

	"fintrack/internal/core"
)

// DueStore is the template storage the processor needs.
type DueStore interface {
	FindActiveDue(ctx context.Context, date core.Date) ([]core.RecurringTemplate, error)
	MaterializeOccurrence(ctx context.Context, rt core.RecurringTemplate, txn core.Transaction, next core.Date) (core.Transaction, error)
}

// RecurringProcessor turns due recurring templates into transactions
type RecurringProcessor struct {
	store  DueStore
	events EventPublisher
}

// NewRecurringProcessor creates a new recurring transaction processor. events may be nil.
func NewRecurringProcessor(store DueStore, events EventPublisher) *RecurringProcessor {
	return &RecurringProcessor{
		store:  store,
		events: events,
	}
}

// ProcessDue materializes one occurrence for every template due on date.
//
// Each template is its own unit of work: the transaction insert and the cursor
// advance commit together or not at all. A failing template is recorded in the
// result and the batch moves on. Only a failure to load the due set is
// returned as an error.
func (p *RecurringProcessor) ProcessDue(ctx context.Context, date core.Date) (core.ProcessResult, error) {
	if p.store == nil {
		return core.ProcessResult{}, fmt.Errorf("processor not properly initialized")
	}

	due, err := p.store.FindActiveDue(ctx, date)
	if err != nil {
		return core.ProcessResult{}, fmt.Errorf("find due recurring transactions: %w", err)
	}

	slog.InfoContext(ctx, "Processing recurring transactions",
		"due", len(due),
		"processing_date", date.String())

	result := core.ProcessResult{Errors: []core.ProcessError{}}
	for _, rt := range due {
		created, err := p.materialize(ctx, rt)
		if err != nil {
			result.ErrorCount++
			result.Errors = append(result.Errors, core.ProcessError{
				RecurringID: rt.ID,
				Error:       err.Error(),
			})
			slog.ErrorContext(ctx, "Failed to materialize recurring transaction",
				"recurring_id", rt.ID,
				"name", rt.Name,
				"next_occurrence", rt.NextOccurrence.String(),
				"error", err)
			continue
		}

		result.CreatedCount++
		slog.InfoContext(ctx, "Created transaction from recurring template",
			"recurring_id", rt.ID,
			"transaction_id", created.ID,
			"transaction_date", created.TransactionDate.String(),
			"amount", created.Amount.String(),
			"frequency", rt.Frequency)

		p.publish(ctx, created.ID)
	}

	slog.InfoContext(ctx, "Recurring transaction processing complete",
		"created", result.CreatedCount,
		"errors", result.ErrorCount,
		"total_checked", len(due))

	return result, nil
}

func (p *RecurringProcessor) materialize(ctx context.Context, rt core.RecurringTemplate) (core.Transaction, error) {
	next, err := core.NextOccurrence(rt.NextOccurrence, rt.Frequency, rt.Interval)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("compute next occurrence: %w", err)
	}
	created, err := p.store.MaterializeOccurrence(ctx, rt, rt.MaterializedTransaction(), next)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("materialize occurrence %s: %w", rt.NextOccurrence, err)
	}
	return created, nil
}

func (p *RecurringProcessor) publish(ctx context.Context, transactionID string) {
	if p.events == nil {
		return
	}
	if err := p.events.PublishTransactionCreated(ctx, transactionID); err != nil {
		slog.WarnContext(ctx, "Failed to publish transaction event",
			"transaction_id", transactionID,
			"error", err)
	}
}
