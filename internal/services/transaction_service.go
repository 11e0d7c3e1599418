package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"fintrack/internal/core"
	"fintrack/internal/textutil"
)

const (
	DefaultPageSize = 50
	MaxPageSize     = 100
)

// TransactionStore is the transaction storage used by TransactionService.
type TransactionStore interface {
	CreateTransaction(ctx context.Context, t core.Transaction) (core.Transaction, error)
	CreateRecurringTransaction(ctx context.Context, t core.Transaction, rt core.RecurringTemplate) (core.Transaction, core.RecurringTemplate, error)
	GetTransaction(ctx context.Context, id string) (core.Transaction, error)
	ListTransactions(ctx context.Context, f core.TransactionFilter) ([]core.Transaction, int, error)
	UpdateTransaction(ctx context.Context, t core.Transaction) (core.Transaction, error)
	DeleteTransaction(ctx context.Context, id string) error
}

// TransactionPatch holds the optional fields of a transaction update.
type TransactionPatch struct {
	Amount           *core.Money            `json:"amount"`
	Currency         *string                `json:"currency"`
	CategoryID       *string                `json:"category_id"`
	Description      *string                `json:"description"`
	TransactionDate  *core.Date             `json:"transaction_date"`
	Type             *core.TransactionType  `json:"type"`
	IsRecurring      *bool                  `json:"is_recurring"`
	RecurringPattern *core.RecurringPattern `json:"recurring_pattern"`
}

// TransactionService orchestrates transaction writes across SQLite, the
// recurring template lifecycle and AMQP.
type TransactionService struct {
	store     TransactionStore
	recurring *RecurringService
	events    EventPublisher
}

// NewTransactionService wires the service. events may be nil when AMQP is disabled.
func NewTransactionService(store TransactionStore, recurring *RecurringService, events EventPublisher) *TransactionService {
	return &TransactionService{
		store:     store,
		recurring: recurring,
		events:    events,
	}
}

func normalizeTransaction(t *core.Transaction) {
	t.Currency = core.NormalizeCurrency(t.Currency)
	if t.Currency == "" {
		t.Currency = core.DefaultCurrency
	}
	t.CategoryID = strings.TrimSpace(t.CategoryID)
	t.Description = textutil.SanitizeText(t.Description)
}

// Create saves a transaction. A recurring transaction is stored together
// with its backing template in one unit of work.
func (s *TransactionService) Create(ctx context.Context, t core.Transaction) (core.Transaction, error) {
	normalizeTransaction(&t)
	t.ID = ""
	t.RecurringTemplateID = nil
	if err := t.Validate(); err != nil {
		return core.Transaction{}, err
	}

	var (
		created core.Transaction
		err     error
	)
	if t.IsRecurring && s.recurring != nil {
		created, err = s.createRecurring(ctx, t)
	} else {
		created, err = s.store.CreateTransaction(ctx, t)
	}
	if err != nil {
		return core.Transaction{}, fmt.Errorf("save transaction: %w", err)
	}

	s.publishCreated(ctx, created.ID)
	return created, nil
}

func (s *TransactionService) createRecurring(ctx context.Context, t core.Transaction) (core.Transaction, error) {
	rt, err := s.recurring.NewBackingTemplate(ctx, t)
	if err != nil {
		return core.Transaction{}, err
	}
	created, template, err := s.store.CreateRecurringTransaction(ctx, t, rt)
	if err != nil {
		return core.Transaction{}, err
	}
	slog.InfoContext(ctx, "Created recurring template from transaction",
		"transaction_id", created.ID,
		"recurring_id", template.ID,
		"next_occurrence", template.NextOccurrence.String())
	return created, nil
}

func (s *TransactionService) Get(ctx context.Context, id string) (core.Transaction, error) {
	return s.store.GetTransaction(ctx, id)
}

// List returns one page of transactions matching f.
func (s *TransactionService) List(ctx context.Context, f core.TransactionFilter) (core.TransactionPage, error) {
	if f.Page == 0 {
		f.Page = 1
	}
	if f.PageSize == 0 {
		f.PageSize = DefaultPageSize
	}
	if f.Page < 1 {
		return core.TransactionPage{}, core.Invalid("page", "must be at least 1")
	}
	if f.PageSize < 1 || f.PageSize > MaxPageSize {
		return core.TransactionPage{}, core.Invalid("page_size", "must be between 1 and %d", MaxPageSize)
	}
	if f.StartDate != nil && f.EndDate != nil && f.EndDate.Before(*f.StartDate) {
		return core.TransactionPage{}, core.Invalid("end_date", "must not be before start_date")
	}

	items, total, err := s.store.ListTransactions(ctx, f)
	if err != nil {
		return core.TransactionPage{}, fmt.Errorf("list transactions: %w", err)
	}
	if items == nil {
		items = []core.Transaction{}
	}
	return core.TransactionPage{
		Items:    items,
		Total:    total,
		Page:     f.Page,
		PageSize: f.PageSize,
		Pages:    (total + f.PageSize - 1) / f.PageSize,
	}, nil
}

// Update applies patch to transaction id and keeps its template in step:
// a recurring result is backed by a template, and switching recurrence off
// deactivates the template backing it.
func (s *TransactionService) Update(ctx context.Context, id string, patch TransactionPatch) (core.Transaction, error) {
	existing, err := s.store.GetTransaction(ctx, id)
	if err != nil {
		return core.Transaction{}, err
	}

	t := existing
	if patch.Amount != nil {
		t.Amount = *patch.Amount
	}
	if patch.Currency != nil {
		t.Currency = *patch.Currency
	}
	if patch.CategoryID != nil {
		t.CategoryID = *patch.CategoryID
	}
	if patch.Description != nil {
		t.Description = *patch.Description
	}
	if patch.TransactionDate != nil {
		t.TransactionDate = *patch.TransactionDate
	}
	if patch.Type != nil {
		t.Type = *patch.Type
	}
	if patch.IsRecurring != nil {
		t.IsRecurring = *patch.IsRecurring
	}
	if patch.RecurringPattern != nil {
		t.RecurringPattern = patch.RecurringPattern
	}

	normalizeTransaction(&t)
	if err := t.Validate(); err != nil {
		return core.Transaction{}, err
	}

	updated, err := s.store.UpdateTransaction(ctx, t)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("update transaction %s: %w", id, err)
	}

	if s.recurring == nil {
		return updated, nil
	}
	switch {
	case updated.IsRecurring:
		updated, err = s.recurring.EnsureForTransaction(ctx, updated)
		if err != nil {
			return core.Transaction{}, fmt.Errorf("sync recurring template: %w", err)
		}
	case existing.IsRecurring:
		if err := s.recurring.ReleaseForTransaction(ctx, updated.ID); err != nil {
			return core.Transaction{}, fmt.Errorf("deactivate recurring template: %w", err)
		}
	}
	return updated, nil
}

func (s *TransactionService) Delete(ctx context.Context, id string) error {
	if err := s.store.DeleteTransaction(ctx, id); err != nil {
		return err
	}
	slog.InfoContext(ctx, "Deleted transaction", "transaction_id", id)
	return nil
}

func (s *TransactionService) publishCreated(ctx context.Context, id string) {
	if s.events == nil {
		slog.DebugContext(ctx, "AMQP client not available, skipping transaction event")
		return
	}
	if err := s.events.PublishTransactionCreated(ctx, id); err != nil {
		slog.ErrorContext(ctx, "Failed to publish transaction event",
			"transaction_id", id, "error", err)
		// Don't fail the request - the transaction is saved locally
	}
}
