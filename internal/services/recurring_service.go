package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"fintrack/internal/core"
	"fintrack/internal/textutil"
)

// RecurringStore is the template storage used by the lifecycle manager.
type RecurringStore interface {
	GetCategory(ctx context.Context, id string) (core.Category, error)
	CreateRecurringTemplate(ctx context.Context, rt core.RecurringTemplate) (core.RecurringTemplate, error)
	CreateTemplateForTransaction(ctx context.Context, rt core.RecurringTemplate, txnID string) (core.RecurringTemplate, error)
	GetTemplateForTransaction(ctx context.Context, txnID string) (core.RecurringTemplate, error)
	GetRecurringTemplate(ctx context.Context, id string) (core.RecurringTemplate, error)
	ListRecurringTemplates(ctx context.Context, skip, limit int) ([]core.RecurringTemplate, error)
	UpdateRecurringTemplate(ctx context.Context, rt core.RecurringTemplate) (core.RecurringTemplate, error)
	DeleteRecurringTemplate(ctx context.Context, id string) error
}

// RecurringPatch holds the optional fields of a template update. Nil fields
// are left unchanged.
type RecurringPatch struct {
	Name        *string               `json:"name"`
	Amount      *core.Money           `json:"amount"`
	Currency    *string               `json:"currency"`
	CategoryID  *string               `json:"category_id"`
	Description *string               `json:"description"`
	Type        *core.TransactionType `json:"type"`
	Frequency   *core.Frequency       `json:"frequency"`
	Interval    *int                  `json:"interval"`
	StartDate   *core.Date            `json:"start_date"`
	EndDate     *core.Date            `json:"end_date"`
	IsActive    *bool                 `json:"is_active"`
}

func (p RecurringPatch) reschedules() bool {
	return p.Frequency != nil || p.Interval != nil || p.StartDate != nil
}

// RecurringService manages the lifecycle of recurring templates.
type RecurringService struct {
	store RecurringStore
	now   Clock
}

func NewRecurringService(store RecurringStore) *RecurringService {
	return &RecurringService{store: store}
}

// WithClock replaces the time source used to place rescheduled cursors.
func (s *RecurringService) WithClock(c Clock) *RecurringService {
	s.now = c
	return s
}

func normalizeTemplate(rt *core.RecurringTemplate) {
	rt.Name = textutil.SanitizeText(rt.Name)
	rt.Currency = core.NormalizeCurrency(rt.Currency)
	if rt.Currency == "" {
		rt.Currency = core.DefaultCurrency
	}
	if rt.Description != nil {
		d := textutil.SanitizeText(*rt.Description)
		rt.Description = &d
	}
}

// Create validates rt and stores it with its cursor on the start date.
func (s *RecurringService) Create(ctx context.Context, rt core.RecurringTemplate) (core.RecurringTemplate, error) {
	normalizeTemplate(&rt)
	rt.ID = ""
	rt.NextOccurrence = rt.StartDate
	rt.IsActive = true
	if err := rt.Validate(); err != nil {
		return core.RecurringTemplate{}, err
	}

	created, err := s.store.CreateRecurringTemplate(ctx, rt)
	if err != nil {
		return core.RecurringTemplate{}, fmt.Errorf("create recurring transaction: %w", err)
	}

	slog.InfoContext(ctx, "Created recurring transaction",
		"recurring_id", created.ID,
		"frequency", created.Frequency,
		"interval", created.Interval,
		"next_occurrence", created.NextOccurrence.String())
	return created, nil
}

func (s *RecurringService) Get(ctx context.Context, id string) (core.RecurringTemplate, error) {
	return s.store.GetRecurringTemplate(ctx, id)
}

// List pages through templates ordered by creation time.
func (s *RecurringService) List(ctx context.Context, skip, limit int) ([]core.RecurringTemplate, error) {
	if skip < 0 {
		return nil, core.Invalid("skip", "must not be negative")
	}
	if limit < 1 || limit > 1000 {
		return nil, core.Invalid("limit", "must be between 1 and 1000")
	}
	return s.store.ListRecurringTemplates(ctx, skip, limit)
}

// Update applies patch to template id. Changing frequency, interval or start
// date moves the cursor to the first occurrence of the new schedule that is
// strictly after today.
func (s *RecurringService) Update(ctx context.Context, id string, patch RecurringPatch) (core.RecurringTemplate, error) {
	return s.update(ctx, id, patch, s.now.today(), patch.reschedules())
}

// update applies patch and, when reschedule is set, places the cursor on the
// first occurrence strictly after reference.
func (s *RecurringService) update(ctx context.Context, id string, patch RecurringPatch, reference core.Date, reschedule bool) (core.RecurringTemplate, error) {
	rt, err := s.store.GetRecurringTemplate(ctx, id)
	if err != nil {
		return core.RecurringTemplate{}, err
	}

	if patch.Name != nil {
		rt.Name = *patch.Name
	}
	if patch.Amount != nil {
		rt.Amount = *patch.Amount
	}
	if patch.Currency != nil {
		rt.Currency = *patch.Currency
	}
	if patch.CategoryID != nil {
		rt.CategoryID = strings.TrimSpace(*patch.CategoryID)
	}
	if patch.Description != nil {
		rt.Description = patch.Description
	}
	if patch.Type != nil {
		rt.Type = *patch.Type
	}
	if patch.Frequency != nil {
		rt.Frequency = *patch.Frequency
	}
	if patch.Interval != nil {
		rt.Interval = *patch.Interval
	}
	if patch.StartDate != nil {
		rt.StartDate = *patch.StartDate
	}
	if patch.EndDate != nil {
		rt.EndDate = patch.EndDate
	}
	if patch.IsActive != nil {
		rt.IsActive = *patch.IsActive
	}

	normalizeTemplate(&rt)
	if err := rt.Validate(); err != nil {
		return core.RecurringTemplate{}, err
	}

	if reschedule {
		next, err := core.OccurrenceAfter(rt.StartDate, rt.Frequency, rt.Interval, reference)
		if err != nil {
			return core.RecurringTemplate{}, err
		}
		rt.NextOccurrence = next
	}

	updated, err := s.store.UpdateRecurringTemplate(ctx, rt)
	if err != nil {
		return core.RecurringTemplate{}, fmt.Errorf("update recurring transaction %s: %w", id, err)
	}

	slog.InfoContext(ctx, "Updated recurring transaction",
		"recurring_id", id,
		"rescheduled", reschedule,
		"next_occurrence", updated.NextOccurrence.String(),
		"is_active", updated.IsActive)
	return updated, nil
}

// Delete removes the template. Transactions it produced are kept and lose
// their reference.
func (s *RecurringService) Delete(ctx context.Context, id string) error {
	if err := s.store.DeleteRecurringTemplate(ctx, id); err != nil {
		return err
	}
	slog.InfoContext(ctx, "Deleted recurring transaction", "recurring_id", id)
	return nil
}

// EnsureForTransaction makes sure a transaction marked recurring is backed by
// exactly one template and returns the transaction linked to it.
//
// Only a template created from this transaction is reused. It is reactivated
// or rescheduled when needed. Any other link, such as the template that
// produced the transaction, is left untouched and replaced by a new backing
// template.
func (s *RecurringService) EnsureForTransaction(ctx context.Context, txn core.Transaction) (core.Transaction, error) {
	if !txn.IsRecurring || txn.RecurringPattern == nil {
		return txn, nil
	}

	backing, err := s.store.GetTemplateForTransaction(ctx, txn.ID)
	switch {
	case err == nil:
		if err := s.syncBackingTemplate(ctx, backing, txn); err != nil {
			return core.Transaction{}, err
		}
		txn.RecurringTemplateID = &backing.ID
		return txn, nil
	case !errors.Is(err, core.ErrNotFound):
		return core.Transaction{}, err
	}

	rt, err := s.NewBackingTemplate(ctx, txn)
	if err != nil {
		return core.Transaction{}, err
	}
	created, err := s.store.CreateTemplateForTransaction(ctx, rt, txn.ID)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("create template for transaction %s: %w", txn.ID, err)
	}

	slog.InfoContext(ctx, "Created recurring template from transaction",
		"transaction_id", txn.ID,
		"recurring_id", created.ID,
		"replaced_link", txn.RecurringTemplateID != nil,
		"next_occurrence", created.NextOccurrence.String())

	txn.RecurringTemplateID = &created.ID
	return txn, nil
}

// NewBackingTemplate builds, without storing it, the template for a
// transaction marked recurring. Its cursor is the first occurrence strictly
// after both today and the transaction date, so no past date is generated.
func (s *RecurringService) NewBackingTemplate(ctx context.Context, txn core.Transaction) (core.RecurringTemplate, error) {
	if txn.RecurringPattern == nil {
		return core.RecurringTemplate{}, core.Invalid("recurring_pattern", "is required for recurring transactions")
	}
	pattern := *txn.RecurringPattern
	if err := pattern.Validate(); err != nil {
		return core.RecurringTemplate{}, err
	}

	next, err := core.OccurrenceAfter(txn.TransactionDate, pattern.Frequency, pattern.Interval, s.reference(txn))
	if err != nil {
		return core.RecurringTemplate{}, err
	}
	if strings.TrimSpace(txn.Description) == "" && txn.CategoryName == "" {
		if cat, err := s.store.GetCategory(ctx, txn.CategoryID); err == nil {
			txn.CategoryName = cat.Name
		}
	}

	rt := core.RecurringTemplate{
		Name:           templateName(txn),
		Amount:         txn.Amount,
		Currency:       txn.Currency,
		CategoryID:     txn.CategoryID,
		Type:           txn.Type,
		Frequency:      pattern.Frequency,
		Interval:       pattern.Interval,
		StartDate:      txn.TransactionDate,
		NextOccurrence: next,
		IsActive:       true,
	}
	if err := rt.Validate(); err != nil {
		return core.RecurringTemplate{}, err
	}
	return rt, nil
}

// reference is the later of today and the transaction date.
func (s *RecurringService) reference(txn core.Transaction) core.Date {
	ref := s.now.today()
	if txn.TransactionDate.After(ref) {
		ref = txn.TransactionDate
	}
	return ref
}

// syncBackingTemplate brings a backing template in line with its transaction.
// A pattern change or a reactivation moves the cursor forward past today, so
// the periods spent inactive are not generated afterwards.
func (s *RecurringService) syncBackingTemplate(ctx context.Context, rt core.RecurringTemplate, txn core.Transaction) error {
	pattern := *txn.RecurringPattern
	if err := pattern.Validate(); err != nil {
		return err
	}

	var patch RecurringPatch
	if rt.Frequency != pattern.Frequency || rt.Interval != pattern.Interval {
		patch.Frequency = &pattern.Frequency
		patch.Interval = &pattern.Interval
	}
	if !rt.IsActive {
		active := true
		patch.IsActive = &active
	}
	if patch == (RecurringPatch{}) {
		return nil
	}
	_, err := s.update(ctx, rt.ID, patch, s.reference(txn), true)
	return err
}

// Deactivate stops a template from firing without deleting it. A missing
// template is not an error.
func (s *RecurringService) Deactivate(ctx context.Context, id string) error {
	inactive := false
	_, err := s.Update(ctx, id, RecurringPatch{IsActive: &inactive})
	if errors.Is(err, core.ErrNotFound) {
		return nil
	}
	return err
}

// ReleaseForTransaction deactivates the template backing txnID, if any. The
// template and the transaction's link to it are kept.
func (s *RecurringService) ReleaseForTransaction(ctx context.Context, txnID string) error {
	backing, err := s.store.GetTemplateForTransaction(ctx, txnID)
	if errors.Is(err, core.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if !backing.IsActive {
		return nil
	}
	return s.Deactivate(ctx, backing.ID)
}

func templateName(txn core.Transaction) string {
	name := textutil.Truncate(strings.TrimSpace(txn.Description), 200)
	if name != "" {
		return name
	}
	if txn.CategoryName != "" {
		return txn.CategoryName
	}
	return "Recurring " + string(txn.Type)
}
