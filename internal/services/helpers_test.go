package services

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"fintrack/internal/core"
	"fintrack/internal/storage"
)

func newRepo(t *testing.T) *storage.SQLiteRepository {
	t.Helper()
	repo, err := storage.NewSQLiteRepository(filepath.Join(t.TempDir(), "services.db"))
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })
	return repo
}

func fixedClock(year, month, day int) Clock {
	return func() time.Time {
		return time.Date(year, time.Month(month), day, 12, 0, 0, 0, time.UTC)
	}
}

func mustCategory(t *testing.T, repo *storage.SQLiteRepository, name string, typ core.TransactionType) core.Category {
	t.Helper()
	c, err := repo.CreateCategory(context.Background(), core.Category{Name: name, Icon: "🏠", Color: "#123456", Type: typ})
	require.NoError(t, err)
	return c
}

func rentTemplate(categoryID string, start core.Date) core.RecurringTemplate {
	return core.RecurringTemplate{
		Name:       "Rent",
		Amount:     core.Money{Cents: 95000},
		Currency:   "USD",
		CategoryID: categoryID,
		Type:       core.Expense,
		Frequency:  core.Monthly,
		Interval:   1,
		StartDate:  start,
	}
}

type recordingPublisher struct {
	mu      sync.Mutex
	err     error
	created []string
	tasks   []string
}

func (p *recordingPublisher) PublishTransactionCreated(_ context.Context, id string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.created = append(p.created, id)
	return p.err
}

func (p *recordingPublisher) PublishTaskEnqueued(_ context.Context, taskID, _ string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.tasks = append(p.tasks, taskID)
	return p.err
}
