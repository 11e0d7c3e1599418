// Package memory is an in-process mirror used when no spreadsheet is
// configured and in tests.
package memory

import (
	"context"
	"errors"
	"fmt"
	"sync"

	ports "fintrack/internal/sheets"
)

var (
	_ ports.TransactionWriter = (*Store)(nil)
	_ ports.TransactionLister = (*Store)(nil)
)

type Store struct {
	mu   sync.Mutex
	rows []ports.Row
}

func New() *Store {
	return &Store{}
}

// Append stores the row and returns a synthetic row reference.
func (s *Store) Append(_ context.Context, r ports.Row) (string, error) {
	if r.TransactionID == "" {
		return "", errors.New("row has no transaction id")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rows = append(s.rows, r)
	return fmt.Sprintf("mem:%d", len(s.rows)), nil
}

// ListRows returns the rows dated in year/month, in insertion order.
func (s *Store) ListRows(_ context.Context, year int, month int) ([]ports.Row, error) {
	if month < 1 || month > 12 {
		return nil, fmt.Errorf("invalid month: %d", month)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []ports.Row
	for _, r := range s.rows {
		y, m, _ := r.Date.Date()
		if y == year && int(m) == month {
			out = append(out, r)
		}
	}
	return out, nil
}

// Len reports how many rows were appended.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.rows)
}
