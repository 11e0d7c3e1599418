package memory

import (
	"context"
	"testing"

	"fintrack/internal/core"
	ports "fintrack/internal/sheets"
)

func TestMemoryStoreAppendAndList(t *testing.T) {
	s := New()
	ctx := context.Background()

	rows := []ports.Row{
		{Date: core.NewDate(2026, 3, 1), Amount: core.Money{Cents: 123}, TransactionID: "a"},
		{Date: core.NewDate(2026, 3, 9), Amount: core.Money{Cents: 456}, TransactionID: "b"},
		{Date: core.NewDate(2026, 4, 1), Amount: core.Money{Cents: 789}, TransactionID: "c"},
	}
	for i, r := range rows {
		ref, err := s.Append(ctx, r)
		if err != nil {
			t.Fatalf("Append(%s) error = %v", r.TransactionID, err)
		}
		if want := "mem:" + string(rune('1'+i)); ref != want {
			t.Errorf("Append(%s) ref = %q, want %q", r.TransactionID, ref, want)
		}
	}

	march, err := s.ListRows(ctx, 2026, 3)
	if err != nil {
		t.Fatalf("ListRows() error = %v", err)
	}
	if len(march) != 2 || march[0].TransactionID != "a" || march[1].TransactionID != "b" {
		t.Fatalf("unexpected march rows: %+v", march)
	}
	if s.Len() != 3 {
		t.Errorf("Len() = %d, want 3", s.Len())
	}
}

func TestMemoryStoreRejects(t *testing.T) {
	s := New()
	if _, err := s.Append(context.Background(), ports.Row{}); err == nil {
		t.Error("expected error for row without id")
	}
	if _, err := s.ListRows(context.Background(), 2026, 13); err == nil {
		t.Error("expected error for invalid month")
	}
}
