package sheets

import (
	"context"

	"fintrack/internal/core"
)

// Row is one transaction as laid out in the mirror spreadsheet:
// Date | Type | Category | Description | Amount | Currency | ID.
type Row struct {
	Date          core.Date
	Type          core.TransactionType
	Category      string
	Description   string
	Amount        core.Money
	Currency      string
	TransactionID string
}

func RowFromTransaction(t core.Transaction) Row {
	return Row{
		Date:          t.TransactionDate,
		Type:          t.Type,
		Category:      t.CategoryName,
		Description:   t.Description,
		Amount:        t.Amount,
		Currency:      t.Currency,
		TransactionID: t.ID,
	}
}

// Ports for outbound adapters.
type (
	TransactionWriter interface {
		Append(ctx context.Context, r Row) (rowRef string, err error)
	}

	// TransactionLister reads back the rows mirrored for a given month.
	TransactionLister interface {
		ListRows(ctx context.Context, year int, month int) ([]Row, error)
	}
)
