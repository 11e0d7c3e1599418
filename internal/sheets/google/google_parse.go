package google

import (
	"fmt"
	"strings"

	"fintrack/internal/core"
	ports "fintrack/internal/sheets"
)

func rowValues(r ports.Row) []any {
	return []any{
		r.Date.String(),
		string(r.Type),
		r.Category,
		r.Description,
		r.Amount.String(),
		r.Currency,
		r.TransactionID,
	}
}

// parseRow is the inverse of rowValues. Amounts may come back formatted
// with a decimal comma depending on the spreadsheet locale.
func parseRow(cols []string) (ports.Row, bool) {
	if len(cols) < 7 {
		return ports.Row{}, false
	}
	date, err := core.ParseDate(cols[0])
	if err != nil {
		return ports.Row{}, false
	}
	typ := core.TransactionType(strings.ToLower(cols[1]))
	if !typ.Valid() {
		return ports.Row{}, false
	}
	cents, err := core.ParseDecimalToCents(cols[4])
	if err != nil || cols[6] == "" {
		return ports.Row{}, false
	}
	return ports.Row{
		Date:          date,
		Type:          typ,
		Category:      cols[2],
		Description:   cols[3],
		Amount:        core.Money{Cents: cents},
		Currency:      core.NormalizeCurrency(cols[5]),
		TransactionID: cols[6],
	}, true
}

func toStrings(in []interface{}) []string {
	out := make([]string, len(in))
	for i, v := range in {
		out[i] = strings.TrimSpace(fmt.Sprint(v))
	}
	return out
}
