package services

import (
	"context"
	"encoding/base64"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/ncruces/go-strftime"
	"github.com/shopspring/decimal"

	"fintrack/internal/core"
	"fintrack/internal/textutil"
)

const (
	DefaultDateFormat          = "%Y-%m-%d"
	DefaultBackgroundThreshold = 1000

	maxDescriptionLength  = 500
	maxCategoryNameLength = 100
)

// ExportColumns are the columns an export may contain, in default order.
var ExportColumns = []string{"amount", "currency", "category_name", "description", "transaction_date", "type"}

// CSVMapping maps transaction fields to CSV header names.
type CSVMapping struct {
	Amount          string `json:"amount"`
	TransactionDate string `json:"transaction_date"`
	Type            string `json:"type"`
	CategoryName    string `json:"category_name"`
	Currency        string `json:"currency,omitempty"`
	Description     string `json:"description,omitempty"`
}

func (m CSVMapping) Validate() error {
	required := map[string]string{
		"mapping.amount":           m.Amount,
		"mapping.transaction_date": m.TransactionDate,
		"mapping.type":             m.Type,
		"mapping.category_name":    m.CategoryName,
	}
	for field, v := range required {
		if strings.TrimSpace(v) == "" {
			return core.Invalid(field, "is required")
		}
	}
	return nil
}

type CSVImportRequest struct {
	FileContent string     `json:"file_content"`
	Mapping     CSVMapping `json:"mapping"`
	DateFormat  string     `json:"date_format"`
}

type CSVRowError struct {
	Row   int    `json:"row"`
	Error string `json:"error"`
}

type CSVImportResult struct {
	TaskID       string        `json:"task_id"`
	Status       string        `json:"status"`
	CreatedCount int           `json:"created_count"`
	ErrorCount   int           `json:"error_count"`
	Errors       []CSVRowError `json:"errors"`
}

// csvImportPayload is the task payload of a background import.
type csvImportPayload struct {
	Content    string     `json:"content"`
	Mapping    CSVMapping `json:"mapping"`
	DateFormat string     `json:"date_format"`
}

type ExportOptions struct {
	StartDate  *core.Date
	EndDate    *core.Date
	CategoryID string
	Columns    []string
	DateFormat string
}

// CSVService imports and exports transactions as CSV.
type CSVService struct {
	transactions *TransactionService
	categories   *CategoryService
	tasks        *TaskService
	threshold    int
}

func NewCSVService(transactions *TransactionService, categories *CategoryService, tasks *TaskService, threshold int) *CSVService {
	if threshold <= 0 {
		threshold = DefaultBackgroundThreshold
	}
	return &CSVService{
		transactions: transactions,
		categories:   categories,
		tasks:        tasks,
		threshold:    threshold,
	}
}

// Import decodes and imports a CSV file. Files with more lines than the
// background threshold are handed to the task workers and reported pending.
func (s *CSVService) Import(ctx context.Context, req CSVImportRequest) (CSVImportResult, error) {
	if err := req.Mapping.Validate(); err != nil {
		return CSVImportResult{}, err
	}
	if req.DateFormat == "" {
		req.DateFormat = DefaultDateFormat
	}
	if _, err := strftime.Layout(req.DateFormat); err != nil {
		return CSVImportResult{}, core.Invalid("date_format", "unsupported format %q", req.DateFormat)
	}

	raw, err := base64.StdEncoding.DecodeString(strings.TrimSpace(req.FileContent))
	if err != nil || !utf8.Valid(raw) {
		return CSVImportResult{
			Status:     string(core.TaskFailed),
			ErrorCount: 1,
			Errors:     []CSVRowError{{Row: 0, Error: "invalid base64 content or file encoding"}},
		}, nil
	}
	content := string(raw)

	if lineCount(content) > s.threshold {
		if s.tasks == nil {
			return CSVImportResult{}, errors.New("background import not available")
		}
		task, err := s.tasks.Enqueue(ctx, core.TaskTypeCSVImport, csvImportPayload{
			Content:    content,
			Mapping:    req.Mapping,
			DateFormat: req.DateFormat,
		})
		if err != nil {
			return CSVImportResult{}, err
		}
		return CSVImportResult{TaskID: task.TaskID, Status: string(core.TaskPending), Errors: []CSVRowError{}}, nil
	}

	result, err := s.importContent(ctx, content, req.Mapping, req.DateFormat)
	if err != nil {
		return CSVImportResult{}, err
	}
	result.TaskID = "sync"
	return result, nil
}

// HandleImportTask runs a background import. It is registered with the task
// processor for core.TaskTypeCSVImport.
func (s *CSVService) HandleImportTask(ctx context.Context, payload json.RawMessage) (json.RawMessage, error) {
	var p csvImportPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return nil, fmt.Errorf("%w: decode csv import payload: %v", core.ErrValidation, err)
	}
	result, err := s.importContent(ctx, p.Content, p.Mapping, p.DateFormat)
	if err != nil {
		return nil, err
	}
	return json.Marshal(result)
}

func lineCount(content string) int {
	n := strings.Count(content, "\n")
	if strings.TrimSpace(content) != "" {
		n++
	}
	return n
}

func (s *CSVService) importContent(ctx context.Context, content string, mapping CSVMapping, dateFormat string) (CSVImportResult, error) {
	layout, err := strftime.Layout(dateFormat)
	if err != nil {
		return CSVImportResult{}, core.Invalid("date_format", "unsupported format %q", dateFormat)
	}

	reader := csv.NewReader(strings.NewReader(strings.TrimPrefix(content, "\ufeff")))
	reader.FieldsPerRecord = -1 // Allow ragged rows; missing cells read as empty
	reader.LazyQuotes = true

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return CSVImportResult{Status: string(core.TaskCompleted), Errors: []CSVRowError{}}, nil
	}
	if err != nil {
		return CSVImportResult{}, core.Invalid("file_content", "unreadable CSV header: %v", err)
	}
	columns := make(map[string]int, len(header))
	for i, h := range header {
		columns[strings.TrimSpace(h)] = i
	}

	result := CSVImportResult{Status: string(core.TaskCompleted), Errors: []CSVRowError{}}
	fail := func(row int, format string, args ...any) {
		result.Errors = append(result.Errors, CSVRowError{Row: row, Error: fmt.Sprintf(format, args...)})
	}

	for row := 2; ; row++ {
		if err := ctx.Err(); err != nil {
			return CSVImportResult{}, err
		}
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			fail(row, "malformed CSV row: %v", err)
			continue
		}
		cell := func(name string) string {
			if name == "" {
				return ""
			}
			i, ok := columns[name]
			if !ok || i >= len(record) {
				return ""
			}
			return strings.TrimSpace(record[i])
		}

		txn, err := s.parseRow(ctx, cell, mapping, layout)
		if err != nil {
			fail(row, "%v", err)
			continue
		}
		if _, err := s.transactions.Create(ctx, txn); err != nil {
			fail(row, "%v", err)
			continue
		}
		result.CreatedCount++
	}

	result.ErrorCount = len(result.Errors)
	slog.InfoContext(ctx, "CSV import finished",
		"created", result.CreatedCount,
		"errors", result.ErrorCount)
	return result, nil
}

func (s *CSVService) parseRow(ctx context.Context, cell func(string) string, m CSVMapping, layout string) (core.Transaction, error) {
	amountRaw, dateRaw := cell(m.Amount), cell(m.TransactionDate)
	if amountRaw == "" || dateRaw == "" {
		return core.Transaction{}, errors.New("missing required field: amount or date")
	}

	amount, err := decimal.NewFromString(strings.ReplaceAll(amountRaw, ",", "."))
	if err != nil {
		return core.Transaction{}, fmt.Errorf("invalid amount %q", amountRaw)
	}
	money := core.MoneyFromDecimal(amount)
	if money.Cents <= 0 {
		return core.Transaction{}, errors.New("amount must be positive")
	}

	parsed, err := time.Parse(layout, dateRaw)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("invalid date %q", dateRaw)
	}

	typ := core.TransactionType(strings.ToLower(cell(m.Type)))
	if !typ.Valid() {
		return core.Transaction{}, fmt.Errorf("invalid transaction type %q", string(typ))
	}

	currency := core.NormalizeCurrency(cell(m.Currency))
	if currency == "" {
		currency = core.DefaultCurrency
	}
	if !core.IsImportCurrency(currency) {
		return core.Transaction{}, fmt.Errorf("unknown currency code %q", currency)
	}

	name := textutil.Truncate(cell(m.CategoryName), maxCategoryNameLength)
	category, err := s.categories.Resolve(ctx, name, typ)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("resolve category: %w", err)
	}

	return core.Transaction{
		Amount:          money,
		Currency:        currency,
		CategoryID:      category.ID,
		Description:     textutil.Truncate(cell(m.Description), maxDescriptionLength),
		TransactionDate: core.DateOf(parsed),
		Type:            typ,
	}, nil
}

// ParseColumns splits a comma-separated column list, defaulting to every
// export column.
func ParseColumns(raw string) ([]string, error) {
	if strings.TrimSpace(raw) == "" {
		return ExportColumns, nil
	}
	var cols []string
	for _, c := range strings.Split(raw, ",") {
		c = strings.TrimSpace(c)
		if c == "" {
			continue
		}
		if !isExportColumn(c) {
			return nil, core.Invalid("columns", "unknown column %q", c)
		}
		cols = append(cols, c)
	}
	if len(cols) == 0 {
		return ExportColumns, nil
	}
	return cols, nil
}

func isExportColumn(c string) bool {
	for _, known := range ExportColumns {
		if c == known {
			return true
		}
	}
	return false
}

// Export writes the matching transactions to w as CSV, newest first.
func (s *CSVService) Export(ctx context.Context, opts ExportOptions, w io.Writer) error {
	if len(opts.Columns) == 0 {
		opts.Columns = ExportColumns
	}
	for _, c := range opts.Columns {
		if !isExportColumn(c) {
			return core.Invalid("columns", "unknown column %q", c)
		}
	}
	if opts.DateFormat == "" {
		opts.DateFormat = DefaultDateFormat
	}

	items, _, err := s.transactions.store.ListTransactions(ctx, core.TransactionFilter{
		StartDate:  opts.StartDate,
		EndDate:    opts.EndDate,
		CategoryID: opts.CategoryID,
	})
	if err != nil {
		return fmt.Errorf("list transactions: %w", err)
	}

	cw := csv.NewWriter(w)
	if err := cw.Write(opts.Columns); err != nil {
		return err
	}
	record := make([]string, len(opts.Columns))
	for _, t := range items {
		for i, c := range opts.Columns {
			record[i] = exportCell(t, c, opts.DateFormat)
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("write csv: %w", err)
	}

	slog.InfoContext(ctx, "CSV export finished", "rows", len(items), "columns", len(opts.Columns))
	return nil
}

func exportCell(t core.Transaction, column, dateFormat string) string {
	switch column {
	case "amount":
		return t.Amount.String()
	case "currency":
		return t.Currency
	case "category_name":
		return textutil.SanitizeForFormulaInjection(t.CategoryName)
	case "description":
		return textutil.SanitizeForFormulaInjection(t.Description)
	case "transaction_date":
		return strftime.Format(dateFormat, t.TransactionDate.Time)
	case "type":
		return string(t.Type)
	}
	return ""
}
