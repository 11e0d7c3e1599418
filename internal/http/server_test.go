package http

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fintrack/internal/core"
	applog "fintrack/internal/log"
	"fintrack/internal/services"
	"fintrack/internal/storage"
)

var testNow = time.Date(2026, time.March, 15, 9, 30, 0, 0, time.UTC)

func testClock() time.Time { return testNow }

type testAPI struct {
	srv  *httptest.Server
	repo *storage.SQLiteRepository
}

func newTestAPI(t *testing.T, mutate func(*Options)) *testAPI {
	t.Helper()
	repo, err := storage.NewSQLiteRepository(filepath.Join(t.TempDir(), "api.db"))
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })

	rates := services.NewRateService(repo, nil, time.Hour).WithClock(testClock)
	recurring := services.NewRecurringService(repo).WithClock(testClock)
	transactions := services.NewTransactionService(repo, recurring, nil)
	categories := services.NewCategoryService(repo, nil)
	tasks := services.NewTaskService(repo, nil)

	svc := Services{
		Categories:   categories,
		Transactions: transactions,
		Recurring:    recurring,
		Processor:    services.NewRecurringProcessor(repo, nil),
		Budgets:      services.NewBudgetService(repo, rates),
		Rates:        rates,
		Settings:     services.NewSettingsService(repo),
		Tasks:        tasks,
		CSV:          services.NewCSVService(transactions, categories, tasks, 1000),
		Analytics:    services.NewAnalyticsService(repo, rates, "USD"),
	}
	opts := Options{
		APIPrefix:    "/api/v1",
		CORSOrigins:  []string{"*"},
		RateLimitRPM: 6000,
		RateBase:     "USD",
		Logger:       applog.New(applog.Config{Level: slog.LevelError, Output: io.Discard}),
		Ready:        repo.Ping,
		Now:          testClock,
	}
	if mutate != nil {
		mutate(&opts)
	}

	s, err := NewServer(opts, svc)
	require.NoError(t, err)
	srv := httptest.NewServer(s.Handler)
	t.Cleanup(func() {
		srv.Close()
		_ = s.Shutdown(context.Background())
	})
	return &testAPI{srv: srv, repo: repo}
}

func (a *testAPI) do(t *testing.T, method, path string, body any) (*http.Response, []byte) {
	t.Helper()
	var rd io.Reader
	if body != nil {
		switch b := body.(type) {
		case string:
			rd = strings.NewReader(b)
		default:
			raw, err := json.Marshal(b)
			require.NoError(t, err)
			rd = bytes.NewReader(raw)
		}
	}
	req, err := http.NewRequest(method, a.srv.URL+path, rd)
	require.NoError(t, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := a.srv.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, data
}

func decode[T any](t *testing.T, data []byte) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(data, &v), string(data))
	return v
}

func (a *testAPI) createCategory(t *testing.T, name string, typ core.TransactionType) core.Category {
	t.Helper()
	resp, data := a.do(t, http.MethodPost, "/api/v1/categories/", map[string]string{
		"name": name, "icon": "🛒", "color": "#00AA11", "type": string(typ),
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(data))
	return decode[core.Category](t, data)
}

func TestProbes(t *testing.T) {
	api := newTestAPI(t, nil)

	resp, data := api.do(t, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok", string(data))

	resp, data = api.do(t, http.MethodGet, "/readyz", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ready", string(data))
	assert.NotEmpty(t, resp.Header.Get("X-Request-ID"))
}

func TestReadyFailure(t *testing.T) {
	api := newTestAPI(t, func(o *Options) {
		o.Ready = func(context.Context) error { return errors.New("database is locked") }
	})
	resp, data := api.do(t, http.MethodGet, "/readyz", nil)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	assert.JSONEq(t, `{"detail":"not ready"}`, string(data))
}

func TestUnknownRoute(t *testing.T) {
	api := newTestAPI(t, nil)
	resp, data := api.do(t, http.MethodGet, "/api/v1/nope", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.JSONEq(t, `{"detail":"not found"}`, string(data))
}

func TestCategoryEndpoints(t *testing.T) {
	api := newTestAPI(t, nil)
	cat := api.createCategory(t, "Groceries", core.Expense)
	assert.NotEmpty(t, cat.ID)

	resp, data := api.do(t, http.MethodGet, "/api/v1/categories/"+cat.ID, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "Groceries", decode[core.Category](t, data).Name)

	resp, data = api.do(t, http.MethodPut, "/api/v1/categories/"+cat.ID, map[string]string{"name": "Food"})
	require.Equal(t, http.StatusOK, resp.StatusCode, string(data))
	assert.Equal(t, "Food", decode[core.Category](t, data).Name)

	resp, data = api.do(t, http.MethodGet, "/api/v1/categories/?type=expense", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	for _, c := range decode[[]core.Category](t, data) {
		assert.Equal(t, core.Expense, c.Type)
	}

	resp, _ = api.do(t, http.MethodGet, "/api/v1/categories/?type=transfer", nil)
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)

	resp, _ = api.do(t, http.MethodPost, "/api/v1/categories/", map[string]string{"name": "", "icon": "x", "color": "#000000", "type": "expense"})
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)

	resp, _ = api.do(t, http.MethodDelete, "/api/v1/categories/"+cat.ID, nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp, _ = api.do(t, http.MethodGet, "/api/v1/categories/"+cat.ID, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestTransactionEndpoints(t *testing.T) {
	api := newTestAPI(t, nil)
	cat := api.createCategory(t, "Groceries", core.Expense)

	resp, data := api.do(t, http.MethodPost, "/api/v1/transactions/", map[string]any{
		"amount":           "42.10",
		"currency":         "usd",
		"category_id":      cat.ID,
		"description":      "Weekly shop",
		"transaction_date": "2026-03-10",
		"type":             "expense",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(data))
	txn := decode[core.Transaction](t, data)
	assert.Equal(t, int64(4210), txn.Amount.Cents)
	assert.Equal(t, "USD", txn.Currency)

	resp, data = api.do(t, http.MethodGet, "/api/v1/transactions/?start_date=2026-03-01&end_date=2026-03-31&page_size=10", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(data))
	page := decode[core.TransactionPage](t, data)
	assert.Equal(t, 1, page.Total)
	assert.Equal(t, 10, page.PageSize)
	require.Len(t, page.Items, 1)
	assert.Equal(t, txn.ID, page.Items[0].ID)

	resp, data = api.do(t, http.MethodPut, "/api/v1/transactions/"+txn.ID, map[string]any{"amount": 50})
	require.Equal(t, http.StatusOK, resp.StatusCode, string(data))
	assert.Equal(t, int64(5000), decode[core.Transaction](t, data).Amount.Cents)

	tests := []struct {
		name   string
		path   string
		status int
	}{
		{"bad page size", "/api/v1/transactions/?page_size=500", http.StatusUnprocessableEntity},
		{"bad date", "/api/v1/transactions/?start_date=03/01/2026", http.StatusUnprocessableEntity},
		{"bad type", "/api/v1/transactions/?transaction_type=gift", http.StatusUnprocessableEntity},
		{"bad min amount", "/api/v1/transactions/?min_amount=abc", http.StatusUnprocessableEntity},
		{"missing", "/api/v1/transactions/does-not-exist", http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, data := api.do(t, http.MethodGet, tt.path, nil)
			assert.Equal(t, tt.status, resp.StatusCode, string(data))
			assert.Contains(t, string(data), `"detail"`)
		})
	}

	resp, _ = api.do(t, http.MethodDelete, "/api/v1/transactions/"+txn.ID, nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
}

func TestTransactionMalformedBody(t *testing.T) {
	api := newTestAPI(t, nil)

	resp, data := api.do(t, http.MethodPost, "/api/v1/transactions/", "{not json")
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode, string(data))

	big := `{"description":"` + strings.Repeat("x", maxJSONBodyBytes) + `"}`
	resp, _ = api.do(t, http.MethodPost, "/api/v1/transactions/", big)
	assert.Equal(t, http.StatusRequestEntityTooLarge, resp.StatusCode)
}

type runResult struct {
	Status       string `json:"status"`
	Date         string `json:"date"`
	CreatedCount int    `json:"created_count"`
	ErrorCount   int    `json:"error_count"`
}

func TestRecurringFlowThroughAdmin(t *testing.T) {
	api := newTestAPI(t, nil)
	cat := api.createCategory(t, "Housing", core.Expense)

	resp, data := api.do(t, http.MethodPost, "/api/v1/recurring-transactions/", map[string]any{
		"name":        "Rent",
		"amount":      "950.00",
		"currency":    "USD",
		"category_id": cat.ID,
		"type":        "expense",
		"frequency":   "monthly",
		"interval":    1,
		"start_date":  "2026-01-31",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(data))
	rt := decode[core.RecurringTemplate](t, data)
	assert.Equal(t, "2026-01-31", rt.NextOccurrence.String())

	resp, data = api.do(t, http.MethodPost, "/api/v1/admin/tasks/run-recurring?target_date=2026-03-15", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(data))
	run := decode[runResult](t, data)
	assert.Equal(t, "completed", run.Status)
	assert.Equal(t, "2026-03-15", run.Date)
	assert.Equal(t, 1, run.CreatedCount)
	assert.Equal(t, 0, run.ErrorCount)

	resp, data = api.do(t, http.MethodGet, "/api/v1/recurring-transactions/"+rt.ID, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "2026-02-28", decode[core.RecurringTemplate](t, data).NextOccurrence.String())

	resp, data = api.do(t, http.MethodGet, "/api/v1/recurring-transactions/?skip=0&limit=10", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, decode[[]core.RecurringTemplate](t, data), 1)

	resp, _ = api.do(t, http.MethodGet, "/api/v1/recurring-transactions/?limit=501", nil)
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)

	resp, _ = api.do(t, http.MethodPost, "/api/v1/admin/tasks/run-recurring?target_date=tomorrow", nil)
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)

	resp, _ = api.do(t, http.MethodDelete, "/api/v1/recurring-transactions/"+rt.ID, nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
}

func TestRunRecurringDefaultsToToday(t *testing.T) {
	api := newTestAPI(t, nil)
	resp, data := api.do(t, http.MethodPost, "/api/v1/admin/tasks/run-recurring", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(data))
	assert.Contains(t, string(data), `"date":"2026-03-15"`)
	assert.Contains(t, string(data), `"errors":[]`)
}

func TestRefreshRatesWithoutProvider(t *testing.T) {
	api := newTestAPI(t, nil)

	resp, data := api.do(t, http.MethodPost, "/api/v1/admin/tasks/refresh-rates?base=XYZ", nil)
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode, string(data))

	resp, data = api.do(t, http.MethodPost, "/api/v1/admin/tasks/refresh-rates", nil)
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	assert.JSONEq(t, `{"detail":"internal server error"}`, string(data))
}

func TestCurrencyEndpoints(t *testing.T) {
	api := newTestAPI(t, nil)
	_, err := api.repo.SaveExchangeRates(context.Background(), []core.ExchangeRate{{
		FromCurrency: "USD", ToCurrency: "EUR", Rate: decimal.RequireFromString("0.9"), Date: core.NewDate(2026, 3, 1),
	}})
	require.NoError(t, err)

	resp, data := api.do(t, http.MethodGet, "/api/v1/currencies/", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.GreaterOrEqual(t, len(decode[[]core.Currency](t, data)), 10)

	resp, data = api.do(t, http.MethodGet, "/api/v1/currencies/exchange-rate?from_currency=usd&to_currency=EUR&rate_date=2026-03-10", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(data))
	rate := decode[core.ExchangeRate](t, data)
	assert.Equal(t, "USD", rate.FromCurrency)
	assert.True(t, rate.Rate.Equal(decimal.RequireFromString("0.9")))

	resp, _ = api.do(t, http.MethodGet, "/api/v1/currencies/exchange-rate?from_currency=USD&to_currency=JPY&rate_date=2026-03-10", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, _ = api.do(t, http.MethodGet, "/api/v1/currencies/exchange-rate?from_currency=USD&to_currency=EUR", nil)
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
}

func TestSettingsEndpoints(t *testing.T) {
	api := newTestAPI(t, nil)

	resp, data := api.do(t, http.MethodGet, "/api/v1/settings/recurring_task_hour", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(data))

	resp, data = api.do(t, http.MethodPut, "/api/v1/settings/recurring_task_hour", map[string]string{"value": "6"})
	require.Equal(t, http.StatusOK, resp.StatusCode, string(data))
	assert.Equal(t, "6", decode[core.Setting](t, data).Value)

	resp, _ = api.do(t, http.MethodPut, "/api/v1/settings/recurring_task_hour", map[string]string{"value": "24"})
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)

	resp, _ = api.do(t, http.MethodPut, "/api/v1/settings/recurring_task_hour", map[string]string{})
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)

	resp, _ = api.do(t, http.MethodGet, "/api/v1/settings/no_such_key", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestTaskStatusUnknown(t *testing.T) {
	api := newTestAPI(t, nil)
	resp, data := api.do(t, http.MethodGet, "/api/v1/tasks/abc/status", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	task := decode[core.Task](t, data)
	assert.Equal(t, core.TaskPending, task.Status)
	assert.Equal(t, "unknown", task.TaskType)
}

func TestCSVImportAndExport(t *testing.T) {
	api := newTestAPI(t, nil)
	content := "Date,Amount,Kind,Category\n2026-03-02,12.50,expense,Groceries\n2026-03-03,oops,expense,Groceries\n"

	for _, path := range []string{"/api/v1/csv/import", "/api/v1/transactions/import"} {
		resp, data := api.do(t, http.MethodPost, path, map[string]any{
			"file_content": base64.StdEncoding.EncodeToString([]byte(content)),
			"mapping": map[string]string{
				"amount": "Amount", "transaction_date": "Date", "type": "Kind", "category_name": "Category",
			},
		})
		require.Equal(t, http.StatusOK, resp.StatusCode, string(data))
		res := decode[services.CSVImportResult](t, data)
		assert.Equal(t, "sync", res.TaskID)
		assert.Equal(t, 1, res.CreatedCount)
		assert.Equal(t, 1, res.ErrorCount)
	}

	resp, data := api.do(t, http.MethodGet, "/api/v1/csv/export?columns=amount,category_name&start_date=2026-03-01", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(data))
	assert.Equal(t, "attachment; filename=transactions_2026-03-15.csv", resp.Header.Get("Content-Disposition"))
	assert.True(t, strings.HasPrefix(resp.Header.Get("Content-Type"), "text/csv"))
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	assert.Equal(t, "amount,category_name", lines[0])
	assert.Len(t, lines, 3)

	resp, _ = api.do(t, http.MethodGet, "/api/v1/transactions/export?columns=amount,secret", nil)
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)

	resp, _ = api.do(t, http.MethodPost, "/api/v1/csv/import", map[string]any{"file_content": "!!!"})
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
}

func TestAnalyticsEndpoints(t *testing.T) {
	api := newTestAPI(t, nil)
	food := api.createCategory(t, "Food", core.Expense)
	salary := api.createCategory(t, "Salary", core.Income)
	for _, body := range []map[string]any{
		{"amount": "100", "category_id": salary.ID, "transaction_date": "2026-03-01", "type": "income"},
		{"amount": "30", "category_id": food.ID, "transaction_date": "2026-03-02", "type": "expense"},
	} {
		resp, data := api.do(t, http.MethodPost, "/api/v1/transactions/", body)
		require.Equal(t, http.StatusCreated, resp.StatusCode, string(data))
	}

	resp, data := api.do(t, http.MethodGet, "/api/v1/analytics/summary?start_date=2026-03-01&end_date=2026-03-31", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(data))
	summary := decode[core.Summary](t, data)
	assert.Equal(t, int64(7000), summary.Balance.Cents)
	assert.Equal(t, "USD", summary.DisplayCurrency)

	resp, data = api.do(t, http.MethodGet, "/api/v1/analytics/trends?start_date=2026-03-01&end_date=2026-03-31&period=week", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(data))

	resp, data = api.do(t, http.MethodGet, "/api/v1/analytics/by-category?start_date=2026-03-01&end_date=2026-03-31", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(data))
	assert.Contains(t, string(data), "Food")

	resp, data = api.do(t, http.MethodGet, "/api/v1/analytics/top-categories?start_date=2026-03-01&end_date=2026-03-31&limit=3", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(data))

	tests := []struct {
		name string
		path string
	}{
		{"missing start", "/api/v1/analytics/summary?end_date=2026-03-31"},
		{"reversed range", "/api/v1/analytics/summary?start_date=2026-04-01&end_date=2026-03-31"},
		{"bad period", "/api/v1/analytics/trends?start_date=2026-03-01&end_date=2026-03-31&period=hour"},
		{"limit too high", "/api/v1/analytics/top-categories?start_date=2026-03-01&end_date=2026-03-31&limit=21"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, data := api.do(t, http.MethodGet, tt.path, nil)
			assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode, string(data))
		})
	}
}

func TestBudgetEndpoints(t *testing.T) {
	api := newTestAPI(t, nil)
	food := api.createCategory(t, "Food", core.Expense)

	resp, data := api.do(t, http.MethodPost, "/api/v1/budgets/", map[string]any{
		"category_id": food.ID,
		"amount":      "200",
		"currency":    "USD",
		"period":      "monthly",
		"start_date":  "2026-03-01",
		"end_date":    "2026-03-31",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(data))
	budget := decode[core.Budget](t, data)

	resp, data = api.do(t, http.MethodPost, "/api/v1/transactions/", map[string]any{
		"amount": "50", "category_id": food.ID, "transaction_date": "2026-03-05", "type": "expense",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(data))

	resp, data = api.do(t, http.MethodGet, "/api/v1/budgets/"+budget.ID+"/progress", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(data))
	progress := decode[core.BudgetProgress](t, data)
	assert.Equal(t, int64(5000), progress.Spent.Cents)
	assert.Equal(t, int64(15000), progress.Remaining.Cents)
	assert.InDelta(t, 25.0, progress.Percentage, 0.01)

	resp, _ = api.do(t, http.MethodGet, "/api/v1/budgets/", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, _ = api.do(t, http.MethodDelete, "/api/v1/budgets/"+budget.ID, nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
}

func TestRateLimitReturns429(t *testing.T) {
	api := newTestAPI(t, func(o *Options) { o.RateLimitRPM = 4 })

	var last *http.Response
	for i := 0; i < 5; i++ {
		last, _ = api.do(t, http.MethodGet, "/api/v1/settings/", nil)
	}
	assert.Equal(t, http.StatusTooManyRequests, last.StatusCode)
	assert.NotEmpty(t, last.Header.Get("Retry-After"))
}

func TestCORSPreflight(t *testing.T) {
	api := newTestAPI(t, nil)
	req, err := http.NewRequest(http.MethodOptions, api.srv.URL+"/api/v1/categories/", nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "https://app.example.com")
	req.Header.Set("Access-Control-Request-Method", "POST")
	resp, err := api.srv.Client().Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get("Access-Control-Allow-Origin"))
}
