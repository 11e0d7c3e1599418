package cli

import (
	"context"
	"time"

	"fintrack/internal/amqp"
	"fintrack/internal/cache"
	"fintrack/internal/config"
	"fintrack/internal/core"
	applog "fintrack/internal/log"
	"fintrack/internal/rates"
	"fintrack/internal/services"
	gsheet "fintrack/internal/sheets/google"
	"fintrack/internal/storage"
)

// Services is the full set of use cases built over one repository.
type Services struct {
	Categories    *services.CategoryService
	Transactions  *services.TransactionService
	Recurring     *services.RecurringService
	Processor     *services.RecurringProcessor
	Budgets       *services.BudgetService
	Rates         *services.RateService
	Settings      *services.SettingsService
	Tasks         *services.TaskService
	TaskProcessor *services.TaskProcessor
	CSV           *services.CSVService
	Analytics     *services.AnalyticsService

	// Caches owns the in-process caches. Callers start and stop its cleanup.
	Caches *cache.Manager
}

// BuildServices wires every service. events may be nil when AMQP is disabled.
func BuildServices(cfg *config.Config, repo *storage.SQLiteRepository, events services.EventPublisher) *Services {
	categoryCache := cache.NewLRUCache[core.Category](256, 10*time.Minute)
	caches := cache.NewManager()
	caches.Register(categoryCache)

	provider := rates.NewClient(rates.Config{
		BaseURL:           cfg.ExchangeRateAPIBase,
		APIKey:            cfg.ExchangeRateAPIKey,
		RequestsPerSecond: cfg.ExchangeRateRPS,
	})
	rateService := services.NewRateService(repo, provider, cfg.RateCacheTTL)

	recurring := services.NewRecurringService(repo)
	transactions := services.NewTransactionService(repo, recurring, events)
	categories := services.NewCategoryService(repo, categoryCache)
	tasks := services.NewTaskService(repo, events)
	csv := services.NewCSVService(transactions, categories, tasks, cfg.CSVBackgroundThreshold)

	processor := services.NewTaskProcessor(repo, services.TaskProcessorConfig{
		PollInterval: cfg.TaskPollInterval,
		BatchSize:    cfg.TaskBatchSize,
		MaxRetries:   cfg.TaskMaxRetries,
	})
	processor.Register(core.TaskTypeCSVImport, csv.HandleImportTask)

	return &Services{
		Categories:    categories,
		Transactions:  transactions,
		Recurring:     recurring,
		Processor:     services.NewRecurringProcessor(repo, events),
		Budgets:       services.NewBudgetService(repo, rateService),
		Rates:         rateService,
		Settings:      services.NewSettingsService(repo),
		Tasks:         tasks,
		TaskProcessor: processor,
		CSV:           csv,
		Analytics:     services.NewAnalyticsService(repo, rateService, cfg.DefaultDisplayCurrency),
		Caches:        caches,
	}
}

// ConnectAMQP opens the broker connection when AMQP_URL is set. A broker
// that cannot be reached is logged and the process continues without
// events, as the database remains the source of truth.
func ConnectAMQP(cfg *config.Config, logger *applog.Logger) (*amqp.Client, services.EventPublisher) {
	if !cfg.AMQPEnabled() {
		logger.Info("AMQP disabled, events will not be published")
		return nil, nil
	}
	client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		logger.Warn("Failed to connect to AMQP, continuing without events", "error", err)
		return nil, nil
	}
	logger.Info("AMQP client initialized", "exchange", cfg.AMQPExchange, "queue", cfg.AMQPQueue)
	return client, client
}

// NewSheetsMirror connects to the configured spreadsheet. It returns nil when
// the mirror is disabled.
func NewSheetsMirror(ctx context.Context, cfg *config.Config) (*gsheet.Client, error) {
	if !cfg.SheetsEnabled() {
		return nil, nil
	}
	return gsheet.New(ctx, gsheet.Config{
		SpreadsheetID:   cfg.GoogleSpreadsheetID,
		SheetName:       cfg.GoogleSheetName,
		CredentialsJSON: cfg.GoogleServiceAccountJSON,
		CredentialsFile: cfg.GoogleServiceAccountFile,
	})
}
