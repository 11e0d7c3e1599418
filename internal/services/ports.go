package services

import (
	"context"
	"time"

	"fintrack/internal/core"
)

// EventPublisher announces committed changes. Publishing is best effort:
// callers log failures and never roll back on them.
type EventPublisher interface {
	PublishTransactionCreated(ctx context.Context, transactionID string) error
	PublishTaskEnqueued(ctx context.Context, taskID, taskType string) error
}

// Converter turns an amount into another currency at the rate valid on date.
type Converter interface {
	Convert(ctx context.Context, amount core.Money, from, to string, date core.Date) (core.Money, error)
}

// Clock returns the current time. Services default to time.Now.
type Clock func() time.Time

func (c Clock) today() core.Date {
	if c == nil {
		return core.Today()
	}
	return core.DateOf(c())
}
