package core

import (
	"encoding/json"
	"regexp"
	"strings"
	"time"
)

const DateLayout = "2006-01-02"

const (
	Daily   Frequency = "daily"
	Weekly  Frequency = "weekly"
	Monthly Frequency = "monthly"
	Yearly  Frequency = "yearly"
)

const (
	Income  TransactionType = "income"
	Expense TransactionType = "expense"
)

const (
	BudgetMonthly BudgetPeriod = "monthly"
	BudgetYearly  BudgetPeriod = "yearly"
)

// AutoCreatedSuffix marks descriptions of transactions materialized from a template.
const AutoCreatedSuffix = " (automatically created)"

type (
	Frequency       string
	TransactionType string
	BudgetPeriod    string

	// Date is a calendar day in UTC.
	Date struct {
		time.Time
	}

	Category struct {
		ID        string          `json:"id"`
		Name      string          `json:"name"`
		Icon      string          `json:"icon"`
		Color     string          `json:"color"`
		Type      TransactionType `json:"type"`
		CreatedAt time.Time       `json:"created_at"`
		UpdatedAt time.Time       `json:"updated_at"`
	}

	// RecurringPattern is the "every N units" rule attached to a transaction.
	RecurringPattern struct {
		Frequency Frequency `json:"frequency"`
		Interval  int       `json:"interval"`
	}

	Transaction struct {
		ID                  string            `json:"id"`
		Amount              Money             `json:"amount"`
		Currency            string            `json:"currency"`
		CategoryID          string            `json:"category_id"`
		CategoryName        string            `json:"category_name,omitempty"`
		Description         string            `json:"description"`
		TransactionDate     Date              `json:"transaction_date"`
		Type                TransactionType   `json:"type"`
		IsRecurring         bool              `json:"is_recurring"`
		RecurringPattern    *RecurringPattern `json:"recurring_pattern"`
		RecurringTemplateID *string           `json:"recurring_template_id"`
		CreatedAt           time.Time         `json:"created_at"`
		UpdatedAt           time.Time         `json:"updated_at"`
	}

	// RecurringTemplate describes a recurring income or expense. NextOccurrence
	// is the cursor: the next date this template should fire.
	RecurringTemplate struct {
		ID             string          `json:"id"`
		Name           string          `json:"name"`
		Amount         Money           `json:"amount"`
		Currency       string          `json:"currency"`
		CategoryID     string          `json:"category_id"`
		Description    *string         `json:"description"`
		Type           TransactionType `json:"type"`
		Frequency      Frequency       `json:"frequency"`
		Interval       int             `json:"interval"`
		StartDate      Date            `json:"start_date"`
		EndDate        *Date           `json:"end_date"`
		NextOccurrence Date            `json:"next_occurrence"`
		IsActive       bool            `json:"is_active"`
		// SourceTransactionID is set on templates created by marking a
		// transaction recurring.
		SourceTransactionID *string   `json:"source_transaction_id,omitempty"`
		Version             int64     `json:"-"`
		CreatedAt           time.Time `json:"created_at"`
		UpdatedAt           time.Time `json:"updated_at"`
	}

	Budget struct {
		ID         string       `json:"id"`
		CategoryID string       `json:"category_id"`
		Amount     Money        `json:"amount"`
		Currency   string       `json:"currency"`
		Period     BudgetPeriod `json:"period"`
		StartDate  Date         `json:"start_date"`
		EndDate    Date         `json:"end_date"`
		CreatedAt  time.Time    `json:"created_at"`
		UpdatedAt  time.Time    `json:"updated_at"`
	}

	Setting struct {
		Key         string    `json:"key"`
		Value       string    `json:"value"`
		Description string    `json:"description"`
		CreatedAt   time.Time `json:"created_at"`
		UpdatedAt   time.Time `json:"updated_at"`
	}
)

var colorPattern = regexp.MustCompile(`^#[0-9A-Fa-f]{6}$`)

// NewDate creates a new Date from year, month, day
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// DateOf truncates t to its UTC calendar day.
func DateOf(t time.Time) Date {
	y, m, d := t.UTC().Date()
	return NewDate(y, int(m), d)
}

// Today returns the current UTC calendar day.
func Today() Date {
	return DateOf(time.Now())
}

// ParseDate parses a YYYY-MM-DD string.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(DateLayout, strings.TrimSpace(s))
	if err != nil {
		return Date{}, ErrInvalidDate
	}
	return Date{Time: t}, nil
}

func (d Date) Validate() error {
	if d.IsZero() {
		return ErrInvalidDate
	}
	_, month, day := d.Date()
	if day < 1 || day > 31 {
		return ErrInvalidDay
	}
	if month < 1 || month > 12 {
		return ErrInvalidMonth
	}
	return nil
}

func (d Date) String() string {
	return d.Format(DateLayout)
}

// AddDays shifts the date by n days.
func (d Date) AddDays(n int) Date {
	return Date{Time: d.Time.AddDate(0, 0, n)}
}

func (d Date) Before(o Date) bool { return d.Time.Before(o.Time) }
func (d Date) After(o Date) bool  { return d.Time.After(o.Time) }
func (d Date) Equal(o Date) bool  { return d.Time.Equal(o.Time) }

func (d Date) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

func (d *Date) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return ErrInvalidDate
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// Valid reports whether a stepper is registered for f.
func (f Frequency) Valid() bool {
	_, err := GetStepper(f)
	return err == nil
}

func (t TransactionType) Valid() bool {
	return t == Income || t == Expense
}

func (p BudgetPeriod) Valid() bool {
	return p == BudgetMonthly || p == BudgetYearly
}

func (c Category) Validate() error {
	name := strings.TrimSpace(c.Name)
	if name == "" {
		return Invalid("name", "must not be empty")
	}
	if len([]rune(name)) > 100 {
		return Invalid("name", "too long (max 100 characters)")
	}
	if strings.TrimSpace(c.Icon) == "" || len([]rune(c.Icon)) > 50 {
		return Invalid("icon", "must be 1-50 characters")
	}
	if !colorPattern.MatchString(c.Color) {
		return Invalid("color", "must be a hex color like #A1B2C3")
	}
	if !c.Type.Valid() {
		return Invalid("type", "must be income or expense")
	}
	return nil
}

func (p RecurringPattern) Validate() error {
	if !p.Frequency.Valid() {
		return ErrInvalidFrequency
	}
	if p.Interval < 1 {
		return ErrInvalidInterval
	}
	return nil
}

func (t Transaction) Validate() error {
	if err := t.Amount.Validate(); err != nil {
		return err
	}
	if !IsSupportedCurrency(t.Currency) {
		return Invalid("currency", "unsupported currency %q", t.Currency)
	}
	if strings.TrimSpace(t.CategoryID) == "" {
		return Invalid("category_id", "is required")
	}
	if err := t.TransactionDate.Validate(); err != nil {
		return err
	}
	if !t.Type.Valid() {
		return Invalid("type", "must be income or expense")
	}
	if len([]rune(t.Description)) > 500 {
		return Invalid("description", "too long (max 500 characters)")
	}
	if t.IsRecurring {
		if t.RecurringPattern == nil {
			return Invalid("recurring_pattern", "is required when is_recurring is set")
		}
		if err := t.RecurringPattern.Validate(); err != nil {
			return err
		}
	}
	return nil
}

func (rt RecurringTemplate) Validate() error {
	name := strings.TrimSpace(rt.Name)
	if name == "" {
		return Invalid("name", "must not be empty")
	}
	if len([]rune(name)) > 200 {
		return Invalid("name", "too long (max 200 characters)")
	}
	if err := rt.Amount.Validate(); err != nil {
		return err
	}
	if !IsSupportedCurrency(rt.Currency) {
		return Invalid("currency", "unsupported currency %q", rt.Currency)
	}
	if strings.TrimSpace(rt.CategoryID) == "" {
		return Invalid("category_id", "is required")
	}
	if !rt.Type.Valid() {
		return Invalid("type", "must be income or expense")
	}
	if err := (RecurringPattern{Frequency: rt.Frequency, Interval: rt.Interval}).Validate(); err != nil {
		return err
	}
	if err := rt.StartDate.Validate(); err != nil {
		return err
	}
	if rt.EndDate != nil && !rt.EndDate.After(rt.StartDate) {
		return Invalid("end_date", "must be after start_date")
	}
	return nil
}

// MaterializedTransaction builds the transaction a template produces at its
// current cursor.
func (rt RecurringTemplate) MaterializedTransaction() Transaction {
	id := rt.ID
	desc := rt.Name + AutoCreatedSuffix
	return Transaction{
		Amount:              rt.Amount,
		Currency:            rt.Currency,
		CategoryID:          rt.CategoryID,
		Description:         desc,
		TransactionDate:     rt.NextOccurrence,
		Type:                rt.Type,
		RecurringTemplateID: &id,
	}
}

func (b Budget) Validate() error {
	if strings.TrimSpace(b.CategoryID) == "" {
		return Invalid("category_id", "is required")
	}
	if err := b.Amount.Validate(); err != nil {
		return err
	}
	if !IsSupportedCurrency(b.Currency) {
		return Invalid("currency", "unsupported currency %q", b.Currency)
	}
	if !b.Period.Valid() {
		return Invalid("period", "must be monthly or yearly")
	}
	if err := b.StartDate.Validate(); err != nil {
		return err
	}
	if err := b.EndDate.Validate(); err != nil {
		return err
	}
	if !b.EndDate.After(b.StartDate) {
		return Invalid("end_date", "must be after start_date")
	}
	return nil
}
