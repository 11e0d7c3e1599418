package http

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"fintrack/internal/core"
)

func TestQueryParser(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/?start_date=2026-01-31&page=3&min_amount=12,50&name=+x+", nil)
	p := NewQueryParser(r)

	if d := p.Date("start_date"); d == nil || d.String() != "2026-01-31" {
		t.Errorf("Date() = %v", d)
	}
	if p.Date("end_date") != nil {
		t.Error("absent date should be nil")
	}
	if got := p.Int("page", 1, 1, 100); got != 3 {
		t.Errorf("Int() = %d, want 3", got)
	}
	if got := p.Int("page_size", 50, 1, 100); got != 50 {
		t.Errorf("Int() default = %d, want 50", got)
	}
	if m := p.Money("min_amount"); m == nil || m.Cents != 1250 {
		t.Errorf("Money() = %v", m)
	}
	if p.String("name") != "x" {
		t.Errorf("String() = %q", p.String("name"))
	}
	if err := p.Err(); err != nil {
		t.Errorf("Err() = %v", err)
	}
}

func TestQueryParserErrors(t *testing.T) {
	tests := []struct {
		name  string
		query string
		parse func(p *QueryParser)
		field string
	}{
		{"bad date", "start_date=31-01-2026", func(p *QueryParser) { p.Date("start_date") }, "start_date"},
		{"missing required", "", func(p *QueryParser) { p.RequiredDate("end_date") }, "end_date"},
		{"not an int", "limit=abc", func(p *QueryParser) { p.Int("limit", 5, 1, 20) }, "limit"},
		{"out of range", "limit=21", func(p *QueryParser) { p.Int("limit", 5, 1, 20) }, "limit"},
		{"bad amount", "max_amount=-1", func(p *QueryParser) { p.Money("max_amount") }, "max_amount"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NewQueryParser(httptest.NewRequest(http.MethodGet, "/?"+tt.query, nil))
			tt.parse(p)
			var fe *core.FieldError
			if !errors.As(p.Err(), &fe) || fe.Field != tt.field {
				t.Fatalf("Err() = %v, want field error on %s", p.Err(), tt.field)
			}
			if !errors.Is(p.Err(), core.ErrValidation) {
				t.Error("field errors must wrap ErrValidation")
			}
		})
	}
}

func TestDecodeJSON(t *testing.T) {
	type payload struct {
		Name string `json:"name"`
	}
	tests := []struct {
		name    string
		body    string
		limit   int64
		wantErr error
	}{
		{"ok", `{"name":"Rent","extra":1}`, 1024, nil},
		{"empty", ``, 1024, core.ErrValidation},
		{"malformed", `{"name":`, 1024, core.ErrValidation},
		{"trailing", `{"name":"a"} {"name":"b"}`, 1024, core.ErrValidation},
		{"too large", `{"name":"` + strings.Repeat("x", 100) + `"}`, 16, errBodyTooLarge},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(tt.body))
			var dst payload
			err := DecodeJSON(httptest.NewRecorder(), r, &dst, tt.limit)
			if tt.wantErr == nil {
				if err != nil || dst.Name != "Rent" {
					t.Fatalf("DecodeJSON() = %v, %+v", err, dst)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("DecodeJSON() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}
