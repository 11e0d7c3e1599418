// Package http provides the JSON API server and its handlers.
//
// This file implements utilities for parsing and validating request data:
// typed query parameters and size-limited JSON bodies.

package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"fintrack/internal/core"
)

const (
	maxJSONBodyBytes      = 1 << 20  // 1 MiB
	maxCSVImportBodyBytes = 10 << 20 // 10 MiB
)

// errBodyTooLarge maps to 413.
var errBodyTooLarge = errors.New("request body too large")

// QueryParser reads typed query parameters. The first invalid parameter is
// kept and reported by Err as a field error.
type QueryParser struct {
	values url.Values
	err    error
}

func NewQueryParser(r *http.Request) *QueryParser {
	return &QueryParser{values: r.URL.Query()}
}

func (p *QueryParser) fail(field, format string, args ...any) {
	if p.err == nil {
		p.err = core.Invalid(field, format, args...)
	}
}

// String returns the trimmed value of key.
func (p *QueryParser) String(key string) string {
	return strings.TrimSpace(p.values.Get(key))
}

// Date parses an optional YYYY-MM-DD parameter.
func (p *QueryParser) Date(key string) *core.Date {
	v := p.String(key)
	if v == "" {
		return nil
	}
	d, err := core.ParseDate(v)
	if err != nil {
		p.fail(key, "invalid date %q, expected YYYY-MM-DD", v)
		return nil
	}
	return &d
}

// RequiredDate parses a mandatory YYYY-MM-DD parameter.
func (p *QueryParser) RequiredDate(key string) core.Date {
	if p.String(key) == "" {
		p.fail(key, "field required")
		return core.Date{}
	}
	if d := p.Date(key); d != nil {
		return *d
	}
	return core.Date{}
}

// Int parses an integer in [min, max], falling back to def when absent.
func (p *QueryParser) Int(key string, def, min, max int) int {
	v := p.String(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		p.fail(key, "must be an integer")
		return def
	}
	if n < min || n > max {
		p.fail(key, "must be between %d and %d", min, max)
		return def
	}
	return n
}

// Money parses an optional decimal amount such as "12.50".
func (p *QueryParser) Money(key string) *core.Money {
	v := p.String(key)
	if v == "" {
		return nil
	}
	m, err := core.ParseMoney(v)
	if err != nil {
		p.fail(key, "invalid amount %q", v)
		return nil
	}
	return &m
}

// Err returns the first parameter error, if any.
func (p *QueryParser) Err() error {
	return p.err
}

// DecodeJSON decodes the request body into dst, reading at most maxBytes.
// Malformed JSON is reported as a validation error.
func DecodeJSON(w http.ResponseWriter, r *http.Request, dst any, maxBytes int64) error {
	body := http.MaxBytesReader(w, r.Body, maxBytes)
	dec := json.NewDecoder(body)
	if err := dec.Decode(dst); err != nil {
		var tooLarge *http.MaxBytesError
		switch {
		case errors.As(err, &tooLarge):
			return fmt.Errorf("%w: limit is %d bytes", errBodyTooLarge, tooLarge.Limit)
		case errors.Is(err, io.EOF):
			return core.Invalid("body", "request body is empty")
		default:
			return fmt.Errorf("%w: malformed JSON body: %v", core.ErrValidation, err)
		}
	}
	if dec.More() {
		return core.Invalid("body", "unexpected data after JSON object")
	}
	return nil
}
