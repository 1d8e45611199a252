// Package http exposes the chart and ledger services as a JSON API.
//
// This file implements utilities for parsing and validating HTTP request data.

package http

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"pfinance/internal/core"
)

// maxBodyBytes bounds request bodies read by RequestBodyParser.
const maxBodyBytes = 64 << 10

// DateParams holds parsed year/month/day values from request parameters.
type DateParams struct {
	Year  int
	Month int
	Day   int
}

// MonthParams holds parsed year/month values from request parameters.
type MonthParams struct {
	Year  int
	Month int
}

// ParseDateParams extracts year, month and day from form values, defaulting
// each missing or non-numeric value to now.
func ParseDateParams(form url.Values, now time.Time) DateParams {
	return DateParams{
		Year:  intParam(form, "year", now.Year()),
		Month: intParam(form, "month", int(now.Month())),
		Day:   intParam(form, "day", now.Day()),
	}
}

// ParseMonthParams extracts year and month from query parameters, defaulting
// each missing or non-numeric value to now. Range checks are left to the
// caller.
func ParseMonthParams(query url.Values, now time.Time) MonthParams {
	return MonthParams{
		Year:  intParam(query, "year", now.Year()),
		Month: intParam(query, "month", int(now.Month())),
	}
}

func intParam(values url.Values, key string, def int) int {
	if v := strings.TrimSpace(values.Get(key)); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

// RequestBodyParser handles different content types for request body parsing.
// It supports both JSON and form-encoded data.
type RequestBodyParser struct {
	body        []byte
	contentType string
	jsonData    map[string]any
	formData    url.Values
	parsed      bool
	err         error
}

// NewRequestBodyParser creates a parser for the given request.
// It reads the body once and stores it for subsequent parsing.
func NewRequestBodyParser(r *http.Request) *RequestBodyParser {
	p := &RequestBodyParser{
		contentType: r.Header.Get("Content-Type"),
	}
	if r.Body == nil {
		return p
	}

	p.body, p.err = io.ReadAll(io.LimitReader(r.Body, maxBodyBytes+1))
	if p.err == nil && len(p.body) > maxBodyBytes {
		p.err = fmt.Errorf("request body exceeds %d bytes", maxBodyBytes)
	}
	return p
}

// Parse attempts to parse the body as JSON or form data.
func (p *RequestBodyParser) Parse() error {
	if p.parsed {
		return p.err
	}
	p.parsed = true

	if p.err != nil {
		return p.err
	}

	trimmed := bytes.TrimSpace(p.body)
	if len(trimmed) == 0 {
		p.formData = url.Values{}
		return nil
	}

	if trimmed[0] == '{' || strings.HasPrefix(p.contentType, "application/json") {
		// Numbers stay json.Number so amounts keep every digit.
		dec := json.NewDecoder(bytes.NewReader(trimmed))
		dec.UseNumber()
		p.jsonData = make(map[string]any)
		if err := dec.Decode(&p.jsonData); err != nil {
			p.jsonData = nil
			p.err = err
			return err
		}
		return nil
	}

	p.formData, p.err = url.ParseQuery(string(trimmed))
	return p.err
}

// Get returns a string value from the parsed data (JSON or form).
func (p *RequestBodyParser) Get(key string) string {
	if p.jsonData != nil {
		if val, ok := p.jsonData[key]; ok {
			return strings.TrimSpace(sanitizeInput(stringValue(val)))
		}
		return ""
	}
	if p.formData != nil {
		return strings.TrimSpace(sanitizeInput(p.formData.Get(key)))
	}
	return ""
}

// Values returns the parsed data flattened to url.Values.
func (p *RequestBodyParser) Values() url.Values {
	if p.jsonData == nil {
		if p.formData == nil {
			return url.Values{}
		}
		return p.formData
	}
	out := url.Values{}
	for k, v := range p.jsonData {
		out.Set(k, stringValue(v))
	}
	return out
}

// IsJSON returns true if the parsed content was JSON.
func (p *RequestBodyParser) IsJSON() bool {
	return p.jsonData != nil
}

func stringValue(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case json.Number:
		return val.String()
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(val)
	default:
		return ""
	}
}

// sanitizeInput trims whitespace and removes control characters other than
// tab and newlines.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != '\t' && r != '\n' && r != '\r' {
			return -1
		}
		return r
	}, s)
}

var errInvalidDate = errors.New("invalid date")

// ParseTransaction builds a transaction from a parsed body. The date is read
// from "date" (YYYY-MM-DD) or from year/month/day, defaulting to now. The
// returned transaction is not validated beyond what parsing requires.
func ParseTransaction(p *RequestBodyParser, now time.Time) (core.Transaction, error) {
	date, err := parseTransactionDate(p, now)
	if err != nil {
		return core.Transaction{}, err
	}

	amount, err := core.ParseAmount(p.Get("amount"))
	if err != nil {
		return core.Transaction{}, err
	}

	typ := core.Expense
	if v := p.Get("type"); v != "" {
		if typ, err = core.ParseTransactionType(v); err != nil {
			return core.Transaction{}, err
		}
	}

	var accountID int64
	if v := p.Get("account_id"); v != "" {
		if accountID, err = strconv.ParseInt(v, 10, 64); err != nil || accountID < 0 {
			return core.Transaction{}, fmt.Errorf("invalid account_id %q", v)
		}
	}

	return core.Transaction{
		Date:         date,
		Description:  p.Get("description"),
		Amount:       amount,
		Type:         typ,
		Category:     p.Get("category"),
		AccountID:    accountID,
		CurrencyCode: strings.ToUpper(p.Get("currency")),
	}, nil
}

func parseTransactionDate(p *RequestBodyParser, now time.Time) (core.Date, error) {
	if v := p.Get("date"); v != "" {
		t, err := time.Parse(time.DateOnly, v)
		if err != nil {
			return core.Date{}, fmt.Errorf("%w %q: want YYYY-MM-DD", errInvalidDate, v)
		}
		return core.Date{Time: t}, nil
	}

	dp := ParseDateParams(p.Values(), now)
	if dp.Month < 1 || dp.Month > 12 {
		return core.Date{}, core.ErrInvalidMonth
	}
	d := core.NewDate(dp.Year, dp.Month, dp.Day)
	// time.Date normalises overflow such as 31 February.
	if d.Day() != dp.Day || int(d.Month()) != dp.Month {
		return core.Date{}, core.ErrInvalidDay
	}
	return d, nil
}

// ParseAccount builds an account from a parsed body.
func ParseAccount(p *RequestBodyParser) (core.Account, error) {
	a := core.Account{
		Name:           p.Get("name"),
		CurrencyCode:   strings.ToUpper(p.Get("currency_code")),
		CurrencySymbol: p.Get("currency_symbol"),
	}
	if v := p.Get("opening_balance"); v != "" {
		bal, err := parseSignedAmount(v)
		if err != nil {
			return core.Account{}, err
		}
		a.OpeningBalance = bal
	}
	return a, nil
}

// parseSignedAmount accepts negative and zero balances, unlike
// core.ParseAmount.
func parseSignedAmount(s string) (core.Money, error) {
	d, err := decimal.NewFromString(strings.ReplaceAll(strings.TrimSpace(s), ",", "."))
	if err != nil {
		return core.Money{}, core.ErrInvalidAmount
	}
	return core.Money{Amount: d}, nil
}
