// Package google reads chart data from, and appends transactions to, a
// Google Sheets workbook.
//
// Workbook layout, one set of sheets per year:
//
//	"<year> Ledger"     Date | Description | Amount | Type | Category | Account | Currency
//	"<year> Dashboard"  Primary | Secondary | Jan .. Dec (expense totals)
//	"Accounts"          Name | Currency | Symbol | Balance
package google

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"pfinance/internal/core"
	"pfinance/internal/log"
	"pfinance/internal/sources"
)

// Ensure interface conformance
var (
	_ sources.TransactionWriter = (*Client)(nil)
	_ sources.TaxonomyReader    = (*Client)(nil)
	_ sources.ChartSource       = (*Client)(nil)
)

// Options configures a Client.
type Options struct {
	SpreadsheetID string
	// LedgerSheet and DashboardSheet are base names; the year is prefixed.
	LedgerSheet    string
	DashboardSheet string
	AccountsSheet  string
	// CredentialsJSON is a service account key. Takes precedence over
	// CredentialsFile.
	CredentialsJSON []byte
	CredentialsFile string
}

func (o *Options) setDefaults() {
	if strings.TrimSpace(o.LedgerSheet) == "" {
		o.LedgerSheet = "Ledger"
	}
	if strings.TrimSpace(o.DashboardSheet) == "" {
		o.DashboardSheet = "Dashboard"
	}
	if strings.TrimSpace(o.AccountsSheet) == "" {
		o.AccountsSheet = "Accounts"
	}
}

// valuesAPI is the subset of the Sheets values service the client uses.
type valuesAPI interface {
	Get(ctx context.Context, rng string) ([][]any, error)
	Append(ctx context.Context, rng string, row []any) (updatedRange string, err error)
}

type Client struct {
	api    valuesAPI
	opts   Options
	logger *log.Logger
	now    func() time.Time
}

// New creates a Sheets client authenticated with a service account.
func New(ctx context.Context, opts Options, logger *log.Logger) (*Client, error) {
	if strings.TrimSpace(opts.SpreadsheetID) == "" {
		return nil, errors.New("missing spreadsheet ID")
	}
	creds := opts.CredentialsJSON
	if len(creds) == 0 {
		if opts.CredentialsFile == "" {
			return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON or GOOGLE_SERVICE_ACCOUNT_FILE)")
		}
		b, err := os.ReadFile(opts.CredentialsFile)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
		creds = b
	}

	svc, err := gsheet.NewService(ctx,
		goption.WithCredentialsJSON(creds),
		goption.WithScopes(gsheet.SpreadsheetsScope))
	if err != nil {
		return nil, fmt.Errorf("sheets service: %w", err)
	}

	return newWithAPI(&sheetsValues{svc: svc, spreadsheetID: opts.SpreadsheetID}, opts, logger), nil
}

func newWithAPI(api valuesAPI, opts Options, logger *log.Logger) *Client {
	opts.setDefaults()
	if logger == nil {
		logger = log.Discard()
	}
	return &Client{
		api:    api,
		opts:   opts,
		logger: logger.WithComponent(log.ComponentSheets),
		now:    time.Now,
	}
}

type sheetsValues struct {
	svc           *gsheet.Service
	spreadsheetID string
}

func (s *sheetsValues) Get(ctx context.Context, rng string) ([][]any, error) {
	resp, err := s.svc.Spreadsheets.Values.Get(s.spreadsheetID, rng).Context(ctx).Do()
	if err != nil {
		return nil, err
	}
	return resp.Values, nil
}

func (s *sheetsValues) Append(ctx context.Context, rng string, row []any) (string, error) {
	vr := &gsheet.ValueRange{Values: [][]any{row}}
	resp, err := s.svc.Spreadsheets.Values.Append(s.spreadsheetID, rng, vr).
		ValueInputOption("USER_ENTERED").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).Do()
	if err != nil {
		return "", err
	}
	if resp.Updates != nil {
		return resp.Updates.UpdatedRange, nil
	}
	return rng, nil
}

// Append writes t as a new ledger row of its year and returns the updated
// range. The amount is written as its exact decimal string.
func (c *Client) Append(ctx context.Context, t core.Transaction) (string, error) {
	if err := t.Validate(); err != nil {
		return "", fmt.Errorf("validation failed: %w", err)
	}
	sheet := yearPrefixedName(c.opts.LedgerSheet, t.Date.Year())
	account := ""
	if t.AccountID != 0 {
		account = strconv.FormatInt(t.AccountID, 10)
	}
	row := []any{
		t.Date.Format(time.DateOnly),
		t.Description,
		t.Amount.Amount.String(),
		string(t.Type),
		t.Category,
		account,
		t.CurrencyCode,
	}
	ref, err := c.api.Append(ctx, sheet+"!A:G", row)
	if err != nil {
		return "", fmt.Errorf("append to %s: %w", sheet, err)
	}
	return ref, nil
}

// List returns the primary categories of the current year's dashboard.
func (c *Client) List(ctx context.Context) ([]string, error) {
	sheet := yearPrefixedName(c.opts.DashboardSheet, c.now().Year())
	rng := sheet + "!A3:A65"
	values, err := c.api.Get(ctx, rng)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", rng, err)
	}
	return parseColumn(values), nil
}

// ReadMonthOverview reads expenses from the yearly dashboard, falling back
// to the ledger when the dashboard layout is not recognised. Income always
// comes from the ledger.
func (c *Client) ReadMonthOverview(ctx context.Context, year, month int, typ core.TransactionType) (core.MonthOverview, error) {
	if month < 1 || month > 12 {
		return core.MonthOverview{}, fmt.Errorf("month %d: %w", month, core.ErrInvalidMonth)
	}
	if typ != core.Expense {
		return c.readMonthOverviewFromLedger(ctx, year, month, typ)
	}

	sheet := yearPrefixedName(c.opts.DashboardSheet, year)
	rng := sheet + "!A2:Q67"
	values, err := c.api.Get(ctx, rng)
	if err != nil {
		return core.MonthOverview{}, fmt.Errorf("read %s: %w", rng, err)
	}
	ov, err := parseDashboard(values, year, month)
	if err == nil {
		return ov, nil
	}
	if errors.Is(err, errUnexpectedHeader) {
		c.logger.WarnContext(ctx, "Dashboard header mismatch, falling back to ledger sheet",
			log.FieldYear, year, log.FieldMonth, month, "range", rng, log.FieldError, err)
		return c.readMonthOverviewFromLedger(ctx, year, month, typ)
	}
	return core.MonthOverview{}, err
}

func (c *Client) ReadMonthlyTotals(ctx context.Context, year int) (core.MonthlyTotals, error) {
	txs, err := c.readLedger(ctx, year)
	if err != nil {
		return core.MonthlyTotals{}, err
	}
	mt := core.NewMonthlyTotals(year)
	for _, t := range txs {
		mt.Add(t)
	}
	return mt, nil
}

// ListAccountBalances reads the accounts sheet. Balances are maintained in
// the workbook.
func (c *Client) ListAccountBalances(ctx context.Context) ([]core.AccountBalance, error) {
	rng := c.opts.AccountsSheet + "!A:D"
	values, err := c.api.Get(ctx, rng)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", rng, err)
	}
	return parseAccounts(values), nil
}

func (c *Client) readMonthOverviewFromLedger(ctx context.Context, year, month int, typ core.TransactionType) (core.MonthOverview, error) {
	txs, err := c.readLedger(ctx, year)
	if err != nil {
		return core.MonthOverview{}, err
	}
	agg := core.NewAggregator()
	for _, t := range txs {
		if t.Type == typ && int(t.Date.Month()) == month {
			agg.Add(t.Category, t.Amount.Amount)
		}
	}
	return agg.Overview(year, month, typ), nil
}

func (c *Client) readLedger(ctx context.Context, year int) ([]core.Transaction, error) {
	sheet := yearPrefixedName(c.opts.LedgerSheet, year)
	rng := sheet + "!A:G"
	values, err := c.api.Get(ctx, rng)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", rng, err)
	}
	return parseLedger(values, year), nil
}

// yearPrefixedName returns "<year> <base>" unless base already starts with a 4-digit year.
func yearPrefixedName(base string, year int) string {
	base = strings.TrimSpace(base)
	if base == "" {
		return base
	}
	if len(base) >= 5 {
		if y, err := strconv.Atoi(base[0:4]); err == nil && base[4] == ' ' && y > 1900 && y < 3000 {
			return base
		}
	}
	return fmt.Sprintf("%d %s", year, base)
}
