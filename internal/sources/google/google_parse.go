package google

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"pfinance/internal/core"
)

var errUnexpectedHeader = errors.New("unexpected dashboard header")

var monthHeaders = []string{"Jan", "Feb", "Mar", "Apr", "May", "Jun", "Jul", "Aug", "Sep", "Oct", "Nov", "Dec"}

const uncategorized = "(Uncategorized)"

// parseDashboard converts a values matrix (as returned by Sheets API)
// into an expense MonthOverview for the given year and month (1-12).
// It expects headers including Primary, Secondary and Jan..Dec. Only
// primary rows (empty Secondary) are summed; a "total" row overrides the
// computed total.
func parseDashboard(values [][]any, year, month int) (core.MonthOverview, error) {
	if len(values) == 0 {
		return core.NewAggregator().Overview(year, month, core.Expense), nil
	}
	headers := toStrings(values[0])
	colPrimary := indexOf(headers, "Primary")
	colSecondary := indexOf(headers, "Secondary")
	colMonth := indexOf(headers, monthHeaders[month-1])
	if colPrimary == -1 || colSecondary == -1 || colMonth == -1 {
		missing := make([]string, 0, 3)
		if colPrimary == -1 {
			missing = append(missing, "Primary")
		}
		if colSecondary == -1 {
			missing = append(missing, "Secondary")
		}
		if colMonth == -1 {
			missing = append(missing, monthHeaders[month-1])
		}
		return core.MonthOverview{}, fmt.Errorf("%w: missing %s; got headers=%v", errUnexpectedHeader, strings.Join(missing, ","), headers)
	}

	agg := core.NewAggregator()
	var explicitTotal *decimal.Decimal
	for _, raw := range values[1:] {
		row := toStrings(raw)
		primary := safeGet(row, colPrimary)
		secondary := safeGet(row, colSecondary)
		amount, ok := parseDecimal(safeGet(row, colMonth))
		if !ok {
			continue
		}
		if strings.EqualFold(primary, "total") {
			explicitTotal = &amount
			continue
		}
		if primary != "" && secondary == "" {
			agg.Add(primary, amount)
		}
	}

	ov := agg.Overview(year, month, core.Expense)
	if explicitTotal != nil && !explicitTotal.IsZero() {
		ov.Total = core.Money{Amount: *explicitTotal}
	}
	return ov, nil
}

// parseLedger returns the well-formed transactions of year. Header rows and
// rows that do not parse are skipped.
func parseLedger(values [][]any, year int) []core.Transaction {
	out := make([]core.Transaction, 0, len(values))
	for _, raw := range values {
		row := toStrings(raw)
		if len(row) < 5 {
			continue
		}
		date, ok := parseDate(row[0])
		if !ok || date.Year() != year {
			continue
		}
		amount, ok := parseDecimal(row[2])
		if !ok {
			continue
		}
		typ, err := core.ParseTransactionType(row[3])
		if err != nil {
			continue
		}
		category := row[4]
		if category == "" {
			category = uncategorized
		}
		t := core.Transaction{
			Date:         date,
			Description:  row[1],
			Amount:       core.Money{Amount: amount.Abs()},
			Type:         typ,
			Category:     category,
			CurrencyCode: safeGet(row, 6),
		}
		if id, err := strconv.ParseInt(safeGet(row, 5), 10, 64); err == nil {
			t.AccountID = id
		}
		out = append(out, t)
	}
	return out
}

// parseAccounts reads Name | Currency | Symbol | Balance rows.
func parseAccounts(values [][]any) []core.AccountBalance {
	out := make([]core.AccountBalance, 0, len(values))
	for _, raw := range values {
		row := toStrings(raw)
		if len(row) < 4 || row[0] == "" {
			continue
		}
		bal, ok := parseDecimal(row[3])
		if !ok {
			continue
		}
		out = append(out, core.AccountBalance{
			Name:           row[0],
			CurrencyCode:   strings.ToUpper(row[1]),
			CurrencySymbol: row[2],
			Balance:        core.Money{Amount: bal},
		})
	}
	return out
}

// parseColumn returns the first cell of each row, skipping blanks, comments
// and the dashboard total row. Order is preserved and duplicates dropped.
func parseColumn(values [][]any) []string {
	seen := map[string]struct{}{}
	out := make([]string, 0, len(values))
	for _, row := range values {
		if len(row) == 0 {
			continue
		}
		v := strings.TrimSpace(fmt.Sprint(row[0]))
		if v == "" || strings.HasPrefix(v, "#") || strings.EqualFold(v, "total") {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}

// parseDecimal reads a sheet cell as an exact decimal. Accepts "1234.5",
// "1234,5", "1.234,50", "1,234.50" and a leading currency symbol.
func parseDecimal(s string) (decimal.Decimal, bool) {
	s = strings.TrimSpace(strings.Trim(s, "€$£ "))
	s = strings.ReplaceAll(s, " ", "")
	if s == "" {
		return decimal.Zero, false
	}
	comma, dot := strings.LastIndex(s, ","), strings.LastIndex(s, ".")
	switch {
	case comma >= 0 && dot >= 0 && comma > dot:
		s = strings.ReplaceAll(s, ".", "")
		s = strings.Replace(s, ",", ".", 1)
	case comma >= 0 && dot >= 0:
		s = strings.ReplaceAll(s, ",", "")
	default:
		s = strings.ReplaceAll(s, ",", ".")
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, false
	}
	return d, true
}

var dateLayouts = []string{time.DateOnly, "02/01/2006", "2/1/2006"}

func parseDate(s string) (core.Date, bool) {
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, strings.TrimSpace(s)); err == nil {
			return core.Date{Time: t}, true
		}
	}
	return core.Date{}, false
}

func toStrings(in []any) []string {
	out := make([]string, len(in))
	for i, v := range in {
		out[i] = strings.TrimSpace(fmt.Sprint(v))
	}
	return out
}

func indexOf(arr []string, target string) int {
	for i, v := range arr {
		if strings.EqualFold(strings.TrimSpace(v), strings.TrimSpace(target)) {
			return i
		}
	}
	return -1
}

func safeGet(arr []string, idx int) string {
	if idx < 0 || idx >= len(arr) {
		return ""
	}
	return arr[idx]
}
