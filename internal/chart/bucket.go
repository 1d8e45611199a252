// Package chart turns aggregated amounts into Chart.js ready data.
//
// The central piece is Bucket, which limits the number of pie slices by
// folding small contributors into a single "Others" slice while keeping
// the total intact. All arithmetic uses exact decimals.
package chart

import (
	"fmt"
	"slices"

	"github.com/shopspring/decimal"
)

const (
	DefaultMaxSlices = 7

	otherLabel = "Other"
)

var (
	DefaultMinPercentage = decimal.NewFromInt(5)

	hundred = decimal.NewFromInt(100)
)

// Entry is one labeled amount destined for one slice.
// Currency fields are only propagated by the multi-currency variants.
type Entry struct {
	Label          string
	Amount         decimal.Decimal
	CurrencySymbol string
	CurrencyCode   string
}

// Config controls how many entries survive as individual slices.
type Config struct {
	// MaxSlices entries are always kept regardless of their share.
	MaxSlices int
	// MinPercentage pins entries whose share of the total is at least this value.
	MinPercentage decimal.Decimal
	// Palette overrides DefaultPalette when non-empty.
	Palette Palette
}

// DefaultConfig returns MaxSlices=7 and MinPercentage=5.
func DefaultConfig() Config {
	return Config{
		MaxSlices:     DefaultMaxSlices,
		MinPercentage: DefaultMinPercentage,
	}
}

// Output is the display-ready series. Labels, Values and BackgroundColors
// always have the same length; CurrencySymbols does too when tracked.
type Output struct {
	Labels           []string
	Values           []decimal.Decimal
	BackgroundColors []string
	CurrencySymbols  []string
}

// Len returns the number of emitted slices.
func (o Output) Len() int {
	return len(o.Labels)
}

// Bucket sorts series by amount, keeps the most significant entries and
// folds the rest into a single Others slice.
func Bucket(series []Entry, cfg Config) Output {
	return bucket(series, cfg, false)
}

// BucketWithCurrency behaves like Bucket and also emits currency symbols.
// The Others slice carries the currency of the first folded entry.
func BucketWithCurrency(series []Entry, cfg Config) Output {
	return bucket(series, cfg, true)
}

func bucket(series []Entry, cfg Config, trackCurrency bool) Output {
	out := Output{
		Labels:           make([]string, 0, len(series)),
		Values:           make([]decimal.Decimal, 0, len(series)),
		BackgroundColors: make([]string, 0, len(series)),
	}
	if trackCurrency {
		out.CurrencySymbols = make([]string, 0, len(series))
	}

	sorted := sortEntries(series)

	total := decimal.Zero
	for _, e := range sorted {
		total = total.Add(e.Amount)
	}

	kept := make([]Entry, 0, len(sorted))
	others := Entry{Amount: decimal.Zero}
	folded := 0
	for i, e := range sorted {
		if i < cfg.MaxSlices || percentage(e.Amount, total).GreaterThanOrEqual(cfg.MinPercentage) {
			kept = append(kept, e)
			continue
		}
		others.Amount = others.Amount.Add(e.Amount)
		if folded == 0 {
			others.CurrencySymbol = e.CurrencySymbol
			others.CurrencyCode = e.CurrencyCode
		}
		folded++
	}

	if folded > 0 {
		others.Label = othersLabel(folded)
		kept = append(kept, others)
	}

	for i, e := range kept {
		out.Labels = append(out.Labels, e.Label)
		out.Values = append(out.Values, e.Amount.Abs())
		out.BackgroundColors = append(out.BackgroundColors, cfg.Palette.Color(i))
		if trackCurrency {
			out.CurrencySymbols = append(out.CurrencySymbols, e.CurrencySymbol)
		}
	}
	return out
}

// sortEntries returns a sorted copy. Ascending by default so the most
// negative amount leads; descending when the second smallest amount is
// positive so the largest positive leads. Ties keep insertion order.
func sortEntries(series []Entry) []Entry {
	sorted := slices.Clone(series)
	if len(sorted) < 2 {
		return sorted
	}
	slices.SortStableFunc(sorted, func(a, b Entry) int {
		return a.Amount.Cmp(b.Amount)
	})
	if sorted[1].Amount.IsPositive() {
		slices.SortStableFunc(sorted, func(a, b Entry) int {
			return b.Amount.Cmp(a.Amount)
		})
	}
	return sorted
}

// percentage computes amount/total*100, truncating the quotient to 4
// fractional digits and the result to 2. A zero total yields zero.
func percentage(amount, total decimal.Decimal) decimal.Decimal {
	if total.IsZero() {
		return decimal.Zero
	}
	q, _ := amount.QuoRem(total, 4)
	return q.Mul(hundred).Truncate(2)
}

func othersLabel(count int) string {
	if count == 1 {
		return otherLabel
	}
	return fmt.Sprintf("Others (%d items)", count)
}
