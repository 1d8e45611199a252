package core

import "github.com/shopspring/decimal"

// CategoryAmount represents an amount aggregated by category name.
type CategoryAmount struct {
	Name   string
	Amount Money
}

// MonthOverview is a compact summary for a specific year+month and type.
type MonthOverview struct {
	Year       int
	Month      int // 1-12
	Type       TransactionType
	Total      Money
	ByCategory []CategoryAmount
}

// AccountBalance is the current balance of one account in its own currency.
type AccountBalance struct {
	Name           string
	Balance        Money
	CurrencySymbol string
	CurrencyCode   string
}

// MonthlyTotals holds per-month sums for one year; index 0 is January.
type MonthlyTotals struct {
	Year     int
	Expenses [12]decimal.Decimal
	Income   [12]decimal.Decimal
}

// NewMonthlyTotals returns totals for year with every month set to zero.
func NewMonthlyTotals(year int) MonthlyTotals {
	mt := MonthlyTotals{Year: year}
	for i := range mt.Expenses {
		mt.Expenses[i] = decimal.Zero
		mt.Income[i] = decimal.Zero
	}
	return mt
}

// Add accumulates t into the month it belongs to. Transactions from other
// years are ignored.
func (mt *MonthlyTotals) Add(t Transaction) {
	if t.Date.Year() != mt.Year {
		return
	}
	i := int(t.Date.Month()) - 1
	switch t.Type {
	case Expense:
		mt.Expenses[i] = mt.Expenses[i].Add(t.Amount.Amount)
	case Income:
		mt.Income[i] = mt.Income[i].Add(t.Amount.Amount)
	}
}

// Aggregator sums amounts per category while remembering first-seen order.
type Aggregator struct {
	order []string
	sums  map[string]decimal.Decimal
	total decimal.Decimal
}

// NewAggregator returns an empty Aggregator.
func NewAggregator() *Aggregator {
	return &Aggregator{sums: map[string]decimal.Decimal{}, total: decimal.Zero}
}

// Add adds amount to category.
func (a *Aggregator) Add(category string, amount decimal.Decimal) {
	cur, ok := a.sums[category]
	if !ok {
		a.order = append(a.order, category)
		cur = decimal.Zero
	}
	a.sums[category] = cur.Add(amount)
	a.total = a.total.Add(amount)
}

// Overview builds a MonthOverview from the accumulated sums.
func (a *Aggregator) Overview(year, month int, typ TransactionType) MonthOverview {
	ov := MonthOverview{
		Year:       year,
		Month:      month,
		Type:       typ,
		Total:      Money{Amount: a.total},
		ByCategory: make([]CategoryAmount, 0, len(a.order)),
	}
	for _, name := range a.order {
		ov.ByCategory = append(ov.ByCategory, CategoryAmount{Name: name, Amount: Money{Amount: a.sums[name]}})
	}
	return ov
}
