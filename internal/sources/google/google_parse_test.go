package google

import (
	"errors"
	"testing"

	"pfinance/internal/core"
)

// Matrix shaped like a real yearly dashboard export.
func TestParseDashboard_Example2025_July(t *testing.T) {
	values := [][]any{
		{"Primary", "Secondary", "Jan", "Feb", "Mar", "Apr", "May", "Jun", "Jul", "Aug", "Sep", "Oct", "Nov", "Dec", "Average", "Total", "None", ""},
		{"Housing", "", 778.0, 509.6, 1170.5, 674.2, 382.2, 40.0, 988.9},
		{"", "Mortage", 648.1, 0.0, 583.9, 568.7, 0.0, 0.0, 339.5},
		{"", "CondoFee", 0.0, 404.6, 323.4, 0.0, 323.4, 0.0, 323.4},
		{"", "Internet", 49.8, 0.0, 25.0, 0.0, 24.9, 40.0, 46.9},
		{"Health", "", 80.0, 144.4, 191.7, 395.1, 425.0, 102.0, 148.0},
		{"Groceries", "", 368.9, 270.1, 220.9, 201.1, 197.1, 128.0, 381.5},
		{"Transport", "", 181.0, 817.1, 240.1, 55.9, 367.0, 171.0, 79.9},
		{"Travel", "", 0.0, 0.0, 0.0, 0.0, 0.0, 1652.0, 0.0},
		{"Fees", "", 219.2, 0.0, 0.0, 145.6, 0.0, 0.0, 145.6},
		{"OtherExpenses", "", 32.0, 8.0, 18.0, 6.0, 6.0, 387.5, 513.9},
		{"total", "", 1994, 2236, 1841, 1778, 1699, 3081, 2258},
	}
	ov, err := parseDashboard(values, 2025, 7)
	if err != nil {
		t.Fatalf("parse err: %v", err)
	}
	if ov.Year != 2025 || ov.Month != 7 || ov.Type != core.Expense {
		t.Fatalf("unexpected header fields: %+v", ov)
	}
	if ov.Total.String() != "2258.00" {
		t.Fatalf("total: got %s", ov.Total)
	}
	find := func(name string) string {
		for _, r := range ov.ByCategory {
			if r.Name == name {
				return r.Amount.String()
			}
		}
		return ""
	}
	if got := find("Housing"); got != "988.90" {
		t.Fatalf("Housing got %s", got)
	}
	if got := find("Groceries"); got != "381.50" {
		t.Fatalf("Groceries got %s", got)
	}
	if got := find("Mortage"); got != "" {
		t.Fatalf("secondary rows must not be listed, got %s", got)
	}
	if ov.ByCategory[0].Name != "Housing" || ov.ByCategory[len(ov.ByCategory)-1].Name != "OtherExpenses" {
		t.Fatalf("sheet order not preserved: %+v", ov.ByCategory)
	}
}

func TestParseDashboard_ComputesTotalWithoutTotalRow(t *testing.T) {
	values := [][]any{
		{"Primary", "Secondary", "Jan"},
		{"A", "", "0.10"},
		{"B", "", "0.20"},
	}
	ov, err := parseDashboard(values, 2025, 1)
	if err != nil {
		t.Fatalf("parse err: %v", err)
	}
	if ov.Total.String() != "0.30" {
		t.Fatalf("total = %s, want exact 0.30", ov.Total)
	}
}

func TestParseDashboard_UnexpectedHeader(t *testing.T) {
	_, err := parseDashboard([][]any{{"Category", "Jan"}}, 2025, 1)
	if !errors.Is(err, errUnexpectedHeader) {
		t.Fatalf("expected errUnexpectedHeader, got %v", err)
	}
}

func TestParseLedger(t *testing.T) {
	values := [][]any{
		{"Date", "Description", "Amount", "Type", "Category", "Account", "Currency"},
		{"2025-03-01", "Rent", "700", "expense", "Housing", "1", "EUR"},
		{"02/03/2025", "Salary", "2.500,00", "Income", "Work"},
		{"2025-03-04", "Coffee", "1,20", "expense", ""},
		{"2024-12-31", "Old", "5", "expense", "Food"},
		{"2025-03-05", "Broken", "abc", "expense", "Food"},
		{"2025-03-06", "Gift", "10", "transfer", "Food"},
		{"2025-03-07"},
	}
	txs := parseLedger(values, 2025)
	if len(txs) != 3 {
		t.Fatalf("expected 3 transactions, got %d: %+v", len(txs), txs)
	}
	if txs[0].AccountID != 1 || txs[0].CurrencyCode != "EUR" || txs[0].Amount.String() != "700.00" {
		t.Errorf("rent = %+v", txs[0])
	}
	if txs[1].Type != core.Income || txs[1].Amount.String() != "2500.00" || txs[1].Date.Day() != 2 {
		t.Errorf("salary = %+v", txs[1])
	}
	if txs[2].Category != uncategorized || txs[2].Amount.String() != "1.20" {
		t.Errorf("coffee = %+v", txs[2])
	}
}

func TestParseAccounts(t *testing.T) {
	values := [][]any{
		{"Name", "Currency", "Symbol", "Balance"},
		{"Checking", "eur", "€", "1.234,56"},
		{"Card", "USD", "$", -45.5},
		{"", "EUR", "€", "1"},
		{"Incomplete", "EUR"},
	}
	got := parseAccounts(values)
	if len(got) != 2 {
		t.Fatalf("expected 2 accounts, got %+v", got)
	}
	if got[0].CurrencyCode != "EUR" || got[0].Balance.String() != "1234.56" {
		t.Errorf("checking = %+v", got[0])
	}
	if got[1].Balance.String() != "-45.50" {
		t.Errorf("card = %+v", got[1])
	}
}

func TestParseDecimal(t *testing.T) {
	tests := []struct {
		in   string
		want string
		ok   bool
	}{
		{"12.34", "12.34", true},
		{"12,34", "12.34", true},
		{"1.234,50", "1234.5", true},
		{"1,234.50", "1234.5", true},
		{"€ 10", "10", true},
		{"-3.5", "-3.5", true},
		{"", "0", false},
		{"n/a", "0", false},
	}
	for _, tt := range tests {
		got, ok := parseDecimal(tt.in)
		if ok != tt.ok || got.String() != tt.want {
			t.Errorf("parseDecimal(%q) = %s, %v; want %s, %v", tt.in, got, ok, tt.want, tt.ok)
		}
	}
}

func TestParseColumn(t *testing.T) {
	values := [][]any{
		{"Food"},
		{"Transport"},
		{""},
		{"#Comment"},
		{"Food"},
		{},
		{"total"},
		{"Shopping"},
	}
	got := parseColumn(values)
	want := []string{"Food", "Transport", "Shopping"}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("index %d: got %s, want %s", i, got[i], want[i])
		}
	}
}
