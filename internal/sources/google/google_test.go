package google

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"pfinance/internal/core"
)

type fakeValues struct {
	mu       sync.Mutex
	ranges   map[string][][]any
	appended map[string][][]any
	getErr   error
	gets     []string
}

func newFakeValues() *fakeValues {
	return &fakeValues{ranges: map[string][][]any{}, appended: map[string][][]any{}}
}

func (f *fakeValues) Get(_ context.Context, rng string) ([][]any, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.gets = append(f.gets, rng)
	if f.getErr != nil {
		return nil, f.getErr
	}
	return f.ranges[rng], nil
}

func (f *fakeValues) Append(_ context.Context, rng string, row []any) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.appended[rng] = append(f.appended[rng], row)
	return strings.Split(rng, "!")[0] + "!A2:G2", nil
}

func testClient(api valuesAPI) *Client {
	c := newWithAPI(api, Options{SpreadsheetID: "test"}, nil)
	c.now = func() time.Time { return time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC) }
	return c
}

func TestNew_MissingSpreadsheetID(t *testing.T) {
	_, err := New(context.Background(), Options{}, nil)
	if err == nil || err.Error() != "missing spreadsheet ID" {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestNew_MissingCredentials(t *testing.T) {
	_, err := New(context.Background(), Options{SpreadsheetID: "id"}, nil)
	if err == nil || !strings.Contains(err.Error(), "missing service account credentials") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestNew_UnreadableCredentialsFile(t *testing.T) {
	_, err := New(context.Background(), Options{SpreadsheetID: "id", CredentialsFile: "/non/existent.json"}, nil)
	if err == nil || !strings.Contains(err.Error(), "read service account file") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestClient_AppendWritesExactAmount(t *testing.T) {
	api := newFakeValues()
	c := testClient(api)

	ref, err := c.Append(context.Background(), core.Transaction{
		Date:         core.NewDate(2025, 3, 9),
		Description:  "Groceries",
		Amount:       core.Money{Amount: decimal.RequireFromString("12.345")},
		Type:         core.Expense,
		Category:     "Food",
		AccountID:    7,
		CurrencyCode: "EUR",
	})
	if err != nil {
		t.Fatalf("append: %v", err)
	}
	if ref != "2025 Ledger!A2:G2" {
		t.Errorf("ref = %q", ref)
	}
	rows := api.appended["2025 Ledger!A:G"]
	if len(rows) != 1 {
		t.Fatalf("expected one appended row, got %v", api.appended)
	}
	want := []any{"2025-03-09", "Groceries", "12.345", "expense", "Food", "7", "EUR"}
	for i := range want {
		if rows[0][i] != want[i] {
			t.Errorf("col %d = %v, want %v", i, rows[0][i], want[i])
		}
	}
}

func TestClient_AppendValidates(t *testing.T) {
	c := testClient(newFakeValues())
	_, err := c.Append(context.Background(), core.Transaction{
		Date:        core.NewDate(2025, 1, 1),
		Description: "x",
		Amount:      core.Money{Amount: decimal.NewFromInt(1)},
		Type:        core.Expense,
	})
	if !errors.Is(err, core.ErrEmptyCategory) {
		t.Fatalf("expected ErrEmptyCategory, got %v", err)
	}
}

func TestClient_ListReadsCurrentDashboard(t *testing.T) {
	api := newFakeValues()
	api.ranges["2025 Dashboard!A3:A65"] = [][]any{{"Housing"}, {"Food"}, {"Housing"}}
	c := testClient(api)

	cats, err := c.List(context.Background())
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(cats) != 2 || cats[0] != "Housing" {
		t.Errorf("cats = %v", cats)
	}
}

func TestClient_ReadMonthOverviewFallsBackToLedger(t *testing.T) {
	api := newFakeValues()
	api.ranges["2025 Dashboard!A2:Q67"] = [][]any{{"Unexpected", "Layout"}}
	api.ranges["2025 Ledger!A:G"] = [][]any{
		{"2025-02-01", "Rent", "700", "expense", "Housing"},
		{"2025-02-03", "Bread", "2.10", "expense", "Food"},
		{"2025-02-04", "Salary", "2000", "income", "Work"},
		{"2025-03-01", "Rent", "700", "expense", "Housing"},
	}
	c := testClient(api)

	ov, err := c.ReadMonthOverview(context.Background(), 2025, 2, core.Expense)
	if err != nil {
		t.Fatalf("overview: %v", err)
	}
	if ov.Total.String() != "702.10" || len(ov.ByCategory) != 2 {
		t.Errorf("overview = %+v", ov)
	}

	inc, err := c.ReadMonthOverview(context.Background(), 2025, 2, core.Income)
	if err != nil {
		t.Fatalf("income: %v", err)
	}
	if inc.Total.String() != "2000.00" {
		t.Errorf("income = %+v", inc)
	}
}

func TestClient_ReadMonthOverviewInvalidMonth(t *testing.T) {
	c := testClient(newFakeValues())
	_, err := c.ReadMonthOverview(context.Background(), 2025, 0, core.Expense)
	if !errors.Is(err, core.ErrInvalidMonth) {
		t.Fatalf("expected ErrInvalidMonth, got %v", err)
	}
}

func TestClient_ReadErrorsAreWrapped(t *testing.T) {
	api := newFakeValues()
	api.getErr = errors.New("quota exceeded")
	c := testClient(api)

	_, err := c.ReadMonthlyTotals(context.Background(), 2025)
	if err == nil || !strings.Contains(err.Error(), "2025 Ledger!A:G") || !errors.Is(err, api.getErr) {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestClient_MonthlyTotalsAndBalances(t *testing.T) {
	api := newFakeValues()
	api.ranges["2025 Ledger!A:G"] = [][]any{
		{"2025-01-10", "A", "10.5", "expense", "Food"},
		{"2025-01-11", "B", "0.5", "expense", "Food"},
		{"2025-12-01", "C", "100", "income", "Work"},
	}
	api.ranges["Accounts!A:D"] = [][]any{
		{"Name", "Currency", "Symbol", "Balance"},
		{"Checking", "EUR", "€", "1500"},
	}
	c := testClient(api)

	mt, err := c.ReadMonthlyTotals(context.Background(), 2025)
	if err != nil {
		t.Fatalf("totals: %v", err)
	}
	if mt.Expenses[0].String() != "11" || mt.Income[11].String() != "100" {
		t.Errorf("totals = %+v", mt)
	}

	bals, err := c.ListAccountBalances(context.Background())
	if err != nil {
		t.Fatalf("balances: %v", err)
	}
	if len(bals) != 1 || bals[0].CurrencySymbol != "€" {
		t.Errorf("balances = %+v", bals)
	}
}

func TestYearPrefixedName(t *testing.T) {
	tests := []struct {
		baseName string
		year     int
		expected string
	}{
		{"Ledger", 2025, "2025 Ledger"},
		{"Dashboard", 2024, "2024 Dashboard"},
		{"", 2023, ""},
		{"Test Sheet", 2022, "2022 Test Sheet"},
		{"2025 Already Prefixed", 2024, "2025 Already Prefixed"},
	}

	for _, tt := range tests {
		got := yearPrefixedName(tt.baseName, tt.year)
		if got != tt.expected {
			t.Errorf("yearPrefixedName(%q, %d) = %q, want %q",
				tt.baseName, tt.year, got, tt.expected)
		}
	}
}
