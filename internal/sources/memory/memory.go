package memory

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/shopspring/decimal"

	"pfinance/internal/core"
	"pfinance/internal/sources"
)

var (
	_ sources.TransactionWriter = (*Store)(nil)
	_ sources.TaxonomyReader    = (*Store)(nil)
	_ sources.ChartSource       = (*Store)(nil)
	_ sources.AccountWriter     = (*Store)(nil)
)

// Store keeps everything in process memory. Safe for concurrent use.
type Store struct {
	mu       sync.Mutex
	cats     []string
	accounts []core.Account
	items    []core.Transaction
}

func New(cats []string) *Store {
	return &Store{cats: dedupe(cats)}
}

// NewFromFiles seeds categories from base/seed_categories.txt, falling back
// to a small default set when the file is missing or empty.
func NewFromFiles(base string) *Store {
	return NewFromFile(filepath.Join(base, "seed_categories.txt"))
}

// NewFromFile seeds categories from one file, one category per line.
func NewFromFile(path string) *Store {
	cats := ReadCategories(path)
	if len(cats) == 0 {
		cats = []string{"Housing", "Groceries", "Transport", "Salary"}
	}
	return New(cats)
}

// Append stores the transaction and returns a synthetic reference.
func (s *Store) Append(_ context.Context, t core.Transaction) (string, error) {
	if err := t.Validate(); err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if t.AccountID != 0 && s.account(t.AccountID) == nil {
		return "", fmt.Errorf("account %d: %w", t.AccountID, core.ErrUnknownAccount)
	}
	t.ID = int64(len(s.items) + 1)
	s.items = append(s.items, t)
	return fmt.Sprintf("mem:%d", t.ID), nil
}

// CreateAccount registers a and returns it with its assigned ID.
func (s *Store) CreateAccount(_ context.Context, a core.Account) (core.Account, error) {
	if err := a.Validate(); err != nil {
		return core.Account{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.accounts {
		if existing.Name == a.Name {
			return core.Account{}, fmt.Errorf("account %q: %w", a.Name, core.ErrDuplicateAccount)
		}
	}
	a.ID = int64(len(s.accounts) + 1)
	if a.OpeningBalance.Amount.IsZero() {
		a.OpeningBalance = core.Money{Amount: decimal.Zero}
	}
	s.accounts = append(s.accounts, a)
	return a, nil
}

// List returns the seeded categories followed by any category seen on a
// stored transaction.
func (s *Store) List(_ context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	all := append([]string(nil), s.cats...)
	for _, t := range s.items {
		all = append(all, t.Category)
	}
	return dedupe(all), nil
}

func (s *Store) ReadMonthOverview(_ context.Context, year, month int, typ core.TransactionType) (core.MonthOverview, error) {
	if month < 1 || month > 12 {
		return core.MonthOverview{}, fmt.Errorf("month %d: %w", month, core.ErrInvalidMonth)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	agg := core.NewAggregator()
	for _, t := range s.items {
		if t.Type != typ || t.Date.Year() != year || int(t.Date.Month()) != month {
			continue
		}
		agg.Add(t.Category, t.Amount.Amount)
	}
	return agg.Overview(year, month, typ), nil
}

// ListAccountBalances returns opening balance plus signed transactions for
// every account, in creation order.
func (s *Store) ListAccountBalances(_ context.Context) ([]core.AccountBalance, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]core.AccountBalance, 0, len(s.accounts))
	for _, a := range s.accounts {
		bal := a.OpeningBalance.Amount
		for _, t := range s.items {
			if t.AccountID == a.ID {
				bal = bal.Add(t.Signed().Amount)
			}
		}
		out = append(out, core.AccountBalance{
			Name:           a.Name,
			Balance:        core.Money{Amount: bal},
			CurrencySymbol: a.CurrencySymbol,
			CurrencyCode:   a.CurrencyCode,
		})
	}
	return out, nil
}

func (s *Store) ReadMonthlyTotals(_ context.Context, year int) (core.MonthlyTotals, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	mt := core.NewMonthlyTotals(year)
	for _, t := range s.items {
		mt.Add(t)
	}
	return mt, nil
}

func (s *Store) account(id int64) *core.Account {
	for i := range s.accounts {
		if s.accounts[i].ID == id {
			return &s.accounts[i]
		}
	}
	return nil
}

// ReadCategories reads one category per line, skipping blanks and # comments.
// A missing file yields nil.
func ReadCategories(path string) []string {
	f, err := os.Open(path)
	if err != nil {
		return nil
	}
	defer f.Close()
	var out []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		out = append(out, line)
	}
	return dedupe(out)
}

// dedupe trims, drops blanks and keeps the first occurrence of each value.
func dedupe(in []string) []string {
	seen := map[string]struct{}{}
	out := make([]string, 0, len(in))
	for _, v := range in {
		v = strings.TrimSpace(v)
		if v == "" {
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
