package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pfinance/internal/core"
)

func newTestRepo(t *testing.T) *SQLiteRepository {
	t.Helper()
	repo, err := NewSQLiteRepository(filepath.Join(t.TempDir(), "db", "test.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })
	return repo
}

func tx(date core.Date, amount string, typ core.TransactionType, category string, account int64) core.Transaction {
	return core.Transaction{
		Date:        date,
		Description: "test " + category,
		Amount:      core.Money{Amount: decimal.RequireFromString(amount)},
		Type:        typ,
		Category:    category,
		AccountID:   account,
	}
}

func TestRunMigrationsIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "m.db")
	require.NoError(t, RunMigrations(path))
	require.NoError(t, RunMigrations(path))
}

func TestAppendAndTaxonomy(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	require.NoError(t, repo.SeedCategories(ctx, []string{"Housing", "Food"}))
	require.NoError(t, repo.SeedCategories(ctx, []string{"Food"}))

	ref, err := repo.Append(ctx, tx(core.NewDate(2025, 3, 1), "12.34", core.Expense, "Travel", 0))
	require.NoError(t, err)
	assert.Equal(t, "1", ref)

	cats, err := repo.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"Housing", "Food", "Travel"}, cats)
}

func TestAppendRejectsInvalid(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	_, err := repo.Append(ctx, tx(core.NewDate(2025, 3, 1), "1", core.Expense, "", 0))
	assert.ErrorIs(t, err, core.ErrEmptyCategory)

	_, err = repo.Append(ctx, tx(core.NewDate(2025, 3, 1), "1", core.Expense, "Food", 99))
	assert.True(t, errors.Is(err, core.ErrUnknownAccount), "got %v", err)
}

func TestReadMonthOverviewIsExact(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	for _, tr := range []core.Transaction{
		tx(core.NewDate(2025, 3, 1), "0.10", core.Expense, "Food", 0),
		tx(core.NewDate(2025, 3, 2), "0.20", core.Expense, "Food", 0),
		tx(core.NewDate(2025, 3, 31), "700", core.Expense, "Housing", 0),
		tx(core.NewDate(2025, 3, 15), "2500", core.Income, "Salary", 0),
		tx(core.NewDate(2025, 4, 1), "50", core.Expense, "Food", 0),
		tx(core.NewDate(2025, 2, 28), "50", core.Expense, "Food", 0),
	} {
		_, err := repo.Append(ctx, tr)
		require.NoError(t, err)
	}

	ov, err := repo.ReadMonthOverview(ctx, 2025, 3, core.Expense)
	require.NoError(t, err)
	assert.Equal(t, "700.30", ov.Total.String())
	require.Len(t, ov.ByCategory, 2)
	assert.Equal(t, "Food", ov.ByCategory[0].Name)
	assert.True(t, ov.ByCategory[0].Amount.Amount.Equal(decimal.RequireFromString("0.3")))

	inc, err := repo.ReadMonthOverview(ctx, 2025, 3, core.Income)
	require.NoError(t, err)
	assert.Equal(t, "2500.00", inc.Total.String())

	empty, err := repo.ReadMonthOverview(ctx, 2024, 3, core.Expense)
	require.NoError(t, err)
	assert.Empty(t, empty.ByCategory)
	assert.True(t, empty.Total.Amount.IsZero())

	_, err = repo.ReadMonthOverview(ctx, 2025, 13, core.Expense)
	assert.ErrorIs(t, err, core.ErrInvalidMonth)
}

func TestListAccountBalances(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	checking, err := repo.CreateAccount(ctx, core.Account{
		Name: "Checking", CurrencyCode: "EUR", CurrencySymbol: "€",
		OpeningBalance: core.Money{Amount: decimal.RequireFromString("1000.50")},
	})
	require.NoError(t, err)
	_, err = repo.CreateAccount(ctx, core.Account{Name: "Brokerage", CurrencyCode: "USD", CurrencySymbol: "$"})
	require.NoError(t, err)

	_, err = repo.Append(ctx, tx(core.NewDate(2025, 1, 2), "0.50", core.Expense, "Fees", checking.ID))
	require.NoError(t, err)
	_, err = repo.Append(ctx, tx(core.NewDate(2025, 1, 3), "100", core.Income, "Salary", checking.ID))
	require.NoError(t, err)
	_, err = repo.Append(ctx, tx(core.NewDate(2025, 1, 3), "5", core.Expense, "Cash", 0))
	require.NoError(t, err)

	bals, err := repo.ListAccountBalances(ctx)
	require.NoError(t, err)
	require.Len(t, bals, 2)
	assert.Equal(t, "Checking", bals[0].Name)
	assert.Equal(t, "1100.00", bals[0].Balance.String())
	assert.Equal(t, "€", bals[0].CurrencySymbol)
	assert.Equal(t, "Brokerage", bals[1].Name)
	assert.True(t, bals[1].Balance.Amount.IsZero())
	assert.Equal(t, "USD", bals[1].CurrencyCode)
}

func TestCreateAccountValidates(t *testing.T) {
	repo := newTestRepo(t)
	_, err := repo.CreateAccount(context.Background(), core.Account{Name: "", CurrencyCode: "EUR"})
	assert.ErrorIs(t, err, core.ErrEmptyAccountName)
}

func TestReadMonthlyTotals(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	for _, tr := range []core.Transaction{
		tx(core.NewDate(2025, 1, 1), "10.01", core.Expense, "Food", 0),
		tx(core.NewDate(2025, 1, 31), "0.99", core.Expense, "Food", 0),
		tx(core.NewDate(2025, 12, 31), "300", core.Income, "Salary", 0),
		tx(core.NewDate(2026, 1, 1), "999", core.Expense, "Food", 0),
	} {
		_, err := repo.Append(ctx, tr)
		require.NoError(t, err)
	}

	mt, err := repo.ReadMonthlyTotals(ctx, 2025)
	require.NoError(t, err)
	assert.Equal(t, 2025, mt.Year)
	assert.Equal(t, "11", mt.Expenses[0].String())
	assert.Equal(t, "300", mt.Income[11].String())
	assert.True(t, mt.Expenses[11].IsZero())
}

func TestPing(t *testing.T) {
	repo := newTestRepo(t)
	assert.NoError(t, repo.Ping(context.Background()))
}

func TestCreateAccountRejectsDuplicateName(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	_, err := repo.CreateAccount(ctx, core.Account{Name: "Checking", CurrencyCode: "EUR"})
	require.NoError(t, err)

	_, err = repo.CreateAccount(ctx, core.Account{Name: "Checking", CurrencyCode: "USD"})
	assert.ErrorIs(t, err, core.ErrDuplicateAccount)

	bals, err := repo.ListAccountBalances(ctx)
	require.NoError(t, err)
	assert.Len(t, bals, 1)
}
