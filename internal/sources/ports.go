// Package sources declares the outbound ports the chart and ledger services
// read from and write to. Implementations live in the sub-packages and in
// internal/storage.
package sources

import (
	"context"

	"pfinance/internal/core"
)

// Ports for outbound adapters.
type (
	TransactionWriter interface {
		Append(ctx context.Context, t core.Transaction) (ref string, err error)
	}

	TaxonomyReader interface {
		List(ctx context.Context) (categories []string, err error)
	}

	// CategoryReader aggregates one month of transactions of a single type by
	// category.
	CategoryReader interface {
		ReadMonthOverview(ctx context.Context, year, month int, typ core.TransactionType) (core.MonthOverview, error)
	}

	// BalanceReader reports the current balance of every account.
	BalanceReader interface {
		ListAccountBalances(ctx context.Context) ([]core.AccountBalance, error)
	}

	// TotalsReader returns per-month expense and income sums for a year.
	TotalsReader interface {
		ReadMonthlyTotals(ctx context.Context, year int) (core.MonthlyTotals, error)
	}

	// AccountWriter registers accounts. Sheet-backed sources manage accounts
	// in the spreadsheet and do not implement it.
	AccountWriter interface {
		CreateAccount(ctx context.Context, a core.Account) (core.Account, error)
	}

	// ChartSource is everything the chart service reads.
	ChartSource interface {
		CategoryReader
		BalanceReader
		TotalsReader
	}
)
