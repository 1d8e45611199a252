// Package storage is the SQLite implementation of the chart and ledger
// ports. Amounts are stored as decimal TEXT and summed in Go; SQLite's SUM
// works on floating point.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"pfinance/internal/core"
	"pfinance/internal/log"
	"pfinance/internal/sources"
)

var (
	_ sources.TransactionWriter = (*SQLiteRepository)(nil)
	_ sources.TaxonomyReader    = (*SQLiteRepository)(nil)
	_ sources.ChartSource       = (*SQLiteRepository)(nil)
	_ sources.AccountWriter     = (*SQLiteRepository)(nil)
)

const dateLayout = time.DateOnly

type SQLiteRepository struct {
	db     *sql.DB
	logger *log.Logger
}

func NewSQLiteRepository(dbPath string, logger *log.Logger) (*SQLiteRepository, error) {
	if logger == nil {
		logger = log.Discard()
	}
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return &SQLiteRepository{
		db:     db,
		logger: logger.WithComponent(log.ComponentStorage),
	}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Ping reports whether the database is reachable.
func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// SeedCategories inserts any category not yet known, keeping existing order.
func (r *SQLiteRepository) SeedCategories(ctx context.Context, names []string) error {
	for _, n := range names {
		if _, err := r.db.ExecContext(ctx, `INSERT OR IGNORE INTO categories (name) VALUES (?)`, n); err != nil {
			return fmt.Errorf("seed category %q: %w", n, err)
		}
	}
	return nil
}

// Append stores t and returns its row ID. Its category is registered in the
// same database transaction.
func (r *SQLiteRepository) Append(ctx context.Context, t core.Transaction) (string, error) {
	if err := t.Validate(); err != nil {
		return "", err
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	var accountID sql.NullInt64
	if t.AccountID != 0 {
		var exists bool
		if err := tx.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM accounts WHERE id = ?)`, t.AccountID).Scan(&exists); err != nil {
			return "", fmt.Errorf("check account: %w", err)
		}
		if !exists {
			return "", fmt.Errorf("account %d: %w", t.AccountID, core.ErrUnknownAccount)
		}
		accountID = sql.NullInt64{Int64: t.AccountID, Valid: true}
	}

	if _, err := tx.ExecContext(ctx, `INSERT OR IGNORE INTO categories (name) VALUES (?)`, t.Category); err != nil {
		return "", fmt.Errorf("register category: %w", err)
	}

	res, err := tx.ExecContext(ctx,
		`INSERT INTO transactions (date, description, amount, type, category, account_id, currency_code)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		t.Date.Format(dateLayout), t.Description, t.Amount.Amount.String(), string(t.Type),
		t.Category, accountID, t.CurrencyCode)
	if err != nil {
		return "", fmt.Errorf("insert transaction: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return "", fmt.Errorf("last insert id: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("commit: %w", err)
	}

	r.logger.DebugContext(ctx, "Transaction saved to SQLite",
		"id", id,
		log.FieldTxType, t.Type,
		log.FieldTxCategory, t.Category,
		log.FieldAmount, t.Amount.String())

	return strconv.FormatInt(id, 10), nil
}

// CreateAccount inserts a and returns it with its ID.
func (r *SQLiteRepository) CreateAccount(ctx context.Context, a core.Account) (core.Account, error) {
	if err := a.Validate(); err != nil {
		return core.Account{}, err
	}
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO accounts (name, currency_code, currency_symbol, opening_balance) VALUES (?, ?, ?, ?)`,
		a.Name, a.CurrencyCode, a.CurrencySymbol, a.OpeningBalance.Amount.String())
	if err != nil {
		if isUniqueViolation(err) {
			return core.Account{}, fmt.Errorf("account %q: %w", a.Name, core.ErrDuplicateAccount)
		}
		return core.Account{}, fmt.Errorf("insert account: %w", err)
	}
	if a.ID, err = res.LastInsertId(); err != nil {
		return core.Account{}, fmt.Errorf("last insert id: %w", err)
	}
	return a, nil
}

// List implements sources.TaxonomyReader
func (r *SQLiteRepository) List(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT name FROM categories ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		out = append(out, name)
	}
	return out, rows.Err()
}

// ReadMonthOverview implements sources.CategoryReader
func (r *SQLiteRepository) ReadMonthOverview(ctx context.Context, year, month int, typ core.TransactionType) (core.MonthOverview, error) {
	if month < 1 || month > 12 {
		return core.MonthOverview{}, fmt.Errorf("month %d: %w", month, core.ErrInvalidMonth)
	}
	from := time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.UTC)
	to := from.AddDate(0, 1, 0)

	rows, err := r.db.QueryContext(ctx,
		`SELECT category, amount FROM transactions
		 WHERE type = ? AND date >= ? AND date < ?
		 ORDER BY date, id`,
		string(typ), from.Format(dateLayout), to.Format(dateLayout))
	if err != nil {
		return core.MonthOverview{}, fmt.Errorf("query month overview: %w", err)
	}
	defer rows.Close()

	agg := core.NewAggregator()
	for rows.Next() {
		var category, raw string
		if err := rows.Scan(&category, &raw); err != nil {
			return core.MonthOverview{}, fmt.Errorf("scan transaction: %w", err)
		}
		amount, err := decimal.NewFromString(raw)
		if err != nil {
			return core.MonthOverview{}, fmt.Errorf("corrupt amount %q: %w", raw, err)
		}
		agg.Add(category, amount)
	}
	if err := rows.Err(); err != nil {
		return core.MonthOverview{}, fmt.Errorf("iterate transactions: %w", err)
	}
	return agg.Overview(year, month, typ), nil
}

// ListAccountBalances implements sources.BalanceReader
func (r *SQLiteRepository) ListAccountBalances(ctx context.Context) ([]core.AccountBalance, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT a.id, a.name, a.currency_code, a.currency_symbol, a.opening_balance, t.amount, t.type
		 FROM accounts a
		 LEFT JOIN transactions t ON t.account_id = a.id
		 ORDER BY a.id, t.id`)
	if err != nil {
		return nil, fmt.Errorf("query balances: %w", err)
	}
	defer rows.Close()

	var (
		out    []core.AccountBalance
		lastID int64 = -1
	)
	for rows.Next() {
		var (
			id                   int64
			name, code, sym, obs string
			amount, typ          sql.NullString
		)
		if err := rows.Scan(&id, &name, &code, &sym, &obs, &amount, &typ); err != nil {
			return nil, fmt.Errorf("scan balance: %w", err)
		}
		if id != lastID {
			opening, err := decimal.NewFromString(obs)
			if err != nil {
				return nil, fmt.Errorf("corrupt opening balance for %s: %w", name, err)
			}
			out = append(out, core.AccountBalance{
				Name:           name,
				Balance:        core.Money{Amount: opening},
				CurrencySymbol: sym,
				CurrencyCode:   code,
			})
			lastID = id
		}
		if !amount.Valid {
			continue
		}
		d, err := decimal.NewFromString(amount.String)
		if err != nil {
			return nil, fmt.Errorf("corrupt amount %q: %w", amount.String, err)
		}
		if core.TransactionType(typ.String) == core.Expense {
			d = d.Neg()
		}
		cur := &out[len(out)-1]
		cur.Balance = core.Money{Amount: cur.Balance.Amount.Add(d)}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate balances: %w", err)
	}
	return out, nil
}

// ReadMonthlyTotals implements sources.TotalsReader
func (r *SQLiteRepository) ReadMonthlyTotals(ctx context.Context, year int) (core.MonthlyTotals, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT date, amount, type FROM transactions WHERE date >= ? AND date < ?`,
		fmt.Sprintf("%04d-01-01", year), fmt.Sprintf("%04d-01-01", year+1))
	if err != nil {
		return core.MonthlyTotals{}, fmt.Errorf("query monthly totals: %w", err)
	}
	defer rows.Close()

	mt := core.NewMonthlyTotals(year)
	for rows.Next() {
		var date, raw, typ string
		if err := rows.Scan(&date, &raw, &typ); err != nil {
			return core.MonthlyTotals{}, fmt.Errorf("scan transaction: %w", err)
		}
		t, err := rowTransaction(date, raw, typ)
		if err != nil {
			return core.MonthlyTotals{}, err
		}
		mt.Add(t)
	}
	if err := rows.Err(); err != nil {
		return core.MonthlyTotals{}, fmt.Errorf("iterate transactions: %w", err)
	}
	return mt, nil
}

func rowTransaction(date, amount, typ string) (core.Transaction, error) {
	d, err := time.Parse(dateLayout, date)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("corrupt date %q: %w", date, err)
	}
	a, err := decimal.NewFromString(amount)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("corrupt amount %q: %w", amount, err)
	}
	tt := core.TransactionType(typ)
	if !tt.IsValid() {
		return core.Transaction{}, errors.New("corrupt transaction type " + typ)
	}
	return core.Transaction{Date: core.Date{Time: d}, Amount: core.Money{Amount: a}, Type: tt}, nil
}

func isUniqueViolation(err error) bool {
	var sqliteErr *sqlite.Error
	return errors.As(err, &sqliteErr) && sqliteErr.Code() == sqlite3.SQLITE_CONSTRAINT_UNIQUE
}
