// Package services orchestrates sources, the chart bucketer and the chart
// cache.
package services

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"pfinance/internal/cache"
	"pfinance/internal/chart"
	"pfinance/internal/core"
	"pfinance/internal/events"
	"pfinance/internal/log"
	"pfinance/internal/sources"
)

const loadTimeout = 15 * time.Second

// Chart kinds, also used in cache keys and logs.
const (
	KindCategories = "categories"
	KindAccounts   = "accounts"
	KindTotals     = "totals"
)

var monthLabels = []string{"Jan", "Feb", "Mar", "Apr", "May", "Jun", "Jul", "Aug", "Sep", "Oct", "Nov", "Dec"}

type (
	PieChart = chart.Chart[chart.PieDataset]
	SetChart = chart.Chart[chart.SetDataset]
)

// Dashboard bundles every chart of one month.
type Dashboard struct {
	Year     int      `json:"year"`
	Month    int      `json:"month"`
	Expenses PieChart `json:"expenses"`
	Income   PieChart `json:"income"`
	Accounts PieChart `json:"accounts"`
	Totals   SetChart `json:"totals"`
}

// ChartService renders charts from a ChartSource and caches the result.
// Safe for concurrent use.
type ChartService struct {
	source sources.ChartSource
	cfg    chart.Config
	pies   *cache.LRUCache[PieChart]
	sets   *cache.LRUCache[SetChart]
	logger *log.Logger
	events *log.StructuredLogger
}

func NewChartService(source sources.ChartSource, cfg chart.Config, cacheSize int, ttl time.Duration, logger *log.Logger) *ChartService {
	if logger == nil {
		logger = log.Discard()
	}
	logger = logger.WithComponent(log.ComponentChart)
	return &ChartService{
		source: source,
		cfg:    cfg,
		pies:   cache.NewLRUCache[PieChart](cacheSize, ttl),
		sets:   cache.NewLRUCache[SetChart](cacheSize, ttl),
		logger: logger,
		events: log.NewStructuredLogger(logger),
	}
}

// Config returns the bucketing configuration in use.
func (s *ChartService) Config() chart.Config {
	return s.cfg
}

// CategoryChart buckets one month of expenses or income by category.
func (s *ChartService) CategoryChart(ctx context.Context, year, month int, typ core.TransactionType) (PieChart, error) {
	key := fmt.Sprintf("%s:%s:%04d-%02d", KindCategories, typ, year, month)
	c, cached, err := s.pies.GetOrLoad(key, func() (PieChart, error) {
		lctx, cancel := loadContext(ctx)
		defer cancel()

		ov, err := s.source.ReadMonthOverview(lctx, year, month, typ)
		if err != nil {
			return PieChart{}, fmt.Errorf("read %s overview %04d-%02d: %w", typ, year, month, err)
		}
		entries := make([]chart.Entry, 0, len(ov.ByCategory))
		for _, ca := range ov.ByCategory {
			entries = append(entries, chart.Entry{Label: ca.Name, Amount: ca.Amount.Amount})
		}
		return chart.PieChart(entries, s.cfg), nil
	})
	if err != nil {
		return PieChart{}, err
	}
	s.events.LogChartRendered(ctx, KindCategories, year, month, len(c.Labels), cached)
	return c, nil
}

// AccountChart buckets current account balances, one currency symbol per
// slice.
func (s *ChartService) AccountChart(ctx context.Context) (PieChart, error) {
	c, cached, err := s.pies.GetOrLoad(KindAccounts, func() (PieChart, error) {
		lctx, cancel := loadContext(ctx)
		defer cancel()

		balances, err := s.source.ListAccountBalances(lctx)
		if err != nil {
			return PieChart{}, fmt.Errorf("list account balances: %w", err)
		}
		entries := make([]chart.Entry, 0, len(balances))
		for _, b := range balances {
			entries = append(entries, chart.Entry{
				Label:          b.Name,
				Amount:         b.Balance.Amount,
				CurrencySymbol: b.CurrencySymbol,
				CurrencyCode:   b.CurrencyCode,
			})
		}
		return chart.MultiCurrencyPieChart(entries, s.cfg), nil
	})
	if err != nil {
		return PieChart{}, err
	}
	s.events.LogChartRendered(ctx, KindAccounts, 0, 0, len(c.Labels), cached)
	return c, nil
}

// TotalsChart renders expenses and income per month of year as two sets.
func (s *ChartService) TotalsChart(ctx context.Context, year int) (SetChart, error) {
	key := fmt.Sprintf("%s:%04d", KindTotals, year)
	c, cached, err := s.sets.GetOrLoad(key, func() (SetChart, error) {
		lctx, cancel := loadContext(ctx)
		defer cancel()

		mt, err := s.source.ReadMonthlyTotals(lctx, year)
		if err != nil {
			return SetChart{}, fmt.Errorf("read monthly totals %04d: %w", year, err)
		}
		return chart.MultiSet([]chart.Set{
			{
				Label:           "Expenses",
				Type:            "bar",
				BackgroundColor: s.cfg.Palette.Color(0),
				Entries:         points(mt.Expenses),
			},
			{
				Label:           "Income",
				Type:            "bar",
				BackgroundColor: s.cfg.Palette.Color(1),
				Entries:         points(mt.Income),
			},
		}), nil
	})
	if err != nil {
		return SetChart{}, err
	}
	s.events.LogChartRendered(ctx, KindTotals, year, 0, len(c.Labels), cached)
	return c, nil
}

// Dashboard loads every chart of the month concurrently. The first failure
// cancels the remaining loads.
func (s *ChartService) Dashboard(ctx context.Context, year, month int) (Dashboard, error) {
	d := Dashboard{Year: year, Month: month}
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() (err error) {
		d.Expenses, err = s.CategoryChart(gctx, year, month, core.Expense)
		return err
	})
	g.Go(func() (err error) {
		d.Income, err = s.CategoryChart(gctx, year, month, core.Income)
		return err
	})
	g.Go(func() (err error) {
		d.Accounts, err = s.AccountChart(gctx)
		return err
	})
	g.Go(func() (err error) {
		d.Totals, err = s.TotalsChart(gctx, year)
		return err
	})

	if err := g.Wait(); err != nil {
		return Dashboard{}, err
	}
	return d, nil
}

// Invalidate drops every cached chart.
func (s *ChartService) Invalidate() {
	s.pies.Clear()
	s.sets.Clear()
	s.logger.Debug("Chart cache invalidated", log.FieldOperation, log.OpInvalidate)
}

// HandleInvalidation drops cached charts when another instance reports a
// write. It is the handler passed to the events consumer.
func (s *ChartService) HandleInvalidation(msg *events.InvalidationMessage) error {
	s.Invalidate()
	s.logger.Info("Remote chart invalidation applied",
		log.FieldOperation, log.OpConsume,
		"source", msg.Source,
		"reason", msg.Reason,
		log.FieldYear, msg.Year,
		log.FieldMonth, msg.Month)
	return nil
}

// CleanExpired implements cache.Cleaner.
func (s *ChartService) CleanExpired() int {
	return s.pies.CleanExpired() + s.sets.CleanExpired()
}

// CacheStats reports counters of both chart caches.
func (s *ChartService) CacheStats() map[string]cache.Stats {
	return map[string]cache.Stats{
		"pie": s.pies.Stats(),
		"set": s.sets.Stats(),
	}
}

// loadContext detaches a cache fill from the caller that triggered it, since
// other callers may be waiting on the same load.
func loadContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), loadTimeout)
}

func points(months [12]decimal.Decimal) []chart.Point {
	out := make([]chart.Point, len(months))
	for i, v := range months {
		out[i] = chart.Point{Label: monthLabels[i], Value: v}
	}
	return out
}
