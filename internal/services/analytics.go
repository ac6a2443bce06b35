// Package services orchestrates ledger queries into the results the
// dashboard shows: grouped spend totals and per-card billing-cycle
// statements.
package services

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"spendview/internal/cache"
	"spendview/internal/core"
	"spendview/internal/storage"
)

// Ledger is the read-only slice of the storage layer the analytics need.
type Ledger interface {
	SumSpend(ctx context.Context, f core.Filter, g core.GroupBy) ([]core.SpendRow, error)
	ListActiveCreditCards(ctx context.Context, methodName string) ([]storage.CreditCard, error)
	SumSourceSpendBetween(ctx context.Context, sourceID int64, start, end core.Date) (int64, int, error)
}

// AnalyticsService answers aggregation and statement queries. Each call is a
// pure function of the ledger snapshot and its arguments; a short TTL cache
// in front of the ledger reproduces the dashboard's connection-reuse window.
type AnalyticsService struct {
	ledger           Ledger
	creditCardMethod string
	queryTimeout     time.Duration
	spendCache       *cache.LRUCache[[]core.SpendRow]
}

func NewAnalyticsService(ledger Ledger, creditCardMethod string, queryTimeout, cacheTTL time.Duration) *AnalyticsService {
	s := &AnalyticsService{
		ledger:           ledger,
		creditCardMethod: creditCardMethod,
		queryTimeout:     queryTimeout,
		spendCache:       cache.NewLRUCache[[]core.SpendRow](200, cacheTTL),
	}
	s.spendCache.StartCleanup(time.Minute)
	return s
}

// Close stops the cache maintenance goroutine.
func (s *AnalyticsService) Close() {
	s.spendCache.Stop()
}

// Aggregate sums live spend grouped on g, narrowed by f. An empty slice is
// a valid "no data for this period" outcome, not an error.
func (s *AnalyticsService) Aggregate(ctx context.Context, f core.Filter, g core.GroupBy) ([]core.SpendRow, error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}
	if _, err := core.ParseGroupBy(string(g)); err != nil {
		return nil, err
	}

	key := spendCacheKey(f, g)
	if rows, found := s.spendCache.Get(key); found {
		slog.DebugContext(ctx, "Spend cache hit", "group_by", g, "key", key)
		out := make([]core.SpendRow, len(rows))
		copy(out, rows)
		return out, nil
	}

	cctx, cancel := context.WithTimeout(ctx, s.queryTimeout)
	defer cancel()

	rows, err := s.ledger.SumSpend(cctx, f, g)
	if err != nil {
		slog.ErrorContext(ctx, "Spend aggregation failed", "group_by", g, "error", err)
		return nil, fmt.Errorf("aggregate by %s: %w", g, core.ErrBackendUnavailable)
	}

	// Calendar groups carry a numeric key; give months their display name.
	if g == core.GroupByMonthOfYear {
		for i := range rows {
			rows[i].Label = core.MonthName(int(rows[i].Key))
		}
	}

	s.spendCache.Set(key, rows)
	out := make([]core.SpendRow, len(rows))
	copy(out, rows)
	return out, nil
}

// CurrentStatements computes the billing-cycle balance of every active
// credit card as of the given date. Cards whose window holds no live spend
// are omitted. Results come back ordered by statement day.
func (s *AnalyticsService) CurrentStatements(ctx context.Context, asOf time.Time) ([]core.CardStatement, error) {
	cctx, cancel := context.WithTimeout(ctx, s.queryTimeout)
	defer cancel()

	cards, err := s.ledger.ListActiveCreditCards(cctx, s.creditCardMethod)
	if err != nil {
		slog.ErrorContext(ctx, "Card listing failed", "error", err)
		return nil, fmt.Errorf("list credit cards: %w", core.ErrBackendUnavailable)
	}

	var statements []core.CardStatement
	for _, card := range cards {
		start, end, err := core.BillingCycle(asOf, card.StatementDay)
		if err != nil {
			slog.WarnContext(ctx, "Skipping card with invalid statement day",
				"card", card.Name, "statement_day", card.StatementDay, "error", err)
			continue
		}

		total, n, err := s.ledger.SumSourceSpendBetween(cctx, card.SourceID, start, end)
		if err != nil {
			slog.ErrorContext(ctx, "Statement sum failed", "card", card.Name, "error", err)
			return nil, fmt.Errorf("statement for %s: %w", card.Name, core.ErrBackendUnavailable)
		}
		if n == 0 {
			// No spend in the window: no statement row.
			continue
		}

		statements = append(statements, core.CardStatement{
			SourceID:     card.SourceID,
			CardName:     card.Name,
			SourceName:   card.SourceName,
			StatementDay: card.StatementDay,
			CycleStart:   start,
			CycleEnd:     end,
			BalanceCents: total,
		})
	}
	return statements, nil
}

func spendCacheKey(f core.Filter, g core.GroupBy) string {
	return string(g) +
		"|y=" + strconv.Itoa(f.Year) +
		"|m=" + strconv.Itoa(f.Month) +
		"|pm=" + strconv.FormatInt(f.MethodID, 10) +
		"|ps=" + strconv.FormatInt(f.SourceID, 10)
}
