package ledger

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"haybase/internal/core"
	"haybase/internal/metrics"
)

// AccountBalance is an account with its computed balance for a period.
type AccountBalance struct {
	core.ClassifiedAccount
	Balance decimal.Decimal `json:"balance"`
}

// DashboardView is the month overview: every account with its balance
// plus the class rollups and the latest bookings.
type DashboardView struct {
	Month              core.Month         `json:"month"`
	Accounts           []AccountBalance   `json:"accounts"`
	Rollups            core.Rollups       `json:"rollups"`
	RecentTransactions []core.Transaction `json:"recentTransactions"`
}

// monthEntries are the three booked entry sets for one aggregation run.
type monthEntries struct {
	transactions []core.Transaction
	transfers    []core.Transfer
	reserves     []core.Reserve
}

// fetchMonthEntries loads the three entry sets for a single month
// concurrently.
func (s *Service) fetchMonthEntries(ctx context.Context, userID, monthID string) (monthEntries, error) {
	var e monthEntries
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		e.transactions, err = s.store.TransactionsByMonth(ctx, userID, monthID)
		return err
	})
	g.Go(func() error {
		var err error
		e.transfers, err = s.store.TransfersByMonth(ctx, userID, monthID)
		return err
	})
	g.Go(func() error {
		var err error
		e.reserves, err = s.store.ReservesByMonth(ctx, userID, monthID)
		return err
	})
	if err := g.Wait(); err != nil {
		return monthEntries{}, fmt.Errorf("fetch month entries: %w", err)
	}
	return e, nil
}

// fetchEntriesThrough loads every booked entry filed against any month
// up to and including (year, month), concurrently.
func (s *Service) fetchEntriesThrough(ctx context.Context, userID string, year, month int) (monthEntries, error) {
	var e monthEntries
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		e.transactions, err = s.store.TransactionsThrough(ctx, userID, year, month)
		return err
	})
	g.Go(func() error {
		var err error
		e.transfers, err = s.store.TransfersThrough(ctx, userID, year, month)
		return err
	})
	g.Go(func() error {
		var err error
		e.reserves, err = s.store.ReservesThrough(ctx, userID, year, month)
		return err
	})
	if err := g.Wait(); err != nil {
		return monthEntries{}, fmt.Errorf("fetch entries through %d/%d: %w", month, year, err)
	}
	return e, nil
}

func balancesFor(accounts []core.ClassifiedAccount, e monthEntries) ([]AccountBalance, core.Rollups, error) {
	balances, err := core.ComputeBalances(accounts, e.transactions, e.transfers, e.reserves)
	if err != nil {
		return nil, core.Rollups{}, err
	}
	out := make([]AccountBalance, len(accounts))
	for i, a := range accounts {
		out[i] = AccountBalance{ClassifiedAccount: a, Balance: balances[a.ID]}
	}
	return out, core.ComputeRollups(accounts, balances), nil
}

// Dashboard aggregates one month. The month is addressed by period; a
// missing month is NotFound (plain listing context, nothing to hide).
func (s *Service) Dashboard(ctx context.Context, callerID string, year, month int) (DashboardView, error) {
	if callerID == "" {
		return DashboardView{}, core.Unauthenticated()
	}
	m, err := s.store.MonthByPeriod(ctx, callerID, year, month)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return DashboardView{}, core.NotFound("month")
		}
		return DashboardView{}, fmt.Errorf("load month: %w", err)
	}

	accounts, err := s.store.AccountsByUser(ctx, callerID)
	if err != nil {
		return DashboardView{}, fmt.Errorf("load accounts: %w", err)
	}
	entries, err := s.fetchMonthEntries(ctx, callerID, m.ID)
	if err != nil {
		return DashboardView{}, err
	}
	withBalances, rollups, err := balancesFor(accounts, entries)
	if err != nil {
		return DashboardView{}, err
	}
	metrics.BalanceComputations.Inc()

	recent := append([]core.Transaction(nil), entries.transactions...)
	sort.Slice(recent, func(i, j int) bool { return recent[i].Date.After(recent[j].Date) })
	if len(recent) > 10 {
		recent = recent[:10]
	}

	return DashboardView{
		Month:              m,
		Accounts:           withBalances,
		Rollups:            rollups,
		RecentTransactions: recent,
	}, nil
}

// NetWorthAt computes the cumulative rollups over every booked entry up
// to and including (year, month).
func (s *Service) NetWorthAt(ctx context.Context, callerID string, year, month int) (core.Rollups, error) {
	if callerID == "" {
		return core.Rollups{}, core.Unauthenticated()
	}
	accounts, err := s.store.AccountsByUser(ctx, callerID)
	if err != nil {
		return core.Rollups{}, fmt.Errorf("load accounts: %w", err)
	}
	entries, err := s.fetchEntriesThrough(ctx, callerID, year, month)
	if err != nil {
		return core.Rollups{}, err
	}
	_, rollups, err := balancesFor(accounts, entries)
	if err != nil {
		return core.Rollups{}, err
	}
	metrics.BalanceComputations.Inc()
	return rollups, nil
}

// PlanComparisonRow is one plan snapshot next to the actual net worth
// of its period.
type PlanComparisonRow struct {
	core.PlanSnapshot
	ActualNetWorth   decimal.Decimal `json:"actualNetWorth"`
	Difference       decimal.Decimal `json:"difference"`
	Percentage       float64         `json:"percentage"`
	MonthlyGrowth    float64         `json:"monthlyGrowth"`
	CumulativeGrowth float64         `json:"cumulativeGrowth"`
	AnnualizedGrowth float64         `json:"annualizedGrowth"`
}

// PlanComparison lines up every plan snapshot with the actual net worth
// to date of its period, plus growth rates relative to the first plan.
func (s *Service) PlanComparison(ctx context.Context, callerID string) ([]PlanComparisonRow, error) {
	if callerID == "" {
		return nil, core.Unauthenticated()
	}
	plans, err := s.store.PlanSnapshotsByUser(ctx, callerID)
	if err != nil {
		return nil, fmt.Errorf("load plans: %w", err)
	}

	rows := make([]PlanComparisonRow, len(plans))
	for i, p := range plans {
		actual, err := s.NetWorthAt(ctx, callerID, p.Year, p.Month)
		if err != nil {
			return nil, err
		}
		rows[i] = PlanComparisonRow{
			PlanSnapshot:   p,
			ActualNetWorth: actual.TotalNetWorth,
			Difference:     actual.TotalNetWorth.Sub(p.PlannedNetWorth),
			Percentage:     core.PercentDiff(actual.TotalNetWorth, p.PlannedNetWorth),
		}
	}
	for i := range rows {
		if i == 0 {
			continue
		}
		first, prev := rows[0], rows[i-1]
		rows[i].MonthlyGrowth = core.Growth(rows[i].ActualNetWorth, prev.ActualNetWorth)
		rows[i].CumulativeGrowth = core.Growth(rows[i].ActualNetWorth, first.ActualNetWorth)
		elapsed := core.MonthsBetween(first.Year, first.Month, rows[i].Year, rows[i].Month)
		rows[i].AnnualizedGrowth = core.AnnualizedGrowth(rows[i].ActualNetWorth, first.ActualNetWorth, elapsed)
	}
	return rows, nil
}

func (s *Service) ListPlans(ctx context.Context, callerID string) ([]core.PlanSnapshot, error) {
	if callerID == "" {
		return nil, core.Unauthenticated()
	}
	return s.store.PlanSnapshotsByUser(ctx, callerID)
}

// WealthPoint is one point of the wealth history series.
type WealthPoint struct {
	Date          time.Time       `json:"date"`
	Year          int             `json:"year"`
	Month         int             `json:"month"`
	TotalNetWorth decimal.Decimal `json:"totalNetWorth"`
	LiquidAssets  decimal.Decimal `json:"liquidAssets"`
	Investments   decimal.Decimal `json:"investments"`
	Reserves      decimal.Decimal `json:"reserves"`
	Liabilities   decimal.Decimal `json:"liabilities"`
	IsSnapshot    bool            `json:"isSnapshot"`
}

// WealthSeries returns the recorded snapshots in date order, appending
// the live current-month rollups when no snapshot covers this month.
func (s *Service) WealthSeries(ctx context.Context, callerID string) ([]WealthPoint, error) {
	if callerID == "" {
		return nil, core.Unauthenticated()
	}
	snapshots, err := s.store.WealthSnapshotsByUser(ctx, callerID)
	if err != nil {
		return nil, fmt.Errorf("load wealth snapshots: %w", err)
	}

	points := make([]WealthPoint, 0, len(snapshots)+1)
	for _, snap := range snapshots {
		points = append(points, WealthPoint{
			Date:          snap.Date,
			Year:          snap.Date.Year(),
			Month:         int(snap.Date.Month()),
			TotalNetWorth: snap.TotalNetWorth,
			LiquidAssets:  snap.LiquidAssets,
			Investments:   snap.Investments,
			Reserves:      snap.Reserves,
			Liabilities:   snap.Liabilities,
			IsSnapshot:    true,
		})
	}

	now := s.now()
	year, month := now.Year(), int(now.Month())
	current := false
	for _, p := range points {
		if p.Year == year && p.Month == month {
			current = true
			break
		}
	}
	if !current {
		rollups, err := s.NetWorthAt(ctx, callerID, year, month)
		if err != nil {
			return nil, err
		}
		points = append(points, WealthPoint{
			Date:          now,
			Year:          year,
			Month:         month,
			TotalNetWorth: rollups.TotalNetWorth,
			LiquidAssets:  rollups.LiquidTotal,
			Investments:   rollups.InvestmentTotal,
			Reserves:      rollups.ReserveTotal,
			Liabilities:   rollups.LiabilityTotal,
		})
	}
	sort.Slice(points, func(i, j int) bool { return points[i].Date.Before(points[j].Date) })
	return points, nil
}

// RecordWealthSnapshot computes the current to-date rollups and upserts
// the wealth snapshot for the current calendar month. Called by the
// snapshot worker, never from the HTTP surface.
func (s *Service) RecordWealthSnapshot(ctx context.Context, userID string) error {
	now := s.now()
	rollups, err := s.NetWorthAt(ctx, userID, now.Year(), int(now.Month()))
	if err != nil {
		return err
	}
	snap := core.WealthSnapshot{
		ID:            uuid.NewString(),
		UserID:        userID,
		Date:          now,
		TotalNetWorth: rollups.TotalNetWorth,
		LiquidAssets:  rollups.LiquidTotal,
		Investments:   rollups.InvestmentTotal,
		Reserves:      rollups.ReserveTotal,
		Liabilities:   rollups.LiabilityTotal,
	}
	if err := s.store.UpsertWealthSnapshot(ctx, snap); err != nil {
		return fmt.Errorf("upsert wealth snapshot: %w", err)
	}
	metrics.SnapshotsRecorded.Inc()
	return nil
}
