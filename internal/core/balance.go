package core

import (
	"fmt"
	"math"

	"github.com/shopspring/decimal"
)

// Balance aggregation. Pure functions over already-fetched,
// already-authorized value types: no I/O, no store access. The same
// routine serves the dashboard, month detail, plan comparison and
// wealth pages; callers choose the entry window (one month or
// everything up to a month).

// ComputeBalances walks every account and applies booked entries:
//
//   - non-Reserve accounts: signed transactions (income adds, expense
//     subtracts) and transfers (source debited, destination credited)
//   - Reserve accounts: only the signed reserve entries; transactions
//     and transfers on a reserve account never move its balance
//
// Planned entries are skipped. An account with an unclassifiable group
// is rejected rather than silently bucketed.
func ComputeBalances(accounts []ClassifiedAccount, transactions []Transaction, transfers []Transfer, reserves []Reserve) (map[string]decimal.Decimal, error) {
	balances := make(map[string]decimal.Decimal, len(accounts))

	for _, acct := range accounts {
		if acct.Class() == ClassUnknown {
			return nil, fmt.Errorf("account %s (%s): group %q has no classification", acct.ID, acct.Name, acct.Group.Code)
		}
		balances[acct.ID] = acct.InitialBalance
	}

	for _, acct := range accounts {
		balance := balances[acct.ID]

		if acct.Class() != ClassReserve {
			for _, t := range transactions {
				if t.AccountID != acct.ID || t.Status != StatusBooked {
					continue
				}
				if t.Type == Income {
					balance = balance.Add(t.Amount)
				} else {
					balance = balance.Sub(t.Amount)
				}
			}
			for _, tr := range transfers {
				if tr.Status != StatusBooked {
					continue
				}
				// An account can be source and destination of
				// different transfers in the same period.
				if tr.FromAccountID == acct.ID {
					balance = balance.Sub(tr.Amount)
				}
				if tr.ToAccountID == acct.ID {
					balance = balance.Add(tr.Amount)
				}
			}
		} else {
			for _, r := range reserves {
				if r.AccountID != acct.ID || r.Status != StatusBooked {
					continue
				}
				balance = balance.Add(r.Amount)
			}
		}

		balances[acct.ID] = balance
	}

	return balances, nil
}

// Rollups are the per-class totals over a set of computed balances.
// Reserves are subtracted from net worth: money set aside and earmarked
// is not freely available. (One page of a previous rendition added them
// instead; that was a defect, the subtraction rule is authoritative.)
type Rollups struct {
	LiquidTotal     decimal.Decimal `json:"liquidTotal"`
	InvestmentTotal decimal.Decimal `json:"investmentTotal"`
	ReserveTotal    decimal.Decimal `json:"reserveTotal"`
	LiabilityTotal  decimal.Decimal `json:"liabilityTotal"`
	TotalNetWorth   decimal.Decimal `json:"totalNetWorth"`
}

// ComputeRollups totals the balances per class. The liability total is
// carried for reporting and snapshots; it does not enter the net worth
// formula.
func ComputeRollups(accounts []ClassifiedAccount, balances map[string]decimal.Decimal) Rollups {
	var r Rollups
	for _, acct := range accounts {
		b := balances[acct.ID]
		switch acct.Class() {
		case ClassLiquid:
			r.LiquidTotal = r.LiquidTotal.Add(b)
		case ClassInvestment:
			r.InvestmentTotal = r.InvestmentTotal.Add(b)
		case ClassReserve:
			r.ReserveTotal = r.ReserveTotal.Add(b)
		case ClassLiability:
			r.LiabilityTotal = r.LiabilityTotal.Add(b)
		}
	}
	r.TotalNetWorth = r.LiquidTotal.Add(r.InvestmentTotal).Sub(r.ReserveTotal)
	return r
}

// MonthOnOrBefore reports whether (year, month) falls on or before the
// target period. To-date net worth expands the entry window with this
// predicate.
func MonthOnOrBefore(year, month, targetYear, targetMonth int) bool {
	if year != targetYear {
		return year < targetYear
	}
	return month <= targetMonth
}

// MonthsBetween returns the number of calendar months from (fromYear,
// fromMonth) to (toYear, toMonth).
func MonthsBetween(fromYear, fromMonth, toYear, toMonth int) int {
	return (toYear-fromYear)*12 + (toMonth - fromMonth)
}

// PercentDiff is the percentage deviation of actual from planned.
// A planned value of exactly zero yields 0, never NaN or Inf.
func PercentDiff(actual, planned decimal.Decimal) float64 {
	if planned.IsZero() {
		return 0
	}
	return actual.Sub(planned).Div(planned).InexactFloat64() * 100
}

// Growth is the relative change from previous to current in percent;
// 0 when there is no previous base.
func Growth(current, previous decimal.Decimal) float64 {
	if previous.IsZero() {
		return 0
	}
	return current.Sub(previous).Div(previous).InexactFloat64() * 100
}

// AnnualizedGrowth compounds the growth between the first and current
// actual net worth over the elapsed months to a yearly rate:
// ((current/first)^(12/months) - 1) * 100. Defined only for a non-zero
// base and at least one elapsed month; otherwise 0.
func AnnualizedGrowth(current, first decimal.Decimal, monthsElapsed int) float64 {
	if first.IsZero() || monthsElapsed <= 0 {
		return 0
	}
	ratio := current.Div(first).InexactFloat64()
	return (math.Pow(ratio, 12/float64(monthsElapsed)) - 1) * 100
}
