package calculator

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/mmynk/ledgersync/internal/models"
)

// DebtorBalance is the aggregated position of one debtor across all buckets.
type DebtorBalance struct {
	DebtorName string
	Total      decimal.Decimal // Sum of all debt entered
	Paid       decimal.Decimal // Sum of all payments allocated
	Remaining  decimal.Decimal // Outstanding balance
	OpenCount  int             // Buckets with a remaining balance
}

// Summary aggregates a ledger for display.
type Summary struct {
	TotalDebt        decimal.Decimal
	TotalPaid        decimal.Decimal
	TotalRemaining   decimal.Decimal
	DebtCount        int
	Debtors          []DebtorBalance // Ordered by remaining balance, largest first
	ConsumptionByDay map[string]int  // Date -> count
	ConsumptionTotal int
}

// Summarize computes per-debtor balances and ledger totals.
func Summarize(debts []models.DebtRecord, consumption []models.ConsumptionRecord) Summary {
	s := Summary{
		TotalDebt:        decimal.Zero,
		TotalPaid:        decimal.Zero,
		TotalRemaining:   decimal.Zero,
		DebtCount:        len(debts),
		ConsumptionByDay: make(map[string]int),
	}

	balances := make(map[string]*DebtorBalance)
	for _, d := range debts {
		bal, exists := balances[d.DebtorName]
		if !exists {
			bal = &DebtorBalance{
				DebtorName: d.DebtorName,
				Total:      decimal.Zero,
				Paid:       decimal.Zero,
				Remaining:  decimal.Zero,
			}
			balances[d.DebtorName] = bal
		}
		bal.Total = bal.Total.Add(d.TotalAmount)
		bal.Paid = bal.Paid.Add(d.PaidAmount)
		bal.Remaining = bal.Remaining.Add(d.RemainingAmount)
		if d.IsOpen() {
			bal.OpenCount++
		}

		s.TotalDebt = s.TotalDebt.Add(d.TotalAmount)
		s.TotalPaid = s.TotalPaid.Add(d.PaidAmount)
		s.TotalRemaining = s.TotalRemaining.Add(d.RemainingAmount)
	}

	for _, bal := range balances {
		s.Debtors = append(s.Debtors, *bal)
	}
	sort.Slice(s.Debtors, func(i, j int) bool {
		if c := s.Debtors[i].Remaining.Cmp(s.Debtors[j].Remaining); c != 0 {
			return c > 0
		}
		return s.Debtors[i].DebtorName < s.Debtors[j].DebtorName
	})

	for _, c := range consumption {
		s.ConsumptionByDay[c.Date] += c.Count
		s.ConsumptionTotal += c.Count
	}

	return s
}
