package calculator

import (
	"errors"
	"sort"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/mmynk/ledgersync/internal/models"
)

var (
	ErrInvalidAmount = errors.New("payment amount must be positive")
	ErrNoOpenDebts   = errors.New("debtor has no open debts")
)

// AllocationLine records how much of a payment went to one debt bucket.
type AllocationLine struct {
	DebtID         string
	Date           string
	Amount         decimal.Decimal
	RemainingAfter decimal.Decimal
}

// Allocation is the result of distributing one payment over a debtor's
// open buckets. Updated holds copies of the touched records with the new
// payment prepended; the caller commits them.
type Allocation struct {
	Updated []models.DebtRecord
	Lines   []AllocationLine

	// Applied is the part of the payment that reduced some debt.
	Applied decimal.Decimal

	// Overpay is the part of the payment that exceeded the total remaining
	// debt. It is reported, never applied.
	Overpay decimal.Decimal
}

// Allocate distributes amount over the open buckets in debts, oldest date
// first. Buckets sharing a date keep their input order. The input slice is
// not modified.
//
// Algorithm:
//   - keep buckets with RemainingAmount > 0
//   - stable sort ascending by Date
//   - for each bucket take min(left, remaining), record a Payment dated date
//   - stop when nothing is left or buckets run out
//
// The applied total equals min(amount, sum of remaining).
func Allocate(debts []models.DebtRecord, amount decimal.Decimal, date string) (*Allocation, error) {
	if !amount.IsPositive() {
		return nil, ErrInvalidAmount
	}

	var open []models.DebtRecord
	for i := range debts {
		if debts[i].IsOpen() {
			open = append(open, debts[i].Clone())
		}
	}
	if len(open) == 0 {
		return nil, ErrNoOpenDebts
	}

	// ISO dates compare correctly as strings
	sort.SliceStable(open, func(i, j int) bool {
		return open[i].Date < open[j].Date
	})

	result := &Allocation{Applied: decimal.Zero}
	left := amount
	for i := range open {
		if !left.IsPositive() {
			break
		}
		bucket := &open[i]
		part := decimal.Min(left, bucket.RemainingAmount)

		bucket.RemainingAmount = bucket.RemainingAmount.Sub(part)
		bucket.PaidAmount = bucket.PaidAmount.Add(part)
		payment := models.Payment{
			ID:     uuid.New().String(),
			Amount: part,
			Date:   date,
		}
		bucket.Payments = append([]models.Payment{payment}, bucket.Payments...)
		left = left.Sub(part)

		result.Updated = append(result.Updated, *bucket)
		result.Lines = append(result.Lines, AllocationLine{
			DebtID:         bucket.ID,
			Date:           bucket.Date,
			Amount:         part,
			RemainingAfter: bucket.RemainingAmount,
		})
		result.Applied = result.Applied.Add(part)
	}
	result.Overpay = left

	return result, nil
}
