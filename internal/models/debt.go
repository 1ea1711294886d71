package models

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// DateLayout is the calendar-day format used for debt, payment and
// consumption dates.
const DateLayout = "2006-01-02"

// TimeOfDay distinguishes the two daily debt buckets.
type TimeOfDay string

const (
	Morning TimeOfDay = "morning"
	Evening TimeOfDay = "evening"
)

// Valid reports whether t is one of the known times of day.
func (t TimeOfDay) Valid() bool {
	return t == Morning || t == Evening
}

// TimeOfDayAt returns Morning before noon and Evening otherwise.
func TimeOfDayAt(at time.Time) TimeOfDay {
	if at.Hour() < 12 {
		return Morning
	}
	return Evening
}

// ParseDate validates a YYYY-MM-DD calendar day.
func ParseDate(s string) (time.Time, error) {
	d, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: %w", s, err)
	}
	return d, nil
}

// BucketKey identifies one accumulating DebtRecord.
type BucketKey struct {
	DebtorName string
	Date       string
	TimeOfDay  TimeOfDay
}

// DebtRecord is the running debt of one debtor for one (date, time of day)
// bucket. A repeated entry for the same bucket increments the record instead
// of creating a new one.
type DebtRecord struct {
	// ID is the unique identifier for the record (UUID format).
	ID string `json:"id"`

	// OwnerID scopes the record to an Owner.
	OwnerID string `json:"ownerId"`

	// DebtorName is the trimmed name of the person who owes.
	DebtorName string `json:"name"`

	TotalAmount     decimal.Decimal `json:"totalAmount"`
	PaidAmount      decimal.Decimal `json:"paidAmount"`
	RemainingAmount decimal.Decimal `json:"remainingAmount"`

	// Date is the calendar day of the bucket (YYYY-MM-DD).
	Date string `json:"date"`

	TimeOfDay TimeOfDay `json:"timeOfDay"`

	// Payments are ordered newest first.
	Payments []Payment `json:"payments"`

	// CreatedAt is the Unix timestamp of the first entry in the bucket.
	CreatedAt int64 `json:"createdAt"`
}

// Payment is one allocated slice of a payment. It is immutable once created.
type Payment struct {
	ID     string          `json:"id"`
	Amount decimal.Decimal `json:"amount"`
	Date   string          `json:"date"`
}

// Key returns the bucket key of the record.
func (d *DebtRecord) Key() BucketKey {
	return BucketKey{DebtorName: d.DebtorName, Date: d.Date, TimeOfDay: d.TimeOfDay}
}

// IsOpen reports whether the record still has an outstanding balance.
func (d *DebtRecord) IsOpen() bool {
	return d.RemainingAmount.IsPositive()
}

// Clone returns a deep copy of the record.
func (d DebtRecord) Clone() DebtRecord {
	c := d
	if d.Payments != nil {
		c.Payments = make([]Payment, len(d.Payments))
		copy(c.Payments, d.Payments)
	}
	return c
}

// Validate checks the per-record invariants.
func (d *DebtRecord) Validate() error {
	if !d.TotalAmount.IsPositive() {
		return fmt.Errorf("debt %s: total amount %s must be positive", d.ID, d.TotalAmount)
	}
	if d.PaidAmount.IsNegative() {
		return fmt.Errorf("debt %s: paid amount %s is negative", d.ID, d.PaidAmount)
	}
	if d.RemainingAmount.IsNegative() {
		return fmt.Errorf("debt %s: remaining amount %s is negative", d.ID, d.RemainingAmount)
	}
	if !d.TotalAmount.Sub(d.PaidAmount).Equal(d.RemainingAmount) {
		return fmt.Errorf("debt %s: remaining %s != total %s - paid %s",
			d.ID, d.RemainingAmount, d.TotalAmount, d.PaidAmount)
	}
	sum := decimal.Zero
	for _, p := range d.Payments {
		sum = sum.Add(p.Amount)
	}
	if !sum.Equal(d.PaidAmount) {
		return fmt.Errorf("debt %s: payments sum %s != paid %s", d.ID, sum, d.PaidAmount)
	}
	return nil
}

// CloneDebts deep-copies a slice of records.
func CloneDebts(debts []DebtRecord) []DebtRecord {
	out := make([]DebtRecord, len(debts))
	for i := range debts {
		out[i] = debts[i].Clone()
	}
	return out
}
