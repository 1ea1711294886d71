package models

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestDebtRecordValidate(t *testing.T) {
	d := func(v string) decimal.Decimal { return decimal.RequireFromString(v) }

	tests := []struct {
		name    string
		record  DebtRecord
		wantErr bool
	}{
		{
			name: "consistent record",
			record: DebtRecord{
				TotalAmount: d("100"), PaidAmount: d("40"), RemainingAmount: d("60"),
				Payments: []Payment{{Amount: d("30")}, {Amount: d("10")}},
			},
		},
		{
			name:    "zero total",
			record:  DebtRecord{TotalAmount: d("0"), PaidAmount: d("0"), RemainingAmount: d("0")},
			wantErr: true,
		},
		{
			name:    "remaining does not match",
			record:  DebtRecord{TotalAmount: d("100"), PaidAmount: d("40"), RemainingAmount: d("50"), Payments: []Payment{{Amount: d("40")}}},
			wantErr: true,
		},
		{
			name:    "payments do not sum to paid",
			record:  DebtRecord{TotalAmount: d("100"), PaidAmount: d("40"), RemainingAmount: d("60"), Payments: []Payment{{Amount: d("20")}}},
			wantErr: true,
		},
		{
			name:    "negative remaining",
			record:  DebtRecord{TotalAmount: d("10"), PaidAmount: d("20"), RemainingAmount: d("-10"), Payments: []Payment{{Amount: d("20")}}},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.record.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestCloneDoesNotAliasPayments(t *testing.T) {
	orig := DebtRecord{Payments: []Payment{{ID: "a"}}}
	c := orig.Clone()
	c.Payments[0].ID = "b"
	if orig.Payments[0].ID != "a" {
		t.Errorf("clone aliases payments: got %q", orig.Payments[0].ID)
	}
}

func TestTimeOfDayAt(t *testing.T) {
	morning := time.Date(2024, 1, 1, 11, 59, 0, 0, time.UTC)
	evening := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	if got := TimeOfDayAt(morning); got != Morning {
		t.Errorf("TimeOfDayAt(11:59) = %s, want morning", got)
	}
	if got := TimeOfDayAt(evening); got != Evening {
		t.Errorf("TimeOfDayAt(12:00) = %s, want evening", got)
	}
}
