// Package models defines the core domain models for the debt ledger.
//
// # Models
//
//   - Owner: the identity every record is scoped to, plus its password hash
//   - DebtRecord: one accumulating bucket of debt for a debtor on a given day and time of day
//   - Payment: an immutable slice of a payment allocated to one DebtRecord
//   - ConsumptionRecord: one entry of the qat consumption log
//   - Snapshot: the full remote state of one owner at one instant
//   - Backup: the automatic copy written before a bulk reset
//
// # Invariants
//
// For every DebtRecord:
//
//  1. RemainingAmount = TotalAmount - PaidAmount
//  2. PaidAmount >= 0, RemainingAmount >= 0, TotalAmount > 0
//  3. the payments sum to PaidAmount
//
// Amounts use decimal.Decimal so these hold exactly.
//
// Relationships use ID strings rather than pointers, so records can be
// copied and serialized without aliasing.
package models
