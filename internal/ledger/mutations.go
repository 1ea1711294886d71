package ledger

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/mmynk/ledgersync/internal/auth"
	"github.com/mmynk/ledgersync/internal/calculator"
	"github.com/mmynk/ledgersync/internal/models"
	"github.com/mmynk/ledgersync/internal/storage"
)

func validateName(field, name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", &ValidationError{Field: field, Reason: "must not be empty"}
	}
	return name, nil
}

func validateAmount(amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return &ValidationError{Field: "amount", Reason: fmt.Sprintf("%s is not positive", amount)}
	}
	return nil
}

func validateDate(date string) error {
	if _, err := models.ParseDate(date); err != nil {
		return &ValidationError{Field: "date", Reason: err.Error()}
	}
	return nil
}

// findBucketLocked returns the index of the record for key, or -1.
func (s *Session) findBucketLocked(key models.BucketKey) int {
	for i := range s.debts {
		if s.debts[i].Key() == key {
			return i
		}
	}
	return -1
}

// CreateOrIncrementDebt adds amount to the bucket (debtorName, date,
// timeOfDay), creating the record on first entry.
func (s *Session) CreateOrIncrementDebt(ctx context.Context, debtorName string, amount decimal.Decimal, date string, timeOfDay models.TimeOfDay) (models.DebtRecord, error) {
	name, err := validateName("debtor name", debtorName)
	if err != nil {
		return models.DebtRecord{}, err
	}
	if err := validateAmount(amount); err != nil {
		return models.DebtRecord{}, err
	}
	if err := validateDate(date); err != nil {
		return models.DebtRecord{}, err
	}
	if !timeOfDay.Valid() {
		return models.DebtRecord{}, &ValidationError{Field: "time of day", Reason: fmt.Sprintf("unknown value %q", timeOfDay)}
	}

	s.mu.Lock()
	key := models.BucketKey{DebtorName: name, Date: date, TimeOfDay: timeOfDay}
	var rec models.DebtRecord
	if i := s.findBucketLocked(key); i >= 0 {
		rec = s.debts[i].Clone()
		rec.TotalAmount = rec.TotalAmount.Add(amount)
		rec.RemainingAmount = rec.RemainingAmount.Add(amount)
		s.debts[i] = rec
	} else {
		rec = models.DebtRecord{
			ID:              uuid.New().String(),
			OwnerID:         s.owner.ID,
			DebtorName:      name,
			TotalAmount:     amount,
			PaidAmount:      decimal.Zero,
			RemainingAmount: amount,
			Date:            date,
			TimeOfDay:       timeOfDay,
			Payments:        []models.Payment{},
			CreatedAt:       s.now().Unix(),
		}
		s.debts = append(s.debts, rec)
	}
	at := s.touchLocked()
	err = s.persistLocked(ctx, OpDebt)
	s.mu.Unlock()

	s.logger.Info("Debt recorded",
		"debt_id", rec.ID,
		"debtor", name,
		"amount", amount.String(),
		"total", rec.TotalAmount.String(),
	)
	s.afterCommit(OpDebt, at, err, true)
	return rec.Clone(), err
}

// ApplyPayment distributes amount over the debtor's open buckets, oldest
// first. The touched records are committed together or not at all. Any
// excess is returned as Overpay and not recorded anywhere.
func (s *Session) ApplyPayment(ctx context.Context, debtorName string, amount decimal.Decimal, date string) (*calculator.Allocation, error) {
	name, err := validateName("debtor name", debtorName)
	if err != nil {
		return nil, err
	}
	if err := validateAmount(amount); err != nil {
		return nil, err
	}
	if err := validateDate(date); err != nil {
		return nil, err
	}

	s.mu.Lock()
	var buckets []models.DebtRecord
	for i := range s.debts {
		if s.debts[i].DebtorName == name {
			buckets = append(buckets, s.debts[i])
		}
	}

	alloc, err := calculator.Allocate(buckets, amount, date)
	if err != nil {
		s.mu.Unlock()
		s.metrics.Mutation(OpPayment, err)
		if errors.Is(err, calculator.ErrNoOpenDebts) {
			return nil, &NotFoundError{What: "open debts for " + name, Err: err}
		}
		if errors.Is(err, calculator.ErrInvalidAmount) {
			return nil, &ValidationError{Field: "amount", Reason: err.Error()}
		}
		return nil, err
	}

	updated := make(map[string]models.DebtRecord, len(alloc.Updated))
	for _, rec := range alloc.Updated {
		if err := rec.Validate(); err != nil {
			s.mu.Unlock()
			verr := &ValidationError{Field: "payment", Reason: "allocation rejected: " + err.Error()}
			s.metrics.Mutation(OpPayment, verr)
			s.logger.Error("Payment would break ledger invariants", "debtor", name, "debt_id", rec.ID, "error", err)
			return nil, verr
		}
		updated[rec.ID] = rec
	}

	// copy-on-write so the swap below is the only mutation
	next := make([]models.DebtRecord, len(s.debts))
	for i := range s.debts {
		if rec, ok := updated[s.debts[i].ID]; ok {
			next[i] = rec
		} else {
			next[i] = s.debts[i]
		}
	}
	s.debts = next
	at := s.touchLocked()
	err = s.persistLocked(ctx, OpPayment)
	s.mu.Unlock()

	s.logger.Info("Payment allocated",
		"debtor", name,
		"amount", amount.String(),
		"applied", alloc.Applied.String(),
		"overpay", alloc.Overpay.String(),
		"buckets", len(alloc.Updated),
	)
	if alloc.Overpay.IsPositive() {
		s.logger.Warn("Payment exceeds outstanding debt", "debtor", name, "overpay", alloc.Overpay.String())
	}
	s.afterCommit(OpPayment, at, err, true)
	return alloc, err
}

// AddConsumption appends an entry to the consumption log.
func (s *Session) AddConsumption(ctx context.Context, category string, count int, date string) (models.ConsumptionRecord, error) {
	category, err := validateName("category", category)
	if err != nil {
		return models.ConsumptionRecord{}, err
	}
	if count <= 0 {
		return models.ConsumptionRecord{}, &ValidationError{Field: "count", Reason: fmt.Sprintf("%d is not positive", count)}
	}
	if err := validateDate(date); err != nil {
		return models.ConsumptionRecord{}, err
	}

	rec := models.ConsumptionRecord{
		ID:       uuid.New().String(),
		Category: category,
		Count:    count,
		Date:     date,
	}

	s.mu.Lock()
	s.consumption = append(s.consumption, rec)
	at := s.touchLocked()
	err = s.persistLocked(ctx, OpConsumption)
	s.mu.Unlock()

	s.logger.Info("Consumption recorded", "category", category, "count", count, "date", date)
	s.afterCommit(OpConsumption, at, err, true)
	return rec, err
}

// DeleteAll writes a backup of the current ledger and then clears every debt
// and consumption record. If the backup cannot be written nothing is cleared.
func (s *Session) DeleteAll(ctx context.Context) (models.Backup, error) {
	s.mu.Lock()
	backup := models.Backup{
		Debts:       models.CloneDebts(s.debts),
		Consumption: append([]models.ConsumptionRecord{}, s.consumption...),
		Owner:       s.owner.ID,
		Timestamp:   s.now().UTC(),
		Version:     models.BackupVersion,
	}
	batch := storage.Batch{}
	if err := batch.Set(storage.BackupKey(s.owner.ID), backup); err != nil {
		s.mu.Unlock()
		return models.Backup{}, &PersistenceError{Op: "backup", Err: err}
	}
	if err := s.store.PutAll(ctx, batch); err != nil {
		s.mu.Unlock()
		s.metrics.Mutation(OpDeleteAll, err)
		return models.Backup{}, &PersistenceError{Op: "backup", Err: err}
	}

	s.debts = []models.DebtRecord{}
	s.consumption = []models.ConsumptionRecord{}
	at := s.touchLocked()
	err := s.persistLocked(ctx, OpDeleteAll)
	s.mu.Unlock()

	s.logger.Warn("Ledger cleared", "backed_up_debts", len(backup.Debts), "backed_up_consumption", len(backup.Consumption))
	s.afterCommit(OpDeleteAll, at, err, true)
	return backup, err
}

// RestoreBackup replaces the ledger with the backup written by the last
// DeleteAll.
func (s *Session) RestoreBackup(ctx context.Context) (models.Backup, error) {
	var backup models.Backup
	ok, err := storage.GetJSON(ctx, s.store, storage.BackupKey(s.owner.ID), &backup)
	if err != nil {
		return models.Backup{}, fmt.Errorf("failed to load backup: %w", err)
	}
	if !ok {
		return models.Backup{}, &NotFoundError{What: "backup for " + s.owner.ID}
	}

	s.mu.Lock()
	s.debts = models.CloneDebts(backup.Debts)
	s.consumption = append([]models.ConsumptionRecord{}, backup.Consumption...)
	at := s.touchLocked()
	err = s.persistLocked(ctx, OpRestore)
	s.mu.Unlock()

	s.logger.Info("Backup restored", "timestamp", backup.Timestamp, "debts", len(backup.Debts))
	s.afterCommit(OpRestore, at, err, true)
	return backup, err
}

// ChangePassword replaces the owner's password hash after checking the
// current password against the stored hash.
func (s *Session) ChangePassword(ctx context.Context, current, next string) error {
	if err := auth.ValidatePassword(next); err != nil {
		return &ValidationError{Field: "password", Reason: err.Error()}
	}

	s.mu.Lock()
	hash := s.owner.PasswordHash
	s.mu.Unlock()
	if !auth.CheckPassword(hash, current) {
		return auth.ErrInvalidCredentials
	}

	newHash, err := auth.HashPassword(next)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.owner.PasswordHash = newHash
	at := s.touchLocked()
	err = s.persistLocked(ctx, OpPassword)
	s.mu.Unlock()

	s.logger.Info("Password changed")
	s.afterCommit(OpPassword, at, err, true)
	return err
}
