package ledger

import (
	"strings"
	"time"

	"github.com/mmynk/ledgersync/internal/calculator"
	"github.com/mmynk/ledgersync/internal/models"
)

// Owner returns the owner of the session.
func (s *Session) Owner() models.Owner {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.owner
}

// ListDebts returns a copy of every debt record in insertion order.
func (s *Session) ListDebts() []models.DebtRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return models.CloneDebts(s.debts)
}

// DebtsFor returns a copy of the records of one debtor.
func (s *Session) DebtsFor(debtorName string) []models.DebtRecord {
	name := strings.TrimSpace(debtorName)
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.DebtRecord
	for i := range s.debts {
		if s.debts[i].DebtorName == name {
			out = append(out, s.debts[i].Clone())
		}
	}
	return out
}

// ListConsumption returns a copy of the consumption log.
func (s *Session) ListConsumption() []models.ConsumptionRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.ConsumptionRecord{}, s.consumption...)
}

// Summary aggregates the ledger.
func (s *Session) Summary() calculator.Summary {
	s.mu.Lock()
	defer s.mu.Unlock()
	return calculator.Summarize(s.debts, s.consumption)
}

// LastUpdate returns the time of the newest local change.
func (s *Session) LastUpdate() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastUpdate
}
