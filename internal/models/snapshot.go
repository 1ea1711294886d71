package models

import "time"

// BackupVersion is written into every Backup.
const BackupVersion = "1.0"

// ConsumptionRecord is one entry of the qat consumption log. It has no
// invariants shared with DebtRecord.
type ConsumptionRecord struct {
	ID       string `json:"id"`
	Category string `json:"type"`
	Count    int    `json:"count"`
	Date     string `json:"date"`
}

// Snapshot is the full remote state of one owner at one instant. It is
// stored at users/{OwnerID} and replaced wholesale on every push.
type Snapshot struct {
	OwnerID      string              `json:"ownerId"`
	Debts        []DebtRecord        `json:"debts"`
	Consumption  []ConsumptionRecord `json:"consumption"`
	PasswordHash string              `json:"password"`
	LastSync     time.Time           `json:"lastSync"`
}

// RemotePath returns the remote record path of an owner.
func RemotePath(ownerID string) string {
	return "users/" + ownerID
}

// Backup is the copy of an owner's ledger written before a bulk reset.
type Backup struct {
	Debts       []DebtRecord        `json:"debts"`
	Consumption []ConsumptionRecord `json:"consumption"`
	Owner       string              `json:"owner"`
	Timestamp   time.Time           `json:"timestamp"`
	Version     string              `json:"version"`
}
