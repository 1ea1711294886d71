package storage

// CurrentOwnerKey holds the id of the owner last opened on this device.
const CurrentOwnerKey = "current-owner"

func PasswordKey(owner string) string    { return "password[" + owner + "]" }
func DebtsKey(owner string) string       { return "debts[" + owner + "]" }
func ConsumptionKey(owner string) string { return "consumption[" + owner + "]" }
func LastUpdateKey(owner string) string  { return "last-update[" + owner + "]" }
func BackupKey(owner string) string      { return "backup[" + owner + "]" }

// TokenKey holds the remote bearer token of an owner on this device.
func TokenKey(owner string) string { return "token[" + owner + "]" }
