package remote

import (
	"time"

	"github.com/mmynk/ledgersync/internal/models"
)

type GetSnapshotRequest struct {
	OwnerID string `json:"ownerId"`
}

type GetSnapshotResponse struct {
	Path     string           `json:"path"`
	Snapshot *models.Snapshot `json:"snapshot"`
}

type PutSnapshotRequest struct {
	Snapshot *models.Snapshot `json:"snapshot"`
}

type PutSnapshotResponse struct {
	Path     string    `json:"path"`
	LastSync time.Time `json:"lastSync"`
}

type RegisterRequest struct {
	OwnerID  string `json:"ownerId"`
	Password string `json:"password"`
}

type RegisterResponse struct {
	OwnerID string `json:"ownerId"`
	Token   string `json:"token"`
}

type LoginRequest struct {
	OwnerID  string `json:"ownerId"`
	Password string `json:"password"`
}

type LoginResponse struct {
	OwnerID      string `json:"ownerId"`
	Token        string `json:"token"`
	PasswordHash string `json:"password"`
}
