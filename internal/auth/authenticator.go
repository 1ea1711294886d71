package auth

import (
	"context"

	"github.com/mmynk/ledgersync/internal/models"
)

// Authenticator defines the interface for authentication implementations.
// The remote service only needs identity -> owner mapping; credential UI
// lives outside this module.
type Authenticator interface {
	// Register creates a new owner with the given credential.
	Register(ctx context.Context, ownerID, credential string) (*models.Owner, error)

	// Authenticate verifies the credential and returns the owner if successful.
	Authenticate(ctx context.Context, ownerID, credential string) (*models.Owner, error)

	// ValidateCredential checks if the credential meets the implementation's requirements.
	ValidateCredential(credential string) error
}
