package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/mmynk/ledgersync/internal/models"
	"github.com/mmynk/ledgersync/internal/storage"
)

var (
	ErrInvalidCredentials = errors.New("invalid owner or password")
	ErrWeakPassword       = errors.New("password must be at least 8 characters")
	ErrOwnerExists        = errors.New("owner already registered")
	ErrMissingOwner       = errors.New("owner id is required")
)

// HashPassword returns the bcrypt hash of a password.
func HashPassword(password string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hashed), nil
}

// CheckPassword reports whether password matches hash.
func CheckPassword(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// IsPasswordHash reports whether h looks like a hash made by HashPassword.
func IsPasswordHash(h string) bool {
	_, err := bcrypt.Cost([]byte(h))
	return err == nil
}

// PasswordAuthenticator implements password-based authentication using bcrypt.
type PasswordAuthenticator struct {
	storage storage.OwnerStore
}

// NewPasswordAuthenticator creates a new password-based authenticator.
func NewPasswordAuthenticator(storage storage.OwnerStore) *PasswordAuthenticator {
	return &PasswordAuthenticator{
		storage: storage,
	}
}

// ValidateCredential checks if the password meets minimum requirements.
func (a *PasswordAuthenticator) ValidateCredential(credential string) error {
	return ValidatePassword(credential)
}

// ValidatePassword checks the minimum password length.
func ValidatePassword(password string) error {
	if len(password) < 8 {
		return ErrWeakPassword
	}
	return nil
}

// Register creates a new owner with a hashed password.
func (a *PasswordAuthenticator) Register(ctx context.Context, ownerID, credential string) (*models.Owner, error) {
	ownerID = strings.TrimSpace(ownerID)
	if ownerID == "" {
		return nil, ErrMissingOwner
	}
	if err := a.ValidateCredential(credential); err != nil {
		return nil, err
	}

	_, err := a.storage.GetOwner(ctx, ownerID)
	if err == nil {
		return nil, ErrOwnerExists
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("failed to look up owner: %w", err)
	}

	hash, err := HashPassword(credential)
	if err != nil {
		return nil, err
	}

	owner := &models.Owner{ID: ownerID, PasswordHash: hash}
	if err := a.storage.CreateOwner(ctx, owner); err != nil {
		return nil, fmt.Errorf("failed to create owner: %w", err)
	}

	return owner, nil
}

// Authenticate verifies the owner id and password, returning the owner if valid.
func (a *PasswordAuthenticator) Authenticate(ctx context.Context, ownerID, credential string) (*models.Owner, error) {
	owner, err := a.storage.GetOwner(ctx, strings.TrimSpace(ownerID))
	if err != nil {
		return nil, ErrInvalidCredentials
	}

	if !CheckPassword(owner.PasswordHash, credential) {
		return nil, ErrInvalidCredentials
	}

	return owner, nil
}
