package models

// Owner is the authenticated identity under which all debt and consumption
// records are scoped. It is created at registration, mutated on password
// change and never deleted automatically.
type Owner struct {
	// ID is the identity string supplied by the authentication collaborator.
	ID string `json:"id"`

	// PasswordHash is a one-way hash of the owner's password (bcrypt).
	PasswordHash string `json:"passwordHash"`
}
