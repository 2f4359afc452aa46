package auth

import "time"

// User represents an account able to sign in. Username doubles as the
// inventory owner key.
type User struct {
	ID           string
	Username     string
	PasswordHash string
	IsActive     bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
