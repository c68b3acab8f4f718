package domain

import "time"

// TokenPurpose scopes a one-time user token.
type TokenPurpose string

const (
	TokenEmailConfirmation TokenPurpose = "email_confirmation"
	TokenPasswordReset     TokenPurpose = "password_reset"
)

// UserToken is a stored single-use token. Only its fingerprint is kept.
type UserToken struct {
	ID        string
	UserID    string
	Purpose   TokenPurpose
	TokenHash string
	ExpiresAt time.Time
	CreatedAt time.Time
}

func (t *UserToken) IsExpired(now time.Time) bool {
	return !now.Before(t.ExpiresAt)
}
