package domain

import (
	"strings"
	"time"
)

type User struct {
	ID                 string
	UserName           string
	NormalizedUserName string
	Email              string
	NormalizedEmail    string
	EmailConfirmed     bool
	PasswordHash       string // argon2id PHC
	SecurityStamp      string // rotated on credential changes, invalidates sessions
	ConcurrencyStamp   string
	LockoutEnabled     bool
	LockoutEnd         *time.Time
	AccessFailedCount  int
	TwoFactorEnabled   bool
	AuthenticatorKey   *string // base32 TOTP secret
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// IsLockedOut reports whether a lockout is in force at now.
func (u *User) IsLockedOut(now time.Time) bool {
	return u.LockoutEnabled && u.LockoutEnd != nil && u.LockoutEnd.After(now)
}

// Normalize upper-cases names and emails for case-insensitive lookups.
func Normalize(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}
