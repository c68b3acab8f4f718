package jwtx

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Token purposes. A token minted for one purpose is never accepted for
// another, so a pending two-factor cookie cannot be replayed as a session.
const (
	PurposeIdentity        = "identity"
	PurposeTwoFactor       = "two_factor"
	PurposeRememberMachine = "two_factor_remember"
)

// Authentication method references carried in amr.
const (
	AMRPassword = "pwd"
	AMROTP      = "otp"
	AMRRecovery = "rec"
	AMRMFA      = "mfa"
)

var (
	ErrMalformed   = errors.New("jwtx: malformed token")
	ErrUnknownKID  = errors.New("jwtx: unknown kid")
	ErrInvalidSig  = errors.New("jwtx: invalid signature")
	ErrIssuer      = errors.New("jwtx: issuer mismatch")
	ErrExpired     = errors.New("jwtx: token expired")
	ErrNotYetValid = errors.New("jwtx: token not yet valid")
	ErrPurpose     = errors.New("jwtx: purpose mismatch")
)

// Claims are the cookie claims shared by sessions and the two-factor
// intermediate cookies.
type Claims struct {
	jwt.RegisteredClaims

	// SID identifies one sign-in; it survives refreshes of the cookie.
	SID string `json:"sid,omitempty"`

	AMR      []string `json:"amr,omitempty"`
	Username string   `json:"username,omitempty"`

	// Stamp is the user's security stamp at sign-in. Sessions whose stamp no
	// longer matches the stored user are rejected.
	Stamp string `json:"stamp,omitempty"`

	// Persistent mirrors the "remember me" choice so refreshed cookies keep
	// the same lifetime.
	Persistent bool `json:"persistent,omitempty"`

	Purpose string `json:"purpose"`
}

// NewClaims builds claims for subject valid for ttl from now.
func NewClaims(purpose, subject string, ttl time.Duration, issuer string, now time.Time) Claims {
	return Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			ID:        NewJTI(),
		},
		Purpose: purpose,
	}
}

// NewJTI returns a random URL-safe identifier.
func NewJTI() string {
	var b [16]byte
	_, _ = rand.Read(b[:])
	return base64.RawURLEncoding.EncodeToString(b[:])
}

func (c *Claims) ValidateIssuer(expected string) error {
	if expected != "" && c.Issuer != expected {
		return ErrIssuer
	}
	return nil
}

func (c *Claims) ValidatePurpose(expected string) error {
	if c.Purpose != expected {
		return ErrPurpose
	}
	return nil
}

// ValidateExpiry checks exp and nbf against now, allowing leeway for skew.
func (c *Claims) ValidateExpiry(now time.Time, leeway time.Duration) error {
	if c.ExpiresAt != nil && now.After(c.ExpiresAt.Add(leeway)) {
		return ErrExpired
	}
	if c.NotBefore != nil && now.Before(c.NotBefore.Add(-leeway)) {
		return ErrNotYetValid
	}
	return nil
}

// HasAMR reports whether method was used to authenticate.
func (c *Claims) HasAMR(method string) bool {
	for _, m := range c.AMR {
		if m == method {
			return true
		}
	}
	return false
}
