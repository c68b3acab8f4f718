package service

import (
	"fmt"
	"strings"
	"unicode"
)

// PasswordViolation names one broken password rule. The HTTP layer turns
// each into a localised message.
type PasswordViolation string

const (
	PasswordTooShort                PasswordViolation = "PasswordTooShort"
	PasswordRequiresUniqueChars     PasswordViolation = "PasswordRequiresUniqueChars"
	PasswordRequiresNonAlphanumeric PasswordViolation = "PasswordRequiresNonAlphanumeric"
	PasswordRequiresDigit           PasswordViolation = "PasswordRequiresDigit"
	PasswordRequiresLower           PasswordViolation = "PasswordRequiresLower"
	PasswordRequiresUpper           PasswordViolation = "PasswordRequiresUpper"
)

type PasswordPolicy struct {
	RequiredLength         int
	RequiredUniqueChars    int
	RequireDigit           bool
	RequireLowercase       bool
	RequireUppercase       bool
	RequireNonAlphanumeric bool
}

// DefaultPasswordPolicy: six characters with a digit, a lower and an upper
// case letter and a symbol.
func DefaultPasswordPolicy() PasswordPolicy {
	return PasswordPolicy{
		RequiredLength:         6,
		RequiredUniqueChars:    1,
		RequireDigit:           true,
		RequireLowercase:       true,
		RequireUppercase:       true,
		RequireNonAlphanumeric: true,
	}
}

// PasswordPolicyError carries every rule the password broke, in a stable
// order.
type PasswordPolicyError struct {
	Policy     PasswordPolicy
	Violations []PasswordViolation
}

func (e *PasswordPolicyError) Error() string {
	parts := make([]string, len(e.Violations))
	for i, v := range e.Violations {
		parts[i] = string(v)
	}
	return fmt.Sprintf("password rejected: %s", strings.Join(parts, ", "))
}

// Validate returns nil or a *PasswordPolicyError.
func (p PasswordPolicy) Validate(password string) error {
	var (
		v                          []PasswordViolation
		digit, lower, upper, other bool
		unique                     = map[rune]struct{}{}
	)
	for _, r := range password {
		unique[r] = struct{}{}
		switch {
		case r < unicode.MaxASCII && unicode.IsDigit(r):
			digit = true
		case r < unicode.MaxASCII && unicode.IsLower(r):
			lower = true
		case r < unicode.MaxASCII && unicode.IsUpper(r):
			upper = true
		default:
			other = true
		}
	}

	if len([]rune(password)) < p.RequiredLength {
		v = append(v, PasswordTooShort)
	}
	if p.RequireNonAlphanumeric && !other {
		v = append(v, PasswordRequiresNonAlphanumeric)
	}
	if p.RequireDigit && !digit {
		v = append(v, PasswordRequiresDigit)
	}
	if p.RequireLowercase && !lower {
		v = append(v, PasswordRequiresLower)
	}
	if p.RequireUppercase && !upper {
		v = append(v, PasswordRequiresUpper)
	}
	if p.RequiredUniqueChars >= 1 && len(unique) < p.RequiredUniqueChars {
		v = append(v, PasswordRequiresUniqueChars)
	}

	if len(v) == 0 {
		return nil
	}
	return &PasswordPolicyError{Policy: p, Violations: v}
}
