package service

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPasswordPolicy(t *testing.T) {
	p := DefaultPasswordPolicy()

	tests := []struct {
		name     string
		password string
		want     []PasswordViolation
	}{
		{"valid", "Passw0rd!", nil},
		{"valid with unicode symbol", "Ab1密码x", nil},
		{"too short", "Ab1!", []PasswordViolation{PasswordTooShort}},
		{"no symbol", "Passw0rd", []PasswordViolation{PasswordRequiresNonAlphanumeric}},
		{"no digit", "Password!", []PasswordViolation{PasswordRequiresDigit}},
		{"no lower", "PASSW0RD!", []PasswordViolation{PasswordRequiresLower}},
		{"no upper", "passw0rd!", []PasswordViolation{PasswordRequiresUpper}},
		{"empty", "", []PasswordViolation{
			PasswordTooShort, PasswordRequiresNonAlphanumeric, PasswordRequiresDigit,
			PasswordRequiresLower, PasswordRequiresUpper, PasswordRequiresUniqueChars,
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := p.Validate(tt.password)
			if tt.want == nil {
				require.NoError(t, err)
				return
			}
			var pe *PasswordPolicyError
			require.True(t, errors.As(err, &pe))
			require.Equal(t, tt.want, pe.Violations)
		})
	}
}

func TestPasswordPolicyUniqueChars(t *testing.T) {
	p := PasswordPolicy{RequiredLength: 4, RequiredUniqueChars: 3}
	require.Error(t, p.Validate("aaaa"))
	require.Error(t, p.Validate("abab"))
	require.NoError(t, p.Validate("abca"))
}
