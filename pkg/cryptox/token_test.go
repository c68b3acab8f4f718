package cryptox

import (
	"encoding/base64"
	"regexp"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestGenerateToken(t *testing.T) {
	for _, size := range []int{TokenSize128, TokenSize256, 24} {
		a, err := GenerateToken(size)
		require.NoError(t, err)
		b, err := GenerateToken(size)
		require.NoError(t, err)
		require.NotEqual(t, a, b)

		raw, err := base64.RawURLEncoding.DecodeString(a)
		require.NoError(t, err)
		require.Len(t, raw, size)
	}

	_, err := GenerateToken(0)
	require.Error(t, err)
}

func TestFingerprintToken(t *testing.T) {
	fp := FingerprintToken("abc")
	require.Equal(t, fp, FingerprintToken("abc"))
	require.NotEqual(t, fp, FingerprintToken("abd"))
	require.Len(t, fp, 43)
}

func TestEqualTokens(t *testing.T) {
	require.True(t, EqualTokens("same", "same"))
	require.False(t, EqualTokens("same", "diff"))
	require.False(t, EqualTokens("same", "sam"))
}

func TestRecoveryCodes(t *testing.T) {
	shape := regexp.MustCompile(`^[23456789BCDFGHJKMNPQRTVWXY]{5}-[23456789BCDFGHJKMNPQRTVWXY]{5}$`)

	seen := map[string]bool{}
	for range 50 {
		code, err := GenerateRecoveryCode()
		require.NoError(t, err)
		require.Regexp(t, shape, code)
		seen[code] = true
	}
	require.Greater(t, len(seen), 45)

	tests := map[string]string{
		"BCDFG-HJKMN":   "BCDFG-HJKMN",
		"bcdfg-hjkmn":   "BCDFG-HJKMN",
		" bcdfg hjkmn ": "BCDFG-HJKMN",
		"bcdfghjkmn":    "BCDFG-HJKMN",
		"short":         "SHORT",
	}
	for in, want := range tests {
		require.Equal(t, want, NormalizeRecoveryCode(in), in)
	}
}
