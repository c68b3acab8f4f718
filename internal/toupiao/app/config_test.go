package app

import (
	"encoding/base64"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	for _, k := range []string{"ENV", "PORT", "DATABASE_DRIVER", "KEY_STORAGE_MODE", "COOKIE_SECURE", "HTTPS_REDIRECT", "LOCKOUT_ON_FAILURE"} {
		t.Setenv(k, "")
	}

	cfg := LoadConfig()
	require.Equal(t, "dev", cfg.Env)
	require.Equal(t, 8080, cfg.Port)
	require.Equal(t, "sqlite", cfg.DatabaseDriver)
	require.Equal(t, "toupiao.db", cfg.DatabaseFile)
	require.Equal(t, "persistent", cfg.KeyStorageMode)
	require.Equal(t, "toupiao", cfg.SessionIssuer)
	require.Equal(t, 3*time.Hour, cfg.TokenLifespan)
	require.Equal(t, 14*24*time.Hour, cfg.SessionTTL)
	require.Equal(t, 5, cfg.LockoutMaxFailed)
	require.Equal(t, 5*time.Minute, cfg.LockoutDuration)
	require.Equal(t, "zh-Hans", cfg.DefaultCulture)
	require.Equal(t, 587, cfg.SMTPPort)
	require.False(t, cfg.LockoutOnFailure)
	require.False(t, cfg.CookieSecure, "dev serves plain http")
	require.False(t, cfg.HTTPSRedirect)
}

func TestLoadConfigProduction(t *testing.T) {
	t.Setenv("ENV", "prod")
	t.Setenv("COOKIE_SECURE", "")
	t.Setenv("HTTPS_REDIRECT", "false")
	t.Setenv("DATABASE_DRIVER", "postgres")
	t.Setenv("DATABASE_URL", "postgres://vote:vote@db/vote?sslmode=disable")
	t.Setenv("LOCKOUT_ON_FAILURE", "true")
	t.Setenv("HOUSEKEEPING_INTERVAL", "15")
	t.Setenv("SESSION_TTL", "48h")
	t.Setenv("PORT", "not-a-number")

	cfg := LoadConfig()
	require.Equal(t, "prod", cfg.Env)
	require.True(t, cfg.CookieSecure)
	require.False(t, cfg.HTTPSRedirect)
	require.Equal(t, "postgres", cfg.DatabaseDriver)
	require.Equal(t, "postgres://vote:vote@db/vote?sslmode=disable", cfg.DatabaseURL)
	require.True(t, cfg.LockoutOnFailure)
	require.Equal(t, 15*time.Minute, cfg.HousekeepingInterval, "bare integers are minutes")
	require.Equal(t, 48*time.Hour, cfg.SessionTTL)
	require.Equal(t, 8080, cfg.Port)
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	local := filepath.Join(dir, ".env.local")
	shared := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(local, []byte("TOUPIAO_TEST_A=local\n"), 0o600))
	require.NoError(t, os.WriteFile(shared, []byte("TOUPIAO_TEST_A=shared\nTOUPIAO_TEST_B=shared\nTOUPIAO_TEST_C=shared\n"), 0o600))

	t.Setenv("TOUPIAO_TEST_C", "env")
	// Registered so t restores the environment afterwards.
	t.Setenv("TOUPIAO_TEST_A", "")
	t.Setenv("TOUPIAO_TEST_B", "")
	require.NoError(t, os.Unsetenv("TOUPIAO_TEST_A"))
	require.NoError(t, os.Unsetenv("TOUPIAO_TEST_B"))

	errs := loadDotEnv(local, shared, filepath.Join(dir, "missing"))
	require.Empty(t, errs)
	require.Equal(t, "local", os.Getenv("TOUPIAO_TEST_A"))
	require.Equal(t, "shared", os.Getenv("TOUPIAO_TEST_B"))
	require.Equal(t, "env", os.Getenv("TOUPIAO_TEST_C"))
}

func TestDecodeKey(t *testing.T) {
	key, err := decodeKey("COOKIE_HASH_KEY", "")
	require.NoError(t, err)
	require.Nil(t, key)

	raw := []byte("0123456789abcdef0123456789abcdef")
	key, err = decodeKey("COOKIE_HASH_KEY", base64.StdEncoding.EncodeToString(raw))
	require.NoError(t, err)
	require.Equal(t, raw, key)

	_, err = decodeKey("COOKIE_HASH_KEY", "%%%")
	require.ErrorContains(t, err, "COOKIE_HASH_KEY")
}
