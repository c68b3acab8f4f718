package app

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/aussiebroadwan/toupiao/internal/toupiao/store/drivers/sqlite"
	"github.com/aussiebroadwan/toupiao/pkg/slogx"
	"github.com/stretchr/testify/require"
)

func testConfig(t *testing.T) Config {
	t.Helper()
	dir := t.TempDir()
	masterKey := filepath.Join(dir, "master.key")
	require.NoError(t, os.WriteFile(masterKey, []byte("test master key material"), 0o600))

	return Config{
		Env:                  "dev",
		LogLevel:             "error",
		LogFormat:            "text",
		ShutdownGracePeriod:  time.Second,
		DatabaseDriver:       "sqlite",
		DatabaseFile:         filepath.Join(dir, "toupiao.db"),
		PepperFile:           filepath.Join(dir, "pepper"),
		KeyStorageMode:       "persistent",
		MasterKeyPath:        masterKey,
		KeyMaxAge:            90 * 24 * time.Hour,
		KeyGracePeriod:       30 * 24 * time.Hour,
		NumKeys:              1,
		SessionIssuer:        "toupiao-test",
		TokenLifespan:        time.Hour,
		LockoutMaxFailed:     5,
		LockoutDuration:      5 * time.Minute,
		SessionTTL:           time.Hour,
		DefaultCulture:       "en-US",
		HousekeepingInterval: time.Hour,
	}
}

func TestNewServesRequests(t *testing.T) {
	cfg := testConfig(t)
	app, err := New(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = app.db.Close() })

	require.FileExists(t, cfg.PepperFile)
	require.Equal(t, 1, app.keyManager.NumSigners())
	require.NotNil(t, app.housekeeping.Keys, "persistent keys are rotated by housekeeping")

	srv := httptest.NewServer(app.server.Handler)
	t.Cleanup(srv.Close)

	resp, err := http.Get(srv.URL + "/readyz")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Get(srv.URL + "/Identity/Account/Login")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Contains(t, string(body), "Log in", "DEFAULT_CULTURE selects English")
}

func TestNewRejectsBadDatabaseConfig(t *testing.T) {
	cfg := testConfig(t)
	cfg.DatabaseDriver = "postgres"
	_, err := New(cfg)
	require.ErrorContains(t, err, "DATABASE_URL")

	cfg.DatabaseDriver = "mysql"
	_, err = New(cfg)
	require.ErrorContains(t, err, "mysql")
}

func TestInitSessionKeysPersistentSurvivesRestart(t *testing.T) {
	cfg := testConfig(t)
	ctx := context.Background()

	db, err := sqlite.NewStore("file:" + cfg.DatabaseFile)
	require.NoError(t, err)
	require.NoError(t, db.ApplyMigrations())
	t.Cleanup(func() { _ = db.Close() })

	first, err := InitSessionKeys(ctx, cfg, db, slogx.Discard())
	require.NoError(t, err)
	second, err := InitSessionKeys(ctx, cfg, db, slogx.Discard())
	require.NoError(t, err)
	require.ElementsMatch(t, first.KIDs(), second.KIDs())
}

func TestInitSessionKeysEphemeral(t *testing.T) {
	cfg := testConfig(t)
	cfg.KeyStorageMode = "ephemeral"
	cfg.NumKeys = 2

	km, err := InitSessionKeys(context.Background(), cfg, nil, slogx.Discard())
	require.NoError(t, err)
	require.Equal(t, 2, km.NumSigners())
	require.True(t, km.IsReady())
}
