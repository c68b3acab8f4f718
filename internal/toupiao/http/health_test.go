package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"

	"github.com/aussiebroadwan/toupiao/pkg/toupiaosdk"
	"github.com/stretchr/testify/require"
)

func TestLivez(t *testing.T) {
	t.Parallel()
	app := newTestApp(t)

	health, err := toupiaosdk.NewClient(app.srv.URL).GetLiveness(context.Background())
	require.NoError(t, err)
	require.Equal(t, "ok", health.Status)
	require.Equal(t, "test", health.Version)
	require.Nil(t, health.Checks)
}

func TestReadyz(t *testing.T) {
	t.Parallel()
	app := newTestApp(t, func(r *Router) {
		r.AddReadinessCheck("mail_queue", func(context.Context) error { return nil })
	})

	health, err := toupiaosdk.NewClient(app.srv.URL).GetReadiness(context.Background())
	require.NoError(t, err)
	require.Equal(t, "ok", health.Status)
	require.Equal(t, "ok", health.Checks.Database)
	require.Equal(t, "ok", health.Checks.Signer)
	require.Equal(t, map[string]string{"mail_queue": "ok"}, health.Checks.Extra)
}

func TestReadyzDegraded(t *testing.T) {
	t.Parallel()
	app := newTestApp(t, func(r *Router) {
		r.AddReadinessCheck("mail_queue", func(context.Context) error { return errors.New("redis down") })
	})

	resp := app.browser().get("/readyz")
	require.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)

	var health toupiaosdk.HealthResponse
	require.NoError(t, json.Unmarshal([]byte(resp.body), &health))
	require.Equal(t, "degraded", health.Status)
	require.Equal(t, "ok", health.Checks.Database)
	require.Equal(t, "error: redis down", health.Checks.Extra["mail_queue"])
}

func TestMetricsEndpoint(t *testing.T) {
	t.Parallel()
	app := newTestApp(t)
	b := app.browser()
	b.get("/Identity/Account/Login")

	resp := b.get("/metrics")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Contains(t, resp.body, "toupiao_polls_created_total")
}

func TestStaticAndSwagger(t *testing.T) {
	t.Parallel()
	app := newTestApp(t)
	b := app.browser()

	require.Equal(t, http.StatusOK, b.get("/static/site.css").StatusCode)
	require.Equal(t, http.StatusOK, b.get("/swagger/doc.json").StatusCode)
}
