package toupiao_test

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLivezEndpoint(t *testing.T) {
	s := setupSite(t, nil)

	health, err := s.client().GetLiveness(t.Context())
	assertHealthy(t, health, err)
	require.NotEmpty(t, health.Version)
}

func TestReadyzEndpoint(t *testing.T) {
	s := setupSite(t, nil)

	health, err := s.client().GetReadiness(t.Context())
	assertHealthy(t, health, err)
	require.Equal(t, "ok", health.Checks.Database)
	require.Equal(t, "ok", health.Checks.Signer)
}

func TestSwaggerDocument(t *testing.T) {
	s := setupSite(t, nil)

	p := s.browser().get("/swagger/doc.json")
	require.Equal(t, http.StatusOK, p.status)
	require.Contains(t, p.body, "/api/v1/polls")
}

func TestSecurityHeaders(t *testing.T) {
	s := setupSite(t, nil)

	resp, err := http.Get(s.baseURL + "/")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, "nosniff", resp.Header.Get("X-Content-Type-Options"))
	require.Empty(t, resp.Header.Get("Strict-Transport-Security"), "HSTS is only sent over https")
}
