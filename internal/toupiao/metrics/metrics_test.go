package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestCounters(t *testing.T) {
	m := New()

	m.Login("succeeded")
	m.Login("succeeded")
	m.Login("failed")
	m.Voted()
	m.Housekept("user_tokens", 3)
	m.Housekept("polls", 0)

	require.Equal(t, 2.0, testutil.ToFloat64(m.LoginAttempts.WithLabelValues("succeeded")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.LoginAttempts.WithLabelValues("failed")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.VotesCast))
	require.Equal(t, 3.0, testutil.ToFloat64(m.Housekeeping.WithLabelValues("user_tokens")))
	require.Equal(t, 0.0, testutil.ToFloat64(m.Housekeeping.WithLabelValues("polls")))
}

func TestNilMetricsIsInert(t *testing.T) {
	var m *Metrics
	require.NotPanics(t, func() {
		m.Login("failed")
		m.Registered()
		m.PollCreated()
		m.Voted()
		m.Mail("smtp", "sent")
		m.Housekept("polls", 1)
		m.Limited("login")
	})

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandlerExposesCounters(t *testing.T) {
	m := New()
	m.Registered()

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "toupiao_registrations_total 1")
	require.Contains(t, rec.Body.String(), "go_goroutines")
}
