package http

import (
	"net/http"
	"time"

	"github.com/aussiebroadwan/toupiao/internal/toupiao/store"
	"github.com/aussiebroadwan/toupiao/pkg/httpx"
	"github.com/aussiebroadwan/toupiao/pkg/toupiaosdk"
)

// LivezHandler godoc
//
//	@Summary		Health Check Endpoint
//	@Description	Liveness probe endpoint returning basic service health status, uptime, and version information
//	@Description	This endpoint always returns 200 OK if the service is running
//	@Tags			Health
//	@Produce		json
//	@Success		200	{object}	toupiaosdk.HealthResponse	"status, uptime, version"
//	@Router			/livez [get].
func LivezHandler(startTime time.Time, version string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		response := toupiaosdk.HealthResponse{
			Status:  "ok",
			Uptime:  time.Since(startTime).String(),
			Version: version,
		}
		httpx.WriteJSON(w, http.StatusOK, response)
	}
}

// ReadyzHandler godoc
//
//	@Summary		Readiness Check Endpoint
//	@Description	Readiness probe endpoint returning service health status and checks for critical dependencies
//	@Description	Includes uptime, version, and status of the database, the token signer and the mail queue when enabled
//	@Tags			Health
//	@Produce		json
//	@Success		200	{object}	toupiaosdk.HealthResponse	"status, uptime, version, checks"
//	@Failure		503	{object}	toupiaosdk.HealthResponse	"status, uptime, version, checks - service not ready"
//	@Router			/readyz [get].
func ReadyzHandler(
	startTime time.Time,
	version string,
	st store.Store,
	keys KeyStatus,
	extra []ReadinessCheck,
) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		checks := &toupiaosdk.HealthChecks{
			Database: "ok",
			Signer:   "ok",
		}
		overallStatus := "ok"
		statusCode := http.StatusOK

		if err := st.Ping(r.Context()); err != nil {
			checks.Database = "error: " + err.Error()
			overallStatus = "degraded"
			statusCode = http.StatusServiceUnavailable
		}

		if keys == nil || !keys.IsReady() {
			checks.Signer = "error: no keys loaded"
			overallStatus = "degraded"
			statusCode = http.StatusServiceUnavailable
		}

		for _, c := range extra {
			if checks.Extra == nil {
				checks.Extra = make(map[string]string, len(extra))
			}
			checks.Extra[c.Name] = "ok"
			if err := c.Check(r.Context()); err != nil {
				checks.Extra[c.Name] = "error: " + err.Error()
				overallStatus = "degraded"
				statusCode = http.StatusServiceUnavailable
			}
		}

		response := toupiaosdk.HealthResponse{
			Status:  overallStatus,
			Uptime:  time.Since(startTime).String(),
			Version: version,
			Checks:  checks,
		}
		httpx.WriteJSON(w, statusCode, response)
	}
}
