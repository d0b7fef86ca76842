package http

import (
	"net/http"
	"time"

	"github.com/herdwatch/herdwatch/internal/herdwatch/store"
	"github.com/herdwatch/herdwatch/pkg/authsdk"
	"github.com/herdwatch/herdwatch/pkg/httpx"
)

// LivezHandler godoc
//
//	@Summary		Liveness
//	@Description	Always 200 while the process is serving.
//	@Tags			Health
//	@Produce		json
//	@Success		200	{object}	authsdk.HealthResponse	"status, uptime, version"
//	@Router			/livez [get].
func LivezHandler(startTime time.Time, version string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		httpx.WriteJSON(w, http.StatusOK, authsdk.HealthResponse{
			Status:  "ok",
			Uptime:  time.Since(startTime).String(),
			Version: version,
		})
	}
}

// ReadyzHandler godoc
//
//	@Summary		Readiness
//	@Description	Pings the account database and the session store.
//	@Tags			Health
//	@Produce		json
//	@Success		200	{object}	authsdk.HealthResponse	"status, uptime, version, checks"
//	@Failure		503	{object}	authsdk.HealthResponse	"a dependency is down"
//	@Router			/readyz [get].
func ReadyzHandler(startTime time.Time, version string, db, sessions store.Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		checks := &authsdk.HealthChecks{
			Database: probe(r, db),
			Sessions: probe(r, sessions),
		}

		status, code := "ok", http.StatusOK
		if checks.Database != "ok" || checks.Sessions != "ok" {
			status, code = "degraded", http.StatusServiceUnavailable
		}

		httpx.WriteJSON(w, code, authsdk.HealthResponse{
			Status:  status,
			Uptime:  time.Since(startTime).String(),
			Version: version,
			Checks:  checks,
		})
	}
}

func probe(r *http.Request, p store.Pinger) string {
	if p == nil {
		return "ok"
	}
	if err := p.Ping(r.Context()); err != nil {
		return "error: " + err.Error()
	}
	return "ok"
}
