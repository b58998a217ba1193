// Package httptransport is the thin HTTP layer over the engine. Handlers
// decode, validate, delegate, and translate domain rejections to statuses;
// business rules stay in the services. Capability checks (who may mark
// manually, who may correct) belong to the caller's gateway, not here.
package httptransport

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"presence/pkg/platform/httputil"
	"presence/pkg/platform/middleware/metadata"
	"presence/pkg/platform/middleware/requestid"
	"presence/pkg/platform/middleware/requesttime"
)

// HealthChecker reports readiness of one backing dependency.
type HealthChecker interface {
	Health(ctx context.Context) error
}

// NewRouter wires all engine endpoints.
func NewRouter(att *AttendanceHandler, rep *ReportHandler, health []HealthChecker) http.Handler {
	r := chi.NewRouter()
	r.Use(requestid.Middleware)
	r.Use(requesttime.Middleware)
	r.Use(metadata.ClientMetadata)

	att.Register(r)
	rep.Register(r)

	r.Get("/healthz", handleHealth(health))
	r.Handle("/metrics", promhttp.Handler())
	return r
}

func handleHealth(checkers []HealthChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		for _, c := range checkers {
			if err := c.Health(r.Context()); err != nil {
				httputil.WriteError(w, http.StatusServiceUnavailable, "unavailable", "dependency unhealthy")
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	}
}
