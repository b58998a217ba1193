package httptransport

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"presence/internal/aggregate"
	"presence/internal/domain"
	"presence/pkg/platform/httputil"
)

// ReportService computes aggregation reports.
type ReportService interface {
	Summarize(ctx context.Context, q aggregate.Query, allowStale bool) (aggregate.Cached, error)
	Anomalies(ctx context.Context, q aggregate.Query) ([]aggregate.Anomaly, error)
}

// ReportHandler serves the aggregation read model.
type ReportHandler struct {
	service ReportService
	logger  *slog.Logger
}

func NewReportHandler(service ReportService, logger *slog.Logger) *ReportHandler {
	return &ReportHandler{service: service, logger: logger}
}

// Register mounts reporting endpoints on the router.
func (h *ReportHandler) Register(r chi.Router) {
	r.Route("/reports", func(r chi.Router) {
		r.Get("/summary", h.HandleSummary)
		r.Get("/anomalies", h.HandleAnomalies)
	})
}

// HandleSummary handles GET /reports/summary. With allow_stale=true an
// out-of-date cached report is served immediately, flagged stale.
func (h *ReportHandler) HandleSummary(w http.ResponseWriter, r *http.Request) {
	q, msg := parseQuery(r)
	if msg != "" {
		badRequest(w, msg)
		return
	}

	cached, err := h.service.Summarize(r.Context(), q, r.URL.Query().Get("allow_stale") == "true")
	if err != nil {
		h.logger.ErrorContext(r.Context(), "report computation failed", "error", err)
		writeError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, cached)
}

// HandleAnomalies handles GET /reports/anomalies.
func (h *ReportHandler) HandleAnomalies(w http.ResponseWriter, r *http.Request) {
	q, msg := parseQuery(r)
	if msg != "" {
		badRequest(w, msg)
		return
	}

	anomalies, err := h.service.Anomalies(r.Context(), q)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "anomaly detection failed", "error", err)
		writeError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, anomalies)
}

func parseQuery(r *http.Request) (aggregate.Query, string) {
	params := r.URL.Query()
	q := aggregate.Query{
		SubjectID:  domain.SubjectID(params.Get("subject_id")),
		OccasionID: domain.OccasionID(params.Get("occasion_id")),
	}

	from, msg := parseTimeParam(params.Get("from"), "from")
	if msg != "" {
		return aggregate.Query{}, msg
	}
	to, msg := parseTimeParam(params.Get("to"), "to")
	if msg != "" {
		return aggregate.Query{}, msg
	}
	if from.IsZero() || to.IsZero() {
		return aggregate.Query{}, "from and to are required"
	}
	if !to.After(from) {
		return aggregate.Query{}, "to must be after from"
	}

	q.From, q.To = from, to
	return q, ""
}

func parseTimeParam(raw, name string) (time.Time, string) {
	if raw == "" {
		return time.Time{}, ""
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, name + " must be RFC3339"
	}
	return t.UTC(), ""
}
