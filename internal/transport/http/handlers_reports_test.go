package httptransport

import (
	"log/slog"
	"net/http"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"presence/internal/aggregate"
	"presence/internal/transport/http/mocks"
	"presence/pkg/testutil"
)

//go:generate mockgen -source=handlers_reports.go -destination=mocks/reports_mocks.go -package=mocks ReportService

func newReportRouter(t *testing.T) (*mocks.MockReportService, http.Handler) {
	t.Helper()
	ctrl := gomock.NewController(t)
	service := mocks.NewMockReportService(ctrl)

	attendanceHandler := NewAttendanceHandler(
		mocks.NewMockAttendanceService(ctrl),
		mocks.NewMockVerificationGateway(ctrl),
		mocks.NewMockSubjectDirectory(ctrl),
		slog.New(slog.DiscardHandler),
	)
	return service, NewRouter(attendanceHandler, NewReportHandler(service, slog.New(slog.DiscardHandler)), nil)
}

func reportURL(base string, params map[string]string) string {
	q := url.Values{}
	for k, v := range params {
		q.Set(k, v)
	}
	return base + "?" + q.Encode()
}

func TestHandleSummary(t *testing.T) {
	from := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	to := from.Add(7 * 24 * time.Hour)
	window := map[string]string{
		"subject_id": "subj-1",
		"from":       from.Format(time.RFC3339),
		"to":         to.Format(time.RFC3339),
	}

	t.Run("returns computed report", func(t *testing.T) {
		service, router := newReportRouter(t)
		expected := aggregate.Cached{
			Report: aggregate.Report{
				Query:          aggregate.Query{SubjectID: "subj-1", From: from, To: to},
				TotalRecords:   5,
				AttendanceRate: 0.8,
			},
			ComputedAt: to,
		}
		service.EXPECT().
			Summarize(gomock.Any(), aggregate.Query{SubjectID: "subj-1", From: from, To: to}, false).
			Return(expected, nil)

		rr := testutil.DoRequest(router, testutil.NewJSONRequest(t, http.MethodGet, reportURL("/reports/summary", window), nil))

		testutil.AssertStatus(t, rr, http.StatusOK)
		got := testutil.UnmarshalResponse[aggregate.Cached](t, rr)
		assert.Equal(t, 5, got.Report.TotalRecords)
		assert.InDelta(t, 0.8, got.Report.AttendanceRate, 1e-9)
		assert.False(t, got.Stale)
	})

	t.Run("allow_stale is forwarded", func(t *testing.T) {
		service, router := newReportRouter(t)
		service.EXPECT().
			Summarize(gomock.Any(), gomock.Any(), true).
			Return(aggregate.Cached{Stale: true}, nil)

		params := map[string]string{"allow_stale": "true"}
		for k, v := range window {
			params[k] = v
		}
		rr := testutil.DoRequest(router, testutil.NewJSONRequest(t, http.MethodGet, reportURL("/reports/summary", params), nil))

		testutil.AssertStatus(t, rr, http.StatusOK)
		got := testutil.UnmarshalResponse[aggregate.Cached](t, rr)
		assert.True(t, got.Stale)
	})

	t.Run("missing window returns 400", func(t *testing.T) {
		service, router := newReportRouter(t)
		service.EXPECT().Summarize(gomock.Any(), gomock.Any(), gomock.Any()).Times(0)

		rr := testutil.DoRequest(router, testutil.NewJSONRequest(t, http.MethodGet, "/reports/summary?subject_id=subj-1", nil))

		testutil.AssertStatus(t, rr, http.StatusBadRequest)
		testutil.AssertErrorKind(t, rr, "invalid_request")
	})

	t.Run("inverted window returns 400", func(t *testing.T) {
		service, router := newReportRouter(t)
		service.EXPECT().Summarize(gomock.Any(), gomock.Any(), gomock.Any()).Times(0)

		rr := testutil.DoRequest(router, testutil.NewJSONRequest(t, http.MethodGet, reportURL("/reports/summary", map[string]string{
			"from": to.Format(time.RFC3339),
			"to":   from.Format(time.RFC3339),
		}), nil))

		testutil.AssertStatus(t, rr, http.StatusBadRequest)
	})
}

func TestHandleAnomalies(t *testing.T) {
	from := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	to := from.Add(30 * 24 * time.Hour)

	service, router := newReportRouter(t)
	service.EXPECT().Anomalies(gomock.Any(), aggregate.Query{From: from, To: to}).Return([]aggregate.Anomaly{
		{Kind: aggregate.AnomalyAbsenceStreak, SubjectID: "subj-9", Value: 3},
	}, nil)

	rr := testutil.DoRequest(router, testutil.NewJSONRequest(t, http.MethodGet, reportURL("/reports/anomalies", map[string]string{
		"from": from.Format(time.RFC3339),
		"to":   to.Format(time.RFC3339),
	}), nil))

	testutil.AssertStatus(t, rr, http.StatusOK)
	got := testutil.UnmarshalResponse[[]aggregate.Anomaly](t, rr)
	require.Len(t, *got, 1)
	assert.Equal(t, aggregate.AnomalyAbsenceStreak, (*got)[0].Kind)
}
