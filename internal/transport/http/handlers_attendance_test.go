package httptransport

import (
	"encoding/base64"
	"fmt"
	"log/slog"
	"net/http"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"presence/internal/attendance"
	"presence/internal/domain"
	"presence/internal/transport/http/mocks"
	"presence/internal/verify"
	"presence/pkg/platform/sentinel"
	"presence/pkg/testutil"
)

//go:generate mockgen -source=handlers_attendance.go -destination=mocks/attendance_mocks.go -package=mocks AttendanceService,VerificationGateway,SubjectDirectory

type attendanceMocks struct {
	service  *mocks.MockAttendanceService
	gateway  *mocks.MockVerificationGateway
	subjects *mocks.MockSubjectDirectory
}

func newAttendanceRouter(t *testing.T) (attendanceMocks, http.Handler) {
	t.Helper()
	ctrl := gomock.NewController(t)
	m := attendanceMocks{
		service:  mocks.NewMockAttendanceService(ctrl),
		gateway:  mocks.NewMockVerificationGateway(ctrl),
		subjects: mocks.NewMockSubjectDirectory(ctrl),
	}
	handler := NewAttendanceHandler(m.service, m.gateway, m.subjects, slog.New(slog.DiscardHandler))
	reports := NewReportHandler(mocks.NewMockReportService(ctrl), slog.New(slog.DiscardHandler))
	return m, NewRouter(handler, reports, nil)
}

var (
	testImage   = []byte("frame-bytes")
	testImage64 = base64.StdEncoding.EncodeToString(testImage)
)

func TestHandleMark(t *testing.T) {
	subject := domain.Subject{ID: "subj-1", TemplateRef: "tpl-1"}
	occ := domain.Occasion{ID: "occ-1", Kind: domain.OccasionSession, Policy: domain.DefaultPolicy(), Active: true}

	t.Run("accepted biometric event returns 201 with record and decision", func(t *testing.T) {
		m, router := newAttendanceRouter(t)
		outcome := verify.Outcome{Accepted: true, Confidence: 0.91, Threshold: 0.8, Mode: verify.ModeVerification, SubjectID: "subj-1"}
		rec := domain.AttendanceRecord{
			ID:         uuid.New(),
			SubjectID:  "subj-1",
			OccasionID: "occ-1",
			State:      domain.StateCompleted,
			Status:     domain.StatusPresent,
			Method:     domain.MethodBiometric,
			Confidence: 0.91,
		}

		m.service.EXPECT().Occasion(gomock.Any(), domain.OccasionID("occ-1")).Return(occ, nil)
		m.subjects.EXPECT().Subject(gomock.Any(), domain.SubjectID("subj-1")).Return(subject, nil)
		m.gateway.EXPECT().Verify(gomock.Any(), testImage, &subject, occ.Policy).Return(outcome, nil)
		m.service.EXPECT().MarkSession(gomock.Any(), eventWith("subj-1", outcome)).Return(rec, nil)

		rr := testutil.DoRequest(router, testutil.NewJSONRequest(t, http.MethodPost, "/attendance/occasions/occ-1/mark",
			map[string]string{"subject_id": "subj-1", "image": testImage64}))

		testutil.AssertStatus(t, rr, http.StatusCreated)
		got := testutil.UnmarshalResponse[markResponse](t, rr)
		assert.Equal(t, "present", got.Record.Status)
		assert.Equal(t, 0.91, got.Confidence)
		assert.Equal(t, 0.8, got.Threshold)
	})

	t.Run("duplicate mark returns 409 already_marked", func(t *testing.T) {
		m, router := newAttendanceRouter(t)
		outcome := verify.Outcome{Accepted: true, Confidence: 0.93, Mode: verify.ModeVerification, SubjectID: "subj-1"}

		m.service.EXPECT().Occasion(gomock.Any(), gomock.Any()).Return(occ, nil)
		m.subjects.EXPECT().Subject(gomock.Any(), gomock.Any()).Return(subject, nil)
		m.gateway.EXPECT().Verify(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Return(outcome, nil)
		m.service.EXPECT().MarkSession(gomock.Any(), gomock.Any()).Return(domain.AttendanceRecord{}, domain.ErrAlreadyMarked)

		rr := testutil.DoRequest(router, testutil.NewJSONRequest(t, http.MethodPost, "/attendance/occasions/occ-1/mark",
			map[string]string{"subject_id": "subj-1", "image": testImage64}))

		testutil.AssertStatus(t, rr, http.StatusConflict)
		testutil.AssertErrorKind(t, rr, "already_marked")
	})

	t.Run("low confidence returns 422", func(t *testing.T) {
		m, router := newAttendanceRouter(t)
		rejected := verify.Outcome{Accepted: false, Confidence: 0.61, Threshold: 0.8, Mode: verify.ModeVerification, SubjectID: "subj-1", Reason: domain.KindLowConfidence}

		m.service.EXPECT().Occasion(gomock.Any(), gomock.Any()).Return(occ, nil)
		m.subjects.EXPECT().Subject(gomock.Any(), gomock.Any()).Return(subject, nil)
		m.gateway.EXPECT().Verify(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Return(rejected, nil)
		m.service.EXPECT().MarkSession(gomock.Any(), gomock.Any()).Return(domain.AttendanceRecord{}, domain.ErrLowConfidence)

		rr := testutil.DoRequest(router, testutil.NewJSONRequest(t, http.MethodPost, "/attendance/occasions/occ-1/mark",
			map[string]string{"subject_id": "subj-1", "image": testImage64}))

		testutil.AssertStatus(t, rr, http.StatusUnprocessableEntity)
		testutil.AssertErrorKind(t, rr, "low_confidence")
	})

	t.Run("matcher timeout returns 504", func(t *testing.T) {
		m, router := newAttendanceRouter(t)

		m.service.EXPECT().Occasion(gomock.Any(), gomock.Any()).Return(occ, nil)
		m.subjects.EXPECT().Subject(gomock.Any(), gomock.Any()).Return(subject, nil)
		m.gateway.EXPECT().Verify(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
			Return(verify.Outcome{}, domain.ErrMatcherTimeout)
		m.service.EXPECT().MarkSession(gomock.Any(), gomock.Any()).Times(0)

		rr := testutil.DoRequest(router, testutil.NewJSONRequest(t, http.MethodPost, "/attendance/occasions/occ-1/mark",
			map[string]string{"subject_id": "subj-1", "image": testImage64}))

		testutil.AssertStatus(t, rr, http.StatusGatewayTimeout)
		testutil.AssertErrorKind(t, rr, "matcher_timeout")
	})

	t.Run("degraded matcher returns 503", func(t *testing.T) {
		m, router := newAttendanceRouter(t)

		m.service.EXPECT().Occasion(gomock.Any(), gomock.Any()).Return(occ, nil)
		m.subjects.EXPECT().Subject(gomock.Any(), gomock.Any()).Return(subject, nil)
		m.gateway.EXPECT().Verify(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
			Return(verify.Outcome{}, fmt.Errorf("matcher degraded: %w", sentinel.ErrUnavailable))
		m.service.EXPECT().MarkSession(gomock.Any(), gomock.Any()).Times(0)

		rr := testutil.DoRequest(router, testutil.NewJSONRequest(t, http.MethodPost, "/attendance/occasions/occ-1/mark",
			map[string]string{"subject_id": "subj-1", "image": testImage64}))

		testutil.AssertStatus(t, rr, http.StatusServiceUnavailable)
		testutil.AssertErrorKind(t, rr, "unavailable")
	})

	t.Run("closed occasion returns 410", func(t *testing.T) {
		m, router := newAttendanceRouter(t)
		outcome := verify.Outcome{Accepted: true, Confidence: 0.9, Mode: verify.ModeVerification, SubjectID: "subj-1"}

		m.service.EXPECT().Occasion(gomock.Any(), gomock.Any()).Return(occ, nil)
		m.subjects.EXPECT().Subject(gomock.Any(), gomock.Any()).Return(subject, nil)
		m.gateway.EXPECT().Verify(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Return(outcome, nil)
		m.service.EXPECT().MarkSession(gomock.Any(), gomock.Any()).Return(domain.AttendanceRecord{}, domain.ErrOccasionClosed)

		rr := testutil.DoRequest(router, testutil.NewJSONRequest(t, http.MethodPost, "/attendance/occasions/occ-1/mark",
			map[string]string{"subject_id": "subj-1", "image": testImage64}))

		testutil.AssertStatus(t, rr, http.StatusGone)
		testutil.AssertErrorKind(t, rr, "occasion_closed")
	})

	t.Run("manual event skips the gateway", func(t *testing.T) {
		m, router := newAttendanceRouter(t)
		rec := domain.AttendanceRecord{ID: uuid.New(), SubjectID: "subj-1", OccasionID: "occ-1", Status: domain.StatusPresent, Method: domain.MethodManual}

		m.gateway.EXPECT().Verify(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Times(0)
		m.service.EXPECT().MarkSession(gomock.Any(), gomock.Any()).DoAndReturn(
			func(_ any, e attendance.Event) (domain.AttendanceRecord, error) {
				require.Equal(t, domain.MethodManual, e.Method)
				require.True(t, e.Outcome.Accepted)
				return rec, nil
			})

		rr := testutil.DoRequest(router, testutil.NewJSONRequest(t, http.MethodPost, "/attendance/occasions/occ-1/mark",
			map[string]string{"subject_id": "subj-1", "method": "manual"}))

		testutil.AssertStatus(t, rr, http.StatusCreated)
	})

	t.Run("missing subject_id returns 400", func(t *testing.T) {
		m, router := newAttendanceRouter(t)
		m.service.EXPECT().MarkSession(gomock.Any(), gomock.Any()).Times(0)

		rr := testutil.DoRequest(router, testutil.NewJSONRequest(t, http.MethodPost, "/attendance/occasions/occ-1/mark",
			map[string]string{"image": testImage64}))

		testutil.AssertStatus(t, rr, http.StatusBadRequest)
		testutil.AssertErrorKind(t, rr, "invalid_request")
	})

	t.Run("unknown subject returns 404", func(t *testing.T) {
		m, router := newAttendanceRouter(t)

		m.service.EXPECT().Occasion(gomock.Any(), gomock.Any()).Return(occ, nil)
		m.subjects.EXPECT().Subject(gomock.Any(), gomock.Any()).Return(domain.Subject{}, sentinel.ErrNotFound)

		rr := testutil.DoRequest(router, testutil.NewJSONRequest(t, http.MethodPost, "/attendance/occasions/occ-1/mark",
			map[string]string{"subject_id": "ghost", "image": testImage64}))

		testutil.AssertStatus(t, rr, http.StatusNotFound)
	})
}

func TestHandleIdentify(t *testing.T) {
	occ := domain.Occasion{ID: "occ-1", Kind: domain.OccasionSession, Policy: domain.DefaultPolicy(), Active: true}

	t.Run("resolved candidate is marked", func(t *testing.T) {
		m, router := newAttendanceRouter(t)
		outcome := verify.Outcome{Accepted: true, Confidence: 0.9, Threshold: 0.85, Mode: verify.ModeIdentification, SubjectID: "subj-7"}
		rec := domain.AttendanceRecord{ID: uuid.New(), SubjectID: "subj-7", OccasionID: "occ-1", Status: domain.StatusPresent, Method: domain.MethodBiometric}

		m.service.EXPECT().Occasion(gomock.Any(), domain.OccasionID("occ-1")).Return(occ, nil)
		m.gateway.EXPECT().Identify(gomock.Any(), testImage, occ.Policy).Return(outcome, nil)
		m.service.EXPECT().MarkSession(gomock.Any(), gomock.Any()).Return(rec, nil)

		rr := testutil.DoRequest(router, testutil.NewJSONRequest(t, http.MethodPost, "/attendance/occasions/occ-1/identify",
			map[string]string{"image": testImage64}))

		testutil.AssertStatus(t, rr, http.StatusCreated)
		got := testutil.UnmarshalResponse[markResponse](t, rr)
		assert.Equal(t, "subj-7", got.Record.SubjectID)
		assert.Equal(t, "identification", got.Mode)
	})

	t.Run("ambiguous candidates return 422", func(t *testing.T) {
		m, router := newAttendanceRouter(t)
		rejected := verify.Outcome{Accepted: false, Mode: verify.ModeIdentification, Reason: domain.KindAmbiguous}

		m.service.EXPECT().Occasion(gomock.Any(), gomock.Any()).Return(occ, nil)
		m.gateway.EXPECT().Identify(gomock.Any(), gomock.Any(), gomock.Any()).Return(rejected, nil)
		m.service.EXPECT().MarkSession(gomock.Any(), gomock.Any()).Return(domain.AttendanceRecord{}, domain.ErrAmbiguous)

		rr := testutil.DoRequest(router, testutil.NewJSONRequest(t, http.MethodPost, "/attendance/occasions/occ-1/identify",
			map[string]string{"image": testImage64}))

		testutil.AssertStatus(t, rr, http.StatusUnprocessableEntity)
		testutil.AssertErrorKind(t, rr, "ambiguous")
	})
}

func TestHandleCheckInOut(t *testing.T) {
	subject := domain.Subject{ID: "subj-1"}
	occ := domain.Occasion{ID: "day-1", Kind: domain.OccasionDay, Policy: domain.DefaultPolicy(), Active: true}
	outcome := verify.Outcome{Accepted: true, Confidence: 0.88, Mode: verify.ModeVerification, SubjectID: "subj-1"}

	t.Run("check-out without check-in returns 409", func(t *testing.T) {
		m, router := newAttendanceRouter(t)

		m.service.EXPECT().Occasion(gomock.Any(), gomock.Any()).Return(occ, nil)
		m.subjects.EXPECT().Subject(gomock.Any(), gomock.Any()).Return(subject, nil)
		m.gateway.EXPECT().Verify(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Return(outcome, nil)
		m.service.EXPECT().CheckOut(gomock.Any(), gomock.Any()).Return(domain.AttendanceRecord{}, domain.ErrNotCheckedIn)

		rr := testutil.DoRequest(router, testutil.NewJSONRequest(t, http.MethodPost, "/attendance/occasions/day-1/check-out",
			map[string]string{"subject_id": "subj-1", "image": testImage64}))

		testutil.AssertStatus(t, rr, http.StatusConflict)
		testutil.AssertErrorKind(t, rr, "not_checked_in")
	})

	t.Run("check-in routes to CheckIn", func(t *testing.T) {
		m, router := newAttendanceRouter(t)
		rec := domain.AttendanceRecord{ID: uuid.New(), SubjectID: "subj-1", OccasionID: "day-1", State: domain.StateInProgress, Status: domain.StatusPresent}

		m.service.EXPECT().Occasion(gomock.Any(), gomock.Any()).Return(occ, nil)
		m.subjects.EXPECT().Subject(gomock.Any(), gomock.Any()).Return(subject, nil)
		m.gateway.EXPECT().Verify(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Return(outcome, nil)
		m.service.EXPECT().CheckIn(gomock.Any(), gomock.Any()).Return(rec, nil)

		rr := testutil.DoRequest(router, testutil.NewJSONRequest(t, http.MethodPost, "/attendance/occasions/day-1/check-in",
			map[string]string{"subject_id": "subj-1", "image": testImage64}))

		testutil.AssertStatus(t, rr, http.StatusCreated)
		got := testutil.UnmarshalResponse[markResponse](t, rr)
		assert.Equal(t, "in_progress", got.Record.State)
	})
}

func TestHandleCorrections(t *testing.T) {
	recordID := uuid.New()
	checkIn := time.Date(2026, 3, 2, 9, 5, 0, 0, time.UTC)

	t.Run("correction supersedes and returns replacement", func(t *testing.T) {
		m, router := newAttendanceRouter(t)
		replacement := domain.AttendanceRecord{ID: uuid.New(), SubjectID: "subj-1", OccasionID: "occ-1", Status: domain.StatusPresent, Method: domain.MethodManual}

		m.service.EXPECT().Correct(gomock.Any(), attendance.CorrectionRequest{
			RecordID:   recordID,
			CheckIn:    &checkIn,
			Reason:     "scanner clock drift",
			ApprovedBy: "admin-7",
		}).Return(replacement, nil)

		rr := testutil.DoRequest(router, testutil.NewJSONRequest(t, http.MethodPost, "/attendance/records/"+recordID.String()+"/corrections",
			map[string]any{"check_in": checkIn, "reason": "scanner clock drift", "approved_by": "admin-7"}))

		testutil.AssertStatus(t, rr, http.StatusCreated)
		got := testutil.UnmarshalResponse[recordResponse](t, rr)
		assert.Equal(t, replacement.ID, got.ID)
	})

	t.Run("missing reason returns 400", func(t *testing.T) {
		m, router := newAttendanceRouter(t)
		m.service.EXPECT().Correct(gomock.Any(), gomock.Any()).Times(0)

		rr := testutil.DoRequest(router, testutil.NewJSONRequest(t, http.MethodPost, "/attendance/records/"+recordID.String()+"/corrections",
			map[string]any{"check_in": checkIn, "approved_by": "admin-7"}))

		testutil.AssertStatus(t, rr, http.StatusBadRequest)
	})

	t.Run("lists the audit trail", func(t *testing.T) {
		m, router := newAttendanceRouter(t)
		m.service.EXPECT().Corrections(gomock.Any(), recordID).Return([]domain.Correction{
			{ID: uuid.New(), RecordID: recordID, Field: "status", OldValue: "late", NewValue: "present"},
		}, nil)

		rr := testutil.DoRequest(router, testutil.NewJSONRequest(t, http.MethodGet, "/attendance/records/"+recordID.String()+"/corrections", nil))

		testutil.AssertStatus(t, rr, http.StatusOK)
		got := testutil.UnmarshalResponse[[]correctionResponse](t, rr)
		require.Len(t, *got, 1)
		assert.Equal(t, "status", (*got)[0].Field)
	})
}

func TestHandleClose(t *testing.T) {
	m, router := newAttendanceRouter(t)
	closedAt := time.Date(2026, 3, 2, 11, 0, 0, 0, time.UTC)
	m.service.EXPECT().CloseOccasion(gomock.Any(), domain.OccasionID("occ-1")).
		Return(domain.Occasion{ID: "occ-1", Kind: domain.OccasionSession, Active: false, ClosedAt: &closedAt}, nil)

	rr := testutil.DoRequest(router, testutil.NewJSONRequest(t, http.MethodPost, "/attendance/occasions/occ-1/close", nil))

	testutil.AssertStatus(t, rr, http.StatusOK)
	got := testutil.UnmarshalResponse[occasionResponse](t, rr)
	assert.False(t, got.Active)
}

// eventWith matches a state machine event by subject and outcome, ignoring
// the request-scoped timestamp.
func eventWith(subjectID domain.SubjectID, outcome verify.Outcome) gomock.Matcher {
	return gomock.Cond(func(x any) bool {
		e, ok := x.(attendance.Event)
		return ok && e.SubjectID == subjectID && e.Outcome == outcome
	})
}
