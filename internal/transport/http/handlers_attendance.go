package httptransport

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"presence/internal/attendance"
	"presence/internal/domain"
	"presence/internal/verify"
	"presence/pkg/platform/httputil"
	"presence/pkg/platform/middleware/metadata"
	"presence/pkg/requestcontext"
)

// AttendanceService is the state machine surface the transport needs.
type AttendanceService interface {
	MarkSession(ctx context.Context, e attendance.Event) (domain.AttendanceRecord, error)
	CheckIn(ctx context.Context, e attendance.Event) (domain.AttendanceRecord, error)
	CheckOut(ctx context.Context, e attendance.Event) (domain.AttendanceRecord, error)
	Correct(ctx context.Context, req attendance.CorrectionRequest) (domain.AttendanceRecord, error)
	CloseOccasion(ctx context.Context, id domain.OccasionID) (domain.Occasion, error)
	GetRecord(ctx context.Context, subjectID domain.SubjectID, occasionID domain.OccasionID) (domain.AttendanceRecord, error)
	Corrections(ctx context.Context, recordID uuid.UUID) ([]domain.Correction, error)
	Occasion(ctx context.Context, id domain.OccasionID) (domain.Occasion, error)
}

// VerificationGateway decides biometric events before they reach the state
// machine.
type VerificationGateway interface {
	Verify(ctx context.Context, image []byte, subject *domain.Subject, policy domain.Policy) (verify.Outcome, error)
	Identify(ctx context.Context, image []byte, policy domain.Policy) (verify.Outcome, error)
}

// SubjectDirectory resolves enrolled subjects for threshold overrides.
type SubjectDirectory interface {
	Subject(ctx context.Context, id domain.SubjectID) (domain.Subject, error)
}

// AttendanceHandler wires marking endpoints to the gateway and state machine.
type AttendanceHandler struct {
	service  AttendanceService
	gateway  VerificationGateway
	subjects SubjectDirectory
	logger   *slog.Logger
}

func NewAttendanceHandler(service AttendanceService, gateway VerificationGateway, subjects SubjectDirectory, logger *slog.Logger) *AttendanceHandler {
	return &AttendanceHandler{
		service:  service,
		gateway:  gateway,
		subjects: subjects,
		logger:   logger,
	}
}

// Register mounts attendance endpoints on the router.
func (h *AttendanceHandler) Register(r chi.Router) {
	r.Route("/attendance", func(r chi.Router) {
		r.Post("/occasions/{occasionID}/mark", h.HandleMark)
		r.Post("/occasions/{occasionID}/identify", h.HandleIdentify)
		r.Post("/occasions/{occasionID}/check-in", h.HandleCheckIn)
		r.Post("/occasions/{occasionID}/check-out", h.HandleCheckOut)
		r.Post("/occasions/{occasionID}/close", h.HandleClose)
		r.Get("/occasions/{occasionID}/records/{subjectID}", h.HandleGetRecord)
		r.Post("/records/{recordID}/corrections", h.HandleCorrect)
		r.Get("/records/{recordID}/corrections", h.HandleListCorrections)
	})
}

// HandleMark handles POST /attendance/occasions/{occasionID}/mark: a single
// event marking full session attendance, in verification mode or manual.
func (h *AttendanceHandler) HandleMark(w http.ResponseWriter, r *http.Request) {
	h.handleEvent(w, r, h.service.MarkSession)
}

// HandleCheckIn handles POST /attendance/occasions/{occasionID}/check-in.
func (h *AttendanceHandler) HandleCheckIn(w http.ResponseWriter, r *http.Request) {
	h.handleEvent(w, r, h.service.CheckIn)
}

// HandleCheckOut handles POST /attendance/occasions/{occasionID}/check-out.
func (h *AttendanceHandler) HandleCheckOut(w http.ResponseWriter, r *http.Request) {
	h.handleEvent(w, r, h.service.CheckOut)
}

func (h *AttendanceHandler) handleEvent(w http.ResponseWriter, r *http.Request, op func(context.Context, attendance.Event) (domain.AttendanceRecord, error)) {
	ctx := r.Context()
	occasionID := domain.OccasionID(chi.URLParam(r, "occasionID"))
	start := time.Now()

	var req markRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "invalid request body")
		return
	}
	if msg := req.validate(true); msg != "" {
		badRequest(w, msg)
		return
	}

	event, ok := h.buildEvent(w, r, occasionID, req)
	if !ok {
		return
	}

	rec, err := op(ctx, event)
	if err != nil {
		h.logEventError(ctx, occasionID, event, err)
		writeError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "event accepted",
		"request_id", requestcontext.RequestID(ctx),
		"occasion_id", occasionID,
		"subject_id", rec.SubjectID,
		"status", rec.Status,
		"client_ip", metadata.GetClientIP(ctx),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	httputil.WriteJSON(w, http.StatusCreated, toMarkResponse(rec, event.Outcome))
}

// HandleIdentify handles POST /attendance/occasions/{occasionID}/identify:
// identification mode, where the matcher resolves who the subject is.
func (h *AttendanceHandler) HandleIdentify(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	occasionID := domain.OccasionID(chi.URLParam(r, "occasionID"))

	var req markRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "invalid request body")
		return
	}
	if req.manual() {
		badRequest(w, "identification requires a biometric image")
		return
	}
	if msg := req.validate(false); msg != "" {
		badRequest(w, msg)
		return
	}

	occ, err := h.service.Occasion(ctx, occasionID)
	if err != nil {
		writeError(w, err)
		return
	}
	image, err := req.image()
	if err != nil {
		badRequest(w, "image must be base64")
		return
	}

	outcome, err := h.gateway.Identify(ctx, image, occ.Policy)
	if err != nil {
		writeError(w, err)
		return
	}

	event := attendance.Event{
		OccasionID: occasionID,
		Outcome:    outcome,
		Method:     domain.MethodBiometric,
		At:         req.at(),
	}
	rec, err := h.service.MarkSession(ctx, event)
	if err != nil {
		h.logEventError(ctx, occasionID, event, err)
		writeError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, toMarkResponse(rec, outcome))
}

// buildEvent turns the request into a state machine event. Manual events skip
// the gateway; biometric events are decided first, and a rejected outcome
// still flows to the service so the rejection path stays single.
func (h *AttendanceHandler) buildEvent(w http.ResponseWriter, r *http.Request, occasionID domain.OccasionID, req markRequest) (attendance.Event, bool) {
	ctx := r.Context()
	subjectID := domain.SubjectID(req.SubjectID)

	if req.manual() {
		return attendance.ManualEvent(subjectID, occasionID, req.at()), true
	}

	occ, err := h.service.Occasion(ctx, occasionID)
	if err != nil {
		writeError(w, err)
		return attendance.Event{}, false
	}
	subject, err := h.subjects.Subject(ctx, subjectID)
	if err != nil {
		writeError(w, err)
		return attendance.Event{}, false
	}
	image, err := req.image()
	if err != nil {
		badRequest(w, "image must be base64")
		return attendance.Event{}, false
	}

	outcome, err := h.gateway.Verify(ctx, image, &subject, occ.Policy)
	if err != nil {
		writeError(w, err)
		return attendance.Event{}, false
	}

	return attendance.Event{
		OccasionID: occasionID,
		SubjectID:  subjectID,
		Outcome:    outcome,
		Method:     domain.MethodBiometric,
		At:         req.at(),
	}, true
}

// HandleCorrect handles POST /attendance/records/{recordID}/corrections.
func (h *AttendanceHandler) HandleCorrect(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	recordID, err := uuid.Parse(chi.URLParam(r, "recordID"))
	if err != nil {
		badRequest(w, "invalid record id")
		return
	}

	var req correctionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "invalid request body")
		return
	}
	if msg := req.validate(); msg != "" {
		badRequest(w, msg)
		return
	}

	rec, err := h.service.Correct(ctx, attendance.CorrectionRequest{
		RecordID:   recordID,
		CheckIn:    req.CheckIn,
		CheckOut:   req.CheckOut,
		Reason:     req.Reason,
		ApprovedBy: req.ApprovedBy,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "record corrected",
		"request_id", requestcontext.RequestID(ctx),
		"record_id", recordID,
		"new_record_id", rec.ID,
		"approved_by", req.ApprovedBy,
	)
	httputil.WriteJSON(w, http.StatusCreated, toRecordResponse(rec))
}

// HandleListCorrections handles GET /attendance/records/{recordID}/corrections.
func (h *AttendanceHandler) HandleListCorrections(w http.ResponseWriter, r *http.Request) {
	recordID, err := uuid.Parse(chi.URLParam(r, "recordID"))
	if err != nil {
		badRequest(w, "invalid record id")
		return
	}

	corrections, err := h.service.Corrections(r.Context(), recordID)
	if err != nil {
		writeError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toCorrectionResponses(corrections))
}

// HandleClose handles POST /attendance/occasions/{occasionID}/close.
func (h *AttendanceHandler) HandleClose(w http.ResponseWriter, r *http.Request) {
	occ, err := h.service.CloseOccasion(r.Context(), domain.OccasionID(chi.URLParam(r, "occasionID")))
	if err != nil {
		writeError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toOccasionResponse(occ))
}

// HandleGetRecord handles GET /attendance/occasions/{occasionID}/records/{subjectID}.
func (h *AttendanceHandler) HandleGetRecord(w http.ResponseWriter, r *http.Request) {
	rec, err := h.service.GetRecord(r.Context(),
		domain.SubjectID(chi.URLParam(r, "subjectID")),
		domain.OccasionID(chi.URLParam(r, "occasionID")),
	)
	if err != nil {
		writeError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toRecordResponse(rec))
}

func (h *AttendanceHandler) logEventError(ctx context.Context, occasionID domain.OccasionID, event attendance.Event, err error) {
	h.logger.WarnContext(ctx, "event rejected",
		"request_id", requestcontext.RequestID(ctx),
		"occasion_id", occasionID,
		"subject_id", event.SubjectID,
		"client_ip", metadata.GetClientIP(ctx),
		"error", err,
	)
}
