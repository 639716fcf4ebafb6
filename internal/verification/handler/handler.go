package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"trustex/internal/verification/models"
	"trustex/internal/verification/service"
	id "trustex/pkg/domain"
	dErrors "trustex/pkg/domain-errors"
	"trustex/pkg/platform/httputil"
	"trustex/pkg/requestcontext"
)

// Service is the verification surface the handler needs.
type Service interface {
	StartVerification(ctx context.Context, req service.StartRequest) (id.JobID, error)
	ProcessVerificationJob(ctx context.Context, jobID id.JobID) (*models.Job, error)
	ProcessPending(ctx context.Context, limit int) (service.BatchResult, error)
	GetProfile(ctx context.Context, companyID id.CompanyID) (*models.Profile, error)
	GetJobStatus(ctx context.Context, jobID id.JobID) (*models.Job, error)
	ListJobs(ctx context.Context, companyID id.CompanyID) ([]*models.Job, error)
	CancelJob(ctx context.Context, jobID id.JobID) (*models.Job, error)
	OverrideStatus(ctx context.Context, companyID id.CompanyID, req service.OverrideRequest) (*models.Profile, error)
	PurgeExpiredCache(ctx context.Context) (int, error)
}

// Handler wires verification endpoints to the scheduler.
type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Handler{service: service, logger: logger}
}

func (h *Handler) RegisterPublic(r chi.Router) {
	r.Get("/companies/{id}/verification", h.HandleGetProfile)
	r.Get("/companies/{id}/verification/jobs", h.HandleListJobs)
	r.Get("/verification/jobs/{id}", h.HandleGetJob)
}

// RegisterAuthenticated mounts endpoints that need a caller identity.
func (h *Handler) RegisterAuthenticated(r chi.Router) {
	r.Post("/verification/jobs", h.HandleStart)
}

// RegisterAdmin mounts admin-only endpoints. The router must install the
// admin token middleware first.
func (h *Handler) RegisterAdmin(r chi.Router) {
	r.Post("/admin/verification/jobs/{id}/process", h.HandleProcess)
	r.Post("/admin/verification/jobs/{id}/cancel", h.HandleCancel)
	r.Post("/admin/verification/process-pending", h.HandleProcessPending)
	r.Post("/admin/verification/cache/purge", h.HandlePurgeCache)
	r.Post("/admin/companies/{id}/verification/override", h.HandleOverride)
}

func companyIDParam(r *http.Request) (id.CompanyID, error) {
	companyID, err := id.ParseCompanyID(chi.URLParam(r, "id"))
	if err != nil {
		return id.CompanyID{}, dErrors.Wrap(err, dErrors.CodeBadRequest, "invalid company id")
	}
	return companyID, nil
}

func jobIDParam(r *http.Request) (id.JobID, error) {
	jobID, err := id.ParseJobID(chi.URLParam(r, "id"))
	if err != nil {
		return id.JobID{}, dErrors.Wrap(err, dErrors.CodeBadRequest, "invalid job id")
	}
	return jobID, nil
}

// HandleStart handles POST /verification/jobs.
func (h *Handler) HandleStart(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	caller := requestcontext.Principal(ctx)
	if caller.IsZero() {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "authentication required"))
		return
	}
	req, ok := httputil.DecodeAndPrepare[StartRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	parsed := req.Parsed()
	jobID, err := h.service.StartVerification(ctx, parsed)
	if err != nil {
		h.logger.WarnContext(ctx, "start verification failed",
			"request_id", requestID,
			"principal", caller.String(),
			"company_id", parsed.CompanyID.String(),
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusAccepted, StartResponse{JobID: jobID, CompanyID: parsed.CompanyID})
}

// HandleGetProfile handles GET /companies/{id}/verification.
func (h *Handler) HandleGetProfile(w http.ResponseWriter, r *http.Request) {
	companyID, err := companyIDParam(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	profile, err := h.service.GetProfile(r.Context(), companyID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, profile)
}

// HandleListJobs handles GET /companies/{id}/verification/jobs.
func (h *Handler) HandleListJobs(w http.ResponseWriter, r *http.Request) {
	companyID, err := companyIDParam(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	jobs, err := h.service.ListJobs(r.Context(), companyID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if jobs == nil {
		jobs = []*models.Job{}
	}
	httputil.WriteJSON(w, http.StatusOK, JobsResponse{Jobs: jobs})
}

// HandleGetJob handles GET /verification/jobs/{id}.
func (h *Handler) HandleGetJob(w http.ResponseWriter, r *http.Request) {
	jobID, err := jobIDParam(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	job, err := h.service.GetJobStatus(r.Context(), jobID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, job)
}

// HandleProcess handles POST /admin/verification/jobs/{id}/process.
func (h *Handler) HandleProcess(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	jobID, err := jobIDParam(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	job, err := h.service.ProcessVerificationJob(ctx, jobID)
	if err != nil {
		h.logger.WarnContext(ctx, "process verification job failed",
			"request_id", requestcontext.RequestID(ctx),
			"job_id", jobID.String(),
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, job)
}

// HandleCancel handles POST /admin/verification/jobs/{id}/cancel.
func (h *Handler) HandleCancel(w http.ResponseWriter, r *http.Request) {
	jobID, err := jobIDParam(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	job, err := h.service.CancelJob(r.Context(), jobID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, job)
}

// HandleProcessPending handles POST /admin/verification/process-pending?limit=.
func (h *Handler) HandleProcessPending(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "limit must be a positive integer"))
			return
		}
		limit = n
	}
	res, err := h.service.ProcessPending(r.Context(), limit)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, res)
}

// HandlePurgeCache handles POST /admin/verification/cache/purge.
func (h *Handler) HandlePurgeCache(w http.ResponseWriter, r *http.Request) {
	removed, err := h.service.PurgeExpiredCache(r.Context())
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, PurgeResponse{Removed: removed})
}

// HandleOverride handles POST /admin/companies/{id}/verification/override.
func (h *Handler) HandleOverride(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	companyID, err := companyIDParam(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	req, ok := httputil.DecodeAndPrepare[OverrideRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	profile, err := h.service.OverrideStatus(ctx, companyID, req.toService())
	if err != nil {
		h.logger.WarnContext(ctx, "verification override failed",
			"request_id", requestID,
			"company_id", companyID.String(),
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, profile)
}
