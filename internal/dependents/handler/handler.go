package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"trustex/contracts/propagation"
	"trustex/internal/dependents/models"
	dErrors "trustex/pkg/domain-errors"
	"trustex/pkg/platform/httputil"
	"trustex/pkg/requestcontext"
)

type Service interface {
	Register(ctx context.Context, address string) (*models.Dependent, error)
	Unregister(ctx context.Context, address string) error
	List(ctx context.Context) ([]models.Dependent, error)
	Scan(ctx context.Context) (models.ScanResult, error)
	ApplyPush(ctx context.Context, push propagation.ProfilePush) error
}

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

// RegisterAdmin mounts the dependent registry and scan trigger. The router
// must install the admin token middleware first.
func (h *Handler) RegisterAdmin(r chi.Router) {
	r.Get("/admin/dependents", h.HandleList)
	r.Post("/admin/dependents", h.HandleRegister)
	r.Delete("/admin/dependents", h.HandleUnregister)
	r.Post("/admin/verification/scan", h.HandleScan)
}

// RegisterInternal mounts the inbound push endpoint. The router must install
// the push key middleware first.
func (h *Handler) RegisterInternal(r chi.Router) {
	r.Post(propagation.PushPath, h.HandlePush)
}

// DependentRequest is the body of POST and DELETE /admin/dependents.
type DependentRequest struct {
	Address string `json:"address"`
}

func (r *DependentRequest) Normalize() {
	if r != nil {
		r.Address = strings.TrimSpace(r.Address)
	}
}

func (r *DependentRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	if r.Address == "" {
		return dErrors.New(dErrors.CodeValidation, "address is required")
	}
	return nil
}

type DependentsResponse struct {
	Dependents []models.Dependent `json:"dependents"`
}

// HandleList handles GET /admin/dependents.
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	deps, err := h.service.List(r.Context())
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if deps == nil {
		deps = []models.Dependent{}
	}
	httputil.WriteJSON(w, http.StatusOK, DependentsResponse{Dependents: deps})
}

// HandleRegister handles POST /admin/dependents.
func (h *Handler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	req, ok := httputil.DecodeAndPrepare[DependentRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	dep, err := h.service.Register(ctx, req.Address)
	if err != nil {
		h.logger.WarnContext(ctx, "register dependent failed", "request_id", requestID, "error", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, dep)
}

// HandleUnregister handles DELETE /admin/dependents.
func (h *Handler) HandleUnregister(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	req, ok := httputil.DecodeAndPrepare[DependentRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	if err := h.service.Unregister(ctx, req.Address); err != nil {
		httputil.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleScan handles POST /admin/verification/scan.
func (h *Handler) HandleScan(w http.ResponseWriter, r *http.Request) {
	res, err := h.service.Scan(r.Context())
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, res)
}

// HandlePush handles POST /internal/verification-profiles.
func (h *Handler) HandlePush(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	push, ok := httputil.DecodeAndPrepare[propagation.ProfilePush](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	if err := h.service.ApplyPush(ctx, *push); err != nil {
		h.logger.WarnContext(ctx, "inbound profile rejected",
			"request_id", requestID,
			"company_id", push.CompanyID,
			"origin", push.Origin,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}
