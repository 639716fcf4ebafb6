package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"trustex/internal/exchange/models"
	id "trustex/pkg/domain"
	dErrors "trustex/pkg/domain-errors"
	"trustex/pkg/platform/httputil"
	"trustex/pkg/requestcontext"
)

// Service is the ledger surface the handler needs.
type Service interface {
	CreateCompany(ctx context.Context, owner id.Principal, req *models.CreateCompanyRequest) (*models.Company, error)
	ListCompanies(ctx context.Context) ([]*models.Company, error)
	GetCompany(ctx context.Context, companyID id.CompanyID) (*models.Company, error)
	Buy(ctx context.Context, caller id.Principal, companyID id.CompanyID, amount int64) (int64, error)
	Sell(ctx context.Context, caller id.Principal, companyID id.CompanyID, amount int64) (int64, error)
	Transfer(ctx context.Context, caller id.Principal, companyID id.CompanyID, args models.TransferArgs) (*models.TransferResult, error)
	BalanceOf(ctx context.Context, companyID id.CompanyID, account models.Account) (int64, error)
	GetMyHolding(ctx context.Context, caller id.Principal, companyID id.CompanyID) (*models.HoldingView, error)
	ListHoldings(ctx context.Context, caller id.Principal) ([]models.HoldingView, error)
	ListTransfers(ctx context.Context, companyID id.CompanyID, limit int) ([]models.TransferRecord, error)
}

// Handler wires ledger endpoints to the exchange service.
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

// RegisterPublic mounts read-only endpoints.
func (h *Handler) RegisterPublic(r chi.Router) {
	r.Get("/companies", h.HandleListCompanies)
	r.Get("/companies/{id}", h.HandleGetCompany)
	r.Get("/companies/{id}/balance", h.HandleBalance)
	r.Get("/companies/{id}/transfers", h.HandleListTransfers)
}

// RegisterAuthenticated mounts endpoints that act on behalf of the caller.
// The router must install the auth middleware first.
func (h *Handler) RegisterAuthenticated(r chi.Router) {
	r.Post("/companies", h.HandleCreateCompany)
	r.Post("/companies/{id}/buy", h.HandleBuy)
	r.Post("/companies/{id}/sell", h.HandleSell)
	r.Post("/companies/{id}/transfer", h.HandleTransfer)
	r.Get("/me/holdings", h.HandleListHoldings)
	r.Get("/me/holdings/{id}", h.HandleGetMyHolding)
}

func companyIDParam(r *http.Request) (id.CompanyID, error) {
	companyID, err := id.ParseCompanyID(chi.URLParam(r, "id"))
	if err != nil {
		return id.CompanyID{}, dErrors.Wrap(err, dErrors.CodeBadRequest, "invalid company id")
	}
	return companyID, nil
}

func callerFrom(ctx context.Context) (id.Principal, error) {
	caller := requestcontext.Principal(ctx)
	if caller.IsZero() {
		return "", dErrors.New(dErrors.CodeUnauthorized, "authentication required")
	}
	return caller, nil
}

// HandleCreateCompany handles POST /companies.
func (h *Handler) HandleCreateCompany(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	caller, err := callerFrom(ctx)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	req, ok := httputil.DecodeAndPrepare[models.CreateCompanyRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	company, err := h.service.CreateCompany(ctx, caller, req)
	if err != nil {
		h.logger.WarnContext(ctx, "create company failed",
			"request_id", requestID,
			"principal", caller.String(),
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, company)
}

// HandleListCompanies handles GET /companies.
func (h *Handler) HandleListCompanies(w http.ResponseWriter, r *http.Request) {
	companies, err := h.service.ListCompanies(r.Context())
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if companies == nil {
		companies = []*models.Company{}
	}
	httputil.WriteJSON(w, http.StatusOK, CompaniesResponse{Companies: companies})
}

// HandleGetCompany handles GET /companies/{id}.
func (h *Handler) HandleGetCompany(w http.ResponseWriter, r *http.Request) {
	companyID, err := companyIDParam(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	company, err := h.service.GetCompany(r.Context(), companyID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, company)
}

// HandleBalance handles GET /companies/{id}/balance?owner=&subaccount=.
func (h *Handler) HandleBalance(w http.ResponseWriter, r *http.Request) {
	companyID, err := companyIDParam(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	owner, err := id.ParsePrincipal(r.URL.Query().Get("owner"))
	if err != nil {
		httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeBadRequest, "owner query parameter is required"))
		return
	}
	sub, err := id.ParseSubaccount(r.URL.Query().Get("subaccount"))
	if err != nil {
		httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeBadRequest, "invalid subaccount"))
		return
	}
	account := models.Account{Owner: owner, Subaccount: sub}
	balance, err := h.service.BalanceOf(r.Context(), companyID, account)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, BalanceResponse{
		CompanyID:  companyID,
		Owner:      owner,
		Subaccount: sub,
		Balance:    balance,
	})
}

// HandleListTransfers handles GET /companies/{id}/transfers?limit=.
func (h *Handler) HandleListTransfers(w http.ResponseWriter, r *http.Request) {
	companyID, err := companyIDParam(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, err = strconv.Atoi(raw)
		if err != nil || limit < 0 {
			httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "limit must be a non-negative integer"))
			return
		}
	}
	recs, err := h.service.ListTransfers(r.Context(), companyID, limit)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, TransfersResponse{Transfers: recs})
}

// HandleBuy handles POST /companies/{id}/buy.
func (h *Handler) HandleBuy(w http.ResponseWriter, r *http.Request) {
	h.handleTrade(w, r, "buy", h.service.Buy)
}

// HandleSell handles POST /companies/{id}/sell.
func (h *Handler) HandleSell(w http.ResponseWriter, r *http.Request) {
	h.handleTrade(w, r, "sell", h.service.Sell)
}

type tradeFunc func(ctx context.Context, caller id.Principal, companyID id.CompanyID, amount int64) (int64, error)

func (h *Handler) handleTrade(w http.ResponseWriter, r *http.Request, op string, trade tradeFunc) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	caller, err := callerFrom(ctx)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	companyID, err := companyIDParam(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	req, ok := httputil.DecodeAndPrepare[AmountRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	price, err := trade(ctx, caller, companyID, req.Amount)
	if err != nil {
		h.logger.InfoContext(ctx, op+" rejected",
			"request_id", requestID,
			"company_id", companyID.String(),
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, PriceResponse{CompanyID: companyID, TokenPrice: price})
}

// HandleTransfer handles POST /companies/{id}/transfer.
func (h *Handler) HandleTransfer(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	caller, err := callerFrom(ctx)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	companyID, err := companyIDParam(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	req, ok := httputil.DecodeAndPrepare[TransferRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	res, err := h.service.Transfer(ctx, caller, companyID, req.Args())
	if err != nil {
		h.logger.InfoContext(ctx, "transfer rejected",
			"request_id", requestID,
			"company_id", companyID.String(),
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, res)
}

// HandleListHoldings handles GET /me/holdings.
func (h *Handler) HandleListHoldings(w http.ResponseWriter, r *http.Request) {
	caller, err := callerFrom(r.Context())
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	views, err := h.service.ListHoldings(r.Context(), caller)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, HoldingsResponse{Holdings: views})
}

// HandleGetMyHolding handles GET /me/holdings/{id}.
func (h *Handler) HandleGetMyHolding(w http.ResponseWriter, r *http.Request) {
	caller, err := callerFrom(r.Context())
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	companyID, err := companyIDParam(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	view, err := h.service.GetMyHolding(r.Context(), caller, companyID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, view)
}
