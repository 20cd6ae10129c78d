package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"sto-gateway/internal/domain"
	"sto-gateway/internal/token"
	dErrors "sto-gateway/pkg/domain-errors"
	"sto-gateway/pkg/fixedpoint"
	"sto-gateway/pkg/platform/httputil"
	"sto-gateway/pkg/requestcontext"
)

// Service defines the token engine operations the transport layer needs.
type Service interface {
	SetMainParams(ctx context.Context, caller domain.Address, params domain.MainParams) error
	SetStoFlags(ctx context.Context, caller domain.Address, flags domain.StoFlags) error
	SetStoParams(ctx context.Context, caller domain.Address, params domain.StoParams) error
	AdvanceStage(ctx context.Context, caller domain.Address, target domain.Stage) error
	AddWhitelist(ctx context.Context, caller domain.Address, eins []domain.EIN) error
	RemoveWhitelist(ctx context.Context, caller domain.Address, eins []domain.EIN) error
	AddBlacklist(ctx context.Context, caller domain.Address, eins []domain.EIN) error
	RemoveBlacklist(ctx context.Context, caller domain.Address, eins []domain.EIN) error
	BuyTokens(ctx context.Context, caller domain.Address, amount fixedpoint.Amount) (token.BuyReceipt, error)
	Transfer(ctx context.Context, caller, to domain.Address, amount fixedpoint.Amount) error
	AddPaymentPeriodBoundaries(ctx context.Context, caller domain.Address, boundaries []time.Time) error
	PaymentPeriodBoundaries(ctx context.Context) ([]time.Time, error)
	CurrentPeriod(ctx context.Context) (int, error)
	AddHydroOracle(ctx context.Context, caller, oracle domain.Address) error
	NotifyPeriodResults(ctx context.Context, caller domain.Address, result fixedpoint.Amount) error
	UpdateHydroPrice(ctx context.Context, caller domain.Address, price fixedpoint.Amount) error
	ClaimPayment(ctx context.Context, caller domain.Address) (token.ClaimResult, error)
	Info(ctx context.Context) token.Info
	BalanceOf(ctx context.Context, addr domain.Address) (fixedpoint.Amount, error)
	Now() time.Time
}

// Handler wires token endpoints to the token service.
type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts token endpoints on the router. Every route expects the auth
// middleware to have placed the caller address on the context.
func (h *Handler) Register(r chi.Router) {
	r.Post("/token/params/main", h.HandleSetMainParams)
	r.Post("/token/params/flags", h.HandleSetStoFlags)
	r.Post("/token/params/sto", h.HandleSetStoParams)
	r.Post("/token/stage/{stage}", h.HandleAdvanceStage)
	r.Post("/token/whitelist", h.HandleAddWhitelist)
	r.Delete("/token/whitelist", h.HandleRemoveWhitelist)
	r.Post("/token/blacklist", h.HandleAddBlacklist)
	r.Delete("/token/blacklist", h.HandleRemoveBlacklist)
	r.Post("/token/buy", h.HandleBuy)
	r.Post("/token/transfer", h.HandleTransfer)
	r.Post("/token/periods", h.HandleAddBoundaries)
	r.Get("/token/periods", h.HandleListBoundaries)
	r.Get("/token/period", h.HandleCurrentPeriod)
	r.Post("/token/oracle", h.HandleSetOracle)
	r.Post("/token/oracle/results", h.HandleNotifyResults)
	r.Post("/token/oracle/price", h.HandleUpdatePrice)
	r.Post("/token/claim", h.HandleClaim)
	r.Get("/token", h.HandleInfo)
	r.Get("/token/balance/{address}", h.HandleBalance)
	r.Get("/token/now", h.HandleNow)
}

// caller extracts the authenticated address, rejecting the request when the
// auth middleware did not run.
func (h *Handler) caller(w http.ResponseWriter, r *http.Request) (domain.Address, bool) {
	addr := requestcontext.CallerAddress(r.Context())
	if addr == "" {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "authentication required"))
		return "", false
	}
	return domain.Address(addr), true
}

func (h *Handler) HandleSetMainParams(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}
	req, ok := httputil.Decode[MainParamsRequest](w, r, h.logger)
	if !ok {
		return
	}
	params, err := req.Parse()
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if err := h.service.SetMainParams(r.Context(), caller, params); err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, okResponse)
}

func (h *Handler) HandleSetStoFlags(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}
	flags, ok := httputil.Decode[domain.StoFlags](w, r, h.logger)
	if !ok {
		return
	}
	if err := h.service.SetStoFlags(r.Context(), caller, flags); err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, okResponse)
}

func (h *Handler) HandleSetStoParams(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}
	req, ok := httputil.Decode[StoParamsRequest](w, r, h.logger)
	if !ok {
		return
	}
	params, err := req.Parse()
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if err := h.service.SetStoParams(r.Context(), caller, params); err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, okResponse)
}

func (h *Handler) HandleAdvanceStage(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}
	target, ok := domain.ParseStage(chi.URLParam(r, "stage"))
	if !ok {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "unknown stage"))
		return
	}
	if err := h.service.AdvanceStage(r.Context(), caller, target); err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, StageResponse{Stage: target.String()})
}

func (h *Handler) HandleAddWhitelist(w http.ResponseWriter, r *http.Request) {
	h.editList(w, r, h.service.AddWhitelist)
}

func (h *Handler) HandleRemoveWhitelist(w http.ResponseWriter, r *http.Request) {
	h.editList(w, r, h.service.RemoveWhitelist)
}

func (h *Handler) HandleAddBlacklist(w http.ResponseWriter, r *http.Request) {
	h.editList(w, r, h.service.AddBlacklist)
}

func (h *Handler) HandleRemoveBlacklist(w http.ResponseWriter, r *http.Request) {
	h.editList(w, r, h.service.RemoveBlacklist)
}

func (h *Handler) editList(w http.ResponseWriter, r *http.Request, apply func(context.Context, domain.Address, []domain.EIN) error) {
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}
	req, ok := httputil.Decode[ListRequest](w, r, h.logger)
	if !ok {
		return
	}
	eins, err := req.Parse()
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if err := apply(r.Context(), caller, eins); err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, okResponse)
}

func (h *Handler) HandleBuy(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}
	req, ok := httputil.Decode[BuyRequest](w, r, h.logger)
	if !ok {
		return
	}
	amount, err := parseAmount(req.Amount, "amount")
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	receipt, err := h.service.BuyTokens(r.Context(), caller, amount)
	if err != nil {
		h.logger.WarnContext(r.Context(), "buy rejected",
			"request_id", requestcontext.RequestID(r.Context()),
			"buyer", caller,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, receipt)
}

func (h *Handler) HandleTransfer(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}
	req, ok := httputil.Decode[TransferRequest](w, r, h.logger)
	if !ok {
		return
	}
	if req.To == "" {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "to is required"))
		return
	}
	amount, err := parseAmount(req.Amount, "amount")
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if err := h.service.Transfer(r.Context(), caller, req.To, amount); err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, okResponse)
}

func (h *Handler) HandleAddBoundaries(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}
	req, ok := httputil.Decode[BoundariesRequest](w, r, h.logger)
	if !ok {
		return
	}
	if err := h.service.AddPaymentPeriodBoundaries(r.Context(), caller, req.Boundaries); err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, okResponse)
}

func (h *Handler) HandleListBoundaries(w http.ResponseWriter, r *http.Request) {
	boundaries, err := h.service.PaymentPeriodBoundaries(r.Context())
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, BoundariesResponse{Boundaries: boundaries})
}

func (h *Handler) HandleCurrentPeriod(w http.ResponseWriter, r *http.Request) {
	period, err := h.service.CurrentPeriod(r.Context())
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, PeriodResponse{CurrentPeriod: period})
}

func (h *Handler) HandleSetOracle(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}
	req, ok := httputil.Decode[OracleRequest](w, r, h.logger)
	if !ok {
		return
	}
	if err := h.service.AddHydroOracle(r.Context(), caller, req.Address); err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, okResponse)
}

func (h *Handler) HandleNotifyResults(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}
	req, ok := httputil.Decode[ResultsRequest](w, r, h.logger)
	if !ok {
		return
	}
	result, err := parseAmount(req.Result, "result")
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if err := h.service.NotifyPeriodResults(r.Context(), caller, result); err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, okResponse)
}

func (h *Handler) HandleUpdatePrice(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}
	req, ok := httputil.Decode[PriceRequest](w, r, h.logger)
	if !ok {
		return
	}
	price, err := parseAmount(req.Price, "price")
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if err := h.service.UpdateHydroPrice(r.Context(), caller, price); err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, okResponse)
}

func (h *Handler) HandleClaim(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}
	result, err := h.service.ClaimPayment(r.Context(), caller)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, result)
}

func (h *Handler) HandleInfo(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, h.service.Info(r.Context()))
}

func (h *Handler) HandleBalance(w http.ResponseWriter, r *http.Request) {
	addr := domain.Address(chi.URLParam(r, "address"))
	balance, err := h.service.BalanceOf(r.Context(), addr)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, BalanceResponse{Address: addr, Balance: balance})
}

func (h *Handler) HandleNow(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, NowResponse{Now: h.service.Now()})
}
