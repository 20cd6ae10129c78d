// Package handler exposes the registry's administration surface: identity
// registration, buyer demographics, token rules, provider appointments and
// provider-submitted compliance verdicts.
package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"sto-gateway/internal/domain"
	"sto-gateway/internal/registry"
	dErrors "sto-gateway/pkg/domain-errors"
	"sto-gateway/pkg/platform/httputil"
	"sto-gateway/pkg/platform/sentinel"
	"sto-gateway/pkg/requestcontext"
)

// IdentityAdmin registers address-to-EIN mappings and resolves callers.
type IdentityAdmin interface {
	Register(addr domain.Address, ein domain.EIN)
	ResolveIdentity(ctx context.Context, addr domain.Address) (domain.EIN, error)
}

// BuyerAdmin manages buyer records and per-token rules.
type BuyerAdmin interface {
	AddBuyer(b registry.Buyer) error
	AssignTokenRules(tokenID uuid.UUID, rules registry.TokenRules)
}

// ProviderDirectory appoints compliance-service providers for a token.
type ProviderDirectory interface {
	AddService(tokenID uuid.UUID, ein domain.EIN, category string)
}

// StatusService applies provider-gated compliance verdicts.
type StatusService interface {
	SetStatus(ctx context.Context, tokenID uuid.UUID, caller domain.Address, target domain.EIN, category string, approved bool) error
}

// CacheInvalidator drops a cached buyer after a mutation so admission sees
// the fresh record before the TTL expires.
type CacheInvalidator interface {
	Invalidate(ctx context.Context, ein domain.EIN) error
}

// Config carries the handler dependencies. Cache is optional.
type Config struct {
	TokenID    uuid.UUID
	OwnerEIN   domain.EIN
	Identity   IdentityAdmin
	Buyers     BuyerAdmin
	Providers  ProviderDirectory
	Compliance StatusService
	Cache      CacheInvalidator
	Logger     *slog.Logger
}

// Handler wires registry administration endpoints. Management routes are
// owner-gated; status updates are gated per provider appointment by the
// compliance service.
type Handler struct {
	tokenID    uuid.UUID
	ownerEIN   domain.EIN
	identity   IdentityAdmin
	buyers     BuyerAdmin
	providers  ProviderDirectory
	compliance StatusService
	cache      CacheInvalidator
	logger     *slog.Logger
}

func New(cfg Config) (*Handler, error) {
	switch {
	case cfg.Identity == nil:
		return nil, errors.New("identity admin is required")
	case cfg.Buyers == nil:
		return nil, errors.New("buyer admin is required")
	case cfg.Providers == nil:
		return nil, errors.New("provider directory is required")
	case cfg.Compliance == nil:
		return nil, errors.New("compliance service is required")
	case cfg.Logger == nil:
		return nil, errors.New("logger is required")
	}
	return &Handler{
		tokenID:    cfg.TokenID,
		ownerEIN:   cfg.OwnerEIN,
		identity:   cfg.Identity,
		buyers:     cfg.Buyers,
		providers:  cfg.Providers,
		compliance: cfg.Compliance,
		cache:      cfg.Cache,
		logger:     cfg.Logger,
	}, nil
}

// Register mounts registry endpoints on the router. Every route expects the
// auth middleware to have placed the caller address on the context.
func (h *Handler) Register(r chi.Router) {
	r.Post("/registry/identities", h.HandleRegisterIdentity)
	r.Post("/registry/buyers", h.HandleAddBuyer)
	r.Post("/registry/buyers/{ein}/status", h.HandleSetStatus)
	r.Post("/registry/rules", h.HandleAssignRules)
	r.Post("/registry/providers", h.HandleAddProvider)
}

func (h *Handler) caller(w http.ResponseWriter, r *http.Request) (domain.Address, bool) {
	addr := requestcontext.CallerAddress(r.Context())
	if addr == "" {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "authentication required"))
		return "", false
	}
	return domain.Address(addr), true
}

// requireOwner resolves the caller and compares against the token owner.
func (h *Handler) requireOwner(w http.ResponseWriter, r *http.Request) (domain.Address, bool) {
	caller, ok := h.caller(w, r)
	if !ok {
		return "", false
	}
	ein, err := h.identity.ResolveIdentity(r.Context(), caller)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "caller has no registered identity"))
		} else {
			httputil.WriteError(w, err)
		}
		return "", false
	}
	if ein != h.ownerEIN {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "caller is not the token owner"))
		return "", false
	}
	return caller, true
}

func (h *Handler) HandleRegisterIdentity(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.requireOwner(w, r); !ok {
		return
	}
	req, ok := httputil.Decode[IdentityRequest](w, r, h.logger)
	if !ok {
		return
	}
	if err := req.Validate(); err != nil {
		httputil.WriteError(w, err)
		return
	}
	h.identity.Register(domain.Address(req.Address), domain.EIN(req.EIN))
	h.logger.InfoContext(r.Context(), "identity registered", "address", req.Address, "ein", req.EIN)
	httputil.WriteJSON(w, http.StatusCreated, okResponse)
}

func (h *Handler) HandleAddBuyer(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.requireOwner(w, r); !ok {
		return
	}
	req, ok := httputil.Decode[BuyerRequest](w, r, h.logger)
	if !ok {
		return
	}
	buyer, err := req.Parse()
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if err := h.buyers.AddBuyer(buyer); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			httputil.WriteError(w, dErrors.Newf(dErrors.CodeConflict, "buyer %d already registered", buyer.EIN))
			return
		}
		httputil.WriteError(w, err)
		return
	}
	h.invalidate(r.Context(), buyer.EIN)
	h.logger.InfoContext(r.Context(), "buyer added", "ein", buyer.EIN, "country", buyer.Country)
	httputil.WriteJSON(w, http.StatusCreated, okResponse)
}

func (h *Handler) HandleSetStatus(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}
	target, err := strconv.ParseUint(chi.URLParam(r, "ein"), 10, 64)
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid ein"))
		return
	}
	req, ok := httputil.Decode[StatusRequest](w, r, h.logger)
	if !ok {
		return
	}
	if err := h.compliance.SetStatus(r.Context(), h.tokenID, caller, domain.EIN(target), req.Category, req.Approved); err != nil {
		httputil.WriteError(w, err)
		return
	}
	h.invalidate(r.Context(), domain.EIN(target))
	httputil.WriteJSON(w, http.StatusOK, okResponse)
}

func (h *Handler) HandleAssignRules(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.requireOwner(w, r); !ok {
		return
	}
	req, ok := httputil.Decode[RulesRequest](w, r, h.logger)
	if !ok {
		return
	}
	h.buyers.AssignTokenRules(h.tokenID, req.Parse())
	h.logger.InfoContext(r.Context(), "token rules assigned", "token_id", h.tokenID)
	httputil.WriteJSON(w, http.StatusOK, okResponse)
}

func (h *Handler) HandleAddProvider(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.requireOwner(w, r); !ok {
		return
	}
	req, ok := httputil.Decode[ProviderRequest](w, r, h.logger)
	if !ok {
		return
	}
	if err := req.Validate(); err != nil {
		httputil.WriteError(w, err)
		return
	}
	h.providers.AddService(h.tokenID, domain.EIN(req.EIN), req.Category)
	h.logger.InfoContext(r.Context(), "provider appointed",
		"token_id", h.tokenID, "ein", req.EIN, "category", req.Category)
	httputil.WriteJSON(w, http.StatusCreated, okResponse)
}

// invalidate drops the cached buyer record. Best effort; the cache TTL
// bounds staleness when the drop fails.
func (h *Handler) invalidate(ctx context.Context, ein domain.EIN) {
	if h.cache == nil {
		return
	}
	if err := h.cache.Invalidate(ctx, ein); err != nil {
		h.logger.WarnContext(ctx, "buyer cache invalidation failed", "ein", ein, "error", err)
	}
}
