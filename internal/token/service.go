// Package token implements the security-token lifecycle engine: the stage
// state machine, compliance-gated admission, the payment-period ledger and
// the claim settlement engine.
//
// Every public operation is all-or-nothing: checks run first against a
// consistent view, state mutates only after the last check passes. Operations
// are serialized by the service mutex, mirroring the total ordering a shared
// ledger imposes on transactions.
package token

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"sto-gateway/internal/audit"
	"sto-gateway/internal/domain"
	"sto-gateway/internal/escrow"
	"sto-gateway/internal/registry"
	"sto-gateway/internal/token/metrics"
	"sto-gateway/pkg/clock"
	dErrors "sto-gateway/pkg/domain-errors"
	"sto-gateway/pkg/fixedpoint"
	"sto-gateway/pkg/platform/sentinel"
)

// Auditor records compliance-relevant events. Fail-closed: when it errors,
// the operation that triggered it fails too.
type Auditor interface {
	Emit(ctx context.Context, event audit.Event) error
}

// Config carries the service dependencies. All fields are required except
// Metrics and State; a nil State falls back to an in-memory store, which is
// fine for tests but loses the instance on restart.
type Config struct {
	Token         domain.Token
	EscrowAddress domain.Address

	Investors InvestorStore
	Periods   PeriodStore
	State     StateStore
	Identity  registry.IdentityRegistry
	Buyers    registry.BuyerRegistry
	Payment   escrow.PaymentToken
	Auditor   Auditor
	Metrics   *metrics.Metrics
	Logger    *slog.Logger
	Clock     clock.Clock
}

// Service is the token engine. One instance governs one token.
type Service struct {
	token      domain.Token
	escrowAddr domain.Address

	mu            sync.RWMutex
	stage         domain.Stage
	main          *domain.MainParams
	flags         domain.StoFlags
	sto           *domain.StoParams
	oracle        domain.Address
	totalSupply   fixedpoint.Amount
	investorCount int
	whitelist     map[domain.EIN]bool
	blacklist     map[domain.EIN]bool

	investors InvestorStore
	periods   PeriodStore
	state     StateStore
	identity  registry.IdentityRegistry
	buyers    registry.BuyerRegistry
	payment   escrow.PaymentToken
	auditor   Auditor
	metrics   *metrics.Metrics
	logger    *slog.Logger
	clock     clock.Clock
	tracer    trace.Tracer
}

func New(cfg Config) (*Service, error) {
	switch {
	case cfg.Investors == nil:
		return nil, fmt.Errorf("investor store is required")
	case cfg.Periods == nil:
		return nil, fmt.Errorf("period store is required")
	case cfg.Identity == nil:
		return nil, fmt.Errorf("identity registry is required")
	case cfg.Buyers == nil:
		return nil, fmt.Errorf("buyer registry is required")
	case cfg.Payment == nil:
		return nil, fmt.Errorf("payment token is required")
	case cfg.Auditor == nil:
		return nil, fmt.Errorf("auditor is required")
	case cfg.Logger == nil:
		return nil, fmt.Errorf("logger is required")
	case cfg.Clock == nil:
		return nil, fmt.Errorf("clock is required")
	case cfg.EscrowAddress == "":
		return nil, fmt.Errorf("escrow address is required")
	}

	state := cfg.State
	if state == nil {
		state = NewInMemoryStateStore()
	}

	return &Service{
		token:      cfg.Token,
		escrowAddr: cfg.EscrowAddress,
		stage:      domain.StagePrelaunch,
		whitelist:  make(map[domain.EIN]bool),
		blacklist:  make(map[domain.EIN]bool),
		investors:  cfg.Investors,
		periods:    cfg.Periods,
		state:      state,
		identity:   cfg.Identity,
		buyers:     cfg.Buyers,
		payment:    cfg.Payment,
		auditor:    cfg.Auditor,
		metrics:    cfg.Metrics,
		logger:     cfg.Logger,
		clock:      cfg.Clock,
		tracer:     otel.Tracer("sto-gateway/token"),
	}, nil
}

// Restore loads the committed instance state and recomputes supply and
// investor count from the investor records. Call once at startup, before
// serving; a fresh store leaves the instance at prelaunch.
func (s *Service) Restore(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, ok, err := s.state.Load(ctx)
	if err != nil {
		return fmt.Errorf("load token state: %w", err)
	}
	if ok {
		s.applyState(st)
	}

	holders, err := s.investors.List(ctx)
	if err != nil {
		return fmt.Errorf("list investors: %w", err)
	}
	supply := fixedpoint.Zero()
	for _, inv := range holders {
		supply, err = supply.Add(inv.Balance)
		if err != nil {
			return fmt.Errorf("restore supply for %s: %w", inv.Address, err)
		}
	}
	s.totalSupply = supply
	s.investorCount = len(holders)

	s.logger.InfoContext(ctx, "token state restored",
		"token_id", s.token.ID,
		"stage", s.stage.String(),
		"supply", s.totalSupply,
		"investors", s.investorCount,
	)
	return nil
}

// currentState copies the live configuration into a detached InstanceState,
// so a pending mutation never aliases the served state. Assumes the lock is
// held.
func (s *Service) currentState() InstanceState {
	st := InstanceState{
		Stage:     s.stage,
		Flags:     s.flags,
		Oracle:    s.oracle,
		Whitelist: copySet(s.whitelist),
		Blacklist: copySet(s.blacklist),
	}
	if s.main != nil {
		main := *s.main
		st.Main = &main
	}
	if s.sto != nil {
		sto := *s.sto
		st.Sto = &sto
	}
	return st
}

// commitState makes a mutated state durable before it becomes visible;
// a failed save leaves the live instance untouched. Assumes the lock is held.
func (s *Service) commitState(ctx context.Context, st InstanceState) error {
	if err := s.state.Save(ctx, st); err != nil {
		return fmt.Errorf("persist token state: %w", err)
	}
	s.applyState(st)
	return nil
}

func (s *Service) applyState(st InstanceState) {
	s.stage = st.Stage
	s.main = st.Main
	s.flags = st.Flags
	s.sto = st.Sto
	s.oracle = st.Oracle
	s.whitelist = st.Whitelist
	s.blacklist = st.Blacklist
	if s.whitelist == nil {
		s.whitelist = make(map[domain.EIN]bool)
	}
	if s.blacklist == nil {
		s.blacklist = make(map[domain.EIN]bool)
	}
}

func copySet(set map[domain.EIN]bool) map[domain.EIN]bool {
	out := make(map[domain.EIN]bool, len(set))
	for ein := range set {
		out[ein] = true
	}
	return out
}

// resolveCaller maps an address to its EIN. Used by every authorization and
// admission path.
func (s *Service) resolveCaller(ctx context.Context, caller domain.Address) (domain.EIN, error) {
	ein, err := s.identity.ResolveIdentity(ctx, caller)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return 0, dErrors.New(dErrors.CodeComplianceRejected, "caller has no registered identity")
		}
		return 0, fmt.Errorf("resolve identity: %w", err)
	}
	return ein, nil
}

// requireOwner is the single authorization predicate for owner-gated
// operations: resolve caller to an EIN, compare against the owner EIN.
func (s *Service) requireOwner(ctx context.Context, caller domain.Address) error {
	ein, err := s.identity.ResolveIdentity(ctx, caller)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.New(dErrors.CodeUnauthorized, "caller has no registered identity")
		}
		return fmt.Errorf("resolve identity: %w", err)
	}
	if ein != s.token.OwnerEIN {
		return dErrors.New(dErrors.CodeUnauthorized, "caller is not the token owner")
	}
	return nil
}

// SetMainParams sets the offering economics. Owner-only, prelaunch-only.
func (s *Service) SetMainParams(ctx context.Context, caller domain.Address, params domain.MainParams) error {
	ctx, span := s.tracer.Start(ctx, "token.SetMainParams")
	defer span.End()

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.configGuard(ctx, caller); err != nil {
		s.metrics.RecordRejection("set_main_params", string(dErrors.CodeOf(err)))
		return err
	}
	if err := params.Validate(); err != nil {
		s.metrics.RecordRejection("set_main_params", string(dErrors.CodeOf(err)))
		return err
	}
	if err := s.emit(ctx, caller, audit.Event{Action: audit.ActionParamsSet, Details: "main"}); err != nil {
		return err
	}
	st := s.currentState()
	st.Main = &params
	return s.commitState(ctx, st)
}

// SetStoFlags sets the policy toggles. Owner-only, prelaunch-only.
func (s *Service) SetStoFlags(ctx context.Context, caller domain.Address, flags domain.StoFlags) error {
	ctx, span := s.tracer.Start(ctx, "token.SetStoFlags")
	defer span.End()

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.configGuard(ctx, caller); err != nil {
		s.metrics.RecordRejection("set_sto_flags", string(dErrors.CodeOf(err)))
		return err
	}
	if err := s.emit(ctx, caller, audit.Event{Action: audit.ActionParamsSet, Details: "flags"}); err != nil {
		return err
	}
	st := s.currentState()
	st.Flags = flags
	return s.commitState(ctx, st)
}

// SetStoParams sets the investor-bound parameters. Owner-only, prelaunch-only.
func (s *Service) SetStoParams(ctx context.Context, caller domain.Address, params domain.StoParams) error {
	ctx, span := s.tracer.Start(ctx, "token.SetStoParams")
	defer span.End()

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.configGuard(ctx, caller); err != nil {
		s.metrics.RecordRejection("set_sto_params", string(dErrors.CodeOf(err)))
		return err
	}
	if err := params.Validate(); err != nil {
		s.metrics.RecordRejection("set_sto_params", string(dErrors.CodeOf(err)))
		return err
	}
	if err := s.emit(ctx, caller, audit.Event{Action: audit.ActionParamsSet, Details: "sto"}); err != nil {
		return err
	}
	st := s.currentState()
	st.Sto = &params
	return s.commitState(ctx, st)
}

// configGuard gates parameter mutation: owner-only and prelaunch-only.
// Assumes the service lock is held.
func (s *Service) configGuard(ctx context.Context, caller domain.Address) error {
	if err := s.requireOwner(ctx, caller); err != nil {
		return err
	}
	if s.stage != domain.StagePrelaunch {
		return dErrors.New(dErrors.CodePreconditionNotMet, "parameters are immutable after prelaunch")
	}
	return nil
}

// AddWhitelist admits identities to the whitelist. Owner-only, idempotent.
func (s *Service) AddWhitelist(ctx context.Context, caller domain.Address, eins []domain.EIN) error {
	return s.editList(ctx, caller, eins, audit.ActionWhitelistAdded, func(st *InstanceState, ein domain.EIN) {
		st.Whitelist[ein] = true
	})
}

// RemoveWhitelist removes identities from the whitelist. Owner-only, idempotent.
func (s *Service) RemoveWhitelist(ctx context.Context, caller domain.Address, eins []domain.EIN) error {
	return s.editList(ctx, caller, eins, audit.ActionWhitelistRemoved, func(st *InstanceState, ein domain.EIN) {
		delete(st.Whitelist, ein)
	})
}

// AddBlacklist bans identities. Owner-only, idempotent.
func (s *Service) AddBlacklist(ctx context.Context, caller domain.Address, eins []domain.EIN) error {
	return s.editList(ctx, caller, eins, audit.ActionBlacklistAdded, func(st *InstanceState, ein domain.EIN) {
		st.Blacklist[ein] = true
	})
}

// RemoveBlacklist lifts bans. Owner-only, idempotent.
func (s *Service) RemoveBlacklist(ctx context.Context, caller domain.Address, eins []domain.EIN) error {
	return s.editList(ctx, caller, eins, audit.ActionBlacklistRemoved, func(st *InstanceState, ein domain.EIN) {
		delete(st.Blacklist, ein)
	})
}

func (s *Service) editList(ctx context.Context, caller domain.Address, eins []domain.EIN, action string, apply func(*InstanceState, domain.EIN)) error {
	ctx, span := s.tracer.Start(ctx, "token."+action)
	defer span.End()

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.requireOwner(ctx, caller); err != nil {
		s.metrics.RecordRejection(action, string(dErrors.CodeOf(err)))
		return err
	}
	if err := s.emit(ctx, caller, audit.Event{Action: action, Details: fmt.Sprintf("%d identities", len(eins))}); err != nil {
		return err
	}
	st := s.currentState()
	for _, ein := range eins {
		apply(&st, ein)
	}
	return s.commitState(ctx, st)
}

// emit publishes an audit event with the token and caller fields filled in.
// Assumes the caller handles the fail-closed contract.
func (s *Service) emit(ctx context.Context, caller domain.Address, event audit.Event) error {
	event.Actor = string(caller)
	event.TokenID = s.token.ID.String()
	event.Timestamp = s.clock.Now()
	if ein, err := s.identity.ResolveIdentity(ctx, caller); err == nil {
		event.ActorEIN = uint64(ein)
	}
	if err := s.auditor.Emit(ctx, event); err != nil {
		return fmt.Errorf("audit emit: %w", err)
	}
	return nil
}

// Info returns the token's read-only view.
func (s *Service) Info(_ context.Context) Info {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Info{
		Token:         s.token,
		Stage:         s.stage.String(),
		TotalSupply:   s.totalSupply,
		InvestorCount: s.investorCount,
		Oracle:        s.designatedOracle(),
	}
}

// BalanceOf returns a holder's security-token balance; zero for unknown
// addresses.
func (s *Service) BalanceOf(ctx context.Context, addr domain.Address) (fixedpoint.Amount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	inv, err := s.investors.Get(ctx, addr)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return fixedpoint.Zero(), nil
		}
		return fixedpoint.Zero(), err
	}
	return inv.Balance, nil
}

// Now exposes the engine's ledger clock.
func (s *Service) Now() time.Time {
	return s.clock.Now()
}

// Stage returns the current lifecycle stage.
func (s *Service) Stage() domain.Stage {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.stage
}
