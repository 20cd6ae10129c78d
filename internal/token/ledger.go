package token

import (
	"context"
	"fmt"
	"time"

	"sto-gateway/internal/audit"
	"sto-gateway/internal/domain"
	dErrors "sto-gateway/pkg/domain-errors"
	"sto-gateway/pkg/fixedpoint"
)

// AddPaymentPeriodBoundaries appends distribution period boundaries. The batch
// must be strictly increasing, strictly after the last stored boundary, and
// strictly in the future; a single bad timestamp rejects the whole batch.
func (s *Service) AddPaymentPeriodBoundaries(ctx context.Context, caller domain.Address, boundaries []time.Time) error {
	ctx, span := s.tracer.Start(ctx, "token.AddPaymentPeriodBoundaries")
	defer span.End()

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.addBoundaries(ctx, caller, boundaries); err != nil {
		s.metrics.RecordRejection("add_boundaries", string(dErrors.CodeOf(err)))
		span.RecordError(err)
		return err
	}
	s.logger.InfoContext(ctx, "payment period boundaries added",
		"token_id", s.token.ID,
		"count", len(boundaries),
	)
	return nil
}

func (s *Service) addBoundaries(ctx context.Context, caller domain.Address, boundaries []time.Time) error {
	if err := s.requireOwner(ctx, caller); err != nil {
		return err
	}
	if len(boundaries) == 0 {
		return dErrors.New(dErrors.CodeBadRequest, "no boundaries given")
	}

	now := s.clock.Now()
	if err := s.sealElapsed(ctx, now); err != nil {
		return err
	}

	existing, err := s.periods.Boundaries(ctx)
	if err != nil {
		return fmt.Errorf("load boundaries: %w", err)
	}
	prev := time.Time{}
	if n := len(existing); n > 0 {
		prev = existing[n-1]
	}
	for _, b := range boundaries {
		if !b.After(now) {
			return dErrors.New(dErrors.CodePreconditionNotMet, "boundaries must be in the future")
		}
		if !b.After(prev) {
			return dErrors.New(dErrors.CodeNonMonotonicBoundaries, "boundaries must be strictly increasing")
		}
		prev = b
	}

	if err := s.emit(ctx, caller, audit.Event{
		Action:  audit.ActionBoundariesAdded,
		Details: fmt.Sprintf("%d boundaries", len(boundaries)),
	}); err != nil {
		return err
	}
	if err := s.periods.AppendBoundaries(ctx, boundaries); err != nil {
		return fmt.Errorf("append boundaries: %w", err)
	}
	return nil
}

// PaymentPeriodBoundaries returns the stored boundary schedule.
func (s *Service) PaymentPeriodBoundaries(ctx context.Context) ([]time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.periods.Boundaries(ctx)
}

// CurrentPeriod reports the 1-based index of the open payment period: the
// count of boundaries already passed. Zero means the first period has not
// closed yet.
func (s *Service) CurrentPeriod(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	boundaries, err := s.periods.Boundaries(ctx)
	if err != nil {
		return 0, fmt.Errorf("load boundaries: %w", err)
	}
	return currentPeriodAt(boundaries, s.clock.Now()), nil
}

func currentPeriodAt(boundaries []time.Time, now time.Time) int {
	n := 0
	for _, b := range boundaries {
		if b.After(now) {
			break
		}
		n++
	}
	return n
}

// sealElapsed captures holder balances at every boundary that has passed
// since the last seal. Balances only move through operations on this service,
// so sealing at the head of each mutating operation records exactly the state
// that held at the boundary instant. Assumes the lock is held.
func (s *Service) sealElapsed(ctx context.Context, now time.Time) error {
	boundaries, err := s.periods.Boundaries(ctx)
	if err != nil {
		return fmt.Errorf("load boundaries: %w", err)
	}
	elapsed := currentPeriodAt(boundaries, now)
	sealed, err := s.periods.SealedThrough(ctx)
	if err != nil {
		return fmt.Errorf("load seal cursor: %w", err)
	}
	for p := sealed + 1; p <= elapsed; p++ {
		snap, err := s.snapshotNow(ctx)
		if err != nil {
			return err
		}
		if err := s.periods.SealSnapshot(ctx, p, snap); err != nil {
			return fmt.Errorf("seal period %d: %w", p, err)
		}
	}
	return nil
}

func (s *Service) snapshotNow(ctx context.Context) (Snapshot, error) {
	holders, err := s.investors.List(ctx)
	if err != nil {
		return Snapshot{}, fmt.Errorf("list investors: %w", err)
	}
	snap := Snapshot{Supply: s.totalSupply, Balances: make(map[domain.Address]fixedpoint.Amount, len(holders))}
	for _, inv := range holders {
		if !inv.Balance.IsZero() {
			snap.Balances[inv.Address] = inv.Balance
		}
	}
	return snap, nil
}

// AddHydroOracle designates the address allowed to report period results and
// price updates. Owner only; may be changed at any stage.
func (s *Service) AddHydroOracle(ctx context.Context, caller, oracle domain.Address) error {
	ctx, span := s.tracer.Start(ctx, "token.AddHydroOracle")
	defer span.End()

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.requireOwner(ctx, caller); err != nil {
		s.metrics.RecordRejection("add_oracle", string(dErrors.CodeOf(err)))
		span.RecordError(err)
		return err
	}
	if oracle == "" {
		return dErrors.New(dErrors.CodeBadRequest, "oracle address is required")
	}
	if err := s.emit(ctx, caller, audit.Event{
		Action:  audit.ActionOracleSet,
		Details: string(oracle),
	}); err != nil {
		return err
	}
	st := s.currentState()
	st.Oracle = oracle
	if err := s.commitState(ctx, st); err != nil {
		return err
	}
	s.logger.InfoContext(ctx, "oracle designated", "token_id", s.token.ID, "oracle", oracle)
	return nil
}

// designatedOracle is the explicitly set oracle, falling back to the one
// named in the offering parameters.
func (s *Service) designatedOracle() domain.Address {
	if s.oracle != "" {
		return s.oracle
	}
	if s.sto != nil {
		return s.sto.HydroOracle
	}
	return ""
}

// NotifyPeriodResults records the profit figure for the currently open
// period. Only the designated oracle may report, and only once per period.
func (s *Service) NotifyPeriodResults(ctx context.Context, caller domain.Address, result fixedpoint.Amount) error {
	ctx, span := s.tracer.Start(ctx, "token.NotifyPeriodResults")
	defer span.End()

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.notifyResults(ctx, caller, result); err != nil {
		s.metrics.RecordRejection("notify_results", string(dErrors.CodeOf(err)))
		span.RecordError(err)
		return err
	}
	s.logger.InfoContext(ctx, "period results recorded",
		"token_id", s.token.ID,
		"result", result,
	)
	return nil
}

func (s *Service) notifyResults(ctx context.Context, caller domain.Address, result fixedpoint.Amount) error {
	now := s.clock.Now()
	if err := s.sealElapsed(ctx, now); err != nil {
		return err
	}

	oracle := s.designatedOracle()
	if oracle == "" || caller != oracle {
		return dErrors.New(dErrors.CodeStaleOracle, "report from non-designated oracle address")
	}

	boundaries, err := s.periods.Boundaries(ctx)
	if err != nil {
		return fmt.Errorf("load boundaries: %w", err)
	}
	period := currentPeriodAt(boundaries, now)
	if period < 1 {
		return dErrors.New(dErrors.CodePreconditionNotMet, "no payment period is open")
	}
	if _, ok, err := s.periods.Result(ctx, period); err != nil {
		return fmt.Errorf("load period result: %w", err)
	} else if ok {
		return dErrors.Newf(dErrors.CodePeriodAlreadyReported, "period %d already reported", period)
	}

	if err := s.emit(ctx, caller, audit.Event{
		Action:  audit.ActionResultsNotified,
		Amount:  result.Dec(),
		Details: fmt.Sprintf("period %d", period),
	}); err != nil {
		return err
	}
	if err := s.periods.SetResult(ctx, period, result); err != nil {
		return fmt.Errorf("store period result: %w", err)
	}
	return nil
}

// UpdateHydroPrice lets the designated oracle adjust the payment-token price
// of one token. Requires the oracle pricing flag.
func (s *Service) UpdateHydroPrice(ctx context.Context, caller domain.Address, price fixedpoint.Amount) error {
	ctx, span := s.tracer.Start(ctx, "token.UpdateHydroPrice")
	defer span.End()

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.updatePrice(ctx, caller, price); err != nil {
		s.metrics.RecordRejection("update_price", string(dErrors.CodeOf(err)))
		span.RecordError(err)
		return err
	}
	s.logger.InfoContext(ctx, "price updated", "token_id", s.token.ID, "price", price)
	return nil
}

func (s *Service) updatePrice(ctx context.Context, caller domain.Address, price fixedpoint.Amount) error {
	if !s.flags.HydroOracleEnabled {
		return dErrors.New(dErrors.CodePreconditionNotMet, "oracle pricing is not enabled")
	}
	oracle := s.designatedOracle()
	if oracle == "" || caller != oracle {
		return dErrors.New(dErrors.CodeStaleOracle, "report from non-designated oracle address")
	}
	if price.IsZero() {
		return dErrors.New(dErrors.CodeBadRequest, "price must be positive")
	}
	if s.main == nil {
		return dErrors.New(dErrors.CodePreconditionNotMet, "main parameters not set")
	}
	if err := s.emit(ctx, caller, audit.Event{
		Action: audit.ActionParamsSet,
		Amount: price.Dec(),
	}); err != nil {
		return err
	}
	st := s.currentState()
	st.Main.HydroPrice = price
	return s.commitState(ctx, st)
}
