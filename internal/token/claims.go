package token

import (
	"context"
	"errors"
	"fmt"

	"sto-gateway/internal/audit"
	"sto-gateway/internal/domain"
	dErrors "sto-gateway/pkg/domain-errors"
	"sto-gateway/pkg/fixedpoint"
	"sto-gateway/pkg/platform/sentinel"
)

// ClaimPayment settles every unclaimed period with a reported result, in
// order, and pays the investor their share from escrow in one transfer. A
// call with nothing to settle succeeds with a zero result.
func (s *Service) ClaimPayment(ctx context.Context, caller domain.Address) (ClaimResult, error) {
	ctx, span := s.tracer.Start(ctx, "token.ClaimPayment")
	defer span.End()

	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.claimPayment(ctx, caller)
	if err != nil {
		s.metrics.RecordRejection("claim", string(dErrors.CodeOf(err)))
		span.RecordError(err)
		return ClaimResult{}, err
	}
	if s.metrics != nil {
		s.metrics.Claims.Inc()
		s.metrics.PeriodsSettled.Observe(float64(len(res.Payments)))
	}
	s.logger.InfoContext(ctx, "payment claimed",
		"token_id", s.token.ID,
		"claimant", caller,
		"periods", len(res.Payments),
		"paid", res.TotalPaid,
	)
	return res, nil
}

func (s *Service) claimPayment(ctx context.Context, caller domain.Address) (ClaimResult, error) {
	now := s.clock.Now()
	if err := s.sealElapsed(ctx, now); err != nil {
		return ClaimResult{}, err
	}

	if _, err := s.resolveCaller(ctx, caller); err != nil {
		return ClaimResult{}, err
	}
	inv, err := s.investors.Get(ctx, caller)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return ClaimResult{}, dErrors.New(dErrors.CodePreconditionNotMet, "caller holds no tokens")
		}
		return ClaimResult{}, fmt.Errorf("load investor: %w", err)
	}

	boundaries, err := s.periods.Boundaries(ctx)
	if err != nil {
		return ClaimResult{}, fmt.Errorf("load boundaries: %w", err)
	}
	current := currentPeriodAt(boundaries, now)

	total := fixedpoint.Zero()
	var payments []PeriodPayment
	period := inv.LastClaimedPeriod
	for period < current {
		next := period + 1
		result, ok, err := s.periods.Result(ctx, next)
		if err != nil {
			return ClaimResult{}, fmt.Errorf("load period result: %w", err)
		}
		if !ok {
			break
		}
		payment, rate, err := s.periodShare(ctx, next, caller, result)
		if err != nil {
			return ClaimResult{}, err
		}
		total, err = total.Add(payment)
		if err != nil {
			return ClaimResult{}, dErrors.New(dErrors.CodeArithmeticBounds, "payout accounting out of bounds")
		}
		payments = append(payments, PeriodPayment{
			Period:            next,
			ParticipationRate: rate,
			PeriodResult:      result,
			Payment:           payment,
		})
		period = next
	}

	if period == inv.LastClaimedPeriod {
		// Nothing resolved beyond the claim cursor; a repeat call is a no-op.
		return ClaimResult{TotalPaid: fixedpoint.Zero()}, nil
	}

	// Pay first, then record; the audit trail must only hold payouts that
	// actually happened. A failed audit write pulls the payout back so the
	// claim can be retried cleanly.
	if !total.IsZero() {
		if err := s.payment.Transfer(ctx, s.escrowAddr, caller, total); err != nil {
			return ClaimResult{}, fmt.Errorf("pay from escrow: %w", err)
		}
	}
	if err := s.emit(ctx, caller, audit.Event{
		Action:  audit.ActionPaymentClaimed,
		Amount:  total.Dec(),
		Details: fmt.Sprintf("periods %d-%d", inv.LastClaimedPeriod+1, period),
	}); err != nil {
		if !total.IsZero() {
			if returnErr := s.payment.Transfer(ctx, caller, s.escrowAddr, total); returnErr != nil {
				return ClaimResult{}, fmt.Errorf("return payout after audit failure %v: %w", err, returnErr)
			}
		}
		return ClaimResult{}, err
	}
	inv.LastClaimedPeriod = period
	if err := s.investors.Put(ctx, inv); err != nil {
		return ClaimResult{}, fmt.Errorf("persist investor: %w", err)
	}

	return ClaimResult{PeriodsSettled: len(payments), TotalPaid: total, Payments: payments}, nil
}

// periodShare computes one period's payout for a holder from the sealed
// snapshot. The participation rate truncates toward zero, so payouts never
// overshoot the reported result.
func (s *Service) periodShare(ctx context.Context, period int, addr domain.Address, result fixedpoint.Amount) (fixedpoint.Amount, fixedpoint.Amount, error) {
	snap, ok, err := s.periods.Snapshot(ctx, period)
	if err != nil {
		return fixedpoint.Amount{}, fixedpoint.Amount{}, fmt.Errorf("load snapshot for period %d: %w", period, err)
	}
	if !ok {
		return fixedpoint.Amount{}, fixedpoint.Amount{}, fmt.Errorf("no snapshot sealed for period %d", period)
	}
	balance, held := snap.Balances[addr]
	if !held || snap.Supply.IsZero() {
		return fixedpoint.Zero(), fixedpoint.Zero(), nil
	}
	rate, err := balance.WadDiv(snap.Supply)
	if err != nil {
		return fixedpoint.Amount{}, fixedpoint.Amount{}, dErrors.New(dErrors.CodeArithmeticBounds, "participation rate out of bounds")
	}
	payment, err := result.WadMul(rate)
	if err != nil {
		return fixedpoint.Amount{}, fixedpoint.Amount{}, dErrors.New(dErrors.CodeArithmeticBounds, "payout out of bounds")
	}
	return payment, rate, nil
}
