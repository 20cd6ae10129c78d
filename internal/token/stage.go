package token

import (
	"context"

	"sto-gateway/internal/audit"
	"sto-gateway/internal/domain"
	dErrors "sto-gateway/pkg/domain-errors"
)

// AdvanceStage moves the lifecycle to target. Owner-only. Transitions are
// strictly forward, one step at a time, and irreversible; target-specific
// preconditions leave the stage unchanged on failure.
func (s *Service) AdvanceStage(ctx context.Context, caller domain.Address, target domain.Stage) error {
	ctx, span := s.tracer.Start(ctx, "token.AdvanceStage")
	defer span.End()

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.advanceStage(ctx, caller, target); err != nil {
		s.metrics.RecordRejection("advance_stage", string(dErrors.CodeOf(err)))
		return err
	}
	if s.metrics != nil {
		s.metrics.StageAdvances.Inc()
	}
	s.logger.InfoContext(ctx, "stage advanced",
		"token_id", s.token.ID,
		"stage", s.stage.String(),
	)
	return nil
}

func (s *Service) advanceStage(ctx context.Context, caller domain.Address, target domain.Stage) error {
	if err := s.requireOwner(ctx, caller); err != nil {
		return err
	}
	if !s.stage.CanAdvanceTo(target) {
		return dErrors.Newf(dErrors.CodeInvalidTransition,
			"cannot move from %s to %s", s.stage, target)
	}
	if err := s.stagePrecondition(target); err != nil {
		return err
	}
	if err := s.emit(ctx, caller, audit.Event{
		Action:  audit.ActionStageAdvanced,
		Details: target.String(),
	}); err != nil {
		return err
	}
	st := s.currentState()
	st.Stage = target
	return s.commitState(ctx, st)
}

// stagePrecondition holds the per-target entry requirements. Assumes the
// service lock is held.
func (s *Service) stagePrecondition(target domain.Stage) error {
	switch target {
	case domain.StagePresale:
		if s.main == nil || s.sto == nil {
			return dErrors.New(dErrors.CodePreconditionNotMet,
				"main and sto parameters must be set before presale")
		}
	case domain.StageLock:
		if s.investorCount < s.sto.MinInvestors {
			return dErrors.New(dErrors.CodePreconditionNotMet,
				"minimum investor count not reached")
		}
	case domain.StageMarket:
		if s.clock.Now().Before(s.main.LockEnds) {
			return dErrors.New(dErrors.CodePreconditionNotMet,
				"lock period has not ended")
		}
	}
	return nil
}
