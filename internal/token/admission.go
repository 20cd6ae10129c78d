package token

import (
	"context"
	"errors"
	"fmt"
	"time"

	"sto-gateway/internal/audit"
	"sto-gateway/internal/domain"
	"sto-gateway/internal/escrow"
	"sto-gateway/internal/registry"
	dErrors "sto-gateway/pkg/domain-errors"
	"sto-gateway/pkg/fixedpoint"
	"sto-gateway/pkg/platform/sentinel"
)

// BuyTokens admits a purchase denominated in payment-token value. The buyer
// must have approved at least that value to the escrow account beforehand.
// Checks run in a fixed order so every rejection carries its specific reason.
func (s *Service) BuyTokens(ctx context.Context, caller domain.Address, amount fixedpoint.Amount) (BuyReceipt, error) {
	ctx, span := s.tracer.Start(ctx, "token.BuyTokens")
	defer span.End()

	s.mu.Lock()
	defer s.mu.Unlock()

	receipt, err := s.buyTokens(ctx, caller, amount)
	if err != nil {
		s.metrics.RecordRejection("buy", string(dErrors.CodeOf(err)))
		span.RecordError(err)
		return BuyReceipt{}, err
	}
	if s.metrics != nil {
		s.metrics.Buys.Inc()
	}
	s.logger.InfoContext(ctx, "tokens bought",
		"token_id", s.token.ID,
		"buyer", caller,
		"tokens", receipt.TokensIssued,
		"paid", receipt.PaymentSpent,
	)
	return receipt, nil
}

func (s *Service) buyTokens(ctx context.Context, caller domain.Address, amount fixedpoint.Amount) (BuyReceipt, error) {
	now := s.clock.Now()
	if err := s.sealElapsed(ctx, now); err != nil {
		return BuyReceipt{}, err
	}

	if amount.IsZero() {
		return BuyReceipt{}, dErrors.New(dErrors.CodeBadRequest, "amount must be positive")
	}
	if s.main == nil {
		return BuyReceipt{}, dErrors.New(dErrors.CodePreconditionNotMet, "main parameters not set")
	}

	ein, err := s.resolveCaller(ctx, caller)
	if err != nil {
		return BuyReceipt{}, err
	}
	if err := s.checkCompliance(ctx, ein, now); err != nil {
		return BuyReceipt{}, err
	}
	if !s.stage.BuyEnabled() {
		return BuyReceipt{}, dErrors.Newf(dErrors.CodePreconditionNotMet,
			"buying not enabled at stage %s", s.stage)
	}
	if err := s.checkLists(ein); err != nil {
		return BuyReceipt{}, err
	}

	tokens, err := amount.WadDiv(s.main.HydroPrice)
	if err != nil {
		return BuyReceipt{}, dErrors.New(dErrors.CodeArithmeticBounds, "token conversion out of bounds")
	}
	if tokens.IsZero() {
		return BuyReceipt{}, dErrors.New(dErrors.CodeBadRequest, "amount buys less than one token unit")
	}

	newSupply, err := s.totalSupply.Add(tokens)
	if err != nil {
		return BuyReceipt{}, dErrors.New(dErrors.CodeArithmeticBounds, "supply accounting out of bounds")
	}
	if newSupply.Gt(s.main.MaxSupply) {
		return BuyReceipt{}, dErrors.New(dErrors.CodeCapExceeded, "maximum supply exceeded")
	}

	inv, isNew, err := s.investorFor(ctx, caller, ein)
	if err != nil {
		return BuyReceipt{}, err
	}
	newBalance, err := inv.Balance.Add(tokens)
	if err != nil {
		return BuyReceipt{}, dErrors.New(dErrors.CodeArithmeticBounds, "balance accounting out of bounds")
	}
	newSpent, err := inv.HydroSpent.Add(amount)
	if err != nil {
		return BuyReceipt{}, dErrors.New(dErrors.CodeArithmeticBounds, "spend accounting out of bounds")
	}
	if err := s.checkOwnershipCaps(newBalance, newSpent, newSupply); err != nil {
		return BuyReceipt{}, err
	}
	if isNew {
		if err := s.checkInvestorCount(); err != nil {
			return BuyReceipt{}, err
		}
	}

	// All checks passed; move value, record it, then commit state. A failed
	// audit write unwinds the escrow funding so the buyer is never charged
	// for a purchase that did not happen.
	if err := s.fundEscrow(ctx, caller, amount); err != nil {
		return BuyReceipt{}, err
	}
	if err := s.emit(ctx, caller, audit.Event{
		Action: audit.ActionTokensBought,
		Amount: tokens.Dec(),
	}); err != nil {
		if refundErr := s.payment.Transfer(ctx, s.escrowAddr, caller, amount); refundErr != nil {
			return BuyReceipt{}, fmt.Errorf("refund escrow after audit failure %v: %w", err, refundErr)
		}
		return BuyReceipt{}, err
	}

	inv.Balance = newBalance
	inv.HydroSpent = newSpent
	if isNew {
		inv.FirstPurchaseAt = now
	}
	if err := s.investors.Put(ctx, inv); err != nil {
		return BuyReceipt{}, fmt.Errorf("persist investor: %w", err)
	}
	s.totalSupply = newSupply
	if isNew {
		s.investorCount++
	}

	return BuyReceipt{TokensIssued: tokens, PaymentSpent: amount, NewBalance: newBalance}, nil
}

// Transfer moves tokens between holders, re-applying the compliance gate and
// caps symmetrically to both sides. Nothing is applied on any failed check.
func (s *Service) Transfer(ctx context.Context, caller, to domain.Address, tokens fixedpoint.Amount) error {
	ctx, span := s.tracer.Start(ctx, "token.Transfer")
	defer span.End()

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.transfer(ctx, caller, to, tokens); err != nil {
		s.metrics.RecordRejection("transfer", string(dErrors.CodeOf(err)))
		span.RecordError(err)
		return err
	}
	if s.metrics != nil {
		s.metrics.Transfers.Inc()
	}
	s.logger.InfoContext(ctx, "tokens transferred",
		"token_id", s.token.ID,
		"from", caller,
		"to", to,
		"tokens", tokens,
	)
	return nil
}

func (s *Service) transfer(ctx context.Context, caller, to domain.Address, tokens fixedpoint.Amount) error {
	now := s.clock.Now()
	if err := s.sealElapsed(ctx, now); err != nil {
		return err
	}

	if tokens.IsZero() {
		return dErrors.New(dErrors.CodeBadRequest, "amount must be positive")
	}
	if caller == to {
		return dErrors.New(dErrors.CodeBadRequest, "cannot transfer to self")
	}
	if s.flags.PeriodLocked && s.stage == domain.StageLock {
		return dErrors.New(dErrors.CodePreconditionNotMet, "transfers locked during lock stage")
	}

	senderEIN, err := s.resolveCaller(ctx, caller)
	if err != nil {
		return err
	}
	recipientEIN, err := s.resolveCaller(ctx, to)
	if err != nil {
		return err
	}
	if err := s.checkCompliance(ctx, senderEIN, now); err != nil {
		return err
	}
	if err := s.checkCompliance(ctx, recipientEIN, now); err != nil {
		return err
	}
	if err := s.checkLists(senderEIN); err != nil {
		return err
	}
	if err := s.checkLists(recipientEIN); err != nil {
		return err
	}

	sender, err := s.investors.Get(ctx, caller)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.New(dErrors.CodeArithmeticBounds, "insufficient token balance")
		}
		return fmt.Errorf("load sender: %w", err)
	}
	if sender.Balance.Lt(tokens) {
		return dErrors.New(dErrors.CodeArithmeticBounds, "insufficient token balance")
	}

	recipient, isNew, err := s.investorFor(ctx, to, recipientEIN)
	if err != nil {
		return err
	}
	newRecipientBalance, err := recipient.Balance.Add(tokens)
	if err != nil {
		return dErrors.New(dErrors.CodeArithmeticBounds, "balance accounting out of bounds")
	}
	if err := s.checkOwnershipCaps(newRecipientBalance, recipient.HydroSpent, s.totalSupply); err != nil {
		return err
	}
	if isNew {
		if err := s.checkInvestorCount(); err != nil {
			return err
		}
	}

	if err := s.emit(ctx, caller, audit.Event{
		Action:  audit.ActionTransfer,
		Amount:  tokens.Dec(),
		Details: string(to),
	}); err != nil {
		return err
	}

	newSenderBalance, err := sender.Balance.Sub(tokens)
	if err != nil {
		return dErrors.New(dErrors.CodeArithmeticBounds, "balance accounting out of bounds")
	}
	sender.Balance = newSenderBalance
	recipient.Balance = newRecipientBalance
	if isNew {
		recipient.FirstPurchaseAt = now
	}
	if err := s.investors.PutPair(ctx, sender, recipient); err != nil {
		return fmt.Errorf("persist transfer parties: %w", err)
	}
	if isNew {
		s.investorCount++
	}
	return nil
}

// checkCompliance runs the compliance gate for an identity against the
// token's rules.
func (s *Service) checkCompliance(ctx context.Context, ein domain.EIN, now time.Time) error {
	buyer, err := s.buyers.GetBuyer(ctx, ein)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.New(dErrors.CodeComplianceRejected, "buyer not registered")
		}
		return fmt.Errorf("load buyer: %w", err)
	}
	rules, err := s.buyers.TokenRules(ctx, s.token.ID)
	if err != nil {
		return fmt.Errorf("load token rules: %w", err)
	}
	return registry.Eligible(buyer, rules, now)
}

// checkLists applies the whitelist/blacklist flags. Assumes the lock is held.
func (s *Service) checkLists(ein domain.EIN) error {
	if s.flags.WhitelistRestricted && !s.whitelist[ein] {
		return dErrors.New(dErrors.CodeComplianceRejected, "identity not whitelisted")
	}
	if s.flags.BlacklistRestricted && s.blacklist[ein] {
		return dErrors.New(dErrors.CodeComplianceRejected, "identity is blacklisted")
	}
	return nil
}

// checkOwnershipCaps applies the per-investor ceiling in the configured mode.
func (s *Service) checkOwnershipCaps(newBalance, newSpent, supply fixedpoint.Amount) error {
	if !s.flags.LimitedOwnership || s.sto == nil {
		return nil
	}
	if s.flags.PercOwnershipType {
		ceiling, err := supply.WadMul(s.sto.PercAllowedTokens)
		if err != nil {
			return dErrors.New(dErrors.CodeArithmeticBounds, "cap computation out of bounds")
		}
		if newBalance.Gt(ceiling) {
			return dErrors.New(dErrors.CodeCapExceeded, "ownership percentage cap exceeded")
		}
	}
	if s.flags.HydroAmountType {
		if newSpent.Gt(s.sto.HydroAllowed) {
			return dErrors.New(dErrors.CodeCapExceeded, "payment amount cap exceeded")
		}
	}
	return nil
}

// checkInvestorCount enforces the max-investor ceiling for a new holder.
func (s *Service) checkInvestorCount() error {
	if s.sto != nil && s.sto.MaxInvestors > 0 && s.investorCount+1 > s.sto.MaxInvestors {
		return dErrors.New(dErrors.CodeCapExceeded, "maximum investor count reached")
	}
	return nil
}

// investorFor loads or initializes the record for an address.
func (s *Service) investorFor(ctx context.Context, addr domain.Address, ein domain.EIN) (Investor, bool, error) {
	inv, err := s.investors.Get(ctx, addr)
	if err == nil {
		return inv, false, nil
	}
	if errors.Is(err, sentinel.ErrNotFound) {
		return Investor{Address: addr, EIN: ein}, true, nil
	}
	return Investor{}, false, fmt.Errorf("load investor: %w", err)
}

// fundEscrow pulls the buyer's approved payment into the escrow account.
func (s *Service) fundEscrow(ctx context.Context, buyer domain.Address, amount fixedpoint.Amount) error {
	err := s.payment.TransferFrom(ctx, buyer, s.escrowAddr, s.escrowAddr, amount)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, escrow.ErrInsufficientAllowance):
		return dErrors.New(dErrors.CodePreconditionNotMet, "payment allowance insufficient")
	case errors.Is(err, escrow.ErrInsufficientFunds):
		return dErrors.New(dErrors.CodePreconditionNotMet, "payment balance insufficient")
	default:
		return fmt.Errorf("fund escrow: %w", err)
	}
}
