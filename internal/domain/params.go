package domain

import (
	"time"

	dErrors "sto-gateway/pkg/domain-errors"
	"sto-gateway/pkg/fixedpoint"
)

// MainParams are the offering-wide economics, set once by the owner during
// prelaunch.
type MainParams struct {
	// HydroPrice is payment-token units per security token, 18-decimal scale.
	HydroPrice        fixedpoint.Amount
	BeginningDate     time.Time
	LockEnds          time.Time
	EndDate           time.Time
	MaxSupply         fixedpoint.Amount
	EscrowLimitPeriod time.Duration
}

// Validate enforces internal ordering and non-zero economics.
func (p MainParams) Validate() error {
	if p.HydroPrice.IsZero() {
		return dErrors.New(dErrors.CodeBadRequest, "hydro price must be positive")
	}
	if p.MaxSupply.IsZero() {
		return dErrors.New(dErrors.CodeBadRequest, "max supply must be positive")
	}
	if !p.BeginningDate.Before(p.LockEnds) {
		return dErrors.New(dErrors.CodeBadRequest, "beginning date must precede lock end")
	}
	if !p.LockEnds.Before(p.EndDate) {
		return dErrors.New(dErrors.CodeBadRequest, "lock end must precede end date")
	}
	if p.EscrowLimitPeriod < 0 {
		return dErrors.New(dErrors.CodeBadRequest, "escrow limit period must not be negative")
	}
	return nil
}

// StoFlags are the independent policy toggles read by admission and transfer
// gating.
type StoFlags struct {
	LimitedOwnership    bool `json:"limited_ownership"`
	PeriodLocked        bool `json:"period_locked"`
	PercOwnershipType   bool `json:"perc_ownership_type"`
	HydroAmountType     bool `json:"hydro_amount_type"`
	WhitelistRestricted bool `json:"whitelist_restricted"`
	BlacklistRestricted bool `json:"blacklist_restricted"`
	HydroOracleEnabled  bool `json:"hydro_oracle_enabled"`
}

// StoParams are the per-investor and oracle parameters, mutable pre-launch
// only.
type StoParams struct {
	// PercAllowedTokens caps one investor's share of supply, 18-decimal
	// fraction where 10^18 is 100%.
	PercAllowedTokens fixedpoint.Amount
	// HydroAllowed caps one investor's cumulative payment-token spend.
	HydroAllowed fixedpoint.Amount
	LockPeriod   time.Duration
	MinInvestors int
	MaxInvestors int
	HydroOracle  Address
}

func (p StoParams) Validate() error {
	if p.MinInvestors < 0 || p.MaxInvestors < 0 {
		return dErrors.New(dErrors.CodeBadRequest, "investor bounds must not be negative")
	}
	if p.MaxInvestors > 0 && p.MinInvestors > p.MaxInvestors {
		return dErrors.New(dErrors.CodeBadRequest, "min investors exceeds max investors")
	}
	if p.PercAllowedTokens.Gt(fixedpoint.One()) {
		return dErrors.New(dErrors.CodeBadRequest, "ownership percentage cap exceeds 100%")
	}
	return nil
}
