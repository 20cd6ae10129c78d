package token

import (
	"time"

	"sto-gateway/internal/domain"
	"sto-gateway/pkg/fixedpoint"
)

// Investor is the per-holder record. Balance moves with buys and transfers;
// LastClaimedPeriod moves only forward and only through claim settlement.
// Records persist for audit even when the balance drops to zero.
type Investor struct {
	Address           domain.Address
	EIN               domain.EIN
	Balance           fixedpoint.Amount
	HydroSpent        fixedpoint.Amount
	LastClaimedPeriod int
	FirstPurchaseAt   time.Time
}

// Snapshot freezes the supply distribution at a period boundary crossing.
// Entitlement for a period is computed against the snapshot sealed when the
// period opened, so transfers inside a period only shape later periods.
type Snapshot struct {
	Supply   fixedpoint.Amount
	Balances map[domain.Address]fixedpoint.Amount
}

// BuyReceipt reports the outcome of a successful purchase.
type BuyReceipt struct {
	TokensIssued fixedpoint.Amount `json:"tokens_issued"`
	PaymentSpent fixedpoint.Amount `json:"payment_spent"`
	NewBalance   fixedpoint.Amount `json:"new_balance"`
}

// PeriodPayment is one period's line in a claim settlement.
type PeriodPayment struct {
	Period            int               `json:"period"`
	ParticipationRate fixedpoint.Amount `json:"participation_rate"`
	PeriodResult      fixedpoint.Amount `json:"period_result"`
	Payment           fixedpoint.Amount `json:"payment"`
}

// ClaimResult summarizes a claim settlement. A zero result with no periods
// settled is a successful no-op, not an error; holders may poll freely.
type ClaimResult struct {
	PeriodsSettled int               `json:"periods_settled"`
	TotalPaid      fixedpoint.Amount `json:"total_paid"`
	Payments       []PeriodPayment   `json:"payments,omitempty"`
}

// Info is the read-only view of the token instance.
type Info struct {
	Token         domain.Token      `json:"token"`
	Stage         string            `json:"stage"`
	TotalSupply   fixedpoint.Amount `json:"total_supply"`
	InvestorCount int               `json:"investor_count"`
	Oracle        domain.Address    `json:"oracle,omitempty"`
}
