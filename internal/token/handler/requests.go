package handler

import (
	"time"

	"sto-gateway/internal/domain"
	dErrors "sto-gateway/pkg/domain-errors"
	"sto-gateway/pkg/fixedpoint"
)

// Amounts travel as 18-decimal strings so callers never deal with float
// precision.

type MainParamsRequest struct {
	HydroPrice             string    `json:"hydro_price"`
	BeginningDate          time.Time `json:"beginning_date"`
	LockEnds               time.Time `json:"lock_ends"`
	EndDate                time.Time `json:"end_date"`
	MaxSupply              string    `json:"max_supply"`
	EscrowLimitPeriodHours int64     `json:"escrow_limit_period_hours"`
}

func (r MainParamsRequest) Parse() (domain.MainParams, error) {
	price, err := fixedpoint.Parse(r.HydroPrice)
	if err != nil {
		return domain.MainParams{}, dErrors.New(dErrors.CodeBadRequest, "invalid hydro_price")
	}
	supply, err := fixedpoint.Parse(r.MaxSupply)
	if err != nil {
		return domain.MainParams{}, dErrors.New(dErrors.CodeBadRequest, "invalid max_supply")
	}
	return domain.MainParams{
		HydroPrice:        price,
		BeginningDate:     r.BeginningDate,
		LockEnds:          r.LockEnds,
		EndDate:           r.EndDate,
		MaxSupply:         supply,
		EscrowLimitPeriod: time.Duration(r.EscrowLimitPeriodHours) * time.Hour,
	}, nil
}

type StoParamsRequest struct {
	PercAllowedTokens string         `json:"perc_allowed_tokens"`
	HydroAllowed      string         `json:"hydro_allowed"`
	LockPeriodHours   int64          `json:"lock_period_hours"`
	MinInvestors      int            `json:"min_investors"`
	MaxInvestors      int            `json:"max_investors"`
	HydroOracle       domain.Address `json:"hydro_oracle,omitempty"`
}

func (r StoParamsRequest) Parse() (domain.StoParams, error) {
	perc, err := fixedpoint.Parse(r.PercAllowedTokens)
	if err != nil {
		return domain.StoParams{}, dErrors.New(dErrors.CodeBadRequest, "invalid perc_allowed_tokens")
	}
	allowed, err := fixedpoint.Parse(r.HydroAllowed)
	if err != nil {
		return domain.StoParams{}, dErrors.New(dErrors.CodeBadRequest, "invalid hydro_allowed")
	}
	return domain.StoParams{
		PercAllowedTokens: perc,
		HydroAllowed:      allowed,
		LockPeriod:        time.Duration(r.LockPeriodHours) * time.Hour,
		MinInvestors:      r.MinInvestors,
		MaxInvestors:      r.MaxInvestors,
		HydroOracle:       r.HydroOracle,
	}, nil
}

type ListRequest struct {
	EINs []uint64 `json:"eins"`
}

func (r ListRequest) Parse() ([]domain.EIN, error) {
	if len(r.EINs) == 0 {
		return nil, dErrors.New(dErrors.CodeBadRequest, "eins must not be empty")
	}
	eins := make([]domain.EIN, len(r.EINs))
	for i, e := range r.EINs {
		eins[i] = domain.EIN(e)
	}
	return eins, nil
}

type BuyRequest struct {
	Amount string `json:"amount"`
}

type TransferRequest struct {
	To     domain.Address `json:"to"`
	Amount string         `json:"amount"`
}

type BoundariesRequest struct {
	Boundaries []time.Time `json:"boundaries"`
}

type OracleRequest struct {
	Address domain.Address `json:"address"`
}

type ResultsRequest struct {
	Result string `json:"result"`
}

type PriceRequest struct {
	Price string `json:"price"`
}

func parseAmount(s, field string) (fixedpoint.Amount, error) {
	amount, err := fixedpoint.Parse(s)
	if err != nil {
		return fixedpoint.Amount{}, dErrors.Newf(dErrors.CodeBadRequest, "invalid %s", field)
	}
	return amount, nil
}
