package handler

import (
	"time"

	"sto-gateway/internal/domain"
	"sto-gateway/internal/registry"
	dErrors "sto-gateway/pkg/domain-errors"
)

type StatusResponse struct {
	Status string `json:"status"`
}

var okResponse = StatusResponse{Status: "ok"}

type IdentityRequest struct {
	Address string `json:"address"`
	EIN     uint64 `json:"ein"`
}

func (r IdentityRequest) Validate() error {
	if r.Address == "" {
		return dErrors.New(dErrors.CodeBadRequest, "address is required")
	}
	if r.EIN == 0 {
		return dErrors.New(dErrors.CodeBadRequest, "ein must be positive")
	}
	return nil
}

type BuyerRequest struct {
	EIN       uint64    `json:"ein"`
	FirstName string    `json:"first_name"`
	LastName  string    `json:"last_name"`
	Country   string    `json:"country"`
	BirthDate time.Time `json:"birth_date"`
	NetWorth  uint64    `json:"net_worth"`
	Salary    uint64    `json:"salary"`
}

func (r BuyerRequest) Parse() (registry.Buyer, error) {
	if r.EIN == 0 {
		return registry.Buyer{}, dErrors.New(dErrors.CodeBadRequest, "ein must be positive")
	}
	if r.Country == "" {
		return registry.Buyer{}, dErrors.New(dErrors.CodeBadRequest, "country is required")
	}
	if r.BirthDate.IsZero() {
		return registry.Buyer{}, dErrors.New(dErrors.CodeBadRequest, "birth_date is required")
	}
	return registry.Buyer{
		EIN:       domain.EIN(r.EIN),
		FirstName: r.FirstName,
		LastName:  r.LastName,
		Country:   r.Country,
		BirthDate: r.BirthDate,
		NetWorth:  r.NetWorth,
		Salary:    r.Salary,
	}, nil
}

type StatusRequest struct {
	Category string `json:"category"`
	Approved bool   `json:"approved"`
}

type RulesRequest struct {
	MinAge          int      `json:"min_age"`
	MinNetWorth     uint64   `json:"min_net_worth"`
	MinSalary       uint64   `json:"min_salary"`
	AMLRequired     bool     `json:"aml_required"`
	CFTRequired     bool     `json:"cft_required"`
	BannedCountries []string `json:"banned_countries,omitempty"`
}

func (r RulesRequest) Parse() registry.TokenRules {
	return registry.TokenRules{
		MinAge:          r.MinAge,
		MinNetWorth:     r.MinNetWorth,
		MinSalary:       r.MinSalary,
		AMLRequired:     r.AMLRequired,
		CFTRequired:     r.CFTRequired,
		BannedCountries: r.BannedCountries,
	}
}

type ProviderRequest struct {
	EIN      uint64 `json:"ein"`
	Category string `json:"category"`
}

func (r ProviderRequest) Validate() error {
	if r.EIN == 0 {
		return dErrors.New(dErrors.CodeBadRequest, "ein must be positive")
	}
	switch r.Category {
	case registry.CategoryKYC, registry.CategoryAML, registry.CategoryCFT:
		return nil
	default:
		return dErrors.Newf(dErrors.CodeBadRequest, "unknown provider category %q", r.Category)
	}
}
