package registry

import (
	"context"

	"github.com/google/uuid"

	"sto-gateway/internal/domain"
)

//go:generate mockgen -source=ports.go -destination=../../mocks/registry_mock.go -package=mocks

// IdentityRegistry maps ledger addresses to identities. Injected into the
// token service so tests can swap in fakes; never an ambient singleton.
type IdentityRegistry interface {
	// ResolveIdentity returns the EIN an address belongs to, or
	// sentinel.ErrNotFound when the address has no identity.
	ResolveIdentity(ctx context.Context, addr domain.Address) (domain.EIN, error)
}

// BuyerRegistry answers per-buyer compliance questions for a token.
type BuyerRegistry interface {
	// GetBuyer returns the buyer record for an EIN, or sentinel.ErrNotFound
	// when the identity is not registered as a buyer.
	GetBuyer(ctx context.Context, ein domain.EIN) (Buyer, error)
	// TokenRules returns the compliance thresholds configured for a token.
	TokenRules(ctx context.Context, tokenID uuid.UUID) (TokenRules, error)
}

// ServiceRegistry tracks which identities may act as compliance-service
// providers for a token.
type ServiceRegistry interface {
	IsAuthorizedProvider(ctx context.Context, tokenID uuid.UUID, ein domain.EIN, category string) (bool, error)
}
