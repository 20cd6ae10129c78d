package registry

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"sto-gateway/internal/domain"
	"sto-gateway/pkg/platform/sentinel"
)

// InMemoryIdentityRegistry is the in-process identity map. Production would
// point at the shared identity service; the port keeps that swappable.
type InMemoryIdentityRegistry struct {
	mu    sync.RWMutex
	byAdr map[domain.Address]domain.EIN
}

func NewInMemoryIdentityRegistry() *InMemoryIdentityRegistry {
	return &InMemoryIdentityRegistry{byAdr: make(map[domain.Address]domain.EIN)}
}

// Register associates an address with an identity. Re-registering the same
// address overwrites, matching identity-recovery flows.
func (r *InMemoryIdentityRegistry) Register(addr domain.Address, ein domain.EIN) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byAdr[addr] = ein
}

func (r *InMemoryIdentityRegistry) ResolveIdentity(_ context.Context, addr domain.Address) (domain.EIN, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ein, ok := r.byAdr[addr]
	if !ok {
		return 0, sentinel.ErrNotFound
	}
	return ein, nil
}

// InMemoryBuyerRegistry stores buyer demographics, compliance statuses and
// per-token rules.
type InMemoryBuyerRegistry struct {
	mu     sync.RWMutex
	buyers map[domain.EIN]Buyer
	rules  map[uuid.UUID]TokenRules
}

func NewInMemoryBuyerRegistry() *InMemoryBuyerRegistry {
	return &InMemoryBuyerRegistry{
		buyers: make(map[domain.EIN]Buyer),
		rules:  make(map[uuid.UUID]TokenRules),
	}
}

// AddBuyer registers a buyer's demographic record. Compliance statuses start
// false and are set separately by providers.
func (r *InMemoryBuyerRegistry) AddBuyer(b Buyer) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.buyers[b.EIN]; exists {
		return sentinel.ErrConflict
	}
	b.KYCApproved = false
	b.AMLApproved = false
	b.CFTApproved = false
	r.buyers[b.EIN] = b
	return nil
}

func (r *InMemoryBuyerRegistry) SetKYCStatus(ein domain.EIN, approved bool) error {
	return r.setStatus(ein, func(b *Buyer) { b.KYCApproved = approved })
}

func (r *InMemoryBuyerRegistry) SetAMLStatus(ein domain.EIN, approved bool) error {
	return r.setStatus(ein, func(b *Buyer) { b.AMLApproved = approved })
}

func (r *InMemoryBuyerRegistry) SetCFTStatus(ein domain.EIN, approved bool) error {
	return r.setStatus(ein, func(b *Buyer) { b.CFTApproved = approved })
}

func (r *InMemoryBuyerRegistry) setStatus(ein domain.EIN, apply func(*Buyer)) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.buyers[ein]
	if !ok {
		return sentinel.ErrNotFound
	}
	apply(&b)
	r.buyers[ein] = b
	return nil
}

// AssignTokenRules sets the compliance thresholds for a token.
func (r *InMemoryBuyerRegistry) AssignTokenRules(tokenID uuid.UUID, rules TokenRules) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rules[tokenID] = rules
}

func (r *InMemoryBuyerRegistry) GetBuyer(_ context.Context, ein domain.EIN) (Buyer, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	b, ok := r.buyers[ein]
	if !ok {
		return Buyer{}, sentinel.ErrNotFound
	}
	return b, nil
}

func (r *InMemoryBuyerRegistry) TokenRules(_ context.Context, tokenID uuid.UUID) (TokenRules, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rules, ok := r.rules[tokenID]
	if !ok {
		// A token with no assigned rules has no extra thresholds; KYC still
		// applies via Eligible.
		return TokenRules{}, nil
	}
	return rules, nil
}

// InMemoryServiceRegistry tracks provider appointments per token.
type InMemoryServiceRegistry struct {
	mu       sync.RWMutex
	services map[uuid.UUID]map[string]map[domain.EIN]bool
}

func NewInMemoryServiceRegistry() *InMemoryServiceRegistry {
	return &InMemoryServiceRegistry{services: make(map[uuid.UUID]map[string]map[domain.EIN]bool)}
}

// AddService appoints an identity as a provider for a token under a category
// such as "KYC". Idempotent.
func (r *InMemoryServiceRegistry) AddService(tokenID uuid.UUID, ein domain.EIN, category string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	byCat, ok := r.services[tokenID]
	if !ok {
		byCat = make(map[string]map[domain.EIN]bool)
		r.services[tokenID] = byCat
	}
	byEIN, ok := byCat[category]
	if !ok {
		byEIN = make(map[domain.EIN]bool)
		byCat[category] = byEIN
	}
	byEIN[ein] = true
}

func (r *InMemoryServiceRegistry) IsAuthorizedProvider(_ context.Context, tokenID uuid.UUID, ein domain.EIN, category string) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.services[tokenID][category][ein], nil
}
