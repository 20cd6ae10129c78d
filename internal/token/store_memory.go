package token

import (
	"context"
	"sync"
	"time"

	"sto-gateway/internal/domain"
	"sto-gateway/pkg/fixedpoint"
	"sto-gateway/pkg/platform/sentinel"
)

// InMemoryInvestorStore keeps holder records in process memory.
type InMemoryInvestorStore struct {
	mu        sync.RWMutex
	investors map[domain.Address]Investor
	order     []domain.Address
}

func NewInMemoryInvestorStore() *InMemoryInvestorStore {
	return &InMemoryInvestorStore{investors: make(map[domain.Address]Investor)}
}

func (s *InMemoryInvestorStore) Get(_ context.Context, addr domain.Address) (Investor, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	inv, ok := s.investors[addr]
	if !ok {
		return Investor{}, sentinel.ErrNotFound
	}
	return inv, nil
}

func (s *InMemoryInvestorStore) Put(_ context.Context, inv Investor) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.investors[inv.Address]; !exists {
		s.order = append(s.order, inv.Address)
	}
	s.investors[inv.Address] = inv
	return nil
}

func (s *InMemoryInvestorStore) PutPair(_ context.Context, a, b Investor) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, inv := range []Investor{a, b} {
		if _, exists := s.investors[inv.Address]; !exists {
			s.order = append(s.order, inv.Address)
		}
		s.investors[inv.Address] = inv
	}
	return nil
}

func (s *InMemoryInvestorStore) List(_ context.Context) ([]Investor, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Investor, 0, len(s.order))
	for _, addr := range s.order {
		out = append(out, s.investors[addr])
	}
	return out, nil
}

// InMemoryStateStore keeps the instance state in process memory.
type InMemoryStateStore struct {
	mu    sync.RWMutex
	state InstanceState
	saved bool
}

func NewInMemoryStateStore() *InMemoryStateStore {
	return &InMemoryStateStore{}
}

func (s *InMemoryStateStore) Load(_ context.Context) (InstanceState, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state, s.saved, nil
}

func (s *InMemoryStateStore) Save(_ context.Context, st InstanceState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = st
	s.saved = true
	return nil
}

// InMemoryPeriodStore keeps the boundary table, results and snapshots in
// process memory.
type InMemoryPeriodStore struct {
	mu            sync.RWMutex
	boundaries    []time.Time
	results       map[int]fixedpoint.Amount
	snapshots     map[int]Snapshot
	sealedThrough int
}

func NewInMemoryPeriodStore() *InMemoryPeriodStore {
	return &InMemoryPeriodStore{
		results:   make(map[int]fixedpoint.Amount),
		snapshots: make(map[int]Snapshot),
	}
}

func (s *InMemoryPeriodStore) Boundaries(_ context.Context) ([]time.Time, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]time.Time{}, s.boundaries...), nil
}

func (s *InMemoryPeriodStore) AppendBoundaries(_ context.Context, boundaries []time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.boundaries = append(s.boundaries, boundaries...)
	return nil
}

func (s *InMemoryPeriodStore) Result(_ context.Context, period int) (fixedpoint.Amount, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	amount, ok := s.results[period]
	return amount, ok, nil
}

func (s *InMemoryPeriodStore) SetResult(_ context.Context, period int, amount fixedpoint.Amount) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.results[period]; exists {
		return sentinel.ErrConflict
	}
	s.results[period] = amount
	return nil
}

func (s *InMemoryPeriodStore) SealedThrough(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sealedThrough, nil
}

func (s *InMemoryPeriodStore) SealSnapshot(_ context.Context, period int, snap Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.snapshots[period]; exists {
		return sentinel.ErrConflict
	}
	// Copy balances so later mutations cannot reach into the sealed state.
	balances := make(map[domain.Address]fixedpoint.Amount, len(snap.Balances))
	for addr, bal := range snap.Balances {
		balances[addr] = bal
	}
	s.snapshots[period] = Snapshot{Supply: snap.Supply, Balances: balances}
	if period > s.sealedThrough {
		s.sealedThrough = period
	}
	return nil
}

func (s *InMemoryPeriodStore) Snapshot(_ context.Context, period int) (Snapshot, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap, ok := s.snapshots[period]
	return snap, ok, nil
}
