package token

import (
	"context"
	"time"

	"sto-gateway/internal/domain"
	"sto-gateway/pkg/fixedpoint"
)

// Stores are interface-driven to keep the engine testable and to allow
// swapping in-memory and PostgreSQL persistence without rewiring business
// code. Stores are pure I/O; all invariants live in the service.

// InvestorStore persists holder records.
type InvestorStore interface {
	// Get returns the investor for an address, or sentinel.ErrNotFound.
	Get(ctx context.Context, addr domain.Address) (Investor, error)
	// Put inserts or replaces an investor record.
	Put(ctx context.Context, inv Investor) error
	// PutPair upserts two records atomically; neither lands without the
	// other. Used for transfers so a mid-write failure cannot destroy
	// tokens.
	PutPair(ctx context.Context, a, b Investor) error
	// List returns every investor record ever created.
	List(ctx context.Context) ([]Investor, error)
}

// InstanceState is the configuration half of a token instance: everything
// the owner and oracle set that is not derivable from the investor records.
// Supply and investor count are recomputed from the investor store on
// Restore, so they are deliberately absent.
type InstanceState struct {
	Stage     domain.Stage        `json:"stage"`
	Main      *domain.MainParams  `json:"main,omitempty"`
	Flags     domain.StoFlags     `json:"flags"`
	Sto       *domain.StoParams   `json:"sto,omitempty"`
	Oracle    domain.Address      `json:"oracle,omitempty"`
	Whitelist map[domain.EIN]bool `json:"whitelist,omitempty"`
	Blacklist map[domain.EIN]bool `json:"blacklist,omitempty"`
}

// StateStore persists the instance state so a restarted gateway resumes at
// the stage and parameters it last committed instead of a fresh prelaunch.
type StateStore interface {
	// Load returns the stored state, with ok=false when none was saved yet.
	Load(ctx context.Context) (InstanceState, bool, error)
	Save(ctx context.Context, st InstanceState) error
}

// PeriodStore persists the boundary table, oracle results and boundary
// snapshots. Boundaries and results are append/set-once; nothing is deleted.
type PeriodStore interface {
	Boundaries(ctx context.Context) ([]time.Time, error)
	AppendBoundaries(ctx context.Context, boundaries []time.Time) error

	// Result returns the oracle-reported amount for a period, with ok=false
	// for unresolved periods.
	Result(ctx context.Context, period int) (fixedpoint.Amount, bool, error)
	SetResult(ctx context.Context, period int, amount fixedpoint.Amount) error

	// SealedThrough is the highest period index with a sealed snapshot.
	SealedThrough(ctx context.Context) (int, error)
	SealSnapshot(ctx context.Context, period int, snap Snapshot) error
	Snapshot(ctx context.Context, period int) (Snapshot, bool, error)
}
