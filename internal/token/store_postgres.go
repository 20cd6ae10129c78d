package token

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"sto-gateway/internal/domain"
	"sto-gateway/pkg/fixedpoint"
	"sto-gateway/pkg/platform/sentinel"
)

// PostgresInvestorStore persists holder records in PostgreSQL. Pure I/O; all
// admission and settlement rules live in the service.
type PostgresInvestorStore struct {
	db *sql.DB
}

func NewPostgresInvestorStore(db *sql.DB) *PostgresInvestorStore {
	return &PostgresInvestorStore{db: db}
}

func (s *PostgresInvestorStore) Get(ctx context.Context, addr domain.Address) (Investor, error) {
	query := `
		SELECT address, ein, balance, hydro_spent, last_claimed_period, first_purchase_at
		FROM investors
		WHERE address = $1
	`
	inv, err := scanInvestor(s.db.QueryRowContext(ctx, query, string(addr)))
	if err != nil {
		if err == sql.ErrNoRows {
			return Investor{}, sentinel.ErrNotFound
		}
		return Investor{}, fmt.Errorf("get investor: %w", err)
	}
	return inv, nil
}

func (s *PostgresInvestorStore) Put(ctx context.Context, inv Investor) error {
	query := `
		INSERT INTO investors (address, ein, balance, hydro_spent, last_claimed_period, first_purchase_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (address) DO UPDATE SET
			balance = EXCLUDED.balance,
			hydro_spent = EXCLUDED.hydro_spent,
			last_claimed_period = EXCLUDED.last_claimed_period,
			first_purchase_at = EXCLUDED.first_purchase_at
	`
	_, err := s.db.ExecContext(ctx, query,
		string(inv.Address), int64(inv.EIN), inv.Balance.Dec(), inv.HydroSpent.Dec(),
		inv.LastClaimedPeriod, inv.FirstPurchaseAt,
	)
	if err != nil {
		return fmt.Errorf("put investor: %w", err)
	}
	return nil
}

func (s *PostgresInvestorStore) PutPair(ctx context.Context, a, b Investor) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin put pair: %w", err)
	}
	defer tx.Rollback()

	query := `
		INSERT INTO investors (address, ein, balance, hydro_spent, last_claimed_period, first_purchase_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (address) DO UPDATE SET
			balance = EXCLUDED.balance,
			hydro_spent = EXCLUDED.hydro_spent,
			last_claimed_period = EXCLUDED.last_claimed_period,
			first_purchase_at = EXCLUDED.first_purchase_at
	`
	for _, inv := range []Investor{a, b} {
		_, err := tx.ExecContext(ctx, query,
			string(inv.Address), int64(inv.EIN), inv.Balance.Dec(), inv.HydroSpent.Dec(),
			inv.LastClaimedPeriod, inv.FirstPurchaseAt,
		)
		if err != nil {
			return fmt.Errorf("put pair investor: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit put pair: %w", err)
	}
	return nil
}

func (s *PostgresInvestorStore) List(ctx context.Context) ([]Investor, error) {
	query := `
		SELECT address, ein, balance, hydro_spent, last_claimed_period, first_purchase_at
		FROM investors
		ORDER BY seq
	`
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list investors: %w", err)
	}
	defer rows.Close()

	var investors []Investor
	for rows.Next() {
		inv, err := scanInvestor(rows)
		if err != nil {
			return nil, fmt.Errorf("scan investor: %w", err)
		}
		investors = append(investors, inv)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate investors: %w", err)
	}
	return investors, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanInvestor(row rowScanner) (Investor, error) {
	var (
		inv             Investor
		addr            string
		ein             int64
		balance, spent  string
		firstPurchaseAt time.Time
	)
	if err := row.Scan(&addr, &ein, &balance, &spent, &inv.LastClaimedPeriod, &firstPurchaseAt); err != nil {
		return Investor{}, err
	}
	parsedBalance, err := fixedpoint.Parse(balance)
	if err != nil {
		return Investor{}, fmt.Errorf("parse balance: %w", err)
	}
	parsedSpent, err := fixedpoint.Parse(spent)
	if err != nil {
		return Investor{}, fmt.Errorf("parse hydro_spent: %w", err)
	}
	inv.Address = domain.Address(addr)
	inv.EIN = domain.EIN(ein)
	inv.Balance = parsedBalance
	inv.HydroSpent = parsedSpent
	inv.FirstPurchaseAt = firstPurchaseAt
	return inv, nil
}

// PostgresStateStore persists the instance state as one JSON row per token,
// replaced on every commit.
type PostgresStateStore struct {
	db      *sql.DB
	tokenID string
}

func NewPostgresStateStore(db *sql.DB, tokenID uuid.UUID) *PostgresStateStore {
	return &PostgresStateStore{db: db, tokenID: tokenID.String()}
}

func (s *PostgresStateStore) Load(ctx context.Context) (InstanceState, bool, error) {
	var raw []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT state FROM token_state WHERE token_id = $1`, s.tokenID).Scan(&raw)
	if err != nil {
		if err == sql.ErrNoRows {
			return InstanceState{}, false, nil
		}
		return InstanceState{}, false, fmt.Errorf("get token state: %w", err)
	}
	var st InstanceState
	if err := json.Unmarshal(raw, &st); err != nil {
		return InstanceState{}, false, fmt.Errorf("decode token state: %w", err)
	}
	return st, true, nil
}

func (s *PostgresStateStore) Save(ctx context.Context, st InstanceState) error {
	raw, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("encode token state: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO token_state (token_id, state, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (token_id) DO UPDATE SET state = EXCLUDED.state, updated_at = now()
	`, s.tokenID, raw)
	if err != nil {
		return fmt.Errorf("save token state: %w", err)
	}
	return nil
}

// PostgresPeriodStore persists boundaries, oracle results and boundary
// snapshots in PostgreSQL.
type PostgresPeriodStore struct {
	db *sql.DB
}

func NewPostgresPeriodStore(db *sql.DB) *PostgresPeriodStore {
	return &PostgresPeriodStore{db: db}
}

func (s *PostgresPeriodStore) Boundaries(ctx context.Context) ([]time.Time, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT boundary FROM period_boundaries ORDER BY position`)
	if err != nil {
		return nil, fmt.Errorf("list boundaries: %w", err)
	}
	defer rows.Close()

	var boundaries []time.Time
	for rows.Next() {
		var b time.Time
		if err := rows.Scan(&b); err != nil {
			return nil, fmt.Errorf("scan boundary: %w", err)
		}
		boundaries = append(boundaries, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate boundaries: %w", err)
	}
	return boundaries, nil
}

func (s *PostgresPeriodStore) AppendBoundaries(ctx context.Context, boundaries []time.Time) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin append boundaries: %w", err)
	}
	defer tx.Rollback()

	query := `
		INSERT INTO period_boundaries (position, boundary)
		VALUES ((SELECT COALESCE(MAX(position), 0) + 1 FROM period_boundaries), $1)
	`
	for _, b := range boundaries {
		if _, err := tx.ExecContext(ctx, query, b); err != nil {
			return fmt.Errorf("append boundary: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit append boundaries: %w", err)
	}
	return nil
}

func (s *PostgresPeriodStore) Result(ctx context.Context, period int) (fixedpoint.Amount, bool, error) {
	var raw string
	err := s.db.QueryRowContext(ctx, `SELECT result FROM period_results WHERE period = $1`, period).Scan(&raw)
	if err != nil {
		if err == sql.ErrNoRows {
			return fixedpoint.Zero(), false, nil
		}
		return fixedpoint.Zero(), false, fmt.Errorf("get period result: %w", err)
	}
	amount, err := fixedpoint.Parse(raw)
	if err != nil {
		return fixedpoint.Zero(), false, fmt.Errorf("parse period result: %w", err)
	}
	return amount, true, nil
}

func (s *PostgresPeriodStore) SetResult(ctx context.Context, period int, amount fixedpoint.Amount) error {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO period_results (period, result) VALUES ($1, $2) ON CONFLICT (period) DO NOTHING`,
		period, amount.Dec(),
	)
	if err != nil {
		return fmt.Errorf("set period result: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return sentinel.ErrConflict
	}
	return nil
}

func (s *PostgresPeriodStore) SealedThrough(ctx context.Context) (int, error) {
	var sealed int
	err := s.db.QueryRowContext(ctx, `SELECT COALESCE(MAX(period), 0) FROM period_snapshots`).Scan(&sealed)
	if err != nil {
		return 0, fmt.Errorf("get sealed cursor: %w", err)
	}
	return sealed, nil
}

func (s *PostgresPeriodStore) SealSnapshot(ctx context.Context, period int, snap Snapshot) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin seal snapshot: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`INSERT INTO period_snapshots (period, supply) VALUES ($1, $2) ON CONFLICT (period) DO NOTHING`,
		period, snap.Supply.Dec(),
	)
	if err != nil {
		return fmt.Errorf("seal snapshot: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return sentinel.ErrConflict
	}
	for addr, balance := range snap.Balances {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO period_snapshot_balances (period, address, balance) VALUES ($1, $2, $3)`,
			period, string(addr), balance.Dec(),
		)
		if err != nil {
			return fmt.Errorf("seal snapshot balance: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit seal snapshot: %w", err)
	}
	return nil
}

func (s *PostgresPeriodStore) Snapshot(ctx context.Context, period int) (Snapshot, bool, error) {
	var supply string
	err := s.db.QueryRowContext(ctx, `SELECT supply FROM period_snapshots WHERE period = $1`, period).Scan(&supply)
	if err != nil {
		if err == sql.ErrNoRows {
			return Snapshot{}, false, nil
		}
		return Snapshot{}, false, fmt.Errorf("get snapshot: %w", err)
	}
	parsedSupply, err := fixedpoint.Parse(supply)
	if err != nil {
		return Snapshot{}, false, fmt.Errorf("parse snapshot supply: %w", err)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT address, balance FROM period_snapshot_balances WHERE period = $1`, period)
	if err != nil {
		return Snapshot{}, false, fmt.Errorf("list snapshot balances: %w", err)
	}
	defer rows.Close()

	snap := Snapshot{Supply: parsedSupply, Balances: make(map[domain.Address]fixedpoint.Amount)}
	for rows.Next() {
		var addr, raw string
		if err := rows.Scan(&addr, &raw); err != nil {
			return Snapshot{}, false, fmt.Errorf("scan snapshot balance: %w", err)
		}
		balance, err := fixedpoint.Parse(raw)
		if err != nil {
			return Snapshot{}, false, fmt.Errorf("parse snapshot balance: %w", err)
		}
		snap.Balances[domain.Address(addr)] = balance
	}
	if err := rows.Err(); err != nil {
		return Snapshot{}, false, fmt.Errorf("iterate snapshot balances: %w", err)
	}
	return snap, true, nil
}
