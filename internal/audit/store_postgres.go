package audit

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// PostgresStore persists audit events in PostgreSQL. Pure I/O; event
// construction belongs to the publisher.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Append(ctx context.Context, event Event) error {
	query := `
		INSERT INTO audit_events (id, occurred_at, actor, actor_ein, action, token_id, amount, details)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err := s.db.ExecContext(ctx, query,
		event.ID, event.Timestamp, event.Actor, event.ActorEIN,
		event.Action, event.TokenID, event.Amount, event.Details,
	)
	if err != nil {
		return fmt.Errorf("append audit event: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListByActor(ctx context.Context, actor string) ([]Event, error) {
	query := `
		SELECT id, occurred_at, actor, actor_ein, action, token_id, amount, details
		FROM audit_events
		WHERE actor = $1
		ORDER BY occurred_at
	`
	rows, err := s.db.QueryContext(ctx, query, actor)
	if err != nil {
		return nil, fmt.Errorf("list audit events: %w", err)
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var (
			e          Event
			id         uuid.UUID
			occurredAt time.Time
		)
		if err := rows.Scan(&id, &occurredAt, &e.Actor, &e.ActorEIN, &e.Action, &e.TokenID, &e.Amount, &e.Details); err != nil {
			return nil, fmt.Errorf("scan audit event: %w", err)
		}
		e.ID = id
		e.Timestamp = occurredAt
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate audit events: %w", err)
	}
	return events, nil
}
