// Package postgres provides a PostgreSQL-backed implementation of
// store.CallStore.
//
// All operations share a single [pgxpool.Pool]. [New] runs [Migrate]
// automatically so the conversations table exists before the first call ends.
//
// Usage:
//
//	st, err := postgres.New(ctx, dsn)
//	if err != nil { … }
//	defer st.Close()
//
//	_ = st.Save(ctx, rec)
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/AmaanP314/AI-Caller-Agent/pkg/store"
)

// Compile-time interface check.
var _ store.CallStore = (*Store)(nil)

const ddlConversations = `
CREATE TABLE IF NOT EXISTS conversations (
    session_id          TEXT         PRIMARY KEY,
    phone_number        TEXT         NOT NULL DEFAULT '',
    started_at          TIMESTAMPTZ  NOT NULL,
    ended_at            TIMESTAMPTZ  NOT NULL,
    status              TEXT         NOT NULL DEFAULT '',
    patient_name        TEXT         NOT NULL DEFAULT '',
    medical_conditions  TEXT         NOT NULL DEFAULT '',
    last_visit_date     TEXT         NOT NULL DEFAULT '',
    interested          BOOLEAN,
    conversation_json   JSONB        NOT NULL DEFAULT '[]',
    total_turns         INTEGER      NOT NULL DEFAULT 0,
    greeting            TEXT         NOT NULL DEFAULT '',
    first_user_response TEXT         NOT NULL DEFAULT ''
);

CREATE INDEX IF NOT EXISTS idx_conversations_started_at
    ON conversations (started_at);

CREATE INDEX IF NOT EXISTS idx_conversations_status
    ON conversations (status);
`

// Store is a PostgreSQL-backed call record store.
// All methods are safe for concurrent use.
type Store struct {
	pool *pgxpool.Pool
}

// New creates a Store, establishes a connection pool to the database at dsn,
// and runs Migrate to ensure the conversations table exists.
func New(ctx context.Context, dsn string) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres store: parse dsn: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("postgres store: create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres store: ping: %w", err)
	}

	if err := Migrate(ctx, pool); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres store: migrate: %w", err)
	}

	return &Store{pool: pool}, nil
}

// Migrate creates the conversations table and its indexes if they do not
// already exist. It is idempotent.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, ddlConversations); err != nil {
		return fmt.Errorf("create conversations table: %w", err)
	}
	return nil
}

// Save implements store.CallStore. It upserts on session_id so a retried
// teardown cannot produce duplicate rows.
func (s *Store) Save(ctx context.Context, rec store.CallRecord) error {
	turnsJSON, err := json.Marshal(rec.Turns)
	if err != nil {
		return fmt.Errorf("postgres store: marshal turns: %w", err)
	}

	const q = `
		INSERT INTO conversations
		    (session_id, phone_number, started_at, ended_at, status,
		     patient_name, medical_conditions, last_visit_date, interested,
		     conversation_json, total_turns, greeting, first_user_response)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (session_id) DO UPDATE SET
		    phone_number        = EXCLUDED.phone_number,
		    started_at          = EXCLUDED.started_at,
		    ended_at            = EXCLUDED.ended_at,
		    status              = EXCLUDED.status,
		    patient_name        = EXCLUDED.patient_name,
		    medical_conditions  = EXCLUDED.medical_conditions,
		    last_visit_date     = EXCLUDED.last_visit_date,
		    interested          = EXCLUDED.interested,
		    conversation_json   = EXCLUDED.conversation_json,
		    total_turns         = EXCLUDED.total_turns,
		    greeting            = EXCLUDED.greeting,
		    first_user_response = EXCLUDED.first_user_response`

	_, err = s.pool.Exec(ctx, q,
		rec.SessionID,
		rec.PhoneNumber,
		rec.StartedAt,
		rec.EndedAt,
		rec.Status,
		rec.PatientName,
		rec.MedicalConditions,
		rec.LastVisitDate,
		rec.Interested,
		turnsJSON,
		rec.TotalTurns,
		rec.Greeting,
		rec.FirstUserResponse,
	)
	if err != nil {
		return fmt.Errorf("postgres store: save call %s: %w", rec.SessionID, err)
	}
	return nil
}

// Get implements store.CallStore.
func (s *Store) Get(ctx context.Context, sessionID string) (*store.CallRecord, error) {
	const q = `
		SELECT session_id, phone_number, started_at, ended_at, status,
		       patient_name, medical_conditions, last_visit_date, interested,
		       conversation_json, total_turns, greeting, first_user_response
		FROM   conversations
		WHERE  session_id = $1`

	rows, err := s.pool.Query(ctx, q, sessionID)
	if err != nil {
		return nil, fmt.Errorf("postgres store: get call %s: %w", sessionID, err)
	}

	rec, err := pgx.CollectOneRow(rows, func(row pgx.CollectableRow) (store.CallRecord, error) {
		var (
			r         store.CallRecord
			turnsJSON []byte
		)
		if err := row.Scan(
			&r.SessionID,
			&r.PhoneNumber,
			&r.StartedAt,
			&r.EndedAt,
			&r.Status,
			&r.PatientName,
			&r.MedicalConditions,
			&r.LastVisitDate,
			&r.Interested,
			&turnsJSON,
			&r.TotalTurns,
			&r.Greeting,
			&r.FirstUserResponse,
		); err != nil {
			return store.CallRecord{}, err
		}
		if len(turnsJSON) > 0 {
			if err := json.Unmarshal(turnsJSON, &r.Turns); err != nil {
				return store.CallRecord{}, fmt.Errorf("unmarshal turns: %w", err)
			}
		}
		return r, nil
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("postgres store: get call %s: %w", sessionID, err)
	}
	return &rec, nil
}

// Ping implements store.CallStore.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.pool.Ping(ctx); err != nil {
		return fmt.Errorf("postgres store: ping: %w", err)
	}
	return nil
}

// Close releases all connections held by the underlying pool.
func (s *Store) Close() {
	s.pool.Close()
}
