// Package store implements the remote collaborators over Postgres: the
// qualification collection and the append-only deletion audit log.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rleiva/taxqual/internal/qualification"
)

var (
	// ErrNotFound means the record does not exist remotely.
	ErrNotFound = errors.New("qualification not found")
	// ErrPermissionDenied means the remote store rejected the operation.
	ErrPermissionDenied = errors.New("permission denied")
)

// Store wraps a pgx pool with the queries the data layer needs.
type Store struct {
	pool *pgxpool.Pool
}

// New creates a Store over pool.
func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

const listByOwnerSQL = `
SELECT id, taxpayer_id, instrument_type, qualification_type, market, period,
       amount_value, amount_currency, unregistered, updated_at
FROM qualifications
WHERE owner_id = $1
ORDER BY updated_at DESC`

// ListByOwner returns the owner's full qualification collection.
func (s *Store) ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]qualification.Record, error) {
	rows, err := s.pool.Query(ctx, listByOwnerSQL, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list qualifications: %w", err)
	}
	defer rows.Close()

	var records []qualification.Record
	for rows.Next() {
		var r qualification.Record
		if err := rows.Scan(
			&r.ID, &r.TaxpayerID, &r.InstrumentType, &r.QualificationType,
			&r.Market, &r.Period, &r.Amount.Value, &r.Amount.Currency,
			&r.Unregistered, &r.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan qualification: %w", err)
		}
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list qualifications: %w", err)
	}
	return records, nil
}

// Delete removes one record. A missing row maps to ErrNotFound and a
// privilege failure to ErrPermissionDenied so callers can log a precise
// cause while still reporting a generic failure upward.
func (s *Store) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM qualifications WHERE id = $1`, id)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "42501" {
			return ErrPermissionDenied
		}
		return fmt.Errorf("delete qualification: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

const insertAuditSQL = `
INSERT INTO qualification_audit
  (id, actor_id, actor_email, actor_name, entity_id, snapshot, deleted_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)`

// RecordDeletion appends one audit entry with the actor identity and a
// snapshot of the deleted record. Entries are never updated or removed
// outside the retention sweep.
func (s *Store) RecordDeletion(ctx context.Context, actor qualification.Actor, entityID uuid.UUID, snapshot qualification.Record) error {
	payload, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}
	_, err = s.pool.Exec(ctx, insertAuditSQL,
		uuid.New(), actor.ID, actor.Email, actor.Name, entityID, payload, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("insert audit entry: %w", err)
	}
	return nil
}

// PurgeAuditBefore removes audit entries older than cutoff and reports
// how many went. Used by the retention worker.
func (s *Store) PurgeAuditBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM qualification_audit WHERE deleted_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("purge audit entries: %w", err)
	}
	return tag.RowsAffected(), nil
}

// GetAuditEntry fetches one audit row, mainly for the gated integration
// test.
func (s *Store) GetAuditEntry(ctx context.Context, entityID uuid.UUID) (qualification.Record, error) {
	var payload []byte
	err := s.pool.QueryRow(ctx,
		`SELECT snapshot FROM qualification_audit WHERE entity_id = $1 ORDER BY deleted_at DESC LIMIT 1`,
		entityID).Scan(&payload)
	if errors.Is(err, pgx.ErrNoRows) {
		return qualification.Record{}, ErrNotFound
	}
	if err != nil {
		return qualification.Record{}, fmt.Errorf("get audit entry: %w", err)
	}
	var snapshot qualification.Record
	if err := json.Unmarshal(payload, &snapshot); err != nil {
		return qualification.Record{}, fmt.Errorf("unmarshal snapshot: %w", err)
	}
	return snapshot, nil
}
