package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/bassrehab/oconsent/internal/agreement/models"
	"github.com/bassrehab/oconsent/internal/sentinel"
)

// PostgresStore persists agreements in PostgreSQL. It is the adapter for a
// durable substrate: once Insert or Put returns success the effect is
// durable and totally ordered relative to other successful mutations.
//
// Schema (see migrations): an agreements table with a monotonically growing
// seq column, and a purposes table keyed by (agreement_id, seq) to preserve
// insertion order. A NULL valid_until maps to the zero time, meaning no
// upper validity bound.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed agreement store.
func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Insert(ctx context.Context, agreement *models.Agreement) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin insert tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	query := `
		INSERT INTO agreements (id, subject, processor, valid_from, valid_until, metadata_hash, status, proof_id, timestamp_proof)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO NOTHING
		RETURNING id
	`
	var storedID string
	err = tx.QueryRowContext(ctx, query,
		agreement.ID,
		agreement.Subject,
		agreement.Processor,
		agreement.ValidFrom,
		nullableTime(agreement.ValidUntil),
		agreement.MetadataHash,
		string(agreement.Status),
		agreement.ProofID,
		agreement.TimestampProof,
	).Scan(&storedID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return sentinel.ErrAlreadyExists
		}
		return fmt.Errorf("insert agreement: %w", err)
	}

	if err := insertPurposes(ctx, tx, agreement.ID, 0, agreement.Purposes); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit insert: %w", err)
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, id string) (*models.Agreement, error) {
	query := `
		SELECT id, subject, processor, valid_from, valid_until, metadata_hash, status, proof_id, timestamp_proof
		FROM agreements
		WHERE id = $1
	`
	var (
		a          models.Agreement
		validUntil sql.NullTime
		status     string
	)
	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&a.ID, &a.Subject, &a.Processor, &a.ValidFrom, &validUntil,
		&a.MetadataHash, &status, &a.ProofID, &a.TimestampProof,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("get agreement: %w", err)
	}
	a.Status = models.Status(status)
	if validUntil.Valid {
		a.ValidUntil = validUntil.Time
	}

	purposes, err := s.listPurposes(ctx, id)
	if err != nil {
		return nil, err
	}
	a.Purposes = purposes
	return &a, nil
}

func (s *PostgresStore) Put(ctx context.Context, agreement *models.Agreement) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin put tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	query := `
		UPDATE agreements
		SET status = $2, proof_id = $3, timestamp_proof = $4
		WHERE id = $1
	`
	res, err := tx.ExecContext(ctx, query,
		agreement.ID,
		string(agreement.Status),
		agreement.ProofID,
		agreement.TimestampProof,
	)
	if err != nil {
		return fmt.Errorf("update agreement: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update agreement rows: %w", err)
	}
	if affected == 0 {
		return sentinel.ErrNotFound
	}

	// Purposes are append-only; persist any tail rows beyond the stored count.
	var stored int
	if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM purposes WHERE agreement_id = $1`, agreement.ID).Scan(&stored); err != nil {
		return fmt.Errorf("count purposes: %w", err)
	}
	if stored < len(agreement.Purposes) {
		if err := insertPurposes(ctx, tx, agreement.ID, stored, agreement.Purposes[stored:]); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit put: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListBySubject(ctx context.Context, subject string) ([]string, error) {
	return s.listIDs(ctx, `SELECT id FROM agreements WHERE subject = $1 ORDER BY seq`, subject)
}

func (s *PostgresStore) ListByProcessor(ctx context.Context, processor string) ([]string, error) {
	return s.listIDs(ctx, `SELECT id FROM agreements WHERE processor = $1 ORDER BY seq`, processor)
}

func (s *PostgresStore) listIDs(ctx context.Context, query, principal string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, query, principal)
	if err != nil {
		return nil, fmt.Errorf("list agreement ids: %w", err)
	}
	defer rows.Close()

	ids := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan agreement id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate agreement ids: %w", err)
	}
	return ids, nil
}

func (s *PostgresStore) listPurposes(ctx context.Context, agreementID string) ([]models.Purpose, error) {
	query := `
		SELECT purpose_id, name, description, retention_seconds, created_at
		FROM purposes
		WHERE agreement_id = $1
		ORDER BY seq
	`
	rows, err := s.db.QueryContext(ctx, query, agreementID)
	if err != nil {
		return nil, fmt.Errorf("list purposes: %w", err)
	}
	defer rows.Close()

	var purposes []models.Purpose
	for rows.Next() {
		var (
			p       models.Purpose
			seconds int64
		)
		if err := rows.Scan(&p.ID, &p.Name, &p.Description, &seconds, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan purpose: %w", err)
		}
		p.RetentionPeriod = time.Duration(seconds) * time.Second
		purposes = append(purposes, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate purposes: %w", err)
	}
	return purposes, nil
}

func insertPurposes(ctx context.Context, tx *sql.Tx, agreementID string, offset int, purposes []models.Purpose) error {
	query := `
		INSERT INTO purposes (agreement_id, seq, purpose_id, name, description, retention_seconds, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	for i, p := range purposes {
		_, err := tx.ExecContext(ctx, query,
			agreementID,
			offset+i,
			p.ID,
			p.Name,
			p.Description,
			int64(p.RetentionPeriod/time.Second),
			p.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("insert purpose: %w", err)
		}
	}
	return nil
}

func nullableTime(t time.Time) sql.NullTime {
	if t.IsZero() {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t, Valid: true}
}
