package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Postgres backs the store with a customers table holding a jsonb attribute
// document and a version column bumped on every write.
type Postgres struct {
	db *pgxpool.Pool
}

func NewPostgres(db *pgxpool.Pool) *Postgres {
	return &Postgres{db: db}
}

func (p *Postgres) ListPage(ctx context.Context, offset, limit int) ([]Record, int64, error) {
	var total int64
	if err := p.db.QueryRow(ctx, `SELECT COUNT(1) FROM loyalty.customers`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count customers: %w", err)
	}

	rows, err := p.db.Query(ctx, `
		SELECT external_id, version, attributes
		FROM loyalty.customers
		ORDER BY external_id
		OFFSET $1 LIMIT $2
	`, offset, limit)
	if err != nil {
		return nil, 0, fmt.Errorf("list customers: %w", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

func (p *Postgres) FindByExternalID(ctx context.Context, externalID string) (Record, error) {
	row := p.db.QueryRow(ctx, `
		SELECT external_id, version, attributes
		FROM loyalty.customers
		WHERE external_id = $1
	`, externalID)
	rec, err := scanRecord(row)
	if err == pgx.ErrNoRows {
		return Record{}, ErrNotFound
	}
	if err != nil {
		return Record{}, fmt.Errorf("find customer %s: %w", externalID, err)
	}
	return rec, nil
}

func (p *Postgres) UpdateAttributes(ctx context.Context, externalID string, version int64, patch map[string]any) error {
	raw, err := json.Marshal(patch)
	if err != nil {
		return fmt.Errorf("marshal patch: %w", err)
	}

	// The jsonb concatenation merges top-level keys; the version predicate is
	// the compare-and-swap, so a concurrent writer makes this affect 0 rows.
	cmd, err := p.db.Exec(ctx, `
		UPDATE loyalty.customers
		SET attributes = attributes || $1::jsonb,
		    version = version + 1,
		    updated_at = now()
		WHERE external_id = $2 AND version = $3
	`, string(raw), externalID, version)
	if err != nil {
		return fmt.Errorf("update customer %s: %w", externalID, err)
	}
	if cmd.RowsAffected() == 0 {
		var exists bool
		if err := p.db.QueryRow(ctx, `
			SELECT EXISTS (SELECT 1 FROM loyalty.customers WHERE external_id = $1)
		`, externalID).Scan(&exists); err != nil {
			return fmt.Errorf("recheck customer %s: %w", externalID, err)
		}
		if !exists {
			return ErrNotFound
		}
		return ErrVersionConflict
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (Record, error) {
	var rec Record
	var raw []byte
	if err := row.Scan(&rec.ExternalID, &rec.Version, &raw); err != nil {
		return Record{}, err
	}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &rec.Attributes); err != nil {
			return Record{}, fmt.Errorf("decode attributes for %s: %w", rec.ExternalID, err)
		}
	}
	if rec.Attributes == nil {
		rec.Attributes = map[string]any{}
	}
	return rec, nil
}
