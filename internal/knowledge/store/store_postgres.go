package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"mailscout/internal/confidence"
	"mailscout/internal/knowledge/models"
	"mailscout/internal/pattern"
)

const postgresSchema = `
CREATE TABLE IF NOT EXISTS domain_patterns (
	domain           TEXT             NOT NULL,
	pattern          TEXT             NOT NULL,
	source           TEXT             NOT NULL,
	sample_count     BIGINT           NOT NULL,
	confidence       DOUBLE PRECISION NOT NULL DEFAULT 0,
	last_verified_at TIMESTAMPTZ      NOT NULL,
	PRIMARY KEY (domain, pattern)
);`

var postgresUpsert = fmt.Sprintf(`
INSERT INTO domain_patterns (domain, pattern, source, sample_count, last_verified_at)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (domain, pattern) DO UPDATE SET
	sample_count     = domain_patterns.sample_count + EXCLUDED.sample_count,
	source           = CASE WHEN %s > %s THEN EXCLUDED.source ELSE domain_patterns.source END,
	last_verified_at = GREATEST(domain_patterns.last_verified_at, EXCLUDED.last_verified_at)
RETURNING source, sample_count, last_verified_at`,
	fmt.Sprintf(sourceRankSQL, "EXCLUDED.source"),
	fmt.Sprintf(sourceRankSQL, "domain_patterns.source"))

// PostgresStore shares pattern knowledge between workers through PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// OpenPostgres connects with lib/pq and ensures the schema exists.
func OpenPostgres(ctx context.Context, dsn string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	s, err := NewPostgresStore(ctx, db)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// NewPostgresStore wraps an existing handle and ensures the schema exists.
func NewPostgresStore(ctx context.Context, db *sql.DB) (*PostgresStore, error) {
	if _, err := db.ExecContext(ctx, postgresSchema); err != nil {
		return nil, fmt.Errorf("migrate postgres: %w", err)
	}
	return &PostgresStore{db: db}, nil
}

// Upsert accumulates obs with an atomic increment, then stores the recomputed
// confidence in the same transaction. The row lock taken by the upsert
// serializes concurrent writers to the same pattern.
func (s *PostgresStore) Upsert(ctx context.Context, obs models.Observation, score models.ScoreFunc) (models.DomainPatternRecord, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return models.DomainPatternRecord{}, fmt.Errorf("begin upsert: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	rec := models.DomainPatternRecord{Domain: obs.Domain, Pattern: obs.Pattern}
	var source string
	err = tx.QueryRowContext(ctx, postgresUpsert,
		obs.Domain, string(obs.Pattern), string(obs.Source), obs.Samples, obs.At.UTC(),
	).Scan(&source, &rec.SampleCount, &rec.LastVerifiedAt)
	if err != nil {
		return models.DomainPatternRecord{}, fmt.Errorf("upsert pattern: %w", err)
	}
	rec.Source = confidence.Source(source)
	rec.LastVerifiedAt = rec.LastVerifiedAt.UTC()

	var total int
	if err := tx.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(sample_count), 0) FROM domain_patterns WHERE domain = $1`, obs.Domain,
	).Scan(&total); err != nil {
		return models.DomainPatternRecord{}, fmt.Errorf("sum domain samples: %w", err)
	}

	rec.Confidence = score(rec, total)
	if _, err := tx.ExecContext(ctx,
		`UPDATE domain_patterns SET confidence = $1 WHERE domain = $2 AND pattern = $3`,
		rec.Confidence, obs.Domain, string(obs.Pattern),
	); err != nil {
		return models.DomainPatternRecord{}, fmt.Errorf("store confidence: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return models.DomainPatternRecord{}, fmt.Errorf("commit upsert: %w", err)
	}
	return rec, nil
}

// ListByDomain reads every record for domain.
func (s *PostgresStore) ListByDomain(ctx context.Context, domain string) ([]models.DomainPatternRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT domain, pattern, source, sample_count, confidence, last_verified_at
		 FROM domain_patterns WHERE domain = $1`, domain)
	if err != nil {
		return nil, fmt.Errorf("list patterns: %w", err)
	}
	defer rows.Close()

	var out []models.DomainPatternRecord
	for rows.Next() {
		var (
			rec      models.DomainPatternRecord
			pat, src string
			stamp    time.Time
		)
		if err := rows.Scan(&rec.Domain, &pat, &src, &rec.SampleCount, &rec.Confidence, &stamp); err != nil {
			return nil, fmt.Errorf("%w: %v", models.ErrCacheCorrupted, err)
		}
		rec.Pattern = pattern.Name(pat)
		rec.Source = confidence.Source(src)
		rec.LastVerifiedAt = stamp.UTC()
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list patterns: %w", err)
	}
	return out, nil
}

// DeleteDomain drops every record for domain.
func (s *PostgresStore) DeleteDomain(ctx context.Context, domain string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM domain_patterns WHERE domain = $1`, domain); err != nil {
		return fmt.Errorf("delete patterns: %w", err)
	}
	return nil
}

// Close closes the database.
func (s *PostgresStore) Close() error {
	return s.db.Close()
}
