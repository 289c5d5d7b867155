package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"mailscout/internal/confidence"
	"mailscout/internal/knowledge/models"
	"mailscout/internal/pattern"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS domain_patterns (
	domain           TEXT    NOT NULL,
	pattern          TEXT    NOT NULL,
	source           TEXT    NOT NULL,
	sample_count     INTEGER NOT NULL,
	confidence       REAL    NOT NULL DEFAULT 0,
	last_verified_at TEXT    NOT NULL,
	PRIMARY KEY (domain, pattern)
);`

// sourceRankSQL mirrors confidence.Rank so the upgrade happens inside the upsert.
const sourceRankSQL = `CASE %s WHEN 'validation' THEN 3 WHEN 'provider' THEN 2 WHEN 'search' THEN 1 ELSE 0 END`

var sqliteUpsert = fmt.Sprintf(`
INSERT INTO domain_patterns (domain, pattern, source, sample_count, last_verified_at)
VALUES (?, ?, ?, ?, ?)
ON CONFLICT (domain, pattern) DO UPDATE SET
	sample_count     = domain_patterns.sample_count + excluded.sample_count,
	source           = CASE WHEN %s > %s THEN excluded.source ELSE domain_patterns.source END,
	last_verified_at = MAX(domain_patterns.last_verified_at, excluded.last_verified_at)
RETURNING source, sample_count, last_verified_at`,
	fmt.Sprintf(sourceRankSQL, "excluded.source"),
	fmt.Sprintf(sourceRankSQL, "domain_patterns.source"))

// sqliteTime is fixed-width UTC so timestamps compare correctly as text.
const sqliteTime = "2006-01-02T15:04:05.000000000Z"

// SQLiteStore is the default durable backend: one local file in WAL mode.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (creating if needed) the database at path.
func NewSQLiteStore(ctx context.Context, path string) (*SQLiteStore, error) {
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, fmt.Errorf("create knowledge dir: %w", err)
		}
	}

	dsn := path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// SQLite has one writer; a single connection serializes upserts.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate sqlite: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// Upsert accumulates obs and stores its recomputed confidence in one transaction.
func (s *SQLiteStore) Upsert(ctx context.Context, obs models.Observation, score models.ScoreFunc) (models.DomainPatternRecord, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return models.DomainPatternRecord{}, fmt.Errorf("begin upsert: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	rec := models.DomainPatternRecord{Domain: obs.Domain, Pattern: obs.Pattern}
	var source, stamp string
	err = tx.QueryRowContext(ctx, sqliteUpsert,
		obs.Domain, string(obs.Pattern), string(obs.Source), obs.Samples, obs.At.UTC().Format(sqliteTime),
	).Scan(&source, &rec.SampleCount, &stamp)
	if err != nil {
		return models.DomainPatternRecord{}, fmt.Errorf("upsert pattern: %w", err)
	}
	rec.Source = confidence.Source(source)
	if rec.LastVerifiedAt, err = time.Parse(sqliteTime, stamp); err != nil {
		return models.DomainPatternRecord{}, fmt.Errorf("%w: bad timestamp %q", models.ErrCacheCorrupted, stamp)
	}

	var total int
	if err := tx.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(sample_count), 0) FROM domain_patterns WHERE domain = ?`, obs.Domain,
	).Scan(&total); err != nil {
		return models.DomainPatternRecord{}, fmt.Errorf("sum domain samples: %w", err)
	}

	rec.Confidence = score(rec, total)
	if _, err := tx.ExecContext(ctx,
		`UPDATE domain_patterns SET confidence = ? WHERE domain = ? AND pattern = ?`,
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
func (s *SQLiteStore) ListByDomain(ctx context.Context, domain string) ([]models.DomainPatternRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT domain, pattern, source, sample_count, confidence, last_verified_at
		 FROM domain_patterns WHERE domain = ?`, domain)
	if err != nil {
		return nil, fmt.Errorf("list patterns: %w", err)
	}
	defer rows.Close()

	var out []models.DomainPatternRecord
	for rows.Next() {
		var (
			rec             models.DomainPatternRecord
			pat, src, stamp string
		)
		if err := rows.Scan(&rec.Domain, &pat, &src, &rec.SampleCount, &rec.Confidence, &stamp); err != nil {
			return nil, fmt.Errorf("%w: %v", models.ErrCacheCorrupted, err)
		}
		rec.Pattern = pattern.Name(pat)
		rec.Source = confidence.Source(src)
		rec.LastVerifiedAt, err = time.Parse(sqliteTime, stamp)
		if err != nil {
			return nil, fmt.Errorf("%w: bad timestamp %q", models.ErrCacheCorrupted, stamp)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list patterns: %w", err)
	}
	return out, nil
}

// DeleteDomain drops every record for domain.
func (s *SQLiteStore) DeleteDomain(ctx context.Context, domain string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM domain_patterns WHERE domain = ?`, domain); err != nil {
		return fmt.Errorf("delete patterns: %w", err)
	}
	return nil
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	if err := s.db.Close(); err != nil && !errors.Is(err, sql.ErrConnDone) {
		return err
	}
	return nil
}

// DB exposes the handle for tests that need to plant rows.
func (s *SQLiteStore) DB() *sql.DB {
	return s.db
}
