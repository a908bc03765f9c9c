// Package postgres persists state updates in a Postgres table.
package postgres

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/crawlkit/fetchd/internal/fetch"
)

var validTableName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// Config controls the Postgres connection pool used for state updates.
type Config struct {
	DSN             string
	Table           string
	MaxConns        int32
	MaxConnLifetime time.Duration
}

type execCloser interface {
	Exec(context.Context, string, ...any) (pgconn.CommandTag, error)
	Close()
}

// Store writes one row per result record. It implements fetch.Sink.
type Store struct {
	pool  execCloser
	table string
}

// New creates a Postgres-backed Store using the provided config.
func New(ctx context.Context, cfg Config) (*Store, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("results.postgres.dsn is required")
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return NewWithPool(pool, cfg.Table)
}

// NewWithPool constructs a Store from an existing pool (primarily for testing).
func NewWithPool(pool execCloser, table string) (*Store, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	if table == "" {
		table = "fetch_results"
	}
	if !validTableName.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}
	return &Store{pool: pool, table: table}, nil
}

// Deliver inserts the record's state update.
func (s *Store) Deliver(ctx context.Context, rec fetch.ResultRecord) error {
	query := fmt.Sprintf(
		`INSERT INTO %s
			(request_id, domain_key, url, status, fetched_at, retry_at, elapsed_ms, payload_uri, score, fetched_count)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		s.table,
	)
	var retryAt *time.Time
	if !rec.State.RetryAt.IsZero() {
		retryAt = &rec.State.RetryAt
	}
	_, err := s.pool.Exec(ctx, query,
		rec.State.RequestID,
		rec.State.DomainKey,
		rec.State.URL,
		string(rec.State.Status),
		rec.State.Timestamp,
		retryAt,
		rec.State.Elapsed.Milliseconds(),
		rec.PayloadURI,
		rec.State.Score,
		rec.State.FetchedCount,
	)
	if err != nil {
		return fmt.Errorf("insert result row: %w", err)
	}
	return nil
}

// Close releases the underlying pool resources.
func (s *Store) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}
