package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/helixir/scholar-aggregator/internal/domain"
)

// DBTX is the subset of database.DBTX the Postgres cache needs.
// Both *pgxpool.Pool and pgxmock pools satisfy it.
type DBTX interface {
	Exec(ctx context.Context, sql string, arguments ...interface{}) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
}

// PostgresCache stores entries in the search_cache table. Concurrent writers
// to the same key resolve through an upsert.
type PostgresCache struct {
	db  DBTX
	now Clock
}

var _ Cache = (*PostgresCache)(nil)

// NewPostgresCache creates a Postgres-backed cache. A nil clock uses time.Now.
func NewPostgresCache(db DBTX, now Clock) *PostgresCache {
	if now == nil {
		now = time.Now
	}
	return &PostgresCache{db: db, now: now}
}

// Get returns the unexpired entry for key.
func (c *PostgresCache) Get(ctx context.Context, key string) ([]*domain.Paper, bool, error) {
	query := `
		SELECT value
		FROM search_cache
		WHERE key = $1 AND expires_at > $2`

	var raw []byte
	err := c.db.QueryRow(ctx, query, key, c.now().UTC()).Scan(&raw)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("failed to read cache entry: %w", err)
	}

	var papers []*domain.Paper
	if err := json.Unmarshal(raw, &papers); err != nil {
		return nil, false, fmt.Errorf("failed to decode cache entry: %w", err)
	}
	if papers == nil {
		papers = []*domain.Paper{}
	}
	return papers, true, nil
}

// Set upserts papers under key with expiry now+ttl. A non-positive ttl is a no-op.
func (c *PostgresCache) Set(ctx context.Context, key string, papers []*domain.Paper, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	if papers == nil {
		papers = []*domain.Paper{}
	}

	value, err := json.Marshal(papers)
	if err != nil {
		return fmt.Errorf("failed to encode cache entry: %w", err)
	}

	query := `
		INSERT INTO search_cache (key, value, expires_at, created_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (key) DO UPDATE SET
			value = EXCLUDED.value,
			expires_at = EXCLUDED.expires_at,
			created_at = EXCLUDED.created_at`

	now := c.now().UTC()
	if _, err := c.db.Exec(ctx, query, key, value, now.Add(ttl), now); err != nil {
		return fmt.Errorf("failed to write cache entry: %w", err)
	}
	return nil
}

// PurgeExpired deletes every entry whose expiry is at or before now and
// returns how many rows were removed.
func (c *PostgresCache) PurgeExpired(ctx context.Context) (int64, error) {
	result, err := c.db.Exec(ctx, `DELETE FROM search_cache WHERE expires_at <= $1`, c.now().UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to purge cache: %w", err)
	}
	return result.RowsAffected(), nil
}
