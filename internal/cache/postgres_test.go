package cache

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/helixir/scholar-aggregator/internal/domain"
)

func TestPostgresCache_Get(t *testing.T) {
	clock := newClock()

	t.Run("returns unexpired entry", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		raw, err := json.Marshal([]*domain.Paper{{ID: "1", Title: "Graphene"}})
		require.NoError(t, err)

		mock.ExpectQuery(`SELECT value\s+FROM search_cache\s+WHERE key = \$1 AND expires_at > \$2`).
			WithArgs("search:graphene:default:10", clock.Now()).
			WillReturnRows(pgxmock.NewRows([]string{"value"}).AddRow(raw))

		c := NewPostgresCache(mock, clock.Now)
		papers, ok, err := c.Get(context.Background(), "search:graphene:default:10")
		require.NoError(t, err)
		require.True(t, ok)
		require.Len(t, papers, 1)
		assert.Equal(t, "Graphene", papers[0].Title)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("no rows is a miss", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		mock.ExpectQuery(`SELECT value`).
			WithArgs("k", pgxmock.AnyArg()).
			WillReturnError(pgx.ErrNoRows)

		c := NewPostgresCache(mock, clock.Now)
		papers, ok, err := c.Get(context.Background(), "k")
		require.NoError(t, err)
		assert.False(t, ok)
		assert.Nil(t, papers)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("database failure is surfaced", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		mock.ExpectQuery(`SELECT value`).
			WithArgs("k", pgxmock.AnyArg()).
			WillReturnError(errors.New("connection refused"))

		c := NewPostgresCache(mock, clock.Now)
		_, ok, err := c.Get(context.Background(), "k")
		require.Error(t, err)
		assert.False(t, ok)
		assert.Contains(t, err.Error(), "failed to read cache entry")
	})

	t.Run("corrupt value is an error", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		mock.ExpectQuery(`SELECT value`).
			WithArgs("k", pgxmock.AnyArg()).
			WillReturnRows(pgxmock.NewRows([]string{"value"}).AddRow([]byte(`{not json`)))

		c := NewPostgresCache(mock, clock.Now)
		_, ok, err := c.Get(context.Background(), "k")
		require.Error(t, err)
		assert.False(t, ok)
	})
}

func TestPostgresCache_Set(t *testing.T) {
	clock := newClock()

	t.Run("upserts with expiry", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		now := clock.Now()
		mock.ExpectExec(`INSERT INTO search_cache .* ON CONFLICT \(key\) DO UPDATE`).
			WithArgs("k", pgxmock.AnyArg(), now.Add(time.Hour), now).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))

		c := NewPostgresCache(mock, clock.Now)
		err = c.Set(context.Background(), "k", []*domain.Paper{{ID: "1"}}, time.Hour)
		require.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("non-positive ttl skips the write", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		c := NewPostgresCache(mock, clock.Now)
		require.NoError(t, c.Set(context.Background(), "k", nil, 0))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("write failure is wrapped", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		mock.ExpectExec(`INSERT INTO search_cache`).
			WithArgs("k", pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
			WillReturnError(&pgconn.PgError{Code: "53300"})

		c := NewPostgresCache(mock, clock.Now)
		err = c.Set(context.Background(), "k", []*domain.Paper{}, time.Minute)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to write cache entry")
	})
}

func TestPostgresCache_PurgeExpired(t *testing.T) {
	clock := newClock()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectExec(`DELETE FROM search_cache WHERE expires_at <= \$1`).
		WithArgs(clock.Now()).
		WillReturnResult(pgxmock.NewResult("DELETE", 7))

	c := NewPostgresCache(mock, clock.Now)
	n, err := c.PurgeExpired(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(7), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}
