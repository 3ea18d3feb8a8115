package cache

import (
	"context"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPostgresTierGet(t *testing.T) {
	t.Parallel()

	t.Run("hit", func(t *testing.T) {
		t.Parallel()
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		mock.ExpectQuery(`SELECT value FROM cache_entries`).
			WithArgs("ws1:leads:record:r1").
			WillReturnRows(pgxmock.NewRows([]string{"value"}).AddRow([]byte("payload")))

		tier := NewPostgresTierWithPool(mock)
		value, ok, err := tier.Get(context.Background(), "ws1:leads:record:r1")
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, []byte("payload"), value)

		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("miss", func(t *testing.T) {
		t.Parallel()
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		mock.ExpectQuery(`SELECT value FROM cache_entries`).
			WithArgs("missing").
			WillReturnRows(pgxmock.NewRows([]string{"value"}))

		tier := NewPostgresTierWithPool(mock)
		_, ok, err := tier.Get(context.Background(), "missing")
		require.NoError(t, err)
		assert.False(t, ok)

		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("backend error surfaces", func(t *testing.T) {
		t.Parallel()
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		mock.ExpectQuery(`SELECT value FROM cache_entries`).
			WithArgs("k").
			WillReturnError(assert.AnError)

		tier := NewPostgresTierWithPool(mock)
		_, _, err = tier.Get(context.Background(), "k")
		assert.Error(t, err)

		require.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestPostgresTierSet(t *testing.T) {
	t.Parallel()

	t.Run("with ttl", func(t *testing.T) {
		t.Parallel()
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		mock.ExpectExec(`INSERT INTO cache_entries`).
			WithArgs("k", []byte("v"), pgxmock.AnyArg()).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))

		tier := NewPostgresTierWithPool(mock)
		require.NoError(t, tier.Set(context.Background(), "k", []byte("v"), time.Hour))
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("without ttl stores a null expiry", func(t *testing.T) {
		t.Parallel()
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		mock.ExpectExec(`INSERT INTO cache_entries`).
			WithArgs("k", []byte("v"), nil).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))

		tier := NewPostgresTierWithPool(mock)
		require.NoError(t, tier.Set(context.Background(), "k", []byte("v"), 0))
		require.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestPostgresTierRemove(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectExec(`DELETE FROM cache_entries WHERE key = \$1`).
		WithArgs("k").
		WillReturnResult(pgxmock.NewResult("DELETE", 0))

	tier := NewPostgresTierWithPool(mock)
	require.NoError(t, tier.Remove(context.Background(), "k"))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresTierKeys(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery(`SELECT key FROM cache_entries`).
		WithArgs("ws1:unified:").
		WillReturnRows(pgxmock.NewRows([]string{"key"}).
			AddRow("ws1:unified:a").
			AddRow("ws1:unified:b"))

	tier := NewPostgresTierWithPool(mock)
	keys, err := tier.Keys(context.Background(), "ws1:unified:")
	require.NoError(t, err)
	assert.Equal(t, []string{"ws1:unified:a", "ws1:unified:b"}, keys)

	require.NoError(t, mock.ExpectationsWereMet())
}
