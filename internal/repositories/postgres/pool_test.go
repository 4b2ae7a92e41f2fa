package postgres

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/biccshop/checkout/internal/repositories"
)

func TestWrapErrorKinds(t *testing.T) {
	cases := []struct {
		name        string
		err         error
		notFound    bool
		conflict    bool
		unavailable bool
	}{
		{name: "no rows", err: pgx.ErrNoRows, notFound: true},
		{name: "wrapped no rows", err: fmt.Errorf("scan: %w", pgx.ErrNoRows), notFound: true},
		{name: "unique violation", err: &pgconn.PgError{Code: "23505"}, conflict: true},
		{name: "check violation", err: &pgconn.PgError{Code: "23514"}, conflict: true},
		{name: "invalid text", err: &pgconn.PgError{Code: "22P02"}, conflict: true},
		{name: "network", err: errors.New("dial tcp: connection refused"), unavailable: true},
		{name: "deadline", err: context.DeadlineExceeded, unavailable: true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := wrapError("op", tc.err)
			var repoErr repositories.RepositoryError
			require.True(t, errors.As(err, &repoErr))
			assert.Equal(t, tc.notFound, repoErr.IsNotFound())
			assert.Equal(t, tc.conflict, repoErr.IsConflict())
			assert.Equal(t, tc.unavailable, repoErr.IsUnavailable())
			assert.ErrorIs(t, err, tc.err)
		})
	}

	assert.NoError(t, wrapError("op", nil))
}

func TestOpenRequiresDSN(t *testing.T) {
	_, err := Open(context.Background(), Config{})
	assert.Error(t, err)

	_, err = Open(context.Background(), Config{DSN: "postgres://%zz"})
	assert.Error(t, err)
}

func TestSchemaIsEmbedded(t *testing.T) {
	assert.Contains(t, schemaSQL, "CREATE TABLE IF NOT EXISTS orders")
	assert.Contains(t, schemaSQL, "CREATE TABLE IF NOT EXISTS order_details")
}
