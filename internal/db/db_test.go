package db

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConnectRequiresDSN(t *testing.T) {
	_, err := Connect(context.Background(), "", DefaultPoolConfig(), nil)
	assert.EqualError(t, err, "DATABASE_URL not set")
}

func TestConnectRejectsMalformedDSN(t *testing.T) {
	_, err := Connect(context.Background(), "postgres://%zz", DefaultPoolConfig(), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse database url")
}

func TestConnectPostgres(t *testing.T) {
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		t.Skip("DATABASE_URL not set, skipping integration test")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := Connect(ctx, dsn, DefaultPoolConfig(), nil)
	require.NoError(t, err)
	defer pool.Close()

	// A second pass must be a no-op.
	require.NoError(t, InitSchema(ctx, pool))
}
