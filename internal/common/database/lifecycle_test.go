package database

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/G-Research/logingester/internal/common/config"
)

func unreachableConfig() config.PostgresConfig {
	return config.PostgresConfig{
		Connection: map[string]string{
			"host":            "127.0.0.1",
			"port":            "1",
			"user":            "postgres",
			"connect_timeout": "1",
			"sslmode":         "disable",
		},
		MaxConns:       2,
		AcquireTimeout: time.Second,
		WriteTimeout:   time.Second,
	}
}

func TestPoolLifecycle_NotInitialized(t *testing.T) {
	lifecycle := NewPoolLifecycle(unreachableConfig())

	_, err := lifecycle.Pool()
	assert.True(t, errors.Is(err, ErrNotInitialized))

	err = lifecycle.Ping(context.Background())
	assert.True(t, errors.Is(err, ErrNotInitialized))

	err = lifecycle.Check()
	assert.True(t, errors.Is(err, ErrNotInitialized))

	// Disconnecting a pool that was never opened is harmless
	lifecycle.Disconnect()
	lifecycle.Disconnect()
}

func TestPoolLifecycle_ConnectFailureLeavesPoolUninitialized(t *testing.T) {
	lifecycle := NewPoolLifecycle(unreachableConfig())

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.Error(t, lifecycle.Connect(ctx))

	_, err := lifecycle.Pool()
	assert.True(t, errors.Is(err, ErrNotInitialized))
}

func TestPoolLifecycle_ConnectDisconnect(t *testing.T) {
	err := WithTestDb(nil, func(_ *pgxpool.Pool) error {
		return nil
	})
	if errors.Is(err, ErrTestDbUnavailable) {
		t.Skip("postgres is not available")
	}
	require.NoError(t, err)

	cfg := unreachableConfig()
	cfg.Connection = TestConnection("postgres")
	lifecycle := NewPoolLifecycle(cfg)

	ctx := context.Background()
	require.NoError(t, lifecycle.Connect(ctx))
	assert.True(t, errors.Is(lifecycle.Connect(ctx), ErrAlreadyConnected))

	pool, err := lifecycle.Pool()
	require.NoError(t, err)
	assert.NotNil(t, pool)
	assert.NoError(t, lifecycle.Check())

	lifecycle.Disconnect()
	_, err = lifecycle.Pool()
	assert.True(t, errors.Is(err, ErrNotInitialized))
}
