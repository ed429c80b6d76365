package database

import (
	"context"
	"sync"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/G-Research/logingester/internal/common/config"
)

var (
	ErrNotInitialized   = errors.New("database pool is not initialized")
	ErrAlreadyConnected = errors.New("database pool is already connected")
)

// PoolLifecycle owns the process wide connection pool.  It is created once at startup and passed to whatever needs
// the pool; there is no package level pool.
type PoolLifecycle struct {
	config config.PostgresConfig

	mu   sync.RWMutex
	pool *pgxpool.Pool
}

func NewPoolLifecycle(config config.PostgresConfig) *PoolLifecycle {
	return &PoolLifecycle{config: config}
}

// Connect opens the pool.  It fails if the pool is already open or the database cannot be reached.
func (l *PoolLifecycle) Connect(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.pool != nil {
		return errors.WithStack(ErrAlreadyConnected)
	}
	pool, err := OpenPgxPool(ctx, l.config)
	if err != nil {
		return errors.WithMessage(err, "error connecting to postgres")
	}
	l.pool = pool
	log.Infof("Connected to postgres: maxConns=%d minConns=%d", pool.Config().MaxConns, pool.Config().MinConns)
	return nil
}

// Disconnect closes the pool, waiting for acquired connections to be released.  It is a no-op if the pool is not open.
func (l *PoolLifecycle) Disconnect() {
	l.mu.Lock()
	pool := l.pool
	l.pool = nil
	l.mu.Unlock()

	if pool != nil {
		pool.Close()
		log.Info("Disconnected from postgres")
	}
}

func (l *PoolLifecycle) Pool() (*pgxpool.Pool, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.pool == nil {
		return nil, errors.WithStack(ErrNotInitialized)
	}
	return l.pool, nil
}

func (l *PoolLifecycle) Ping(ctx context.Context) error {
	pool, err := l.Pool()
	if err != nil {
		return err
	}
	return errors.WithStack(pool.Ping(ctx))
}

// Check implements health.Checker.
func (l *PoolLifecycle) Check() error {
	ctx := context.Background()
	if l.config.AcquireTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, l.config.AcquireTimeout)
		defer cancel()
	}
	if err := l.Ping(ctx); err != nil {
		return errors.WithMessage(err, "postgres is unavailable")
	}
	return nil
}
