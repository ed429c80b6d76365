package database

import (
	"context"
	"sort"
	"strings"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/pkg/errors"

	"github.com/G-Research/logingester/internal/common/config"
)

func CreateConnectionString(values map[string]string) string {
	// https://www.postgresql.org/docs/10/libpq-connect.html#id-1.7.3.8.3.5
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	replacer := strings.NewReplacer(`\`, `\\`, `'`, `\'`)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+"='"+replacer.Replace(values[k])+"'")
	}
	return strings.Join(parts, " ")
}

func OpenPgxPool(ctx context.Context, config config.PostgresConfig) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(CreateConnectionString(config.Connection))
	if err != nil {
		return nil, errors.WithStack(err)
	}
	if config.MaxConns > 0 {
		poolConfig.MaxConns = config.MaxConns
	}
	poolConfig.MinConns = config.MinConns
	if config.MaxConnIdleTime > 0 {
		poolConfig.MaxConnIdleTime = config.MaxConnIdleTime
	}
	if config.MaxConnLifetime > 0 {
		poolConfig.MaxConnLifetime = config.MaxConnLifetime
	}

	db, err := pgxpool.ConnectConfig(ctx, poolConfig)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	if err := db.Ping(ctx); err != nil {
		db.Close()
		return nil, errors.WithStack(err)
	}
	return db, nil
}
