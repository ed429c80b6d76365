package config

import "time"

type PostgresConfig struct {
	// libpq style key/value pairs, e.g. host, port, user, password, dbname, sslmode
	Connection      map[string]string `validate:"required"`
	MinConns        int32             `validate:"gte=0"`
	MaxConns        int32             `validate:"gte=1,gtefield=MinConns"`
	MaxConnIdleTime time.Duration
	MaxConnLifetime time.Duration
	// Bounds pings issued by health checks
	AcquireTimeout time.Duration `validate:"gt=0"`
	// Bounds the transaction used to store one batch
	WriteTimeout time.Duration `validate:"gt=0"`
}
