package config

import (
	"time"

	"github.com/go-redis/redis"
)

// RedisConfig describes a single node, sentinel or cluster deployment.  go-redis picks the client type from the
// number of Addrs and whether MasterName is set.
type RedisConfig struct {
	// Either a single address or a seed list of host:port addresses
	Addrs           []string `validate:"required"`
	DB              int      `validate:"gte=0,lte=16"`
	Password        string
	MaxRetries      int
	MinRetryBackoff time.Duration
	MaxRetryBackoff time.Duration
	DialTimeout     time.Duration
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	// Connections per node
	PoolSize        int `validate:"required"`
	MinIdleConns    int
	MaxConnAge      time.Duration
	PoolTimeout     time.Duration
	IdleTimeout     time.Duration
	// Name of the sentinel master; leave empty unless connecting through sentinel
	MasterName      string
}

// NewClient creates a client for the configured deployment.  Connections are established lazily.
func (rc RedisConfig) NewClient() redis.UniversalClient {
	return redis.NewUniversalClient(rc.AsUniversalOptions())
}

func (rc RedisConfig) AsUniversalOptions() *redis.UniversalOptions {
	return &redis.UniversalOptions{
		Addrs:           rc.Addrs,
		DB:              rc.DB,
		Password:        rc.Password,
		MaxRetries:      rc.MaxRetries,
		MinRetryBackoff: rc.MinRetryBackoff,
		MaxRetryBackoff: rc.MaxRetryBackoff,
		DialTimeout:     rc.DialTimeout,
		ReadTimeout:     rc.ReadTimeout,
		WriteTimeout:    rc.WriteTimeout,
		PoolSize:        rc.PoolSize,
		MinIdleConns:    rc.MinIdleConns,
		MaxConnAge:      rc.MaxConnAge,
		PoolTimeout:     rc.PoolTimeout,
		IdleTimeout:     rc.IdleTimeout,
		MasterName:      rc.MasterName,
	}
}
