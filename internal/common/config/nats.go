package config

import "time"

type NatsConfig struct {
	// Comma separated list of server URLs
	Servers  string `validate:"required"`
	ClientID string
	Subject  string `validate:"required"`
	// Maximum time to wait for the server to acknowledge a flush of published batches
	FlushTimeout time.Duration
}
