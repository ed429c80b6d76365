package configuration

import (
	"time"

	commonconfig "github.com/G-Research/logingester/internal/common/config"
	"github.com/G-Research/logingester/internal/common/ingest"
)

type SinkType string

const (
	SinkTypePostgres SinkType = "postgres"
	SinkTypePulsar   SinkType = "pulsar"
	SinkTypeNats     SinkType = "nats"
	SinkTypeRedis    SinkType = "redis"
)

type LogIngesterConfiguration struct {
	// Port the ingest API listens on
	HttpPort uint16 `validate:"required"`
	// Port prometheus metrics are served on
	MetricsPort uint16 `validate:"required"`
	// Bearer token clients must present.  Authentication is disabled when empty.
	IngestToken string
	Logging     LoggingConfig
	Server      ServerConfig
	Ingest      IngestConfig
	Sink        SinkConfig
	// Connection used by the postgres sink, readiness checks and migrations
	Postgres commonconfig.PostgresConfig
	Pulsar   commonconfig.PulsarConfig
	Nats     commonconfig.NatsConfig
	Redis    RedisSinkConfig
}

type LoggingConfig struct {
	Level  string `validate:"omitempty,oneof=trace debug info warn warning error fatal panic"`
	Format string `validate:"omitempty,oneof=text json"`
}

type ServerConfig struct {
	// Largest number of events accepted by the batch endpoint
	MaxBatchEvents int `validate:"gt=0"`
	// When positive, batch requests wait up to this long for room in the buffer instead of failing fast
	BatchEnqueueTimeout time.Duration `validate:"gte=0"`
	// Requests with larger bodies are rejected
	MaxBodyBytes      int64         `validate:"gt=0"`
	ReadHeaderTimeout time.Duration `validate:"gte=0"`
	// Time given to in flight requests when the server shuts down
	ShutdownTimeout time.Duration `validate:"gt=0"`
}

type IngestConfig struct {
	// Number of events that will be batched together before being handed to the sink
	MaxBatchSize int `validate:"gt=0"`
	// Maximum time since the last batch before a batch will be handed to the sink
	FlushInterval time.Duration `validate:"gt=0"`
	// Number of events buffered before new events are rejected as overload
	QueueCapacity int `validate:"gt=0"`
	// Upper bound on the time spent draining the buffer at shutdown
	ShutdownDrainTimeout time.Duration `validate:"gt=0"`
}

func (c IngestConfig) BufferConfig() ingest.BufferConfig {
	return ingest.BufferConfig{
		MaxBatchSize:  c.MaxBatchSize,
		FlushInterval: c.FlushInterval,
		QueueCapacity: c.QueueCapacity,
	}
}

type SinkConfig struct {
	Type SinkType `validate:"required,oneof=postgres pulsar nats redis"`
}

type RedisSinkConfig struct {
	Redis commonconfig.RedisConfig
	// List that batches are pushed onto
	Key string `validate:"required"`
	// The list is trimmed to at most this many batches after every push.  Zero disables trimming.
	MaxLen int64 `validate:"gte=0"`
}
