package configuration

import (
	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
)

// Validate checks the service wide settings and the settings of the selected sink only.
func (c LogIngesterConfiguration) Validate() error {
	validate := validator.New()
	if err := validate.StructExcept(c, "Postgres", "Pulsar", "Nats", "Redis"); err != nil {
		return err
	}
	if err := c.Ingest.BufferConfig().Validate(); err != nil {
		return err
	}

	switch c.Sink.Type {
	case SinkTypePostgres:
		return validate.Struct(c.Postgres)
	case SinkTypePulsar:
		return validate.Struct(c.Pulsar)
	case SinkTypeNats:
		return validate.Struct(c.Nats)
	case SinkTypeRedis:
		return validate.Struct(c.Redis)
	default:
		return errors.Errorf("unknown sink type %q", c.Sink.Type)
	}
}

// ValidateForMigration checks only what the migrate command needs.
func (c LogIngesterConfiguration) ValidateForMigration() error {
	return validator.New().Struct(c.Postgres)
}
