package ingest

import (
	"time"

	"github.com/pkg/errors"
)

// BufferConfig holds the three knobs of an IngestBuffer.
type BufferConfig struct {
	// Number of events that triggers a flush, and the maximum number of events handed to the sink in one call
	MaxBatchSize int
	// Maximum time the worker waits before flushing whatever is queued
	FlushInterval time.Duration
	// Number of events the buffer holds before producers are rejected
	QueueCapacity int
}

func (c BufferConfig) Validate() error {
	if c.MaxBatchSize <= 0 {
		return errors.Wrapf(ErrInvalidConfig, "maxBatchSize must be greater than zero, got %d", c.MaxBatchSize)
	}
	if c.FlushInterval <= 0 {
		return errors.Wrapf(ErrInvalidConfig, "flushInterval must be greater than zero, got %s", c.FlushInterval)
	}
	if c.QueueCapacity <= 0 {
		return errors.Wrapf(ErrInvalidConfig, "queueCapacity must be greater than zero, got %d", c.QueueCapacity)
	}
	return nil
}
