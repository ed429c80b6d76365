package publisher

import (
	"context"

	"github.com/go-redis/redis"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/G-Research/logingester/internal/common/ingest/metrics"
	"github.com/G-Research/logingester/internal/logingester/model"
)

const redisSinkName = "redis"

// RedisPublisher appends every batch to a redis list, which consumers pop from the other end.  The list is trimmed
// to the newest maxLen batches in the same transaction as the push.
type RedisPublisher struct {
	db      redis.UniversalClient
	key     string
	maxLen  int64
	metrics *metrics.Metrics
}

func NewRedisPublisher(db redis.UniversalClient, key string, maxLen int64, m *metrics.Metrics) *RedisPublisher {
	log.Infof("Publishing log event batches to redis list %s", key)
	return &RedisPublisher{
		db:      db,
		key:     key,
		maxLen:  maxLen,
		metrics: m,
	}
}

func (p *RedisPublisher) Store(ctx context.Context, events []*model.IngestedEvent) error {
	if len(events) == 0 {
		return nil
	}
	payload, err := EncodeBatch(events)
	if err != nil {
		p.metrics.RecordSinkError(redisSinkName, metrics.SinkErrorSerialization)
		return err
	}
	if err := ctx.Err(); err != nil {
		p.metrics.RecordSinkError(redisSinkName, metrics.SinkErrorTimeout)
		return errors.WithStack(err)
	}

	_, err = p.db.TxPipelined(func(pipe redis.Pipeliner) error {
		pipe.RPush(p.key, payload)
		if p.maxLen > 0 {
			pipe.LTrim(p.key, -p.maxLen, -1)
		}
		return nil
	})
	if err != nil {
		p.metrics.RecordSinkError(redisSinkName, metrics.SinkErrorConnection)
		return errors.Wrapf(err, "error pushing batch of %d events to redis", len(events))
	}
	return nil
}

func (p *RedisPublisher) Check() error {
	return errors.WithStack(p.db.Ping().Err())
}

func (p *RedisPublisher) Close() error {
	return errors.WithStack(p.db.Close())
}
