package publisher

import (
	"context"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	commonconfig "github.com/G-Research/logingester/internal/common/config"
	"github.com/G-Research/logingester/internal/common/ingest/metrics"
	"github.com/G-Research/logingester/internal/common/natsutil"
	"github.com/G-Research/logingester/internal/logingester/model"
)

const (
	natsSinkName        = "nats"
	defaultFlushTimeout = 5 * time.Second
)

// NatsPublisher publishes every batch as a single message on a NATS subject.  A batch only counts as stored once
// the server has confirmed it received it.
type NatsPublisher struct {
	conn         *natsutil.DurableConnection
	subject      string
	flushTimeout time.Duration
	metrics      *metrics.Metrics
}

func NewNatsPublisher(config commonconfig.NatsConfig, m *metrics.Metrics) (*NatsPublisher, error) {
	clientID := config.ClientID
	if clientID == "" {
		clientID = "logingester"
	}
	conn, err := natsutil.DurableConnect(config.Servers, clientID)
	if err != nil {
		return nil, err
	}
	flushTimeout := config.FlushTimeout
	if flushTimeout <= 0 {
		flushTimeout = defaultFlushTimeout
	}
	log.Infof("Publishing log event batches to NATS subject %s", config.Subject)
	return &NatsPublisher{
		conn:         conn,
		subject:      config.Subject,
		flushTimeout: flushTimeout,
		metrics:      m,
	}, nil
}

func (p *NatsPublisher) Store(ctx context.Context, events []*model.IngestedEvent) error {
	if len(events) == 0 {
		return nil
	}
	payload, err := EncodeBatch(events)
	if err != nil {
		p.metrics.RecordSinkError(natsSinkName, metrics.SinkErrorSerialization)
		return err
	}

	timeout := p.flushTimeout
	if deadline, ok := ctx.Deadline(); ok && time.Until(deadline) < timeout {
		timeout = time.Until(deadline)
	}
	if err := p.conn.Publish(p.subject, payload); err != nil {
		p.metrics.RecordSinkError(natsSinkName, metrics.SinkErrorConnection)
		return errors.WithMessagef(err, "error publishing batch of %d events to NATS", len(events))
	}
	if err := p.conn.Flush(timeout); err != nil {
		p.metrics.RecordSinkError(natsSinkName, classifyPublishError(ctx, err))
		return errors.WithMessagef(err, "NATS did not confirm batch of %d events", len(events))
	}
	return nil
}

func (p *NatsPublisher) Check() error {
	return p.conn.Check()
}

func (p *NatsPublisher) Close() error {
	return p.conn.Close()
}
