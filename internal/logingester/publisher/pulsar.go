package publisher

import (
	"context"
	"strconv"
	"time"

	"github.com/apache/pulsar-client-go/pulsar"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	commonconfig "github.com/G-Research/logingester/internal/common/config"
	"github.com/G-Research/logingester/internal/common/ingest/metrics"
	"github.com/G-Research/logingester/internal/common/pulsarutils"
	"github.com/G-Research/logingester/internal/logingester/model"
)

const pulsarSinkName = "pulsar"

type pulsarProducer interface {
	Send(ctx context.Context, msg *pulsar.ProducerMessage) (pulsar.MessageID, error)
	Close()
}

// PulsarPublisher publishes every batch as a single message on a pulsar topic.
type PulsarPublisher struct {
	client      pulsar.Client
	producer    pulsarProducer
	sendTimeout time.Duration
	metrics     *metrics.Metrics
}

func NewPulsarPublisher(config commonconfig.PulsarConfig, m *metrics.Metrics) (*PulsarPublisher, error) {
	client, err := pulsarutils.NewPulsarClient(&config)
	if err != nil {
		return nil, err
	}
	producer, err := client.CreateProducer(pulsar.ProducerOptions{
		Topic:            config.Topic,
		CompressionType:  config.CompressionType,
		CompressionLevel: config.CompressionLevel,
		SendTimeout:      config.SendTimeout,
		// Batches are already batched; pulsar level batching would only add latency
		DisableBatching: true,
	})
	if err != nil {
		client.Close()
		return nil, errors.Wrapf(err, "error creating pulsar producer for topic %s", config.Topic)
	}
	log.Infof("Publishing log event batches to pulsar topic %s", config.Topic)
	return &PulsarPublisher{
		client:      client,
		producer:    producer,
		sendTimeout: config.SendTimeout,
		metrics:     m,
	}, nil
}

func (p *PulsarPublisher) Store(ctx context.Context, events []*model.IngestedEvent) error {
	if len(events) == 0 {
		return nil
	}
	payload, err := EncodeBatch(events)
	if err != nil {
		p.metrics.RecordSinkError(pulsarSinkName, metrics.SinkErrorSerialization)
		return err
	}

	if p.sendTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.sendTimeout)
		defer cancel()
	}
	_, err = p.producer.Send(ctx, &pulsar.ProducerMessage{
		Payload: payload,
		Key:     events[0].TenantId,
		Properties: map[string]string{
			KindProperty:  MessageKindBatch,
			CountProperty: strconv.Itoa(len(events)),
		},
	})
	if err != nil {
		p.metrics.RecordSinkError(pulsarSinkName, classifyPublishError(ctx, err))
		return errors.Wrapf(err, "error publishing batch of %d events to pulsar", len(events))
	}
	return nil
}

func (p *PulsarPublisher) Close() error {
	p.producer.Close()
	if p.client != nil {
		p.client.Close()
	}
	return nil
}

func classifyPublishError(ctx context.Context, err error) metrics.SinkError {
	if ctx.Err() != nil || errors.Is(err, context.DeadlineExceeded) {
		return metrics.SinkErrorTimeout
	}
	return metrics.SinkErrorConnection
}
