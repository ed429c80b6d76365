package logingester

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/G-Research/logingester/internal/common/database"
	"github.com/G-Research/logingester/internal/common/health"
	"github.com/G-Research/logingester/internal/common/ingest"
	"github.com/G-Research/logingester/internal/common/ingest/metrics"
	"github.com/G-Research/logingester/internal/common/logging"
	"github.com/G-Research/logingester/internal/common/serve"
	"github.com/G-Research/logingester/internal/logingester/configuration"
	"github.com/G-Research/logingester/internal/logingester/logdb"
	"github.com/G-Research/logingester/internal/logingester/model"
	"github.com/G-Research/logingester/internal/logingester/publisher"
	"github.com/G-Research/logingester/internal/logingester/server"
)

// Run starts the ingest api and the metrics server and feeds accepted events through the ingest buffer into the
// configured sink.  It blocks until ctx is cancelled or one of the servers fails, then drains the buffer and releases
// every resource.
func Run(ctx context.Context, config configuration.LogIngesterConfiguration) error {
	return run(ctx, config, prometheus.DefaultRegisterer, prometheus.DefaultGatherer)
}

func run(
	ctx context.Context,
	config configuration.LogIngesterConfiguration,
	registerer prometheus.Registerer,
	gatherer prometheus.Gatherer,
) error {
	log.Infof("Log Ingester starting with %s sink", config.Sink.Type)
	m := metrics.NewMetricsWithRegisterer(metrics.LogIngesterMetricsPrefix, registerer)

	startupCompleteCheck := health.NewStartupCompleteChecker()
	readiness := health.NewMultiChecker(startupCompleteCheck)

	var pools *database.PoolLifecycle
	if config.Sink.Type == configuration.SinkTypePostgres {
		pools = database.NewPoolLifecycle(config.Postgres)
		if err := pools.Connect(ctx); err != nil {
			return errors.WithMessage(err, "error connecting to postgres")
		}
		readiness.Add(pools)
	}

	sink, err := newSink(config, pools, m)
	if err != nil {
		return multierror.Append(err, release(nil, pools)...).ErrorOrNil()
	}
	if checker, ok := sink.(health.Checker); ok {
		readiness.Add(checker)
	}

	buffer, err := ingest.NewIngestBuffer[*model.IngestedEvent](config.Ingest.BufferConfig(), sink, m)
	if err != nil {
		return multierror.Append(err, release(sink, pools)...).ErrorOrNil()
	}
	if err := buffer.Start(); err != nil {
		return multierror.Append(err, release(sink, pools)...).ErrorOrNil()
	}
	m.RegisterQueueDepth(func() float64 {
		return float64(buffer.Len())
	})

	api := &http.Server{
		Addr:              fmt.Sprintf(":%d", config.HttpPort),
		Handler:           server.NewServer(config.Server, config.IngestToken, buffer, readiness).Handler(),
		ReadHeaderTimeout: config.Server.ReadHeaderTimeout,
	}
	metricsServer := serve.MetricsServer(config.MetricsPort, gatherer)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return serve.ListenAndServe(gctx, api, config.Server.ShutdownTimeout)
	})
	g.Go(func() error {
		return serve.ListenAndServe(gctx, metricsServer, config.Server.ShutdownTimeout)
	})
	startupCompleteCheck.MarkComplete()
	log.Info("Log Ingester started")

	var result *multierror.Error
	if err := g.Wait(); err != nil {
		result = multierror.Append(result, err)
	}

	// The servers have stopped accepting requests so nothing else can be enqueued
	drainCtx, cancel := context.WithTimeout(context.Background(), config.Ingest.ShutdownDrainTimeout)
	defer cancel()
	if err := buffer.Stop(drainCtx); err != nil {
		result = multierror.Append(result, errors.WithMessage(err, "ingest buffer was not fully drained"))
	}
	result = multierror.Append(result, release(sink, pools)...)

	if err := result.ErrorOrNil(); err != nil {
		logging.WithStacktrace(log.NewEntry(log.StandardLogger()), err).Error("Log Ingester stopped with errors")
		return err
	}
	log.Info("Log Ingester stopped")
	return nil
}

func newSink(
	config configuration.LogIngesterConfiguration,
	pools *database.PoolLifecycle,
	m *metrics.Metrics,
) (ingest.Sink[*model.IngestedEvent], error) {
	switch config.Sink.Type {
	case configuration.SinkTypePostgres:
		return logdb.NewLogDb(pools, m, config.Postgres.WriteTimeout), nil
	case configuration.SinkTypePulsar:
		p, err := publisher.NewPulsarPublisher(config.Pulsar, m)
		if err != nil {
			return nil, err
		}
		return p, nil
	case configuration.SinkTypeNats:
		p, err := publisher.NewNatsPublisher(config.Nats, m)
		if err != nil {
			return nil, err
		}
		return p, nil
	case configuration.SinkTypeRedis:
		return publisher.NewRedisPublisher(config.Redis.Redis.NewClient(), config.Redis.Key, config.Redis.MaxLen, m), nil
	default:
		return nil, errors.Errorf("unknown sink type %q", config.Sink.Type)
	}
}

// release closes the sink, if it holds any resources, and then the database pool.
func release(sink ingest.Sink[*model.IngestedEvent], pools *database.PoolLifecycle) []error {
	var errs []error
	if closer, ok := sink.(io.Closer); ok {
		start := time.Now()
		if err := closer.Close(); err != nil {
			errs = append(errs, errors.WithMessage(err, "error closing sink"))
		} else {
			log.Infof("Closed sink in %s", time.Since(start))
		}
	}
	if pools != nil {
		pools.Disconnect()
	}
	return errs
}
