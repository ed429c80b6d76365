package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type (
	DBOperation string
	SinkError   string
)

const (
	DBOperationPing            DBOperation = "ping"
	DBOperationInsert          DBOperation = "insert"
	DBOperationCreateTempTable DBOperation = "create_temp_table"
	DBOperationCopy            DBOperation = "copy"
	SinkErrorConnection        SinkError   = "connection"
	SinkErrorConstraint        SinkError   = "constraint"
	SinkErrorTimeout           SinkError   = "timeout"
	SinkErrorSerialization     SinkError   = "serialization"
	SinkErrorOther             SinkError   = "other"
)

const LogIngesterMetricsPrefix = "log_ingester_"

type Metrics struct {
	enqueued      prometheus.Counter
	dropped       prometheus.Counter
	flushed       prometheus.Counter
	flushFailed   prometheus.Counter
	batchSize     prometheus.Histogram
	flushDuration prometheus.Histogram
	dbErrors      *prometheus.CounterVec
	sinkErrors    *prometheus.CounterVec
	registerer    prometheus.Registerer
	prefix        string
}

// NewMetrics registers the ingester metrics with the default prometheus registry.
func NewMetrics(prefix string) *Metrics {
	return NewMetricsWithRegisterer(prefix, prometheus.DefaultRegisterer)
}

func NewMetricsWithRegisterer(prefix string, reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		enqueued: factory.NewCounter(prometheus.CounterOpts{
			Name: prefix + "events_enqueued_total",
			Help: "Number of events accepted into the ingest buffer",
		}),
		dropped: factory.NewCounter(prometheus.CounterOpts{
			Name: prefix + "events_dropped_total",
			Help: "Number of events rejected because the ingest buffer was full or closed",
		}),
		flushed: factory.NewCounter(prometheus.CounterOpts{
			Name: prefix + "events_flushed_total",
			Help: "Number of events successfully written to the sink",
		}),
		flushFailed: factory.NewCounter(prometheus.CounterOpts{
			Name: prefix + "batches_failed_total",
			Help: "Number of batches dropped after the sink returned an error",
		}),
		batchSize: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    prefix + "batch_size",
			Help:    "Number of events per batch handed to the sink",
			Buckets: prometheus.ExponentialBuckets(1, 2, 12),
		}),
		flushDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    prefix + "flush_duration_seconds",
			Help:    "Time taken by the sink to store one batch",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 15),
		}),
		dbErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Name: prefix + "db_errors",
			Help: "Number of database errors grouped by database operation",
		}, []string{"operation"}),
		sinkErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Name: prefix + "sink_errors",
			Help: "Number of sink errors grouped by sink and error class",
		}, []string{"sink", "error"}),
		registerer: reg,
		prefix:     prefix,
	}
}

// RegisterQueueDepth exposes the current buffer depth as a gauge evaluated at scrape time.
func (m *Metrics) RegisterQueueDepth(depth func() float64) {
	promauto.With(m.registerer).NewGaugeFunc(prometheus.GaugeOpts{
		Name: m.prefix + "queue_depth",
		Help: "Number of events currently waiting in the ingest buffer",
	}, depth)
}

func (m *Metrics) RecordEnqueued() {
	m.enqueued.Inc()
}

func (m *Metrics) RecordDropped() {
	m.dropped.Inc()
}

func (m *Metrics) RecordFlush(size int, taken time.Duration) {
	m.flushed.Add(float64(size))
	m.batchSize.Observe(float64(size))
	m.flushDuration.Observe(taken.Seconds())
}

func (m *Metrics) RecordFlushFailure(size int, taken time.Duration) {
	m.flushFailed.Inc()
	m.batchSize.Observe(float64(size))
	m.flushDuration.Observe(taken.Seconds())
}

func (m *Metrics) RecordDBError(operation DBOperation) {
	m.dbErrors.With(map[string]string{"operation": string(operation)}).Inc()
}

func (m *Metrics) RecordSinkError(sink string, err SinkError) {
	m.sinkErrors.With(map[string]string{"sink": sink, "error": string(err)}).Inc()
}
