package logdb

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgtype"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"k8s.io/utils/clock"

	"github.com/G-Research/logingester/internal/common/ingest"
	"github.com/G-Research/logingester/internal/common/ingest/metrics"
	"github.com/G-Research/logingester/internal/common/util"
	"github.com/G-Research/logingester/internal/logingester/model"
)

const sinkName = "postgres"

var columns = []string{
	"ingest_id", "received_at", "occurred_at",
	"tenant_id", "source", "environment", "level", "type", "message",
	"trace_id", "span_id", "correlation_id", "request_id", "user_id",
	"path", "method", "status_code", "duration_ms",
	"exception", "properties",
}

// PoolProvider hands out the current connection pool, or an error if there is none.
type PoolProvider interface {
	Pool() (*pgxpool.Pool, error)
}

// LogDb stores batches of events in the log_events table.
type LogDb struct {
	pools        PoolProvider
	metrics      *metrics.Metrics
	writeTimeout time.Duration
	clock        clock.Clock
}

func NewLogDb(pools PoolProvider, m *metrics.Metrics, writeTimeout time.Duration) ingest.Sink[*model.IngestedEvent] {
	return &LogDb{
		pools:        pools,
		metrics:      m,
		writeTimeout: writeTimeout,
		clock:        clock.RealClock{},
	}
}

// Store writes the whole batch in a single transaction.  Rows are staged in a temporary table with the copy protocol
// and then moved into log_events, skipping any event whose ingest id is already present, so a batch that is stored
// twice does not produce duplicate rows.  Events without an occurredAt are stamped with the time of the write.
func (l *LogDb) Store(ctx context.Context, events []*model.IngestedEvent) error {
	if len(events) == 0 {
		return nil
	}

	db, err := l.pools.Pool()
	if err != nil {
		l.metrics.RecordSinkError(sinkName, metrics.SinkErrorConnection)
		return err
	}

	if l.writeTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, l.writeTimeout)
		defer cancel()
	}

	rows, err := toRows(events, l.clock.Now().UTC())
	if err != nil {
		l.metrics.RecordSinkError(sinkName, metrics.SinkErrorSerialization)
		return err
	}

	tmpTable := uniqueTableName("log_events")

	createTmp := func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, fmt.Sprintf(`
			CREATE TEMPORARY TABLE %s
			(
			  ingest_id      varchar(26),
			  received_at    timestamptz,
			  occurred_at    timestamptz,
			  tenant_id      varchar(64),
			  source         varchar(64),
			  environment    varchar(16),
			  level          varchar(16),
			  type           varchar(16),
			  message        varchar(2048),
			  trace_id       varchar(128),
			  span_id        varchar(128),
			  correlation_id varchar(128),
			  request_id     varchar(128),
			  user_id        varchar(128),
			  path           varchar(512),
			  method         varchar(16),
			  status_code    integer,
			  duration_ms    bigint,
			  exception      jsonb,
			  properties     jsonb
			) ON COMMIT DROP;`, tmpTable))
		if err != nil {
			l.metrics.RecordDBError(metrics.DBOperationCreateTempTable)
		}
		return err
	}

	insertTmp := func(tx pgx.Tx) error {
		_, err := tx.CopyFrom(ctx, pgx.Identifier{tmpTable}, columns, pgx.CopyFromRows(rows))
		if err != nil {
			l.metrics.RecordDBError(metrics.DBOperationCopy)
		}
		return err
	}

	copyToDest := func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, fmt.Sprintf(`
			INSERT INTO log_events (%[1]s)
			SELECT %[1]s FROM %[2]s
			ON CONFLICT (ingest_id) DO NOTHING`, columnList(), tmpTable))
		if err != nil {
			l.metrics.RecordDBError(metrics.DBOperationInsert)
		}
		return err
	}

	start := l.clock.Now()
	if err := batchInsert(ctx, db, createTmp, insertTmp, copyToDest); err != nil {
		class := classifyError(err)
		l.metrics.RecordSinkError(sinkName, class)
		return errors.Wrapf(err, "error inserting %d log events (%s)", len(events), class)
	}
	log.Debugf("Inserted %d log events in %s", len(events), l.clock.Since(start))
	return nil
}

func batchInsert(ctx context.Context, db *pgxpool.Pool, createTmp func(pgx.Tx) error,
	insertTmp func(pgx.Tx) error, copyToDest func(pgx.Tx) error,
) error {
	return db.BeginTxFunc(ctx, pgx.TxOptions{
		IsoLevel:       pgx.ReadCommitted,
		AccessMode:     pgx.ReadWrite,
		DeferrableMode: pgx.Deferrable,
	}, func(tx pgx.Tx) error {
		// Create a temporary table to hold the staging data
		err := createTmp(tx)
		if err != nil {
			return err
		}

		err = insertTmp(tx)
		if err != nil {
			return err
		}

		return copyToDest(tx)
	})
}

func toRows(events []*model.IngestedEvent, now time.Time) ([][]interface{}, error) {
	rows := make([][]interface{}, len(events))
	for i, e := range events {
		occurredAt := now
		if e.OccurredAt != nil {
			occurredAt = *e.OccurredAt
		}
		exception, err := toJsonb(e.Exception)
		if err != nil {
			return nil, errors.Wrapf(err, "event %s has an unserialisable exception", e.IngestId)
		}
		properties, err := toJsonb(e.Properties)
		if err != nil {
			return nil, errors.Wrapf(err, "event %s has unserialisable properties", e.IngestId)
		}
		rows[i] = []interface{}{
			e.IngestId, e.ReceivedAt, occurredAt,
			e.TenantId, e.Source, string(e.Environment), string(e.Level), string(e.Type), e.Message,
			e.TraceId, e.SpanId, e.CorrelationId, e.RequestId, e.UserId,
			e.Path, e.Method, e.StatusCode, e.DurationMs,
			exception, properties,
		}
	}
	return rows, nil
}

// Absent maps are stored as SQL NULL rather than the JSON null literal
func toJsonb(value map[string]interface{}) (pgtype.JSONB, error) {
	if value == nil {
		return pgtype.JSONB{Status: pgtype.Null}, nil
	}
	var result pgtype.JSONB
	err := result.Set(value)
	return result, errors.WithStack(err)
}

func uniqueTableName(table string) string {
	return fmt.Sprintf("%s_tmp_%s", table, util.NewULID())
}

func columnList() string {
	return strings.Join(columns, ", ")
}
