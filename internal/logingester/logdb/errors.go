package logdb

import (
	"context"
	"net"

	"github.com/jackc/pgconn"
	"github.com/jackc/pgerrcode"
	"github.com/pkg/errors"

	"github.com/G-Research/logingester/internal/common/database"
	"github.com/G-Research/logingester/internal/common/ingest/metrics"
)

// classifyError maps an error returned while storing a batch to the class it is reported under.
func classifyError(err error) metrics.SinkError {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch {
		case pgErr.Code == pgerrcode.QueryCanceled:
			return metrics.SinkErrorTimeout
		case pgErr.Code == pgerrcode.SerializationFailure, pgErr.Code == pgerrcode.DeadlockDetected:
			return metrics.SinkErrorSerialization
		case pgErr.Code == pgerrcode.AdminShutdown, pgErr.Code == pgerrcode.CannotConnectNow,
			pgErr.Code == pgerrcode.TooManyConnections:
			return metrics.SinkErrorConnection
		}
		switch errorClass(pgErr.Code) {
		case classIntegrityConstraintViolation, classDataException:
			return metrics.SinkErrorConstraint
		case classTransactionRollback:
			return metrics.SinkErrorSerialization
		case classConnectionException, classOperatorIntervention, classInsufficientResources:
			return metrics.SinkErrorConnection
		default:
			return metrics.SinkErrorOther
		}
	}

	if errors.Is(err, context.DeadlineExceeded) || pgconn.Timeout(err) {
		return metrics.SinkErrorTimeout
	}
	if errors.Is(err, database.ErrNotInitialized) || pgconn.SafeToRetry(err) {
		return metrics.SinkErrorConnection
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return metrics.SinkErrorConnection
	}
	return metrics.SinkErrorOther
}

// SQLSTATE classes, the first two characters of an error code
const (
	classConnectionException          = "08"
	classDataException                = "22"
	classIntegrityConstraintViolation = "23"
	classTransactionRollback          = "40"
	classInsufficientResources        = "53"
	classOperatorIntervention         = "57"
)

func errorClass(code string) string {
	if len(code) < 2 {
		return ""
	}
	return code[:2]
}
