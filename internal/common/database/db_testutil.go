package database

import (
	"context"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/G-Research/logingester/internal/common/util"
)

// ErrTestDbUnavailable is returned by WithTestDb when no local postgres instance accepts connections.  Tests use it to
// skip rather than fail on machines without a database.
var ErrTestDbUnavailable = errors.New("test database is unavailable")

const testConnectionString = "host=localhost port=5432 user=postgres password=psw sslmode=disable connect_timeout=2"

// WithTestDb spins up a Postgres database for testing
//
//	migrations: perform the list of migrations before entering the action callback
//	action: callback for client code
func WithTestDb(migrations []Migration, action func(db *pgxpool.Pool) error) error {
	ctx := context.Background()

	// Connect and create a dedicated database for the test
	dbName := "test_" + util.NewULID()
	db, err := pgx.Connect(ctx, testConnectionString)
	if err != nil {
		return errors.Wrap(ErrTestDbUnavailable, err.Error())
	}
	defer db.Close(ctx)

	_, err = db.Exec(ctx, "CREATE DATABASE "+dbName)
	if err != nil {
		return errors.WithStack(err)
	}

	// Connect again: this time to the database we just created.  This is the database we use for tests
	testDbPool, err := pgxpool.Connect(ctx, testConnectionString+" dbname="+dbName)
	if err != nil {
		return errors.WithStack(err)
	}

	defer func() {
		testDbPool.Close()
		// disconnect all db user before cleanup
		_, err = db.Exec(ctx,
			`SELECT pg_terminate_backend(pg_stat_activity.pid)
			 FROM pg_stat_activity WHERE pg_stat_activity.datname = '`+dbName+`';`)
		if err != nil {
			log.WithError(err).Warn("Failed to disconnect users")
		}

		_, err = db.Exec(ctx, "DROP DATABASE "+dbName)
		if err != nil {
			log.WithError(err).Warn("Failed to drop database")
		}
	}()

	err = UpdateDatabase(ctx, testDbPool, migrations)
	if err != nil {
		return errors.WithStack(err)
	}

	return action(testDbPool)
}

// TestConnection returns the connection settings WithTestDb uses, pointed at dbName.
func TestConnection(dbName string) map[string]string {
	return map[string]string{
		"host":            "localhost",
		"port":            "5432",
		"user":            "postgres",
		"password":        "psw",
		"sslmode":         "disable",
		"connect_timeout": "2",
		"dbname":          dbName,
	}
}
