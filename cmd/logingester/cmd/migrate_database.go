package cmd

import (
	"context"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	commonconfig "github.com/G-Research/logingester/internal/common/config"
	"github.com/G-Research/logingester/internal/common/database"
	"github.com/G-Research/logingester/internal/logingester/logdb"
)

func migrateDbCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "migrateDatabase",
		Aliases: []string{"migrate"},
		Short:   "migrates the log database to the latest version",
		RunE:    migrateDatabase,
	}
	cmd.Flags().Duration(
		"timeout",
		5*time.Minute,
		"Duration after which the migration will fail if it has not completed")
	return cmd
}

func migrateDatabase(cmd *cobra.Command, _ []string) error {
	timeout, err := cmd.Flags().GetDuration("timeout")
	if err != nil {
		return errors.WithStack(err)
	}
	config, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := config.ValidateForMigration(); err != nil {
		commonconfig.LogValidationErrors(err)
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	start := time.Now()
	log.Info("Beginning log database migration")
	db, err := database.OpenPgxPool(ctx, config.Postgres)
	if err != nil {
		return errors.WithMessage(err, "Failed to connect to database")
	}
	defer db.Close()

	migrations, err := logdb.Migrations()
	if err != nil {
		return err
	}
	if err := database.UpdateDatabase(ctx, db, migrations); err != nil {
		return errors.WithMessage(err, "Failed to migrate log database")
	}
	log.Infof("Log database migrated in %s", time.Since(start))
	return nil
}
