package logdb

import (
	"embed"

	"github.com/G-Research/logingester/internal/common/database"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

// Migrations returns the schema of the log_events table as an ordered list of migrations.
func Migrations() ([]database.Migration, error) {
	return database.ReadMigrations(migrationFiles, "migrations")
}
