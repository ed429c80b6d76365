package database

import (
	"context"
	"io/fs"
	"path"
	"sort"
	"strconv"
	"strings"

	"github.com/jackc/pgtype/pgxtype"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// Migration is a single versioned schema change.  Files are named <id>_<description>.sql.
type Migration struct {
	id   int
	name string
	sql  string
}

func NewMigration(id int, name, sql string) Migration {
	return Migration{id: id, name: name, sql: sql}
}

func (m Migration) ID() int {
	return m.id
}

func (m Migration) Name() string {
	return m.name
}

// UpdateDatabase applies, in order, every migration newer than the version recorded in the database_version
// sequence.  The version is advanced after each migration so an interrupted run resumes where it stopped.
func UpdateDatabase(ctx context.Context, db pgxtype.Querier, migrations []Migration) error {
	log.Info("Updating postgres...")
	version, err := readVersion(ctx, db)
	if err != nil {
		return err
	}
	log.Infof("Current version %v", version)

	for _, m := range migrations {
		if m.id > version {
			_, err := db.Exec(ctx, m.sql)
			if err != nil {
				return errors.Wrapf(err, "error applying migration %s", m.name)
			}

			version = m.id
			err = setVersion(ctx, db, version)
			if err != nil {
				return err
			}
			log.Infof("Applied migration %s", m.name)
		}
	}
	log.Info("Database updated.")
	return nil
}

func readVersion(ctx context.Context, db pgxtype.Querier) (int, error) {
	_, err := db.Exec(ctx,
		`CREATE SEQUENCE IF NOT EXISTS database_version START WITH 0 MINVALUE 0;`)
	if err != nil {
		return 0, errors.WithStack(err)
	}

	var version int
	err = db.QueryRow(ctx, `SELECT last_value FROM database_version`).Scan(&version)
	return version, errors.WithStack(err)
}

func setVersion(ctx context.Context, db pgxtype.Querier, version int) error {
	_, err := db.Exec(ctx, `SELECT setval('database_version', $1)`, version)
	return errors.WithStack(err)
}

// ReadMigrations loads every .sql file in dir, ordered by the numeric prefix of the file name.
func ReadMigrations(fsys fs.FS, dir string) ([]Migration, error) {
	files, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	migrations := []Migration{}
	for _, f := range files {
		if f.IsDir() || !strings.HasSuffix(f.Name(), ".sql") {
			continue
		}
		id, err := strconv.Atoi(strings.Split(f.Name(), "_")[0])
		if err != nil {
			return nil, errors.Wrapf(err, "migration %s does not start with a numeric id", f.Name())
		}
		sql, err := fs.ReadFile(fsys, path.Join(dir, f.Name()))
		if err != nil {
			return nil, errors.WithStack(err)
		}
		migrations = append(migrations, Migration{
			id:   id,
			name: f.Name(),
			sql:  string(sql),
		})
	}

	sort.Slice(migrations, func(i, j int) bool { return migrations[i].id < migrations[j].id })
	for i := 1; i < len(migrations); i++ {
		if migrations[i].id == migrations[i-1].id {
			return nil, errors.Errorf("migrations %s and %s share id %d",
				migrations[i-1].name, migrations[i].name, migrations[i].id)
		}
	}
	return migrations, nil
}
