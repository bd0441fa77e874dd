package pg

import (
	"fmt"
	"io/fs"

	_ "github.com/lib/pq"
	"github.com/nimasrn/ar-collections/pkg/logger"
	"github.com/pressly/goose/v3"
)

// Migrate applies every pending migration found in dir of fsys. Migrations are
// forward only, so there is no matching Down helper.
func Migrate(cfg Config, fsys fs.FS, dir string) error {
	db, err := newSqlConnection(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	goose.SetBaseFS(fsys)
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("set dialect: %w", err)
	}

	before, err := goose.GetDBVersion(db)
	if err != nil {
		return fmt.Errorf("read db version: %w", err)
	}
	if err = goose.Up(db, dir); err != nil {
		return fmt.Errorf("apply migrations: %w", err)
	}
	after, err := goose.GetDBVersion(db)
	if err != nil {
		return fmt.Errorf("read db version: %w", err)
	}

	logger.Info("migrations applied", "from_version", before, "to_version", after)
	return nil
}

// MigrationStatus logs the applied/pending state of every migration.
func MigrationStatus(cfg Config, fsys fs.FS, dir string) error {
	db, err := newSqlConnection(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	goose.SetBaseFS(fsys)
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("set dialect: %w", err)
	}
	return goose.Status(db, dir)
}
