package store

import (
	"database/sql"
	"fmt"
	"path"

	assets "github.com/qsplatform/buildcore"
	"github.com/pressly/goose/v3"
)

var dialects = map[string]struct {
	goose string
	dir   string
}{
	DriverSQLite:   {goose: "sqlite3", dir: "sqlite"},
	DriverPostgres: {goose: "postgres", dir: "postgres"},
}

// RunMigrations applies the embedded migrations found under dir for driver.
func RunMigrations(db *sql.DB, driver, dir string) error {
	d, ok := dialects[driver]
	if !ok {
		return fmt.Errorf("unsupported database driver %q", driver)
	}
	goose.SetBaseFS(assets.MigrationsFS)
	goose.SetLogger(goose.NopLogger())
	if err := goose.SetDialect(d.goose); err != nil {
		return err
	}
	return goose.Up(db, path.Join(dir, d.dir))
}
