package store

import (
	"database/sql"
	"runtime"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "pgx"
)

// InitDatabase opens a connection pool for driver. For sqlite the read-write
// pool is limited to a single connection and the read-only pool scales with
// the number of CPUs.
func InitDatabase(driver, dsn string, readonly bool) (*sql.DB, error) {
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, err
	}
	if driver != DriverSQLite {
		return db, db.Ping()
	}

	if readonly {
		db.SetMaxOpenConns(max(4, runtime.NumCPU()))
		return db, nil
	}
	if _, err := db.Exec("PRAGMA temp_store=memory"); err != nil {
		db.Close()
		return nil, err
	}
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, err
	}
	db.SetMaxOpenConns(1)
	return db, nil
}
