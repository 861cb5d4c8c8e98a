package database

import (
    "database/sql"
    "errors"
    "fmt"

    "github.com/golang-migrate/migrate/v4"
    migratemysql "github.com/golang-migrate/migrate/v4/database/mysql"
    _ "github.com/golang-migrate/migrate/v4/source/file"
)

// Migrate applies all pending migrations from the given directory to the
// open database. An already up-to-date schema is not an error.
func Migrate(db *sql.DB, dir string) error {
    driver, err := migratemysql.WithInstance(db, &migratemysql.Config{})
    if err != nil {
        return fmt.Errorf("migrate driver: %w", err)
    }
    m, err := migrate.NewWithDatabaseInstance("file://"+dir, "mysql", driver)
    if err != nil {
        return fmt.Errorf("migrate init: %w", err)
    }
    if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
        return fmt.Errorf("migrate up: %w", err)
    }
    return nil
}
