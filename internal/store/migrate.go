package store

import (
	"embed"
	"errors"
	"fmt"
	"io/fs"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database"
	"github.com/golang-migrate/migrate/v4/database/mysql"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"go.uber.org/zap"
)

//go:embed migrations
var migrationsFS embed.FS

// LatestVersion migrates the schema all the way up.
const LatestVersion = -1

// Migrate brings the schema to targetVersion.
// A negative version means the latest one, 0 rolls every migration back.
func (s *Store) Migrate(targetVersion int) error {
	// golang-migrate closes the database it was handed, so it gets its own connection.
	db, err := openDB(s.backend, s.dsn, true)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	if err := db.Ping(); err != nil {
		return fmt.Errorf("failed to ping database: %w", err)
	}

	var driver database.Driver
	switch s.backend {
	case SQLiteBackend:
		driver, err = sqlite.WithInstance(db, &sqlite.Config{})
	case PostgresBackend:
		driver, err = postgres.WithInstance(db, &postgres.Config{})
	case MySQLBackend:
		driver, err = mysql.WithInstance(db, &mysql.Config{})
	default:
		return fmt.Errorf("unsupported backend: %s", s.backend)
	}
	if err != nil {
		return fmt.Errorf("failed to create %s migrate driver: %w", s.backend, err)
	}

	sub, err := fs.Sub(migrationsFS, "migrations/"+string(s.backend))
	if err != nil {
		return fmt.Errorf("failed to access migrations directory: %w", err)
	}

	source, err := iofs.New(sub, ".")
	if err != nil {
		return fmt.Errorf("failed to create migration source: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", source, "rfp-evaluator", driver)
	if err != nil {
		return fmt.Errorf("failed to create migrate instance: %w", err)
	}

	current, dirty, err := m.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		return fmt.Errorf("failed to get current migration version: %w", err)
	}
	if dirty {
		return fmt.Errorf("database is in a dirty state at version %d, fix it manually or force a version", current)
	}

	switch {
	case targetVersion < 0:
		err = m.Up()
	case targetVersion == 0:
		err = m.Down()
	default:
		err = m.Migrate(uint(targetVersion))
	}

	if errors.Is(err, migrate.ErrNoChange) {
		s.logger.Info("schema is up to date", zap.Uint("version", current))
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to migrate to version %d: %w", targetVersion, err)
	}

	next, _, verr := m.Version()
	if verr != nil && !errors.Is(verr, migrate.ErrNilVersion) {
		return fmt.Errorf("failed to read migrated version: %w", verr)
	}
	s.logger.Info("schema migrated", zap.Uint("from", current), zap.Uint("to", next))

	return nil
}
