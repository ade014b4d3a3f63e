package database

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"

	"github.com/rs/zerolog/log"
)

// MigrateUp applies pending migrations from database/migrations. Looks in
// the working directory and its parent so both `go run ./cmd/server` and a
// packaged binary launched from the repo root find them.
func MigrateUp(databaseURL string) error {
	cwd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("getwd: %w", err)
	}

	var dir string
	for _, d := range []string{
		filepath.Join(cwd, "database", "migrations"),
		filepath.Join(cwd, "..", "database", "migrations"),
	} {
		if _, err := os.Stat(d); err == nil {
			dir, _ = filepath.Abs(d)
			break
		}
	}
	if dir == "" {
		return fmt.Errorf("migrations directory not found")
	}

	m, err := migrate.New("file://"+filepath.ToSlash(dir), databaseURL)
	if err != nil {
		return fmt.Errorf("migrate new: %w", err)
	}
	defer m.Close()

	if err := m.Up(); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			log.Debug().Msg("no pending migrations")
			return nil
		}
		return err
	}

	log.Info().Msg("migrations applied")
	return nil
}
