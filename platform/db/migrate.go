package db

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"io/fs"

	"indor_desk/platform/config"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
)

// MigrationStatus describes one migration file and whether it has been applied.
type MigrationStatus struct {
	Version int64
	Source  string
	Applied bool
}

func newProvider(cfg config.DatabaseConfig, migrations fs.FS) (*goose.Provider, *sql.DB, error) {
	sqlDB, err := sql.Open("pgx", cfg.GetDatabaseURL())
	if err != nil {
		return nil, nil, fmt.Errorf("open migration connection: %w", err)
	}

	provider, err := goose.NewProvider(goose.DialectPostgres, sqlDB, migrations)
	if err != nil {
		_ = sqlDB.Close()
		return nil, nil, fmt.Errorf("create migration provider: %w", err)
	}

	return provider, sqlDB, nil
}

// RunMigrations applies all pending migrations from the embedded filesystem.
// It returns the number of migrations applied.
func RunMigrations(ctx context.Context, cfg config.DatabaseConfig, migrations fs.FS) (int, error) {
	provider, sqlDB, err := newProvider(cfg, migrations)
	if err != nil {
		return 0, err
	}
	defer closeQuietly(sqlDB)

	results, err := provider.Up(ctx)
	if err != nil {
		return len(results), fmt.Errorf("apply migrations: %w", err)
	}
	return len(results), nil
}

// MigrationStatuses reports every known migration and whether it is applied.
func MigrationStatuses(ctx context.Context, cfg config.DatabaseConfig, migrations fs.FS) ([]MigrationStatus, error) {
	provider, sqlDB, err := newProvider(cfg, migrations)
	if err != nil {
		return nil, err
	}
	defer closeQuietly(sqlDB)

	statuses, err := provider.Status(ctx)
	if err != nil {
		return nil, fmt.Errorf("migration status: %w", err)
	}

	result := make([]MigrationStatus, 0, len(statuses))
	for _, st := range statuses {
		result = append(result, MigrationStatus{
			Version: st.Source.Version,
			Source:  st.Source.Path,
			Applied: st.State == goose.StateApplied,
		})
	}
	return result, nil
}

func closeQuietly(c io.Closer) {
	_ = c.Close()
}
