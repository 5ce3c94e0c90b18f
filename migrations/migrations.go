// Package migrations embeds the SQL schema and applies it with golang-migrate.
package migrations

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"sort"
	"strconv"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jmoiron/sqlx"
)

//go:embed *.sql
var files embed.FS

// Migration is one numbered up script.
type Migration struct {
	Version int
	Name    string
	SQL     string
}

// Load returns the embedded up migrations ordered by version.
func Load() ([]Migration, error) {
	names, err := fs.Glob(files, "*.up.sql")
	if err != nil {
		return nil, fmt.Errorf("list migrations: %w", err)
	}

	migrations := make([]Migration, 0, len(names))
	for _, name := range names {
		prefix, _, ok := strings.Cut(name, "_")
		if !ok {
			return nil, fmt.Errorf("migration %s: missing version prefix", name)
		}
		version, err := strconv.Atoi(prefix)
		if err != nil {
			return nil, fmt.Errorf("migration %s: bad version: %w", name, err)
		}
		data, err := files.ReadFile(name)
		if err != nil {
			return nil, fmt.Errorf("read migration %s: %w", name, err)
		}
		migrations = append(migrations, Migration{Version: version, Name: name, SQL: string(data)})
	}

	sort.Slice(migrations, func(i, j int) bool { return migrations[i].Version < migrations[j].Version })

	for i, m := range migrations {
		if m.Version != i+1 {
			return nil, fmt.Errorf("migration %s: expected version %d", m.Name, i+1)
		}
	}
	return migrations, nil
}

// Apply brings the schema up to the newest embedded version and returns how
// many migrations ran. The migrator works on a dedicated connection, so db
// stays open afterwards.
func Apply(ctx context.Context, db *sqlx.DB, logger *slog.Logger) (int, error) {
	if _, err := Load(); err != nil {
		return 0, err
	}

	m, err := newMigrator(ctx, db, logger)
	if err != nil {
		return 0, err
	}
	defer func() {
		if srcErr, dbErr := m.Close(); srcErr != nil || dbErr != nil {
			logger.Warn("failed to close migrator", "source_error", srcErr, "database_error", dbErr)
		}
	}()

	before, err := currentVersion(m)
	if err != nil {
		return 0, err
	}

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			m.GracefulStop <- true
		case <-done:
		}
	}()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return 0, fmt.Errorf("apply migrations: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return 0, fmt.Errorf("apply migrations: %w", err)
	}

	after, err := currentVersion(m)
	if err != nil {
		return 0, err
	}

	applied := after - before
	if applied > 0 {
		logger.Info("applied migrations", "from", before, "to", after)
	}
	return applied, nil
}

func newMigrator(ctx context.Context, db *sqlx.DB, logger *slog.Logger) (*migrate.Migrate, error) {
	src, err := iofs.New(files, ".")
	if err != nil {
		return nil, fmt.Errorf("open embedded migrations: %w", err)
	}

	conn, err := db.Conn(ctx)
	if err != nil {
		_ = src.Close()
		return nil, fmt.Errorf("acquire migration connection: %w", err)
	}

	drv, err := postgres.WithConnection(ctx, conn, &postgres.Config{})
	if err != nil {
		_ = conn.Close()
		_ = src.Close()
		return nil, fmt.Errorf("init migration driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", src, "postgres", drv)
	if err != nil {
		_ = drv.Close()
		_ = src.Close()
		return nil, fmt.Errorf("init migrator: %w", err)
	}
	m.Log = migrateLogger{logger: logger.With("component", "migrations")}
	return m, nil
}

// currentVersion reports the applied schema version, 0 for an empty database.
func currentVersion(m *migrate.Migrate) (int, error) {
	version, dirty, err := m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read schema version: %w", err)
	}
	if dirty {
		return 0, fmt.Errorf("schema version %d is dirty", version)
	}
	return int(version), nil
}

type migrateLogger struct {
	logger *slog.Logger
}

func (l migrateLogger) Printf(format string, v ...any) {
	l.logger.Debug(strings.TrimSpace(fmt.Sprintf(format, v...)))
}

func (l migrateLogger) Verbose() bool {
	return false
}
