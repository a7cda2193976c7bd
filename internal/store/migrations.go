package store

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/spots/internal/shared"
)

//go:embed sql/*.sql
var migrationFiles embed.FS

// MigrationState tracks where a [MigrationRunner] is in bringing the schema up to date.
type MigrationState int

const (
	Uninitialized MigrationState = iota
	Migrating
	Ready
	Failed
)

func (s MigrationState) String() string {
	switch s {
	case Uninitialized:
		return "uninitialized"
	case Migrating:
		return "migrating"
	case Ready:
		return "ready"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// Migration represents a database migration with up and down SQL.
type Migration struct {
	Version int
	Name    string
	Up      string
	Down    string
}

// AppliedMigration is a row of the schema_migrations table.
type AppliedMigration struct {
	Version   int
	Name      string
	AppliedAt time.Time
}

// MigrationRunner applies the embedded migrations to a database, one transaction per step.
type MigrationRunner struct {
	db         *sql.DB
	migrations []Migration
	logger     *log.Logger

	mu    sync.Mutex
	state MigrationState
}

// NewMigrationRunner loads the embedded migrations for db.
func NewMigrationRunner(db *sql.DB, logger *log.Logger) (*MigrationRunner, error) {
	migrations, err := loadMigrations()
	if err != nil {
		return nil, schemaError("failed to load migrations", nil, err)
	}
	if logger == nil {
		logger = shared.DiscardLogger()
	}
	return &MigrationRunner{db: db, migrations: migrations, logger: logger}, nil
}

// loadMigrations reads all migration files from the embedded filesystem and returns them sorted by version.
func loadMigrations() ([]Migration, error) {
	entries, err := migrationFiles.ReadDir("sql")
	if err != nil {
		return nil, fmt.Errorf("failed to read migration directory: %w", err)
	}

	migrationMap := make(map[int]*Migration)

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}

		name := entry.Name()
		if !strings.HasSuffix(name, ".sql") {
			continue
		}

		// "0001_create_tables_up.sql" -> version 1, name "create_tables"
		parts := strings.SplitN(name, "_", 2)
		if len(parts) < 2 {
			continue
		}

		version, err := strconv.Atoi(parts[0])
		if err != nil {
			continue
		}

		content, err := migrationFiles.ReadFile(filepath.Join("sql", name))
		if err != nil {
			return nil, fmt.Errorf("failed to read migration file %s: %w", name, err)
		}

		if migrationMap[version] == nil {
			migrationMap[version] = &Migration{Version: version}
		}

		switch {
		case strings.HasSuffix(name, "_up.sql"):
			migrationMap[version].Up = string(content)
			migrationMap[version].Name = strings.TrimSuffix(parts[1], "_up.sql")
		case strings.HasSuffix(name, "_down.sql"):
			migrationMap[version].Down = string(content)
		}
	}

	var migrations []Migration
	for _, migration := range migrationMap {
		if migration.Up == "" || migration.Down == "" {
			return nil, fmt.Errorf("incomplete migration for version %d", migration.Version)
		}
		migrations = append(migrations, *migration)
	}

	sort.Slice(migrations, func(i, j int) bool {
		return migrations[i].Version < migrations[j].Version
	})

	for i, m := range migrations {
		if m.Version != i+1 {
			return nil, fmt.Errorf("migration versions must start at 1 without gaps, found %d at position %d", m.Version, i+1)
		}
	}

	return migrations, nil
}

// State reports the runner's current state.
func (m *MigrationRunner) State() MigrationState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

func (m *MigrationRunner) setState(s MigrationState) {
	m.mu.Lock()
	m.state = s
	m.mu.Unlock()
}

// Latest returns the newest version the embedded migrations can produce.
func (m *MigrationRunner) Latest() int {
	if len(m.migrations) == 0 {
		return 0
	}
	return m.migrations[len(m.migrations)-1].Version
}

// LatestVersion returns the newest version of the embedded migrations without opening a store.
func LatestVersion() (int, error) {
	migrations, err := loadMigrations()
	if err != nil {
		return 0, schemaError("failed to load migrations", nil, err)
	}
	if len(migrations) == 0 {
		return 0, nil
	}
	return migrations[len(migrations)-1].Version, nil
}

// Migrations returns the loaded migrations in version order.
func (m *MigrationRunner) Migrations() []Migration {
	return append([]Migration(nil), m.migrations...)
}

// Run applies every pending migration up to and including target.
//
// A target older than the stored version, or newer than [MigrationRunner.Latest], is a schema error.
func (m *MigrationRunner) Run(ctx context.Context, target int) error {
	m.setState(Migrating)

	if err := m.run(ctx, target); err != nil {
		m.setState(Failed)
		return err
	}

	m.setState(Ready)
	return nil
}

func (m *MigrationRunner) run(ctx context.Context, target int) error {
	if target < 1 || target > m.Latest() {
		return schemaError(fmt.Sprintf("requested schema version %d is not available (latest is %d)", target, m.Latest()),
			map[string]any{"requested": target, "latest": m.Latest()}, nil)
	}

	if err := createBookkeepingTables(ctx, m.db); err != nil {
		return schemaError("failed to create bookkeeping tables", nil, err)
	}

	current, err := m.CurrentVersion(ctx)
	if err != nil {
		return err
	}
	if current > target {
		return schemaError(fmt.Sprintf("stored schema version %d is newer than requested version %d", current, target),
			map[string]any{"stored": current, "requested": target}, nil)
	}

	for _, migration := range m.migrations {
		if migration.Version <= current || migration.Version > target {
			continue
		}
		m.logger.Info("applying migration", "version", migration.Version, "name", migration.Name)
		if err := applyMigration(ctx, m.db, migration); err != nil {
			return schemaError(fmt.Sprintf("failed to apply migration %d", migration.Version),
				map[string]any{"version": migration.Version}, err)
		}
	}
	return nil
}

// Reapply executes the up SQL of an already known migration without consulting schema_migrations.
// Migrations are written so that a second application fails instead of silently duplicating state.
func (m *MigrationRunner) Reapply(ctx context.Context, version int) error {
	for _, migration := range m.migrations {
		if migration.Version == version {
			if err := applyMigration(ctx, m.db, migration); err != nil {
				return schemaError(fmt.Sprintf("failed to apply migration %d", version),
					map[string]any{"version": version}, err)
			}
			return nil
		}
	}
	return schemaError(fmt.Sprintf("migration version %d not found", version), nil, nil)
}

// Rollback reverts the most recent migration and returns its version.
func (m *MigrationRunner) Rollback(ctx context.Context) (int, error) {
	if err := createBookkeepingTables(ctx, m.db); err != nil {
		return 0, schemaError("failed to create bookkeeping tables", nil, err)
	}

	currentVersion, err := m.CurrentVersion(ctx)
	if err != nil {
		return 0, err
	}
	if currentVersion == 0 {
		return 0, schemaError("no migrations to rollback", nil, nil)
	}

	for _, migration := range m.migrations {
		if migration.Version == currentVersion {
			if err := rollbackMigration(ctx, m.db, migration); err != nil {
				return 0, schemaError(fmt.Sprintf("failed to rollback migration %d", migration.Version), nil, err)
			}
			m.setState(Uninitialized)
			return currentVersion, nil
		}
	}

	return 0, schemaError(fmt.Sprintf("migration version %d not found", currentVersion), nil, nil)
}

// CurrentVersion returns the highest applied migration version, or 0.
func (m *MigrationRunner) CurrentVersion(ctx context.Context) (int, error) {
	var version int
	err := m.db.QueryRowContext(ctx, "SELECT COALESCE(MAX(version), 0) FROM schema_migrations").Scan(&version)
	if err != nil {
		return 0, classify(err, "current_version", nil)
	}
	return version, nil
}

// Applied lists the applied migrations in version order.
func (m *MigrationRunner) Applied(ctx context.Context) ([]AppliedMigration, error) {
	if err := createBookkeepingTables(ctx, m.db); err != nil {
		return nil, schemaError("failed to create bookkeeping tables", nil, err)
	}

	rows, err := m.db.QueryContext(ctx, "SELECT version, name, applied_at FROM schema_migrations ORDER BY version")
	if err != nil {
		return nil, classify(err, "applied", nil)
	}
	defer rows.Close()

	var applied []AppliedMigration
	for rows.Next() {
		var a AppliedMigration
		if err := rows.Scan(&a.Version, &a.Name, &a.AppliedAt); err != nil {
			return nil, classify(err, "applied", nil)
		}
		applied = append(applied, a)
	}
	return applied, classify(rows.Err(), "applied", nil)
}

// createBookkeepingTables creates the tables the store keeps about itself.
// Record tables are only ever created by migrations.
func createBookkeepingTables(ctx context.Context, db *sql.DB) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			name TEXT NOT NULL DEFAULT '',
			applied_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS store_tables (
			name TEXT PRIMARY KEY,
			key_path TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS store_indexes (
			name TEXT PRIMARY KEY,
			table_name TEXT NOT NULL REFERENCES store_tables(name) ON DELETE CASCADE,
			field TEXT NOT NULL,
			is_unique INTEGER NOT NULL DEFAULT 0
		)`,
		`CREATE TABLE IF NOT EXISTS store_sequences (
			name TEXT PRIMARY KEY,
			value INTEGER NOT NULL DEFAULT 0
		)`,
	}
	for _, stmt := range statements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

// applyMigration executes a migration's up SQL and records it.
func applyMigration(ctx context.Context, db *sql.DB, migration Migration) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := execStatements(ctx, tx, migration.Up); err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx, "INSERT INTO schema_migrations (version, name) VALUES (?, ?)",
		migration.Version, migration.Name); err != nil {
		return err
	}

	return tx.Commit()
}

// rollbackMigration executes a migration's down SQL and removes the record.
func rollbackMigration(ctx context.Context, db *sql.DB, migration Migration) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := execStatements(ctx, tx, migration.Down); err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx, "DELETE FROM schema_migrations WHERE version = ?", migration.Version); err != nil {
		return err
	}

	return tx.Commit()
}

func execStatements(ctx context.Context, tx *sql.Tx, script string) error {
	for _, stmt := range strings.Split(script, ";") {
		stmt = strings.TrimSpace(removeComments(stmt))
		if stmt == "" {
			continue
		}
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to execute statement: %w\nStatement: %s", err, stmt)
		}
	}
	return nil
}

// removeComments removes SQL comments from a statement.
func removeComments(sql string) string {
	lines := strings.Split(sql, "\n")
	var result []string
	for _, line := range lines {
		if idx := strings.Index(line, "--"); idx >= 0 {
			line = line[:idx]
		}
		line = strings.TrimSpace(line)
		if line != "" {
			result = append(result, line)
		}
	}
	return strings.Join(result, "\n")
}
