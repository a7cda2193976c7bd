package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/spots/internal/shared"
)

// Options configures [Open].
type Options struct {
	// Path is the SQLite file, or ":memory:".
	Path string
	// Name identifies the store in logs and errors.
	Name string
	// Version is the schema version the caller expects. The store is migrated up to it.
	Version int
	Logger  *log.Logger
}

// Engine is an open record store. It is safe for concurrent use; write
// transactions are serialized by SQLite.
type Engine struct {
	db      *sql.DB
	name    string
	version int
	path    string
	logger  *log.Logger

	runner  *MigrationRunner
	catalog *Catalog

	readiness shared.Readiness
	closed    atomic.Bool
	closeOnce sync.Once
}

// ConnectionState is a snapshot of an engine's identity and readiness.
type ConnectionState struct {
	Name          string `json:"name"`
	SchemaVersion int    `json:"schemaVersion"`
	IsReady       bool   `json:"isReady"`
}

// Open connects to the store at opts.Path, migrates it to opts.Version and loads the table catalog.
func Open(ctx context.Context, opts Options) (*Engine, error) {
	if opts.Path == "" {
		return nil, schemaError("store path is required", nil, nil)
	}
	if opts.Name == "" {
		opts.Name = "spots-db"
	}
	logger := opts.Logger
	if logger == nil {
		logger = shared.DiscardLogger()
	}
	logger = logger.With("store", opts.Name)

	db, err := shared.NewDatabase(opts.Path)
	if err != nil {
		return nil, newError(KindNotReady, "failed to open store", map[string]any{"path": opts.Path}, err)
	}
	shared.ConfigureDatabase(db, 1, 1)

	runner, err := NewMigrationRunner(db, logger)
	if err != nil {
		db.Close()
		return nil, err
	}

	if err := runner.Run(ctx, opts.Version); err != nil {
		db.Close()
		logger.Error("migration failed", "version", opts.Version, "error", err)
		return nil, err
	}

	catalog, err := loadCatalog(ctx, db)
	if err != nil {
		db.Close()
		return nil, err
	}

	e := &Engine{
		db:      db,
		name:    opts.Name,
		version: opts.Version,
		path:    opts.Path,
		logger:  logger,
		runner:  runner,
		catalog: catalog,
	}
	e.readiness.MarkOpen(true)
	logger.Debug("store open", "path", opts.Path, "version", opts.Version, "tables", catalog.Tables())
	return e, nil
}

// Name returns the store's name.
func (e *Engine) Name() string { return e.name }

// SchemaVersion returns the schema version the store was opened at.
func (e *Engine) SchemaVersion() int { return e.version }

// Catalog returns the declared tables.
func (e *Engine) Catalog() *Catalog { return e.catalog }

// Migrations returns the runner that migrated this store.
func (e *Engine) Migrations() *MigrationRunner { return e.runner }

// IsReady reports whether the store is open, migrated and idle.
// It is advisory: operations issued while not ready are queued by SQLite rather than rejected.
func (e *Engine) IsReady() bool {
	return !e.closed.Load() && e.runner.State() == Ready && e.readiness.Ready()
}

// State returns a snapshot of the connection.
func (e *Engine) State() ConnectionState {
	return ConnectionState{Name: e.name, SchemaVersion: e.version, IsReady: e.IsReady()}
}

// Size returns the size in bytes of the backing file, or 0 for in-memory stores.
func (e *Engine) Size() int64 {
	if e.path == ":memory:" {
		return 0
	}
	info, err := os.Stat(e.path)
	if err != nil {
		return 0
	}
	return info.Size()
}

// Close releases the connection. Later operations fail with NotReady.
func (e *Engine) Close() error {
	if e.closed.Load() {
		return notReady(e.name)
	}
	var err error
	e.closeOnce.Do(func() {
		e.closed.Store(true)
		e.readiness.MarkOpen(false)
		err = e.db.Close()
		e.logger.Debug("store closed")
	})
	if err != nil {
		return newError(KindNotReady, "failed to close store", nil, err)
	}
	return nil
}

// View runs fn in a read-only transaction spanning tables.
func (e *Engine) View(ctx context.Context, tables []string, fn func(*Tx) error) error {
	return e.run(ctx, tables, false, fn)
}

// Update runs fn in a read-write transaction spanning tables. The transaction
// commits when fn returns nil and rolls back otherwise; fn's error is returned unchanged.
func (e *Engine) Update(ctx context.Context, tables []string, fn func(*Tx) error) error {
	return e.run(ctx, tables, true, fn)
}

func (e *Engine) run(ctx context.Context, tables []string, writable bool, fn func(*Tx) error) error {
	if e.closed.Load() {
		return notReady(e.name)
	}

	scope, err := e.scope(tables)
	if err != nil {
		return err
	}

	done := e.readiness.Begin()
	defer done()

	sqlTx, err := e.db.BeginTx(ctx, nil)
	if err != nil {
		if e.closed.Load() {
			return notReady(e.name)
		}
		return classify(err, "begin", map[string]any{"tables": scope})
	}

	tx := &Tx{ctx: ctx, tx: sqlTx, engine: e, scope: scope, writable: writable}
	if err := fn(tx); err != nil {
		if rbErr := sqlTx.Rollback(); rbErr != nil {
			e.logger.Debug("rollback failed", "tables", scope, "error", rbErr)
		}
		return err
	}

	if !writable {
		if err := sqlTx.Rollback(); err != nil {
			return classify(err, "end", map[string]any{"tables": scope})
		}
		return nil
	}

	if err := sqlTx.Commit(); err != nil {
		return classify(err, "commit", map[string]any{"tables": scope})
	}
	return nil
}

func (e *Engine) scope(tables []string) ([]string, error) {
	if len(tables) == 0 {
		return nil, schemaError("a transaction needs at least one table", nil, nil)
	}
	scope := make([]string, 0, len(tables))
	for _, name := range tables {
		if _, ok := e.catalog.Table(name); !ok {
			return nil, schemaError(fmt.Sprintf("unknown table %q", name), map[string]any{"table": name}, nil)
		}
		if !slices.Contains(scope, name) {
			scope = append(scope, name)
		}
	}
	return scope, nil
}
