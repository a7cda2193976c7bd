package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/spots/internal/auth"
	"github.com/desertthunder/spots/internal/library"
	"github.com/desertthunder/spots/internal/services"
	"github.com/desertthunder/spots/internal/shared"
	"github.com/desertthunder/spots/internal/store"
	"github.com/desertthunder/spots/internal/tasks"
	"github.com/urfave/cli/v3"
)

// Runner holds all dependencies for CLI commands and provides methods for each command action.
//
// The store and the services over it are opened on first use and released by [Runner.Close].
type Runner struct {
	config      *shared.Config
	configFixed bool
	logger      *log.Logger
	output      io.Writer
	styles      *Palette

	engine  *store.Engine
	bridge  *services.LocalBridge
	auth    *auth.Service
	library *library.Service
	tasks   *tasks.LibraryEngine
}

// RunnerOpts contains configuration options for creating a Runner.
type RunnerOpts struct {
	Config *shared.Config // When set, the --config flag is ignored
	Logger *log.Logger
	Output io.Writer
}

// NewRunner creates a new Runner with the provided configuration
func NewRunner(opts RunnerOpts) *Runner {
	r := &Runner{
		config:      opts.Config,
		configFixed: opts.Config != nil,
		logger:      opts.Logger,
		output:      opts.Output,
		styles:      styles,
	}
	if r.config == nil {
		r.config = shared.DefaultConfig()
	}
	if r.logger == nil {
		r.logger = shared.NewLogger(nil)
	}
	if r.output == nil {
		r.output = os.Stdout
	}
	return r
}

func (r *Runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, fn := range [](func(*Runner) *cli.Command){
		setupCommand, migrateCommand, userCommand, authCommand,
		playlistCommand, trackCommand, importCommand, exportCommand, serveCommand,
	} {
		commands = append(commands, fn(r))
	}

	return commands
}

// Before loads the configuration named by --config, when present, and applies its log level.
func (r *Runner) Before(ctx context.Context, cmd *cli.Command) (context.Context, error) {
	if !r.configFixed {
		path := cmd.String("config")
		if _, err := os.Stat(path); err == nil {
			config, err := shared.LoadConfig(path)
			if err != nil {
				return ctx, err
			}
			r.config = config
		} else {
			r.logger.Debug("config file not found, using defaults", "path", path)
		}
	}

	level, err := shared.ParseLevel(r.config.Log.Level)
	if err != nil {
		return ctx, err
	}
	if cmd.Bool("verbose") {
		level = log.DebugLevel
	}
	shared.SetLogLevel(r.logger, level)
	return ctx, nil
}

// openStore opens the configured store, migrated to version.
func (r *Runner) openStore(ctx context.Context, version int) (*store.Engine, error) {
	if r.engine != nil {
		return r.engine, nil
	}

	engine, err := store.Open(ctx, store.Options{
		Path:    r.config.Database.Path,
		Name:    r.config.Database.Name,
		Version: version,
		Logger:  shared.WithLogger(r.logger, "component", "store"),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}
	r.engine = engine
	return engine, nil
}

// open opens the store and the services over it and restores the persisted session.
func (r *Runner) open(ctx context.Context, observers ...auth.SessionObserver) error {
	if r.auth != nil {
		return nil
	}

	engine, err := r.openStore(ctx, r.config.Database.SchemaVersion)
	if err != nil {
		return err
	}

	r.bridge = services.NewLocalBridge(engine, services.BridgeOptions{
		BcryptCost:   r.config.Bridge.BcryptCost,
		EndpointHost: r.config.Bridge.EndpointHost,
		Logger:       r.logger,
	})
	r.library = library.New(engine, r.logger)
	r.tasks = tasks.NewLibraryEngine(r.library, r.logger)

	observers = append([]auth.SessionObserver{r.library}, observers...)
	r.auth = auth.New(engine, r.bridge, r.bridge, r.logger, observers...)

	if _, err := r.auth.Restore(ctx); err != nil {
		return fmt.Errorf("failed to restore session: %w", err)
	}
	return nil
}

// Close releases the bridge and the store.
func (r *Runner) Close() error {
	var errs []error
	if r.bridge != nil {
		errs = append(errs, r.bridge.Close())
		r.bridge = nil
	}
	if r.engine != nil {
		errs = append(errs, r.engine.Close())
		r.engine = nil
	}
	r.auth, r.library, r.tasks = nil, nil, nil
	return errors.Join(errs...)
}

// userID returns given, or the authenticated user's id.
func (r *Runner) userID(given string) (string, error) {
	if given != "" {
		return given, nil
	}
	if u, ok := r.auth.CurrentUser(); ok {
		return u.ID, nil
	}
	return "", fmt.Errorf("%w: run 'spots auth login' or pass --user", shared.ErrNotAuthenticated)
}

func (r *Runner) writeJSON(data any, pretty bool) error {
	output, err := shared.MarshalJSON(data, pretty)
	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}

	if _, err := r.output.Write(output); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}

	if _, err := r.output.Write([]byte("\n")); err != nil {
		return fmt.Errorf("failed to write newline: %w", err)
	}

	return nil
}

func (r *Runner) writePlain(format string, args ...any) error {
	text := fmt.Sprintf(format, args...)
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainln(format string, args ...any) error {
	text := "\n" + fmt.Sprintf(format, args...) + "\n"
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainHeader(title string) {
	r.writePlain("%s\n", r.styles.Title(title))
}

func (r *Runner) writeOK(format string, args ...any) error {
	return r.writePlain("%s\n", r.styles.OK("✓ "+fmt.Sprintf(format, args...)))
}

func (r *Runner) writeWarn(format string, args ...any) error {
	return r.writePlain("%s\n", r.styles.Warn("⚠ "+fmt.Sprintf(format, args...)))
}
