package main

import (
	"context"
	"fmt"
	"os"

	"github.com/desertthunder/spots/internal/shared"
	"github.com/desertthunder/spots/internal/store"
	"github.com/dustin/go-humanize"
	"github.com/urfave/cli/v3"
)

// SetupConfig writes config.toml from the embedded template.
func (r *Runner) SetupConfig(ctx context.Context, cmd *cli.Command) error {
	path := cmd.String("config")
	if err := shared.CreateConfigFile(path); err != nil {
		return err
	}
	r.logger.Info("config file created", "path", path)
	return r.writeOK("Wrote %s", path)
}

// SetupDatabase creates the config file when missing, then opens the store, which runs migrations.
func (r *Runner) SetupDatabase(ctx context.Context, cmd *cli.Command) error {
	path := cmd.String("config")
	if !r.configFixed {
		if _, err := os.Stat(path); err != nil {
			r.logger.Info("config file not found, creating from template", "path", path)
			if err := shared.CreateConfigFile(path); err != nil {
				r.logger.Warn("failed to create config file, using defaults", "error", err)
			}
		}
	}

	r.logger.Info("initializing store", "path", r.config.Database.Path)
	if err := r.open(ctx); err != nil {
		return err
	}
	defer r.Close()

	if _, err := r.library.EnsureAllTracks(ctx); err != nil {
		return fmt.Errorf("failed to create All Tracks playlist: %w", err)
	}

	state := r.engine.State()
	r.logger.Infof("setup complete for store: %v", r.config.Database.Path)
	return r.writeOK("Store %s ready at schema version %d", state.Name, state.SchemaVersion)
}

// MigrateUp migrates the store to --to, or to the newest embedded version.
func (r *Runner) MigrateUp(ctx context.Context, cmd *cli.Command) error {
	target := int(cmd.Int("to"))
	if target == 0 {
		latest, err := store.LatestVersion()
		if err != nil {
			return err
		}
		target = latest
	}

	engine, err := r.openStore(ctx, target)
	if err != nil {
		return err
	}
	defer r.Close()

	current, err := engine.Migrations().CurrentVersion(ctx)
	if err != nil {
		return err
	}
	return r.writeOK("Schema at version %d", current)
}

// MigrateRollback reverts the most recent migration.
func (r *Runner) MigrateRollback(ctx context.Context, cmd *cli.Command) error {
	engine, err := r.openStore(ctx, r.config.Database.SchemaVersion)
	if err != nil {
		return err
	}
	defer r.Close()

	version, err := engine.Migrations().Rollback(ctx)
	if err != nil {
		return err
	}
	r.logger.Info("rolled back migration", "version", version)
	return r.writeOK("Rolled back migration %d", version)
}

// MigrateStatus lists applied migrations.
func (r *Runner) MigrateStatus(ctx context.Context, cmd *cli.Command) error {
	engine, err := r.openStore(ctx, r.config.Database.SchemaVersion)
	if err != nil {
		return err
	}
	defer r.Close()

	migrations := engine.Migrations()
	applied, err := migrations.Applied(ctx)
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		return r.writeJSON(map[string]any{
			"store":   engine.State(),
			"latest":  migrations.Latest(),
			"applied": applied,
			"size":    engine.Size(),
		}, true)
	}

	r.writePlainHeader(fmt.Sprintf("Store %s (%s)", engine.Name(), humanize.Bytes(uint64(engine.Size()))))
	for _, a := range applied {
		r.writePlain("  %04d %-24s %s\n", a.Version, a.Name, humanize.Time(a.AppliedAt))
	}
	return r.writePlain("%s\n", r.styles.Help(fmt.Sprintf("latest available: %d", migrations.Latest())))
}
