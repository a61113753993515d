package main

import (
	"context"
	"fmt"
	"os"

	"github.com/desertthunder/tunebox/internal/shared"
	"github.com/desertthunder/tunebox/internal/ui"
	"github.com/urfave/cli/v3"
)

// Setup creates the config file when it is missing, then creates the database and runs migrations.
func (r *Runner) Setup(ctx context.Context, cmd *cli.Command) error {
	if _, err := os.Stat(r.configPath); err == nil {
		r.logger.Info("using existing config file", "path", r.configPath)
	} else {
		r.logger.Info("config file not found, creating from template", "path", r.configPath)
		if err := shared.CreateConfigFile(r.configPath); err != nil {
			return fmt.Errorf("failed to create config file: %w", err)
		}
		config, err := shared.LoadConfig(r.configPath)
		if err != nil {
			return err
		}
		r.config = config
		r.writePlainln("%s", ui.OK("created config file %s", r.configPath))
	}

	r.logger.Info("initializing database", "path", r.config.Database.Path)
	if err := r.open(); err != nil {
		return err
	}

	version, err := shared.MigrationVersion(r.store.DB)
	if err != nil {
		return fmt.Errorf("failed to read migration version: %w", err)
	}
	r.logger.Debug("database ready", "version", version)
	r.writePlainln("%s", ui.OK("database ready at %s (schema version %d)", r.config.Database.Path, version))

	if len(r.config.Library.Paths) == 0 {
		r.writePlainln("%s", ui.Help("add folders to library.paths in %s, then run 'tunebox scan'", r.configPath))
	}
	return nil
}

// Migrate reports the schema version, or rolls back the latest migration with --rollback.
func (r *Runner) Migrate(ctx context.Context, cmd *cli.Command) error {
	db, err := shared.NewDatabase(r.config.Database.Path)
	if err != nil {
		return fmt.Errorf("%w: %w", shared.ErrDatabaseNotFound, err)
	}
	defer db.Close()

	if cmd.Bool("rollback") {
		if err := shared.RollbackMigration(db); err != nil {
			return err
		}
		r.logger.Warn("rolled back migration", "path", r.config.Database.Path)
	} else if err := shared.RunMigrations(db); err != nil {
		return err
	}

	version, err := shared.MigrationVersion(db)
	if err != nil {
		return err
	}
	r.writePlainln("%s", ui.OK("schema version %d", version))
	return nil
}
