package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/desertthunder/tunebox/internal/shared"
	"github.com/desertthunder/tunebox/internal/tasks"
	"github.com/desertthunder/tunebox/internal/ui"
	"github.com/urfave/cli/v3"
)

// libraryPaths returns --path when given, else the configured library paths.
// Explicit paths also replace the folders the local provider serves for this run.
func (r *Runner) libraryPaths(cmd *cli.Command) ([]string, error) {
	if paths := cmd.StringSlice("path"); len(paths) > 0 {
		if err := r.registry.SetLibraryPaths(paths); err != nil {
			return nil, err
		}
		return paths, nil
	}
	return r.config.Library.Paths, nil
}

func (r *Runner) scanner(paths []string) (*tasks.Scanner, error) {
	if len(paths) == 0 {
		return nil, fmt.Errorf("%w: no library paths, set library.paths in %s or pass --path", shared.ErrMissingArgument, r.configPath)
	}
	return tasks.NewScanner(tasks.ScannerOpts{
		Library: r.store.Library,
		Paths:   paths,
		Logger:  r.logger,
	})
}

// Scan indexes the library once, then keeps watching it with --watch until interrupted.
func (r *Runner) Scan(ctx context.Context, cmd *cli.Command) error {
	if err := r.open(); err != nil {
		return err
	}
	paths, err := r.libraryPaths(cmd)
	if err != nil {
		return err
	}
	scanner, err := r.scanner(paths)
	if err != nil {
		return err
	}

	var result *tasks.ScanResult
	err = r.withProgress(func(progress chan<- tasks.ProgressUpdate) error {
		result, err = scanner.Scan(ctx, progress)
		return err
	})
	if result != nil {
		for _, failed := range result.Failed {
			r.writePlainln("%s", ui.Warn("%s", failed.Error()))
		}
	}
	if err != nil {
		return err
	}

	if !cmd.Bool("watch") {
		return nil
	}
	err = r.withProgress(func(progress chan<- tasks.ProgressUpdate) error {
		return scanner.Watch(ctx, progress)
	})
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
