package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/desertthunder/tunebox/internal/shared"
	"github.com/desertthunder/tunebox/internal/tasks"
	"github.com/desertthunder/tunebox/internal/ui"
	"github.com/urfave/cli/v3"
)

// requireArgs returns the named arguments, failing on the first empty one.
func requireArgs(cmd *cli.Command, names ...string) ([]string, error) {
	values := make([]string, len(names))
	for i, name := range names {
		values[i] = strings.TrimSpace(cmd.StringArg(name))
		if values[i] == "" {
			return nil, fmt.Errorf("%w: %s", shared.ErrMissingArgument, name)
		}
	}
	return values, nil
}

func (r *Runner) CreatePlaylist(ctx context.Context, cmd *cli.Command) error {
	args, err := requireArgs(cmd, "name")
	if err != nil {
		return err
	}
	if err := r.open(); err != nil {
		return err
	}
	provider, err := r.providerOrActive(cmd)
	if err != nil {
		return err
	}

	uri, err := r.registry.CreatePlaylist(ctx, provider, args[0])
	if err != nil {
		return err
	}
	r.logger.Debug("playlist created", "provider", provider, "uri", uri)
	r.writePlainln("%s", ui.OK("created %s", uri))
	return nil
}

func (r *Runner) RenamePlaylist(ctx context.Context, cmd *cli.Command) error {
	args, err := requireArgs(cmd, "uri", "name")
	if err != nil {
		return err
	}
	if err := r.open(); err != nil {
		return err
	}
	if err := r.registry.RenamePlaylist(ctx, args[0], args[1]); err != nil {
		return err
	}
	r.writePlainln("%s", ui.OK("renamed to %s", args[1]))
	return nil
}

func (r *Runner) DeletePlaylist(ctx context.Context, cmd *cli.Command) error {
	args, err := requireArgs(cmd, "uri")
	if err != nil {
		return err
	}
	if err := r.open(); err != nil {
		return err
	}
	if err := r.registry.DeletePlaylist(ctx, args[0]); err != nil {
		return err
	}
	r.writePlainln("%s", ui.OK("deleted %s", args[0]))
	return nil
}

func (r *Runner) AddToPlaylist(ctx context.Context, cmd *cli.Command) error {
	args, err := requireArgs(cmd, "playlist", "audio")
	if err != nil {
		return err
	}
	if err := r.open(); err != nil {
		return err
	}
	if err := r.registry.AddAudioToPlaylist(ctx, args[0], args[1]); err != nil {
		return err
	}
	r.writePlainln("%s", ui.OK("added %s", args[1]))
	return nil
}

func (r *Runner) RemoveFromPlaylist(ctx context.Context, cmd *cli.Command) error {
	args, err := requireArgs(cmd, "playlist", "audio")
	if err != nil {
		return err
	}
	if err := r.open(); err != nil {
		return err
	}
	if err := r.registry.RemoveAudioFromPlaylist(ctx, args[0], args[1]); err != nil {
		return err
	}
	r.writePlainln("%s", ui.OK("removed %s", args[1]))
	return nil
}

// ExportPlaylist writes a playlist as M3U to --output, or to the command output.
func (r *Runner) ExportPlaylist(ctx context.Context, cmd *cli.Command) error {
	args, err := requireArgs(cmd, "uri")
	if err != nil {
		return err
	}
	if err := r.open(); err != nil {
		return err
	}

	var w io.Writer = r.output
	path := cmd.String("output")
	if path != "" {
		file, err := os.Create(path)
		if err != nil {
			return fmt.Errorf("%w: %w", shared.ErrIO, err)
		}
		defer file.Close()
		w = file
	}

	var result *tasks.ExportResult
	err = r.withProgress(func(progress chan<- tasks.ProgressUpdate) error {
		result, err = tasks.ExportPlaylist(ctx, r.registry, args[0], w, progress)
		return err
	})
	if err != nil {
		return err
	}

	r.logger.Info("playlist exported", "name", result.Name, "written", result.Written, "unavailable", result.Unavailable)
	if path == "" {
		return nil
	}
	r.writePlainln("%s", ui.OK("exported %d entries of %s to %s", result.Written, result.Name, path))
	if result.Unavailable > 0 {
		r.writePlainln("%s", ui.Warn("%d entries are no longer available", result.Unavailable))
	}
	return nil
}

// ImportPlaylist recreates an M3U file as a playlist on --provider or the active provider.
func (r *Runner) ImportPlaylist(ctx context.Context, cmd *cli.Command) error {
	args, err := requireArgs(cmd, "file")
	if err != nil {
		return err
	}
	file, err := os.Open(args[0])
	if err != nil {
		return fmt.Errorf("%w: %w", shared.ErrIO, err)
	}
	defer file.Close()

	if err := r.open(); err != nil {
		return err
	}
	provider, err := r.providerOrActive(cmd)
	if err != nil {
		return err
	}
	entry, err := r.registry.Provider(provider)
	if err != nil {
		return err
	}

	var result *tasks.ImportResult
	err = r.withProgress(func(progress chan<- tasks.ProgressUpdate) error {
		result, err = tasks.ImportPlaylist(ctx, entry.Service, file, cmd.String("name"), progress)
		return err
	})
	if result != nil {
		for _, unresolved := range result.Unresolved {
			r.writePlainln("%s", ui.Warn("no match for %s", unresolved.Location))
		}
	}
	if err != nil {
		return err
	}

	r.writePlainln("%s", ui.OK("imported %d entries into %s (%s)", result.Added, result.Name, result.PlaylistURI))
	if result.Skipped > 0 {
		r.writePlainln("%s", ui.Help("%d remote entries were skipped", result.Skipped))
	}
	return nil
}
