package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/desertthunder/tunebox/internal/models"
	"github.com/desertthunder/tunebox/internal/registry"
	"github.com/desertthunder/tunebox/internal/services"
	"github.com/desertthunder/tunebox/internal/shared"
	"github.com/desertthunder/tunebox/internal/ui"
	"github.com/urfave/cli/v3"
)

// settle waits for the first terminal status of the stream and writes its value.
func settle[T any](ctx context.Context, r *Runner, cmd *cli.Command, open func(context.Context) services.Stream[T]) error {
	if err := r.open(); err != nil {
		return err
	}
	v, err := services.Settle(ctx, open)
	if err != nil {
		return err
	}
	return r.write(cmd, v)
}

// sortingRule builds the rule from --sort and --reverse. Without either, the listing's default
// rule applies.
func sortingRule(cmd *cli.Command, t models.MediaType) (*models.SortingRule, error) {
	if !cmd.IsSet("sort") && !cmd.IsSet("reverse") {
		return nil, nil
	}

	rule := registry.DefaultRule(t)
	if cmd.IsSet("sort") {
		if err := rule.Strategy.UnmarshalText([]byte(cmd.String("sort"))); err != nil {
			return nil, fmt.Errorf("%w: %w", shared.ErrInvalidArgument, err)
		}
	}
	if cmd.IsSet("reverse") {
		rule.Reverse = cmd.Bool("reverse")
	}
	return &rule, nil
}

func listing[T any](ctx context.Context, r *Runner, cmd *cli.Command, t models.MediaType, list func(*registry.Registry, context.Context, *models.SortingRule) services.Stream[T]) error {
	rule, err := sortingRule(cmd, t)
	if err != nil {
		return err
	}
	return settle(ctx, r, cmd, func(ctx context.Context) services.Stream[T] {
		return list(r.registry, ctx, rule)
	})
}

func (r *Runner) Albums(ctx context.Context, cmd *cli.Command) error {
	return listing(ctx, r, cmd, models.MediaTypeAlbum, (*registry.Registry).Albums)
}

func (r *Runner) Artists(ctx context.Context, cmd *cli.Command) error {
	return listing(ctx, r, cmd, models.MediaTypeArtist, (*registry.Registry).Artists)
}

func (r *Runner) Genres(ctx context.Context, cmd *cli.Command) error {
	return listing(ctx, r, cmd, models.MediaTypeGenre, (*registry.Registry).Genres)
}

func (r *Runner) Playlists(ctx context.Context, cmd *cli.Command) error {
	return listing(ctx, r, cmd, models.MediaTypePlaylist, (*registry.Registry).Playlists)
}

func (r *Runner) Activity(ctx context.Context, cmd *cli.Command) error {
	return settle(ctx, r, cmd, func(ctx context.Context) services.Stream[[]models.ActivityTab] {
		return r.registry.Activity(ctx)
	})
}

func (r *Runner) Search(ctx context.Context, cmd *cli.Command) error {
	query := strings.TrimSpace(cmd.StringArg("query"))
	if query == "" {
		return fmt.Errorf("%w: query", shared.ErrMissingArgument)
	}
	return settle(ctx, r, cmd, func(ctx context.Context) services.Stream[[]models.MediaItem] {
		return r.registry.Search(ctx, query)
	})
}

// Show prints the detail of any entity, dispatching on the collection in its URI.
func (r *Runner) Show(ctx context.Context, cmd *cli.Command) error {
	uri := cmd.StringArg("uri")
	if uri == "" {
		return fmt.Errorf("%w: uri", shared.ErrMissingArgument)
	}
	if err := r.open(); err != nil {
		return err
	}
	t, err := r.registry.ResolveType(uri)
	if err != nil {
		return err
	}

	switch t {
	case models.MediaTypeAlbum:
		return settle(ctx, r, cmd, func(ctx context.Context) services.Stream[models.AlbumWithTracks] { return r.registry.Album(ctx, uri) })
	case models.MediaTypeArtist:
		return settle(ctx, r, cmd, func(ctx context.Context) services.Stream[models.ArtistWithWorks] { return r.registry.Artist(ctx, uri) })
	case models.MediaTypeAudio:
		return settle(ctx, r, cmd, func(ctx context.Context) services.Stream[models.Audio] { return r.registry.Audio(ctx, uri) })
	case models.MediaTypeGenre:
		return settle(ctx, r, cmd, func(ctx context.Context) services.Stream[models.GenreWithContent] { return r.registry.Genre(ctx, uri) })
	case models.MediaTypePlaylist:
		return settle(ctx, r, cmd, func(ctx context.Context) services.Stream[models.PlaylistWithAudios] { return r.registry.Playlist(ctx, uri) })
	default:
		return fmt.Errorf("%w: %s", shared.ErrNotFound, uri)
	}
}

// Status prints the diagnostics of --provider or the active provider.
func (r *Runner) Status(ctx context.Context, cmd *cli.Command) error {
	if err := r.open(); err != nil {
		return err
	}
	id, err := r.providerOrActive(cmd)
	if err != nil {
		return err
	}
	return settle(ctx, r, cmd, func(ctx context.Context) services.Stream[[]models.DiagnosticInfo] {
		return r.registry.Status(ctx, id)
	})
}

func (r *Runner) AudioPlaylists(ctx context.Context, cmd *cli.Command) error {
	uri := cmd.StringArg("uri")
	if uri == "" {
		return fmt.Errorf("%w: uri", shared.ErrMissingArgument)
	}
	return settle(ctx, r, cmd, func(ctx context.Context) services.Stream[[]models.PlaylistMembership] {
		return r.registry.AudioPlaylistsStatus(ctx, uri)
	})
}

func (r *Runner) AudioPlayed(ctx context.Context, cmd *cli.Command) error {
	uri := cmd.StringArg("uri")
	if uri == "" {
		return fmt.Errorf("%w: uri", shared.ErrMissingArgument)
	}
	if err := r.open(); err != nil {
		return err
	}
	if err := r.registry.OnAudioPlayed(ctx, uri); err != nil {
		return err
	}
	r.writePlainln("%s", ui.OK("recorded playback of %s", uri))
	return nil
}
