package registry

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/desertthunder/tunebox/internal/models"
	"github.com/desertthunder/tunebox/internal/services"
	"github.com/desertthunder/tunebox/internal/shared"
	"github.com/desertthunder/tunebox/internal/streams"
)

// DefaultRule is the ordering a listing uses when the caller gives none.
func DefaultRule(t models.MediaType) models.SortingRule {
	switch t {
	case models.MediaTypeAlbum:
		return models.SortingRule{Strategy: models.SortByCreationDate, Reverse: true}
	case models.MediaTypeArtist, models.MediaTypePlaylist:
		return models.SortingRule{Strategy: models.SortByModificationDate, Reverse: true}
	default:
		return models.SortingRule{Strategy: models.SortByName}
	}
}

func ruleOr(rule *models.SortingRule, t models.MediaType) models.SortingRule {
	if rule == nil {
		return DefaultRule(t)
	}
	return *rule
}

// Route returns the only backend every uri is compatible with.
func (r *Registry) Route(uris ...string) (services.Service, bool) {
	e, ok := r.state.Load().route(uris)
	return e.Service, ok
}

func (r *Registry) route(uris ...string) (services.Service, error) {
	svc, ok := r.Route(uris...)
	if !ok {
		return nil, fmt.Errorf("%w: no provider handles %s", shared.ErrNotFound, strings.Join(uris, ", "))
	}
	return svc, nil
}

// detached reports a call that reached a backend closed after routing as not found, the same
// as if the provider had been gone before the call.
func detached(err error) error {
	if errors.Is(err, shared.ErrServiceClosed) && !errors.Is(err, shared.ErrNotFound) {
		return fmt.Errorf("%w: provider was removed: %w", shared.ErrNotFound, err)
	}
	return err
}

// routed forwards a URI-keyed stream to the backend owning uri.
func routed[T any](ctx context.Context, r *Registry, uri string, fn func(services.Service) services.Stream[T]) services.Stream[T] {
	svc, err := r.route(uri)
	if err != nil {
		return streams.Just(models.Failure[T](err))
	}
	return streams.Map(ctx, fn(svc), func(s models.RequestStatus[T]) models.RequestStatus[T] {
		s.Err = detached(s.Err)
		return s
	})
}

// listing forwards a bulk listing to the active backend. When the active provider or its backend
// changes the previous stream is cancelled and the new backend's stream takes over.
func listing[T any](ctx context.Context, r *Registry, fn func(context.Context, services.Service) services.Stream[T]) services.Stream[T] {
	active := streams.Map(ctx, r.state.Watch(ctx), func(s snapshot) services.Service {
		return s.activeEntry().Service
	})
	distinct := streams.Distinct(ctx, active, func(a, b services.Service) bool { return a == b })
	return streams.SwitchMap(ctx, distinct, fn)
}

func (r *Registry) mutate(fn func(services.Service) error, uris ...string) error {
	svc, err := r.route(uris...)
	if err != nil {
		return err
	}
	return detached(fn(svc))
}

func (r *Registry) Activity(ctx context.Context) services.Stream[[]models.ActivityTab] {
	return listing(ctx, r, func(ctx context.Context, svc services.Service) services.Stream[[]models.ActivityTab] {
		return svc.Activity(ctx)
	})
}

// Albums lists the albums of the active provider. A nil rule uses [DefaultRule].
func (r *Registry) Albums(ctx context.Context, rule *models.SortingRule) services.Stream[[]models.Album] {
	sort := ruleOr(rule, models.MediaTypeAlbum)
	return listing(ctx, r, func(ctx context.Context, svc services.Service) services.Stream[[]models.Album] {
		return svc.Albums(ctx, sort)
	})
}

func (r *Registry) Artists(ctx context.Context, rule *models.SortingRule) services.Stream[[]models.Artist] {
	sort := ruleOr(rule, models.MediaTypeArtist)
	return listing(ctx, r, func(ctx context.Context, svc services.Service) services.Stream[[]models.Artist] {
		return svc.Artists(ctx, sort)
	})
}

func (r *Registry) Genres(ctx context.Context, rule *models.SortingRule) services.Stream[[]models.Genre] {
	sort := ruleOr(rule, models.MediaTypeGenre)
	return listing(ctx, r, func(ctx context.Context, svc services.Service) services.Stream[[]models.Genre] {
		return svc.Genres(ctx, sort)
	})
}

func (r *Registry) Playlists(ctx context.Context, rule *models.SortingRule) services.Stream[[]models.Playlist] {
	sort := ruleOr(rule, models.MediaTypePlaylist)
	return listing(ctx, r, func(ctx context.Context, svc services.Service) services.Stream[[]models.Playlist] {
		return svc.Playlists(ctx, sort)
	})
}

func (r *Registry) Search(ctx context.Context, query string) services.Stream[[]models.MediaItem] {
	return listing(ctx, r, func(ctx context.Context, svc services.Service) services.Stream[[]models.MediaItem] {
		return svc.Search(ctx, query)
	})
}

// ResolveType classifies uri with the backend that owns it.
func (r *Registry) ResolveType(uri string) (models.MediaType, error) {
	svc, err := r.route(uri)
	if err != nil {
		return 0, err
	}
	return svc.ResolveType(uri)
}

func (r *Registry) Audio(ctx context.Context, uri string) services.Stream[models.Audio] {
	return routed(ctx, r, uri, func(svc services.Service) services.Stream[models.Audio] {
		return svc.Audio(ctx, uri)
	})
}

func (r *Registry) Album(ctx context.Context, uri string) services.Stream[models.AlbumWithTracks] {
	return routed(ctx, r, uri, func(svc services.Service) services.Stream[models.AlbumWithTracks] {
		return svc.Album(ctx, uri)
	})
}

func (r *Registry) Artist(ctx context.Context, uri string) services.Stream[models.ArtistWithWorks] {
	return routed(ctx, r, uri, func(svc services.Service) services.Stream[models.ArtistWithWorks] {
		return svc.Artist(ctx, uri)
	})
}

func (r *Registry) Genre(ctx context.Context, uri string) services.Stream[models.GenreWithContent] {
	return routed(ctx, r, uri, func(svc services.Service) services.Stream[models.GenreWithContent] {
		return svc.Genre(ctx, uri)
	})
}

func (r *Registry) Playlist(ctx context.Context, uri string) services.Stream[models.PlaylistWithAudios] {
	return routed(ctx, r, uri, func(svc services.Service) services.Stream[models.PlaylistWithAudios] {
		return svc.Playlist(ctx, uri)
	})
}

func (r *Registry) AudioPlaylistsStatus(ctx context.Context, audioURI string) services.Stream[[]models.PlaylistMembership] {
	return routed(ctx, r, audioURI, func(svc services.Service) services.Stream[[]models.PlaylistMembership] {
		return svc.AudioPlaylistsStatus(ctx, audioURI)
	})
}

// CreatePlaylist creates a playlist on the given provider.
func (r *Registry) CreatePlaylist(ctx context.Context, provider models.ProviderIdentifier, name string) (string, error) {
	e, err := r.Provider(provider)
	if err != nil {
		return "", err
	}
	uri, err := e.Service.CreatePlaylist(ctx, name)
	return uri, detached(err)
}

func (r *Registry) RenamePlaylist(ctx context.Context, playlistURI, name string) error {
	return r.mutate(func(svc services.Service) error {
		return svc.RenamePlaylist(ctx, playlistURI, name)
	}, playlistURI)
}

func (r *Registry) DeletePlaylist(ctx context.Context, playlistURI string) error {
	return r.mutate(func(svc services.Service) error {
		return svc.DeletePlaylist(ctx, playlistURI)
	}, playlistURI)
}

// AddAudioToPlaylist requires the playlist and the audio to belong to the same provider.
func (r *Registry) AddAudioToPlaylist(ctx context.Context, playlistURI, audioURI string) error {
	return r.mutate(func(svc services.Service) error {
		return svc.AddAudioToPlaylist(ctx, playlistURI, audioURI)
	}, playlistURI, audioURI)
}

func (r *Registry) RemoveAudioFromPlaylist(ctx context.Context, playlistURI, audioURI string) error {
	return r.mutate(func(svc services.Service) error {
		return svc.RemoveAudioFromPlaylist(ctx, playlistURI, audioURI)
	}, playlistURI, audioURI)
}

func (r *Registry) OnAudioPlayed(ctx context.Context, audioURI string) error {
	return r.mutate(func(svc services.Service) error {
		return svc.OnAudioPlayed(ctx, audioURI)
	}, audioURI)
}

// Status reports the diagnostics of one provider.
func (r *Registry) Status(ctx context.Context, provider models.ProviderIdentifier) services.Stream[[]models.DiagnosticInfo] {
	e, err := r.Provider(provider)
	if err != nil {
		return streams.Just(models.Failure[[]models.DiagnosticInfo](err))
	}
	return e.Service.Status(ctx)
}
