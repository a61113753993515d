package services

import (
	"context"
	"fmt"

	"github.com/desertthunder/tunebox/internal/models"
	"github.com/desertthunder/tunebox/internal/shared"
)

// UnavailableService stands in for a provider whose backend could not be built. It still owns
// the provider's namespace, so its URIs route here and fail with the build error instead of
// looking like they belong to no provider.
type UnavailableService struct {
	id  models.ProviderIdentifier
	ns  Namespace
	err error
}

// NewUnavailableService wraps cause as [shared.ErrNotImplemented] for every operation.
func NewUnavailableService(id models.ProviderIdentifier, endpoint string, cause error) *UnavailableService {
	return &UnavailableService{
		id:  id,
		ns:  ProviderNamespace(id, endpoint),
		err: fmt.Errorf("%w: provider %s is unavailable: %w", shared.ErrNotImplemented, id, cause),
	}
}

func (s *UnavailableService) Kind() models.ProviderType    { return s.id.Type }
func (s *UnavailableService) IsCompatible(uri string) bool { return s.ns.IsCompatible(uri) }
func (s *UnavailableService) Err() error                   { return s.err }

func (s *UnavailableService) ResolveType(uri string) (models.MediaType, error) {
	return s.ns.ResolveType(uri)
}

func (s *UnavailableService) Activity(context.Context) Stream[[]models.ActivityTab] {
	return failed[[]models.ActivityTab](s.err)
}

func (s *UnavailableService) Albums(context.Context, models.SortingRule) Stream[[]models.Album] {
	return failed[[]models.Album](s.err)
}

func (s *UnavailableService) Artists(context.Context, models.SortingRule) Stream[[]models.Artist] {
	return failed[[]models.Artist](s.err)
}

func (s *UnavailableService) Genres(context.Context, models.SortingRule) Stream[[]models.Genre] {
	return failed[[]models.Genre](s.err)
}

func (s *UnavailableService) Playlists(context.Context, models.SortingRule) Stream[[]models.Playlist] {
	return failed[[]models.Playlist](s.err)
}

func (s *UnavailableService) Search(context.Context, string) Stream[[]models.MediaItem] {
	return failed[[]models.MediaItem](s.err)
}

func (s *UnavailableService) Audio(context.Context, string) Stream[models.Audio] {
	return failed[models.Audio](s.err)
}

func (s *UnavailableService) Album(context.Context, string) Stream[models.AlbumWithTracks] {
	return failed[models.AlbumWithTracks](s.err)
}

func (s *UnavailableService) Artist(context.Context, string) Stream[models.ArtistWithWorks] {
	return failed[models.ArtistWithWorks](s.err)
}

func (s *UnavailableService) Genre(context.Context, string) Stream[models.GenreWithContent] {
	return failed[models.GenreWithContent](s.err)
}

func (s *UnavailableService) Playlist(context.Context, string) Stream[models.PlaylistWithAudios] {
	return failed[models.PlaylistWithAudios](s.err)
}

func (s *UnavailableService) AudioPlaylistsStatus(context.Context, string) Stream[[]models.PlaylistMembership] {
	return failed[[]models.PlaylistMembership](s.err)
}

func (s *UnavailableService) CreatePlaylist(context.Context, string) (string, error) {
	return "", s.err
}

func (s *UnavailableService) RenamePlaylist(context.Context, string, string) error { return s.err }
func (s *UnavailableService) DeletePlaylist(context.Context, string) error         { return s.err }

func (s *UnavailableService) AddAudioToPlaylist(context.Context, string, string) error {
	return s.err
}

func (s *UnavailableService) RemoveAudioFromPlaylist(context.Context, string, string) error {
	return s.err
}

func (s *UnavailableService) OnAudioPlayed(context.Context, string) error { return s.err }

func (s *UnavailableService) Status(context.Context) Stream[[]models.DiagnosticInfo] {
	return succeeded([]models.DiagnosticInfo{
		{Key: "provider", Value: s.id.String()},
		{Key: "error", Value: s.err.Error()},
	})
}

func (s *UnavailableService) Close() error { return nil }

var (
	_ Service = (*LocalService)(nil)
	_ Service = (*JellyfinService)(nil)
	_ Service = (*SubsonicService)(nil)
	_ Service = (*UnavailableService)(nil)
)
