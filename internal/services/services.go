package services

import (
	"context"

	"github.com/desertthunder/tunebox/internal/models"
)

// Stream is a listing or detail subscription. It closes when the caller's context is cancelled,
// or when the backend has nothing more to emit.
type Stream[T any] = <-chan models.RequestStatus[T]

// Service is the contract every backend implements. A backend that cannot perform an operation
// answers it with [shared.ErrNotImplemented].
type Service interface {
	// Kind tags the backend family.
	Kind() models.ProviderType

	// IsCompatible reports whether uri lives in this backend's namespace. It never does I/O.
	IsCompatible(uri string) bool

	// ResolveType classifies a compatible uri by its collection segment.
	ResolveType(uri string) (models.MediaType, error)

	Activity(ctx context.Context) Stream[[]models.ActivityTab]
	Albums(ctx context.Context, rule models.SortingRule) Stream[[]models.Album]
	Artists(ctx context.Context, rule models.SortingRule) Stream[[]models.Artist]
	Genres(ctx context.Context, rule models.SortingRule) Stream[[]models.Genre]
	Playlists(ctx context.Context, rule models.SortingRule) Stream[[]models.Playlist]
	Search(ctx context.Context, query string) Stream[[]models.MediaItem]

	Audio(ctx context.Context, uri string) Stream[models.Audio]
	Album(ctx context.Context, uri string) Stream[models.AlbumWithTracks]
	Artist(ctx context.Context, uri string) Stream[models.ArtistWithWorks]
	Genre(ctx context.Context, uri string) Stream[models.GenreWithContent]
	Playlist(ctx context.Context, uri string) Stream[models.PlaylistWithAudios]

	// AudioPlaylistsStatus lists every playlist with whether audioURI is in it.
	AudioPlaylistsStatus(ctx context.Context, audioURI string) Stream[[]models.PlaylistMembership]

	// CreatePlaylist returns the URI of the new playlist.
	CreatePlaylist(ctx context.Context, name string) (string, error)
	RenamePlaylist(ctx context.Context, playlistURI, name string) error
	DeletePlaylist(ctx context.Context, playlistURI string) error
	AddAudioToPlaylist(ctx context.Context, playlistURI, audioURI string) error
	RemoveAudioFromPlaylist(ctx context.Context, playlistURI, audioURI string) error

	// OnAudioPlayed records a playback of audioURI.
	OnAudioPlayed(ctx context.Context, audioURI string) error

	// Status reports diagnostics. A backend with nothing to report emits an empty list.
	Status(ctx context.Context) Stream[[]models.DiagnosticInfo]

	// Close cancels in-flight requests and releases connections.
	Close() error
}
