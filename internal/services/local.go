package services

import (
	"cmp"
	"context"
	"fmt"
	"net/url"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/tunebox/internal/models"
	"github.com/desertthunder/tunebox/internal/repositories"
	"github.com/desertthunder/tunebox/internal/shared"
	"github.com/desertthunder/tunebox/internal/streams"
)

// LocalNamespace is the URI namespace of the local library.
var LocalNamespace = ProviderNamespace(models.LocalProviderID, "library")

const (
	localSearchLimit   = 50
	localActivityLimit = 20
)

// LocalOpts configures the local library backend.
type LocalOpts struct {
	Store  *repositories.Store
	Paths  []string
	Logger *log.Logger
}

// LocalService implements [Service] over the indexed library folders and local playlists.
// Every stream it returns re-emits when the library, playlists or statistics change.
type LocalService struct {
	ns        Namespace
	library   *repositories.LibraryRepository
	playlists *repositories.PlaylistRepository
	stats     *repositories.StatsRepository
	changed   *streams.Signal
	paths     []string
	logger    *log.Logger
}

// NewLocalService creates the local backend.
func NewLocalService(opts LocalOpts) (*LocalService, error) {
	if opts.Store == nil {
		return nil, fmt.Errorf("%w: local backend needs a store", shared.ErrInvalidProvider)
	}
	logger := opts.Logger
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &LocalService{
		ns:        LocalNamespace,
		library:   opts.Store.Library,
		playlists: opts.Store.Playlists,
		stats:     opts.Store.Stats,
		changed:   opts.Store.Library.Changed(),
		paths:     slices.Clone(opts.Paths),
		logger:    shared.WithLogger(logger, "provider", models.LocalProviderID.String()),
	}, nil
}

func (s *LocalService) Kind() models.ProviderType { return models.ProviderTypeLocal }

func (s *LocalService) IsCompatible(uri string) bool { return s.ns.IsCompatible(uri) }

func (s *LocalService) ResolveType(uri string) (models.MediaType, error) {
	return s.ns.ResolveType(uri)
}

// Paths returns the library folders this backend was built with.
func (s *LocalService) Paths() []string { return slices.Clone(s.paths) }

func (s *LocalService) Activity(ctx context.Context) Stream[[]models.ActivityTab] {
	return watchRequest(ctx, s.changed, func(ctx context.Context) ([]models.ActivityTab, error) {
		recent, err := s.library.RecentTracks(localActivityLimit)
		if err != nil {
			return nil, err
		}
		mostPlayed, err := s.statTracks(s.stats.MostPlayed)
		if err != nil {
			return nil, err
		}
		recentlyPlayed, err := s.statTracks(s.stats.RecentlyPlayed)
		if err != nil {
			return nil, err
		}

		return []models.ActivityTab{
			{ID: "recently_added", Title: "Recently added", Items: s.audioItems(recent)},
			{ID: "most_played", Title: "Most played", Items: s.audioItems(mostPlayed)},
			{ID: "recently_played", Title: "Recently played", Items: s.audioItems(recentlyPlayed)},
		}, nil
	})
}

func (s *LocalService) Albums(ctx context.Context, rule models.SortingRule) Stream[[]models.Album] {
	return watchRequest(ctx, s.changed, func(ctx context.Context) ([]models.Album, error) {
		albums, err := s.library.Albums(rule)
		return mapSlice(albums, s.toAlbum), err
	})
}

func (s *LocalService) Artists(ctx context.Context, rule models.SortingRule) Stream[[]models.Artist] {
	return watchRequest(ctx, s.changed, func(ctx context.Context) ([]models.Artist, error) {
		artists, err := s.library.Artists(rule)
		return mapSlice(artists, s.toArtist), err
	})
}

func (s *LocalService) Genres(ctx context.Context, rule models.SortingRule) Stream[[]models.Genre] {
	return watchRequest(ctx, s.changed, func(ctx context.Context) ([]models.Genre, error) {
		genres, err := s.library.Genres(rule)
		return mapSlice(genres, s.toGenre), err
	})
}

func (s *LocalService) Playlists(ctx context.Context, rule models.SortingRule) Stream[[]models.Playlist] {
	return watchRequest(ctx, s.changed, func(ctx context.Context) ([]models.Playlist, error) {
		playlists, err := s.playlists.List(map[string]any{"sort": rule})
		return mapSlice(playlists, s.toPlaylist), err
	})
}

func (s *LocalService) Search(ctx context.Context, query string) Stream[[]models.MediaItem] {
	return request(ctx, func(ctx context.Context) ([]models.MediaItem, error) {
		results, err := s.library.Search(query, localSearchLimit)
		if err != nil {
			return nil, err
		}
		playlists, err := s.playlists.List(map[string]any{"sort": models.SortingRule{Strategy: models.SortByName}})
		if err != nil {
			return nil, err
		}

		items := []models.MediaItem{}
		for _, a := range results.Artists {
			items = append(items, s.toArtist(a))
		}
		for _, a := range results.Albums {
			items = append(items, s.toAlbum(a))
		}
		for _, g := range results.Genres {
			items = append(items, s.toGenre(g))
		}
		for _, t := range results.Tracks {
			items = append(items, s.toAudio(t))
		}
		needle := strings.ToLower(strings.TrimSpace(query))
		for _, p := range playlists {
			if strings.Contains(strings.ToLower(p.Name()), needle) {
				items = append(items, s.toPlaylist(p))
			}
		}
		return items, nil
	})
}

func (s *LocalService) Audio(ctx context.Context, uri string) Stream[models.Audio] {
	id, err := s.ns.LocalID(uri, models.MediaTypeAudio)
	if err != nil {
		return failed[models.Audio](err)
	}
	return watchRequest(ctx, s.changed, func(ctx context.Context) (models.Audio, error) {
		track, err := s.library.Track(id)
		if err != nil {
			return models.Audio{}, err
		}
		return s.toAudio(*track), nil
	})
}

func (s *LocalService) Album(ctx context.Context, uri string) Stream[models.AlbumWithTracks] {
	id, err := s.ns.LocalID(uri, models.MediaTypeAlbum)
	if err != nil {
		return failed[models.AlbumWithTracks](err)
	}
	return watchRequest(ctx, s.changed, func(ctx context.Context) (models.AlbumWithTracks, error) {
		album, err := s.library.Album(id)
		if err != nil {
			return models.AlbumWithTracks{}, err
		}
		tracks, err := s.library.TracksByAlbum(id)
		if err != nil {
			return models.AlbumWithTracks{}, err
		}
		return models.AlbumWithTracks{Album: s.toAlbum(*album), Tracks: mapSlice(tracks, s.toAudio)}, nil
	})
}

func (s *LocalService) Artist(ctx context.Context, uri string) Stream[models.ArtistWithWorks] {
	id, err := s.ns.LocalID(uri, models.MediaTypeArtist)
	if err != nil {
		return failed[models.ArtistWithWorks](err)
	}
	return watchRequest(ctx, s.changed, func(ctx context.Context) (models.ArtistWithWorks, error) {
		artist, err := s.library.Artist(id)
		if err != nil {
			return models.ArtistWithWorks{}, err
		}
		albums, err := s.library.AlbumsByArtist(id)
		if err != nil {
			return models.ArtistWithWorks{}, err
		}
		featuring, err := s.library.AlbumsFeaturingArtist(id)
		if err != nil {
			return models.ArtistWithWorks{}, err
		}
		playlists, err := s.playlists.ListContaining("artist_id", id)
		if err != nil {
			return models.ArtistWithWorks{}, err
		}
		return models.ArtistWithWorks{
			Artist: s.toArtist(*artist),
			Works: models.ArtistWorks{
				Albums:            mapSlice(albums, s.toAlbum),
				AppearsInAlbum:    mapSlice(featuring, s.toAlbum),
				AppearsInPlaylist: mapSlice(playlists, s.toPlaylist),
			},
		}, nil
	})
}

func (s *LocalService) Genre(ctx context.Context, uri string) Stream[models.GenreWithContent] {
	id, err := s.ns.LocalID(uri, models.MediaTypeGenre)
	if err != nil {
		return failed[models.GenreWithContent](err)
	}
	return watchRequest(ctx, s.changed, func(ctx context.Context) (models.GenreWithContent, error) {
		genre, err := s.library.Genre(id)
		if err != nil {
			return models.GenreWithContent{}, err
		}
		albums, err := s.library.AlbumsByGenre(id)
		if err != nil {
			return models.GenreWithContent{}, err
		}
		playlists, err := s.playlists.ListContaining("genre_id", id)
		if err != nil {
			return models.GenreWithContent{}, err
		}
		tracks, err := s.library.TracksByGenre(id)
		if err != nil {
			return models.GenreWithContent{}, err
		}
		return models.GenreWithContent{
			Genre: s.toGenre(*genre),
			Content: models.GenreContent{
				AppearsInAlbums:    mapSlice(albums, s.toAlbum),
				AppearsInPlaylists: mapSlice(playlists, s.toPlaylist),
				Audios:             mapSlice(tracks, s.toAudio),
			},
		}, nil
	})
}

// Playlist keeps entries whose track left the library as nil audios, in place.
func (s *LocalService) Playlist(ctx context.Context, uri string) Stream[models.PlaylistWithAudios] {
	id, err := s.ns.LocalID(uri, models.MediaTypePlaylist)
	if err != nil {
		return failed[models.PlaylistWithAudios](err)
	}
	return watchRequest(ctx, s.changed, func(ctx context.Context) (models.PlaylistWithAudios, error) {
		playlist, err := s.playlists.Get(id)
		if err != nil {
			return models.PlaylistWithAudios{}, err
		}
		entries, err := s.playlists.Entries(id)
		if err != nil {
			return models.PlaylistWithAudios{}, err
		}
		tracks, err := s.library.TracksByIDs(entries)
		if err != nil {
			return models.PlaylistWithAudios{}, err
		}

		audios := make([]*models.Audio, 0, len(entries))
		for _, entry := range entries {
			track, ok := tracks[entry]
			if !ok {
				audios = append(audios, nil)
				continue
			}
			audio := s.toAudio(track)
			audios = append(audios, &audio)
		}
		return models.PlaylistWithAudios{Playlist: s.toPlaylist(playlist), Audios: audios}, nil
	})
}

func (s *LocalService) AudioPlaylistsStatus(ctx context.Context, audioURI string) Stream[[]models.PlaylistMembership] {
	audioID, err := s.ns.LocalID(audioURI, models.MediaTypeAudio)
	if err != nil {
		return failed[[]models.PlaylistMembership](err)
	}
	return watchRequest(ctx, s.changed, func(ctx context.Context) ([]models.PlaylistMembership, error) {
		playlists, err := s.playlists.List(map[string]any{"sort": models.SortingRule{Strategy: models.SortByName}})
		if err != nil {
			return nil, err
		}
		member, err := s.playlists.Memberships(audioID)
		if err != nil {
			return nil, err
		}
		out := make([]models.PlaylistMembership, 0, len(playlists))
		for _, p := range playlists {
			out = append(out, models.PlaylistMembership{Playlist: s.toPlaylist(p), Member: member[p.ID()]})
		}
		return out, nil
	})
}

func (s *LocalService) CreatePlaylist(ctx context.Context, name string) (string, error) {
	playlist := models.NewLocalPlaylist(name)
	if err := s.playlists.Create(playlist); err != nil {
		return "", err
	}
	s.logger.Info("created playlist", "name", playlist.Name(), "id", playlist.ID())
	return s.ns.PlaylistURI(playlist.ID()), nil
}

func (s *LocalService) RenamePlaylist(ctx context.Context, playlistURI, name string) error {
	id, err := s.ns.LocalID(playlistURI, models.MediaTypePlaylist)
	if err != nil {
		return err
	}
	playlist, err := s.playlists.Get(id)
	if err != nil {
		return err
	}
	playlist.SetName(name)
	return s.playlists.Update(playlist)
}

func (s *LocalService) DeletePlaylist(ctx context.Context, playlistURI string) error {
	id, err := s.ns.LocalID(playlistURI, models.MediaTypePlaylist)
	if err != nil {
		return err
	}
	return s.playlists.Delete(id)
}

// AddAudioToPlaylist only accepts tracks that are currently indexed.
func (s *LocalService) AddAudioToPlaylist(ctx context.Context, playlistURI, audioURI string) error {
	playlistID, err := s.ns.LocalID(playlistURI, models.MediaTypePlaylist)
	if err != nil {
		return err
	}
	audioID, err := s.ns.LocalID(audioURI, models.MediaTypeAudio)
	if err != nil {
		return err
	}
	if _, err := s.library.Track(audioID); err != nil {
		return err
	}
	return s.playlists.AddEntry(playlistID, audioID)
}

func (s *LocalService) RemoveAudioFromPlaylist(ctx context.Context, playlistURI, audioURI string) error {
	playlistID, err := s.ns.LocalID(playlistURI, models.MediaTypePlaylist)
	if err != nil {
		return err
	}
	audioID, err := s.ns.LocalID(audioURI, models.MediaTypeAudio)
	if err != nil {
		return err
	}
	return s.playlists.RemoveEntry(playlistID, audioID)
}

func (s *LocalService) OnAudioPlayed(ctx context.Context, audioURI string) error {
	id, err := s.ns.LocalID(audioURI, models.MediaTypeAudio)
	if err != nil {
		return err
	}
	if _, err := s.library.Track(id); err != nil {
		return err
	}
	return s.stats.RecordPlay(id, time.Now())
}

func (s *LocalService) Status(ctx context.Context) Stream[[]models.DiagnosticInfo] {
	return watchRequest(ctx, s.changed, func(ctx context.Context) ([]models.DiagnosticInfo, error) {
		info := []models.DiagnosticInfo{
			{Key: "provider", Value: models.LocalProviderID.String()},
			{Key: "library_paths", Value: cmp.Or(strings.Join(s.paths, string(filepath.ListSeparator)), "(none)")},
		}
		counts, err := s.library.Counts()
		if err != nil {
			return append(info, models.DiagnosticInfo{Key: "error", Value: err.Error()}), nil
		}
		return append(info,
			models.DiagnosticInfo{Key: "tracks", Value: strconv.Itoa(counts.Tracks)},
			models.DiagnosticInfo{Key: "albums", Value: strconv.Itoa(counts.Albums)},
			models.DiagnosticInfo{Key: "artists", Value: strconv.Itoa(counts.Artists)},
			models.DiagnosticInfo{Key: "genres", Value: strconv.Itoa(counts.Genres)},
		), nil
	})
}

// Close is a no-op; the store belongs to the caller.
func (s *LocalService) Close() error { return nil }

// statTracks resolves the ids returned by list into tracks, keeping its order and dropping ids
// no longer indexed.
func (s *LocalService) statTracks(list func(int) ([]string, error)) ([]models.LibraryTrack, error) {
	ids, err := list(localActivityLimit)
	if err != nil {
		return nil, err
	}
	byID, err := s.library.TracksByIDs(ids)
	if err != nil {
		return nil, err
	}
	out := make([]models.LibraryTrack, 0, len(ids))
	for _, id := range ids {
		if t, ok := byID[id]; ok {
			out = append(out, t)
		}
	}
	return out, nil
}

func (s *LocalService) audioItems(tracks []models.LibraryTrack) []models.MediaItem {
	items := make([]models.MediaItem, 0, len(tracks))
	for _, t := range tracks {
		items = append(items, s.toAudio(t))
	}
	return items
}

func (s *LocalService) toAudio(t models.LibraryTrack) models.Audio {
	audio := models.Audio{
		URI:         s.ns.AudioURI(t.ID),
		PlaybackURI: (&url.URL{Scheme: "file", Path: filepath.ToSlash(t.Path)}).String(),
		MimeType:    cmp.Or(t.MimeType, mimeType(filepath.Ext(t.Path))),
		Title:       t.Title,
		Type:        models.AudioTypeMusic,
		DurationMs:  t.DurationMs,
		ArtistName:  t.Artist,
		AlbumTitle:  t.Album,
		DiscNumber:  t.DiscNumber,
		TrackNumber: t.TrackNumber,
		GenreName:   t.Genre,
		Year:        t.Year,
	}
	if t.ArtistID != "" {
		audio.ArtistURI = s.ns.ArtistURI(t.ArtistID)
	}
	if t.AlbumID != "" {
		audio.AlbumURI = s.ns.AlbumURI(t.AlbumID)
	}
	if t.GenreID != "" {
		audio.GenreURI = s.ns.GenreURI(t.GenreID)
	}
	return audio
}

func (s *LocalService) toAlbum(a models.LibraryAlbum) models.Album {
	album := models.Album{URI: s.ns.AlbumURI(a.ID), Title: a.Title, ArtistName: a.ArtistName, Year: a.Year}
	if a.ArtistID != "" {
		album.ArtistURI = s.ns.ArtistURI(a.ArtistID)
	}
	return album
}

func (s *LocalService) toArtist(n models.LibraryName) models.Artist {
	return models.Artist{URI: s.ns.ArtistURI(n.ID), Name: n.Name}
}

func (s *LocalService) toGenre(n models.LibraryName) models.Genre {
	return models.Genre{URI: s.ns.GenreURI(n.ID), Name: n.Name}
}

func (s *LocalService) toPlaylist(p *models.LocalPlaylist) models.Playlist {
	return models.Playlist{URI: s.ns.PlaylistURI(p.ID()), Name: p.Name()}
}
