package tasks

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"path"
	"strings"

	"github.com/desertthunder/tunebox/internal/formatter"
	"github.com/desertthunder/tunebox/internal/models"
	"github.com/desertthunder/tunebox/internal/services"
	"github.com/desertthunder/tunebox/internal/shared"
)

// PlaylistReader reads a playlist with its entries. The registry and every backend implement it.
type PlaylistReader interface {
	Playlist(ctx context.Context, uri string) services.Stream[models.PlaylistWithAudios]
}

// PlaylistWriter is the part of a backend that importing needs.
type PlaylistWriter interface {
	IsCompatible(uri string) bool
	Search(ctx context.Context, query string) services.Stream[[]models.MediaItem]
	CreatePlaylist(ctx context.Context, name string) (string, error)
	AddAudioToPlaylist(ctx context.Context, playlistURI, audioURI string) error
}

// ExportResult summarizes a playlist export.
type ExportResult struct {
	Name        string
	Written     int
	Unavailable int // entries the backend no longer has
}

// ImportResult summarizes a playlist import.
type ImportResult struct {
	PlaylistURI string
	Name        string
	Added       int
	Skipped     int                  // remote entries dropped by the parser
	Unresolved  []formatter.M3UEntry // entries with no matching audio
}

// ExportPlaylist writes the playlist at uri to w as M3U.
//
// Local audio is written as its file path. Other audio is written as its URI, which
// [ImportPlaylist] accepts back on the same provider. Playback URLs are never written since they
// may carry credentials.
func ExportPlaylist(ctx context.Context, src PlaylistReader, uri string, w io.Writer, progress chan<- ProgressUpdate) (*ExportResult, error) {
	detail, err := services.Settle(ctx, func(ctx context.Context) services.Stream[models.PlaylistWithAudios] {
		return src.Playlist(ctx, uri)
	})
	if err != nil {
		return nil, err
	}

	result := &ExportResult{Name: detail.Playlist.Name}
	m3u := &formatter.M3U{Title: detail.Playlist.Name}
	total := len(detail.Audios)
	for i, audio := range detail.Audios {
		if audio == nil {
			result.Unavailable++
			continue
		}
		send(progress, exportEntryUpdate(i+1, total, audio.Title))

		display := audio.Title
		if audio.ArtistName != "" {
			display = audio.ArtistName + " - " + audio.Title
		}
		m3u.Entries = append(m3u.Entries, formatter.M3UEntry{
			Location: entryLocation(*audio),
			Display:  display,
			Duration: int(audio.DurationMs / 1000),
		})
	}

	if err := formatter.WriteM3U(w, m3u); err != nil {
		return nil, err
	}
	result.Written = len(m3u.Entries)
	return result, nil
}

func entryLocation(audio models.Audio) string {
	if u, err := url.Parse(audio.PlaybackURI); err == nil && u.Scheme == "file" {
		return u.Path
	}
	return audio.URI
}

// ImportPlaylist reads an M3U playlist from r and recreates it on dst.
//
// name overrides the playlist's own #PLAYLIST title. An entry that is already a URI of dst is
// added as is; any other entry is looked up by searching for its title and matched by file name,
// then by title and artist. The playlist is only created when at least one entry resolves.
func ImportPlaylist(ctx context.Context, dst PlaylistWriter, r io.Reader, name string, progress chan<- ProgressUpdate) (*ImportResult, error) {
	m3u, err := formatter.ParseM3U(r)
	if err != nil {
		return nil, err
	}

	name = strings.TrimSpace(name)
	if name == "" {
		name = m3u.Title
	}
	if name == "" {
		return nil, fmt.Errorf("%w: playlist name", shared.ErrMissingArgument)
	}

	result := &ImportResult{Name: name, Skipped: m3u.Skipped}
	send(progress, parsedPlaylistUpdate(name, len(m3u.Entries), m3u.Skipped))

	resolved := make([]string, 0, len(m3u.Entries))
	for i, entry := range m3u.Entries {
		uri, err := resolveEntry(ctx, dst, entry)
		if err != nil {
			return result, err
		}
		send(progress, resolveEntryUpdate(i+1, len(m3u.Entries), entry.Title(), uri != ""))
		if uri == "" {
			result.Unresolved = append(result.Unresolved, entry)
			continue
		}
		resolved = append(resolved, uri)
	}

	if len(resolved) == 0 {
		return result, fmt.Errorf("%w: no playlist entries could be resolved", shared.ErrNotFound)
	}

	playlistURI, err := dst.CreatePlaylist(ctx, name)
	if err != nil {
		return result, fmt.Errorf("failed to create playlist: %w", err)
	}
	result.PlaylistURI = playlistURI
	send(progress, createPlaylistUpdate(name, playlistURI))

	for _, uri := range resolved {
		if err := dst.AddAudioToPlaylist(ctx, playlistURI, uri); err != nil {
			return result, fmt.Errorf("failed to add %s: %w", uri, err)
		}
		result.Added++
	}
	return result, nil
}

// resolveEntry returns the audio URI entry refers to on dst, or "" when nothing matches.
func resolveEntry(ctx context.Context, dst PlaylistWriter, entry formatter.M3UEntry) (string, error) {
	if dst.IsCompatible(entry.Location) {
		return entry.Location, nil
	}

	title := entry.Title()
	if title == "" {
		return "", nil
	}
	items, err := services.Settle(ctx, func(ctx context.Context) services.Stream[[]models.MediaItem] {
		return dst.Search(ctx, title)
	})
	if errors.Is(err, shared.ErrNotFound) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to search for %q: %w", title, err)
	}

	var byTitle string
	wantTitle := shared.NormalizeKey(title)
	wantBoth := shared.NormalizeKey(title, entry.Artist())
	for _, item := range items {
		audio, ok := item.(models.Audio)
		if !ok {
			continue
		}
		if base := playbackBaseName(audio); base != "" && strings.EqualFold(base, entry.BaseName()) {
			return audio.URI, nil
		}
		if entry.Artist() != "" && shared.NormalizeKey(audio.Title, audio.ArtistName) == wantBoth {
			return audio.URI, nil
		}
		if byTitle == "" && shared.NormalizeKey(audio.Title) == wantTitle {
			byTitle = audio.URI
		}
	}
	return byTitle, nil
}

func playbackBaseName(audio models.Audio) string {
	u, err := url.Parse(audio.PlaybackURI)
	if err != nil || u.Scheme != "file" {
		return ""
	}
	return path.Base(u.Path)
}
