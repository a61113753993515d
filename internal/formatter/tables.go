package formatter

import (
	"fmt"
	"strconv"

	"github.com/desertthunder/tunebox/internal/models"
	"github.com/desertthunder/tunebox/internal/shared"
)

// Tabulate returns the table rendering of the listing and detail types.
func Tabulate(v any) (*Table, error) {
	switch v := v.(type) {
	case *Table:
		return v, nil
	case Table:
		return &v, nil
	case []models.Album:
		return albumsTable("", v), nil
	case []models.Artist:
		return namedTable("", v, func(a models.Artist) (string, string) { return a.Name, a.URI }), nil
	case []models.Genre:
		return namedTable("", v, func(g models.Genre) (string, string) { return g.Name, g.URI }), nil
	case []models.Playlist:
		return namedTable("", v, func(p models.Playlist) (string, string) { return p.Name, p.URI }), nil
	case []models.Audio:
		return audiosTable("", ptrs(v)), nil
	case []models.MediaItem:
		return itemsTable(v), nil
	case []models.ActivityTab:
		return activityTable(v), nil
	case []models.Provider:
		return providersTable(v), nil
	case []models.DiagnosticInfo:
		return diagnosticsTable(v), nil
	case []models.PlaylistMembership:
		return membershipTable(v), nil
	case models.Audio:
		return audioTable(v), nil
	case models.AlbumWithTracks:
		title := v.Album.Title
		if v.Album.ArtistName != "" {
			title += " - " + v.Album.ArtistName
		}
		return audiosTable(title, ptrs(v.Tracks)), nil
	case models.PlaylistWithAudios:
		return audiosTable(v.Playlist.Name, v.Audios), nil
	case models.ArtistWithWorks:
		t := sectionTable(v.Artist.Name)
		addSection(t, "album", v.Works.Albums)
		addSection(t, "appears in album", v.Works.AppearsInAlbum)
		addSection(t, "appears in playlist", v.Works.AppearsInPlaylist)
		return t, nil
	case models.GenreWithContent:
		t := sectionTable(v.Genre.Name)
		addSection(t, "album", v.Content.AppearsInAlbums)
		addSection(t, "playlist", v.Content.AppearsInPlaylists)
		addSection(t, "audio", v.Content.Audios)
		return t, nil
	default:
		return nil, fmt.Errorf("%w: cannot render %T as a table", shared.ErrInvalidArgument, v)
	}
}

func ptrs[T any](items []T) []*T {
	out := make([]*T, len(items))
	for i := range items {
		out[i] = &items[i]
	}
	return out
}

func year(y int) string {
	if y <= 0 {
		return ""
	}
	return strconv.Itoa(y)
}

func albumsTable(title string, albums []models.Album) *Table {
	t := &Table{Title: title, Headers: []string{"Title", "Artist", "Year", "URI"}}
	for _, a := range albums {
		t.Rows = append(t.Rows, []string{a.Title, a.ArtistName, year(a.Year), a.URI})
	}
	return t
}

func namedTable[T any](title string, items []T, fields func(T) (string, string)) *Table {
	t := &Table{Title: title, Headers: []string{"Name", "URI"}}
	for _, item := range items {
		name, uri := fields(item)
		t.Rows = append(t.Rows, []string{name, uri})
	}
	return t
}

// audiosTable numbers entries by position. A nil entry is shown as unavailable.
func audiosTable(title string, audios []*models.Audio) *Table {
	t := &Table{Title: title, Headers: []string{"#", "Title", "Artist", "Album", "Duration", "URI"}}
	for i, a := range audios {
		n := strconv.Itoa(i + 1)
		if a == nil {
			t.Rows = append(t.Rows, []string{n, "(unavailable)", "", "", "", ""})
			continue
		}
		t.Rows = append(t.Rows, []string{n, a.Title, a.ArtistName, a.AlbumTitle, shared.FormatDuration(a.DurationMs), a.URI})
	}
	return t
}

func audioTable(a models.Audio) *Table {
	t := &Table{Title: a.Title, Headers: []string{"Field", "Value"}}
	add := func(k, v string) {
		if v != "" {
			t.Rows = append(t.Rows, []string{k, v})
		}
	}
	add("uri", a.URI)
	add("artist", a.ArtistName)
	add("album", a.AlbumTitle)
	add("genre", a.GenreName)
	add("year", year(a.Year))
	if a.TrackNumber > 0 {
		add("track", strconv.Itoa(a.TrackNumber))
	}
	add("duration", shared.FormatDuration(a.DurationMs))
	add("type", string(a.Type))
	add("mime type", a.MimeType)
	add("playback", a.PlaybackURI)
	return t
}

func itemsTable(items []models.MediaItem) *Table {
	t := &Table{Headers: []string{"Type", "Title", "URI"}}
	for _, item := range items {
		t.Rows = append(t.Rows, []string{item.MediaType().String(), item.DisplayTitle(), item.ItemURI()})
	}
	return t
}

func activityTable(tabs []models.ActivityTab) *Table {
	t := &Table{Headers: []string{"Tab", "Type", "Title", "URI"}}
	for _, tab := range tabs {
		for _, item := range tab.Items {
			t.Rows = append(t.Rows, []string{tab.Title, item.MediaType().String(), item.DisplayTitle(), item.ItemURI()})
		}
	}
	return t
}

func providersTable(providers []models.Provider) *Table {
	t := &Table{Headers: []string{"ID", "Type", "Name"}}
	for _, p := range providers {
		t.Rows = append(t.Rows, []string{p.Identifier().String(), p.Type.String(), p.Name})
	}
	return t
}

func diagnosticsTable(info []models.DiagnosticInfo) *Table {
	t := &Table{Headers: []string{"Key", "Value"}}
	for _, d := range info {
		t.Rows = append(t.Rows, []string{d.Key, d.Value})
	}
	return t
}

func membershipTable(ms []models.PlaylistMembership) *Table {
	t := &Table{Headers: []string{"Member", "Name", "URI"}}
	for _, m := range ms {
		member := ""
		if m.Member {
			member = "yes"
		}
		t.Rows = append(t.Rows, []string{member, m.Playlist.Name, m.Playlist.URI})
	}
	return t
}

func sectionTable(title string) *Table {
	return &Table{Title: title, Headers: []string{"Section", "Title", "URI"}}
}

func addSection[T models.MediaItem](t *Table, section string, items []T) {
	for _, item := range items {
		t.Rows = append(t.Rows, []string{section, item.DisplayTitle(), item.ItemURI()})
	}
}
