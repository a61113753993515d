package services

import (
	"cmp"
	"context"
	"crypto/md5"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"net/http"
	"net/url"
	"slices"
	"strconv"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/tunebox/internal/models"
	"github.com/desertthunder/tunebox/internal/shared"
	"github.com/desertthunder/tunebox/internal/streams"
	"golang.org/x/oauth2"
)

const subsonicSaltKey = "salt"

// SubsonicService implements [Service] against a Subsonic compatible server (Navidrome, Airsonic, ...).
type SubsonicService struct {
	id     models.ProviderIdentifier
	ns     Namespace
	client *APIClient
	auth   *subsonicAuth
	logger *log.Logger

	// fired after every successful playlist mutation
	playlistsChanged *streams.Signal
}

// subsonicAuth derives the per-request authentication parameters.
//
// Token auth sends t = md5(password + salt) with a fresh salt per login. Legacy auth sends the
// hex encoded password for servers that predate 1.13.0.
type subsonicAuth struct {
	username string
	password string
	client   string
	legacy   bool
}

// NewSubsonicService creates a backend for the server at opts.Endpoint.
func NewSubsonicService(opts RemoteOpts) (*SubsonicService, error) {
	logger := opts.logger()
	auth := &subsonicAuth{
		username: opts.Username,
		password: opts.Password,
		client:   cmp.Or(opts.Client.Name, "tunebox"),
		legacy:   opts.LegacyAuth,
	}

	client, err := NewAPIClient(opts.apiClientOpts(auth, logger))
	if err != nil {
		return nil, err
	}

	return &SubsonicService{
		id:     opts.ID,
		ns:     ProviderNamespace(opts.ID, opts.Endpoint),
		client: client,
		auth:   auth,
		logger: logger,

		playlistsChanged: streams.NewSignal(),
	}, nil
}

// Login derives a token and checks it against ping.view.
func (a *subsonicAuth) Login(ctx context.Context, c *APIClient) (*oauth2.Token, error) {
	token, err := a.token()
	if err != nil {
		return nil, err
	}

	r := Request{Path: subsonicPath("ping"), Query: a.params(token)}
	resp, err := c.Exchange(ctx, r)
	if err != nil {
		return nil, err
	}
	if _, err := subsonicDecode(r, resp); err != nil {
		return nil, err
	}
	return token, nil
}

func (a *subsonicAuth) Authorize(req *http.Request, token *oauth2.Token) {
	query := req.URL.Query()
	for key, values := range a.params(token) {
		query[key] = values
	}
	req.URL.RawQuery = query.Encode()
}

func (a *subsonicAuth) token() (*oauth2.Token, error) {
	if a.legacy {
		return &oauth2.Token{AccessToken: "enc:" + hex.EncodeToString([]byte(a.password)), TokenType: "legacy"}, nil
	}

	buf := make([]byte, 8)
	if _, err := rand.Read(buf); err != nil {
		return nil, fmt.Errorf("failed to generate salt: %w", err)
	}
	salt := hex.EncodeToString(buf)
	sum := md5.Sum([]byte(a.password + salt))

	token := &oauth2.Token{AccessToken: hex.EncodeToString(sum[:]), TokenType: "salted"}
	return token.WithExtra(map[string]any{subsonicSaltKey: salt}), nil
}

func (a *subsonicAuth) params(token *oauth2.Token) url.Values {
	params := url.Values{
		"u": {a.username},
		"v": {subsonicAPIVersion},
		"c": {a.client},
		"f": {"json"},
	}
	if salt, _ := token.Extra(subsonicSaltKey).(string); salt != "" {
		params.Set("t", token.AccessToken)
		params.Set("s", salt)
	} else {
		params.Set("p", token.AccessToken)
	}
	return params
}

func subsonicPath(endpoint string) []string {
	return []string{"rest", endpoint + ".view"}
}

// subsonicDecode unwraps the envelope. Servers answer failures with 200 and an error body.
func subsonicDecode(r Request, resp *APIResponse) (*subsonicResponse, error) {
	var env subsonicEnvelope
	if err := decodeResponse(r, resp, &env); err != nil {
		return nil, err
	}
	if env.Response.Status == "" {
		return nil, fmt.Errorf("%w: %s has no subsonic-response", shared.ErrInvalidResponse, r.Path[len(r.Path)-1])
	}
	if env.Response.Status != "ok" {
		return nil, subsonicFailure(env.Response.Error)
	}
	return &env.Response, nil
}

// subsonicFailure maps a Subsonic error code to an error kind.
func subsonicFailure(e *subsonicError) error {
	if e == nil {
		return fmt.Errorf("%w: request failed without error details", shared.ErrIO)
	}
	var kind error
	switch e.Code {
	case 40, 50:
		kind = shared.ErrInvalidCredentials
	case 41:
		kind = shared.ErrAuthenticationRequired
	case 70:
		kind = shared.ErrNotFound
	default:
		kind = shared.ErrIO
	}
	return fmt.Errorf("%w: subsonic error %d: %s", kind, e.Code, e.Message)
}

// call invokes endpoint and returns the unwrapped response.
func (s *SubsonicService) call(ctx context.Context, endpoint string, query url.Values) (*subsonicResponse, error) {
	r := Request{Path: subsonicPath(endpoint), Query: query}
	resp, err := s.client.Do(ctx, r)
	if err != nil {
		return nil, err
	}
	return subsonicDecode(r, resp)
}

func (s *SubsonicService) Kind() models.ProviderType { return models.ProviderTypeSubsonic }

func (s *SubsonicService) IsCompatible(uri string) bool { return s.ns.IsCompatible(uri) }

func (s *SubsonicService) ResolveType(uri string) (models.MediaType, error) {
	return s.ns.ResolveType(uri)
}

// Client exposes the underlying HTTP client.
func (s *SubsonicService) Client() *APIClient { return s.client }

// Namespace returns the URI namespace of this provider.
func (s *SubsonicService) Namespace() Namespace { return s.ns }

func (s *SubsonicService) Activity(ctx context.Context) Stream[[]models.ActivityTab] {
	return request(ctx, func(ctx context.Context) ([]models.ActivityTab, error) {
		tabs := []struct{ id, title string }{
			{"newest", "Recently added"},
			{"frequent", "Most played"},
			{"random", "Random"},
		}
		out := make([]models.ActivityTab, 0, len(tabs))
		for _, tab := range tabs {
			albums, err := s.albumList(ctx, tab.id, 20, nil)
			if err != nil {
				return nil, err
			}
			items := make([]models.MediaItem, 0, len(albums))
			for _, a := range albums {
				items = append(items, s.toAlbum(a))
			}
			out = append(out, models.ActivityTab{ID: tab.id, Title: tab.title, Items: items})
		}
		return out, nil
	})
}

// Albums maps the strategy onto an album list type. Lists come back in their natural order
// and are reversed here when the rule asks for the opposite one.
func (s *SubsonicService) Albums(ctx context.Context, rule models.SortingRule) Stream[[]models.Album] {
	listType, descending := subsonicAlbumListType(rule.Strategy)
	return request(ctx, func(ctx context.Context) ([]models.Album, error) {
		albums, err := s.albumList(ctx, listType, 500, nil)
		if err != nil {
			return nil, err
		}
		out := mapSlice(albums, s.toAlbum)
		if rule.Reverse != descending {
			slices.Reverse(out)
		}
		return out, nil
	})
}

func (s *SubsonicService) Artists(ctx context.Context, rule models.SortingRule) Stream[[]models.Artist] {
	return request(ctx, func(ctx context.Context) ([]models.Artist, error) {
		resp, err := s.call(ctx, "getArtists", nil)
		if err != nil {
			return nil, err
		}
		out := []models.Artist{}
		if resp.Artists != nil {
			for _, index := range resp.Artists.Index {
				out = append(out, mapSlice(index.Artist, s.toArtist)...)
			}
		}
		sortByName(out, func(a models.Artist) string { return a.Name }, rule.Reverse)
		return out, nil
	})
}

func (s *SubsonicService) Genres(ctx context.Context, rule models.SortingRule) Stream[[]models.Genre] {
	return request(ctx, func(ctx context.Context) ([]models.Genre, error) {
		genres, err := s.genres(ctx)
		if err != nil {
			return nil, err
		}
		out := mapSlice(genres, s.toGenre)
		sortByName(out, func(g models.Genre) string { return g.Name }, rule.Reverse)
		return out, nil
	})
}

func (s *SubsonicService) Playlists(ctx context.Context, rule models.SortingRule) Stream[[]models.Playlist] {
	return watchRequest(ctx, s.playlistsChanged, func(ctx context.Context) ([]models.Playlist, error) {
		playlists, err := s.playlists(ctx)
		if err != nil {
			return nil, err
		}

		switch rule.Strategy {
		case models.SortByCreationDate:
			slices.SortStableFunc(playlists, func(a, b subsonicPlaylist) int { return cmp.Compare(a.Created, b.Created) })
		case models.SortByModificationDate:
			slices.SortStableFunc(playlists, func(a, b subsonicPlaylist) int { return cmp.Compare(a.Changed, b.Changed) })
		default:
			slices.SortStableFunc(playlists, func(a, b subsonicPlaylist) int {
				return cmp.Compare(strings.ToLower(a.Name), strings.ToLower(b.Name))
			})
		}
		if rule.Reverse {
			slices.Reverse(playlists)
		}
		return mapSlice(playlists, s.toPlaylist), nil
	})
}

func (s *SubsonicService) Search(ctx context.Context, query string) Stream[[]models.MediaItem] {
	return request(ctx, func(ctx context.Context) ([]models.MediaItem, error) {
		resp, err := s.call(ctx, "search3", url.Values{
			"query":       {query},
			"artistCount": {"20"},
			"albumCount":  {"20"},
			"songCount":   {"50"},
		})
		if err != nil {
			return nil, err
		}

		results := []models.MediaItem{}
		if resp.SearchResult3 == nil {
			return results, nil
		}
		for _, a := range resp.SearchResult3.Artist {
			results = append(results, s.toArtist(a))
		}
		for _, a := range resp.SearchResult3.Album {
			results = append(results, s.toAlbum(a))
		}
		for _, song := range resp.SearchResult3.Song {
			results = append(results, s.toAudio(song))
		}
		return results, nil
	})
}

func (s *SubsonicService) Audio(ctx context.Context, uri string) Stream[models.Audio] {
	id, err := s.ns.LocalID(uri, models.MediaTypeAudio)
	if err != nil {
		return failed[models.Audio](err)
	}
	return request(ctx, func(ctx context.Context) (models.Audio, error) {
		resp, err := s.call(ctx, "getSong", url.Values{"id": {id}})
		if err != nil {
			return models.Audio{}, err
		}
		if resp.Song == nil {
			return models.Audio{}, fmt.Errorf("%w: song %s", shared.ErrNotFound, id)
		}
		return s.toAudio(*resp.Song), nil
	})
}

func (s *SubsonicService) Album(ctx context.Context, uri string) Stream[models.AlbumWithTracks] {
	id, err := s.ns.LocalID(uri, models.MediaTypeAlbum)
	if err != nil {
		return failed[models.AlbumWithTracks](err)
	}
	return request(ctx, func(ctx context.Context) (models.AlbumWithTracks, error) {
		resp, err := s.call(ctx, "getAlbum", url.Values{"id": {id}})
		if err != nil {
			return models.AlbumWithTracks{}, err
		}
		if resp.Album == nil {
			return models.AlbumWithTracks{}, fmt.Errorf("%w: album %s", shared.ErrNotFound, id)
		}
		return models.AlbumWithTracks{Album: s.toAlbum(*resp.Album), Tracks: mapSlice(resp.Album.Song, s.toAudio)}, nil
	})
}

func (s *SubsonicService) Artist(ctx context.Context, uri string) Stream[models.ArtistWithWorks] {
	id, err := s.ns.LocalID(uri, models.MediaTypeArtist)
	if err != nil {
		return failed[models.ArtistWithWorks](err)
	}
	return request(ctx, func(ctx context.Context) (models.ArtistWithWorks, error) {
		resp, err := s.call(ctx, "getArtist", url.Values{"id": {id}})
		if err != nil {
			return models.ArtistWithWorks{}, err
		}
		if resp.Artist == nil {
			return models.ArtistWithWorks{}, fmt.Errorf("%w: artist %s", shared.ErrNotFound, id)
		}
		return models.ArtistWithWorks{
			Artist: s.toArtist(*resp.Artist),
			Works: models.ArtistWorks{
				Albums:            mapSlice(resp.Artist.Album, s.toAlbum),
				AppearsInAlbum:    []models.Album{},
				AppearsInPlaylist: []models.Playlist{},
			},
		}, nil
	})
}

// Genre uses the genre name as its id; Subsonic has no genre ids.
func (s *SubsonicService) Genre(ctx context.Context, uri string) Stream[models.GenreWithContent] {
	name, err := s.ns.LocalID(uri, models.MediaTypeGenre)
	if err != nil {
		return failed[models.GenreWithContent](err)
	}
	return request(ctx, func(ctx context.Context) (models.GenreWithContent, error) {
		genres, err := s.genres(ctx)
		if err != nil {
			return models.GenreWithContent{}, err
		}
		idx := slices.IndexFunc(genres, func(g subsonicGenre) bool { return g.Value == name })
		if idx < 0 {
			return models.GenreWithContent{}, fmt.Errorf("%w: genre %s", shared.ErrNotFound, name)
		}

		albums, err := s.albumList(ctx, "byGenre", 500, url.Values{"genre": {name}})
		if err != nil {
			return models.GenreWithContent{}, err
		}
		resp, err := s.call(ctx, "getSongsByGenre", url.Values{"genre": {name}, "count": {"500"}})
		if err != nil {
			return models.GenreWithContent{}, err
		}
		var songs []subsonicSong
		if resp.SongsByGenre != nil {
			songs = resp.SongsByGenre.Song
		}

		return models.GenreWithContent{
			Genre: s.toGenre(genres[idx]),
			Content: models.GenreContent{
				AppearsInAlbums:    mapSlice(albums, s.toAlbum),
				AppearsInPlaylists: []models.Playlist{},
				Audios:             mapSlice(songs, s.toAudio),
			},
		}, nil
	})
}

func (s *SubsonicService) Playlist(ctx context.Context, uri string) Stream[models.PlaylistWithAudios] {
	id, err := s.ns.LocalID(uri, models.MediaTypePlaylist)
	if err != nil {
		return failed[models.PlaylistWithAudios](err)
	}
	return watchRequest(ctx, s.playlistsChanged, func(ctx context.Context) (models.PlaylistWithAudios, error) {
		playlist, err := s.playlist(ctx, id)
		if err != nil {
			return models.PlaylistWithAudios{}, err
		}
		audios := make([]*models.Audio, 0, len(playlist.Entry))
		for _, entry := range playlist.Entry {
			audio := s.toAudio(entry)
			audios = append(audios, &audio)
		}
		return models.PlaylistWithAudios{Playlist: s.toPlaylist(*playlist), Audios: audios}, nil
	})
}

func (s *SubsonicService) AudioPlaylistsStatus(ctx context.Context, audioURI string) Stream[[]models.PlaylistMembership] {
	audioID, err := s.ns.LocalID(audioURI, models.MediaTypeAudio)
	if err != nil {
		return failed[[]models.PlaylistMembership](err)
	}
	return watchRequest(ctx, s.playlistsChanged, func(ctx context.Context) ([]models.PlaylistMembership, error) {
		playlists, err := s.playlists(ctx)
		if err != nil {
			return nil, err
		}
		out := make([]models.PlaylistMembership, 0, len(playlists))
		for _, p := range playlists {
			full, err := s.playlist(ctx, p.ID)
			if err != nil {
				return nil, err
			}
			member := slices.ContainsFunc(full.Entry, func(e subsonicSong) bool { return e.ID == audioID })
			out = append(out, models.PlaylistMembership{Playlist: s.toPlaylist(p), Member: member})
		}
		return out, nil
	})
}

// CreatePlaylist falls back to a lookup by name on servers older than 1.14.0, which answer
// createPlaylist with an empty body.
func (s *SubsonicService) CreatePlaylist(ctx context.Context, name string) (string, error) {
	resp, err := s.call(ctx, "createPlaylist", url.Values{"name": {name}})
	if err != nil {
		return "", err
	}
	s.playlistsChanged.Notify()
	if resp.Playlist != nil && resp.Playlist.ID != "" {
		return s.ns.PlaylistURI(resp.Playlist.ID), nil
	}

	playlists, err := s.playlists(ctx)
	if err != nil {
		return "", err
	}
	for _, p := range slices.Backward(playlists) {
		if p.Name == name {
			return s.ns.PlaylistURI(p.ID), nil
		}
	}
	return "", fmt.Errorf("%w: created playlist %q not listed", shared.ErrInvalidResponse, name)
}

func (s *SubsonicService) RenamePlaylist(ctx context.Context, playlistURI, name string) error {
	id, err := s.ns.LocalID(playlistURI, models.MediaTypePlaylist)
	if err != nil {
		return err
	}
	if _, err := s.call(ctx, "updatePlaylist", url.Values{"playlistId": {id}, "name": {name}}); err != nil {
		return err
	}
	s.playlistsChanged.Notify()
	return nil
}

func (s *SubsonicService) DeletePlaylist(ctx context.Context, playlistURI string) error {
	id, err := s.ns.LocalID(playlistURI, models.MediaTypePlaylist)
	if err != nil {
		return err
	}
	if _, err := s.call(ctx, "deletePlaylist", url.Values{"id": {id}}); err != nil {
		return err
	}
	s.playlistsChanged.Notify()
	return nil
}

// AddAudioToPlaylist appends by replacing the whole entry list. Concurrent writers race; last one wins.
func (s *SubsonicService) AddAudioToPlaylist(ctx context.Context, playlistURI, audioURI string) error {
	return s.rewritePlaylist(ctx, playlistURI, audioURI, func(ids []string, audioID string) ([]string, bool) {
		return append(ids, audioID), true
	})
}

// RemoveAudioFromPlaylist drops the first occurrence of the audio and replaces the entry list.
func (s *SubsonicService) RemoveAudioFromPlaylist(ctx context.Context, playlistURI, audioURI string) error {
	return s.rewritePlaylist(ctx, playlistURI, audioURI, func(ids []string, audioID string) ([]string, bool) {
		idx := slices.Index(ids, audioID)
		if idx < 0 {
			return ids, false
		}
		return slices.Delete(ids, idx, idx+1), true
	})
}

func (s *SubsonicService) OnAudioPlayed(ctx context.Context, audioURI string) error {
	id, err := s.ns.LocalID(audioURI, models.MediaTypeAudio)
	if err != nil {
		return err
	}
	_, err = s.call(ctx, "scrobble", url.Values{"id": {id}, "submission": {"true"}})
	return err
}

func (s *SubsonicService) Status(ctx context.Context) Stream[[]models.DiagnosticInfo] {
	return request(ctx, func(ctx context.Context) ([]models.DiagnosticInfo, error) {
		info := []models.DiagnosticInfo{
			{Key: "provider", Value: s.id.String()},
			{Key: "endpoint", Value: s.client.BaseURL().String()},
			{Key: "legacy_auth", Value: strconv.FormatBool(s.auth.legacy)},
		}

		ping, err := s.call(ctx, "ping", nil)
		if err != nil {
			return append(info, models.DiagnosticInfo{Key: "error", Value: err.Error()}), nil
		}
		info = append(info, models.DiagnosticInfo{Key: "api_version", Value: ping.Version})
		if ping.Type != "" {
			info = append(info, models.DiagnosticInfo{Key: "server", Value: strings.TrimSpace(ping.Type + " " + ping.ServerVersion)})
		}

		license, err := s.call(ctx, "getLicense", nil)
		switch {
		case err != nil:
			info = append(info, models.DiagnosticInfo{Key: "license", Value: err.Error()})
		case license.License != nil:
			info = append(info, models.DiagnosticInfo{Key: "license", Value: strconv.FormatBool(license.License.Valid)})
		}
		return info, nil
	})
}

func (s *SubsonicService) Close() error {
	return s.client.Close()
}

// rewritePlaylist reads the entries of a playlist, edits them and submits the result through
// createPlaylist, which replaces the songs of an existing playlist when given its id.
func (s *SubsonicService) rewritePlaylist(ctx context.Context, playlistURI, audioURI string, edit func([]string, string) ([]string, bool)) error {
	playlistID, err := s.ns.LocalID(playlistURI, models.MediaTypePlaylist)
	if err != nil {
		return err
	}
	audioID, err := s.ns.LocalID(audioURI, models.MediaTypeAudio)
	if err != nil {
		return err
	}

	playlist, err := s.playlist(ctx, playlistID)
	if err != nil {
		return err
	}
	ids := make([]string, 0, len(playlist.Entry)+1)
	for _, e := range playlist.Entry {
		ids = append(ids, e.ID)
	}

	ids, changed := edit(ids, audioID)
	if !changed {
		return nil
	}
	if _, err := s.call(ctx, "createPlaylist", url.Values{"playlistId": {playlistID}, "songId": ids}); err != nil {
		return err
	}
	s.playlistsChanged.Notify()
	return nil
}

func (s *SubsonicService) albumList(ctx context.Context, listType string, size int, extra url.Values) ([]subsonicAlbum, error) {
	query := url.Values{"type": {listType}, "size": {strconv.Itoa(size)}}
	for key, values := range extra {
		query[key] = values
	}
	resp, err := s.call(ctx, "getAlbumList2", query)
	if err != nil {
		return nil, err
	}
	if resp.AlbumList2 == nil {
		return []subsonicAlbum{}, nil
	}
	return resp.AlbumList2.Album, nil
}

func (s *SubsonicService) genres(ctx context.Context) ([]subsonicGenre, error) {
	resp, err := s.call(ctx, "getGenres", nil)
	if err != nil {
		return nil, err
	}
	if resp.Genres == nil {
		return []subsonicGenre{}, nil
	}
	return resp.Genres.Genre, nil
}

func (s *SubsonicService) playlists(ctx context.Context) ([]subsonicPlaylist, error) {
	resp, err := s.call(ctx, "getPlaylists", nil)
	if err != nil {
		return nil, err
	}
	if resp.Playlists == nil {
		return []subsonicPlaylist{}, nil
	}
	return resp.Playlists.Playlist, nil
}

func (s *SubsonicService) playlist(ctx context.Context, id string) (*subsonicPlaylist, error) {
	resp, err := s.call(ctx, "getPlaylist", url.Values{"id": {id}})
	if err != nil {
		return nil, err
	}
	if resp.Playlist == nil {
		return nil, fmt.Errorf("%w: playlist %s", shared.ErrNotFound, id)
	}
	return resp.Playlist, nil
}

// subsonicAlbumListType returns the list type for a strategy and whether that list is newest,
// or most, first.
func subsonicAlbumListType(strategy models.SortingStrategy) (string, bool) {
	switch strategy {
	case models.SortByCreationDate:
		return "newest", true
	case models.SortByModificationDate:
		return "recent", true
	case models.SortByPlayCount:
		return "frequent", true
	case models.SortByArtist:
		return "alphabeticalByArtist", false
	default:
		return "alphabeticalByName", false
	}
}

// authenticatedURL signs a media URL with the current credential so a player can open it
// directly. Before the first login the URL is returned unsigned.
func (s *SubsonicService) authenticatedURL(endpoint string, query url.Values) string {
	if cred := s.client.Credential(); cred != nil {
		for key, values := range s.auth.params(cred.Token) {
			query[key] = values
		}
	}
	return s.client.URL(subsonicPath(endpoint), query)
}

func (s *SubsonicService) thumbnail(coverArt string) *models.Thumbnail {
	if coverArt == "" {
		return nil
	}
	return &models.Thumbnail{URI: s.authenticatedURL("getCoverArt", url.Values{"id": {coverArt}})}
}

func (s *SubsonicService) toAlbum(a subsonicAlbum) models.Album {
	album := models.Album{
		URI:        s.ns.AlbumURI(a.ID),
		Title:      a.Name,
		ArtistName: a.Artist,
		Year:       a.Year,
		Thumbnail:  s.thumbnail(a.CoverArt),
	}
	if a.ArtistID != "" {
		album.ArtistURI = s.ns.ArtistURI(a.ArtistID)
	}
	return album
}

func (s *SubsonicService) toArtist(a subsonicArtist) models.Artist {
	return models.Artist{URI: s.ns.ArtistURI(a.ID), Name: a.Name, Thumbnail: s.thumbnail(a.CoverArt)}
}

func (s *SubsonicService) toGenre(g subsonicGenre) models.Genre {
	return models.Genre{URI: s.ns.GenreURI(g.Value), Name: g.Value}
}

func (s *SubsonicService) toPlaylist(p subsonicPlaylist) models.Playlist {
	return models.Playlist{URI: s.ns.PlaylistURI(p.ID), Name: p.Name, Thumbnail: s.thumbnail(p.CoverArt)}
}

func (s *SubsonicService) toAudio(song subsonicSong) models.Audio {
	audio := models.Audio{
		URI:         s.ns.AudioURI(song.ID),
		PlaybackURI: s.authenticatedURL("stream", url.Values{"id": {song.ID}}),
		MimeType:    cmp.Or(song.ContentType, mimeType(song.Suffix)),
		Title:       song.Title,
		Type:        models.AudioTypeMusic,
		DurationMs:  song.Duration * 1000,
		ArtistName:  song.Artist,
		AlbumTitle:  song.Album,
		DiscNumber:  song.DiscNumber,
		TrackNumber: song.Track,
		GenreName:   song.Genre,
		Year:        song.Year,
	}
	if song.ArtistID != "" {
		audio.ArtistURI = s.ns.ArtistURI(song.ArtistID)
	}
	if song.AlbumID != "" {
		audio.AlbumURI = s.ns.AlbumURI(song.AlbumID)
	}
	if song.Genre != "" {
		audio.GenreURI = s.ns.GenreURI(song.Genre)
	}
	return audio
}

func mapSlice[S, T any](items []S, fn func(S) T) []T {
	out := make([]T, 0, len(items))
	for _, item := range items {
		out = append(out, fn(item))
	}
	return out
}

func sortByName[T any](items []T, name func(T) string, reverse bool) {
	slices.SortStableFunc(items, func(a, b T) int {
		return cmp.Compare(strings.ToLower(name(a)), strings.ToLower(name(b)))
	})
	if reverse {
		slices.Reverse(items)
	}
}
