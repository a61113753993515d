package services

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"slices"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/tunebox/internal/models"
	"github.com/desertthunder/tunebox/internal/shared"
	"github.com/desertthunder/tunebox/internal/streams"
	"github.com/google/uuid"
	"golang.org/x/oauth2"
)

const jellyfinUserIDKey = "user_id"

// JellyfinService implements [Service] against a Jellyfin (or Emby) server.
type JellyfinService struct {
	id               models.ProviderIdentifier
	ns               Namespace
	client           *APIClient
	playlistsChanged *streams.Signal
	logger           *log.Logger
}

// jellyfinAuth logs in with AuthenticateByName and sends the token in the MediaBrowser scheme.
type jellyfinAuth struct {
	username string
	password string
	header   string
}

// NewJellyfinService creates a backend for the server at opts.Endpoint.
func NewJellyfinService(opts RemoteOpts) (*JellyfinService, error) {
	logger := opts.logger()
	deviceID := opts.Client.DeviceID
	if deviceID == "" {
		deviceID = shared.GenerateID()
	}

	auth := &jellyfinAuth{
		username: opts.Username,
		password: opts.Password,
		header: fmt.Sprintf(`MediaBrowser Client="%s", Device="%s", DeviceId="%s", Version="%s"`,
			opts.Client.Name, opts.Client.Name, deviceID, opts.Client.Version),
	}

	client, err := NewAPIClient(opts.apiClientOpts(auth, logger))
	if err != nil {
		return nil, err
	}

	return &JellyfinService{
		id:               opts.ID,
		ns:               ProviderNamespace(opts.ID, opts.Endpoint),
		client:           client,
		playlistsChanged: streams.NewSignal(),
		logger:           logger,
	}, nil
}

func (a *jellyfinAuth) Login(ctx context.Context, c *APIClient) (*oauth2.Token, error) {
	resp, err := c.Exchange(ctx, Request{
		Method: http.MethodPost,
		Path:   []string{"Users", "AuthenticateByName"},
		Body:   jellyfinAuthenticateByName{Username: a.username, Pw: a.password},
		Header: http.Header{"X-Emby-Authorization": {a.header}},
	})
	if err != nil {
		return nil, err
	}

	switch kind := shared.HTTPStatusError(resp.StatusCode); {
	case resp.StatusCode == http.StatusUnauthorized:
		return nil, fmt.Errorf("%w: server rejected user %s", shared.ErrInvalidCredentials, a.username)
	case kind != nil:
		return nil, fmt.Errorf("%w: authentication returned %d", kind, resp.StatusCode)
	}

	var result jellyfinAuthenticationResult
	if err := json.Unmarshal(resp.Body, &result); err != nil {
		return nil, fmt.Errorf("%w: authentication result: %w", shared.ErrDeserialization, err)
	}
	if result.AccessToken == "" {
		return nil, fmt.Errorf("%w: authentication result has no access token", shared.ErrInvalidResponse)
	}

	token := &oauth2.Token{AccessToken: result.AccessToken, TokenType: "MediaBrowser"}
	return token.WithExtra(map[string]any{jellyfinUserIDKey: result.User.ID}), nil
}

func (a *jellyfinAuth) Authorize(req *http.Request, token *oauth2.Token) {
	req.Header.Set("Authorization", fmt.Sprintf(`MediaBrowser Token="%s"`, token.AccessToken))
}

func (s *JellyfinService) Kind() models.ProviderType { return models.ProviderTypeJellyfin }

func (s *JellyfinService) IsCompatible(uri string) bool { return s.ns.IsCompatible(uri) }

func (s *JellyfinService) ResolveType(uri string) (models.MediaType, error) {
	return s.ns.ResolveType(uri)
}

// Client exposes the underlying HTTP client.
func (s *JellyfinService) Client() *APIClient { return s.client }

// Namespace returns the URI namespace of this provider.
func (s *JellyfinService) Namespace() Namespace { return s.ns }

func (s *JellyfinService) Activity(ctx context.Context) Stream[[]models.ActivityTab] {
	return succeeded([]models.ActivityTab{})
}

func (s *JellyfinService) Albums(ctx context.Context, rule models.SortingRule) Stream[[]models.Album] {
	return request(ctx, func(ctx context.Context) ([]models.Album, error) {
		query := url.Values{"IncludeItemTypes": {jellyfinTypeMusicAlbum}, "Recursive": {"true"}}
		items, err := s.items(ctx, []string{"Items"}, withSort(query, rule))
		return mapSlice(items, s.toAlbum), err
	})
}

func (s *JellyfinService) Artists(ctx context.Context, rule models.SortingRule) Stream[[]models.Artist] {
	return request(ctx, func(ctx context.Context) ([]models.Artist, error) {
		items, err := s.items(ctx, []string{"Artists"}, withSort(url.Values{"Recursive": {"true"}}, rule))
		return mapSlice(items, s.toArtist), err
	})
}

func (s *JellyfinService) Genres(ctx context.Context, rule models.SortingRule) Stream[[]models.Genre] {
	return request(ctx, func(ctx context.Context) ([]models.Genre, error) {
		items, err := s.items(ctx, []string{"Genres"}, withSort(url.Values{"Recursive": {"true"}}, rule))
		return mapSlice(items, s.toGenre), err
	})
}

// Playlists re-emits after every playlist mutation made through this backend.
func (s *JellyfinService) Playlists(ctx context.Context, rule models.SortingRule) Stream[[]models.Playlist] {
	return watchRequest(ctx, s.playlistsChanged, func(ctx context.Context) ([]models.Playlist, error) {
		return s.playlists(ctx, rule)
	})
}

func (s *JellyfinService) Search(ctx context.Context, query string) Stream[[]models.MediaItem] {
	return request(ctx, func(ctx context.Context) ([]models.MediaItem, error) {
		items, err := s.items(ctx, []string{"Items"}, url.Values{
			"SearchTerm":       {query},
			"IncludeItemTypes": {"Playlist,MusicAlbum,MusicArtist,MusicGenre,Audio"},
			"Recursive":        {"true"},
		})
		if err != nil {
			return nil, err
		}

		results := make([]models.MediaItem, 0, len(items))
		for _, item := range items {
			switch item.Type {
			case jellyfinTypeMusicAlbum:
				results = append(results, s.toAlbum(item))
			case jellyfinTypeMusicArtist, jellyfinTypePerson:
				results = append(results, s.toArtist(item))
			case jellyfinTypeAudio:
				results = append(results, s.toAudio(item))
			case jellyfinTypeGenre, jellyfinTypeMusicGenre:
				results = append(results, s.toGenre(item))
			case jellyfinTypePlaylist:
				results = append(results, s.toPlaylist(item))
			}
		}
		return results, nil
	})
}

func (s *JellyfinService) Audio(ctx context.Context, uri string) Stream[models.Audio] {
	id, err := s.itemID(uri, models.MediaTypeAudio)
	if err != nil {
		return failed[models.Audio](err)
	}
	return request(ctx, func(ctx context.Context) (models.Audio, error) {
		item, err := s.item(ctx, id)
		if err != nil {
			return models.Audio{}, err
		}
		return s.toAudio(*item), nil
	})
}

func (s *JellyfinService) Album(ctx context.Context, uri string) Stream[models.AlbumWithTracks] {
	id, err := s.itemID(uri, models.MediaTypeAlbum)
	if err != nil {
		return failed[models.AlbumWithTracks](err)
	}
	return request(ctx, func(ctx context.Context) (models.AlbumWithTracks, error) {
		item, err := s.item(ctx, id)
		if err != nil {
			return models.AlbumWithTracks{}, err
		}
		tracks, err := s.items(ctx, []string{"Items"}, url.Values{
			"ParentId": {id},
			"SortBy":   {"ParentIndexNumber,IndexNumber,SortName"},
		})
		if err != nil {
			return models.AlbumWithTracks{}, err
		}
		return models.AlbumWithTracks{Album: s.toAlbum(*item), Tracks: mapSlice(tracks, s.toAudio)}, nil
	})
}

func (s *JellyfinService) Artist(ctx context.Context, uri string) Stream[models.ArtistWithWorks] {
	id, err := s.itemID(uri, models.MediaTypeArtist)
	if err != nil {
		return failed[models.ArtistWithWorks](err)
	}
	return request(ctx, func(ctx context.Context) (models.ArtistWithWorks, error) {
		item, err := s.item(ctx, id)
		if err != nil {
			return models.ArtistWithWorks{}, err
		}
		albums, err := s.items(ctx, []string{"Items"}, url.Values{
			"ArtistIds":        {id},
			"IncludeItemTypes": {jellyfinTypeMusicAlbum},
			"Recursive":        {"true"},
		})
		if err != nil {
			return models.ArtistWithWorks{}, err
		}
		contributions, err := s.items(ctx, []string{"Items"}, url.Values{
			"ContributingArtistIds": {id},
			"IncludeItemTypes":      {jellyfinTypeMusicAlbum},
			"Recursive":             {"true"},
		})
		if err != nil {
			return models.ArtistWithWorks{}, err
		}

		own := make(map[string]bool, len(albums))
		for _, a := range albums {
			own[a.ID] = true
		}
		appears := slices.DeleteFunc(contributions, func(a jellyfinItem) bool { return own[a.ID] })

		return models.ArtistWithWorks{
			Artist: s.toArtist(*item),
			Works: models.ArtistWorks{
				Albums:            mapSlice(albums, s.toAlbum),
				AppearsInAlbum:    mapSlice(appears, s.toAlbum),
				AppearsInPlaylist: []models.Playlist{},
			},
		}, nil
	})
}

func (s *JellyfinService) Genre(ctx context.Context, uri string) Stream[models.GenreWithContent] {
	id, err := s.itemID(uri, models.MediaTypeGenre)
	if err != nil {
		return failed[models.GenreWithContent](err)
	}
	return request(ctx, func(ctx context.Context) (models.GenreWithContent, error) {
		item, err := s.item(ctx, id)
		if err != nil {
			return models.GenreWithContent{}, err
		}
		items, err := s.items(ctx, []string{"Items"}, url.Values{
			"GenreIds":         {id},
			"IncludeItemTypes": {"MusicAlbum,Playlist,Audio"},
			"Recursive":        {"true"},
		})
		if err != nil {
			return models.GenreWithContent{}, err
		}

		content := models.GenreContent{
			AppearsInAlbums:    []models.Album{},
			AppearsInPlaylists: []models.Playlist{},
			Audios:             []models.Audio{},
		}
		for _, it := range items {
			switch it.Type {
			case jellyfinTypeMusicAlbum:
				content.AppearsInAlbums = append(content.AppearsInAlbums, s.toAlbum(it))
			case jellyfinTypePlaylist:
				content.AppearsInPlaylists = append(content.AppearsInPlaylists, s.toPlaylist(it))
			case jellyfinTypeAudio:
				content.Audios = append(content.Audios, s.toAudio(it))
			}
		}
		return models.GenreWithContent{Genre: s.toGenre(*item), Content: content}, nil
	})
}

func (s *JellyfinService) Playlist(ctx context.Context, uri string) Stream[models.PlaylistWithAudios] {
	id, err := s.itemID(uri, models.MediaTypePlaylist)
	if err != nil {
		return failed[models.PlaylistWithAudios](err)
	}
	return watchRequest(ctx, s.playlistsChanged, func(ctx context.Context) (models.PlaylistWithAudios, error) {
		item, err := s.item(ctx, id)
		if err != nil {
			return models.PlaylistWithAudios{}, err
		}
		entries, err := s.playlistItems(ctx, id)
		if err != nil {
			return models.PlaylistWithAudios{}, err
		}
		audios := make([]*models.Audio, 0, len(entries))
		for _, entry := range entries {
			audio := s.toAudio(entry)
			audios = append(audios, &audio)
		}
		return models.PlaylistWithAudios{Playlist: s.toPlaylist(*item), Audios: audios}, nil
	})
}

func (s *JellyfinService) AudioPlaylistsStatus(ctx context.Context, audioURI string) Stream[[]models.PlaylistMembership] {
	audioID, err := s.itemID(audioURI, models.MediaTypeAudio)
	if err != nil {
		return failed[[]models.PlaylistMembership](err)
	}
	return watchRequest(ctx, s.playlistsChanged, func(ctx context.Context) ([]models.PlaylistMembership, error) {
		playlists, err := s.items(ctx, []string{"Items"}, url.Values{
			"IncludeItemTypes": {jellyfinTypePlaylist},
			"Recursive":        {"true"},
			"SortBy":           {"SortName"},
		})
		if err != nil {
			return nil, err
		}

		statuses := make([]models.PlaylistMembership, 0, len(playlists))
		for _, p := range playlists {
			entries, err := s.playlistItems(ctx, p.ID)
			if err != nil {
				return nil, err
			}
			member := slices.ContainsFunc(entries, func(e jellyfinItem) bool { return sameJellyfinID(e.ID, audioID) })
			statuses = append(statuses, models.PlaylistMembership{Playlist: s.toPlaylist(p), Member: member})
		}
		return statuses, nil
	})
}

func (s *JellyfinService) CreatePlaylist(ctx context.Context, name string) (string, error) {
	userID, err := s.userID(ctx)
	if err != nil {
		return "", err
	}

	var result jellyfinCreatePlaylistResult
	body := jellyfinCreatePlaylist{Name: name, IDs: []string{}, UserID: userID, MediaType: jellyfinTypeAudio}
	if err := s.client.Post(ctx, []string{"Playlists"}, nil, body, &result); err != nil {
		return "", err
	}
	if result.ID == "" {
		return "", fmt.Errorf("%w: created playlist has no id", shared.ErrInvalidResponse)
	}

	s.playlistsChanged.Notify()
	return s.ns.PlaylistURI(result.ID), nil
}

func (s *JellyfinService) RenamePlaylist(ctx context.Context, playlistURI, name string) error {
	id, err := s.itemID(playlistURI, models.MediaTypePlaylist)
	if err != nil {
		return err
	}
	if err := s.client.Post(ctx, []string{"Playlists", id}, nil, jellyfinUpdatePlaylist{Name: &name}, nil); err != nil {
		return err
	}
	s.playlistsChanged.Notify()
	return nil
}

func (s *JellyfinService) DeletePlaylist(ctx context.Context, playlistURI string) error {
	id, err := s.itemID(playlistURI, models.MediaTypePlaylist)
	if err != nil {
		return err
	}
	if err := s.client.Delete(ctx, []string{"Items", id}, nil); err != nil {
		return err
	}
	s.playlistsChanged.Notify()
	return nil
}

// AddAudioToPlaylist appends by rewriting the whole item list. Concurrent writers race; last one wins.
func (s *JellyfinService) AddAudioToPlaylist(ctx context.Context, playlistURI, audioURI string) error {
	return s.rewritePlaylist(ctx, playlistURI, audioURI, func(ids []string, audioID string) ([]string, bool) {
		return append(ids, audioID), true
	})
}

// RemoveAudioFromPlaylist drops the first occurrence of the audio and rewrites the item list.
func (s *JellyfinService) RemoveAudioFromPlaylist(ctx context.Context, playlistURI, audioURI string) error {
	return s.rewritePlaylist(ctx, playlistURI, audioURI, func(ids []string, audioID string) ([]string, bool) {
		idx := slices.IndexFunc(ids, func(id string) bool { return sameJellyfinID(id, audioID) })
		if idx < 0 {
			return ids, false
		}
		return slices.Delete(ids, idx, idx+1), true
	})
}

func (s *JellyfinService) OnAudioPlayed(ctx context.Context, audioURI string) error {
	id, err := s.itemID(audioURI, models.MediaTypeAudio)
	if err != nil {
		return err
	}
	userID, err := s.userID(ctx)
	if err != nil {
		return err
	}
	return s.client.Post(ctx, []string{"Users", userID, "PlayedItems", id}, nil, nil, nil)
}

func (s *JellyfinService) Status(ctx context.Context) Stream[[]models.DiagnosticInfo] {
	return request(ctx, func(ctx context.Context) ([]models.DiagnosticInfo, error) {
		info := []models.DiagnosticInfo{
			{Key: "provider", Value: s.id.String()},
			{Key: "endpoint", Value: s.client.BaseURL().String()},
		}

		var system jellyfinSystemInfo
		if err := s.client.Get(ctx, []string{"System", "Info", "Public"}, nil, &system); err != nil {
			return append(info, models.DiagnosticInfo{Key: "error", Value: err.Error()}), nil
		}
		info = append(info,
			models.DiagnosticInfo{Key: "server_name", Value: system.ServerName},
			models.DiagnosticInfo{Key: "server_version", Value: system.Version},
			models.DiagnosticInfo{Key: "operating_system", Value: system.OperatingSystem},
		)
		if cred := s.client.Credential(); cred != nil {
			info = append(info, models.DiagnosticInfo{Key: "token_generation", Value: fmt.Sprint(cred.Generation)})
		}
		return info, nil
	})
}

func (s *JellyfinService) Close() error {
	return s.client.Close()
}

func (s *JellyfinService) rewritePlaylist(ctx context.Context, playlistURI, audioURI string, edit func([]string, string) ([]string, bool)) error {
	playlistID, err := s.itemID(playlistURI, models.MediaTypePlaylist)
	if err != nil {
		return err
	}
	audioID, err := s.itemID(audioURI, models.MediaTypeAudio)
	if err != nil {
		return err
	}

	entries, err := s.playlistItems(ctx, playlistID)
	if err != nil {
		return err
	}
	ids := make([]string, 0, len(entries)+1)
	for _, e := range entries {
		ids = append(ids, e.ID)
	}

	ids, changed := edit(ids, audioID)
	if !changed {
		return nil
	}

	// the typed body omits an empty list, which would leave the playlist untouched
	body := map[string]any{"Ids": ids}
	if err := s.client.Post(ctx, []string{"Playlists", playlistID}, nil, body, nil); err != nil {
		return err
	}
	s.playlistsChanged.Notify()
	return nil
}

func (s *JellyfinService) playlists(ctx context.Context, rule models.SortingRule) ([]models.Playlist, error) {
	query := url.Values{"IncludeItemTypes": {jellyfinTypePlaylist}, "Recursive": {"true"}}
	items, err := s.items(ctx, []string{"Items"}, withSort(query, rule))
	return mapSlice(items, s.toPlaylist), err
}

func (s *JellyfinService) playlistItems(ctx context.Context, playlistID string) ([]jellyfinItem, error) {
	query := url.Values{}
	if cred := s.client.Credential(); cred != nil {
		if userID, _ := cred.Token.Extra(jellyfinUserIDKey).(string); userID != "" {
			query.Set("UserId", userID)
		}
	}
	return s.items(ctx, []string{"Playlists", playlistID, "Items"}, query)
}

func (s *JellyfinService) items(ctx context.Context, path []string, query url.Values) ([]jellyfinItem, error) {
	var result jellyfinQueryResult
	if err := s.client.Get(ctx, path, query, &result); err != nil {
		return nil, err
	}
	if result.Items == nil {
		return []jellyfinItem{}, nil
	}
	return result.Items, nil
}

func (s *JellyfinService) item(ctx context.Context, id string) (*jellyfinItem, error) {
	var item jellyfinItem
	if err := s.client.Get(ctx, []string{"Items", id}, nil, &item); err != nil {
		return nil, err
	}
	return &item, nil
}

// userID returns the id of the logged in user, asking the server when no login happened yet.
func (s *JellyfinService) userID(ctx context.Context) (string, error) {
	if cred := s.client.Credential(); cred != nil {
		if id, _ := cred.Token.Extra(jellyfinUserIDKey).(string); id != "" {
			return id, nil
		}
	}
	var user jellyfinUser
	if err := s.client.Get(ctx, []string{"Users", "Me"}, nil, &user); err != nil {
		return "", err
	}
	if user.ID == "" {
		return "", fmt.Errorf("%w: current user has no id", shared.ErrInvalidResponse)
	}
	return user.ID, nil
}

// itemID extracts a Jellyfin item id, which must be a GUID, from uri.
func (s *JellyfinService) itemID(uri string, t models.MediaType) (string, error) {
	id, err := s.ns.LocalID(uri, t)
	if err != nil {
		return "", err
	}
	parsed, err := uuid.Parse(id)
	if err != nil {
		return "", fmt.Errorf("%w: %s is not a jellyfin id", shared.ErrNotFound, id)
	}
	return strings.ReplaceAll(parsed.String(), "-", ""), nil
}

func sameJellyfinID(a, b string) bool {
	return strings.EqualFold(strings.ReplaceAll(a, "-", ""), strings.ReplaceAll(b, "-", ""))
}

// withSort adds the server-side ordering for rule.
//
// PlayCount is only honoured by the server for audio items; on albums, artists, genres and
// playlists it is accepted and ignored. Artist has no collection-wide equivalent and is sent as
// AlbumArtist,SortName.
func withSort(query url.Values, rule models.SortingRule) url.Values {
	var sortBy string
	switch rule.Strategy {
	case models.SortByCreationDate:
		sortBy = "DateCreated"
	case models.SortByModificationDate:
		sortBy = "DateLastContentAdded"
	case models.SortByName:
		sortBy = "Name"
	case models.SortByPlayCount:
		sortBy = "PlayCount"
	case models.SortByArtist:
		sortBy = "AlbumArtist,SortName"
	default:
		sortBy = "SortName"
	}

	order := "Ascending"
	if rule.Reverse {
		order = "Descending"
	}

	query.Set("sortBy", sortBy)
	query.Set("sortOrder", order)
	return query
}

func (s *JellyfinService) thumbnail(id string) *models.Thumbnail {
	return &models.Thumbnail{URI: s.client.URL([]string{"Items", id, "Images", "Primary", "0"}, nil)}
}

func (s *JellyfinService) toAlbum(item jellyfinItem) models.Album {
	album := models.Album{
		URI:        s.ns.AlbumURI(item.ID),
		Title:      item.Name,
		ArtistName: item.AlbumArtist,
		Year:       item.ProductionYear,
		Thumbnail:  s.thumbnail(item.ID),
	}
	if len(item.AlbumArtists) > 0 {
		album.ArtistURI = s.ns.ArtistURI(item.AlbumArtists[0].ID)
		if album.ArtistName == "" {
			album.ArtistName = item.AlbumArtists[0].Name
		}
	}
	if album.ArtistName == "" {
		album.ArtistName = firstOf(item.Artists)
	}
	return album
}

func (s *JellyfinService) toArtist(item jellyfinItem) models.Artist {
	return models.Artist{URI: s.ns.ArtistURI(item.ID), Name: item.Name, Thumbnail: s.thumbnail(item.ID)}
}

func (s *JellyfinService) toGenre(item jellyfinItem) models.Genre {
	return models.Genre{URI: s.ns.GenreURI(item.ID), Name: item.Name, Thumbnail: s.thumbnail(item.ID)}
}

func (s *JellyfinService) toPlaylist(item jellyfinItem) models.Playlist {
	return models.Playlist{URI: s.ns.PlaylistURI(item.ID), Name: item.Name, Thumbnail: s.thumbnail(item.ID)}
}

func (s *JellyfinService) toAudio(item jellyfinItem) models.Audio {
	audio := models.Audio{
		URI:         s.ns.AudioURI(item.ID),
		PlaybackURI: s.client.URL([]string{"Audio", item.ID, "stream"}, url.Values{"static": {"true"}}),
		MimeType:    mimeType(item.Container),
		Title:       item.Name,
		Type:        models.AudioTypeMusic,
		DurationMs:  item.RunTimeTicks / 10000,
		ArtistName:  firstOf(item.Artists),
		AlbumTitle:  item.Album,
		DiscNumber:  item.ParentIndexNumber,
		TrackNumber: item.IndexNumber,
		GenreName:   firstOf(item.Genres),
		Year:        item.ProductionYear,
	}
	if len(item.ArtistItems) > 0 {
		audio.ArtistURI = s.ns.ArtistURI(item.ArtistItems[0].ID)
	}
	if item.AlbumID != "" {
		audio.AlbumURI = s.ns.AlbumURI(item.AlbumID)
	}
	if len(item.GenreItems) > 0 {
		audio.GenreURI = s.ns.GenreURI(item.GenreItems[0].ID)
	}
	return audio
}
