package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/tunebox/internal/models"
	"github.com/desertthunder/tunebox/internal/registry"
	"github.com/desertthunder/tunebox/internal/repositories"
	"github.com/desertthunder/tunebox/internal/services"
	"github.com/desertthunder/tunebox/internal/shared"
	"github.com/gorilla/websocket"
)

const maxBodyBytes = 1 << 20

// APIOpts configures an [API].
type APIOpts struct {
	Registry *registry.Registry
	Settings *repositories.SettingsRepository // persists the active provider when set
	Logger   *log.Logger
}

// API serves the registry as JSON.
type API struct {
	registry *registry.Registry
	settings *repositories.SettingsRepository
	logger   *log.Logger
	upgrader websocket.Upgrader
	mux      *http.ServeMux
}

func NewAPI(opts APIOpts) (*API, error) {
	if opts.Registry == nil {
		return nil, fmt.Errorf("%w: api needs a registry", shared.ErrInvalidInput)
	}
	logger := opts.Logger
	if logger == nil {
		logger = shared.NewLogger(nil)
	}

	a := &API{
		registry: opts.Registry,
		settings: opts.Settings,
		logger:   shared.WithLogger(logger, "component", "api"),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
		},
		mux: http.NewServeMux(),
	}

	handlers := map[string]http.HandlerFunc{
		"GET /api/providers":         a.listProviders,
		"POST /api/providers/active": a.setActiveProvider,
		"GET /api/activity":          a.activity,
		"GET /api/albums":            a.albums,
		"GET /api/artists":           a.artists,
		"GET /api/genres":            a.genres,
		"GET /api/playlists":         a.playlists,
		"GET /api/search":            a.search,
		"GET /api/item":              a.item,
		"GET /api/audio/playlists":   a.audioPlaylists,
		"POST /api/audio/played":     a.audioPlayed,
		"POST /api/playlists":        a.createPlaylist,
		"PATCH /api/playlist":        a.renamePlaylist,
		"DELETE /api/playlist":       a.deletePlaylist,
		"POST /api/playlist/audio":   a.addAudio,
		"DELETE /api/playlist/audio": a.removeAudio,
		"GET /api/status":            a.status,
		"GET /api/ws/listing":        a.listingSocket,
	}
	for pattern, h := range handlers {
		a.mux.HandleFunc(pattern, h)
	}
	return a, nil
}

func (a *API) Routes() []string { return []string{"/api/"} }

func (a *API) ServeHTTP(w http.ResponseWriter, r *http.Request) { a.mux.ServeHTTP(w, r) }

// StatusCode maps an error to the HTTP status the API answers with.
func StatusCode(err error) int {
	switch {
	case errors.Is(err, shared.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, shared.ErrAuthenticationRequired):
		return http.StatusUnauthorized
	case errors.Is(err, shared.ErrInvalidCredentials):
		return http.StatusForbidden
	case errors.Is(err, shared.ErrNotImplemented):
		return http.StatusNotImplemented
	case errors.Is(err, shared.ErrDeserialization), errors.Is(err, shared.ErrInvalidResponse):
		return http.StatusBadGateway
	case errors.Is(err, shared.ErrIO):
		return http.StatusServiceUnavailable
	case errors.Is(err, shared.ErrInvalidInput), errors.Is(err, shared.ErrInvalidArgument),
		errors.Is(err, shared.ErrMissingArgument), errors.Is(err, shared.ErrInvalidProvider):
		return http.StatusBadRequest
	case errors.Is(err, context.Canceled):
		return 499
	default:
		return http.StatusInternalServerError
	}
}

type errorBody struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, StatusCode(err), errorBody{Error: err.Error()})
}

// respond settles open and writes its value, or its error.
func respond[T any](w http.ResponseWriter, r *http.Request, open func(context.Context) services.Stream[T]) {
	v, err := services.Settle(r.Context(), open)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

func decodeBody(r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(nil, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: request body: %w", shared.ErrInvalidInput, err)
	}
	return nil
}

func requireQuery(r *http.Request, key string) (string, error) {
	v := strings.TrimSpace(r.URL.Query().Get(key))
	if v == "" {
		return "", fmt.Errorf("%w: %s", shared.ErrMissingArgument, key)
	}
	return v, nil
}

// sortingRule reads ?sort= and ?reverse=.
func sortingRule(r *http.Request, t models.MediaType) (*models.SortingRule, error) {
	q := r.URL.Query()
	var reverse *bool
	if v := q.Get("reverse"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return nil, fmt.Errorf("%w: reverse=%q", shared.ErrInvalidArgument, v)
		}
		reverse = &b
	}
	return parseRule(t, q.Get("sort"), reverse)
}

// parseRule overrides the default rule of t with the given strategy name and direction. With
// neither set it returns nil, which keeps the listing's default.
func parseRule(t models.MediaType, sort string, reverse *bool) (*models.SortingRule, error) {
	if sort == "" && reverse == nil {
		return nil, nil
	}

	rule := registry.DefaultRule(t)
	if sort != "" {
		var strategy models.SortingStrategy
		if err := strategy.UnmarshalText([]byte(sort)); err != nil {
			return nil, fmt.Errorf("%w: %w", shared.ErrInvalidArgument, err)
		}
		rule.Strategy = strategy
	}
	if reverse != nil {
		rule.Reverse = *reverse
	}
	return &rule, nil
}

// providerParam reads an optional provider identifier, defaulting to the active provider.
func (a *API) providerParam(s string) (models.ProviderIdentifier, error) {
	if strings.TrimSpace(s) == "" {
		return a.registry.ActiveProvider().Identifier(), nil
	}
	id := models.ParseProviderIdentifier(s)
	if _, err := a.registry.Provider(id); err != nil {
		return id, err
	}
	return id, nil
}

type providersResponse struct {
	Active    models.Provider   `json:"active"`
	Providers []models.Provider `json:"providers"`
}

func (a *API) listProviders(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, providersResponse{
		Active:    a.registry.ActiveProvider(),
		Providers: a.registry.List(),
	})
}

type providerRequest struct {
	Provider string `json:"provider"`
}

func (a *API) setActiveProvider(w http.ResponseWriter, r *http.Request) {
	var req providerRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if strings.TrimSpace(req.Provider) == "" {
		writeError(w, fmt.Errorf("%w: provider", shared.ErrMissingArgument))
		return
	}

	id, err := a.providerParam(req.Provider)
	if err != nil {
		writeError(w, err)
		return
	}
	a.registry.SetActiveProvider(id)
	if a.settings != nil {
		if err := a.settings.Set(repositories.ActiveProviderKey, id.String()); err != nil {
			a.logger.Warn("failed to persist active provider", "provider", id, "error", err)
		}
	}
	a.logger.Info("active provider changed", "provider", id)
	writeJSON(w, http.StatusOK, a.registry.ActiveProvider())
}

func (a *API) activity(w http.ResponseWriter, r *http.Request) {
	respond(w, r, a.registry.Activity)
}

// listingHandler serves a bulk listing of media type t.
func listingHandler[T any](t models.MediaType, list func(context.Context, *models.SortingRule) services.Stream[T]) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rule, err := sortingRule(r, t)
		if err != nil {
			writeError(w, err)
			return
		}
		respond(w, r, func(ctx context.Context) services.Stream[T] { return list(ctx, rule) })
	}
}

func (a *API) albums(w http.ResponseWriter, r *http.Request) {
	listingHandler(models.MediaTypeAlbum, a.registry.Albums)(w, r)
}

func (a *API) artists(w http.ResponseWriter, r *http.Request) {
	listingHandler(models.MediaTypeArtist, a.registry.Artists)(w, r)
}

func (a *API) genres(w http.ResponseWriter, r *http.Request) {
	listingHandler(models.MediaTypeGenre, a.registry.Genres)(w, r)
}

func (a *API) playlists(w http.ResponseWriter, r *http.Request) {
	listingHandler(models.MediaTypePlaylist, a.registry.Playlists)(w, r)
}

type searchItem struct {
	Type models.MediaType `json:"type"`
	Item models.MediaItem `json:"item"`
}

func (a *API) search(w http.ResponseWriter, r *http.Request) {
	query, err := requireQuery(r, "q")
	if err != nil {
		writeError(w, err)
		return
	}
	items, err := services.Settle(r.Context(), func(ctx context.Context) services.Stream[[]models.MediaItem] {
		return a.registry.Search(ctx, query)
	})
	if err != nil {
		writeError(w, err)
		return
	}

	out := make([]searchItem, 0, len(items))
	for _, item := range items {
		out = append(out, searchItem{Type: item.MediaType(), Item: item})
	}
	writeJSON(w, http.StatusOK, out)
}

type itemResponse[T any] struct {
	Type models.MediaType `json:"type"`
	Item T                `json:"item"`
}

func detail[T any](w http.ResponseWriter, r *http.Request, t models.MediaType, open func(context.Context) services.Stream[T]) {
	v, err := services.Settle(r.Context(), open)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, itemResponse[T]{Type: t, Item: v})
}

// item serves the detail of any entity, dispatching on the type its URI resolves to.
func (a *API) item(w http.ResponseWriter, r *http.Request) {
	uri, err := requireQuery(r, "uri")
	if err != nil {
		writeError(w, err)
		return
	}
	t, err := a.registry.ResolveType(uri)
	if err != nil {
		writeError(w, err)
		return
	}

	switch t {
	case models.MediaTypeAlbum:
		detail(w, r, t, func(ctx context.Context) services.Stream[models.AlbumWithTracks] { return a.registry.Album(ctx, uri) })
	case models.MediaTypeArtist:
		detail(w, r, t, func(ctx context.Context) services.Stream[models.ArtistWithWorks] { return a.registry.Artist(ctx, uri) })
	case models.MediaTypeAudio:
		detail(w, r, t, func(ctx context.Context) services.Stream[models.Audio] { return a.registry.Audio(ctx, uri) })
	case models.MediaTypeGenre:
		detail(w, r, t, func(ctx context.Context) services.Stream[models.GenreWithContent] { return a.registry.Genre(ctx, uri) })
	case models.MediaTypePlaylist:
		detail(w, r, t, func(ctx context.Context) services.Stream[models.PlaylistWithAudios] { return a.registry.Playlist(ctx, uri) })
	default:
		writeError(w, fmt.Errorf("%w: %s", shared.ErrNotFound, uri))
	}
}

func (a *API) audioPlaylists(w http.ResponseWriter, r *http.Request) {
	uri, err := requireQuery(r, "uri")
	if err != nil {
		writeError(w, err)
		return
	}
	respond(w, r, func(ctx context.Context) services.Stream[[]models.PlaylistMembership] {
		return a.registry.AudioPlaylistsStatus(ctx, uri)
	})
}

func (a *API) audioPlayed(w http.ResponseWriter, r *http.Request) {
	uri, err := requireQuery(r, "uri")
	if err != nil {
		writeError(w, err)
		return
	}
	if err := a.registry.OnAudioPlayed(r.Context(), uri); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type createPlaylistRequest struct {
	Provider string `json:"provider"`
	Name     string `json:"name"`
}

type uriResponse struct {
	URI string `json:"uri"`
}

func (a *API) createPlaylist(w http.ResponseWriter, r *http.Request) {
	var req createPlaylistRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if strings.TrimSpace(req.Name) == "" {
		writeError(w, fmt.Errorf("%w: name", shared.ErrMissingArgument))
		return
	}
	id, err := a.providerParam(req.Provider)
	if err != nil {
		writeError(w, err)
		return
	}

	uri, err := a.registry.CreatePlaylist(r.Context(), id, req.Name)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, uriResponse{URI: uri})
}

type renameRequest struct {
	Name string `json:"name"`
}

func (a *API) renamePlaylist(w http.ResponseWriter, r *http.Request) {
	uri, err := requireQuery(r, "uri")
	if err != nil {
		writeError(w, err)
		return
	}
	var req renameRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if strings.TrimSpace(req.Name) == "" {
		writeError(w, fmt.Errorf("%w: name", shared.ErrMissingArgument))
		return
	}
	if err := a.registry.RenamePlaylist(r.Context(), uri, req.Name); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) deletePlaylist(w http.ResponseWriter, r *http.Request) {
	uri, err := requireQuery(r, "uri")
	if err != nil {
		writeError(w, err)
		return
	}
	if err := a.registry.DeletePlaylist(r.Context(), uri); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type playlistAudioRequest struct {
	Playlist string `json:"playlist"`
	Audio    string `json:"audio"`
}

func (a *API) playlistAudio(w http.ResponseWriter, r *http.Request, fn func(ctx context.Context, playlistURI, audioURI string) error) {
	var req playlistAudioRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if req.Playlist == "" || req.Audio == "" {
		writeError(w, fmt.Errorf("%w: playlist and audio", shared.ErrMissingArgument))
		return
	}
	if err := fn(r.Context(), req.Playlist, req.Audio); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) addAudio(w http.ResponseWriter, r *http.Request) {
	a.playlistAudio(w, r, a.registry.AddAudioToPlaylist)
}

func (a *API) removeAudio(w http.ResponseWriter, r *http.Request) {
	a.playlistAudio(w, r, a.registry.RemoveAudioFromPlaylist)
}

func (a *API) status(w http.ResponseWriter, r *http.Request) {
	id, err := a.providerParam(r.URL.Query().Get("provider"))
	if err != nil {
		writeError(w, err)
		return
	}
	respond(w, r, func(ctx context.Context) services.Stream[[]models.DiagnosticInfo] {
		return a.registry.Status(ctx, id)
	})
}
