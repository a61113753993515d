package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/desertthunder/tunebox/internal/models"
	"github.com/desertthunder/tunebox/internal/registry"
	"github.com/desertthunder/tunebox/internal/repositories"
	"github.com/desertthunder/tunebox/internal/services"
	"github.com/desertthunder/tunebox/internal/shared"
	th "github.com/desertthunder/tunebox/internal/testing"
	"github.com/gorilla/websocket"
)

type testServer struct {
	*httptest.Server
	registry *registry.Registry
	store    *repositories.Store
}

// offline builds every remote provider as unavailable.
func offline(record *models.ProviderRecord) (services.Service, error) {
	return services.NewUnavailableService(record.Identifier(), record.Endpoint(), errors.New("offline")), nil
}

func setupServer(t *testing.T) *testServer {
	t.Helper()

	db, err := shared.NewDatabase(":memory:")
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}
	if err := shared.RunMigrations(db); err != nil {
		db.Close()
		t.Fatalf("failed to run migrations: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	store := repositories.NewStore(db)
	logger := shared.NewLogger(io.Discard)
	reg, err := registry.New(registry.Opts{Store: store, Paths: []string{t.TempDir()}, Factory: offline, Logger: logger})
	if err != nil {
		t.Fatalf("failed to create registry: %v", err)
	}
	t.Cleanup(func() { reg.Close() })

	api, err := NewAPI(APIOpts{Registry: reg, Settings: store.Settings, Logger: logger})
	if err != nil {
		t.Fatalf("failed to create api: %v", err)
	}
	router := NewBasicRouter()
	router.Use(Recover(logger), Logging(logger))
	router.Handler(api)

	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return &testServer{Server: srv, registry: reg, store: store}
}

func (s *testServer) do(t *testing.T, method, path string, body any) *http.Response {
	t.Helper()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("failed to encode body: %v", err)
		}
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, s.URL+path, reader)
	if err != nil {
		t.Fatalf("failed to build request: %v", err)
	}
	resp, err := s.Client().Do(req)
	if err != nil {
		t.Fatalf("%s %s failed: %v", method, path, err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func expectStatus(t *testing.T, resp *http.Response, want int) {
	t.Helper()
	if resp.StatusCode != want {
		body, _ := io.ReadAll(resp.Body)
		t.Fatalf("expected status %d, got %d: %s", want, resp.StatusCode, body)
	}
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(resp.Body).Decode(&v); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	return v
}

func TestProviders(t *testing.T) {
	t.Run("Lists Local Library", func(t *testing.T) {
		s := setupServer(t)
		resp := s.do(t, http.MethodGet, "/api/providers", nil)
		expectStatus(t, resp, http.StatusOK)

		got := decode[providersResponse](t, resp)
		if len(got.Providers) != 1 || got.Active.Identifier() != models.LocalProviderID {
			t.Errorf("unexpected providers %+v", got)
		}
	})

	t.Run("Set Active Provider", func(t *testing.T) {
		s := setupServer(t)
		p, err := s.registry.AddProvider(models.NewProviderRecord(models.ProviderTypeJellyfin, "Home", "http://jellyfin.test", "alice", "secret"))
		if err != nil {
			t.Fatalf("failed to add provider: %v", err)
		}

		resp := s.do(t, http.MethodPost, "/api/providers/active", providerRequest{Provider: p.Identifier().String()})
		expectStatus(t, resp, http.StatusOK)
		if got := decode[models.Provider](t, resp); got.Name != "Home" {
			t.Errorf("expected Home to be active, got %+v", got)
		}

		stored, ok, err := s.store.Settings.Get(repositories.ActiveProviderKey)
		if err != nil || !ok || stored != p.Identifier().String() {
			t.Errorf("expected the active provider to be stored, got %q, %v, %v", stored, ok, err)
		}

		resp = s.do(t, http.MethodGet, "/api/albums", nil)
		expectStatus(t, resp, http.StatusNotImplemented)
		if body := decode[errorBody](t, resp); !strings.Contains(body.Error, "offline") {
			t.Errorf("expected the cause in %q", body.Error)
		}
	})

	t.Run("Unknown Provider", func(t *testing.T) {
		s := setupServer(t)
		resp := s.do(t, http.MethodPost, "/api/providers/active", providerRequest{Provider: "subsonic/9"})
		expectStatus(t, resp, http.StatusNotFound)
		if s.registry.ActiveProvider().Identifier() != models.LocalProviderID {
			t.Error("expected the active provider to stay local")
		}
	})

	t.Run("Missing Provider", func(t *testing.T) {
		s := setupServer(t)
		expectStatus(t, s.do(t, http.MethodPost, "/api/providers/active", providerRequest{}), http.StatusBadRequest)
		expectStatus(t, s.do(t, http.MethodPost, "/api/providers/active", map[string]string{"unknown": "x"}), http.StatusBadRequest)
	})
}

func TestPlaylistEndpoints(t *testing.T) {
	s := setupServer(t)

	resp := s.do(t, http.MethodPost, "/api/playlists", createPlaylistRequest{Name: "Mix"})
	expectStatus(t, resp, http.StatusCreated)
	uri := decode[uriResponse](t, resp).URI
	if !strings.HasPrefix(uri, services.LocalNamespace.Base()) {
		t.Fatalf("expected a local playlist, got %q", uri)
	}

	t.Run("Listing", func(t *testing.T) {
		resp := s.do(t, http.MethodGet, "/api/playlists?sort=name", nil)
		expectStatus(t, resp, http.StatusOK)
		got := decode[[]models.Playlist](t, resp)
		if len(got) != 1 || got[0].Name != "Mix" {
			t.Errorf("unexpected playlists %+v", got)
		}
	})

	t.Run("Rename", func(t *testing.T) {
		expectStatus(t, s.do(t, http.MethodPatch, "/api/playlist?uri="+uri, renameRequest{Name: "Evening"}), http.StatusNoContent)

		resp := s.do(t, http.MethodGet, "/api/item?uri="+uri, nil)
		expectStatus(t, resp, http.StatusOK)
		got := decode[struct {
			Type string                     `json:"type"`
			Item models.PlaylistWithAudios `json:"item"`
		}](t, resp)
		if got.Type != "playlist" || got.Item.Playlist.Name != "Evening" {
			t.Errorf("expected renamed playlist, got %+v", got)
		}
	})

	t.Run("Search", func(t *testing.T) {
		resp := s.do(t, http.MethodGet, "/api/search?q=even", nil)
		expectStatus(t, resp, http.StatusOK)
		var got []struct {
			Type string          `json:"type"`
			Item json.RawMessage `json:"item"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
			t.Fatalf("failed to decode response: %v", err)
		}
		if len(got) != 1 || got[0].Type != models.MediaTypePlaylist.String() {
			t.Errorf("unexpected search results %+v", got)
		}
	})

	t.Run("Adding Unknown Audio", func(t *testing.T) {
		body := playlistAudioRequest{Playlist: uri, Audio: services.LocalNamespace.AudioURI("missing")}
		expectStatus(t, s.do(t, http.MethodPost, "/api/playlist/audio", body), http.StatusNotFound)
	})

	t.Run("Delete", func(t *testing.T) {
		expectStatus(t, s.do(t, http.MethodDelete, "/api/playlist?uri="+uri, nil), http.StatusNoContent)
		expectStatus(t, s.do(t, http.MethodGet, "/api/item?uri="+uri, nil), http.StatusNotFound)
	})
}

func TestRequests(t *testing.T) {
	s := setupServer(t)

	tests := []struct {
		name   string
		method string
		path   string
		body   any
		want   int
	}{
		{"Search Needs Query", http.MethodGet, "/api/search", nil, http.StatusBadRequest},
		{"Unknown Sort", http.MethodGet, "/api/albums?sort=loudness", nil, http.StatusBadRequest},
		{"Bad Reverse", http.MethodGet, "/api/artists?reverse=maybe", nil, http.StatusBadRequest},
		{"Default Sort", http.MethodGet, "/api/genres", nil, http.StatusOK},
		{"Item Of Unknown Provider", http.MethodGet, "/api/item?uri=jellyfin://5@elsewhere/albums/1", nil, http.StatusNotFound},
		{"Playlist Needs Name", http.MethodPost, "/api/playlists", createPlaylistRequest{}, http.StatusBadRequest},
		{"Audio Needs Both URIs", http.MethodDelete, "/api/playlist/audio", playlistAudioRequest{Playlist: "x"}, http.StatusBadRequest},
		{"Method Not Allowed", http.MethodPut, "/api/playlists", nil, http.StatusMethodNotAllowed},
		{"Activity", http.MethodGet, "/api/activity", nil, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			expectStatus(t, s.do(t, tt.method, tt.path, tt.body), tt.want)
		})
	}

	t.Run("Status", func(t *testing.T) {
		resp := s.do(t, http.MethodGet, "/api/status", nil)
		expectStatus(t, resp, http.StatusOK)
		info := decode[[]models.DiagnosticInfo](t, resp)
		keys := map[string]string{}
		for _, i := range info {
			keys[i.Key] = i.Value
		}
		if keys["tracks"] != "0" {
			t.Errorf("expected an empty library, got %v", info)
		}
	})
}

func TestStatusCode(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{shared.ErrNotFound, http.StatusNotFound},
		{shared.ErrAuthenticationRequired, http.StatusUnauthorized},
		{shared.ErrInvalidCredentials, http.StatusForbidden},
		{shared.ErrNotImplemented, http.StatusNotImplemented},
		{shared.ErrDeserialization, http.StatusBadGateway},
		{shared.ErrInvalidResponse, http.StatusBadGateway},
		{shared.ErrIO, http.StatusServiceUnavailable},
		{fmt.Errorf("%w: name", shared.ErrMissingArgument), http.StatusBadRequest},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		if got := StatusCode(fmt.Errorf("wrapped: %w", tt.err)); got != tt.want {
			t.Errorf("StatusCode(%v) = %d; want %d", tt.err, got, tt.want)
		}
	}
}

func TestMiddleware(t *testing.T) {
	t.Run("Recover", func(t *testing.T) {
		router := NewBasicRouter()
		router.Use(Recover(shared.NewLogger(io.Discard)))
		router.Handle(http.MethodGet, "/panic", http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
			panic("boom")
		}))

		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/panic", nil))
		if rec.Code != http.StatusInternalServerError {
			t.Errorf("expected 500, got %d", rec.Code)
		}
	})

	t.Run("Order", func(t *testing.T) {
		var calls []string
		mark := func(name string) Middleware {
			return func(next http.Handler) http.Handler {
				return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
					calls = append(calls, name)
					next.ServeHTTP(w, r)
				})
			}
		}

		router := NewBasicRouter()
		router.Use(mark("first"), mark("second"))
		router.Handle("get", "/x", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			calls = append(calls, "handler")
		}))
		router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/x", nil))

		if strings.Join(calls, ",") != "first,second,handler" {
			t.Errorf("unexpected call order %v", calls)
		}
	})
}

type frame struct {
	Media string          `json:"media"`
	State string          `json:"state"`
	Value json.RawMessage `json:"value"`
	Error string          `json:"error"`
}

// nextSettled reads frames until one is not loading.
func nextSettled(t *testing.T, conn *websocket.Conn) frame {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(th.DefaultTimeout))
	for {
		var f frame
		if err := conn.ReadJSON(&f); err != nil {
			t.Fatalf("failed to read frame: %v", err)
		}
		if f.State != models.StateLoading.String() {
			return f
		}
	}
}

func TestListingSocket(t *testing.T) {
	s := setupServer(t)

	url := "ws" + strings.TrimPrefix(s.URL, "http") + "/api/ws/listing"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("failed to dial: %v", err)
	}
	defer conn.Close()

	t.Run("Follows Changes", func(t *testing.T) {
		if err := conn.WriteJSON(listingRequest{Media: "playlists", Sort: "name"}); err != nil {
			t.Fatalf("failed to send request: %v", err)
		}
		first := nextSettled(t, conn)
		if first.Media != "playlists" || first.State != models.StateSuccess.String() {
			t.Fatalf("unexpected frame %+v", first)
		}

		if _, err := s.registry.CreatePlaylist(context.Background(), models.LocalProviderID, "Live"); err != nil {
			t.Fatalf("failed to create playlist: %v", err)
		}
		next := nextSettled(t, conn)
		var playlists []models.Playlist
		if err := json.Unmarshal(next.Value, &playlists); err != nil {
			t.Fatalf("failed to decode playlists: %v", err)
		}
		if len(playlists) != 1 || playlists[0].Name != "Live" {
			t.Errorf("expected the new playlist, got %+v", playlists)
		}
	})

	t.Run("Switches Listing", func(t *testing.T) {
		if err := conn.WriteJSON(listingRequest{Media: "genres"}); err != nil {
			t.Fatalf("failed to send request: %v", err)
		}
		f := nextSettled(t, conn)
		for f.Media != "genres" {
			f = nextSettled(t, conn)
		}
		if f.State != models.StateSuccess.String() {
			t.Errorf("unexpected frame %+v", f)
		}
	})

	t.Run("Unknown Listing", func(t *testing.T) {
		if err := conn.WriteJSON(listingRequest{Media: "podcasts"}); err != nil {
			t.Fatalf("failed to send request: %v", err)
		}
		f := nextSettled(t, conn)
		for f.Media != "podcasts" {
			f = nextSettled(t, conn)
		}
		if f.State != models.StateError.String() || !strings.Contains(f.Error, "unknown listing") {
			t.Errorf("unexpected frame %+v", f)
		}
	})
}
