package services

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"

	"github.com/desertthunder/tunebox/internal/models"
	"github.com/desertthunder/tunebox/internal/shared"
	tu "github.com/desertthunder/tunebox/internal/testing"
)

// fakeSubsonic answers /rest/<endpoint>.view with the response built by handlers[endpoint].
type fakeSubsonic struct {
	*httptest.Server

	mu       sync.Mutex
	password string
	handlers map[string]func(url.Values) subsonicResponse
	calls    map[string][]url.Values
}

func newFakeSubsonic(t *testing.T) *fakeSubsonic {
	f := &fakeSubsonic{
		password: "secret",
		handlers: map[string]func(url.Values) subsonicResponse{},
		calls:    map[string][]url.Values{},
	}
	f.handle("ping", func(url.Values) subsonicResponse { return subsonicResponse{} })

	f.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		endpoint := strings.TrimSuffix(strings.TrimPrefix(r.URL.Path, "/rest/"), ".view")
		query := r.URL.Query()

		f.mu.Lock()
		f.calls[endpoint] = append(f.calls[endpoint], query)
		handler, ok := f.handlers[endpoint]
		authorized := f.authorized(query)
		f.mu.Unlock()

		var resp subsonicResponse
		switch {
		case !authorized:
			resp = subsonicResponse{Status: "failed", Error: &subsonicError{Code: 40, Message: "Wrong username or password"}}
		case !ok:
			resp = subsonicResponse{Status: "failed", Error: &subsonicError{Code: 0, Message: "unknown endpoint " + endpoint}}
		default:
			resp = handler(query)
			if resp.Status == "" {
				resp.Status = "ok"
			}
		}
		resp.Version = subsonicAPIVersion
		tu.WriteJSON(t, w, subsonicEnvelope{Response: resp})
	}))
	t.Cleanup(f.Close)
	return f
}

func (f *fakeSubsonic) handle(endpoint string, fn func(url.Values) subsonicResponse) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.handlers[endpoint] = fn
}

func (f *fakeSubsonic) authorized(q url.Values) bool {
	if q.Get("u") != "alice" || q.Get("f") != "json" || q.Get("v") != subsonicAPIVersion {
		return false
	}
	if p := q.Get("p"); p != "" {
		return p == "enc:"+hex.EncodeToString([]byte(f.password))
	}
	sum := md5.Sum([]byte(f.password + q.Get("s")))
	return q.Get("s") != "" && q.Get("t") == hex.EncodeToString(sum[:])
}

func (f *fakeSubsonic) lastCall(endpoint string) url.Values {
	f.mu.Lock()
	defer f.mu.Unlock()
	calls := f.calls[endpoint]
	if len(calls) == 0 {
		return nil
	}
	return calls[len(calls)-1]
}

func newSubsonic(t *testing.T, endpoint string, legacy bool) *SubsonicService {
	t.Helper()
	svc, err := NewSubsonicService(RemoteOpts{
		ID:         models.ProviderIdentifier{Type: models.ProviderTypeSubsonic, TypeID: 2},
		Endpoint:   endpoint,
		Username:   "alice",
		Password:   "secret",
		LegacyAuth: legacy,
	})
	if err != nil {
		t.Fatalf("failed to create service: %v", err)
	}
	t.Cleanup(func() { svc.Close() })
	return svc
}

func TestSubsonicService(t *testing.T) {
	ctx := context.Background()
	albums := []subsonicAlbum{
		{ID: "al-1", Name: "First", Artist: "Band", ArtistID: "ar-1", CoverArt: "al-1"},
		{ID: "al-2", Name: "Second", Artist: "Band", ArtistID: "ar-1"},
	}

	t.Run("Token Authentication", func(t *testing.T) {
		fake := newFakeSubsonic(t)
		fake.handle("getAlbumList2", func(url.Values) subsonicResponse {
			return subsonicResponse{AlbumList2: &subsonicAlbumList{Album: albums}}
		})
		svc := newSubsonic(t, fake.URL, false)

		got := tu.MustSucceed(t, svc.Albums(ctx, models.SortingRule{Strategy: models.SortByName}))
		if len(got) != 2 {
			t.Fatalf("expected 2 albums, got %d", len(got))
		}

		q := fake.lastCall("getAlbumList2")
		if q.Get("p") != "" || q.Get("t") == "" || len(q.Get("s")) != 16 {
			t.Errorf("expected salted token params, got %v", q)
		}
		if svc.Client().Logins() != 1 {
			t.Errorf("expected 1 login, got %d", svc.Client().Logins())
		}
	})

	t.Run("Legacy Authentication", func(t *testing.T) {
		fake := newFakeSubsonic(t)
		svc := newSubsonic(t, fake.URL, true)

		info := tu.MustSucceed(t, svc.Status(ctx))
		for _, entry := range info {
			if entry.Key == "error" {
				t.Fatalf("unexpected error entry %s", entry.Value)
			}
		}
		if q := fake.lastCall("ping"); q.Get("p") != "enc:736563726574" || q.Get("t") != "" {
			t.Errorf("expected hex encoded password, got %v", q)
		}
	})

	t.Run("Wrong Password Fails Login", func(t *testing.T) {
		fake := newFakeSubsonic(t)
		fake.password = "other"
		svc := newSubsonic(t, fake.URL, false)

		status := tu.Settled(t, svc.Genres(ctx, models.SortingRule{}))
		if !errors.Is(status.Err, shared.ErrAuthenticationRequired) || !errors.Is(status.Err, shared.ErrInvalidCredentials) {
			t.Errorf("expected failed login, got %v", status.Err)
		}
	})

	t.Run("Error Codes", func(t *testing.T) {
		tests := []struct {
			code int
			want error
		}{
			{70, shared.ErrNotFound},
			{50, shared.ErrInvalidCredentials},
			{41, shared.ErrAuthenticationRequired},
			{0, shared.ErrIO},
		}
		for _, tt := range tests {
			if err := subsonicFailure(&subsonicError{Code: tt.code, Message: "boom"}); !errors.Is(err, tt.want) {
				t.Errorf("code %d: expected %v, got %v", tt.code, tt.want, err)
			}
		}
		if err := subsonicFailure(nil); !errors.Is(err, shared.ErrIO) {
			t.Errorf("expected ErrIO without details, got %v", err)
		}

		fake := newFakeSubsonic(t)
		fake.handle("getSong", func(url.Values) subsonicResponse {
			return subsonicResponse{Status: "failed", Error: &subsonicError{Code: 70, Message: "Song not found"}}
		})
		svc := newSubsonic(t, fake.URL, false)

		status := tu.Settled(t, svc.Audio(ctx, svc.Namespace().AudioURI("missing")))
		if !errors.Is(status.Err, shared.ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", status.Err)
		}
	})

	t.Run("Album List Order", func(t *testing.T) {
		tests := []struct {
			rule     models.SortingRule
			listType string
			first    string
		}{
			{models.SortingRule{Strategy: models.SortByCreationDate, Reverse: true}, "newest", "al-1"},
			{models.SortingRule{Strategy: models.SortByCreationDate}, "newest", "al-2"},
			{models.SortingRule{Strategy: models.SortByPlayCount, Reverse: true}, "frequent", "al-1"},
			{models.SortingRule{Strategy: models.SortByName}, "alphabeticalByName", "al-1"},
			{models.SortingRule{Strategy: models.SortByName, Reverse: true}, "alphabeticalByName", "al-2"},
			{models.SortingRule{Strategy: models.SortByArtist}, "alphabeticalByArtist", "al-1"},
		}

		fake := newFakeSubsonic(t)
		fake.handle("getAlbumList2", func(url.Values) subsonicResponse {
			return subsonicResponse{AlbumList2: &subsonicAlbumList{Album: albums}}
		})
		svc := newSubsonic(t, fake.URL, false)

		for _, tt := range tests {
			t.Run(tt.rule.String(), func(t *testing.T) {
				got := tu.MustSucceed(t, svc.Albums(ctx, tt.rule))
				if q := fake.lastCall("getAlbumList2"); q.Get("type") != tt.listType {
					t.Errorf("expected type %s, got %s", tt.listType, q.Get("type"))
				}
				if got[0].URI != svc.Namespace().AlbumURI(tt.first) {
					t.Errorf("expected %s first, got %s", tt.first, got[0].URI)
				}
			})
		}
	})

	t.Run("Signed Media URLs", func(t *testing.T) {
		fake := newFakeSubsonic(t)
		fake.handle("getSong", func(q url.Values) subsonicResponse {
			return subsonicResponse{Song: &subsonicSong{
				ID: q.Get("id"), Title: "Song", Duration: 215, Suffix: "mp3", ContentType: "audio/mpeg",
				AlbumID: "al-1", ArtistID: "ar-1", CoverArt: "al-1",
			}}
		})
		svc := newSubsonic(t, fake.URL, false)

		audio := tu.MustSucceed(t, svc.Audio(ctx, svc.Namespace().AudioURI("so-1")))
		if audio.DurationMs != 215000 || audio.MimeType != "audio/mpeg" {
			t.Errorf("unexpected audio %+v", audio)
		}
		if audio.AlbumURI != svc.Namespace().AlbumURI("al-1") || audio.ArtistURI != svc.Namespace().ArtistURI("ar-1") {
			t.Errorf("unexpected related uris %+v", audio)
		}

		u, err := url.Parse(audio.PlaybackURI)
		if err != nil {
			t.Fatalf("bad playback uri: %v", err)
		}
		if u.Path != "/rest/stream.view" || u.Query().Get("id") != "so-1" {
			t.Errorf("unexpected playback uri %s", audio.PlaybackURI)
		}
		fake.mu.Lock()
		signed := fake.authorized(u.Query())
		fake.mu.Unlock()
		if !signed {
			t.Errorf("expected playback uri to carry valid credentials, got %s", audio.PlaybackURI)
		}
	})

	t.Run("Genre Names Are Ids", func(t *testing.T) {
		fake := newFakeSubsonic(t)
		fake.handle("getGenres", func(url.Values) subsonicResponse {
			return subsonicResponse{Genres: &subsonicGenres{Genre: []subsonicGenre{{Value: "Rock/Pop"}, {Value: "Jazz"}}}}
		})
		fake.handle("getAlbumList2", func(q url.Values) subsonicResponse {
			if q.Get("type") != "byGenre" || q.Get("genre") != "Rock/Pop" {
				t.Errorf("unexpected album query %v", q)
			}
			return subsonicResponse{AlbumList2: &subsonicAlbumList{Album: albums[:1]}}
		})
		fake.handle("getSongsByGenre", func(q url.Values) subsonicResponse {
			return subsonicResponse{SongsByGenre: &subsonicSongs{Song: []subsonicSong{{ID: "so-1", Title: "Song"}}}}
		})
		svc := newSubsonic(t, fake.URL, false)

		genres := tu.MustSucceed(t, svc.Genres(ctx, models.SortingRule{Strategy: models.SortByName}))
		if len(genres) != 2 || genres[0].Name != "Jazz" {
			t.Fatalf("expected genres sorted by name, got %+v", genres)
		}

		rock := genres[1]
		if !strings.HasSuffix(rock.URI, "/genres/Rock%2FPop") {
			t.Errorf("expected escaped genre uri, got %s", rock.URI)
		}
		detail := tu.MustSucceed(t, svc.Genre(ctx, rock.URI))
		if detail.Genre.Name != "Rock/Pop" || len(detail.Content.AppearsInAlbums) != 1 || len(detail.Content.Audios) != 1 {
			t.Errorf("unexpected genre detail %+v", detail)
		}

		status := tu.Settled(t, svc.Genre(ctx, svc.Namespace().GenreURI("Metal")))
		if !errors.Is(status.Err, shared.ErrNotFound) {
			t.Errorf("expected ErrNotFound for unknown genre, got %v", status.Err)
		}
	})

	t.Run("Mutations Replace The Entry List", func(t *testing.T) {
		fake := newFakeSubsonic(t)
		fake.handle("getPlaylist", func(q url.Values) subsonicResponse {
			return subsonicResponse{Playlist: &subsonicPlaylist{ID: q.Get("id"), Name: "Mix", Entry: []subsonicSong{
				{ID: "so-1"}, {ID: "so-2"}, {ID: "so-1"},
			}}}
		})
		fake.handle("createPlaylist", func(url.Values) subsonicResponse { return subsonicResponse{} })
		fake.handle("updatePlaylist", func(url.Values) subsonicResponse { return subsonicResponse{} })
		svc := newSubsonic(t, fake.URL, false)
		ns := svc.Namespace()

		if err := svc.RemoveAudioFromPlaylist(ctx, ns.PlaylistURI("pl-1"), ns.AudioURI("so-1")); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		q := fake.lastCall("createPlaylist")
		if q.Get("playlistId") != "pl-1" || strings.Join(q["songId"], ",") != "so-2,so-1" {
			t.Errorf("expected first occurrence removed, got %v", q)
		}

		if err := svc.AddAudioToPlaylist(ctx, ns.PlaylistURI("pl-1"), ns.AudioURI("so-3")); err != nil {
			t.Fatal(err)
		}
		q = fake.lastCall("createPlaylist")
		if strings.Join(q["songId"], ",") != "so-1,so-2,so-1,so-3" {
			t.Errorf("expected so-3 appended, got %v", q["songId"])
		}

		if err := svc.RemoveAudioFromPlaylist(ctx, ns.PlaylistURI("pl-1"), ns.AudioURI("so-9")); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		fake.mu.Lock()
		writes := len(fake.calls["createPlaylist"])
		fake.mu.Unlock()
		if writes != 2 {
			t.Errorf("expected no write for an absent audio, got %d writes", writes)
		}

		if err := svc.RenamePlaylist(ctx, ns.PlaylistURI("pl-1"), "Renamed"); err != nil {
			t.Fatal(err)
		}
		if q := fake.lastCall("updatePlaylist"); q.Get("playlistId") != "pl-1" || q.Get("name") != "Renamed" {
			t.Errorf("unexpected rename %v", q)
		}
	})

	t.Run("Create Falls Back To Lookup", func(t *testing.T) {
		fake := newFakeSubsonic(t)
		fake.handle("createPlaylist", func(url.Values) subsonicResponse { return subsonicResponse{} })
		fake.handle("getPlaylists", func(url.Values) subsonicResponse {
			return subsonicResponse{Playlists: &subsonicPlaylists{Playlist: []subsonicPlaylist{
				{ID: "pl-1", Name: "New"}, {ID: "pl-2", Name: "Other"}, {ID: "pl-3", Name: "New"},
			}}}
		})
		svc := newSubsonic(t, fake.URL, false)

		uri, err := svc.CreatePlaylist(ctx, "New")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if uri != svc.Namespace().PlaylistURI("pl-3") {
			t.Errorf("expected the newest match, got %s", uri)
		}
	})

	t.Run("Playlist Stream Re-emits After Mutation", func(t *testing.T) {
		fake := newFakeSubsonic(t)
		var mu sync.Mutex
		stored := []subsonicPlaylist{{ID: "pl-1", Name: "One"}}
		fake.handle("getPlaylists", func(url.Values) subsonicResponse {
			mu.Lock()
			defer mu.Unlock()
			return subsonicResponse{Playlists: &subsonicPlaylists{Playlist: append([]subsonicPlaylist(nil), stored...)}}
		})
		fake.handle("createPlaylist", func(q url.Values) subsonicResponse {
			mu.Lock()
			defer mu.Unlock()
			created := subsonicPlaylist{ID: "pl-2", Name: q.Get("name")}
			stored = append(stored, created)
			return subsonicResponse{Playlist: &created}
		})
		fake.handle("updatePlaylist", func(q url.Values) subsonicResponse {
			mu.Lock()
			defer mu.Unlock()
			for i := range stored {
				if stored[i].ID == q.Get("playlistId") {
					stored[i].Name = q.Get("name")
				}
			}
			return subsonicResponse{}
		})
		svc := newSubsonic(t, fake.URL, false)

		ctx, cancel := context.WithCancel(ctx)
		defer cancel()

		stream := svc.Playlists(ctx, models.SortingRule{})
		if before := tu.MustSucceed(t, stream); len(before) != 1 {
			t.Fatalf("expected 1 playlist, got %d", len(before))
		}

		uri, err := svc.CreatePlaylist(ctx, "Two")
		if err != nil {
			t.Fatal(err)
		}
		after := tu.MustSucceed(t, stream)
		if len(after) != 2 {
			t.Fatalf("expected 2 playlists after create, got %d", len(after))
		}

		if err := svc.RenamePlaylist(ctx, uri, "Zwei"); err != nil {
			t.Fatal(err)
		}
		renamed := tu.MustSucceed(t, stream)
		names := make([]string, 0, len(renamed))
		for _, p := range renamed {
			names = append(names, p.Name)
		}
		if strings.Join(names, ",") != "One,Zwei" {
			t.Errorf("expected renamed listing, got %v", names)
		}
	})

	t.Run("Scrobble", func(t *testing.T) {
		fake := newFakeSubsonic(t)
		fake.handle("scrobble", func(url.Values) subsonicResponse { return subsonicResponse{} })
		svc := newSubsonic(t, fake.URL, false)

		if err := svc.OnAudioPlayed(ctx, svc.Namespace().AudioURI("so-1")); err != nil {
			t.Fatal(err)
		}
		if q := fake.lastCall("scrobble"); q.Get("id") != "so-1" || q.Get("submission") != "true" {
			t.Errorf("unexpected scrobble %v", q)
		}
	})

	t.Run("Foreign URI", func(t *testing.T) {
		svc := newSubsonic(t, "http://127.0.0.1:1", false)
		err := svc.DeletePlaylist(ctx, "subsonic://20@127.0.0.1:1/playlists/pl-1")
		if !errors.Is(err, shared.ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})
}
