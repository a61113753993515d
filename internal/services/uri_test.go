package services

import (
	"context"
	"errors"
	"testing"

	"github.com/desertthunder/tunebox/internal/models"
	"github.com/desertthunder/tunebox/internal/shared"
	tu "github.com/desertthunder/tunebox/internal/testing"
)

func TestNamespace(t *testing.T) {
	t.Run("Provider Bases", func(t *testing.T) {
		tests := []struct {
			id       models.ProviderIdentifier
			endpoint string
			want     string
		}{
			{models.ProviderIdentifier{Type: models.ProviderTypeJellyfin, TypeID: 1}, "https://media.example.com", "jellyfin://1@media.example.com"},
			{models.ProviderIdentifier{Type: models.ProviderTypeJellyfin, TypeID: 3}, "http://h:8096/jf/", "jellyfin://3@h:8096/jf"},
			{models.ProviderIdentifier{Type: models.ProviderTypeSubsonic, TypeID: 2}, "http://navidrome:4533", "subsonic://2@navidrome:4533"},
			{models.LocalProviderID, "library", "local://0@library"},
		}
		for _, tt := range tests {
			if got := ProviderNamespace(tt.id, tt.endpoint).Base(); got != tt.want {
				t.Errorf("%s: expected %s, got %s", tt.id, tt.want, got)
			}
		}
	})

	t.Run("Prefixes Never Overlap", func(t *testing.T) {
		one := NewNamespace("jellyfin://1@h")
		ten := NewNamespace("jellyfin://10@h")

		if one.IsCompatible(ten.AlbumURI("x")) {
			t.Error("provider 1 claimed a uri of provider 10")
		}
		if ten.IsCompatible(one.AlbumURI("x")) {
			t.Error("provider 10 claimed a uri of provider 1")
		}
		if one.IsCompatible("jellyfin://1@h") {
			t.Error("the bare base is not an entity uri")
		}
	})

	t.Run("ResolveType", func(t *testing.T) {
		ns := NewNamespace("subsonic://2@h")
		for _, mt := range models.MediaTypes {
			got, err := ns.ResolveType(ns.URI(mt, "id"))
			if err != nil || got != mt {
				t.Errorf("expected %s, got %s (%v)", mt, got, err)
			}
		}

		for _, uri := range []string{"subsonic://2@h/videos/1", "subsonic://2@h/", "jellyfin://2@h/albums/1"} {
			if _, err := ns.ResolveType(uri); !errors.Is(err, shared.ErrNotFound) {
				t.Errorf("%s: expected ErrNotFound, got %v", uri, err)
			}
		}
	})

	t.Run("LocalID", func(t *testing.T) {
		ns := NewNamespace("subsonic://2@h")

		tests := []struct {
			name string
			uri  string
			t    models.MediaType
			want string
			err  bool
		}{
			{"Plain", ns.GenreURI("Jazz"), models.MediaTypeGenre, "Jazz", false},
			{"Escaped Slash", ns.GenreURI("Rock/Pop"), models.MediaTypeGenre, "Rock/Pop", false},
			{"Escaped Space", ns.GenreURI("Hip Hop"), models.MediaTypeGenre, "Hip Hop", false},
			{"Wrong Collection", ns.AlbumURI("1"), models.MediaTypeGenre, "", true},
			{"Nested Segment", "subsonic://2@h/albums/1/tracks", models.MediaTypeAlbum, "", true},
			{"Empty Id", "subsonic://2@h/albums/", models.MediaTypeAlbum, "", true},
			{"Bad Escape", "subsonic://2@h/albums/%zz", models.MediaTypeAlbum, "", true},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				got, err := ns.LocalID(tt.uri, tt.t)
				if tt.err {
					if !errors.Is(err, shared.ErrNotFound) {
						t.Errorf("expected ErrNotFound, got %v", err)
					}
					return
				}
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				if got != tt.want {
					t.Errorf("expected %q, got %q", tt.want, got)
				}
			})
		}
	})
}

func TestUnavailableService(t *testing.T) {
	id := models.ProviderIdentifier{Type: models.ProviderTypeSubsonic, TypeID: 4}
	cause := errors.New("bad endpoint")
	svc := NewUnavailableService(id, "http://gone", cause)
	ctx := context.Background()

	if !svc.IsCompatible(svc.ns.AlbumURI("1")) {
		t.Error("expected the provider's uris to route to the placeholder")
	}
	if !errors.Is(svc.Err(), shared.ErrNotImplemented) || !errors.Is(svc.Err(), cause) {
		t.Errorf("expected ErrNotImplemented wrapping the cause, got %v", svc.Err())
	}

	status := tu.Settled(t, svc.Albums(ctx, models.SortingRule{}))
	if !errors.Is(status.Err, shared.ErrNotImplemented) {
		t.Errorf("expected ErrNotImplemented, got %v", status.Err)
	}
	if _, err := svc.CreatePlaylist(ctx, "x"); !errors.Is(err, shared.ErrNotImplemented) {
		t.Errorf("expected ErrNotImplemented, got %v", err)
	}

	info := tu.MustSucceed(t, svc.Status(ctx))
	if len(info) == 0 {
		t.Error("expected status to report the failure")
	}
}
