package models

import (
	"errors"
	"testing"
)

func TestProviderIdentifier(t *testing.T) {
	t.Run("Serialize Then Parse", func(t *testing.T) {
		id := ProviderIdentifier{Type: ProviderTypeJellyfin, TypeID: 7}
		encoded := id.Serialize()
		if encoded != `{"type":"jellyfin","type_id":7}` {
			t.Errorf("unexpected encoding %s", encoded)
		}
		if got := ParseProviderIdentifier(encoded); got != id {
			t.Errorf("expected %v, got %v", id, got)
		}
	})

	t.Run("Parse Short Form", func(t *testing.T) {
		got := ParseProviderIdentifier("subsonic/12")
		want := ProviderIdentifier{Type: ProviderTypeSubsonic, TypeID: 12}
		if got != want {
			t.Errorf("expected %v, got %v", want, got)
		}
		if got.String() != "subsonic/12" {
			t.Errorf("expected String to round trip, got %s", got.String())
		}
	})

	t.Run("Malformed Input Falls Back To Local", func(t *testing.T) {
		for _, input := range []string{
			"",
			"garbage",
			"{not json",
			`{"type":"napster","type_id":1}`,
			"jellyfin/abc",
			"jellyfin/1x",
			"ftp/3",
		} {
			if got := ParseProviderIdentifier(input); got != LocalProviderID {
				t.Errorf("ParseProviderIdentifier(%q) = %v, want %v", input, got, LocalProviderID)
			}
		}
	})
}

func TestSorting(t *testing.T) {
	t.Run("ParseSortingStrategy", func(t *testing.T) {
		tc := []struct {
			name string
			want SortingStrategy
		}{
			{"name", SortByName},
			{"Play-Count", SortByPlayCount},
			{" creation_date ", SortByCreationDate},
			{"artist", SortByArtist},
			{"unknown", SortByModificationDate},
		}
		for _, tt := range tc {
			if got := ParseSortingStrategy(tt.name, SortByModificationDate); got != tt.want {
				t.Errorf("ParseSortingStrategy(%q) = %v, want %v", tt.name, got, tt.want)
			}
		}
	})

	t.Run("UnmarshalText Rejects Unknown", func(t *testing.T) {
		var s SortingStrategy
		if err := s.UnmarshalText([]byte("loudness")); err == nil {
			t.Error("expected error for unknown strategy")
		}
		if err := s.UnmarshalText([]byte("modification_date")); err != nil || s != SortByModificationDate {
			t.Errorf("expected modification_date, got %v (%v)", s, err)
		}
	})
}

func TestMediaType(t *testing.T) {
	want := map[MediaType]string{
		MediaTypeAlbum:    "albums",
		MediaTypeArtist:   "artists",
		MediaTypeAudio:    "audio",
		MediaTypeGenre:    "genres",
		MediaTypePlaylist: "playlists",
	}
	for _, mt := range MediaTypes {
		if mt.Collection() != want[mt] {
			t.Errorf("%s: expected collection %s, got %s", mt, want[mt], mt.Collection())
		}
	}

	var items []MediaItem = []MediaItem{Album{URI: "a"}, Artist{URI: "b"}, Audio{URI: "c"}, Genre{URI: "d"}, Playlist{URI: "e"}}
	for i, item := range items {
		if item.MediaType() != MediaTypes[i] {
			t.Errorf("item %d: expected %s, got %s", i, MediaTypes[i], item.MediaType())
		}
	}
}

func TestRequestStatus(t *testing.T) {
	t.Run("FromResult", func(t *testing.T) {
		ok := FromResult(3, nil)
		if !ok.IsSuccess() || ok.Value != 3 {
			t.Errorf("expected success 3, got %+v", ok)
		}

		boom := errors.New("boom")
		failed := FromResult(0, boom)
		if !failed.IsError() || !errors.Is(failed.Err, boom) {
			t.Errorf("expected error status, got %+v", failed)
		}
	})

	t.Run("MapStatus", func(t *testing.T) {
		mapped := MapStatus(Success([]int{1, 2, 3}), func(v []int) int { return len(v) })
		if mapped.Value != 3 {
			t.Errorf("expected 3, got %d", mapped.Value)
		}

		loading := MapStatus(Loading[[]int](), func(v []int) int { return len(v) })
		if !loading.IsLoading() {
			t.Error("expected loading to be preserved")
		}
	})
}

func TestProviderRecord(t *testing.T) {
	t.Run("Validate", func(t *testing.T) {
		valid := NewProviderRecord(ProviderTypeJellyfin, "Home", "https://jf.example.com/", "me", "secret")
		if err := valid.Validate(); err != nil {
			t.Errorf("expected valid record, got %v", err)
		}
		if valid.Endpoint() != "https://jf.example.com" {
			t.Errorf("expected trailing slash trimmed, got %s", valid.Endpoint())
		}

		local := NewProviderRecord(ProviderTypeLocal, "Disk", "https://x", "me", "")
		if err := local.Validate(); err == nil {
			t.Error("expected local records to be rejected")
		}

		badURL := NewProviderRecord(ProviderTypeSubsonic, "Nav", "ftp://x", "me", "pw")
		if err := badURL.Validate(); err == nil {
			t.Error("expected non-http endpoint to be rejected")
		}
	})

	t.Run("Same", func(t *testing.T) {
		a := NewProviderRecord(ProviderTypeSubsonic, "Nav", "https://nav", "me", "pw")
		b := RestoreProviderRecord(ProviderTypeSubsonic, 0, "Nav", "https://nav", "me", "pw", false, a.CreatedAt(), a.UpdatedAt())
		if !a.Same(b) {
			t.Error("expected records to be the same")
		}
		b.SetPassword("changed")
		if a.Same(b) {
			t.Error("expected password change to be detected")
		}
	})
}
