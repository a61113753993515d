package services

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/desertthunder/tunebox/internal/models"
	"github.com/desertthunder/tunebox/internal/shared"
)

// Namespace builds and classifies the entity URIs of one backend.
//
// A URI is base + "/" + collection + "/" + escaped local id. Compatibility is a prefix test
// against base + "/", so no base can claim the URIs of another whose base extends it.
type Namespace struct {
	base string
}

func NewNamespace(base string) Namespace {
	return Namespace{base: strings.TrimRight(base, "/")}
}

// ProviderNamespace derives a base unique to one provider from its identity and endpoint,
// e.g. "jellyfin://3@media.example.com:8096/jf".
func ProviderNamespace(id models.ProviderIdentifier, endpoint string) Namespace {
	location := endpoint
	if u, err := url.Parse(endpoint); err == nil && u.Host != "" {
		location = u.Host + strings.TrimRight(u.EscapedPath(), "/")
	}
	return NewNamespace(fmt.Sprintf("%s://%d@%s", id.Type, id.TypeID, location))
}

func (n Namespace) Base() string { return n.base }

// URI returns the address of the entity id in collection t.
func (n Namespace) URI(t models.MediaType, id string) string {
	return n.base + "/" + t.Collection() + "/" + url.PathEscape(id)
}

func (n Namespace) AlbumURI(id string) string    { return n.URI(models.MediaTypeAlbum, id) }
func (n Namespace) ArtistURI(id string) string   { return n.URI(models.MediaTypeArtist, id) }
func (n Namespace) AudioURI(id string) string    { return n.URI(models.MediaTypeAudio, id) }
func (n Namespace) GenreURI(id string) string    { return n.URI(models.MediaTypeGenre, id) }
func (n Namespace) PlaylistURI(id string) string { return n.URI(models.MediaTypePlaylist, id) }

// IsCompatible is a pure prefix test.
func (n Namespace) IsCompatible(uri string) bool {
	return strings.HasPrefix(uri, n.base+"/")
}

// ResolveType returns the first collection whose prefix uri carries, or [shared.ErrNotFound].
func (n Namespace) ResolveType(uri string) (models.MediaType, error) {
	for _, t := range models.MediaTypes {
		if strings.HasPrefix(uri, n.collection(t)) {
			return t, nil
		}
	}
	return 0, fmt.Errorf("%w: no collection matches %s", shared.ErrNotFound, uri)
}

// LocalID extracts the backend-local id of a URI expected to belong to collection t.
func (n Namespace) LocalID(uri string, t models.MediaType) (string, error) {
	prefix := n.collection(t)
	if !strings.HasPrefix(uri, prefix) {
		return "", fmt.Errorf("%w: %s is not a %s of this provider", shared.ErrNotFound, uri, t)
	}
	raw := strings.TrimPrefix(uri, prefix)
	if raw == "" || strings.Contains(raw, "/") {
		return "", fmt.Errorf("%w: malformed %s uri %s", shared.ErrNotFound, t, uri)
	}
	id, err := url.PathUnescape(raw)
	if err != nil || id == "" {
		return "", fmt.Errorf("%w: malformed %s uri %s", shared.ErrNotFound, t, uri)
	}
	return id, nil
}

func (n Namespace) collection(t models.MediaType) string {
	return n.base + "/" + t.Collection() + "/"
}
