package models

import "fmt"

// MediaType enumerates the entity collections a backend exposes.
type MediaType int

const (
	MediaTypeAlbum MediaType = iota
	MediaTypeArtist
	MediaTypeAudio
	MediaTypeGenre
	MediaTypePlaylist
)

// MediaTypes lists every collection in URI resolution order.
var MediaTypes = []MediaType{MediaTypeAlbum, MediaTypeArtist, MediaTypeAudio, MediaTypeGenre, MediaTypePlaylist}

func (t MediaType) String() string {
	switch t {
	case MediaTypeAlbum:
		return "album"
	case MediaTypeArtist:
		return "artist"
	case MediaTypeAudio:
		return "audio"
	case MediaTypeGenre:
		return "genre"
	case MediaTypePlaylist:
		return "playlist"
	default:
		return fmt.Sprintf("MediaType(%d)", int(t))
	}
}

// Collection returns the URI segment for the collection.
func (t MediaType) Collection() string {
	switch t {
	case MediaTypeAlbum:
		return "albums"
	case MediaTypeArtist:
		return "artists"
	case MediaTypeAudio:
		return "audio"
	case MediaTypeGenre:
		return "genres"
	case MediaTypePlaylist:
		return "playlists"
	default:
		return ""
	}
}

func (t MediaType) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// AudioType distinguishes music from other kinds of audio.
type AudioType string

const (
	AudioTypeMusic     AudioType = "music"
	AudioTypePodcast   AudioType = "podcast"
	AudioTypeAudiobook AudioType = "audiobook"
	AudioTypeRecording AudioType = "recording"
)

// MediaItem is any entity that can be addressed by URI.
type MediaItem interface {
	ItemURI() string
	MediaType() MediaType
	DisplayTitle() string
}

// Thumbnail points at artwork for an entity.
type Thumbnail struct {
	URI string `json:"uri,omitempty" yaml:"uri,omitempty"`
}

type Album struct {
	URI        string     `json:"uri" yaml:"uri"`
	Title      string     `json:"title" yaml:"title"`
	ArtistURI  string     `json:"artist_uri,omitempty" yaml:"artist_uri,omitempty"`
	ArtistName string     `json:"artist_name,omitempty" yaml:"artist_name,omitempty"`
	Year       int        `json:"year,omitempty" yaml:"year,omitempty"`
	Thumbnail  *Thumbnail `json:"thumbnail,omitempty" yaml:"thumbnail,omitempty"`
}

func (a Album) ItemURI() string      { return a.URI }
func (a Album) MediaType() MediaType { return MediaTypeAlbum }
func (a Album) DisplayTitle() string { return a.Title }

type Artist struct {
	URI       string     `json:"uri" yaml:"uri"`
	Name      string     `json:"name" yaml:"name"`
	Thumbnail *Thumbnail `json:"thumbnail,omitempty" yaml:"thumbnail,omitempty"`
}

func (a Artist) ItemURI() string      { return a.URI }
func (a Artist) MediaType() MediaType { return MediaTypeArtist }
func (a Artist) DisplayTitle() string { return a.Name }

// Audio is a playable track. PlaybackURI is what the playback engine opens.
type Audio struct {
	URI         string    `json:"uri" yaml:"uri"`
	PlaybackURI string    `json:"playback_uri" yaml:"playback_uri"`
	MimeType    string    `json:"mime_type,omitempty" yaml:"mime_type,omitempty"`
	Title       string    `json:"title" yaml:"title"`
	Type        AudioType `json:"type" yaml:"type"`
	DurationMs  int64     `json:"duration_ms" yaml:"duration_ms"`
	ArtistURI   string    `json:"artist_uri,omitempty" yaml:"artist_uri,omitempty"`
	ArtistName  string    `json:"artist_name,omitempty" yaml:"artist_name,omitempty"`
	AlbumURI    string    `json:"album_uri,omitempty" yaml:"album_uri,omitempty"`
	AlbumTitle  string    `json:"album_title,omitempty" yaml:"album_title,omitempty"`
	DiscNumber  int       `json:"disc_number,omitempty" yaml:"disc_number,omitempty"`
	TrackNumber int       `json:"track_number,omitempty" yaml:"track_number,omitempty"`
	GenreURI    string    `json:"genre_uri,omitempty" yaml:"genre_uri,omitempty"`
	GenreName   string    `json:"genre_name,omitempty" yaml:"genre_name,omitempty"`
	Year        int       `json:"year,omitempty" yaml:"year,omitempty"`
}

func (a Audio) ItemURI() string      { return a.URI }
func (a Audio) MediaType() MediaType { return MediaTypeAudio }
func (a Audio) DisplayTitle() string { return a.Title }

type Genre struct {
	URI       string     `json:"uri" yaml:"uri"`
	Name      string     `json:"name" yaml:"name"`
	Thumbnail *Thumbnail `json:"thumbnail,omitempty" yaml:"thumbnail,omitempty"`
}

func (g Genre) ItemURI() string      { return g.URI }
func (g Genre) MediaType() MediaType { return MediaTypeGenre }
func (g Genre) DisplayTitle() string { return g.Name }

type Playlist struct {
	URI       string     `json:"uri" yaml:"uri"`
	Name      string     `json:"name" yaml:"name"`
	Thumbnail *Thumbnail `json:"thumbnail,omitempty" yaml:"thumbnail,omitempty"`
}

func (p Playlist) ItemURI() string      { return p.URI }
func (p Playlist) MediaType() MediaType { return MediaTypePlaylist }
func (p Playlist) DisplayTitle() string { return p.Name }

type AlbumWithTracks struct {
	Album  Album   `json:"album" yaml:"album"`
	Tracks []Audio `json:"tracks" yaml:"tracks"`
}

// ArtistWorks groups what an artist released and where they show up.
type ArtistWorks struct {
	Albums            []Album    `json:"albums" yaml:"albums"`
	AppearsInAlbum    []Album    `json:"appears_in_album" yaml:"appears_in_album"`
	AppearsInPlaylist []Playlist `json:"appears_in_playlist" yaml:"appears_in_playlist"`
}

type ArtistWithWorks struct {
	Artist Artist      `json:"artist" yaml:"artist"`
	Works  ArtistWorks `json:"works" yaml:"works"`
}

type GenreContent struct {
	AppearsInAlbums    []Album    `json:"appears_in_albums" yaml:"appears_in_albums"`
	AppearsInPlaylists []Playlist `json:"appears_in_playlists" yaml:"appears_in_playlists"`
	Audios             []Audio    `json:"audios" yaml:"audios"`
}

type GenreWithContent struct {
	Genre   Genre        `json:"genre" yaml:"genre"`
	Content GenreContent `json:"content" yaml:"content"`
}

// PlaylistWithAudios holds a playlist and its entries in order.
// A nil entry is a track the backend no longer has.
type PlaylistWithAudios struct {
	Playlist Playlist `json:"playlist" yaml:"playlist"`
	Audios   []*Audio `json:"audios" yaml:"audios"`
}

// PlaylistMembership reports whether an audio belongs to a playlist.
type PlaylistMembership struct {
	Playlist Playlist `json:"playlist" yaml:"playlist"`
	Member   bool     `json:"member" yaml:"member"`
}

// DiagnosticInfo is a free-form key/value pair reported by a backend.
type DiagnosticInfo struct {
	Key   string `json:"key" yaml:"key"`
	Value string `json:"value" yaml:"value"`
}

// ActivityTab is a titled group of items shown on a provider's home page.
type ActivityTab struct {
	ID    string      `json:"id" yaml:"id"`
	Title string      `json:"title" yaml:"title"`
	Items []MediaItem `json:"items" yaml:"items"`
}
