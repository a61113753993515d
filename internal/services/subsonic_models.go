package services

// Subsonic wire types for the JSON flavour of the REST API (f=json).

const subsonicAPIVersion = "1.16.1"

type subsonicEnvelope struct {
	Response subsonicResponse `json:"subsonic-response"`
}

type subsonicError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type subsonicResponse struct {
	Status        string             `json:"status"`
	Version       string             `json:"version"`
	Type          string             `json:"type,omitempty"`
	ServerVersion string             `json:"serverVersion,omitempty"`
	Error         *subsonicError     `json:"error,omitempty"`
	License       *subsonicLicense   `json:"license,omitempty"`
	AlbumList2    *subsonicAlbumList `json:"albumList2,omitempty"`
	Artists       *subsonicIndexes   `json:"artists,omitempty"`
	Genres        *subsonicGenres    `json:"genres,omitempty"`
	Playlists     *subsonicPlaylists `json:"playlists,omitempty"`
	Playlist      *subsonicPlaylist  `json:"playlist,omitempty"`
	SearchResult3 *subsonicSearch    `json:"searchResult3,omitempty"`
	Song          *subsonicSong      `json:"song,omitempty"`
	Album         *subsonicAlbum     `json:"album,omitempty"`
	Artist        *subsonicArtist    `json:"artist,omitempty"`
	SongsByGenre  *subsonicSongs     `json:"songsByGenre,omitempty"`
	RandomSongs   *subsonicSongs     `json:"randomSongs,omitempty"`
}

type subsonicLicense struct {
	Valid bool   `json:"valid"`
	Email string `json:"email,omitempty"`
}

type subsonicSong struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Album       string `json:"album,omitempty"`
	AlbumID     string `json:"albumId,omitempty"`
	Artist      string `json:"artist,omitempty"`
	ArtistID    string `json:"artistId,omitempty"`
	Genre       string `json:"genre,omitempty"`
	Year        int    `json:"year,omitempty"`
	Track       int    `json:"track,omitempty"`
	DiscNumber  int    `json:"discNumber,omitempty"`
	Duration    int64  `json:"duration,omitempty"` // seconds
	Suffix      string `json:"suffix,omitempty"`
	ContentType string `json:"contentType,omitempty"`
	CoverArt    string `json:"coverArt,omitempty"`
	PlayCount   int    `json:"playCount,omitempty"`
}

type subsonicAlbum struct {
	ID        string         `json:"id"`
	Name      string         `json:"name"`
	Artist    string         `json:"artist,omitempty"`
	ArtistID  string         `json:"artistId,omitempty"`
	Year      int            `json:"year,omitempty"`
	Genre     string         `json:"genre,omitempty"`
	CoverArt  string         `json:"coverArt,omitempty"`
	SongCount int            `json:"songCount,omitempty"`
	Created   string         `json:"created,omitempty"`
	Song      []subsonicSong `json:"song,omitempty"`
}

type subsonicArtist struct {
	ID         string          `json:"id"`
	Name       string          `json:"name"`
	CoverArt   string          `json:"coverArt,omitempty"`
	AlbumCount int             `json:"albumCount,omitempty"`
	Album      []subsonicAlbum `json:"album,omitempty"`
}

type subsonicIndexes struct {
	Index []struct {
		Name   string           `json:"name"`
		Artist []subsonicArtist `json:"artist"`
	} `json:"index"`
}

type subsonicAlbumList struct {
	Album []subsonicAlbum `json:"album"`
}

type subsonicGenre struct {
	Value      string `json:"value"`
	SongCount  int    `json:"songCount"`
	AlbumCount int    `json:"albumCount"`
}

type subsonicGenres struct {
	Genre []subsonicGenre `json:"genre"`
}

type subsonicPlaylist struct {
	ID        string         `json:"id"`
	Name      string         `json:"name"`
	Owner     string         `json:"owner,omitempty"`
	SongCount int            `json:"songCount,omitempty"`
	Created   string         `json:"created,omitempty"`
	Changed   string         `json:"changed,omitempty"`
	CoverArt  string         `json:"coverArt,omitempty"`
	Entry     []subsonicSong `json:"entry,omitempty"`
}

type subsonicPlaylists struct {
	Playlist []subsonicPlaylist `json:"playlist"`
}

type subsonicSearch struct {
	Artist []subsonicArtist `json:"artist,omitempty"`
	Album  []subsonicAlbum  `json:"album,omitempty"`
	Song   []subsonicSong   `json:"song,omitempty"`
}

type subsonicSongs struct {
	Song []subsonicSong `json:"song"`
}
