package services

// Jellyfin wire types. Only the fields the backend reads are declared.

type jellyfinNameID struct {
	Name string `json:"Name"`
	ID   string `json:"Id"`
}

type jellyfinUserData struct {
	PlayCount int  `json:"PlayCount"`
	Played    bool `json:"Played"`
}

type jellyfinItem struct {
	ID                string            `json:"Id"`
	Name              string            `json:"Name"`
	Type              string            `json:"Type"`
	MediaType         string            `json:"MediaType,omitempty"`
	Container         string            `json:"Container,omitempty"`
	Album             string            `json:"Album,omitempty"`
	AlbumID           string            `json:"AlbumId,omitempty"`
	AlbumArtist       string            `json:"AlbumArtist,omitempty"`
	AlbumArtists      []jellyfinNameID  `json:"AlbumArtists,omitempty"`
	Artists           []string          `json:"Artists,omitempty"`
	ArtistItems       []jellyfinNameID  `json:"ArtistItems,omitempty"`
	Genres            []string          `json:"Genres,omitempty"`
	GenreItems        []jellyfinNameID  `json:"GenreItems,omitempty"`
	ProductionYear    int               `json:"ProductionYear,omitempty"`
	RunTimeTicks      int64             `json:"RunTimeTicks,omitempty"`
	IndexNumber       int               `json:"IndexNumber,omitempty"`
	ParentIndexNumber int               `json:"ParentIndexNumber,omitempty"`
	PlaylistItemID    string            `json:"PlaylistItemId,omitempty"`
	ImageTags         map[string]string `json:"ImageTags,omitempty"`
	UserData          *jellyfinUserData `json:"UserData,omitempty"`
}

type jellyfinQueryResult struct {
	Items            []jellyfinItem `json:"Items"`
	TotalRecordCount int            `json:"TotalRecordCount"`
	StartIndex       int            `json:"StartIndex"`
}

type jellyfinAuthenticateByName struct {
	Username string `json:"Username"`
	Pw       string `json:"Pw"`
}

type jellyfinAuthenticationResult struct {
	AccessToken string `json:"AccessToken"`
	ServerID    string `json:"ServerId"`
	User        struct {
		ID   string `json:"Id"`
		Name string `json:"Name"`
	} `json:"User"`
}

type jellyfinCreatePlaylist struct {
	Name      string   `json:"Name"`
	IDs       []string `json:"Ids"`
	UserID    string   `json:"UserId,omitempty"`
	MediaType string   `json:"MediaType"`
	IsPublic  bool     `json:"IsPublic"`
}

type jellyfinCreatePlaylistResult struct {
	ID string `json:"Id"`
}

type jellyfinUpdatePlaylist struct {
	Name *string  `json:"Name,omitempty"`
	IDs  []string `json:"Ids,omitempty"`
}

type jellyfinUser struct {
	ID   string `json:"Id"`
	Name string `json:"Name"`
}

type jellyfinSystemInfo struct {
	ServerName      string `json:"ServerName"`
	Version         string `json:"Version"`
	ProductName     string `json:"ProductName"`
	OperatingSystem string `json:"OperatingSystem"`
	ID              string `json:"Id"`
}

const (
	jellyfinTypeAudio       = "Audio"
	jellyfinTypeMusicAlbum  = "MusicAlbum"
	jellyfinTypeMusicArtist = "MusicArtist"
	jellyfinTypePerson      = "Person"
	jellyfinTypeGenre       = "Genre"
	jellyfinTypeMusicGenre  = "MusicGenre"
	jellyfinTypePlaylist    = "Playlist"
)
