package models

import (
	"fmt"
	"strings"
	"time"
)

// LibraryTrack is an audio file indexed from a library folder.
//
// Artist, AlbumArtist, Album and Genre are the tag values. The *ID fields are filled in by the
// repository when the track is read back.
type LibraryTrack struct {
	ID          string
	Path        string
	Title       string
	MimeType    string
	DurationMs  int64
	Artist      string
	AlbumArtist string
	Album       string
	Genre       string
	DiscNumber  int
	TrackNumber int
	Year        int
	Size        int64
	ModTime     time.Time

	ArtistID  string
	AlbumID   string
	GenreID   string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// LibraryAlbum is an album derived from the tags of its tracks.
type LibraryAlbum struct {
	ID         string
	Title      string
	ArtistID   string
	ArtistName string
	Year       int
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// LibraryName is an artist or genre, both of which are identified by name alone.
type LibraryName struct {
	ID        string
	Name      string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// LocalPlaylist is a playlist stored in the local database.
type LocalPlaylist struct {
	id        string
	sequence  int
	name      string
	createdAt time.Time
	updatedAt time.Time
}

// NewLocalPlaylist creates an unsaved playlist. The id and sequence are assigned on create.
func NewLocalPlaylist(name string) *LocalPlaylist {
	now := time.Now()
	return &LocalPlaylist{name: strings.TrimSpace(name), createdAt: now, updatedAt: now}
}

// RestoreLocalPlaylist rebuilds a playlist read from storage.
func RestoreLocalPlaylist(id string, sequence int, name string, createdAt, updatedAt time.Time) *LocalPlaylist {
	return &LocalPlaylist{id: id, sequence: sequence, name: name, createdAt: createdAt, updatedAt: updatedAt}
}

func (p *LocalPlaylist) ID() string           { return p.id }
func (p *LocalPlaylist) Sequence() int        { return p.sequence }
func (p *LocalPlaylist) Name() string         { return p.name }
func (p *LocalPlaylist) CreatedAt() time.Time { return p.createdAt }
func (p *LocalPlaylist) UpdatedAt() time.Time { return p.updatedAt }

func (p *LocalPlaylist) SetID(id string)                { p.id = id }
func (p *LocalPlaylist) SetSequence(sequence int)       { p.sequence = sequence }
func (p *LocalPlaylist) SetName(name string)            { p.name = strings.TrimSpace(name) }
func (p *LocalPlaylist) SetUpdatedAt(updated time.Time) { p.updatedAt = updated }

func (p *LocalPlaylist) Validate() error {
	if p.name == "" {
		return fmt.Errorf("playlist name is required")
	}
	return nil
}
