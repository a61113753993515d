package repositories

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/desertthunder/tunebox/internal/models"
	"github.com/desertthunder/tunebox/internal/shared"
	"github.com/desertthunder/tunebox/internal/streams"
)

// PlaylistRepository implements models.Repository[*models.LocalPlaylist] and manages the ordered
// entries of each playlist.
//
// Entries reference audio ids without a foreign key, so a playlist keeps pointing at tracks that
// were removed from the library.
type PlaylistRepository struct {
	db      *sql.DB
	changed *streams.Signal
}

// NewPlaylistRepository creates a PlaylistRepository. A nil signal gets a private one.
func NewPlaylistRepository(db *sql.DB, changed *streams.Signal) *PlaylistRepository {
	if changed == nil {
		changed = streams.NewSignal()
	}
	return &PlaylistRepository{db: db, changed: changed}
}

// Changed fires after every committed write.
func (r *PlaylistRepository) Changed() *streams.Signal { return r.changed }

// Create inserts a new playlist with generated ID and sequence
func (r *PlaylistRepository) Create(playlist *models.LocalPlaylist) error {
	if err := playlist.Validate(); err != nil {
		return fmt.Errorf("%w: %w", shared.ErrInvalidInput, err)
	}

	sequence, err := NextSequence(r.db, "playlists")
	if err != nil {
		return fmt.Errorf("failed to generate sequence: %w", err)
	}

	playlist.SetID(shared.GenerateID())
	playlist.SetSequence(sequence)

	query := `
		INSERT INTO playlists (id, sequence, name, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
	`

	_, err = r.db.Exec(query, playlist.ID(), playlist.Sequence(), playlist.Name(), playlist.CreatedAt(), playlist.UpdatedAt())
	if err != nil {
		return fmt.Errorf("failed to insert playlist: %w", err)
	}

	r.changed.Notify()
	return nil
}

// Get retrieves a playlist by ID
func (r *PlaylistRepository) Get(id string) (*models.LocalPlaylist, error) {
	query := `SELECT id, sequence, name, created_at, updated_at FROM playlists WHERE id = ?`
	return scanPlaylist(r.db.QueryRow(query, id))
}

// Update renames a playlist.
func (r *PlaylistRepository) Update(playlist *models.LocalPlaylist) error {
	if err := playlist.Validate(); err != nil {
		return fmt.Errorf("%w: %w", shared.ErrInvalidInput, err)
	}

	now := time.Now()
	playlist.SetUpdatedAt(now)

	result, err := r.db.Exec(`UPDATE playlists SET name = ?, updated_at = ? WHERE id = ?`, playlist.Name(), now, playlist.ID())
	if err != nil {
		return fmt.Errorf("failed to update playlist: %w", err)
	}
	if err := expectRow(result, "playlist", playlist.ID()); err != nil {
		return err
	}

	r.changed.Notify()
	return nil
}

// Delete removes a playlist and its entries.
func (r *PlaylistRepository) Delete(id string) error {
	result, err := r.db.Exec(`DELETE FROM playlists WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete playlist: %w", err)
	}
	if err := expectRow(result, "playlist", id); err != nil {
		return err
	}

	r.changed.Notify()
	return nil
}

// List returns playlists. The "sort" criterion takes a [models.SortingRule]; the default is
// creation order.
func (r *PlaylistRepository) List(criteria map[string]any) ([]*models.LocalPlaylist, error) {
	query := `SELECT p.id, p.sequence, p.name, p.created_at, p.updated_at FROM playlists p`

	rule, ok := criteria["sort"].(models.SortingRule)
	if !ok {
		rule = models.SortingRule{Strategy: models.SortByCreationDate}
	}

	var expr string
	switch rule.Strategy {
	case models.SortByModificationDate:
		expr = "p.updated_at"
	case models.SortByName, models.SortByArtist:
		expr = "p.name COLLATE NOCASE"
	case models.SortByPlayCount:
		expr = `COALESCE((SELECT SUM(ms.play_count) FROM playlist_tracks pt JOIN media_stats ms ON ms.audio_id = pt.audio_id WHERE pt.playlist_id = p.id), 0)`
	default:
		expr = "p.sequence"
	}
	query += orderBy(expr, rule.Reverse, "p.sequence")

	return r.queryPlaylists(query)
}

// ListContaining lists the playlists holding at least one track matched by column = value,
// where column is an audios column such as artist_id or genre_id.
func (r *PlaylistRepository) ListContaining(column, value string) ([]*models.LocalPlaylist, error) {
	switch column {
	case "id", "artist_id", "album_id", "genre_id":
	default:
		return nil, fmt.Errorf("%w: cannot filter playlists by %s", shared.ErrInvalidArgument, column)
	}

	return r.queryPlaylists(`
		SELECT DISTINCT p.id, p.sequence, p.name, p.created_at, p.updated_at
		FROM playlists p
		JOIN playlist_tracks pt ON pt.playlist_id = p.id
		JOIN audios a ON a.id = pt.audio_id
		WHERE a.`+column+` = ?
		ORDER BY p.sequence
	`, value)
}

// Entries returns the audio ids of a playlist in order.
func (r *PlaylistRepository) Entries(playlistID string) ([]string, error) {
	if _, err := r.Get(playlistID); err != nil {
		return nil, err
	}

	rows, err := r.db.Query(`SELECT audio_id FROM playlist_tracks WHERE playlist_id = ? ORDER BY position`, playlistID)
	if err != nil {
		return nil, fmt.Errorf("failed to query playlist entries: %w", err)
	}
	defer rows.Close()

	ids := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan playlist entry: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return ids, nil
}

// Memberships returns the ids of the playlists that contain audioID.
func (r *PlaylistRepository) Memberships(audioID string) (map[string]bool, error) {
	rows, err := r.db.Query(`SELECT DISTINCT playlist_id FROM playlist_tracks WHERE audio_id = ?`, audioID)
	if err != nil {
		return nil, fmt.Errorf("failed to query memberships: %w", err)
	}
	defer rows.Close()

	out := map[string]bool{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan membership: %w", err)
		}
		out[id] = true
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return out, nil
}

// AddEntry appends audioID to the end of a playlist. Duplicates are allowed.
func (r *PlaylistRepository) AddEntry(playlistID, audioID string) error {
	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	now := time.Now()
	result, err := tx.Exec(`UPDATE playlists SET updated_at = ? WHERE id = ?`, now, playlistID)
	if err != nil {
		return fmt.Errorf("failed to touch playlist: %w", err)
	}
	if err := expectRow(result, "playlist", playlistID); err != nil {
		return err
	}

	_, err = tx.Exec(`
		INSERT INTO playlist_tracks (playlist_id, audio_id, position, added_at)
		VALUES (?, ?, (SELECT COALESCE(MAX(position), -1) + 1 FROM playlist_tracks WHERE playlist_id = ?), ?)
	`, playlistID, audioID, playlistID, now)
	if err != nil {
		return fmt.Errorf("failed to add playlist entry: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit playlist entry: %w", err)
	}
	r.changed.Notify()
	return nil
}

// RemoveEntry removes the first occurrence of audioID and closes the gap it leaves.
// Removing an audio that is not in the playlist is a no-op.
func (r *PlaylistRepository) RemoveEntry(playlistID, audioID string) error {
	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var exists int
	err = tx.QueryRow(`SELECT COUNT(*) FROM playlists WHERE id = ?`, playlistID).Scan(&exists)
	if err != nil {
		return fmt.Errorf("failed to look up playlist: %w", err)
	}
	if exists == 0 {
		return fmt.Errorf("%w: playlist %s", shared.ErrNotFound, playlistID)
	}

	var first sql.NullInt64
	err = tx.QueryRow(`SELECT MIN(position) FROM playlist_tracks WHERE playlist_id = ? AND audio_id = ?`, playlistID, audioID).Scan(&first)
	if err != nil {
		return fmt.Errorf("failed to look up playlist entry: %w", err)
	}
	if !first.Valid {
		return nil
	}
	position := first.Int64

	if _, err := tx.Exec(`DELETE FROM playlist_tracks WHERE playlist_id = ? AND position = ?`, playlistID, position); err != nil {
		return fmt.Errorf("failed to remove playlist entry: %w", err)
	}
	// shift through negative positions so the primary key never collides mid-update
	if _, err := tx.Exec(`UPDATE playlist_tracks SET position = -position WHERE playlist_id = ? AND position > ?`, playlistID, position); err != nil {
		return fmt.Errorf("failed to reorder playlist: %w", err)
	}
	if _, err := tx.Exec(`UPDATE playlist_tracks SET position = -position - 1 WHERE playlist_id = ? AND position < 0`, playlistID); err != nil {
		return fmt.Errorf("failed to reorder playlist: %w", err)
	}
	if _, err := tx.Exec(`UPDATE playlists SET updated_at = ? WHERE id = ?`, time.Now(), playlistID); err != nil {
		return fmt.Errorf("failed to touch playlist: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit playlist entry removal: %w", err)
	}
	r.changed.Notify()
	return nil
}

func (r *PlaylistRepository) queryPlaylists(query string, args ...any) ([]*models.LocalPlaylist, error) {
	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query playlists: %w", err)
	}
	defer rows.Close()

	playlists := []*models.LocalPlaylist{}
	for rows.Next() {
		playlist, err := scanPlaylist(rows)
		if err != nil {
			return nil, err
		}
		playlists = append(playlists, playlist)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return playlists, nil
}

func scanPlaylist(row scanner) (*models.LocalPlaylist, error) {
	var (
		id        string
		sequence  int
		name      string
		createdAt time.Time
		updatedAt time.Time
	)

	err := row.Scan(&id, &sequence, &name, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: playlist", shared.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan playlist: %w", err)
	}
	return models.RestoreLocalPlaylist(id, sequence, name, createdAt, updatedAt), nil
}

func expectRow(result sql.Result, kind, id string) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: %s %s", shared.ErrNotFound, kind, id)
	}
	return nil
}
