package repositories

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/desertthunder/tunebox/internal/models"
	"github.com/desertthunder/tunebox/internal/shared"
	"github.com/desertthunder/tunebox/internal/streams"
)

// LibraryRepository stores the local library index.
//
// Albums, artists and genres are derived from track tags: they are created when a track first
// names them and pruned when the last track naming them goes away.
type LibraryRepository struct {
	db      *sql.DB
	changed *streams.Signal
}

// IndexedFile is what the scanner needs to decide whether a file changed.
type IndexedFile struct {
	ID      string
	Size    int64
	ModTime time.Time
}

// SearchResults groups library matches by collection.
type SearchResults struct {
	Artists []models.LibraryName
	Albums  []models.LibraryAlbum
	Genres  []models.LibraryName
	Tracks  []models.LibraryTrack
}

// LibraryCounts is the size of each collection.
type LibraryCounts struct {
	Tracks  int
	Albums  int
	Artists int
	Genres  int
}

const trackSelect = `
	SELECT a.id, a.path, a.title, a.mime_type, a.duration_ms,
		COALESCE(ar.name, ''), COALESCE(alar.name, ''), COALESCE(al.title, ''), COALESCE(g.name, ''),
		a.disc_number, a.track_number, a.year, a.size, a.mod_time,
		COALESCE(a.artist_id, ''), COALESCE(a.album_id, ''), COALESCE(a.genre_id, ''),
		a.created_at, a.updated_at
	FROM audios a
	LEFT JOIN artists ar ON ar.id = a.artist_id
	LEFT JOIN albums al ON al.id = a.album_id
	LEFT JOIN artists alar ON alar.id = al.artist_id
	LEFT JOIN genres g ON g.id = a.genre_id
`

const albumSelect = `
	SELECT al.id, al.title, COALESCE(ar.id, ''), COALESCE(ar.name, ''), al.year, al.created_at, al.updated_at
	FROM albums al
	LEFT JOIN artists ar ON ar.id = al.artist_id
`

// NewLibraryRepository creates a LibraryRepository. A nil signal gets a private one.
func NewLibraryRepository(db *sql.DB, changed *streams.Signal) *LibraryRepository {
	if changed == nil {
		changed = streams.NewSignal()
	}
	return &LibraryRepository{db: db, changed: changed}
}

// Changed fires after every committed write.
func (r *LibraryRepository) Changed() *streams.Signal { return r.changed }

// UpsertTrack inserts or updates the track at track.Path, creating the album, artists and genre
// it names. On return the ID fields of track are set.
func (r *LibraryRepository) UpsertTrack(track *models.LibraryTrack) error {
	if track.Path == "" {
		return fmt.Errorf("%w: track path is required", shared.ErrInvalidInput)
	}
	if strings.TrimSpace(track.Title) == "" {
		return fmt.Errorf("%w: track title is required", shared.ErrInvalidInput)
	}

	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	now := time.Now()

	artistID, err := ensureName(tx, "artists", track.Artist, now)
	if err != nil {
		return err
	}
	albumArtistID := artistID
	if track.AlbumArtist != "" && track.AlbumArtist != track.Artist {
		if albumArtistID, err = ensureName(tx, "artists", track.AlbumArtist, now); err != nil {
			return err
		}
	}
	genreID, err := ensureName(tx, "genres", track.Genre, now)
	if err != nil {
		return err
	}
	albumID, err := ensureAlbum(tx, track.Album, albumArtistID, track.Year, now)
	if err != nil {
		return err
	}

	var (
		existingID string
		createdAt  time.Time
	)
	err = tx.QueryRow(`SELECT id, created_at FROM audios WHERE path = ?`, track.Path).Scan(&existingID, &createdAt)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		track.ID = shared.GenerateID()
		track.CreatedAt = now
		_, err = tx.Exec(`
			INSERT INTO audios (id, path, title, mime_type, duration_ms, artist_id, album_id, genre_id,
				disc_number, track_number, year, size, mod_time, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`,
			track.ID, track.Path, track.Title, track.MimeType, track.DurationMs, artistID, albumID, genreID,
			track.DiscNumber, track.TrackNumber, track.Year, track.Size, track.ModTime, now, now,
		)
		if err != nil {
			return fmt.Errorf("failed to insert track: %w", err)
		}
	case err != nil:
		return fmt.Errorf("failed to look up track: %w", err)
	default:
		track.ID = existingID
		track.CreatedAt = createdAt
		_, err = tx.Exec(`
			UPDATE audios
			SET title = ?, mime_type = ?, duration_ms = ?, artist_id = ?, album_id = ?, genre_id = ?,
				disc_number = ?, track_number = ?, year = ?, size = ?, mod_time = ?, updated_at = ?
			WHERE id = ?
		`,
			track.Title, track.MimeType, track.DurationMs, artistID, albumID, genreID,
			track.DiscNumber, track.TrackNumber, track.Year, track.Size, track.ModTime, now, existingID,
		)
		if err != nil {
			return fmt.Errorf("failed to update track: %w", err)
		}
		if err := pruneOrphans(tx); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit track: %w", err)
	}

	track.UpdatedAt = now
	track.ArtistID = artistID.String
	track.AlbumID = albumID.String
	track.GenreID = genreID.String
	r.changed.Notify()
	return nil
}

// DeleteTracks removes tracks by id and prunes what they leave orphaned.
// Playlist entries pointing at them are kept.
func (r *LibraryRepository) DeleteTracks(ids ...string) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}

	tx, err := r.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	deleted := 0
	for _, id := range ids {
		result, err := tx.Exec(`DELETE FROM audios WHERE id = ?`, id)
		if err != nil {
			return 0, fmt.Errorf("failed to delete track: %w", err)
		}
		n, err := result.RowsAffected()
		if err != nil {
			return 0, fmt.Errorf("failed to get affected rows: %w", err)
		}
		deleted += int(n)
	}

	if err := pruneOrphans(tx); err != nil {
		return 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit delete: %w", err)
	}

	if deleted > 0 {
		r.changed.Notify()
	}
	return deleted, nil
}

// IndexedFiles returns the indexed files under root keyed by path.
func (r *LibraryRepository) IndexedFiles(root string) (map[string]IndexedFile, error) {
	prefix := strings.TrimRight(root, string(os.PathSeparator)) + string(os.PathSeparator)
	pattern := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(prefix) + "%"

	rows, err := r.db.Query(`SELECT id, path, size, mod_time FROM audios WHERE path LIKE ? ESCAPE '\'`, pattern)
	if err != nil {
		return nil, fmt.Errorf("failed to query indexed files: %w", err)
	}
	defer rows.Close()

	files := map[string]IndexedFile{}
	for rows.Next() {
		var (
			path string
			file IndexedFile
		)
		if err := rows.Scan(&file.ID, &path, &file.Size, &file.ModTime); err != nil {
			return nil, fmt.Errorf("failed to scan indexed file: %w", err)
		}
		files[path] = file
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return files, nil
}

// Track retrieves a track by id.
func (r *LibraryRepository) Track(id string) (*models.LibraryTrack, error) {
	return scanTrack(r.db.QueryRow(trackSelect+` WHERE a.id = ?`, id))
}

// TrackByPath retrieves a track by file path.
func (r *LibraryRepository) TrackByPath(path string) (*models.LibraryTrack, error) {
	return scanTrack(r.db.QueryRow(trackSelect+` WHERE a.path = ?`, path))
}

// Tracks lists every track in the order given by rule.
func (r *LibraryRepository) Tracks(rule models.SortingRule) ([]models.LibraryTrack, error) {
	return r.queryTracks(trackSelect + orderBy(trackSortExpr(rule.Strategy), rule.Reverse, "a.title COLLATE NOCASE"))
}

// TracksByAlbum lists the tracks of an album in disc and track order.
func (r *LibraryRepository) TracksByAlbum(albumID string) ([]models.LibraryTrack, error) {
	return r.queryTracks(trackSelect+` WHERE a.album_id = ? ORDER BY a.disc_number, a.track_number, a.title COLLATE NOCASE`, albumID)
}

// TracksByGenre lists the tracks tagged with a genre.
func (r *LibraryRepository) TracksByGenre(genreID string) ([]models.LibraryTrack, error) {
	return r.queryTracks(trackSelect+` WHERE a.genre_id = ? ORDER BY a.title COLLATE NOCASE`, genreID)
}

// RecentTracks lists the most recently indexed tracks.
func (r *LibraryRepository) RecentTracks(limit int) ([]models.LibraryTrack, error) {
	return r.queryTracks(trackSelect+` ORDER BY a.created_at DESC, a.title COLLATE NOCASE LIMIT ?`, limit)
}

// TracksByIDs returns the tracks that still exist among ids, keyed by id.
func (r *LibraryRepository) TracksByIDs(ids []string) (map[string]models.LibraryTrack, error) {
	out := make(map[string]models.LibraryTrack, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}

	tracks, err := r.queryTracks(trackSelect+` WHERE a.id IN (`+placeholders+`)`, args...)
	if err != nil {
		return nil, err
	}
	for _, t := range tracks {
		out[t.ID] = t
	}
	return out, nil
}

// Album retrieves an album by id.
func (r *LibraryRepository) Album(id string) (*models.LibraryAlbum, error) {
	return scanAlbum(r.db.QueryRow(albumSelect+` WHERE al.id = ?`, id))
}

// Albums lists every album in the order given by rule.
func (r *LibraryRepository) Albums(rule models.SortingRule) ([]models.LibraryAlbum, error) {
	return r.queryAlbums(albumSelect + orderBy(albumSortExpr(rule.Strategy), rule.Reverse, "al.title COLLATE NOCASE"))
}

// AlbumsByArtist lists the albums credited to an artist.
func (r *LibraryRepository) AlbumsByArtist(artistID string) ([]models.LibraryAlbum, error) {
	return r.queryAlbums(albumSelect+` WHERE al.artist_id = ? ORDER BY al.year, al.title COLLATE NOCASE`, artistID)
}

// AlbumsFeaturingArtist lists albums credited to someone else that contain a track by the artist.
func (r *LibraryRepository) AlbumsFeaturingArtist(artistID string) ([]models.LibraryAlbum, error) {
	return r.queryAlbums(`
		SELECT DISTINCT al.id, al.title, COALESCE(ar.id, ''), COALESCE(ar.name, ''), al.year, al.created_at, al.updated_at
		FROM albums al
		LEFT JOIN artists ar ON ar.id = al.artist_id
		JOIN audios a ON a.album_id = al.id
		WHERE a.artist_id = ? AND (al.artist_id IS NULL OR al.artist_id != ?)
		ORDER BY al.title COLLATE NOCASE
	`, artistID, artistID)
}

// AlbumsByGenre lists albums that contain a track of the genre.
func (r *LibraryRepository) AlbumsByGenre(genreID string) ([]models.LibraryAlbum, error) {
	return r.queryAlbums(`
		SELECT DISTINCT al.id, al.title, COALESCE(ar.id, ''), COALESCE(ar.name, ''), al.year, al.created_at, al.updated_at
		FROM albums al
		LEFT JOIN artists ar ON ar.id = al.artist_id
		JOIN audios a ON a.album_id = al.id
		WHERE a.genre_id = ?
		ORDER BY al.title COLLATE NOCASE
	`, genreID)
}

// Artist retrieves an artist by id.
func (r *LibraryRepository) Artist(id string) (*models.LibraryName, error) {
	return scanName(r.db.QueryRow(`SELECT id, name, created_at, updated_at FROM artists WHERE id = ?`, id), "artist")
}

// Artists lists every artist in the order given by rule.
func (r *LibraryRepository) Artists(rule models.SortingRule) ([]models.LibraryName, error) {
	return r.queryNames("artists", "artist_id", rule)
}

// Genre retrieves a genre by id.
func (r *LibraryRepository) Genre(id string) (*models.LibraryName, error) {
	return scanName(r.db.QueryRow(`SELECT id, name, created_at, updated_at FROM genres WHERE id = ?`, id), "genre")
}

// Genres lists every genre in the order given by rule.
func (r *LibraryRepository) Genres(rule models.SortingRule) ([]models.LibraryName, error) {
	return r.queryNames("genres", "genre_id", rule)
}

// Search matches query as a case-insensitive substring of names and titles.
func (r *LibraryRepository) Search(query string, limit int) (*SearchResults, error) {
	pattern := likePattern(query)
	results := &SearchResults{}

	var err error
	if results.Artists, err = r.queryNamesWhere("artists", `WHERE n.name LIKE ? ESCAPE '\' ORDER BY n.name COLLATE NOCASE LIMIT ?`, pattern, limit); err != nil {
		return nil, err
	}
	if results.Albums, err = r.queryAlbums(albumSelect+` WHERE al.title LIKE ? ESCAPE '\' ORDER BY al.title COLLATE NOCASE LIMIT ?`, pattern, limit); err != nil {
		return nil, err
	}
	if results.Genres, err = r.queryNamesWhere("genres", `WHERE n.name LIKE ? ESCAPE '\' ORDER BY n.name COLLATE NOCASE LIMIT ?`, pattern, limit); err != nil {
		return nil, err
	}
	if results.Tracks, err = r.queryTracks(trackSelect+` WHERE a.title LIKE ? ESCAPE '\' ORDER BY a.title COLLATE NOCASE LIMIT ?`, pattern, limit); err != nil {
		return nil, err
	}
	return results, nil
}

// Counts returns the size of each collection.
func (r *LibraryRepository) Counts() (LibraryCounts, error) {
	var c LibraryCounts
	err := r.db.QueryRow(`
		SELECT (SELECT COUNT(*) FROM audios), (SELECT COUNT(*) FROM albums),
			(SELECT COUNT(*) FROM artists), (SELECT COUNT(*) FROM genres)
	`).Scan(&c.Tracks, &c.Albums, &c.Artists, &c.Genres)
	if err != nil {
		return c, fmt.Errorf("failed to count library: %w", err)
	}
	return c, nil
}

func (r *LibraryRepository) queryTracks(query string, args ...any) ([]models.LibraryTrack, error) {
	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query tracks: %w", err)
	}
	defer rows.Close()

	tracks := []models.LibraryTrack{}
	for rows.Next() {
		track, err := scanTrack(rows)
		if err != nil {
			return nil, err
		}
		tracks = append(tracks, *track)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return tracks, nil
}

func (r *LibraryRepository) queryAlbums(query string, args ...any) ([]models.LibraryAlbum, error) {
	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query albums: %w", err)
	}
	defer rows.Close()

	albums := []models.LibraryAlbum{}
	for rows.Next() {
		album, err := scanAlbum(rows)
		if err != nil {
			return nil, err
		}
		albums = append(albums, *album)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return albums, nil
}

func (r *LibraryRepository) queryNames(table, column string, rule models.SortingRule) ([]models.LibraryName, error) {
	var expr string
	switch rule.Strategy {
	case models.SortByCreationDate:
		expr = "n.created_at"
	case models.SortByModificationDate:
		expr = "n.updated_at"
	case models.SortByPlayCount:
		expr = fmt.Sprintf(`COALESCE((SELECT SUM(ms.play_count) FROM audios a JOIN media_stats ms ON ms.audio_id = a.id WHERE a.%s = n.id), 0)`, column)
	default:
		expr = "n.name COLLATE NOCASE"
	}
	return r.queryNamesWhere(table, orderBy(expr, rule.Reverse, "n.name COLLATE NOCASE"))
}

func (r *LibraryRepository) queryNamesWhere(table, clause string, args ...any) ([]models.LibraryName, error) {
	rows, err := r.db.Query(`SELECT n.id, n.name, n.created_at, n.updated_at FROM `+table+` n `+clause, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query %s: %w", table, err)
	}
	defer rows.Close()

	names := []models.LibraryName{}
	for rows.Next() {
		name, err := scanName(rows, table)
		if err != nil {
			return nil, err
		}
		names = append(names, *name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return names, nil
}

func trackSortExpr(strategy models.SortingStrategy) string {
	switch strategy {
	case models.SortByCreationDate:
		return "a.created_at"
	case models.SortByModificationDate:
		return "a.updated_at"
	case models.SortByPlayCount:
		return "COALESCE((SELECT ms.play_count FROM media_stats ms WHERE ms.audio_id = a.id), 0)"
	case models.SortByArtist:
		return "ar.name COLLATE NOCASE"
	default:
		return "a.title COLLATE NOCASE"
	}
}

func albumSortExpr(strategy models.SortingStrategy) string {
	switch strategy {
	case models.SortByCreationDate:
		return "al.created_at"
	case models.SortByModificationDate:
		return "al.updated_at"
	case models.SortByPlayCount:
		return "COALESCE((SELECT SUM(ms.play_count) FROM audios a JOIN media_stats ms ON ms.audio_id = a.id WHERE a.album_id = al.id), 0)"
	case models.SortByArtist:
		return "ar.name COLLATE NOCASE"
	default:
		return "al.title COLLATE NOCASE"
	}
}

// ensureName returns the id of the artist or genre called name, creating it when missing.
// An empty name yields NULL.
func ensureName(tx *sql.Tx, table, name string, now time.Time) (sql.NullString, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return sql.NullString{}, nil
	}

	var id string
	err := tx.QueryRow(`SELECT id FROM `+table+` WHERE name = ?`, name).Scan(&id)
	switch {
	case err == nil:
		if _, err := tx.Exec(`UPDATE `+table+` SET updated_at = ? WHERE id = ?`, now, id); err != nil {
			return sql.NullString{}, fmt.Errorf("failed to touch %s: %w", table, err)
		}
	case errors.Is(err, sql.ErrNoRows):
		id = shared.GenerateID()
		if _, err := tx.Exec(`INSERT INTO `+table+` (id, name, created_at, updated_at) VALUES (?, ?, ?, ?)`, id, name, now, now); err != nil {
			return sql.NullString{}, fmt.Errorf("failed to insert into %s: %w", table, err)
		}
	default:
		return sql.NullString{}, fmt.Errorf("failed to look up %s: %w", table, err)
	}
	return nullString(id), nil
}

// ensureAlbum returns the id of the album title by artistID, creating it when missing.
func ensureAlbum(tx *sql.Tx, title string, artistID sql.NullString, year int, now time.Time) (sql.NullString, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return sql.NullString{}, nil
	}

	var id string
	err := tx.QueryRow(`SELECT id FROM albums WHERE title = ? AND artist_id IS ?`, title, artistID).Scan(&id)
	switch {
	case err == nil:
		_, err := tx.Exec(`UPDATE albums SET updated_at = ?, year = CASE WHEN year = 0 THEN ? ELSE year END WHERE id = ?`, now, year, id)
		if err != nil {
			return sql.NullString{}, fmt.Errorf("failed to touch album: %w", err)
		}
	case errors.Is(err, sql.ErrNoRows):
		id = shared.GenerateID()
		_, err := tx.Exec(`INSERT INTO albums (id, title, artist_id, year, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?)`,
			id, title, artistID, year, now, now)
		if err != nil {
			return sql.NullString{}, fmt.Errorf("failed to insert album: %w", err)
		}
	default:
		return sql.NullString{}, fmt.Errorf("failed to look up album: %w", err)
	}
	return nullString(id), nil
}

func pruneOrphans(tx *sql.Tx) error {
	statements := []string{
		`DELETE FROM albums WHERE id NOT IN (SELECT album_id FROM audios WHERE album_id IS NOT NULL)`,
		`DELETE FROM artists WHERE id NOT IN (SELECT artist_id FROM audios WHERE artist_id IS NOT NULL)
			AND id NOT IN (SELECT artist_id FROM albums WHERE artist_id IS NOT NULL)`,
		`DELETE FROM genres WHERE id NOT IN (SELECT genre_id FROM audios WHERE genre_id IS NOT NULL)`,
	}
	for _, stmt := range statements {
		if _, err := tx.Exec(stmt); err != nil {
			return fmt.Errorf("failed to prune library: %w", err)
		}
	}
	return nil
}

func scanTrack(row scanner) (*models.LibraryTrack, error) {
	var t models.LibraryTrack
	err := row.Scan(
		&t.ID, &t.Path, &t.Title, &t.MimeType, &t.DurationMs,
		&t.Artist, &t.AlbumArtist, &t.Album, &t.Genre,
		&t.DiscNumber, &t.TrackNumber, &t.Year, &t.Size, &t.ModTime,
		&t.ArtistID, &t.AlbumID, &t.GenreID,
		&t.CreatedAt, &t.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: track", shared.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan track: %w", err)
	}
	return &t, nil
}

func scanAlbum(row scanner) (*models.LibraryAlbum, error) {
	var a models.LibraryAlbum
	err := row.Scan(&a.ID, &a.Title, &a.ArtistID, &a.ArtistName, &a.Year, &a.CreatedAt, &a.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: album", shared.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan album: %w", err)
	}
	return &a, nil
}

func scanName(row scanner, kind string) (*models.LibraryName, error) {
	var n models.LibraryName
	err := row.Scan(&n.ID, &n.Name, &n.CreatedAt, &n.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", shared.ErrNotFound, kind)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan %s: %w", kind, err)
	}
	return &n, nil
}
