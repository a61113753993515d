package repositories

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/desertthunder/tunebox/internal/streams"
	"github.com/mattn/go-sqlite3"
)

// NextSequence atomically increments and returns the next sequence number for the given table.
//
// It opens its own transaction, so it must not be called while another transaction holds the
// connection of a single-connection database.
func NextSequence(db *sql.DB, table string) (int, error) {
	tx, err := db.Begin()
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	sequenceTable := table + "_sequence"

	_, err = tx.Exec(fmt.Sprintf("UPDATE %s SET value = value + 1 WHERE id = 1", sequenceTable))
	if err != nil {
		return 0, fmt.Errorf("failed to increment sequence: %w", err)
	}

	var sequence int
	err = tx.QueryRow(fmt.Sprintf("SELECT value FROM %s WHERE id = 1", sequenceTable)).Scan(&sequence)
	if err != nil {
		return 0, fmt.Errorf("failed to get sequence value: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit sequence transaction: %w", err)
	}

	return sequence, nil
}

// Store groups the repositories of one database.
type Store struct {
	DB        *sql.DB
	Providers *ProviderRepository
	Library   *LibraryRepository
	Playlists *PlaylistRepository
	Stats     *StatsRepository
	Settings  *SettingsRepository
}

// NewStore creates every repository over db.
func NewStore(db *sql.DB) *Store {
	media := streams.NewSignal()
	return &Store{
		DB:        db,
		Providers: NewProviderRepository(db),
		Library:   NewLibraryRepository(db, media),
		Playlists: NewPlaylistRepository(db, media),
		Stats:     NewStatsRepository(db, media),
		Settings:  NewSettingsRepository(db),
	}
}

// Close closes the database.
func (s *Store) Close() error {
	return s.DB.Close()
}

// isUniqueViolation reports whether err is a UNIQUE or PRIMARY KEY constraint failure.
func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	return false
}

// orderBy renders an ORDER BY clause for expr, falling back to tiebreak ascending.
func orderBy(expr string, reverse bool, tiebreak string) string {
	direction := "ASC"
	if reverse {
		direction = "DESC"
	}
	if tiebreak == "" || tiebreak == expr {
		return fmt.Sprintf(" ORDER BY %s %s", expr, direction)
	}
	return fmt.Sprintf(" ORDER BY %s %s, %s ASC", expr, direction, tiebreak)
}

// likePattern escapes the LIKE wildcards of query and wraps it for a substring match.
func likePattern(query string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return "%" + r.Replace(strings.TrimSpace(query)) + "%"
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
