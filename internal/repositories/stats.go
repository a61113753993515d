package repositories

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/desertthunder/tunebox/internal/streams"
)

// StatsRepository records local playback statistics.
type StatsRepository struct {
	db      *sql.DB
	changed *streams.Signal
}

// PlayStat is the playback history of one audio.
type PlayStat struct {
	AudioID      string
	PlayCount    int
	Favorite     bool
	LastPlayedAt time.Time
}

// NewStatsRepository creates a StatsRepository. A nil signal gets a private one.
func NewStatsRepository(db *sql.DB, changed *streams.Signal) *StatsRepository {
	if changed == nil {
		changed = streams.NewSignal()
	}
	return &StatsRepository{db: db, changed: changed}
}

// Changed fires after every committed write.
func (r *StatsRepository) Changed() *streams.Signal { return r.changed }

// RecordPlay counts one playback of audioID at the given time.
func (r *StatsRepository) RecordPlay(audioID string, at time.Time) error {
	_, err := r.db.Exec(`
		INSERT INTO media_stats (audio_id, play_count, favorite, last_played_at)
		VALUES (?, 1, 0, ?)
		ON CONFLICT(audio_id) DO UPDATE SET play_count = play_count + 1, last_played_at = excluded.last_played_at
	`, audioID, at)
	if err != nil {
		return fmt.Errorf("failed to record play: %w", err)
	}
	r.changed.Notify()
	return nil
}

// Get returns the statistics of audioID. An audio never played has a zero PlayStat.
func (r *StatsRepository) Get(audioID string) (PlayStat, error) {
	stat := PlayStat{AudioID: audioID}
	err := r.db.QueryRow(`SELECT play_count, favorite, last_played_at FROM media_stats WHERE audio_id = ?`, audioID).
		Scan(&stat.PlayCount, &stat.Favorite, &stat.LastPlayedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return stat, nil
	}
	if err != nil {
		return stat, fmt.Errorf("failed to get stats: %w", err)
	}
	return stat, nil
}

// MostPlayed lists up to limit audio ids by descending play count.
func (r *StatsRepository) MostPlayed(limit int) ([]string, error) {
	return r.ids(`SELECT audio_id FROM media_stats ORDER BY play_count DESC, last_played_at DESC LIMIT ?`, limit)
}

// RecentlyPlayed lists up to limit audio ids by most recent playback.
func (r *StatsRepository) RecentlyPlayed(limit int) ([]string, error) {
	return r.ids(`SELECT audio_id FROM media_stats ORDER BY last_played_at DESC LIMIT ?`, limit)
}

func (r *StatsRepository) ids(query string, args ...any) ([]string, error) {
	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query stats: %w", err)
	}
	defer rows.Close()

	ids := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan stats: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return ids, nil
}
