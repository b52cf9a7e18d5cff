package database

import (
	"database/sql"
	"fmt"
	"time"

	"seriescomplete/models"
)

// SeriesRepository stores the local episode inventory and the latest
// resolution per series.
type SeriesRepository struct {
	db *sql.DB
}

func NewSeriesRepository(db *sql.DB) *SeriesRepository {
	return &SeriesRepository{db: db}
}

// Upsert records a locally tracked series and its owned episode count,
// keyed by (title, year). Returns the series id.
func (r *SeriesRepository) Upsert(title string, year, episodeCount int) (int64, error) {
	// LastInsertId is unreliable after a conflict-update, so the id comes
	// back via RETURNING either way.
	var id int64
	err := r.db.QueryRow(`
		INSERT INTO series (title, year, episode_count)
		VALUES (?, ?, ?)
		ON CONFLICT (title, year) DO UPDATE SET
			episode_count = excluded.episode_count,
			updated_at = CURRENT_TIMESTAMP
		RETURNING id`,
		title, year, episodeCount).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("upsert series: %w", err)
	}
	return id, nil
}

// SaveResolution attaches resolved provider metadata to a tracked series.
func (r *SeriesRepository) SaveResolution(id int64, meta *models.SeriesMetadata) error {
	_, err := r.db.Exec(`
		UPDATE series SET
			total_seasons = ?,
			total_episodes = ?,
			status = ?,
			source = ?,
			confidence = ?,
			fallback_used = ?,
			fallback_reason = ?,
			verified = ?,
			resolved_at = ?,
			updated_at = CURRENT_TIMESTAMP
		WHERE id = ?`,
		meta.TotalSeasons, meta.TotalEpisodes, string(meta.Status), meta.Source,
		string(meta.Confidence), boolToInt(meta.FallbackUsed), meta.FallbackReason,
		boolToInt(meta.Verified), time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("save resolution: %w", err)
	}
	return nil
}

// Get returns one tracked series by id.
func (r *SeriesRepository) Get(id int64) (*models.Series, error) {
	row := r.db.QueryRow(seriesSelect+` WHERE id = ?`, id)
	s, err := scanSeries(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return s, nil
}

// List returns every tracked series, alphabetically.
func (r *SeriesRepository) List() ([]models.Series, error) {
	rows, err := r.db.Query(seriesSelect + ` ORDER BY title, year`)
	if err != nil {
		return nil, fmt.Errorf("list series: %w", err)
	}
	defer rows.Close()

	var out []models.Series
	for rows.Next() {
		s, err := scanSeries(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *s)
	}
	return out, rows.Err()
}

// ListStale returns series never resolved, or resolved before the cutoff.
func (r *SeriesRepository) ListStale(cutoff time.Time) ([]models.Series, error) {
	rows, err := r.db.Query(seriesSelect+` WHERE resolved_at IS NULL OR resolved_at < ? ORDER BY title, year`, cutoff.UTC())
	if err != nil {
		return nil, fmt.Errorf("list stale series: %w", err)
	}
	defer rows.Close()

	var out []models.Series
	for rows.Next() {
		s, err := scanSeries(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *s)
	}
	return out, rows.Err()
}

const seriesSelect = `
	SELECT id, title, year, episode_count,
	       COALESCE(total_seasons, 0), COALESCE(total_episodes, 0),
	       COALESCE(status, ''), COALESCE(source, ''), COALESCE(confidence, ''),
	       verified, resolved_at
	FROM series`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSeries(row rowScanner) (*models.Series, error) {
	var s models.Series
	var status, source, confidence string
	var verified int
	var resolvedAt sql.NullTime
	err := row.Scan(&s.ID, &s.Title, &s.Year, &s.EpisodeCount,
		&s.TotalSeasons, &s.TotalEpisodes, &status, &source, &confidence,
		&verified, &resolvedAt)
	if err != nil {
		return nil, err
	}
	s.Status = models.AirStatus(status)
	s.Source = source
	s.Confidence = models.Confidence(confidence)
	s.Verified = verified != 0
	if resolvedAt.Valid {
		t := resolvedAt.Time
		s.ResolvedAt = &t
	}
	return &s, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
