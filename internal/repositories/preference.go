package repositories

import (
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/desertthunder/dive/internal/models"
	"github.com/desertthunder/dive/internal/shared"
)

// Preference keys for the saved pipeline settings.
const (
	PrefMode             = "mode"
	PrefSourcePlaylistID = "source_playlist_id"
	PrefThreshold        = "threshold"
	PrefTracksPerArtist  = "tracks_per_artist"
	PrefRelatedPerArtist = "related_per_artist"
	PrefPlaylistName     = "playlist_name"
)

// PreferenceKeys lists every key [PreferenceRepository.ApplyPipeline] reads.
var PreferenceKeys = []string{
	PrefMode, PrefSourcePlaylistID, PrefThreshold,
	PrefTracksPerArtist, PrefRelatedPerArtist, PrefPlaylistName,
}

// PreferenceRepository stores the pipeline settings a user chose so later runs start from them.
type PreferenceRepository struct {
	db *sql.DB
}

// NewPreferenceRepository creates a new PreferenceRepository with the given database connection
func NewPreferenceRepository(db *sql.DB) *PreferenceRepository {
	return &PreferenceRepository{db: db}
}

// Get returns the value stored under key, or [shared.ErrRecordNotFound].
func (r *PreferenceRepository) Get(key string) (string, error) {
	var value string
	err := r.db.QueryRow("SELECT value FROM preferences WHERE key = ?", key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("preference %s: %w", key, shared.ErrRecordNotFound)
	}
	if err != nil {
		return "", fmt.Errorf("failed to get preference %s: %w", key, err)
	}
	return value, nil
}

// Set upserts key.
func (r *PreferenceRepository) Set(key, value string) error {
	_, err := r.db.Exec(`
		INSERT INTO preferences (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
	`, key, value, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to set preference %s: %w", key, err)
	}
	return nil
}

// Delete removes key. Removing a missing key is not an error.
func (r *PreferenceRepository) Delete(key string) error {
	if _, err := r.db.Exec("DELETE FROM preferences WHERE key = ?", key); err != nil {
		return fmt.Errorf("failed to delete preference %s: %w", key, err)
	}
	return nil
}

// All returns every stored preference.
func (r *PreferenceRepository) All() (map[string]string, error) {
	rows, err := r.db.Query("SELECT key, value FROM preferences ORDER BY key")
	if err != nil {
		return nil, fmt.Errorf("failed to query preferences: %w", err)
	}
	defer rows.Close()

	prefs := make(map[string]string)
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return nil, fmt.Errorf("failed to scan preference: %w", err)
		}
		prefs[key] = value
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return prefs, nil
}

// SavePipeline stores every field of cfg in one transaction.
func (r *PreferenceRepository) SavePipeline(cfg models.PipelineConfig) error {
	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	values := map[string]string{
		PrefMode:             cfg.Mode.String(),
		PrefSourcePlaylistID: cfg.SourcePlaylistID,
		PrefThreshold:        strconv.Itoa(cfg.Threshold),
		PrefTracksPerArtist:  strconv.Itoa(cfg.TracksPerArtist),
		PrefRelatedPerArtist: strconv.Itoa(cfg.RelatedPerArtist),
		PrefPlaylistName:     cfg.PlaylistName,
	}

	now := time.Now().UTC()
	for _, key := range PreferenceKeys {
		_, err := tx.Exec(`
			INSERT INTO preferences (key, value, updated_at) VALUES (?, ?, ?)
			ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
		`, key, values[key], now)
		if err != nil {
			return fmt.Errorf("failed to save preference %s: %w", key, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit preferences: %w", err)
	}
	return nil
}

// ApplyPipeline overlays the stored preferences on base.
//
// Unknown keys are ignored; a stored value that does not parse is an error
// wrapping [shared.ErrInvalidConfig].
func (r *PreferenceRepository) ApplyPipeline(base models.PipelineConfig) (models.PipelineConfig, error) {
	prefs, err := r.All()
	if err != nil {
		return base, err
	}

	cfg := base
	var errs []error
	for key, value := range prefs {
		switch key {
		case PrefMode:
			mode, err := models.ParseMode(value)
			if err != nil {
				errs = append(errs, err)
				continue
			}
			cfg.Mode = mode
		case PrefSourcePlaylistID:
			cfg.SourcePlaylistID = value
		case PrefPlaylistName:
			if value != "" {
				cfg.PlaylistName = value
			}
		case PrefThreshold, PrefTracksPerArtist, PrefRelatedPerArtist:
			n, err := strconv.Atoi(value)
			if err != nil {
				errs = append(errs, fmt.Errorf("preference %s: %q is not a number", key, value))
				continue
			}
			switch key {
			case PrefThreshold:
				cfg.Threshold = n
			case PrefTracksPerArtist:
				cfg.TracksPerArtist = n
			default:
				cfg.RelatedPerArtist = n
			}
		}
	}

	if len(errs) > 0 {
		return base, fmt.Errorf("%w: %w", shared.ErrInvalidConfig, errors.Join(errs...))
	}
	return cfg, nil
}
