package repositories

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/desertthunder/dive/internal/models"
	"github.com/desertthunder/dive/internal/shared"
)

const runColumns = `id, sequence, mode, source_playlist_id, playlist_name, status, playlist_ids, track_count, error, created_at, updated_at, deleted_at`

// RunRepository implements [models.Store] for run history.
//
// Handles run CRUD operations with soft delete support and status-based queries.
type RunRepository struct {
	db *sql.DB
}

var _ models.Store[*models.RunRecord] = (*RunRepository)(nil)

// NewRunRepository creates a new RunRepository with the given database connection
func NewRunRepository(db *sql.DB) *RunRepository {
	return &RunRepository{db: db}
}

// Create inserts a run with the next sequence number. Records without an ID get a generated one.
func (r *RunRepository) Create(run *models.RunRecord) error {
	if run.ID() == "" {
		run.SetID(shared.GenerateID())
	}

	if err := run.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	sequence, err := NextSequence(r.db, "runs")
	if err != nil {
		return fmt.Errorf("failed to generate sequence: %w", err)
	}

	query := `
		INSERT INTO runs (id, sequence, mode, source_playlist_id, playlist_name, status, playlist_ids, track_count, error, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err = r.db.Exec(query,
		run.ID(),
		sequence,
		run.Mode.String(),
		run.SourcePlaylistID,
		run.PlaylistName,
		string(run.Status),
		strings.Join(run.PlaylistIDs, ","),
		run.TrackCount,
		run.Error,
		run.CreatedAt(),
		run.UpdatedAt(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert run: %w", err)
	}

	run.Sequence = sequence
	return nil
}

// Get retrieves a run by ID, excluding soft-deleted runs
func (r *RunRepository) Get(id string) (*models.RunRecord, error) {
	query := `SELECT ` + runColumns + ` FROM runs WHERE id = ? AND deleted_at IS NULL`
	return r.scan(r.db.QueryRow(query, id))
}

// GetBySequence retrieves a run by the number shown in history listings
func (r *RunRepository) GetBySequence(sequence int) (*models.RunRecord, error) {
	query := `SELECT ` + runColumns + ` FROM runs WHERE sequence = ? AND deleted_at IS NULL`
	return r.scan(r.db.QueryRow(query, sequence))
}

// Update stores the outcome fields of an existing run
func (r *RunRepository) Update(run *models.RunRecord) error {
	if err := run.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	run.Touch()

	query := `
		UPDATE runs
		SET status = ?, playlist_ids = ?, track_count = ?, error = ?, updated_at = ?
		WHERE id = ? AND deleted_at IS NULL
	`

	result, err := r.db.Exec(query,
		string(run.Status),
		strings.Join(run.PlaylistIDs, ","),
		run.TrackCount,
		run.Error,
		run.UpdatedAt(),
		run.ID(),
	)
	if err != nil {
		return fmt.Errorf("failed to update run: %w", err)
	}

	return affected(result, run.ID())
}

// Delete soft-deletes a run by ID
func (r *RunRepository) Delete(id string) error {
	result, err := r.db.Exec(`UPDATE runs SET deleted_at = ? WHERE id = ? AND deleted_at IS NULL`, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to delete run: %w", err)
	}

	return affected(result, id)
}

// List retrieves runs matching criteria, newest first, excluding soft-deleted runs.
//
// Supported criteria: "status" (string or [models.RunStatus]), "mode" (string) and "limit" (int).
func (r *RunRepository) List(criteria map[string]any) ([]*models.RunRecord, error) {
	query := `SELECT ` + runColumns + ` FROM runs WHERE deleted_at IS NULL`
	args := []any{}

	switch status := criteria["status"].(type) {
	case string:
		if status != "" {
			query += " AND status = ?"
			args = append(args, status)
		}
	case models.RunStatus:
		query += " AND status = ?"
		args = append(args, string(status))
	}

	if mode, ok := criteria["mode"].(string); ok && mode != "" {
		query += " AND mode = ?"
		args = append(args, mode)
	}

	query += " ORDER BY sequence DESC"

	if limit, ok := criteria["limit"].(int); ok && limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var runs []*models.RunRecord
	for rows.Next() {
		run, err := r.scan(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return runs, nil
}

// MarkInterrupted fails every run still marked running, such as runs of a process that was killed.
func (r *RunRepository) MarkInterrupted() (int, error) {
	result, err := r.db.Exec(`
		UPDATE runs SET status = ?, error = ?, updated_at = ?
		WHERE status = ? AND deleted_at IS NULL
	`, string(models.RunFailed), "interrupted", time.Now().UTC(), string(models.RunRunning))
	if err != nil {
		return 0, fmt.Errorf("failed to mark interrupted runs: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get affected rows: %w", err)
	}
	return int(rows), nil
}

type scanner interface {
	Scan(dest ...any) error
}

// scan reads one runs row from a [sql.Row] or [sql.Rows]
func (r *RunRepository) scan(row scanner) (*models.RunRecord, error) {
	var (
		id, mode, source, name string
		status, ids, message   string
		sequence, tracks       int
		createdAt, updatedAt   time.Time
		deletedAt              sql.NullTime
	)

	err := row.Scan(&id, &sequence, &mode, &source, &name, &status, &ids, &tracks, &message, &createdAt, &updatedAt, &deletedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("run: %w", shared.ErrRecordNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan run: %w", err)
	}

	parsed, err := models.ParseMode(mode)
	if err != nil {
		return nil, fmt.Errorf("failed to scan run %s: %w", id, err)
	}

	run := models.RestoreRunRecord(id, createdAt, updatedAt)
	run.Sequence = sequence
	run.Mode = parsed
	run.SourcePlaylistID = source
	run.PlaylistName = name
	run.Status = models.RunStatus(status)
	run.TrackCount = tracks
	run.Error = message
	if ids != "" {
		run.PlaylistIDs = strings.Split(ids, ",")
	}
	if deletedAt.Valid {
		run.DeletedAt = &deletedAt.Time
	}

	return run, nil
}

func affected(result sql.Result, id string) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("run not found or already deleted: %s: %w", id, shared.ErrRecordNotFound)
	}
	return nil
}
