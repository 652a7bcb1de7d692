package models

import (
	"context"
	"errors"
	"time"
)

// RunStatus is the lifecycle of a [RunRecord].
type RunStatus string

const (
	RunRunning   RunStatus = "running"
	RunSucceeded RunStatus = "succeeded"
	RunFailed    RunStatus = "failed"
	RunCanceled  RunStatus = "canceled"
)

// RunRecord is the persisted history entry of one pipeline run.
type RunRecord struct {
	id               string
	Sequence         int
	Mode             Mode
	SourcePlaylistID string
	PlaylistName     string
	Status           RunStatus
	PlaylistIDs      []string
	TrackCount       int
	Error            string
	createdAt        time.Time
	updatedAt        time.Time
	DeletedAt        *time.Time
}

// NewRunRecord starts a running record for cfg.
func NewRunRecord(id string, cfg PipelineConfig) *RunRecord {
	now := time.Now().UTC()
	return &RunRecord{
		id:               id,
		Mode:             cfg.Mode,
		SourcePlaylistID: cfg.SourcePlaylistID,
		PlaylistName:     cfg.PlaylistName,
		Status:           RunRunning,
		createdAt:        now,
		updatedAt:        now,
	}
}

// RestoreRunRecord rebuilds a record read from storage.
func RestoreRunRecord(id string, createdAt, updatedAt time.Time) *RunRecord {
	return &RunRecord{id: id, createdAt: createdAt, updatedAt: updatedAt}
}

func (r *RunRecord) ID() string           { return r.id }
func (r *RunRecord) SetID(id string)      { r.id = id }
func (r *RunRecord) CreatedAt() time.Time { return r.createdAt }
func (r *RunRecord) UpdatedAt() time.Time { return r.updatedAt }

// Touch bumps the update timestamp.
func (r *RunRecord) Touch() { r.updatedAt = time.Now().UTC() }

// Finish records the outcome of the run. A nil err marks it succeeded.
func (r *RunRecord) Finish(playlistIDs []string, tracks int, err error) {
	r.PlaylistIDs = playlistIDs
	r.TrackCount = tracks
	switch {
	case err == nil:
		r.Status = RunSucceeded
	case errors.Is(err, context.Canceled):
		r.Status = RunCanceled
		r.Error = err.Error()
	default:
		r.Status = RunFailed
		r.Error = err.Error()
	}
	r.Touch()
}

func (r *RunRecord) Validate() error {
	if r.id == "" {
		return errors.New("run id is required")
	}
	if r.PlaylistName == "" {
		return errors.New("playlist name is required")
	}
	switch r.Status {
	case RunRunning, RunSucceeded, RunFailed, RunCanceled:
	default:
		return errors.New("unknown run status " + string(r.Status))
	}
	return nil
}
