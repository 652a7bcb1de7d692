package repositories

import (
	"database/sql"
	"errors"
	"testing"

	"github.com/desertthunder/dive/internal/models"
	"github.com/desertthunder/dive/internal/shared"
)

// setupTestDB creates an in-memory SQLite database with migrations applied
func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := shared.NewDatabase(":memory:")
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}

	if err := shared.RunMigrations(db); err != nil {
		db.Close()
		t.Fatalf("failed to run migrations: %v", err)
	}

	t.Cleanup(func() { db.Close() })
	return db
}

func testRun(name string) *models.RunRecord {
	return models.NewRunRecord("", models.PipelineConfig{
		Mode:             models.DiveDeeper,
		SourcePlaylistID: "src",
		Threshold:        3,
		TracksPerArtist:  5,
		RelatedPerArtist: 2,
		PlaylistName:     name,
	})
}

func TestNextSequence(t *testing.T) {
	db := setupTestDB(t)

	for want := 1; want <= 3; want++ {
		got, err := NextSequence(db, "runs")
		if err != nil {
			t.Fatalf("NextSequence() error = %v", err)
		}
		if got != want {
			t.Errorf("expected sequence %d, got %d", want, got)
		}
	}

	got, err := NextSequence(db, "unseeded")
	if err != nil || got != 1 {
		t.Errorf("expected a new counter to start at 1, got %d (%v)", got, err)
	}
}

func TestRunRepository(t *testing.T) {
	t.Run("Create", func(t *testing.T) {
		repo := NewRunRepository(setupTestDB(t))
		first, second := testRun("One"), testRun("Two")

		for _, run := range []*models.RunRecord{first, second} {
			if err := repo.Create(run); err != nil {
				t.Fatalf("failed to create run: %v", err)
			}
		}

		if first.ID() == "" || first.ID() == second.ID() {
			t.Errorf("expected distinct generated IDs, got %q and %q", first.ID(), second.ID())
		}
		if first.Sequence != 1 || second.Sequence != 2 {
			t.Errorf("expected sequences 1 and 2, got %d and %d", first.Sequence, second.Sequence)
		}
	})

	t.Run("Get", func(t *testing.T) {
		repo := NewRunRepository(setupTestDB(t))
		run := testRun("Dive")
		if err := repo.Create(run); err != nil {
			t.Fatalf("failed to create run: %v", err)
		}

		got, err := repo.Get(run.ID())
		if err != nil {
			t.Fatalf("failed to get run: %v", err)
		}

		if got.Mode != models.DiveDeeper || got.SourcePlaylistID != "src" || got.PlaylistName != "Dive" {
			t.Errorf("unexpected run %+v", got)
		}
		if got.Status != models.RunRunning || len(got.PlaylistIDs) != 0 {
			t.Errorf("expected a running run without playlists, got %s %v", got.Status, got.PlaylistIDs)
		}

		bySeq, err := repo.GetBySequence(run.Sequence)
		if err != nil || bySeq.ID() != run.ID() {
			t.Errorf("GetBySequence() = %v, %v", bySeq, err)
		}
	})

	t.Run("Update", func(t *testing.T) {
		repo := NewRunRepository(setupTestDB(t))
		run := testRun("Dive")
		if err := repo.Create(run); err != nil {
			t.Fatalf("failed to create run: %v", err)
		}

		run.Finish([]string{"p1", "p2"}, 150, nil)
		if err := repo.Update(run); err != nil {
			t.Fatalf("failed to update run: %v", err)
		}

		got, err := repo.Get(run.ID())
		if err != nil {
			t.Fatalf("failed to get run: %v", err)
		}
		if got.Status != models.RunSucceeded || got.TrackCount != 150 {
			t.Errorf("unexpected outcome %s with %d tracks", got.Status, got.TrackCount)
		}
		if len(got.PlaylistIDs) != 2 || got.PlaylistIDs[1] != "p2" {
			t.Errorf("unexpected playlist ids %v", got.PlaylistIDs)
		}
	})

	t.Run("Delete", func(t *testing.T) {
		repo := NewRunRepository(setupTestDB(t))
		run := testRun("Dive")
		if err := repo.Create(run); err != nil {
			t.Fatalf("failed to create run: %v", err)
		}

		if err := repo.Delete(run.ID()); err != nil {
			t.Fatalf("failed to delete run: %v", err)
		}

		if _, err := repo.Get(run.ID()); !errors.Is(err, shared.ErrRecordNotFound) {
			t.Errorf("expected deleted run to be hidden, got %v", err)
		}
		if err := repo.Delete(run.ID()); !errors.Is(err, shared.ErrRecordNotFound) {
			t.Errorf("expected second delete to fail, got %v", err)
		}
	})

	t.Run("List", func(t *testing.T) {
		repo := NewRunRepository(setupTestDB(t))
		names := []string{"One", "Two", "Three"}
		runs := make([]*models.RunRecord, len(names))
		for i, name := range names {
			runs[i] = testRun(name)
			if err := repo.Create(runs[i]); err != nil {
				t.Fatalf("failed to create run: %v", err)
			}
		}
		runs[1].Finish(nil, 0, errors.New("boom"))
		if err := repo.Update(runs[1]); err != nil {
			t.Fatalf("failed to update run: %v", err)
		}

		all, err := repo.List(nil)
		if err != nil {
			t.Fatalf("failed to list runs: %v", err)
		}
		if len(all) != 3 || all[0].PlaylistName != "Three" {
			t.Errorf("expected newest first, got %d runs starting with %q", len(all), all[0].PlaylistName)
		}

		failed, err := repo.List(map[string]any{"status": models.RunFailed})
		if err != nil {
			t.Fatalf("failed to list runs: %v", err)
		}
		if len(failed) != 1 || failed[0].Error != "boom" {
			t.Errorf("expected one failed run, got %v", failed)
		}

		limited, err := repo.List(map[string]any{"limit": 2, "mode": "dive-deeper"})
		if err != nil {
			t.Fatalf("failed to list runs: %v", err)
		}
		if len(limited) != 2 {
			t.Errorf("expected 2 runs, got %d", len(limited))
		}
	})

	t.Run("MarkInterrupted", func(t *testing.T) {
		repo := NewRunRepository(setupTestDB(t))
		running, done := testRun("Running"), testRun("Done")
		for _, run := range []*models.RunRecord{running, done} {
			if err := repo.Create(run); err != nil {
				t.Fatalf("failed to create run: %v", err)
			}
		}
		done.Finish([]string{"p1"}, 10, nil)
		if err := repo.Update(done); err != nil {
			t.Fatalf("failed to update run: %v", err)
		}

		n, err := repo.MarkInterrupted()
		if err != nil || n != 1 {
			t.Fatalf("MarkInterrupted() = %d, %v", n, err)
		}
		got, _ := repo.Get(running.ID())
		if got.Status != models.RunFailed || got.Error != "interrupted" {
			t.Errorf("unexpected run %s %q", got.Status, got.Error)
		}
	})
}

func TestRunRepositoryErrors(t *testing.T) {
	t.Run("Create", func(t *testing.T) {
		t.Run("ValidationError", func(t *testing.T) {
			repo := NewRunRepository(setupTestDB(t))
			if err := repo.Create(testRun("")); err == nil {
				t.Fatal("expected validation error for empty playlist name")
			}
		})

		t.Run("DuplicateID", func(t *testing.T) {
			repo := NewRunRepository(setupTestDB(t))
			first := testRun("One")
			first.SetID("same")
			second := testRun("Two")
			second.SetID("same")

			if err := repo.Create(first); err != nil {
				t.Fatalf("failed to create first run: %v", err)
			}
			if err := repo.Create(second); err == nil {
				t.Fatal("expected error when reusing a run ID")
			}
		})
	})

	t.Run("Get", func(t *testing.T) {
		t.Run("NotFound", func(t *testing.T) {
			repo := NewRunRepository(setupTestDB(t))
			if _, err := repo.Get("nonexistent-id"); !errors.Is(err, shared.ErrRecordNotFound) {
				t.Fatalf("expected ErrRecordNotFound, got %v", err)
			}
		})
	})

	t.Run("Update", func(t *testing.T) {
		t.Run("NotFound", func(t *testing.T) {
			repo := NewRunRepository(setupTestDB(t))
			run := testRun("Ghost")
			run.SetID("ghost")
			if err := repo.Update(run); !errors.Is(err, shared.ErrRecordNotFound) {
				t.Fatalf("expected ErrRecordNotFound, got %v", err)
			}
		})
	})

	t.Run("ClosedDatabase", func(t *testing.T) {
		db := setupTestDB(t)
		repo := NewRunRepository(db)
		db.Close()

		if _, err := repo.List(nil); err == nil {
			t.Fatal("expected error listing on a closed database")
		}
	})
}

func TestPreferenceRepository(t *testing.T) {
	t.Run("Set and Get", func(t *testing.T) {
		repo := NewPreferenceRepository(setupTestDB(t))

		if _, err := repo.Get(PrefThreshold); !errors.Is(err, shared.ErrRecordNotFound) {
			t.Errorf("expected ErrRecordNotFound, got %v", err)
		}

		for _, v := range []string{"10", "12"} {
			if err := repo.Set(PrefThreshold, v); err != nil {
				t.Fatalf("failed to set preference: %v", err)
			}
		}

		got, err := repo.Get(PrefThreshold)
		if err != nil || got != "12" {
			t.Errorf("expected 12, got %q (%v)", got, err)
		}
	})

	t.Run("Delete", func(t *testing.T) {
		repo := NewPreferenceRepository(setupTestDB(t))
		if err := repo.Set(PrefMode, "dive-deeper"); err != nil {
			t.Fatalf("failed to set preference: %v", err)
		}
		if err := repo.Delete(PrefMode); err != nil {
			t.Fatalf("failed to delete preference: %v", err)
		}
		if err := repo.Delete(PrefMode); err != nil {
			t.Errorf("deleting a missing key should succeed, got %v", err)
		}

		all, err := repo.All()
		if err != nil || len(all) != 0 {
			t.Errorf("expected no preferences, got %v (%v)", all, err)
		}
	})

	t.Run("pipeline round trip", func(t *testing.T) {
		repo := NewPreferenceRepository(setupTestDB(t))
		saved := models.PipelineConfig{
			Mode:             models.DiveDeeper,
			SourcePlaylistID: "abc",
			Threshold:        7,
			TracksPerArtist:  4,
			RelatedPerArtist: 3,
			PlaylistName:     "Deep",
		}
		if err := repo.SavePipeline(saved); err != nil {
			t.Fatalf("failed to save pipeline: %v", err)
		}

		got, err := repo.ApplyPipeline(models.PipelineConfig{PlaylistName: "Default", Threshold: 15})
		if err != nil {
			t.Fatalf("failed to apply pipeline: %v", err)
		}
		if got != saved {
			t.Errorf("expected %+v, got %+v", saved, got)
		}
	})

	t.Run("partial preferences keep the base", func(t *testing.T) {
		repo := NewPreferenceRepository(setupTestDB(t))
		if err := repo.Set(PrefTracksPerArtist, "9"); err != nil {
			t.Fatalf("failed to set preference: %v", err)
		}

		base := models.PipelineConfig{Threshold: 15, TracksPerArtist: 5, PlaylistName: "Dive"}
		got, err := repo.ApplyPipeline(base)
		if err != nil {
			t.Fatalf("failed to apply pipeline: %v", err)
		}
		if got.TracksPerArtist != 9 || got.Threshold != 15 || got.PlaylistName != "Dive" {
			t.Errorf("unexpected config %+v", got)
		}
	})

	t.Run("invalid stored value", func(t *testing.T) {
		repo := NewPreferenceRepository(setupTestDB(t))
		if err := repo.Set(PrefThreshold, "many"); err != nil {
			t.Fatalf("failed to set preference: %v", err)
		}

		base := models.PipelineConfig{Threshold: 15}
		got, err := repo.ApplyPipeline(base)
		if !errors.Is(err, shared.ErrInvalidConfig) {
			t.Fatalf("expected ErrInvalidConfig, got %v", err)
		}
		if got != base {
			t.Errorf("expected the base config back, got %+v", got)
		}
	})
}
