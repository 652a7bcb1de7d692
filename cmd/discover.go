package main

import (
	"context"
	"fmt"
	"sync"

	"github.com/desertthunder/dive/internal/formatter"
	"github.com/desertthunder/dive/internal/models"
	"github.com/desertthunder/dive/internal/repositories"
	"github.com/desertthunder/dive/internal/tasks"
	"github.com/urfave/cli/v3"
)

// LibraryArtists prints the artists of a source ranked by their track count.
func (r *Runner) LibraryArtists(ctx context.Context, cmd *cli.Command) error {
	format, err := formatter.ParseFormat(cmd.String("format"))
	if err != nil {
		return err
	}

	pipeline, err := r.discoveryPipeline(ctx)
	if err != nil {
		return err
	}

	cfg := models.PipelineConfig{SourcePlaylistID: cmd.String("source"), TracksPerArtist: 1}
	ranked, _, err := pipeline.Estimate(ctx, cfg)
	if err != nil {
		return r.explain(err)
	}

	if limit := cmd.Int("limit"); limit > 0 && len(ranked) > limit {
		ranked = ranked[:limit]
	}

	out, err := formatter.Artists(ranked, format)
	if err != nil {
		return err
	}
	return r.writeBytes(out)
}

// LibraryPlaylists prints the user's playlists.
func (r *Runner) LibraryPlaylists(ctx context.Context, cmd *cli.Command) error {
	format, err := formatter.ParseFormat(cmd.String("format"))
	if err != nil {
		return err
	}

	spotify, err := r.spotifyService(ctx)
	if err != nil {
		return err
	}

	playlists, err := spotify.Playlists(ctx)
	if err != nil {
		return r.explain(err)
	}

	out, err := formatter.Playlists(playlists, format)
	if err != nil {
		return err
	}
	return r.writeBytes(out)
}

// Estimate prints the seed artists of a run and the most tracks it could add, without writing anything.
func (r *Runner) Estimate(ctx context.Context, cmd *cli.Command) error {
	format, err := formatter.ParseFormat(cmd.String("format"))
	if err != nil {
		return err
	}

	cfg, err := r.pipelineConfig(cmd)
	if err != nil {
		return err
	}

	pipeline, err := r.discoveryPipeline(ctx)
	if err != nil {
		return err
	}

	seeds, tracks, err := pipeline.Estimate(ctx, cfg)
	if err != nil {
		return r.explain(err)
	}

	if format == formatter.JSON {
		return r.writeJSON(map[string]any{"config": cfg, "seeds": seeds, "max_tracks": tracks}, true)
	}

	out, err := formatter.Artists(seeds, format)
	if err != nil {
		return err
	}
	if err := r.writeBytes(out); err != nil {
		return err
	}
	if format == formatter.Text {
		r.writePlainln("%s: %d seed artists, up to %d new tracks", cfg.Mode.Title(), len(seeds), tracks)
	}
	return nil
}

// Run executes the pipeline, records it in the history and prints what it created.
func (r *Runner) Run(ctx context.Context, cmd *cli.Command) error {
	cfg, err := r.pipelineConfig(cmd)
	if err != nil {
		return err
	}

	pipeline, err := r.discoveryPipeline(ctx)
	if err != nil {
		return err
	}

	if cmd.Bool("save-prefs") {
		if err := r.savePreferences(cfg); err != nil {
			return err
		}
	}

	finish := r.recordRun(cfg)

	quiet := cmd.Bool("quiet") || cmd.Bool("json")
	if !quiet {
		r.writePlainHeader(fmt.Sprintf("%s → %q", cfg.Mode.Title(), cfg.PlaylistName))
	}

	progress := make(chan tasks.ProgressUpdate, 64)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for update := range progress {
			if !quiet {
				r.printProgress(update)
			}
		}
	}()

	result, runErr := pipeline.Run(ctx, cfg, progress)
	close(progress)
	wg.Wait()
	finish(result, runErr)

	if result != nil {
		if err := r.printResult(cmd, result); err != nil {
			return err
		}
	}
	if runErr != nil {
		return r.explain(runErr)
	}

	if dir := cmd.String("report"); dir != "" {
		report, err := formatter.WriteRunReport(ctx, r.httpClient, result, dir)
		if err != nil {
			return err
		}
		if report.Warning != nil {
			r.logger.Warn("run report written without cover image", "err", report.Warning)
		}
		if !quiet {
			r.writePlain("✓ Report written to %s\n", report.Directory)
		}
	}
	return nil
}

func (r *Runner) printProgress(update tasks.ProgressUpdate) {
	switch {
	case update.Reset:
		return
	case update.Done:
		r.writePlain("[%3.0f%%] ✓ %s\n", update.Fraction*100, update.Message)
	case update.Step == 0:
		r.writePlain("[%3.0f%%] → %s\n", update.Fraction*100, update.Message)
	default:
		r.logger.Debug("progress", "stage", update.Stage, "step", update.Step, "total", update.Total)
	}
}

func (r *Runner) printResult(cmd *cli.Command, result *tasks.RunResult) error {
	if cmd.Bool("json") {
		return r.writeJSON(result, true)
	}

	out, err := formatter.RunReport(result, formatter.Text, "")
	if err != nil {
		return err
	}
	r.writePlain("\n")
	return r.writeBytes(out)
}

// recordRun stores a running history entry for cfg and returns the callback that finishes it.
//
// History is best effort: without a database the run still goes ahead.
func (r *Runner) recordRun(cfg models.PipelineConfig) func(*tasks.RunResult, error) {
	db, err := r.database()
	if err != nil {
		r.logger.Warn("run history unavailable", "err", err)
		return func(*tasks.RunResult, error) {}
	}

	runs := repositories.NewRunRepository(db)
	record := models.NewRunRecord("", cfg)
	if err := runs.Create(record); err != nil {
		r.logger.Warn("failed to record run", "err", err)
		return func(*tasks.RunResult, error) {}
	}

	return func(result *tasks.RunResult, err error) {
		var ids []string
		var written int
		if result != nil {
			ids, written = result.PlaylistIDs, result.Written
		}
		record.Finish(ids, written, err)
		if err := runs.Update(record); err != nil {
			r.logger.Warn("failed to update run history", "run", record.Sequence, "err", err)
		}
	}
}

func (r *Runner) savePreferences(cfg models.PipelineConfig) error {
	db, err := r.database()
	if err != nil {
		return err
	}
	if err := repositories.NewPreferenceRepository(db).SavePipeline(cfg); err != nil {
		return err
	}
	r.logger.Info("saved run preferences")
	return nil
}
