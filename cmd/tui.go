package main

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/dive/internal/shared"
	"github.com/desertthunder/dive/internal/ui"
	"github.com/urfave/cli/v3"
)

// TUI launches the interactive terminal UI.
func (r *Runner) TUI(ctx context.Context, cmd *cli.Command) error {
	// Redirect logs to file to avoid interfering with TUI rendering
	fileLogger, logFile, err := shared.NewFileLogger(r.config.Log.File)
	if err != nil {
		return fmt.Errorf("failed to create file logger: %w", err)
	}
	defer logFile.Close()
	fileLogger.SetLevel(r.logger.GetLevel())
	r.SetLogger(fileLogger)

	cfg, err := r.pipelineConfig(cmd)
	if err != nil {
		return err
	}

	spotify, err := r.spotifyService(ctx)
	if err != nil {
		return err
	}
	pipeline, err := r.discoveryPipeline(ctx)
	if err != nil {
		return err
	}
	pipeline.Preload(ctx)

	model := ui.NewModel(ctx, spotify, pipeline, ui.Options{
		Config:  cfg,
		OnStart: r.recordRun,
	})
	p := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx))

	if _, err := p.Run(); err != nil {
		return fmt.Errorf("error running TUI: %w", err)
	}

	for _, msg := range model.Errors() {
		r.logger.Warn("run error", "message", msg)
	}
	return nil
}
