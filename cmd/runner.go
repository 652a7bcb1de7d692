package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/dive/internal/gateway"
	"github.com/desertthunder/dive/internal/models"
	"github.com/desertthunder/dive/internal/repositories"
	"github.com/desertthunder/dive/internal/services"
	"github.com/desertthunder/dive/internal/shared"
	"github.com/desertthunder/dive/internal/tasks"
	"github.com/urfave/cli/v3"
	"golang.org/x/oauth2"
)

// Runner holds all dependencies for CLI commands and provides methods for each command action.
//
// The Spotify client, pipeline and database are built on first use so commands
// such as setup work before the user ever logged in.
type Runner struct {
	config     *shared.Config
	configPath string
	httpClient *http.Client
	logger     *log.Logger
	output     io.Writer

	gateway  *gateway.Gateway
	spotify  *services.SpotifyService
	pipeline *tasks.Pipeline
	db       *sql.DB
}

// RunnerOpts contains configuration options for creating a Runner.
type RunnerOpts struct {
	Config     *shared.Config
	ConfigPath string
	HTTPClient *http.Client
	Logger     *log.Logger
	Output     io.Writer
}

// NewRunner creates a new Runner with the provided configuration
func NewRunner(opts RunnerOpts) *Runner {
	if opts.Config == nil {
		opts.Config = shared.DefaultConfig()
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.Output == nil {
		opts.Output = os.Stdout
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = http.DefaultClient
	}

	return &Runner{
		config:     opts.Config,
		configPath: opts.ConfigPath,
		httpClient: opts.HTTPClient,
		logger:     opts.Logger,
		output:     opts.Output,
	}
}

func (r *Runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, fn := range [](func(*Runner) *cli.Command){
		setupCommand, authCommand, libraryCommand, estimateCommand, runCommand, tuiCommand, prefsCommand, historyCommand,
	} {
		commands = append(commands, fn(r))
	}

	return commands
}

// SetLogger swaps the logger used by the runner and everything it builds afterwards.
func (r *Runner) SetLogger(l *log.Logger) {
	r.logger = l
}

// Close releases the database connection, if one was opened.
func (r *Runner) Close() error {
	if r.db == nil {
		return nil
	}
	err := r.db.Close()
	r.db = nil
	return err
}

// saveTokens stores token in the config and, when the runner knows its config file, writes it back.
func (r *Runner) saveTokens(token *oauth2.Token) error {
	if r.config == nil {
		return fmt.Errorf("%w: config is nil", shared.ErrInvalidConfig)
	}
	if token == nil {
		return fmt.Errorf("%w: token cannot be nil", shared.ErrInvalidInput)
	}

	r.config.Credentials.Spotify.SetToken(token)
	if r.configPath == "" {
		return nil
	}

	if err := shared.SaveConfig(r.configPath, r.config); err != nil {
		return fmt.Errorf("failed to save config: %w", err)
	}
	return nil
}

// clearTokens forgets the stored token, in memory and on disk.
func (r *Runner) clearTokens() error {
	r.config.Credentials.Spotify.ClearToken()
	if r.configPath == "" {
		return nil
	}
	if err := shared.SaveConfig(r.configPath, r.config); err != nil {
		return fmt.Errorf("failed to save config: %w", err)
	}
	return nil
}

// spotifyService returns the Spotify client, building the gateway behind it on first use.
func (r *Runner) spotifyService(ctx context.Context) (*services.SpotifyService, error) {
	if r.spotify != nil {
		return r.spotify, nil
	}

	creds, err := r.credentials(ctx)
	if err != nil {
		return nil, err
	}

	gw, err := gateway.FromConfig(r.config.Gateway, creds, r.logger)
	if err != nil {
		return nil, err
	}

	r.gateway = gw
	r.spotify = services.NewSpotifyService(gw,
		services.WithPageSize(r.config.Pipeline.PageSize),
		services.WithConcurrency(r.config.Pipeline.Concurrency),
		services.WithLogger(shared.WithLogger(r.logger, "service", "spotify")),
	)
	return r.spotify, nil
}

func (r *Runner) credentials(ctx context.Context) (gateway.Credentials, error) {
	token := r.config.Credentials.Spotify.Token()
	if token == nil {
		return nil, fmt.Errorf("%w: run 'dive auth login' first", shared.ErrNotAuthenticated)
	}

	oauthConfig, err := services.NewOAuthConfig(r.config.Credentials.Spotify)
	if err != nil {
		return nil, err
	}

	onRefresh := func(tok *oauth2.Token) {
		if err := r.saveTokens(tok); err != nil {
			r.logger.Warn("failed to persist refreshed token", "err", err)
			return
		}
		r.logger.Debug("refreshed access token", "expiry", tok.Expiry)
	}
	onExpire := func() {
		r.logger.Warn("access token rejected, clearing stored credentials")
		if err := r.clearTokens(); err != nil {
			r.logger.Warn("failed to clear credentials", "err", err)
		}
	}

	return services.NewTokenCredentials(ctx, oauthConfig, token, onRefresh, onExpire), nil
}

// discoveryPipeline returns the pipeline shared by every run of this process.
func (r *Runner) discoveryPipeline(ctx context.Context) (*tasks.Pipeline, error) {
	if r.pipeline != nil {
		return r.pipeline, nil
	}

	spotify, err := r.spotifyService(ctx)
	if err != nil {
		return nil, err
	}

	p := r.config.Pipeline
	writer := tasks.DefaultWriterOptions()
	writer.AddLimit = p.AddLimit
	writer.PlaylistLimit = p.PlaylistLimit
	writer.CreateAttempts = p.CreateAttempts
	writer.Lossy = p.LossyWrites

	r.pipeline = tasks.NewPipeline(spotify, tasks.Options{
		Concurrency: p.Concurrency,
		Writer:      writer,
		Logger:      shared.WithLogger(r.logger, "component", "pipeline"),
		OnBusy:      func() { r.logger.Debug("pipeline busy") },
		OnIdle:      r.logStats,
	})
	return r.pipeline, nil
}

func (r *Runner) logStats() {
	if r.gateway == nil {
		return
	}
	s := r.gateway.Stats()
	r.logger.Info("gateway stats", "requests", s.Requests, "succeeded", s.Succeeded, "retries", s.Retries, "failed", s.Failed)
}

// database opens the configured database on first use and runs pending migrations.
func (r *Runner) database() (*sql.DB, error) {
	if r.db != nil {
		return r.db, nil
	}
	db, err := shared.OpenDatabase(r.config.Database)
	if err != nil {
		return nil, err
	}
	r.db = db
	return db, nil
}

// basePipeline is the run configuration of the [pipeline] config section.
func (r *Runner) basePipeline() (models.PipelineConfig, error) {
	p := r.config.Pipeline
	mode, err := models.ParseMode(p.Mode)
	if err != nil {
		return models.PipelineConfig{}, fmt.Errorf("%w: pipeline.mode: %v", shared.ErrInvalidConfig, err)
	}

	return models.PipelineConfig{
		Mode:             mode,
		Threshold:        p.Threshold,
		TracksPerArtist:  p.TracksPerArtist,
		RelatedPerArtist: p.RelatedPerArtist,
		PlaylistName:     p.PlaylistName,
	}, nil
}

// pipelineConfig resolves run settings. Flags beat saved preferences, which beat the config file.
func (r *Runner) pipelineConfig(cmd *cli.Command) (models.PipelineConfig, error) {
	cfg, err := r.basePipeline()
	if err != nil {
		return cfg, err
	}

	if db, err := r.database(); err != nil {
		r.logger.Warn("saved preferences unavailable", "err", err)
	} else {
		applied, err := repositories.NewPreferenceRepository(db).ApplyPipeline(cfg)
		if err != nil {
			r.logger.Warn("ignoring saved preferences", "err", err)
		}
		cfg = applied
	}

	if cmd.IsSet("mode") {
		if cfg.Mode, err = models.ParseMode(cmd.String("mode")); err != nil {
			return cfg, fmt.Errorf("%w: %v", shared.ErrInvalidFlag, err)
		}
	}
	if cmd.IsSet("source") {
		cfg.SourcePlaylistID = cmd.String("source")
	}
	if cmd.IsSet("threshold") {
		cfg.Threshold = cmd.Int("threshold")
	}
	if cmd.IsSet("tracks") {
		cfg.TracksPerArtist = cmd.Int("tracks")
	}
	if cmd.IsSet("related") {
		cfg.RelatedPerArtist = cmd.Int("related")
	}
	if cmd.IsSet("name") {
		cfg.PlaylistName = cmd.String("name")
	}

	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("%w: %w", shared.ErrInvalidFlag, err)
	}
	return cfg, nil
}

// explain turns an error into the message shown to the user, keeping the cause in the log.
func (r *Runner) explain(err error) error {
	if err == nil {
		return nil
	}
	r.logger.Debug("command failed", "kind", tasks.Classify(err), "err", err)

	var stageErr *tasks.StageError
	if errors.As(err, &stageErr) || shared.IsAuthError(err) {
		return errors.New(tasks.UserMessage(err))
	}
	return err
}

func (r *Runner) writeJSON(data any, pretty bool) error {
	var output []byte
	var err error

	if pretty {
		output, err = json.MarshalIndent(data, "", "  ")
	} else {
		output, err = json.Marshal(data)
	}

	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}

	if _, err := r.output.Write(output); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}

	if _, err := r.output.Write([]byte("\n")); err != nil {
		return fmt.Errorf("failed to write newline: %w", err)
	}

	return nil
}

func (r *Runner) writePlain(format string, args ...any) error {
	text := fmt.Sprintf(format, args...)
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainln(format string, args ...any) error {
	text := "\n" + fmt.Sprintf(format, args...) + "\n"
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writeBytes(b []byte) error {
	if _, err := r.output.Write(b); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainHeader(title string) {
	r.writePlain("═══════════════════════════════════════\n")
	r.writePlain("%v\n", title)
	r.writePlain("═══════════════════════════════════════\n")
}
