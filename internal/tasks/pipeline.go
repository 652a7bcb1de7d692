package tasks

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/dive/internal/models"
	"github.com/desertthunder/dive/internal/services"
	"github.com/desertthunder/dive/internal/settle"
	"github.com/desertthunder/dive/internal/shared"
)

// Catalogue is everything a run reads from and writes to.
type Catalogue interface {
	PlaylistWriterAPI
	CurrentUser(ctx context.Context) (*services.SpotifyUser, error)
	Tracks(ctx context.Context, playlistID string, keep func(models.Track) bool, onPage func(done, total int)) ([]models.Track, error)
	RelatedArtists(ctx context.Context, artistID string) ([]models.ArtistRef, error)
	ArtistTopTracks(ctx context.Context, artistID string) ([]models.Track, error)
	Confirm(ctx context.Context, playlistID string) (*models.CreatedPlaylist, error)
}

// Options configures a [Pipeline].
type Options struct {
	// Concurrency caps in-flight requests per stage; zero is unbounded.
	Concurrency int
	Writer      WriterOptions
	Logger      *log.Logger
	// OnBusy runs when a run starts and OnIdle when it ends, whatever the outcome.
	OnBusy func()
	OnIdle func()
}

// RunResult is what a finished run produced.
type RunResult struct {
	RunID          string                   `json:"run_id"`
	Mode           models.Mode              `json:"mode"`
	Seeds          []models.Artist          `json:"seeds"`
	TargetArtists  int                      `json:"target_artists"`
	Tracks         int                      `json:"tracks"`
	Written        int                      `json:"written"`
	PlaylistIDs    []string                 `json:"playlist_ids"`
	Playlists      []models.CreatedPlaylist `json:"playlists"`
	FailedRequests int                      `json:"failed_requests"`
	Duration       time.Duration            `json:"duration"`
}

// Pipeline turns the user's library into new playlists.
//
// The library is loaded at most once per Pipeline and shared by every run;
// a run started while the load is in flight waits for it.
type Pipeline struct {
	catalogue Catalogue
	writer    *PlaylistWriter
	opts      Options
	logger    *log.Logger

	mu      sync.Mutex
	library models.Library
	loading *libraryLoad
	userID  string
}

// libraryLoad is one in-flight library load. lib and err are set before done closes.
type libraryLoad struct {
	done chan struct{}
	lib  models.Library
	err  error
}

func NewPipeline(catalogue Catalogue, opts Options) *Pipeline {
	if opts.Logger == nil {
		opts.Logger = log.New(io.Discard)
	}
	if opts.Writer.Logger == nil {
		opts.Writer.Logger = opts.Logger
	}
	if opts.Writer.Concurrency == 0 {
		opts.Writer.Concurrency = opts.Concurrency
	}
	return &Pipeline{
		catalogue: catalogue,
		writer:    NewPlaylistWriter(catalogue, opts.Writer),
		opts:      opts,
		logger:    opts.Logger,
	}
}

// Library returns the current library snapshot.
func (p *Pipeline) Library() models.Library {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.library
}

// ResetLibrary drops a finished library so the next run loads it again.
func (p *Pipeline) ResetLibrary() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.library.State == models.Finished {
		p.library = models.Library{}
	}
}

// Preload starts loading the library in the background.
func (p *Pipeline) Preload(ctx context.Context) {
	go func() {
		if _, err := p.LoadLibrary(ctx); err != nil {
			p.logger.Error("library preload failed", "err", err)
		}
	}()
}

// LoadLibrary returns the library, loading it if no load has finished.
// Concurrent callers share the one in-flight load.
func (p *Pipeline) LoadLibrary(ctx context.Context) (models.Library, error) {
	return p.loadLibrary(ctx, nil)
}

func (p *Pipeline) loadLibrary(ctx context.Context, onPage func(done, total int)) (models.Library, error) {
	p.mu.Lock()
	switch p.library.State {
	case models.Finished:
		lib := p.library
		p.mu.Unlock()
		return lib, nil
	case models.Pending:
		load := p.loading
		p.mu.Unlock()
		select {
		case <-load.done:
			return load.lib, load.err
		case <-ctx.Done():
			return models.Library{}, ctx.Err()
		}
	}

	load := &libraryLoad{done: make(chan struct{})}
	p.library.State = models.Pending
	p.loading = load
	p.mu.Unlock()

	p.logger.Info("loading library")
	tracks, err := p.catalogue.Tracks(ctx, "", nil, onPage)

	p.mu.Lock()
	defer p.mu.Unlock()
	defer close(load.done)

	if err != nil {
		load.err = fmt.Errorf("failed to load library: %w", err)
		if p.loading == load {
			p.library = models.Library{State: models.NotStarted}
		}
		return models.Library{}, load.err
	}

	load.lib = models.Library{Tracks: tracks, Artists: RankArtists(tracks), State: models.Finished}
	if p.loading == load {
		p.library = load.lib
	}
	p.logger.Info("library loaded", "tracks", len(tracks), "artists", len(load.lib.Artists))
	return load.lib, nil
}

func (p *Pipeline) currentUser(ctx context.Context) (string, error) {
	p.mu.Lock()
	id := p.userID
	p.mu.Unlock()
	if id != "" {
		return id, nil
	}

	user, err := p.catalogue.CurrentUser(ctx)
	if err != nil {
		return "", err
	}

	p.mu.Lock()
	p.userID = user.ID
	p.mu.Unlock()
	return user.ID, nil
}

// Estimate reports the seed artists for cfg and the most tracks a run could write.
func (p *Pipeline) Estimate(ctx context.Context, cfg models.PipelineConfig) ([]models.Artist, int, error) {
	ranked, _, err := p.rankSource(ctx, cfg, nil)
	if err != nil {
		return nil, 0, err
	}
	return SelectArtists(ranked, cfg.Threshold), EstimateTracks(ranked, cfg), nil
}

// rankSource ranks the artists of the run's source: the library itself, or the
// tracks of a playlist that are already saved in the library.
func (p *Pipeline) rankSource(ctx context.Context, cfg models.PipelineConfig, onPage func(done, total int)) ([]models.Artist, models.Library, error) {
	if cfg.UsesLibrary() {
		lib, err := p.loadLibrary(ctx, onPage)
		return lib.Artists, lib, err
	}

	lib, err := p.loadLibrary(ctx, nil)
	if err != nil {
		return nil, lib, err
	}

	index := NewTrackIndex(lib.Tracks)
	tracks, err := p.catalogue.Tracks(ctx, cfg.SourcePlaylistID, index.Contains, onPage)
	if err != nil {
		return nil, lib, fmt.Errorf("failed to load playlist %s: %w", cfg.SourcePlaylistID, err)
	}
	return RankArtists(tracks), lib, nil
}

// Run executes every stage of cfg.Mode and reports progress on progress, which may be nil.
//
// When writing fails part way, the returned result lists the playlists created before the failure.
func (p *Pipeline) Run(ctx context.Context, cfg models.PipelineConfig, progress chan<- ProgressUpdate) (*RunResult, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", shared.ErrInvalidConfig, err)
	}

	id := shared.GenerateID()
	r := &run{
		p:        p,
		id:       id,
		cfg:      cfg,
		tracker:  NewTracker(cfg.Mode),
		claimed:  NewClaimedSet(),
		progress: progress,
		logger:   shared.WithLogger(p.logger, "run_id", id),
		result:   &RunResult{RunID: id, Mode: cfg.Mode},
	}

	if p.opts.OnBusy != nil {
		p.opts.OnBusy()
	}
	defer r.cleanup()

	start := time.Now()
	err := r.execute(ctx)
	r.result.Duration = time.Since(start)

	if err != nil {
		r.logger.Error("run failed", "kind", Classify(err), "err", err)
		if len(r.result.PlaylistIDs) > 0 {
			return r.result, err
		}
		return nil, err
	}

	r.logger.Info("run finished", "playlists", len(r.result.PlaylistIDs), "tracks", r.result.Written, "duration", r.result.Duration)
	return r.result, nil
}

// run holds the state scoped to one execution.
type run struct {
	p        *Pipeline
	id       string
	cfg      models.PipelineConfig
	tracker  *Tracker
	claimed  *ClaimedSet
	progress chan<- ProgressUpdate
	logger   *log.Logger
	result   *RunResult
	stage    Stage
}

func (r *run) execute(ctx context.Context) error {
	r.begin(FetchSourceTracks, 0, "Fetching tracks...")
	ranked, lib, err := r.p.rankSource(ctx, r.cfg, r.stepper("Fetched page"))
	if err != nil {
		return fmt.Errorf("%s: %w", FetchSourceTracks, err)
	}
	r.finish(fmt.Sprintf("Found %d artists", len(ranked)))

	r.begin(SelectSeeds, 0, "Selecting artists...")
	seeds := SelectArtists(ranked, r.cfg.Threshold)
	r.result.Seeds = seeds
	if len(seeds) == 0 {
		return &StageError{Stage: SelectSeeds, Message: msgNoArtists}
	}
	r.finish(fmt.Sprintf("Selected %d artists with at least %d tracks", len(seeds), r.cfg.Threshold))

	targets := ArtistIDs(seeds)
	if r.cfg.Mode == models.DiveDeeper {
		if targets, err = r.fetchRelated(ctx, lib, targets); err != nil {
			return fmt.Errorf("%s: %w", FetchRelatedArtists, err)
		}
	}
	r.result.TargetArtists = len(targets)

	uris, err := r.fetchTopTracks(ctx, lib, targets)
	if err != nil {
		return fmt.Errorf("%s: %w", FetchTopTracks, err)
	}
	if len(uris) == 0 {
		return &StageError{Stage: FetchTopTracks, Message: msgNoTracks}
	}
	r.result.Tracks = len(uris)

	if err := r.write(ctx, uris); err != nil {
		return fmt.Errorf("%s: %w", WritePlaylists, err)
	}

	r.confirm(ctx)
	return nil
}

func (r *run) fetchRelated(ctx context.Context, lib models.Library, seeds []string) ([]string, error) {
	r.begin(FetchRelatedArtists, len(seeds), "Finding related artists...")
	known := lib.ArtistSet()

	ops := make([]settle.Op[string], 0, len(seeds))
	for _, id := range seeds {
		ops = append(ops, func(ctx context.Context) ([]string, error) {
			related, err := r.p.catalogue.RelatedArtists(ctx, id)
			if err != nil {
				return nil, err
			}

			picked := make([]string, 0, r.cfg.RelatedPerArtist)
			for _, a := range related {
				if len(picked) == r.cfg.RelatedPerArtist {
					break
				}
				if _, ok := known[a.ID]; !ok {
					picked = append(picked, a.ID)
				}
			}
			return picked, nil
		})
	}

	batch := settleStage(ctx, r, ops, "Related artists fetched")
	if err := r.fatal(ctx, batch.Errors); err != nil {
		return nil, err
	}
	if batch.Empty() {
		return nil, &StageError{Stage: FetchRelatedArtists, Message: msgNoRelated}
	}
	r.finish(fmt.Sprintf("Found %d related artists", len(batch.Items)))
	return batch.Items, nil
}

func (r *run) fetchTopTracks(ctx context.Context, lib models.Library, targets []string) ([]string, error) {
	index := NewTrackIndex(lib.Tracks)

	ops := make([]settle.Op[string], 0, len(targets))
	for _, id := range targets {
		if !r.claimed.Claim(id) {
			continue
		}
		ops = append(ops, func(ctx context.Context) ([]string, error) {
			top, err := r.p.catalogue.ArtistTopTracks(ctx, id)
			if err != nil {
				return nil, err
			}

			picked := make([]string, 0, r.cfg.TracksPerArtist)
			for _, t := range top {
				if len(picked) == r.cfg.TracksPerArtist {
					break
				}
				if !index.Contains(t) {
					picked = append(picked, t.URI)
				}
			}
			return picked, nil
		})
	}

	r.begin(FetchTopTracks, len(ops), "Collecting top tracks...")
	batch := settleStage(ctx, r, ops, "Top tracks fetched")
	if err := r.fatal(ctx, batch.Errors); err != nil {
		return nil, err
	}

	// a track credited to two target artists is only written once
	seen := make(map[string]struct{}, len(batch.Items))
	uris := make([]string, 0, len(batch.Items))
	for _, uri := range batch.Items {
		if _, ok := seen[uri]; ok {
			continue
		}
		seen[uri] = struct{}{}
		uris = append(uris, uri)
	}

	r.finish(fmt.Sprintf("Collected %d new tracks", len(uris)))
	return uris, nil
}

func (r *run) write(ctx context.Context, uris []string) error {
	userID, err := r.p.currentUser(ctx)
	if err != nil {
		return err
	}

	r.begin(WritePlaylists, r.p.writer.PackCount(len(uris)), "Creating playlists...")
	report, err := r.p.writer.Write(ctx, userID, uris, r.cfg.PlaylistName, r.stepFn("Packs written"))
	if report != nil {
		r.result.PlaylistIDs = report.PlaylistIDs
		r.result.Written = report.Tracks
		r.result.FailedRequests += report.FailedPacks
	}
	if err != nil {
		return err
	}

	r.finish(fmt.Sprintf("Wrote %d tracks to %d playlists", report.Tracks, len(report.PlaylistIDs)))
	return nil
}

func (r *run) confirm(ctx context.Context) {
	ids := r.result.PlaylistIDs
	r.begin(ConfirmPlaylists, len(ids), "Confirming playlists...")

	ops := make([]settle.Op[models.CreatedPlaylist], 0, len(ids))
	for _, id := range ids {
		ops = append(ops, settle.One(func(ctx context.Context) (models.CreatedPlaylist, error) {
			p, err := r.p.catalogue.Confirm(ctx, id)
			if err != nil {
				return models.CreatedPlaylist{}, err
			}
			return *p, nil
		}))
	}

	batch := settleStage(ctx, r, ops, "Playlists confirmed")
	r.result.Playlists = batch.Items
	r.finishWith("Done", batch.Items)
}

// settleStage runs ops with the pipeline's concurrency, stepping the tracker per settled op.
func settleStage[T any](ctx context.Context, r *run, ops []settle.Op[T], label string) settle.Batch[T] {
	observer := func(_, _ int, err error) {
		if err != nil {
			r.logger.Warn("dropping request", "stage", r.stage, "err", err)
		}
		r.step(label)
	}

	batch := settle.All(ctx, ops, settle.WithLimit(r.p.opts.Concurrency), settle.WithObserver(observer))
	r.result.FailedRequests += batch.Failed
	return batch
}

// fatal picks the errors a stage cannot drop: cancellation and lost authentication.
func (r *run) fatal(ctx context.Context, errs []error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	for _, err := range errs {
		if shared.IsAuthError(err) {
			return err
		}
	}
	return nil
}

func (r *run) begin(stage Stage, units int, msg string) {
	r.stage = stage
	fraction := r.tracker.Begin(stage, units)
	r.logger.Debug("stage started", "stage", stage, "units", units)
	sendProgress(r.progress, ProgressUpdate{RunID: r.id, Stage: stage, Total: units, Fraction: fraction, Message: msg})
}

func (r *run) step(label string) {
	settled, units, fraction := r.tracker.Step()
	sendProgress(r.progress, ProgressUpdate{
		RunID:    r.id,
		Stage:    r.stage,
		Step:     settled,
		Total:    units,
		Fraction: fraction,
		Message:  fmt.Sprintf("[%d/%d] %s", settled, units, label),
	})
}

// stepper adapts page callbacks, whose total is only known after the first page.
func (r *run) stepper(label string) func(done, total int) {
	return func(_, total int) {
		r.tracker.SetUnits(total)
		r.step(label)
	}
}

func (r *run) stepFn(label string) func() {
	return func() { r.step(label) }
}

func (r *run) finish(msg string) {
	r.finishWith(msg, nil)
}

func (r *run) finishWith(msg string, data any) {
	fraction := r.tracker.Finish()
	r.logger.Debug("stage finished", "stage", r.stage, "fraction", fraction)
	sendProgress(r.progress, ProgressUpdate{RunID: r.id, Stage: r.stage, Fraction: fraction, Message: msg, Done: true, Data: data})
}

// cleanup runs after every run, successful or not.
func (r *run) cleanup() {
	r.claimed.Reset()
	r.tracker.Reset()
	sendProgress(r.progress, ProgressUpdate{RunID: r.id, Stage: r.stage, Reset: true})
	if r.p.opts.OnIdle != nil {
		r.p.opts.OnIdle()
	}
}
