package tasks

import (
	"context"
	"fmt"
	"io"
	"sync/atomic"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/dive/internal/models"
	"github.com/desertthunder/dive/internal/settle"
	"github.com/desertthunder/dive/internal/shared"
)

const (
	DefaultAddLimit       = 100
	DefaultPlaylistLimit  = 10000
	DefaultCreateAttempts = 3
	DefaultDescription    = "Created with dive"
)

// PlaylistWriterAPI is the part of the catalogue the writer needs.
type PlaylistWriterAPI interface {
	CreatePlaylist(ctx context.Context, userID, name, description string) (*models.Playlist, error)
	AddTracks(ctx context.Context, playlistID string, uris []string) error
}

// WriterOptions configures a [PlaylistWriter]. Zero values take the defaults.
type WriterOptions struct {
	AddLimit       int
	PlaylistLimit  int
	CreateAttempts int
	// Lossy drops failed packs; otherwise any failed pack fails the write.
	Lossy       bool
	Concurrency int
	Description string
	Logger      *log.Logger
}

// DefaultWriterOptions are the service's write caps with lossy packs.
func DefaultWriterOptions() WriterOptions {
	return WriterOptions{
		AddLimit:       DefaultAddLimit,
		PlaylistLimit:  DefaultPlaylistLimit,
		CreateAttempts: DefaultCreateAttempts,
		Lossy:          true,
		Description:    DefaultDescription,
	}
}

// WriteReport describes what a write produced.
type WriteReport struct {
	PlaylistIDs []string
	Packs       int
	FailedPacks int
	Tracks      int
}

// PlaylistWriter splits a track list into playlists and write packs.
type PlaylistWriter struct {
	api  PlaylistWriterAPI
	opts WriterOptions
}

func NewPlaylistWriter(api PlaylistWriterAPI, opts WriterOptions) *PlaylistWriter {
	if opts.AddLimit <= 0 {
		opts.AddLimit = DefaultAddLimit
	}
	if opts.PlaylistLimit < opts.AddLimit {
		opts.PlaylistLimit = DefaultPlaylistLimit
	}
	if opts.CreateAttempts <= 0 {
		opts.CreateAttempts = DefaultCreateAttempts
	}
	if opts.Description == "" {
		opts.Description = DefaultDescription
	}
	if opts.Logger == nil {
		opts.Logger = log.New(io.Discard)
	}
	return &PlaylistWriter{api: api, opts: opts}
}

// Chunk splits items into consecutive slices of at most size elements.
func Chunk[T any](items []T, size int) [][]T {
	if size <= 0 {
		return nil
	}
	chunks := make([][]T, 0, (len(items)+size-1)/size)
	for start := 0; start < len(items); start += size {
		chunks = append(chunks, items[start:min(start+size, len(items))])
	}
	return chunks
}

// PlaylistName names the index-th (zero based) playlist of a write.
func PlaylistName(base string, index int) string {
	if index == 0 {
		return base
	}
	return fmt.Sprintf("%s (part %d)", base, index+1)
}

// Plan groups uris into playlists of packs.
func (w *PlaylistWriter) Plan(uris []string) [][][]string {
	packs := Chunk(uris, w.opts.AddLimit)
	return Chunk(packs, w.opts.PlaylistLimit/w.opts.AddLimit)
}

// PackCount is the number of add requests writing n uris takes.
func (w *PlaylistWriter) PackCount(n int) int {
	return (n + w.opts.AddLimit - 1) / w.opts.AddLimit
}

// Write creates the playlists for uris owned by userID and fills them.
//
// Playlists are created one group at a time. When creation of a group fails
// after every attempt, the write stops and the report holds the playlists
// created so far. onPack is called after each settled pack.
func (w *PlaylistWriter) Write(ctx context.Context, userID string, uris []string, base string, onPack func()) (*WriteReport, error) {
	report := &WriteReport{}
	for i, group := range w.Plan(uris) {
		name := PlaylistName(base, i)
		playlist, err := w.create(ctx, userID, name)
		if err != nil {
			return report, err
		}
		report.PlaylistIDs = append(report.PlaylistIDs, playlist.ID)

		var written atomic.Int64
		ops := make([]settle.Op[string], 0, len(group))
		for _, pack := range group {
			ops = append(ops, func(ctx context.Context) ([]string, error) {
				if err := w.api.AddTracks(ctx, playlist.ID, pack); err != nil {
					return nil, err
				}
				written.Add(int64(len(pack)))
				return []string{playlist.ID}, nil
			})
		}

		observer := func(_, _ int, err error) {
			if err != nil {
				w.opts.Logger.Warn("dropping pack", "playlist", playlist.ID, "err", err)
			}
			if onPack != nil {
				onPack()
			}
		}
		batch := settle.All(ctx, ops, settle.WithLimit(w.opts.Concurrency), settle.WithObserver(observer))

		report.Packs += len(group)
		report.FailedPacks += batch.Failed
		report.Tracks += int(written.Load())

		if err := ctx.Err(); err != nil {
			return report, err
		}
		if err := batch.Fatal(shared.IsAuthError); err != nil {
			return report, err
		}
		if batch.Failed > 0 && !w.opts.Lossy {
			return report, fmt.Errorf("%w: %d of %d packs failed for %q", shared.ErrPartialWrite, batch.Failed, len(group), name)
		}
	}
	return report, nil
}

func (w *PlaylistWriter) create(ctx context.Context, userID, name string) (*models.Playlist, error) {
	var lastErr error
	for attempt := 1; attempt <= w.opts.CreateAttempts; attempt++ {
		playlist, err := w.api.CreatePlaylist(ctx, userID, name, w.opts.Description)
		if err == nil {
			w.opts.Logger.Info("created playlist", "name", name, "id", playlist.ID)
			return playlist, nil
		}
		lastErr = err
		if shared.IsAuthError(err) || ctx.Err() != nil {
			return nil, err
		}
		w.opts.Logger.Warn("playlist creation failed", "name", name, "attempt", attempt, "err", err)
	}
	return nil, &CreateError{Name: name, Attempts: w.opts.CreateAttempts, Err: lastErr}
}

// CreateError is a playlist that could not be created within the attempt budget.
type CreateError struct {
	Name     string
	Attempts int
	Err      error
}

func (e *CreateError) Error() string {
	return fmt.Sprintf("Can't create playlist %s after %d retries", e.Name, e.Attempts)
}

func (e *CreateError) Unwrap() []error { return []error{shared.ErrPlaylistCreate, e.Err} }
