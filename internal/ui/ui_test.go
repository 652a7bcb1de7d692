package ui

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/dive/internal/models"
	"github.com/desertthunder/dive/internal/shared"
	"github.com/desertthunder/dive/internal/tasks"
)

type fakeSource struct {
	playlists []models.Playlist
	err       error
}

func (f *fakeSource) Playlists(context.Context) ([]models.Playlist, error) {
	return f.playlists, f.err
}

type fakeRunner struct {
	mu      sync.Mutex
	configs []models.PipelineConfig
	seeds   []models.Artist
	result  *tasks.RunResult
	err     error
	runs    int
}

func (f *fakeRunner) Estimate(_ context.Context, cfg models.PipelineConfig) ([]models.Artist, int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.configs = append(f.configs, cfg)
	return f.seeds, len(f.seeds) * cfg.TracksPerArtist, nil
}

func (f *fakeRunner) Run(_ context.Context, cfg models.PipelineConfig, progress chan<- tasks.ProgressUpdate) (*tasks.RunResult, error) {
	f.mu.Lock()
	f.runs++
	f.mu.Unlock()
	progress <- tasks.ProgressUpdate{Stage: tasks.FetchTopTracks, Fraction: 0.5, Message: "halfway"}
	return f.result, f.err
}

func press(s string) tea.KeyMsg {
	switch s {
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	case "esc":
		return tea.KeyMsg{Type: tea.KeyEsc}
	case "tab":
		return tea.KeyMsg{Type: tea.KeyTab}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func newTestModel(runner *fakeRunner, source *fakeSource, opts Options) *Model {
	if opts.Config.PlaylistName == "" {
		opts.Config = models.PipelineConfig{Threshold: 3, TracksPerArtist: 5, RelatedPerArtist: 2, PlaylistName: "Dive"}
	}
	m := NewModel(context.Background(), source, runner, opts)
	m.Update(tea.WindowSizeMsg{Width: 100, Height: 40})
	m.Update(m.Init()())
	return m
}

// send runs cmd and feeds its message back until no command is left.
func send(m *Model, cmd tea.Cmd) {
	for cmd != nil {
		_, cmd = m.Update(cmd())
	}
}

func TestModelSources(t *testing.T) {
	source := &fakeSource{playlists: []models.Playlist{{ID: "p1", Name: "Road Trip", TrackCount: 12}}}
	m := newTestModel(&fakeRunner{}, source, Options{})

	if n := len(m.sources.Items()); n != 2 {
		t.Fatalf("expected library plus one playlist, got %d items", n)
	}
	if view := m.View(); !strings.Contains(view, "Liked Songs") || !strings.Contains(view, "Road Trip") {
		t.Errorf("expected both sources in view, got %q", view)
	}

	m.Update(press("tab"))
	if m.cfg.Mode != models.DiveDeeper {
		t.Errorf("expected tab to switch to dive deeper, got %s", m.cfg.Mode)
	}
}

func TestModelPlaylistError(t *testing.T) {
	m := newTestModel(&fakeRunner{}, &fakeSource{err: shared.ErrTokenExpired}, Options{})

	if len(m.sources.Items()) != 1 {
		t.Errorf("expected the library to stay selectable")
	}
	if !strings.Contains(m.View(), "Authentication expired") {
		t.Errorf("expected the auth message, got %q", m.View())
	}
}

func TestModelConfirm(t *testing.T) {
	runner := &fakeRunner{seeds: []models.Artist{{ID: "a", Name: "Alpha", TrackCount: 9}, {ID: "b", Name: "Beta", TrackCount: 4}}}
	m := newTestModel(runner, &fakeSource{}, Options{})

	_, cmd := m.Update(press("enter"))
	send(m, cmd)

	if m.view != ConfirmView {
		t.Fatalf("expected confirm view, got %d", m.view)
	}
	if runner.configs[0].SourcePlaylistID != "" {
		t.Errorf("expected the library source, got %q", runner.configs[0].SourcePlaylistID)
	}
	view := m.View()
	if !strings.Contains(view, "Alpha, Beta") || !strings.Contains(view, "10 tracks") {
		t.Errorf("unexpected confirm view %q", view)
	}

	_, cmd = m.Update(press("+"))
	send(m, cmd)
	if got := runner.configs[len(runner.configs)-1].Threshold; got != 4 {
		t.Errorf("expected threshold 4 in the new estimate, got %d", got)
	}

	m.Update(press("n"))
	if m.view != SourceListView {
		t.Errorf("expected n to go back, got %d", m.view)
	}
}

func TestModelRun(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		runner := &fakeRunner{
			seeds: []models.Artist{{ID: "a", Name: "Alpha"}},
			result: &tasks.RunResult{
				Written:     20,
				PlaylistIDs: []string{"p1"},
				Playlists:   []models.CreatedPlaylist{{ID: "p1", Name: "Dive", URI: "spotify:playlist:p1"}},
			},
		}
		var finished sync.WaitGroup
		finished.Add(1)
		var got *tasks.RunResult
		m := newTestModel(runner, &fakeSource{}, Options{OnFinish: func(_ models.PipelineConfig, r *tasks.RunResult, _ error) {
			got = r
			finished.Done()
		}})

		_, cmd := m.Update(press("enter"))
		send(m, cmd)
		_, cmd = m.Update(press("y"))
		if m.view != RunView {
			t.Fatalf("expected run view, got %d", m.view)
		}
		send(m, cmd)
		finished.Wait()

		if m.view != ResultView || got != runner.result {
			t.Fatalf("expected result view with the run result, got %d", m.view)
		}
		view := m.View()
		if !strings.Contains(view, "Wrote 20 tracks to 1 playlists") || !strings.Contains(view, "spotify:playlist:p1") {
			t.Errorf("unexpected result view %q", view)
		}

		m.Update(press("r"))
		if m.view != SourceListView || m.result != nil {
			t.Error("expected r to start over")
		}
	})

	t.Run("failure", func(t *testing.T) {
		runner := &fakeRunner{
			seeds: []models.Artist{{ID: "a"}},
			err:   &tasks.StageError{Stage: tasks.FetchTopTracks, Message: "No new tracks found with current configuration! Try to adjust some values"},
		}
		m := newTestModel(runner, &fakeSource{}, Options{})

		_, cmd := m.Update(press("enter"))
		send(m, cmd)
		_, cmd = m.Update(press("y"))
		send(m, cmd)

		if !strings.Contains(m.View(), "No new tracks found") {
			t.Errorf("expected the stage message, got %q", m.View())
		}
	})
}

func TestModelRunHooks(t *testing.T) {
	runner := &fakeRunner{seeds: []models.Artist{{ID: "a"}}, result: &tasks.RunResult{Written: 3}}

	var events []string
	var finished sync.WaitGroup
	finished.Add(1)
	m := newTestModel(runner, &fakeSource{}, Options{OnStart: func(cfg models.PipelineConfig) func(*tasks.RunResult, error) {
		runner.mu.Lock()
		events = append(events, fmt.Sprintf("start %s runs=%d", cfg.PlaylistName, runner.runs))
		runner.mu.Unlock()
		return func(r *tasks.RunResult, err error) {
			events = append(events, fmt.Sprintf("finish written=%d err=%v", r.Written, err))
			finished.Done()
		}
	}})

	_, cmd := m.Update(press("enter"))
	send(m, cmd)
	_, cmd = m.Update(press("y"))
	send(m, cmd)
	finished.Wait()

	want := []string{"start Dive runs=0", "finish written=3 err=<nil>"}
	if !slices.Equal(events, want) {
		t.Errorf("events = %v, want %v", events, want)
	}
}

func TestModelProgress(t *testing.T) {
	m := newTestModel(&fakeRunner{}, &fakeSource{}, Options{})
	m.view = RunView

	m.Update(progressUpdateMsg(tasks.ProgressUpdate{Stage: tasks.WritePlaylists, Fraction: 0.9, Message: "[1/2] Packs written"}))
	if m.progress.Fraction != 0.9 {
		t.Errorf("expected fraction 0.9, got %v", m.progress.Fraction)
	}
	if view := m.View(); !strings.Contains(view, "Creating playlists") || !strings.Contains(view, "Packs written") {
		t.Errorf("unexpected run view %q", view)
	}

	m.Update(progressUpdateMsg(tasks.ProgressUpdate{Reset: true}))
	if m.progress.Fraction != 0.9 {
		t.Error("a reset update should not clear the bar before the result arrives")
	}
}

func TestModelErrorsAreDeduplicated(t *testing.T) {
	m := newTestModel(&fakeRunner{}, &fakeSource{}, Options{})

	m.addError(shared.ErrTokenExpired)
	m.addError(errors.Join(shared.ErrRefreshFailed))
	m.addError(&tasks.StageError{Message: "No artists found with current configuration! Try to adjust some values"})
	m.addError(shared.ErrTokenExpired)

	if got := m.Errors(); len(got) != 3 {
		t.Errorf("expected 3 messages after dropping the repeat, got %v", got)
	}
}

func TestRunnerChannelsDrain(t *testing.T) {
	runner := &fakeRunner{seeds: []models.Artist{{ID: "a"}}, result: &tasks.RunResult{}}
	m := newTestModel(runner, &fakeSource{}, Options{})
	m.Update(press("enter"))
	cmd := m.startRun()

	done := make(chan struct{})
	go func() {
		send(m, cmd)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("run messages did not settle")
	}
}
