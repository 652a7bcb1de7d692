package formatter

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/desertthunder/dive/internal/models"
	"github.com/desertthunder/dive/internal/shared"
	"github.com/desertthunder/dive/internal/tasks"
	tu "github.com/desertthunder/dive/internal/testing"
)

func sampleArtists() []models.Artist {
	return []models.Artist{
		{ID: "a1", Name: "Boards of Canada", TrackCount: 12},
		{ID: "a2", Name: "Ryo | Fukui", TrackCount: 3},
	}
}

func sampleResult() *tasks.RunResult {
	return &tasks.RunResult{
		RunID:          "run1",
		Mode:           models.DiveDeeper,
		Seeds:          sampleArtists(),
		TargetArtists:  14,
		Tracks:         70,
		Written:        68,
		PlaylistIDs:    []string{"p1"},
		Playlists:      []models.CreatedPlaylist{{ID: "p1", Name: "Dive", URI: "spotify:playlist:p1", Href: "https://open.spotify.com/playlist/p1"}},
		FailedRequests: 2,
		Duration:       83 * time.Second,
	}
}

func TestParseFormat(t *testing.T) {
	tc := []struct {
		in   string
		want Format
	}{
		{"", Text}, {"TEXT", Text}, {"csv", CSV}, {"md", Markdown}, {"markdown", Markdown}, {"json", JSON},
	}
	for _, tt := range tc {
		got, err := ParseFormat(tt.in)
		if err != nil || got != tt.want {
			t.Errorf("ParseFormat(%q) = %q, %v", tt.in, got, err)
		}
	}

	if _, err := ParseFormat("yaml"); !errors.Is(err, shared.ErrInvalidFlag) {
		t.Errorf("expected ErrInvalidFlag, got %v", err)
	}
}

func TestArtists(t *testing.T) {
	t.Run("text", func(t *testing.T) {
		data, err := Artists(sampleArtists(), Text)
		if err != nil {
			t.Fatalf("Artists failed: %v", err)
		}
		if !strings.Contains(string(data), "1. Boards of Canada (12)") {
			t.Errorf("unexpected text %q", data)
		}
	})

	t.Run("csv", func(t *testing.T) {
		data, err := Artists(sampleArtists(), CSV)
		if err != nil {
			t.Fatalf("Artists failed: %v", err)
		}
		output := string(data)
		if !strings.HasPrefix(output, "Rank,ID,Name,Tracks\n") || !strings.Contains(output, "2,a2,Ryo | Fukui,3") {
			t.Errorf("unexpected CSV %q", output)
		}
	})

	t.Run("markdown escapes pipes", func(t *testing.T) {
		data, err := Artists(sampleArtists(), Markdown)
		if err != nil {
			t.Fatalf("Artists failed: %v", err)
		}
		if !strings.Contains(string(data), `| 2 | Ryo \| Fukui | 3 |`) {
			t.Errorf("unexpected markdown %q", data)
		}
	})

	t.Run("json", func(t *testing.T) {
		data, err := Artists(sampleArtists(), JSON)
		if err != nil {
			t.Fatalf("Artists failed: %v", err)
		}
		var decoded []models.Artist
		if err := json.Unmarshal(data, &decoded); err != nil || len(decoded) != 2 {
			t.Errorf("expected 2 artists in JSON, got %v (%v)", decoded, err)
		}
	})
}

func TestPlaylists(t *testing.T) {
	playlists := []models.Playlist{{ID: "p1", Name: "Road Trip", Owner: "listener", TrackCount: 12}}

	data, err := Playlists(playlists, Text)
	if err != nil || !strings.Contains(string(data), "p1  Road Trip (12 tracks)") {
		t.Errorf("unexpected text %q (%v)", data, err)
	}

	data, err = Playlists(playlists, CSV)
	if err != nil || !strings.Contains(string(data), "p1,Road Trip,listener,12") {
		t.Errorf("unexpected CSV %q (%v)", data, err)
	}
}

func TestRunReport(t *testing.T) {
	t.Run("text", func(t *testing.T) {
		data, err := RunReport(sampleResult(), Text, "")
		if err != nil {
			t.Fatalf("RunReport failed: %v", err)
		}
		output := string(data)
		for _, want := range []string{"Mode: Dive deeper", "Tracks written: 68 of 70", "Skipped requests: 2", "Duration: 1:23", "Dive  spotify:playlist:p1"} {
			if !strings.Contains(output, want) {
				t.Errorf("text report missing %q:\n%s", want, output)
			}
		}
	})

	t.Run("markdown", func(t *testing.T) {
		data, err := RunReport(sampleResult(), Markdown, "cover.jpg")
		if err != nil {
			t.Fatalf("RunReport failed: %v", err)
		}
		output := string(data)
		for _, want := range []string{"# Dive", "![Cover](cover.jpg)", "1. Boards of Canada (12)", "- [Dive](https://open.spotify.com/playlist/p1)"} {
			if !strings.Contains(output, want) {
				t.Errorf("markdown report missing %q:\n%s", want, output)
			}
		}
	})

	t.Run("json", func(t *testing.T) {
		data, err := RunReport(sampleResult(), JSON, "")
		if err != nil {
			t.Fatalf("RunReport failed: %v", err)
		}
		var decoded tasks.RunResult
		if err := json.Unmarshal(data, &decoded); err != nil {
			t.Fatalf("invalid JSON: %v", err)
		}
		if decoded.Written != 68 || decoded.Mode != models.DiveDeeper {
			t.Errorf("unexpected decoded result %+v", decoded)
		}
	})
}

func TestHistory(t *testing.T) {
	ok := models.NewRunRecord("r1", models.PipelineConfig{PlaylistName: "Dive"})
	ok.Sequence = 2
	ok.Finish([]string{"p1"}, 40, nil)

	failed := models.NewRunRecord("r2", models.PipelineConfig{Mode: models.DiveDeeper, SourcePlaylistID: "src", PlaylistName: "Deep"})
	failed.Sequence = 1
	failed.Finish(nil, 0, errors.New("boom"))

	runs := []*models.RunRecord{ok, failed}

	data, err := History(runs, Text)
	if err != nil {
		t.Fatalf("History failed: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %q", data)
	}
	if !strings.HasPrefix(lines[0], "#2") || !strings.Contains(lines[0], "Dive (library)") {
		t.Errorf("unexpected first line %q", lines[0])
	}
	if !strings.Contains(lines[1], "failed") || !strings.HasSuffix(lines[1], "boom") {
		t.Errorf("unexpected second line %q", lines[1])
	}

	data, err = History(runs, CSV)
	if err != nil || !strings.Contains(string(data), "1,r2,dive-deeper,src,Deep,failed,0,boom") {
		t.Errorf("unexpected CSV %q (%v)", data, err)
	}
}

func TestFormatDuration(t *testing.T) {
	tc := map[time.Duration]string{
		0:                      "0:00",
		59 * time.Second:       "0:59",
		83 * time.Second:       "1:23",
		time.Hour + time.Minute: "1:01:00",
	}
	for d, want := range tc {
		if got := FormatDuration(d); got != want {
			t.Errorf("FormatDuration(%v) = %q, want %q", d, got, want)
		}
	}
}

func TestWriteRunReport(t *testing.T) {
	image := []byte("jpeg bytes")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/cover" {
			http.NotFound(w, r)
			return
		}
		w.Write(image)
	}))
	defer srv.Close()

	t.Run("with cover", func(t *testing.T) {
		dir := filepath.Join(t.TempDir(), "report")
		result := sampleResult()
		result.Playlists[0].ImageURL = srv.URL + "/cover"

		report, err := WriteRunReport(context.Background(), srv.Client(), result, dir)
		if err != nil {
			t.Fatalf("WriteRunReport failed: %v", err)
		}
		if report.Warning != nil || len(report.Files) != 2 {
			t.Fatalf("expected cover and README, got %+v", report)
		}

		if got, _ := os.ReadFile(report.CoverImage); string(got) != string(image) {
			t.Errorf("unexpected cover contents %q", got)
		}
		if md := tu.MustReadFile(t, filepath.Join(dir, "README.md")); !strings.Contains(md, "![Cover](cover.jpg)") {
			t.Errorf("README missing cover: %s", md)
		}
	})

	t.Run("missing cover is a warning", func(t *testing.T) {
		dir := t.TempDir()
		result := sampleResult()
		result.Playlists[0].ImageURL = srv.URL + "/missing"

		report, err := WriteRunReport(context.Background(), srv.Client(), result, dir)
		if err != nil {
			t.Fatalf("WriteRunReport failed: %v", err)
		}
		if report.Warning == nil || report.CoverImage != "" {
			t.Errorf("expected a warning without cover, got %+v", report)
		}
		if md := tu.MustReadFile(t, filepath.Join(dir, "README.md")); strings.Contains(md, "![Cover]") {
			t.Errorf("README should not reference a cover: %s", md)
		}
	})

	t.Run("empty url", func(t *testing.T) {
		if _, err := DownloadImage(context.Background(), nil, ""); !errors.Is(err, shared.ErrInvalidInput) {
			t.Errorf("expected ErrInvalidInput, got %v", err)
		}
	})
}
