// package formatter renders artist rankings, run reports and run history as text, CSV, Markdown or JSON
package formatter

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/desertthunder/dive/internal/models"
	"github.com/desertthunder/dive/internal/shared"
	"github.com/desertthunder/dive/internal/tasks"
)

// Format is an output format accepted by the --format flag.
type Format string

const (
	Text     Format = "text"
	CSV      Format = "csv"
	Markdown Format = "markdown"
	JSON     Format = "json"
)

// ParseFormat accepts text, csv, markdown (or md) and json.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "text", "txt":
		return Text, nil
	case "csv":
		return CSV, nil
	case "markdown", "md":
		return Markdown, nil
	case "json":
		return JSON, nil
	}
	return "", fmt.Errorf("%w: unknown format %q", shared.ErrInvalidFlag, s)
}

// Artists renders a ranking, numbering artists from 1.
func Artists(artists []models.Artist, format Format) ([]byte, error) {
	switch format {
	case CSV:
		return artistsCSV(artists)
	case JSON:
		return marshalJSON(artists)
	case Markdown:
		var buf bytes.Buffer
		buf.WriteString("| # | Artist | Tracks |\n|---|---|---|\n")
		for i, a := range artists {
			fmt.Fprintf(&buf, "| %d | %s | %d |\n", i+1, escapeCell(a.Name), a.TrackCount)
		}
		return buf.Bytes(), nil
	default:
		var buf bytes.Buffer
		width := len(strconv.Itoa(len(artists)))
		for i, a := range artists {
			fmt.Fprintf(&buf, "%*d. %s (%d)\n", width, i+1, a.Name, a.TrackCount)
		}
		return buf.Bytes(), nil
	}
}

func artistsCSV(artists []models.Artist) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	if err := writer.Write([]string{"Rank", "ID", "Name", "Tracks"}); err != nil {
		return nil, fmt.Errorf("failed to write CSV headers: %w", err)
	}
	for i, a := range artists {
		record := []string{strconv.Itoa(i + 1), a.ID, a.Name, strconv.Itoa(a.TrackCount)}
		if err := writer.Write(record); err != nil {
			return nil, fmt.Errorf("failed to write CSV record: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("CSV writer error: %w", err)
	}
	return buf.Bytes(), nil
}

// Playlists renders a playlist listing.
func Playlists(playlists []models.Playlist, format Format) ([]byte, error) {
	switch format {
	case JSON:
		return marshalJSON(playlists)
	case CSV:
		var buf bytes.Buffer
		writer := csv.NewWriter(&buf)
		if err := writer.Write([]string{"ID", "Name", "Owner", "Tracks"}); err != nil {
			return nil, fmt.Errorf("failed to write CSV headers: %w", err)
		}
		for _, p := range playlists {
			if err := writer.Write([]string{p.ID, p.Name, p.Owner, strconv.Itoa(p.TrackCount)}); err != nil {
				return nil, fmt.Errorf("failed to write CSV record: %w", err)
			}
		}
		writer.Flush()
		return buf.Bytes(), writer.Error()
	default:
		var buf bytes.Buffer
		for _, p := range playlists {
			fmt.Fprintf(&buf, "%s  %s (%d tracks)\n", p.ID, p.Name, p.TrackCount)
		}
		return buf.Bytes(), nil
	}
}

// RunReport renders the outcome of a run. coverImage is an optional file name
// embedded in the Markdown report.
func RunReport(result *tasks.RunResult, format Format, coverImage string) ([]byte, error) {
	switch format {
	case JSON:
		return marshalJSON(result)
	case CSV:
		var buf bytes.Buffer
		writer := csv.NewWriter(&buf)
		if err := writer.Write([]string{"ID", "Name", "URI", "Href"}); err != nil {
			return nil, fmt.Errorf("failed to write CSV headers: %w", err)
		}
		for _, p := range result.Playlists {
			if err := writer.Write([]string{p.ID, p.Name, p.URI, p.Href}); err != nil {
				return nil, fmt.Errorf("failed to write CSV record: %w", err)
			}
		}
		writer.Flush()
		return buf.Bytes(), writer.Error()
	case Markdown:
		return runMarkdown(result, coverImage), nil
	default:
		return runText(result), nil
	}
}

func runText(result *tasks.RunResult) []byte {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "Mode: %s\n", result.Mode.Title())
	fmt.Fprintf(&buf, "Seed artists: %d\n", len(result.Seeds))
	fmt.Fprintf(&buf, "Target artists: %d\n", result.TargetArtists)
	fmt.Fprintf(&buf, "Tracks written: %d of %d\n", result.Written, result.Tracks)
	if result.FailedRequests > 0 {
		fmt.Fprintf(&buf, "Skipped requests: %d\n", result.FailedRequests)
	}
	fmt.Fprintf(&buf, "Duration: %s\n", FormatDuration(result.Duration))

	if len(result.Playlists) > 0 {
		buf.WriteString("\nPlaylists:\n")
		for _, p := range result.Playlists {
			fmt.Fprintf(&buf, "  %s  %s\n", p.Name, p.URI)
		}
	}
	return buf.Bytes()
}

func runMarkdown(result *tasks.RunResult, coverImage string) []byte {
	var buf bytes.Buffer
	name := "Run " + result.RunID
	if len(result.Playlists) > 0 {
		name = result.Playlists[0].Name
	}
	fmt.Fprintf(&buf, "# %s\n\n", name)

	if coverImage != "" {
		fmt.Fprintf(&buf, "![Cover](%s)\n\n", coverImage)
	}

	fmt.Fprintf(&buf, "**Mode**: %s\n", result.Mode.Title())
	fmt.Fprintf(&buf, "**Tracks**: %d\n", result.Written)
	fmt.Fprintf(&buf, "**Duration**: %s\n\n", FormatDuration(result.Duration))

	if len(result.Seeds) > 0 {
		buf.WriteString("## Seed artists\n\n")
		for i, a := range result.Seeds {
			fmt.Fprintf(&buf, "%d. %s (%d)\n", i+1, a.Name, a.TrackCount)
		}
		buf.WriteString("\n")
	}

	if len(result.Playlists) > 0 {
		buf.WriteString("## Playlists\n\n")
		for _, p := range result.Playlists {
			link := p.Href
			if link == "" {
				link = p.URI
			}
			fmt.Fprintf(&buf, "- [%s](%s)\n", p.Name, link)
		}
	}
	return buf.Bytes()
}

// History renders stored runs, newest first as given.
func History(runs []*models.RunRecord, format Format) ([]byte, error) {
	switch format {
	case JSON:
		type row struct {
			Sequence    int       `json:"sequence"`
			ID          string    `json:"id"`
			Mode        string    `json:"mode"`
			Source      string    `json:"source"`
			Playlist    string    `json:"playlist"`
			Status      string    `json:"status"`
			Tracks      int       `json:"tracks"`
			PlaylistIDs []string  `json:"playlist_ids"`
			Error       string    `json:"error,omitempty"`
			CreatedAt   time.Time `json:"created_at"`
		}
		rows := make([]row, 0, len(runs))
		for _, r := range runs {
			rows = append(rows, row{r.Sequence, r.ID(), r.Mode.String(), sourceName(r.SourcePlaylistID), r.PlaylistName, string(r.Status), r.TrackCount, r.PlaylistIDs, r.Error, r.CreatedAt()})
		}
		return marshalJSON(rows)
	case CSV:
		var buf bytes.Buffer
		writer := csv.NewWriter(&buf)
		if err := writer.Write([]string{"Sequence", "ID", "Mode", "Source", "Playlist", "Status", "Tracks", "Error", "Created"}); err != nil {
			return nil, fmt.Errorf("failed to write CSV headers: %w", err)
		}
		for _, r := range runs {
			record := []string{
				strconv.Itoa(r.Sequence), r.ID(), r.Mode.String(), sourceName(r.SourcePlaylistID),
				r.PlaylistName, string(r.Status), strconv.Itoa(r.TrackCount), r.Error,
				r.CreatedAt().Format(time.RFC3339),
			}
			if err := writer.Write(record); err != nil {
				return nil, fmt.Errorf("failed to write CSV record: %w", err)
			}
		}
		writer.Flush()
		return buf.Bytes(), writer.Error()
	default:
		var buf bytes.Buffer
		for _, r := range runs {
			fmt.Fprintf(&buf, "#%-4d %s  %-11s %-9s %4d tracks  %s (%s)",
				r.Sequence, r.CreatedAt().Local().Format("2006-01-02 15:04"), r.Mode, r.Status,
				r.TrackCount, r.PlaylistName, sourceName(r.SourcePlaylistID))
			if r.Error != "" {
				fmt.Fprintf(&buf, "  %s", r.Error)
			}
			buf.WriteString("\n")
		}
		return buf.Bytes(), nil
	}
}

func sourceName(id string) string {
	if id == "" || id == "0" {
		return "library"
	}
	return id
}

// FormatDuration renders d rounded to the second as m:ss, or h:mm:ss past an hour.
func FormatDuration(d time.Duration) string {
	total := int(d.Round(time.Second).Seconds())
	h, m, s := total/3600, (total%3600)/60, total%60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%d:%02d", m, s)
}

func escapeCell(s string) string {
	return strings.ReplaceAll(s, "|", `\|`)
}

func marshalJSON(v any) ([]byte, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal JSON: %w", err)
	}
	return append(data, '\n'), nil
}

// DownloadImage downloads an image from the given URL and returns the raw bytes
func DownloadImage(ctx context.Context, client *http.Client, url string) ([]byte, error) {
	if url == "" {
		return nil, fmt.Errorf("%w: empty URL provided", shared.ErrInvalidInput)
	}
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build image request: %w", err)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to download image: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to download image: status %d", resp.StatusCode)
	}

	imageData, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read image data: %w", err)
	}
	return imageData, nil
}

// ReportExportResult lists the files written by [WriteRunReport].
type ReportExportResult struct {
	Directory  string
	Files      []string
	CoverImage string
	// Warning is set when the cover image could not be saved.
	Warning error
}

// WriteRunReport writes the Markdown report of a run to dir/README.md, with the
// first playlist's cover image next to it when it can be downloaded.
//
// A failed cover download only drops the image and sets the result's Warning.
func WriteRunReport(ctx context.Context, client *http.Client, result *tasks.RunResult, dir string) (*ReportExportResult, error) {
	if dir == "" {
		dir = "dive-" + result.RunID
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	report := &ReportExportResult{Directory: dir}

	var cover string
	if len(result.Playlists) > 0 && result.Playlists[0].ImageURL != "" {
		data, err := DownloadImage(ctx, client, result.Playlists[0].ImageURL)
		if err != nil {
			report.Warning = err
		} else {
			path := filepath.Join(dir, "cover.jpg")
			if err := os.WriteFile(path, data, 0644); err != nil {
				report.Warning = fmt.Errorf("failed to save cover image: %w", err)
			} else {
				cover = "cover.jpg"
				report.CoverImage = path
				report.Files = append(report.Files, path)
			}
		}
	}

	md, err := RunReport(result, Markdown, cover)
	if err != nil {
		return nil, err
	}

	path := filepath.Join(dir, "README.md")
	if err := os.WriteFile(path, md, 0644); err != nil {
		return nil, fmt.Errorf("failed to write Markdown file: %w", err)
	}
	report.Files = append(report.Files, path)
	return report, nil
}
