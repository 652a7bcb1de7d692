package models

import (
	"errors"
	"fmt"
	"strings"
)

// Mode selects the pipeline variant.
type Mode int

const (
	// LookCloser recommends more tracks from artists already in the source.
	LookCloser Mode = iota
	// DiveDeeper recommends tracks from artists related to the ones in the source.
	DiveDeeper
)

func (m Mode) String() string {
	if m == DiveDeeper {
		return "dive-deeper"
	}
	return "look-closer"
}

// Title is the human readable mode name.
func (m Mode) Title() string {
	if m == DiveDeeper {
		return "Dive deeper"
	}
	return "Look closer"
}

func (m Mode) MarshalText() ([]byte, error) { return []byte(m.String()), nil }

func (m *Mode) UnmarshalText(text []byte) error {
	parsed, err := ParseMode(string(text))
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

// ParseMode accepts "look-closer" or "dive-deeper" (also with underscores or spaces).
func ParseMode(s string) (Mode, error) {
	norm := strings.NewReplacer("_", "-", " ", "-").Replace(strings.ToLower(strings.TrimSpace(s)))
	switch norm {
	case "look-closer", "":
		return LookCloser, nil
	case "dive-deeper":
		return DiveDeeper, nil
	}
	return LookCloser, fmt.Errorf("unknown mode %q (want look-closer or dive-deeper)", s)
}

// PipelineConfig is the user-facing input of a run.
type PipelineConfig struct {
	Mode Mode `json:"mode"`
	// SourcePlaylistID is empty (or "0") for the saved-track library.
	SourcePlaylistID string `json:"source_playlist_id"`
	Threshold        int    `json:"threshold"`
	TracksPerArtist  int    `json:"tracks_per_artist"`
	RelatedPerArtist int    `json:"related_per_artist"`
	PlaylistName     string `json:"playlist_name"`
}

// UsesLibrary reports whether the run reads the saved-track library instead of a playlist.
func (c PipelineConfig) UsesLibrary() bool {
	return c.SourcePlaylistID == "" || c.SourcePlaylistID == "0"
}

// Validate rejects configurations that cannot produce a meaningful run.
func (c PipelineConfig) Validate() error {
	var errs []error
	if c.Threshold < 0 {
		errs = append(errs, errors.New("threshold cannot be negative"))
	}
	if c.TracksPerArtist < 1 {
		errs = append(errs, errors.New("tracks per artist must be at least 1"))
	}
	if c.Mode == DiveDeeper && c.RelatedPerArtist < 1 {
		errs = append(errs, errors.New("related artists per artist must be at least 1"))
	}
	if strings.TrimSpace(c.PlaylistName) == "" {
		errs = append(errs, errors.New("playlist name is required"))
	}
	return errors.Join(errs...)
}
