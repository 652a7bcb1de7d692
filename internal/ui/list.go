package ui

import (
	"fmt"

	"github.com/charmbracelet/bubbles/list"
	"github.com/desertthunder/dive/internal/models"
)

var _ list.Item = sourceItem{}

// sourceItem is a run source in the picker: the saved-track library or one playlist.
type sourceItem struct {
	playlist models.Playlist
	library  bool
}

func librarySource() sourceItem {
	return sourceItem{library: true, playlist: models.Playlist{ID: "", Name: "Liked Songs"}}
}

func (i sourceItem) FilterValue() string { return i.playlist.Name }
func (i sourceItem) Title() string       { return i.playlist.Name }
func (i sourceItem) Description() string {
	if i.library {
		return "Your saved tracks"
	}
	desc := fmt.Sprintf("%d tracks", i.playlist.TrackCount)
	if i.playlist.Owner != "" {
		desc = fmt.Sprintf("%s • by %s", desc, i.playlist.Owner)
	}
	return desc
}
