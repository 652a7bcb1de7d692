package ui

import (
	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/dive/internal/models"
	"github.com/desertthunder/dive/internal/tasks"
)

// MsgKind enumerates all message types in the application.
type MsgKind int

// Msg represents all possible messages in the TUI (Elm-style message union).
type Msg struct {
	kind MsgKind
	data any
}

var _ tea.Msg = Msg{}

const (
	MsgPlaylistsFetched MsgKind = iota
	MsgEstimated
	MsgProgressUpdate
	MsgRunComplete
)

type playlistsFetched struct {
	playlists []models.Playlist
	err       error
}

type estimated struct {
	seeds  []models.Artist
	tracks int
	err    error
}

type runComplete struct {
	result *tasks.RunResult
	err    error
}

// playlistsFetchedMsg is the constructor for [MsgPlaylistsFetched]
func playlistsFetchedMsg(playlists []models.Playlist, err error) Msg {
	return Msg{kind: MsgPlaylistsFetched, data: playlistsFetched{playlists, err}}
}

// estimatedMsg is the constructor for [MsgEstimated]
func estimatedMsg(seeds []models.Artist, tracks int, err error) Msg {
	return Msg{kind: MsgEstimated, data: estimated{seeds, tracks, err}}
}

// progressUpdateMsg is the constructor for [MsgProgressUpdate]
func progressUpdateMsg(update tasks.ProgressUpdate) Msg {
	return Msg{kind: MsgProgressUpdate, data: update}
}

// runCompleteMsg is the constructor for [MsgRunComplete]
func runCompleteMsg(result *tasks.RunResult, err error) Msg {
	return Msg{kind: MsgRunComplete, data: runComplete{result, err}}
}
