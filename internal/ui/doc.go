// Package ui implements the interactive terminal interface using bubbletea's Elm architecture.
//
// The TUI walks through one run at a time:
//  1. [SourceListView] : Pick the library or a playlist as the source, tab switches mode
//  2. [ConfirmView] : Review the estimate, adjust the threshold and start
//  3. [RunView] : Follow the stage and overall progress bar
//  4. [ResultView] : See the created playlists or the error
//
// The (view) [Model] implements the Init/Update/View pattern and receives its own
// results through the [Msg] union. Progress flows from the pipeline through a buffered
// channel; the run result arrives on a separate channel once the run returns.
//
// Repeated errors are shown once: an error whose message matches the last one displayed is dropped.
package ui
