// Package tasks runs the discovery pipeline: rank the artists of a source,
// optionally expand them to related artists, collect their top tracks that the
// user does not already own, and write the result to new playlists.
//
// # Stages
//
// A run walks the [Stage] values in order. [LookCloser] skips
// [FetchRelatedArtists]. Each stage has a fixed share of the overall progress;
// the shares of a mode add up to 100.
//
//  1. [FetchSourceTracks] : load the library (shared by every run of a [Pipeline]) or a playlist's saved tracks
//  2. [SelectSeeds] : keep the leading artists with at least the threshold of tracks
//  3. [FetchRelatedArtists] : replace each seed with related artists missing from the library
//  4. [FetchTopTracks] : take each artist's top tracks that are not semantic duplicates of library tracks
//  5. [WritePlaylists] : create playlists and add tracks in packs
//  6. [ConfirmPlaylists] : fetch display data for the created playlists
//
// Requests within a stage run concurrently through the settle package; a failed
// request is logged and dropped unless it means authentication was lost.
//
// # Progress Reporting
//
// Runs send [ProgressUpdate] values on a caller-supplied channel without
// blocking. Fraction never decreases within a run; the final update of every
// run has Reset set.
//
// # Errors
//
// [Classify] and [UserMessage] turn run errors into the kinds and texts the
// CLI and TUI show.
//
// [LookCloser]: github.com/desertthunder/dive/internal/models.LookCloser
package tasks
