// Package models defines the domain entities dive works with and the persistence interfaces for them.
//
// The package contains two categories of types:
//
// 1. Catalogue values: plain structs describing data read from or written to the streaming service
//   - [Track] : a playable item with its credited artists
//   - [Artist] : an artist ranked by how often it appears in a collection
//   - [Library] : the user's saved tracks plus the ranked artists derived from them
//   - [Playlist] and [CreatedPlaylist] : listings and confirmations of playlists
//
// 2. Persistent entities: database-backed records with lifecycle management
//   - [RunRecord] : one pipeline run with its configuration and outcome
//
// [PipelineConfig] is the validated input of a discovery run.
package models
