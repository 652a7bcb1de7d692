// Package repositories implements SQLite persistence for run history and saved preferences.
//
// Repositories take a *sql.DB opened by [shared.OpenDatabase] and assume its migrations ran.
//
// Key Implementations:
//   - [RunRepository] : Run history with status filters and soft deletes
//   - [PreferenceRepository] : Key/value store for the pipeline settings a user saved
//
// Sequence numbers give runs a stable, human-readable order (run #42) independent of
// UUIDs and timestamps. [NextSequence] increments the per-table counter in the sequences table.
package repositories
