package tasks

import (
	"slices"

	"github.com/desertthunder/dive/internal/models"
)

// RankArtists counts how many tracks credit each artist and sorts the artists
// by that count, descending. Ties keep the order artists were first seen in.
// The first name seen for an artist id is kept.
func RankArtists(tracks []models.Track) []models.Artist {
	index := make(map[string]int)
	var ranked []models.Artist
	for _, t := range tracks {
		for _, a := range t.Artists {
			i, ok := index[a.ID]
			if !ok {
				i = len(ranked)
				index[a.ID] = i
				ranked = append(ranked, models.Artist{ID: a.ID, Name: a.Name})
			}
			ranked[i].TrackCount++
		}
	}

	slices.SortStableFunc(ranked, func(a, b models.Artist) int {
		return b.TrackCount - a.TrackCount
	})
	return ranked
}

// SelectArtists returns the leading run of ranked artists whose count is at least threshold.
func SelectArtists(ranked []models.Artist, threshold int) []models.Artist {
	for i, a := range ranked {
		if a.TrackCount < threshold {
			return ranked[:i]
		}
	}
	return ranked
}

// ArtistIDs extracts the ids of artists, preserving order.
func ArtistIDs(artists []models.Artist) []string {
	ids := make([]string, len(artists))
	for i, a := range artists {
		ids[i] = a.ID
	}
	return ids
}

// IsSemanticDuplicate reports whether candidate is the same recording as
// existing: same id, or same name with every candidate artist credited on existing.
func IsSemanticDuplicate(candidate, existing models.Track) bool {
	if candidate.ID == existing.ID {
		return true
	}
	if candidate.Name != existing.Name {
		return false
	}
	for _, a := range candidate.Artists {
		if !existing.HasArtist(a.ID) {
			return false
		}
	}
	return true
}

// TrackIndex answers [IsSemanticDuplicate] against a fixed set of tracks
// without scanning all of them.
type TrackIndex struct {
	ids    map[string]struct{}
	byName map[string][]models.Track
}

func NewTrackIndex(tracks []models.Track) *TrackIndex {
	idx := &TrackIndex{
		ids:    make(map[string]struct{}, len(tracks)),
		byName: make(map[string][]models.Track),
	}
	for _, t := range tracks {
		idx.ids[t.ID] = struct{}{}
		idx.byName[t.Name] = append(idx.byName[t.Name], t)
	}
	return idx
}

// Contains reports whether any indexed track is a semantic duplicate of candidate.
func (idx *TrackIndex) Contains(candidate models.Track) bool {
	if _, ok := idx.ids[candidate.ID]; ok {
		return true
	}
	for _, existing := range idx.byName[candidate.Name] {
		if IsSemanticDuplicate(candidate, existing) {
			return true
		}
	}
	return false
}

// Len is the number of indexed tracks.
func (idx *TrackIndex) Len() int { return len(idx.ids) }

// EstimateTracks is the most tracks a run over ranked could write.
func EstimateTracks(ranked []models.Artist, cfg models.PipelineConfig) int {
	n := len(SelectArtists(ranked, cfg.Threshold))
	if cfg.Mode == models.DiveDeeper {
		n *= cfg.RelatedPerArtist
	}
	return n * cfg.TracksPerArtist
}
