package tasks

import "github.com/desertthunder/dive/internal/models"

// Stage is one step of a run. Stages execute in declaration order; a mode skips
// the ones it has no weight for.
type Stage int

const (
	FetchSourceTracks Stage = iota
	SelectSeeds
	FetchRelatedArtists
	FetchTopTracks
	WritePlaylists
	ConfirmPlaylists
)

func (s Stage) String() string {
	switch s {
	case FetchSourceTracks:
		return "fetch_source_tracks"
	case SelectSeeds:
		return "select_seeds"
	case FetchRelatedArtists:
		return "fetch_related_artists"
	case FetchTopTracks:
		return "fetch_top_tracks"
	case WritePlaylists:
		return "write_playlists"
	case ConfirmPlaylists:
		return "confirm_playlists"
	default:
		return ""
	}
}

// Title is the label shown next to the stage in progress views.
func (s Stage) Title() string {
	switch s {
	case FetchSourceTracks:
		return "Fetching tracks"
	case SelectSeeds:
		return "Selecting artists"
	case FetchRelatedArtists:
		return "Finding related artists"
	case FetchTopTracks:
		return "Collecting top tracks"
	case WritePlaylists:
		return "Creating playlists"
	case ConfirmPlaylists:
		return "Confirming playlists"
	default:
		return ""
	}
}

// stageWeights are percentages of the whole run; each mode's weights sum to 100.
var stageWeights = map[models.Mode]map[Stage]float64{
	models.LookCloser: {
		FetchSourceTracks: 25,
		SelectSeeds:       0,
		FetchTopTracks:    60,
		WritePlaylists:    13,
		ConfirmPlaylists:  2,
	},
	models.DiveDeeper: {
		FetchSourceTracks:   25,
		SelectSeeds:         0,
		FetchRelatedArtists: 20,
		FetchTopTracks:      40,
		WritePlaylists:      13,
		ConfirmPlaylists:    2,
	},
}

// Plan lists the stages a run in mode goes through.
func Plan(mode models.Mode) []Stage {
	weights := stageWeights[mode]
	var stages []Stage
	for s := FetchSourceTracks; s <= ConfirmPlaylists; s++ {
		if _, ok := weights[s]; ok {
			stages = append(stages, s)
		}
	}
	return stages
}

// Weight is the stage's share of a run in mode, in percent.
func (s Stage) Weight(mode models.Mode) float64 {
	return stageWeights[mode][s]
}
