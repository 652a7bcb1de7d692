package models

import "slices"

// ArtistRef is an artist credit on a track.
type ArtistRef struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Track is a playable item. Artists keep the order the service credits them in.
type Track struct {
	ID      string      `json:"id"`
	Name    string      `json:"name"`
	URI     string      `json:"uri"`
	Artists []ArtistRef `json:"artists"`
}

// ArtistIDs returns the ids of the credited artists in credit order.
func (t Track) ArtistIDs() []string {
	ids := make([]string, 0, len(t.Artists))
	for _, a := range t.Artists {
		ids = append(ids, a.ID)
	}
	return ids
}

// HasArtist reports whether id is credited on the track.
func (t Track) HasArtist(id string) bool {
	return slices.ContainsFunc(t.Artists, func(a ArtistRef) bool { return a.ID == id })
}

// Artist is an artist together with the number of tracks in a collection that credit it.
type Artist struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	TrackCount int    `json:"track_count"`
}

// FetchState tracks the lifecycle of the one library load a session performs.
type FetchState int

const (
	NotStarted FetchState = iota
	Pending
	Finished
)

func (s FetchState) String() string {
	switch s {
	case Pending:
		return "pending"
	case Finished:
		return "finished"
	default:
		return "not started"
	}
}

// Library is the user's saved tracks and the artists ranked from them.
//
// Artists is sorted by track count, descending.
type Library struct {
	Tracks  []Track    `json:"tracks"`
	Artists []Artist   `json:"artists"`
	State   FetchState `json:"-"`
}

// ArtistSet returns the ids of every artist in the library.
func (l Library) ArtistSet() map[string]struct{} {
	set := make(map[string]struct{}, len(l.Artists))
	for _, a := range l.Artists {
		set[a.ID] = struct{}{}
	}
	return set
}

// Playlist is a playlist listing entry.
type Playlist struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Owner       string `json:"owner,omitempty"`
	TrackCount  int    `json:"track_count"`
	Public      bool   `json:"public"`
}

// CreatedPlaylist is the confirmation shown for a playlist a run wrote.
type CreatedPlaylist struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	URI      string `json:"uri"`
	Href     string `json:"href"`
	ImageURL string `json:"image_url,omitempty"`
}
