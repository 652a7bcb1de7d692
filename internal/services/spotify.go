// Spotify Web API client
//
// Response types based on https://developer.spotify.com/documentation/web-api/reference/
package services

import (
	"context"
	"fmt"
	"io"
	"net/url"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/dive/internal/models"
)

type followers struct {
	Total int `json:"total"`
}

// SpotifyUser represents a Spotify user profile.
type SpotifyUser struct {
	ID          string         `json:"id"`
	DisplayName string         `json:"display_name"`
	Email       string         `json:"email"`
	Country     string         `json:"country"`
	Product     string         `json:"product"` // premium, free, etc.
	Followers   followers      `json:"followers"`
	Images      []SpotifyImage `json:"images"`
}

// SpotifyImage represents an image resource.
type SpotifyImage struct {
	URL    string `json:"url"`
	Height int    `json:"height"`
	Width  int    `json:"width"`
}

// SpotifyTrack represents a Spotify track.
type SpotifyTrack struct {
	ID         string          `json:"id"`
	Name       string          `json:"name"`
	Artists    []SpotifyArtist `json:"artists"`
	DurationMS int             `json:"duration_ms"`
	IsLocal    bool            `json:"is_local"`
	Popularity int             `json:"popularity"`
	URI        string          `json:"uri"`
}

// SpotifyArtist represents a Spotify artist.
type SpotifyArtist struct {
	ID     string   `json:"id"`
	Name   string   `json:"name"`
	Genres []string `json:"genres"`
	URI    string   `json:"uri"`
}

type Owner struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
}

type trackCount struct {
	Total int `json:"total"`
}

// SpotifyPlaylist represents a playlist object, full or simplified.
type SpotifyPlaylist struct {
	ID          string         `json:"id"`
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Owner       Owner          `json:"owner"`
	Public      bool           `json:"public"`
	Tracks      trackCount     `json:"tracks"`
	Images      []SpotifyImage `json:"images"`
	URI         string         `json:"uri"`
	Href        string         `json:"href"`
	SnapshotID  string         `json:"snapshot_id"`
}

// SpotifyPlaylistTrack is an item of the saved-tracks or playlist-tracks collections.
//
// Track is null for tracks that are no longer available.
type SpotifyPlaylistTrack struct {
	AddedAt string        `json:"added_at"`
	Track   *SpotifyTrack `json:"track"`
}

// SpotifyService reads and writes the user's catalogue through a [Requester].
type SpotifyService struct {
	api         Requester
	pageSize    int
	concurrency int
	logger      *log.Logger
}

// Option configures a [SpotifyService].
type Option func(*SpotifyService)

// WithPageSize sets the page size used for paginated reads (capped at [MaxPageSize]).
func WithPageSize(n int) Option { return func(s *SpotifyService) { s.pageSize = n } }

// WithConcurrency caps the number of pages fetched at once.
func WithConcurrency(n int) Option { return func(s *SpotifyService) { s.concurrency = n } }

func WithLogger(l *log.Logger) Option { return func(s *SpotifyService) { s.logger = l } }

// NewSpotifyService creates a Spotify client on top of api.
func NewSpotifyService(api Requester, opts ...Option) *SpotifyService {
	s := &SpotifyService{api: api, pageSize: MaxPageSize, logger: log.New(io.Discard)}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *SpotifyService) Name() string {
	return "Spotify"
}

func (s *SpotifyService) fetchOptions(onPage func(done, total int)) FetchOptions {
	return FetchOptions{PageSize: s.pageSize, Concurrency: s.concurrency, OnPage: onPage, Logger: s.logger}
}

// CurrentUser retrieves the authenticated user's profile.
func (s *SpotifyService) CurrentUser(ctx context.Context) (*SpotifyUser, error) {
	var user SpotifyUser
	if err := s.api.Get(ctx, "/me", &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// Tracks reads every track of the saved-track library (empty or "0" playlistID) or of a playlist.
//
// Tracks rejected by keep are dropped while pages are mapped; a nil keep keeps everything.
func (s *SpotifyService) Tracks(ctx context.Context, playlistID string, keep func(models.Track) bool, onPage func(done, total int)) ([]models.Track, error) {
	path := "/me/tracks?market=from_token"
	if playlistID != "" && playlistID != "0" {
		path = fmt.Sprintf("/playlists/%s/tracks?market=from_token", url.PathEscape(playlistID))
	}

	mapper := func(items []SpotifyPlaylistTrack) []models.Track {
		tracks := make([]models.Track, 0, len(items))
		for _, item := range items {
			if item.Track == nil || item.Track.ID == "" {
				continue
			}
			track := item.Track.toModel()
			if keep == nil || keep(track) {
				tracks = append(tracks, track)
			}
		}
		return tracks
	}

	return FetchAll(ctx, s.api, path, s.fetchOptions(onPage), mapper)
}

// Playlists lists the playlists the user owns or follows.
func (s *SpotifyService) Playlists(ctx context.Context) ([]models.Playlist, error) {
	mapper := func(items []SpotifyPlaylist) []models.Playlist {
		playlists := make([]models.Playlist, 0, len(items))
		for _, p := range items {
			playlists = append(playlists, p.toModel())
		}
		return playlists
	}
	return FetchAll(ctx, s.api, "/me/playlists", s.fetchOptions(nil), mapper)
}

// Playlist retrieves a playlist's metadata by ID.
func (s *SpotifyService) Playlist(ctx context.Context, playlistID string) (*SpotifyPlaylist, error) {
	var playlist SpotifyPlaylist
	path := fmt.Sprintf("/playlists/%s?fields=id,name,description,owner,public,tracks.total,images,uri,href,snapshot_id", url.PathEscape(playlistID))
	if err := s.api.Get(ctx, path, &playlist); err != nil {
		return nil, err
	}
	return &playlist, nil
}

// Confirm fetches what the user needs to open a playlist a run created.
func (s *SpotifyService) Confirm(ctx context.Context, playlistID string) (*models.CreatedPlaylist, error) {
	p, err := s.Playlist(ctx, playlistID)
	if err != nil {
		return nil, err
	}

	created := &models.CreatedPlaylist{ID: p.ID, Name: p.Name, URI: p.URI, Href: p.Href}
	if len(p.Images) > 0 {
		created.ImageURL = p.Images[0].URL
	}
	return created, nil
}

// ArtistTopTracks returns the artist's top tracks in the user's market.
func (s *SpotifyService) ArtistTopTracks(ctx context.Context, artistID string) ([]models.Track, error) {
	var response struct {
		Tracks []SpotifyTrack `json:"tracks"`
	}
	path := fmt.Sprintf("/artists/%s/top-tracks?market=from_token", url.PathEscape(artistID))
	if err := s.api.Get(ctx, path, &response); err != nil {
		return nil, err
	}

	tracks := make([]models.Track, 0, len(response.Tracks))
	for _, t := range response.Tracks {
		tracks = append(tracks, t.toModel())
	}
	return tracks, nil
}

// RelatedArtists returns the artists the service considers similar to artistID.
func (s *SpotifyService) RelatedArtists(ctx context.Context, artistID string) ([]models.ArtistRef, error) {
	var response struct {
		Artists []SpotifyArtist `json:"artists"`
	}
	path := fmt.Sprintf("/artists/%s/related-artists", url.PathEscape(artistID))
	if err := s.api.Get(ctx, path, &response); err != nil {
		return nil, err
	}

	artists := make([]models.ArtistRef, 0, len(response.Artists))
	for _, a := range response.Artists {
		artists = append(artists, models.ArtistRef{ID: a.ID, Name: a.Name})
	}
	return artists, nil
}

type createPlaylistRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Public      bool   `json:"public"`
}

// CreatePlaylist creates a private playlist owned by userID.
func (s *SpotifyService) CreatePlaylist(ctx context.Context, userID, name, description string) (*models.Playlist, error) {
	var created SpotifyPlaylist
	path := fmt.Sprintf("/users/%s/playlists", url.PathEscape(userID))
	body := createPlaylistRequest{Name: name, Description: description}
	if err := s.api.Post(ctx, path, body, &created); err != nil {
		return nil, err
	}

	playlist := created.toModel()
	return &playlist, nil
}

// AddTracks appends uris (at most 100) to a playlist.
func (s *SpotifyService) AddTracks(ctx context.Context, playlistID string, uris []string) error {
	path := fmt.Sprintf("/playlists/%s/tracks", url.PathEscape(playlistID))
	return s.api.Post(ctx, path, map[string][]string{"uris": uris}, nil)
}

func (t SpotifyTrack) toModel() models.Track {
	track := models.Track{ID: t.ID, Name: t.Name, URI: t.URI, Artists: make([]models.ArtistRef, 0, len(t.Artists))}
	if track.URI == "" {
		track.URI = "spotify:track:" + t.ID
	}
	for _, a := range t.Artists {
		if a.ID == "" {
			continue
		}
		track.Artists = append(track.Artists, models.ArtistRef{ID: a.ID, Name: a.Name})
	}
	return track
}

func (p SpotifyPlaylist) toModel() models.Playlist {
	return models.Playlist{
		ID:          p.ID,
		Name:        p.Name,
		Description: p.Description,
		Owner:       p.Owner.DisplayName,
		TrackCount:  p.Tracks.Total,
		Public:      p.Public,
	}
}
