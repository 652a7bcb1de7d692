package tasks

import (
	"context"
	"fmt"
	"sync"

	"github.com/desertthunder/dive/internal/models"
	"github.com/desertthunder/dive/internal/services"
)

type mockPlaylist struct {
	ID    string
	Name  string
	Owner string
	URIs  []string
	Adds  int
}

// mockCatalogue is an in-memory Catalogue with per-call failure injection.
type mockCatalogue struct {
	mu sync.Mutex

	userID  string
	library []models.Track
	sources map[string][]models.Track
	top     map[string][]models.Track
	related map[string][]models.ArtistRef

	libraryErr error
	topErr     map[string]error
	relatedErr map[string]error
	// createFailures fails that many CreatePlaylist calls before succeeding.
	createFailures int
	createErr      error
	// addErr fails every add request whose pack starts at one of these uris.
	addErr map[string]error
	// libraryGate blocks library loads until closed.
	libraryGate chan struct{}

	libraryCalls int
	userCalls    int
	topCalls     map[string]int
	createCalls  int
	playlists    []*mockPlaylist
}

func newMockCatalogue() *mockCatalogue {
	return &mockCatalogue{
		userID:     "listener",
		sources:    map[string][]models.Track{},
		top:        map[string][]models.Track{},
		related:    map[string][]models.ArtistRef{},
		topErr:     map[string]error{},
		relatedErr: map[string]error{},
		addErr:     map[string]error{},
		topCalls:   map[string]int{},
	}
}

func (m *mockCatalogue) CurrentUser(_ context.Context) (*services.SpotifyUser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.userCalls++
	return &services.SpotifyUser{ID: m.userID}, nil
}

func (m *mockCatalogue) Tracks(ctx context.Context, playlistID string, keep func(models.Track) bool, onPage func(done, total int)) ([]models.Track, error) {
	var tracks []models.Track
	if playlistID == "" || playlistID == "0" {
		m.mu.Lock()
		m.libraryCalls++
		gate, err := m.libraryGate, m.libraryErr
		tracks = m.library
		m.mu.Unlock()

		if gate != nil {
			select {
			case <-gate:
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
		if err != nil {
			return nil, err
		}
	} else {
		m.mu.Lock()
		src, ok := m.sources[playlistID]
		m.mu.Unlock()
		if !ok {
			return nil, fmt.Errorf("playlist %s: not found", playlistID)
		}
		tracks = src
	}

	pages := (len(tracks) + 49) / 50
	for i := range pages {
		if onPage != nil {
			onPage(i+1, pages)
		}
	}

	if keep == nil {
		return append([]models.Track(nil), tracks...), nil
	}
	var kept []models.Track
	for _, t := range tracks {
		if keep(t) {
			kept = append(kept, t)
		}
	}
	return kept, nil
}

func (m *mockCatalogue) RelatedArtists(_ context.Context, artistID string) ([]models.ArtistRef, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.relatedErr[artistID]; err != nil {
		return nil, err
	}
	return m.related[artistID], nil
}

func (m *mockCatalogue) ArtistTopTracks(_ context.Context, artistID string) ([]models.Track, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.topCalls[artistID]++
	if err := m.topErr[artistID]; err != nil {
		return nil, err
	}
	return m.top[artistID], nil
}

func (m *mockCatalogue) CreatePlaylist(_ context.Context, userID, name, _ string) (*models.Playlist, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.createCalls++
	if m.createFailures > 0 {
		m.createFailures--
		return nil, m.createErr
	}
	p := &mockPlaylist{ID: fmt.Sprintf("pl%d", len(m.playlists)+1), Name: name, Owner: userID}
	m.playlists = append(m.playlists, p)
	return &models.Playlist{ID: p.ID, Name: name, Owner: userID}, nil
}

func (m *mockCatalogue) AddTracks(_ context.Context, playlistID string, uris []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(uris) > 0 {
		if err := m.addErr[uris[0]]; err != nil {
			return err
		}
	}
	for _, p := range m.playlists {
		if p.ID == playlistID {
			p.URIs = append(p.URIs, uris...)
			p.Adds++
			return nil
		}
	}
	return fmt.Errorf("playlist %s: not found", playlistID)
}

func (m *mockCatalogue) Confirm(_ context.Context, playlistID string) (*models.CreatedPlaylist, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.playlists {
		if p.ID == playlistID {
			return &models.CreatedPlaylist{ID: p.ID, Name: p.Name, URI: "spotify:playlist:" + p.ID}, nil
		}
	}
	return nil, fmt.Errorf("playlist %s: not found", playlistID)
}

// written returns every uri added across playlists, in playlist order.
func (m *mockCatalogue) written() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	var uris []string
	for _, p := range m.playlists {
		uris = append(uris, p.URIs...)
	}
	return uris
}
