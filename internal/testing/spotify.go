package testing

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/desertthunder/dive/internal/models"
)

// CreatedPlaylist is a playlist written to a [FakeSpotify].
type CreatedPlaylist struct {
	ID          string
	Owner       string
	Name        string
	Description string
	URIs        []string
	Adds        int
}

// FakeSpotify is an in-memory stand-in for the Spotify Web API endpoints dive uses.
//
// Fields may be set before the first request; afterwards use the accessors.
type FakeSpotify struct {
	UserID    string
	Library   []models.Track
	Sources   map[string][]models.Track
	TopTracks map[string][]models.Track
	Related   map[string][]models.ArtistRef
	// FailOffsets answers page requests at these offsets with the given status.
	FailOffsets map[int]int

	mu       sync.Mutex
	created  []*CreatedPlaylist
	requests []string
	server   *httptest.Server
}

// NewFakeSpotify starts the fake on an httptest server closed at test cleanup.
func NewFakeSpotify(t *testing.T) *FakeSpotify {
	t.Helper()
	f := &FakeSpotify{
		UserID:      "listener",
		Sources:     map[string][]models.Track{},
		TopTracks:   map[string][]models.Track{},
		Related:     map[string][]models.ArtistRef{},
		FailOffsets: map[int]int{},
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /me", f.me)
	mux.HandleFunc("GET /me/tracks", f.libraryTracks)
	mux.HandleFunc("GET /me/playlists", f.playlists)
	mux.HandleFunc("GET /playlists/{id}", f.playlist)
	mux.HandleFunc("GET /playlists/{id}/tracks", f.playlistTracks)
	mux.HandleFunc("POST /playlists/{id}/tracks", f.addTracks)
	mux.HandleFunc("POST /users/{user}/playlists", f.createPlaylist)
	mux.HandleFunc("GET /artists/{id}/top-tracks", f.topTracks)
	mux.HandleFunc("GET /artists/{id}/related-artists", f.relatedArtists)

	f.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		f.requests = append(f.requests, r.Method+" "+r.URL.RequestURI())
		f.mu.Unlock()
		mux.ServeHTTP(w, r)
	}))
	t.Cleanup(f.server.Close)
	return f
}

func (f *FakeSpotify) URL() string           { return f.server.URL }
func (f *FakeSpotify) Client() *http.Client { return f.server.Client() }

// Requests returns every request seen so far as "METHOD /path?query".
func (f *FakeSpotify) Requests() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.requests...)
}

// Count is the number of requests whose "METHOD /path" starts with prefix.
func (f *FakeSpotify) Count(prefix string) int {
	n := 0
	for _, r := range f.Requests() {
		if strings.HasPrefix(r, prefix) {
			n++
		}
	}
	return n
}

// Created returns copies of the playlists written so far, in creation order.
func (f *FakeSpotify) Created() []CreatedPlaylist {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]CreatedPlaylist, 0, len(f.created))
	for _, p := range f.created {
		c := *p
		c.URIs = append([]string(nil), p.URIs...)
		out = append(out, c)
	}
	return out
}

func (f *FakeSpotify) me(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"id": f.UserID, "display_name": "Test Listener"})
}

func (f *FakeSpotify) libraryTracks(w http.ResponseWriter, r *http.Request) {
	f.page(w, r, trackItems(f.Library))
}

func (f *FakeSpotify) playlistTracks(w http.ResponseWriter, r *http.Request) {
	tracks, ok := f.Sources[r.PathValue("id")]
	if !ok {
		writeJSON(w, http.StatusNotFound, errorBody(http.StatusNotFound, "Not found."))
		return
	}
	f.page(w, r, trackItems(tracks))
}

func (f *FakeSpotify) playlists(w http.ResponseWriter, r *http.Request) {
	items := make([]any, 0, len(f.Sources))
	for id, tracks := range f.Sources {
		items = append(items, map[string]any{
			"id":     id,
			"name":   "Playlist " + id,
			"owner":  map[string]any{"id": f.UserID, "display_name": "Test Listener"},
			"tracks": map[string]any{"total": len(tracks)},
		})
	}
	f.page(w, r, items)
}

func (f *FakeSpotify) playlist(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, p := range f.created {
		if p.ID == id {
			writeJSON(w, http.StatusOK, map[string]any{
				"id":     p.ID,
				"name":   p.Name,
				"uri":    "spotify:playlist:" + p.ID,
				"href":   f.server.URL + "/playlists/" + p.ID,
				"images": []map[string]any{{"url": "https://i.scdn.co/image/" + p.ID}},
				"tracks": map[string]any{"total": len(p.URIs)},
			})
			return
		}
	}
	writeJSON(w, http.StatusNotFound, errorBody(http.StatusNotFound, "Not found."))
}

func (f *FakeSpotify) createPlaylist(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Name        string `json:"name"`
		Description string `json:"description"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Name == "" {
		writeJSON(w, http.StatusBadRequest, errorBody(http.StatusBadRequest, "Missing name"))
		return
	}

	f.mu.Lock()
	p := &CreatedPlaylist{
		ID:          fmt.Sprintf("created%d", len(f.created)+1),
		Owner:       r.PathValue("user"),
		Name:        body.Name,
		Description: body.Description,
	}
	f.created = append(f.created, p)
	f.mu.Unlock()

	writeJSON(w, http.StatusCreated, map[string]any{"id": p.ID, "name": p.Name, "description": p.Description})
}

func (f *FakeSpotify) addTracks(w http.ResponseWriter, r *http.Request) {
	var body struct {
		URIs []string `json:"uris"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || len(body.URIs) == 0 || len(body.URIs) > 100 {
		writeJSON(w, http.StatusBadRequest, errorBody(http.StatusBadRequest, "Invalid uris"))
		return
	}

	id := r.PathValue("id")
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, p := range f.created {
		if p.ID == id {
			p.URIs = append(p.URIs, body.URIs...)
			p.Adds++
			writeJSON(w, http.StatusCreated, map[string]any{"snapshot_id": fmt.Sprintf("snap-%d", p.Adds)})
			return
		}
	}
	writeJSON(w, http.StatusNotFound, errorBody(http.StatusNotFound, "Not found."))
}

func (f *FakeSpotify) topTracks(w http.ResponseWriter, r *http.Request) {
	tracks := f.TopTracks[r.PathValue("id")]
	items := make([]any, 0, len(tracks))
	for _, t := range tracks {
		items = append(items, trackJSON(t))
	}
	writeJSON(w, http.StatusOK, map[string]any{"tracks": items})
}

func (f *FakeSpotify) relatedArtists(w http.ResponseWriter, r *http.Request) {
	related := f.Related[r.PathValue("id")]
	items := make([]any, 0, len(related))
	for _, a := range related {
		items = append(items, map[string]any{"id": a.ID, "name": a.Name})
	}
	writeJSON(w, http.StatusOK, map[string]any{"artists": items})
}

func (f *FakeSpotify) page(w http.ResponseWriter, r *http.Request, items []any) {
	q := r.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))
	offset, _ := strconv.Atoi(q.Get("offset"))
	if limit <= 0 {
		limit = 20
	}

	if status, ok := f.FailOffsets[offset]; ok {
		writeJSON(w, status, errorBody(status, "injected failure"))
		return
	}

	end := min(offset+limit, len(items))
	start := min(offset, end)

	var next *string
	if end < len(items) {
		n := fmt.Sprintf("%s%s?offset=%d&limit=%d", f.server.URL, r.URL.Path, end, limit)
		next = &n
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"items":  items[start:end],
		"total":  len(items),
		"limit":  limit,
		"offset": offset,
		"next":   next,
	})
}

func trackItems(tracks []models.Track) []any {
	items := make([]any, 0, len(tracks))
	for _, t := range tracks {
		items = append(items, map[string]any{"added_at": "2024-01-01T00:00:00Z", "track": trackJSON(t)})
	}
	return items
}

func trackJSON(t models.Track) map[string]any {
	artists := make([]map[string]any, 0, len(t.Artists))
	for _, a := range t.Artists {
		artists = append(artists, map[string]any{"id": a.ID, "name": a.Name})
	}
	return map[string]any{"id": t.ID, "name": t.Name, "uri": t.URI, "artists": artists}
}

func errorBody(status int, msg string) map[string]any {
	return map[string]any{"error": map[string]any{"status": status, "message": msg}}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
