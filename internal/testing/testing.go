// package testing contains shared testing utilities
package testing

import (
	"errors"
	"io"
	"os"
	"strconv"
	"testing"

	"github.com/desertthunder/dive/internal/models"
)

// Track builds a track whose URI is derived from its id. Artist names are "Artist <id>".
func Track(id, name string, artistIDs ...string) models.Track {
	t := models.Track{ID: id, Name: name, URI: "spotify:track:" + id}
	for _, a := range artistIDs {
		t.Artists = append(t.Artists, models.ArtistRef{ID: a, Name: "Artist " + a})
	}
	return t
}

// Tracks builds n tracks credited to artistID with ids prefix-0 .. prefix-(n-1).
func Tracks(prefix string, n int, artistIDs ...string) []models.Track {
	tracks := make([]models.Track, 0, n)
	for i := range n {
		id := prefix + "-" + strconv.Itoa(i)
		tracks = append(tracks, Track(id, "Song "+id, artistIDs...))
	}
	return tracks
}

// URIs builds n distinct track URIs.
func URIs(n int) []string {
	uris := make([]string, n)
	for i := range uris {
		uris[i] = "spotify:track:" + strconv.Itoa(i)
	}
	return uris
}

// FWriter always returns an error on Write
type FWriter struct{}

func (f *FWriter) Write(p []byte) (n int, err error) {
	return 0, errors.New("write failed")
}

// LimitedWriter fails after a certain number of writes
type LimitedWriter struct {
	maxWrites int
	written   int
	target    io.Writer
}

func (l *LimitedWriter) Write(p []byte) (n int, err error) {
	if l.written >= l.maxWrites {
		return 0, errors.New("write limit exceeded")
	}
	l.written++
	return l.target.Write(p)
}

func NewLimitedWriter(maxWrites int, target io.Writer) *LimitedWriter {
	return &LimitedWriter{maxWrites: maxWrites, target: target}
}

func MustReadFile(t *testing.T, path string) string {
	t.Helper()
	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read file %s: %v", path, err)
	}
	return string(content)
}
