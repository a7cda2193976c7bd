package services

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func collect(t *testing.T, s TrackStreamer) ([]TrackMetadata, error) {
	t.Helper()

	tracks, errs := s.StreamTracks(context.Background())
	var got []TrackMetadata
	for meta := range tracks {
		got = append(got, meta)
	}
	return got, <-errs
}

func TestManifestStreamer(t *testing.T) {
	t.Run("File", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "manifest.json")
		manifest := `[
  {"src": "/music/a.mp3", "title": "A", "artist": "X"},
  {"title": "no source"},
  {"src": "/music/b.mp3", "title": "B", "album": "Y"}
]`
		if err := os.WriteFile(path, []byte(manifest), 0644); err != nil {
			t.Fatalf("failed to write manifest: %v", err)
		}

		got, err := collect(t, NewManifestStreamer(path))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(got) != 2 {
			t.Fatalf("expected 2 tracks, got %d", len(got))
		}
		if got[0].Title != "A" || got[1].Album != "Y" {
			t.Errorf("unexpected tracks: %+v", got)
		}
	})

	t.Run("Missing File", func(t *testing.T) {
		_, err := collect(t, NewManifestStreamer(filepath.Join(t.TempDir(), "nope.json")))
		if err == nil {
			t.Error("expected error for missing manifest")
		}
	})

	t.Run("Not An Array", func(t *testing.T) {
		_, err := collect(t, &ManifestStreamer{Reader: strings.NewReader(`{"src": "a"}`)})
		if err == nil {
			t.Error("expected error for object manifest")
		}
	})

	t.Run("Cancelled", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		s := &ManifestStreamer{Reader: strings.NewReader(`[{"src": "a"}, {"src": "b"}]`)}

		tracks, errs := s.StreamTracks(ctx)
		<-tracks
		cancel()
		for range tracks {
		}
		if err := <-errs; err != nil && err != context.Canceled {
			t.Errorf("expected nil or context.Canceled, got %v", err)
		}
	})
}
