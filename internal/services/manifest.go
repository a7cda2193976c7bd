package services

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
)

// ManifestStreamer streams [TrackMetadata] from a JSON array, either a file at Path or Reader.
type ManifestStreamer struct {
	Path   string
	Reader io.Reader
}

var _ TrackStreamer = (*ManifestStreamer)(nil)

// NewManifestStreamer streams the manifest at path.
func NewManifestStreamer(path string) *ManifestStreamer {
	return &ManifestStreamer{Path: path}
}

// StreamTracks decodes the manifest entry by entry. Entries without a source are skipped.
func (m *ManifestStreamer) StreamTracks(ctx context.Context) (<-chan TrackMetadata, <-chan error) {
	tracks := make(chan TrackMetadata)
	errs := make(chan error, 1)

	go func() {
		defer close(errs)
		defer close(tracks)

		if err := m.stream(ctx, tracks); err != nil {
			errs <- err
		}
	}()

	return tracks, errs
}

func (m *ManifestStreamer) stream(ctx context.Context, out chan<- TrackMetadata) error {
	r := m.Reader
	if r == nil {
		f, err := os.Open(m.Path)
		if err != nil {
			return fmt.Errorf("failed to open manifest: %w", err)
		}
		defer f.Close()
		r = f
	}

	dec := json.NewDecoder(r)
	tok, err := dec.Token()
	if err != nil {
		return fmt.Errorf("failed to read manifest: %w", err)
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '[' {
		return fmt.Errorf("manifest must be a JSON array")
	}

	for dec.More() {
		var meta TrackMetadata
		if err := dec.Decode(&meta); err != nil {
			return fmt.Errorf("failed to decode manifest entry: %w", err)
		}
		if meta.Src == "" {
			continue
		}
		select {
		case out <- meta:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	if _, err := dec.Token(); err != nil {
		return fmt.Errorf("failed to read manifest: %w", err)
	}
	return nil
}
