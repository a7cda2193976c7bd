package library

import (
	"context"
	"fmt"
	"strings"

	"github.com/desertthunder/spots/internal/models"
	"github.com/desertthunder/spots/internal/store"
)

// AddTrack adds a track and returns its id.
//
// Ids are "<title>-<n>" where n comes from a persisted counter, so ids are
// never reused even after tracks are removed. An empty source is
// [KindMissingSource]; an existing track with the same source and title is [KindAlreadyExists].
func (s *Service) AddTrack(ctx context.Context, spec TrackSpec) (string, error) {
	src := strings.TrimSpace(spec.Src)
	if src == "" {
		return "", newError(KindMissingSource, "track source is required")
	}

	var id string
	err := s.update(ctx, "add track", "track", []string{models.TracksTable}, func(tx *store.Tx) error {
		tracks := s.tracks.In(tx)

		existing, err := tracks.FindBy("idx_tracks_src", src)
		if err != nil {
			return err
		}
		for _, t := range existing {
			if t.Title == spec.Title {
				return newError(KindAlreadyExists, "track %q from %s already exists", spec.Title, src)
			}
		}

		n, err := tx.NextSequence(models.TracksTable)
		if err != nil {
			return err
		}
		id = fmt.Sprintf("%s-%d", trackIDBase(spec.Title), n)

		return tracks.Create(&models.Track{
			ID:          id,
			Src:         src,
			ImageSource: spec.ImageSource,
			Title:       spec.Title,
			Artist:      spec.Artist,
			Album:       spec.Album,
		})
	})
	if err != nil {
		return "", err
	}

	s.logger.Debug("track added", "id", id, "src", src)
	return id, nil
}

// GetTrack returns the track with id.
func (s *Service) GetTrack(ctx context.Context, id string) (*models.Track, error) {
	var out *models.Track
	err := s.view(ctx, "get track", "track", []string{models.TracksTable}, func(tx *store.Tx) error {
		t, err := s.readTrack(tx, id)
		out = t
		return err
	})
	return out, err
}

// GetAllTracks returns every track in store order.
func (s *Service) GetAllTracks(ctx context.Context) ([]*models.Track, error) {
	var out []*models.Track
	err := s.view(ctx, "get all tracks", "track", []string{models.TracksTable}, func(tx *store.Tx) error {
		all, err := s.tracks.In(tx).ReadAll()
		out = all
		return err
	})
	return out, err
}

// GetPlaylistTracks returns the tracks of a playlist in playlist order.
func (s *Service) GetPlaylistTracks(ctx context.Context, playlistID string) (*models.Playlist, []*models.Track, error) {
	var (
		playlist *models.Playlist
		tracks   []*models.Track
	)
	err := s.view(ctx, "get playlist tracks", "playlist", bothTables, func(tx *store.Tx) error {
		p, err := s.readPlaylist(tx, playlistID)
		if err != nil {
			return err
		}
		playlist = p
		tracks = make([]*models.Track, 0, len(p.TrackIDs))
		for _, id := range p.TrackIDs {
			t, err := s.readTrack(tx, id)
			if err != nil {
				return err
			}
			tracks = append(tracks, t)
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return playlist, tracks, nil
}

// UpdateTrack replaces a track. The source stays required and, like [Service.AddTrack],
// no two tracks may share a (src, title) pair. t itself is left untouched.
func (s *Service) UpdateTrack(ctx context.Context, t *models.Track) error {
	if t == nil || t.ID == "" {
		return newError(KindInvalidInput, "track id is required")
	}
	next := *t
	next.Src = strings.TrimSpace(next.Src)
	if next.Src == "" {
		return newError(KindMissingSource, "track source is required")
	}

	return s.update(ctx, "update track", "track", []string{models.TracksTable}, func(tx *store.Tx) error {
		tracks := s.tracks.In(tx)

		if _, err := s.readTrack(tx, next.ID); err != nil {
			return err
		}
		same, err := tracks.FindBy("idx_tracks_src", next.Src)
		if err != nil {
			return err
		}
		for _, other := range same {
			if other.ID != next.ID && other.Title == next.Title {
				return newError(KindAlreadyExists, "track %q from %s already exists", next.Title, next.Src)
			}
		}
		return tracks.Update(next.ID, &next)
	})
}

// RemoveTrack deletes a track and strips it from every playlist, atomically.
func (s *Service) RemoveTrack(ctx context.Context, id string) (*models.Track, error) {
	var removed *models.Track
	err := s.update(ctx, "remove track", "track", bothTables, func(tx *store.Tx) error {
		t, err := s.tracks.In(tx).Delete(id)
		if err != nil {
			if store.KindOf(err) == store.KindNotFound {
				return trackNotFound(id)
			}
			return err
		}
		removed = t

		playlists := s.playlists.In(tx)
		all, err := playlists.ReadAll()
		if err != nil {
			return err
		}
		for _, p := range all {
			var ok bool
			if p.TrackIDs, ok = models.Remove(p.TrackIDs, id); !ok {
				continue
			}
			if err := playlists.Update(p.ID, p); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("track removed", "id", id)
	return removed, nil
}
