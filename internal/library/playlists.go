package library

import (
	"context"
	"slices"
	"strings"
	"time"

	"github.com/desertthunder/spots/internal/models"
	"github.com/desertthunder/spots/internal/store"
)

// CreatePlaylist creates a playlist and returns its id.
//
// A playlist with the same name and creator, or one whose derived id is taken, is [KindAlreadyExists].
func (s *Service) CreatePlaylist(ctx context.Context, spec PlaylistSpec) (string, error) {
	if strings.TrimSpace(spec.Name) == "" {
		return "", newError(KindInvalidInput, "playlist name is required")
	}
	if strings.TrimSpace(spec.CreatedBy) == "" {
		return "", newError(KindInvalidInput, "playlist creator is required")
	}

	id := PlaylistID(spec.Name, spec.CreatedBy)
	err := s.update(ctx, "create playlist", "playlist", bothTables, func(tx *store.Tx) error {
		playlists := s.playlists.In(tx)

		existing, err := playlists.FindBy("idx_playlists_createdBy", spec.CreatedBy)
		if err != nil {
			return err
		}
		for _, p := range existing {
			if p.Name == spec.Name {
				return newError(KindAlreadyExists, "playlist %q by %s already exists", spec.Name, spec.CreatedBy)
			}
		}

		trackIDs, err := s.checkTracks(tx, nil, spec.TrackIDs)
		if err != nil {
			return err
		}

		p := models.NewPlaylist(id, spec.Name, spec.CreatedBy)
		p.ImageSource = spec.ImageSource
		p.TrackIDs = trackIDs

		if err := playlists.Create(p); err != nil {
			if store.KindOf(err) == store.KindDuplicateKey {
				return newError(KindAlreadyExists, "playlist id %q is already taken", id)
			}
			return err
		}
		return nil
	})
	if err != nil {
		return "", err
	}

	s.logger.Info("playlist created", "id", id, "name", spec.Name, "createdBy", spec.CreatedBy)
	return id, nil
}

// EnsureAllTracks creates the "All Tracks" playlist when it is missing and reports whether it did.
func (s *Service) EnsureAllTracks(ctx context.Context) (bool, error) {
	created := false
	err := s.update(ctx, "ensure all tracks", "playlist", []string{models.PlaylistsTable}, func(tx *store.Tx) error {
		playlists := s.playlists.In(tx)

		_, err := playlists.Read(models.AllTracksPlaylistID)
		if err == nil {
			return nil
		}
		if store.KindOf(err) != store.KindNotFound {
			return err
		}

		created = true
		return playlists.Create(models.NewPlaylist(models.AllTracksPlaylistID, models.AllTracksPlaylistName, models.SystemUserID))
	})
	if err != nil {
		return false, err
	}
	if created {
		s.logger.Info("created all tracks playlist")
	}
	return created, nil
}

// GetPlaylist returns the playlist with id.
func (s *Service) GetPlaylist(ctx context.Context, id string) (*models.Playlist, error) {
	var out *models.Playlist
	err := s.view(ctx, "get playlist", "playlist", []string{models.PlaylistsTable}, func(tx *store.Tx) error {
		p, err := s.readPlaylist(tx, id)
		out = p
		return err
	})
	return out, err
}

// GetAllPlaylists returns the playlists visible to userID: its own, the ones it
// follows and the system playlists. An empty userID returns every playlist.
func (s *Service) GetAllPlaylists(ctx context.Context, userID string) ([]*models.Playlist, error) {
	all, err := s.allPlaylists(ctx, "get all playlists")
	if err != nil {
		return nil, err
	}
	if userID == "" {
		return all, nil
	}
	return slices.DeleteFunc(all, func(p *models.Playlist) bool {
		return p.CreatedBy != userID && p.CreatedBy != models.SystemUserID && !p.FollowedBy(userID)
	}), nil
}

// GetRecentPlaylists returns up to [RecentPlaylistsLimit] playlists created or followed by userID,
// most recently played first. Playlists never played come last, in store order.
func (s *Service) GetRecentPlaylists(ctx context.Context, userID string) ([]*models.Playlist, error) {
	all, err := s.allPlaylists(ctx, "get recent playlists")
	if err != nil {
		return nil, err
	}

	mine := slices.DeleteFunc(all, func(p *models.Playlist) bool {
		return p.CreatedBy != userID && !p.FollowedBy(userID)
	})
	slices.SortStableFunc(mine, func(a, b *models.Playlist) int {
		switch {
		case a.LastPlayed == nil && b.LastPlayed == nil:
			return 0
		case a.LastPlayed == nil:
			return 1
		case b.LastPlayed == nil:
			return -1
		case *a.LastPlayed > *b.LastPlayed:
			return -1
		case *a.LastPlayed < *b.LastPlayed:
			return 1
		default:
			return 0
		}
	})

	if len(mine) > RecentPlaylistsLimit {
		mine = mine[:RecentPlaylistsLimit]
	}
	return mine, nil
}

// GetPinnedPlaylists returns up to [PinnedPlaylistsLimit] playlists pinned by userID, in store order.
func (s *Service) GetPinnedPlaylists(ctx context.Context, userID string) ([]*models.Playlist, error) {
	all, err := s.allPlaylists(ctx, "get pinned playlists")
	if err != nil {
		return nil, err
	}

	pinned := slices.DeleteFunc(all, func(p *models.Playlist) bool { return !p.PinnedBy(userID) })
	if len(pinned) > PinnedPlaylistsLimit {
		pinned = pinned[:PinnedPlaylistsLimit]
	}
	return pinned, nil
}

func (s *Service) allPlaylists(ctx context.Context, op string) ([]*models.Playlist, error) {
	var out []*models.Playlist
	err := s.view(ctx, op, "playlist", []string{models.PlaylistsTable}, func(tx *store.Tx) error {
		all, err := s.playlists.In(tx).ReadAll()
		out = all
		return err
	})
	for _, p := range out {
		p.Normalize()
	}
	return out, err
}

// UpdatePlaylist replaces a playlist. Its tracks must exist and appear once,
// and its (name, createdBy) pair stays unique. The "All Tracks" playlist keeps
// its name and creator, and no other playlist may be owned by the system user.
// p itself is left untouched.
func (s *Service) UpdatePlaylist(ctx context.Context, p *models.Playlist) error {
	if p == nil || p.ID == "" {
		return newError(KindInvalidInput, "playlist id is required")
	}
	next := *p
	next.Normalize()

	return s.update(ctx, "update playlist", "playlist", bothTables, func(tx *store.Tx) error {
		playlists := s.playlists.In(tx)

		existing, err := s.readPlaylist(tx, next.ID)
		if err != nil {
			return err
		}
		if existing.IsAllTracks() && (next.Name != existing.Name || next.CreatedBy != existing.CreatedBy) {
			return newError(KindProtected, "the %s playlist cannot be renamed", models.AllTracksPlaylistName)
		}
		if !existing.IsAllTracks() && next.CreatedBy == models.SystemUserID {
			return newError(KindProtected, "only the %s playlist belongs to %s", models.AllTracksPlaylistName, models.SystemUserID)
		}

		owned, err := playlists.FindBy("idx_playlists_createdBy", next.CreatedBy)
		if err != nil {
			return err
		}
		for _, other := range owned {
			if other.ID != next.ID && other.Name == next.Name {
				return newError(KindAlreadyExists, "playlist %q by %s already exists", next.Name, next.CreatedBy)
			}
		}

		if _, err := s.checkTracks(tx, nil, next.TrackIDs); err != nil {
			return err
		}
		if err := next.Validate(); err != nil {
			return newError(KindInvalidInput, "%v", err)
		}
		return playlists.Update(next.ID, &next)
	})
}

// RemovePlaylist deletes a playlist and returns it. The "All Tracks" playlist is [KindProtected].
func (s *Service) RemovePlaylist(ctx context.Context, id string) (*models.Playlist, error) {
	if id == models.AllTracksPlaylistID {
		return nil, newError(KindProtected, "the %s playlist cannot be removed", models.AllTracksPlaylistName)
	}

	var removed *models.Playlist
	err := s.update(ctx, "remove playlist", "playlist", []string{models.PlaylistsTable}, func(tx *store.Tx) error {
		p, err := s.playlists.In(tx).Delete(id)
		if store.KindOf(err) == store.KindNotFound {
			return playlistNotFound(id)
		}
		removed = p
		return err
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("playlist removed", "id", id)
	return removed, nil
}

// AddTrackToPlaylist appends trackID to the playlist.
//
// A missing playlist or track is [KindNotFound]; a track already present is
// [KindAlreadyInPlaylist] and leaves the playlist unchanged.
func (s *Service) AddTrackToPlaylist(ctx context.Context, trackID, playlistID string) error {
	return s.AddTracksToPlaylist(ctx, playlistID, []string{trackID})
}

// AddTracksToPlaylist appends every id in trackIDs, or none of them.
func (s *Service) AddTracksToPlaylist(ctx context.Context, playlistID string, trackIDs []string) error {
	if len(trackIDs) == 0 {
		return newError(KindInvalidInput, "at least one track id is required")
	}

	return s.update(ctx, "add tracks to playlist", "playlist", bothTables, func(tx *store.Tx) error {
		p, err := s.readPlaylist(tx, playlistID)
		if err != nil {
			return err
		}
		added, err := s.checkTracks(tx, p.TrackIDs, trackIDs)
		if err != nil {
			return err
		}
		p.TrackIDs = append(p.TrackIDs, added...)
		return s.playlists.In(tx).Update(p.ID, p)
	})
}

// RemoveTracksFromPlaylist drops trackIDs from the playlist and returns the tracks that were removed.
// Ids not in the playlist are ignored.
func (s *Service) RemoveTracksFromPlaylist(ctx context.Context, playlistID string, trackIDs []string) ([]*models.Track, error) {
	var removed []*models.Track
	err := s.update(ctx, "remove tracks from playlist", "playlist", bothTables, func(tx *store.Tx) error {
		p, err := s.readPlaylist(tx, playlistID)
		if err != nil {
			return err
		}

		removed = removed[:0]
		for _, id := range trackIDs {
			var ok bool
			if p.TrackIDs, ok = models.Remove(p.TrackIDs, id); !ok {
				continue
			}
			track, err := s.tracks.In(tx).Read(id)
			if err != nil {
				if store.KindOf(err) == store.KindNotFound {
					continue
				}
				return err
			}
			removed = append(removed, track)
		}
		return s.playlists.In(tx).Update(p.ID, p)
	})
	if err != nil {
		return nil, err
	}
	return removed, nil
}

// checkTracks validates ids for appending to current: each must exist, appear once
// and not already be in current. It returns the ids in order.
func (s *Service) checkTracks(tx *store.Tx, current, ids []string) ([]string, error) {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if slices.Contains(current, id) {
			return nil, newError(KindAlreadyInPlaylist, "track %q is already in the playlist", id)
		}
		var added bool
		if out, added = models.AddUnique(out, id); !added {
			return nil, newError(KindAlreadyInPlaylist, "track %q is listed more than once", id)
		}
		if _, err := s.readTrack(tx, id); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// ToggleFollowPlaylist follows or unfollows the playlist and reports whether userID now follows it.
func (s *Service) ToggleFollowPlaylist(ctx context.Context, userID, playlistID string) (bool, error) {
	return s.setMember(ctx, "toggle follow", userID, playlistID, followers, nil)
}

// FollowPlaylist makes userID follow the playlist.
func (s *Service) FollowPlaylist(ctx context.Context, userID, playlistID string) error {
	want := true
	_, err := s.setMember(ctx, "follow", userID, playlistID, followers, &want)
	return err
}

// UnfollowPlaylist makes userID stop following the playlist.
func (s *Service) UnfollowPlaylist(ctx context.Context, userID, playlistID string) error {
	want := false
	_, err := s.setMember(ctx, "unfollow", userID, playlistID, followers, &want)
	return err
}

// TogglePinPlaylist pins or unpins the playlist and reports whether userID now has it pinned.
func (s *Service) TogglePinPlaylist(ctx context.Context, userID, playlistID string) (bool, error) {
	return s.setMember(ctx, "toggle pin", userID, playlistID, pins, nil)
}

// PinPlaylist pins the playlist for userID.
func (s *Service) PinPlaylist(ctx context.Context, userID, playlistID string) error {
	want := true
	_, err := s.setMember(ctx, "pin", userID, playlistID, pins, &want)
	return err
}

// UnpinPlaylist unpins the playlist for userID.
func (s *Service) UnpinPlaylist(ctx context.Context, userID, playlistID string) error {
	want := false
	_, err := s.setMember(ctx, "unpin", userID, playlistID, pins, &want)
	return err
}

func followers(p *models.Playlist) *[]string { return &p.FollowerUserIDs }
func pins(p *models.Playlist) *[]string      { return &p.PinnedByUserIDs }

// setMember adds or removes userID from one of the playlist's user sets. A nil
// want flips the current membership. It returns the membership after the write.
func (s *Service) setMember(ctx context.Context, op, userID, playlistID string, set func(*models.Playlist) *[]string, want *bool) (bool, error) {
	if userID == "" {
		return false, newError(KindInvalidInput, "user id is required")
	}

	var member bool
	err := s.update(ctx, op, "playlist", []string{models.PlaylistsTable}, func(tx *store.Tx) error {
		p, err := s.readPlaylist(tx, playlistID)
		if err != nil {
			return err
		}

		ids := set(p)
		member = !slices.Contains(*ids, userID)
		if want != nil {
			member = *want
		}
		if member {
			*ids, _ = models.AddUnique(*ids, userID)
		} else {
			*ids, _ = models.Remove(*ids, userID)
		}
		return s.playlists.In(tx).Update(p.ID, p)
	})
	return member, err
}

// MarkPlayed records that the playlist was played at at.
func (s *Service) MarkPlayed(ctx context.Context, playlistID string, at time.Time) error {
	return s.update(ctx, "mark played", "playlist", []string{models.PlaylistsTable}, func(tx *store.Tx) error {
		p, err := s.readPlaylist(tx, playlistID)
		if err != nil {
			return err
		}
		p.SetLastPlayed(at)
		return s.playlists.In(tx).Update(p.ID, p)
	})
}
