package models

import (
	"slices"
	"time"
)

// Playlist is an ordered collection of track ids with follow and pin sets.
type Playlist struct {
	ID              string   `json:"id"`
	Name            string   `json:"name"`
	ImageSource     string   `json:"imageSource,omitempty"`
	CreatedBy       string   `json:"createdBy"`
	TrackIDs        []string `json:"trackIds"`
	FollowerUserIDs []string `json:"followerUserIds"`
	PinnedByUserIDs []string `json:"pinnedByUserIds"`
	LastPlayed      *int64   `json:"lastPlayedTimestamp,omitempty"` // unix milliseconds
}

// NewPlaylist creates an empty playlist with non-nil sets.
func NewPlaylist(id, name, createdBy string) *Playlist {
	return &Playlist{
		ID:              id,
		Name:            name,
		CreatedBy:       createdBy,
		TrackIDs:        []string{},
		FollowerUserIDs: []string{},
		PinnedByUserIDs: []string{},
	}
}

// Key returns the playlist id.
func (p *Playlist) Key() string { return p.ID }

// Validate checks the fields every stored playlist must carry.
func (p *Playlist) Validate() error {
	switch {
	case p.ID == "":
		return &ValidationError{Table: PlaylistsTable, Field: "id"}
	case p.Name == "":
		return &ValidationError{Table: PlaylistsTable, Field: "name"}
	case p.CreatedBy == "":
		return &ValidationError{Table: PlaylistsTable, Field: "createdBy"}
	}
	return nil
}

// IsAllTracks reports whether p is the distinguished "All Tracks" playlist.
func (p *Playlist) IsAllTracks() bool {
	return p.ID == AllTracksPlaylistID
}

// HasTrack reports whether trackID is already in the playlist.
func (p *Playlist) HasTrack(trackID string) bool {
	return slices.Contains(p.TrackIDs, trackID)
}

// FollowedBy reports whether userID follows the playlist.
func (p *Playlist) FollowedBy(userID string) bool {
	return slices.Contains(p.FollowerUserIDs, userID)
}

// PinnedBy reports whether userID pinned the playlist.
func (p *Playlist) PinnedBy(userID string) bool {
	return slices.Contains(p.PinnedByUserIDs, userID)
}

// SetLastPlayed records when the playlist was last played.
func (p *Playlist) SetLastPlayed(at time.Time) {
	ms := at.UnixMilli()
	p.LastPlayed = &ms
}

// LastPlayedAt returns the last played time and whether it was ever set.
func (p *Playlist) LastPlayedAt() (time.Time, bool) {
	if p.LastPlayed == nil {
		return time.Time{}, false
	}
	return time.UnixMilli(*p.LastPlayed), true
}

// Normalize replaces nil sets with empty ones so encoded records are uniform.
func (p *Playlist) Normalize() {
	if p.TrackIDs == nil {
		p.TrackIDs = []string{}
	}
	if p.FollowerUserIDs == nil {
		p.FollowerUserIDs = []string{}
	}
	if p.PinnedByUserIDs == nil {
		p.PinnedByUserIDs = []string{}
	}
}

// PlaylistExport is a playlist together with its tracks in playlist order.
type PlaylistExport struct {
	Playlist *Playlist `json:"playlist"`
	Tracks   []*Track  `json:"tracks"`
}
