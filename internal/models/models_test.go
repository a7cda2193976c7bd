package models

import (
	"errors"
	"slices"
	"testing"
	"time"
)

func TestAddUnique(t *testing.T) {
	list, added := AddUnique([]string{"a"}, "b")
	if !added || !slices.Equal(list, []string{"a", "b"}) {
		t.Errorf("expected [a b] added, got %v (added=%v)", list, added)
	}

	list, added = AddUnique(list, "a")
	if added || len(list) != 2 {
		t.Errorf("expected duplicate to be ignored, got %v (added=%v)", list, added)
	}
}

func TestRemove(t *testing.T) {
	original := []string{"a", "b", "a"}
	list, removed := Remove(original, "a")
	if !removed || !slices.Equal(list, []string{"b"}) {
		t.Errorf("expected [b] removed, got %v (removed=%v)", list, removed)
	}
	if len(original) != 3 {
		t.Error("Remove should not modify its input")
	}

	if _, removed := Remove(list, "z"); removed {
		t.Error("expected nothing removed for a missing value")
	}
}

func TestPlaylist(t *testing.T) {
	t.Run("NewPlaylist", func(t *testing.T) {
		p := NewPlaylist("Mix-alice", "Mix", "alice")
		if p.TrackIDs == nil || p.FollowerUserIDs == nil || p.PinnedByUserIDs == nil {
			t.Error("sets should be non-nil")
		}
		if p.IsAllTracks() {
			t.Error("only id 0 is the All Tracks playlist")
		}
		if _, ok := p.LastPlayedAt(); ok {
			t.Error("new playlist should never have been played")
		}
	})

	t.Run("LastPlayed", func(t *testing.T) {
		p := NewPlaylist("0", AllTracksPlaylistName, SystemUserID)
		at := time.UnixMilli(1700000000000)
		p.SetLastPlayed(at)

		got, ok := p.LastPlayedAt()
		if !ok || !got.Equal(at) {
			t.Errorf("expected %v, got %v (ok=%v)", at, got, ok)
		}
	})

	t.Run("Validate", func(t *testing.T) {
		p := &Playlist{ID: "x", Name: "x"}
		var verr *ValidationError
		if err := p.Validate(); !errors.As(err, &verr) || verr.Field != "createdBy" {
			t.Errorf("expected createdBy validation error, got %v", err)
		}
	})

	t.Run("Membership", func(t *testing.T) {
		p := NewPlaylist("x", "x", "alice")
		p.TrackIDs = []string{"A-0"}
		p.FollowerUserIDs = []string{"u1"}
		p.PinnedByUserIDs = []string{"u2"}

		if !p.HasTrack("A-0") || p.HasTrack("B-1") {
			t.Error("HasTrack mismatch")
		}
		if !p.FollowedBy("u1") || p.FollowedBy("u2") {
			t.Error("FollowedBy mismatch")
		}
		if !p.PinnedBy("u2") || p.PinnedBy("u1") {
			t.Error("PinnedBy mismatch")
		}
	})
}

func TestTrackValidate(t *testing.T) {
	tc := []struct {
		name  string
		track Track
		field string
	}{
		{name: "missing id", track: Track{Src: "file.mp3"}, field: "id"},
		{name: "missing src", track: Track{ID: "A-0"}, field: "src"},
	}

	for _, tt := range tc {
		t.Run(tt.name, func(t *testing.T) {
			var verr *ValidationError
			if err := tt.track.Validate(); !errors.As(err, &verr) || verr.Field != tt.field {
				t.Errorf("expected %s validation error, got %v", tt.field, err)
			}
		})
	}

	valid := Track{ID: "A-0", Src: "file.mp3"}
	if err := valid.Validate(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestUserClone(t *testing.T) {
	u := &User{ID: "1", Username: "alice", PasswordHash: "h", IsAuthenticated: true}
	c := u.Clone()
	c.IsAuthenticated = false
	if !u.IsAuthenticated {
		t.Error("Clone should not share state")
	}

	var nilUser *User
	if nilUser.Clone() != nil {
		t.Error("Clone of nil should be nil")
	}
}
