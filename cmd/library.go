package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/desertthunder/spots/internal/library"
	"github.com/desertthunder/spots/internal/models"
	"github.com/desertthunder/spots/internal/shared"
	"github.com/dustin/go-humanize"
	"github.com/urfave/cli/v3"
)

// args returns the positional arguments, failing when fewer than n were given.
func args(cmd *cli.Command, n int, usage string) ([]string, error) {
	a := cmd.Args().Slice()
	if len(a) < n {
		return nil, fmt.Errorf("%w: usage: %s %s", shared.ErrMissingArgument, cmd.FullName(), usage)
	}
	return a, nil
}

// PlaylistCreate creates a playlist for the signed in user.
func (r *Runner) PlaylistCreate(ctx context.Context, cmd *cli.Command) error {
	a, err := args(cmd, 1, "<name> [track-id...]")
	if err != nil {
		return err
	}
	if err := r.open(ctx); err != nil {
		return err
	}
	defer r.Close()

	userID, err := r.userID("")
	if err != nil {
		return err
	}

	id, err := r.library.CreatePlaylist(ctx, library.PlaylistSpec{
		Name:        a[0],
		CreatedBy:   userID,
		ImageSource: cmd.String("image"),
		TrackIDs:    a[1:],
	})
	if err != nil {
		return err
	}
	return r.writeOK("Created playlist %s", id)
}

// PlaylistList lists the playlists a user created or follows, plus All Tracks.
func (r *Runner) PlaylistList(ctx context.Context, cmd *cli.Command) error {
	return r.listPlaylists(ctx, cmd, "Playlists", (*library.Service).GetAllPlaylists)
}

// PlaylistRecent lists the user's playlists by when they were last played.
func (r *Runner) PlaylistRecent(ctx context.Context, cmd *cli.Command) error {
	return r.listPlaylists(ctx, cmd, "Recently played", (*library.Service).GetRecentPlaylists)
}

// PlaylistPinned lists the playlists the user pinned.
func (r *Runner) PlaylistPinned(ctx context.Context, cmd *cli.Command) error {
	return r.listPlaylists(ctx, cmd, "Pinned", (*library.Service).GetPinnedPlaylists)
}

func (r *Runner) listPlaylists(
	ctx context.Context,
	cmd *cli.Command,
	title string,
	list func(*library.Service, context.Context, string) ([]*models.Playlist, error),
) error {
	if err := r.open(ctx); err != nil {
		return err
	}
	defer r.Close()

	userID, err := r.userID(cmd.String("user"))
	if err != nil {
		return err
	}

	playlists, err := list(r.library, ctx, userID)
	if err != nil {
		return err
	}
	if cmd.Bool("json") {
		return r.writeJSON(playlists, true)
	}

	r.writePlainHeader(fmt.Sprintf("%s (%d)", title, len(playlists)))
	for _, p := range playlists {
		marks := ""
		if p.PinnedBy(userID) {
			marks += " 📌"
		}
		played := "never played"
		if at, ok := p.LastPlayedAt(); ok {
			played = "played " + humanize.Time(at)
		}
		r.writePlain("  %-28s %-20s %3d tracks  %s%s\n", p.ID, p.Name, len(p.TrackIDs), r.styles.Help(played), marks)
	}
	return nil
}

// PlaylistShow prints a playlist followed by its tracks.
func (r *Runner) PlaylistShow(ctx context.Context, cmd *cli.Command) error {
	a, err := args(cmd, 1, "<playlist-id>")
	if err != nil {
		return err
	}
	if err := r.open(ctx); err != nil {
		return err
	}
	defer r.Close()

	playlist, tracks, err := r.library.GetPlaylistTracks(ctx, a[0])
	if err != nil {
		return err
	}
	if cmd.Bool("json") {
		return r.writeJSON(models.PlaylistExport{Playlist: playlist, Tracks: tracks}, true)
	}

	r.writePlainHeader(playlist.Name)
	r.writePlain("  id: %s  created by: %s  followers: %d\n\n", playlist.ID, playlist.CreatedBy, len(playlist.FollowerUserIDs))
	for i, t := range tracks {
		r.writePlain("  %3d. %-24s %s\n", i+1, t.ID, trackLine(t))
	}
	return nil
}

func trackLine(t *models.Track) string {
	parts := []string{}
	for _, s := range []string{t.Artist, t.Title, t.Album} {
		if s != "" {
			parts = append(parts, s)
		}
	}
	if len(parts) == 0 {
		return t.Src
	}
	return strings.Join(parts, " - ")
}

// PlaylistRename changes a playlist's name. The id stays the same.
func (r *Runner) PlaylistRename(ctx context.Context, cmd *cli.Command) error {
	a, err := args(cmd, 2, "<playlist-id> <name>")
	if err != nil {
		return err
	}
	if err := r.open(ctx); err != nil {
		return err
	}
	defer r.Close()

	playlist, err := r.library.GetPlaylist(ctx, a[0])
	if err != nil {
		return err
	}
	playlist.Name = a[1]
	if err := r.library.UpdatePlaylist(ctx, playlist); err != nil {
		return err
	}
	return r.writeOK("Renamed %s to %s", a[0], a[1])
}

// PlaylistRemove deletes a playlist. All Tracks cannot be removed.
func (r *Runner) PlaylistRemove(ctx context.Context, cmd *cli.Command) error {
	a, err := args(cmd, 1, "<playlist-id>")
	if err != nil {
		return err
	}
	if err := r.open(ctx); err != nil {
		return err
	}
	defer r.Close()

	removed, err := r.library.RemovePlaylist(ctx, a[0])
	if err != nil {
		return err
	}
	return r.writeOK("Removed playlist %s", removed.Name)
}

// PlaylistAdd appends tracks to a playlist.
func (r *Runner) PlaylistAdd(ctx context.Context, cmd *cli.Command) error {
	a, err := args(cmd, 2, "<playlist-id> <track-id...>")
	if err != nil {
		return err
	}
	if err := r.open(ctx); err != nil {
		return err
	}
	defer r.Close()

	if err := r.library.AddTracksToPlaylist(ctx, a[0], a[1:]); err != nil {
		return err
	}
	return r.writeOK("Added %d track(s) to %s", len(a)-1, a[0])
}

// PlaylistDrop removes tracks from a playlist.
func (r *Runner) PlaylistDrop(ctx context.Context, cmd *cli.Command) error {
	a, err := args(cmd, 2, "<playlist-id> <track-id...>")
	if err != nil {
		return err
	}
	if err := r.open(ctx); err != nil {
		return err
	}
	defer r.Close()

	removed, err := r.library.RemoveTracksFromPlaylist(ctx, a[0], a[1:])
	if err != nil {
		return err
	}
	return r.writeOK("Removed %d track(s) from %s", len(removed), a[0])
}

// PlaylistFollow toggles whether the user follows a playlist.
func (r *Runner) PlaylistFollow(ctx context.Context, cmd *cli.Command) error {
	return r.toggle(ctx, cmd, "following", "not following", func(ctx context.Context, userID, id string) (bool, error) {
		return r.library.ToggleFollowPlaylist(ctx, userID, id)
	})
}

// PlaylistPin toggles whether the user pinned a playlist.
func (r *Runner) PlaylistPin(ctx context.Context, cmd *cli.Command) error {
	return r.toggle(ctx, cmd, "pinned", "unpinned", func(ctx context.Context, userID, id string) (bool, error) {
		return r.library.TogglePinPlaylist(ctx, userID, id)
	})
}

func (r *Runner) toggle(
	ctx context.Context,
	cmd *cli.Command,
	on, off string,
	fn func(ctx context.Context, userID, playlistID string) (bool, error),
) error {
	a, err := args(cmd, 1, "<playlist-id>")
	if err != nil {
		return err
	}
	if err := r.open(ctx); err != nil {
		return err
	}
	defer r.Close()

	userID, err := r.userID(cmd.String("user"))
	if err != nil {
		return err
	}
	set, err := fn(ctx, userID, a[0])
	if err != nil {
		return err
	}
	if set {
		return r.writeOK("%s: %s", a[0], on)
	}
	return r.writeOK("%s: %s", a[0], off)
}

// PlaylistPlay stamps a playlist as played now.
func (r *Runner) PlaylistPlay(ctx context.Context, cmd *cli.Command) error {
	a, err := args(cmd, 1, "<playlist-id>")
	if err != nil {
		return err
	}
	if err := r.open(ctx); err != nil {
		return err
	}
	defer r.Close()

	if err := r.library.MarkPlayed(ctx, a[0], time.Now()); err != nil {
		return err
	}
	return r.writeOK("Marked %s as played", a[0])
}

// TrackAdd adds a track to the library and to All Tracks.
func (r *Runner) TrackAdd(ctx context.Context, cmd *cli.Command) error {
	if err := r.open(ctx); err != nil {
		return err
	}
	defer r.Close()

	id, err := r.library.AddTrack(ctx, library.TrackSpec{
		Src:         cmd.String("src"),
		Title:       cmd.String("title"),
		Artist:      cmd.String("artist"),
		Album:       cmd.String("album"),
		ImageSource: cmd.String("image"),
	})
	if err != nil {
		return err
	}
	if _, err := r.library.EnsureAllTracks(ctx); err != nil {
		return err
	}
	if err := r.library.AddTrackToPlaylist(ctx, id, models.AllTracksPlaylistID); err != nil {
		return err
	}
	return r.writeOK("Added track %s", id)
}

// TrackList lists every track in the library.
func (r *Runner) TrackList(ctx context.Context, cmd *cli.Command) error {
	if err := r.open(ctx); err != nil {
		return err
	}
	defer r.Close()

	tracks, err := r.library.GetAllTracks(ctx)
	if err != nil {
		return err
	}
	if cmd.Bool("json") {
		return r.writeJSON(tracks, true)
	}

	r.writePlainHeader(fmt.Sprintf("Tracks (%d)", len(tracks)))
	for _, t := range tracks {
		r.writePlain("  %-24s %s\n", t.ID, trackLine(t))
	}
	return nil
}

// TrackShow prints one track as JSON.
func (r *Runner) TrackShow(ctx context.Context, cmd *cli.Command) error {
	a, err := args(cmd, 1, "<track-id>")
	if err != nil {
		return err
	}
	if err := r.open(ctx); err != nil {
		return err
	}
	defer r.Close()

	track, err := r.library.GetTrack(ctx, a[0])
	if err != nil {
		return err
	}
	return r.writeJSON(track, true)
}

// TrackEdit overwrites the fields given as flags and keeps the rest.
func (r *Runner) TrackEdit(ctx context.Context, cmd *cli.Command) error {
	a, err := args(cmd, 1, "<track-id>")
	if err != nil {
		return err
	}
	if err := r.open(ctx); err != nil {
		return err
	}
	defer r.Close()

	track, err := r.library.GetTrack(ctx, a[0])
	if err != nil {
		return err
	}
	for flag, field := range map[string]*string{
		"src":    &track.Src,
		"title":  &track.Title,
		"artist": &track.Artist,
		"album":  &track.Album,
		"image":  &track.ImageSource,
	} {
		if cmd.IsSet(flag) {
			*field = cmd.String(flag)
		}
	}
	if err := r.library.UpdateTrack(ctx, track); err != nil {
		return err
	}
	return r.writeOK("Updated track %s", track.ID)
}

// TrackRemove deletes a track and drops it from every playlist.
func (r *Runner) TrackRemove(ctx context.Context, cmd *cli.Command) error {
	a, err := args(cmd, 1, "<track-id>")
	if err != nil {
		return err
	}
	if err := r.open(ctx); err != nil {
		return err
	}
	defer r.Close()

	removed, err := r.library.RemoveTrack(ctx, a[0])
	if err != nil {
		return err
	}
	return r.writeOK("Removed track %s", removed.ID)
}
