package tasks

import (
	"context"
	"fmt"

	"github.com/desertthunder/spots/internal/library"
	"github.com/desertthunder/spots/internal/models"
	"github.com/desertthunder/spots/internal/services"
	"golang.org/x/time/rate"
)

// ImportOpts configures [LibraryEngine.Import].
type ImportOpts struct {
	PlaylistID string  // Playlist receiving the new tracks (default: "0", All Tracks)
	RateLimit  float64 // Tracks per second (default: 50)
}

// ImportFailure is a track the library refused.
type ImportFailure struct {
	Src   string `json:"src"`
	Title string `json:"title,omitempty"`
	Error string `json:"error"`
}

// ImportResult summarizes an import.
type ImportResult struct {
	PlaylistID string          `json:"playlistId"`
	Added      []string        `json:"added"`
	Skipped    int             `json:"skipped"`
	Failed     []ImportFailure `json:"failed,omitempty"`
}

// Import adds every streamed track to the library and appends the new ones to a playlist.
//
// Tracks already in the library are skipped and tracks the library rejects are
// recorded as failures; store failures and stream errors stop the import. The
// tracks added before a stop stay in the library and are still appended to the playlist.
func (e *LibraryEngine) Import(
	ctx context.Context,
	prog chan<- ProgressUpdate,
	streamer services.TrackStreamer,
	opts ImportOpts,
) (*ImportResult, error) {
	if opts.PlaylistID == "" {
		opts.PlaylistID = models.AllTracksPlaylistID
	}
	if opts.RateLimit <= 0 {
		opts.RateLimit = 50.0
	}

	result := &ImportResult{PlaylistID: opts.PlaylistID, Added: []string{}}

	e.sendProgress(prog, prepareLibraryUpdate(opts.PlaylistID))
	if opts.PlaylistID == models.AllTracksPlaylistID {
		if _, err := e.lib.EnsureAllTracks(ctx); err != nil {
			return result, fmt.Errorf("failed to prepare playlist: %w", err)
		}
	}

	limiter := rate.NewLimiter(rate.Limit(opts.RateLimit), 1)
	streamCtx, stop := context.WithCancel(ctx)
	defer stop()
	tracks, errs := streamer.StreamTracks(streamCtx)

	streamErr := e.consume(ctx, prog, limiter, tracks, result)
	if streamErr == nil {
		if err, ok := <-errs; ok && err != nil {
			streamErr = fmt.Errorf("failed to read tracks: %w", err)
		}
	}

	if len(result.Added) > 0 {
		e.sendProgress(prog, addToPlaylistUpdate(len(result.Added), opts.PlaylistID))
		if err := e.lib.AddTracksToPlaylist(context.WithoutCancel(ctx), opts.PlaylistID, result.Added); err != nil {
			return result, fmt.Errorf("failed to add tracks to playlist: %w", err)
		}
	}

	e.logger.Info("import finished",
		"playlist", opts.PlaylistID,
		"added", len(result.Added),
		"skipped", result.Skipped,
		"failed", len(result.Failed),
	)
	return result, streamErr
}

func (e *LibraryEngine) consume(
	ctx context.Context,
	prog chan<- ProgressUpdate,
	limiter *rate.Limiter,
	tracks <-chan services.TrackMetadata,
	result *ImportResult,
) error {
	step := 0
	for {
		var (
			meta services.TrackMetadata
			ok   bool
		)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case meta, ok = <-tracks:
		}
		if !ok {
			return nil
		}
		step++

		if err := limiter.Wait(ctx); err != nil {
			return err
		}

		id, err := e.lib.AddTrack(ctx, library.TrackSpec{
			Src:         meta.Src,
			Title:       meta.Title,
			Artist:      meta.Artist,
			Album:       meta.Album,
			ImageSource: meta.ImageSource,
		})
		if err == nil {
			result.Added = append(result.Added, id)
			e.sendProgress(prog, importedTrackUpdate(step, id, meta))
			continue
		}

		switch library.KindOf(err) {
		case library.KindAlreadyExists:
			result.Skipped++
			e.sendProgress(prog, skippedTrackUpdate(step, meta))
		case library.KindMissingSource, library.KindInvalidInput, library.KindSchemaError:
			result.Failed = append(result.Failed, ImportFailure{Src: meta.Src, Title: meta.Title, Error: err.Error()})
			e.sendProgress(prog, failedTrackUpdate(step, meta, err))
		default:
			return fmt.Errorf("failed to add track %q: %w", meta.Src, err)
		}
	}
}
