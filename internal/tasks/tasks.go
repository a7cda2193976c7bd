package tasks

import (
	"context"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/spots/internal/library"
	"github.com/desertthunder/spots/internal/models"
	"github.com/desertthunder/spots/internal/shared"
)

// Library is the part of [library.Service] the tasks use.
type Library interface {
	AddTrack(ctx context.Context, spec library.TrackSpec) (string, error)
	AddTracksToPlaylist(ctx context.Context, playlistID string, trackIDs []string) error
	EnsureAllTracks(ctx context.Context) (bool, error)
	GetPlaylistTracks(ctx context.Context, playlistID string) (*models.Playlist, []*models.Track, error)
}

var _ Library = (*library.Service)(nil)

// LibraryEngine runs imports and exports against a [Library].
type LibraryEngine struct {
	lib    Library
	logger *log.Logger
}

// NewLibraryEngine creates a LibraryEngine.
func NewLibraryEngine(lib Library, logger *log.Logger) *LibraryEngine {
	if logger == nil {
		logger = shared.DiscardLogger()
	}
	return &LibraryEngine{lib: lib, logger: logger.With("component", "tasks")}
}

// sendProgress sends update without blocking; updates are dropped when nobody is listening.
func (e *LibraryEngine) sendProgress(progress chan<- ProgressUpdate, update ProgressUpdate) {
	if progress == nil {
		return
	}
	select {
	case progress <- update:
	default:
	}
}
