package tasks

import (
	"fmt"

	"github.com/desertthunder/spots/internal/services"
)

// ProgressUpdate represents a progress event during a long-running operation.
//
// Used to send real-time updates to the CLI or invoke layer for display.
type ProgressUpdate struct {
	Phase   Phase  // Operation phase
	Step    int    // Current step number within phase
	Total   int    // Total steps in this phase, 0 when unknown
	Message string // Human-readable message for display
	Data    any    // Optional phase-specific data
}

// Operation phase enumeration
type Phase int

const (
	PrepareLibrary Phase = iota
	ImportTracks
	AddToPlaylist
	FetchPlaylist
	ExportPlaylist
)

func (p Phase) String() string {
	switch p {
	case PrepareLibrary:
		return "prepare_library"
	case ImportTracks:
		return "import_tracks"
	case AddToPlaylist:
		return "add_to_playlist"
	case FetchPlaylist:
		return "fetch_playlist"
	case ExportPlaylist:
		return "export_playlist"
	default:
		return ""
	}
}

func prepareLibraryUpdate(playlistID string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   PrepareLibrary,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Preparing playlist %s...", playlistID),
	}
}

func importedTrackUpdate(step int, id string, meta services.TrackMetadata) ProgressUpdate {
	return ProgressUpdate{
		Phase:   ImportTracks,
		Step:    step,
		Message: fmt.Sprintf("[%d] + %s", step, metadataLabel(meta)),
		Data:    id,
	}
}

func skippedTrackUpdate(step int, meta services.TrackMetadata) ProgressUpdate {
	return ProgressUpdate{
		Phase:   ImportTracks,
		Step:    step,
		Message: fmt.Sprintf("[%d] = %s (already in library)", step, metadataLabel(meta)),
	}
}

func failedTrackUpdate(step int, meta services.TrackMetadata, err error) ProgressUpdate {
	return ProgressUpdate{
		Phase:   ImportTracks,
		Step:    step,
		Message: fmt.Sprintf("[%d] ✗ %s: %v", step, metadataLabel(meta), err),
	}
}

func addToPlaylistUpdate(count int, playlistID string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   AddToPlaylist,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Adding %d tracks to %s...", count, playlistID),
	}
}

func fetchingPlaylistsUpdate(step, total int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   FetchPlaylist,
		Step:    step,
		Total:   total,
		Message: "Reading playlists from the library...",
	}
}

func exportingPlaylistUpdate(step, total int, name string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   ExportPlaylist,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] Exporting: %s...", step, total, name),
	}
}

func exportCompletedUpdate(step, total int, name string, filesCount int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   ExportPlaylist,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] ✓ %s (%d files)", step, total, name, filesCount),
	}
}

func exportFailedUpdate(step, total int, name string, err error) ProgressUpdate {
	return ProgressUpdate{
		Phase:   ExportPlaylist,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] ✗ %s: %v", step, total, name, err),
	}
}

func metadataLabel(meta services.TrackMetadata) string {
	switch {
	case meta.Title == "":
		return meta.Src
	case meta.Artist == "":
		return meta.Title
	default:
		return fmt.Sprintf("%s - %s", meta.Artist, meta.Title)
	}
}
