package tasks

import (
	"context"
	"errors"
	"testing"

	"github.com/desertthunder/spots/internal/library"
	"github.com/desertthunder/spots/internal/models"
	"github.com/desertthunder/spots/internal/services"
	"github.com/desertthunder/spots/internal/store"
	tu "github.com/desertthunder/spots/internal/testing"
)

func setupTestLibrary(t *testing.T) *library.Service {
	t.Helper()

	engine, err := store.Open(context.Background(), store.Options{Path: ":memory:", Name: "spots-test", Version: 1})
	if err != nil {
		t.Fatalf("failed to open test store: %v", err)
	}
	t.Cleanup(func() { engine.Close() })
	return library.New(engine, nil)
}

// brokenLibrary fails every write like a store that went away.
type brokenLibrary struct {
	Library
}

func (brokenLibrary) EnsureAllTracks(ctx context.Context) (bool, error) { return false, nil }

func (brokenLibrary) AddTrack(ctx context.Context, spec library.TrackSpec) (string, error) {
	return "", &library.Error{Kind: library.KindNotReady, Message: "store is not ready"}
}

func drain(prog chan ProgressUpdate) []ProgressUpdate {
	var out []ProgressUpdate
	for {
		select {
		case u := <-prog:
			out = append(out, u)
		default:
			return out
		}
	}
}

func TestImport(t *testing.T) {
	tracks := []services.TrackMetadata{
		{Src: "/music/a.mp3", Title: "A", Artist: "Alpha"},
		{Src: "/music/b.mp3", Title: "B"},
		{Src: "/music/a.mp3", Title: "A", Artist: "Alpha"},
		{Src: "  ", Title: "No Source"},
	}

	t.Run("into all tracks", func(t *testing.T) {
		ctx := context.Background()
		lib := setupTestLibrary(t)
		engine := NewLibraryEngine(lib, nil)
		prog := make(chan ProgressUpdate, 16)

		result, err := engine.Import(ctx, prog, &tu.SliceStreamer{Tracks: tracks}, ImportOpts{RateLimit: 1000})
		if err != nil {
			t.Fatalf("Import failed: %v", err)
		}

		if len(result.Added) != 2 || result.Skipped != 1 || len(result.Failed) != 1 {
			t.Fatalf("unexpected result %+v", result)
		}
		if result.Added[0] != "A-0" || result.Added[1] != "B-1" {
			t.Errorf("unexpected ids %v", result.Added)
		}
		if result.Failed[0].Title != "No Source" {
			t.Errorf("unexpected failure %+v", result.Failed[0])
		}

		p, err := lib.GetPlaylist(ctx, models.AllTracksPlaylistID)
		if err != nil {
			t.Fatalf("GetPlaylist failed: %v", err)
		}
		if len(p.TrackIDs) != 2 {
			t.Errorf("expected 2 tracks in All Tracks, got %v", p.TrackIDs)
		}

		updates := drain(prog)
		if len(updates) == 0 || updates[0].Phase != PrepareLibrary {
			t.Fatalf("expected a prepare update first, got %v", updates)
		}
		if last := updates[len(updates)-1]; last.Phase != AddToPlaylist {
			t.Errorf("expected add to playlist last, got %s", last.Phase)
		}
	})

	t.Run("into a user playlist", func(t *testing.T) {
		ctx := context.Background()
		lib := setupTestLibrary(t)
		id, err := lib.CreatePlaylist(ctx, library.PlaylistSpec{Name: "Road", CreatedBy: "alice"})
		if err != nil {
			t.Fatalf("CreatePlaylist failed: %v", err)
		}

		result, err := NewLibraryEngine(lib, nil).Import(ctx, nil, &tu.SliceStreamer{Tracks: tracks[:2]}, ImportOpts{PlaylistID: id, RateLimit: 1000})
		if err != nil {
			t.Fatalf("Import failed: %v", err)
		}

		_, got, err := lib.GetPlaylistTracks(ctx, id)
		if err != nil {
			t.Fatalf("GetPlaylistTracks failed: %v", err)
		}
		if len(got) != 2 || got[0].ID != result.Added[0] {
			t.Errorf("unexpected playlist tracks %v", got)
		}
		if _, err := lib.GetPlaylist(ctx, models.AllTracksPlaylistID); !errors.Is(err, library.ErrNotFound) {
			t.Errorf("All Tracks should not be created for a user playlist import, got %v", err)
		}
	})

	t.Run("missing playlist", func(t *testing.T) {
		ctx := context.Background()
		lib := setupTestLibrary(t)

		result, err := NewLibraryEngine(lib, nil).Import(ctx, nil, &tu.SliceStreamer{Tracks: tracks[:1]}, ImportOpts{PlaylistID: "nope", RateLimit: 1000})
		if !errors.Is(err, library.ErrNotFound) {
			t.Fatalf("expected NotFound, got %v", err)
		}
		if len(result.Added) != 1 {
			t.Errorf("track should still be added to the library, got %+v", result)
		}
	})

	t.Run("stream error keeps added tracks", func(t *testing.T) {
		ctx := context.Background()
		lib := setupTestLibrary(t)
		streamer := &tu.SliceStreamer{Tracks: tracks[:1], Err: errors.New("manifest truncated")}

		result, err := NewLibraryEngine(lib, nil).Import(ctx, nil, streamer, ImportOpts{RateLimit: 1000})
		if err == nil {
			t.Fatal("expected stream error")
		}
		if len(result.Added) != 1 {
			t.Fatalf("expected one added track, got %+v", result)
		}

		p, err := lib.GetPlaylist(ctx, models.AllTracksPlaylistID)
		if err != nil {
			t.Fatalf("GetPlaylist failed: %v", err)
		}
		if len(p.TrackIDs) != 1 {
			t.Errorf("added track should be in All Tracks, got %v", p.TrackIDs)
		}
	})

	t.Run("store failure stops the import", func(t *testing.T) {
		result, err := NewLibraryEngine(brokenLibrary{}, nil).Import(context.Background(), nil, &tu.SliceStreamer{Tracks: tracks}, ImportOpts{RateLimit: 1000})
		if !errors.Is(err, library.ErrNotReady) {
			t.Fatalf("expected NotReady, got %v", err)
		}
		if len(result.Added) != 0 || result.Skipped != 0 {
			t.Errorf("nothing should be recorded, got %+v", result)
		}
	})

	t.Run("cancelled", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		lib := setupTestLibrary(t)
		if _, err := lib.EnsureAllTracks(ctx); err != nil {
			t.Fatalf("EnsureAllTracks failed: %v", err)
		}
		cancel()

		_, err := NewLibraryEngine(lib, nil).Import(ctx, nil, &tu.SliceStreamer{Tracks: tracks}, ImportOpts{PlaylistID: "Road-alice"})
		if !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
	})
}

func TestPhaseString(t *testing.T) {
	tests := []struct {
		phase Phase
		want  string
	}{
		{PrepareLibrary, "prepare_library"},
		{ImportTracks, "import_tracks"},
		{AddToPlaylist, "add_to_playlist"},
		{FetchPlaylist, "fetch_playlist"},
		{ExportPlaylist, "export_playlist"},
		{Phase(99), ""},
	}
	for _, tt := range tests {
		if got := tt.phase.String(); got != tt.want {
			t.Errorf("Phase(%d).String() = %q, want %q", tt.phase, got, tt.want)
		}
	}
}

func TestSendProgress(t *testing.T) {
	e := NewLibraryEngine(nil, nil)

	t.Run("nil channel", func(t *testing.T) {
		e.sendProgress(nil, ProgressUpdate{Message: "ignored"})
	})

	t.Run("full channel does not block", func(t *testing.T) {
		prog := make(chan ProgressUpdate, 1)
		e.sendProgress(prog, ProgressUpdate{Message: "first"})
		e.sendProgress(prog, ProgressUpdate{Message: "second"})
		if got := (<-prog).Message; got != "first" {
			t.Errorf("got %q, want first", got)
		}
	})
}
