package library

import (
	"context"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/spots/internal/models"
	"github.com/desertthunder/spots/internal/shared"
	"github.com/desertthunder/spots/internal/store"
)

const (
	// RecentPlaylistsLimit caps [Service.GetRecentPlaylists].
	RecentPlaylistsLimit = 12
	// PinnedPlaylistsLimit caps [Service.GetPinnedPlaylists].
	PinnedPlaylistsLimit = 6
)

var bothTables = []string{models.PlaylistsTable, models.TracksTable}

// PlaylistSpec describes a playlist to create.
type PlaylistSpec struct {
	Name        string   `json:"name"`
	CreatedBy   string   `json:"createdBy"`
	ImageSource string   `json:"imageSource,omitempty"`
	TrackIDs    []string `json:"trackIds,omitempty"`
}

// TrackSpec describes a track to add.
type TrackSpec struct {
	Src         string `json:"src"`
	Title       string `json:"title,omitempty"`
	Artist      string `json:"artist,omitempty"`
	Album       string `json:"album,omitempty"`
	ImageSource string `json:"imageSource,omitempty"`
}

// Service manages playlists and tracks. Every operation that checks state
// before writing does both inside one write transaction.
type Service struct {
	engine    *store.Engine
	playlists *store.Table[*models.Playlist]
	tracks    *store.Table[*models.Track]
	logger    *log.Logger
	readiness shared.Readiness
}

// New creates a Service over engine.
func New(engine *store.Engine, logger *log.Logger) *Service {
	if logger == nil {
		logger = shared.DiscardLogger()
	}
	s := &Service{
		engine:    engine,
		playlists: store.Playlists(engine),
		tracks:    store.Tracks(engine),
		logger:    logger.With("component", "library"),
	}
	s.readiness.MarkOpen(true)
	return s
}

// IsReady reports whether no library operation is in flight and the store is ready.
func (s *Service) IsReady() bool {
	return s.readiness.Ready() && s.engine.IsReady()
}

// PlaylistID derives the id for a playlist. The "All Tracks" playlist created by
// the system is always "0"; any other playlist is name-createdBy with whitespace removed.
func PlaylistID(name, createdBy string) string {
	if name == models.AllTracksPlaylistName && createdBy == models.SystemUserID {
		return models.AllTracksPlaylistID
	}
	return shared.StripWhitespace(name) + "-" + shared.StripWhitespace(createdBy)
}

func trackIDBase(title string) string {
	if t := strings.TrimSpace(title); t != "" {
		return t
	}
	return "track"
}

// update runs fn in a write transaction and maps store failures.
func (s *Service) update(ctx context.Context, op, what string, tables []string, fn func(*store.Tx) error) error {
	done := s.readiness.Begin()
	defer done()

	if err := s.engine.Update(ctx, tables, fn); err != nil {
		s.logger.Debug(op+" failed", "error", err)
		return fromStore(err, what)
	}
	return nil
}

// view runs fn in a read transaction and maps store failures.
func (s *Service) view(ctx context.Context, op, what string, tables []string, fn func(*store.Tx) error) error {
	done := s.readiness.Begin()
	defer done()

	if err := s.engine.View(ctx, tables, fn); err != nil {
		s.logger.Debug(op+" failed", "error", err)
		return fromStore(err, what)
	}
	return nil
}

// readPlaylist reads id inside tx, reporting a missing playlist as [KindNotFound].
func (s *Service) readPlaylist(tx *store.Tx, id string) (*models.Playlist, error) {
	p, err := s.playlists.In(tx).Read(id)
	if err != nil {
		if store.KindOf(err) == store.KindNotFound {
			return nil, playlistNotFound(id)
		}
		return nil, err
	}
	p.Normalize()
	return p, nil
}

// readTrack reads id inside tx, reporting a missing track as [KindNotFound].
func (s *Service) readTrack(tx *store.Tx, id string) (*models.Track, error) {
	t, err := s.tracks.In(tx).Read(id)
	if err != nil {
		if store.KindOf(err) == store.KindNotFound {
			return nil, trackNotFound(id)
		}
		return nil, err
	}
	return t, nil
}

// SessionStarted makes sure the "All Tracks" playlist exists once someone logs in.
func (s *Service) SessionStarted(ctx context.Context, user *models.User) error {
	_, err := s.EnsureAllTracks(ctx)
	return err
}

// SessionEnded does nothing; the library outlives sessions.
func (s *Service) SessionEnded(ctx context.Context, user *models.User) error {
	return nil
}
