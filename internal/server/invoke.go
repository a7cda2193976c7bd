package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"slices"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/spots/internal/auth"
	"github.com/desertthunder/spots/internal/library"
	"github.com/desertthunder/spots/internal/models"
	"github.com/desertthunder/spots/internal/shared"
)

// MaxBodyBytes caps invoke request bodies.
const MaxBodyBytes = 1 << 20

type command func(ctx context.Context, body json.RawMessage) (any, error)

// InvokeHandler dispatches POST /invoke/{command} to the auth and library services.
//
// Success is {"ok": true, "data": ...}; failure is {"ok": false, "error": {"kind", "message"}}
// where kind names the service error kind.
type InvokeHandler struct {
	auth     *auth.Service
	library  *library.Service
	logger   *log.Logger
	commands map[string]command
}

// NewInvokeHandler creates an InvokeHandler over the services.
func NewInvokeHandler(a *auth.Service, lib *library.Service, logger *log.Logger) *InvokeHandler {
	if logger == nil {
		logger = shared.DiscardLogger()
	}
	h := &InvokeHandler{auth: a, library: lib, logger: logger.With("component", "invoke")}
	h.commands = map[string]command{
		"sign_up":                     h.signUp,
		"authenticate":                h.authenticate,
		"unauthenticate":              h.unauthenticate,
		"session":                     h.session,
		"create_playlist":             h.createPlaylist,
		"get_playlist":                h.getPlaylist,
		"get_playlist_tracks":         h.getPlaylistTracks,
		"get_all_playlists":           h.getAllPlaylists,
		"update_playlist":             h.updatePlaylist,
		"remove_playlist":             h.removePlaylist,
		"add_track":                   h.addTrack,
		"get_track":                   h.getTrack,
		"get_all_tracks":              h.getAllTracks,
		"update_track":                h.updateTrack,
		"remove_track":                h.removeTrack,
		"add_track_to_playlist":       h.addTrackToPlaylist,
		"remove_tracks_from_playlist": h.removeTracksFromPlaylist,
		"toggle_follow_playlist":      h.toggleFollowPlaylist,
		"toggle_pin_playlist":         h.togglePinPlaylist,
		"follow_playlist":             h.setMember((*library.Service).FollowPlaylist),
		"unfollow_playlist":           h.setMember((*library.Service).UnfollowPlaylist),
		"pin_playlist":                h.setMember((*library.Service).PinPlaylist),
		"unpin_playlist":              h.setMember((*library.Service).UnpinPlaylist),
		"recent_playlists":            h.recentPlaylists,
		"pinned_playlists":            h.pinnedPlaylists,
		"mark_played":                 h.markPlayed,
	}
	return h
}

// Routes returns the HTTP routes this handler serves.
func (h *InvokeHandler) Routes() []string {
	return []string{"POST /invoke/{command}"}
}

// Commands lists the command names in sorted order.
func (h *InvokeHandler) Commands() []string {
	names := make([]string, 0, len(h.commands))
	for name := range h.commands {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// ServeHTTP decodes the body and runs the named command.
func (h *InvokeHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("command")
	cmd, ok := h.commands[name]
	if !ok {
		writeFailure(w, http.StatusNotFound, "UnknownCommand", fmt.Sprintf("unknown command %q", name))
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, MaxBodyBytes))
	if err != nil {
		writeFailure(w, http.StatusRequestEntityTooLarge, "InvalidInput", "request body is too large")
		return
	}

	data, err := cmd(r.Context(), body)
	if err != nil {
		status, kind, message := h.classify(err)
		h.logger.Debug("command failed", "command", name, "kind", kind, "error", err)
		writeFailure(w, status, kind, message)
		return
	}
	writeSuccess(w, data)
}

// classify maps a service error onto an HTTP status and a failure body.
func (h *InvokeHandler) classify(err error) (int, string, string) {
	var (
		ae *auth.Error
		le *library.Error
		ie *invokeError
	)
	switch {
	case errors.As(err, &ie):
		return ie.status, ie.kind, ie.message
	case errors.As(err, &ae):
		return authStatus(ae.Kind), ae.Kind.String(), ae.Message
	case errors.As(err, &le):
		return libraryStatus(le.Kind), le.Kind.String(), le.Message
	default:
		h.logger.Error("unclassified invoke error", "error", err)
		return http.StatusInternalServerError, "Internal", "internal error"
	}
}

func authStatus(k auth.Kind) int {
	switch k {
	case auth.KindInvalidLogin:
		return http.StatusUnauthorized
	case auth.KindAlreadyExists:
		return http.StatusConflict
	case auth.KindInvalidInput:
		return http.StatusBadRequest
	case auth.KindNotReady:
		return http.StatusServiceUnavailable
	case auth.KindHostFailure:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func libraryStatus(k library.Kind) int {
	switch k {
	case library.KindNotFound:
		return http.StatusNotFound
	case library.KindAlreadyExists, library.KindAlreadyInPlaylist:
		return http.StatusConflict
	case library.KindProtected:
		return http.StatusForbidden
	case library.KindMissingSource, library.KindInvalidInput:
		return http.StatusBadRequest
	case library.KindNotReady:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// invokeError is a failure raised by the handler itself rather than a service.
type invokeError struct {
	status  int
	kind    string
	message string
}

func (e *invokeError) Error() string { return e.kind + ": " + e.message }

func badRequest(format string, args ...any) *invokeError {
	return &invokeError{status: http.StatusBadRequest, kind: "InvalidInput", message: fmt.Sprintf(format, args...)}
}

// decode unmarshals body into a T. An empty body decodes to the zero value.
func decode[T any](body json.RawMessage) (T, error) {
	var v T
	if len(body) == 0 {
		return v, nil
	}
	if err := json.Unmarshal(body, &v); err != nil {
		return v, badRequest("invalid request body: %v", err)
	}
	return v, nil
}

// userID returns given, or the authenticated user's id when given is empty.
func (h *InvokeHandler) userID(given string) (string, error) {
	if given != "" {
		return given, nil
	}
	if u, ok := h.auth.CurrentUser(); ok {
		return u.ID, nil
	}
	return "", &invokeError{status: http.StatusUnauthorized, kind: "Unauthenticated", message: "no user is authenticated"}
}

// UserView is a user without its password hash.
type UserView struct {
	ID              string `json:"id"`
	Username        string `json:"username"`
	IsAuthenticated bool   `json:"isAuthenticated"`
}

func newUserView(u *models.User) *UserView {
	if u == nil {
		return nil
	}
	return &UserView{ID: u.ID, Username: u.Username, IsAuthenticated: u.IsAuthenticated}
}

type credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type idRequest struct {
	ID string `json:"id"`
}

type userRequest struct {
	UserID string `json:"userId"`
}

type playlistMemberRequest struct {
	PlaylistID string `json:"playlistId"`
	UserID     string `json:"userId"`
}

func (h *InvokeHandler) signUp(ctx context.Context, body json.RawMessage) (any, error) {
	in, err := decode[credentials](body)
	if err != nil {
		return nil, err
	}
	u, err := h.auth.SignUp(ctx, in.Username, in.Password)
	if err != nil {
		return nil, err
	}
	return newUserView(u), nil
}

func (h *InvokeHandler) authenticate(ctx context.Context, body json.RawMessage) (any, error) {
	in, err := decode[credentials](body)
	if err != nil {
		return nil, err
	}
	u, err := h.auth.Authenticate(ctx, in.Username, in.Password)
	if err != nil {
		return nil, err
	}
	return newUserView(u), nil
}

func (h *InvokeHandler) unauthenticate(ctx context.Context, _ json.RawMessage) (any, error) {
	return nil, h.auth.Unauthenticate(ctx)
}

func (h *InvokeHandler) session(ctx context.Context, _ json.RawMessage) (any, error) {
	state := h.auth.State()
	return map[string]any{
		"authenticatedUser": newUserView(state.AuthenticatedUser),
		"isReady":           state.IsReady,
	}, nil
}

func (h *InvokeHandler) createPlaylist(ctx context.Context, body json.RawMessage) (any, error) {
	in, err := decode[library.PlaylistSpec](body)
	if err != nil {
		return nil, err
	}
	if in.CreatedBy, err = h.userID(in.CreatedBy); err != nil {
		return nil, err
	}
	id, err := h.library.CreatePlaylist(ctx, in)
	if err != nil {
		return nil, err
	}
	return map[string]string{"id": id}, nil
}

func (h *InvokeHandler) getPlaylist(ctx context.Context, body json.RawMessage) (any, error) {
	in, err := decode[idRequest](body)
	if err != nil {
		return nil, err
	}
	return h.library.GetPlaylist(ctx, in.ID)
}

func (h *InvokeHandler) getPlaylistTracks(ctx context.Context, body json.RawMessage) (any, error) {
	in, err := decode[idRequest](body)
	if err != nil {
		return nil, err
	}
	p, tracks, err := h.library.GetPlaylistTracks(ctx, in.ID)
	if err != nil {
		return nil, err
	}
	return &models.PlaylistExport{Playlist: p, Tracks: tracks}, nil
}

func (h *InvokeHandler) getAllPlaylists(ctx context.Context, body json.RawMessage) (any, error) {
	in, err := decode[userRequest](body)
	if err != nil {
		return nil, err
	}
	userID, err := h.userID(in.UserID)
	if err != nil {
		return nil, err
	}
	return h.library.GetAllPlaylists(ctx, userID)
}

func (h *InvokeHandler) updatePlaylist(ctx context.Context, body json.RawMessage) (any, error) {
	in, err := decode[models.Playlist](body)
	if err != nil {
		return nil, err
	}
	if err := h.library.UpdatePlaylist(ctx, &in); err != nil {
		return nil, err
	}
	return h.library.GetPlaylist(ctx, in.ID)
}

func (h *InvokeHandler) removePlaylist(ctx context.Context, body json.RawMessage) (any, error) {
	in, err := decode[idRequest](body)
	if err != nil {
		return nil, err
	}
	return h.library.RemovePlaylist(ctx, in.ID)
}

func (h *InvokeHandler) addTrack(ctx context.Context, body json.RawMessage) (any, error) {
	in, err := decode[library.TrackSpec](body)
	if err != nil {
		return nil, err
	}
	id, err := h.library.AddTrack(ctx, in)
	if err != nil {
		return nil, err
	}
	return map[string]string{"id": id}, nil
}

func (h *InvokeHandler) getTrack(ctx context.Context, body json.RawMessage) (any, error) {
	in, err := decode[idRequest](body)
	if err != nil {
		return nil, err
	}
	return h.library.GetTrack(ctx, in.ID)
}

func (h *InvokeHandler) getAllTracks(ctx context.Context, _ json.RawMessage) (any, error) {
	return h.library.GetAllTracks(ctx)
}

func (h *InvokeHandler) updateTrack(ctx context.Context, body json.RawMessage) (any, error) {
	in, err := decode[models.Track](body)
	if err != nil {
		return nil, err
	}
	if err := h.library.UpdateTrack(ctx, &in); err != nil {
		return nil, err
	}
	return h.library.GetTrack(ctx, in.ID)
}

func (h *InvokeHandler) removeTrack(ctx context.Context, body json.RawMessage) (any, error) {
	in, err := decode[idRequest](body)
	if err != nil {
		return nil, err
	}
	return h.library.RemoveTrack(ctx, in.ID)
}

func (h *InvokeHandler) addTrackToPlaylist(ctx context.Context, body json.RawMessage) (any, error) {
	in, err := decode[struct {
		TrackID    string `json:"trackId"`
		PlaylistID string `json:"playlistId"`
	}](body)
	if err != nil {
		return nil, err
	}
	return nil, h.library.AddTrackToPlaylist(ctx, in.TrackID, in.PlaylistID)
}

func (h *InvokeHandler) removeTracksFromPlaylist(ctx context.Context, body json.RawMessage) (any, error) {
	in, err := decode[struct {
		PlaylistID string   `json:"playlistId"`
		TrackIDs   []string `json:"trackIds"`
	}](body)
	if err != nil {
		return nil, err
	}
	return h.library.RemoveTracksFromPlaylist(ctx, in.PlaylistID, in.TrackIDs)
}

func (h *InvokeHandler) toggleFollowPlaylist(ctx context.Context, body json.RawMessage) (any, error) {
	in, err := decode[playlistMemberRequest](body)
	if err != nil {
		return nil, err
	}
	userID, err := h.userID(in.UserID)
	if err != nil {
		return nil, err
	}
	following, err := h.library.ToggleFollowPlaylist(ctx, userID, in.PlaylistID)
	if err != nil {
		return nil, err
	}
	return map[string]bool{"following": following}, nil
}

func (h *InvokeHandler) togglePinPlaylist(ctx context.Context, body json.RawMessage) (any, error) {
	in, err := decode[playlistMemberRequest](body)
	if err != nil {
		return nil, err
	}
	userID, err := h.userID(in.UserID)
	if err != nil {
		return nil, err
	}
	pinned, err := h.library.TogglePinPlaylist(ctx, userID, in.PlaylistID)
	if err != nil {
		return nil, err
	}
	return map[string]bool{"pinned": pinned}, nil
}

// setMember adapts an idempotent follow or pin operation into a command.
func (h *InvokeHandler) setMember(fn func(*library.Service, context.Context, string, string) error) command {
	return func(ctx context.Context, body json.RawMessage) (any, error) {
		in, err := decode[playlistMemberRequest](body)
		if err != nil {
			return nil, err
		}
		userID, err := h.userID(in.UserID)
		if err != nil {
			return nil, err
		}
		if err := fn(h.library, ctx, userID, in.PlaylistID); err != nil {
			return nil, err
		}
		return h.library.GetPlaylist(ctx, in.PlaylistID)
	}
}

func (h *InvokeHandler) recentPlaylists(ctx context.Context, body json.RawMessage) (any, error) {
	in, err := decode[userRequest](body)
	if err != nil {
		return nil, err
	}
	userID, err := h.userID(in.UserID)
	if err != nil {
		return nil, err
	}
	return h.library.GetRecentPlaylists(ctx, userID)
}

func (h *InvokeHandler) pinnedPlaylists(ctx context.Context, body json.RawMessage) (any, error) {
	in, err := decode[userRequest](body)
	if err != nil {
		return nil, err
	}
	userID, err := h.userID(in.UserID)
	if err != nil {
		return nil, err
	}
	return h.library.GetPinnedPlaylists(ctx, userID)
}

func (h *InvokeHandler) markPlayed(ctx context.Context, body json.RawMessage) (any, error) {
	in, err := decode[struct {
		PlaylistID string `json:"playlistId"`
		At         *int64 `json:"at"` // unix milliseconds
	}](body)
	if err != nil {
		return nil, err
	}
	at := time.Now()
	if in.At != nil {
		at = time.UnixMilli(*in.At)
	}
	return nil, h.library.MarkPlayed(ctx, in.PlaylistID, at)
}
