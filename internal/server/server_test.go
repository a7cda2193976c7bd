package server

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/desertthunder/spots/internal/auth"
	"github.com/desertthunder/spots/internal/library"
	"github.com/desertthunder/spots/internal/models"
	"github.com/desertthunder/spots/internal/services"
	"github.com/desertthunder/spots/internal/shared"
	"github.com/desertthunder/spots/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

type testAPI struct {
	engine  *store.Engine
	auth    *auth.Service
	library *library.Service
	router  *BasicRouter
}

func setupTestAPI(t *testing.T) *testAPI {
	t.Helper()

	engine, err := store.Open(context.Background(), store.Options{Path: ":memory:", Version: 1})
	require.NoError(t, err)
	t.Cleanup(func() { engine.Close() })

	bridge := services.NewLocalBridge(engine, services.BridgeOptions{BcryptCost: bcrypt.MinCost})
	t.Cleanup(func() { bridge.Close() })

	lib := library.New(engine, nil)
	a := auth.New(engine, bridge, bridge, nil, lib)
	return &testAPI{
		engine:  engine,
		auth:    a,
		library: lib,
		router:  NewInvokeRouter(engine, a, NewInvokeHandler(a, lib, nil), nil),
	}
}

func (api *testAPI) invoke(t *testing.T, command, body string) (int, Response) {
	t.Helper()

	req := httptest.NewRequest(http.MethodPost, "/invoke/"+command, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	api.router.ServeHTTP(rec, req)

	var resp Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp), rec.Body.String())
	return rec.Code, resp
}

// data re-decodes the response data into T.
func data[T any](t *testing.T, resp Response) T {
	t.Helper()

	raw, err := json.Marshal(resp.Data)
	require.NoError(t, err)
	var v T
	require.NoError(t, json.Unmarshal(raw, &v))
	return v
}

func TestInvokeSession(t *testing.T) {
	api := setupTestAPI(t)

	code, resp := api.invoke(t, "sign_up", `{"username":"alice","password":"secret"}`)
	require.Equal(t, http.StatusOK, code)
	assert.True(t, resp.OK)
	assert.NotContains(t, string(mustJSON(t, resp.Data)), "passwordHash")

	code, resp = api.invoke(t, "sign_up", `{"username":"alice","password":"other"}`)
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, "AlreadyExists", resp.Error.Kind)

	code, resp = api.invoke(t, "authenticate", `{"username":"alice","password":"wrong"}`)
	assert.Equal(t, http.StatusUnauthorized, code)
	assert.Equal(t, "InvalidLogin", resp.Error.Kind)
	assert.Equal(t, auth.InvalidLoginMessage, resp.Error.Message)

	code, resp = api.invoke(t, "authenticate", `{"username":"alice","password":"secret"}`)
	require.Equal(t, http.StatusOK, code)
	user := data[UserView](t, resp)
	assert.True(t, user.IsAuthenticated)

	_, resp = api.invoke(t, "session", "")
	session := data[struct {
		AuthenticatedUser *UserView `json:"authenticatedUser"`
	}](t, resp)
	require.NotNil(t, session.AuthenticatedUser)
	assert.Equal(t, "alice", session.AuthenticatedUser.Username)

	_, err := api.library.GetPlaylist(context.Background(), models.AllTracksPlaylistID)
	assert.NoError(t, err, "logging in creates All Tracks")

	code, _ = api.invoke(t, "unauthenticate", "")
	assert.Equal(t, http.StatusOK, code)
	code, _ = api.invoke(t, "unauthenticate", "")
	assert.Equal(t, http.StatusOK, code, "unauthenticate is idempotent")
}

func TestInvokeLibrary(t *testing.T) {
	api := setupTestAPI(t)
	api.invoke(t, "sign_up", `{"username":"alice","password":"secret"}`)
	_, resp := api.invoke(t, "authenticate", `{"username":"alice","password":"secret"}`)
	user := data[UserView](t, resp)

	code, resp := api.invoke(t, "add_track", `{"src":"/music/a.mp3","title":"A"}`)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "A-0", data[map[string]string](t, resp)["id"])

	code, resp = api.invoke(t, "add_track", `{"title":"no source"}`)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "MissingSource", resp.Error.Kind)

	code, _ = api.invoke(t, "add_track_to_playlist", `{"trackId":"A-0","playlistId":"0"}`)
	require.Equal(t, http.StatusOK, code)
	code, resp = api.invoke(t, "add_track_to_playlist", `{"trackId":"A-0","playlistId":"0"}`)
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, "AlreadyInPlaylist", resp.Error.Kind)

	code, resp = api.invoke(t, "create_playlist", `{"name":"Road Trip","trackIds":["A-0"]}`)
	require.Equal(t, http.StatusOK, code)
	id := data[map[string]string](t, resp)["id"]
	assert.Equal(t, "RoadTrip-"+user.ID, id)

	_, resp = api.invoke(t, "toggle_pin_playlist", `{"playlistId":"`+id+`"}`)
	assert.True(t, data[map[string]bool](t, resp)["pinned"])
	_, resp = api.invoke(t, "pinned_playlists", "")
	pinned := data[[]*models.Playlist](t, resp)
	require.Len(t, pinned, 1)
	assert.Equal(t, id, pinned[0].ID)

	_, resp = api.invoke(t, "toggle_follow_playlist", `{"playlistId":"0","userId":"bob"}`)
	assert.True(t, data[map[string]bool](t, resp)["following"])

	code, _ = api.invoke(t, "mark_played", `{"playlistId":"`+id+`","at":1700000000000}`)
	require.Equal(t, http.StatusOK, code)
	_, resp = api.invoke(t, "recent_playlists", "")
	recent := data[[]*models.Playlist](t, resp)
	require.NotEmpty(t, recent)
	assert.Equal(t, id, recent[0].ID)

	_, resp = api.invoke(t, "get_playlist_tracks", `{"id":"`+id+`"}`)
	export := data[models.PlaylistExport](t, resp)
	require.Len(t, export.Tracks, 1)
	assert.Equal(t, "A", export.Tracks[0].Title)

	code, resp = api.invoke(t, "remove_playlist", `{"id":"0"}`)
	assert.Equal(t, http.StatusForbidden, code)
	assert.Equal(t, "Protected", resp.Error.Kind)

	code, resp = api.invoke(t, "get_track", `{"id":"missing"}`)
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, "NotFound", resp.Error.Kind)
}

func TestInvokeUpdates(t *testing.T) {
	api := setupTestAPI(t)
	api.invoke(t, "sign_up", `{"username":"alice","password":"secret"}`)
	_, resp := api.invoke(t, "authenticate", `{"username":"alice","password":"secret"}`)
	user := data[UserView](t, resp)

	api.invoke(t, "add_track", `{"src":"/music/a.mp3","title":"A"}`)
	api.invoke(t, "add_track", `{"src":"/music/b.mp3","title":"B"}`)

	t.Run("update track", func(t *testing.T) {
		code, resp := api.invoke(t, "update_track", `{"id":"B-1","src":"/music/b.mp3","title":"B","artist":"X"}`)
		require.Equal(t, http.StatusOK, code)
		assert.Equal(t, "X", data[models.Track](t, resp).Artist)

		code, resp = api.invoke(t, "update_track", `{"id":"B-1","src":"/music/a.mp3","title":"A"}`)
		assert.Equal(t, http.StatusConflict, code)
		assert.Equal(t, "AlreadyExists", resp.Error.Kind)
	})

	t.Run("update playlist", func(t *testing.T) {
		api.invoke(t, "create_playlist", `{"name":"Mix"}`)
		_, resp := api.invoke(t, "create_playlist", `{"name":"Other"}`)
		id := data[map[string]string](t, resp)["id"]

		body := `{"id":"` + id + `","name":"Chill","createdBy":"` + user.ID + `","trackIds":["A-0"]}`
		code, resp := api.invoke(t, "update_playlist", body)
		require.Equal(t, http.StatusOK, code)
		updated := data[models.Playlist](t, resp)
		assert.Equal(t, "Chill", updated.Name)
		assert.Equal(t, []string{"A-0"}, updated.TrackIDs)

		body = `{"id":"` + id + `","name":"Mix","createdBy":"` + user.ID + `"}`
		code, resp = api.invoke(t, "update_playlist", body)
		assert.Equal(t, http.StatusConflict, code)
		assert.Equal(t, "AlreadyExists", resp.Error.Kind)

		body = `{"id":"` + id + `","name":"All Tracks","createdBy":"__SYSTEM__"}`
		code, resp = api.invoke(t, "update_playlist", body)
		assert.Equal(t, http.StatusForbidden, code)
		assert.Equal(t, "Protected", resp.Error.Kind)
	})
}

func TestInvokeMembership(t *testing.T) {
	api := setupTestAPI(t)
	api.invoke(t, "sign_up", `{"username":"alice","password":"secret"}`)
	api.invoke(t, "sign_up", `{"username":"bob","password":"secret"}`)
	_, resp := api.invoke(t, "authenticate", `{"username":"bob","password":"secret"}`)
	bob := data[UserView](t, resp)

	_, resp = api.invoke(t, "create_playlist", `{"name":"Bobs"}`)
	bobs := data[map[string]string](t, resp)["id"]

	_, resp = api.invoke(t, "authenticate", `{"username":"alice","password":"secret"}`)
	alice := data[UserView](t, resp)
	_, resp = api.invoke(t, "create_playlist", `{"name":"Mine"}`)
	mine := data[map[string]string](t, resp)["id"]

	listed := func(t *testing.T) []string {
		code, resp := api.invoke(t, "get_all_playlists", "")
		require.Equal(t, http.StatusOK, code)
		var ids []string
		for _, p := range data[[]*models.Playlist](t, resp) {
			ids = append(ids, p.ID)
		}
		return ids
	}

	t.Run("listing defaults to the signed in user", func(t *testing.T) {
		assert.ElementsMatch(t, []string{models.AllTracksPlaylistID, mine}, listed(t))

		_, resp := api.invoke(t, "get_all_playlists", `{"userId":"`+bob.ID+`"}`)
		var ids []string
		for _, p := range data[[]*models.Playlist](t, resp) {
			ids = append(ids, p.ID)
		}
		assert.Contains(t, ids, bobs)
	})

	t.Run("follow and unfollow are idempotent", func(t *testing.T) {
		for range 2 {
			code, resp := api.invoke(t, "follow_playlist", `{"playlistId":"`+bobs+`"}`)
			require.Equal(t, http.StatusOK, code)
			assert.Equal(t, []string{alice.ID}, data[models.Playlist](t, resp).FollowerUserIDs)
		}
		assert.Contains(t, listed(t), bobs)

		for range 2 {
			code, resp := api.invoke(t, "unfollow_playlist", `{"playlistId":"`+bobs+`"}`)
			require.Equal(t, http.StatusOK, code)
			assert.Empty(t, data[models.Playlist](t, resp).FollowerUserIDs)
		}
		assert.NotContains(t, listed(t), bobs)
	})

	t.Run("pin and unpin are idempotent", func(t *testing.T) {
		for range 2 {
			code, _ := api.invoke(t, "pin_playlist", `{"playlistId":"`+mine+`"}`)
			require.Equal(t, http.StatusOK, code)
		}
		_, resp := api.invoke(t, "pinned_playlists", "")
		require.Len(t, data[[]*models.Playlist](t, resp), 1)

		for range 2 {
			code, _ := api.invoke(t, "unpin_playlist", `{"playlistId":"`+mine+`"}`)
			require.Equal(t, http.StatusOK, code)
		}
		_, resp = api.invoke(t, "pinned_playlists", "")
		assert.Empty(t, data[[]*models.Playlist](t, resp))
	})

	t.Run("missing playlist", func(t *testing.T) {
		code, resp := api.invoke(t, "pin_playlist", `{"playlistId":"nope"}`)
		assert.Equal(t, http.StatusNotFound, code)
		assert.Equal(t, "NotFound", resp.Error.Kind)
	})
}

func TestInvokeErrors(t *testing.T) {
	api := setupTestAPI(t)

	tests := []struct {
		name    string
		command string
		body    string
		status  int
		kind    string
	}{
		{"unknown command", "drop_tables", "", http.StatusNotFound, "UnknownCommand"},
		{"malformed body", "get_track", `{"id":`, http.StatusBadRequest, "InvalidInput"},
		{"no session", "recent_playlists", "", http.StatusUnauthorized, "Unauthenticated"},
		{"no session listing", "get_all_playlists", "", http.StatusUnauthorized, "Unauthenticated"},
		{"no session follow", "follow_playlist", `{"playlistId":"0"}`, http.StatusUnauthorized, "Unauthenticated"},
		{"empty credentials", "sign_up", `{}`, http.StatusBadRequest, "InvalidInput"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, resp := api.invoke(t, tt.command, tt.body)
			assert.Equal(t, tt.status, code)
			assert.False(t, resp.OK)
			require.NotNil(t, resp.Error)
			assert.Equal(t, tt.kind, resp.Error.Kind)
		})
	}

	t.Run("wrong method", func(t *testing.T) {
		rec := httptest.NewRecorder()
		api.router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/invoke/session", nil))
		assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	})

	t.Run("not json", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/invoke/session", strings.NewReader("a=b"))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		rec := httptest.NewRecorder()
		api.router.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnsupportedMediaType, rec.Code)
	})
}

func TestHealth(t *testing.T) {
	api := setupTestAPI(t)

	rec := httptest.NewRecorder()
	api.router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"isReady":true`)

	require.NoError(t, api.engine.Close())

	rec = httptest.NewRecorder()
	api.router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), `"NotReady"`)
}

func TestRecoverMiddleware(t *testing.T) {
	router := NewBasicRouter()
	router.Use(RecoverMiddleware(shared.DiscardLogger()))
	router.Handle(http.MethodGet, "/boom", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/boom", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), `"kind":"Internal"`)
}

func TestMiddlewareOrder(t *testing.T) {
	var order []string
	mark := func(name string) Middleware {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				order = append(order, name)
				next.ServeHTTP(w, r)
			})
		}
	}

	router := NewBasicRouter()
	router.Use(mark("first"), mark("second"))
	router.Handle("get", "/x", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/x", nil))

	assert.Equal(t, []string{"first", "second"}, order)
}

func TestServerRun(t *testing.T) {
	api := setupTestAPI(t)
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- NewServer("", api.router, nil).Run(ctx, ln) }()

	resp, err := http.Get("http://" + ln.Addr().String() + "/health")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(ShutdownTimeout + time.Second):
		t.Fatal("server did not shut down")
	}
}

func TestCommands(t *testing.T) {
	h := NewInvokeHandler(nil, nil, nil)
	names := h.Commands()
	for _, want := range []string{
		"sign_up", "authenticate", "unauthenticate", "session", "create_playlist",
		"get_playlist", "get_all_playlists", "add_track", "get_track", "get_all_tracks",
		"add_track_to_playlist", "remove_tracks_from_playlist", "toggle_follow_playlist",
		"toggle_pin_playlist", "recent_playlists", "pinned_playlists", "mark_played",
		"update_playlist", "update_track", "follow_playlist", "unfollow_playlist",
		"pin_playlist", "unpin_playlist",
	} {
		assert.Contains(t, names, want)
	}
}

func mustJSON(t *testing.T, v any) []byte {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return b
}
