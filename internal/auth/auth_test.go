package auth

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/spots/internal/models"
	"github.com/desertthunder/spots/internal/services"
	"github.com/desertthunder/spots/internal/store"
	tu "github.com/desertthunder/spots/internal/testing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func setupTestEngine(t *testing.T) *store.Engine {
	t.Helper()

	engine, err := store.Open(context.Background(), store.Options{Path: ":memory:", Version: 1})
	require.NoError(t, err)
	t.Cleanup(func() { engine.Close() })
	return engine
}

func setupTestService(t *testing.T, observers ...SessionObserver) (*Service, *store.Engine) {
	t.Helper()

	engine := setupTestEngine(t)
	bridge := services.NewLocalBridge(engine, services.BridgeOptions{BcryptCost: bcrypt.MinCost})
	t.Cleanup(func() { bridge.Close() })
	return New(engine, bridge, bridge, nil, observers...), engine
}

func flaggedUsers(t *testing.T, engine *store.Engine) []string {
	t.Helper()

	flagged, err := store.Users(engine).FindBy(context.Background(), "idx_users_isAuthenticated", true)
	require.NoError(t, err)
	names := make([]string, 0, len(flagged))
	for _, u := range flagged {
		names = append(names, u.Username)
	}
	return names
}

func TestSignUp(t *testing.T) {
	ctx := context.Background()

	t.Run("Then Authenticate", func(t *testing.T) {
		svc, _ := setupTestService(t)

		user, err := svc.SignUp(ctx, "alice", "hunter2")
		require.NoError(t, err)
		assert.NotEmpty(t, user.ID)
		assert.NotEqual(t, "hunter2", user.PasswordHash)
		assert.False(t, user.IsAuthenticated)

		_, err = svc.Authenticate(ctx, "alice", "hunter2")
		require.NoError(t, err)

		state := svc.State()
		require.NotNil(t, state.AuthenticatedUser)
		assert.Equal(t, "alice", state.AuthenticatedUser.Username)
		assert.True(t, state.IsReady)
	})

	t.Run("Surrounding Space Is Ignored", func(t *testing.T) {
		svc, _ := setupTestService(t)

		user, err := svc.SignUp(ctx, " alice ", "hunter2")
		require.NoError(t, err)
		assert.Equal(t, "alice", user.Username)

		_, err = svc.Authenticate(ctx, " alice ", "hunter2")
		require.NoError(t, err)
		current, ok := svc.CurrentUser()
		require.True(t, ok)
		assert.Equal(t, "alice", current.Username)

		_, err = svc.SignUp(ctx, "alice\t", "other")
		assert.ErrorIs(t, err, ErrAlreadyExists)
	})

	t.Run("Duplicate Username", func(t *testing.T) {
		svc, _ := setupTestService(t)

		_, err := svc.SignUp(ctx, "alice", "hunter2")
		require.NoError(t, err)

		_, err = svc.SignUp(ctx, "alice", "other")
		assert.ErrorIs(t, err, ErrAlreadyExists)
	})

	t.Run("Invalid Input", func(t *testing.T) {
		svc, _ := setupTestService(t)

		_, err := svc.SignUp(ctx, "  ", "hunter2")
		assert.ErrorIs(t, err, ErrInvalidInput)

		_, err = svc.SignUp(ctx, "alice", "")
		assert.ErrorIs(t, err, ErrInvalidInput)
	})

	t.Run("Host Failure", func(t *testing.T) {
		engine := setupTestEngine(t)
		bridge := &tu.MockBridge{HashErr: errors.New("bridge down")}
		svc := New(engine, bridge, bridge, nil)

		_, err := svc.SignUp(ctx, "alice", "hunter2")
		assert.ErrorIs(t, err, ErrHostFailure)
	})
}

func TestAuthenticate(t *testing.T) {
	ctx := context.Background()

	t.Run("Invalid Login Does Not Reveal Cause", func(t *testing.T) {
		svc, _ := setupTestService(t)
		_, err := svc.SignUp(ctx, "alice", "hunter2")
		require.NoError(t, err)

		_, unknown := svc.Authenticate(ctx, "mallory", "hunter2")
		_, wrong := svc.Authenticate(ctx, "alice", "wrong")

		require.ErrorIs(t, unknown, ErrInvalidLogin)
		require.ErrorIs(t, wrong, ErrInvalidLogin)
		assert.Equal(t, unknown.Error(), wrong.Error())
		assert.Contains(t, unknown.Error(), InvalidLoginMessage)

		_, ok := svc.CurrentUser()
		assert.False(t, ok)
	})

	t.Run("Switching Users", func(t *testing.T) {
		observer := &tu.RecordingObserver{}
		svc, engine := setupTestService(t, observer)

		for _, name := range []string{"alice", "bob"} {
			_, err := svc.SignUp(ctx, name, "pw-"+name)
			require.NoError(t, err)
		}

		_, err := svc.Authenticate(ctx, "alice", "pw-alice")
		require.NoError(t, err)
		_, err = svc.Authenticate(ctx, "bob", "pw-bob")
		require.NoError(t, err)

		assert.Equal(t, []string{"bob"}, flaggedUsers(t, engine))
		assert.Equal(t, []string{"alice", "bob"}, observer.Started)
		assert.Equal(t, []string{"alice"}, observer.Ended)
	})

	t.Run("Concurrent Calls Leave One User Flagged", func(t *testing.T) {
		svc, engine := setupTestService(t)

		const n = 6
		for i := range n {
			_, err := svc.SignUp(ctx, fmt.Sprintf("user%d", i), "pw")
			require.NoError(t, err)
		}

		var wg sync.WaitGroup
		for i := range n {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := svc.Authenticate(ctx, fmt.Sprintf("user%d", i), "pw")
				assert.NoError(t, err)
			}()
		}
		wg.Wait()

		flagged := flaggedUsers(t, engine)
		require.Len(t, flagged, 1)

		current, ok := svc.CurrentUser()
		require.True(t, ok)
		assert.Equal(t, flagged[0], current.Username)
	})

	t.Run("Failed Write Keeps Session", func(t *testing.T) {
		svc, engine := setupTestService(t)
		_, err := svc.SignUp(ctx, "alice", "hunter2")
		require.NoError(t, err)
		_, err = svc.Authenticate(ctx, "alice", "hunter2")
		require.NoError(t, err)

		require.NoError(t, engine.Close())

		_, err = svc.Authenticate(ctx, "alice", "hunter2")
		assert.ErrorIs(t, err, ErrNotReady)

		current, ok := svc.CurrentUser()
		require.True(t, ok)
		assert.Equal(t, "alice", current.Username)
	})

	t.Run("Observer Failure Keeps Session", func(t *testing.T) {
		observer := &tu.RecordingObserver{Err: errors.New("endpoint unavailable")}
		svc, _ := setupTestService(t, observer)
		_, err := svc.SignUp(ctx, "alice", "hunter2")
		require.NoError(t, err)

		_, err = svc.Authenticate(ctx, "alice", "hunter2")
		require.NoError(t, err)

		_, ok := svc.CurrentUser()
		assert.True(t, ok)
	})
}

func TestUnauthenticate(t *testing.T) {
	ctx := context.Background()

	t.Run("Idempotent", func(t *testing.T) {
		svc, engine := setupTestService(t)
		_, err := svc.SignUp(ctx, "alice", "hunter2")
		require.NoError(t, err)
		_, err = svc.Authenticate(ctx, "alice", "hunter2")
		require.NoError(t, err)

		require.NoError(t, svc.Unauthenticate(ctx))
		require.NoError(t, svc.Unauthenticate(ctx))

		_, ok := svc.CurrentUser()
		assert.False(t, ok)
		assert.Empty(t, flaggedUsers(t, engine))
	})

	t.Run("Clears Memory When Persisting Fails", func(t *testing.T) {
		observer := &tu.RecordingObserver{}
		svc, engine := setupTestService(t, observer)
		_, err := svc.SignUp(ctx, "alice", "hunter2")
		require.NoError(t, err)
		_, err = svc.Authenticate(ctx, "alice", "hunter2")
		require.NoError(t, err)

		require.NoError(t, engine.Close())

		err = svc.Unauthenticate(ctx)
		assert.ErrorIs(t, err, ErrNotReady)

		_, ok := svc.CurrentUser()
		assert.False(t, ok)
		assert.Equal(t, []string{"alice"}, observer.Ended)
	})
}

func TestRestore(t *testing.T) {
	ctx := context.Background()

	t.Run("Nothing Flagged", func(t *testing.T) {
		svc, _ := setupTestService(t)

		user, err := svc.Restore(ctx)
		require.NoError(t, err)
		assert.Nil(t, user)
	})

	t.Run("Adopts Flagged User", func(t *testing.T) {
		engine := setupTestEngine(t)
		require.NoError(t, store.Users(engine).Create(ctx,
			&models.User{ID: "1", Username: "alice", PasswordHash: "h", IsAuthenticated: true}))

		observer := &tu.RecordingObserver{}
		svc := New(engine, &tu.MockBridge{}, &tu.MockBridge{}, nil, observer)

		user, err := svc.Restore(ctx)
		require.NoError(t, err)
		require.NotNil(t, user)
		assert.Equal(t, "alice", user.Username)
		assert.Equal(t, []string{"alice"}, observer.Started)
	})

	t.Run("Warns On Several Flagged Users", func(t *testing.T) {
		engine := setupTestEngine(t)
		users := store.Users(engine)
		require.NoError(t, users.Create(ctx, &models.User{ID: "1", Username: "alice", PasswordHash: "h", IsAuthenticated: true}))
		require.NoError(t, users.Create(ctx, &models.User{ID: "2", Username: "bob", PasswordHash: "h", IsAuthenticated: true}))

		var buf bytes.Buffer
		logger := log.New(&buf)
		svc := New(engine, &tu.MockBridge{}, &tu.MockBridge{}, logger)

		user, err := svc.Restore(ctx)
		require.NoError(t, err)
		assert.Equal(t, "alice", user.Username)
		assert.Contains(t, buf.String(), "more than one user is flagged as authenticated")
	})
}
