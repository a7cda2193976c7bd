package auth

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/spots/internal/models"
	"github.com/desertthunder/spots/internal/services"
	"github.com/desertthunder/spots/internal/shared"
	"github.com/desertthunder/spots/internal/store"
)

const authenticatedIndex = "idx_users_isAuthenticated"

// SessionObserver is told when a session starts or ends.
// Errors are logged and never undo the session change.
type SessionObserver interface {
	SessionStarted(ctx context.Context, user *models.User) error
	SessionEnded(ctx context.Context, user *models.User) error
}

// State is a snapshot of the session.
type State struct {
	AuthenticatedUser *models.User `json:"authenticatedUser"`
	IsReady           bool         `json:"isReady"`
}

// Service tracks the authenticated user, keeping at most one persisted
// IsAuthenticated flag set across the users table.
type Service struct {
	engine    *store.Engine
	users     *store.Table[*models.User]
	hasher    services.PasswordHasher
	verifier  services.PasswordVerifier
	logger    *log.Logger
	readiness shared.Readiness

	observersMu sync.RWMutex
	observers   []SessionObserver

	mu      sync.Mutex // held from persisting a flag change until memory reflects it
	current *models.User
}

// New creates a Service over engine.
func New(engine *store.Engine, hasher services.PasswordHasher, verifier services.PasswordVerifier, logger *log.Logger, observers ...SessionObserver) *Service {
	if logger == nil {
		logger = shared.DiscardLogger()
	}
	s := &Service{
		engine:    engine,
		users:     store.Users(engine),
		hasher:    hasher,
		verifier:  verifier,
		logger:    logger.With("component", "auth"),
		observers: observers,
	}
	s.readiness.MarkOpen(true)
	return s
}

// AddObserver registers o for later session changes.
func (s *Service) AddObserver(o SessionObserver) {
	s.observersMu.Lock()
	defer s.observersMu.Unlock()
	s.observers = append(s.observers, o)
}

// State returns the current session.
func (s *Service) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return State{AuthenticatedUser: s.current.Clone(), IsReady: s.readiness.Ready() && s.engine.IsReady()}
}

// CurrentUser returns the authenticated user, if any.
func (s *Service) CurrentUser() (*models.User, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current.Clone(), s.current != nil
}

// SignUp registers a new user. The password is hashed by the host bridge.
func (s *Service) SignUp(ctx context.Context, username, password string) (*models.User, error) {
	done := s.readiness.Begin()
	defer done()

	username = strings.TrimSpace(username)
	if username == "" {
		return nil, &Error{Kind: KindInvalidInput, Message: "username is required"}
	}
	if password == "" {
		return nil, &Error{Kind: KindInvalidInput, Message: "password is required"}
	}

	hash, err := s.hasher.HashPassword(ctx, password)
	if err != nil {
		s.logger.Debug("hash failed", "username", username, "error", err)
		if errors.Is(err, shared.ErrEmptyPassword) || errors.Is(err, shared.ErrPasswordTooLong) {
			return nil, &Error{Kind: KindInvalidInput, Message: "password is not acceptable", Err: err}
		}
		return nil, &Error{Kind: KindHostFailure, Message: "password could not be hashed", Err: err}
	}

	user := &models.User{ID: shared.GenerateID(), Username: username, PasswordHash: hash}
	if err := s.users.Create(ctx, user); err != nil {
		s.logger.Debug("sign up failed", "username", username, "error", err)
		return nil, fromStore(err)
	}

	s.logger.Info("user registered", "username", username)
	return user.Clone(), nil
}

// Authenticate checks the credentials and makes username the only authenticated user.
//
// An unknown username and a wrong password fail identically with [KindInvalidLogin].
// In-memory state only changes after the flag change commits.
func (s *Service) Authenticate(ctx context.Context, username, password string) (*models.User, error) {
	done := s.readiness.Begin()
	defer done()

	username = strings.TrimSpace(username)
	user, err := s.users.Read(ctx, username)
	if err != nil {
		s.logger.Debug("login lookup failed", "username", username, "error", err)
		if errors.Is(err, store.ErrNotFound) {
			return nil, invalidLogin()
		}
		return nil, fromStore(err)
	}

	ok, err := s.verifier.VerifyPassword(ctx, user.ID, password)
	if err != nil {
		s.logger.Debug("password verification failed", "username", username, "error", err)
		return nil, &Error{Kind: KindHostFailure, Message: "password could not be verified", Err: err}
	}
	if !ok {
		s.logger.Debug("password mismatch", "username", username)
		return nil, invalidLogin()
	}

	s.mu.Lock()
	var updated *models.User
	err = s.engine.Update(ctx, []string{models.UsersTable}, func(tx *store.Tx) error {
		users := s.users.In(tx)

		flagged, err := users.FindBy(authenticatedIndex, true)
		if err != nil {
			return err
		}
		for _, other := range flagged {
			if other.Username == username {
				continue
			}
			other.IsAuthenticated = false
			if err := users.Update(other.Username, other); err != nil {
				return err
			}
		}

		target, err := users.Read(username)
		if errors.Is(err, store.ErrNotFound) {
			return invalidLogin()
		}
		if err != nil {
			return err
		}
		target.IsAuthenticated = true
		if err := users.Update(target.Username, target); err != nil {
			return err
		}
		updated = target
		return nil
	})
	if err != nil {
		s.mu.Unlock()
		s.logger.Debug("persisting session failed", "username", username, "error", err)
		return nil, fromStore(err)
	}
	previous := s.current
	s.current = updated.Clone()
	s.mu.Unlock()

	s.logger.Info("authenticated", "username", username)
	if previous != nil && previous.Username != updated.Username {
		s.notify(ctx, previous, false)
	}
	s.notify(ctx, updated, true)
	return updated.Clone(), nil
}

// Unauthenticate ends the session. With nobody logged in it does nothing.
//
// In-memory state is cleared even when the persisted flag cannot be, in which
// case the persistence error is returned.
func (s *Service) Unauthenticate(ctx context.Context) error {
	done := s.readiness.Begin()
	defer done()

	s.mu.Lock()
	current := s.current
	if current == nil {
		s.mu.Unlock()
		return nil
	}

	err := s.engine.Update(ctx, []string{models.UsersTable}, func(tx *store.Tx) error {
		users := s.users.In(tx)
		user, err := users.Read(current.Username)
		if err != nil {
			return err
		}
		user.IsAuthenticated = false
		return users.Update(user.Username, user)
	})
	s.current = nil
	s.mu.Unlock()

	s.notify(ctx, current, false)

	if err != nil {
		s.logger.Debug("clearing persisted session failed", "username", current.Username, "error", err)
		if errors.Is(err, store.ErrNotFound) {
			return &Error{Kind: KindTransactionAborted, Message: "authenticated user no longer exists", Err: err}
		}
		return fromStore(err)
	}
	s.logger.Info("unauthenticated", "username", current.Username)
	return nil
}

// Restore adopts the persisted session, if any, and returns it.
// More than one flagged user is a data integrity problem; the first one in store order wins.
func (s *Service) Restore(ctx context.Context) (*models.User, error) {
	done := s.readiness.Begin()
	defer done()

	flagged, err := s.users.FindBy(ctx, authenticatedIndex, true)
	if err != nil {
		s.logger.Debug("restore lookup failed", "error", err)
		return nil, fromStore(err)
	}
	if len(flagged) == 0 {
		return nil, nil
	}
	if len(flagged) > 1 {
		names := make([]string, len(flagged))
		for i, u := range flagged {
			names[i] = u.Username
		}
		s.logger.Warn("more than one user is flagged as authenticated", "users", names, "adopted", names[0])
	}

	user := flagged[0]
	s.mu.Lock()
	s.current = user.Clone()
	s.mu.Unlock()

	s.logger.Info("session restored", "username", user.Username)
	s.notify(ctx, user, true)
	return user.Clone(), nil
}

func (s *Service) notify(ctx context.Context, user *models.User, started bool) {
	s.observersMu.RLock()
	observers := append([]SessionObserver(nil), s.observers...)
	s.observersMu.RUnlock()

	for _, o := range observers {
		var err error
		if started {
			err = o.SessionStarted(ctx, user.Clone())
		} else {
			err = o.SessionEnded(ctx, user.Clone())
		}
		if err != nil {
			s.logger.Warn("session observer failed", "username", user.Username, "started", started, "error", err)
		}
	}
}
