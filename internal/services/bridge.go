package services

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/spots/internal/models"
	"github.com/desertthunder/spots/internal/shared"
	"github.com/desertthunder/spots/internal/store"
	"golang.org/x/crypto/bcrypt"
)

// MaxPasswordLength is the longest plaintext bcrypt accepts, in bytes.
const MaxPasswordLength = 72

// BridgeOptions configures [NewLocalBridge].
type BridgeOptions struct {
	BcryptCost   int
	EndpointHost string
	Logger       *log.Logger
}

// LocalBridge implements [HostBridge] in-process.
type LocalBridge struct {
	users  *store.Table[*models.User]
	cost   int
	host   string
	logger *log.Logger

	mu        sync.Mutex
	endpoints map[string]net.Listener
	active    string
	closed    bool
	wg        sync.WaitGroup
}

var _ HostBridge = (*LocalBridge)(nil)

// NewLocalBridge creates a bridge that verifies passwords against the users table of engine.
func NewLocalBridge(engine *store.Engine, opts BridgeOptions) *LocalBridge {
	cost := opts.BcryptCost
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	host := opts.EndpointHost
	if host == "" {
		host = "127.0.0.1"
	}
	logger := opts.Logger
	if logger == nil {
		logger = shared.DiscardLogger()
	}
	return &LocalBridge{
		users:     store.Users(engine),
		cost:      cost,
		host:      host,
		logger:    logger,
		endpoints: make(map[string]net.Listener),
	}
}

// HashPassword hashes plaintext with bcrypt.
func (b *LocalBridge) HashPassword(ctx context.Context, plaintext string) (string, error) {
	if err := checkPassword(plaintext); err != nil {
		return "", err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(plaintext), b.cost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hash), nil
}

// VerifyPassword compares plaintext with the hash stored for userID.
// An unknown user is reported as a mismatch.
func (b *LocalBridge) VerifyPassword(ctx context.Context, userID, plaintext string) (bool, error) {
	if err := checkPassword(plaintext); err != nil {
		return false, nil
	}

	found, err := b.users.FindBy(ctx, "idx_users_id", userID)
	if err != nil {
		return false, fmt.Errorf("failed to look up user: %w", err)
	}
	if len(found) == 0 {
		return false, nil
	}

	err = bcrypt.CompareHashAndPassword([]byte(found[0].PasswordHash), []byte(plaintext))
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, bcrypt.ErrMismatchedHashAndPassword):
		return false, nil
	default:
		return false, fmt.Errorf("failed to verify password: %w", err)
	}
}

func checkPassword(plaintext string) error {
	if plaintext == "" {
		return shared.ErrEmptyPassword
	}
	if len(plaintext) > MaxPasswordLength {
		return fmt.Errorf("%w: %d bytes (max %d)", shared.ErrPasswordTooLong, len(plaintext), MaxPasswordLength)
	}
	return nil
}

// CreateNetworkEndpoint opens a loopback listener for userID. Creating an existing endpoint is a no-op.
func (b *LocalBridge) CreateNetworkEndpoint(ctx context.Context, userID string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, err := b.create(ctx, userID)
	return err
}

func (b *LocalBridge) create(ctx context.Context, userID string) (net.Listener, error) {
	if b.closed {
		return nil, shared.ErrHostUnavailable
	}
	if ln, ok := b.endpoints[userID]; ok {
		return ln, nil
	}

	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", net.JoinHostPort(b.host, "0"))
	if err != nil {
		return nil, fmt.Errorf("failed to open endpoint for %s: %w", userID, err)
	}
	b.endpoints[userID] = ln
	b.wg.Add(1)
	go b.serve(ln, userID)

	b.logger.Debug("endpoint created", "user", userID, "addr", ln.Addr().String())
	return ln, nil
}

// serve answers each connection with the id of the endpoint's owner.
func (b *LocalBridge) serve(ln net.Listener, userID string) {
	defer b.wg.Done()
	for {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		w := bufio.NewWriter(conn)
		fmt.Fprintf(w, "spots %s\n", userID)
		w.Flush()
		conn.Close()
	}
}

// LoadNetworkEndpoint makes userID's endpoint active, creating it when needed.
func (b *LocalBridge) LoadNetworkEndpoint(ctx context.Context, userID string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, err := b.create(ctx, userID); err != nil {
		return err
	}
	b.active = userID
	return nil
}

// GetEndpointAddress returns the listen address of userID's endpoint.
func (b *LocalBridge) GetEndpointAddress(ctx context.Context, userID string) (string, bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return "", false, shared.ErrHostUnavailable
	}
	ln, ok := b.endpoints[userID]
	if !ok {
		return "", false, nil
	}
	return ln.Addr().String(), true, nil
}

// CloseNetworkEndpoint closes the active endpoint. Nothing active is not an error.
func (b *LocalBridge) CloseNetworkEndpoint(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.active == "" {
		return nil
	}
	userID := b.active
	b.active = ""

	ln, ok := b.endpoints[userID]
	if !ok {
		return fmt.Errorf("%w: %s", shared.ErrEndpointNotFound, userID)
	}
	delete(b.endpoints, userID)
	b.logger.Debug("endpoint closed", "user", userID)
	return ln.Close()
}

// ActiveEndpoint returns the user whose endpoint is active.
func (b *LocalBridge) ActiveEndpoint() (string, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.active, b.active != ""
}

// Close shuts every endpoint down. The bridge cannot open endpoints afterwards.
func (b *LocalBridge) Close() error {
	b.mu.Lock()
	b.closed = true
	b.active = ""
	var errs []error
	for userID, ln := range b.endpoints {
		if err := ln.Close(); err != nil {
			errs = append(errs, err)
		}
		delete(b.endpoints, userID)
	}
	b.mu.Unlock()

	b.wg.Wait()
	return errors.Join(errs...)
}
