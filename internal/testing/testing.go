// package testing contains shared testing utilities
package testing

import (
	"context"
	"errors"
	"io"
	"os"
	"strings"
	"sync"
	"testing"

	"github.com/desertthunder/spots/internal/models"
	"github.com/desertthunder/spots/internal/services"
)

// MockBridge is an in-memory test double for [services.HostBridge].
//
// Hashes are "mock:" + plaintext. VerifyPassword asks Lookup for the stored hash.
type MockBridge struct {
	HashErr     error
	VerifyErr   error
	EndpointErr error
	Lookup      func(ctx context.Context, userID string) (string, bool)

	mu       sync.Mutex
	Loaded   []string
	Closed   int
	addrs    map[string]string
	active   string
	hashCall int
}

var _ services.HostBridge = (*MockBridge)(nil)

func (m *MockBridge) HashPassword(ctx context.Context, plaintext string) (string, error) {
	m.mu.Lock()
	m.hashCall++
	m.mu.Unlock()
	if m.HashErr != nil {
		return "", m.HashErr
	}
	return "mock:" + plaintext, nil
}

func (m *MockBridge) VerifyPassword(ctx context.Context, userID, plaintext string) (bool, error) {
	if m.VerifyErr != nil {
		return false, m.VerifyErr
	}
	if m.Lookup == nil {
		return false, nil
	}
	hash, ok := m.Lookup(ctx, userID)
	return ok && strings.TrimPrefix(hash, "mock:") == plaintext, nil
}

// HashCalls returns how often HashPassword ran.
func (m *MockBridge) HashCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.hashCall
}

func (m *MockBridge) CreateNetworkEndpoint(ctx context.Context, userID string) error {
	if m.EndpointErr != nil {
		return m.EndpointErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.addrs == nil {
		m.addrs = make(map[string]string)
	}
	m.addrs[userID] = "mock://" + userID
	return nil
}

func (m *MockBridge) LoadNetworkEndpoint(ctx context.Context, userID string) error {
	if err := m.CreateNetworkEndpoint(ctx, userID); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.active = userID
	m.Loaded = append(m.Loaded, userID)
	return nil
}

func (m *MockBridge) GetEndpointAddress(ctx context.Context, userID string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	addr, ok := m.addrs[userID]
	return addr, ok, nil
}

func (m *MockBridge) CloseNetworkEndpoint(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.active != "" {
		delete(m.addrs, m.active)
		m.active = ""
		m.Closed++
	}
	return nil
}

// RecordingObserver records session events by username.
type RecordingObserver struct {
	Err error

	mu      sync.Mutex
	Started []string
	Ended   []string
}

func (o *RecordingObserver) SessionStarted(ctx context.Context, user *models.User) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.Started = append(o.Started, user.Username)
	return o.Err
}

func (o *RecordingObserver) SessionEnded(ctx context.Context, user *models.User) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.Ended = append(o.Ended, user.Username)
	return o.Err
}

// SliceStreamer streams Tracks and then reports Err, if set.
type SliceStreamer struct {
	Tracks []services.TrackMetadata
	Err    error
}

func (s *SliceStreamer) StreamTracks(ctx context.Context) (<-chan services.TrackMetadata, <-chan error) {
	out := make(chan services.TrackMetadata)
	errs := make(chan error, 1)
	go func() {
		defer close(errs)
		defer close(out)
		for _, meta := range s.Tracks {
			select {
			case out <- meta:
			case <-ctx.Done():
				errs <- ctx.Err()
				return
			}
		}
		if s.Err != nil {
			errs <- s.Err
		}
	}()
	return out, errs
}

// FWriter always returns an error on Write
type FWriter struct{}

func (f *FWriter) Write(p []byte) (n int, err error) {
	return 0, errors.New("write failed")
}

// LimitedWriter fails after a certain number of writes
type LimitedWriter struct {
	maxWrites int
	written   int
	target    io.Writer
}

func (l *LimitedWriter) Write(p []byte) (n int, err error) {
	if l.written >= l.maxWrites {
		return 0, errors.New("write limit exceeded")
	}
	l.written++
	return l.target.Write(p)
}

func NewLimitedWriter(maxWrites, written int, target io.Writer) LimitedWriter {
	return LimitedWriter{maxWrites: maxWrites, written: written, target: target}
}

func MustGetwd(t *testing.T) string {
	t.Helper()
	wd, err := os.Getwd()
	if err != nil {
		t.Fatalf("Failed to get working directory: %v", err)
	}
	return wd
}

func MustChdir(t *testing.T, dir string) {
	t.Helper()
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("Failed to change directory to %s: %v", dir, err)
	}
}

func AssertFileExists(t *testing.T, path string) {
	t.Helper()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Errorf("File does not exist: %s", path)
	}
}

func MustReadFile(t *testing.T, path string) string {
	t.Helper()
	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read file %s: %v", path, err)
	}
	return string(content)
}
