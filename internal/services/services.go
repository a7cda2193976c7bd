package services

import (
	"context"
)

// PasswordHasher turns a plaintext password into a storable hash.
type PasswordHasher interface {
	// HashPassword returns the hash to persist for plaintext.
	// Empty or oversized passwords are rejected.
	HashPassword(ctx context.Context, plaintext string) (string, error)
}

// PasswordVerifier checks a plaintext password against the hash stored for a user.
type PasswordVerifier interface {
	// VerifyPassword reports whether plaintext matches the stored hash of userID.
	// A mismatch is (false, nil); errors are reserved for host failures.
	VerifyPassword(ctx context.Context, userID, plaintext string) (bool, error)
}

// EndpointManager owns the per-user network endpoint of the host.
type EndpointManager interface {
	CreateNetworkEndpoint(ctx context.Context, userID string) error
	// LoadNetworkEndpoint makes userID's endpoint the active one, creating it when needed.
	LoadNetworkEndpoint(ctx context.Context, userID string) error
	// GetEndpointAddress returns the address of userID's endpoint and whether one exists.
	GetEndpointAddress(ctx context.Context, userID string) (string, bool, error)
	// CloseNetworkEndpoint closes the active endpoint, if any.
	CloseNetworkEndpoint(ctx context.Context) error
}

// TrackStreamer yields metadata for tracks the host can play.
//
// The metadata channel is closed when the stream ends. At most one error is
// sent on the error channel, which is closed after the metadata channel.
type TrackStreamer interface {
	StreamTracks(ctx context.Context) (<-chan TrackMetadata, <-chan error)
}

// TrackMetadata describes one playable item found by the host.
type TrackMetadata struct {
	Src         string `json:"src"`
	Title       string `json:"title,omitempty"`
	Artist      string `json:"artist,omitempty"`
	Album       string `json:"album,omitempty"`
	ImageSource string `json:"imageSource,omitempty"`
}

// HostBridge is everything the services consume from the host.
type HostBridge interface {
	PasswordHasher
	PasswordVerifier
	EndpointManager
}
