// Package services defines the host bridge that the auth and library services consume, and
// a local implementation of it.
//
// # Bridge Interfaces
//
//   - [PasswordHasher] / [PasswordVerifier] : password hashing happens outside the store, plaintext is never persisted
//   - [EndpointManager] : lifecycle of the per-user network endpoint
//   - [TrackStreamer] : metadata for tracks the host can play, consumed by the importer
//
// # Local Bridge
//
// [LocalBridge] hashes with bcrypt and verifies against the hash stored in the users table, looked up
// by user id. Network endpoints are loopback TCP listeners, one per user, with at most one active.
//
// # Manifest Streamer
//
// [ManifestStreamer] reads a JSON array of [TrackMetadata] from disk and streams it without
// loading the whole file.
//
// # Session Hooks
//
// [EndpointObserver] loads the user's endpoint when a session starts and closes it when it ends.
//
// # Error Handling
//
// Bridge failures use sentinels from the shared package:
//   - [shared.ErrEmptyPassword] : empty plaintext
//   - [shared.ErrPasswordTooLong] : plaintext longer than bcrypt accepts
//   - [shared.ErrHostUnavailable] : the bridge was closed
//   - [shared.ErrEndpointNotFound] : no endpoint for the user
package services
