// Package library implements the music library: playlists, tracks and the
// relationships between them, stored in the record store.
//
// Every operation that reads state to decide a write (duplicate checks,
// membership toggles, referential checks on track ids) does the read and the
// write in one transaction, so concurrent callers cannot interleave between
// them.
//
// Playlist ids are derived from name and creator; the system "All Tracks"
// playlist is always "0", cannot be removed, and is created by [Service.EnsureAllTracks]
// the first time a session starts. Track ids are the title followed by a
// persisted counter.
package library
