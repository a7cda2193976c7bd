// Package models defines the records persisted by the spots music library store.
//
// Three tables are declared by the schema:
//   - [User] : logins keyed by username, carrying the persisted "is authenticated" flag
//   - [Playlist] : ordered track ids plus follower and pin sets, keyed by id
//   - [Track] : library entries with a required content source, keyed by id
//
// Every record implements [Record] so the store can derive its key and validate it before writes.
// The [Repository] interface is the typed CRUD surface the store exposes per table.
//
// The playlist with id [AllTracksPlaylistID] created by [SystemUserID] is the "All Tracks" playlist.
// Exactly one such playlist exists once a session has started.
package models
