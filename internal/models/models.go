package models

import (
	"context"
	"fmt"
	"slices"
)

// Table names declared by the schema.
const (
	UsersTable     = "users"
	PlaylistsTable = "playlists"
	TracksTable    = "tracks"
)

const (
	// AllTracksPlaylistID is the id of the distinguished "All Tracks" playlist.
	AllTracksPlaylistID = "0"
	// AllTracksPlaylistName is the display name of the "All Tracks" playlist.
	AllTracksPlaylistName = "All Tracks"
	// SystemUserID marks records created by the application rather than a user.
	SystemUserID = "__SYSTEM__"
)

// Record defines the base interface for everything stored in a table.
// Implementations are pointer types so the store can decode into them.
type Record interface {
	Key() string     // Key returns the value of the table's declared key field
	Validate() error // Validate checks required fields before a write
}

// Repository defines typed data access for one table. Each call runs in its own
// transaction; deps names additional tables that join that transaction.
type Repository[T Record] interface {
	Create(ctx context.Context, rec T, deps ...string) error                        // Create inserts a new record, failing on a duplicate key
	Read(ctx context.Context, key string, deps ...string) (T, error)                // Read retrieves a record by key
	Update(ctx context.Context, key string, rec T, deps ...string) error            // Update replaces an existing record
	Delete(ctx context.Context, key string, deps ...string) (T, error)              // Delete removes a record and returns it
	ReadAll(ctx context.Context, deps ...string) ([]T, error)                       // ReadAll returns every record in insertion order
	FindBy(ctx context.Context, index string, v any, deps ...string) ([]T, error) // FindBy returns records matching a named index
}

// ValidationError reports a record that failed [Record.Validate].
type ValidationError struct {
	Table string
	Field string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s is required", e.Table, e.Field)
}

// AddUnique appends v when it is not already present and reports whether it was added.
func AddUnique(list []string, v string) ([]string, bool) {
	if slices.Contains(list, v) {
		return list, false
	}
	return append(list, v), true
}

// Remove drops every occurrence of v and reports whether anything was removed.
func Remove(list []string, v string) ([]string, bool) {
	out := slices.DeleteFunc(slices.Clone(list), func(s string) bool { return s == v })
	return out, len(out) != len(list)
}
