// Package tasks runs the long library operations behind the import and export commands.
//
// # Core Operations
//
//  1. [LibraryEngine.Import] : add streamed track metadata to the library
//     - Reads [services.TrackMetadata] from a [services.TrackStreamer]
//     - Paces library writes with a token bucket (golang.org/x/time/rate)
//     - Skips tracks already in the library, records rejected ones
//     - Appends every new track to one playlist ("0", All Tracks, by default)
//
//  2. [LibraryEngine.BulkExport] : write playlists to files
//     - Reads each playlist with its tracks from the library
//     - Writes json, csv, markdown or txt through a pool of workers
//     - Records per-playlist failures and writes export_manifest.json
//
// # Progress Reporting
//
// All operations use non-blocking channels for progress updates.
//
// The [ProgressUpdate] struct contains phase, step counters, messages, and optional data.
// Updates use select with default to prevent blocking; a nil channel disables them.
package tasks
