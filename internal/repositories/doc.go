// Package repositories implements SQLite persistence for providers and the local library.
//
// Key Implementations:
//   - [ProviderRepository] : Remote provider records read by the registry
//   - [LibraryRepository] : Tracks, albums, artists and genres indexed from library folders
//   - [PlaylistRepository] : Local playlists and their ordered entries
//   - [StatsRepository] : Local playback statistics
//
// Every repository publishes a [streams.Signal] that fires after each committed write, so listings
// backed by it can re-query. [Store] bundles them over one database with the library, playlist and
// stats repositories sharing a single signal.
//
// Sequence numbers provide stable ordering independent of UUIDs and creation timestamps.
// The [NextSequence] function atomically increments per-table sequence counters in dedicated sequence tables.
package repositories
