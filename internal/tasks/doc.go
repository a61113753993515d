// Package tasks runs the long operations behind the CLI and server, reporting progress over
// channels.
//
// # Library Scanning
//
// [Scanner.Scan] walks the library paths, reads tags with github.com/dhowden/tag and updates the
// index kept by the repositories package. Files whose size and modification time match the index
// are skipped; indexed files that are gone are removed. [Scanner.Watch] follows the library paths
// with fsnotify and scans again once a burst of changes settles.
//
// # Playlists
//
// [ExportPlaylist] writes any provider's playlist as M3U and [ImportPlaylist] recreates an M3U
// playlist on a provider, resolving each entry by URI, file name or title.
//
// # Progress Reporting
//
// Operations take an optional channel of [ProgressUpdate]. Sends never block: an update that does
// not fit in the channel is dropped.
package tasks
