// Package registry keeps the live set of providers and routes media operations to them.
//
// # Providers
//
// The local library is always present and always first. Remote providers come from the providers
// table: the [Registry] rebuilds its list whenever a record is created, updated or deleted, reusing
// the backend of every record that did not change and closing the rest.
//
// # Routing
//
// Calls keyed by a URI go to the single provider whose namespace accepts every URI involved. A URI
// no provider accepts, or that more than one accepts, fails with [shared.ErrNotFound]. Bulk listings
// (albums, artists, genres, playlists, search, activity) go to the active provider and follow it:
// when the active provider changes, the running listing is cancelled and the new provider's listing
// takes over on the same stream.
package registry
