// Package models defines the media entities and provider identity shared by every backend.
//
// The package contains three categories of types:
//
// 1. Media entities: values produced by backends and addressed by URI
//   - [Album], [Artist], [Audio], [Genre], [Playlist] : implement [MediaItem]
//   - [AlbumWithTracks], [ArtistWithWorks], [GenreWithContent], [PlaylistWithAudios] : detail results
//   - [PlaylistMembership], [DiagnosticInfo], [ActivityTab]
//
// 2. Query vocabulary
//   - [SortingRule] : a (strategy, reverse) pair passed to every listing
//   - [RequestStatus] : Loading, Success or Error emission of a stream
//
// 3. Provider identity
//   - [Provider] and [ProviderIdentifier] : (type, type id) pairs with a parse fallback to the local provider
//   - [ProviderRecord] : persisted remote provider configuration, implements [Model]
package models
