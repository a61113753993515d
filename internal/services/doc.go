// Package services defines the [Service] interface every media backend implements, and the
// local library, Jellyfin and Subsonic backends.
//
// # Service Interface
//
// A backend owns a URI [Namespace]. [Service.IsCompatible] is a pure prefix test on that namespace
// and [Service.ResolveType] classifies a URI by its collection segment, so routing never does I/O.
//
// Listings and details are returned as a [Stream]: a channel of [models.RequestStatus] that starts
// with Loading and then carries results. Local streams and remote playlist streams re-emit when the
// underlying data changes. Every stream closes when the caller's context is cancelled.
//
// # Remote Backends
//
// [JellyfinService] and [SubsonicService] share [APIClient], which acquires a token on first use,
// logs in again at most once when a request is rejected with 401, and runs at most one login per
// client at a time. Requests wait on a rate limiter and are cancelled by [APIClient.Close].
//
// Jellyfin logs in with AuthenticateByName and sends the MediaBrowser token header. Subsonic signs
// every request with a salted md5 token, or with the hex encoded password in legacy mode, and
// reports failures inside a 200 response.
//
// # Local Backend
//
// [LocalService] reads the library index and playlists kept by the repositories package. The
// library is filled by the scanner in the tasks package.
//
// # Error Handling
//
// Operations fail with the media errors of the shared package:
//   - [shared.ErrNotFound] : unknown entity or a URI this backend cannot parse
//   - [shared.ErrAuthenticationRequired] : login failed or was refused
//   - [shared.ErrInvalidCredentials] : the server rejected the username or password
//   - [shared.ErrDeserialization] : a response body could not be decoded
//   - [shared.ErrInvalidResponse] : a response was well formed but unusable
//   - [shared.ErrNotImplemented] : the backend cannot perform the operation
//   - [shared.ErrIO] : transport failures and unexpected statuses
package services
