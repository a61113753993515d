// Package server exposes the provider registry as a JSON HTTP API.
//
// # Router Infrastructure
//
// The [Router] interface defines HTTP routing with middleware support.
//
// [Middleware] wraps handlers in reverse order (last added executes first), following the standard Go pattern.
// [Logging] logs each request with its status and [Recover] answers handler panics with a 500.
//
// The [BasicRouter] implementation registers "METHOD /path" patterns on an [http.ServeMux].
//
// # API
//
//	GET    /api/providers              providers and the active one
//	POST   /api/providers/active       {"provider": "jellyfin/1"}
//	GET    /api/activity               home page tabs of the active provider
//	GET    /api/{albums|artists|genres|playlists}?sort=name&reverse=true
//	GET    /api/search?q=
//	GET    /api/item?uri=              detail of any entity, tagged with its type
//	GET    /api/audio/playlists?uri=   playlist membership of an audio
//	POST   /api/audio/played?uri=
//	POST   /api/playlists              {"provider": "local/0", "name": "Mix"}
//	PATCH  /api/playlist?uri=          {"name": "Evening"}
//	DELETE /api/playlist?uri=
//	POST   /api/playlist/audio         {"playlist": uri, "audio": uri}
//	DELETE /api/playlist/audio         {"playlist": uri, "audio": uri}
//	GET    /api/status?provider=
//	GET    /api/ws/listing             websocket listing stream
//
// Listings without sort parameters use each listing's default rule. Errors are answered as
// {"error": "..."} with a status from [StatusCode].
//
// # Listing Stream
//
// The websocket endpoint takes messages like {"media": "albums", "sort": "name"} and answers with
// a frame for every status of that listing, following the active provider and backend changes.
// A new message switches the socket to the new listing.
package server
