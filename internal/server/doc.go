// Package server exposes the auth and library services over a small JSON "invoke" API.
//
// # Router Infrastructure
//
// The [Router] interface defines HTTP routing with middleware support.
// [BasicRouter] implements it over [http.ServeMux] method patterns.
// [Middleware] is applied in registration order: the first one added sees the request first.
//
// # Invoke API
//
// [InvokeHandler] serves POST /invoke/{command}. The body is a JSON object whose
// fields depend on the command, for example
//
//	POST /invoke/authenticate   {"username": "alice", "password": "secret"}
//	POST /invoke/add_track      {"src": "/music/a.mp3", "title": "A"}
//	POST /invoke/toggle_pin_playlist {"playlistId": "Road-u1"}
//
// Commands that act for a user take an optional userId and fall back to the
// authenticated user. Every response is a [Response] envelope. Failures carry
// the service error kind (InvalidLogin, NotFound, AlreadyInPlaylist, ...) and a
// status code derived from it.
//
// [HealthHandler] serves GET /health with the store connection state.
//
// [Server] runs the router until its context is cancelled and then shuts down gracefully.
package server
