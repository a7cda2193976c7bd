// Package auth implements the session layer: sign-up, authentication and
// session restore over the users table of the record store.
//
// The service keeps at most one user authenticated. Authenticate clears every
// other user's persisted IsAuthenticated flag and sets the target's in one
// write transaction, and only then updates the in-memory session, so a failed
// write leaves the session untouched. Unauthenticate is the one exception to
// persist-then-mutate: memory is always cleared, and a persistence failure is
// returned for logging.
//
// Login failures never reveal whether the username exists; both causes return
// [KindInvalidLogin] with [InvalidLoginMessage].
//
// Components that need to react to session changes (creating the "All Tracks"
// playlist, opening the user's network endpoint) register as a [SessionObserver].
package auth
