// Package flows contains pure-function orchestrators for the session operations that talk
// to the authentication server.
//
// Each flow function (RunRenewal, RunLogin, RunLogout) accepts a typed dependency struct
// and returns a result with a failure kind. Flows never decide what a failure means for
// the session lifecycle; the refresh coordinator and the engine map kinds to outcomes.
//
// # Architecture boundaries
//
// Flows coordinate the session stores, the auth API client, the token policy, and the
// cooldown limiter. They do NOT own any of these resources.
//
// # What this package must NOT do
//
//   - Hold mutable state between calls.
//   - Import goSession, refresh, or authapi (to avoid import cycles).
//   - Perform I/O directly. All I/O is mediated through dependency funcs and interfaces.
package flows
