// Package interceptor provides an [http.RoundTripper] that attaches the session's bearer
// token to outgoing requests and recovers from 401 responses by renewing the token once.
//
// # Replay rules
//
// A request is replayed at most once. On a 401 the transport first checks whether the
// session already holds a different token than the one sent (another caller renewed in
// the meantime) and replays with it. Otherwise it asks the refresh coordinator, which
// joins any renewal already in flight. A must-logout outcome fails the request with
// [ErrSessionEnded]; a retry-silently outcome returns the original 401 to the caller.
//
// Endpoints on the no-auth allowlist (login, renewal, logout, public paths) never carry
// the bearer header and are never replayed.
package interceptor
