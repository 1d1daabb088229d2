// Package goSession keeps a client application's authenticated session alive and decides
// which routes the current user may see.
//
// An [Engine] owns two durable stores (the session and the active role), derives a
// [Status] from them, renews the access token before and after it expires, and answers
// route access questions against a validated [route.Table]. Engine methods are safe to
// call from multiple goroutines after [Builder.Build].
//
// # Lifecycle
//
// [Engine.Start] hydrates both stores concurrently and waits for them, but never longer
// than Engine.RehydrationTimeout. After a page load a session that only looks
// authenticated is trusted for Engine.GracePeriod so the first render does not bounce the
// user to the login route. Store changes are debounced into a single status recompute.
//
// Token renewal from every trigger (periodic check, HTTP 401, explicit [Engine.Refresh])
// shares one in-flight request. An unrecoverable renewal clears both stores, shows the
// error in [Status], and performs exactly one navigation to the login route.
//
// # Architecture boundaries
//
// goSession is the public surface. Transport, storage encoding, and flow orchestration
// live in the sub-packages (authapi, session, refresh, interceptor, route) and under
// internal/.
//
// # What this package must NOT do
//
//   - Validate token signatures. Tokens are decoded for their timestamps only; the server
//     is the authority.
//   - Navigate anywhere except through the configured [Navigator].
//   - Import any sub-package that re-imports goSession (no import cycles).
package goSession
