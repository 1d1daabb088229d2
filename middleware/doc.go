// Package middleware is the consumption point of the session engine: it maps the engine's
// status and the route table's decision onto what to render, and performs the navigation
// side effect.
//
// # Guards
//
//   - [Guard.Resolve]: the render contract (loading, nothing, denied, children) for
//     client-side navigation. A denied path navigates at most once per target until the
//     path is allowed again.
//   - [Guard.Handler]: the same contract over net/http (503, 302, 403, next).
//
// # Architecture boundaries
//
// This package translates navigation and HTTP semantics into engine calls. It holds no
// authentication logic: status comes from the engine and decisions from route.Table.
//
// # What this package must NOT do
//
//   - Read or write the session stores.
//   - Renew tokens or call the auth API.
//   - Decide access beyond what route.Table.Evaluate returned.
package middleware
