// Package session holds the client-side session and role state and persists it through a
// pluggable durable [Storage].
//
// # Stores
//
// [Store] owns the access token, optional body-delivered refresh token, and the
// authenticated user. [RoleStore] owns the user's role and persists independently, so a
// token-only renewal never touches the role.
//
// Mutations are applied in memory and delivered to subscribers synchronously, before the
// mutating call returns. The durable write happens afterwards; a failed write is reported
// as [ErrPersist] but the in-memory state stands.
//
// # Hydration
//
// Each store starts empty and unhydrated. [Store.Hydrate] loads the persisted snapshot once
// and flips HasHydrated exactly once. A mutation made before hydration completes wins over
// the persisted snapshot. A persisted session that has a user but no access token is
// discarded on load.
//
// # Persisted form
//
// Snapshots are stored as a versioned JSON envelope ({"v":N,"state":{...}}). Older versions
// are upgraded through the [Codec] migration chain; newer or undecodable snapshots are
// treated as empty.
//
// # What this package must NOT do
//
//   - Import goSession, jwt, refresh, or route (no upward imports).
//   - Decide whether a token is expired. That belongs to the token policy.
package session
