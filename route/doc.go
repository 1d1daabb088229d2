// Package route decides whether a navigation to a path may render, given the current
// authentication state and role.
//
// # Architecture boundaries
//
// A [Table] is built once from a list of [Entry] values and is immutable afterwards. Exact
// paths live in a map; paths with dynamic segments are compiled into anchored regular
// expressions and tried in declaration order. Required roles are compiled into a
// [permission.Mask64] so membership is a single bit test.
//
// # Resolution order
//
//  1. exact match, then dynamic match; an unmatched path follows [UnknownRoutePolicy]
//  2. PUBLIC is always allowed
//  3. GUEST_ONLY redirects authenticated sessions away
//  4. AUTHENTICATED redirects anonymous sessions to the login route
//  5. required roles are checked only after authentication passed
//
// # What this package must NOT do
//
//   - Read session or role state itself.
//   - Perform the navigation it recommends.
package route
