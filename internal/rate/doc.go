// Package rate provides the in-process attempt limiters that keep the client from
// hammering the authentication endpoints.
//
// # Window semantics
//
// A [Limiter] is a token bucket: burst attempts are available immediately and one attempt
// is restored every window. A cooldown is the burst=1 case, so two full attempts can never
// start within one window.
//
// # What this package must NOT do
//
//   - Perform network I/O or persist counters.
//   - Be imported outside the goSession module.
package rate
