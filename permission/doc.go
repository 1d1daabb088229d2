// Package permission defines the application roles and the compact role sets used by route
// gating.
//
// # Role sets
//
// Roles are registered in a [Registry] that assigns each a bit in a 64-bit mask. A route's
// required roles compile once into a [Mask64], so the per-navigation membership check is a
// single bit test. Bit positions are stable for the lifetime of the registry.
//
// # What this package must NOT do
//
//   - Access storage or the network.
//   - Import goSession, session, or route.
package permission
