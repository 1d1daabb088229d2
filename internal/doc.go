// Package internal holds helpers private to goSession.
//
// # Sub-packages
//
//   - audit: async event dispatch (Dispatcher and Sink implementations)
//   - flows: login, logout, and renewal orchestration shared by the engine and the
//     refresh coordinator
//   - rate: token-bucket throttles for login attempts and the renewal cooldown
//
// # What this package must NOT do
//
//   - Export types that appear in the public goSession API.
//   - Be imported by any package outside the goSession module.
package internal
