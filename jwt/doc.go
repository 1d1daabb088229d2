// Package jwt decodes access tokens on the client side and turns their temporal claims into
// policy decisions: structural validity, expiry, "expires soon", renewal window sizing, and
// renewal backoff delays.
//
// # Architecture boundaries
//
// The client never holds signing keys for the tokens it receives, so [Policy] decodes without
// verifying signatures; trust decisions stay with the server. [Signer] exists for development
// backends and tests that need to mint tokens.
//
// # What this package must NOT do
//
//   - Hold session state or touch storage.
//   - Return errors from [Policy] methods: malformed tokens are folded into the result.
package jwt
