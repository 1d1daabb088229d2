// Package refresh coordinates access-token renewal across concurrent callers.
//
// # Single flight
//
// At most one renewal runs at a time. Callers arriving while a renewal is in flight join
// it and receive the same [Result]. A joining caller stops waiting when its own context
// ends, but the flight itself keeps running, bounded by [Config.Timeout], so one caller's
// cancellation never fails the others.
//
// # Classification
//
// Every flight ends in one of three outcomes (see [Result.Outcome]):
//
//   - success: the session store holds a fresh token.
//   - retry-silently: nothing changed; try again later.
//   - must-logout: the session is over. [Hooks.OnUnrecoverable] runs once per flight.
//
// 401 and 403 from the renewal endpoint are never retried. Transport failures and other
// non-2xx statuses are retried with exponential backoff and escalate to must-logout once
// retries are exhausted. A response that fails schema validation is retry-silently.
//
// # Cooldown
//
// Two full renewal attempts never start within [Config.Cooldown] of each other, whatever
// triggered them. A throttled flight reports success when the current token is still
// valid and not about to expire.
//
// # What this package must NOT do
//
//   - Clear the session or navigate. Global logout belongs to the hook owner.
//   - Import goSession (no upward imports).
package refresh
