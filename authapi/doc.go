// Package authapi is the HTTP client for the application's authentication endpoints:
// login, token renewal, and logout.
//
// Every response is a JSON envelope ({status, message, data}) that is decoded and then
// validated field by field before anything reaches the session. A response that fails
// validation is [ErrInvalidResponse]; a non-success status is a [*StatusError].
//
// The client keeps a cookie jar so servers that deliver the refresh credential as an
// httpOnly cookie work without the caller ever seeing it.
package authapi
