package goSession

import "errors"

var (
	// ErrEngineNotReady is returned by operations that need a started engine.
	ErrEngineNotReady = errors.New("engine not started")
	// ErrEngineClosed is returned after Close.
	ErrEngineClosed = errors.New("engine closed")
	// ErrAlreadyStarted is returned by a second Start.
	ErrAlreadyStarted = errors.New("engine already started")
	// ErrBuilderUsed is returned by a second Build on the same Builder.
	ErrBuilderUsed = errors.New("builder already used")
	// ErrInvalidCredentials is returned when the server rejects a login.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrLoginRateLimited is returned when logins are submitted faster than allowed.
	ErrLoginRateLimited = errors.New("login rate limited")
	// ErrInvalidResponse is returned when the auth server answers with an unusable body.
	ErrInvalidResponse = errors.New("invalid auth response")
	// ErrAuthUnavailable is returned when the auth server cannot be reached.
	ErrAuthUnavailable = errors.New("auth server unavailable")
	// ErrSessionStore is returned when the session could not be installed.
	ErrSessionStore = errors.New("session store failure")
)
