package flows

// Deps groups the session-level flow dependencies. Renewal is not here: it runs only
// through the refresh coordinator, which owns its own [RenewalDeps].
type Deps struct {
	Login  LoginDeps
	Logout LogoutDeps
}
