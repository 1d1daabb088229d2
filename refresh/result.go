package refresh

// ErrorType names the failure class of a renewal.
type ErrorType string

const (
	ErrorNone            ErrorType = ""
	ErrorNoSession       ErrorType = "no_session"
	ErrorUnauthorized    ErrorType = "unauthorized"
	ErrorNetwork         ErrorType = "network"
	ErrorInvalidResponse ErrorType = "invalid_response"
	ErrorRateLimited     ErrorType = "rate_limited"
	ErrorCanceled        ErrorType = "canceled"
)

// Outcome is the three-way classification every caller acts on.
type Outcome int

const (
	OutcomeSuccess Outcome = iota
	OutcomeRetrySilently
	OutcomeMustLogout
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSuccess:
		return "success"
	case OutcomeRetrySilently:
		return "retry-silently"
	case OutcomeMustLogout:
		return "must-logout"
	default:
		return "unknown"
	}
}

// Result is what every caller of a flight receives.
type Result struct {
	Success      bool
	ShouldLogout bool
	Retryable    bool
	ErrorType    ErrorType
	Err          error

	// AccessToken is the token in the store after a successful flight.
	AccessToken string
	Attempts    int
	// Throttled marks a success produced by the cooldown without a network call.
	Throttled bool
	// Shared is set for callers that joined a flight started by someone else.
	Shared bool
	// SessionEpoch identifies the session the flight ran for, as reported by the session store.
	SessionEpoch uint64
}

// Outcome classifies r.
func (r Result) Outcome() Outcome {
	switch {
	case r.Success:
		return OutcomeSuccess
	case r.ShouldLogout:
		return OutcomeMustLogout
	default:
		return OutcomeRetrySilently
	}
}
